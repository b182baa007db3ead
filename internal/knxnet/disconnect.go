package knxnet

import "fmt"

// DisconnectRequestSize is the encoded size of a DisconnectRequest.
const DisconnectRequestSize = 2 + HostInfoSize

// DisconnectRequest closes a tunnelling channel. Either side may send it.
//
// Layout (10 bytes):
//
//	Byte 0:   channel id
//	Byte 1:   status (reserved, normally 0)
//	Byte 2-9: control endpoint HostInfo
type DisconnectRequest struct {
	Channel  uint8
	Status   uint8
	HostInfo HostInfo
}

// Service returns ServiceDisconnectRequest.
func (DisconnectRequest) Service() ServiceID { return ServiceDisconnectRequest }

// Size returns DisconnectRequestSize.
func (DisconnectRequest) Size() int { return DisconnectRequestSize }

// Encode returns the 10-byte wire form.
func (m DisconnectRequest) Encode() []byte { return encodeOwned(m) }

// EncodeTo writes the message into dst at offset.
func (m DisconnectRequest) EncodeTo(dst []byte, offset int) error {
	buf, err := borrow(dst, offset, DisconnectRequestSize)
	if err != nil {
		return err
	}
	b := buf[offset:]
	b[0] = m.Channel
	b[1] = m.Status
	m.HostInfo.put(b[2 : 2+HostInfoSize])
	return nil
}

// DecodeDisconnectRequest reads a DisconnectRequest from b at offset.
func DecodeDisconnectRequest(b []byte, offset int) (DisconnectRequest, error) {
	w, err := remaining(b, offset, DisconnectRequestSize, "disconnect request")
	if err != nil {
		return DisconnectRequest{}, err
	}
	hi, err := DecodeHostInfo(w, 2)
	if err != nil {
		return DisconnectRequest{}, fmt.Errorf("control endpoint: %w", err)
	}
	return DisconnectRequest{Channel: w[0], Status: w[1], HostInfo: hi}, nil
}
