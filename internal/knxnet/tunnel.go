package knxnet

import "fmt"

// tunnelHeaderSize is the connection header length shared by tunnelling
// requests and acks.
const tunnelHeaderSize = 4

// Encoded sizes of the tunnelling messages.
const (
	TunnelRequestHeaderSize = tunnelHeaderSize
	TunnelResponseSize      = tunnelHeaderSize
)

// TunnelRequest carries one cEMI frame over an open channel.
//
// Layout (4 + N bytes):
//
//	Byte 0:  structure length (4)
//	Byte 1:  channel id
//	Byte 2:  sequence counter
//	Byte 3:  reserved (0)
//	Byte 4+: cEMI frame, opaque here
type TunnelRequest struct {
	Channel   uint8
	SeqNumber uint8
	Data      []byte
}

// Service returns ServiceTunnelRequest.
func (TunnelRequest) Service() ServiceID { return ServiceTunnelRequest }

// Size returns the header size plus len(Data).
func (m TunnelRequest) Size() int { return tunnelHeaderSize + len(m.Data) }

// Encode returns the wire form.
func (m TunnelRequest) Encode() []byte { return encodeOwned(m) }

// EncodeTo writes the message into dst at offset.
func (m TunnelRequest) EncodeTo(dst []byte, offset int) error {
	buf, err := borrow(dst, offset, m.Size())
	if err != nil {
		return err
	}
	b := buf[offset:]
	b[0] = tunnelHeaderSize
	b[1] = m.Channel
	b[2] = m.SeqNumber
	b[3] = 0x00
	copy(b[tunnelHeaderSize:], m.Data)
	return nil
}

// Ack builds the TunnelResponse acknowledging this request.
func (m TunnelRequest) Ack(status uint8) TunnelResponse {
	return TunnelResponse{Channel: m.Channel, SeqNumber: m.SeqNumber, Status: status}
}

// DecodeTunnelRequest reads a TunnelRequest from b at offset. Every byte
// after the header belongs to the cEMI frame; Data is a copy, so b may be
// reused afterwards.
func DecodeTunnelRequest(b []byte, offset int) (TunnelRequest, error) {
	w, err := remaining(b, offset, tunnelHeaderSize, "tunnelling request")
	if err != nil {
		return TunnelRequest{}, err
	}
	if w[0] != tunnelHeaderSize {
		return TunnelRequest{}, fmt.Errorf("%w: tunnelling request declares %d, want %d",
			ErrInvalidStructureLength, w[0], tunnelHeaderSize)
	}
	m := TunnelRequest{Channel: w[1], SeqNumber: w[2]}
	if rest := b[offset+tunnelHeaderSize:]; len(rest) > 0 {
		m.Data = make([]byte, len(rest))
		copy(m.Data, rest)
	}
	return m, nil
}

// TunnelResponse acknowledges a TunnelRequest.
//
// Layout (4 bytes):
//
//	Byte 0: structure length (4)
//	Byte 1: channel id
//	Byte 2: sequence counter of the acknowledged request
//	Byte 3: status (0 = ok)
type TunnelResponse struct {
	Channel   uint8
	SeqNumber uint8
	Status    uint8
}

// Service returns ServiceTunnelResponse.
func (TunnelResponse) Service() ServiceID { return ServiceTunnelResponse }

// Size returns TunnelResponseSize.
func (TunnelResponse) Size() int { return TunnelResponseSize }

// OK reports whether the request was accepted.
func (m TunnelResponse) OK() bool { return m.Status == StatusOK }

// Encode returns the 4-byte wire form.
func (m TunnelResponse) Encode() []byte { return encodeOwned(m) }

// EncodeTo writes the message into dst at offset.
func (m TunnelResponse) EncodeTo(dst []byte, offset int) error {
	buf, err := borrow(dst, offset, TunnelResponseSize)
	if err != nil {
		return err
	}
	b := buf[offset:]
	b[0] = tunnelHeaderSize
	b[1] = m.Channel
	b[2] = m.SeqNumber
	b[3] = m.Status
	return nil
}

// DecodeTunnelResponse reads a TunnelResponse from b at offset.
func DecodeTunnelResponse(b []byte, offset int) (TunnelResponse, error) {
	w, err := remaining(b, offset, TunnelResponseSize, "tunnelling ack")
	if err != nil {
		return TunnelResponse{}, err
	}
	if w[0] != tunnelHeaderSize {
		return TunnelResponse{}, fmt.Errorf("%w: tunnelling ack declares %d, want %d",
			ErrInvalidStructureLength, w[0], tunnelHeaderSize)
	}
	return TunnelResponse{Channel: w[1], SeqNumber: w[2], Status: w[3]}, nil
}
