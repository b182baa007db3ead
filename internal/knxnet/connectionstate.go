package knxnet

import "fmt"

// Encoded sizes of the connection-state messages.
const (
	ConnectionStateRequestSize  = 2 + HostInfoSize
	ConnectionStateResponseSize = 2
)

// ConnectionStateRequest is the client's keepalive for an open channel.
//
// Layout (10 bytes):
//
//	Byte 0:   channel id
//	Byte 1:   status (reserved, normally 0)
//	Byte 2-9: control endpoint HostInfo
type ConnectionStateRequest struct {
	Channel  uint8
	Status   uint8
	HostInfo HostInfo
}

// NewConnectionStateRequest returns a keepalive for channel carrying the
// default route-back endpoint.
func NewConnectionStateRequest(channel uint8) ConnectionStateRequest {
	return ConnectionStateRequest{Channel: channel, HostInfo: DefaultHostInfo()}
}

// Service returns ServiceConnectionStateRequest.
func (ConnectionStateRequest) Service() ServiceID { return ServiceConnectionStateRequest }

// Size returns ConnectionStateRequestSize.
func (ConnectionStateRequest) Size() int { return ConnectionStateRequestSize }

// Encode returns the 10-byte wire form.
func (m ConnectionStateRequest) Encode() []byte { return encodeOwned(m) }

// EncodeTo writes the message into dst at offset.
func (m ConnectionStateRequest) EncodeTo(dst []byte, offset int) error {
	buf, err := borrow(dst, offset, ConnectionStateRequestSize)
	if err != nil {
		return err
	}
	b := buf[offset:]
	b[0] = m.Channel
	b[1] = m.Status
	m.HostInfo.put(b[2 : 2+HostInfoSize])
	return nil
}

// DecodeConnectionStateRequest reads a ConnectionStateRequest from b at offset.
func DecodeConnectionStateRequest(b []byte, offset int) (ConnectionStateRequest, error) {
	w, err := remaining(b, offset, ConnectionStateRequestSize, "connection state request")
	if err != nil {
		return ConnectionStateRequest{}, err
	}
	hi, err := DecodeHostInfo(w, 2)
	if err != nil {
		return ConnectionStateRequest{}, fmt.Errorf("control endpoint: %w", err)
	}
	return ConnectionStateRequest{Channel: w[0], Status: w[1], HostInfo: hi}, nil
}

// ConnectionStateResponse answers a ConnectionStateRequest.
//
// Layout (2 bytes):
//
//	Byte 0: channel id
//	Byte 1: status (0 = connection alive)
type ConnectionStateResponse struct {
	Channel uint8
	Status  uint8
}

// Service returns ServiceConnectionStateResponse.
func (ConnectionStateResponse) Service() ServiceID { return ServiceConnectionStateResponse }

// Size returns ConnectionStateResponseSize.
func (ConnectionStateResponse) Size() int { return ConnectionStateResponseSize }

// OK reports whether the gateway considers the channel alive.
func (m ConnectionStateResponse) OK() bool { return m.Status == StatusOK }

// Encode returns the 2-byte wire form.
func (m ConnectionStateResponse) Encode() []byte { return encodeOwned(m) }

// EncodeTo writes the message into dst at offset.
func (m ConnectionStateResponse) EncodeTo(dst []byte, offset int) error {
	buf, err := borrow(dst, offset, ConnectionStateResponseSize)
	if err != nil {
		return err
	}
	buf[offset] = m.Channel
	buf[offset+1] = m.Status
	return nil
}

// DecodeConnectionStateResponse reads a ConnectionStateResponse from b at offset.
func DecodeConnectionStateResponse(b []byte, offset int) (ConnectionStateResponse, error) {
	w, err := remaining(b, offset, ConnectionStateResponseSize, "connection state response")
	if err != nil {
		return ConnectionStateResponse{}, err
	}
	return ConnectionStateResponse{Channel: w[0], Status: w[1]}, nil
}
