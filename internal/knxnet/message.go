package knxnet

import "fmt"

// Message is one of the seven tunnelling message kinds.
//
// The set is closed: the unexported method keeps other packages from adding
// kinds, so a type switch over the concrete types in this package is
// exhaustive.
type Message interface {
	// Service returns the identifier written into the packet header.
	Service() ServiceID

	// Size returns the exact number of bytes the encoded message occupies.
	Size() int

	// EncodeTo writes the message into dst at offset, or returns
	// ErrBufferTooSmall without writing. A nil dst is always too small.
	EncodeTo(dst []byte, offset int) error

	message()
}

// Compile-time checks for the closed set.
var (
	_ Message = ConnectionRequest{}
	_ Message = ConnectionResponse{}
	_ Message = ConnectionStateRequest{}
	_ Message = ConnectionStateResponse{}
	_ Message = DisconnectRequest{}
	_ Message = TunnelRequest{}
	_ Message = TunnelResponse{}
)

func (ConnectionRequest) message()       {}
func (ConnectionResponse) message()      {}
func (ConnectionStateRequest) message()  {}
func (ConnectionStateResponse) message() {}
func (DisconnectRequest) message()       {}
func (TunnelRequest) message()           {}
func (TunnelResponse) message()          {}

// Status codes carried in response messages.
const (
	// StatusOK is E_NO_ERROR.
	StatusOK uint8 = 0x00
)

// encodeOwned allocates an exactly-sized buffer and encodes m into it.
func encodeOwned(m Message) []byte {
	buf := make([]byte, m.Size())
	_ = m.EncodeTo(buf, 0) //nolint:errcheck // buffer sized by Size()
	return buf
}

// decodeMessage dispatches on the service identifier. A failed decode
// returns a nil Message.
func decodeMessage(service ServiceID, payload []byte) (Message, error) {
	var (
		m   Message
		err error
	)
	switch service {
	case ServiceConnectionRequest:
		m, err = DecodeConnectionRequest(payload, 0)
	case ServiceConnectionResponse:
		m, err = DecodeConnectionResponse(payload, 0)
	case ServiceConnectionStateRequest:
		m, err = DecodeConnectionStateRequest(payload, 0)
	case ServiceConnectionStateResponse:
		m, err = DecodeConnectionStateResponse(payload, 0)
	case ServiceDisconnectRequest:
		m, err = DecodeDisconnectRequest(payload, 0)
	case ServiceTunnelRequest:
		m, err = DecodeTunnelRequest(payload, 0)
	case ServiceTunnelResponse:
		m, err = DecodeTunnelResponse(payload, 0)
	default:
		return nil, &UnknownServiceError{Service: service}
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", service, err)
	}
	return m, nil
}
