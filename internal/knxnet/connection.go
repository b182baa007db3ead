package knxnet

import "fmt"

// Connection Request Information constants for a link-layer tunnel.
const (
	criSize = 4

	// ConnectionTypeTunnel is TUNNEL_CONNECTION.
	ConnectionTypeTunnel byte = 0x04

	// TunnelLayerLink is TUNNEL_LINKLAYER.
	TunnelLayerLink byte = 0x02
)

// Encoded sizes of the connection messages.
const (
	ConnectionRequestSize  = 2*HostInfoSize + criSize
	ConnectionResponseSize = 2 + HostInfoSize + connectionResponseTrailer

	// connectionResponseTrailer is the count of octets after the data
	// endpoint that are carried but not interpreted.
	connectionResponseTrailer = 4
)

// ConnectionRequest asks a gateway to open a tunnelling channel.
//
// Layout (20 bytes):
//
//	Byte 0-7:   control endpoint HostInfo
//	Byte 8-15:  data endpoint HostInfo
//	Byte 16:    CRI length (4)
//	Byte 17:    connection type (4, tunnel)
//	Byte 18:    KNX layer (2, link layer)
//	Byte 19:    reserved (0)
type ConnectionRequest struct {
	Control HostInfo
	Tunnel  HostInfo
}

// NewConnectionRequest returns a request whose control and data endpoints
// are both the default route-back endpoint.
func NewConnectionRequest() ConnectionRequest {
	return ConnectionRequest{Control: DefaultHostInfo(), Tunnel: DefaultHostInfo()}
}

// Service returns ServiceConnectionRequest.
func (ConnectionRequest) Service() ServiceID { return ServiceConnectionRequest }

// Size returns ConnectionRequestSize.
func (ConnectionRequest) Size() int { return ConnectionRequestSize }

// Encode returns the 20-byte wire form.
func (m ConnectionRequest) Encode() []byte { return encodeOwned(m) }

// EncodeTo writes the message into dst at offset.
func (m ConnectionRequest) EncodeTo(dst []byte, offset int) error {
	buf, err := borrow(dst, offset, ConnectionRequestSize)
	if err != nil {
		return err
	}
	b := buf[offset:]
	m.Control.put(b[0:HostInfoSize])
	m.Tunnel.put(b[HostInfoSize : 2*HostInfoSize])
	b[16] = criSize
	b[17] = ConnectionTypeTunnel
	b[18] = TunnelLayerLink
	b[19] = 0x00
	return nil
}

// DecodeConnectionRequest reads a ConnectionRequest from b at offset.
//
// The CRI length, connection type and layer are checked; the reserved
// octet is ignored.
func DecodeConnectionRequest(b []byte, offset int) (ConnectionRequest, error) {
	w, err := remaining(b, offset, ConnectionRequestSize, "connection request")
	if err != nil {
		return ConnectionRequest{}, err
	}
	control, err := DecodeHostInfo(w, 0)
	if err != nil {
		return ConnectionRequest{}, fmt.Errorf("control endpoint: %w", err)
	}
	tunnel, err := DecodeHostInfo(w, HostInfoSize)
	if err != nil {
		return ConnectionRequest{}, fmt.Errorf("data endpoint: %w", err)
	}
	if w[16] != criSize {
		return ConnectionRequest{}, fmt.Errorf("%w: CRI declares %d, want %d",
			ErrInvalidStructureLength, w[16], criSize)
	}
	if w[17] != ConnectionTypeTunnel || w[18] != TunnelLayerLink {
		return ConnectionRequest{}, fmt.Errorf("%w: type 0x%02X layer 0x%02X",
			ErrInvalidConnectionType, w[17], w[18])
	}
	return ConnectionRequest{Control: control, Tunnel: tunnel}, nil
}

// ConnectionResponse is the gateway's answer to a ConnectionRequest.
//
// Layout (14 bytes):
//
//	Byte 0:     channel id
//	Byte 1:     status (0 = success)
//	Byte 2-9:   data endpoint HostInfo
//	Byte 10-13: trailer (kept verbatim, not interpreted)
type ConnectionResponse struct {
	Channel  uint8
	Status   uint8
	HostInfo HostInfo

	// Trailer holds the four octets following the data endpoint. Their
	// meaning is not defined here; they round-trip unchanged.
	Trailer [connectionResponseTrailer]byte
}

// Service returns ServiceConnectionResponse.
func (ConnectionResponse) Service() ServiceID { return ServiceConnectionResponse }

// Size returns ConnectionResponseSize.
func (ConnectionResponse) Size() int { return ConnectionResponseSize }

// OK reports whether the gateway accepted the connection.
func (m ConnectionResponse) OK() bool { return m.Status == StatusOK }

// Encode returns the 14-byte wire form.
func (m ConnectionResponse) Encode() []byte { return encodeOwned(m) }

// EncodeTo writes the message into dst at offset.
func (m ConnectionResponse) EncodeTo(dst []byte, offset int) error {
	buf, err := borrow(dst, offset, ConnectionResponseSize)
	if err != nil {
		return err
	}
	b := buf[offset:]
	b[0] = m.Channel
	b[1] = m.Status
	m.HostInfo.put(b[2 : 2+HostInfoSize])
	copy(b[2+HostInfoSize:ConnectionResponseSize], m.Trailer[:])
	return nil
}

// DecodeConnectionResponse reads a ConnectionResponse from b at offset.
func DecodeConnectionResponse(b []byte, offset int) (ConnectionResponse, error) {
	w, err := remaining(b, offset, ConnectionResponseSize, "connection response")
	if err != nil {
		return ConnectionResponse{}, err
	}
	hi, err := DecodeHostInfo(w, 2)
	if err != nil {
		return ConnectionResponse{}, fmt.Errorf("data endpoint: %w", err)
	}
	m := ConnectionResponse{
		Channel:  w[0],
		Status:   w[1],
		HostInfo: hi,
	}
	copy(m.Trailer[:], w[2+HostInfoSize:])
	return m, nil
}
