package knxnet

import "fmt"

// ServiceID identifies the message carried by a packet.
type ServiceID uint16

// Service identifiers for the tunnelling services this package understands.
const (
	ServiceConnectionRequest       ServiceID = 0x0205
	ServiceConnectionResponse      ServiceID = 0x0206
	ServiceConnectionStateRequest  ServiceID = 0x0207
	ServiceConnectionStateResponse ServiceID = 0x0208
	ServiceDisconnectRequest       ServiceID = 0x0209
	ServiceTunnelRequest           ServiceID = 0x0420
	ServiceTunnelResponse          ServiceID = 0x0421
)

// Services lists every registered service identifier in wire order.
var Services = []ServiceID{
	ServiceConnectionRequest,
	ServiceConnectionResponse,
	ServiceConnectionStateRequest,
	ServiceConnectionStateResponse,
	ServiceDisconnectRequest,
	ServiceTunnelRequest,
	ServiceTunnelResponse,
}

// Known reports whether a codec is registered for the identifier.
func (s ServiceID) Known() bool {
	switch s {
	case ServiceConnectionRequest, ServiceConnectionResponse,
		ServiceConnectionStateRequest, ServiceConnectionStateResponse,
		ServiceDisconnectRequest, ServiceTunnelRequest, ServiceTunnelResponse:
		return true
	}
	return false
}

// String returns the KNXnet/IP service name, or the hex value if unknown.
func (s ServiceID) String() string {
	switch s {
	case ServiceConnectionRequest:
		return "CONNECT_REQUEST"
	case ServiceConnectionResponse:
		return "CONNECT_RESPONSE"
	case ServiceConnectionStateRequest:
		return "CONNECTIONSTATE_REQUEST"
	case ServiceConnectionStateResponse:
		return "CONNECTIONSTATE_RESPONSE"
	case ServiceDisconnectRequest:
		return "DISCONNECT_REQUEST"
	case ServiceTunnelRequest:
		return "TUNNELLING_REQUEST"
	case ServiceTunnelResponse:
		return "TUNNELLING_ACK"
	}
	return fmt.Sprintf("0x%04X", uint16(s))
}
