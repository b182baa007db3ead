package knxnet

import (
	"errors"
	"fmt"
)

// Codec errors. Call sites wrap these with the offending values, so use
// errors.Is to test for them.
var (
	// ErrBufferTooSmall is returned when the input is shorter than the
	// structure being read, or the destination cannot hold the structure
	// being written.
	ErrBufferTooSmall = errors.New("knxnet: buffer too small")

	// ErrHeaderLengthMismatch is returned when the header length octet is not 6.
	ErrHeaderLengthMismatch = errors.New("knxnet: header length mismatch")

	// ErrHeaderVersionMismatch is returned when the protocol version octet is not 0x10.
	ErrHeaderVersionMismatch = errors.New("knxnet: header version mismatch")

	// ErrInvalidStructureLength is returned when a sub-structure declares a
	// length other than its fixed size.
	ErrInvalidStructureLength = errors.New("knxnet: invalid structure length")

	// ErrInvalidProtocol is returned for a host protocol code other than UDP or TCP.
	ErrInvalidProtocol = errors.New("knxnet: invalid host protocol")

	// ErrInvalidAddress is returned when a textual address is not a dotted-quad IPv4 address.
	ErrInvalidAddress = errors.New("knxnet: invalid IPv4 address")

	// ErrInvalidConnectionType is returned when a connection request asks for
	// something other than a link-layer tunnel.
	ErrInvalidConnectionType = errors.New("knxnet: invalid connection type")

	// ErrUnknownService is returned when no codec is registered for a service identifier.
	ErrUnknownService = errors.New("knxnet: unknown service")

	// ErrLengthOverflow is returned when a packet would not fit the 16-bit total length field.
	ErrLengthOverflow = errors.New("knxnet: total length overflow")
)

// UnknownServiceError reports the service identifier that could not be dispatched.
type UnknownServiceError struct {
	Service ServiceID
}

func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("%s: 0x%04X", ErrUnknownService, uint16(e.Service))
}

// Unwrap lets errors.Is(err, ErrUnknownService) match.
func (e *UnknownServiceError) Unwrap() error {
	return ErrUnknownService
}

// errShort builds a wrapped ErrBufferTooSmall for a read of want bytes.
func errShort(what string, want, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrBufferTooSmall, what, want, have)
}
