package knxnet

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Protocol is the host protocol code of a HostInfo block.
type Protocol uint8

// Host protocol codes.
const (
	ProtocolUDP Protocol = 0x01
	ProtocolTCP Protocol = 0x02
)

// String returns "udp", "tcp", or the numeric code.
func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	}
	return fmt.Sprintf("protocol(%d)", uint8(p))
}

// Valid reports whether p is UDP or TCP.
func (p Protocol) Valid() bool {
	return p == ProtocolUDP || p == ProtocolTCP
}

// HostInfoSize is the encoded size of a HostInfo block.
const HostInfoSize = 8

// HostInfo is the Host Protocol Address Information block: an IPv4
// endpoint plus its transport.
//
// Layout:
//
//	Byte 0:   structure length (always 8)
//	Byte 1:   protocol (1=UDP, 2=TCP)
//	Byte 2-5: IPv4 address
//	Byte 6-7: port
//
// HostInfo is comparable; == and Equal agree.
type HostInfo struct {
	Protocol Protocol
	Address  uint32
	Port     uint16
}

// DefaultHostInfo returns the UDP 0.0.0.0:0 block used when no endpoint is
// known (the "route back" endpoint in NAT mode).
func DefaultHostInfo() HostInfo {
	return HostInfo{Protocol: ProtocolUDP}
}

// NewHostInfo builds a HostInfo from a textual IPv4 address.
//
// Only dotted-quad IPv4 is accepted. IPv6 literals (including IPv4-mapped
// forms) and host names fail with ErrInvalidAddress.
//
// Parameters:
//   - proto: ProtocolUDP or ProtocolTCP
//   - addr: Dotted-quad address (e.g., "192.168.1.10")
//   - port: Transport port
//
// Returns:
//   - HostInfo: The endpoint block
//   - error: ErrInvalidAddress or ErrInvalidProtocol
func NewHostInfo(proto Protocol, addr string, port uint16) (HostInfo, error) {
	if !proto.Valid() {
		return HostInfo{}, fmt.Errorf("%w: %d", ErrInvalidProtocol, uint8(proto))
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil || !ip.Is4() {
		return HostInfo{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	a4 := ip.As4()
	return HostInfo{
		Protocol: proto,
		Address:  binary.BigEndian.Uint32(a4[:]),
		Port:     port,
	}, nil
}

// HostInfoFromUint32 builds a HostInfo from a numeric IPv4 address
// (0x01020304 is 1.2.3.4). No validation is performed.
func HostInfoFromUint32(proto Protocol, addr uint32, port uint16) HostInfo {
	return HostInfo{Protocol: proto, Address: addr, Port: port}
}

// HostInfoFromAddrPort builds a UDP or TCP HostInfo from a netip.AddrPort.
func HostInfoFromAddrPort(proto Protocol, ap netip.AddrPort) (HostInfo, error) {
	return NewHostInfo(proto, ap.Addr().Unmap().String(), ap.Port())
}

// IP returns the address as a netip.Addr.
func (h HostInfo) IP() netip.Addr {
	var a4 [4]byte
	binary.BigEndian.PutUint32(a4[:], h.Address)
	return netip.AddrFrom4(a4)
}

// AddrPort returns the endpoint as a netip.AddrPort.
func (h HostInfo) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(h.IP(), h.Port)
}

// Equal reports whether both blocks describe the same endpoint.
func (h HostInfo) Equal(o HostInfo) bool {
	return h == o
}

// String returns e.g. "udp://192.168.1.10:3671".
func (h HostInfo) String() string {
	return fmt.Sprintf("%s://%s", h.Protocol, h.AddrPort())
}

// Size returns HostInfoSize.
func (h HostInfo) Size() int {
	return HostInfoSize
}

// Encode returns the 8-byte wire form.
func (h HostInfo) Encode() []byte {
	buf, _ := region(nil, 0, HostInfoSize) //nolint:errcheck // owned regions cannot fail
	h.put(buf)
	return buf
}

// EncodeTo writes the block into dst at offset.
func (h HostInfo) EncodeTo(dst []byte, offset int) error {
	buf, err := borrow(dst, offset, HostInfoSize)
	if err != nil {
		return err
	}
	h.put(buf[offset:])
	return nil
}

// put writes the block into b, which must hold HostInfoSize bytes.
func (h HostInfo) put(b []byte) {
	b[0] = HostInfoSize
	b[1] = byte(h.Protocol)
	binary.BigEndian.PutUint32(b[2:6], h.Address)
	binary.BigEndian.PutUint16(b[6:8], h.Port)
}

// DecodeHostInfo reads a HostInfo block from b at offset.
//
// Returns:
//   - HostInfo: The decoded block
//   - error: ErrBufferTooSmall, ErrInvalidStructureLength or ErrInvalidProtocol
func DecodeHostInfo(b []byte, offset int) (HostInfo, error) {
	w, err := remaining(b, offset, HostInfoSize, "host info")
	if err != nil {
		return HostInfo{}, err
	}
	if w[0] != HostInfoSize {
		return HostInfo{}, fmt.Errorf("%w: host info declares %d, want %d",
			ErrInvalidStructureLength, w[0], HostInfoSize)
	}
	proto := Protocol(w[1])
	if !proto.Valid() {
		return HostInfo{}, fmt.Errorf("%w: %d", ErrInvalidProtocol, w[1])
	}
	return HostInfo{
		Protocol: proto,
		Address:  binary.BigEndian.Uint32(w[2:6]),
		Port:     binary.BigEndian.Uint16(w[6:8]),
	}, nil
}
