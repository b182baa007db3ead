package knxnet

import (
	"encoding/binary"
	"fmt"
)

// Packet header constants.
const (
	// HeaderSize is the length of the fixed packet header.
	HeaderSize = 6

	// ProtocolVersion is KNXnet/IP version 1.0.
	ProtocolVersion byte = 0x10

	// MaxTotalLength is the largest total length Encode will produce. The
	// field is 16 bits wide and the top value is reserved.
	MaxTotalLength = 0xFFFF - 1
)

// Packet is a framed datagram: the service identifier plus the raw payload
// that follows the header.
//
// A packet whose declared total length does not exceed the header has no
// payload; Payload is then nil and HasPayload reports false.
type Packet struct {
	Service ServiceID
	Payload []byte

	// DeclaredLength is the total length field as read from the header,
	// which may be below HeaderSize. Zero for packets built in memory.
	DeclaredLength uint16
}

// HasPayload reports whether any bytes follow the header.
func (p Packet) HasPayload() bool {
	return len(p.Payload) > 0
}

// Length returns the header plus payload length, the value Encode would
// write. It differs from DeclaredLength when the header declared less than
// HeaderSize.
func (p Packet) Length() int {
	return HeaderSize + len(p.Payload)
}

// String returns a short human-readable description.
func (p Packet) String() string {
	return fmt.Sprintf("Packet{Service:%s, Payload:%X}", p.Service, p.Payload)
}

// Message decodes the payload with the codec registered for Service.
func (p Packet) Message() (Message, error) {
	return decodeMessage(p.Service, p.Payload)
}

// DecodePacket validates the header and slices out the payload without
// interpreting it.
//
// Format:
//
//	Byte 0:   header length (6)
//	Byte 1:   protocol version (0x10)
//	Byte 2-3: service identifier
//	Byte 4-5: total length, header included
//	Byte 6+:  payload
//
// Payload aliases b; copy it if b will be reused.
//
// Returns:
//   - Packet: The framed service and payload
//   - error: ErrBufferTooSmall, ErrHeaderLengthMismatch or ErrHeaderVersionMismatch
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, errShort("packet header", HeaderSize, len(b))
	}
	if b[0] != HeaderSize {
		return Packet{}, fmt.Errorf("%w: got %d, want %d", ErrHeaderLengthMismatch, b[0], HeaderSize)
	}
	if b[1] != ProtocolVersion {
		return Packet{}, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrHeaderVersionMismatch, b[1], ProtocolVersion)
	}

	p := Packet{
		Service:        ServiceID(binary.BigEndian.Uint16(b[2:4])),
		DeclaredLength: binary.BigEndian.Uint16(b[4:6]),
	}
	total := int(p.DeclaredLength)
	if total <= HeaderSize {
		return p, nil
	}
	if total > len(b) {
		return Packet{}, fmt.Errorf("%w: total length %d exceeds %d-byte datagram",
			ErrBufferTooSmall, total, len(b))
	}
	p.Payload = b[HeaderSize:total]
	return p, nil
}

// Decode frames b and decodes its payload into the matching Message.
//
// Returns:
//   - Message: One of the concrete message types in this package
//   - error: Any DecodePacket error, *UnknownServiceError, or the message
//     codec's error
func Decode(b []byte) (Message, error) {
	p, err := DecodePacket(b)
	if err != nil {
		return nil, err
	}
	return p.Message()
}

// EncodePacket frames a raw payload under the given service identifier.
//
// Returns:
//   - []byte: Header followed by payload
//   - error: ErrLengthOverflow if the total would not fit the length field
func EncodePacket(service ServiceID, payload []byte) ([]byte, error) {
	total, err := totalLength(len(payload))
	if err != nil {
		return nil, err
	}
	buf, err := region(nil, 0, total)
	if err != nil {
		return nil, err
	}
	putHeader(buf, service, total)
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// Encode frames a message into a freshly allocated datagram.
func Encode(m Message) ([]byte, error) {
	total, err := totalLength(m.Size())
	if err != nil {
		return nil, err
	}
	buf := make([]byte, total)
	if _, err := EncodeTo(buf, 0, m); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeTo frames a message into dst at offset. dst is borrowed and must be
// non-nil; Encode allocates.
//
// Returns:
//   - int: Number of bytes written (the total length)
//   - error: ErrLengthOverflow or ErrBufferTooSmall; nothing is written on error
func EncodeTo(dst []byte, offset int, m Message) (int, error) {
	total, err := totalLength(m.Size())
	if err != nil {
		return 0, err
	}
	buf, err := borrow(dst, offset, total)
	if err != nil {
		return 0, err
	}
	putHeader(buf[offset:], m.Service(), total)
	if err := m.EncodeTo(buf, offset+HeaderSize); err != nil {
		return 0, err
	}
	return total, nil
}

// totalLength returns the header plus payload length, or ErrLengthOverflow.
func totalLength(payload int) (int, error) {
	total := HeaderSize + payload
	if total > MaxTotalLength {
		return 0, fmt.Errorf("%w: %d bytes, max %d", ErrLengthOverflow, total, MaxTotalLength)
	}
	return total, nil
}

// putHeader writes the 6-byte header into b.
func putHeader(b []byte, service ServiceID, total int) {
	b[0] = HeaderSize
	b[1] = ProtocolVersion
	binary.BigEndian.PutUint16(b[2:4], uint16(service))
	binary.BigEndian.PutUint16(b[4:6], uint16(total)) //nolint:gosec // bounded by MaxTotalLength
}
