// Package knxnet implements the KNXnet/IP tunnelling codec.
//
// It translates between raw datagram octets and the structured messages a
// KNX IP gateway and a tunnelling client exchange. Only framing and message
// encoding live here; sockets, channel allocation, retries and sequence
// bookkeeping belong to the caller.
//
// # Wire Layout
//
// Every packet starts with a fixed 6-octet header followed by a
// service-specific payload. Multi-byte integers are big-endian.
//
//	┌────────┬─────────┬────────────┬──────────────┬───────────────┐
//	│ hdrLen │ version │ service id │ total length │ payload ...   │
//	│  0x06  │  0x10   │  2 octets  │   2 octets   │ total-6 bytes │
//	└────────┴─────────┴────────────┴──────────────┴───────────────┘
//
// # Messages
//
// Seven services are understood:
//
//   - 0x0205 CONNECT_REQUEST
//   - 0x0206 CONNECT_RESPONSE
//   - 0x0207 CONNECTIONSTATE_REQUEST
//   - 0x0208 CONNECTIONSTATE_RESPONSE
//   - 0x0209 DISCONNECT_REQUEST
//   - 0x0420 TUNNELLING_REQUEST
//   - 0x0421 TUNNELLING_ACK
//
// Each message type implements Message. Decode dispatches on the service
// identifier and returns the concrete value; unknown identifiers fail with
// an *UnknownServiceError.
//
// Example:
//
//	req := knxnet.TunnelRequest{Channel: 1, SeqNumber: 9, Data: cemi}
//	datagram, err := knxnet.Encode(req)
//	if err != nil {
//	    return err
//	}
//
//	msg, err := knxnet.Decode(datagram)
//	if err != nil {
//	    return err
//	}
//	if tr, ok := msg.(knxnet.TunnelRequest); ok {
//	    fmt.Println(tr.SeqNumber) // 9
//	}
//
// # Buffers
//
// Encoders either allocate an exactly-sized slice (Encode) or write into a
// caller-supplied slice at an offset (EncodeTo). Writes never go past the
// end of a supplied slice; ErrBufferTooSmall is returned instead.
//
// # Thread Safety
//
// All functions are pure. Values are immutable once built and may be shared
// between goroutines. Concurrent EncodeTo calls on the same destination
// slice must be serialised by the caller.
package knxnet
