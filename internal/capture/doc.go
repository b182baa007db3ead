// Package capture turns raw KNXnet/IP datagrams into inspectable frames.
//
// The pipeline is:
//
//	hex capture (file, stdin, MQTT) → HexReader → Inspector → Sinks
//
// The Inspector decodes each datagram with package knxnet, stamps it with the
// session ID, a per-session index and the receive time, and hands the
// resulting Frame to every registered Sink. Datagrams that fail to decode
// still become Frames (with Error set) so malformed traffic is recorded
// rather than dropped.
//
// Sinks provided here:
//   - FrameRecorder: SQLite store (knxnet_frames, knxnet_channels)
//   - PublishSink: MQTT, one topic per service
//   - MetricsSink: InfluxDB knxnet_frames measurement
//   - WriterSink: text or JSON lines to an io.Writer (the CLI's stdout)
//
// # Capture Format
//
// One datagram per line, octets in hex. Whitespace, ':' and '-' between
// octets are ignored and '#' starts a comment:
//
//	# CONNECTIONSTATE_RESPONSE, channel 21
//	06 10 02 08 00 08 15 00
//	06:10:04:21:00:0a:04:15:09:00
//
// # Thread Safety
//
// Inspector and FrameRecorder are safe for concurrent use. Sinks must be too:
// MQTT deliveries call Inspector.HandleRaw from paho goroutines.
package capture
