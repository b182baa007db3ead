// Package api implements the HTTP API and WebSocket feed for knxnetdump.
//
// This package provides:
//   - REST endpoints for recorded frames, channel activity and inspector stats
//   - An ad-hoc decode endpoint that turns a hex datagram into a frame summary
//   - A WebSocket hub broadcasting every inspected frame as it happens
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Architecture
//
// The Hub is registered as a capture.Sink, so frames reach WebSocket clients
// through the same fan-out as the recorder, MQTT and InfluxDB sinks. Read
// endpoints query the capture.FrameRecorder directly.
//
// # Graceful Degradation
//
// The recorder is optional. Without it the frame and channel endpoints
// answer 503 while health, stats, decode and the WebSocket feed still work.
package api
