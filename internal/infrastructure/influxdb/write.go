package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementFrames   = "knxnet_frames"
	MeasurementSessions = "knxnet_sessions"
)

// FrameMetric is the telemetry recorded for one inspected datagram.
type FrameMetric struct {
	Time    time.Time
	Source  string
	Service string

	// Channel is omitted from the point when HasChannel is false.
	Channel    uint8
	HasChannel bool

	TotalLength   int
	PayloadLength int

	// Failed marks a datagram that did not decode.
	Failed bool
}

// WriteFrameMetric writes one point to knxnet_frames.
//
// Tags: source, service, outcome ("ok" or "error").
// Fields: count (always 1), total_length, payload_length, channel (if known).
//
// The write is non-blocking; nothing happens when the client is not connected.
func (c *Client) WriteFrameMetric(m FrameMetric) {
	outcome := "ok"
	if m.Failed {
		outcome = "error"
	}

	fields := map[string]any{
		"count":          1,
		"total_length":   m.TotalLength,
		"payload_length": m.PayloadLength,
	}
	if m.HasChannel {
		fields["channel"] = int(m.Channel)
	}

	ts := m.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	c.WritePointWithTime(MeasurementFrames,
		map[string]string{
			"source":  m.Source,
			"service": m.Service,
			"outcome": outcome,
		},
		fields,
		ts,
	)
}

// WriteSessionSummary writes the totals of a finished capture run.
func (c *Client) WriteSessionSummary(sessionID string, processed, failed uint64) {
	c.WritePoint(MeasurementSessions,
		map[string]string{"session_id": sessionID},
		map[string]any{
			"processed": int64(processed), //nolint:gosec // frame counts stay far below MaxInt64
			"failed":    int64(failed),    //nolint:gosec // frame counts stay far below MaxInt64
		},
	)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
