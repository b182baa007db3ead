package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/mqtt"
)

// Publisher is the subset of the MQTT client PublishSink needs.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// PublishSink publishes every frame as JSON on graylogic/knxnet/frame/{service}.
// Frames whose header did not parse go to graylogic/knxnet/frame/unknown.
type PublishSink struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewPublishSink creates a sink publishing through pub.
func NewPublishSink(pub Publisher) *PublishSink {
	return &PublishSink{pub: pub}
}

// HandleFrame implements Sink.
func (s *PublishSink) HandleFrame(_ context.Context, f Frame) error {
	if err := s.pub.PublishJSON(s.topics.Frame(f.ServiceName), f); err != nil {
		return fmt.Errorf("publishing frame %d: %w", f.Index, err)
	}
	return nil
}

// MetricsWriter is the subset of the InfluxDB client MetricsSink needs.
type MetricsWriter interface {
	WriteFrameMetric(m influxdb.FrameMetric)
}

// MetricsSink records one knxnet_frames point per frame.
type MetricsSink struct {
	w MetricsWriter
}

// NewMetricsSink creates a sink writing through w.
func NewMetricsSink(w MetricsWriter) *MetricsSink {
	return &MetricsSink{w: w}
}

// HandleFrame implements Sink. Writes are batched by the client and never fail here.
func (s *MetricsSink) HandleFrame(_ context.Context, f Frame) error {
	service := f.ServiceName
	if service == "" {
		service = "invalid"
	}

	m := influxdb.FrameMetric{
		Time:          f.Time,
		Source:        f.Source,
		Service:       service,
		TotalLength:   f.TotalLength,
		PayloadLength: f.PayloadLength,
		Failed:        !f.Valid(),
	}
	if f.Channel != nil {
		m.Channel = *f.Channel
		m.HasChannel = true
	}
	s.w.WriteFrameMetric(m)
	return nil
}

// Output formats for WriterSink.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// WriterSink prints frames to w, one per line, as Frame.String or as JSON.
type WriterSink struct {
	mu   sync.Mutex
	w    io.Writer
	enc  *json.Encoder
	json bool
}

// NewWriterSink creates a sink for w. format is FormatText or FormatJSON.
func NewWriterSink(w io.Writer, format string) (*WriterSink, error) {
	s := &WriterSink{w: w}
	switch format {
	case FormatText, "":
	case FormatJSON:
		s.json = true
		s.enc = json.NewEncoder(w)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return s, nil
}

// HandleFrame implements Sink.
func (s *WriterSink) HandleFrame(_ context.Context, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.json {
		return s.enc.Encode(f)
	}
	_, err := fmt.Fprintln(s.w, f.String())
	return err
}
