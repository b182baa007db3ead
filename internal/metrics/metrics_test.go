package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/gray-logic-knxnet/internal/capture"
)

type fakeStats struct {
	stats capture.Stats
}

func (f *fakeStats) Stats() capture.Stats { return f.stats }

var (
	// TUNNELLING_ACK channel 21, seq 9.
	ackDatagram = []byte{0x06, 0x10, 0x04, 0x21, 0x00, 0x0A, 0x04, 0x15, 0x09, 0x00}

	// TUNNELLING_REQUEST channel 1 carrying an 11-byte cEMI frame.
	tunnelDatagram = []byte{
		0x06, 0x10, 0x04, 0x20, 0x00, 0x15,
		0x04, 0x01, 0x09, 0x00,
		0x11, 0x00, 0xBC, 0xE0, 0x11, 0x01, 0x0A, 0x03, 0x01, 0x00, 0x81,
	}
)

func TestHandleFrame(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	frames := []capture.Frame{
		capture.Summarise(ackDatagram),
		capture.Summarise(ackDatagram),
		capture.Summarise(tunnelDatagram),
		capture.Summarise([]byte{0x06, 0x10}),
		capture.Summarise([]byte{0x06, 0x10, 0x13, 0x37, 0x00, 0x06}),
		capture.Summarise([]byte{0x06, 0x10, 0xBE, 0xEF, 0x00, 0x06}),
	}
	for _, f := range frames {
		if err := m.HandleFrame(ctx, f); err != nil {
			t.Fatalf("HandleFrame() error: %v", err)
		}
	}

	tests := []struct {
		service string
		outcome string
		want    float64
	}{
		{"TUNNELLING_ACK", OutcomeDecoded, 2},
		{"TUNNELLING_REQUEST", OutcomeDecoded, 1},
		{"invalid", OutcomeFailed, 1},
		{"unknown", OutcomeFailed, 2},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.Frames.WithLabelValues(tt.service, tt.outcome))
		if got != tt.want {
			t.Errorf("frames{%s,%s} = %v, want %v", tt.service, tt.outcome, got, tt.want)
		}
	}

	if got := testutil.ToFloat64(m.ChannelsSeen); got != 2 {
		t.Errorf("channels_seen = %v, want 2", got)
	}
	// No per-identifier series for unregistered services.
	if got := testutil.CollectAndCount(m.Frames); got != 4 {
		t.Errorf("frame series = %d, want 4", got)
	}
	if got := testutil.CollectAndCount(m.FrameSize); got != 1 {
		t.Errorf("frame size collectors = %d, want 1", got)
	}
}

func TestStatsCounters(t *testing.T) {
	src := &fakeStats{stats: capture.Stats{InvalidLines: 3, SinkErrors: 7}}
	m := New(src)

	body := scrape(t, m)
	for _, want := range []string{
		"knxnet_invalid_lines_total 3",
		"knxnet_sink_errors_total 7",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}

	src.stats.InvalidLines = 4
	if body := scrape(t, m); !strings.Contains(body, "knxnet_invalid_lines_total 4") {
		t.Error("invalid_lines_total did not follow the source")
	}
}

func TestStatsCounters_NilSource(t *testing.T) {
	body := scrape(t, New(nil))
	if strings.Contains(body, "knxnet_invalid_lines_total") {
		t.Error("invalid_lines_total exported without a stats source")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := New(nil)
	m.RecordHTTPRequest(http.MethodGet, "/api/v1/frames", http.StatusOK, 0.01)
	m.RecordHTTPRequest(http.MethodGet, "/api/v1/frames", http.StatusOK, 0.02)
	m.RecordHTTPRequest(http.MethodPost, "/api/v1/decode", http.StatusBadRequest, 0.001)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v1/frames", "200")); got != 2 {
		t.Errorf("GET frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/v1/decode", "400")); got != 1 {
		t.Errorf("POST decode = %v, want 1", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New(nil)
	b := New(nil)
	a.HandleFrame(context.Background(), capture.Summarise(ackDatagram)) //nolint:errcheck // never fails

	if got := testutil.ToFloat64(b.Frames.WithLabelValues("TUNNELLING_ACK", OutcomeDecoded)); got != 0 {
		t.Errorf("second registry frames = %v, want 0", got)
	}
	if a.Registry() == b.Registry() {
		t.Error("registries are shared")
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("reading scrape: %v", err)
	}
	return string(body)
}
