package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger interface for optional logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Sink receives every frame the Inspector produces.
// Implementations must be safe for concurrent use.
type Sink interface {
	HandleFrame(ctx context.Context, f Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f Frame) error

// HandleFrame calls fn.
func (fn SinkFunc) HandleFrame(ctx context.Context, f Frame) error {
	return fn(ctx, f)
}

type namedSink struct {
	name string
	sink Sink
}

// Stats counts what an Inspector has seen.
type Stats struct {
	SessionID string `json:"session_id"`

	// Processed counts datagrams turned into frames, valid or not.
	Processed uint64 `json:"processed"`

	// Failed counts frames whose datagram did not decode.
	Failed uint64 `json:"failed"`

	// InvalidLines counts capture lines that were not hex.
	InvalidLines uint64 `json:"invalid_lines"`

	// SinkErrors counts sink deliveries that returned an error.
	SinkErrors uint64 `json:"sink_errors"`

	// ByService counts frames per service name; undecodable headers are
	// counted under "invalid".
	ByService map[string]uint64 `json:"by_service"`
}

// Inspector decodes datagrams and fans the resulting frames out to sinks.
//
// Thread Safety: All methods are safe for concurrent use. Frames are
// delivered to sinks in index order per caller, but concurrent callers
// interleave.
type Inspector struct {
	sessionID string
	now       func() time.Time

	sinks  []namedSink
	sinkMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	mu    sync.Mutex
	next  uint64
	stats Stats
}

// NewInspector creates an inspector for one capture session.
// An empty sessionID is replaced with a random UUID.
func NewInspector(sessionID string) *Inspector {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Inspector{
		sessionID: sessionID,
		now:       time.Now,
		stats: Stats{
			SessionID: sessionID,
			ByService: make(map[string]uint64),
		},
	}
}

// SessionID returns the identifier stamped on every frame.
func (i *Inspector) SessionID() string {
	return i.sessionID
}

// SetLogger sets the logger for sink failures and invalid lines.
func (i *Inspector) SetLogger(logger Logger) {
	i.loggerMu.Lock()
	i.logger = logger
	i.loggerMu.Unlock()
}

// AddSink registers a sink under name (used in logs). Sinks receive frames
// in registration order.
func (i *Inspector) AddSink(name string, s Sink) {
	i.sinkMu.Lock()
	i.sinks = append(i.sinks, namedSink{name: name, sink: s})
	i.sinkMu.Unlock()
}

// HandleRaw inspects one datagram received from source and delivers the
// frame to all sinks. Sink errors are logged and counted, never returned.
func (i *Inspector) HandleRaw(ctx context.Context, source string, raw []byte) Frame {
	f := Summarise(raw)
	f.SessionID = i.sessionID
	f.Source = source

	i.mu.Lock()
	i.next++
	f.Index = i.next
	f.Time = i.now().UTC()
	i.stats.Processed++
	if !f.Valid() {
		i.stats.Failed++
	}
	key := "invalid"
	if f.HasHeader() {
		key = f.ServiceName
	}
	i.stats.ByService[key]++
	i.mu.Unlock()

	if !f.Valid() {
		i.debug("datagram did not decode", "source", source, "index", f.Index, "error", f.Error)
	}

	i.deliver(ctx, f)
	return f
}

// HandleHex parses a single capture line received on its own, such as an
// MQTT message, and inspects it. Blank or comment-only input returns
// ok=false and no error. A malformed line is counted in InvalidLines and
// returned as an error wrapping ErrInvalidHexLine.
func (i *Inspector) HandleHex(ctx context.Context, source, line string) (Frame, bool, error) {
	raw, err := ParseHex(line)
	if err != nil {
		i.mu.Lock()
		i.stats.InvalidLines++
		i.mu.Unlock()
		return Frame{}, false, fmt.Errorf("%w: %s: %w", ErrInvalidHexLine, source, err)
	}
	if raw == nil {
		return Frame{}, false, nil
	}
	return i.HandleRaw(ctx, source, raw), true, nil
}

// Run inspects every datagram r yields until EOF or ctx is cancelled.
// Malformed lines are logged, counted and skipped.
//
// Returns:
//   - error: nil at EOF, ctx.Err() on cancellation, or a read error
func (i *Inspector) Run(ctx context.Context, source string, r *HexReader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, line, err := r.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ErrInvalidHexLine):
			i.mu.Lock()
			i.stats.InvalidLines++
			i.mu.Unlock()
			i.warn("skipping capture line", "source", source, "line", line, "error", err)
			continue
		case err != nil:
			return err
		}

		i.HandleRaw(ctx, source, raw)
	}
}

// Stats returns a snapshot of the counters.
func (i *Inspector) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()

	s := i.stats
	s.ByService = make(map[string]uint64, len(i.stats.ByService))
	for k, v := range i.stats.ByService {
		s.ByService[k] = v
	}
	return s
}

func (i *Inspector) deliver(ctx context.Context, f Frame) {
	i.sinkMu.RLock()
	sinks := i.sinks
	i.sinkMu.RUnlock()

	for _, s := range sinks {
		if err := s.sink.HandleFrame(ctx, f); err != nil {
			i.mu.Lock()
			i.stats.SinkErrors++
			i.mu.Unlock()
			i.logError("sink failed", "sink", s.name, "index", f.Index, "error", err)
		}
	}
}

func (i *Inspector) getLogger() Logger {
	i.loggerMu.RLock()
	defer i.loggerMu.RUnlock()
	return i.logger
}

func (i *Inspector) debug(msg string, kv ...any) {
	if l := i.getLogger(); l != nil {
		l.Debug(msg, kv...)
	}
}

func (i *Inspector) warn(msg string, kv ...any) {
	if l := i.getLogger(); l != nil {
		l.Warn(msg, kv...)
	}
}

func (i *Inspector) logError(msg string, kv ...any) {
	if l := i.getLogger(); l != nil {
		l.Error(msg, kv...)
	}
}
