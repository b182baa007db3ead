package capture

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Query limits for RecentFrames and ChannelFrames.
const (
	DefaultFrameLimit = 100
	MaxFrameLimit     = 1000
)

// ChannelActivity summarises the traffic seen on one communication channel.
type ChannelActivity struct {
	Channel    uint8     `json:"channel"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	FrameCount int64     `json:"frame_count"`
	LastSeq    *uint8    `json:"last_seq,omitempty"`
	LastStatus *uint8    `json:"last_status,omitempty"`
}

// FrameRecorder stores frames in the knxnet_frames table and keeps
// per-channel activity in knxnet_channels.
//
// Timestamps are stored as Unix milliseconds.
//
// Thread Safety: All methods are safe for concurrent use.
type FrameRecorder struct {
	db     *sql.DB
	logger Logger

	frameStmt   *sql.Stmt
	channelStmt *sql.Stmt
	stmtMu      sync.Mutex
}

// NewFrameRecorder creates a recorder. The database must already carry the
// capture schema (see package migrations).
func NewFrameRecorder(db *sql.DB) *FrameRecorder {
	return &FrameRecorder{db: db}
}

// SetLogger sets the logger for the recorder.
func (r *FrameRecorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start prepares the insert statements. Must be called before RecordFrame.
// Calling Start on a started recorder is a no-op.
func (r *FrameRecorder) Start() error {
	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.frameStmt != nil {
		return nil
	}

	frameStmt, err := r.db.Prepare(`
		INSERT INTO knxnet_frames (
			session_id, seq, received_at, source, raw,
			service, service_name, channel, seq_number, status,
			payload_length, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing frame insert statement: %w", err)
	}

	channelStmt, err := r.db.Prepare(`
		INSERT INTO knxnet_channels (channel, first_seen, last_seen, frame_count, last_seq, last_status)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(channel) DO UPDATE SET
			last_seen = excluded.last_seen,
			frame_count = frame_count + 1,
			last_seq = COALESCE(excluded.last_seq, last_seq),
			last_status = COALESCE(excluded.last_status, last_status)
	`)
	if err != nil {
		frameStmt.Close()
		return fmt.Errorf("preparing channel upsert statement: %w", err)
	}

	r.frameStmt = frameStmt
	r.channelStmt = channelStmt
	r.log("frame recorder started")
	return nil
}

// Stop releases the prepared statements. Safe to call more than once.
func (r *FrameRecorder) Stop() {
	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.frameStmt == nil {
		return
	}
	r.frameStmt.Close()
	r.channelStmt.Close()
	r.frameStmt = nil
	r.channelStmt = nil
	r.log("frame recorder stopped")
}

// HandleFrame implements Sink.
func (r *FrameRecorder) HandleFrame(ctx context.Context, f Frame) error {
	return r.RecordFrame(ctx, f)
}

// RecordFrame stores f and, when it carries a channel, updates that
// channel's activity in the same transaction.
func (r *FrameRecorder) RecordFrame(ctx context.Context, f Frame) error {
	r.stmtMu.Lock()
	frameStmt := r.frameStmt
	channelStmt := r.channelStmt
	r.stmtMu.Unlock()

	if frameStmt == nil {
		return ErrRecorderNotStarted
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting frame transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var service any
	if f.HasHeader() {
		service = int(f.Service)
	}
	received := f.Time.UnixMilli()

	if _, err := tx.StmtContext(ctx, frameStmt).ExecContext(ctx,
		f.SessionID, int64(f.Index), received, f.Source, []byte(f.Raw), //nolint:gosec // index fits int64
		service, f.ServiceName, nullUint8(f.Channel), nullUint8(f.SeqNumber), nullUint8(f.Status),
		f.PayloadLength, f.Error,
	); err != nil {
		return fmt.Errorf("inserting frame: %w", err)
	}

	if f.Channel != nil {
		if _, err := tx.StmtContext(ctx, channelStmt).ExecContext(ctx,
			int(*f.Channel), received, received, nullUint8(f.SeqNumber), nullUint8(f.Status),
		); err != nil {
			return fmt.Errorf("updating channel %d: %w", *f.Channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing frame: %w", err)
	}
	return nil
}

// RecentFrames returns up to limit frames, newest first. A limit outside
// 1..MaxFrameLimit is clamped (0 means DefaultFrameLimit).
func (r *FrameRecorder) RecentFrames(ctx context.Context, limit int) ([]Frame, error) {
	return r.queryFrames(ctx, `
		SELECT session_id, seq, received_at, source, raw FROM knxnet_frames
		ORDER BY id DESC LIMIT ?
	`, clampLimit(limit))
}

// ChannelFrames returns up to limit frames for one channel, newest first.
func (r *FrameRecorder) ChannelFrames(ctx context.Context, channel uint8, limit int) ([]Frame, error) {
	return r.queryFrames(ctx, `
		SELECT session_id, seq, received_at, source, raw FROM knxnet_frames
		WHERE channel = ?
		ORDER BY id DESC LIMIT ?
	`, int(channel), clampLimit(limit))
}

// queryFrames rebuilds frames from their stored raw bytes.
func (r *FrameRecorder) queryFrames(ctx context.Context, query string, args ...any) ([]Frame, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying frames: %w", err)
	}
	defer rows.Close()

	frames := []Frame{}
	for rows.Next() {
		var (
			sessionID, source string
			index, received   int64
			raw               []byte
		)
		if err := rows.Scan(&sessionID, &index, &received, &source, &raw); err != nil {
			return nil, fmt.Errorf("scanning frame row: %w", err)
		}

		f := Summarise(raw)
		f.SessionID = sessionID
		f.Index = uint64(index) //nolint:gosec // written from a uint64
		f.Time = time.UnixMilli(received).UTC()
		f.Source = source
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating frames: %w", err)
	}
	return frames, nil
}

// Channels returns the activity of every channel seen, ordered by channel.
func (r *FrameRecorder) Channels(ctx context.Context) ([]ChannelActivity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT channel, first_seen, last_seen, frame_count, last_seq, last_status
		FROM knxnet_channels ORDER BY channel
	`)
	if err != nil {
		return nil, fmt.Errorf("querying channels: %w", err)
	}
	defer rows.Close()

	channels := []ChannelActivity{}
	for rows.Next() {
		var (
			a                   ChannelActivity
			channel             int
			first, last         int64
			lastSeq, lastStatus sql.NullInt64
		)
		if err := rows.Scan(&channel, &first, &last, &a.FrameCount, &lastSeq, &lastStatus); err != nil {
			return nil, fmt.Errorf("scanning channel row: %w", err)
		}
		a.Channel = uint8(channel) //nolint:gosec // column only holds channel ids
		a.FirstSeen = time.UnixMilli(first).UTC()
		a.LastSeen = time.UnixMilli(last).UTC()
		a.LastSeq = fromNull(lastSeq)
		a.LastStatus = fromNull(lastStatus)
		channels = append(channels, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating channels: %w", err)
	}
	return channels, nil
}

// FrameCount returns the number of stored frames.
func (r *FrameRecorder) FrameCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knxnet_frames").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting frames: %w", err)
	}
	return n, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultFrameLimit
	case limit > MaxFrameLimit:
		return MaxFrameLimit
	default:
		return limit
	}
}

func nullUint8(v *uint8) any {
	if v == nil {
		return nil
	}
	return int(*v)
}

func fromNull(v sql.NullInt64) *uint8 {
	if !v.Valid {
		return nil
	}
	return ptr(uint8(v.Int64)) //nolint:gosec // column only holds octets
}

func (r *FrameRecorder) log(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keysAndValues...)
	}
}
