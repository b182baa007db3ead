package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-knxnet/internal/capture"
)

// decodeSource labels frames submitted through POST /decode?record=true.
const decodeSource = "api"

// handleListFrames returns the most recent recorded frames, newest first.
func (s *Server) handleListFrames(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeUnavailable(w, "frame store is disabled")
		return
	}

	limit, err := s.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	frames, err := s.recorder.RecentFrames(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list frames", "error", err)
		writeInternalError(w, "failed to list frames")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"frames": frames, "count": len(frames)})
}

// handleListChannels returns per-channel activity.
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeUnavailable(w, "frame store is disabled")
		return
	}

	channels, err := s.recorder.Channels(r.Context())
	if err != nil {
		s.logger.Error("failed to list channels", "error", err)
		writeInternalError(w, "failed to list channels")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels, "count": len(channels)})
}

// handleChannelFrames returns the recent frames of one channel.
func (s *Server) handleChannelFrames(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeUnavailable(w, "frame store is disabled")
		return
	}

	channel, err := strconv.ParseUint(chi.URLParam(r, "channel"), 10, 8)
	if err != nil {
		writeBadRequest(w, "channel must be an integer between 0 and 255")
		return
	}
	limit, err := s.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	frames, err := s.recorder.ChannelFrames(r.Context(), uint8(channel), limit)
	if err != nil {
		s.logger.Error("failed to list channel frames", "channel", channel, "error", err)
		writeInternalError(w, "failed to list channel frames")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"frames": frames, "count": len(frames)})
}

// decodeRequest is the JSON form of a POST /decode body.
type decodeRequest struct {
	Raw capture.HexBytes `json:"raw"`
}

// handleDecode summarises the hex datagram in the request body.
//
// The body is one capture line (e.g. "06 10 04 21 00 0A 04 01 02 00"), or
// with Content-Type application/json an object {"raw": "<capture line>"}.
// With ?record=true the datagram goes through the inspector, so it is also
// stored, published and broadcast like any captured frame. A datagram that
// does not decode is still a 200: the frame's error field says why.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "failed to read request body")
		return
	}

	var raw []byte
	if isJSON(r) {
		var req decodeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeBadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
		raw = req.Raw
	} else {
		raw, err = capture.ParseHex(strings.TrimSpace(string(body)))
		if err != nil {
			writeBadRequest(w, "invalid hex: "+err.Error())
			return
		}
	}
	if len(raw) == 0 {
		writeBadRequest(w, "request body holds no datagram")
		return
	}

	if r.URL.Query().Get("record") == "true" {
		writeJSON(w, http.StatusOK, s.inspector.HandleRaw(r.Context(), decodeSource, raw))
		return
	}
	writeJSON(w, http.StatusOK, capture.Summarise(raw))
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// parseLimit parses the limit query parameter. Empty means the configured
// default; values above capture.MaxFrameLimit are rejected.
func (s *Server) parseLimit(raw string) (int, error) {
	if raw == "" {
		return s.recentLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > capture.MaxFrameLimit {
		return 0, fmt.Errorf("limit exceeds maximum of %d", capture.MaxFrameLimit)
	}
	return limit, nil
}
