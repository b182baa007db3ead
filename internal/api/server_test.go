package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-knxnet/internal/capture"
	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-knxnet/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-knxnet/internal/metrics"
	"github.com/nerrad567/gray-logic-knxnet/migrations"
)

const (
	tunnelAckHex     = "06 10 04 21 00 0A 04 15 09 00"
	tunnelRequestHex = "06 10 04 20 00 15 04 15 0A 00 11 00 BC E0 11 01 0A 03 01 00 81"
)

type stubCheck struct{ err error }

func (c stubCheck) HealthCheck(context.Context) error { return c.err }

type testEnv struct {
	srv       *Server
	router    http.Handler
	inspector *capture.Inspector
	recorder  *capture.FrameRecorder
}

// testServer creates a Server backed by an in-memory capture store with the
// recorder and hub registered as inspector sinks.
func testServer(t *testing.T, checks map[string]HealthChecker) *testEnv {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	recorder := capture.NewFrameRecorder(db.DB)
	if err := recorder.Start(); err != nil {
		t.Fatalf("recorder Start: %v", err)
	}
	t.Cleanup(recorder.Stop)

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

	hub := NewHub(wsCfg, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	inspector := capture.NewInspector("test-session")
	inspector.AddSink("recorder", recorder)
	inspector.AddSink("websocket", hub)
	m := metrics.New(inspector)
	inspector.AddSink("metrics", m)

	srv, err := New(Deps{
		Config:      config.APIConfig{Host: "127.0.0.1", Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}},
		WS:          wsCfg,
		Logger:      log,
		Inspector:   inspector,
		Recorder:    recorder,
		RecentLimit: 100,
		Checks:      checks,
		Hub:         hub,
		Metrics:     m,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{srv: srv, router: srv.buildRouter(), inspector: inspector, recorder: recorder}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v (body %q)", err, w.Body.String())
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Inspector: capture.NewInspector("")}); err == nil {
		t.Error("New() without logger expected error")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without inspector expected error")
	}
}

func TestHealth(t *testing.T) {
	env := testServer(t, map[string]HealthChecker{"database": stubCheck{}})

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body struct {
		Status     string            `json:"status"`
		Version    string            `json:"version"`
		SessionID  string            `json:"session_id"`
		Components map[string]string `json:"components"`
	}
	decodeBody(t, w, &body)
	if body.Status != "ok" || body.Version != "test" || body.SessionID != "test-session" {
		t.Errorf("body = %+v", body)
	}
	if body.Components["database"] != "ok" {
		t.Errorf("components = %v", body.Components)
	}
}

func TestHealth_Degraded(t *testing.T) {
	env := testServer(t, map[string]HealthChecker{
		"database": stubCheck{},
		"mqtt":     stubCheck{err: errors.New("mqtt: not connected")},
	})

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decodeBody(t, w, &body)
	if body.Status != "degraded" || body.Components["mqtt"] != "mqtt: not connected" {
		t.Errorf("body = %+v", body)
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("X-Request-ID = %q, want client value", got)
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var e Error
	decodeBody(t, w, &e)
	if e.Code != ErrCodeNotFound || e.Status != http.StatusNotFound {
		t.Errorf("error = %+v", e)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := testServer(t, nil)
	handler := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestDecode(t *testing.T) {
	env := testServer(t, nil)

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantService string
		wantError   bool
	}{
		{name: "tunnelling ack", body: tunnelAckHex, wantStatus: http.StatusOK, wantService: "TUNNELLING_ACK"},
		{name: "compact with newline", body: "06100421000A04150900\n", wantStatus: http.StatusOK, wantService: "TUNNELLING_ACK"},
		{name: "unknown service still decodes header", body: "06 10 13 37 00 06", wantStatus: http.StatusOK, wantService: "0x1337", wantError: true},
		{name: "odd digits", body: "061", wantStatus: http.StatusBadRequest},
		{name: "empty", body: "   ", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/decode", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				var e Error
				decodeBody(t, w, &e)
				if e.Code != ErrCodeBadRequest {
					t.Errorf("code = %q", e.Code)
				}
				return
			}
			var f capture.Frame
			decodeBody(t, w, &f)
			if f.ServiceName != tt.wantService {
				t.Errorf("service_name = %q, want %q", f.ServiceName, tt.wantService)
			}
			if (f.Error != "") != tt.wantError {
				t.Errorf("error = %q, want error=%v", f.Error, tt.wantError)
			}
		})
	}

	if n, _ := env.recorder.FrameCount(context.Background()); n != 0 {
		t.Errorf("plain decode recorded %d frames, want 0", n)
	}
}

func TestDecode_JSONBody(t *testing.T) {
	env := testServer(t, nil)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantService string
	}{
		{name: "raw field", contentType: "application/json", body: `{"raw": "06 10 04 21 00 0A 04 15 09 00"}`, wantStatus: http.StatusOK, wantService: "TUNNELLING_ACK"},
		{name: "charset parameter", contentType: "application/json; charset=utf-8", body: `{"raw": "06100421000A04150900"}`, wantStatus: http.StatusOK, wantService: "TUNNELLING_ACK"},
		{name: "raw field bad hex", contentType: "application/json", body: `{"raw": "061"}`, wantStatus: http.StatusBadRequest},
		{name: "raw field missing", contentType: "application/json", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "malformed JSON", contentType: "application/json", body: `{"raw":`, wantStatus: http.StatusBadRequest},
		{name: "JSON sent as text", contentType: "text/plain", body: `{"raw": "06 10"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/decode", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var f capture.Frame
			decodeBody(t, w, &f)
			if f.ServiceName != tt.wantService {
				t.Errorf("service_name = %q, want %q", f.ServiceName, tt.wantService)
			}
		})
	}
}

func TestDecode_RecordAndList(t *testing.T) {
	env := testServer(t, nil)

	for _, body := range []string{tunnelRequestHex, tunnelAckHex} {
		w := env.do(t, http.MethodPost, "/api/v1/decode?record=true", body)
		if w.Code != http.StatusOK {
			t.Fatalf("record status = %d (body %s)", w.Code, w.Body.String())
		}
	}

	w := env.do(t, http.MethodGet, "/api/v1/frames", "")
	if w.Code != http.StatusOK {
		t.Fatalf("frames status = %d", w.Code)
	}
	var frames struct {
		Frames []capture.Frame `json:"frames"`
		Count  int             `json:"count"`
	}
	decodeBody(t, w, &frames)
	if frames.Count != 2 || frames.Frames[0].ServiceName != "TUNNELLING_ACK" {
		t.Fatalf("frames = %+v", frames)
	}
	if frames.Frames[0].Source != decodeSource || frames.Frames[0].SessionID != "test-session" {
		t.Errorf("frame metadata = %+v", frames.Frames[0])
	}

	w = env.do(t, http.MethodGet, "/api/v1/frames?limit=1", "")
	decodeBody(t, w, &frames)
	if frames.Count != 1 {
		t.Errorf("limit=1 count = %d", frames.Count)
	}

	w = env.do(t, http.MethodGet, "/api/v1/channels", "")
	var channels struct {
		Channels []capture.ChannelActivity `json:"channels"`
		Count    int                       `json:"count"`
	}
	decodeBody(t, w, &channels)
	if channels.Count != 1 || channels.Channels[0].Channel != 0x15 || channels.Channels[0].FrameCount != 2 {
		t.Errorf("channels = %+v", channels)
	}

	w = env.do(t, http.MethodGet, "/api/v1/channels/21/frames", "")
	decodeBody(t, w, &frames)
	if frames.Count != 2 {
		t.Errorf("channel 21 frames = %d, want 2", frames.Count)
	}

	w = env.do(t, http.MethodGet, "/api/v1/stats", "")
	var stats capture.Stats
	decodeBody(t, w, &stats)
	if stats.Processed != 2 || stats.ByService["TUNNELLING_REQUEST"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestFrames_BadParams(t *testing.T) {
	env := testServer(t, nil)

	paths := []string{
		"/api/v1/frames?limit=abc",
		"/api/v1/frames?limit=0",
		"/api/v1/frames?limit=100000",
		"/api/v1/channels/256/frames",
		"/api/v1/channels/x/frames",
	}
	for _, p := range paths {
		if w := env.do(t, http.MethodGet, p, ""); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", p, w.Code)
		}
	}
}

func TestFrames_NoRecorder(t *testing.T) {
	srv, err := New(Deps{Logger: logging.Discard(), Inspector: capture.NewInspector("")})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	router := srv.buildRouter()

	for _, p := range []string{"/api/v1/frames", "/api/v1/channels", "/api/v1/channels/1/frames"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", p, w.Code)
		}
	}
}

func TestServer_CloseBeforeStart(t *testing.T) {
	srv, err := New(Deps{Logger: logging.Discard(), Inspector: capture.NewInspector("")})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start expected error")
	}
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	return msg
}

func TestWebSocket_FrameFeed(t *testing.T) {
	env := testServer(t, nil)
	ws := dialWS(t, env)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{EventFrameDecoded, EventFrameFailed}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if resp := readWS(t, ws); resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	raw, _ := capture.ParseHex(tunnelAckHex)
	env.inspector.HandleRaw(context.Background(), "test", raw)

	event := readWS(t, ws)
	if event.Type != WSTypeEvent || event.EventType != EventFrameDecoded {
		t.Fatalf("event = %+v", event)
	}
	payload, ok := event.Payload.(map[string]any)
	if !ok || payload["service_name"] != "TUNNELLING_ACK" {
		t.Errorf("payload = %v", event.Payload)
	}

	env.inspector.HandleRaw(context.Background(), "test", []byte{0x06})
	if event := readWS(t, ws); event.EventType != EventFrameFailed {
		t.Errorf("event type = %q, want %q", event.EventType, EventFrameFailed)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	env := testServer(t, nil)
	ws := dialWS(t, env)

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if resp := readWS(t, ws); resp.Type != WSTypePong || resp.ID != "p1" {
		t.Errorf("ping response = %+v", resp)
	}

	if err := ws.WriteJSON(WSMessage{Type: "bogus", ID: "b1"}); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	if resp := readWS(t, ws); resp.Type != WSTypeError {
		t.Errorf("bogus response = %+v", resp)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write invalid json: %v", err)
	}
	if resp := readWS(t, ws); resp.Type != WSTypeError {
		t.Errorf("invalid JSON response = %+v", resp)
	}
}

func TestHub_UnsubscribedClientGetsNothing(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{},
	}
	hub.Register(client)

	hub.Broadcast(EventFrameDecoded, map[string]any{"index": 1})
	select {
	case msg := <-client.send:
		t.Errorf("unsubscribed client received %s", msg)
	default:
	}

	client.subscriptions[EventFrameDecoded] = struct{}{}
	hub.Broadcast(EventFrameDecoded, map[string]any{"index": 2})
	select {
	case <-client.send:
	default:
		t.Error("subscribed client received nothing")
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d", hub.ClientCount())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := testServer(t, nil)

	if w := env.do(t, http.MethodPost, "/api/v1/decode?record=true", tunnelAckHex); w.Code != http.StatusOK {
		t.Fatalf("decode status = %d", w.Code)
	}
	env.do(t, http.MethodGet, "/api/v1/channels/21/frames", "")
	env.do(t, http.MethodGet, "/api/v1/channels/22/frames", "")

	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`knxnet_frames_total{outcome="decoded",service="TUNNELLING_ACK"} 1`,
		`knxnet_http_requests_total{method="GET",route="/api/v1/channels/{channel}/frames",status="200"} 2`,
		`knxnet_http_requests_total{method="POST",route="/api/v1/decode",status="200"} 1`,
		"knxnet_channels_seen 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
