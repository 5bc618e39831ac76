package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RijinRaju/healthcare-translation-backend/internal/audio"
	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/metrics"
	"github.com/RijinRaju/healthcare-translation-backend/internal/relay"
	"github.com/RijinRaju/healthcare-translation-backend/internal/repository"
	"github.com/RijinRaju/healthcare-translation-backend/internal/transcriber"
	"github.com/RijinRaju/healthcare-translation-backend/internal/translator"
	"github.com/RijinRaju/healthcare-translation-backend/internal/webhook"
)

var testMetrics = metrics.New()

type stubTranscriber struct{}

func (stubTranscriber) StartStreaming(ctx context.Context, sessionID, language string, receiver transcriber.ResultReceiver) (transcriber.StreamWriter, error) {
	return stubStreamWriter{}, nil
}

type stubStreamWriter struct{}

func (stubStreamWriter) Write(pcm []byte) error { return nil }
func (stubStreamWriter) Close() error           { return nil }

type stubTranslator struct{}

func (stubTranslator) Translate(ctx context.Context, req translator.Request) (string, error) {
	return req.Text, nil
}

type stubRepo struct{}

func (stubRepo) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	return &repository.Session{ID: input.SessionID}, nil
}
func (stubRepo) UpdateSessionCompleted(ctx context.Context, input repository.CompleteSessionInput) error {
	return nil
}
func (stubRepo) InsertSegment(ctx context.Context, input repository.InsertSegmentInput) error {
	return nil
}
func (stubRepo) InsertTranslation(ctx context.Context, input repository.InsertTranslationInput) error {
	return nil
}
func (stubRepo) ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]repository.TranscriptSegment, error) {
	return nil, nil
}
func (stubRepo) ListTranslationsBySessionID(ctx context.Context, sessionID string) ([]repository.Translation, error) {
	return nil, nil
}

type stubSender struct{}

func (stubSender) SendTranscript(ctx context.Context, payload webhook.TranscriptWebhookPayload) error {
	return nil
}

type stubDecoder struct{}

func (stubDecoder) Decode(frame []byte) ([]byte, error) { return frame, nil }
func (stubDecoder) Close()                              {}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := &config.Config{
		Env:                      "development",
		ListenAddr:               ":0",
		TranscriberProvider:      config.ProviderDeepgram,
		DeepgramAPIKey:           "test",
		DefaultSourceLanguage:    "en",
		SupportedTargetLanguages: []string{"es"},
		SampleRateHertz:          16000,
		SegmentBytes:             8192,
		BufferCapBytes:           1048576,
		RetryBaseDelay:           time.Millisecond,
		ConnectTimeout:           time.Second,
		TranslationTimeout:       time.Second,
		DrainTimeout:             time.Second,
		IdleTimeout:              time.Hour,
		MaxSessionDurationMin:    60,
	}
	manager := relay.NewManager(relay.ManagerDeps{
		Config:        cfg,
		Transcriber:   stubTranscriber{},
		Translator:    stubTranslator{},
		Repository:    stubRepo{},
		WebhookSender: stubSender{},
		Metrics:       testMetrics,
		DecoderFunc: func(encoding string) (audio.Decoder, error) {
			return stubDecoder{}, nil
		},
	})
	srv := New(cfg, manager)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestHealthz(t *testing.T) {
	_, ts := testServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Status         string `json:"status"`
		ActiveSessions int    `json:"active_sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if body.Status != "ok" || body.ActiveSessions != 0 {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := testServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestTranscribe_RequiresWebSocketUpgrade(t *testing.T) {
	_, ts := testServer(t)
	resp, err := http.Get(ts.URL + "/ws/transcribe")
	if err != nil {
		t.Fatalf("get transcribe: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for plain GET, got %d", resp.StatusCode)
	}
}

func TestTranscribe_RejectsBadConfigWithCloseCode(t *testing.T) {
	_, ts := testServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/transcribe"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"targetLanguages":["ko"]}`)); err != nil {
		t.Fatalf("write control: %v", err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error event: %v", err)
	}
	var ev struct {
		Type string `json:"type"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("parse event %s: %v", data, err)
	}
	if ev.Type != "error" || ev.Code != "configuration_error" {
		t.Fatalf("unexpected event %#v", ev)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, 4400) {
		t.Fatalf("expected close code 4400, got %v", err)
	}
}

func TestTranscribe_FullSessionRoundTrip(t *testing.T) {
	_, ts := testServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/transcribe"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"sourceLanguage":"en","targetLanguages":["es"]}`)); err != nil {
		t.Fatalf("write control: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 256)); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	// Client hangs up; the server must close its side cleanly.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}
