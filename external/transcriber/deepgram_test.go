package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RijinRaju/healthcare-translation-backend/internal/transcriber"
)

type collectingReceiver struct {
	mu      sync.Mutex
	results []transcriber.Result
	errs    []error
}

func (r *collectingReceiver) OnResult(res transcriber.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *collectingReceiver) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *collectingReceiver) snapshot() []transcriber.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]transcriber.Result, len(r.results))
	copy(out, r.results)
	return out
}

func waitForResults(t *testing.T, r *collectingReceiver, n int) []transcriber.Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d results, have %d", n, len(r.snapshot()))
	return nil
}

// fakeDeepgram runs a live API lookalike on an httptest server.
type fakeDeepgram struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu          sync.Mutex
	gotAuth     string
	gotQuery    map[string]string
	gotAudio    [][]byte
	gotCloseCmd bool
	conn        *websocket.Conn
}

func (f *fakeDeepgram) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.gotAuth = r.Header.Get("Authorization")
	f.gotQuery = map[string]string{}
	for k := range r.URL.Query() {
		f.gotQuery[k] = r.URL.Query().Get(k)
	}
	f.mu.Unlock()

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.t.Errorf("upgrade: %v", err)
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			f.mu.Lock()
			f.gotAudio = append(f.gotAudio, data)
			f.mu.Unlock()
		case websocket.TextMessage:
			var cmd struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(data, &cmd) == nil && cmd.Type == "CloseStream" {
				f.mu.Lock()
				f.gotCloseCmd = true
				f.mu.Unlock()
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}
		}
	}
}

func (f *fakeDeepgram) awaitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()
		if conn != nil {
			return conn
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no upstream connection")
	return nil
}

func (f *fakeDeepgram) sendResults(t *testing.T, text string, isFinal bool) {
	t.Helper()
	conn := f.awaitConn(t)
	msg := map[string]any{
		"type":     "Results",
		"is_final": isFinal,
		"start":    1.5,
		"duration": 0.5,
		"channel": map[string]any{
			"alternatives": []map[string]any{{"transcript": text}},
		},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("send results: %v", err)
	}
}

func startFakeDeepgram(t *testing.T) (*fakeDeepgram, string) {
	t.Helper()
	f := &fakeDeepgram{t: t}
	server := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(server.Close)
	return f, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestStartStreaming_AuthAndQuery(t *testing.T) {
	fake, endpoint := startFakeDeepgram(t)
	tr := NewDeepgramTranscriber(DeepgramConfig{
		APIKey:          "dg-secret",
		Endpoint:        endpoint,
		Model:           "nova-2-medical",
		SampleRateHertz: 16000,
	})
	stream, err := tr.StartStreaming(context.Background(), "session-1", "en", &collectingReceiver{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.gotAuth != "Token dg-secret" {
		t.Fatalf("unexpected auth header %q", fake.gotAuth)
	}
	want := map[string]string{
		"model":           "nova-2-medical",
		"language":        "en",
		"encoding":        "linear16",
		"sample_rate":     "16000",
		"channels":        "1",
		"interim_results": "true",
		"punctuate":       "true",
		"smart_format":    "true",
		"endpointing":     "300",
	}
	for k, v := range want {
		if fake.gotQuery[k] != v {
			t.Fatalf("query %s = %q, want %q", k, fake.gotQuery[k], v)
		}
	}
}

func TestStream_ForwardsAudioAndResults(t *testing.T) {
	fake, endpoint := startFakeDeepgram(t)
	tr := NewDeepgramTranscriber(DeepgramConfig{
		APIKey:          "k",
		Endpoint:        endpoint,
		Model:           "nova-2-medical",
		SampleRateHertz: 16000,
	})
	recv := &collectingReceiver{}
	stream, err := tr.StartStreaming(context.Background(), "session-1", "en", recv)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	if err := stream.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fake.mu.Lock()
		n := len(fake.gotAudio)
		fake.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	fake.mu.Lock()
	if len(fake.gotAudio) != 1 || len(fake.gotAudio[0]) != 4 {
		t.Fatalf("unexpected upstream audio %v", fake.gotAudio)
	}
	fake.mu.Unlock()

	fake.sendResults(t, "hello", false)
	fake.sendResults(t, "hello world", true)
	results := waitForResults(t, recv, 2)
	if results[0].IsFinal || results[0].Text != "hello" {
		t.Fatalf("unexpected first result %#v", results[0])
	}
	if !results[1].IsFinal || results[1].Text != "hello world" {
		t.Fatalf("unexpected second result %#v", results[1])
	}
	if results[1].Start != 1500*time.Millisecond || results[1].Duration != 500*time.Millisecond {
		t.Fatalf("unexpected timing %#v", results[1])
	}
}

func TestStream_IgnoresNonResultMessages(t *testing.T) {
	fake, endpoint := startFakeDeepgram(t)
	tr := NewDeepgramTranscriber(DeepgramConfig{APIKey: "k", Endpoint: endpoint, Model: "m", SampleRateHertz: 16000})
	recv := &collectingReceiver{}
	stream, err := tr.StartStreaming(context.Background(), "session-1", "en", recv)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	conn := fake.awaitConn(t)
	if err := conn.WriteJSON(map[string]any{"type": "Metadata", "request_id": "abc"}); err != nil {
		t.Fatalf("send metadata: %v", err)
	}
	fake.sendResults(t, "after metadata", true)

	results := waitForResults(t, recv, 1)
	if results[0].Text != "after metadata" {
		t.Fatalf("unexpected result %#v", results[0])
	}
}

func TestStream_CloseSendsCloseStream(t *testing.T) {
	fake, endpoint := startFakeDeepgram(t)
	tr := NewDeepgramTranscriber(DeepgramConfig{APIKey: "k", Endpoint: endpoint, Model: "m", SampleRateHertz: 16000})
	stream, err := tr.StartStreaming(context.Background(), "session-1", "en", &collectingReceiver{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	fake.mu.Lock()
	gotCloseCmd := fake.gotCloseCmd
	fake.mu.Unlock()
	if !gotCloseCmd {
		t.Fatal("expected CloseStream command before teardown")
	}

	if err := stream.Write([]byte{1}); !errors.Is(err, transcriber.ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed after close, got %v", err)
	}
	// Close is idempotent.
	if err := stream.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestStartStreaming_DialFailure(t *testing.T) {
	tr := NewDeepgramTranscriber(DeepgramConfig{
		APIKey:          "k",
		Endpoint:        "ws://127.0.0.1:1",
		Model:           "m",
		SampleRateHertz: 16000,
	})
	_, err := tr.StartStreaming(context.Background(), "session-1", "en", &collectingReceiver{})
	if !errors.Is(err, transcriber.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
