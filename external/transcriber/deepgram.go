package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RijinRaju/healthcare-translation-backend/internal/transcriber"
)

const (
	defaultDeepgramEndpoint = "wss://api.deepgram.com"
	keepAliveInterval       = 5 * time.Second
	closeStreamGrace        = 3 * time.Second
	// Deepgram recommends endpointing around 300ms for conversational
	// speech; the original frontend was tuned against this value.
	endpointingMs = 300
)

type DeepgramConfig struct {
	APIKey          string
	Endpoint        string
	Model           string
	Language        string
	SampleRateHertz int
	MaxRetries      int
	RetryBaseDelay  time.Duration
}

type DeepgramTranscriber struct {
	cfg DeepgramConfig
}

func NewDeepgramTranscriber(cfg DeepgramConfig) transcriber.Transcriber {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultDeepgramEndpoint
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 250 * time.Millisecond
	}
	return &DeepgramTranscriber{cfg: cfg}
}

func (t *DeepgramTranscriber) StartStreaming(ctx context.Context, sessionID, language string, receiver transcriber.ResultReceiver) (transcriber.StreamWriter, error) {
	if language == "" {
		language = t.cfg.Language
	}
	listenURL, err := t.listenURL(language)
	if err != nil {
		return nil, err
	}
	slog.Info("starting deepgram streaming", "session_id", sessionID, "language", language, "model", t.cfg.Model)

	dial := func() (*websocket.Conn, error) {
		header := http.Header{"Authorization": {"Token " + t.cfg.APIKey}}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL, header)
		return conn, err
	}

	conn, err := dial()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transcriber.ErrUpstreamUnavailable, err)
	}
	slog.Info("deepgram stream initialized", "session_id", sessionID)

	s := &deepgramStream{
		conn:       conn,
		receiver:   receiver,
		dialFn:     dial,
		sessionID:  sessionID,
		maxRetries: t.cfg.MaxRetries,
		baseDelay:  t.cfg.RetryBaseDelay,
		stop:       make(chan struct{}),
	}
	s.recvDone = s.startReceiver(conn)
	go s.keepAliveLoop()
	return s, nil
}

func (t *DeepgramTranscriber) listenURL(language string) (string, error) {
	u, err := url.Parse(t.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse deepgram endpoint: %w", err)
	}
	u.Path = "/v1/listen"
	q := url.Values{}
	q.Set("model", t.cfg.Model)
	q.Set("language", language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(t.cfg.SampleRateHertz))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("endpointing", strconv.Itoa(endpointingMs))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type deepgramStream struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	recvDone  chan struct{}
	closed    atomic.Bool
	receiver  transcriber.ResultReceiver
	dialFn    func() (*websocket.Conn, error)
	sessionID string

	maxRetries int
	baseDelay  time.Duration
	stop       chan struct{}
}

// deepgramMessage covers the subset of the live API response we consume.
type deepgramMessage struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramStream) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return transcriber.ErrStreamClosed
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		slog.Warn("deepgram send failed; reconnecting", "error", err, "session_id", s.sessionID)
		if err := s.reconnectLocked(); err != nil {
			return fmt.Errorf("reconnect stream: %w", err)
		}
		return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
	}
	return nil
}

// Close sends CloseStream so the vendor flushes pending finals, waits a
// bounded grace period for the receive loop to drain them, then tears the
// connection down. Safe to call on every exit path.
func (s *deepgramStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)

	s.mu.Lock()
	conn := s.conn
	recvDone := s.recvDone
	err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	s.mu.Unlock()

	if err == nil {
		select {
		case <-recvDone:
		case <-time.After(closeStreamGrace):
			slog.Warn("deepgram close grace elapsed before final results", "session_id", s.sessionID)
		}
	}
	return conn.Close()
}

// reconnectLocked re-dials with exponential backoff. Called with s.mu held.
func (s *deepgramStream) reconnectLocked() error {
	_ = s.conn.Close()
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.baseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-s.stop:
				return transcriber.ErrStreamClosed
			}
		}
		conn, err := s.dialFn()
		if err != nil {
			lastErr = err
			slog.Warn("deepgram reconnect attempt failed", "error", err, "attempt", attempt, "session_id", s.sessionID)
			continue
		}
		s.conn = conn
		s.recvDone = s.startReceiver(conn)
		slog.Info("deepgram stream reconnected", "session_id", s.sessionID)
		return nil
	}
	return fmt.Errorf("%w: %v", transcriber.ErrTranscriptionFailed, lastErr)
}

func (s *deepgramStream) startReceiver(conn *websocket.Conn) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					slog.Info("deepgram receive loop stopped", "session_id", s.sessionID)
					return
				}
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
					// The writer re-dials on its next send; this loop
					// belongs to the dead connection.
					slog.Warn("deepgram receive loop ended with abnormal close", "error", err, "session_id", s.sessionID)
					return
				}
				s.receiver.OnError(fmt.Errorf("%w: %v", transcriber.ErrTranscriptionFailed, err))
				return
			}
			var msg deepgramMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				slog.Warn("deepgram sent unparseable message", "error", err, "session_id", s.sessionID)
				continue
			}
			if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
				continue
			}
			s.receiver.OnResult(transcriber.Result{
				Text:     msg.Channel.Alternatives[0].Transcript,
				IsFinal:  msg.IsFinal,
				Start:    time.Duration(msg.Start * float64(time.Second)),
				Duration: time.Duration(msg.Duration * float64(time.Second)),
			})
		}
	}()
	return done
}

// keepAliveLoop keeps the vendor socket open across pauses in speech. The
// original backend sent these whenever the client went quiet for a few
// seconds.
func (s *deepgramStream) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.closed.Load() {
				if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`)); err != nil {
					slog.Warn("deepgram keepalive failed", "error", err, "session_id", s.sessionID)
				}
			}
			s.mu.Unlock()
		}
	}
}
