package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RijinRaju/healthcare-translation-backend/internal/audio"
	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/metrics"
	"github.com/RijinRaju/healthcare-translation-backend/internal/repository"
	"github.com/RijinRaju/healthcare-translation-backend/internal/transcriber"
	"github.com/RijinRaju/healthcare-translation-backend/internal/translator"
	"github.com/RijinRaju/healthcare-translation-backend/internal/webhook"
)

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateDraining
	StateClosed
)

const (
	stopReasonClientClosed  = "client disconnected"
	stopReasonConfiguration = "configuration rejected"
	stopReasonUpstream      = "transcription upstream failed"
	stopReasonIdle          = "no audio received"
	stopReasonMaxDuration   = "max session duration reached"
	stopReasonServerClosed  = "server shutting down"
)

const (
	outboundDepth       = 256
	watchdogInterval    = 5 * time.Second
	closeWriteDeadline  = 2 * time.Second
	finalizeTimeout     = 15 * time.Second
	readDrainWaitBudget = 5 * time.Second
)

// ClientConn is the subset of *websocket.Conn the session needs. Narrowed
// for the tests; production always hands in a gorilla connection.
type ClientConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type segmentRecord struct {
	seq      int64
	text     string
	spokenAt time.Time
}

// Session relays one client connection: audio in, transcript and
// translation events out. It owns the vendor stream and the translation
// dispatcher for its lifetime and leaves nothing behind on disconnect.
type Session struct {
	ID string

	cfg           *config.Config
	conn          ClientConn
	transcriber   transcriber.Transcriber
	translator    translator.Translator
	repo          repository.Repository
	webhookSender webhook.Sender
	metrics       *metrics.Metrics
	newDecoder    audio.DecoderFactory

	sourceLanguage  string
	targetLanguages []string

	state    atomic.Int32
	workCtx  context.Context
	workStop context.CancelFunc

	outbound   chan any
	writerDone chan struct{}
	readDone   chan struct{}
	drained    chan struct{}

	writer     transcriber.StreamWriter
	dispatcher *dispatcher
	framebuf   *audio.FrameBuffer
	decoder    audio.Decoder

	drainOnce sync.Once
	startedAt time.Time

	mu           sync.Mutex
	nextSeq      int64
	lastAudio    time.Time
	stopReason   string
	closeCode    int
	segments     []segmentRecord
	translations map[int64]map[string]string
}

func newSession(id string, conn ClientConn, m *Manager) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:            id,
		cfg:           m.cfg,
		conn:          conn,
		transcriber:   m.transcriber,
		translator:    m.translator,
		repo:          m.repo,
		webhookSender: m.webhookSender,
		metrics:       m.metrics,
		newDecoder:    m.newDecoder,
		workCtx:       ctx,
		workStop:      cancel,
		outbound:      make(chan any, outboundDepth),
		writerDone:    make(chan struct{}),
		readDone:      make(chan struct{}),
		drained:       make(chan struct{}),
		startedAt:     time.Now(),
		nextSeq:       1,
		lastAudio:     time.Now(),
		translations:  make(map[int64]map[string]string),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// run drives the session to completion. It returns once the session is
// fully closed and all resources are released.
func (s *Session) run() {
	defer s.workStop()

	ctrl, err := s.awaitControl()
	if err != nil {
		s.rejectConnecting(err)
		return
	}
	s.sourceLanguage = ctrl.SourceLanguage
	s.targetLanguages = ctrl.TargetLanguages

	decoder, err := s.newDecoder(ctrl.Encoding)
	if err != nil {
		s.rejectConnecting(err)
		return
	}
	s.decoder = decoder
	s.framebuf = audio.NewFrameBuffer(s.cfg.SegmentBytes, s.cfg.BufferCapBytes)

	// The dispatcher must exist before the vendor stream: receiver
	// callbacks may fire as soon as StartStreaming returns.
	s.dispatcher = newDispatcher(s.workCtx, s.translator, dispatcherConfig{
		sourceLanguage:  s.sourceLanguage,
		targetLanguages: s.targetLanguages,
		maxRetries:      s.cfg.MaxRetries,
		baseDelay:       s.cfg.RetryBaseDelay,
		timeout:         s.cfg.TranslationTimeout,
	}, s.metrics, s.emit, s.recordTranslation)

	writer, err := s.startTranscriber()
	if err != nil {
		slog.Error("failed to start transcriber streaming", "error", err, "session_id", s.ID)
		s.dispatcher.Close()
		s.decoder.Close()
		s.writeEventDirect(newErrorEvent(errCodeTranscriptionFailed, "could not reach transcription service"))
		s.closeConn(closeCodeUpstreamFailure)
		s.state.Store(int32(StateClosed))
		s.metrics.SessionsClosed.WithLabelValues(stopReasonUpstream).Inc()
		close(s.drained)
		return
	}
	s.writer = writer

	s.state.Store(int32(StateActive))
	s.metrics.SessionsStarted.Inc()
	s.metrics.ActiveSessions.Inc()
	s.archiveSessionStart()
	slog.Info("session active", "session_id", s.ID, "source_language", s.sourceLanguage, "target_languages", s.targetLanguages)

	go s.writeLoop()
	go s.watchdog()
	s.readLoop()

	s.beginDrain(stopReasonClientClosed, closeCodeNormal)
	<-s.drained
}

// awaitControl reads and validates the session's initial control message
// while in the Connecting state.
func (s *Session) awaitControl() (controlMessage, error) {
	var ctrl controlMessage
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ConnectTimeout))
	mt, data, err := s.conn.ReadMessage()
	if err != nil {
		return ctrl, fmt.Errorf("read control message: %w", err)
	}
	_ = s.conn.SetReadDeadline(time.Time{})
	if mt != websocket.TextMessage {
		return ctrl, errors.New("first message must be a JSON control message")
	}
	if err := json.Unmarshal(data, &ctrl); err != nil {
		return ctrl, fmt.Errorf("parse control message: %w", err)
	}
	if ctrl.SourceLanguage == "" {
		ctrl.SourceLanguage = s.cfg.DefaultSourceLanguage
	}
	if len(ctrl.TargetLanguages) == 0 {
		return ctrl, errors.New("targetLanguages must list at least one language")
	}
	seen := make(map[string]struct{}, len(ctrl.TargetLanguages))
	for _, lang := range ctrl.TargetLanguages {
		if !s.cfg.SupportsTargetLanguage(lang) {
			return ctrl, fmt.Errorf("unsupported target language %q", lang)
		}
		if _, dup := seen[lang]; dup {
			return ctrl, fmt.Errorf("duplicate target language %q", lang)
		}
		seen[lang] = struct{}{}
	}
	return ctrl, nil
}

// rejectConnecting handles a configuration failure before the session ever
// goes active: one error event, a configuration close code, done.
func (s *Session) rejectConnecting(cause error) {
	slog.Warn("session rejected during connect", "error", cause, "session_id", s.ID)
	s.writeEventDirect(newErrorEvent(errCodeConfiguration, cause.Error()))
	s.closeConn(closeCodeConfigurationError)
	s.state.Store(int32(StateClosed))
	s.metrics.SessionsClosed.WithLabelValues(stopReasonConfiguration).Inc()
	close(s.drained)
}

// startTranscriber establishes the vendor stream with bounded retry;
// establishment failures are usually transient capacity blips.
func (s *Session) startTranscriber() (transcriber.StreamWriter, error) {
	receiver := &resultReceiver{session: s}
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.cfg.RetryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-s.workCtx.Done():
				return nil, transcriber.ErrUpstreamUnavailable
			}
		}
		writer, err := s.transcriber.StartStreaming(s.workCtx, s.ID, s.sourceLanguage, receiver)
		if err == nil {
			return writer, nil
		}
		lastErr = err
		slog.Warn("transcriber start attempt failed", "error", err, "attempt", attempt, "session_id", s.ID)
	}
	return nil, lastErr
}

func (s *Session) readLoop() {
	defer close(s.readDone)
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.State() < StateDraining && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Info("client read ended", "error", err, "session_id", s.ID)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			// Clients occasionally send pings or stray text; audio is
			// always binary.
			continue
		}
		s.metrics.AudioBytesReceived.Add(float64(len(data)))
		s.mu.Lock()
		s.lastAudio = time.Now()
		s.mu.Unlock()

		pcm, err := s.decoder.Decode(data)
		if err != nil {
			slog.Warn("dropping undecodable audio frame", "error", err, "session_id", s.ID)
			continue
		}
		segments, err := s.framebuf.Accept(pcm)
		if err != nil {
			if errors.Is(err, audio.ErrBufferOverflow) {
				s.metrics.BufferOverflows.Inc()
				s.emit(newErrorEvent(errCodeBufferOverflow, "audio backlog exceeded cap; oldest audio dropped"))
			}
		}
		for _, seg := range segments {
			if err := s.writer.Write(seg); err != nil {
				if s.State() >= StateDraining {
					return
				}
				slog.Error("failed to forward audio segment", "error", err, "session_id", s.ID)
				s.emit(newErrorEvent(errCodeTranscriptionFailed, "transcription stream lost"))
				s.beginDrain(stopReasonUpstream, closeCodeUpstreamFailure)
				return
			}
			s.metrics.SegmentsForwarded.Inc()
		}
	}
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	for {
		select {
		case ev := <-s.outbound:
			s.writeEvent(ev)
		case <-s.workCtx.Done():
			for {
				select {
				case ev := <-s.outbound:
					s.writeEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) writeEvent(ev any) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event", "error", err, "session_id", s.ID)
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if s.State() < StateDraining {
			slog.Info("client write failed", "error", err, "session_id", s.ID)
			s.beginDrain(stopReasonClientClosed, closeCodeNormal)
		}
	}
}

// writeEventDirect is for the Connecting phase, before writeLoop exists.
func (s *Session) writeEventDirect(ev any) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = s.conn.WriteMessage(websocket.TextMessage, data)
}

// emit queues an event for the client, preserving enqueue order. Blocks
// only until the session is torn down.
func (s *Session) emit(ev any) {
	select {
	case s.outbound <- ev:
	case <-s.workCtx.Done():
	}
}

// emitPartial drops on a full queue: a newer partial or the final for the
// same sequence supersedes it anyway.
func (s *Session) emitPartial(ev any) {
	select {
	case s.outbound <- ev:
	default:
	}
}

func (s *Session) watchdog() {
	maxDuration := time.Duration(s.cfg.MaxSessionDurationMin) * time.Minute
	tick := watchdogInterval
	if half := s.cfg.IdleTimeout / 2; half < tick && half > 0 {
		tick = half
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.workCtx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastAudio)
			s.mu.Unlock()
			if idle > s.cfg.IdleTimeout {
				s.emit(newErrorEvent(errCodeIdleTimeout, fmt.Sprintf("no audio received for %s", s.cfg.IdleTimeout)))
				s.beginDrain(stopReasonIdle, closeCodeNormal)
				return
			}
			if time.Since(s.startedAt) > maxDuration {
				s.beginDrain(stopReasonMaxDuration, closeCodeNormal)
				return
			}
		}
	}
}

// handleResult runs on the transcriber adapter's goroutine.
func (s *Session) handleResult(r transcriber.Result) {
	if s.State() == StateClosed {
		return
	}
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return
	}
	if !r.IsFinal {
		s.mu.Lock()
		seq := s.nextSeq
		s.mu.Unlock()
		s.metrics.TranscriptsPartial.Inc()
		s.emitPartial(newTranscriptEvent(transcriptKindPartial, seq, text))
		return
	}

	s.mu.Lock()
	seq := s.nextSeq
	s.nextSeq++
	spokenAt := time.Now()
	s.segments = append(s.segments, segmentRecord{seq: seq, text: text, spokenAt: spokenAt})
	s.mu.Unlock()

	s.metrics.TranscriptsFinal.Inc()
	s.emit(newTranscriptEvent(transcriptKindFinal, seq, text))
	s.archiveSegment(seq, text, spokenAt)
	s.dispatcher.Dispatch(finalSegment{seq: seq, text: text})
}

// handleStreamError runs on the transcriber adapter's goroutine and marks
// the transcription path dead. Translations for already-finalized segments
// still complete during the drain.
func (s *Session) handleStreamError(err error) {
	if errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "operation was cancelled") {
		slog.Info("transcriber stream canceled", "error", err, "session_id", s.ID)
		return
	}
	if s.State() >= StateDraining {
		return
	}
	slog.Error("transcriber stream error", "error", err, "session_id", s.ID)
	s.emit(newErrorEvent(errCodeTranscriptionFailed, "transcription stream failed"))
	s.beginDrain(stopReasonUpstream, closeCodeUpstreamFailure)
}

// beginDrain moves the session to Draining exactly once and starts the
// asynchronous teardown. Safe to call from any goroutine.
func (s *Session) beginDrain(reason string, closeCode int) {
	if s.State() == StateConnecting {
		// Not yet active; unblocking the control read is enough, the
		// connect path then runs its own teardown.
		_ = s.conn.SetReadDeadline(time.Now())
		return
	}
	s.drainOnce.Do(func() {
		s.mu.Lock()
		s.stopReason = reason
		s.closeCode = closeCode
		s.mu.Unlock()
		s.state.Store(int32(StateDraining))
		slog.Info("session draining", "session_id", s.ID, "reason", reason)
		go s.performDrain()
	})
}

func (s *Session) performDrain() {
	// Unblock the read loop if the drain was not client-initiated.
	_ = s.conn.SetReadDeadline(time.Now())
	select {
	case <-s.readDone:
	case <-time.After(readDrainWaitBudget):
		slog.Warn("read loop did not stop within budget", "session_id", s.ID)
	}

	// Push trailing audio, then let the vendor flush its final results.
	if tail := s.framebuf.Flush(); tail != nil {
		_ = s.writer.Write(tail)
	}
	if err := s.writer.Close(); err != nil {
		slog.Warn("transcriber stream close failed", "error", err, "session_id", s.ID)
	}

	// Let queued translations finish inside the drain budget.
	s.dispatcher.Close()
	if !s.dispatcher.Wait(s.cfg.DrainTimeout) {
		slog.Warn("drain timeout elapsed with translations in flight", "session_id", s.ID)
	}

	// Cancel remaining work and flush the outbound queue.
	s.workStop()
	<-s.writerDone
	s.decoder.Close()

	s.mu.Lock()
	closeCode := s.closeCode
	reason := s.stopReason
	s.mu.Unlock()
	s.closeConn(closeCode)
	s.state.Store(int32(StateClosed))

	s.metrics.ActiveSessions.Dec()
	s.metrics.SessionsClosed.WithLabelValues(reason).Inc()
	s.metrics.SessionDuration.Observe(time.Since(s.startedAt).Seconds())
	slog.Info("session closed", "session_id", s.ID, "reason", reason)

	s.finalize(reason)
	close(s.drained)
}

func (s *Session) closeConn(code int) {
	msg := websocket.FormatCloseMessage(code, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteDeadline))
	_ = s.conn.Close()
}

// finalize archives the session outcome and posts the transcript webhook.
// Best-effort: the client-facing relay is already done.
func (s *Session) finalize(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	endedAt := time.Now()
	if err := s.repo.UpdateSessionCompleted(ctx, repository.CompleteSessionInput{
		SessionID:  s.ID,
		EndedAt:    endedAt,
		StopReason: reason,
	}); err != nil {
		slog.Error("failed to complete session in repository", "error", err, "session_id", s.ID)
	}

	payload := s.buildWebhookPayload(endedAt, reason)
	if err := s.webhookSender.SendTranscript(ctx, payload); err != nil {
		slog.Error("failed to send transcript webhook", "error", err, "session_id", s.ID)
	}
}

func (s *Session) buildWebhookPayload(endedAt time.Time, reason string) webhook.TranscriptWebhookPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	segments := make([]webhook.TranscriptWebhookSegment, 0, len(s.segments))
	lines := make([]string, 0, len(s.segments))
	for _, seg := range s.segments {
		lines = append(lines, seg.text)
		segments = append(segments, webhook.TranscriptWebhookSegment{
			Seq:          seg.seq,
			Transcript:   seg.text,
			SpokenAt:     seg.spokenAt.Format(time.RFC3339),
			Translations: s.translations[seg.seq],
		})
	}
	durationSeconds := int64(endedAt.Sub(s.startedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return webhook.TranscriptWebhookPayload{
		SchemaVersion:   webhook.TranscriptWebhookSchemaVersion,
		SessionID:       s.ID,
		SourceLanguage:  s.sourceLanguage,
		TargetLanguages: s.targetLanguages,
		StartedAt:       s.startedAt.Format(time.RFC3339),
		EndedAt:         endedAt.Format(time.RFC3339),
		DurationSeconds: durationSeconds,
		StopReason:      reason,
		SegmentCount:    len(segments),
		Segments:        segments,
		Transcript:      strings.Join(lines, "\n"),
	}
}

func (s *Session) archiveSessionStart() {
	ctx, cancel := context.WithTimeout(s.workCtx, finalizeTimeout)
	defer cancel()
	if _, err := s.repo.CreateSession(ctx, repository.CreateSessionInput{
		SessionID:       s.ID,
		SourceLanguage:  s.sourceLanguage,
		TargetLanguages: s.targetLanguages,
		StartedAt:       s.startedAt,
	}); err != nil {
		slog.Error("failed to create session in repository", "error", err, "session_id", s.ID)
	}
}

func (s *Session) archiveSegment(seq int64, text string, spokenAt time.Time) {
	if err := s.repo.InsertSegment(context.Background(), repository.InsertSegmentInput{
		SessionID: s.ID,
		Seq:       seq,
		Content:   text,
		SpokenAt:  spokenAt,
	}); err != nil {
		slog.Error("failed to insert segment", "error", err, "session_id", s.ID)
	}
}

// recordTranslation is the dispatcher's success hook.
func (s *Session) recordTranslation(seq int64, language, text string) {
	s.mu.Lock()
	byLang := s.translations[seq]
	if byLang == nil {
		byLang = make(map[string]string)
		s.translations[seq] = byLang
	}
	byLang[language] = text
	s.mu.Unlock()

	if err := s.repo.InsertTranslation(context.Background(), repository.InsertTranslationInput{
		SessionID: s.ID,
		Seq:       seq,
		Language:  language,
		Content:   text,
	}); err != nil {
		slog.Error("failed to insert translation", "error", err, "session_id", s.ID)
	}
}

type resultReceiver struct {
	session *Session
}

func (r *resultReceiver) OnResult(res transcriber.Result) {
	r.session.handleResult(res)
}

func (r *resultReceiver) OnError(err error) {
	r.session.handleStreamError(err)
}
