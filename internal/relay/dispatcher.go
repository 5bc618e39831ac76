package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/RijinRaju/healthcare-translation-backend/internal/metrics"
	"github.com/RijinRaju/healthcare-translation-backend/internal/translator"
)

// translationQueueDepth bounds how far translation may lag behind the
// transcript before segments are reported as failed instead of queued.
const translationQueueDepth = 64

type finalSegment struct {
	seq  int64
	text string
}

// dispatcher fans each final transcript segment out to one worker per
// target language. A language's worker handles one request at a time and
// consumes its queue in order, which is what preserves per-language
// non-decreasing sequence order under concurrent dispatch.
type dispatcher struct {
	ctx        context.Context
	translator translator.Translator
	sourceLang string
	emit       func(ev any)
	onSuccess  func(seq int64, language, text string)
	metrics    *metrics.Metrics

	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration

	mu     sync.Mutex
	closed bool
	queues map[string]chan finalSegment
	wg     sync.WaitGroup
}

type dispatcherConfig struct {
	sourceLanguage  string
	targetLanguages []string
	maxRetries      int
	baseDelay       time.Duration
	timeout         time.Duration
}

func newDispatcher(ctx context.Context, tr translator.Translator, cfg dispatcherConfig, m *metrics.Metrics, emit func(ev any), onSuccess func(seq int64, language, text string)) *dispatcher {
	d := &dispatcher{
		ctx:        ctx,
		translator: tr,
		sourceLang: cfg.sourceLanguage,
		emit:       emit,
		onSuccess:  onSuccess,
		metrics:    m,
		maxRetries: cfg.maxRetries,
		baseDelay:  cfg.baseDelay,
		timeout:    cfg.timeout,
		queues:     make(map[string]chan finalSegment, len(cfg.targetLanguages)),
	}
	for _, lang := range cfg.targetLanguages {
		q := make(chan finalSegment, translationQueueDepth)
		d.queues[lang] = q
		d.wg.Add(1)
		go d.worker(lang, q)
	}
	return d
}

// Dispatch queues seg for every target language. A full queue means the
// client cannot keep up; the segment is reported as failed for that
// language rather than silently dropped.
func (d *dispatcher) Dispatch(seg finalSegment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for lang, q := range d.queues {
		select {
		case q <- seg:
			d.metrics.TranslationRequests.Inc()
		default:
			d.metrics.TranslationFailures.Inc()
			d.emit(newTranslationFailedEvent(seg.seq, lang, "translation queue overflow"))
		}
	}
}

// Close stops accepting segments. Workers finish their queued backlog.
func (d *dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
}

// Wait blocks until all workers drain or the timeout elapses. Returns false
// on timeout; the caller then cancels the dispatcher context to abandon
// whatever is still in flight.
func (d *dispatcher) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (d *dispatcher) worker(lang string, q <-chan finalSegment) {
	defer d.wg.Done()
	for seg := range q {
		if d.ctx.Err() != nil {
			// Abandoned mid-drain; emitting now would violate the
			// no-garbage-after-timeout contract.
			return
		}
		start := time.Now()
		text, err := d.translateWithRetry(lang, seg)
		if err != nil {
			if d.ctx.Err() != nil {
				return
			}
			d.metrics.TranslationFailures.Inc()
			slog.Warn("translation failed permanently", "error", err, "language", lang, "seq", seg.seq)
			d.emit(newTranslationFailedEvent(seg.seq, lang, err.Error()))
			continue
		}
		d.metrics.TranslationSuccesses.Inc()
		d.metrics.TranslationDuration.Observe(time.Since(start).Seconds())
		d.emit(newTranslationEvent(seg.seq, lang, text))
		if d.onSuccess != nil {
			d.onSuccess(seg.seq, lang, text)
		}
	}
}

func (d *dispatcher) translateWithRetry(lang string, seg finalSegment) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			d.metrics.TranslationRetries.Inc()
			delay := d.baseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-d.ctx.Done():
				return "", d.ctx.Err()
			}
		}
		reqCtx, cancel := context.WithTimeout(d.ctx, d.timeout)
		text, err := d.translator.Translate(reqCtx, translator.Request{
			Text:           seg.text,
			SourceLanguage: d.sourceLang,
			TargetLanguage: lang,
		})
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if d.ctx.Err() != nil {
			return "", d.ctx.Err()
		}
		slog.Warn("translation attempt failed", "error", err, "language", lang, "seq", seg.seq, "attempt", attempt)
	}
	return "", lastErr
}
