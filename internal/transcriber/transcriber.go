package transcriber

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUpstreamUnavailable means the vendor stream could not be
	// established. The caller decides whether to retry.
	ErrUpstreamUnavailable = errors.New("transcription upstream unavailable")

	// ErrStreamClosed is returned by Write after Close or a fatal failure.
	ErrStreamClosed = errors.New("transcription stream closed")

	// ErrTranscriptionFailed marks a stream that died after exhausting its
	// reconnect attempts. Surfaced through ResultReceiver.OnError.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Result is one transcript hypothesis from the vendor. Partial results may
// be revised; final results will not be.
type Result struct {
	Text     string
	IsFinal  bool
	Start    time.Duration
	Duration time.Duration
}

type StreamWriter interface {
	Write(pcm []byte) error
	Close() error
}

type ResultReceiver interface {
	OnResult(r Result)
	OnError(err error)
}

// Transcriber owns one live vendor stream per session. Results arrive on
// the receiver from the adapter's own goroutine for the life of the stream;
// a stream is not restartable once closed.
type Transcriber interface {
	StartStreaming(ctx context.Context, sessionID, language string, receiver ResultReceiver) (StreamWriter, error)
}
