package transcriber

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RijinRaju/healthcare-translation-backend/internal/transcriber"
)

const speechAPIEndpointPort = 443

// CloudSpeechConfig configures the alternate Google Cloud Speech provider.
type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
	SampleRateHertz int
}

type CloudSpeechTranscriber struct {
	cfg CloudSpeechConfig
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) transcriber.Transcriber {
	cfg.Location = strings.TrimSpace(cfg.Location)
	cfg.Model = strings.TrimSpace(cfg.Model)
	return &CloudSpeechTranscriber{cfg: cfg}
}

func (t *CloudSpeechTranscriber) StartStreaming(ctx context.Context, sessionID, language string, receiver transcriber.ResultReceiver) (transcriber.StreamWriter, error) {
	slog.Info("starting cloud speech streaming", "session_id", sessionID, "location", t.cfg.Location, "language", language, "model", t.cfg.Model)
	if language == "" {
		language = t.cfg.Language
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: detect credentials: %v", transcriber.ErrUpstreamUnavailable, err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if t.cfg.Location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", t.cfg.Location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transcriber.ErrUpstreamUnavailable, err)
	}
	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", transcriber.ErrUpstreamUnavailable, err)
	}

	recognizer := fmt.Sprintf("projects/%s/locations/%s/recognizers/_", t.cfg.ProjectID, t.cfg.Location)
	sendConfig := func(s speechpb.Speech_StreamingRecognizeClient) error {
		return s.Send(&speechpb.StreamingRecognizeRequest{
			Recognizer: recognizer,
			StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
				StreamingConfig: &speechpb.StreamingRecognitionConfig{
					Config: &speechpb.RecognitionConfig{
						Model:         t.cfg.Model,
						LanguageCodes: []string{language},
						DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
							ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
								Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
								SampleRateHertz:   int32(t.cfg.SampleRateHertz),
								AudioChannelCount: 1,
							},
						},
						Features: &speechpb.RecognitionFeatures{},
					},
					StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: true},
				},
			},
		})
	}
	if err := sendConfig(stream); err != nil {
		_ = stream.CloseSend()
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", transcriber.ErrUpstreamUnavailable, err)
	}
	slog.Info("cloud speech stream initialized", "session_id", sessionID)

	w := &cloudSpeechStream{
		stream:    stream,
		receiver:  receiver,
		sessionID: sessionID,
		newStreamFn: func() (speechpb.Speech_StreamingRecognizeClient, error) {
			next, err := client.StreamingRecognize(ctx)
			if err != nil {
				return nil, err
			}
			if err := sendConfig(next); err != nil {
				_ = next.CloseSend()
				return nil, err
			}
			return next, nil
		},
		closeFn: func() error {
			return client.Close()
		},
	}
	w.startReceiver(stream)
	return w, nil
}

type cloudSpeechStream struct {
	mu          sync.Mutex
	closed      bool
	stream      speechpb.Speech_StreamingRecognizeClient
	receiver    transcriber.ResultReceiver
	sessionID   string
	newStreamFn func() (speechpb.Speech_StreamingRecognizeClient, error)
	closeFn     func() error
}

func (w *cloudSpeechStream) Write(pcm []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return transcriber.ErrStreamClosed
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: pcm,
		},
	}
	if err := w.stream.Send(req); err != nil {
		if !isReconnectableStreamError(err) {
			return err
		}
		slog.Warn("cloud speech send failed with reconnectable error; reconnecting", "error", err, "session_id", w.sessionID)
		if err := w.reconnectLocked(); err != nil {
			return fmt.Errorf("reconnect stream: %w", err)
		}
		return w.stream.Send(req)
	}
	return nil
}

func (w *cloudSpeechStream) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.stream.CloseSend(); err != nil {
		_ = w.closeFn()
		return err
	}
	return w.closeFn()
}

func (w *cloudSpeechStream) reconnectLocked() error {
	_ = w.stream.CloseSend()
	next, err := w.newStreamFn()
	if err != nil {
		slog.Error("failed to reconnect cloud speech stream", "error", err, "session_id", w.sessionID)
		return err
	}
	w.stream = next
	w.startReceiver(next)
	slog.Info("cloud speech stream reconnected", "session_id", w.sessionID)
	return nil
}

func (w *cloudSpeechStream) startReceiver(stream speechpb.Speech_StreamingRecognizeClient) {
	go func() {
		for {
			resp, err := stream.Recv()
			if err != nil {
				if err == io.EOF || strings.Contains(err.Error(), "context canceled") {
					slog.Info("cloud speech receive loop stopped", "reason", err.Error(), "session_id", w.sessionID)
					return
				}
				if isReconnectableStreamError(err) {
					slog.Warn("cloud speech receive loop ended with reconnectable abort", "error", err, "session_id", w.sessionID)
					return
				}
				w.receiver.OnError(fmt.Errorf("%w: %v", transcriber.ErrTranscriptionFailed, err))
				return
			}
			for _, result := range resp.GetResults() {
				if len(result.GetAlternatives()) == 0 {
					continue
				}
				w.receiver.OnResult(transcriber.Result{
					Text:     result.GetAlternatives()[0].GetTranscript(),
					IsFinal:  result.GetIsFinal(),
					Duration: result.GetResultEndOffset().AsDuration(),
				})
			}
		}
	}()
}

func isReconnectableStreamError(err error) bool {
	if err == io.EOF || strings.Contains(strings.ToLower(err.Error()), "eof") {
		return true
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Aborted {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}
