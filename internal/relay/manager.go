package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/RijinRaju/healthcare-translation-backend/internal/audio"
	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/metrics"
	"github.com/RijinRaju/healthcare-translation-backend/internal/repository"
	"github.com/RijinRaju/healthcare-translation-backend/internal/transcriber"
	"github.com/RijinRaju/healthcare-translation-backend/internal/translator"
	"github.com/RijinRaju/healthcare-translation-backend/internal/webhook"
)

// Manager tracks live sessions and drains them on shutdown.
type Manager struct {
	cfg           *config.Config
	transcriber   transcriber.Transcriber
	translator    translator.Translator
	repo          repository.Repository
	webhookSender webhook.Sender
	metrics       *metrics.Metrics
	newDecoder    audio.DecoderFactory

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

type ManagerDeps struct {
	Config        *config.Config
	Transcriber   transcriber.Transcriber
	Translator    translator.Translator
	Repository    repository.Repository
	WebhookSender webhook.Sender
	Metrics       *metrics.Metrics
	DecoderFunc   audio.DecoderFactory
}

func NewManager(deps ManagerDeps) *Manager {
	return &Manager{
		cfg:           deps.Config,
		transcriber:   deps.Transcriber,
		translator:    deps.Translator,
		repo:          deps.Repository,
		webhookSender: deps.WebhookSender,
		metrics:       deps.Metrics,
		newDecoder:    deps.DecoderFunc,
		sessions:      make(map[string]*Session),
	}
}

// HandleConnection runs a session for conn and blocks until it closes.
func (m *Manager) HandleConnection(conn ClientConn) {
	s := newSession(uuid.NewString(), conn, m)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.run()

	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
}

// ActiveCount reports the number of registered sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown refuses new sessions and drains the live ones, waiting until
// they finish or ctx expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	if len(live) == 0 {
		return nil
	}
	slog.Info("draining sessions for shutdown", "count", len(live))
	for _, s := range live {
		s.beginDrain(stopReasonServerClosed, closeCodeNormal)
	}
	for _, s := range live {
		select {
		case <-s.drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
