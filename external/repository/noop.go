package repository

import (
	"context"

	"github.com/RijinRaju/healthcare-translation-backend/internal/repository"
)

// NoopRepository is used when no DATABASE_URL is configured. The relay holds
// no state beyond a session's lifetime, so running without an archive is a
// fully supported mode.
type NoopRepository struct{}

func NewNoopRepository() repository.Repository {
	return &NoopRepository{}
}

func (NoopRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	return &repository.Session{
		ID:              input.SessionID,
		SourceLanguage:  input.SourceLanguage,
		TargetLanguages: input.TargetLanguages,
		StartedAt:       input.StartedAt,
		Status:          repository.SessionStatusRunning,
	}, nil
}

func (NoopRepository) UpdateSessionCompleted(_ context.Context, _ repository.CompleteSessionInput) error {
	return nil
}

func (NoopRepository) InsertSegment(_ context.Context, _ repository.InsertSegmentInput) error {
	return nil
}

func (NoopRepository) InsertTranslation(_ context.Context, _ repository.InsertTranslationInput) error {
	return nil
}

func (NoopRepository) ListSegmentsBySessionID(_ context.Context, _ string) ([]repository.TranscriptSegment, error) {
	return nil, nil
}

func (NoopRepository) ListTranslationsBySessionID(_ context.Context, _ string) ([]repository.Translation, error) {
	return nil, nil
}
