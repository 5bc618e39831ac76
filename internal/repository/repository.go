package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	SessionID       string
	SourceLanguage  string
	TargetLanguages []string
	StartedAt       time.Time
}

type CompleteSessionInput struct {
	SessionID  string
	EndedAt    time.Time
	StopReason string
}

type InsertSegmentInput struct {
	SessionID string
	Seq       int64
	Content   string
	SpokenAt  time.Time
}

type InsertTranslationInput struct {
	SessionID string
	Seq       int64
	Language  string
	Content   string
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	UpdateSessionCompleted(ctx context.Context, input CompleteSessionInput) error
}

type TranscriptRepository interface {
	InsertSegment(ctx context.Context, input InsertSegmentInput) error
	InsertTranslation(ctx context.Context, input InsertTranslationInput) error
	ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]TranscriptSegment, error)
	ListTranslationsBySessionID(ctx context.Context, sessionID string) ([]Translation, error)
}

// Repository archives sessions for later review. The relay never reads it
// on the hot path; a session behaves identically with the no-op
// implementation.
type Repository interface {
	SessionRepository
	TranscriptRepository
}
