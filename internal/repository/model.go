package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	ID              string
	SourceLanguage  string
	TargetLanguages []string
	StartedAt       time.Time
	EndedAt         *time.Time
	Status          SessionStatus
	StopReason      string
}

type TranscriptSegment struct {
	ID        string
	SessionID string
	Seq       int64
	Content   string
	SpokenAt  time.Time
	CreatedAt time.Time
}

type Translation struct {
	ID        string
	SessionID string
	Seq       int64
	Language  string
	Content   string
	CreatedAt time.Time
}
