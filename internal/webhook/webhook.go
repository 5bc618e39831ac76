package webhook

import "context"

const TranscriptWebhookSchemaVersion = 1

type TranscriptWebhookSegment struct {
	Seq          int64             `json:"seq"`
	Transcript   string            `json:"transcript"`
	SpokenAt     string            `json:"spoken_at"`
	Translations map[string]string `json:"translations,omitempty"`
}

type TranscriptWebhookPayload struct {
	SchemaVersion   int                        `json:"schema_version"`
	SessionID       string                     `json:"session_id"`
	SourceLanguage  string                     `json:"source_language"`
	TargetLanguages []string                   `json:"target_languages"`
	StartedAt       string                     `json:"started_at"`
	EndedAt         string                     `json:"ended_at"`
	DurationSeconds int64                      `json:"duration_seconds"`
	StopReason      string                     `json:"stop_reason"`
	SegmentCount    int                        `json:"segment_count"`
	Segments        []TranscriptWebhookSegment `json:"segments"`
	Transcript      string                     `json:"transcript"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptWebhookPayload) error
}
