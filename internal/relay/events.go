package relay

// controlMessage is the first message a client sends after connecting.
type controlMessage struct {
	SourceLanguage  string   `json:"sourceLanguage"`
	TargetLanguages []string `json:"targetLanguages"`
	Encoding        string   `json:"encoding,omitempty"`
}

const (
	transcriptKindPartial = "partial"
	transcriptKindFinal   = "final"
)

type transcriptEvent struct {
	Type string `json:"type"`
	Kind string `json:"kind"`
	Seq  int64  `json:"seq"`
	Text string `json:"text"`
}

func newTranscriptEvent(kind string, seq int64, text string) transcriptEvent {
	return transcriptEvent{Type: "transcript", Kind: kind, Seq: seq, Text: text}
}

type translationEvent struct {
	Type     string `json:"type"`
	Seq      int64  `json:"seq"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

func newTranslationEvent(seq int64, language, text string) translationEvent {
	return translationEvent{Type: "translation", Seq: seq, Language: language, Text: text}
}

type errorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	// Seq and Language identify the affected segment for per-segment
	// failures such as translation_failed.
	Seq      *int64 `json:"seq,omitempty"`
	Language string `json:"language,omitempty"`
}

func newErrorEvent(code, message string) errorEvent {
	return errorEvent{Type: "error", Code: code, Message: message}
}

func newTranslationFailedEvent(seq int64, language, message string) errorEvent {
	return errorEvent{Type: "error", Code: errCodeTranslationFailed, Message: message, Seq: &seq, Language: language}
}

const (
	errCodeConfiguration       = "configuration_error"
	errCodeBufferOverflow      = "buffer_overflow"
	errCodeTranscriptionFailed = "transcription_failed"
	errCodeTranslationFailed   = "translation_failed"
	errCodeIdleTimeout         = "idle_timeout"
)

// WebSocket close codes sent at teardown. 4xxx is the application-defined
// range.
const (
	closeCodeNormal             = 1000
	closeCodeConfigurationError = 4400
	closeCodeUpstreamFailure    = 4500
)
