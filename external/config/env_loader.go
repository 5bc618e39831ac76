package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	internalconfig "github.com/RijinRaju/healthcare-translation-backend/internal/config"
)

type envConfig struct {
	Env        string `env:"ENV" envDefault:"production"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8000"`

	TranscriberProvider string `env:"TRANSCRIBER_PROVIDER" envDefault:"deepgram"`
	DeepgramAPIKey      string `env:"DEEPGRAM_API_KEY"`
	DeepgramModel       string `env:"DEEPGRAM_MODEL" envDefault:"nova-2-medical"`

	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"medical_conversation"`

	AnthropicAPIKey      string `env:"ANTHROPIC_API_KEY,required"`
	TranslationModel     string `env:"TRANSLATION_MODEL" envDefault:"claude-3-haiku-20240307"`
	TranslationCacheSize int    `env:"TRANSLATION_CACHE_SIZE" envDefault:"1024"`

	DefaultSourceLanguage    string   `env:"DEFAULT_SOURCE_LANGUAGE" envDefault:"en-US"`
	SupportedTargetLanguages []string `env:"SUPPORTED_TARGET_LANGUAGES" envDefault:"es,fr,de,pt,zh,ja,ar,hi"`
	SampleRateHertz          int      `env:"SAMPLE_RATE_HERTZ" envDefault:"16000"`

	SegmentBytes   int `env:"SEGMENT_BYTES" envDefault:"8192"`
	BufferCapBytes int `env:"BUFFER_CAP_BYTES" envDefault:"1048576"`

	MaxRetries            int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay        time.Duration `env:"RETRY_BASE_DELAY" envDefault:"250ms"`
	ConnectTimeout        time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	TranslationTimeout    time.Duration `env:"TRANSLATION_TIMEOUT" envDefault:"20s"`
	DrainTimeout          time.Duration `env:"DRAIN_TIMEOUT" envDefault:"10s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT" envDefault:"30s"`
	MaxSessionDurationMin int           `env:"MAX_SESSION_DURATION_MIN" envDefault:"120"`

	DatabaseURL          string `env:"DATABASE_URL"`
	TranscriptWebhookURL string `env:"TRANSCRIPT_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ListenAddr:                 raw.ListenAddr,
		TranscriberProvider:        raw.TranscriberProvider,
		DeepgramAPIKey:             raw.DeepgramAPIKey,
		DeepgramModel:              raw.DeepgramModel,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		AnthropicAPIKey:            raw.AnthropicAPIKey,
		TranslationModel:           raw.TranslationModel,
		TranslationCacheSize:       raw.TranslationCacheSize,
		DefaultSourceLanguage:      raw.DefaultSourceLanguage,
		SupportedTargetLanguages:   raw.SupportedTargetLanguages,
		SampleRateHertz:            raw.SampleRateHertz,
		SegmentBytes:               raw.SegmentBytes,
		BufferCapBytes:             raw.BufferCapBytes,
		MaxRetries:                 raw.MaxRetries,
		RetryBaseDelay:             raw.RetryBaseDelay,
		ConnectTimeout:             raw.ConnectTimeout,
		TranslationTimeout:         raw.TranslationTimeout,
		DrainTimeout:               raw.DrainTimeout,
		IdleTimeout:                raw.IdleTimeout,
		MaxSessionDurationMin:      raw.MaxSessionDurationMin,
		DatabaseURL:                raw.DatabaseURL,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
