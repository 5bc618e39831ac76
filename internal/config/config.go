package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Env        string
	ListenAddr string

	TranscriberProvider string
	DeepgramAPIKey      string
	DeepgramModel       string

	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string

	AnthropicAPIKey      string
	TranslationModel     string
	TranslationCacheSize int

	DefaultSourceLanguage    string
	SupportedTargetLanguages []string
	SampleRateHertz          int

	SegmentBytes   int
	BufferCapBytes int

	MaxRetries            int
	RetryBaseDelay        time.Duration
	ConnectTimeout        time.Duration
	TranslationTimeout    time.Duration
	DrainTimeout          time.Duration
	IdleTimeout           time.Duration
	MaxSessionDurationMin int

	DatabaseURL          string
	TranscriptWebhookURL string
}

const (
	ProviderDeepgram = "deepgram"
	ProviderGoogle   = "google"
)

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.TranscriberProvider {
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when TRANSCRIBER_PROVIDER=%s", ProviderDeepgram)
		}
	case ProviderGoogle:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when TRANSCRIBER_PROVIDER=%s", ProviderGoogle)
		}
	default:
		return fmt.Errorf("TRANSCRIBER_PROVIDER must be %q or %q, got %q", ProviderDeepgram, ProviderGoogle, c.TranscriberProvider)
	}
	if len(c.SupportedTargetLanguages) == 0 {
		return fmt.Errorf("SUPPORTED_TARGET_LANGUAGES must list at least one language")
	}
	if c.SegmentBytes <= 0 {
		return fmt.Errorf("SEGMENT_BYTES must be positive, got %d", c.SegmentBytes)
	}
	if c.BufferCapBytes < c.SegmentBytes {
		return fmt.Errorf("BUFFER_CAP_BYTES must be >= SEGMENT_BYTES, got %d < %d", c.BufferCapBytes, c.SegmentBytes)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be non-negative, got %d", c.MaxRetries)
	}
	if c.MaxSessionDurationMin <= 0 {
		return fmt.Errorf("MAX_SESSION_DURATION_MIN must be positive, got %d", c.MaxSessionDurationMin)
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"RETRY_BASE_DELAY", c.RetryBaseDelay},
		{"CONNECT_TIMEOUT", c.ConnectTimeout},
		{"TRANSLATION_TIMEOUT", c.TranslationTimeout},
		{"DRAIN_TIMEOUT", c.DrainTimeout},
		{"IDLE_TIMEOUT", c.IdleTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "LISTEN_ADDR", value: c.ListenAddr},
		{name: "ANTHROPIC_API_KEY", value: c.AnthropicAPIKey},
		{name: "DEFAULT_SOURCE_LANGUAGE", value: c.DefaultSourceLanguage},
	}
}

// SupportsTargetLanguage reports whether lang is in the configured target set.
// Comparison is case-insensitive because browser clients are inconsistent
// about language tag casing.
func (c *Config) SupportsTargetLanguage(lang string) bool {
	for _, l := range c.SupportedTargetLanguages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
