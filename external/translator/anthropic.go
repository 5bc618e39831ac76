package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/RijinRaju/healthcare-translation-backend/internal/translator"
)

const (
	defaultAnthropicEndpoint = "https://api.anthropic.com"
	anthropicVersion         = "2023-06-01"
	maxTokens                = 1024

	systemPrompt = "You are a professional medical translator. Provide accurate translations of medical terminology. Translate only the text provided without adding any explanations or comments."
)

type AnthropicConfig struct {
	APIKey    string
	Endpoint  string
	Model     string
	CacheSize int
}

// AnthropicTranslator translates transcript segments through the Anthropic
// Messages API. Identical (language, text) requests are served from a
// bounded in-memory cache; live captions repeat themselves constantly.
type AnthropicTranslator struct {
	cfg    AnthropicConfig
	client *http.Client

	mu    sync.Mutex
	cache map[string]string
}

func NewAnthropicTranslator(cfg AnthropicConfig) translator.Translator {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultAnthropicEndpoint
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	return &AnthropicTranslator{
		cfg:    cfg,
		client: &http.Client{},
		cache:  make(map[string]string),
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (t *AnthropicTranslator) Translate(ctx context.Context, req translator.Request) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", nil
	}

	cacheKey := req.TargetLanguage + ":" + text
	t.mu.Lock()
	if cached, ok := t.cache[cacheKey]; ok {
		t.mu.Unlock()
		return cached, nil
	}
	t.mu.Unlock()

	body, err := json.Marshal(messagesRequest{
		Model:     t.cfg.Model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages: []message{{
			Role:    "user",
			Content: fmt.Sprintf("Translate this medical text to %s:\n\n%s", req.TargetLanguage, text),
		}},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", t.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: anthropic returned status %d: %s", translator.ErrTranslationFailed, resp.StatusCode, respBody)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse anthropic response: %w", err)
	}
	translated := ""
	for _, block := range parsed.Content {
		if block.Type == "text" {
			translated = block.Text
			break
		}
	}
	if translated == "" {
		return "", fmt.Errorf("%w: anthropic response contained no text content", translator.ErrTranslationFailed)
	}

	t.mu.Lock()
	if len(t.cache) >= t.cfg.CacheSize {
		for k := range t.cache {
			delete(t.cache, k)
			break
		}
	}
	t.cache[cacheKey] = translated
	t.mu.Unlock()
	return translated, nil
}
