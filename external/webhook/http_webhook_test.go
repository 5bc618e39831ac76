package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/RijinRaju/healthcare-translation-backend/internal/webhook"
)

func samplePayload() webhook.TranscriptWebhookPayload {
	return webhook.TranscriptWebhookPayload{
		SchemaVersion:   webhook.TranscriptWebhookSchemaVersion,
		SessionID:       "11111111-2222-3333-4444-555555555555",
		SourceLanguage:  "en",
		TargetLanguages: []string{"es"},
		StartedAt:       "2026-08-30T10:00:00Z",
		EndedAt:         "2026-08-30T10:05:00Z",
		DurationSeconds: 300,
		StopReason:      "client disconnected",
		SegmentCount:    1,
		Segments: []webhook.TranscriptWebhookSegment{{
			Seq:          1,
			Transcript:   "hello world",
			SpokenAt:     "2026-08-30T10:00:05Z",
			Translations: map[string]string{"es": "hola mundo"},
		}},
		Transcript: "hello world",
	}
}

func TestSendTranscript_PostsJSONPayload(t *testing.T) {
	var gotContentType string
	var got webhook.TranscriptWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendTranscript(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
	if got.SchemaVersion != webhook.TranscriptWebhookSchemaVersion {
		t.Fatalf("unexpected schema version %d", got.SchemaVersion)
	}
	if got.SessionID != "11111111-2222-3333-4444-555555555555" || got.Transcript != "hello world" {
		t.Fatalf("unexpected payload %#v", got)
	}
	if got.Segments[0].Translations["es"] != "hola mundo" {
		t.Fatalf("unexpected segment %#v", got.Segments[0])
	}
}

func TestSendTranscript_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendTranscript(context.Background(), samplePayload()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestSendTranscript_NoURLConfigured(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	sender := NewHTTPSender("")
	if err := sender.SendTranscript(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatal("expected no request without a configured URL")
	}
}

func TestIsHTTPSuccessStatus(t *testing.T) {
	for status, want := range map[int]bool{
		http.StatusOK:                  true,
		http.StatusNoContent:           true,
		http.StatusMovedPermanently:    false,
		http.StatusBadRequest:          false,
		http.StatusInternalServerError: false,
	} {
		if got := isHTTPSuccessStatus(status); got != want {
			t.Fatalf("isHTTPSuccessStatus(%d) = %v, want %v", status, got, want)
		}
	}
}
