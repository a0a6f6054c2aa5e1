package gcs

import (
	"testing"
	"time"
)

func TestArchiveKey(t *testing.T) {
	fetched := time.Date(2025, time.November, 3, 14, 30, 0, 0, time.UTC)
	got := ArchiveKey("dQw4w9WgXcQ", fetched)
	want := "archives/youtube/2025-11/dQw4w9WgXcQ.json"
	if got != want {
		t.Fatalf("ArchiveKey: got %q want %q", got, want)
	}
}

func TestArchiveKeyUsesUTCMonth(t *testing.T) {
	loc := time.FixedZone("UTC+14", 14*3600)
	// Local time is already January; UTC is still December.
	fetched := time.Date(2026, time.January, 1, 4, 0, 0, 0, loc)
	got := ArchiveKey("abc", fetched)
	want := "archives/youtube/2025-12/abc.json"
	if got != want {
		t.Fatalf("ArchiveKey: got %q want %q", got, want)
	}
}

func TestTranscriptAndLLMOutputKeys(t *testing.T) {
	if got, want := TranscriptKey("v1"), "transcripts/v1.txt"; got != want {
		t.Fatalf("TranscriptKey: got %q want %q", got, want)
	}
	if got, want := LLMOutputKey("v1", "summary"), "llm_outputs/v1/summary.json"; got != want {
		t.Fatalf("LLMOutputKey: got %q want %q", got, want)
	}
}
