package gcs

import (
	"fmt"
	"time"
)

// Key builders for the persisted blob layout. Keys are hierarchical and
// stable; callers must not assemble them by hand.

func ArchiveKey(videoID string, fetchedAt time.Time) string {
	return fmt.Sprintf("archives/youtube/%s/%s.json", fetchedAt.UTC().Format("2006-01"), videoID)
}

func TranscriptKey(videoID string) string {
	return fmt.Sprintf("transcripts/%s.txt", videoID)
}

func LLMOutputKey(videoID, outputType string) string {
	return fmt.Sprintf("llm_outputs/%s/%s.json", videoID, outputType)
}
