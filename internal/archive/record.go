package archive

import "time"

// TimedSegment is one caption line with its start offset and duration,
// both in seconds.
type TimedSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// YouTubeMetadata carries the subset of video metadata the pipeline keeps.
type YouTubeMetadata struct {
	Title        string   `json:"title"`
	ChannelID    string   `json:"channel_id"`
	ChannelName  string   `json:"channel_name"`
	Duration     int      `json:"duration"`
	ViewCount    int64    `json:"view_count"`
	PublishDate  string   `json:"publish_date"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
}

// LLMOutput is one model-generated artifact attached to a record. Outputs
// keep the order they were produced in, and a type may repeat.
type LLMOutput struct {
	Type  string `json:"output_type"`
	Value any    `json:"output_value"`
}

// ImportMetadata records provenance for archives imported from an earlier
// collection run rather than fetched directly.
type ImportMetadata struct {
	Source     string `json:"source,omitempty"`
	ImportedAt string `json:"imported_at,omitempty"`
}

// Record is the canonical per-video archive document stored as one JSON
// object per video. video_id and url are required; everything else is
// best-effort.
type Record struct {
	VideoID         string          `json:"video_id"`
	URL             string          `json:"url"`
	FetchedAt       *time.Time      `json:"fetched_at,omitempty"`
	YouTubeMetadata YouTubeMetadata `json:"youtube_metadata"`
	RawTranscript   string          `json:"raw_transcript,omitempty"`
	TimedTranscript []TimedSegment  `json:"timed_transcript,omitempty"`
	LLMOutputs      []LLMOutput     `json:"llm_outputs,omitempty"`
	ImportMetadata  *ImportMetadata `json:"import_metadata,omitempty"`
}

// HasTimedTranscript reports whether timed segments are present; callers
// fall back to the raw transcript when they are not.
func (r *Record) HasTimedTranscript() bool {
	return len(r.TimedTranscript) > 0
}

// Output returns the first output of the given type, preserving the
// sequence order when a type appears more than once.
func (r *Record) Output(outputType string) (any, bool) {
	for _, o := range r.LLMOutputs {
		if o.Type == outputType {
			return o.Value, true
		}
	}
	return nil, false
}
