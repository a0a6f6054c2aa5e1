package domain

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Video is the canonical row for one ingested video. Chunks live in their
// own table; PipelineState maps step name to the version tag that last
// processed this video.
type Video struct {
	VideoID     string `gorm:"column:video_id;primaryKey" json:"video_id"`
	URL         string `gorm:"column:url;not null;default:''" json:"url"`
	Title       string `gorm:"column:title;not null;default:''" json:"title"`
	ChannelID   string `gorm:"column:channel_id;index" json:"channel_id,omitempty"`
	ChannelName string `gorm:"column:channel_name" json:"channel_name,omitempty"`

	DurationSeconds float64    `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	ViewCount       int64      `gorm:"column:view_count;not null;default:0" json:"view_count"`
	PublishedAt     *time.Time `gorm:"column:published_at;index" json:"published_at,omitempty"`
	FetchedAt       *time.Time `gorm:"column:fetched_at" json:"fetched_at,omitempty"`

	// ArchivePath is the blob store key of the canonical ingested record.
	ArchivePath string `gorm:"column:archive_path;not null;default:''" json:"archive_path,omitempty"`

	// Embedding is the optional video-level summary embedding.
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(1024)" json:"-"`

	PipelineState datatypes.JSONMap `gorm:"column:pipeline_state;type:jsonb;not null;default:'{}'" json:"pipeline_state"`
	// LockVersion guards read-modify-write of PipelineState.
	LockVersion int64 `gorm:"column:lock_version;not null;default:0" json:"-"`

	LastProcessedAt *time.Time `gorm:"column:last_processed_at" json:"last_processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Video) TableName() string { return "video" }

// PipelineVersion returns the recorded version for a step, or "" when the
// step has never run. Unknown step names are tolerated on read.
func (v *Video) PipelineVersion(step string) string {
	if v == nil || v.PipelineState == nil {
		return ""
	}
	raw, ok := v.PipelineState[step]
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}
