package domain

import (
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
)

// VideoChunk is one timestamp-anchored slice of a transcript; the unit of
// vector search granularity. ChunkID is "{video_id}:{chunk_index}".
type VideoChunk struct {
	ChunkID    string `gorm:"column:chunk_id;primaryKey" json:"chunk_id"`
	VideoID    string `gorm:"column:video_id;not null;index" json:"video_id"`
	ChunkIndex int    `gorm:"column:chunk_index;not null" json:"chunk_index"`

	Text       string  `gorm:"column:text;type:text;not null;default:''" json:"text"`
	StartTime  float64 `gorm:"column:start_time;not null;default:0" json:"start_time"`
	EndTime    float64 `gorm:"column:end_time;not null;default:0" json:"end_time"`
	TokenCount int     `gorm:"column:token_count;not null;default:0" json:"token_count"`

	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(1024)" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (VideoChunk) TableName() string { return "video_chunk" }

// ChunkID derives the primary key for a video/index pair.
func ChunkID(videoID string, index int) string {
	return fmt.Sprintf("%s:%d", videoID, index)
}
