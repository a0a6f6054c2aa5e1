package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MemoryCategoryPreference = "preference"
	MemoryCategoryFact       = "fact"
	MemoryCategoryContext    = "context"
	MemoryCategoryGeneral    = "general"
)

// MemoryItem is a long-term user preference or fact surfaced into chat
// prompts by relevance-weighted retrieval.
type MemoryItem struct {
	ID                   uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Content              string     `gorm:"column:content;type:text;not null" json:"content"`
	Category             string     `gorm:"column:category;not null;default:'general';index" json:"category"`
	SourceConversationID *uuid.UUID `gorm:"type:uuid;column:source_conversation_id" json:"source_conversation_id,omitempty"`
	RelevanceScore       float64    `gorm:"column:relevance_score;not null;default:1" json:"relevance_score"`
	CreatedAt            time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (MemoryItem) TableName() string { return "memory" }

func ValidMemoryCategory(c string) bool {
	switch c {
	case MemoryCategoryPreference, MemoryCategoryFact, MemoryCategoryContext, MemoryCategoryGeneral:
		return true
	}
	return false
}
