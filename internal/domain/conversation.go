package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title     string    `gorm:"column:title;not null;default:''" json:"title"`
	Model     string    `gorm:"column:model;not null;default:''" json:"model"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversation" }

// Message is one turn of a conversation. Sources holds the serialized
// []SourceRef attached to assistant turns.
type Message struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Role           string         `gorm:"column:role;not null" json:"role"`
	Content        string         `gorm:"column:content;type:text;not null;default:''" json:"content"`
	Sources        datatypes.JSON `gorm:"column:sources;type:jsonb" json:"sources,omitempty"`
	Timestamp      time.Time      `gorm:"column:timestamp;not null;default:now();index" json:"timestamp"`
}

func (Message) TableName() string { return "message" }

// SourceRef is one cited video on an assistant turn.
type SourceRef struct {
	VideoID        string  `json:"video_id"`
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	RelevanceScore float64 `json:"relevance_score"`
}
