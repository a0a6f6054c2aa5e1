package domain

import "time"

type Channel struct {
	ChannelID   string    `gorm:"column:channel_id;primaryKey" json:"channel_id"`
	ChannelName string    `gorm:"column:channel_name;not null;default:''" json:"channel_name"`
	VideoCount  int64     `gorm:"column:video_count;not null;default:0" json:"video_count"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Channel) TableName() string { return "channel" }

// Topic nodes are created on first mention and never auto-deleted.
// NormalizedName is lowercase and trimmed; Name keeps the display casing.
type Topic struct {
	NormalizedName string    `gorm:"column:normalized_name;primaryKey" json:"normalized_name"`
	Name           string    `gorm:"column:name;not null;default:''" json:"name"`
	VideoCount     int64     `gorm:"column:video_count;not null;default:0" json:"video_count"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Topic) TableName() string { return "topic" }

type VideoChannel struct {
	VideoID   string    `gorm:"column:video_id;primaryKey" json:"video_id"`
	ChannelID string    `gorm:"column:channel_id;primaryKey;index" json:"channel_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (VideoChannel) TableName() string { return "video_channel" }

type VideoTopic struct {
	VideoID        string    `gorm:"column:video_id;primaryKey" json:"video_id"`
	TopicName      string    `gorm:"column:topic_name;primaryKey;index" json:"topic_name"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (VideoTopic) TableName() string { return "video_topic" }
