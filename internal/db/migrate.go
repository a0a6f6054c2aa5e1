package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/mentat-backend/internal/domain"
)

// AutoMigrateAll creates the schema. Evolution is additive-only: columns
// and indexes are added, never dropped or retyped here.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Video catalog + chunks
		&types.Video{},
		&types.VideoChunk{},

		// Channels / topics + link tables
		&types.Channel{},
		&types.Topic{},
		&types.VideoChannel{},
		&types.VideoTopic{},

		// Chat
		&types.Conversation{},
		&types.Message{},
		&types.MemoryItem{},

		// Config
		&types.AppConfig{},
	); err != nil {
		return err
	}
	return EnsureIndexes(db)
}

// EnsureIndexes adds the secondary and vector indexes AutoMigrate does not
// express. Safe to re-run.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_video_chunk_video_index ON video_chunk(video_id, chunk_index);`,
		`CREATE INDEX IF NOT EXISTS idx_video_updated_at ON video(updated_at);`,
		`CREATE INDEX IF NOT EXISTS idx_video_channel_id ON video(channel_id);`,
		`CREATE INDEX IF NOT EXISTS idx_message_conversation_ts ON message(conversation_id, timestamp);`,
		// ivfflat needs rows to build useful lists; harmless when empty.
		`CREATE INDEX IF NOT EXISTS idx_video_embedding ON video USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);`,
		`CREATE INDEX IF NOT EXISTS idx_video_chunk_embedding ON video_chunk USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
