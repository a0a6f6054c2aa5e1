package app

import (
	"gorm.io/gorm"

	chatrepo "github.com/yungbote/mentat-backend/internal/data/repos/chat"
	"github.com/yungbote/mentat-backend/internal/data/repos/store"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/platform/infinity"
)

type Repos struct {
	Videos        store.VideoRepo
	Chunks        store.ChunkRepo
	ChannelTopics store.ChannelTopicRepo
	Search        store.SearchRepo
	Pipeline      store.PipelineRepo

	Conversations chatrepo.ConversationRepo
	Messages      chatrepo.MessageRepo
	Memories      chatrepo.MemoryRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger, dimension int, embedder infinity.Client) Repos {
	return Repos{
		Videos:        store.NewVideoRepo(db, log),
		Chunks:        store.NewChunkRepo(db, log),
		ChannelTopics: store.NewChannelTopicRepo(db, log),
		Search:        store.NewSearchRepo(db, log, dimension, embedder),
		Pipeline:      store.NewPipelineRepo(db, log),

		Conversations: chatrepo.NewConversationRepo(db, log),
		Messages:      chatrepo.NewMessageRepo(db, log),
		Memories:      chatrepo.NewMemoryRepo(db, log),
	}
}
