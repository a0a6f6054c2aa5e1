package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

type MessageRepo interface {
	Append(dbc dbctx.Context, m *types.Message) error
	// AppendWithSources persists an assistant turn with its cited videos.
	AppendWithSources(dbc dbctx.Context, m *types.Message, sources []types.SourceRef) error
	ListForConversation(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.Message, error)
	CountForConversations(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Append(dbc dbctx.Context, m *types.Message) error {
	if m == nil || m.ConversationID == uuid.Nil {
		return fmt.Errorf("%w: missing conversation_id", apperr.ErrInvalidArgument)
	}
	if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
		return fmt.Errorf("%w: role %q", apperr.ErrInvalidArgument, m.Role)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).Create(m).Error
}

func (r *messageRepo) AppendWithSources(dbc dbctx.Context, m *types.Message, sources []types.SourceRef) error {
	if sources == nil {
		sources = []types.SourceRef{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	m.Sources = datatypes.JSON(raw)
	return r.Append(dbc, m)
}

func (r *messageRepo) CountForConversations(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := map[uuid.UUID]int64{}
	if len(ids) == 0 {
		return out, nil
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		ConversationID uuid.UUID `gorm:"column:conversation_id"`
		N              int64     `gorm:"column:n"`
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Select("conversation_id, COUNT(*) AS n").
		Where("conversation_id IN ?", ids).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ConversationID] = row.N
	}
	return out, nil
}

func (r *messageRepo) ListForConversation(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Message
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
