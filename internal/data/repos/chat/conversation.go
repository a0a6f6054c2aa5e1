package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

type ConversationRepo interface {
	Create(dbc dbctx.Context, c *types.Conversation) error
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error)
	List(dbc dbctx.Context, limit, offset int) ([]*types.Conversation, error)
	// Update changes the title and/or model; nil fields stay untouched.
	Update(dbc dbctx.Context, id uuid.UUID, title, model *string) error
	Touch(dbc dbctx.Context, id uuid.UUID) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	// Search matches the query against titles and message contents.
	Search(dbc dbctx.Context, query string, limit int) ([]*types.Conversation, error)
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: log.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(dbc dbctx.Context, c *types.Conversation) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return transaction.WithContext(dbc.Ctx).Create(c).Error
}

func (r *conversationRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var c types.Conversation
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversationRepo) List(dbc dbctx.Context, limit, offset int) ([]*types.Conversation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.Conversation
	err := transaction.WithContext(dbc.Ctx).
		Order("updated_at DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversationRepo) Update(dbc dbctx.Context, id uuid.UUID, title, model *string) error {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if title != nil {
		updates["title"] = strings.TrimSpace(*title)
	}
	if model != nil {
		updates["model"] = strings.TrimSpace(*model)
	}
	if len(updates) == 1 {
		return fmt.Errorf("%w: nothing to update", apperr.ErrInvalidArgument)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, id)
	}
	return nil
}

func (r *conversationRepo) Touch(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// Delete removes the conversation and its messages. Memory items sourced
// from it keep their reference; long-term memory outlives the chat.
func (r *conversationRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	run := func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&types.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&types.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, id)
		}
		return nil
	}

	if dbc.Tx != nil {
		return run(transaction.WithContext(dbc.Ctx))
	}
	return transaction.WithContext(dbc.Ctx).Transaction(run)
}

func (r *conversationRepo) Search(dbc dbctx.Context, query string, limit int) ([]*types.Conversation, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, fmt.Errorf("%w: query must be at least 2 characters", apperr.ErrInvalidArgument)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	pattern := "%" + query + "%"
	var out []*types.Conversation
	err := transaction.WithContext(dbc.Ctx).
		Where("title ILIKE ? OR EXISTS (SELECT 1 FROM message m WHERE m.conversation_id = conversation.id AND m.content ILIKE ?)",
			pattern, pattern).
		Order("updated_at DESC, id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
