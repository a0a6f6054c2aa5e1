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

type MemoryRepo interface {
	Create(dbc dbctx.Context, item *types.MemoryItem) error
	Get(dbc dbctx.Context, id uuid.UUID) (*types.MemoryItem, error)
	List(dbc dbctx.Context, category string, limit int) ([]*types.MemoryItem, error)
	Update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	// Search matches the query as a substring of item contents.
	Search(dbc dbctx.Context, query string, limit int) ([]*types.MemoryItem, error)
	// ClearAll wipes every memory item and reports how many were removed.
	ClearAll(dbc dbctx.Context) (int64, error)
}

type memoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemoryRepo(db *gorm.DB, log *logger.Logger) MemoryRepo {
	return &memoryRepo{db: db, log: log.With("repo", "MemoryRepo")}
}

func (r *memoryRepo) Create(dbc dbctx.Context, item *types.MemoryItem) error {
	if item == nil || strings.TrimSpace(item.Content) == "" {
		return fmt.Errorf("%w: missing content", apperr.ErrInvalidArgument)
	}
	if item.Category == "" {
		item.Category = types.MemoryCategoryGeneral
	}
	if !types.ValidMemoryCategory(item.Category) {
		return fmt.Errorf("%w: category %q", apperr.ErrInvalidArgument, item.Category)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.RelevanceScore <= 0 {
		item.RelevanceScore = 1
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	return transaction.WithContext(dbc.Ctx).Create(item).Error
}

func (r *memoryRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.MemoryItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var item types.MemoryItem
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: memory %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *memoryRepo) List(dbc dbctx.Context, category string, limit int) ([]*types.MemoryItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 200
	}
	q := transaction.WithContext(dbc.Ctx).
		Order("relevance_score DESC, updated_at DESC").
		Limit(limit)
	if category != "" {
		if !types.ValidMemoryCategory(category) {
			return nil, fmt.Errorf("%w: category %q", apperr.ErrInvalidArgument, category)
		}
		q = q.Where("category = ?", category)
	}
	var out []*types.MemoryItem
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *memoryRepo) Update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if cat, ok := updates["category"].(string); ok && !types.ValidMemoryCategory(cat) {
		return fmt.Errorf("%w: category %q", apperr.ErrInvalidArgument, cat)
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.MemoryItem{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: memory %s", apperr.ErrNotFound, id)
	}
	return nil
}

func (r *memoryRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&types.MemoryItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: memory %s", apperr.ErrNotFound, id)
	}
	return nil
}

func (r *memoryRepo) Search(dbc dbctx.Context, query string, limit int) ([]*types.MemoryItem, error) {
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
	var out []*types.MemoryItem
	err := transaction.WithContext(dbc.Ctx).
		Where("content ILIKE ?", "%"+query+"%").
		Order("relevance_score DESC, updated_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *memoryRepo) ClearAll(dbc dbctx.Context) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Where("1 = 1").
		Delete(&types.MemoryItem{})
	if res.Error != nil {
		return 0, res.Error
	}
	r.log.Info("memory store cleared", "removed", res.RowsAffected)
	return res.RowsAffected, nil
}
