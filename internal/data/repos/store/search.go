package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/platform/infinity"
)

// VideoHit is one video-level search result. Score is cosine similarity
// in [−1, 1], higher is better.
type VideoHit struct {
	Video types.Video `gorm:"embedded"`
	Score float64     `gorm:"column:score" json:"score"`
}

// ChunkHit is one chunk-level search result carrying enough video context
// to render a source reference without a second query.
type ChunkHit struct {
	ChunkID    string  `gorm:"column:chunk_id" json:"chunk_id"`
	VideoID    string  `gorm:"column:video_id" json:"video_id"`
	ChunkIndex int     `gorm:"column:chunk_index" json:"chunk_index"`
	Text       string  `gorm:"column:text" json:"text"`
	StartTime  float64 `gorm:"column:start_time" json:"start_time"`
	EndTime    float64 `gorm:"column:end_time" json:"end_time"`
	VideoTitle  string  `gorm:"column:video_title" json:"video_title"`
	VideoURL    string  `gorm:"column:video_url" json:"video_url"`
	ChannelName string  `gorm:"column:channel_name" json:"channel_name"`
	Score       float64 `gorm:"column:score" json:"score"`
}

// SearchFilters narrows search by metadata. Zero values mean no filter.
// Channel matches channel_id exactly or channel_name case-insensitively.
type SearchFilters struct {
	Channel   string
	TopicName string
	MinDate   *time.Time
	MaxDate   *time.Time
}

type SearchRepo interface {
	SearchVideosByEmbedding(dbc dbctx.Context, embedding []float32, limit, offset int, filters SearchFilters) ([]VideoHit, error)
	SearchChunksByEmbedding(dbc dbctx.Context, embedding []float32, limit int, filters SearchFilters) ([]ChunkHit, error)
	// SearchVideosByText embeds the query and delegates to
	// SearchVideosByEmbedding, so results carry scores.
	SearchVideosByText(dbc dbctx.Context, query string, limit, offset int, filters SearchFilters) ([]VideoHit, error)
}

type searchRepo struct {
	db        *gorm.DB
	log       *logger.Logger
	dimension int
	embedder  infinity.Client
}

func NewSearchRepo(db *gorm.DB, log *logger.Logger, dimension int, embedder infinity.Client) SearchRepo {
	return &searchRepo{
		db:        db,
		log:       log.With("repo", "SearchRepo"),
		dimension: dimension,
		embedder:  embedder,
	}
}

func (r *searchRepo) validate(embedding []float32, limit, offset int, filters SearchFilters) error {
	if limit <= 0 || limit > 100 {
		return fmt.Errorf("%w: limit %d out of range 1..100", apperr.ErrInvalidArgument, limit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset %d must be non-negative", apperr.ErrInvalidArgument, offset)
	}
	if filters.MinDate != nil && filters.MaxDate != nil && filters.MinDate.After(*filters.MaxDate) {
		return fmt.Errorf("%w: min_date after max_date", apperr.ErrInvalidArgument)
	}
	if len(embedding) != r.dimension {
		return fmt.Errorf("%w: embedding has %d dims, want %d", apperr.ErrDimensionMismatch, len(embedding), r.dimension)
	}
	return nil
}

// applyFilters narrows by channel and publish date. alias is the video
// table's alias in the running query.
func applyFilters(q *gorm.DB, alias string, f SearchFilters) *gorm.DB {
	if f.Channel != "" {
		q = q.Where(alias+".channel_id = ? OR "+alias+".channel_name ILIKE ?", f.Channel, f.Channel)
	}
	if f.MinDate != nil {
		q = q.Where(alias+".published_at >= ?", *f.MinDate)
	}
	if f.MaxDate != nil {
		q = q.Where(alias+".published_at <= ?", *f.MaxDate)
	}
	return q
}

// Ties on score break by recency, then by video id, so repeated searches
// return rows in a stable order and pagination windows stay disjoint.
func (r *searchRepo) SearchVideosByEmbedding(dbc dbctx.Context, embedding []float32, limit, offset int, filters SearchFilters) ([]VideoHit, error) {
	if err := r.validate(embedding, limit, offset, filters); err != nil {
		return nil, err
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	vec := pgvector.NewVector(embedding)
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.Video{}).
		Select("video.*, 1 - (video.embedding <=> ?) AS score", vec).
		Where("video.embedding IS NOT NULL")
	q = applyFilters(q, "video", filters)
	if filters.TopicName != "" {
		q = q.Joins("JOIN video_topic vt ON vt.video_id = video.video_id").
			Where("vt.topic_name = ?", filters.TopicName)
	}

	var hits []VideoHit
	err := q.Order("score DESC, video.updated_at DESC, video.video_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&hits).Error
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (r *searchRepo) SearchChunksByEmbedding(dbc dbctx.Context, embedding []float32, limit int, filters SearchFilters) ([]ChunkHit, error) {
	if err := r.validate(embedding, limit, 0, filters); err != nil {
		return nil, err
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	vec := pgvector.NewVector(embedding)
	q := transaction.WithContext(dbc.Ctx).
		Table("video_chunk AS vc").
		Select(`vc.chunk_id, vc.video_id, vc.chunk_index, vc.text,
			vc.start_time, vc.end_time,
			v.title AS video_title, v.url AS video_url, v.channel_name,
			1 - (vc.embedding <=> ?) AS score`, vec).
		Joins("JOIN video v ON v.video_id = vc.video_id").
		Where("vc.embedding IS NOT NULL")
	q = applyFilters(q, "v", filters)
	if filters.TopicName != "" {
		q = q.Joins("JOIN video_topic vt ON vt.video_id = v.video_id").
			Where("vt.topic_name = ?", filters.TopicName)
	}

	var hits []ChunkHit
	err := q.Order("score DESC, v.updated_at DESC, vc.video_id ASC, vc.chunk_index ASC").
		Limit(limit).
		Scan(&hits).Error
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (r *searchRepo) SearchVideosByText(dbc dbctx.Context, query string, limit, offset int, filters SearchFilters) ([]VideoHit, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, fmt.Errorf("%w: query must be at least 2 characters", apperr.ErrInvalidArgument)
	}
	embedding, err := r.embedder.Embed(dbc.Ctx, query)
	if err != nil {
		return nil, err
	}
	return r.SearchVideosByEmbedding(dbc, embedding, limit, offset, filters)
}
