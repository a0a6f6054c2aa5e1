package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mentat-backend/internal/domain"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

// UpsertResult reports whether an upsert created a new row or replaced an
// existing one.
type UpsertResult string

const (
	UpsertCreated UpsertResult = "created"
	UpsertUpdated UpsertResult = "updated"
)

// Stats is the store-wide counter snapshot surfaced by the backfill status
// command and the stats endpoint.
type Stats struct {
	TotalVideos      int64 `json:"total_videos"`
	VideosWithArchive int64 `json:"videos_with_archive"`
	VideosChunked    int64 `json:"videos_chunked"`
	VideosEmbedded   int64 `json:"videos_embedded"`
	TotalChunks      int64 `json:"total_chunks"`
	ChunksEmbedded   int64 `json:"chunks_embedded"`
}

type VideoRepo interface {
	Upsert(dbc dbctx.Context, v *types.Video) (UpsertResult, error)
	Get(dbc dbctx.Context, videoID string) (*types.Video, error)
	List(dbc dbctx.Context, limit, offset int) ([]*types.Video, error)
	// UpdateEmbedding writes the video-level summary embedding.
	UpdateEmbedding(dbc dbctx.Context, videoID string, embedding *pgvector.Vector) error
	Stats(dbc dbctx.Context) (*Stats, error)
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, log *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: log.With("repo", "VideoRepo")}
}

// Upsert replaces all scalar fields of the row keyed by video_id. Chunk
// rows, pipeline_state, lock_version and embedding are preserved on
// update; re-ingesting metadata never resets pipeline progress.
func (r *videoRepo) Upsert(dbc dbctx.Context, v *types.Video) (UpsertResult, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if v == nil || strings.TrimSpace(v.VideoID) == "" {
		return "", fmt.Errorf("%w: missing video_id", apperr.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	v.UpdatedAt = now
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}

	var existing int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Video{}).
		Where("video_id = ?", v.VideoID).
		Count(&existing).Error; err != nil {
		return "", err
	}

	if err := transaction.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"url", "title", "channel_id", "channel_name",
			"duration_seconds", "view_count", "published_at", "fetched_at",
			"archive_path", "updated_at",
		}),
	}).Create(v).Error; err != nil {
		return "", err
	}

	if existing > 0 {
		return UpsertUpdated, nil
	}
	return UpsertCreated, nil
}

func (r *videoRepo) Get(dbc dbctx.Context, videoID string) (*types.Video, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var v types.Video
	err := transaction.WithContext(dbc.Ctx).
		Where("video_id = ?", videoID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: video %s", apperr.ErrNotFound, videoID)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *videoRepo) List(dbc dbctx.Context, limit, offset int) ([]*types.Video, error) {
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
	var out []*types.Video
	err := transaction.WithContext(dbc.Ctx).
		Order("updated_at DESC, video_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *videoRepo) UpdateEmbedding(dbc dbctx.Context, videoID string, embedding *pgvector.Vector) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Video{}).
		Where("video_id = ?", videoID).
		Updates(map[string]interface{}{
			"embedding":  embedding,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: video %s", apperr.ErrNotFound, videoID)
	}
	return nil
}

func (r *videoRepo) Stats(dbc dbctx.Context) (*Stats, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var s Stats
	counts := []struct {
		dst   *int64
		model any
		where string
	}{
		{&s.TotalVideos, &types.Video{}, ""},
		{&s.VideosWithArchive, &types.Video{}, "archive_path IS NOT NULL AND archive_path <> ''"},
		{&s.VideosChunked, &types.Video{}, "pipeline_state ->> 'chunk_transcript' IS NOT NULL"},
		{&s.VideosEmbedded, &types.Video{}, "pipeline_state ->> 'embed_chunks' IS NOT NULL"},
		{&s.TotalChunks, &types.VideoChunk{}, ""},
		{&s.ChunksEmbedded, &types.VideoChunk{}, "embedding IS NOT NULL"},
	}
	for _, c := range counts {
		q := transaction.WithContext(dbc.Ctx).Model(c.model)
		if c.where != "" {
			q = q.Where(c.where)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return &s, nil
}
