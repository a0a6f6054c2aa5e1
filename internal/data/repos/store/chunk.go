package store

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

type ChunkRepo interface {
	// UpsertChunks writes a batch keyed by chunk_id. The batch must cover
	// chunk_index 0..N-1 for a single video with no gaps; anything else is
	// rejected with ErrInvalidChunkSet.
	UpsertChunks(dbc dbctx.Context, chunks []*types.VideoChunk) error
	// UpsertOne writes a single chunk without the contiguity check; used
	// when filling embeddings into existing rows.
	UpsertOne(dbc dbctx.Context, chunk *types.VideoChunk) error
	// ReplaceForVideo deletes the previous chunk set and writes the new
	// one in a single transaction, so readers see either set, never a mix.
	ReplaceForVideo(dbc dbctx.Context, videoID string, chunks []*types.VideoChunk) error
	GetForVideo(dbc dbctx.Context, videoID string) ([]*types.VideoChunk, error)
	DeleteForVideo(dbc dbctx.Context, videoID string) error
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, log *logger.Logger) ChunkRepo {
	return &chunkRepo{db: db, log: log.With("repo", "ChunkRepo")}
}

func validateChunkSet(chunks []*types.VideoChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	videoID := chunks[0].VideoID
	seen := make([]int, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			return fmt.Errorf("%w: nil chunk", apperr.ErrInvalidChunkSet)
		}
		if c.VideoID != videoID {
			return fmt.Errorf("%w: mixed video ids %q and %q", apperr.ErrInvalidChunkSet, videoID, c.VideoID)
		}
		if want := types.ChunkID(c.VideoID, c.ChunkIndex); c.ChunkID != want {
			return fmt.Errorf("%w: chunk id %q, want %q", apperr.ErrInvalidChunkSet, c.ChunkID, want)
		}
		if c.StartTime > c.EndTime {
			return fmt.Errorf("%w: chunk %d start %v after end %v", apperr.ErrInvalidChunkSet, c.ChunkIndex, c.StartTime, c.EndTime)
		}
		seen = append(seen, c.ChunkIndex)
	}
	sort.Ints(seen)
	for i, idx := range seen {
		if idx != i {
			return fmt.Errorf("%w: indices not contiguous from 0: %v", apperr.ErrInvalidChunkSet, seen)
		}
	}
	return nil
}

func (r *chunkRepo) UpsertChunks(dbc dbctx.Context, chunks []*types.VideoChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunkSet(chunks); err != nil {
		return err
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	// Keep batches small because Text is large.
	const batchSize = 100
	return transaction.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chunk_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"text", "start_time", "end_time", "token_count", "embedding",
		}),
	}).CreateInBatches(chunks, batchSize).Error
}

func (r *chunkRepo) UpsertOne(dbc dbctx.Context, chunk *types.VideoChunk) error {
	if chunk == nil || strings.TrimSpace(chunk.ChunkID) == "" {
		return fmt.Errorf("%w: missing chunk_id", apperr.ErrInvalidArgument)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chunk_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"text", "start_time", "end_time", "token_count", "embedding",
		}),
	}).Create(chunk).Error
}

func (r *chunkRepo) ReplaceForVideo(dbc dbctx.Context, videoID string, chunks []*types.VideoChunk) error {
	if strings.TrimSpace(videoID) == "" {
		return fmt.Errorf("%w: missing video_id", apperr.ErrInvalidArgument)
	}
	if err := validateChunkSet(chunks); err != nil {
		return err
	}
	for _, c := range chunks {
		if c.VideoID != videoID {
			return fmt.Errorf("%w: chunk for video %q in replace of %q", apperr.ErrInvalidChunkSet, c.VideoID, videoID)
		}
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	run := func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", videoID).Delete(&types.VideoChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		const batchSize = 100
		return tx.CreateInBatches(chunks, batchSize).Error
	}

	// An ambient transaction already gives atomicity; otherwise open one.
	if dbc.Tx != nil {
		return run(transaction.WithContext(dbc.Ctx))
	}
	return transaction.WithContext(dbc.Ctx).Transaction(run)
}

func (r *chunkRepo) GetForVideo(dbc dbctx.Context, videoID string) ([]*types.VideoChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.VideoChunk
	err := transaction.WithContext(dbc.Ctx).
		Where("video_id = ?", videoID).
		Order("chunk_index ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkRepo) DeleteForVideo(dbc dbctx.Context, videoID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("video_id = ?", videoID).
		Delete(&types.VideoChunk{}).Error
}
