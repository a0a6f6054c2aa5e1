package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

// Pipeline step registry. Unknown step names in a stored state map are
// tolerated on read, but writes only accept these.
const (
	StepChunkTranscript = "chunk_transcript"
	StepEmbedChunks     = "embed_chunks"
	StepEmbedSummary    = "embed_summary"
)

var pipelineSteps = map[string]bool{
	StepChunkTranscript: true,
	StepEmbedChunks:     true,
	StepEmbedSummary:    true,
}

// KnownPipelineStep reports whether step is in the registry.
func KnownPipelineStep(step string) bool {
	return pipelineSteps[step]
}

// casRetries bounds the optimistic-lock retry loop. Contention on one
// video is rare (two pipeline steps racing), so a small budget suffices.
const casRetries = 3

type PipelineRepo interface {
	// UpdatePipelineState merges {step: version} into the video's state
	// map without dropping keys written concurrently by other steps.
	// Steps outside the registry are rejected.
	UpdatePipelineState(dbc dbctx.Context, videoID, step, version string) error
	// ChunkCandidates returns videos with an archive whose
	// chunk_transcript step is absent or recorded at a different version,
	// oldest first.
	ChunkCandidates(dbc dbctx.Context, version string, limit int) ([]*types.Video, error)
	// EmbedCandidates returns chunked videos whose embed_chunks step is
	// absent or stale, oldest first.
	EmbedCandidates(dbc dbctx.Context, version string, limit int) ([]*types.Video, error)
	// SummaryCandidates returns embedded videos whose embed_summary step
	// is absent or stale.
	SummaryCandidates(dbc dbctx.Context, version string, limit int) ([]*types.Video, error)
}

type pipelineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPipelineRepo(db *gorm.DB, log *logger.Logger) PipelineRepo {
	return &pipelineRepo{db: db, log: log.With("repo", "PipelineRepo")}
}

func (r *pipelineRepo) UpdatePipelineState(dbc dbctx.Context, videoID, step, version string) error {
	if strings.TrimSpace(videoID) == "" || strings.TrimSpace(step) == "" {
		return fmt.Errorf("%w: missing video_id or step", apperr.ErrInvalidArgument)
	}
	if !KnownPipelineStep(step) {
		return fmt.Errorf("%w: unknown pipeline step %q", apperr.ErrInvalidArgument, step)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		var v types.Video
		err := transaction.WithContext(dbc.Ctx).
			Select("video_id", "pipeline_state", "lock_version").
			Where("video_id = ?", videoID).
			First(&v).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: video %s", apperr.ErrNotFound, videoID)
		}
		if err != nil {
			return err
		}

		state := datatypes.JSONMap{}
		for k, val := range v.PipelineState {
			state[k] = val
		}
		state[step] = version

		now := time.Now().UTC()
		res := transaction.WithContext(dbc.Ctx).
			Model(&types.Video{}).
			Where("video_id = ? AND lock_version = ?", videoID, v.LockVersion).
			Updates(map[string]interface{}{
				"pipeline_state":    state,
				"lock_version":      v.LockVersion + 1,
				"last_processed_at": now,
				"updated_at":        now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		r.log.Debug("pipeline state write lost the race, retrying",
			"video_id", videoID, "step", step, "attempt", attempt+1)
	}
	return fmt.Errorf("pipeline state update for %s/%s: exhausted %d retries", videoID, step, casRetries)
}

// IS DISTINCT FROM treats an absent step and a version mismatch the same
// way, so bumping a step's version re-selects the whole corpus.
func (r *pipelineRepo) ChunkCandidates(dbc dbctx.Context, version string, limit int) ([]*types.Video, error) {
	return r.candidates(dbc, limit,
		fmt.Sprintf("archive_path <> '' AND pipeline_state ->> '%s' IS DISTINCT FROM ?", StepChunkTranscript),
		version)
}

func (r *pipelineRepo) EmbedCandidates(dbc dbctx.Context, version string, limit int) ([]*types.Video, error) {
	return r.candidates(dbc, limit,
		fmt.Sprintf("pipeline_state ->> '%s' IS NOT NULL AND pipeline_state ->> '%s' IS DISTINCT FROM ?",
			StepChunkTranscript, StepEmbedChunks),
		version)
}

func (r *pipelineRepo) SummaryCandidates(dbc dbctx.Context, version string, limit int) ([]*types.Video, error) {
	return r.candidates(dbc, limit,
		fmt.Sprintf("pipeline_state ->> '%s' IS NOT NULL AND pipeline_state ->> '%s' IS DISTINCT FROM ?",
			StepEmbedChunks, StepEmbedSummary),
		version)
}

func (r *pipelineRepo) candidates(dbc dbctx.Context, limit int, where string, args ...interface{}) ([]*types.Video, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	var out []*types.Video
	err := transaction.WithContext(dbc.Ctx).
		Where(where, args...).
		Order("updated_at ASC, video_id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
