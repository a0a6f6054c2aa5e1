package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mentat-backend/internal/archive"
	"github.com/yungbote/mentat-backend/internal/chunker"
	"github.com/yungbote/mentat-backend/internal/data/repos/store"
	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/observability"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/platform/infinity"
)

// ChunkVersion tags rows produced by the current chunking algorithm.
// Bump it to force a re-chunk of the whole corpus on the next run.
const ChunkVersion = "v1.0"

const (
	StepChunk   = "chunk"
	StepEmbed   = "embed"
	StepSummary = "summary"
	StepAll     = "all"
)

// embedBatchSize bounds one embeddings request; Infinity handles larger
// batches but latency grows superlinearly past this.
const embedBatchSize = 64

// embedConcurrency bounds in-flight embedding requests for one video.
const embedConcurrency = 2

type Deps struct {
	Log      *logger.Logger
	Videos   store.VideoRepo
	Chunks   store.ChunkRepo
	Pipeline store.PipelineRepo
	Archives archive.Reader
	Embedder infinity.Client
	Metrics  *observability.Metrics
	ChunkCfg chunker.Config
	// VideoTimeout is the per-video deadline; a video that blows it is
	// recorded as a timeout failure and the run moves on.
	VideoTimeout time.Duration
	// Progress receives one event per processed video when set. The
	// consumer must drain it; delivery is in processing order.
	Progress chan<- ProgressEvent
}

// ProgressEvent reports the outcome of one video in one step.
type ProgressEvent struct {
	Step     string        `json:"step"`
	VideoID  string        `json:"video_id"`
	Reason   string        `json:"reason,omitempty"`
	OK       bool          `json:"ok"`
	Duration time.Duration `json:"duration"`
}

// StepReport summarizes one step of one run.
type StepReport struct {
	Step       string         `json:"step"`
	Candidates int            `json:"candidates"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Errors     map[string]int `json:"errors,omitempty"`
}

type Report struct {
	DryRun bool         `json:"dry_run"`
	Steps  []StepReport `json:"steps"`
}

// Failed reports whether any video in any step failed.
func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Failed > 0 {
			return true
		}
	}
	return false
}

// Worker drives videos through the chunk → embed → summary pipeline.
// Per-video failures are independent; a failed video keeps its
// pipeline_state untouched so the next run retries it.
type Worker struct {
	deps Deps
	log  *logger.Logger
}

func NewWorker(deps Deps) (*Worker, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.Videos == nil || deps.Chunks == nil || deps.Pipeline == nil {
		return nil, fmt.Errorf("store repos required")
	}
	if deps.VideoTimeout <= 0 {
		deps.VideoTimeout = 5 * time.Minute
	}
	if deps.ChunkCfg == (chunker.Config{}) {
		deps.ChunkCfg = chunker.DefaultConfig()
	}
	return &Worker{deps: deps, log: deps.Log.With("service", "BackfillWorker")}, nil
}

// EmbedVersion derives the embed step's version tag from the model name
// and dimension, e.g. "bge-m3.1024".
func (w *Worker) EmbedVersion() string {
	dim := 0
	if w.deps.Embedder != nil {
		dim = w.deps.Embedder.Dimension()
	}
	return fmt.Sprintf("bge-m3.%d", dim)
}

func (w *Worker) Status(ctx context.Context) (*store.Stats, error) {
	return w.deps.Videos.Stats(dbctx.Context{Ctx: ctx})
}

func (w *Worker) Run(ctx context.Context, step string, batch int, dryRun bool) (*Report, error) {
	if batch <= 0 {
		batch = 100
	}
	var steps []string
	switch step {
	case StepChunk, StepEmbed, StepSummary:
		steps = []string{step}
	case StepAll, "":
		steps = []string{StepChunk, StepEmbed, StepSummary}
	default:
		return nil, fmt.Errorf("%w: unknown step %q", apperr.ErrInvalidArgument, step)
	}

	report := &Report{DryRun: dryRun}
	for _, s := range steps {
		sr, err := w.runStep(ctx, s, batch, dryRun)
		if err != nil {
			return report, err
		}
		report.Steps = append(report.Steps, *sr)
	}
	return report, nil
}

func (w *Worker) runStep(ctx context.Context, step string, batch int, dryRun bool) (*StepReport, error) {
	dbc := dbctx.Context{Ctx: ctx}

	var (
		candidates []*types.Video
		err        error
		process    func(ctx context.Context, v *types.Video) error
	)
	switch step {
	case StepChunk:
		candidates, err = w.deps.Pipeline.ChunkCandidates(dbc, ChunkVersion, batch)
		process = w.chunkOne
	case StepEmbed:
		candidates, err = w.deps.Pipeline.EmbedCandidates(dbc, w.EmbedVersion(), batch)
		process = w.embedOne
	case StepSummary:
		candidates, err = w.deps.Pipeline.SummaryCandidates(dbc, w.EmbedVersion(), batch)
		process = w.summaryOne
	default:
		return nil, fmt.Errorf("%w: unknown step %q", apperr.ErrInvalidArgument, step)
	}
	if err != nil {
		return nil, err
	}

	sr := &StepReport{Step: step, Candidates: len(candidates), Errors: map[string]int{}}
	if dryRun {
		w.log.Info("dry run", "step", step, "candidates", len(candidates))
		return sr, nil
	}

	// Candidates are processed one at a time so progress events arrive in
	// batch order.
	for _, v := range candidates {
		if err := ctx.Err(); err != nil {
			return sr, err
		}
		vctx, cancel := context.WithTimeout(ctx, w.deps.VideoTimeout)
		start := time.Now()
		err := process(vctx, v)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: video %s exceeded %s", apperr.ErrTimeout, v.VideoID, w.deps.VideoTimeout)
		}
		elapsed := time.Since(start)
		if w.deps.Metrics != nil {
			w.deps.Metrics.VideoDuration.WithLabelValues(step).Observe(elapsed.Seconds())
		}

		if err != nil {
			reason := failureReason(err)
			sr.Failed++
			sr.Errors[reason]++
			if w.deps.Metrics != nil {
				w.deps.Metrics.BackfillErrors.WithLabelValues(step, reason).Inc()
			}
			w.log.Warn("video failed", "step", step, "video_id", v.VideoID, "reason", reason, "error", err)
			w.emit(ctx, ProgressEvent{Step: step, VideoID: v.VideoID, Reason: reason, Duration: elapsed})
			continue // per-video failure does not stop the batch
		}
		sr.Succeeded++
		w.emit(ctx, ProgressEvent{Step: step, VideoID: v.VideoID, OK: true, Duration: elapsed})
	}

	w.log.Info("step finished",
		"step", step,
		"candidates", sr.Candidates,
		"succeeded", sr.Succeeded,
		"failed", sr.Failed,
	)
	return sr, nil
}

// emit delivers the event in order; run cancellation is the only way out
// of a stalled consumer.
func (w *Worker) emit(ctx context.Context, ev ProgressEvent) {
	if w.deps.Progress == nil {
		return
	}
	select {
	case w.deps.Progress <- ev:
	case <-ctx.Done():
	}
}

func (w *Worker) chunkOne(ctx context.Context, v *types.Video) error {
	dbc := dbctx.Context{Ctx: ctx}

	rec, err := w.deps.Archives.Read(ctx, v.ArchivePath)
	if err != nil {
		return err
	}

	var pieces []chunker.TranscriptChunk
	switch {
	case rec.HasTimedTranscript():
		pieces = chunker.ChunkTimed(rec.TimedTranscript, w.deps.ChunkCfg)
	case strings.TrimSpace(rec.RawTranscript) != "":
		pieces = chunker.ChunkPlain(rec.RawTranscript, w.deps.ChunkCfg)
	default:
		return errNoTranscript
	}

	rows := make([]*types.VideoChunk, len(pieces))
	for i, p := range pieces {
		rows[i] = &types.VideoChunk{
			ChunkID:    types.ChunkID(v.VideoID, p.Index),
			VideoID:    v.VideoID,
			ChunkIndex: p.Index,
			Text:       p.Text,
			StartTime:  p.StartTime,
			EndTime:    p.EndTime,
			TokenCount: p.TokenCount,
		}
	}

	if err := w.deps.Chunks.ReplaceForVideo(dbc, v.VideoID, rows); err != nil {
		return err
	}
	if err := w.deps.Pipeline.UpdatePipelineState(dbc, v.VideoID, store.StepChunkTranscript, ChunkVersion); err != nil {
		return err
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.VideosChunked.Inc()
	}
	w.log.Debug("video chunked", "video_id", v.VideoID, "chunks", len(rows))
	return nil
}

func (w *Worker) embedOne(ctx context.Context, v *types.Video) error {
	dbc := dbctx.Context{Ctx: ctx}

	chunks, err := w.deps.Chunks.GetForVideo(dbc, v.VideoID)
	if err != nil {
		return err
	}
	var pending []*types.VideoChunk
	for _, c := range chunks {
		if c.Embedding == nil {
			pending = append(pending, c)
		}
	}

	// Batches within one video may embed concurrently; the video itself
	// still completes before the next one starts.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for from := 0; from < len(pending); from += embedBatchSize {
		to := from + embedBatchSize
		if to > len(pending) {
			to = len(pending)
		}
		batch := pending[from:to]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}

			start := time.Now()
			vecs, err := w.deps.Embedder.EmbedBatch(gctx, texts)
			if w.deps.Metrics != nil {
				w.deps.Metrics.EmbedLatency.Observe(time.Since(start).Seconds())
			}
			if err != nil {
				return err
			}

			for i, c := range batch {
				vec := pgvector.NewVector(vecs[i])
				c.Embedding = &vec
				if err := w.deps.Chunks.UpsertOne(dbc, c); err != nil {
					return err
				}
				if w.deps.Metrics != nil {
					w.deps.Metrics.ChunksEmbedded.Inc()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := w.deps.Pipeline.UpdatePipelineState(dbc, v.VideoID, store.StepEmbedChunks, w.EmbedVersion()); err != nil {
		return err
	}
	if w.deps.Metrics != nil {
		w.deps.Metrics.VideosEmbedded.Inc()
	}
	w.log.Debug("video embedded", "video_id", v.VideoID, "chunks_embedded", len(pending))
	return nil
}

// summaryOne embeds a video-level digest (title, channel, opening chunks)
// for coarse video search. The embedding client truncates overlong input.
func (w *Worker) summaryOne(ctx context.Context, v *types.Video) error {
	dbc := dbctx.Context{Ctx: ctx}

	chunks, err := w.deps.Chunks.GetForVideo(dbc, v.VideoID)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(v.Title)
	if v.ChannelName != "" {
		b.WriteString("\n")
		b.WriteString(v.ChannelName)
	}
	for i, c := range chunks {
		if i >= 3 {
			break
		}
		b.WriteString("\n")
		b.WriteString(c.Text)
	}

	vec, err := w.deps.Embedder.Embed(ctx, b.String())
	if err != nil {
		return err
	}
	pv := pgvector.NewVector(vec)
	if err := w.deps.Videos.UpdateEmbedding(dbc, v.VideoID, &pv); err != nil {
		return err
	}
	return w.deps.Pipeline.UpdatePipelineState(dbc, v.VideoID, store.StepEmbedSummary, w.EmbedVersion())
}

var errNoTranscript = errors.New("no transcript in archive")

func failureReason(err error) string {
	switch {
	case errors.Is(err, errNoTranscript):
		return "no_transcript"
	case errors.Is(err, apperr.ErrNotFound):
		return "archive_missing"
	case errors.Is(err, apperr.ErrMalformedArchive):
		return "malformed_archive"
	case errors.Is(err, apperr.ErrInvalidChunkSet):
		return "invalid_chunk_set"
	case errors.Is(err, apperr.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, apperr.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, apperr.ErrTimeout):
		return "timeout"
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "unknown"
	}
}
