package backfill

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/yungbote/mentat-backend/internal/archive"
	"github.com/yungbote/mentat-backend/internal/chunker"
	"github.com/yungbote/mentat-backend/internal/data/repos/store"
	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

const fakeDim = 8

// ---- in-memory store fakes ----

type memStore struct {
	mu     sync.Mutex
	videos map[string]*types.Video
	chunks map[string][]*types.VideoChunk
}

func newMemStore() *memStore {
	return &memStore{
		videos: map[string]*types.Video{},
		chunks: map[string][]*types.VideoChunk{},
	}
}

func (m *memStore) addVideo(id, archivePath string) {
	m.videos[id] = &types.Video{
		VideoID:       id,
		URL:           archive.WatchURL(id),
		Title:         "Video " + id,
		ArchivePath:   archivePath,
		PipelineState: map[string]interface{}{},
	}
}

type fakeVideoRepo struct{ s *memStore }

func (f *fakeVideoRepo) Upsert(dbc dbctx.Context, v *types.Video) (store.UpsertResult, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	_, existed := f.s.videos[v.VideoID]
	f.s.videos[v.VideoID] = v
	if existed {
		return store.UpsertUpdated, nil
	}
	return store.UpsertCreated, nil
}

func (f *fakeVideoRepo) Get(dbc dbctx.Context, videoID string) (*types.Video, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v, ok := f.s.videos[videoID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return v, nil
}

func (f *fakeVideoRepo) List(dbc dbctx.Context, limit, offset int) ([]*types.Video, error) {
	return nil, nil
}

func (f *fakeVideoRepo) UpdateEmbedding(dbc dbctx.Context, videoID string, embedding *pgvector.Vector) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v, ok := f.s.videos[videoID]
	if !ok {
		return apperr.ErrNotFound
	}
	v.Embedding = embedding
	return nil
}

func (f *fakeVideoRepo) Stats(dbc dbctx.Context) (*store.Stats, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	s := &store.Stats{TotalVideos: int64(len(f.s.videos))}
	for _, v := range f.s.videos {
		if v.ArchivePath != "" {
			s.VideosWithArchive++
		}
		if v.PipelineVersion("chunk_transcript") != "" {
			s.VideosChunked++
		}
		if v.PipelineVersion("embed_chunks") != "" {
			s.VideosEmbedded++
		}
	}
	for _, cs := range f.s.chunks {
		s.TotalChunks += int64(len(cs))
		for _, c := range cs {
			if c.Embedding != nil {
				s.ChunksEmbedded++
			}
		}
	}
	return s, nil
}

type fakeChunkRepo struct {
	s          *memStore
	upsertOnes int
}

func (f *fakeChunkRepo) UpsertChunks(dbc dbctx.Context, chunks []*types.VideoChunk) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, c := range chunks {
		f.s.chunks[c.VideoID] = append(f.s.chunks[c.VideoID], c)
	}
	return nil
}

func (f *fakeChunkRepo) UpsertOne(dbc dbctx.Context, chunk *types.VideoChunk) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.upsertOnes++
	for i, c := range f.s.chunks[chunk.VideoID] {
		if c.ChunkID == chunk.ChunkID {
			f.s.chunks[chunk.VideoID][i] = chunk
			return nil
		}
	}
	f.s.chunks[chunk.VideoID] = append(f.s.chunks[chunk.VideoID], chunk)
	return nil
}

func (f *fakeChunkRepo) ReplaceForVideo(dbc dbctx.Context, videoID string, chunks []*types.VideoChunk) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.chunks[videoID] = append([]*types.VideoChunk{}, chunks...)
	return nil
}

func (f *fakeChunkRepo) GetForVideo(dbc dbctx.Context, videoID string) ([]*types.VideoChunk, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := append([]*types.VideoChunk{}, f.s.chunks[videoID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (f *fakeChunkRepo) DeleteForVideo(dbc dbctx.Context, videoID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	delete(f.s.chunks, videoID)
	return nil
}

type fakePipelineRepo struct{ s *memStore }

func (f *fakePipelineRepo) UpdatePipelineState(dbc dbctx.Context, videoID, step, version string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v, ok := f.s.videos[videoID]
	if !ok {
		return apperr.ErrNotFound
	}
	if v.PipelineState == nil {
		v.PipelineState = map[string]interface{}{}
	}
	v.PipelineState[step] = version
	return nil
}

func (f *fakePipelineRepo) candidates(filter func(*types.Video) bool, limit int) []*types.Video {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*types.Video
	for _, v := range f.s.videos {
		if filter(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VideoID < out[j].VideoID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakePipelineRepo) ChunkCandidates(dbc dbctx.Context, version string, limit int) ([]*types.Video, error) {
	return f.candidates(func(v *types.Video) bool {
		return v.ArchivePath != "" && v.PipelineVersion(store.StepChunkTranscript) != version
	}, limit), nil
}

func (f *fakePipelineRepo) EmbedCandidates(dbc dbctx.Context, version string, limit int) ([]*types.Video, error) {
	return f.candidates(func(v *types.Video) bool {
		return v.PipelineVersion(store.StepChunkTranscript) != "" && v.PipelineVersion(store.StepEmbedChunks) != version
	}, limit), nil
}

func (f *fakePipelineRepo) SummaryCandidates(dbc dbctx.Context, version string, limit int) ([]*types.Video, error) {
	return f.candidates(func(v *types.Video) bool {
		return v.PipelineVersion(store.StepEmbedChunks) != "" && v.PipelineVersion(store.StepEmbedSummary) != version
	}, limit), nil
}

// ---- archive and embedder fakes ----

type fakeArchives struct {
	records map[string]*archive.Record
	delay   map[string]time.Duration
}

func (f *fakeArchives) Read(ctx context.Context, path string) (*archive.Record, error) {
	if d := f.delay[path]; d > 0 {
		time.Sleep(d)
	}
	rec, ok := f.records[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
	}
	return rec, nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	texts int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.texts += len(texts)
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, fakeDim)
		out[i][0] = 1
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int                 { return fakeDim }
func (f *fakeEmbedder) Ping(ctx context.Context) error { return nil }

// ---- fixtures ----

func timedRecord(videoID string) *archive.Record {
	return &archive.Record{
		VideoID: videoID,
		URL:     archive.WatchURL(videoID),
		TimedTranscript: []archive.TimedSegment{
			{Text: "The first idea worth keeping", Start: 0, Duration: 4},
			{Text: "continues without interruption", Start: 4, Duration: 4},
			{Text: "And after a long silence a second idea", Start: 20, Duration: 5},
		},
	}
}

func newTestWorker(t *testing.T, ms *memStore, arch *fakeArchives, emb *fakeEmbedder) (*Worker, *fakeChunkRepo) {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	chunkRepo := &fakeChunkRepo{s: ms}
	w, err := NewWorker(Deps{
		Log:      log,
		Videos:   &fakeVideoRepo{s: ms},
		Chunks:   chunkRepo,
		Pipeline: &fakePipelineRepo{s: ms},
		Archives: arch,
		Embedder: emb,
		ChunkCfg: chunker.Config{TargetTokens: 5, MaxTokens: 8, MinTokens: 1, PauseThreshold: 8, CharsPerToken: 4},
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	return w, chunkRepo
}

func TestRunAllDrivesVideosToCompletion(t *testing.T) {
	ms := newMemStore()
	arch := &fakeArchives{records: map[string]*archive.Record{}}
	for _, id := range []string{"v1", "v2", "v3"} {
		path := "archives/" + id + ".json"
		ms.addVideo(id, path)
		arch.records[path] = timedRecord(id)
	}
	emb := &fakeEmbedder{}
	w, _ := newTestWorker(t, ms, arch, emb)

	report, err := w.Run(context.Background(), StepAll, 10, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed() {
		t.Fatalf("unexpected failures: %+v", report.Steps)
	}

	for _, id := range []string{"v1", "v2", "v3"} {
		v := ms.videos[id]
		if v.PipelineVersion("chunk_transcript") != ChunkVersion {
			t.Fatalf("%s chunk state: %v", id, v.PipelineState)
		}
		if v.PipelineVersion("embed_chunks") != w.EmbedVersion() {
			t.Fatalf("%s embed state: %v", id, v.PipelineState)
		}
		if v.PipelineVersion("embed_summary") != w.EmbedVersion() {
			t.Fatalf("%s summary state: %v", id, v.PipelineState)
		}
		if v.Embedding == nil {
			t.Fatalf("%s missing summary embedding", id)
		}
		for _, c := range ms.chunks[id] {
			if c.Embedding == nil {
				t.Fatalf("%s chunk %d missing embedding", id, c.ChunkIndex)
			}
			if got := len(c.Embedding.Slice()); got != fakeDim {
				t.Fatalf("%s chunk %d embedding dim %d", id, c.ChunkIndex, got)
			}
		}
	}
}

func TestRunEmbedIsIdempotent(t *testing.T) {
	ms := newMemStore()
	arch := &fakeArchives{records: map[string]*archive.Record{"archives/v1.json": timedRecord("v1")}}
	ms.addVideo("v1", "archives/v1.json")
	emb := &fakeEmbedder{}
	w, chunkRepo := newTestWorker(t, ms, arch, emb)

	if _, err := w.Run(context.Background(), StepChunk, 10, false); err != nil {
		t.Fatalf("chunk run: %v", err)
	}
	if _, err := w.Run(context.Background(), StepEmbed, 10, false); err != nil {
		t.Fatalf("embed run: %v", err)
	}
	firstWrites := chunkRepo.upsertOnes
	firstCalls := emb.calls

	// Clear state so the video is a candidate again; rows already carry
	// embeddings, so the second run must not touch them.
	delete(ms.videos["v1"].PipelineState, "embed_chunks")
	if _, err := w.Run(context.Background(), StepEmbed, 10, false); err != nil {
		t.Fatalf("second embed run: %v", err)
	}
	if chunkRepo.upsertOnes != firstWrites {
		t.Fatalf("re-embed rewrote rows: %d -> %d", firstWrites, chunkRepo.upsertOnes)
	}
	if emb.calls != firstCalls {
		t.Fatalf("re-embed called embedder: %d -> %d", firstCalls, emb.calls)
	}
	if ms.videos["v1"].PipelineVersion("embed_chunks") != w.EmbedVersion() {
		t.Fatal("state not refreshed on idempotent run")
	}
}

func TestRunChunkRecordsFailuresIndependently(t *testing.T) {
	ms := newMemStore()
	arch := &fakeArchives{records: map[string]*archive.Record{
		"archives/good.json": timedRecord("good"),
		"archives/empty.json": {
			VideoID: "empty",
			URL:     archive.WatchURL("empty"),
		},
	}}
	ms.addVideo("good", "archives/good.json")
	ms.addVideo("empty", "archives/empty.json")
	ms.addVideo("gone", "archives/gone.json")
	w, _ := newTestWorker(t, ms, arch, &fakeEmbedder{})

	report, err := w.Run(context.Background(), StepChunk, 10, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sr := report.Steps[0]
	if sr.Succeeded != 1 || sr.Failed != 2 {
		t.Fatalf("succeeded=%d failed=%d, want 1/2", sr.Succeeded, sr.Failed)
	}
	if sr.Errors["no_transcript"] != 1 || sr.Errors["archive_missing"] != 1 {
		t.Fatalf("error reasons: %v", sr.Errors)
	}
	if ms.videos["good"].PipelineVersion("chunk_transcript") != ChunkVersion {
		t.Fatal("good video not chunked")
	}
	// Failed videos keep their state empty so the next run retries them.
	if ms.videos["empty"].PipelineVersion("chunk_transcript") != "" {
		t.Fatal("failed video advanced its pipeline state")
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	ms := newMemStore()
	arch := &fakeArchives{records: map[string]*archive.Record{"archives/v1.json": timedRecord("v1")}}
	ms.addVideo("v1", "archives/v1.json")
	w, _ := newTestWorker(t, ms, arch, &fakeEmbedder{})

	report, err := w.Run(context.Background(), StepChunk, 10, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Steps[0].Candidates != 1 {
		t.Fatalf("candidates: %d", report.Steps[0].Candidates)
	}
	if len(ms.chunks["v1"]) != 0 {
		t.Fatal("dry run wrote chunks")
	}
	if ms.videos["v1"].PipelineVersion("chunk_transcript") != "" {
		t.Fatal("dry run advanced pipeline state")
	}
}

func TestRunRejectsUnknownStep(t *testing.T) {
	ms := newMemStore()
	w, _ := newTestWorker(t, ms, &fakeArchives{}, &fakeEmbedder{})
	_, err := w.Run(context.Background(), "transcode", 10, false)
	if err == nil {
		t.Fatal("unknown step accepted")
	}
}

func TestStatusCounters(t *testing.T) {
	ms := newMemStore()
	arch := &fakeArchives{records: map[string]*archive.Record{"archives/v1.json": timedRecord("v1")}}
	ms.addVideo("v1", "archives/v1.json")
	ms.addVideo("v2", "")
	w, _ := newTestWorker(t, ms, arch, &fakeEmbedder{})

	if _, err := w.Run(context.Background(), StepChunk, 10, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s, err := w.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if s.TotalVideos != 2 || s.VideosWithArchive != 1 || s.VideosChunked != 1 {
		t.Fatalf("stats: %+v", s)
	}
	if s.TotalChunks == 0 {
		t.Fatalf("no chunks counted: %+v", s)
	}
}

func TestRunEmitsProgressEvents(t *testing.T) {
	ms := newMemStore()
	arch := &fakeArchives{records: map[string]*archive.Record{"archives/v1.json": timedRecord("v1")}}
	ms.addVideo("v1", "archives/v1.json")
	ms.addVideo("v2", "archives/missing.json")

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	events := make(chan ProgressEvent, 16)
	w, err := NewWorker(Deps{
		Log:      log,
		Videos:   &fakeVideoRepo{s: ms},
		Chunks:   &fakeChunkRepo{s: ms},
		Pipeline: &fakePipelineRepo{s: ms},
		Archives: arch,
		Embedder: &fakeEmbedder{},
		ChunkCfg: chunker.Config{TargetTokens: 5, MaxTokens: 8, MinTokens: 1, PauseThreshold: 8, CharsPerToken: 4},
		Progress: events,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	if _, err := w.Run(context.Background(), StepChunk, 10, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(events)

	got := map[string]ProgressEvent{}
	for ev := range events {
		got[ev.VideoID] = ev
	}
	if len(got) != 2 {
		t.Fatalf("events: %v", got)
	}
	if !got["v1"].OK || got["v1"].Step != StepChunk {
		t.Fatalf("v1 event: %+v", got["v1"])
	}
	if got["v2"].OK || got["v2"].Reason == "" {
		t.Fatalf("v2 event: %+v", got["v2"])
	}
}

// Progress events must arrive in batch order even when earlier videos
// take longer to process.
func TestRunReportsProgressInOrder(t *testing.T) {
	ms := newMemStore()
	arch := &fakeArchives{
		records: map[string]*archive.Record{},
		delay:   map[string]time.Duration{},
	}
	ids := []string{"v1", "v2", "v3", "v4"}
	for i, id := range ids {
		path := "archives/" + id + ".json"
		ms.addVideo(id, path)
		arch.records[path] = timedRecord(id)
		// Earlier candidates are the slowest.
		arch.delay[path] = time.Duration(len(ids)-i) * 10 * time.Millisecond
	}

	events := make(chan ProgressEvent, 16)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	w, err := NewWorker(Deps{
		Log:      log,
		Videos:   &fakeVideoRepo{s: ms},
		Chunks:   &fakeChunkRepo{s: ms},
		Pipeline: &fakePipelineRepo{s: ms},
		Archives: arch,
		Embedder: &fakeEmbedder{},
		ChunkCfg: chunker.Config{TargetTokens: 5, MaxTokens: 8, MinTokens: 1, PauseThreshold: 8, CharsPerToken: 4},
		Progress: events,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	if _, err := w.Run(context.Background(), StepChunk, 10, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(events)

	var order []string
	for ev := range events {
		order = append(order, ev.VideoID)
	}
	if len(order) != len(ids) {
		t.Fatalf("got %d events, want %d", len(order), len(ids))
	}
	for i, id := range ids {
		if order[i] != id {
			t.Fatalf("progress order %v, want %v", order, ids)
		}
	}
}

// Bumping a step's version tag makes already-processed videos candidates
// again, so the whole corpus reprocesses on the next run.
func TestRunRechunksStaleVersions(t *testing.T) {
	ms := newMemStore()
	arch := &fakeArchives{records: map[string]*archive.Record{"archives/v1.json": timedRecord("v1")}}
	ms.addVideo("v1", "archives/v1.json")
	ms.videos["v1"].PipelineState[store.StepChunkTranscript] = "v0.9"
	w, _ := newTestWorker(t, ms, arch, &fakeEmbedder{})

	report, err := w.Run(context.Background(), StepChunk, 10, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Steps[0].Candidates != 1 || report.Steps[0].Succeeded != 1 {
		t.Fatalf("stale video not reprocessed: %+v", report.Steps[0])
	}
	if got := ms.videos["v1"].PipelineVersion(store.StepChunkTranscript); got != ChunkVersion {
		t.Fatalf("chunk version %q, want %q", got, ChunkVersion)
	}
}
