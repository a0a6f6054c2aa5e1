package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/yungbote/mentat-backend/internal/archive"
	"github.com/yungbote/mentat-backend/internal/data/repos/store"
	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
)

func TestParseVideoID(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"", "", false},
		{"https://example.com/nope", "", false},
	}
	for _, tc := range cases {
		got, err := ParseVideoID(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseVideoID(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseVideoID(%q) = %q, want %q", tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Fatalf("ParseVideoID(%q): got %v, want invalid argument", tc.in, err)
		}
	}
}

type fakeVideoGetter struct {
	videos map[string]*types.Video
}

func (f *fakeVideoGetter) Upsert(dbc dbctx.Context, v *types.Video) (store.UpsertResult, error) {
	return store.UpsertCreated, nil
}
func (f *fakeVideoGetter) Get(dbc dbctx.Context, videoID string) (*types.Video, error) {
	v, ok := f.videos[videoID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return v, nil
}
func (f *fakeVideoGetter) List(dbc dbctx.Context, limit, offset int) ([]*types.Video, error) {
	return nil, nil
}
func (f *fakeVideoGetter) UpdateEmbedding(dbc dbctx.Context, videoID string, embedding *pgvector.Vector) error {
	return nil
}
func (f *fakeVideoGetter) Stats(dbc dbctx.Context) (*store.Stats, error) { return &store.Stats{}, nil }

type fakeTopics struct {
	topics []*types.Topic
}

func (f *fakeTopics) UpsertChannel(dbc dbctx.Context, ch *types.Channel) error          { return nil }
func (f *fakeTopics) UpsertTopic(dbc dbctx.Context, tp *types.Topic) error              { return nil }
func (f *fakeTopics) LinkVideoChannel(dbc dbctx.Context, videoID, channelID string) error { return nil }
func (f *fakeTopics) LinkVideoTopic(dbc dbctx.Context, videoID, name string) error      { return nil }
func (f *fakeTopics) TopicsForVideo(dbc dbctx.Context, videoID string) ([]*types.Topic, error) {
	return f.topics, nil
}

type fakeArchiveReader struct {
	records map[string]*archive.Record
}

func (f *fakeArchiveReader) Read(ctx context.Context, path string) (*archive.Record, error) {
	rec, ok := f.records[path]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return rec, nil
}

type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache { return &memCache{entries: map[string][]byte{}} }

func (m *memCache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}
func (m *memCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}
func (m *memCache) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}
func (m *memCache) Ping(ctx context.Context) error { return nil }

func newAnalyzeFixture(t *testing.T) (AnalyzeService, *memCache) {
	t.Helper()
	videos := &fakeVideoGetter{videos: map[string]*types.Video{
		"dQw4w9WgXcQ": {VideoID: "dQw4w9WgXcQ", Title: "Focus", ArchivePath: "archives/youtube/2025-01/dQw4w9WgXcQ.json"},
	}}
	topics := &fakeTopics{topics: []*types.Topic{{Name: "productivity"}, {Name: "focus"}}}
	archives := &fakeArchiveReader{records: map[string]*archive.Record{
		"archives/youtube/2025-01/dQw4w9WgXcQ.json": {
			VideoID: "dQw4w9WgXcQ",
			YouTubeMetadata: archive.YouTubeMetadata{
				Title:       "Focus",
				ChannelName: "Mentat",
			},
			LLMOutputs: []archive.LLMOutput{{Type: "summary", Value: "a video about focus"}},
		},
	}}
	cache := newMemCache()
	return NewAnalyzeService(testLogger(t), videos, topics, archives, cache), cache
}

func TestAnalyzeComputesAndCaches(t *testing.T) {
	svc, cache := newAnalyzeFixture(t)

	got, err := svc.Analyze(context.Background(), "https://youtu.be/dQw4w9WgXcQ", true)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Cached {
		t.Fatal("first call reported cached")
	}
	if got.Summary != "a video about focus" {
		t.Fatalf("summary: %q", got.Summary)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "productivity" {
		t.Fatalf("tags: %v", got.Tags)
	}
	if got.Metadata == nil || got.Metadata.ChannelName != "Mentat" {
		t.Fatalf("metadata: %+v", got.Metadata)
	}
	if len(cache.entries) != 1 {
		t.Fatalf("cache entries: %d", len(cache.entries))
	}

	again, err := svc.Analyze(context.Background(), "dQw4w9WgXcQ", true)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if !again.Cached {
		t.Fatal("second call not served from cache")
	}
	if again.Summary != got.Summary {
		t.Fatalf("cached summary: %q", again.Summary)
	}
}

func TestAnalyzeOmitsMetadataWhenNotRequested(t *testing.T) {
	svc, _ := newAnalyzeFixture(t)

	got, err := svc.Analyze(context.Background(), "dQw4w9WgXcQ", false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Metadata != nil {
		t.Fatalf("metadata should be omitted: %+v", got.Metadata)
	}

	// Cached replay honors the flag independently of what was stored.
	cachedResp, err := svc.Analyze(context.Background(), "dQw4w9WgXcQ", false)
	if err != nil {
		t.Fatalf("cached Analyze: %v", err)
	}
	if !cachedResp.Cached || cachedResp.Metadata != nil {
		t.Fatalf("cached replay: %+v", cachedResp)
	}
}

func TestAnalyzeUnknownVideo(t *testing.T) {
	svc, _ := newAnalyzeFixture(t)
	if _, err := svc.Analyze(context.Background(), "AAAAAAAAAAA", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}
