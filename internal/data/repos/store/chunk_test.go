package store

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/mentat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
)

func mkChunk(videoID string, index int, text string) *types.VideoChunk {
	return &types.VideoChunk{
		ChunkID:    types.ChunkID(videoID, index),
		VideoID:    videoID,
		ChunkIndex: index,
		Text:       text,
		StartTime:  float64(index) * 10,
		EndTime:    float64(index)*10 + 10,
		TokenCount: len(text) / 4,
	}
}

func TestChunkRepoRejectsGappyIndices(t *testing.T) {
	repo := NewChunkRepo(nil, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	err := repo.UpsertChunks(dbc, []*types.VideoChunk{
		mkChunk("v1", 0, "a"),
		mkChunk("v1", 2, "c"),
	})
	if !errors.Is(err, apperr.ErrInvalidChunkSet) {
		t.Fatalf("got %v, want ErrInvalidChunkSet", err)
	}
}

func TestChunkRepoRejectsMixedVideos(t *testing.T) {
	repo := NewChunkRepo(nil, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	err := repo.UpsertChunks(dbc, []*types.VideoChunk{
		mkChunk("v1", 0, "a"),
		mkChunk("v2", 1, "b"),
	})
	if !errors.Is(err, apperr.ErrInvalidChunkSet) {
		t.Fatalf("got %v, want ErrInvalidChunkSet", err)
	}
}

func TestChunkRepoRejectsBadChunkID(t *testing.T) {
	repo := NewChunkRepo(nil, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	bad := mkChunk("v1", 0, "a")
	bad.ChunkID = "wrong"
	err := repo.UpsertChunks(dbc, []*types.VideoChunk{bad})
	if !errors.Is(err, apperr.ErrInvalidChunkSet) {
		t.Fatalf("got %v, want ErrInvalidChunkSet", err)
	}
}

func TestChunkRepoReplaceForVideo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	videos := NewVideoRepo(db, testutil.Logger(t))
	chunks := NewChunkRepo(db, testutil.Logger(t))

	if _, err := videos.Upsert(dbc, &types.Video{VideoID: "vid-rep", URL: "u", Title: "t"}); err != nil {
		t.Fatalf("seed video: %v", err)
	}

	first := []*types.VideoChunk{
		mkChunk("vid-rep", 0, "old zero"),
		mkChunk("vid-rep", 1, "old one"),
		mkChunk("vid-rep", 2, "old two"),
	}
	if err := chunks.ReplaceForVideo(dbc, "vid-rep", first); err != nil {
		t.Fatalf("first ReplaceForVideo: %v", err)
	}

	second := []*types.VideoChunk{
		mkChunk("vid-rep", 0, "new zero"),
		mkChunk("vid-rep", 1, "new one"),
	}
	if err := chunks.ReplaceForVideo(dbc, "vid-rep", second); err != nil {
		t.Fatalf("second ReplaceForVideo: %v", err)
	}

	got, err := chunks.GetForVideo(dbc, "vid-rep")
	if err != nil {
		t.Fatalf("GetForVideo: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d chunks after replace, want 2", len(got))
	}
	for i, c := range got {
		if c.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}
	if got[0].Text != "new zero" || got[1].Text != "new one" {
		t.Fatalf("old chunk set still visible: %q %q", got[0].Text, got[1].Text)
	}
}

func TestChunkRepoDeleteForVideo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	chunks := NewChunkRepo(db, testutil.Logger(t))

	if err := chunks.UpsertChunks(dbc, []*types.VideoChunk{mkChunk("vid-del", 0, "only")}); err != nil {
		t.Fatalf("UpsertChunks: %v", err)
	}
	if err := chunks.DeleteForVideo(dbc, "vid-del"); err != nil {
		t.Fatalf("DeleteForVideo: %v", err)
	}
	got, err := chunks.GetForVideo(dbc, "vid-del")
	if err != nil {
		t.Fatalf("GetForVideo: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("chunks survived delete: %d", len(got))
	}
}
