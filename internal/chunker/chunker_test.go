package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/mentat-backend/internal/archive"
)

func smallConfig() Config {
	return Config{
		TargetTokens:   5,
		MaxTokens:      8,
		MinTokens:      1,
		PauseThreshold: 8.0,
		CharsPerToken:  4,
	}
}

func TestChunkTimedCutsAtPause(t *testing.T) {
	segments := []archive.TimedSegment{
		{Text: "Hello world", Start: 0.0, Duration: 2.0},
		{Text: "How are you", Start: 2.0, Duration: 2.0},
		{Text: "Long pause now", Start: 12.0, Duration: 3.0},
	}

	chunks := ChunkTimed(segments, smallConfig())
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "Hello world How are you" {
		t.Fatalf("chunk 0 text: %q", chunks[0].Text)
	}
	if chunks[0].StartTime != 0.0 || chunks[0].EndTime != 4.0 {
		t.Fatalf("chunk 0 timing: start=%v end=%v", chunks[0].StartTime, chunks[0].EndTime)
	}
	if chunks[1].Text != "Long pause now" {
		t.Fatalf("chunk 1 text: %q", chunks[1].Text)
	}
	if chunks[1].StartTime != 12.0 || chunks[1].EndTime != 15.0 {
		t.Fatalf("chunk 1 timing: start=%v end=%v", chunks[1].StartTime, chunks[1].EndTime)
	}
}

func TestChunkTimedForceCutAtMaxTokens(t *testing.T) {
	// Contiguous speech, no pauses. Each segment is 20 chars = 5 tokens,
	// so the force cut at 8 tokens fires on the second segment.
	var segments []archive.TimedSegment
	for i := 0; i < 6; i++ {
		segments = append(segments, archive.TimedSegment{
			Text:     strings.Repeat("abcd ", 4)[:20],
			Start:    float64(i) * 2,
			Duration: 2,
		})
	}

	chunks := ChunkTimed(segments, smallConfig())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	cfg := smallConfig()
	for _, c := range chunks {
		// One segment of slack past the hard limit is allowed.
		if cfg.tokens(c.Text) > cfg.MaxTokens+5 {
			t.Fatalf("chunk %d exceeds max+slack: %q", c.Index, c.Text)
		}
	}
}

func TestChunkTimedMergesSmallTail(t *testing.T) {
	cfg := Config{TargetTokens: 5, MaxTokens: 8, MinTokens: 3, PauseThreshold: 8.0, CharsPerToken: 4}
	segments := []archive.TimedSegment{
		{Text: "This is a longer opening segment", Start: 0, Duration: 5}, // 8 tokens
		{Text: "tiny", Start: 20, Duration: 1},                            // 1 token after the pause
	}

	chunks := ChunkTimed(segments, cfg)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want merged single chunk: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "This is a longer opening segment tiny" {
		t.Fatalf("merged text: %q", chunks[0].Text)
	}
	if chunks[0].EndTime != 21 {
		t.Fatalf("merged end time: %v", chunks[0].EndTime)
	}
}

func TestChunkTimedProperties(t *testing.T) {
	var segments []archive.TimedSegment
	cursor := 0.0
	for i := 0; i < 40; i++ {
		dur := 1.0 + float64(i%3)
		segments = append(segments, archive.TimedSegment{
			Text:     fmt.Sprintf("segment number %d with some words", i),
			Start:    cursor,
			Duration: dur,
		})
		cursor += dur
		if i%7 == 6 {
			cursor += 10 // pause
		}
	}

	cfg := Config{TargetTokens: 20, MaxTokens: 30, MinTokens: 5, PauseThreshold: 8.0, CharsPerToken: 4}
	chunks := ChunkTimed(segments, cfg)
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}

	var joinedSegments []string
	for _, s := range segments {
		joinedSegments = append(joinedSegments, s.Text)
	}
	var joinedChunks []string
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk index %d at position %d", c.Index, i)
		}
		if c.StartTime > c.EndTime {
			t.Fatalf("chunk %d: start %v > end %v", i, c.StartTime, c.EndTime)
		}
		if i > 0 && chunks[i-1].EndTime > c.StartTime {
			t.Fatalf("chunk %d starts at %v before previous end %v", i, c.StartTime, chunks[i-1].EndTime)
		}
		if i < len(chunks)-1 && cfg.tokens(c.Text) < cfg.MinTokens {
			t.Fatalf("chunk %d below min tokens: %q", i, c.Text)
		}
		joinedChunks = append(joinedChunks, c.Text)
	}
	if strings.Join(joinedChunks, " ") != strings.Join(joinedSegments, " ") {
		t.Fatal("chunk texts do not reassemble the transcript")
	}
}

func TestChunkTimedDeterministic(t *testing.T) {
	segments := []archive.TimedSegment{
		{Text: "alpha beta gamma delta", Start: 0, Duration: 3},
		{Text: "epsilon zeta", Start: 3, Duration: 2},
		{Text: "eta theta iota kappa", Start: 16, Duration: 4},
	}
	a := ChunkTimed(segments, smallConfig())
	b := ChunkTimed(segments, smallConfig())
	if len(a) != len(b) {
		t.Fatalf("nondeterministic chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestChunkTimedEmptyAndBlankSegments(t *testing.T) {
	if got := ChunkTimed(nil, smallConfig()); got != nil {
		t.Fatalf("nil input: got %+v", got)
	}
	blank := []archive.TimedSegment{{Text: "   ", Start: 0, Duration: 1}}
	if got := ChunkTimed(blank, smallConfig()); got != nil {
		t.Fatalf("blank input: got %+v", got)
	}
}

func TestChunkPlainSplitsAtSentences(t *testing.T) {
	cfg := Config{TargetTokens: 6, MaxTokens: 10, MinTokens: 1, CharsPerToken: 4}
	text := "First sentence here. Second sentence follows! Third one ends? Fourth closes it."

	chunks := ChunkPlain(text, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d: %+v", len(chunks), chunks)
	}
	for _, c := range chunks {
		if c.StartTime != 0 || c.EndTime != 0 {
			t.Fatalf("plain chunk has timestamps: %+v", c)
		}
	}
	var all []string
	for _, c := range chunks {
		all = append(all, c.Text)
	}
	if strings.Join(all, " ") != text {
		t.Fatalf("reassembled text differs: %q", strings.Join(all, " "))
	}
}

func TestChunkPlainMergesSmallTail(t *testing.T) {
	cfg := Config{TargetTokens: 5, MaxTokens: 10, MinTokens: 4, CharsPerToken: 4}
	text := "A reasonably long first sentence goes here. End."

	chunks := ChunkPlain(text, cfg)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 merged: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != text {
		t.Fatalf("merged text: %q", chunks[0].Text)
	}
}

func TestChunkPlainEmpty(t *testing.T) {
	if got := ChunkPlain("   ", DefaultConfig()); got != nil {
		t.Fatalf("blank input: got %+v", got)
	}
}
