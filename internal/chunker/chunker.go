package chunker

import (
	"math"
	"regexp"
	"strings"

	"github.com/yungbote/mentat-backend/internal/archive"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/utils"
)

// TranscriptChunk is one retrieval unit cut from a transcript. Timestamps
// are zero for plain-text input.
type TranscriptChunk struct {
	Index      int
	Text       string
	StartTime  float64
	EndTime    float64
	TokenCount int
}

// Config holds the cut thresholds. Token counts are estimated from
// character length; no tokenizer is loaded.
type Config struct {
	TargetTokens   float64
	MaxTokens      float64
	MinTokens      float64
	PauseThreshold float64
	CharsPerToken  float64
}

func DefaultConfig() Config {
	return Config{
		TargetTokens:   2500,
		MaxTokens:      3000,
		MinTokens:      500,
		PauseThreshold: 8.0,
		CharsPerToken:  4.0,
	}
}

// ConfigFromEnv reads thresholds from the environment, falling back to the
// defaults above.
func ConfigFromEnv(log *logger.Logger) Config {
	d := DefaultConfig()
	return Config{
		TargetTokens:   utils.GetEnvAsFloat("CHUNK_TARGET_TOKENS", d.TargetTokens, log),
		MaxTokens:      utils.GetEnvAsFloat("CHUNK_MAX_TOKENS", d.MaxTokens, log),
		MinTokens:      utils.GetEnvAsFloat("CHUNK_MIN_TOKENS", d.MinTokens, log),
		PauseThreshold: utils.GetEnvAsFloat("CHUNK_PAUSE_THRESHOLD_SECONDS", d.PauseThreshold, log),
		CharsPerToken:  utils.GetEnvAsFloat("CHUNK_CHARS_PER_TOKEN", d.CharsPerToken, log),
	}
}

func (c Config) tokens(text string) float64 {
	if c.CharsPerToken <= 0 {
		return float64(len(text))
	}
	return float64(len(text)) / c.CharsPerToken
}

// ChunkTimed splits a timed transcript into pause-aligned, token-bounded
// chunks. Cuts prefer natural pauses; a hard cut fires at MaxTokens
// regardless. A trailing buffer below MinTokens is merged into the
// previous chunk.
func ChunkTimed(segments []archive.TimedSegment, cfg Config) []TranscriptChunk {
	cleaned := make([]archive.TimedSegment, 0, len(segments))
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		s.Text = text
		cleaned = append(cleaned, s)
	}
	if len(cleaned) == 0 {
		return nil
	}

	// pauseAfter[i] is true when the silence between segment i and i+1
	// reaches the threshold.
	pauseAfter := make([]bool, len(cleaned))
	for i := 0; i+1 < len(cleaned); i++ {
		gap := cleaned[i+1].Start - (cleaned[i].Start + cleaned[i].Duration)
		pauseAfter[i] = gap >= cfg.PauseThreshold
	}

	var (
		chunks    []TranscriptChunk
		buf       strings.Builder
		bufStart  float64
		bufEnd    float64
		bufActive bool
	)

	flush := func() {
		if !bufActive {
			return
		}
		text := buf.String()
		chunks = append(chunks, TranscriptChunk{
			Index:      len(chunks),
			Text:       text,
			StartTime:  bufStart,
			EndTime:    bufEnd,
			TokenCount: roundTokens(cfg.tokens(text)),
		})
		buf.Reset()
		bufActive = false
	}

	for i, seg := range cleaned {
		if !bufActive {
			bufStart = seg.Start
			bufActive = true
		} else {
			buf.WriteByte(' ')
		}
		buf.WriteString(seg.Text)
		bufEnd = seg.Start + seg.Duration

		tokens := cfg.tokens(buf.String())
		last := i == len(cleaned)-1
		if last {
			continue
		}
		if pauseAfter[i] && tokens >= cfg.MinTokens {
			flush()
			continue
		}
		if tokens >= cfg.MaxTokens {
			flush()
		}
	}

	// Trailing buffer: merge into the previous chunk when it is too small
	// to stand alone.
	if bufActive {
		tokens := cfg.tokens(buf.String())
		if tokens < cfg.MinTokens && len(chunks) > 0 {
			prev := &chunks[len(chunks)-1]
			prev.Text = prev.Text + " " + buf.String()
			prev.EndTime = bufEnd
			prev.TokenCount = roundTokens(cfg.tokens(prev.Text))
			buf.Reset()
			bufActive = false
		} else {
			flush()
		}
	}

	return chunks
}

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// ChunkPlain splits untimed text at sentence boundaries with the same
// token thresholds. All timestamps are zero.
func ChunkPlain(text string, cfg Config) []TranscriptChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	sentences := strings.Split(marked, "\x00")

	var (
		chunks []TranscriptChunk
		buf    strings.Builder
	)

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		t := buf.String()
		chunks = append(chunks, TranscriptChunk{
			Index:      len(chunks),
			Text:       t,
			TokenCount: roundTokens(cfg.tokens(t)),
		})
		buf.Reset()
	}

	for i, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(sentence)

		tokens := cfg.tokens(buf.String())
		last := i == len(sentences)-1
		if last {
			continue
		}
		if tokens >= cfg.TargetTokens || tokens >= cfg.MaxTokens {
			flush()
		}
	}

	if buf.Len() > 0 {
		tokens := cfg.tokens(buf.String())
		if tokens < cfg.MinTokens && len(chunks) > 0 {
			prev := &chunks[len(chunks)-1]
			prev.Text = prev.Text + " " + buf.String()
			prev.TokenCount = roundTokens(cfg.tokens(prev.Text))
		} else {
			flush()
		}
	}

	return chunks
}

func roundTokens(t float64) int {
	return int(math.Round(t))
}
