package infinity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/utils"
)

// Client wraps an Infinity (OpenAI-compatible) embeddings endpoint that
// returns vectors of a fixed dimension. Retries are the caller's policy;
// this layer does none.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Ping(ctx context.Context) error
}

type Config struct {
	BaseURL   string
	Model     string
	Dimension int
	// MaxChars caps input length before transport (rune count).
	MaxChars   int
	Timeout    time.Duration
	HTTPClient *http.Client
}

type client struct {
	log        *logger.Logger
	baseURL    string
	model      string
	dimension  int
	maxChars   int
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("INFINITY_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing INFINITY_BASE_URL")
	}
	cfg := Config{
		BaseURL:   baseURL,
		Model:     utils.GetEnv("INFINITY_EMBED_MODEL", "BAAI/bge-m3", log),
		Dimension: utils.GetEnvAsInt("EMBEDDING_DIMENSION", 1024, log),
		MaxChars:  utils.GetEnvAsInt("EMBEDDING_MAX_CHARS", 8000, log),
		Timeout:   time.Duration(utils.GetEnvAsInt("EMBEDDING_TIMEOUT_SECONDS", 120, log)) * time.Second,
	}
	return NewClientWithConfig(log, cfg)
}

func NewClientWithConfig(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing embedding base url")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1024
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 8000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &client{
		log:        log.With("service", "InfinityClient"),
		baseURL:    baseURL,
		model:      strings.TrimSpace(cfg.Model),
		dimension:  cfg.Dimension,
		maxChars:   cfg.MaxChars,
		httpClient: httpClient,
	}, nil
}

func (c *client) Dimension() int { return c.dimension }

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings, want 1", apperr.ErrEmbeddingUnavailable, len(vecs))
	}
	return vecs[0], nil
}

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(texts))
	for i := range texts {
		s := truncateRunes(strings.TrimSpace(texts[i]), c.maxChars)
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	req := embeddingsRequest{Model: c.model, Input: clean}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: http %d: %s", apperr.ErrEmbeddingUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", apperr.ErrEmbeddingUnavailable, err)
	}
	if len(parsed.Data) != len(clean) {
		return nil, fmt.Errorf("%w: got %d embeddings, want %d", apperr.ErrEmbeddingUnavailable, len(parsed.Data), len(clean))
	}

	out := make([][]float32, len(clean))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", apperr.ErrEmbeddingUnavailable, d.Index)
		}
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", apperr.ErrDimensionMismatch, len(d.Embedding), c.dimension)
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("%w: missing embedding at index %d", apperr.ErrEmbeddingUnavailable, i)
		}
	}
	return out, nil
}

func (c *client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: http %d", apperr.ErrEmbeddingUnavailable, resp.StatusCode)
	}
	return nil
}

// truncateRunes cuts at rune boundaries so a UTF-8 sequence is never split.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
