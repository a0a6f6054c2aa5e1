package llm

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

// Provider selects which upstream serves a completion. The wire syntax is
// a model-string prefix ("ollama:..."); it is normalized here and never
// leaks past this package.
type Provider string

const (
	ProviderRemote Provider = "remote"
	ProviderLocal  Provider = "local"
)

const localModelPrefix = "ollama:"

// ResolveModel maps a client-supplied model string to a provider and the
// model name forwarded upstream.
func ResolveModel(model string) (Provider, string) {
	model = strings.TrimSpace(model)
	if strings.HasPrefix(model, localModelPrefix) {
		return ProviderLocal, strings.TrimPrefix(model, localModelPrefix)
	}
	return ProviderRemote, model
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client proxies completion requests to one of two OpenAI-compatible
// upstreams and streams content deltas back. Only non-empty deltas are
// forwarded; stream end is the terminal condition; transport errors come
// back as ErrLLMUnavailable.
type Client interface {
	StreamCompletion(ctx context.Context, model string, messages []Message, onDelta func(delta string)) (string, error)
	GenerateText(ctx context.Context, model string, messages []Message) (string, error)
}

type upstream struct {
	baseURL string
	apiKey  string
}

type client struct {
	log        *logger.Logger
	remote     upstream
	local      upstream
	httpClient *http.Client
}

type Config struct {
	RemoteBaseURL string
	RemoteAPIKey  string
	LocalBaseURL  string
	HTTPClient    *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	remoteBase := strings.TrimSpace(os.Getenv("LLM_REMOTE_BASE_URL"))
	if remoteBase == "" {
		return nil, fmt.Errorf("missing LLM_REMOTE_BASE_URL")
	}
	cfg := Config{
		RemoteBaseURL: remoteBase,
		RemoteAPIKey:  strings.TrimSpace(os.Getenv("LLM_REMOTE_API_KEY")),
		LocalBaseURL:  utils.GetEnv("LLM_LOCAL_BASE_URL", "http://localhost:11434/v1", log),
	}
	return NewClientWithConfig(log, cfg)
}

func NewClientWithConfig(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Streaming responses can run for minutes; rely on ctx cancellation
		// instead of a client deadline.
		httpClient = &http.Client{Timeout: 0}
	}
	return &client{
		log:        log.With("service", "LLMClient"),
		remote:     upstream{baseURL: strings.TrimRight(cfg.RemoteBaseURL, "/"), apiKey: cfg.RemoteAPIKey},
		local:      upstream{baseURL: strings.TrimRight(cfg.LocalBaseURL, "/"), apiKey: ""},
		httpClient: httpClient,
	}, nil
}

type chatCompletionsRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatCompletionsChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *client) upstreamFor(p Provider) upstream {
	if p == ProviderLocal {
		return c.local
	}
	return c.remote
}

func (c *client) StreamCompletion(ctx context.Context, model string, messages []Message, onDelta func(delta string)) (string, error) {
	provider, upstreamModel := ResolveModel(model)
	up := c.upstreamFor(provider)

	reqBody := chatCompletionsRequest{Model: upstreamModel, Messages: messages, Stream: true}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if up.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+up.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: http %d: %s", apperr.ErrLLMUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var full strings.Builder
	err = streamSSE(resp.Body, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			return nil
		}
		var chunk chatCompletionsChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Unparseable keep-alive noise; skip.
			return nil
		}
		if chunk.Error != nil && strings.TrimSpace(chunk.Error.Message) != "" {
			return fmt.Errorf("%w: %s", apperr.ErrLLMUnavailable, chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			d := choice.Delta.Content
			if d == "" {
				continue
			}
			full.WriteString(d)
			if onDelta != nil {
				onDelta(d)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.log.Debug("completion streamed",
		"provider", string(provider),
		"model", upstreamModel,
		"chars", full.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return full.String(), nil
}

func (c *client) GenerateText(ctx context.Context, model string, messages []Message) (string, error) {
	provider, upstreamModel := ResolveModel(model)
	up := c.upstreamFor(provider)

	reqBody := chatCompletionsRequest{Model: upstreamModel, Messages: messages, Stream: false}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if up.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+up.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: http %d: %s", apperr.ErrLLMUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatCompletionsChunk
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode: %v", apperr.ErrLLMUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", apperr.ErrLLMUnavailable)
	}
	return parsed.Choices[0].Message.Content, nil
}
