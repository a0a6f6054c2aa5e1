package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/yungbote/mentat-backend/internal/archive"
	"github.com/yungbote/mentat-backend/internal/data/repos/store"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/platform/redisbus"
)

const analyzeCacheTTL = time.Hour

// AnalyzeResult is the payload of the analyze endpoint. Cached reports
// whether the result was served from redis rather than recomputed.
type AnalyzeResult struct {
	VideoID  string                   `json:"video_id"`
	Tags     []string                 `json:"tags"`
	Summary  string                   `json:"summary"`
	Metadata *archive.YouTubeMetadata `json:"metadata,omitempty"`
	Cached   bool                     `json:"cached"`
}

type AnalyzeService interface {
	Analyze(ctx context.Context, rawURL string, fetchMetadata bool) (*AnalyzeResult, error)
}

type analyzeService struct {
	log      *logger.Logger
	videos   store.VideoRepo
	topics   store.ChannelTopicRepo
	archives archive.Reader
	cache    redisbus.Cache
}

func NewAnalyzeService(log *logger.Logger, videos store.VideoRepo, topics store.ChannelTopicRepo, archives archive.Reader, cache redisbus.Cache) AnalyzeService {
	return &analyzeService{
		log:      log.With("service", "AnalyzeService"),
		videos:   videos,
		topics:   topics,
		archives: archives,
		cache:    cache,
	}
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video id from the common URL
// shapes (watch?v=, youtu.be/, /embed/, /shorts/) or accepts a bare id.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", apperr.ErrInvalidArgument)
	}
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if id := u.Query().Get("v"); videoIDPattern.MatchString(id) {
		return id, nil
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 {
		last := parts[len(parts)-1]
		if videoIDPattern.MatchString(last) {
			return last, nil
		}
	}
	return "", fmt.Errorf("%w: no video id in %q", apperr.ErrInvalidArgument, raw)
}

func (s *analyzeService) Analyze(ctx context.Context, rawURL string, fetchMetadata bool) (*AnalyzeResult, error) {
	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached AnalyzeResult
		if hit, _ := s.cache.GetJSON(ctx, redisbus.AnalyzeKey(videoID), &cached); hit {
			cached.Cached = true
			if !fetchMetadata {
				cached.Metadata = nil
			}
			return &cached, nil
		}
	}

	result, err := s.compute(ctx, videoID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, redisbus.AnalyzeKey(videoID), result, analyzeCacheTTL); err != nil {
			s.log.Warn("analyze result not cached", "video_id", videoID, "error", err)
		}
	}
	if !fetchMetadata {
		out := *result
		out.Metadata = nil
		return &out, nil
	}
	return result, nil
}

func (s *analyzeService) compute(ctx context.Context, videoID string) (*AnalyzeResult, error) {
	video, err := s.videos.Get(dbctx.Context{Ctx: ctx}, videoID)
	if err != nil {
		return nil, err
	}

	result := &AnalyzeResult{VideoID: videoID, Tags: []string{}}

	if s.topics != nil {
		topics, err := s.topics.TopicsForVideo(dbctx.Context{Ctx: ctx}, videoID)
		if err != nil {
			s.log.Warn("topics unavailable", "video_id", videoID, "error", err)
		}
		for _, t := range topics {
			result.Tags = append(result.Tags, t.Name)
		}
	}

	if s.archives != nil && video.ArchivePath != "" {
		rec, err := s.archives.Read(ctx, video.ArchivePath)
		if err != nil {
			s.log.Warn("archive unavailable for analyze", "video_id", videoID, "error", err)
		} else {
			if v, ok := rec.Output("summary"); ok {
				if summary, ok := v.(string); ok {
					result.Summary = summary
				}
			}
			if len(result.Tags) == 0 {
				result.Tags = append(result.Tags, rec.YouTubeMetadata.Keywords...)
			}
			meta := rec.YouTubeMetadata
			result.Metadata = &meta
		}
	}

	return result, nil
}
