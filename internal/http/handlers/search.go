package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentat-backend/internal/data/repos/store"
	"github.com/yungbote/mentat-backend/internal/http/response"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

const defaultSearchLimit = 20

type SearchHandler struct {
	log    *logger.Logger
	search store.SearchRepo
}

func NewSearchHandler(log *logger.Logger, search store.SearchRepo) *SearchHandler {
	return &SearchHandler{log: log.With("handler", "SearchHandler"), search: search}
}

type searchReq struct {
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	Channel string `json:"channel,omitempty"`
	MinDate string `json:"min_date,omitempty"`
	MaxDate string `json:"max_date,omitempty"`
}

// searchHit is the wire shape of one result.
type searchHit struct {
	VideoID     string     `json:"video_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	ChannelName string     `json:"channel_name"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ArchivePath string     `json:"archive_path,omitempty"`
	Score       float64    `json:"score"`
}

// POST /cache/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultSearchLimit
	}

	minDate, maxDate, err := parseDateRange(req.MinDate, req.MaxDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_date", err)
		return
	}

	hits, err := h.search.SearchVideosByText(
		dbctx.Context{Ctx: c.Request.Context()},
		req.Query,
		req.Limit,
		req.Offset,
		store.SearchFilters{Channel: req.Channel, MinDate: minDate, MaxDate: maxDate},
	)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "search_failed", err)
		return
	}

	results := make([]searchHit, len(hits))
	for i, hit := range hits {
		results[i] = searchHit{
			VideoID:     hit.Video.VideoID,
			Title:       hit.Video.Title,
			URL:         hit.Video.URL,
			ChannelName: hit.Video.ChannelName,
			PublishedAt: hit.Video.PublishedAt,
			ArchivePath: hit.Video.ArchivePath,
			Score:       hit.Score,
		}
	}
	response.RespondOK(c, gin.H{
		"query":       req.Query,
		"results":     results,
		"total_found": len(results),
	})
}

func parseDateRange(minRaw, maxRaw string) (*time.Time, *time.Time, error) {
	var minDate, maxDate *time.Time
	if s := strings.TrimSpace(minRaw); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return nil, nil, err
		}
		minDate = &t
	}
	if s := strings.TrimSpace(maxRaw); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return nil, nil, err
		}
		maxDate = &t
	}
	return minDate, maxDate, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
