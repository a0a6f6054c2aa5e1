package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
	"github.com/yungbote/mentat-backend/internal/platform/gcs"
)

// Reader loads archive records out of blob storage and validates them
// before the pipeline touches their contents.
type Reader interface {
	// Read fetches and validates the record at path. A missing object maps
	// to ErrNotFound; a record that fails validation maps to
	// ErrMalformedArchive.
	Read(ctx context.Context, path string) (*Record, error)
}

type reader struct {
	log   *logger.Logger
	store gcs.ArchiveStore
}

func NewReader(log *logger.Logger, store gcs.ArchiveStore) Reader {
	return &reader{log: log.With("service", "ArchiveReader"), store: store}
}

func (r *reader) Read(ctx context.Context, path string) (*Record, error) {
	raw, err := r.store.GetText(ctx, path)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrMalformedArchive, path, err)
	}
	if err := Validate(&rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrMalformedArchive, path, err)
	}
	return &rec, nil
}

// Validate checks the invariants every archive record must satisfy before
// ingestion. The URL is repaired from the video id when absent.
func Validate(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}
	rec.VideoID = strings.TrimSpace(rec.VideoID)
	if rec.VideoID == "" {
		return fmt.Errorf("missing video_id")
	}
	rec.URL = strings.TrimSpace(rec.URL)
	if rec.URL == "" {
		rec.URL = WatchURL(rec.VideoID)
	}
	for i, seg := range rec.TimedTranscript {
		if seg.Start < 0 {
			return fmt.Errorf("segment %d: negative start %v", i, seg.Start)
		}
		if seg.Duration < 0 {
			return fmt.Errorf("segment %d: negative duration %v", i, seg.Duration)
		}
	}
	return nil
}

// WatchURL builds the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
