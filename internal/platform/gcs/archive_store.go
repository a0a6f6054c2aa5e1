package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

// ArchiveStore is the blob store gateway. Writes are last-write-wins and
// atomic at the key level; GetJSON/GetText return ErrNotFound for missing
// keys and ErrStoreUnavailable for transport failures.
type ArchiveStore interface {
	PutJSON(ctx context.Context, key string, value any) error
	PutText(ctx context.Context, key string, value string) error
	GetJSON(ctx context.Context, key string, out any) error
	GetText(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

type archiveStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewArchiveStore(log *logger.Logger) (ArchiveStore, error) {
	bucket := strings.TrimSpace(os.Getenv("ARCHIVE_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var ARCHIVE_GCS_BUCKET_NAME")
	}

	ctx := context.Background()
	var opts []option.ClientOption
	if endpoint := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")); endpoint != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog := log.With("service", "ArchiveStore")
	serviceLog.Info("Blob store initialized", "bucket", bucket)

	return &archiveStore{
		log:    serviceLog,
		client: client,
		bucket: bucket,
	}, nil
}

func (s *archiveStore) PutJSON(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.put(ctx, key, b, "application/json")
}

func (s *archiveStore) PutText(ctx context.Context, key string, value string) error {
	return s.put(ctx, key, []byte(value), "text/plain; charset=utf-8")
}

func (s *archiveStore) put(ctx context.Context, key string, data []byte, contentType string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty key", apperr.ErrInvalidArgument)
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("%w: write %s: %v", apperr.ErrStoreUnavailable, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: commit %s: %v", apperr.ErrStoreUnavailable, key, err)
	}
	return nil
}

func (s *archiveStore) GetJSON(ctx context.Context, key string, out any) error {
	data, err := s.get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *archiveStore) GetText(ctx context.Context, key string) (string, error) {
	data, err := s.get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *archiveStore) get(ctx context.Context, key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", apperr.ErrInvalidArgument)
	}
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: open %s: %v", apperr.ErrStoreUnavailable, key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", apperr.ErrStoreUnavailable, key, err)
	}
	return data, nil
}

func (s *archiveStore) Exists(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("%w: empty key", apperr.ErrInvalidArgument)
	}
	_, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %v", apperr.ErrStoreUnavailable, key, err)
	}
	return true, nil
}

func (s *archiveStore) Ping(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return nil
}
