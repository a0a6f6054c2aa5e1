package app

import (
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

// Config holds process-level settings. Each value resolves through the
// hierarchy environment variable > app_config table > compiled default.
type Config struct {
	ServerAddr         string
	DefaultModel       string
	EmbeddingDimension int
}

type configResolver struct {
	db  *gorm.DB
	log *logger.Logger
}

// LoadConfig resolves configuration against a migrated database. The db
// may be nil (backfill dry runs in tests); the table tier is skipped.
func LoadConfig(db *gorm.DB, log *logger.Logger) Config {
	r := &configResolver{db: db, log: log.With("service", "Config")}
	dim, err := strconv.Atoi(r.resolve("EMBEDDING_DIMENSION", "embedding_dimension", "1024"))
	if err != nil || dim <= 0 {
		dim = 1024
	}
	return Config{
		ServerAddr:         r.resolve("SERVER_ADDR", "server_addr", ":8080"),
		DefaultModel:       r.resolve("DEFAULT_MODEL", "default_model", "ollama:llama3.1"),
		EmbeddingDimension: dim,
	}
}

func (r *configResolver) resolve(envKey, tableKey, def string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if r.db != nil {
		var row types.AppConfig
		err := r.db.Where("key = ?", tableKey).First(&row).Error
		if err == nil && strings.TrimSpace(row.Value) != "" {
			r.log.Info("Config from app_config table", "key", tableKey)
			return row.Value
		}
	}
	r.log.Info("Config default", "key", envKey, "value", def)
	return def
}
