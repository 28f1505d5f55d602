package objectstore

import (
	"context"
	"fmt"

	"github.com/smallbiznis/billflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("objectstore",
	fx.Provide(New),
)

// New selects the backend named by STORAGE_PROVIDER.
func New(cfg config.Config, log *zap.Logger) (Storage, error) {
	switch cfg.Storage.Provider {
	case "", "memory":
		if cfg.IsProduction() {
			log.Warn("in-memory object storage configured in production")
		}
		return NewMemory(cfg.Storage.KeyPrefix), nil
	case "s3":
		return NewS3(context.Background(), S3Config{
			Bucket:   cfg.Storage.Bucket,
			Region:   cfg.Storage.Region,
			Endpoint: cfg.Storage.Endpoint,
			Prefix:   cfg.Storage.KeyPrefix,
		})
	}
	return nil, fmt.Errorf("unsupported storage provider %q", cfg.Storage.Provider)
}
