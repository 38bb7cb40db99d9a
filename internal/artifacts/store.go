// Package artifacts keeps per-user scratch files such as the latest batch of
// generated test cases.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/testforge/pkg/config"
)

var (
	ErrNotFound   = errors.New("artifact not found")
	ErrInvalidKey = errors.New("invalid artifact key")
)

// TestCasesFile is the scratch artifact holding the latest generated batch.
const TestCasesFile = "output_tc.json"

type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// UserKey namespaces name under the owning user.
func UserKey(userID uuid.UUID, name string) string {
	return path.Join("users", userID.String(), name)
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		logger.Info("using local artifact storage", "dir", cfg.LocalDir)
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		logger.Info("using s3 artifact storage", "bucket", cfg.Bucket, "region", cfg.Region)
		return NewS3Store(ctx, cfg)
	case "gcs":
		logger.Info("using gcs artifact storage", "bucket", cfg.Bucket)
		return NewGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// cleanKey rejects keys that could escape the store root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", ErrInvalidKey
		}
	}
	return key, nil
}

func objectName(prefix, key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return key, nil
	}
	return path.Join(strings.Trim(prefix, "/"), key), nil
}
