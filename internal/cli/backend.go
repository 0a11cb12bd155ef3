package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yiblet/cliphist/internal/config"
	"github.com/yiblet/cliphist/internal/persist"
	"github.com/yiblet/cliphist/internal/persist/boltstore"
	"github.com/yiblet/cliphist/internal/persist/dbstore"
	"github.com/yiblet/cliphist/internal/persist/filestore"
	"github.com/yiblet/cliphist/internal/persist/memstore"
	"github.com/yiblet/cliphist/internal/persist/s3store"
)

// openStore opens the persistence backend named by cfg.Backend.
func openStore(ctx context.Context, cfg *config.Config) (persist.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.NewMemoryStore(), nil
	case config.BackendS3:
		s, err := s3store.NewFromConfig(ctx, cfg.S3Bucket, cfg.S3Key, cfg.S3Region)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	dir, err := config.ResolveDataDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	switch cfg.Backend {
	case config.BackendSQLite, "":
		s, err := dbstore.NewSQLiteStore(filepath.Join(dir, dbstore.FileName))
		if err != nil {
			return nil, fmt.Errorf("failed to create database store: %w", err)
		}
		return s, nil
	case config.BackendFile:
		s, err := filestore.New(dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendBolt:
		s, err := boltstore.New(filepath.Join(dir, boltstore.FileName))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
