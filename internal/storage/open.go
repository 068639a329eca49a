package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/your-org/buddywatch/internal/config"
)

// OpenBlobStore builds the blob backend selected by cfg.Blob.Backend.
func OpenBlobStore(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.Blob.Backend {
	case "minio":
		store, err := NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		return store, nil
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	case "fs":
		return NewFSStore(cfg.Blob.FSRoot)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
}

// OpenRecordStore builds the record backend selected by cfg.Database.Backend.
// The returned close func is never nil.
func OpenRecordStore(ctx context.Context, cfg *config.Config) (RecordStore, func(), error) {
	switch cfg.Database.Backend {
	case "postgres":
		store, err := NewPostgresStore(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return store, store.Close, nil
	case "sqlite":
		store, err := NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("close sqlite", "error", err)
			}
		}, nil
	case "memory":
		slog.Warn("using in-memory record store; records are lost on restart")
		return NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}
}
