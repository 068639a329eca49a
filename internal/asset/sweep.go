package asset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/buddywatch/internal/observability"
	"github.com/your-org/buddywatch/internal/storage"
)

// Sweeper deletes blobs no record references. Blobs younger than grace are
// left alone so in-flight uploads (blob stored, record not yet written) survive.
type Sweeper struct {
	blobs   storage.BlobStore
	records storage.RecordStore
	grace   time.Duration
	now     func() time.Time
}

func NewSweeper(blobs storage.BlobStore, records storage.RecordStore, grace time.Duration) *Sweeper {
	return &Sweeper{blobs: blobs, records: records, grace: grace, now: time.Now}
}

// Sweep runs one pass and returns the number of blobs removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	prefixes := []string{VideoPrefix, ThumbnailPrefix}
	listed := make([][]storage.ObjectInfo, len(prefixes))

	g, gctx := errgroup.WithContext(ctx)
	for i, prefix := range prefixes {
		g.Go(func() error {
			infos, err := s.blobs.List(gctx, prefix)
			if err != nil {
				return fmt.Errorf("list %s: %w", prefix, err)
			}
			listed[i] = infos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.grace)
	removed := 0
	for _, infos := range listed {
		for _, info := range infos {
			if info.LastModified.After(cutoff) {
				continue
			}
			referenced, err := s.records.KeyReferenced(ctx, info.Key)
			if err != nil {
				return removed, fmt.Errorf("check %s: %w", info.Key, err)
			}
			if referenced {
				continue
			}
			if err := s.blobs.Delete(ctx, info.Key); err != nil {
				slog.Warn("sweep delete failed", "key", info.Key, "error", err)
				continue
			}
			removed++
			observability.SweptBlobs.Inc()
			slog.Info("swept orphaned blob", "key", info.Key, "size", info.Size, "modified", info.LastModified)
		}
	}
	return removed, nil
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := s.Sweep(ctx); err != nil {
			slog.Error("sweep failed", "error", err)
		} else if n > 0 {
			slog.Info("sweep complete", "removed", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
