package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/buddywatch/internal/models"
	"github.com/your-org/buddywatch/internal/observability"
)

// Object is a streamed blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// ObjectInfo describes a stored blob without opening it.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobStore is a named byte store.
//
// Get returns errs.ErrBlobNotFound for a missing key. Exists never fails for
// a missing key. Delete of a missing key is not an error. Backend failures are
// reported as errs.ErrStorageUnavailable or errs.ErrStorageQuotaExceeded.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Ping(ctx context.Context) error
}

// RecordStore persists VideoAsset metadata.
// Get and Delete return errs.ErrNotFound for an unknown id.
type RecordStore interface {
	Create(ctx context.Context, asset *models.VideoAsset) error
	Get(ctx context.Context, id uuid.UUID) (*models.VideoAsset, error)
	// ListByOwner returns the owner's assets, most recent first.
	ListByOwner(ctx context.Context, ownerID string) ([]models.VideoAsset, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// KeyReferenced reports whether any record uses key as video or thumbnail.
	KeyReferenced(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

func observeBlobOp(op string, start time.Time) {
	observability.BlobOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
