package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/your-org/buddywatch/internal/errs"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "assets.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	thumb := "thumbnails/a_thumbnail.png"
	a := newAsset("u1", "videos/a.mp4", base)
	a.ThumbnailKey = &thumb
	a.Filename = "a.mp4"
	a.ContentType = "video/mp4"
	a.Size = 42
	b := newAsset("u1", "videos/b.mp4", base.Add(time.Hour))
	c := newAsset("u2", "videos/c.mp4", base.Add(2*time.Hour))

	if err := s.Create(ctx, a); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := s.Create(ctx, b); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("Create c: %v", err)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ThumbnailKey == nil || *got.ThumbnailKey != thumb || got.Filename != "a.mp4" || got.Size != 42 || got.ContentType != "video/mp4" {
		t.Errorf("Get = %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, base)
	}

	gotB, err := s.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get b: %v", err)
	}
	if gotB.ThumbnailKey != nil {
		t.Errorf("thumbnail key = %q, want nil", *gotB.ThumbnailKey)
	}

	list, err := s.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("ListByOwner = %+v", list)
	}
}

func TestSQLiteStoreDeleteAndKeyReferenced(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	thumb := "thumbnails/x_thumbnail.png"
	a := newAsset("u1", "videos/x.mp4", time.Now())
	a.ThumbnailKey = &thumb
	if err := s.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, key := range []string{a.BlobKey, thumb} {
		ok, err := s.KeyReferenced(ctx, key)
		if err != nil || !ok {
			t.Errorf("KeyReferenced(%s) = %v, %v", key, ok, err)
		}
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, a.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
	if ok, _ := s.KeyReferenced(ctx, a.BlobKey); ok {
		t.Error("key still referenced after delete")
	}
}

func TestSQLiteStoreRejectsDuplicateBlobKey(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	if err := s.Create(ctx, newAsset("u1", "videos/dup", time.Now())); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, newAsset("u2", "videos/dup", time.Now())); err == nil {
		t.Fatal("duplicate blob key accepted")
	}
}
