package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/internal/models"
)

// MemoryStore is an in-process RecordStore. Records do not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]models.VideoAsset
}

var _ RecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assets: make(map[uuid.UUID]models.VideoAsset)}
}

func (s *MemoryStore) Create(ctx context.Context, a *models.VideoAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[a.ID]; ok {
		return fmt.Errorf("create asset: duplicate id %s", a.ID)
	}
	for _, existing := range s.assets {
		if existing.BlobKey == a.BlobKey {
			return fmt.Errorf("create asset: duplicate blob key %s", a.BlobKey)
		}
	}
	s.assets[a.ID] = cloneAsset(*a)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.VideoAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("get asset %s: %w", id, errs.ErrNotFound)
	}
	out := cloneAsset(a)
	return &out, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]models.VideoAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.VideoAsset{}
	for _, a := range s.assets {
		if a.OwnerID == ownerID {
			out = append(out, cloneAsset(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[id]; !ok {
		return fmt.Errorf("delete asset %s: %w", id, errs.ErrNotFound)
	}
	delete(s.assets, id)
	return nil
}

func (s *MemoryStore) KeyReferenced(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.assets {
		if a.BlobKey == key || (a.ThumbnailKey != nil && *a.ThumbnailKey == key) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func cloneAsset(a models.VideoAsset) models.VideoAsset {
	if a.ThumbnailKey != nil {
		t := *a.ThumbnailKey
		a.ThumbnailKey = &t
	}
	return a
}
