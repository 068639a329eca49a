package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/internal/models"
	"github.com/your-org/buddywatch/internal/storage"
)

type memBlob struct {
	data        []byte
	contentType string
	modified    time.Time
}

// memBlobs is a BlobStore with per-prefix failure injection.
type memBlobs struct {
	mu        sync.Mutex
	blobs     map[string]memBlob
	putErr    map[string]error // keyed by key prefix
	deleteErr error
	now       func() time.Time
}

func newMemBlobs() *memBlobs {
	return &memBlobs{
		blobs:  make(map[string]memBlob),
		putErr: make(map[string]error),
		now:    time.Now,
	}
}

func (m *memBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for prefix, err := range m.putErr {
		if strings.HasPrefix(key, prefix) {
			return err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.blobs[key] = memBlob{data: data, contentType: contentType, modified: m.now()}
	return nil
}

func (m *memBlobs) Get(ctx context.Context, key string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, errs.ErrBlobNotFound)
	}
	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(b.data)),
		Size:        int64(len(b.data)),
		ContentType: b.contentType,
	}, nil
}

func (m *memBlobs) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.blobs, key)
	return nil
}

func (m *memBlobs) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, b := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(b.data)), LastModified: b.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memBlobs) Ping(ctx context.Context) error { return nil }

func (m *memBlobs) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *memBlobs) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
}

// failingRecords wraps a MemoryStore and fails selected operations.
type failingRecords struct {
	*storage.MemoryStore
	createErr error
	deleteErr error
}

func (f *failingRecords) Create(ctx context.Context, a *models.VideoAsset) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.MemoryStore.Create(ctx, a)
}

func (f *failingRecords) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryStore.Delete(ctx, id)
}

// stubExtractor returns frame, or err when set.
type stubExtractor struct {
	frame []byte
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubExtractor) ExtractFirstFrame(ctx context.Context, video io.Reader) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if _, err := io.Copy(io.Discard, video); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AssetEvent
	err    error
}

func (p *recordingPublisher) PublishAssetEvent(ctx context.Context, ev models.AssetEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

var errBackendDown = errors.New("backend down")
