package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/your-org/buddywatch/internal/errs"
)

const tmpPrefix = ".tmp-"

// FSStore implements BlobStore on the local filesystem. Keys are
// slash-separated paths relative to the root directory.
type FSStore struct {
	root string
}

var _ BlobStore = (*FSStore)(nil)

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: abs}, nil
}

// Put writes through a temp file and renames it into place, so readers
// never observe a partial blob.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	defer observeBlobOp("put", time.Now())

	p, err := s.path(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, mapFSError(err))
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, mapFSError(err))
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, mapFSError(err))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, mapFSError(err))
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("rename %s: %w", key, mapFSError(err))
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, key string) (*Object, error) {
	defer observeBlobOp("get", time.Now())

	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, mapFSError(err))
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", key, mapFSError(err))
	}

	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Object{Body: f, Size: info.Size(), ContentType: ct}, nil
}

func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, mapFSError(err))
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	defer observeBlobOp("delete", time.Now())

	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, mapFSError(err))
	}
	return nil
}

// List walks the directory tree below prefix. In-flight temp files are skipped.
func (s *FSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	defer observeBlobOp("list", time.Now())

	var out []ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, mapFSError(err))
	}
	return out, nil
}

func (s *FSStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.root); err != nil {
		return mapFSError(err)
	}
	return nil
}

// path resolves key below the root and rejects traversal outside it.
func (s *FSStore) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty blob key", errs.ErrValidation)
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: invalid blob key %q", errs.ErrValidation, key)
	}
	return p, nil
}

func mapFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", errs.ErrBlobNotFound, err)
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%w: %w", errs.ErrStorageQuotaExceeded, err)
	default:
		return fmt.Errorf("%w: %w", errs.ErrStorageUnavailable, err)
	}
}
