package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/buddywatch/internal/config"
	"github.com/your-org/buddywatch/internal/errs"
)

type MinIOStore struct {
	client *minio.Client
	bucket string
}

var _ BlobStore = (*MinIOStore)(nil)

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", mapMinIOError(err))
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", mapMinIOError(err))
		}
	}
	return nil
}

// Put uploads size bytes from r under key. A negative size streams with multipart upload.
func (s *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	defer observeBlobOp("put", time.Now())

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, mapMinIOError(err))
	}
	return nil
}

// Get opens key for streaming. The object is stat'ed first so a missing key
// fails here rather than on the first read.
func (s *MinIOStore) Get(ctx context.Context, key string) (*Object, error) {
	defer observeBlobOp("get", time.Now())

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, mapMinIOError(err))
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat object %s: %w", key, mapMinIOError(err))
	}

	return &Object{
		Body:        obj,
		Size:        info.Size,
		ContentType: info.ContentType,
	}, nil
}

func (s *MinIOStore) Exists(ctx context.Context, key string) (bool, error) {
	defer observeBlobOp("exists", time.Now())

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	mapped := mapMinIOError(err)
	if errs.IsBlobNotFound(mapped) {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s: %w", key, mapped)
}

// Delete removes an object from MinIO. S3 semantics make this idempotent.
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	defer observeBlobOp("delete", time.Now())

	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		mapped := mapMinIOError(err)
		if errs.IsBlobNotFound(mapped) {
			return nil
		}
		return fmt.Errorf("delete object %s: %w", key, mapped)
	}
	return nil
}

// List returns all objects under the given prefix, in the order MinIO returns them.
func (s *MinIOStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	defer observeBlobOp("list", time.Now())

	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, mapMinIOError(obj.Err))
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

// Ping checks MinIO connectivity.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return mapMinIOError(err)
	}
	return nil
}

func mapMinIOError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchBucket":
		return fmt.Errorf("%w: %w", errs.ErrStorageUnavailable, err)
	case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", errs.ErrBlobNotFound, err)
	case resp.Code == "QuotaExceeded" || resp.Code == "EntityTooLarge" ||
		resp.Code == "XMinioStorageFull" || resp.StatusCode == http.StatusInsufficientStorage:
		return fmt.Errorf("%w: %w", errs.ErrStorageQuotaExceeded, err)
	default:
		return fmt.Errorf("%w: %w", errs.ErrStorageUnavailable, err)
	}
}
