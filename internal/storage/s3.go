package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/your-org/buddywatch/internal/config"
	"github.com/your-org/buddywatch/internal/errs"
)

// S3Store implements BlobStore on AWS S3 or any S3-compatible endpoint.
type S3Store struct {
	client *s3.Client
	bucket string
}

var _ BlobStore = (*S3Store)(nil)

// NewS3Store loads the default AWS config chain; static keys in cfg take precedence.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	defer observeBlobOp("put", time.Now())

	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put object %s: %w", key, mapS3Error(err))
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	defer observeBlobOp("get", time.Now())

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, mapS3Error(err))
	}

	return &Object{
		Body:        out.Body,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	defer observeBlobOp("exists", time.Now())

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	mapped := mapS3Error(err)
	if errs.IsBlobNotFound(mapped) {
		return false, nil
	}
	return false, fmt.Errorf("head object %s: %w", key, mapped)
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	defer observeBlobOp("delete", time.Now())

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		mapped := mapS3Error(err)
		if errs.IsBlobNotFound(mapped) {
			return nil
		}
		return fmt.Errorf("delete object %s: %w", key, mapped)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	defer observeBlobOp("list", time.Now())

	var out []ObjectInfo
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, mapS3Error(err))
		}
		for _, obj := range page.Contents {
			out = append(out, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return mapS3Error(err)
	}
	return nil
}

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", errs.ErrBlobNotFound, err)
		case "QuotaExceeded", "EntityTooLarge", "InsufficientStorage":
			return fmt.Errorf("%w: %w", errs.ErrStorageQuotaExceeded, err)
		}
	}
	return fmt.Errorf("%w: %w", errs.ErrStorageUnavailable, err)
}
