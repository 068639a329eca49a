package storage

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"

	"github.com/your-org/buddywatch/internal/errs"
)

func TestMapMinIOError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, errs.ErrBlobNotFound},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, errs.ErrStorageUnavailable},
		{"quota", minio.ErrorResponse{Code: "QuotaExceeded", StatusCode: http.StatusForbidden}, errs.ErrStorageQuotaExceeded},
		{"insufficient storage", minio.ErrorResponse{StatusCode: http.StatusInsufficientStorage}, errs.ErrStorageQuotaExceeded},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.ErrStorageUnavailable},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapMinIOError(tt.in); !errors.Is(got, tt.want) {
				t.Errorf("mapMinIOError = %v, want %v", got, tt.want)
			}
		})
	}
	if mapMinIOError(nil) != nil {
		t.Error("mapMinIOError(nil) != nil")
	}
}

func TestMapS3Error(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, errs.ErrBlobNotFound},
		{"head not found", &smithy.GenericAPIError{Code: "NotFound"}, errs.ErrBlobNotFound},
		{"too large", &smithy.GenericAPIError{Code: "EntityTooLarge"}, errs.ErrStorageQuotaExceeded},
		{"expired token", &smithy.GenericAPIError{Code: "ExpiredToken"}, errs.ErrStorageUnavailable},
		{"transport", errors.New("i/o timeout"), errs.ErrStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapS3Error(tt.in); !errors.Is(got, tt.want) {
				t.Errorf("mapS3Error = %v, want %v", got, tt.want)
			}
		})
	}
}
