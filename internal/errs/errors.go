// Package errs defines the error taxonomy shared by the asset pipeline,
// the inference service and the HTTP layer that maps them to responses.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")

	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrStorageQuotaExceeded = errors.New("storage quota exceeded")

	// ErrBlobNotFound is returned by blob backends for a missing key.
	ErrBlobNotFound = errors.New("blob not found")

	ErrDecodeFailed = errors.New("video decode failed")
	ErrEmptyVideo   = errors.New("video has no readable frames")

	// ErrBlobMissing means a record exists but its backing blob does not.
	ErrBlobMissing = errors.New("blob missing for existing record")

	ErrInvalidImage = errors.New("invalid image")
	ErrPersistence  = errors.New("metadata persistence failed")
	ErrModelOutput  = errors.New("unexpected model output")
)

// Stages reported in StageError.
const (
	StageValidate   = "validate"
	StageStore      = "store"
	StageThumbnail  = "thumbnail"
	StagePersist    = "persist"
	StageLookup     = "lookup"
	StageDelete     = "delete"
	StageDownload   = "download"
	StagePreprocess = "preprocess"
	StageInference  = "inference"
)

// StageError tags an error with the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage wraps err with stage information. A nil err stays nil.
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Stage returns the innermost recorded stage of err, or "" if none.
func Stage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Validation builds an ErrValidation-wrapping error with a reason.
func Validation(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// IsBlobNotFound reports whether err marks a missing blob key.
func IsBlobNotFound(err error) bool {
	return errors.Is(err, ErrBlobNotFound)
}
