package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestAtStage(t *testing.T) {
	if AtStage(StageStore, nil) != nil {
		t.Fatal("AtStage(nil) must stay nil")
	}

	err := AtStage(StageStore, fmt.Errorf("put: %w", ErrStorageUnavailable))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Error("sentinel lost through StageError")
	}
	if Stage(err) != StageStore {
		t.Errorf("Stage = %q", Stage(err))
	}
	if got := err.Error(); got != "store: put: storage unavailable" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := fmt.Errorf("upload: %w", err)
	if Stage(wrapped) != StageStore {
		t.Error("Stage not found through wrapping")
	}
	if Stage(ErrNotFound) != "" {
		t.Error("untagged error reported a stage")
	}
}

func TestValidation(t *testing.T) {
	err := Validation("title is required")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("Validation does not wrap ErrValidation")
	}
	if err.Error() != "validation failed: title is required" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestIsBlobNotFound(t *testing.T) {
	if !IsBlobNotFound(fmt.Errorf("get x: %w", ErrBlobNotFound)) {
		t.Error("wrapped ErrBlobNotFound not detected")
	}
	if IsBlobNotFound(ErrBlobMissing) {
		t.Error("ErrBlobMissing is not a backend miss")
	}
}
