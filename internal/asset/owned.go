package asset

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/internal/models"
	"github.com/your-org/buddywatch/internal/storage"
)

// loadOwned fetches a record and hides it unless principal owns it. A
// missing id and someone else's id produce the same bare errs.ErrNotFound.
func loadOwned(ctx context.Context, records storage.RecordStore, principal string, id uuid.UUID) (*models.VideoAsset, error) {
	if principal == "" {
		return nil, errs.ErrUnauthenticated
	}
	a, err := records.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", errs.ErrPersistence, err)
	}
	if a.OwnerID != principal {
		return nil, errs.ErrNotFound
	}
	return a, nil
}
