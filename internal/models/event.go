package models

import (
	"time"

	"github.com/google/uuid"
)

type AssetEventType string

const (
	AssetCreated AssetEventType = "asset.created"
	AssetDeleted AssetEventType = "asset.deleted"
)

// AssetEvent is published to NATS after an asset changes.
type AssetEvent struct {
	Type      AssetEventType `json:"type"`
	AssetID   uuid.UUID      `json:"asset_id"`
	OwnerID   string         `json:"owner_id"`
	Title     string         `json:"title,omitempty"`
	Thumbnail bool           `json:"thumbnail"`
	Timestamp time.Time      `json:"timestamp"`
}
