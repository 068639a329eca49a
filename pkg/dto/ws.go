package dto

import "github.com/google/uuid"

// WSEvent is a WebSocket message announcing an asset lifecycle change.
type WSEvent struct {
	Type      string    `json:"type"` // asset.created, asset.deleted
	AssetID   uuid.UUID `json:"asset_id"`
	Title     string    `json:"title,omitempty"`
	Thumbnail bool      `json:"thumbnail"`
	Timestamp string    `json:"timestamp"`
}
