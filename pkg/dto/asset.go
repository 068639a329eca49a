package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/buddywatch/internal/models"
)

type VideoResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Filename     string    `json:"filename,omitempty"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	ThumbnailKey *string   `json:"thumbnail_key"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	DownloadURL  string    `json:"download_url"`
	CreatedAt    string    `json:"created_at"`
}

type VideoListResponse struct {
	Videos []VideoResponse `json:"videos"`
	Total  int             `json:"total"`
}

// NewVideoResponse renders an asset; link paths are relative to the API root.
func NewVideoResponse(a *models.VideoAsset, basePath string) VideoResponse {
	resp := VideoResponse{
		ID:           a.ID,
		Title:        a.Title,
		Filename:     a.Filename,
		ContentType:  a.ContentType,
		Size:         a.Size,
		ThumbnailKey: a.ThumbnailKey,
		DownloadURL:  basePath + "/videos/" + a.ID.String() + "/download",
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if a.HasThumbnail() {
		resp.ThumbnailURL = basePath + "/videos/" + a.ID.String() + "/thumbnail"
	}
	return resp
}
