package models

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VideoAsset is the metadata record of an uploaded clip.
// OwnerID, BlobKey and CreatedAt never change after creation.
type VideoAsset struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	Title        string    `json:"title" db:"title"`
	BlobKey      string    `json:"blob_key" db:"blob_key"`
	ThumbnailKey *string   `json:"thumbnail_key,omitempty" db:"thumbnail_key"`
	Filename     string    `json:"filename" db:"filename"`
	ContentType  string    `json:"content_type" db:"content_type"`
	Size         int64     `json:"size" db:"size"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// HasThumbnail reports whether frame extraction produced a thumbnail.
func (a *VideoAsset) HasThumbnail() bool {
	return a.ThumbnailKey != nil && *a.ThumbnailKey != ""
}

// DownloadName returns the filename hint sent with a download.
func (a *VideoAsset) DownloadName() string {
	if a.Filename != "" {
		return path.Base(a.Filename)
	}
	name := strings.TrimSpace(a.Title)
	if name == "" {
		name = a.ID.String()
	}
	return name + path.Ext(a.BlobKey)
}

// UploadState is a step of the upload state machine.
type UploadState string

const (
	UploadReceived         UploadState = "received"
	UploadValidated        UploadState = "validated"
	UploadStored           UploadState = "stored"
	UploadThumbnailed      UploadState = "thumbnailed"
	UploadThumbnailSkipped UploadState = "thumbnail_skipped"
	UploadPersisted        UploadState = "persisted"
	UploadFailed           UploadState = "failed"
)
