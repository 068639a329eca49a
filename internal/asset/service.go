// Package asset implements the owner-scoped video asset pipeline:
// upload (store, thumbnail, persist), listing, deletion and streaming download.
package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/internal/media"
	"github.com/your-org/buddywatch/internal/models"
	"github.com/your-org/buddywatch/internal/observability"
	"github.com/your-org/buddywatch/internal/storage"
)

const (
	VideoPrefix     = "videos/"
	ThumbnailPrefix = "thumbnails/"

	maxTitleLength = 255
	cleanupTimeout = 30 * time.Second
)

// FrameExtractor turns a video into still image bytes.
type FrameExtractor interface {
	ExtractFirstFrame(ctx context.Context, video io.Reader) ([]byte, error)
}

// EventPublisher announces asset lifecycle changes.
type EventPublisher interface {
	PublishAssetEvent(ctx context.Context, ev models.AssetEvent) error
}

type Service struct {
	blobs     storage.BlobStore
	records   storage.RecordStore
	extractor FrameExtractor
	events    EventPublisher
	now       func() time.Time
}

type Option func(*Service)

// WithEvents publishes asset.created / asset.deleted through p.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(blobs storage.BlobStore, records storage.RecordStore, extractor FrameExtractor, opts ...Option) *Service {
	s := &Service{
		blobs:     blobs,
		records:   records,
		extractor: extractor,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type UploadInput struct {
	Title       string
	Filename    string
	ContentType string
	Data        []byte
}

// Download is a streamed asset blob. Callers must close Body.
type Download struct {
	Body        io.ReadCloser
	Size        int64
	Filename    string
	ContentType string
}

// Upload runs validate -> store video -> extract/store thumbnail -> persist record.
// The record is written last, so a failed or abandoned upload is never visible;
// at worst it leaves blobs for the sweeper.
func (s *Service) Upload(ctx context.Context, principal string, in UploadInput) (*models.VideoAsset, error) {
	if principal == "" {
		return nil, errs.ErrUnauthenticated
	}

	a := &models.VideoAsset{
		ID:       uuid.New(),
		OwnerID:  principal,
		Title:    strings.TrimSpace(in.Title),
		Filename: path.Base(strings.ReplaceAll(in.Filename, "\\", "/")),
		Size:     int64(len(in.Data)),
	}
	if a.Filename == "." || a.Filename == "/" {
		a.Filename = ""
	}
	log := slog.With("asset_id", a.ID, "owner", principal)
	s.transition(log, models.UploadReceived)

	if err := validateUpload(a.Title, in.Data); err != nil {
		observability.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, errs.AtStage(errs.StageValidate, err)
	}
	s.transition(log, models.UploadValidated)

	a.ContentType = in.ContentType
	if a.ContentType == "" || a.ContentType == "application/octet-stream" {
		a.ContentType = http.DetectContentType(in.Data)
	}
	a.BlobKey = VideoPrefix + uuid.NewString() + extension(a.Filename)

	if err := s.blobs.Put(ctx, a.BlobKey, bytes.NewReader(in.Data), a.Size, a.ContentType); err != nil {
		s.transition(log, models.UploadFailed)
		observability.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, errs.AtStage(errs.StageStore, storageError(err))
	}
	s.transition(log, models.UploadStored)

	if key, ok := s.storeThumbnail(ctx, log, in.Data); ok {
		a.ThumbnailKey = &key
		s.transition(log, models.UploadThumbnailed)
	} else {
		s.transition(log, models.UploadThumbnailSkipped)
	}

	a.CreatedAt = s.now().UTC()
	if err := s.records.Create(ctx, a); err != nil {
		s.rollback(ctx, log, a)
		s.transition(log, models.UploadFailed)
		observability.UploadsTotal.WithLabelValues("failed").Inc()
		return nil, errs.AtStage(errs.StagePersist, fmt.Errorf("%w: %w", errs.ErrPersistence, err))
	}
	s.transition(log, models.UploadPersisted)

	if a.HasThumbnail() {
		observability.UploadsTotal.WithLabelValues("persisted").Inc()
	} else {
		observability.UploadsTotal.WithLabelValues("persisted_without_thumbnail").Inc()
	}
	s.publish(ctx, models.AssetCreated, a)
	log.Info("video uploaded", "blob_key", a.BlobKey, "thumbnail", a.HasThumbnail(), "size", a.Size)

	return a, nil
}

// storeThumbnail never fails the upload: any extractor or storage error
// degrades to "no thumbnail".
func (s *Service) storeThumbnail(ctx context.Context, log *slog.Logger, video []byte) (string, bool) {
	frame, err := s.extractor.ExtractFirstFrame(ctx, bytes.NewReader(video))
	if err != nil {
		result := "skipped_error"
		switch {
		case errors.Is(err, errs.ErrDecodeFailed):
			result = "skipped_decode"
		case errors.Is(err, errs.ErrEmptyVideo):
			result = "skipped_empty"
		}
		observability.ThumbnailsTotal.WithLabelValues(result).Inc()
		log.Warn("thumbnail extraction skipped", "error", err)
		return "", false
	}

	key := ThumbnailPrefix + uuid.NewString() + "_thumbnail.png"
	if err := s.blobs.Put(ctx, key, bytes.NewReader(frame), int64(len(frame)), media.ThumbnailContentType); err != nil {
		observability.ThumbnailsTotal.WithLabelValues("skipped_store").Inc()
		log.Warn("store thumbnail failed; continuing without", "key", key, "error", err)
		s.bestEffortDelete(ctx, log, key)
		return "", false
	}

	observability.ThumbnailsTotal.WithLabelValues("created").Inc()
	return key, true
}

// rollback removes the blobs of an upload whose record could not be written.
func (s *Service) rollback(ctx context.Context, log *slog.Logger, a *models.VideoAsset) {
	if a.HasThumbnail() {
		s.bestEffortDelete(ctx, log, *a.ThumbnailKey)
	}
	s.bestEffortDelete(ctx, log, a.BlobKey)
}

// bestEffortDelete outlives request cancellation so a torn-down request
// still cleans up after itself when it can.
func (s *Service) bestEffortDelete(ctx context.Context, log *slog.Logger, key string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.blobs.Delete(ctx, key); err != nil {
		log.Error("delete blob failed; left orphaned", "key", key, "error", err)
		return false
	}
	return true
}

// List returns the principal's assets, most recent first.
func (s *Service) List(ctx context.Context, principal string) ([]models.VideoAsset, error) {
	if principal == "" {
		return nil, errs.ErrUnauthenticated
	}
	assets, err := s.records.ListByOwner(ctx, principal)
	if err != nil {
		return nil, errs.AtStage(errs.StageLookup, fmt.Errorf("%w: %w", errs.ErrPersistence, err))
	}

	owned := make([]models.VideoAsset, 0, len(assets))
	for _, a := range assets {
		if a.OwnerID == principal {
			owned = append(owned, a)
		}
	}
	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	return owned, nil
}

// Get returns one asset owned by principal.
func (s *Service) Get(ctx context.Context, principal string, id uuid.UUID) (*models.VideoAsset, error) {
	a, err := loadOwned(ctx, s.records, principal, id)
	if err != nil {
		return nil, errs.AtStage(errs.StageLookup, err)
	}
	return a, nil
}

// Delete removes thumbnail blob, video blob, then the record. Blob deletion
// failures are logged and leave orphans; the record is still removed so it
// never outlives its blobs.
func (s *Service) Delete(ctx context.Context, principal string, id uuid.UUID) error {
	a, err := loadOwned(ctx, s.records, principal, id)
	if err != nil {
		return errs.AtStage(errs.StageLookup, err)
	}
	log := slog.With("asset_id", a.ID, "owner", principal)

	if a.HasThumbnail() {
		s.deleteBlob(ctx, log, *a.ThumbnailKey)
	}
	s.deleteBlob(ctx, log, a.BlobKey)

	if err := s.records.Delete(ctx, a.ID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.AtStage(errs.StageLookup, errs.ErrNotFound)
		}
		return errs.AtStage(errs.StageDelete, fmt.Errorf("%w: %w", errs.ErrPersistence, err))
	}

	s.publish(ctx, models.AssetDeleted, a)
	log.Info("video deleted")
	return nil
}

func (s *Service) deleteBlob(ctx context.Context, log *slog.Logger, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		log.Error("delete blob failed; left orphaned", "key", key, "error", err)
	}
}

// Download opens the asset's video for streaming.
func (s *Service) Download(ctx context.Context, principal string, id uuid.UUID) (*Download, error) {
	a, err := loadOwned(ctx, s.records, principal, id)
	if err != nil {
		return nil, errs.AtStage(errs.StageLookup, err)
	}

	obj, err := s.openBlob(ctx, a, a.BlobKey)
	if err != nil {
		return nil, errs.AtStage(errs.StageDownload, err)
	}

	ct := a.ContentType
	if ct == "" {
		ct = obj.ContentType
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Download{
		Body:        obj.Body,
		Size:        obj.Size,
		Filename:    a.DownloadName(),
		ContentType: ct,
	}, nil
}

// Thumbnail opens the asset's thumbnail. An asset without one is reported as ErrNotFound.
func (s *Service) Thumbnail(ctx context.Context, principal string, id uuid.UUID) (*Download, error) {
	a, err := loadOwned(ctx, s.records, principal, id)
	if err != nil {
		return nil, errs.AtStage(errs.StageLookup, err)
	}
	if !a.HasThumbnail() {
		return nil, errs.AtStage(errs.StageLookup, errs.ErrNotFound)
	}

	obj, err := s.openBlob(ctx, a, *a.ThumbnailKey)
	if err != nil {
		return nil, errs.AtStage(errs.StageDownload, err)
	}
	return &Download{
		Body:        obj.Body,
		Size:        obj.Size,
		Filename:    path.Base(*a.ThumbnailKey),
		ContentType: media.ThumbnailContentType,
	}, nil
}

func (s *Service) openBlob(ctx context.Context, a *models.VideoAsset, key string) (*storage.Object, error) {
	obj, err := s.blobs.Get(ctx, key)
	if err == nil {
		return obj, nil
	}
	if errs.IsBlobNotFound(err) {
		observability.IntegrityViolations.Inc()
		slog.Error("record points at missing blob", "asset_id", a.ID, "owner", a.OwnerID, "key", key)
		return nil, fmt.Errorf("%w: %s", errs.ErrBlobMissing, key)
	}
	return nil, storageError(err)
}

func (s *Service) publish(ctx context.Context, typ models.AssetEventType, a *models.VideoAsset) {
	if s.events == nil {
		return
	}
	ev := models.AssetEvent{
		Type:      typ,
		AssetID:   a.ID,
		OwnerID:   a.OwnerID,
		Title:     a.Title,
		Thumbnail: a.HasThumbnail(),
		Timestamp: s.now().UTC(),
	}
	if err := s.events.PublishAssetEvent(ctx, ev); err != nil {
		slog.Warn("publish asset event", "type", typ, "asset_id", a.ID, "error", err)
	}
}

func (s *Service) transition(log *slog.Logger, state models.UploadState) {
	log.Debug("upload state", "state", state)
}

func validateUpload(title string, data []byte) error {
	if title == "" {
		return errs.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return errs.Validation(fmt.Sprintf("title exceeds %d characters", maxTitleLength))
	}
	if len(data) == 0 {
		return errs.Validation("video payload is empty")
	}
	return nil
}

// storageError keeps quota/unavailable classification from the backend and
// treats anything unclassified as unavailable.
func storageError(err error) error {
	if errors.Is(err, errs.ErrStorageQuotaExceeded) || errors.Is(err, errs.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", errs.ErrStorageUnavailable, err)
}

// extension returns a short, safe lowercase extension of filename, or "".
func extension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
