// Package media attaches directory photos (speaker headshots, venue photos) stored in S3.
package media

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/audit"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/apperrors"
	"github.com/meetup-ops/backend/pkg/storage"
)

// ObjectStore is the bucket the photos live in; *storage.S3 satisfies it.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (*storage.PresignedUpload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, key string) error
}

// Owner stores the photo key on the owning directory entry.
type Owner interface {
	// PhotoKey returns the current key ("" when none) and NotFound for unknown IDs.
	PhotoKey(ctx context.Context, id uuid.UUID) (string, error)
	SetPhotoKey(ctx context.Context, id uuid.UUID, key string) error
}

// Photos manages one folder of the media bucket.
type Photos struct {
	objects    ObjectStore
	owners     Owner
	folder     string
	entityType models.EntityType
	audit      *audit.Recorder
	logger     *zap.Logger
}

// NewPhotos creates a photo manager. objects may be nil when S3 is not configured; every
// operation then fails with ErrUnavailable.
func NewPhotos(objects ObjectStore, owners Owner, folder string, entityType models.EntityType, rec *audit.Recorder, logger *zap.Logger) *Photos {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Photos{
		objects:    objects,
		owners:     owners,
		folder:     folder,
		entityType: entityType,
		audit:      rec,
		logger:     logger,
	}
}

func (p *Photos) ready() error {
	if p.objects == nil {
		return apperrors.Unavailable("photo storage")
	}
	return nil
}

// RequestUpload returns a presigned PUT URL for a new photo of ownerID. The client uploads
// directly, then calls Attach with the returned key.
func (p *Photos) RequestUpload(ctx context.Context, ownerID uuid.UUID, contentType, filename string) (*storage.PresignedUpload, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	ct, ok := storage.ImageContentType(contentType, filename)
	if !ok {
		return nil, apperrors.Validation("invalid file type: only jpeg, png and webp images are allowed")
	}
	if _, err := p.owners.PhotoKey(ctx, ownerID); err != nil {
		return nil, err
	}
	return p.objects.PresignUpload(ctx, storage.ObjectKey(p.folder, ownerID, ct), ct)
}

// Upload stores the photo server-side and attaches it.
func (p *Photos) Upload(ctx context.Context, actorID, ownerID uuid.UUID, contentType, filename string, size int64, body io.Reader) (string, error) {
	if err := p.ready(); err != nil {
		return "", err
	}
	if size > storage.MaxImageSize {
		return "", apperrors.Validation("file size exceeds 5MB limit")
	}
	ct, ok := storage.ImageContentType(contentType, filename)
	if !ok {
		return "", apperrors.Validation("invalid file type: only jpeg, png and webp images are allowed")
	}
	if _, err := p.owners.PhotoKey(ctx, ownerID); err != nil {
		return "", err
	}
	key := storage.ObjectKey(p.folder, ownerID, ct)
	if err := p.objects.Upload(ctx, key, ct, body); err != nil {
		return "", err
	}
	if err := p.Attach(ctx, actorID, ownerID, key); err != nil {
		return "", err
	}
	return key, nil
}

// Attach points the owner at key and removes the previous object best-effort.
func (p *Photos) Attach(ctx context.Context, actorID, ownerID uuid.UUID, key string) error {
	if err := p.ready(); err != nil {
		return err
	}
	if !storage.KeyBelongsTo(key, p.folder, ownerID) {
		return apperrors.Validation("key does not belong to this %s", p.folder)
	}
	previous, err := p.owners.PhotoKey(ctx, ownerID)
	if err != nil {
		return err
	}
	if previous == key {
		return nil
	}
	if err := p.owners.SetPhotoKey(ctx, ownerID, key); err != nil {
		return err
	}
	p.audit.LogChanges(ctx, audit.Entry{
		UserID:     actorID,
		EntityType: p.entityType,
		EntityID:   ownerID,
	}, map[string]any{"photo_key": previous}, map[string]any{"photo_key": key})
	if previous != "" {
		if err := p.objects.DeleteObject(context.WithoutCancel(ctx), previous); err != nil {
			p.logger.Warn("previous photo delete failed", zap.Error(err), zap.String("key", previous))
		}
	}
	return nil
}

// DownloadURL returns a presigned GET URL for the owner's photo.
func (p *Photos) DownloadURL(ctx context.Context, ownerID uuid.UUID) (string, error) {
	if err := p.ready(); err != nil {
		return "", err
	}
	key, err := p.owners.PhotoKey(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", apperrors.NotFound("photo")
	}
	return p.objects.PresignDownload(ctx, key)
}
