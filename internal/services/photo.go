package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/ridehub/apiserver/internal/storage"
	"github.com/ridehub/apiserver/types"
	"go.uber.org/zap"
)

const DefaultMaxPhotoBytes int64 = 10 << 20

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// PhotoRepository defines persistence operations for photo metadata.
type PhotoRepository interface {
	Create(ctx context.Context, photo types.Photo) (types.Photo, error)
	Get(ctx context.Context, id string) (types.Photo, error)
	GetByFilename(ctx context.Context, filename string) (types.Photo, error)
	ListByUser(ctx context.Context, userID string) ([]types.Photo, error)
	SetProfile(ctx context.Context, userID, photoID string) error
	Delete(ctx context.Context, id string) error
}

// ObjectStore is the subset of storage.Storage used for photo bytes.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher is satisfied by *mq.MQ.
type EventPublisher interface {
	PublishJSON(ctx context.Context, channel string, value any, attrs map[string]string) (string, error)
}

// PhotoService encapsulates photo upload, ownership and serving use-cases.
type PhotoService struct {
	repo     PhotoRepository
	objects  ObjectStore
	logger   *zap.Logger
	maxBytes int64
	now      func() time.Time

	events  EventPublisher
	channel string
}

func NewPhotoService(repo PhotoRepository, objects ObjectStore, maxBytes int64, logger *zap.Logger) *PhotoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPhotoBytes
	}
	return &PhotoService{
		repo:     repo,
		objects:  objects,
		logger:   logger.With(zap.String("component", "photos")),
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// WithEvents enables publishing of photo events to channel.
func (s *PhotoService) WithEvents(publisher EventPublisher, channel string) *PhotoService {
	s.events = publisher
	s.channel = channel
	return s
}

// MaxBytes is the largest accepted upload.
func (s *PhotoService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores an image for userID under a random filename and records its
// metadata. The declared type must be image/* and the content itself must
// sniff as an allowed image format.
func (s *PhotoService) Upload(ctx context.Context, userID string, data io.Reader, declaredMIME string) (types.Photo, error) {
	mediaType, _, err := mime.ParseMediaType(declaredMIME)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return types.Photo{}, fmt.Errorf("%w: declared type %q is not an image", ErrInvalidFile, declaredMIME)
	}

	payload, err := io.ReadAll(io.LimitReader(data, s.maxBytes+1))
	if err != nil {
		return types.Photo{}, fmt.Errorf("read upload: %w", err)
	}
	if len(payload) == 0 {
		return types.Photo{}, fmt.Errorf("%w: empty file", ErrInvalidFile)
	}
	if int64(len(payload)) > s.maxBytes {
		return types.Photo{}, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidFile, s.maxBytes)
	}

	detected := mimetype.Detect(payload)
	contentType := detected.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !allowedPhotoTypes[contentType] {
		return types.Photo{}, fmt.Errorf("%w: content is %s", ErrInvalidFile, contentType)
	}

	filename := strings.ReplaceAll(uuid.NewString(), "-", "") + detected.Extension()
	photo := types.Photo{
		ID:          uuid.NewString(),
		UserID:      userID,
		Filename:    filename,
		ObjectKey:   path.Join("photos", userID, filename),
		ContentType: contentType,
		Size:        int64(len(payload)),
		UploadedAt:  s.now().UTC(),
	}

	if err := s.objects.Put(ctx, photo.ObjectKey, bytes.NewReader(payload), photo.Size, photo.ContentType); err != nil {
		return types.Photo{}, fmt.Errorf("store photo: %w", err)
	}

	created, err := s.repo.Create(ctx, photo)
	if err != nil {
		if cleanupErr := s.objects.Delete(ctx, photo.ObjectKey); cleanupErr != nil {
			s.reportIntegrity(&IntegrityError{Op: "upload cleanup", PhotoID: photo.ID, Key: photo.ObjectKey, Err: cleanupErr})
		}
		return types.Photo{}, fmt.Errorf("create photo: %w", err)
	}

	s.logger.Info("photo uploaded",
		zap.String("photo_id", created.ID),
		zap.String("user_id", userID),
		zap.String("content_type", created.ContentType),
		zap.Int64("size", created.Size),
	)
	s.publish(ctx, types.PhotoUploaded, created)
	return created, nil
}

// SetProfilePhoto flags photoID as the user's only profile photo.
func (s *PhotoService) SetProfilePhoto(ctx context.Context, userID, photoID string) error {
	if _, err := uuid.Parse(photoID); err != nil {
		return ErrNotFound
	}
	if err := s.repo.SetProfile(ctx, userID, photoID); err != nil {
		return err
	}
	s.publish(ctx, types.PhotoProfileChanged, types.Photo{ID: photoID, UserID: userID})
	return nil
}

// ListUserPhotos returns the user's photos, most recent first.
func (s *PhotoService) ListUserPhotos(ctx context.Context, userID string) ([]types.Photo, error) {
	return s.repo.ListByUser(ctx, userID)
}

// GetPhoto returns the photo metadata if the requester owns it or is an admin.
func (s *PhotoService) GetPhoto(ctx context.Context, photoID string, requester Identity) (types.Photo, error) {
	if _, err := uuid.Parse(photoID); err != nil {
		return types.Photo{}, ErrNotFound
	}
	photo, err := s.repo.Get(ctx, photoID)
	if err != nil {
		return types.Photo{}, err
	}
	if photo.UserID != requester.UserID && !requester.IsAdmin() {
		return types.Photo{}, ErrForbidden
	}
	return photo, nil
}

// DeletePhoto removes the metadata and then the stored bytes. A failure to
// remove the bytes after the metadata is gone is returned as *IntegrityError.
func (s *PhotoService) DeletePhoto(ctx context.Context, photoID string, requester Identity) error {
	photo, err := s.GetPhoto(ctx, photoID, requester)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, photo.ID); err != nil {
		return fmt.Errorf("delete photo metadata: %w", err)
	}

	if err := s.objects.Delete(ctx, photo.ObjectKey); err != nil {
		integrityErr := &IntegrityError{Op: "delete", PhotoID: photo.ID, Key: photo.ObjectKey, Err: err}
		s.reportIntegrity(integrityErr)
		return integrityErr
	}

	s.logger.Info("photo deleted",
		zap.String("photo_id", photo.ID),
		zap.String("user_id", photo.UserID),
		zap.String("requested_by", requester.UserID),
	)
	s.publish(ctx, types.PhotoDeleted, photo)
	return nil
}

// Open streams the bytes of a stored photo by its public filename. The
// caller must close the returned reader.
func (s *PhotoService) Open(ctx context.Context, filename string) (io.ReadCloser, types.Photo, error) {
	if filename == "" || strings.ContainsAny(filename, `/\`) {
		return nil, types.Photo{}, ErrNotFound
	}

	photo, err := s.repo.GetByFilename(ctx, filename)
	if err != nil {
		return nil, types.Photo{}, err
	}

	rc, err := s.objects.Get(ctx, photo.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.reportIntegrity(&IntegrityError{Op: "serve", PhotoID: photo.ID, Key: photo.ObjectKey, Err: err})
			return nil, types.Photo{}, ErrNotFound
		}
		return nil, types.Photo{}, fmt.Errorf("open photo: %w", err)
	}
	return rc, photo, nil
}

func (s *PhotoService) reportIntegrity(err *IntegrityError) {
	s.logger.Error("photo integrity violation",
		zap.String("op", err.Op),
		zap.String("photo_id", err.PhotoID),
		zap.String("object_key", err.Key),
		zap.Error(err.Err),
	)
}

func (s *PhotoService) publish(ctx context.Context, eventType types.PhotoEventType, photo types.Photo) {
	if s.events == nil || s.channel == "" {
		return
	}
	event := types.PhotoEvent{
		Type:       eventType,
		PhotoID:    photo.ID,
		UserID:     photo.UserID,
		Filename:   photo.Filename,
		OccurredAt: s.now().UTC(),
	}
	if _, err := s.events.PublishJSON(ctx, s.channel, event, map[string]string{"event": string(eventType)}); err != nil {
		s.logger.Warn("publish photo event failed", zap.String("type", string(eventType)), zap.Error(err))
	}
}
