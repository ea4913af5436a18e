package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ridehub/apiserver/internal/storage"
	"github.com/ridehub/apiserver/internal/store"
	"github.com/ridehub/apiserver/types"
	"github.com/spf13/afero"
)

type memUserRepo struct {
	mu      sync.Mutex
	users   map[string]types.User
	deleted map[string]bool
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]types.User{}, deleted: map[string]bool{}}
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok || r.deleted[id] {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if user.Email == email && !r.deleted[id] {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]types.User, 0, len(r.users))
	for id, user := range r.users {
		if !r.deleted[id] {
			all = append(all, user)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok || r.deleted[user.ID] {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok || r.deleted[id] {
		return store.ErrNotFound
	}
	r.deleted[id] = true
	return nil
}

type memPhotoRepo struct {
	mu        sync.Mutex
	photos    map[string]types.Photo
	createErr error
}

func newMemPhotoRepo() *memPhotoRepo {
	return &memPhotoRepo{photos: map[string]types.Photo{}}
}

func (r *memPhotoRepo) Create(_ context.Context, photo types.Photo) (types.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return types.Photo{}, r.createErr
	}
	photo.IsProfile = false
	r.photos[photo.ID] = photo
	return photo, nil
}

func (r *memPhotoRepo) Get(_ context.Context, id string) (types.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	photo, ok := r.photos[id]
	if !ok {
		return types.Photo{}, store.ErrNotFound
	}
	return photo, nil
}

func (r *memPhotoRepo) GetByFilename(_ context.Context, filename string) (types.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, photo := range r.photos {
		if photo.Filename == filename {
			return photo, nil
		}
	}
	return types.Photo{}, store.ErrNotFound
}

func (r *memPhotoRepo) ListByUser(_ context.Context, userID string) ([]types.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	photos := make([]types.Photo, 0)
	for _, photo := range r.photos {
		if photo.UserID == userID {
			photos = append(photos, photo)
		}
	}
	sort.Slice(photos, func(i, j int) bool {
		if photos[i].UploadedAt.Equal(photos[j].UploadedAt) {
			return photos[i].ID > photos[j].ID
		}
		return photos[i].UploadedAt.After(photos[j].UploadedAt)
	})
	return photos, nil
}

func (r *memPhotoRepo) SetProfile(_ context.Context, userID, photoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.photos[photoID]
	if !ok || target.UserID != userID {
		return store.ErrNotFound
	}
	for id, photo := range r.photos {
		if photo.UserID == userID {
			photo.IsProfile = id == photoID
			r.photos[id] = photo
		}
	}
	return nil
}

func (r *memPhotoRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.photos[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.photos, id)
	return nil
}

func (r *memPhotoRepo) profileCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, photo := range r.photos {
		if photo.UserID == userID && photo.IsProfile {
			count++
		}
	}
	return count
}

// failingDeleteStore wraps an ObjectStore and fails every Delete.
type failingDeleteStore struct {
	ObjectStore
}

func (f failingDeleteStore) Delete(context.Context, string) error {
	return errors.New("bucket unavailable")
}

// trackingStore remembers the keys written through it.
type trackingStore struct {
	ObjectStore
	mu   sync.Mutex
	keys []string
}

func (s *trackingStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return s.ObjectStore.Put(ctx, key, r, size, contentType)
}

type recordedEvent struct {
	channel string
	event   types.PhotoEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, channel string, value any, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	var event types.PhotoEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", err
	}
	p.events = append(p.events, recordedEvent{channel: channel, event: event})
	return "msg-id", nil
}

func (p *recordingPublisher) eventTypes() []types.PhotoEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.PhotoEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.event.Type)
	}
	return out
}

func newMemObjectStore(t *testing.T) *storage.Storage {
	t.Helper()
	client, err := storage.NewLocalClientFs(afero.NewMemMapFs(), "photos")
	if err != nil {
		t.Fatalf("new local client: %v", err)
	}
	s := storage.NewStorage(client)
	if err := s.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	return s
}

func objectExists(t *testing.T, objects ObjectStore, key string) bool {
	t.Helper()
	rc, err := objects.Get(context.Background(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return false
	}
	if err != nil {
		t.Fatalf("get object %s: %v", key, err)
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
	return true
}
