package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ridehub/apiserver/internal/services"
	"github.com/ridehub/apiserver/internal/storage"
	"github.com/ridehub/apiserver/internal/store"
	"github.com/ridehub/apiserver/types"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00fake-jpeg-body")

type userRepo struct {
	mu    sync.Mutex
	users map[string]types.User
}

func (r *userRepo) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *userRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		all = append(all, user)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *userRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *userRepo) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *userRepo) setRole(id string, role types.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.users[id]
	user.Role = role
	r.users[id] = user
}

type photoRepo struct {
	mu     sync.Mutex
	photos map[string]types.Photo
}

func (r *photoRepo) Create(_ context.Context, photo types.Photo) (types.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.photos[photo.ID] = photo
	return photo, nil
}

func (r *photoRepo) Get(_ context.Context, id string) (types.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	photo, ok := r.photos[id]
	if !ok {
		return types.Photo{}, store.ErrNotFound
	}
	return photo, nil
}

func (r *photoRepo) GetByFilename(_ context.Context, filename string) (types.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, photo := range r.photos {
		if photo.Filename == filename {
			return photo, nil
		}
	}
	return types.Photo{}, store.ErrNotFound
}

func (r *photoRepo) ListByUser(_ context.Context, userID string) ([]types.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	photos := make([]types.Photo, 0)
	for _, photo := range r.photos {
		if photo.UserID == userID {
			photos = append(photos, photo)
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].UploadedAt.After(photos[j].UploadedAt) })
	return photos, nil
}

func (r *photoRepo) SetProfile(_ context.Context, userID, photoID string) error {
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

func (r *photoRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.photos[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.photos, id)
	return nil
}

type testEnv struct {
	router *chi.Mux
	users  *userRepo
	photos *photoRepo
	tokens *services.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	users := &userRepo{users: map[string]types.User{}}
	photos := &photoRepo{photos: map[string]types.Photo{}}

	client, err := storage.NewLocalClientFs(afero.NewMemMapFs(), "photos")
	if err != nil {
		t.Fatalf("local client: %v", err)
	}
	objects := storage.NewStorage(client)
	if err := objects.EnsureBucket(context.Background()); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}

	tokens := services.NewTokenService("handler-secret", 0)
	authService := services.NewAuthService(users, tokens, services.NewValidator(nil), logger)
	userService := services.NewUserService(users, logger)
	photoService := services.NewPhotoService(photos, objects, 0, logger)

	authHandler := NewAuthHandler(authService, photoService, logger)
	authMiddleware := RequireAuth(authService, logger)

	router := chi.NewRouter()
	router.Use(Recoverer(logger), RequestLogger(logger))
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authHandler, authMiddleware)
	})
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, authHandler, authMiddleware)
	})
	router.Route("/photos", func(r chi.Router) {
		PhotoRouter(r, NewPhotoHandler(photoService, logger), authMiddleware)
	})
	router.Route("/admin", func(r chi.Router) {
		AdminRouter(r, NewAdminHandler(userService, logger), authMiddleware)
	})

	return &testEnv{router: router, users: users, photos: photos, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) getWithAuthorization(t *testing.T, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	}
	return e.do(t, method, path, token, body, "application/json")
}

func (e *testEnv) register(t *testing.T, email string) AuthResponse {
	t.Helper()
	rec := e.doJSON(t, http.MethodPost, "/users/register", "", map[string]any{
		"firstName": "Jane",
		"lastName":  "Doe",
		"email":     email,
		"password":  "Passw0rd",
		"role":      "passenger",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var resp AuthResponse
	decodeBody(t, rec, &resp)
	return resp
}

func (e *testEnv) uploadPhoto(t *testing.T, token, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, formType := multipartBody(t, nil, formFieldPhoto, filename, contentType, data)
	return e.do(t, http.MethodPost, "/photos/upload", token, body, formType)
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="`+filename+`"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}
