package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ridehub/apiserver/internal/services"
	"go.uber.org/zap"
)

const formFieldPhoto = "photo"

// PhotoHandler provides HTTP handlers for photos.
type PhotoHandler struct {
	photos *services.PhotoService
	logger *zap.Logger
}

func NewPhotoHandler(photos *services.PhotoService, logger *zap.Logger) *PhotoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhotoHandler{photos: photos, logger: logger}
}

// PhotoRouter registers photo routes. Only the file route is public.
func PhotoRouter(r chi.Router, handler *PhotoHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/file/{filename}", handler.ServeFile)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/upload", handler.Upload)
		r.Put("/profile/{photoID}", handler.SetProfile)
		r.Get("/user", handler.ListMine)
		r.Get("/{photoID}", handler.Get)
		r.Delete("/{photoID}", handler.Delete)
	})
}

func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.photos.MaxBytes()+multipartOverheadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "uploaded file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldPhoto)
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	photo, err := h.photos.Upload(r.Context(), identity.UserID, file, header.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, h.logger, err, "photo not found")
		return
	}

	writeJSON(w, http.StatusCreated, photo)
}

func (h *PhotoHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.photos.SetProfilePhoto(r.Context(), identity.UserID, chi.URLParam(r, "photoID")); err != nil {
		writeServiceError(w, h.logger, err, "photo not found")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *PhotoHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	photos, err := h.photos.ListUserPhotos(r.Context(), identity.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err, "photo not found")
		return
	}

	writeJSON(w, http.StatusOK, photos)
}

func (h *PhotoHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	photo, err := h.photos.GetPhoto(r.Context(), chi.URLParam(r, "photoID"), identity)
	if err != nil {
		writeServiceError(w, h.logger, err, "photo not found")
		return
	}

	writeJSON(w, http.StatusOK, photo)
}

func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.photos.DeletePhoto(r.Context(), chi.URLParam(r, "photoID"), identity); err != nil {
		writeServiceError(w, h.logger, err, "photo not found")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ServeFile streams the stored bytes of a photo by its public filename.
func (h *PhotoHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	rc, photo, err := h.photos.Open(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		writeServiceError(w, h.logger, err, "file not found")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", photo.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(photo.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream photo interrupted", zap.String("photo_id", photo.ID), zap.Error(err))
	}
}
