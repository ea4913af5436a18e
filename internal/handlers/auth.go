package handlers

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ridehub/apiserver/internal/services"
	"github.com/ridehub/apiserver/types"
	"go.uber.org/zap"
)

const (
	maxMultipartMemory     = 32 << 20
	formFieldVehicleImage  = "vehicleImage"
	multipartOverheadBytes = 1 << 20
)

// AuthHandler provides registration, login and current-user endpoints.
type AuthHandler struct {
	auth   *services.AuthService
	photos *services.PhotoService
	logger *zap.Logger
}

// NewAuthHandler constructs an AuthHandler. photos may be nil, in which case
// a vehicle image sent with a registration is ignored.
func NewAuthHandler(auth *services.AuthService, photos *services.PhotoService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, photos: photos, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(authMiddleware).Get("/me", handler.Me)
}

// Register creates a new account and returns it with a session token.
// It accepts JSON or a multipart form with an optional vehicle image.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in, vehicleImage, err := h.parseRegisterRequest(w, r)
	if err != nil {
		writeServiceError(w, h.logger, err, "not found")
		return
	}

	user, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, err, "not found")
		return
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		h.logger.Error("issue token failed", zap.String("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	resp := AuthResponse{Token: token, User: user}
	if vehicleImage != nil && h.photos != nil {
		resp.VehiclePhoto = h.storeVehicleImage(r, user.ID, vehicleImage)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Login verifies credentials and returns a session token. Unknown email and
// wrong password are reported identically.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrAuth) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeServiceError(w, h.logger, err, "not found")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: session.Token, User: session.User})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.auth.GetCurrentUser(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, h.logger, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile applies a partial profile update for the current user.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in services.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), identity.UserID, in)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) parseRegisterRequest(w http.ResponseWriter, r *http.Request) (services.RegisterInput, *multipart.FileHeader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var in services.RegisterInput
		if err := decodeJSON(r, &in); err != nil {
			return services.RegisterInput{}, nil, &services.ValidationError{Fields: map[string]string{"body": "Invalid JSON payload"}}
		}
		return in, nil, nil
	}

	limit := services.DefaultMaxPhotoBytes
	if h.photos != nil {
		limit = h.photos.MaxBytes()
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverheadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.RegisterInput{}, nil, &services.ValidationError{Fields: map[string]string{"body": "Invalid multipart form"}}
	}

	in := services.RegisterInput{
		FirstName:     r.FormValue("firstName"),
		LastName:      r.FormValue("lastName"),
		Email:         r.FormValue("email"),
		Password:      r.FormValue("password"),
		Phone:         r.FormValue("phone"),
		Role:          r.FormValue("role"),
		LicenseNumber: r.FormValue("licenseNumber"),
		VehicleModel:  r.FormValue("vehicleModel"),
		LicensePlate:  r.FormValue("licensePlate"),
	}
	if raw := strings.TrimSpace(r.FormValue("vehicleYear")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			verr := h.auth.ValidateRegistration(in, map[string]string{"vehicleYear": "Must be a number"})
			return services.RegisterInput{}, nil, verr
		}
		in.VehicleYear = year
	}

	var vehicleImage *multipart.FileHeader
	if files := r.MultipartForm.File[formFieldVehicleImage]; len(files) > 0 {
		vehicleImage = files[0]
	}
	return in, vehicleImage, nil
}

func (h *AuthHandler) storeVehicleImage(r *http.Request, userID string, header *multipart.FileHeader) *types.Photo {
	file, err := header.Open()
	if err != nil {
		h.logger.Warn("open vehicle image failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	defer file.Close()

	photo, err := h.photos.Upload(r.Context(), userID, file, header.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Warn("vehicle image rejected", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return &photo
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token        string       `json:"token"`
	User         types.User   `json:"user"`
	VehiclePhoto *types.Photo `json:"vehiclePhoto,omitempty"`
}
