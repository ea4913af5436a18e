package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ridehub/apiserver/internal/services"
	"github.com/ridehub/apiserver/types"
	"go.uber.org/zap"
)

// AdminHandler provides account administration endpoints.
type AdminHandler struct {
	users  *services.UserService
	logger *zap.Logger
}

func NewAdminHandler(users *services.UserService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{users: users, logger: logger}
}

// AdminRouter registers admin routes; every route requires the admin role.
func AdminRouter(r chi.Router, handler *AdminHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware, RequireRole(handler.logger, types.RoleAdmin))
	r.Get("/users", handler.ListUsers)
	r.Get("/users/{userID}", handler.GetUser)
	r.Delete("/users/{userID}", handler.DeleteUser)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.users.List(r.Context(), page, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, h.logger, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// UserListResponse is the paginated list response payload.
type UserListResponse struct {
	Items []types.User `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}
