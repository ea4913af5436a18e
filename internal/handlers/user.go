package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UserRouter registers the account routes. Registration is public; the rest
// require authMiddleware.
func UserRouter(r chi.Router, handler *AuthHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/register", handler.Register)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/me", handler.Me)
		r.Put("/profile", handler.UpdateProfile)
	})
}
