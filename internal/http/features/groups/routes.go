package groups

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes registers the group routes on an authenticated router. limit is
// applied to state-changing endpoints.
func (h *Handler) Routes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Get("/v1/groups/{id}", h.Get)
	r.Get("/v1/me/groups", h.MyGroups)

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/v1/groups", h.Create)
		r.Post("/v1/groups/{id}/join", h.Join)
		r.Post("/v1/groups/{id}/join-private", h.JoinPrivate)
		r.Post("/v1/groups/{id}/leave", h.Leave)
		r.Post("/v1/groups/{id}/confirm", h.Confirm)
	})
}
