package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/jotter/internal/gateway"
)

// NewRouter creates a chi router with all API routes mounted.
// Auth routes are public; note routes require a session cookie.
func NewRouter(gw *gateway.Gateway, cookies *SessionCookie) chi.Router {
	h := NewHandler(gw, cookies)

	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(gw, cookies))

		r.Get("/me", h.Me)
		r.Get("/events", h.Events)

		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{index}", h.GetNote)
		r.Put("/notes/{index}", h.UpdateNote)
		r.Delete("/notes/{index}", h.DeleteNote)

		r.Put("/notes/id/{id}", h.UpdateNoteByID)
		r.Delete("/notes/id/{id}", h.DeleteNoteByID)
	})

	return r
}
