package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jotter/internal/gateway"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/sse"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	gw      *gateway.Gateway
	cookies *SessionCookie
}

// NewHandler creates a new Handler.
func NewHandler(gw *gateway.Gateway, cookies *SessionCookie) *Handler {
	return &Handler{gw: gw, cookies: cookies}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (CredentialsRequest, bool) {
	var req CredentialsRequest
	if !decodeBody(w, r, &req) {
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return req, false
	}
	return req, true
}

// noteIndex parses the {index} URL parameter.
func noteIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("index must be an integer"))
		return 0, false
	}
	return index, true
}

// Register handles POST /api/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	auth, err := h.gw.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, "register", err)
		return
	}
	if err := h.cookies.Write(w, auth.SessionID); err != nil {
		writeError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, UserResponse{User: auth.User})
}

// Login handles POST /api/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	auth, err := h.gw.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, "login", err)
		return
	}
	if err := h.cookies.Write(w, auth.SessionID); err != nil {
		writeError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: auth.User})
}

// Logout handles POST /api/logout. It succeeds with or without a session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sid, ok := h.cookies.Read(r); ok {
		h.gw.Logout(r.Context(), sid)
	}
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.gw.Me(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		writeError(w, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: u})
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.gw.ListNotes(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// CreateNote handles POST /api/notes. A note with neither title nor
// content is ignored and answered with 204.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	note, added, err := h.gw.AddNote(r.Context(), sessionFromContext(r.Context()), req.Title, req.Content)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	if !added {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// GetNote handles GET /api/notes/{index}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	index, ok := noteIndex(w, r)
	if !ok {
		return
	}
	note, found, err := h.gw.GetNote(r.Context(), sessionFromContext(r.Context()), index)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, models.IndexedNote{Index: index, Note: note})
}

// UpdateNote handles PUT /api/notes/{index}. Out-of-range indexes are ignored.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	index, ok := noteIndex(w, r)
	if !ok {
		return
	}
	var req NoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := h.gw.EditNote(r.Context(), sessionFromContext(r.Context()), index, req.Title, req.Content); err != nil {
		writeError(w, "update note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNote handles DELETE /api/notes/{index}. Out-of-range indexes are ignored.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	index, ok := noteIndex(w, r)
	if !ok {
		return
	}
	if _, err := h.gw.DeleteNote(r.Context(), sessionFromContext(r.Context()), index); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateNoteByID handles PUT /api/notes/id/{id}.
func (h *Handler) UpdateNoteByID(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := h.gw.EditNoteByID(r.Context(), sessionFromContext(r.Context()), chi.URLParam(r, "id"), req.Title, req.Content); err != nil {
		writeError(w, "update note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNoteByID handles DELETE /api/notes/id/{id}.
func (h *Handler) DeleteNoteByID(w http.ResponseWriter, r *http.Request) {
	if _, err := h.gw.DeleteNoteByID(r.Context(), sessionFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events handles GET /api/events: a Server-Sent Events stream of changes to
// the caller's notebook. It ends when the session logs out.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	events, cancel, err := h.gw.Subscribe(r.Context(), sessionFromContext(r.Context()))
	if err != nil {
		writeError(w, "events", err)
		return
	}
	defer cancel()
	sse.Stream(w, r, events)
}
