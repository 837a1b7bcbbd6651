// Package gateway is the single entry point transports use to reach notes.
// It turns a session token into a user id and scopes every note operation
// to that user's notebook.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/credentials"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notes"
	"github.com/starford/jotter/internal/sessions"
	"github.com/starford/jotter/internal/sse"
)

// Auth is the result of a successful register or login.
type Auth struct {
	SessionID string
	User      models.User
}

// Gateway binds sessions to users and users to their notebooks.
type Gateway struct {
	users    *credentials.Store
	sessions *sessions.Registry
	notes    *notes.Store
	events   *sse.Broker
	logger   *slog.Logger
}

// New creates a gateway over the given stores. A nil logger uses slog.Default.
// Close releases the change-event broker.
func New(users *credentials.Store, reg *sessions.Registry, ns *notes.Store, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{users: users, sessions: reg, notes: ns, events: sse.NewBroker(), logger: logger}
}

// Close ends every open change stream.
func (g *Gateway) Close() {
	g.events.Close()
}

// Register creates a user with an empty notebook and opens a session for it.
func (g *Gateway) Register(ctx context.Context, username, password string) (Auth, error) {
	u, err := g.users.Register(ctx, username, password)
	if err != nil {
		return Auth{}, err
	}
	g.notes.Provision(u.ID)

	sid, err := g.sessions.Create(u.ID)
	if err != nil {
		return Auth{}, fmt.Errorf("create session: %w", err)
	}
	g.logger.Info("user registered", slog.Int("user_id", int(u.ID)), slog.String("username", u.Username))
	return Auth{SessionID: sid, User: u}, nil
}

// Login verifies credentials and opens a new session. Existing sessions of
// the same user stay valid.
func (g *Gateway) Login(ctx context.Context, username, password string) (Auth, error) {
	u, err := g.users.Authenticate(ctx, username, password)
	if err != nil {
		g.logger.Info("login rejected")
		return Auth{}, err
	}

	sid, err := g.sessions.Create(u.ID)
	if err != nil {
		return Auth{}, fmt.Errorf("create session: %w", err)
	}
	g.logger.Info("user logged in", slog.Int("user_id", int(u.ID)))
	return Auth{SessionID: sid, User: u}, nil
}

// Logout destroys the session. Unknown sessions are ignored.
func (g *Gateway) Logout(_ context.Context, sessionID string) {
	g.sessions.Destroy(sessionID)
	g.events.DropSession(sessionID)
	g.logger.Debug("session destroyed")
}

// Authorize resolves sessionID to a user id or fails with apperr.ErrUnauthenticated.
func (g *Gateway) Authorize(_ context.Context, sessionID string) (models.UserID, error) {
	uid, ok := g.sessions.Resolve(sessionID)
	if !ok {
		return 0, apperr.ErrUnauthenticated
	}
	return uid, nil
}

// Me returns the user behind sessionID.
func (g *Gateway) Me(ctx context.Context, sessionID string) (models.User, error) {
	uid, err := g.Authorize(ctx, sessionID)
	if err != nil {
		return models.User{}, err
	}
	u, err := g.users.FindByID(ctx, uid)
	if err != nil {
		return models.User{}, fmt.Errorf("session user %d: %w", uid, apperr.ErrUnauthenticated)
	}
	return u, nil
}

// ListNotes returns the caller's notes in insertion order.
func (g *Gateway) ListNotes(ctx context.Context, sessionID string) ([]models.IndexedNote, error) {
	uid, err := g.Authorize(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return g.notes.List(uid), nil
}

// AddNote appends a note. added is false when both fields were empty.
func (g *Gateway) AddNote(ctx context.Context, sessionID, title, content string) (note models.IndexedNote, added bool, err error) {
	uid, err := g.Authorize(ctx, sessionID)
	if err != nil {
		return models.IndexedNote{}, false, err
	}
	note, added = g.notes.Add(uid, title, content)
	if added {
		g.publish(uid, sse.NoteCreated, note.Index, note.ID)
	}
	return note, added, nil
}

// GetNote returns the caller's note at index; found is false when out of range.
func (g *Gateway) GetNote(ctx context.Context, sessionID string, index int) (note models.Note, found bool, err error) {
	uid, err := g.Authorize(ctx, sessionID)
	if err != nil {
		return models.Note{}, false, err
	}
	note, found = g.notes.Get(uid, index)
	return note, found, nil
}

// EditNote replaces the caller's note at index. Out-of-range indexes are a no-op.
func (g *Gateway) EditNote(ctx context.Context, sessionID string, index int, title, content string) (bool, error) {
	uid, err := g.Authorize(ctx, sessionID)
	if err != nil {
		return false, err
	}
	edited := g.notes.Edit(uid, index, title, content)
	if edited {
		g.publish(uid, sse.NoteUpdated, index, "")
	}
	return edited, nil
}

// DeleteNote removes the caller's note at index. Out-of-range indexes are a no-op.
func (g *Gateway) DeleteNote(ctx context.Context, sessionID string, index int) (bool, error) {
	uid, err := g.Authorize(ctx, sessionID)
	if err != nil {
		return false, err
	}
	deleted := g.notes.Delete(uid, index)
	if deleted {
		g.publish(uid, sse.NoteDeleted, index, "")
	}
	return deleted, nil
}

// EditNoteByID replaces the caller's note with the given stable id.
func (g *Gateway) EditNoteByID(ctx context.Context, sessionID, id, title, content string) (bool, error) {
	uid, err := g.Authorize(ctx, sessionID)
	if err != nil {
		return false, err
	}
	edited := g.notes.EditByID(uid, id, title, content)
	if edited {
		g.publish(uid, sse.NoteUpdated, -1, id)
	}
	return edited, nil
}

// DeleteNoteByID removes the caller's note with the given stable id.
func (g *Gateway) DeleteNoteByID(ctx context.Context, sessionID, id string) (bool, error) {
	uid, err := g.Authorize(ctx, sessionID)
	if err != nil {
		return false, err
	}
	deleted := g.notes.DeleteByID(uid, id)
	if deleted {
		g.publish(uid, sse.NoteDeleted, -1, id)
	}
	return deleted, nil
}

// Change is the payload of a notebook change event. Index is -1 when the
// change addressed the note by id.
type Change struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
}

// Subscribe opens a stream of change events for the caller's notebook. The
// stream closes on logout of sessionID; cancel releases it earlier.
func (g *Gateway) Subscribe(ctx context.Context, sessionID string) (events <-chan []byte, cancel func(), err error) {
	uid, err := g.Authorize(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch := g.events.Subscribe(uid, sessionID)
	// A logout racing the subscription may have dropped the session already.
	if _, ok := g.sessions.Resolve(sessionID); !ok {
		g.events.Unsubscribe(ch)
		return nil, nil, apperr.ErrUnauthenticated
	}
	return ch, func() { g.events.Unsubscribe(ch) }, nil
}

func (g *Gateway) publish(uid models.UserID, kind string, index int, id string) {
	g.events.Publish(uid, sse.Event{Type: kind, Data: Change{Index: index, ID: id}})
}
