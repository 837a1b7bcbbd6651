// Package testutil provides shared test helpers for building a wired gateway.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/starford/jotter/internal/credentials"
	"github.com/starford/jotter/internal/gateway"
	"github.com/starford/jotter/internal/notes"
	"github.com/starford/jotter/internal/sessions"
)

// Stores groups the components behind a test gateway.
type Stores struct {
	Users    *credentials.Store
	Sessions *sessions.Registry
	Notes    *notes.Store
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Users creates a credential store with the cheapest bcrypt cost.
func Users(t testing.TB) *credentials.Store {
	t.Helper()
	users, err := credentials.NewStore(bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return users
}

// Gateway creates a gateway over fresh in-memory stores.
func Gateway(t testing.TB) (*gateway.Gateway, Stores) {
	t.Helper()
	st := Stores{
		Users:    Users(t),
		Sessions: sessions.NewRegistry(),
		Notes:    notes.NewStore(),
	}
	gw := gateway.New(st.Users, st.Sessions, st.Notes, Logger())
	t.Cleanup(gw.Close)
	return gw, st
}
