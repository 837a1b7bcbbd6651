// Package api implements the Jotter JSON API using chi.
package api

import (
	"context"
	"net/http"

	"github.com/starford/jotter/internal/gateway"
)

type contextKey string

const contextSessionKey contextKey = "session"

// RequireSession rejects requests without a live session cookie and stores
// the session id in the request context for the handlers.
func RequireSession(gw *gateway.Gateway, cookies *SessionCookie) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, ok := cookies.Read(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			if _, err := gw.Authorize(r.Context(), sid); err != nil {
				cookies.Clear(w)
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			ctx := context.WithValue(r.Context(), contextSessionKey, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(contextSessionKey).(string)
	return sid
}
