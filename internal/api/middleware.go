// Package api implements the template REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/starford/raido/internal/templateservice"
)

type actorKey struct{}

// UserHeader carries the caller's user id.
const UserHeader = "X-User-ID"

// Auth selects how a request's actor is derived.
type Auth struct {
	// Mode is "passthrough", "token" or "disabled".
	Mode  string
	Token string
}

// AuthMiddleware attaches the request's actor to its context.
//
// In passthrough mode the Bearer credential is forwarded to the repository
// as the user's own token, and requests without one are anonymous. In token
// mode requests must carry "Authorization: Bearer <token>" and act with the
// server's credential. In disabled mode every request acts with the
// server's credential.
func AuthMiddleware(auth Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				bearer = strings.TrimPrefix(h, "Bearer ")
			}
			actor := templateservice.Actor{UserID: r.Header.Get(UserHeader)}
			switch auth.Mode {
			case "token":
				if bearer != auth.Token {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				actor.Server = true
			case "disabled":
				actor.Server = true
			default:
				actor.Credential = bearer
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
		})
	}
}

func actorFrom(ctx context.Context) templateservice.Actor {
	a, _ := ctx.Value(actorKey{}).(templateservice.Actor)
	return a
}

// BodyLimit caps request bodies at n bytes.
func BodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
