package api

import (
	"context"
	"log/slog"
	"net/http"

	"reelhouse/handlers"
	"reelhouse/internal/metrics"
	"reelhouse/models"
	"reelhouse/services/sessions"
)

// IdentityHandlerFunc is a handler that receives the resolved caller.
type IdentityHandlerFunc func(http.ResponseWriter, *http.Request, models.Identity)

type sessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.Account, error)
}

var _ sessionResolver = (*sessions.Service)(nil)

// Authenticator turns the session cookie into an Identity before every
// handler runs. Handlers never read the cookie themselves.
type Authenticator struct {
	Sessions sessionResolver
}

func NewAuthenticator(sessions sessionResolver) *Authenticator {
	return &Authenticator{Sessions: sessions}
}

// identify resolves the caller. A missing, malformed, unknown, revoked or
// expired token yields Anonymous; only storage failures return an error.
func (a *Authenticator) identify(r *http.Request) (models.Identity, error) {
	token := handlers.SessionToken(r)
	if token == "" {
		return models.Anonymous, nil
	}
	account, err := a.Sessions.Resolve(r.Context(), token)
	if err != nil {
		return models.Anonymous, err
	}
	if account == nil {
		return models.Anonymous, nil
	}
	return models.Identity{Account: account}, nil
}

// Identify runs h for everyone, anonymous callers included.
func (a *Authenticator) Identify(h IdentityHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.identify(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		h(w, r, identity)
	}
}

// RequirePage runs h for signed in callers and redirects everyone else to
// the login page.
func (a *Authenticator) RequirePage(h IdentityHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.identify(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if !identity.Authenticated() {
			metrics.AuthEvents.WithLabelValues("page", "redirected").Inc()
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h(w, r, identity)
	}
}

// RequireAPI runs h for signed in callers and answers 401 otherwise. The
// handler is never invoked for anonymous callers, so nothing is written.
func (a *Authenticator) RequireAPI(h IdentityHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.identify(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if !identity.Authenticated() {
			metrics.AuthEvents.WithLabelValues("api", "unauthorized").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
			return
		}
		h(w, r, identity)
	}
}

// RequireAdmin is RequireAPI restricted to administrator accounts.
func (a *Authenticator) RequireAdmin(h IdentityHandlerFunc) http.HandlerFunc {
	return a.RequireAPI(func(w http.ResponseWriter, r *http.Request, identity models.Identity) {
		if !identity.IsAdmin() {
			metrics.AuthEvents.WithLabelValues("api", "forbidden").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}` + "\n"))
			return
		}
		h(w, r, identity)
	})
}

func (a *Authenticator) fail(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("session lookup failed", "component", "auth", "path", r.URL.Path, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
