package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"reelhouse/internal/metrics"
	"reelhouse/models"
	"reelhouse/services/accounts"
	"reelhouse/services/sessions"
)

const loginFailedMessage = "Invalid username or password"

type credentialVerifier interface {
	Verify(ctx context.Context, username, password string) (models.Account, error)
}

type sessionIssuer interface {
	Issue(ctx context.Context, username string) (string, models.Session, error)
	Revoke(ctx context.Context, token string) error
}

var (
	_ credentialVerifier = (*accounts.Service)(nil)
	_ sessionIssuer      = (*sessions.Service)(nil)
)

// AuthHandler serves the login form and logout.
type AuthHandler struct {
	Accounts credentialVerifier
	Sessions sessionIssuer
	Render   *Renderer
	Cookies  CookieConfig
}

func NewAuthHandler(accounts credentialVerifier, sessions sessionIssuer, render *Renderer, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Sessions: sessions, Render: render, Cookies: cookies}
}

// LoginPage serves the login page (GET)
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	if identity.Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.Render.Render(w, http.StatusOK, "login", PageData{Identity: identity, Title: "Log in"})
}

// LoginSubmit handles login form submission (POST)
func (h *AuthHandler) LoginSubmit(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	if err := r.ParseForm(); err != nil {
		h.renderLoginError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	account, err := h.Accounts.Verify(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, accounts.ErrAuthFailure) {
			metrics.AuthEvents.WithLabelValues("login", "rejected").Inc()
			slog.Info("login rejected", "component", "auth", "username", username)
			h.renderLoginError(w, http.StatusUnauthorized, loginFailedMessage)
			return
		}
		metrics.AuthEvents.WithLabelValues("login", "error").Inc()
		writePageError(w, r, h.Render, models.Anonymous, err)
		return
	}

	token, _, err := h.Sessions.Issue(r.Context(), account.Username)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("login", "error").Inc()
		writePageError(w, r, h.Render, models.Anonymous, err)
		return
	}

	metrics.AuthEvents.WithLabelValues("login", "ok").Inc()
	slog.Info("login succeeded", "component", "auth", "username", account.Username)
	h.Cookies.set(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout revokes the current session, if any, and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	if token := SessionToken(r); token != "" {
		if err := h.Sessions.Revoke(r.Context(), token); err != nil {
			metrics.AuthEvents.WithLabelValues("logout", "error").Inc()
			writePageError(w, r, h.Render, identity, err)
			return
		}
	}

	metrics.AuthEvents.WithLabelValues("logout", "ok").Inc()
	h.Cookies.clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) renderLoginError(w http.ResponseWriter, status int, msg string) {
	h.Render.Render(w, status, "login", PageData{Identity: models.Anonymous, Title: "Log in", Error: msg})
}
