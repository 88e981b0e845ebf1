package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"reelhouse/models"
	"reelhouse/services/metadata"
	"reelhouse/services/progress"
	"reelhouse/services/streaming"
)

const genericServerError = "internal server error"

// errorStatus maps an error to the status code and message shown to the
// client. Unknown errors become a generic 500 so internals never leak.
func errorStatus(err error) (int, string) {
	var verr *progress.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, metadata.ErrInvalidMediaType),
		errors.Is(err, metadata.ErrInvalidWindow),
		errors.Is(err, streaming.ErrInvalidMediaType),
		errors.Is(err, streaming.ErrInvalidID),
		errors.Is(err, streaming.ErrEpisodeRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, metadata.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, metadata.ErrNotConfigured):
		return http.StatusServiceUnavailable, "metadata provider not configured"
	case errors.Is(err, metadata.ErrUpstream):
		return http.StatusBadGateway, "metadata provider unavailable"
	default:
		return http.StatusInternalServerError, genericServerError
	}
}

// writeError is the single exit for failed JSON requests.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	logFailure(r, status, err)
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePageError renders the error page for a failed HTML request.
func writePageError(w http.ResponseWriter, r *http.Request, rd *Renderer, identity models.Identity, err error) {
	status, msg := errorStatus(err)
	logFailure(r, status, err)
	rd.Render(w, status, "error", PageData{Identity: identity, Title: http.StatusText(status), Data: msg})
}

func logFailure(r *http.Request, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request failed", "component", "handlers", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "component", "handlers", "error", err)
	}
}
