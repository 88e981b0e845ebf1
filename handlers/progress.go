package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"reelhouse/internal/metrics"
	"reelhouse/models"
	"reelhouse/services/progress"
)

const maxProgressBody = 64 << 10

type progressService interface {
	Save(ctx context.Context, username string, report models.ProgressReport) (models.WatchProgress, error)
	List(ctx context.Context, username string) ([]models.WatchProgress, error)
	Get(ctx context.Context, username string, key models.MediaKey) (models.WatchProgress, bool, error)
	Delete(ctx context.Context, username string, key models.MediaKey) (bool, error)
	Clear(ctx context.Context, username string) (int64, error)
}

var _ progressService = (*progress.Service)(nil)

// ProgressHandler serves the JSON watch-progress API used by the player.
type ProgressHandler struct {
	Service progressService
}

func NewProgressHandler(service progressService) *ProgressHandler {
	return &ProgressHandler{Service: service}
}

// Save records a progress report for the caller (POST /api/progress).
func (h *ProgressHandler) Save(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	var report models.ProgressReport
	if err := decodeJSONBody(w, r, &report); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	saved, err := h.Service.Save(r.Context(), identity.Username(), report)
	metrics.ProgressWrites.WithLabelValues(mediaTypeLabel(report.MediaType), progressResult(err)).Inc()
	if err != nil {
		var verr *progress.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
			return
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "progress": saved})
}

// List returns the caller's progress entries, most recent first.
func (h *ProgressHandler) List(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	items, err := h.Service.List(r.Context(), identity.Username())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Delete removes one entry identified by a JSON media key body.
func (h *ProgressHandler) Delete(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	var key models.MediaKey
	if err := decodeJSONBody(w, r, &key); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	removed, err := h.Service.Delete(r.Context(), identity.Username(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "removed": removed})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxProgressBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func progressResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, progress.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// mediaTypeLabel keeps client-supplied values out of metric labels.
func mediaTypeLabel(t models.MediaType) string {
	if t == models.MediaTypeMovie || t == models.MediaTypeEpisode {
		return string(t)
	}
	return "other"
}
