package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"reelhouse/models"
	"reelhouse/services/progress"
)

type historyService interface {
	List(ctx context.Context, username string) ([]models.WatchProgress, error)
	Delete(ctx context.Context, username string, key models.MediaKey) (bool, error)
	Clear(ctx context.Context, username string) (int64, error)
}

var _ historyService = (*progress.Service)(nil)

// HistoryPage is the data for templates/history.html.
type HistoryPage struct {
	Items []models.WatchProgress
}

type HistoryHandler struct {
	Service historyService
	Render  *Renderer
}

func NewHistoryHandler(service historyService, render *Renderer) *HistoryHandler {
	return &HistoryHandler{Service: service, Render: render}
}

// Page lists the caller's watch history, most recent first.
func (h *HistoryHandler) Page(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	items, err := h.Service.List(r.Context(), identity.Username())
	if err != nil {
		writePageError(w, r, h.Render, identity, err)
		return
	}
	h.Render.Render(w, http.StatusOK, "history", PageData{
		Identity: identity,
		Title:    "Watch history",
		Data:     HistoryPage{Items: items},
	})
}

// Clear removes every entry for the caller.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	if _, err := h.Service.Clear(r.Context(), identity.Username()); err != nil {
		writePageError(w, r, h.Render, identity, err)
		return
	}
	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

// Remove deletes a single entry posted from the history table.
func (h *HistoryHandler) Remove(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	if err := r.ParseForm(); err != nil {
		writePageError(w, r, h.Render, identity, &progress.ValidationError{Field: "form", Reason: "could not be parsed"})
		return
	}

	key, err := mediaKeyFromForm(r)
	if err != nil {
		writePageError(w, r, h.Render, identity, err)
		return
	}
	if _, err := h.Service.Delete(r.Context(), identity.Username(), key); err != nil {
		writePageError(w, r, h.Render, identity, err)
		return
	}
	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

func mediaKeyFromForm(r *http.Request) (models.MediaKey, error) {
	key := models.MediaKey{MediaType: models.MediaType(strings.TrimSpace(r.PostFormValue("media_type")))}

	fields := []struct {
		name string
		dst  func(int64)
	}{
		{"title_id", func(v int64) { key.TitleID = v }},
		{"season", func(v int64) { key.Season = int(v) }},
		{"episode", func(v int64) { key.Episode = int(v) }},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(r.PostFormValue(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.MediaKey{}, &progress.ValidationError{Field: f.name, Reason: "must be a number"}
		}
		f.dst(v)
	}
	if err := progress.ValidateKey(key); err != nil {
		return models.MediaKey{}, err
	}
	return key, nil
}
