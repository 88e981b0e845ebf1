package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"reelhouse/models"
	"reelhouse/services/streaming"
)

// MetadataHandler exposes the metadata and stream lookups as JSON.
type MetadataHandler struct {
	Service  metadataService
	Builder  streamBuilder
	Progress progressReader
}

func NewMetadataHandler(service metadataService, streams streamBuilder, prog progressReader) *MetadataHandler {
	return &MetadataHandler{Service: service, Builder: streams, Progress: prog}
}

// Trending serves /api/trending?type=movie|tv|all&window=day|week.
func (h *MetadataHandler) Trending(w http.ResponseWriter, r *http.Request, _ models.Identity) {
	mediaType := defaultString(r.URL.Query().Get("type"), "all")
	window := defaultString(r.URL.Query().Get("window"), "week")

	page, err := h.Service.Trending(r.Context(), mediaType, window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Search serves /api/search?q=...
func (h *MetadataHandler) Search(w http.ResponseWriter, r *http.Request, _ models.Identity) {
	q := r.URL.Query()
	page, err := h.Service.Search(r.Context(), strings.TrimSpace(q.Get("q")), filtersFromQuery(q.Get))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Details serves /api/{mediaType}/{id}.
func (h *MetadataHandler) Details(w http.ResponseWriter, r *http.Request, _ models.Identity) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, streaming.ErrInvalidID)
		return
	}
	detail, err := h.Service.Details(r.Context(), mux.Vars(r)["mediaType"], id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// Popular serves /api/{mediaType}/popular?page=N.
func (h *MetadataHandler) Popular(w http.ResponseWriter, r *http.Request, _ models.Identity) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.Service.Popular(r.Context(), mux.Vars(r)["mediaType"], page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Streams serves /api/streams/{mediaType}/{id}. Signed in callers get
// embed URLs that resume from their stored position.
func (h *MetadataHandler) Streams(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	mediaType := mux.Vars(r)["mediaType"]
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, streaming.ErrInvalidID)
		return
	}
	season, _ := strconv.Atoi(r.URL.Query().Get("season"))
	episode, _ := strconv.Atoi(r.URL.Query().Get("episode"))

	var resumeAt float64
	if identity.Authenticated() {
		if key, err := streaming.ProgressKey(mediaType, id, season, episode); err == nil {
			entry, found, err := h.Progress.Get(r.Context(), identity.Username(), key)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if found && !entry.Completed {
				resumeAt = entry.PositionSeconds
			}
		}
	}

	streams, err := h.Builder.Streams(mediaType, id, season, episode, resumeAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": streams})
}

func defaultString(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
