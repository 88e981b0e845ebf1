package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sourcegraph/conc/pool"

	"reelhouse/models"
	"reelhouse/services/metadata"
	"reelhouse/services/progress"
	"reelhouse/services/streaming"
)

const continueWatchingLimit = 10

type metadataService interface {
	Search(ctx context.Context, query string, filters models.SearchFilters) (models.TitlePage, error)
	Details(ctx context.Context, mediaType string, id int64) (models.TitleDetail, error)
	Trending(ctx context.Context, mediaType, window string) (models.TitlePage, error)
	Popular(ctx context.Context, mediaType string, page int) (models.TitlePage, error)
	PopularTV(ctx context.Context) (models.TitlePage, error)
	TrendingSearches(ctx context.Context) []models.Title
	Genres(ctx context.Context) ([]models.Genre, error)
}

type streamBuilder interface {
	Streams(mediaType string, id int64, season, episode int, resumeAt float64) ([]models.StreamSource, error)
}

type progressReader interface {
	Get(ctx context.Context, username string, key models.MediaKey) (models.WatchProgress, bool, error)
	List(ctx context.Context, username string) ([]models.WatchProgress, error)
}

var (
	_ metadataService = (*metadata.Service)(nil)
	_ streamBuilder   = (*streaming.Builder)(nil)
	_ progressReader  = (*progress.Service)(nil)
)

// HomePage is the data for templates/home.html.
type HomePage struct {
	Notice           string
	ContinueWatching []models.WatchProgress
	TrendingSearches []models.Title
	Trending         []models.Title
	PopularTV        []models.Title
}

// SearchPage is the data for templates/search.html.
type SearchPage struct {
	Query   string
	Filters models.SearchFilters
	Genres  []models.Genre
	Results []models.Title
}

// DetailPage is the data for templates/detail.html.
type DetailPage struct {
	Detail    models.TitleDetail
	MediaType string
	Progress  *models.WatchProgress
}

// PlayerPage is the data for templates/player.html.
type PlayerPage struct {
	Name      string
	MediaType string
	Season    int
	Episode   int
	ResumeAt  float64
	Streams   []models.StreamSource
	Report    models.ProgressReport
}

// PagesHandler renders the browsing pages.
type PagesHandler struct {
	Metadata metadataService
	Streams  streamBuilder
	Progress progressReader
	Render   *Renderer
}

func NewPagesHandler(md metadataService, streams streamBuilder, prog progressReader, render *Renderer) *PagesHandler {
	return &PagesHandler{Metadata: md, Streams: streams, Progress: prog, Render: render}
}

// Home shows trending and popular rows, plus unfinished titles for signed in
// viewers.
func (h *PagesHandler) Home(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	var (
		data              HomePage
		trendErr, popErr error
	)

	p := pool.New().WithContext(r.Context())
	p.Go(func(ctx context.Context) error {
		page, err := h.Metadata.Trending(ctx, "movie", "week")
		data.Trending, trendErr = page.Results, err
		return nil
	})
	p.Go(func(ctx context.Context) error {
		page, err := h.Metadata.PopularTV(ctx)
		data.PopularTV, popErr = page.Results, err
		return nil
	})
	p.Go(func(ctx context.Context) error {
		data.TrendingSearches = h.Metadata.TrendingSearches(ctx)
		return nil
	})
	_ = p.Wait()

	for _, err := range []error{trendErr, popErr} {
		switch {
		case err == nil:
		case errors.Is(err, metadata.ErrNotConfigured):
			data.Notice = "Set a TMDB API key to browse titles."
		default:
			slog.Warn("home row unavailable", "component", "pages", "error", err)
			if data.Notice == "" {
				data.Notice = "Some titles could not be loaded. Try again shortly."
			}
		}
	}

	if identity.Authenticated() {
		items, err := h.Progress.List(r.Context(), identity.Username())
		if err != nil {
			writePageError(w, r, h.Render, identity, err)
			return
		}
		data.ContinueWatching = unfinished(items, continueWatchingLimit)
	}

	h.Render.Render(w, http.StatusOK, "home", PageData{Identity: identity, Title: "Home", Data: data})
}

func unfinished(items []models.WatchProgress, limit int) []models.WatchProgress {
	out := make([]models.WatchProgress, 0, limit)
	for _, item := range items {
		if item.Completed {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Search runs a query with the optional discover filters.
func (h *PagesHandler) Search(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	q := r.URL.Query()
	data := SearchPage{
		Query:   strings.TrimSpace(q.Get("q")),
		Filters: filtersFromQuery(q.Get),
	}

	genres, err := h.Metadata.Genres(r.Context())
	if err != nil && !errors.Is(err, metadata.ErrNotConfigured) {
		slog.Warn("genre list unavailable", "component", "pages", "error", err)
	}
	data.Genres = genres

	if data.Query != "" || data.Filters.HasFilters() {
		page, err := h.Metadata.Search(r.Context(), data.Query, data.Filters)
		if err != nil {
			writePageError(w, r, h.Render, identity, err)
			return
		}
		data.Results = page.Results
	}

	h.Render.Render(w, http.StatusOK, "search", PageData{Identity: identity, Title: "Search", Data: data})
}

func filtersFromQuery(get func(string) string) models.SearchFilters {
	f := models.SearchFilters{
		Genre:  strings.TrimSpace(get("genre")),
		SortBy: strings.TrimSpace(get("sort_by")),
	}
	if v, err := strconv.Atoi(get("year")); err == nil && v > 0 {
		f.Year = v
	}
	if v, err := strconv.ParseFloat(get("min_rating"), 64); err == nil && v > 0 {
		f.MinRating = v
	}
	if v, err := strconv.Atoi(get("page")); err == nil && v > 0 {
		f.Page = v
	}
	return f
}

// MovieDetail renders /movie/{id}.
func (h *PagesHandler) MovieDetail(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	h.detail(w, r, identity, streaming.MediaTypeMovie)
}

// TVDetail renders /tv/{id}.
func (h *PagesHandler) TVDetail(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	h.detail(w, r, identity, streaming.MediaTypeTV)
}

func (h *PagesHandler) detail(w http.ResponseWriter, r *http.Request, identity models.Identity, mediaType string) {
	id, ok := pathID(r)
	if !ok {
		writePageError(w, r, h.Render, identity, metadata.ErrNotFound)
		return
	}

	detail, err := h.Metadata.Details(r.Context(), mediaType, id)
	if err != nil {
		writePageError(w, r, h.Render, identity, err)
		return
	}

	data := DetailPage{Detail: detail, MediaType: mediaType}
	if identity.Authenticated() {
		entry, err := h.latestProgress(r.Context(), identity.Username(), mediaType, id)
		if err != nil {
			writePageError(w, r, h.Render, identity, err)
			return
		}
		data.Progress = entry
	}

	h.Render.Render(w, http.StatusOK, "detail", PageData{Identity: identity, Title: detail.Name, Data: data})
}

// latestProgress returns the movie entry, or the most recently watched
// episode of a series.
func (h *PagesHandler) latestProgress(ctx context.Context, username, mediaType string, id int64) (*models.WatchProgress, error) {
	if mediaType == streaming.MediaTypeMovie {
		entry, found, err := h.Progress.Get(ctx, username, models.MediaKey{MediaType: models.MediaTypeMovie, TitleID: id})
		if err != nil || !found {
			return nil, err
		}
		return &entry, nil
	}

	items, err := h.Progress.List(ctx, username)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.MediaType == models.MediaTypeEpisode && item.TitleID == id {
			return &item, nil
		}
	}
	return nil, nil
}

// Player renders the embed player for /player/{mediaType}/{id}. Series need
// season and episode query parameters.
func (h *PagesHandler) Player(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	mediaType := mux.Vars(r)["mediaType"]
	id, ok := pathID(r)
	if !ok {
		writePageError(w, r, h.Render, identity, streaming.ErrInvalidID)
		return
	}

	var season, episode int
	if mediaType == streaming.MediaTypeTV {
		var err error
		if season, err = strconv.Atoi(r.URL.Query().Get("season")); err != nil || season < 1 {
			writePageError(w, r, h.Render, identity, streaming.ErrEpisodeRequired)
			return
		}
		if episode, err = strconv.Atoi(r.URL.Query().Get("episode")); err != nil || episode < 1 {
			writePageError(w, r, h.Render, identity, streaming.ErrEpisodeRequired)
			return
		}
	}

	key, err := streaming.ProgressKey(mediaType, id, season, episode)
	if err != nil {
		writePageError(w, r, h.Render, identity, err)
		return
	}

	data := PlayerPage{MediaType: mediaType, Season: season, Episode: episode}
	data.Report = models.ProgressReport{MediaKey: key}

	if detail, err := h.Metadata.Details(r.Context(), mediaType, id); err == nil {
		data.Name = detail.Name
		data.Report.Title = detail.Name
		data.Report.PosterPath = detail.PosterPath
	} else if !errors.Is(err, metadata.ErrNotConfigured) {
		slog.Warn("player title lookup failed", "component", "pages", "key", key.String(), "error", err)
	}
	if data.Name == "" {
		data.Name = key.String()
	}

	if identity.Authenticated() {
		entry, found, err := h.Progress.Get(r.Context(), identity.Username(), key)
		if err != nil {
			writePageError(w, r, h.Render, identity, err)
			return
		}
		if found && !entry.Completed {
			data.ResumeAt = entry.PositionSeconds
		}
	}

	streams, err := h.Streams.Streams(mediaType, id, season, episode, data.ResumeAt)
	if err != nil {
		writePageError(w, r, h.Render, identity, err)
		return
	}
	data.Streams = streams

	h.Render.Render(w, http.StatusOK, "player", PageData{Identity: identity, Title: data.Name, Data: data})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
