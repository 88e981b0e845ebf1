package handlers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reelhouse/handlers"
	"reelhouse/models"
	"reelhouse/services/progress"
)

func newRenderer(t *testing.T) *handlers.Renderer {
	t.Helper()
	rd, err := handlers.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return rd
}

func viewer() models.Identity {
	return models.Identity{Account: &models.Account{Username: "viewer", Role: models.RoleStandard}}
}

// fakeProgress keeps entries in memory and validates like the real store.
type fakeProgress struct {
	mu      sync.Mutex
	entries map[string]models.WatchProgress
	order   []string
	err     error
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{entries: map[string]models.WatchProgress{}}
}

func (f *fakeProgress) key(username string, key models.MediaKey) string {
	return username + "|" + key.String()
}

func (f *fakeProgress) Save(_ context.Context, username string, report models.ProgressReport) (models.WatchProgress, error) {
	if f.err != nil {
		return models.WatchProgress{}, f.err
	}
	if username == "" {
		return models.WatchProgress{}, progress.ErrUsernameRequired
	}
	if err := progress.Validate(report); err != nil {
		return models.WatchProgress{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(username, report.MediaKey)
	if _, ok := f.entries[k]; !ok {
		f.order = append(f.order, k)
	}
	entry := models.WatchProgress{
		Username:        username,
		MediaKey:        report.MediaKey,
		PositionSeconds: report.PositionSeconds,
		DurationSeconds: report.DurationSeconds,
		Completed:       report.Completed,
		Title:           report.Title,
		PosterPath:      report.PosterPath,
		UpdatedAt:       time.Unix(1700000000, 0).UTC(),
	}
	f.entries[k] = entry
	return entry, nil
}

func (f *fakeProgress) List(_ context.Context, username string) ([]models.WatchProgress, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.WatchProgress{}
	for i := len(f.order) - 1; i >= 0; i-- {
		if e, ok := f.entries[f.order[i]]; ok && e.Username == username {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeProgress) Get(_ context.Context, username string, key models.MediaKey) (models.WatchProgress, bool, error) {
	if f.err != nil {
		return models.WatchProgress{}, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[f.key(username, key)]
	return e, ok, nil
}

func (f *fakeProgress) Delete(_ context.Context, username string, key models.MediaKey) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if err := progress.ValidateKey(key); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(username, key)
	_, ok := f.entries[k]
	delete(f.entries, k)
	return ok, nil
}

func (f *fakeProgress) Clear(_ context.Context, username string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, e := range f.entries {
		if e.Username == username {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

type fakeMetadata struct {
	trending    models.TitlePage
	popular     models.TitlePage
	searchPage  models.TitlePage
	detail      models.TitleDetail
	genres      []models.Genre
	suggestions []models.Title
	err         error
	detailErr   error

	lastQuery   string
	lastFilters models.SearchFilters
	lastType    string
	lastWindow  string
}

func (f *fakeMetadata) Search(_ context.Context, query string, filters models.SearchFilters) (models.TitlePage, error) {
	f.lastQuery, f.lastFilters = query, filters
	return f.searchPage, f.err
}

func (f *fakeMetadata) Details(_ context.Context, mediaType string, _ int64) (models.TitleDetail, error) {
	f.lastType = mediaType
	if f.detailErr != nil {
		return models.TitleDetail{}, f.detailErr
	}
	return f.detail, f.err
}

func (f *fakeMetadata) Trending(_ context.Context, mediaType, window string) (models.TitlePage, error) {
	f.lastType, f.lastWindow = mediaType, window
	return f.trending, f.err
}

func (f *fakeMetadata) Popular(_ context.Context, mediaType string, _ int) (models.TitlePage, error) {
	f.lastType = mediaType
	return f.popular, f.err
}

func (f *fakeMetadata) PopularTV(ctx context.Context) (models.TitlePage, error) {
	return f.popular, f.err
}

func (f *fakeMetadata) TrendingSearches(context.Context) []models.Title {
	return f.suggestions
}

func (f *fakeMetadata) Genres(context.Context) ([]models.Genre, error) {
	return f.genres, f.err
}

type fakeStreams struct {
	lastResume float64
}

func (f *fakeStreams) Streams(mediaType string, id int64, season, episode int, resumeAt float64) ([]models.StreamSource, error) {
	f.lastResume = resumeAt
	if mediaType != "movie" && mediaType != "tv" {
		return nil, errors.New("bad media type")
	}
	return []models.StreamSource{{ID: "embed", Name: "Vidking", URL: "https://player.example/embed", Server: "vidking"}}, nil
}
