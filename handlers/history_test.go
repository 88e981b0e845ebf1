package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"reelhouse/handlers"
	"reelhouse/models"
)

func seedHistory(t *testing.T, store *fakeProgress) {
	t.Helper()
	ctx := testContext(t)
	if _, err := store.Save(ctx, "viewer", models.ProgressReport{
		MediaKey:        models.MediaKey{MediaType: models.MediaTypeMovie, TitleID: 42},
		PositionSeconds: 42,
		DurationSeconds: 300,
		Title:           "Heat",
	}); err != nil {
		t.Fatalf("seed movie: %v", err)
	}
	if _, err := store.Save(ctx, "viewer", models.ProgressReport{
		MediaKey:        models.MediaKey{MediaType: models.MediaTypeEpisode, TitleID: 1399, Season: 1, Episode: 3},
		PositionSeconds: 600,
		Title:           "Thrones",
	}); err != nil {
		t.Fatalf("seed episode: %v", err)
	}
}

func TestHistoryPageListsEntries(t *testing.T) {
	store := newFakeProgress()
	seedHistory(t, store)
	h := handlers.NewHistoryHandler(store, newRenderer(t))

	rec := httptest.NewRecorder()
	h.Page(rec, httptest.NewRequest(http.MethodGet, "/history", nil), viewer())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Heat", "0:42 / 5:00", "Thrones", "S01E03", "/player/tv/1399?season=1&amp;episode=3"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
	if strings.Index(body, "Thrones") > strings.Index(body, "Heat") {
		t.Fatalf("expected most recent entry first")
	}
}

func TestHistoryPageEmpty(t *testing.T) {
	h := handlers.NewHistoryHandler(newFakeProgress(), newRenderer(t))

	rec := httptest.NewRecorder()
	h.Page(rec, httptest.NewRequest(http.MethodGet, "/history", nil), viewer())

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Nothing watched yet") {
		t.Fatalf("unexpected empty page: %d", rec.Code)
	}
}

func TestHistoryRemoveAndClear(t *testing.T) {
	store := newFakeProgress()
	seedHistory(t, store)
	h := handlers.NewHistoryHandler(store, newRenderer(t))

	form := url.Values{"media_type": {"movie"}, "title_id": {"42"}, "season": {"0"}, "episode": {"0"}}
	req := httptest.NewRequest(http.MethodPost, "/history/remove", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Remove(rec, req, viewer())

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/history" {
		t.Fatalf("expected redirect to /history, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	items, _ := store.List(testContext(t), "viewer")
	if len(items) != 1 || items[0].TitleID != 1399 {
		t.Fatalf("unexpected entries after remove: %+v", items)
	}

	rec = httptest.NewRecorder()
	h.Clear(rec, httptest.NewRequest(http.MethodPost, "/history/clear", nil), viewer())
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	if items, _ := store.List(testContext(t), "viewer"); len(items) != 0 {
		t.Fatalf("expected empty history, got %d", len(items))
	}
}

func TestHistoryRemoveRejectsBadForm(t *testing.T) {
	h := handlers.NewHistoryHandler(newFakeProgress(), newRenderer(t))

	for _, form := range []url.Values{
		{"media_type": {"movie"}, "title_id": {"abc"}},
		{"media_type": {"episode"}, "title_id": {"12"}},
		{"media_type": {"book"}, "title_id": {"12"}},
	} {
		req := httptest.NewRequest(http.MethodPost, "/history/remove", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.Remove(rec, req, viewer())
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("form %v: expected 400, got %d", form, rec.Code)
		}
	}
}
