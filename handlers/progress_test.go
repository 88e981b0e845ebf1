package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reelhouse/handlers"
	"reelhouse/models"
)

func TestProgressSaveStoresReport(t *testing.T) {
	store := newFakeProgress()
	h := handlers.NewProgressHandler(store)

	body := `{"media_type":"movie","title_id":42,"position":42,"duration":300,"title":"Heat"}`
	req := httptest.NewRequest(http.MethodPost, "/api/progress", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Save(rec, req, viewer())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status   string               `json:"status"`
		Progress models.WatchProgress `json:"progress"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Progress.PositionSeconds != 42 || resp.Progress.Username != "viewer" {
		t.Fatalf("unexpected response %+v", resp)
	}

	stored, found, _ := store.Get(req.Context(), "viewer", models.MediaKey{MediaType: models.MediaTypeMovie, TitleID: 42})
	if !found || stored.DurationSeconds != 300 {
		t.Fatalf("report not stored: %+v found=%v", stored, found)
	}
}

func TestProgressSaveRejectsMalformedBody(t *testing.T) {
	h := handlers.NewProgressHandler(newFakeProgress())

	for _, body := range []string{"", "{", `{"title_id":"forty-two"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/progress", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Save(rec, req, viewer())
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestProgressSaveRejectsInvalidReport(t *testing.T) {
	store := newFakeProgress()
	h := handlers.NewProgressHandler(store)

	cases := map[string]string{
		"negative position": `{"media_type":"movie","title_id":42,"position":-1}`,
		"unknown type":      `{"media_type":"podcast","title_id":42,"position":1}`,
		"missing episode":   `{"media_type":"episode","title_id":42,"season":1,"position":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/progress", strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.Save(rec, req, viewer())
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["field"] == "" {
				t.Fatalf("expected offending field in response, got %v", resp)
			}
		})
	}

	items, _ := store.List(testContext(t), "viewer")
	if len(items) != 0 {
		t.Fatalf("invalid reports must not be stored, got %d", len(items))
	}
}

func TestProgressSaveHidesStoreErrors(t *testing.T) {
	store := newFakeProgress()
	store.err = errors.New("disk I/O error at /var/lib/reelhouse.db")
	h := handlers.NewProgressHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/progress", strings.NewReader(`{"media_type":"movie","title_id":1,"position":1}`))
	rec := httptest.NewRecorder()
	h.Save(rec, req, viewer())

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk") {
		t.Fatalf("internal error leaked to client: %s", rec.Body.String())
	}
}

func TestProgressListAndDelete(t *testing.T) {
	store := newFakeProgress()
	h := handlers.NewProgressHandler(store)
	ctx := testContext(t)
	_, _ = store.Save(ctx, "viewer", models.ProgressReport{MediaKey: models.MediaKey{MediaType: models.MediaTypeMovie, TitleID: 1}, PositionSeconds: 10})
	_, _ = store.Save(ctx, "viewer", models.ProgressReport{MediaKey: models.MediaKey{MediaType: models.MediaTypeMovie, TitleID: 2}, PositionSeconds: 20})

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil), viewer())
	var list struct {
		Items []models.WatchProgress `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 2 || list.Items[0].TitleID != 2 {
		t.Fatalf("unexpected list %+v", list.Items)
	}

	rec = httptest.NewRecorder()
	h.Delete(rec, httptest.NewRequest(http.MethodDelete, "/api/progress", strings.NewReader(`{"media_type":"movie","title_id":1}`)), viewer())
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"removed":true`) {
		t.Fatalf("unexpected delete response %d %s", rec.Code, rec.Body.String())
	}
	if items, _ := store.List(ctx, "viewer"); len(items) != 1 {
		t.Fatalf("expected 1 entry after delete, got %d", len(items))
	}
}
