package handlers

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"reelhouse/models"
)

//go:embed templates/*.html
var pageTemplates embed.FS

const tmdbThumbBase = "https://image.tmdb.org/t/p/w342"

// Pages rendered inside templates/base.html.
var pageNames = []string{"home", "login", "search", "detail", "player", "history", "error"}

// PageData is what every template receives.
type PageData struct {
	Identity models.Identity
	Title    string
	Error    string
	Data     any
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"json": func(v any) template.JS {
		b, _ := json.Marshal(v)
		return template.JS(b)
	},
	"clock": formatClock,
	"percent": func(p float64) string {
		return fmt.Sprintf("%.0f%%", math.Round(p))
	},
	"thumb": func(posterPath string) string {
		posterPath = strings.TrimSpace(posterPath)
		if posterPath == "" || strings.HasPrefix(posterPath, "http") {
			return posterPath
		}
		return tmdbThumbBase + "/" + strings.TrimPrefix(posterPath, "/")
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"rating": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"episodeCode": func(season, episode int) string {
		return fmt.Sprintf("S%02dE%02d", season, episode)
	},
	"episodes": func(count int) []int {
		out := make([]int, 0, count)
		for i := 1; i <= count; i++ {
			out = append(out, i)
		}
		return out
	},
	"playerPath": playerPath,
}

// playerPath links a progress entry back to its player page.
func playerPath(p models.WatchProgress) string {
	if p.MediaType == models.MediaTypeEpisode {
		return fmt.Sprintf("/player/tv/%d?season=%d&episode=%d", p.TitleID, p.Season, p.Episode)
	}
	return fmt.Sprintf("/player/movie/%d", p.TitleID)
}

// NewRenderer parses base.html together with each page template.
func NewRenderer() (*Renderer, error) {
	base, err := pageTemplates.ReadFile("templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("read base template: %w", err)
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		content, err := pageTemplates.ReadFile("templates/" + name + ".html")
		if err != nil {
			return nil, fmt.Errorf("read %s template: %w", name, err)
		}
		tmpl, err := template.New(name).Funcs(templateFuncs).Parse(string(base))
		if err != nil {
			return nil, fmt.Errorf("parse base for %s: %w", name, err)
		}
		if tmpl, err = tmpl.Parse(string(content)); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render writes page with status. Output is buffered so a template failure
// still produces a clean 500.
func (rd *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		slog.Error("unknown page template", "component", "render", "page", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		slog.Error("template execution failed", "component", "render", "page", page, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// formatClock renders seconds as m:ss or h:mm:ss.
func formatClock(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0:00"
	}
	total := int64(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
