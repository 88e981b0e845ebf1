package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/text/language"

	"reelhouse/internal/metrics"
	"reelhouse/models"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	// Posters: w500 is plenty for cards. Backdrops: w1280 for hero banners.
	tmdbPosterSize   = "w500"
	tmdbBackdropSize = "w1280"
	tmdbProfileSize  = "w185"

	maxCast    = 15
	maxSimilar = 12
)

type tmdbClient struct {
	baseURL  string
	apiKey   string
	language string
	httpc    *http.Client
	attempts uint
	delay    time.Duration
}

func newTMDBClient(baseURL, apiKey, lang string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = tmdbBaseURL
	}
	return &tmdbClient{
		baseURL:  baseURL,
		apiKey:   strings.TrimSpace(apiKey),
		language: normalizeLanguage(lang),
		httpc:    httpc,
		attempts: 3,
		delay:    300 * time.Millisecond,
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// statusError is a non-2xx upstream response.
type statusError struct {
	status int
	text   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tmdb request failed: %s", e.text)
}

// get performs a GET against endpoint segments with retry and exponential
// backoff on transport errors, 429 and 5xx responses.
func (c *tmdbClient) get(ctx context.Context, name string, query url.Values, v any, segments ...string) error {
	if !c.isConfigured() {
		return ErrNotConfigured
	}

	endpoint, err := url.JoinPath(c.baseURL, segments...)
	if err != nil {
		return err
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("language", c.language)

	bearer := strings.HasPrefix(c.apiKey, "Bearer ")
	if !bearer {
		query.Set("api_key", c.apiKey)
	}
	endpoint += "?" + query.Encode()

	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Accept", "application/json")
			if bearer {
				req.Header.Set("Authorization", c.apiKey)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return &statusError{status: resp.StatusCode, text: resp.Status}
			}
			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(ErrNotFound)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(&statusError{status: resp.StatusCode, text: resp.Status})
			}

			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode tmdb %s: %w", name, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("tmdb request retry", "component", "tmdb", "endpoint", name, "attempt", n+1, "error", err)
		}),
	)
	metrics.UpstreamRequests.WithLabelValues(name, metrics.Result(err)).Inc()

	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, name, err)
	}
	return err
}

type tmdbResult struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	Popularity   float64 `json:"popularity"`
}

type tmdbPage struct {
	Page         int          `json:"page"`
	TotalPages   int          `json:"total_pages"`
	TotalResults int          `json:"total_results"`
	Results      []tmdbResult `json:"results"`
}

type tmdbGenre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tmdbCredits struct {
	Cast []struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Character   string `json:"character"`
		Order       int    `json:"order"`
		ProfilePath string `json:"profile_path"`
	} `json:"cast"`
}

type tmdbDetail struct {
	tmdbResult
	Tagline         string      `json:"tagline"`
	Runtime         int         `json:"runtime"`
	EpisodeRunTime  []int       `json:"episode_run_time"`
	Genres          []tmdbGenre `json:"genres"`
	NumberOfSeasons int         `json:"number_of_seasons"`
	Seasons         []struct {
		SeasonNumber int    `json:"season_number"`
		Name         string `json:"name"`
		Overview     string `json:"overview"`
		EpisodeCount int    `json:"episode_count"`
		AirDate      string `json:"air_date"`
		PosterPath   string `json:"poster_path"`
	} `json:"seasons"`
	Credits *tmdbCredits `json:"credits"`
	Similar *tmdbPage    `json:"similar"`
}

func (c *tmdbClient) searchMulti(ctx context.Context, query string, page int) (tmdbPage, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(pageOrFirst(page)))
	q.Set("include_adult", "false")

	var payload tmdbPage
	err := c.get(ctx, "search_multi", q, &payload, "search", "multi")
	return payload, err
}

func (c *tmdbClient) discoverMovies(ctx context.Context, q url.Values) (tmdbPage, error) {
	q.Set("include_adult", "false")
	var payload tmdbPage
	err := c.get(ctx, "discover_movie", q, &payload, "discover", "movie")
	return payload, err
}

// searchPerson returns the id of the best match for name, or zero.
func (c *tmdbClient) searchPerson(ctx context.Context, name string) (int64, error) {
	q := url.Values{}
	q.Set("query", name)
	q.Set("include_adult", "false")

	var payload tmdbPage
	if err := c.get(ctx, "search_person", q, &payload, "search", "person"); err != nil {
		return 0, err
	}
	if len(payload.Results) == 0 {
		return 0, nil
	}
	return payload.Results[0].ID, nil
}

func (c *tmdbClient) genres(ctx context.Context) ([]tmdbGenre, error) {
	var payload struct {
		Genres []tmdbGenre `json:"genres"`
	}
	err := c.get(ctx, "genres", nil, &payload, "genre", "movie", "list")
	return payload.Genres, err
}

func (c *tmdbClient) details(ctx context.Context, mediaType string, id int64) (tmdbDetail, error) {
	q := url.Values{}
	q.Set("append_to_response", "credits,similar")

	var payload tmdbDetail
	err := c.get(ctx, mediaType+"_details", q, &payload, mediaType, strconv.FormatInt(id, 10))
	return payload, err
}

func (c *tmdbClient) popular(ctx context.Context, mediaType string, page int) (tmdbPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(pageOrFirst(page)))

	var payload tmdbPage
	err := c.get(ctx, mediaType+"_popular", q, &payload, mediaType, "popular")
	return payload, err
}

func (c *tmdbClient) trending(ctx context.Context, mediaType, window string) (tmdbPage, error) {
	var payload tmdbPage
	err := c.get(ctx, "trending", nil, &payload, "trending", mediaType, window)
	return payload, err
}

func pageOrFirst(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// toTitle maps a result. fallbackType is used when the endpoint does not
// tag results with a media type.
func toTitle(r tmdbResult, fallbackType string) models.Title {
	mediaType := r.MediaType
	if mediaType == "" {
		mediaType = fallbackType
	}
	title := models.Title{
		ID:          r.ID,
		MediaType:   mediaType,
		Name:        pickTMDBName(mediaType, r.Name, r.Title),
		Overview:    r.Overview,
		Year:        parseTMDBYear(r.ReleaseDate, r.FirstAirDate),
		ReleaseDate: firstNonEmpty(r.ReleaseDate, r.FirstAirDate),
		PosterPath:  r.PosterPath,
		VoteAverage: r.VoteAverage,
		Popularity:  r.Popularity,
	}
	if poster := buildTMDBImage(r.PosterPath, tmdbPosterSize, "poster"); poster != nil {
		title.Poster = poster
	}
	if backdrop := buildTMDBImage(r.BackdropPath, tmdbBackdropSize, "backdrop"); backdrop != nil {
		title.Backdrop = backdrop
	}
	return title
}

func toPage(p tmdbPage, fallbackType string, keep func(tmdbResult) bool) models.TitlePage {
	out := models.TitlePage{
		Page:         p.Page,
		TotalPages:   p.TotalPages,
		TotalResults: p.TotalResults,
		Results:      make([]models.Title, 0, len(p.Results)),
	}
	for _, r := range p.Results {
		if keep != nil && !keep(r) {
			continue
		}
		out.Results = append(out.Results, toTitle(r, fallbackType))
	}
	return out
}

func toDetail(d tmdbDetail, mediaType string) models.TitleDetail {
	detail := models.TitleDetail{
		Title:           toTitle(d.tmdbResult, mediaType),
		Tagline:         d.Tagline,
		RuntimeMinutes:  d.Runtime,
		NumberOfSeasons: d.NumberOfSeasons,
	}
	if detail.RuntimeMinutes == 0 && len(d.EpisodeRunTime) > 0 {
		detail.RuntimeMinutes = d.EpisodeRunTime[0]
	}
	for _, g := range d.Genres {
		detail.Genres = append(detail.Genres, models.Genre{ID: g.ID, Name: g.Name})
	}
	if d.Credits != nil {
		for i, member := range d.Credits.Cast {
			if i >= maxCast {
				break
			}
			cm := models.CastMember{ID: member.ID, Name: member.Name, Character: member.Character, Order: member.Order}
			if img := buildTMDBImage(member.ProfilePath, tmdbProfileSize, "profile"); img != nil {
				cm.ProfileURL = img.URL
			}
			detail.Cast = append(detail.Cast, cm)
		}
	}
	if d.Similar != nil {
		for i, r := range d.Similar.Results {
			if i >= maxSimilar {
				break
			}
			detail.Similar = append(detail.Similar, toTitle(r, mediaType))
		}
	}
	for _, s := range d.Seasons {
		// Season 0 holds specials.
		if s.SeasonNumber < 1 {
			continue
		}
		detail.Seasons = append(detail.Seasons, models.Season{
			Number:       s.SeasonNumber,
			Name:         s.Name,
			Overview:     s.Overview,
			EpisodeCount: s.EpisodeCount,
			AirDate:      s.AirDate,
			Poster:       buildTMDBImage(s.PosterPath, tmdbPosterSize, "poster"),
		})
	}
	return detail
}

func pickTMDBName(mediaType, seriesName, movieTitle string) string {
	if mediaType == "movie" && movieTitle != "" {
		return movieTitle
	}
	return firstNonEmpty(seriesName, movieTitle)
}

func parseTMDBYear(movieDate, seriesDate string) int {
	date := firstNonEmpty(movieDate, seriesDate)
	if date == "" {
		return 0
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Year()
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			return y
		}
	}
	return 0
}

func buildTMDBImage(imagePath, size, imageType string) *models.Image {
	trimmed := strings.TrimSpace(imagePath)
	if trimmed == "" {
		return nil
	}
	fullPath := path.Join(size, strings.TrimPrefix(trimmed, "/"))
	return &models.Image{
		URL:  fmt.Sprintf("%s/%s", tmdbImageBaseURL, fullPath),
		Type: imageType,
	}
}

// normalizeLanguage turns "en", "pt_br" or "fr-ca" into a TMDB
// language-REGION code, defaulting to en-US.
func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(strings.ReplaceAll(lang, "_", "-"))
	if lang == "" {
		return "en-US"
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return "en-US"
	}
	base, _ := tag.Base()
	region, _ := tag.Region()
	return base.String() + "-" + region.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
