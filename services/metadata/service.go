package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"reelhouse/config"
	"reelhouse/models"
)

var (
	ErrNotConfigured    = errors.New("tmdb api key not configured")
	ErrNotFound         = errors.New("title not found")
	ErrUpstream         = errors.New("metadata provider unavailable")
	ErrInvalidMediaType = errors.New("media type must be movie or tv")
	ErrInvalidWindow    = errors.New("time window must be day or week")
)

const (
	mediaTypeMovie = "movie"
	mediaTypeTV    = "tv"

	defaultSortBy   = "popularity.desc"
	genreCacheTTL   = 24 * time.Hour
	trendingSamples = 10
)

// genreIDs maps the names accepted by "genre:" queries to TMDB movie genre ids.
var genreIDs = map[string]int64{
	"action":      28,
	"adventure":   12,
	"animation":   16,
	"comedy":      35,
	"crime":       80,
	"documentary": 99,
	"drama":       18,
	"family":      10751,
	"fantasy":     14,
	"history":     36,
	"horror":      27,
	"music":       10402,
	"mystery":     9648,
	"romance":     10749,
	"sci-fi":      878,
	"thriller":    53,
	"war":         10752,
	"western":     37,
}

// Service fronts the TMDB API for the page and JSON handlers.
type Service struct {
	client *tmdbClient

	genreMu      sync.Mutex
	genres       []models.Genre
	genresLoaded time.Time
}

// NewService builds a metadata service from settings. httpc may be nil.
func NewService(cfg config.MetadataSettings, httpc *http.Client) *Service {
	if httpc == nil {
		timeout := time.Duration(cfg.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpc = &http.Client{Timeout: timeout}
	}
	return &Service{client: newTMDBClient(cfg.BaseURL, cfg.TMDBAPIKey, cfg.Language, httpc)}
}

// Configured reports whether an API key is set.
func (s *Service) Configured() bool {
	return s.client.isConfigured()
}

// Search runs a multi search, or a discover query when filters or a
// "genre:", "actor:" or "director:" prefix are present. Queries shorter than
// two characters without filters return no results.
func (s *Service) Search(ctx context.Context, query string, filters models.SearchFilters) (models.TitlePage, error) {
	query = strings.TrimSpace(query)

	if filters.HasFilters() || hasDiscoverPrefix(query) {
		q, err := s.discoverQuery(ctx, query, filters)
		if err != nil {
			return models.TitlePage{}, err
		}
		page, err := s.client.discoverMovies(ctx, q)
		if err != nil {
			return models.TitlePage{}, err
		}
		return toPage(page, mediaTypeMovie, nil), nil
	}

	if len([]rune(query)) < 2 {
		return models.TitlePage{Page: 1, Results: []models.Title{}}, nil
	}

	page, err := s.client.searchMulti(ctx, query, filters.Page)
	if err != nil {
		return models.TitlePage{}, err
	}
	return toPage(page, "", func(r tmdbResult) bool {
		return r.MediaType == mediaTypeMovie || r.MediaType == mediaTypeTV
	}), nil
}

func hasDiscoverPrefix(query string) bool {
	lower := strings.ToLower(query)
	return strings.HasPrefix(lower, "genre:") || strings.HasPrefix(lower, "actor:") || strings.HasPrefix(lower, "director:")
}

func (s *Service) discoverQuery(ctx context.Context, query string, filters models.SearchFilters) (url.Values, error) {
	q := url.Values{}
	lower := strings.ToLower(query)

	switch {
	case strings.HasPrefix(lower, "genre:"):
		if id := lookupGenreID(query[len("genre:"):]); id > 0 {
			q.Set("with_genres", strconv.FormatInt(id, 10))
		}
	case strings.HasPrefix(lower, "actor:"):
		id, err := s.client.searchPerson(ctx, strings.TrimSpace(query[len("actor:"):]))
		if err != nil {
			return nil, err
		}
		if id > 0 {
			q.Set("with_cast", strconv.FormatInt(id, 10))
		}
	case strings.HasPrefix(lower, "director:"):
		id, err := s.client.searchPerson(ctx, strings.TrimSpace(query[len("director:"):]))
		if err != nil {
			return nil, err
		}
		if id > 0 {
			q.Set("with_crew", strconv.FormatInt(id, 10))
		}
	}

	if g := strings.TrimSpace(filters.Genre); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err == nil {
			q.Set("with_genres", g)
		} else if id := lookupGenreID(g); id > 0 {
			q.Set("with_genres", strconv.FormatInt(id, 10))
		}
	}
	if filters.Year > 0 {
		q.Set("primary_release_year", strconv.Itoa(filters.Year))
	}
	if filters.MinRating > 0 {
		q.Set("vote_average.gte", strconv.FormatFloat(filters.MinRating, 'f', -1, 64))
	}
	sortBy := strings.TrimSpace(filters.SortBy)
	if sortBy == "" {
		sortBy = defaultSortBy
	}
	q.Set("sort_by", sortBy)
	q.Set("page", strconv.Itoa(pageOrFirst(filters.Page)))
	return q, nil
}

func lookupGenreID(name string) int64 {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
	return genreIDs[normalized]
}

// Details returns the full detail payload for a movie or series.
func (s *Service) Details(ctx context.Context, mediaType string, id int64) (models.TitleDetail, error) {
	if err := checkMediaType(mediaType); err != nil {
		return models.TitleDetail{}, err
	}
	if id <= 0 {
		return models.TitleDetail{}, ErrNotFound
	}
	d, err := s.client.details(ctx, mediaType, id)
	if err != nil {
		return models.TitleDetail{}, err
	}
	return toDetail(d, mediaType), nil
}

// Trending returns trending titles for mediaType ("movie", "tv" or "all")
// over window ("day" or "week").
func (s *Service) Trending(ctx context.Context, mediaType, window string) (models.TitlePage, error) {
	if mediaType != "all" {
		if err := checkMediaType(mediaType); err != nil {
			return models.TitlePage{}, err
		}
	}
	if window != "day" && window != "week" {
		return models.TitlePage{}, ErrInvalidWindow
	}
	page, err := s.client.trending(ctx, mediaType, window)
	if err != nil {
		return models.TitlePage{}, err
	}
	fallback := mediaType
	if fallback == "all" {
		fallback = ""
	}
	return toPage(page, fallback, func(r tmdbResult) bool { return r.MediaType != "person" }), nil
}

// Popular returns the popular list for mediaType.
func (s *Service) Popular(ctx context.Context, mediaType string, page int) (models.TitlePage, error) {
	if err := checkMediaType(mediaType); err != nil {
		return models.TitlePage{}, err
	}
	p, err := s.client.popular(ctx, mediaType, page)
	if err != nil {
		return models.TitlePage{}, err
	}
	return toPage(p, mediaType, nil), nil
}

// PopularTV is Popular for series, first page.
func (s *Service) PopularTV(ctx context.Context) (models.TitlePage, error) {
	return s.Popular(ctx, mediaTypeTV, 1)
}

// TrendingSearches mixes the day's trending movies and series as search
// suggestions. Failures of either list are ignored.
func (s *Service) TrendingSearches(ctx context.Context) []models.Title {
	var movies, shows []models.Title

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		if page, err := s.Trending(ctx, mediaTypeMovie, "day"); err == nil {
			movies = page.Results
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		if page, err := s.Trending(ctx, mediaTypeTV, "day"); err == nil {
			shows = page.Results
		}
		return nil
	})
	_ = p.Wait()

	combined := append(movies, shows...)
	if len(combined) > trendingSamples {
		combined = combined[:trendingSamples]
	}
	return combined
}

// Genres returns the movie genre list, cached for a day.
func (s *Service) Genres(ctx context.Context) ([]models.Genre, error) {
	s.genreMu.Lock()
	defer s.genreMu.Unlock()

	if s.genres != nil && time.Since(s.genresLoaded) < genreCacheTTL {
		return s.genres, nil
	}

	raw, err := s.client.genres(ctx)
	if err != nil {
		return nil, err
	}
	genres := make([]models.Genre, 0, len(raw))
	for _, g := range raw {
		genres = append(genres, models.Genre{ID: g.ID, Name: g.Name})
	}
	s.genres = genres
	s.genresLoaded = time.Now()
	return genres, nil
}

func checkMediaType(mediaType string) error {
	if mediaType != mediaTypeMovie && mediaType != mediaTypeTV {
		return ErrInvalidMediaType
	}
	return nil
}
