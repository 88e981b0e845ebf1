// Package streaming builds embed player URLs for the configured provider.
package streaming

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"reelhouse/config"
	"reelhouse/models"
)

const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"

	defaultBaseURL = "https://www.vidking.net"
	serverName     = "vidking"
)

var (
	ErrInvalidMediaType = errors.New("media type must be movie or tv")
	ErrInvalidID        = errors.New("title id must be positive")
	ErrEpisodeRequired  = errors.New("season and episode are required for tv")
)

// Options are the player flags appended to an embed URL.
type Options struct {
	Color           string
	AutoPlay        bool
	NextEpisode     bool
	EpisodeSelector bool
	// Progress is the resume offset in whole seconds. Zero starts from the
	// beginning.
	Progress int64
}

// EmbedURL returns the player URL for a movie or a single episode.
func EmbedURL(baseURL, mediaType string, id int64, season, episode int, opts Options) (string, error) {
	if id <= 0 {
		return "", ErrInvalidID
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}

	var path string
	switch mediaType {
	case MediaTypeMovie:
		path = fmt.Sprintf("%s/embed/movie/%d", base, id)
	case MediaTypeTV:
		if season < 1 || episode < 1 {
			return "", ErrEpisodeRequired
		}
		path = fmt.Sprintf("%s/embed/tv/%d/%d/%d", base, id, season, episode)
	default:
		return "", ErrInvalidMediaType
	}

	return path + opts.query(), nil
}

// query keeps the provider's documented parameter order.
func (o Options) query() string {
	var params []string
	if o.Color != "" {
		params = append(params, "color="+url.QueryEscape(strings.TrimPrefix(o.Color, "#")))
	}
	if o.AutoPlay {
		params = append(params, "autoPlay=true")
	}
	if o.NextEpisode {
		params = append(params, "nextEpisode=true")
	}
	if o.EpisodeSelector {
		params = append(params, "episodeSelector=true")
	}
	if o.Progress > 0 {
		params = append(params, "progress="+strconv.FormatInt(o.Progress, 10))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + strings.Join(params, "&")
}

// Builder produces stream sources using the configured defaults.
type Builder struct {
	baseURL  string
	defaults Options
}

// NewBuilder creates a builder from the streaming settings.
func NewBuilder(cfg config.StreamingSettings) *Builder {
	return &Builder{
		baseURL: cfg.BaseURL,
		defaults: Options{
			Color:           cfg.Color,
			AutoPlay:        cfg.AutoPlay,
			NextEpisode:     cfg.NextEpisode,
			EpisodeSelector: cfg.EpisodeSelector,
		},
	}
}

// Streams lists the playable sources for a title. resumeAt is the stored
// playback position in seconds.
func (b *Builder) Streams(mediaType string, id int64, season, episode int, resumeAt float64) ([]models.StreamSource, error) {
	opts := b.defaults
	if resumeAt > 0 && !math.IsInf(resumeAt, 0) && !math.IsNaN(resumeAt) {
		opts.Progress = int64(resumeAt)
	}

	embed, err := EmbedURL(b.baseURL, mediaType, id, season, episode, opts)
	if err != nil {
		return nil, err
	}
	slog.Debug("built embed url", "component", "streaming", "url", embed)

	return []models.StreamSource{{
		ID:       embed,
		Name:     "Vidking",
		URL:      embed,
		Quality:  "Auto",
		Language: "EN",
		Server:   serverName,
	}}, nil
}

// ProgressKey maps a player route to the key its progress is stored under.
func ProgressKey(mediaType string, id int64, season, episode int) (models.MediaKey, error) {
	switch mediaType {
	case MediaTypeMovie:
		return models.MediaKey{MediaType: models.MediaTypeMovie, TitleID: id}, nil
	case MediaTypeTV:
		return models.MediaKey{MediaType: models.MediaTypeEpisode, TitleID: id, Season: season, Episode: episode}, nil
	default:
		return models.MediaKey{}, ErrInvalidMediaType
	}
}
