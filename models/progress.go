package models

import (
	"fmt"
	"time"
)

// MediaType distinguishes the kinds of titles progress can be stored for.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// MediaKey identifies a single playable item. Movies leave Season and
// Episode at zero.
type MediaKey struct {
	MediaType MediaType `json:"media_type"`
	TitleID   int64     `json:"title_id"`
	Season    int       `json:"season,omitempty"`
	Episode   int       `json:"episode,omitempty"`
}

// String renders the key as "movie:42" or "episode:1399:s01e03".
func (k MediaKey) String() string {
	if k.MediaType == MediaTypeEpisode {
		return fmt.Sprintf("%s:%d:s%02de%02d", k.MediaType, k.TitleID, k.Season, k.Episode)
	}
	return fmt.Sprintf("%s:%d", k.MediaType, k.TitleID)
}

// ProgressReport is a playback progress update sent by the player page.
type ProgressReport struct {
	MediaKey
	PositionSeconds float64 `json:"position"`
	DurationSeconds float64 `json:"duration,omitempty"`
	Completed       bool    `json:"completed,omitempty"`
	Title           string  `json:"title,omitempty"`
	PosterPath      string  `json:"poster_path,omitempty"`
	EpisodeTitle    string  `json:"episode_title,omitempty"`
}

// WatchProgress is the stored playback position for one MediaKey.
type WatchProgress struct {
	Username string `json:"username"`
	MediaKey
	PositionSeconds float64   `json:"position"`
	DurationSeconds float64   `json:"duration,omitempty"`
	Completed       bool      `json:"completed"`
	Title           string    `json:"title,omitempty"`
	PosterPath      string    `json:"poster_path,omitempty"`
	EpisodeTitle    string    `json:"episode_title,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PercentWatched returns position/duration as a percentage, or zero when the
// duration is unknown.
func (p WatchProgress) PercentWatched() float64 {
	if p.DurationSeconds <= 0 {
		return 0
	}
	pct := p.PositionSeconds / p.DurationSeconds * 100
	if pct > 100 {
		return 100
	}
	return pct
}
