package models

// Basic metadata structures for titles and images.

type Image struct {
	URL  string `json:"url"`
	Type string `json:"type"` // poster, backdrop, profile
}

type Title struct {
	ID          int64   `json:"id"`
	MediaType   string  `json:"mediaType"` // movie | tv
	Name        string  `json:"name"`
	Overview    string  `json:"overview"`
	Year        int     `json:"year,omitempty"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	Poster      *Image  `json:"poster,omitempty"`
	PosterPath  string  `json:"posterPath,omitempty"`
	Backdrop    *Image  `json:"backdrop,omitempty"`
	VoteAverage float64 `json:"voteAverage"`
	Popularity  float64 `json:"popularity,omitempty"`
}

// Genre is a TMDB genre used by the search filters.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CastMember represents an actor in a movie or series
type CastMember struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Character  string `json:"character"`
	Order      int    `json:"order"`
	ProfileURL string `json:"profileUrl,omitempty"`
}

// Season summarises one season of a series.
type Season struct {
	Number       int    `json:"number"`
	Name         string `json:"name"`
	Overview     string `json:"overview,omitempty"`
	EpisodeCount int    `json:"episodeCount"`
	AirDate      string `json:"airDate,omitempty"`
	Poster       *Image `json:"poster,omitempty"`
}

// TitleDetail is the full detail page payload for a movie or series.
type TitleDetail struct {
	Title
	Genres          []Genre      `json:"genres,omitempty"`
	RuntimeMinutes  int          `json:"runtimeMinutes,omitempty"`
	Tagline         string       `json:"tagline,omitempty"`
	Cast            []CastMember `json:"cast,omitempty"`
	Similar         []Title      `json:"similar,omitempty"`
	Seasons         []Season     `json:"seasons,omitempty"`
	NumberOfSeasons int          `json:"numberOfSeasons,omitempty"`
}

// SearchFilters narrows a search. A zero value means a plain multi search.
type SearchFilters struct {
	Genre     string  `json:"genre,omitempty"`
	Year      int     `json:"year,omitempty"`
	MinRating float64 `json:"minRating,omitempty"`
	SortBy    string  `json:"sortBy,omitempty"`
	Page      int     `json:"page,omitempty"`
}

// HasFilters reports whether any discover-style filter is set.
func (f SearchFilters) HasFilters() bool {
	return f.Genre != "" || f.Year != 0 || f.MinRating > 0
}

// StreamSource is a playable embed offered on the player page.
type StreamSource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Quality  string `json:"quality,omitempty"`
	Language string `json:"language,omitempty"`
	Server   string `json:"server"`
}

// TitlePage is one page of search, trending or popular results.
type TitlePage struct {
	Page         int     `json:"page"`
	TotalPages   int     `json:"totalPages"`
	TotalResults int     `json:"totalResults"`
	Results      []Title `json:"results"`
}
