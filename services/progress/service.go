package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"reelhouse/models"
)

var (
	ErrDatabaseRequired = errors.New("database handle not provided")
	ErrUsernameRequired = errors.New("username is required")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid progress report")
)

// ValidationError describes the first field of a report that failed
// validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Service tracks per-account playback positions.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a progress tracker over db.
func NewService(db *sql.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	svc := &Service{db: db, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ValidateKey checks that key names a playable movie or episode.
func ValidateKey(key models.MediaKey) error {
	switch key.MediaType {
	case models.MediaTypeMovie:
		if key.Season != 0 {
			return invalid("season", "must be unset for movies")
		}
		if key.Episode != 0 {
			return invalid("episode", "must be unset for movies")
		}
	case models.MediaTypeEpisode:
		if key.Season < 1 {
			return invalid("season", "must be at least 1")
		}
		if key.Episode < 1 {
			return invalid("episode", "must be at least 1")
		}
	default:
		return invalid("media_type", "must be movie or episode")
	}
	if key.TitleID <= 0 {
		return invalid("title_id", "must be positive")
	}
	return nil
}

// Validate checks a report without touching storage.
func Validate(report models.ProgressReport) error {
	if err := ValidateKey(report.MediaKey); err != nil {
		return err
	}
	if math.IsNaN(report.PositionSeconds) || math.IsInf(report.PositionSeconds, 0) || report.PositionSeconds < 0 {
		return invalid("position", "must be a non-negative number")
	}
	if math.IsNaN(report.DurationSeconds) || math.IsInf(report.DurationSeconds, 0) || report.DurationSeconds < 0 {
		return invalid("duration", "must be a non-negative number")
	}
	return nil
}

// Save records report for username. The latest write for a key wins, even
// when it moves the position backwards. Blank descriptive fields keep the
// values already stored for the key.
func (s *Service) Save(ctx context.Context, username string, report models.ProgressReport) (models.WatchProgress, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.WatchProgress{}, ErrUsernameRequired
	}
	if err := Validate(report); err != nil {
		return models.WatchProgress{}, err
	}

	updatedAt := s.now().UTC().UnixNano()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO watch_progress (
			username, media_type, title_id, season, episode,
			position_seconds, duration_seconds, completed,
			title, poster_path, episode_title, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, media_type, title_id, season, episode) DO UPDATE SET
			position_seconds = excluded.position_seconds,
			duration_seconds = CASE WHEN excluded.duration_seconds > 0
				THEN excluded.duration_seconds ELSE watch_progress.duration_seconds END,
			completed = excluded.completed,
			title = COALESCE(NULLIF(excluded.title, ''), watch_progress.title),
			poster_path = COALESCE(NULLIF(excluded.poster_path, ''), watch_progress.poster_path),
			episode_title = COALESCE(NULLIF(excluded.episode_title, ''), watch_progress.episode_title),
			updated_at = excluded.updated_at
		RETURNING `+columns,
		username, string(report.MediaType), report.TitleID, report.Season, report.Episode,
		report.PositionSeconds, report.DurationSeconds, report.Completed,
		strings.TrimSpace(report.Title), strings.TrimSpace(report.PosterPath), strings.TrimSpace(report.EpisodeTitle),
		updatedAt,
	)

	saved, err := scan(row)
	if err != nil {
		return models.WatchProgress{}, fmt.Errorf("save progress: %w", err)
	}
	return saved, nil
}

// List returns every entry for username, most recently updated first.
func (s *Service) List(ctx context.Context, username string) ([]models.WatchProgress, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columns+`
		FROM watch_progress
		WHERE username = ?
		ORDER BY updated_at DESC, media_type, title_id, season, episode`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	out := make([]models.WatchProgress, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("list progress: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return out, nil
}

// Get returns the stored entry for key, if any.
func (s *Service) Get(ctx context.Context, username string, key models.MediaKey) (models.WatchProgress, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.WatchProgress{}, false, ErrUsernameRequired
	}
	if err := ValidateKey(key); err != nil {
		return models.WatchProgress{}, false, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+columns+`
		FROM watch_progress
		WHERE username = ? AND media_type = ? AND title_id = ? AND season = ? AND episode = ?`,
		username, string(key.MediaType), key.TitleID, key.Season, key.Episode,
	)
	item, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WatchProgress{}, false, nil
	}
	if err != nil {
		return models.WatchProgress{}, false, fmt.Errorf("get progress: %w", err)
	}
	return item, true, nil
}

// Delete removes the entry for key and reports whether one existed.
func (s *Service) Delete(ctx context.Context, username string, key models.MediaKey) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, ErrUsernameRequired
	}
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM watch_progress
		WHERE username = ? AND media_type = ? AND title_id = ? AND season = ? AND episode = ?`,
		username, string(key.MediaType), key.TitleID, key.Season, key.Episode,
	)
	if err != nil {
		return false, fmt.Errorf("delete progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete progress: %w", err)
	}
	return n > 0, nil
}

// Clear removes every entry for username and returns how many were removed.
func (s *Service) Clear(ctx context.Context, username string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, ErrUsernameRequired
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM watch_progress WHERE username = ?`, username)
	if err != nil {
		return 0, fmt.Errorf("clear progress: %w", err)
	}
	return res.RowsAffected()
}

const columns = `username, media_type, title_id, season, episode,
	position_seconds, duration_seconds, completed,
	title, poster_path, episode_title, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (models.WatchProgress, error) {
	var (
		item      models.WatchProgress
		mediaType string
		updatedAt int64
	)
	err := row.Scan(
		&item.Username, &mediaType, &item.TitleID, &item.Season, &item.Episode,
		&item.PositionSeconds, &item.DurationSeconds, &item.Completed,
		&item.Title, &item.PosterPath, &item.EpisodeTitle, &updatedAt,
	)
	if err != nil {
		return models.WatchProgress{}, err
	}
	item.MediaType = models.MediaType(mediaType)
	item.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return item, nil
}
