package sessions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"reelhouse/models"
)

// DefaultTTL is how long an issued session stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// tokenBytes is the amount of randomness in a token before encoding.
const tokenBytes = 32

var (
	ErrDatabaseRequired = errors.New("database handle not provided")
	ErrUsernameRequired = errors.New("username is required")
	ErrTokenGeneration  = errors.New("generate session token")
)

// Service issues, resolves and revokes session tokens. Only a sha256 of each
// token is stored.
type Service struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// Option customises a Service.
type Option func(*Service)

// WithTTL sets the session lifetime. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom replaces crypto/rand as the token source.
func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.random = r }
}

// NewService creates a session manager over db.
func NewService(db *sql.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	svc := &Service{
		db:     db,
		ttl:    DefaultTTL,
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// TTL returns the configured session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue creates a new session for username and returns the bearer token.
// The caller must have verified the credential first.
func (s *Service) Issue(ctx context.Context, username string) (string, models.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", models.Session{}, ErrUsernameRequired
	}

	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", models.Session{}, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	now := s.now().UTC()
	session := models.Session{
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, username, issued_at, expires_at) VALUES (?, ?, ?, ?)`,
		hashToken(token), username, session.IssuedAt.UnixNano(), session.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return "", models.Session{}, fmt.Errorf("insert session: %w", err)
	}

	return token, session, nil
}

// Resolve maps a token to its account. Missing, malformed, unknown and
// expired tokens all resolve to a nil account with no error. An expired row
// found along the way is deleted.
func (s *Service) Resolve(ctx context.Context, token string) (*models.Account, error) {
	if !wellFormed(token) {
		return nil, nil
	}
	key := hashToken(token)

	var (
		account   models.Account
		role      string
		createdAt int64
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT a.username, a.role, a.created_at, s.expires_at
		FROM sessions s
		JOIN accounts a ON a.username = s.username
		WHERE s.token_hash = ?`,
		key,
	).Scan(&account.Username, &role, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	if !s.now().Before(time.Unix(0, expiresAt)) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, key); err != nil {
			slog.Warn("failed to delete expired session", "component", "sessions", "error", err)
		}
		return nil, nil
	}

	account.Role = models.Role(role)
	account.CreatedAt = time.Unix(0, createdAt).UTC()
	return &account, nil
}

// Revoke deletes the session for token. Unknown tokens are not an error.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if !wellFormed(token) {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, hashToken(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAll deletes every session belonging to username.
func (s *Service) RevokeAll(ctx context.Context, username string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE username = ?`, strings.TrimSpace(username))
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return res.RowsAffected()
}

// PurgeExpired deletes every session whose expiry has passed and returns how
// many were removed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.now().UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func wellFormed(token string) bool {
	if token == "" || len(token) > 128 {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}
