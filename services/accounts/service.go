package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"reelhouse/models"
)

var (
	ErrDatabaseRequired = errors.New("database handle not provided")
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrInvalidRole      = errors.New("invalid role")

	// ErrAuthFailure is matched by every credential failure. Callers show a
	// single generic message for it.
	ErrAuthFailure   = errors.New("invalid credentials")
	ErrNotFound      = fmt.Errorf("%w: account not found", ErrAuthFailure)
	ErrBadCredential = fmt.Errorf("%w: password mismatch", ErrAuthFailure)
)

// dummyHash is compared against when the account does not exist so a miss
// costs the same as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("reelhouse-timing-pad"), bcrypt.DefaultCost)

// Service is the credential store.
type Service struct {
	db           *sql.DB
	cost         int
	seedUsername string
	seedPassword string
	now          func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithSeed overrides the first-boot administrator credential.
func WithSeed(username, password string) Option {
	return func(s *Service) {
		if u := strings.TrimSpace(username); u != "" {
			s.seedUsername = u
		}
		if password != "" {
			s.seedPassword = password
		}
	}
}

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a credential store over db.
func NewService(db *sql.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, ErrDatabaseRequired
	}
	svc := &Service{
		db:           db,
		cost:         bcrypt.DefaultCost,
		seedUsername: models.DefaultSeedUsername,
		seedPassword: models.DefaultSeedPassword,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SeedUsername returns the identifier EnsureSeedAccount creates.
func (s *Service) SeedUsername() string {
	return s.seedUsername
}

// Verify checks password against the stored verifier for username.
func (s *Service) Verify(ctx context.Context, username, password string) (models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Account{}, ErrNotFound
	}

	var (
		account   models.Account
		hash      string
		role      string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role, created_at FROM accounts WHERE username = ?`,
		username,
	).Scan(&account.Username, &hash, &role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return models.Account{}, ErrBadCredential
		}
		return models.Account{}, fmt.Errorf("compare password: %w", err)
	}

	account.Role = models.Role(role)
	account.CreatedAt = time.Unix(0, createdAt).UTC()
	return account, nil
}

// Create adds an account. Usernames are immutable once created.
func (s *Service) Create(ctx context.Context, username, password string, role models.Role) (models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Account{}, ErrUsernameRequired
	}
	if password == "" {
		return models.Account{}, ErrPasswordRequired
	}
	if !role.Valid() {
		return models.Account{}, ErrInvalidRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING`,
		username, string(hash), string(role), now.UnixNano(),
	)
	if err != nil {
		return models.Account{}, fmt.Errorf("insert account: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return models.Account{}, fmt.Errorf("insert account: %w", err)
	} else if affected == 0 {
		return models.Account{}, ErrUsernameTaken
	}

	return models.Account{Username: username, Role: role, CreatedAt: time.Unix(0, now.UnixNano()).UTC()}, nil
}

// Get returns the account with the given username.
func (s *Service) Get(ctx context.Context, username string) (models.Account, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.Account{}, false, nil
	}

	var (
		account   models.Account
		role      string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, role, created_at FROM accounts WHERE username = ?`,
		username,
	).Scan(&account.Username, &role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, fmt.Errorf("get account: %w", err)
	}

	account.Role = models.Role(role)
	account.CreatedAt = time.Unix(0, createdAt).UTC()
	return account, true, nil
}

// Count returns the number of accounts.
func (s *Service) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// EnsureSeedAccount creates the administrator account when the accounts
// table is empty. The emptiness check and the insert are one statement, so
// repeated or concurrent calls never create duplicates.
func (s *Service) EnsureSeedAccount(ctx context.Context) (bool, error) {
	if s.seedUsername == "" {
		return false, ErrUsernameRequired
	}
	if s.seedPassword == "" {
		return false, ErrPasswordRequired
	}

	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.seedPassword), s.cost)
	if err != nil {
		return false, fmt.Errorf("hash seed password: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, password_hash, role, created_at)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM accounts)`,
		s.seedUsername, string(hash), string(models.RoleAdministrator), s.now().UTC().UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("insert seed account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert seed account: %w", err)
	}

	if affected > 0 {
		slog.Info("created seed administrator account", "component", "accounts", "username", s.seedUsername)
	}
	return affected > 0, nil
}

// UsesDefaultPassword reports whether the seed account still accepts the
// documented default password.
func (s *Service) UsesDefaultPassword(ctx context.Context) (bool, error) {
	_, err := s.Verify(ctx, s.seedUsername, models.DefaultSeedPassword)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrAuthFailure):
		return false, nil
	default:
		return false, err
	}
}
