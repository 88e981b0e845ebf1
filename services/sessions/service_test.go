package sessions_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"reelhouse/internal/database"
	"reelhouse/models"
	"reelhouse/services/accounts"
	"reelhouse/services/scheduler"
	"reelhouse/services/sessions"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func setup(t *testing.T, opts ...sessions.Option) (*sql.DB, *sessions.Service, *clock) {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	acct, err := accounts.NewService(db, accounts.WithCost(bcrypt.MinCost))
	require.NoError(t, err)
	_, err = acct.EnsureSeedAccount(ctx)
	require.NoError(t, err)

	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := sessions.NewService(db, append([]sessions.Option{sessions.WithClock(clk.Now)}, opts...)...)
	require.NoError(t, err)
	return db, svc, clk
}

func countSessions(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	return n
}

func TestIssueThenResolve(t *testing.T) {
	ctx := context.Background()
	db, svc, clk := setup(t)

	token, session, err := svc.Issue(ctx, models.DefaultSeedUsername)
	require.NoError(t, err)
	require.Len(t, token, 43)
	require.Equal(t, models.DefaultSeedUsername, session.Username)
	require.Equal(t, clk.Now(), session.IssuedAt)
	require.Equal(t, clk.Now().Add(sessions.DefaultTTL), session.ExpiresAt)

	account, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Equal(t, models.DefaultSeedUsername, account.Username)
	require.Equal(t, models.RoleAdministrator, account.Role)

	// The raw token never reaches storage.
	var stored string
	require.NoError(t, db.QueryRow(`SELECT token_hash FROM sessions`).Scan(&stored))
	require.NotEqual(t, token, stored)
	require.False(t, strings.Contains(stored, token))
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	ctx := context.Background()
	db, svc, _ := setup(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		token, _, err := svc.Issue(ctx, models.DefaultSeedUsername)
		require.NoError(t, err)
		require.False(t, seen[token], "duplicate token issued")
		seen[token] = true
	}
	require.Equal(t, 20, countSessions(t, db))
}

func TestResolveRejectsAbsentAndMalformedTokens(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := setup(t)

	for _, token := range []string{"", "not a token!", strings.Repeat("A", 43), strings.Repeat("x", 500)} {
		account, err := svc.Resolve(ctx, token)
		require.NoError(t, err)
		require.Nil(t, account, "token %q", token)
	}
}

func TestResolveAfterExpiry(t *testing.T) {
	ctx := context.Background()
	db, svc, clk := setup(t, sessions.WithTTL(time.Hour))

	token, _, err := svc.Issue(ctx, models.DefaultSeedUsername)
	require.NoError(t, err)

	clk.Advance(59 * time.Minute)
	account, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, account)

	clk.Advance(time.Minute)
	account, err = svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.Nil(t, account)

	// Expired rows are removed when they are found.
	require.Equal(t, 0, countSessions(t, db))
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := setup(t)

	token, _, err := svc.Issue(ctx, models.DefaultSeedUsername)
	require.NoError(t, err)
	other, _, err := svc.Issue(ctx, models.DefaultSeedUsername)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, token))
	account, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.Nil(t, account)

	// Revoking twice, or revoking garbage, is fine.
	require.NoError(t, svc.Revoke(ctx, token))
	require.NoError(t, svc.Revoke(ctx, ""))

	account, err = svc.Resolve(ctx, other)
	require.NoError(t, err)
	require.NotNil(t, account)
}

func TestRevokeAll(t *testing.T) {
	ctx := context.Background()
	db, svc, _ := setup(t)

	for i := 0; i < 3; i++ {
		_, _, err := svc.Issue(ctx, models.DefaultSeedUsername)
		require.NoError(t, err)
	}
	n, err := svc.RevokeAll(ctx, models.DefaultSeedUsername)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.Equal(t, 0, countSessions(t, db))
}

func TestIssueRequiresKnownAccount(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := setup(t)

	_, _, err := svc.Issue(ctx, "ghost")
	require.Error(t, err)

	_, _, err = svc.Issue(ctx, "  ")
	require.ErrorIs(t, err, sessions.ErrUsernameRequired)
}

func TestIssueFailsWithoutEntropy(t *testing.T) {
	ctx := context.Background()
	db, svc, _ := setup(t, sessions.WithRandom(failingReader{}))

	_, _, err := svc.Issue(ctx, models.DefaultSeedUsername)
	require.ErrorIs(t, err, sessions.ErrTokenGeneration)
	require.Equal(t, 0, countSessions(t, db))
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	db, svc, clk := setup(t, sessions.WithTTL(time.Hour))

	_, _, err := svc.Issue(ctx, models.DefaultSeedUsername)
	require.NoError(t, err)
	clk.Advance(30 * time.Minute)
	fresh, _, err := svc.Issue(ctx, models.DefaultSeedUsername)
	require.NoError(t, err)

	clk.Advance(45 * time.Minute)
	removed, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
	require.Equal(t, 1, countSessions(t, db))

	account, err := svc.Resolve(ctx, fresh)
	require.NoError(t, err)
	require.NotNil(t, account)
}

func TestJanitorTaskPurges(t *testing.T) {
	ctx := context.Background()
	db, svc, clk := setup(t, sessions.WithTTL(time.Minute))

	_, _, err := svc.Issue(ctx, models.DefaultSeedUsername)
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)

	sched := scheduler.NewService()
	require.NoError(t, sched.Register(sessions.JanitorTask(svc, time.Hour)))
	require.NoError(t, sched.RunTaskNow(ctx, sessions.JanitorTaskID))
	require.Equal(t, 0, countSessions(t, db))
}

func TestNewServiceRequiresDatabase(t *testing.T) {
	_, err := sessions.NewService(nil)
	require.ErrorIs(t, err, sessions.ErrDatabaseRequired)
}
