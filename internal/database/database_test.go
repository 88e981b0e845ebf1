package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"reelhouse/internal/database"
)

func TestOpenAppliesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "nested", "reelhouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, table := range []string{"accounts", "sessions", "watch_progress"} {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk))
	require.Equal(t, 1, fk)
}

func TestOpenIsRepeatable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reelhouse.db")

	db, err := database.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = database.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestSessionsCascadeWithAccount(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "reelhouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, `INSERT INTO accounts (username, password_hash, role, created_at) VALUES ('u', 'x', 'standard', 1)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO sessions (token_hash, username, issued_at, expires_at) VALUES ('h', 'u', 1, 2)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO watch_progress (username, media_type, title_id, position_seconds, updated_at) VALUES ('u', 'movie', 1, 0, 1)`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `DELETE FROM accounts WHERE username = 'u'`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM sessions) + (SELECT COUNT(*) FROM watch_progress)`).Scan(&n))
	require.Zero(t, n)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := database.Open(context.Background(), "  ")
	require.ErrorIs(t, err, database.ErrPathRequired)
}
