package session

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE session (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestLoad_Empty_ReturnsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	s, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSaveAndLoad(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, Session{Email: "alice@x.com", Token: "t1"}))

	s, err := r.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, Session{Email: "alice@x.com", Token: "t1"}, *s)
}

func TestSave_OverwritesPreviousSession(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, Session{Email: "alice@x.com", Token: "old"}))
	require.NoError(t, r.Save(ctx, Session{Email: "bob@x.com", Token: "new"}))

	s, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", s.Email)
	assert.Equal(t, "new", s.Token)
}

func TestClear_RemovesSession_AndIsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, Session{Email: "alice@x.com", Token: "t"}))
	require.NoError(t, r.Clear(ctx))
	require.NoError(t, r.Clear(ctx))

	s, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, err := r.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get session[token]")

	err = r.Save(ctx, Session{Email: "a", Token: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set session[email]")

	err = r.Clear(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clear session")
}
