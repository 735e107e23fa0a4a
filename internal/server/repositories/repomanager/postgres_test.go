package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mindvault/internal/server/migrations"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/tokens"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func stubGoose(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = fn
	t.Cleanup(func() { gooseUpContext = orig })
}

func TestFactories_BindReposToHandle(t *testing.T) {
	db := newDB(t)
	m := NewPostgresRepositoryManager()

	a, ok := m.Accounts(db).(*accounts.PostgresRepository)
	require.True(t, ok, "Accounts() must return the Postgres repository")
	assert.NotNil(t, a)

	tk, ok := m.Tokens(db).(*tokens.PostgresRepository)
	require.True(t, ok, "Tokens() must return the Postgres repository")
	assert.NotNil(t, tk)
}

func TestRunMigrations_UsesEmbeddedRoot(t *testing.T) {
	var gotDir string
	stubGoose(t, func(_ context.Context, _ *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		assert.Empty(t, opts)
		return nil
	})

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), newDB(t)))
	assert.Equal(t, ".", gotDir)
}

func TestRunMigrations_Error(t *testing.T) {
	boom := errors.New("boom")
	stubGoose(t, func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom })

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), newDB(t))
	assert.ErrorIs(t, err, boom)
}

func TestEmbeddedMigrations_Ordered(t *testing.T) {
	names, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_accounts.sql", "00002_tokens.sql"}, names)

	tokensSQL, err := fs.ReadFile(migrations.Migrations, "00002_tokens.sql")
	require.NoError(t, err)
	assert.Contains(t, string(tokensSQL), "tokens_value_key")
	assert.Contains(t, string(tokensSQL), "ON DELETE CASCADE")
}
