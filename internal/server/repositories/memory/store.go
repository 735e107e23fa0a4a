// Package memory holds in-process implementations of the account and token
// repositories. State lives in a Store guarded by one mutex; transactions
// run serially and roll back by restoring a snapshot, which makes them
// serializable. Selected with the "memory://" DSN and used by service tests.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/mindvault/internal/dbx"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/tokens"
	"github.com/google/uuid"
)

// DSN selects the in-memory store in server configuration.
const DSN = "memory://"

var errNoSQL = errors.New("memory store: no SQL handle")

// Store is the shared state behind the repositories.
type Store struct {
	mu       sync.Mutex
	accounts map[string]accountRow
	tokens   map[string]tokenRow
	// InsertHook, when set, runs before every token insert while the store
	// is locked; returning an error aborts the insert.
	InsertHook func(value string) error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]accountRow),
		tokens:   make(map[string]tokenRow),
	}
}

// txHandle marks repositories that run inside Store.WithTx and must not
// take the store lock again.
type txHandle struct{}

func (txHandle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (txHandle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (txHandle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// WithTx implements dbx.Transactor.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accSnap := cloneMap(s.accounts)
	tokSnap := cloneMap(s.tokens)

	defer func() {
		if p := recover(); p != nil {
			s.accounts, s.tokens = accSnap, tokSnap
			panic(p)
		}
		if err != nil {
			s.accounts, s.tokens = accSnap, tokSnap
		}
	}()

	return fn(ctx, txHandle{})
}

// RunMigrations is a no-op; the store has no schema.
func (s *Store) RunMigrations(context.Context, *sql.DB) error { return nil }

// Accounts returns an accounts.Repository. Pass the handle received from
// WithTx to join the transaction; anything else (typically nil) locks per call.
func (s *Store) Accounts(db dbx.DBTX) accounts.Repository {
	_, inTx := db.(txHandle)
	return &AccountRepository{s: s, inTx: inTx}
}

// Tokens returns a tokens.Repository bound like Accounts.
func (s *Store) Tokens(db dbx.DBTX) tokens.Repository {
	_, inTx := db.(txHandle)
	return &TokenRepository{s: s, inTx: inTx}
}

func (s *Store) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func newID() string { return uuid.NewString() }

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
