// Package accounts provides the user directory: account rows keyed by email
// identity, stored in PostgreSQL.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/dbx"
	"github.com/dmitrijs2005/mindvault/internal/server/models"
)

const accountColumns = `id, email, secret_hash, first_name, last_name, verified, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts account and fills in its generated id and timestamps.
// An already registered email yields common.ErrDuplicateIdentity.
func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (email, secret_hash, first_name, last_name, verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		account.Email, account.SecretHash, account.FirstName, account.LastName, account.Verified).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateIdentity
		}
		return nil, dbx.StorageError(err)
	}

	return account, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM accounts
		 WHERE email = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM accounts
		 WHERE id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByEmailLocked reads the account row and locks it until the enclosing
// transaction ends.
func (r *PostgresRepository) FindByEmailLocked(ctx context.Context, email string, mode LockMode) (*models.Account, error) {
	lock := "FOR SHARE"
	if mode == LockUpdate {
		lock = "FOR UPDATE"
	}
	query :=
		`SELECT ` + accountColumns + ` FROM accounts
		 WHERE email = $1
		 ` + lock
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) UpdateSecret(ctx context.Context, id string, secretHash []byte) error {
	query :=
		`UPDATE accounts SET secret_hash = $2, updated_at = now()
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, id, secretHash)
}

func (r *PostgresRepository) SetVerified(ctx context.Context, id string) error {
	query :=
		`UPDATE accounts SET verified = TRUE, updated_at = now()
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, profile models.Profile) error {
	query :=
		`UPDATE accounts SET first_name = $2, last_name = $3, updated_at = now()
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, id, profile.FirstName, profile.LastName)
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.SecretHash, &a.FirstName, &a.LastName, &a.Verified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.StorageError(err)
	}
	return a, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbx.StorageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", common.ErrStorageUnavailable, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
