// Package tokens provides the PostgreSQL-backed token store holding email
// verification and access token records.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/dbx"
	"github.com/dmitrijs2005/mindvault/internal/server/models"
)

const tokenColumns = `id, value, kind, account_id, expired, revoked, expires_at, created_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores rec and fills in its generated id and creation time.
func (r *PostgresRepository) Insert(ctx context.Context, rec *models.TokenRecord) error {
	query := `
		INSERT INTO tokens (value, kind, account_id, expired, revoked, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.Value, string(rec.Kind), rec.AccountID, rec.Expired, rec.Revoked, rec.ExpiresAt).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrTokenCollision
		}
		return dbx.StorageError(err)
	}
	return nil
}

// FindByValue returns the record holding value, or common.ErrorNotFound.
func (r *PostgresRepository) FindByValue(ctx context.Context, value string) (*models.TokenRecord, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE value = $1
	`
	rec, err := scanToken(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbx.StorageError(err)
	}
	return rec, nil
}

// FindAllByOwner lists every record of the account, oldest first.
func (r *PostgresRepository) FindAllByOwner(ctx context.Context, accountID string) ([]*models.TokenRecord, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE account_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, dbx.StorageError(err)
	}
	defer rows.Close()

	var out []*models.TokenRecord
	for rows.Next() {
		rec, err := scanToken(rows)
		if err != nil {
			return nil, dbx.StorageError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.StorageError(err)
	}
	return out, nil
}

// Delete removes the record with the given id. Missing rows are not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM tokens
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return dbx.StorageError(err)
	}
	return nil
}

// DeleteByValue removes the record holding value and reports whether one existed.
func (r *PostgresRepository) DeleteByValue(ctx context.Context, value string) (bool, error) {
	query := `
		DELETE FROM tokens
		WHERE value = $1
	`
	res, err := r.db.ExecContext(ctx, query, value)
	if err != nil {
		return false, dbx.StorageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbx.StorageError(err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) DeleteCollectable(ctx context.Context, accountID string, now time.Time) (int64, error) {
	query := `
		DELETE FROM tokens
		WHERE account_id = $1
		  AND (expired OR revoked OR expires_at <= $2)
	`
	return r.execCount(ctx, query, accountID, now)
}

func (r *PostgresRepository) MarkExpired(ctx context.Context, id string) error {
	query := `
		UPDATE tokens SET expired = TRUE
		WHERE id = $1
	`
	n, err := r.execCount(ctx, query, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// RevokeAllByOwner flags every not yet revoked record of the given kind.
func (r *PostgresRepository) RevokeAllByOwner(ctx context.Context, accountID string, kind models.TokenKind) (int64, error) {
	query := `
		UPDATE tokens SET revoked = TRUE
		WHERE account_id = $1 AND kind = $2 AND NOT revoked
	`
	return r.execCount(ctx, query, accountID, string(kind))
}

func (r *PostgresRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, dbx.StorageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.StorageError(err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*models.TokenRecord, error) {
	rec := &models.TokenRecord{}
	var kind string
	if err := s.Scan(&rec.ID, &rec.Value, &kind, &rec.AccountID, &rec.Expired, &rec.Revoked, &rec.ExpiresAt, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Kind = models.TokenKind(kind)
	return rec, nil
}
