package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/mindvault/internal/dbx"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/tokens"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against a pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Tokens(db dbx.DBTX) tokens.Repository
}
