package accounts

import (
	"context"

	"github.com/dmitrijs2005/mindvault/internal/server/models"
)

// LockMode selects the row lock taken by FindByEmailLocked.
type LockMode int

const (
	// LockShare blocks writers of the row until the transaction ends.
	LockShare LockMode = iota
	// LockUpdate blocks both writers and shared lockers.
	LockUpdate
)

// Repository is the user directory. Lookups return common.ErrorNotFound when
// no row matches; all other failures wrap common.ErrStorageUnavailable.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	// FindByEmailLocked must run inside a transaction.
	FindByEmailLocked(ctx context.Context, email string, mode LockMode) (*models.Account, error)
	UpdateSecret(ctx context.Context, id string, secretHash []byte) error
	SetVerified(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, id string, profile models.Profile) error
}
