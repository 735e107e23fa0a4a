package memory

import (
	"context"
	"slices"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/server/models"
	"github.com/dmitrijs2005/mindvault/internal/server/repositories/accounts"
)

type accountRow models.Account

func (r accountRow) model() *models.Account {
	a := models.Account(r)
	a.SecretHash = slices.Clone(r.SecretHash)
	return &a
}

// AccountRepository implements accounts.Repository on a Store.
type AccountRepository struct {
	s    *Store
	inTx bool
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	defer r.s.lock(r.inTx)()

	for _, row := range r.s.accounts {
		if row.Email == account.Email {
			return nil, common.ErrDuplicateIdentity
		}
	}
	now := time.Now().UTC()
	account.ID = newID()
	account.CreatedAt, account.UpdatedAt = now, now

	row := accountRow(*account)
	row.SecretHash = slices.Clone(account.SecretHash)
	r.s.accounts[account.ID] = row
	return account, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	defer r.s.lock(r.inTx)()
	return r.byEmail(email)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	defer r.s.lock(r.inTx)()

	row, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return row.model(), nil
}

// FindByEmailLocked ignores mode: transactions already hold the store lock.
func (r *AccountRepository) FindByEmailLocked(ctx context.Context, email string, _ accounts.LockMode) (*models.Account, error) {
	defer r.s.lock(r.inTx)()
	return r.byEmail(email)
}

func (r *AccountRepository) UpdateSecret(ctx context.Context, id string, secretHash []byte) error {
	return r.update(id, func(row *accountRow) { row.SecretHash = slices.Clone(secretHash) })
}

func (r *AccountRepository) SetVerified(ctx context.Context, id string) error {
	return r.update(id, func(row *accountRow) { row.Verified = true })
}

func (r *AccountRepository) UpdateProfile(ctx context.Context, id string, profile models.Profile) error {
	return r.update(id, func(row *accountRow) {
		row.FirstName = profile.FirstName
		row.LastName = profile.LastName
	})
}

func (r *AccountRepository) byEmail(email string) (*models.Account, error) {
	for _, row := range r.s.accounts {
		if row.Email == email {
			return row.model(), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *AccountRepository) update(id string, fn func(row *accountRow)) error {
	defer r.s.lock(r.inTx)()

	row, ok := r.s.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(&row)
	row.UpdatedAt = time.Now().UTC()
	r.s.accounts[id] = row
	return nil
}
