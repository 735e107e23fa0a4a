package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/common"
	"github.com/dmitrijs2005/mindvault/internal/server/models"
)

type tokenRow models.TokenRecord

func (r tokenRow) model() *models.TokenRecord {
	t := models.TokenRecord(r)
	return &t
}

// TokenRepository implements tokens.Repository on a Store.
type TokenRepository struct {
	s    *Store
	inTx bool
}

func (r *TokenRepository) Insert(ctx context.Context, rec *models.TokenRecord) error {
	defer r.s.lock(r.inTx)()

	if r.s.InsertHook != nil {
		if err := r.s.InsertHook(rec.Value); err != nil {
			return err
		}
	}
	if _, ok := r.s.accounts[rec.AccountID]; !ok {
		return common.ErrorNotFound
	}
	for _, row := range r.s.tokens {
		if row.Value == rec.Value {
			return common.ErrTokenCollision
		}
	}
	rec.ID = newID()
	rec.CreatedAt = time.Now().UTC()
	r.s.tokens[rec.ID] = tokenRow(*rec)
	return nil
}

func (r *TokenRepository) FindByValue(ctx context.Context, value string) (*models.TokenRecord, error) {
	defer r.s.lock(r.inTx)()

	for _, row := range r.s.tokens {
		if row.Value == value {
			return row.model(), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *TokenRepository) FindAllByOwner(ctx context.Context, accountID string) ([]*models.TokenRecord, error) {
	defer r.s.lock(r.inTx)()

	var out []*models.TokenRecord
	for _, row := range r.s.tokens {
		if row.AccountID == accountID {
			out = append(out, row.model())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *TokenRepository) Delete(ctx context.Context, id string) error {
	defer r.s.lock(r.inTx)()

	delete(r.s.tokens, id)
	return nil
}

func (r *TokenRepository) DeleteByValue(ctx context.Context, value string) (bool, error) {
	defer r.s.lock(r.inTx)()

	for id, row := range r.s.tokens {
		if row.Value == value {
			delete(r.s.tokens, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *TokenRepository) DeleteCollectable(ctx context.Context, accountID string, now time.Time) (int64, error) {
	defer r.s.lock(r.inTx)()

	var n int64
	for id, row := range r.s.tokens {
		rec := models.TokenRecord(row)
		if row.AccountID == accountID && rec.Collectable(now) {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

func (r *TokenRepository) MarkExpired(ctx context.Context, id string) error {
	defer r.s.lock(r.inTx)()

	row, ok := r.s.tokens[id]
	if !ok {
		return common.ErrorNotFound
	}
	row.Expired = true
	r.s.tokens[id] = row
	return nil
}

func (r *TokenRepository) RevokeAllByOwner(ctx context.Context, accountID string, kind models.TokenKind) (int64, error) {
	defer r.s.lock(r.inTx)()

	var n int64
	for id, row := range r.s.tokens {
		if row.AccountID == accountID && row.Kind == kind && !row.Revoked {
			row.Revoked = true
			r.s.tokens[id] = row
			n++
		}
	}
	return n, nil
}
