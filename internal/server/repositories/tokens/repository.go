package tokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/server/models"
)

// Repository is the token store. Values are unique across all records;
// inserting a duplicate yields common.ErrTokenCollision.
type Repository interface {
	Insert(ctx context.Context, rec *models.TokenRecord) error
	FindByValue(ctx context.Context, value string) (*models.TokenRecord, error)
	FindAllByOwner(ctx context.Context, accountID string) ([]*models.TokenRecord, error)
	Delete(ctx context.Context, id string) error
	DeleteByValue(ctx context.Context, value string) (bool, error)
	// DeleteCollectable removes the owner's flagged or past-expiry records.
	DeleteCollectable(ctx context.Context, accountID string, now time.Time) (int64, error)
	MarkExpired(ctx context.Context, id string) error
	RevokeAllByOwner(ctx context.Context, accountID string, kind models.TokenKind) (int64, error)
}
