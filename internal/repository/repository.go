package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/market-client/internal/domain"
)

// SnapshotRepository persists the cart lines of one account.
// Consumers define this interface; the cart store depends on it.
type SnapshotRepository interface {
	Load(ctx context.Context, account string) ([]domain.CartLine, error)
	Save(ctx context.Context, account string, lines []domain.CartLine) error
	Delete(ctx context.Context, account string) error
}

var (
	ErrSnapshotNotFound    = errors.New("cart snapshot not found")
	ErrUnsupportedSnapshot = errors.New("unsupported cart snapshot")
)

// SnapshotVersion is the schema version written by Save.
const SnapshotVersion = 1
