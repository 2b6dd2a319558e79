package port

import (
	"context"

	"github.com/Relayn/warehouse-bot/internal/core/domain"
)

type Ledger interface {
	// CreateOrIncrement creates a product with the given name and quantity,
	// or atomically adds quantity to the existing product with that name.
	// The returned bool is true when a new product was created. A create
	// race with a concurrent caller is retried internally; domain.ErrConflict
	// is returned only when the retry bound is exhausted.
	CreateOrIncrement(ctx context.Context, name string, quantity int) (domain.Product, bool, error)

	// GetByName looks up a product by exact, case-sensitive name.
	// Returns domain.ErrProductNotFound if absent.
	GetByName(ctx context.Context, name string) (domain.Product, error)

	// ListAll returns every product ordered by name ascending.
	ListAll(ctx context.Context) ([]domain.Product, error)

	// AdjustQuantity applies delta (which may be negative) to the product's
	// quantity as one atomic read-modify-write. Returns
	// domain.ErrInsufficientStock if the result would be negative and
	// domain.ErrProductNotFound if id does not exist; stock is unchanged
	// in both cases.
	AdjustQuantity(ctx context.Context, id string, delta int) (domain.Product, error)
}
