package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/Relayn/warehouse-bot/internal/core/domain"
)

// createRetryAttempts bounds the retry loop for the create race in
// CreateOrIncrement.
const createRetryAttempts = 3

const mysqlErrDuplicateEntry = 1062

type MySQLLedger struct {
	db *sql.DB
}

func NewMySQLLedger(db *sql.DB) *MySQLLedger {
	return &MySQLLedger{db: db}
}

// CreateOrIncrement first tries to bump an existing row by name; if no
// row matches it inserts a new one. Losing the insert race to a
// concurrent creator surfaces as a duplicate-key error, in which case
// the loop retries and applies the delta as an increment instead.
func (m *MySQLLedger) CreateOrIncrement(ctx context.Context, name string, quantity int) (domain.Product, bool, error) {
	for attempt := 0; attempt < createRetryAttempts; attempt++ {
		product, created, err := m.tryCreateOrIncrement(ctx, name, quantity)
		if err == nil {
			return product, created, nil
		}

		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			continue
		}
		return domain.Product{}, false, err
	}
	return domain.Product{}, false, domain.ErrConflict
}

// tryCreateOrIncrement runs one attempt with single-statement writes:
// the guarded UPDATE is atomic on its own, and the unique name index
// turns a lost create race into a duplicate-key error for the caller's
// retry loop.
func (m *MySQLLedger) tryCreateOrIncrement(ctx context.Context, name string, quantity int) (domain.Product, bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products SET quantity = quantity + ?
		WHERE name = ?`,
		quantity, name,
	)
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("increment product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 1 {
		product, err := m.GetByName(ctx, name)
		if err != nil {
			return domain.Product{}, false, fmt.Errorf("reload product: %w", err)
		}
		return product, false, nil
	}

	product := domain.Product{
		ID:        uuid.NewString(),
		Name:      name,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO products (id, name, quantity, created_at)
		VALUES (?, ?, ?, ?)`,
		product.ID, product.Name, product.Quantity, product.CreatedAt,
	)
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("insert product: %w", err)
	}
	return product, true, nil
}

func (m *MySQLLedger) GetByName(ctx context.Context, name string) (domain.Product, error) {
	product, err := scanProduct(m.db.QueryRowContext(ctx, `
		SELECT id, name, quantity, created_at
		FROM products WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return product, nil
}

func (m *MySQLLedger) ListAll(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, quantity, created_at
		FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// AdjustQuantity applies delta behind a non-negativity guard in the
// WHERE clause, so two concurrent decrements can never both pass the
// check against a stale read.
func (m *MySQLLedger) AdjustQuantity(ctx context.Context, id string, delta int) (domain.Product, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE products SET quantity = quantity + ?
		WHERE id = ? AND quantity + ? >= 0`,
		delta, id, delta,
	)
	if err != nil {
		return domain.Product{}, fmt.Errorf("adjust quantity: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		if err != nil {
			return domain.Product{}, fmt.Errorf("check product: %w", err)
		}
		return domain.Product{}, domain.ErrInsufficientStock
	}

	product, err := scanProduct(tx.QueryRowContext(ctx, `
		SELECT id, name, quantity, created_at
		FROM products WHERE id = ?`, id))
	if err != nil {
		return domain.Product{}, fmt.Errorf("reload product: %w", err)
	}
	return product, tx.Commit()
}

func scanProduct(row *sql.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Quantity, &p.CreatedAt)
	return p, err
}
