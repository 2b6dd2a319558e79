package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Relayn/warehouse-bot/internal/core/domain"
)

// MemoryLedger is a map-backed ledger for tests and local runs. A
// single mutex serializes mutations; that is coarser than the per-row
// locking of the MySQL ledger but preserves the same atomicity
// guarantees.
type MemoryLedger struct {
	mu       sync.RWMutex
	byID     map[string]domain.Product
	idByName map[string]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		byID:     make(map[string]domain.Product),
		idByName: make(map[string]string),
	}
}

func (m *MemoryLedger) CreateOrIncrement(ctx context.Context, name string, quantity int) (domain.Product, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.idByName[name]; ok {
		p := m.byID[id]
		p.Quantity += quantity
		m.byID[id] = p
		return p, false, nil
	}

	p := domain.Product{
		ID:        uuid.NewString(),
		Name:      name,
		Quantity:  quantity,
		CreatedAt: time.Now().UTC(),
	}
	m.byID[p.ID] = p
	m.idByName[name] = p.ID
	return p, true, nil
}

func (m *MemoryLedger) GetByName(ctx context.Context, name string) (domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.idByName[name]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryLedger) ListAll(ctx context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	products := make([]domain.Product, 0, len(m.byID))
	for _, p := range m.byID {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *MemoryLedger) AdjustQuantity(ctx context.Context, id string, delta int) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if p.Quantity+delta < 0 {
		return domain.Product{}, domain.ErrInsufficientStock
	}
	p.Quantity += delta
	m.byID[id] = p
	return p, nil
}
