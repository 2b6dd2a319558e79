package domain

import "time"

// Product is a snapshot of one warehouse position. Values are returned
// by ledger operations and never mutated in place; every change goes
// through the ledger.
type Product struct {
	ID        string
	Name      string
	Quantity  int
	CreatedAt time.Time
}
