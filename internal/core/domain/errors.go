package domain

import "errors"

var (
	// ErrProductNotFound means the referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock means the mutation would drive quantity below zero.
	// The ledger state is unchanged when this is returned.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict means a transient create race could not be resolved
	// within the retry bound.
	ErrConflict = errors.New("concurrent update conflict")
)
