package store

import (
	"github.com/google/uuid"

	"bolso/internal/core"
)

// NewID returns a fresh record id.
func NewID() string { return uuid.NewString() }

// WithID returns tx with an id assigned when it has none.
func WithID(tx core.Transaction) core.Transaction {
	switch t := tx.(type) {
	case core.Expense:
		if t.ID == "" {
			t.ID = NewID()
		}
		return t
	case core.Income:
		if t.ID == "" {
			t.ID = NewID()
		}
		return t
	}
	return tx
}
