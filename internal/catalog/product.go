package catalog

import (
	"errors"
	"strings"

	"CatalogFeed/internal/feed"
)

var (
	ErrNameRequired  = errors.New("product name cannot be empty")
	ErrNegativePrice = errors.New("product price cannot be negative")
)

type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ChangeEvent is what subscribers of the live feed receive.
type ChangeEvent = feed.Event[Product]

// Validate checks the fields a caller controls. It does not look at ID.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if p.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}
