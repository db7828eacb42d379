package catalog

import "iter"

// Store holds the authoritative product set. Implementations must be safe for
// concurrent use without external locking.
type Store interface {
	// FindAll is lazy and can be ranged over any number of times.
	FindAll() iter.Seq[Product]
	FindByID(id string) (Product, bool)
	// Save inserts or replaces by ID and returns the stored value.
	Save(p Product) Product
	// DeleteByID is a no-op for unknown ids.
	DeleteByID(id string)
	Len() int
}

// SeedProducts is the demo catalog loaded at startup unless seeding is off.
func SeedProducts() []Product {
	return []Product{
		{ID: "1", Name: "Laptop", Price: 1299.99},
		{ID: "2", Name: "Smartphone", Price: 799.99},
		{ID: "3", Name: "Headphones", Price: 199.99},
		{ID: "4", Name: "Keyboard", Price: 99.99},
		{ID: "5", Name: "Mouse", Price: 49.99},
	}
}
