// Package domain holds the value types shared by the catalog, the cart and the order history.
package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNegativePrice = errors.New("price must not be negative")

// Product is an immutable purchasable item.
type Product struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// NewProduct creates a product with a freshly generated ID.
func NewProduct(name string, price decimal.Decimal, image string) (Product, error) {
	if price.IsNegative() {
		return Product{}, fmt.Errorf("product %q: %w", name, ErrNegativePrice)
	}
	return Product{
		ID:    uuid.New(),
		Name:  name,
		Price: price,
		Image: image,
	}, nil
}

// Equal reports whether two products are the same item. Prices are compared by value,
// so 10 and 10.00 are equal.
func (p Product) Equal(other Product) bool {
	return p.ID == other.ID &&
		p.Name == other.Name &&
		p.Image == other.Image &&
		p.Price.Equal(other.Price)
}

// Total returns the exact sum of the prices, zero for an empty slice.
func Total(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}
