// Package catalog provides the fixed list of purchasable products.
package catalog

import (
	"errors"

	"github.com/abgdnv/shopcart/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// Catalog is an immutable, ordered list of products.
type Catalog struct {
	products []domain.Product
	byID     map[uuid.UUID]int
}

// New builds a catalog from products, keeping their order.
func New(products ...domain.Product) *Catalog {
	c := &Catalog{
		products: make([]domain.Product, len(products)),
		byID:     make(map[uuid.UUID]int, len(products)),
	}
	copy(c.products, products)
	for i, p := range c.products {
		c.byID[p.ID] = i
	}
	return c
}

// Default returns the three products offered by the shop.
// IDs are generated on each call.
func Default() *Catalog {
	return New(
		mustProduct("Wireless Headphones", "99.99", "headphones"),
		mustProduct("Smart Watch", "199.99", "smartwatch"),
		mustProduct("Portable Speaker", "49.99", "speaker"),
	)
}

func mustProduct(name, price, image string) domain.Product {
	p, err := domain.NewProduct(name, decimal.RequireFromString(price), image)
	if err != nil {
		panic(err)
	}
	return p
}

// All returns the products in definition order. The slice is a copy.
func (c *Catalog) All() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// FindByID returns the product with the given ID or ErrProductNotFound.
func (c *Catalog) FindByID(id uuid.UUID) (domain.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return c.products[i], nil
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}
