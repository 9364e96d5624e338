package service

import (
	"encoding/json"
	"fmt"

	"github.com/abgdnv/shopcart/internal/domain"
)

// Slots hold JSON arrays: the cart as []Product, the history as []Order.

func encodeProducts(products []domain.Product) ([]byte, error) {
	return json.Marshal(products)
}

func encodeOrders(orders []domain.Order) ([]byte, error) {
	return json.Marshal(orders)
}

// decodeProducts rejects payloads that are not a JSON array of valid products.
func decodeProducts(data []byte) ([]domain.Product, error) {
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if products == nil {
		return nil, fmt.Errorf("decode products: not an array")
	}
	for i, p := range products {
		if err := validateProduct(p); err != nil {
			return nil, fmt.Errorf("decode products: item %d: %w", i, err)
		}
	}
	return products, nil
}

// decodeOrders rejects payloads that are not a JSON array of valid orders,
// including orders whose total no longer matches their products.
func decodeOrders(data []byte) ([]domain.Order, error) {
	var orders []domain.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	if orders == nil {
		return nil, fmt.Errorf("decode orders: not an array")
	}
	for i := range orders {
		o := &orders[i]
		if o.Products == nil {
			o.Products = []domain.Product{}
		}
		for j, p := range o.Products {
			if err := validateProduct(p); err != nil {
				return nil, fmt.Errorf("decode orders: order %d item %d: %w", i, j, err)
			}
		}
		if !domain.Total(o.Products).Equal(o.TotalPrice) {
			return nil, fmt.Errorf("decode orders: order %d: total %s does not match products", i, o.TotalPrice)
		}
	}
	return orders, nil
}

func validateProduct(p domain.Product) error {
	if p.Price.IsNegative() {
		return domain.ErrNegativePrice
	}
	return nil
}
