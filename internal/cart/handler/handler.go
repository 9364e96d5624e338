// Package handler exposes the catalog, the cart and the order history over JSON/HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/shopcart/internal/catalog"
	carterrors "github.com/abgdnv/shopcart/internal/cart/errors"
	"github.com/abgdnv/shopcart/internal/domain"
	"github.com/abgdnv/shopcart/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartService is the part of the cart store the API drives.
type CartService interface {
	CartItems() []domain.Product
	CartTotal() decimal.Decimal
	OrderHistory() []domain.Order
	AddToCart(ctx context.Context, product domain.Product) error
	RemoveFromCart(ctx context.Context, index int) error
	Checkout(ctx context.Context) (domain.Order, error)
	ClearHistory(ctx context.Context) error
}

// ProductFinder looks products up in the catalog.
type ProductFinder interface {
	All() []domain.Product
	FindByID(id uuid.UUID) (domain.Product, error)
}

// CartAPI defines HTTP handlers for the shop endpoints.
type CartAPI interface {
	ListCatalog(w http.ResponseWriter, r *http.Request)
	FindProduct(w http.ResponseWriter, r *http.Request)
	GetCart(w http.ResponseWriter, r *http.Request)
	AddToCart(w http.ResponseWriter, r *http.Request)
	RemoveFromCart(w http.ResponseWriter, r *http.Request)
	Checkout(w http.ResponseWriter, r *http.Request)
	ListOrders(w http.ResponseWriter, r *http.Request)
	ClearOrders(w http.ResponseWriter, r *http.Request)

	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// AddToCartRequest is the body of POST /api/v1/cart.
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// CartResponse is the cart as rendered to clients.
type CartResponse struct {
	Items []domain.Product `json:"items"`
	Total decimal.Decimal  `json:"total"`
}

type api struct {
	cart     CartService
	catalog  ProductFinder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAPI creates a CartAPI backed by the given cart and catalog.
func NewAPI(cart CartService, products ProductFinder, logger *slog.Logger) CartAPI {
	return &api{
		cart:     cart,
		catalog:  products,
		validate: validator.New(),
		logger:   logger.With("component", "api"),
	}
}

func (a *api) ListCatalog(w http.ResponseWriter, r *http.Request) {
	products := a.catalog.All()
	a.logger.DebugContext(r.Context(), "Listing catalog", "count", len(products))
	web.RespondJSON(w, a.logger, http.StatusOK, products)
}

func (a *api) FindProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, a.logger)
	if !ok {
		return
	}
	product, err := a.catalog.FindByID(id)
	if err != nil {
		a.respondLookupError(w, r, id, err)
		return
	}
	web.RespondJSON(w, a.logger, http.StatusOK, product)
}

func (a *api) GetCart(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, a.logger, http.StatusOK, a.cartResponse())
}

// AddToCart adds the catalog product named in the body to the cart.
func (a *api) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, a.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !a.validateRequest(w, r, req) {
		return
	}
	id := uuid.MustParse(req.ProductID)
	product, err := a.catalog.FindByID(id)
	if err != nil {
		a.respondLookupError(w, r, id, err)
		return
	}

	if err := a.cart.AddToCart(r.Context(), product); err != nil {
		if !a.persistOnly(r, err) {
			a.logger.ErrorContext(r.Context(), "Error adding product to cart", "ID", id, "error", err)
			web.RespondError(w, a.logger, http.StatusInternalServerError, "Failed to add product to cart")
			return
		}
	}
	web.RespondJSON(w, a.logger, http.StatusCreated, a.cartResponse())
}

// RemoveFromCart removes the cart line at the {index} path parameter.
func (a *api) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	index, ok := web.ParsePathGte(r, w, a.logger, "index", 0)
	if !ok {
		return
	}
	if err := a.cart.RemoveFromCart(r.Context(), index); err != nil {
		switch {
		case errors.Is(err, carterrors.ErrIndexOutOfRange):
			a.logger.WarnContext(r.Context(), "Cart index out of range", "index", index)
			web.RespondError(w, a.logger, http.StatusNotFound, fmt.Sprintf("No cart item at index %d", index))
			return
		case !a.persistOnly(r, err):
			a.logger.ErrorContext(r.Context(), "Error removing product from cart", "index", index, "error", err)
			web.RespondError(w, a.logger, http.StatusInternalServerError, "Failed to remove product from cart")
			return
		}
	}
	web.RespondJSON(w, a.logger, http.StatusOK, a.cartResponse())
}

// Checkout turns the cart into an order.
func (a *api) Checkout(w http.ResponseWriter, r *http.Request) {
	order, err := a.cart.Checkout(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, carterrors.ErrEmptyCart):
			web.RespondError(w, a.logger, http.StatusConflict, "Cart is empty")
			return
		case !a.persistOnly(r, err):
			a.logger.ErrorContext(r.Context(), "Error during checkout", "error", err)
			web.RespondError(w, a.logger, http.StatusInternalServerError, "Failed to check out")
			return
		}
	}
	web.RespondJSON(w, a.logger, http.StatusCreated, order)
}

func (a *api) ListOrders(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, a.logger, http.StatusOK, a.cart.OrderHistory())
}

func (a *api) ClearOrders(w http.ResponseWriter, r *http.Request) {
	if err := a.cart.ClearHistory(r.Context()); err != nil && !a.persistOnly(r, err) {
		a.logger.ErrorContext(r.Context(), "Error clearing order history", "error", err)
		web.RespondError(w, a.logger, http.StatusInternalServerError, "Failed to clear order history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck is a simple health check endpoint.
func (a *api) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *api) cartResponse() CartResponse {
	return CartResponse{Items: a.cart.CartItems(), Total: a.cart.CartTotal()}
}

// persistOnly reports whether err is only a persistence failure.
// The in-memory state already holds the change, so the request still succeeds.
func (a *api) persistOnly(r *http.Request, err error) bool {
	if !errors.Is(err, carterrors.ErrPersist) {
		return false
	}
	a.logger.WarnContext(r.Context(), "State changed but was not persisted", "error", err)
	return true
}

func (a *api) respondLookupError(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	if errors.Is(err, catalog.ErrProductNotFound) {
		a.logger.WarnContext(r.Context(), "Product not found", "ID", id)
		web.RespondError(w, a.logger, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", id))
		return
	}
	a.logger.ErrorContext(r.Context(), "Error retrieving product", "ID", id, "error", err)
	web.RespondError(w, a.logger, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve product with ID %s", id))
}

func (a *api) validateRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	err := a.validate.Struct(req)
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errorResponse := make(map[string]string)
		for _, fieldErr := range validationErrors {
			errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
		}
		a.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
		web.RespondJSON(w, a.logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
		return false
	}
	a.logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
	web.RespondError(w, a.logger, http.StatusBadRequest, "Invalid request body")
	return false
}
