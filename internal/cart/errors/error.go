// Package errors provides custom error types for cart-related operations.
package errors

import "errors"

var ErrIndexOutOfRange = errors.New("cart index out of range")
var ErrEmptyCart = errors.New("cart is empty")

var ErrPersist = errors.New("failed to persist state")

var ErrSlotNotFound = errors.New("slot not found")
var ErrReadSlot = errors.New("failed to read slot")
var ErrWriteSlot = errors.New("failed to write slot")
var ErrDeleteSlot = errors.New("failed to delete slot")
