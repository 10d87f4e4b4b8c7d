package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrTotalMismatch     = errors.New("total does not match server-computed amount")
	ErrInvalidAddress    = errors.New("address does not exist or does not belong to the user")
	ErrEmptyCart         = errors.New("cart is empty or was not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// InsufficientStockError reports a failed stock check along with how many
// units are actually available, so the client can adjust the request.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available, %d requested", e.ProductID, e.Available, e.Requested)
}

// ValidationError marks malformed or missing client input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PaymentError wraps a failed or unparseable payment-gateway exchange. These
// are retryable from the client's point of view; the payment was not taken.
type PaymentError struct {
	GatewayOrderID string
	Err            error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment gateway error (order %s): %v", e.GatewayOrderID, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// ReconciliationError marks the one failure mode that must never be silent:
// the gateway captured funds but the local persistence of the order failed.
// It carries everything an operator needs to reconcile the payment by hand.
type ReconciliationError struct {
	GatewayOrderID string
	CaptureID      string
	UserID         string
	CapturedAmount float64
	Err            error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("payment captured but order persistence failed (gateway order %s, user %s, amount %.2f): %v",
		e.GatewayOrderID, e.UserID, e.CapturedAmount, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
