package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sorpresa-shop/backend/internal/domain"
)

func WriteJSON(logger *slog.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteMessage(logger *slog.Logger, w http.ResponseWriter, status int, message string) {
	WriteJSON(logger, w, status, map[string]string{"error": message})
}

// WriteDomainError maps the error taxonomy onto HTTP statuses. Reconciliation
// errors get a generic client message but a distinct, context-rich log line so
// an operator can follow up; unclassified errors leak detail only outside
// production.
func WriteDomainError(logger *slog.Logger, w http.ResponseWriter, err error, includeDetail bool) {
	var (
		validationErr *domain.ValidationError
		stockErr      *domain.InsufficientStockError
		paymentErr    *domain.PaymentError
		reconErr      *domain.ReconciliationError
	)

	// Reconciliation is checked first: it can wrap any of the other errors
	// (a failed stock decrement, for instance), and once funds are captured
	// the cause must never downgrade the response.
	switch {
	case errors.As(err, &reconErr):
		logger.Error("payment captured but persistence failed, manual reconciliation required",
			"gateway_order_id", reconErr.GatewayOrderID,
			"capture_id", reconErr.CaptureID,
			"user_id", reconErr.UserID,
			"captured_amount", reconErr.CapturedAmount,
			"error", reconErr.Err,
		)
		WriteJSON(logger, w, http.StatusInternalServerError, map[string]string{
			"error":     "your payment is being processed, contact support with the payment reference",
			"reference": reconErr.GatewayOrderID,
		})
	case errors.As(err, &validationErr):
		WriteMessage(logger, w, http.StatusBadRequest, validationErr.Msg)
	case errors.As(err, &stockErr):
		WriteJSON(logger, w, http.StatusBadRequest, map[string]any{
			"error":           "insufficient stock available",
			"available_stock": stockErr.Available,
		})
	case errors.Is(err, domain.ErrTotalMismatch):
		WriteMessage(logger, w, http.StatusBadRequest, "total does not match the sum of products and shipping")
	case errors.Is(err, domain.ErrInvalidAddress):
		WriteMessage(logger, w, http.StatusBadRequest, "address does not exist or does not belong to the user")
	case errors.Is(err, domain.ErrInvalidTransition):
		WriteMessage(logger, w, http.StatusBadRequest, "invalid order status")
	case errors.Is(err, domain.ErrForbidden):
		WriteMessage(logger, w, http.StatusForbidden, "not authorized")
	case errors.Is(err, domain.ErrEmptyCart):
		WriteMessage(logger, w, http.StatusNotFound, "cart not found or empty")
	case errors.Is(err, domain.ErrNotFound):
		WriteMessage(logger, w, http.StatusNotFound, "not found")
	case errors.As(err, &paymentErr):
		logger.Error("payment gateway error", "gateway_order_id", paymentErr.GatewayOrderID, "error", paymentErr.Err)
		WriteMessage(logger, w, http.StatusBadGateway, "payment gateway error, please retry")
	default:
		logger.Error("unhandled error", "error", err)
		if includeDetail {
			WriteMessage(logger, w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteMessage(logger, w, http.StatusInternalServerError, "internal server error")
	}
}
