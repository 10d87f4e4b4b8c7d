package checkout

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sorpresa-shop/backend/internal/api"
)

type Handler struct {
	service       *Service
	logger        *slog.Logger
	includeDetail bool
}

func NewHandler(service *Service, logger *slog.Logger, includeDetail bool) *Handler {
	return &Handler{
		service:       service,
		logger:        logger,
		includeDetail: includeDetail,
	}
}

type createOrderRequest struct {
	Items     []ClientItem `json:"items"`
	Total     float64      `json:"total"`
	AddressID string       `json:"address_id"`
}

func (h *Handler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	gatewayOrderID, err := h.service.CreatePaymentOrder(r.Context(), userID, req.Items, req.Total, req.AddressID)
	if err != nil {
		h.logger.Error("failed to create payment order", "error", err, "user_id", userID)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{
		"order_id":   gatewayOrderID,
		"address_id": req.AddressID,
	})
}

type captureOrderRequest struct {
	OrderID   string `json:"order_id"`
	AddressID string `json:"address_id"`
}

func (h *Handler) HandleCaptureOrder(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r.Context())

	var req captureOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.CaptureOrder(r.Context(), userID, req.OrderID, req.AddressID)
	if err != nil {
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"order_id":   req.OrderID,
		"capture_id": order.CaptureID,
		"pedido_id":  order.ID,
		"total":      order.Total,
		"items":      order.Items,
	})
}
