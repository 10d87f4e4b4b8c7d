package orders

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/sorpresa-shop/backend/internal/api"
	"github.com/sorpresa-shop/backend/internal/domain"
)

type Handler struct {
	repo          *Repository
	logger        *slog.Logger
	includeDetail bool
}

func NewHandler(repo *Repository, logger *slog.Logger, includeDetail bool) *Handler {
	return &Handler{
		repo:          repo,
		logger:        logger,
		includeDetail: includeDetail,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r.Context())

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "limit", 10)

	result, err := h.repo.ListForUser(r.Context(), userID, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", userID)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, result)
}

type orderDetailResponse struct {
	*domain.Order
	TotalFromItems float64 `json:"total_from_items"`
	Discrepancy    float64 `json:"discrepancy"`
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r.Context())
	id := r.PathValue("id")
	if id == "" {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), userID, id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "order_id", id, "user_id", userID)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	if order == nil {
		api.WriteMessage(h.logger, w, http.StatusNotFound, "order not found or does not belong to the user")
		return
	}

	var totalFromItems float64
	for _, item := range order.Items {
		totalFromItems += item.Subtotal
	}
	totalFromItems = math.Round(totalFromItems*100) / 100

	// A non-zero discrepancy flags a data-integrity problem for auditing; it
	// is reported, not rejected.
	resp := orderDetailResponse{
		Order:          order,
		TotalFromItems: totalFromItems,
		Discrepancy:    math.Round((order.Total-totalFromItems)*100) / 100,
	}

	api.WriteJSON(h.logger, w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status  domain.OrderStatus `json:"status"`
	Comment string             `json:"comment"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !api.IsAdmin(r.Context()) {
		api.WriteDomainError(h.logger, w, domain.ErrForbidden, h.includeDetail)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	change, err := h.repo.SetStatus(r.Context(), id, req.Status, req.Comment, api.UserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to update order status", "error", err, "order_id", id, "status", req.Status)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	h.logger.Info("order status updated", "order_id", id,
		"previous_status", change.PreviousStatus, "new_status", change.NewStatus, "changed_by", change.ChangedBy)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"message": "status updated",
		"change":  change,
	})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if !api.IsAdmin(r.Context()) {
		api.WriteDomainError(h.logger, w, domain.ErrForbidden, h.includeDetail)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "missing order id")
		return
	}

	history, err := h.repo.StatusHistory(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order history", "error", err, "order_id", id)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, history)
}

func (h *Handler) HandleListByStatus(w http.ResponseWriter, r *http.Request) {
	if !api.IsAdmin(r.Context()) {
		api.WriteDomainError(h.logger, w, domain.ErrForbidden, h.includeDetail)
		return
	}

	status := domain.OrderStatus(r.URL.Query().Get("status"))
	if !domain.ValidStatus(status) {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "invalid order status")
		return
	}

	list, err := h.repo.ListByStatus(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list orders by status", "error", err, "status", status)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, list)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
