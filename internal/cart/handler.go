package cart

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sorpresa-shop/backend/internal/api"
	"github.com/sorpresa-shop/backend/internal/recommend"
)

type Handler struct {
	repo          *Repository
	recommender   *recommend.Client
	logger        *slog.Logger
	includeDetail bool
}

func NewHandler(repo *Repository, recommender *recommend.Client, logger *slog.Logger, includeDetail bool) *Handler {
	return &Handler{
		repo:          repo,
		recommender:   recommender,
		logger:        logger,
		includeDetail: includeDetail,
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "quantity must be a positive integer")
		return
	}

	updated, err := h.repo.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		h.logger.Error("failed to add item to cart", "error", err, "user_id", userID, "product_id", req.ProductID)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	var productName string
	for _, item := range updated.Items {
		if item.ProductID == req.ProductID {
			productName = item.ProductName
			break
		}
	}

	recommended := h.recommender.ForProduct(r.Context(), productName)

	h.logger.Info("item added to cart", "user_id", userID, "product_id", req.ProductID, "quantity", req.Quantity)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"cart":        updated,
		"recommended": recommended,
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r.Context())

	c, err := h.repo.GetByUserID(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get cart", "error", err, "user_id", userID)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	if c == nil {
		api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
			"message": "user has no active cart",
			"cart":    nil,
		})
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{"cart": c})
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r.Context())
	productID := r.PathValue("productId")
	if productID == "" {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "missing product id")
		return
	}

	if err := h.repo.RemoveItem(r.Context(), userID, productID); err != nil {
		h.logger.Error("failed to remove cart item", "error", err, "user_id", userID, "product_id", productID)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	h.logger.Info("item removed from cart", "user_id", userID, "product_id", productID)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "item removed from cart"})
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleSetQuantity(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r.Context())
	productID := r.PathValue("productId")
	if productID == "" {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "missing product id")
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Quantity < 1 {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "quantity must be a positive integer")
		return
	}

	if err := h.repo.SetItemQuantity(r.Context(), userID, productID, req.Quantity); err != nil {
		h.logger.Error("failed to update cart quantity", "error", err, "user_id", userID, "product_id", productID)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	h.logger.Info("cart quantity updated", "user_id", userID, "product_id", productID, "quantity", req.Quantity)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "quantity updated"})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID := api.UserID(r.Context())

	if err := h.repo.Clear(r.Context(), userID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "user_id", userID)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	h.logger.Info("cart cleared", "user_id", userID)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]string{"message": "cart cleared"})
}
