package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"

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
	products, err := h.repo.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, products)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	if product == nil {
		api.WriteMessage(h.logger, w, http.StatusNotFound, "product not found")
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, product)
}

type createProductRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Category    string   `json:"category"`
	Discount    int      `json:"discount"`
	Images      []string `json:"images"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !api.IsAdmin(r.Context()) {
		api.WriteDomainError(h.logger, w, domain.ErrForbidden, h.includeDetail)
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Price < 0 || req.Stock < 0 || req.Discount < 0 || req.Discount > 100 {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "invalid product fields")
		return
	}

	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Discount:    req.Discount,
		Images:      req.Images,
	}

	if err := h.repo.Create(r.Context(), product); err != nil {
		h.logger.Error("failed to create product", "error", err)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "name", product.Name)
	api.WriteJSON(h.logger, w, http.StatusCreated, product)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !api.IsAdmin(r.Context()) {
		api.WriteDomainError(h.logger, w, domain.ErrForbidden, h.includeDetail)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		api.WriteMessage(h.logger, w, http.StatusBadRequest, "missing product id")
		return
	}

	softDeleted, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete product", "error", err, "product_id", id)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	h.logger.Info("product deleted", "product_id", id, "soft_deleted", softDeleted)
	api.WriteJSON(h.logger, w, http.StatusOK, map[string]any{
		"message":  "product deleted",
		"archived": softDeleted,
	})
}
