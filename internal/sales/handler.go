package sales

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sorpresa-shop/backend/internal/api"
	"github.com/sorpresa-shop/backend/internal/domain"
)

// Handler exposes the sales ledger read-side for reporting tooling.
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
	if !api.IsAdmin(r.Context()) {
		api.WriteDomainError(h.logger, w, domain.ErrForbidden, h.includeDetail)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var (
		list []domain.Sale
		err  error
	)
	if productID := r.URL.Query().Get("product_id"); productID != "" {
		list, err = h.repo.ListByProduct(r.Context(), productID, limit)
	} else {
		list, err = h.repo.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("failed to list sales", "error", err)
		api.WriteDomainError(h.logger, w, err, h.includeDetail)
		return
	}

	api.WriteJSON(h.logger, w, http.StatusOK, list)
}
