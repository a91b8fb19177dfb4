package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/orders/domain"
)

type errorResponse struct {
	Error     string `json:"error"`
	Available *int   `json:"available,omitempty"`
}

// writeDomainError maps service errors onto status codes. Infrastructure
// failures are logged and reported with a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var stockErr *inventory.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		available := stockErr.Available
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     fmt.Sprintf("Only %d available in stock!", available),
			Available: &available,
		})
	case errors.Is(err, inventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient stock")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, inventory.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrProductInUse):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, inventory.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, domain.ErrPersistence.Error())
	}
}
