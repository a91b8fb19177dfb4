package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dejobratic/stockledger/internal/catalog"
	"github.com/dejobratic/stockledger/internal/identity"
	"github.com/dejobratic/stockledger/internal/orders/app"
	"github.com/dejobratic/stockledger/internal/orders/app/queries"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	"github.com/dejobratic/stockledger/internal/orders/ports"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

// Handler exposes HTTP endpoints for order and catalog operations. Every route
// expects an identity in the request context.
type Handler struct {
	orders  *app.Service
	catalog *catalog.Service
	logger  *slog.Logger
}

func NewHandler(orders *app.Service, products *catalog.Service, logger *slog.Logger) *Handler {
	return &Handler{orders: orders, catalog: products, logger: logger}
}

// Register binds the handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/orders", h.placeOrder)
	mux.HandleFunc("GET /v1/orders", h.listOrders)
	mux.HandleFunc("GET /v1/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /v1/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /v1/orders/{id}/status", h.updateStatus)

	mux.HandleFunc("POST /v1/products", h.createProduct)
	mux.HandleFunc("GET /v1/products/{id}", h.getProduct)
	mux.HandleFunc("POST /v1/products/{id}/stock", h.adjustStock)
	mux.HandleFunc("DELETE /v1/products/{id}", h.deleteProduct)
}

type orderResponse struct {
	Order   *domain.Order `json:"order"`
	Message string        `json:"message,omitempty"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var payload app.PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	// Keys are scoped to the caller so one user can never replay another's order.
	var idemKey string
	fingerprint := fmt.Sprintf("%d:%d", payload.ProductID, payload.Quantity)
	if key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey)); key != "" {
		idemKey = fmt.Sprintf("%d:%s", caller.UserID, key)
		existing, claimed, err := h.orders.ClaimIdempotencyKey(ctx, idemKey, fingerprint)
		if err != nil {
			writeDomainError(w, r, h.logger, err)
			return
		}
		if !claimed {
			h.replay(w, existing, fingerprint)
			return
		}
	}

	order, err := h.orders.PlaceOrder(ctx, caller, payload)
	if err != nil {
		if idemKey != "" {
			if relErr := h.orders.ReleaseIdempotencyKey(context.WithoutCancel(ctx), idemKey); relErr != nil {
				h.logger.WarnContext(ctx, "failed to release idempotency key", "error", relErr)
			}
		}
		writeDomainError(w, r, h.logger, err)
		return
	}

	item := order.Items[0]
	body, err := json.Marshal(orderResponse{
		Order:   order,
		Message: fmt.Sprintf("Order placed successfully! (%dx %s)", item.Quantity, item.ProductName),
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	if idemKey != "" {
		stored := ports.StoredResponse{
			Fingerprint: fingerprint,
			StatusCode:  http.StatusCreated,
			Body:        body,
			OrderID:     order.ID,
		}
		// The order is committed; a failed save only loses replay protection.
		if err := h.orders.SaveIdempotentResponse(ctx, idemKey, stored); err != nil {
			h.logger.WarnContext(ctx, "failed to store idempotent response", "order_id", order.ID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", fmt.Sprintf("/v1/orders/%d", order.ID))
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

// replay answers a request whose idempotency key is already taken.
func (h *Handler) replay(w http.ResponseWriter, existing *ports.StoredResponse, fingerprint string) {
	switch {
	case !existing.Matches(fingerprint):
		writeError(w, http.StatusUnprocessableEntity, "Idempotency-Key was already used for a different order")
	case existing.InProgress():
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusConflict, "a request with this Idempotency-Key is still being processed")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(headerReplayed, "true")
		w.WriteHeader(existing.StatusCode)
		_, _ = w.Write(existing.Body)
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: order})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	query := queries.ListOrdersQuery{Caller: caller}
	params := r.URL.Query()

	if statusParam := params.Get("status"); statusParam != "" {
		status, err := domain.ParseStatus(statusParam)
		if err != nil {
			writeDomainError(w, r, h.logger, err)
			return
		}
		query.Status = &status
	}

	var err error
	if query.Page, err = intParam(params.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "page must be a number")
		return
	}
	if query.PageSize, err = intParam(params.Get("page_size")); err != nil {
		writeError(w, http.StatusBadRequest, "page_size must be a number")
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), query)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{Order: order, Message: "Order cancelled."})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), caller, id, payload.Status)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{Order: order})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var payload catalog.CreateProductInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), caller, payload)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/products/%d", product.ID))
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var payload struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	product, err := h.catalog.AdjustStock(r.Context(), caller, id, payload.Delta)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), caller, id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (identity.Identity, bool) {
	caller, err := identity.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return identity.Identity{}, false
	}
	return caller, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func intParam(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
