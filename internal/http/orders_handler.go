package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

type OrderAPI interface {
	CreateClientOrder(ctx context.Context, form *domain.CheckoutForm, cartKey domain.CartKey, paymentExempt bool) (*domain.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByCode(ctx context.Context, code string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderAPI
	timeout time.Duration
}

func NewOrdersHandler(orders OrderAPI, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: orders, timeout: timeout}
}

// CreateClientOrder is the payment-exempt B2B path. Exemption comes from the
// identity layer, not the request body.
func (h *OrdersHandler) CreateClientOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identityFromContext(r.Context())
	key, ok := id.CartKey()
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or session identity")
		return
	}

	var form domain.CheckoutForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if form.BuyerID == nil && id.UserID != "" {
		userID := id.UserID
		form.BuyerID = &userID
	}

	order, err := h.orders.CreateClientOrder(ctx, &form, key, id.PaymentExempt)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identityFromContext(r.Context())
	if id.UserID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user identity")
		return
	}

	orders, err := h.orders.ListByBuyer(ctx, id.UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GetOrder resolves {ref} as an order id when it parses as a UUID, otherwise
// as an order code (the bank callback's correlation key).
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ref := chi.URLParam(r, "ref")
	if ref == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing order reference")
		return
	}

	var order *domain.Order
	var err error
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		order, err = h.orders.GetByID(ctx, id)
	} else {
		order, err = h.orders.GetByCode(ctx, ref)
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
