package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

type CartAPI interface {
	Get(ctx context.Context, key domain.CartKey) (*domain.Cart, error)
	AddItem(ctx context.Context, key domain.CartKey, productID int64, quantity int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, key domain.CartKey, productID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, key domain.CartKey, productID int64) (*domain.Cart, error)
	Clear(ctx context.Context, key domain.CartKey) error
	RefreshTTL(ctx context.Context, key domain.CartKey) error
	MergeOnLogin(ctx context.Context, sessionKey, userKey domain.CartKey) error
}

type CartHandler struct {
	carts   CartAPI
	timeout time.Duration
}

func NewCartHandler(carts CartAPI, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

type CartItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *CartHandler) cartKey(w http.ResponseWriter, r *http.Request) (domain.CartKey, bool) {
	key, ok := identityFromContext(r.Context()).CartKey()
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or session identity")
	}
	return key, ok
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.Get(ctx, key)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	var req CartItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	cart, err := h.carts.AddItem(ctx, key, req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	var req CartItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	cart, err := h.carts.UpdateItem(ctx, key, req.ProductID, req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	productIDStr := chi.URLParam(r, "product_id")
	productID, err := strconv.ParseInt(productIDStr, 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	cart, err := h.carts.RemoveItem(ctx, key, productID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	if err := h.carts.Clear(ctx, key); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, ok := h.cartKey(w, r)
	if !ok {
		return
	}

	if err := h.carts.RefreshTTL(ctx, key); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Merge folds the anonymous session cart into the authenticated user cart.
// The login flow calls this exactly once and then drops the session token;
// replaying it with the same token would double the merged quantities.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := identityFromContext(r.Context())
	if id.UserID == "" || id.SessionToken == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "merge requires both a user and a session identity")
		return
	}

	err := h.carts.MergeOnLogin(ctx, domain.SessionCartKey(id.SessionToken), domain.UserCartKey(id.UserID))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	cart, err := h.carts.Get(ctx, domain.UserCartKey(id.UserID))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}
