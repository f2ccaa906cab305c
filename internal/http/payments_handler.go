package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mirkankacan/Otomar-sub000/internal/checkout"
	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

type PaymentAPI interface {
	Initialize(ctx context.Context, form *domain.CheckoutForm, cartKey domain.CartKey) (*checkout.InitializeResult, error)
	HandleCallback(ctx context.Context, fields map[string]string, clientIP string) (*checkout.CallbackResult, error)
}

type PaymentReader interface {
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListPayments(ctx context.Context, limit int) ([]*domain.Payment, error)
}

type PaymentsHandler struct {
	payments PaymentAPI
	reader   PaymentReader
	timeout  time.Duration
}

func NewPaymentsHandler(payments PaymentAPI, reader PaymentReader, timeout time.Duration) *PaymentsHandler {
	return &PaymentsHandler{payments: payments, reader: reader, timeout: timeout}
}

// InitializeCheckout creates the pending order and returns the signed 3-D
// Secure redirect the browser should post to the bank.
func (h *PaymentsHandler) InitializeCheckout(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.payments.Initialize(ctx, &form, key)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// BankCallback receives the form-encoded callback the bank relays through the
// cardholder's browser. The response is the checkout outcome, never the raw
// bank payload.
func (h *PaymentsHandler) BankCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return
	}

	fields := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		fields[k] = r.PostForm.Get(k)
	}

	result, err := h.payments.HandleCallback(ctx, fields, clientIP(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *PaymentsHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "payment id must be a UUID")
		return
	}

	payment, err := h.reader.GetPaymentByID(ctx, id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

func (h *PaymentsHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	payments, err := h.reader.ListPayments(ctx, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payments)
}
