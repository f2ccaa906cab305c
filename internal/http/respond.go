package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondDomainError maps the error taxonomy onto HTTP statuses. Raw gateway
// error text never reaches the client; it lives on the Payment row.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive")
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", "not enough stock for the requested quantity")
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", "not allowed for this account")
	case errors.Is(err, domain.ErrInvalidSignature):
		respondError(w, http.StatusBadRequest, "invalid_signature", "callback could not be verified")
	case errors.Is(err, domain.ErrThreeDSecureNotValidated):
		respondError(w, http.StatusBadRequest, "three_d_secure_failed", "card verification was not completed")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		respondError(w, http.StatusBadGateway, "gateway_unavailable", "payment could not be completed")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
