package http

import (
	"context"
	"net/http"

	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is what the upstream auth layer resolved for this request. The
// checkout core does not do authentication itself; it trusts these headers
// the way it would trust claims from a verified session.
type Identity struct {
	UserID        string
	SessionToken  string
	PaymentExempt bool
}

// CartKey picks the cart the request operates on: the user cart when
// authenticated, otherwise the anonymous session cart.
func (id Identity) CartKey() (domain.CartKey, bool) {
	if id.UserID != "" {
		return domain.UserCartKey(id.UserID), true
	}
	if id.SessionToken != "" {
		return domain.SessionCartKey(id.SessionToken), true
	}
	return domain.CartKey{}, false
}

// IdentityMiddleware populates the request identity from the gateway headers.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID:        r.Header.Get("X-User-ID"),
			SessionToken:  r.Header.Get("X-Session-Token"),
			PaymentExempt: r.Header.Get("X-Payment-Exempt") == "true",
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}

// clientIP prefers the forwarded address set by the edge proxy.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
