package domain

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrInvalidQuantity          = errors.New("quantity must be positive")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrEmptyCart                = errors.New("cart is empty, nothing to checkout")
	ErrForbidden                = errors.New("caller is not allowed to use this order type")
	ErrInvalidSignature         = errors.New("callback hash does not match")
	ErrThreeDSecureNotValidated = errors.New("3-D Secure verification was not completed")
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
)
