package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusWaitingForPayment OrderStatus = "WAITING_FOR_PAYMENT"
	OrderStatusPaid              OrderStatus = "PAID"
	OrderStatusPaymentFailed     OrderStatus = "PAYMENT_FAILED"
)

// Terminal reports whether the status admits no further transition.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusPaymentFailed
}

type Address struct {
	FullName string `json:"full_name"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	District string `json:"district,omitempty"`
	ZipCode  string `json:"zip_code,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type OrderItem struct {
	ProductID   int64   `json:"product_id"`
	ProductCode string  `json:"product_code"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
}

// Order is the ledger aggregate. Prices are frozen from the cart at creation
// time; nothing recomputes Subtotal/Total after the row exists.
type Order struct {
	ID              uuid.UUID   `json:"id"`
	Code            string      `json:"code"`
	BuyerID         *string     `json:"buyer_id,omitempty"`
	Email           string      `json:"email"`
	BillingAddress  Address     `json:"billing_address"`
	ShippingAddress Address     `json:"shipping_address"`
	CompanyName     string      `json:"company_name,omitempty"`
	TaxOffice       string      `json:"tax_office,omitempty"`
	TaxNumber       string      `json:"tax_number,omitempty"`
	Items           []OrderItem `json:"items"`
	Subtotal        float64     `json:"subtotal"`
	ShippingAmount  float64     `json:"shipping_amount"`
	Total           float64     `json:"total"`
	Status          OrderStatus `json:"status"`
	PaymentID       *uuid.UUID  `json:"payment_id,omitempty"`
	Payment         *Payment    `json:"payment,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
