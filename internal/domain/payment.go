package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment records a finalized bank outcome. Rows are linked by order code, not
// order id, because the bank callback only carries the code. A row is written
// once per finalized attempt and never mutated.
type Payment struct {
	ID            uuid.UUID     `json:"id"`
	OrderCode     string        `json:"order_code"`
	Amount        float64       `json:"amount"`
	MaskedPan     string        `json:"masked_pan,omitempty"`
	CardBrand     string        `json:"card_brand,omitempty"`
	CardIssuer    string        `json:"card_issuer,omitempty"`
	AuthCode      string        `json:"auth_code,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	HostRefNum    string        `json:"host_ref_num,omitempty"`
	ReturnCode    string        `json:"return_code,omitempty"`
	ResponseText  string        `json:"response_text,omitempty"`
	ErrCode       string        `json:"err_code,omitempty"`
	ErrMessage    string        `json:"err_message,omitempty"`
	Status        PaymentStatus `json:"status"`
	ClientIP      string        `json:"client_ip,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
