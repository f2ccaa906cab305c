package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mirkankacan/Otomar-sub000/internal/bank"
	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

type CartStore interface {
	Get(ctx context.Context, key domain.CartKey) (*domain.Cart, error)
	Clear(ctx context.Context, key domain.CartKey) error
}

type OrderLedger interface {
	CreatePendingOrder(ctx context.Context, form *domain.CheckoutForm, snapshot *domain.Cart) (*domain.Order, error)
	GetByCode(ctx context.Context, code string) (*domain.Order, error)
	FinalizeAttempt(ctx context.Context, payment *domain.Payment, success bool) error
	PaymentByOrderCode(ctx context.Context, code string) (*domain.Payment, error)
}

type Gateway interface {
	BuildRedirectForm(orderCode string, amount float64) bank.RedirectForm
	ValidateCallback(fields map[string]string) bool
	Charge(ctx context.Context, p bank.ChargeParams) (*bank.ChargeResult, error)
}

type Notifier interface {
	OrderConfirmed(ctx context.Context, order *domain.Order)
	PaymentFailed(ctx context.Context, order *domain.Order, payment *domain.Payment)
}

// Orchestrator drives the checkout state machine: pending order, 3-D Secure
// redirect, callback validation, synchronous bank charge, atomic finalize.
type Orchestrator struct {
	carts       CartStore
	ledger      OrderLedger
	gateway     Gateway
	notifier    Notifier
	bankTimeout time.Duration
	log         *slog.Logger
}

func NewOrchestrator(carts CartStore, ledger OrderLedger, gateway Gateway, notifier Notifier, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		carts:       carts,
		ledger:      ledger,
		gateway:     gateway,
		notifier:    notifier,
		bankTimeout: 30 * time.Second,
		log:         log,
	}
}

// InitializeResult carries everything the client needs to hand the browser to
// the bank.
type InitializeResult struct {
	OrderCode string            `json:"order_code"`
	OrderID   uuid.UUID         `json:"order_id"`
	Total     float64           `json:"total"`
	Redirect  bank.RedirectForm `json:"redirect"`
}

// Initialize materializes a pending order from the current cart snapshot and
// builds the signed 3-D Secure redirect. No Payment record exists yet and the
// cart stays intact until the bank confirms the charge.
func (o *Orchestrator) Initialize(ctx context.Context, form *domain.CheckoutForm, cartKey domain.CartKey) (*InitializeResult, error) {
	snapshot, err := o.carts.Get(ctx, cartKey)
	if err != nil {
		return nil, err
	}
	if snapshot.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	order, err := o.ledger.CreatePendingOrder(ctx, form, snapshot)
	if err != nil {
		return nil, err
	}

	return &InitializeResult{
		OrderCode: order.Code,
		OrderID:   order.ID,
		Total:     order.Total,
		Redirect:  o.gateway.BuildRedirectForm(order.Code, order.Total),
	}, nil
}

// CallbackResult is the outcome surfaced to the HTTP boundary; raw bank error
// text stays on the Payment row for support, never in this struct.
type CallbackResult struct {
	Success   bool               `json:"success"`
	Duplicate bool               `json:"duplicate,omitempty"`
	OrderCode string             `json:"order_code"`
	Status    domain.OrderStatus `json:"status"`
}

// HandleCallback processes the browser-relayed bank callback. It is safe to
// invoke more than once for the same order code: a terminal order short-
// circuits to the recorded outcome before any mutating work, so a retried
// delivery never triggers a second bank call or a second Payment row.
func (o *Orchestrator) HandleCallback(ctx context.Context, fields map[string]string, clientIP string) (*CallbackResult, error) {
	if !bank.MDStatusApproved(fields) {
		return nil, domain.ErrThreeDSecureNotValidated
	}

	if !o.gateway.ValidateCallback(fields) {
		o.log.Error("callback hash validation failed, possible forged callback",
			"order_code", fields[bank.FieldOrderID], "client_ip", clientIP)
		return nil, domain.ErrInvalidSignature
	}

	code := fields[bank.FieldOrderID]
	order, err := o.ledger.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		o.log.Info("duplicate callback short-circuited", "order_code", code, "status", order.Status)
		return &CallbackResult{
			Success:   order.Status == domain.OrderStatusPaid,
			Duplicate: true,
			OrderCode: code,
			Status:    order.Status,
		}, nil
	}

	chargeCtx, cancel := context.WithTimeout(ctx, o.bankTimeout)
	defer cancel()
	result, err := o.gateway.Charge(chargeCtx, bank.ChargeParams{
		OrderCode: code,
		Amount:    order.Total,
		ClientIP:  clientIP,
		MD:        fields[bank.FieldMD],
		XID:       fields[bank.FieldXID],
		CAVV:      fields[bank.FieldCAVV],
		ECI:       fields[bank.FieldECI],
	})
	if err != nil {
		// Timeout or transport failure: no Payment row, the order stays
		// WAITING_FOR_PAYMENT and the user can retry checkout.
		return nil, err
	}

	payment := &domain.Payment{
		ID:            uuid.New(),
		OrderCode:     code,
		Amount:        order.Total,
		MaskedPan:     fields[bank.FieldMaskedPan],
		CardBrand:     fields[bank.FieldCardBrand],
		CardIssuer:    fields[bank.FieldIssuer],
		AuthCode:      result.AuthCode,
		TransactionID: result.TransactionID,
		HostRefNum:    result.HostRefNum,
		ReturnCode:    result.ReturnCode,
		ResponseText:  result.ResponseText,
		ErrCode:       result.ErrCode,
		ErrMessage:    result.ErrMessage,
		Status:        domain.PaymentStatusFailed,
		ClientIP:      clientIP,
		CreatedAt:     time.Now(),
	}
	if result.Approved {
		payment.Status = domain.PaymentStatusCompleted
	}

	if err := o.ledger.FinalizeAttempt(ctx, payment, result.Approved); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Lost the race against another delivery of the same callback.
			return o.shortCircuit(ctx, code)
		}
		o.log.Error("failed to finalize payment outcome", "order_code", code, "error", err)
		return nil, err
	}

	// Past this point the outcome is committed; cart clearing and email are
	// cosmetic and must never undo it.
	status := domain.OrderStatusPaymentFailed
	if result.Approved {
		status = domain.OrderStatusPaid
		o.clearBuyerCart(ctx, order)
		o.notifier.OrderConfirmed(ctx, order)
	} else {
		o.notifier.PaymentFailed(ctx, order, payment)
	}

	return &CallbackResult{
		Success:   result.Approved,
		OrderCode: code,
		Status:    status,
	}, nil
}

func (o *Orchestrator) shortCircuit(ctx context.Context, code string) (*CallbackResult, error) {
	order, err := o.ledger.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{
		Success:   order.Status == domain.OrderStatusPaid,
		Duplicate: true,
		OrderCode: code,
		Status:    order.Status,
	}, nil
}

// clearBuyerCart drops the cart the order was materialized from. Guest carts
// carry no reference the callback could recover, so they are left to expire.
func (o *Orchestrator) clearBuyerCart(ctx context.Context, order *domain.Order) {
	if order.BuyerID == nil {
		return
	}
	key := domain.UserCartKey(*order.BuyerID)
	if err := o.carts.Clear(ctx, key); err != nil {
		o.log.Error("failed to clear cart after payment", "order_code", order.Code, "error", err)
	}
}
