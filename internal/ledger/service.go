package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

// CartReader is the slice of the cart store the ledger needs: a snapshot to
// materialize from, and a clear for the no-payment client-order path.
type CartReader interface {
	Get(ctx context.Context, key domain.CartKey) (*domain.Cart, error)
	Clear(ctx context.Context, key domain.CartKey) error
}

// Notifier receives confirmation events. Implementations are best-effort.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *domain.Order)
}

// Ledger owns order aggregates. The payment orchestrator only ever touches
// them through FinalizeOutcome.
type Ledger struct {
	repo     *Repository
	carts    CartReader
	notifier Notifier
	log      *slog.Logger
}

func NewLedger(repo *Repository, carts CartReader, notifier Notifier, log *slog.Logger) *Ledger {
	return &Ledger{
		repo:     repo,
		carts:    carts,
		notifier: notifier,
		log:      log,
	}
}

func (l *Ledger) Repo() *Repository {
	return l.repo
}

// CreatePendingOrder freezes the cart snapshot into a WAITING_FOR_PAYMENT
// order. The cart itself is untouched: it is only cleared after a successful
// payment, so an abandoned attempt can be retried from the same cart.
func (l *Ledger) CreatePendingOrder(ctx context.Context, form *domain.CheckoutForm, snapshot *domain.Cart) (*domain.Order, error) {
	if snapshot == nil || snapshot.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	order := l.buildOrder(form, snapshot)
	order.Status = domain.OrderStatusWaitingForPayment

	tx, err := l.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := l.repo.InsertOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	l.log.Info("pending order created", "order_code", order.Code, "total", order.Total)
	return order, nil
}

// CreateClientOrder is the payment-exempt B2B path: no bank involvement, the
// cart is cleared right away and the confirmation goes out synchronously.
func (l *Ledger) CreateClientOrder(ctx context.Context, form *domain.CheckoutForm, cartKey domain.CartKey, paymentExempt bool) (*domain.Order, error) {
	if !paymentExempt {
		return nil, domain.ErrForbidden
	}

	snapshot, err := l.carts.Get(ctx, cartKey)
	if err != nil {
		return nil, err
	}
	if snapshot.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	order := l.buildOrder(form, snapshot)
	order.Status = domain.OrderStatusWaitingForPayment

	tx, err := l.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := l.repo.InsertOrder(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if err := l.carts.Clear(ctx, cartKey); err != nil {
		l.log.Error("failed to clear cart after client order", "order_code", order.Code, "error", err)
	}
	l.notifier.OrderConfirmed(ctx, order)

	l.log.Info("client order created", "order_code", order.Code, "total", order.Total)
	return order, nil
}

func (l *Ledger) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return l.repo.GetByID(ctx, id)
}

func (l *Ledger) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	return l.repo.GetByCode(ctx, code)
}

func (l *Ledger) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	return l.repo.ListByBuyer(ctx, buyerID)
}

// FinalizeAttempt writes the payment row and moves the order to its terminal
// status inside one transaction. The tx handle is threaded through both repo
// calls so a failure in either rolls back the pair: an order is never PAID
// without its payment row, and vice versa.
func (l *Ledger) FinalizeAttempt(ctx context.Context, payment *domain.Payment, success bool) error {
	tx, err := l.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := l.repo.InsertPayment(ctx, tx, payment); err != nil {
		return err
	}
	if err := l.repo.FinalizeOutcome(ctx, tx, payment.OrderCode, payment.ID, success); err != nil {
		return err
	}
	return tx.Commit()
}

func (l *Ledger) PaymentByOrderCode(ctx context.Context, code string) (*domain.Payment, error) {
	return l.repo.GetPaymentByOrderCode(ctx, code)
}

func (l *Ledger) buildOrder(form *domain.CheckoutForm, snapshot *domain.Cart) *domain.Order {
	items := make([]domain.OrderItem, len(snapshot.Lines))
	for i, line := range snapshot.Lines {
		items[i] = domain.OrderItem{
			ProductID:   line.ProductID,
			ProductCode: line.ProductCode,
			ProductName: line.ProductName,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
		}
	}

	now := time.Now()
	return &domain.Order{
		ID:              uuid.New(),
		Code:            newOrderCode(now),
		BuyerID:         form.BuyerID,
		Email:           form.Email,
		BillingAddress:  form.BillingAddress,
		ShippingAddress: form.ShippingAddress,
		CompanyName:     form.CompanyName,
		TaxOffice:       form.TaxOffice,
		TaxNumber:       form.TaxNumber,
		Items:           items,
		Subtotal:        snapshot.Subtotal,
		ShippingAmount:  snapshot.ShippingCost,
		Total:           snapshot.Total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
