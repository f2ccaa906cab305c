package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

// NewRepositoryWithDB wraps an existing connection, used by tests.
func NewRepositoryWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "checkout_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// BeginTx opens the unit of work shared by the payment insert and the order
// status update. The caller owns commit/rollback.
func (r *Repository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// DB exposes the underlying handle so the catalog lookup can share the pool.
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) InsertOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	billing, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}
	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	query := `INSERT INTO orders (id, code, buyer_id, email, billing_address, shipping_address,
	                              company_name, tax_office, tax_number, subtotal, shipping_amount,
	                              total, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.Code,
		order.BuyerID,
		order.Email,
		billing,
		shipping,
		order.CompanyName,
		order.TaxOffice,
		order.TaxNumber,
		order.Subtotal,
		order.ShippingAmount,
		order.Total,
		order.Status)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, product_code, product_name, unit_price, quantity)
	              VALUES ($1, $2, $3, $4, $5, $6)`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, itemQuery,
			order.ID,
			item.ProductID,
			item.ProductCode,
			item.ProductName,
			item.UnitPrice,
			item.Quantity,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOrder(ctx, "o.id = $1", id)
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	return r.getOrder(ctx, "o.code = $1", code)
}

func (r *Repository) getOrder(ctx context.Context, where string, arg interface{}) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT o.id, o.code, o.buyer_id, o.email, o.billing_address, o.shipping_address,
	                             o.company_name, o.tax_office, o.tax_number, o.subtotal, o.shipping_amount,
	                             o.total, o.status, o.payment_id, o.created_at, o.updated_at
	                      FROM orders o WHERE %s
	                      ORDER BY o.created_at DESC LIMIT 1`, where)

	var order domain.Order
	var billing, shipping []byte
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&order.ID,
		&order.Code,
		&order.BuyerID,
		&order.Email,
		&billing,
		&shipping,
		&order.CompanyName,
		&order.TaxOffice,
		&order.TaxNumber,
		&order.Subtotal,
		&order.ShippingAmount,
		&order.Total,
		&order.Status,
		&order.PaymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if err := json.Unmarshal(billing, &order.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	if order.PaymentID != nil {
		payment, errPay := r.GetPaymentByID(ctx, *order.PaymentID)
		if errPay != nil && !errors.Is(errPay, domain.ErrNotFound) {
			return nil, errPay
		}
		order.Payment = payment
	}

	return &order, nil
}

func (r *Repository) loadItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `SELECT product_id, product_code, product_name, unit_price, quantity
	          FROM order_items WHERE order_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ProductID,
			&item.ProductCode,
			&item.ProductName,
			&item.UnitPrice,
			&item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	query := `SELECT o.id FROM orders o WHERE o.buyer_id = $1 ORDER BY o.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("query orders by buyer: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	orders := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		order, errGet := r.GetByID(ctx, id)
		if errGet != nil {
			return nil, errGet
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *Repository) InsertPayment(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	query := `INSERT INTO payments (id, order_code, amount, masked_pan, card_brand, card_issuer,
	                                auth_code, transaction_id, host_ref_num, return_code, response_text,
	                                err_code, err_message, status, client_ip, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())`

	_, err := tx.ExecContext(ctx, query,
		p.ID,
		p.OrderCode,
		p.Amount,
		p.MaskedPan,
		p.CardBrand,
		p.CardIssuer,
		p.AuthCode,
		p.TransactionID,
		p.HostRefNum,
		p.ReturnCode,
		p.ResponseText,
		p.ErrCode,
		p.ErrMessage,
		p.Status,
		p.ClientIP)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// FinalizeOutcome moves a waiting order to its terminal status and attaches
// the payment reference. It must share the transaction with InsertPayment so
// neither row is ever visible without the other.
func (r *Repository) FinalizeOutcome(ctx context.Context, tx *sql.Tx, code string, paymentID uuid.UUID, success bool) error {
	status := domain.OrderStatusPaymentFailed
	if success {
		status = domain.OrderStatusPaid
	}

	query := `UPDATE orders SET status = $1, payment_id = $2, updated_at = NOW()
	          WHERE code = $3 AND status = $4`

	res, err := tx.ExecContext(ctx, query, status, paymentID, code, domain.OrderStatusWaitingForPayment)
	if err != nil {
		return fmt.Errorf("finalize order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize order rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) GetPaymentByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := paymentSelect + ` WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanPayment(row)
}

// GetPaymentByOrderCode returns the earliest payment for the code; that row is
// the authoritative outcome when a duplicate callback is short-circuited.
func (r *Repository) GetPaymentByOrderCode(ctx context.Context, code string) (*domain.Payment, error) {
	query := paymentSelect + ` WHERE order_code = $1 ORDER BY created_at ASC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query, code)
	return scanPayment(row)
}

func (r *Repository) ListPayments(ctx context.Context, limit int) ([]*domain.Payment, error) {
	query := paymentSelect + ` ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, errScan := scanPayment(rows)
		if errScan != nil {
			return nil, errScan
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return payments, nil
}

const paymentSelect = `SELECT id, order_code, amount, masked_pan, card_brand, card_issuer,
	       auth_code, transaction_id, host_ref_num, return_code, response_text,
	       err_code, err_message, status, client_ip, created_at
	FROM payments`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.OrderCode,
		&p.Amount,
		&p.MaskedPan,
		&p.CardBrand,
		&p.CardIssuer,
		&p.AuthCode,
		&p.TransactionID,
		&p.HostRefNum,
		&p.ReturnCode,
		&p.ResponseText,
		&p.ErrCode,
		&p.ErrMessage,
		&p.Status,
		&p.ClientIP,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
