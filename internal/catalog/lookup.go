package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

type Product struct {
	ID    int64
	Code  string
	Name  string
	Price float64
	// Stock is nil when the catalog does not track stock for the product.
	Stock *int
}

// Lookup is the seam the checkout core uses to read product price/stock.
// The wider catalog subsystem (search, filtering, categories) lives elsewhere.
type Lookup interface {
	Product(ctx context.Context, productID int64) (*Product, error)
}

type SQLLookup struct {
	db  *sql.DB
	sfg singleflight.Group // collapses concurrent lookups for the same product
}

func NewSQLLookup(db *sql.DB) *SQLLookup {
	return &SQLLookup{db: db}
}

func (l *SQLLookup) Product(ctx context.Context, productID int64) (*Product, error) {
	v, err, _ := l.sfg.Do(strconv.FormatInt(productID, 10), func() (interface{}, error) {
		query := `SELECT id, code, name, price, stock FROM products WHERE id = $1`

		var p Product
		var stock sql.NullInt64
		err := l.db.QueryRowContext(ctx, query, productID).Scan(
			&p.ID,
			&p.Code,
			&p.Name,
			&p.Price,
			&stock,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("query product by id: %w", err)
		}
		if stock.Valid {
			s := int(stock.Int64)
			p.Stock = &s
		}
		return &p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Product), nil
}
