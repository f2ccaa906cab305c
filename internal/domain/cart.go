package domain

import (
	"fmt"
	"time"
)

type CartScope string

const (
	CartScopeUser    CartScope = "user"
	CartScopeSession CartScope = "session"
)

// CartKey identifies a cart in the cache. User and session carts live in
// separate key spaces so an anonymous token can never collide with a user id.
type CartKey struct {
	Scope CartScope
	ID    string
}

func UserCartKey(userID string) CartKey {
	return CartKey{Scope: CartScopeUser, ID: userID}
}

func SessionCartKey(token string) CartKey {
	return CartKey{Scope: CartScopeSession, ID: token}
}

func (k CartKey) String() string {
	return fmt.Sprintf("cart:%s:%s", k.Scope, k.ID)
}

type CartLine struct {
	ProductID     int64   `json:"product_id"`
	ProductCode   string  `json:"product_code"`
	ProductName   string  `json:"product_name"`
	UnitPrice     float64 `json:"unit_price"`
	Quantity      int     `json:"quantity"`
	StockSnapshot *int    `json:"stock_snapshot,omitempty"`
}

type Cart struct {
	Lines        []CartLine `json:"lines"`
	ShippingCost float64    `json:"shipping_cost"`
	Subtotal     float64    `json:"subtotal"`
	Total        float64    `json:"total"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Line returns the line for productID, or nil when the cart has none.
func (c *Cart) Line(productID int64) *CartLine {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
