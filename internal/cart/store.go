package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mirkankacan/Otomar-sub000/internal/catalog"
	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

// ShippingPolicy derives the shipping cost at read time. It is never stored
// with the cart, so a threshold change shows up on the next read.
type ShippingPolicy struct {
	FreeThreshold float64
	Cost          float64
}

func (p ShippingPolicy) CostFor(subtotal float64) float64 {
	if subtotal >= p.FreeThreshold {
		return 0
	}
	return p.Cost
}

// Store keeps carts in Redis as whole JSON payloads. Every mutation is a
// read-modify-write of the full line list, so concurrent writers race with
// last-write-wins semantics at the cache layer.
type Store struct {
	client  *redis.Client
	catalog catalog.Lookup
	policy  ShippingPolicy
	ttl     time.Duration
	log     *slog.Logger
}

func NewStore(client *redis.Client, lookup catalog.Lookup, policy ShippingPolicy, ttl time.Duration, log *slog.Logger) *Store {
	return &Store{
		client:  client,
		catalog: lookup,
		policy:  policy,
		ttl:     ttl,
		log:     log,
	}
}

func (s *Store) Get(ctx context.Context, key domain.CartKey) (*domain.Cart, error) {
	cart, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	s.recompute(cart)
	return cart, nil
}

func (s *Store) AddItem(ctx context.Context, key domain.CartKey, productID int64, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	if line := cart.Line(productID); line != nil {
		wanted := line.Quantity + quantity
		if product.Stock != nil && *product.Stock < wanted {
			return nil, domain.ErrInsufficientStock
		}
		line.Quantity = wanted
		line.UnitPrice = product.Price
		line.StockSnapshot = product.Stock
	} else {
		if product.Stock != nil && *product.Stock < quantity {
			return nil, domain.ErrInsufficientStock
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID:     product.ID,
			ProductCode:   product.Code,
			ProductName:   product.Name,
			UnitPrice:     product.Price,
			Quantity:      quantity,
			StockSnapshot: product.Stock,
		})
	}

	s.recompute(cart)
	if err := s.save(ctx, key, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Store) UpdateItem(ctx context.Context, key domain.CartKey, productID int64, quantity int) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	cart, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	line := cart.Line(productID)
	if line == nil {
		return nil, domain.ErrNotFound
	}

	if quantity == 0 {
		removeLine(cart, productID)
	} else {
		product, errLookup := s.catalog.Product(ctx, productID)
		if errLookup != nil {
			return nil, errLookup
		}
		if product.Stock != nil && *product.Stock < quantity {
			return nil, domain.ErrInsufficientStock
		}
		line.Quantity = quantity
		line.StockSnapshot = product.Stock
	}

	s.recompute(cart)
	if err := s.save(ctx, key, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Store) RemoveItem(ctx context.Context, key domain.CartKey, productID int64) (*domain.Cart, error) {
	cart, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	if cart.Line(productID) == nil {
		return nil, domain.ErrNotFound
	}
	removeLine(cart, productID)

	s.recompute(cart)
	if err := s.save(ctx, key, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Store) Clear(ctx context.Context, key domain.CartKey) error {
	if err := s.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// RefreshTTL re-persists the unchanged payload to extend expiry. A cart that
// already expired is left alone; the caller gets no error for it.
func (s *Store) RefreshTTL(ctx context.Context, key domain.CartKey) error {
	cart, found, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return s.save(ctx, key, cart)
}

// MergeOnLogin folds the anonymous session cart into the user cart, summing
// quantities per product, then deletes the session key. The caller must
// invalidate the session token right after; a second merge would double-add.
func (s *Store) MergeOnLogin(ctx context.Context, sessionKey, userKey domain.CartKey) error {
	sessionCart, found, err := s.load(ctx, sessionKey)
	if err != nil {
		return err
	}
	if !found || sessionCart.IsEmpty() {
		return nil
	}

	userCart, _, err := s.load(ctx, userKey)
	if err != nil {
		return err
	}

	for _, sl := range sessionCart.Lines {
		if line := userCart.Line(sl.ProductID); line != nil {
			line.Quantity += sl.Quantity
		} else {
			userCart.Lines = append(userCart.Lines, sl)
		}
	}

	s.recompute(userCart)
	if err := s.save(ctx, userKey, userCart); err != nil {
		return err
	}
	s.log.Info("session cart merged", "session", sessionKey.ID, "user", userKey.ID, "lines", len(sessionCart.Lines))
	return s.Clear(ctx, sessionKey)
}

func removeLine(cart *domain.Cart, productID int64) {
	for i, line := range cart.Lines {
		if line.ProductID == productID {
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
			return
		}
	}
}

func (s *Store) load(ctx context.Context, key domain.CartKey) (*domain.Cart, bool, error) {
	data, err := s.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return &domain.Cart{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, false, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, true, nil
}

func (s *Store) save(ctx context.Context, key domain.CartKey, cart *domain.Cart) error {
	cart.UpdatedAt = time.Now()
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := s.client.Set(ctx, key.String(), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *Store) recompute(cart *domain.Cart) {
	var subtotal float64
	for _, line := range cart.Lines {
		subtotal += line.UnitPrice * float64(line.Quantity)
	}
	cart.Subtotal = subtotal
	if cart.IsEmpty() {
		cart.ShippingCost = 0
	} else {
		cart.ShippingCost = s.policy.CostFor(subtotal)
	}
	cart.Total = cart.Subtotal + cart.ShippingCost
}
