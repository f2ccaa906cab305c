package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirkankacan/Otomar-sub000/internal/checkout"
	"github.com/mirkankacan/Otomar-sub000/internal/domain"
)

type mockCarts struct {
	cart    *domain.Cart
	err     error
	lastKey domain.CartKey

	mergeSession domain.CartKey
	mergeUser    domain.CartKey

	addProductID int64
	addQuantity  int
}

func (m *mockCarts) Get(_ context.Context, key domain.CartKey) (*domain.Cart, error) {
	m.lastKey = key
	return m.cart, m.err
}

func (m *mockCarts) AddItem(_ context.Context, key domain.CartKey, productID int64, quantity int) (*domain.Cart, error) {
	m.lastKey = key
	m.addProductID = productID
	m.addQuantity = quantity
	return m.cart, m.err
}

func (m *mockCarts) UpdateItem(_ context.Context, key domain.CartKey, productID int64, quantity int) (*domain.Cart, error) {
	m.lastKey = key
	return m.cart, m.err
}

func (m *mockCarts) RemoveItem(_ context.Context, key domain.CartKey, productID int64) (*domain.Cart, error) {
	m.lastKey = key
	return m.cart, m.err
}

func (m *mockCarts) Clear(_ context.Context, key domain.CartKey) error {
	m.lastKey = key
	return m.err
}

func (m *mockCarts) RefreshTTL(_ context.Context, key domain.CartKey) error {
	m.lastKey = key
	return m.err
}

func (m *mockCarts) MergeOnLogin(_ context.Context, sessionKey, userKey domain.CartKey) error {
	m.mergeSession = sessionKey
	m.mergeUser = userKey
	return m.err
}

type mockOrders struct {
	order *domain.Order
	list  []*domain.Order
	err   error

	lastForm   *domain.CheckoutForm
	lastExempt bool
	lastID     uuid.UUID
	lastCode   string
	lastBuyer  string
}

func (m *mockOrders) CreateClientOrder(_ context.Context, form *domain.CheckoutForm, _ domain.CartKey, paymentExempt bool) (*domain.Order, error) {
	m.lastForm = form
	m.lastExempt = paymentExempt
	if !paymentExempt {
		return nil, domain.ErrForbidden
	}
	return m.order, m.err
}

func (m *mockOrders) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.lastID = id
	return m.order, m.err
}

func (m *mockOrders) GetByCode(_ context.Context, code string) (*domain.Order, error) {
	m.lastCode = code
	return m.order, m.err
}

func (m *mockOrders) ListByBuyer(_ context.Context, buyerID string) ([]*domain.Order, error) {
	m.lastBuyer = buyerID
	return m.list, m.err
}

type mockPayments struct {
	initResult     *checkout.InitializeResult
	callbackResult *checkout.CallbackResult
	err            error

	lastForm   *domain.CheckoutForm
	lastKey    domain.CartKey
	lastFields map[string]string
	lastIP     string
}

func (m *mockPayments) Initialize(_ context.Context, form *domain.CheckoutForm, cartKey domain.CartKey) (*checkout.InitializeResult, error) {
	m.lastForm = form
	m.lastKey = cartKey
	return m.initResult, m.err
}

func (m *mockPayments) HandleCallback(_ context.Context, fields map[string]string, clientIP string) (*checkout.CallbackResult, error) {
	m.lastFields = fields
	m.lastIP = clientIP
	return m.callbackResult, m.err
}

type mockPaymentReader struct {
	payment *domain.Payment
	list    []*domain.Payment
	err     error

	lastLimit int
}

func (m *mockPaymentReader) GetPaymentByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	return m.payment, m.err
}

func (m *mockPaymentReader) ListPayments(_ context.Context, limit int) ([]*domain.Payment, error) {
	m.lastLimit = limit
	return m.list, m.err
}

type testEnv struct {
	carts    *mockCarts
	orders   *mockOrders
	payments *mockPayments
	reader   *mockPaymentReader
	server   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		carts:    &mockCarts{cart: &domain.Cart{}},
		orders:   &mockOrders{},
		payments: &mockPayments{},
		reader:   &mockPaymentReader{},
	}
	router := NewRouter(env.carts, env.orders, env.payments, env.reader, 5*time.Second)
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, headers map[string]string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func userHeaders(userID string) map[string]string {
	return map[string]string{"X-User-ID": userID}
}

func TestGetCart_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/cart", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetCart_UserIdentityWinsOverSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/cart", map[string]string{
		"X-User-ID":       "u1",
		"X-Session-Token": "s1",
	}, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cart:user:u1", env.carts.lastKey.String())
}

func TestGetCart_SessionFallback(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/cart", map[string]string{"X-Session-Token": "s1"}, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cart:session:s1", env.carts.lastKey.String())
}

func TestAddItem(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/cart/items", userHeaders("u1"),
		`{"product_id": 7, "quantity": 2}`)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int64(7), env.carts.addProductID)
	assert.Equal(t, 2, env.carts.addQuantity)
}

func TestAddItem_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/cart/items", userHeaders("u1"), `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/cart/items", userHeaders("u1"), `{"product_id": 0, "quantity": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddItem_DomainErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	env.carts.err = domain.ErrInsufficientStock
	resp := env.do(t, http.MethodPost, "/cart/items", userHeaders("u1"), `{"product_id": 7, "quantity": 99}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	env.carts.err = domain.ErrNotFound
	resp = env.do(t, http.MethodPost, "/cart/items", userHeaders("u1"), `{"product_id": 7, "quantity": 1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env.carts.err = domain.ErrInvalidQuantity
	resp = env.do(t, http.MethodPost, "/cart/items", userHeaders("u1"), `{"product_id": 7, "quantity": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemoveItem_InvalidProductID(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodDelete, "/cart/items/abc", userHeaders("u1"), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodDelete, "/cart", userHeaders("u1"), "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestMerge_RequiresBothIdentities(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/cart/merge", userHeaders("u1"), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/cart/merge", map[string]string{"X-Session-Token": "s1"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMerge_FoldsSessionIntoUser(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/cart/merge", map[string]string{
		"X-User-ID":       "u1",
		"X-Session-Token": "s1",
	}, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cart:session:s1", env.carts.mergeSession.String())
	assert.Equal(t, "cart:user:u1", env.carts.mergeUser.String())
}

func TestListOrders_RequiresUserIdentity(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/orders", map[string]string{"X-Session-Token": "s1"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/orders", userHeaders("u1"), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", env.orders.lastBuyer)
}

func TestGetOrder_ResolvesUUIDAndCode(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = &domain.Order{ID: uuid.New(), Code: "ORD1"}

	id := uuid.New()
	resp := env.do(t, http.MethodGet, "/orders/"+id.String(), userHeaders("u1"), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, env.orders.lastID)

	resp = env.do(t, http.MethodGet, "/orders/ORD20240101120000ABCD", userHeaders("u1"), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ORD20240101120000ABCD", env.orders.lastCode)
}

func TestGetOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.orders.err = domain.ErrNotFound

	resp := env.do(t, http.MethodGet, "/orders/ORD-MISSING", userHeaders("u1"), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateClientOrder_ExemptionComesFromIdentity(t *testing.T) {
	env := newTestEnv(t)
	env.orders.order = &domain.Order{ID: uuid.New(), Code: "ORD1"}

	// Not exempt: the body cannot grant the exemption.
	resp := env.do(t, http.MethodPost, "/orders/client-order", userHeaders("u1"),
		`{"email": "b@example.com"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, env.orders.lastExempt)

	headers := map[string]string{"X-User-ID": "u1", "X-Payment-Exempt": "true"}
	resp = env.do(t, http.MethodPost, "/orders/client-order", headers, `{"email": "b@example.com"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.orders.lastExempt)

	// BuyerID defaults from the identity header when the body omits it.
	require.NotNil(t, env.orders.lastForm.BuyerID)
	assert.Equal(t, "u1", *env.orders.lastForm.BuyerID)
}

func TestInitializeCheckout(t *testing.T) {
	env := newTestEnv(t)
	env.payments.initResult = &checkout.InitializeResult{OrderCode: "ORD1", Total: 190}

	resp := env.do(t, http.MethodPost, "/checkout", userHeaders("u1"), `{"email": "b@example.com"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result checkout.InitializeResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ORD1", result.OrderCode)
	assert.Equal(t, "cart:user:u1", env.payments.lastKey.String())
}

func TestInitializeCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t)
	env.payments.err = domain.ErrEmptyCart

	resp := env.do(t, http.MethodPost, "/checkout", userHeaders("u1"), `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBankCallback_FormFieldsReachOrchestrator(t *testing.T) {
	env := newTestEnv(t)
	env.payments.callbackResult = &checkout.CallbackResult{Success: true, OrderCode: "ORD1", Status: domain.OrderStatusPaid}

	form := url.Values{}
	form.Set("oid", "ORD1")
	form.Set("mdStatus", "1")
	form.Set("HASH", "abc")

	resp := env.do(t, http.MethodPost, "/payments",
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		form.Encode())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ORD1", env.payments.lastFields["oid"])
	assert.Equal(t, "1", env.payments.lastFields["mdStatus"])
	assert.NotEmpty(t, env.payments.lastIP)

	var result checkout.CallbackResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, domain.OrderStatusPaid, result.Status)
}

func TestBankCallback_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	body := "oid=ORD1"
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	env.payments.err = domain.ErrInvalidSignature
	resp := env.do(t, http.MethodPost, "/payments", headers, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.payments.err = domain.ErrThreeDSecureNotValidated
	resp = env.do(t, http.MethodPost, "/payments", headers, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.payments.err = domain.ErrGatewayUnavailable
	resp = env.do(t, http.MethodPost, "/payments", headers, body)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	env.payments.err = domain.ErrNotFound
	resp = env.do(t, http.MethodPost, "/payments", headers, body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListPayments_LimitValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/payments?limit=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/payments?limit=501", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/payments?limit=10", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, env.reader.lastLimit)

	resp = env.do(t, http.MethodGet, "/payments", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 50, env.reader.lastLimit)
}

func TestGetPayment_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/payments/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
