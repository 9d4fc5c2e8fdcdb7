package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/clock"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/carts"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/customers"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var (
	testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msk     = time.FixedZone("MSK", 3*3600)
)

type api struct {
	handler http.Handler
	orders  domain.OrderRepository
}

func newAPI(t *testing.T) *api {
	t.Helper()

	store := memory.NewStore()
	clk := clock.NewManual(testNow)
	ranks := domain.DefaultRankTable()

	catalogRepo := memory.NewCatalogRepository(store)
	customerRepo := memory.NewCustomerRepository(store)
	orderRepo := memory.NewOrderRepository(store)
	outbox := memory.NewOutboxRepository(store)

	customerSvc := customers.NewService(store, customerRepo, outbox, ranks, clk, nil)
	cartSvc := carts.NewService(store, memory.NewCartRepository(store), catalogRepo, customerRepo, clk, nil)
	orderSvc := orders.NewService(orders.Repositories{
		Tx:        store,
		Catalog:   catalogRepo,
		Customers: customerRepo,
		Orders:    orderRepo,
		Timeline:  memory.NewTimelineRepository(store),
		Outbox:    outbox,
	}, customerSvc, ranks, orders.WithClock(clk), orders.WithCartClearer(cartSvc))

	logger, _ := test.NewNullLogger()
	h := NewHandler(Services{
		Orders:      orderSvc,
		Carts:       cartSvc,
		Customers:   customerSvc,
		Catalog:     catalog.NewService(store, catalogRepo, clk, nil),
		Idempotency: memory.NewIdempotencyRepository(store),
	}, WithLogger(logger.WithField("component", "test")), WithLocation(msk))

	return &api{handler: h.Routes(), orders: orderRepo}
}

type call struct {
	method  string
	path    string
	body    string
	as      int64
	admin   bool
	headers map[string]string
}

func (a *api) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.as > 0 {
		req.Header.Set(headerCustomerID, strconv.FormatInt(c.as, 10))
	}
	if c.admin {
		req.Header.Set(headerCustomerRole, roleAdmin)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

const adminID = 1_000

func (a *api) registerCustomer(t *testing.T, email string) int64 {
	t.Helper()
	w := a.do(t, call{method: http.MethodPost, path: "/admin/customers", as: adminID, admin: true,
		body: `{"email":"` + email + `","name":"Ivan","phone":"+7 900","address":"Moscow"}`})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[customerResponse](t, w).ID
}

func (a *api) createProduct(t *testing.T, name, price string) int64 {
	t.Helper()
	w := a.do(t, call{method: http.MethodPost, path: "/admin/products", as: adminID, admin: true,
		body: `{"name":"` + name + `","price":"` + price + `"}`})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[productResponse](t, w).ID
}

func orderBody(items ...lineItemRequest) string {
	payload, _ := json.Marshal(createOrderRequest{
		CustomerName:    "Ivan",
		CustomerPhone:   "+7 900 000-00-00",
		CustomerAddress: "Moscow, Tverskaya 1",
		PaymentMethod:   "card",
		Items:           items,
	})
	return string(payload)
}

func itemFor(productID int64, qty int32) lineItemRequest {
	return lineItemRequest{ProductID: productID, Quantity: qty}
}

func (a *api) placeOrder(t *testing.T, customerID int64, items ...lineItemRequest) orderResponse {
	t.Helper()
	w := a.do(t, call{method: http.MethodPost, path: "/orders", as: customerID, body: orderBody(items...)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[orderResponse](t, w)
}

func (a *api) setStatus(t *testing.T, orderID int64, status string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, call{method: http.MethodPut, path: "/admin/orders/" + strconv.FormatInt(orderID, 10) + "/status",
		as: adminID, admin: true, body: `{"status":"` + status + `"}`})
}

func TestOrderFlow(t *testing.T) {
	a := newAPI(t)
	customerID := a.registerCustomer(t, "ivan@example.com")
	book := a.createProduct(t, "Book", "100.00")
	pen := a.createProduct(t, "Pen", "2.50")

	for _, body := range []string{
		`{"product_id":` + strconv.FormatInt(book, 10) + `,"quantity":1}`,
		`{"product_id":` + strconv.FormatInt(pen, 10) + `,"quantity":3}`,
	} {
		w := a.do(t, call{method: http.MethodPost, path: "/cart/items", as: customerID, body: body})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	order := a.placeOrder(t, customerID, itemFor(book, 1))
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, "iron", order.RankAtOrder)
	assert.Equal(t, "100.00", order.Subtotal)
	assert.Equal(t, "0.00", order.Discount)
	assert.Equal(t, "100.00", order.Final)
	assert.Equal(t, "2025-06-01 15:00:00", order.CreatedAt)
	assert.Nil(t, order.CompletedAt)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "100.00", order.Items[0].UnitPrice)

	cart := decode[[]cartItemResponse](t, a.do(t, call{method: http.MethodGet, path: "/cart", as: customerID}))
	require.Len(t, cart, 1)
	assert.Equal(t, pen, cart[0].ProductID)

	for _, status := range []string{"confirmed", "shipping", "fulfilled"} {
		w := a.setStatus(t, order.ID, status)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	got := decode[orderResponse](t, a.do(t, call{method: http.MethodGet, path: "/orders/" + strconv.FormatInt(order.ID, 10), as: customerID}))
	assert.Equal(t, "fulfilled", got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, "2025-06-01 15:00:00", *got.CompletedAt)

	me := decode[customerResponse](t, a.do(t, call{method: http.MethodGet, path: "/me", as: customerID}))
	assert.Equal(t, "100.00", me.LifetimeSpend)
	assert.Equal(t, "iron", me.Rank)

	timeline := decode[[]timelineEventResponse](t, a.do(t, call{method: http.MethodGet,
		path: "/admin/orders/" + strconv.FormatInt(order.ID, 10) + "/timeline", as: adminID, admin: true}))
	assert.Len(t, timeline, 4)

	w := a.setStatus(t, order.ID, "fulfilled")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, codeIllegalTransition, decode[errorResponse](t, w).Code)

	revenue := decode[revenueResponse](t, a.do(t, call{method: http.MethodGet,
		path: "/admin/statistics/revenue?from=2025-06-01&to=2025-06-01", as: adminID, admin: true}))
	assert.Equal(t, int64(1), revenue.Orders)
	assert.Equal(t, "100.00", revenue.Final)
	assert.Equal(t, "2025-06-01 00:00:00", revenue.From)
	assert.Equal(t, "2025-06-02 00:00:00", revenue.To)
}

func TestOrderErrors(t *testing.T) {
	a := newAPI(t)
	customerID := a.registerCustomer(t, "ivan@example.com")
	book := a.createProduct(t, "Book", "100.00")

	confirmed := a.placeOrder(t, customerID, itemFor(book, 1))
	require.Equal(t, http.StatusOK, a.setStatus(t, confirmed.ID, "confirmed").Code)
	pending := a.placeOrder(t, customerID, itemFor(book, 1))

	confirmedPath := "/orders/" + strconv.FormatInt(confirmed.ID, 10)
	pendingPath := "/orders/" + strconv.FormatInt(pending.ID, 10)

	tests := []struct {
		name   string
		call   call
		status int
		code   string
	}{
		{"empty cart", call{method: http.MethodPost, path: "/orders", as: customerID, body: orderBody()}, http.StatusBadRequest, codeEmptyCart},
		{"zero quantity", call{method: http.MethodPost, path: "/orders", as: customerID, body: orderBody(itemFor(book, 0))}, http.StatusBadRequest, codeInvalidQuantity},
		{"unknown field", call{method: http.MethodPost, path: "/orders", as: customerID, body: `{"items":[],"coupon":"X"}`}, http.StatusBadRequest, codeInvalidRequestBody},
		{"missing products", call{method: http.MethodPost, path: "/orders", as: customerID, body: orderBody(itemFor(404, 1))}, http.StatusNotFound, codeProductsNotFound},
		{"delete confirmed", call{method: http.MethodDelete, path: confirmedPath, as: customerID}, http.StatusLocked, codeOrderLocked},
		{"edit confirmed", call{method: http.MethodPatch, path: confirmedPath, as: customerID, body: `{"customer_name":"Petr"}`}, http.StatusLocked, codeOrderLocked},
		{"edit status field", call{method: http.MethodPatch, path: pendingPath, as: customerID, body: `{"status":"fulfilled"}`}, http.StatusBadRequest, codeFieldNotAllowed},
		{"empty edit", call{method: http.MethodPatch, path: pendingPath, as: customerID, body: `{}`}, http.StatusBadRequest, codeNothingToUpdate},
		{"foreign order", call{method: http.MethodGet, path: pendingPath, as: customerID + 1}, http.StatusNotFound, codeOrderNotFound},
		{"unknown order", call{method: http.MethodGet, path: "/admin/orders/999", as: adminID, admin: true}, http.StatusNotFound, codeOrderNotFound},
		{"bad filter", call{method: http.MethodGet, path: "/admin/orders?status=lost", as: adminID, admin: true}, http.StatusBadRequest, codeInvalidStatus},
		{"bad period", call{method: http.MethodGet, path: "/admin/statistics/revenue?from=2025-06-02&to=2025-06-01", as: adminID, admin: true}, http.StatusBadRequest, codeInvalidPeriod},
		{"duplicate email", call{method: http.MethodPost, path: "/admin/customers", as: adminID, admin: true, body: `{"email":"IVAN@example.com"}`}, http.StatusConflict, codeCustomerExists},
		{"wrong method", call{method: http.MethodPut, path: "/orders", as: customerID}, http.StatusMethodNotAllowed, codeMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, tt.call)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[errorResponse](t, w).Code)
		})
	}

	t.Run("pending to shipping", func(t *testing.T) {
		w := a.setStatus(t, pending.ID, "shipping")
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, codeIllegalTransition, decode[errorResponse](t, w).Code)
	})

	t.Run("missing ids are listed", func(t *testing.T) {
		w := a.do(t, call{method: http.MethodPost, path: "/orders", as: customerID, body: orderBody(itemFor(405, 1), itemFor(book, 1), itemFor(404, 2))})
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, []int64{404, 405}, decode[errorResponse](t, w).ProductIDs)
	})
}

func TestUpdateAndDeletePendingOrder(t *testing.T) {
	a := newAPI(t)
	customerID := a.registerCustomer(t, "ivan@example.com")
	book := a.createProduct(t, "Book", "10.00")
	order := a.placeOrder(t, customerID, itemFor(book, 2))
	path := "/orders/" + strconv.FormatInt(order.ID, 10)

	w := a.do(t, call{method: http.MethodPatch, path: path, as: customerID, body: `{"customer_address":"Kazan"}`})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[orderResponse](t, w)
	assert.Equal(t, "Kazan", updated.CustomerAddress)
	assert.Equal(t, "Ivan", updated.CustomerName)

	w = a.do(t, call{method: http.MethodDelete, path: path, as: customerID})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, call{method: http.MethodGet, path: path, as: customerID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	list := decode[[]orderResponse](t, a.do(t, call{method: http.MethodGet, path: "/orders", as: customerID}))
	assert.Empty(t, list)
}

func TestUpdateOrderRejectsEveryDisallowedField(t *testing.T) {
	a := newAPI(t)
	customerID := a.registerCustomer(t, "ivan@example.com")
	book := a.createProduct(t, "Book", "10.00")
	order := a.placeOrder(t, customerID, itemFor(book, 1))
	path := "/orders/" + strconv.FormatInt(order.ID, 10)

	for i := 0; i < 3; i++ {
		w := a.do(t, call{method: http.MethodPatch, path: path, as: customerID,
			body: `{"status":"fulfilled","customer_address":"Kazan","final_amount":"0.00","customer_id":5}`})
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		body := decode[errorResponse](t, w)
		assert.Equal(t, codeFieldNotAllowed, body.Code)
		assert.Equal(t, []string{"customer_id", "final_amount", "status"}, body.Fields)
	}

	stored := decode[orderResponse](t, a.do(t, call{method: http.MethodGet, path: path, as: customerID}))
	assert.Equal(t, order.CustomerAddress, stored.CustomerAddress, "rejected patch changes nothing")
}

func TestUpdateProfile(t *testing.T) {
	a := newAPI(t)
	customerID := a.registerCustomer(t, "ivan@example.com")

	w := a.do(t, call{method: http.MethodPatch, path: "/me", as: customerID, body: `{"name":" Anna ","address":"Kazan"}`})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[customerResponse](t, w)
	assert.Equal(t, "Anna", updated.Name)
	assert.Equal(t, "Kazan", updated.Address)
	assert.Equal(t, "+7 900", updated.Phone)
	assert.Equal(t, "ivan@example.com", updated.Email)

	profile := decode[customerResponse](t, a.do(t, call{method: http.MethodGet, path: "/me", as: customerID}))
	assert.Equal(t, updated, profile)

	w = a.do(t, call{method: http.MethodPatch, path: "/me", as: customerID, body: `{"rank":"gold","email":"x@example.com","name":"Eve"}`})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorResponse](t, w)
	assert.Equal(t, codeFieldNotAllowed, body.Code)
	assert.Equal(t, []string{"email", "rank"}, body.Fields)

	w = a.do(t, call{method: http.MethodPatch, path: "/me", as: customerID, body: `{}`})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeNothingToUpdate, decode[errorResponse](t, w).Code)

	w = a.do(t, call{method: http.MethodPatch, path: "/me", as: customerID, body: `{"phone":7}`})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeInvalidRequestBody, decode[errorResponse](t, w).Code)

	w = a.do(t, call{method: http.MethodPatch, path: "/me", as: 9999, body: `{"name":"Ghost"}`})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInactiveCustomerCannotOrderOrFillCart(t *testing.T) {
	a := newAPI(t)
	customerID := a.registerCustomer(t, "ivan@example.com")
	book := a.createProduct(t, "Book", "10.00")

	w := a.do(t, call{method: http.MethodPatch, path: "/admin/customers/" + strconv.FormatInt(customerID, 10) + "/status",
		as: adminID, admin: true, body: `{"active":false}`})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, call{method: http.MethodPost, path: "/orders", as: customerID, body: orderBody(itemFor(book, 1))})
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, codeCustomerInactive, decode[errorResponse](t, w).Code)

	w = a.do(t, call{method: http.MethodPost, path: "/cart/items", as: customerID, body: `{"product_id":` + strconv.FormatInt(book, 10) + `,"quantity":1}`})
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, codeCustomerInactive, decode[errorResponse](t, w).Code)

	list, err := a.orders.ListByCustomer(context.Background(), customerID, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIdentityHeaders(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, call{method: http.MethodGet, path: "/orders"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, codeUnauthenticated, decode[errorResponse](t, w).Code)

	w = a.do(t, call{method: http.MethodGet, path: "/orders", headers: map[string]string{headerCustomerID: "abc"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, call{method: http.MethodGet, path: "/admin/orders", as: 7})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, codeForbidden, decode[errorResponse](t, w).Code)

	w = a.do(t, call{method: http.MethodGet, path: "/nowhere", as: 7})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, codeNotFound, decode[errorResponse](t, w).Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	w = a.do(t, call{method: http.MethodGet, path: "/orders", as: 7, headers: map[string]string{headerRequestID: "req-42"}})
	assert.Equal(t, "req-42", w.Header().Get(headerRequestID))
}

func TestIdempotentOrderCreation(t *testing.T) {
	a := newAPI(t)
	customerID := a.registerCustomer(t, "ivan@example.com")
	book := a.createProduct(t, "Book", "100.00")
	body := orderBody(itemFor(book, 1))
	key := map[string]string{headerIdempotencyKey: "order-1"}

	first := a.do(t, call{method: http.MethodPost, path: "/orders", as: customerID, body: body, headers: key})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := a.do(t, call{method: http.MethodPost, path: "/orders", as: customerID, body: body, headers: key})
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(headerReplayed))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	conflict := a.do(t, call{method: http.MethodPost, path: "/orders", as: customerID, body: orderBody(itemFor(book, 2)), headers: key})
	require.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, codeIdempotencyConflict, decode[errorResponse](t, conflict).Code)

	list, err := a.orders.ListByCustomer(context.Background(), customerID, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	failed := a.do(t, call{method: http.MethodPost, path: "/orders", as: customerID, body: orderBody(), headers: map[string]string{headerIdempotencyKey: "order-2"}})
	require.Equal(t, http.StatusBadRequest, failed.Code)
	failedReplay := a.do(t, call{method: http.MethodPost, path: "/orders", as: customerID, body: orderBody(), headers: map[string]string{headerIdempotencyKey: "order-2"}})
	assert.Equal(t, http.StatusBadRequest, failedReplay.Code)
	assert.Equal(t, "true", failedReplay.Header().Get(headerReplayed))
}

func TestIdempotencyKeyIsScopedPerCustomer(t *testing.T) {
	a := newAPI(t)
	first := a.registerCustomer(t, "first@example.com")
	second := a.registerCustomer(t, "second@example.com")
	book := a.createProduct(t, "Book", "100.00")
	body := orderBody(itemFor(book, 1))
	key := map[string]string{headerIdempotencyKey: "same"}

	require.Equal(t, http.StatusCreated, a.do(t, call{method: http.MethodPost, path: "/orders", as: first, body: body, headers: key}).Code)
	w := a.do(t, call{method: http.MethodPost, path: "/orders", as: second, body: body, headers: key})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get(headerReplayed))
}

func TestCatalogAndCustomerAdmin(t *testing.T) {
	a := newAPI(t)
	customerID := a.registerCustomer(t, "ivan@example.com")
	book := a.createProduct(t, "Book", "100.00")
	bookPath := "/admin/products/" + strconv.FormatInt(book, 10)

	w := a.do(t, call{method: http.MethodPut, path: bookPath + "/price", as: adminID, admin: true, body: `{"price":"120.5"}`})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "120.50", decode[productResponse](t, w).Price)

	w = a.do(t, call{method: http.MethodPut, path: bookPath + "/price", as: adminID, admin: true, body: `{"price":"abc"}`})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, call{method: http.MethodPut, path: bookPath + "/stock", as: adminID, admin: true, body: `{"in_stock":false}`})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[productResponse](t, w).InStock)

	w = a.do(t, call{method: http.MethodPost, path: "/cart/items", as: customerID, body: `{"product_id":` + strconv.FormatInt(book, 10) + `,"quantity":1}`})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, codeProductOutOfStock, decode[errorResponse](t, w).Code)

	w = a.do(t, call{method: http.MethodPatch, path: "/admin/customers/" + strconv.FormatInt(customerID, 10) + "/status", as: adminID, admin: true, body: `{"active":false}`})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[customerResponse](t, w).Active)

	w = a.do(t, call{method: http.MethodPatch, path: "/admin/customers/" + strconv.FormatInt(customerID, 10) + "/status", as: adminID, admin: true, body: `{}`})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartItemRoutes(t *testing.T) {
	a := newAPI(t)
	customerID := a.registerCustomer(t, "ivan@example.com")
	book := a.createProduct(t, "Book", "100.00")
	itemPath := "/cart/items/" + strconv.FormatInt(book, 10)

	w := a.do(t, call{method: http.MethodPut, path: itemPath, as: customerID, body: `{"quantity":2}`})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, codeCartItemNotFound, decode[errorResponse](t, w).Code)

	for i := 0; i < 2; i++ {
		w = a.do(t, call{method: http.MethodPost, path: "/cart/items", as: customerID, body: `{"product_id":` + strconv.FormatInt(book, 10) + `,"quantity":2}`})
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, int32(4), decode[cartItemResponse](t, w).Quantity)

	require.Equal(t, http.StatusNoContent, a.do(t, call{method: http.MethodPut, path: itemPath, as: customerID, body: `{"quantity":1}`}).Code)
	cart := decode[[]cartItemResponse](t, a.do(t, call{method: http.MethodGet, path: "/cart", as: customerID}))
	require.Len(t, cart, 1)
	assert.Equal(t, int32(1), cart[0].Quantity)

	require.Equal(t, http.StatusNoContent, a.do(t, call{method: http.MethodDelete, path: itemPath, as: customerID}).Code)
	cart = decode[[]cartItemResponse](t, a.do(t, call{method: http.MethodGet, path: "/cart", as: customerID}))
	assert.Empty(t, cart)
}

func TestWriteServiceError_HidesInternalDetails(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := httptest.NewRecorder()

	writeServiceError(w, logger.WithField("component", "test"), errors.New("pq: connection reset"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[errorResponse](t, w)
	assert.Equal(t, codeInternalError, body.Code)
	assert.Equal(t, "internal error", body.Error)
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Data["error"].(error).Error(), "connection reset")
}
