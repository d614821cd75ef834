package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/security/validation"
)

// orderBook serves /orders from memory.
type orderBook struct {
	mu     sync.Mutex
	orders []models.Order
	nextID int64
}

func (b *orderBook) register(fb *fakeBackend) {
	fb.handle("GET /orders", authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"orders": b.orders})
	}))
	fb.handle("POST /orders", authed(func(w http.ResponseWriter, r *http.Request) {
		var o models.Order
		if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.nextID++
		o.ID = b.nextID
		o.User = "client@fx.tn"
		b.orders = append(b.orders, o)
		writeJSON(w, http.StatusCreated, o)
	}))
	fb.handle("PUT /orders/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
	}))
	fb.handle("DELETE /orders/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestSubmitOrderValidatesBeforePosting(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "client@fx.tn", "User")
	book := &orderBook{}
	book.register(h.backend)
	svc := NewOrderService(h.backend.client, h.auth, 0)

	form := models.OrderForm{TransactionType: "buy", Amount: "", Currency: "eur", ValueDate: "2024-06-28", BankName: "<b>BIAT</b>"}
	_, err := svc.SubmitOrder(context.Background(), ws, form)
	var fields validation.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Contains(t, fields, "amount")
	assert.Zero(t, h.backend.count("POST /orders"))

	form.Amount = "125 000,50"
	created, err := svc.SubmitOrder(context.Background(), ws, form)
	require.NoError(t, err)
	assert.Equal(t, 1, h.backend.count("POST /orders"))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "EUR", created.Currency)
	assert.InDelta(t, 125000.5, created.Amount.Float(), 1e-9)
	require.NotNil(t, created.BankName)
	assert.Equal(t, "BIAT", *created.BankName)

	state := ws.Orders.State()
	require.Len(t, state.Orders, 1)
	assert.Equal(t, models.OrderStatusPending, state.Orders[0].Status)
}

func TestUpdateAndDeleteRequirePending(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "client@fx.tn", "User")
	book := &orderBook{orders: []models.Order{
		{ID: 1, TransactionType: "buy", Amount: 10, Currency: "EUR", ValueDate: "2024-01-02", Status: models.OrderStatusPending},
		{ID: 2, TransactionType: "sell", Amount: 20, Currency: "USD", ValueDate: "2024-01-03", Status: models.OrderStatusExecuted},
	}, nextID: 2}
	book.register(h.backend)
	svc := NewOrderService(h.backend.client, h.auth, 0)
	ctx := context.Background()

	form := models.OrderForm{TransactionType: "sell", Amount: "15", Currency: "EUR", ValueDate: "2024-01-05"}
	updated, err := svc.UpdateOrder(ctx, ws, 1, form)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.ID)
	assert.Equal(t, 1, h.backend.count("PUT /orders/1"))

	_, err = svc.UpdateOrder(ctx, ws, 2, form)
	assert.ErrorIs(t, err, ErrOrderNotPending)
	assert.ErrorIs(t, svc.DeleteOrder(ctx, ws, 2), ErrOrderNotPending)
	assert.ErrorIs(t, svc.DeleteOrder(ctx, ws, 99), ErrOrderNotFound)
	assert.Zero(t, h.backend.count("PUT /orders/2"))
	assert.Zero(t, h.backend.count("DELETE /orders/2"))

	require.NoError(t, svc.DeleteOrder(ctx, ws, 1))
	assert.Equal(t, 1, h.backend.count("DELETE /orders/1"))
}

func TestFetchFailureKeepsPreviousOrders(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "client@fx.tn", "User")
	var fail atomic.Bool
	h.backend.handle("GET /orders", authed(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "database unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, []models.Order{{ID: 7, Status: models.OrderStatusPending}})
	}))
	svc := NewOrderService(h.backend.client, h.auth, 0)

	_, err := svc.FetchOrders(context.Background(), ws)
	require.NoError(t, err)
	fail.Store(true)
	_, err = svc.FetchOrders(context.Background(), ws)
	require.Error(t, err)

	state := ws.Orders.State()
	assert.Equal(t, "database unavailable", state.Error)
	require.Len(t, state.Orders, 1)
	assert.Equal(t, int64(7), state.Orders[0].ID)
}

func TestAdminOrderActions(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "admin@fx.tn", "Admin")
	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	h.backend.handle("GET /admin/api/orders", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Order{{ID: 3, Status: models.OrderStatusExecuted}})
	}))
	h.backend.handle("PUT /admin/api/orders/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}))
	h.backend.handle("POST /admin/run_matching", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "2 pairs matched"})
	}))
	h.backend.handle("GET /admin/matched_orders", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"matched_orders": []models.MatchedOrder{{ID: 1, Currency: "EUR", MatchedAmount: 500}}})
	}))
	h.backend.handle("GET /admin/market_orders", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Order{{ID: 9, Status: models.OrderStatusMarket}})
	}))
	svc := NewOrderService(h.backend.client, h.auth, 0)
	ctx := context.Background()

	err := svc.SetOrderStatus(ctx, ws, 3, "Cancelled")
	assert.ErrorIs(t, err, validation.ErrValidationFailed)

	rate := 3.3125
	require.NoError(t, svc.UpdateAdminOrder(ctx, ws, 3, models.AdminOrderUpdate{Status: models.OrderStatusExecuted, ExecutionRate: &rate}))
	require.NoError(t, svc.SetOrderStatus(ctx, ws, 3, models.OrderStatusMarket))
	mu.Lock()
	require.Len(t, bodies, 2)
	assert.Equal(t, 3.3125, bodies[0]["execution_rate"])
	assert.Equal(t, models.OrderStatusMarket, bodies[1]["status"])
	assert.NotContains(t, bodies[1], "execution_rate")
	mu.Unlock()
	assert.Len(t, ws.Orders.State().AdminOrders, 1)

	msg, err := svc.RunMatching(ctx, ws)
	require.NoError(t, err)
	assert.Equal(t, "2 pairs matched", msg)
	state := ws.Orders.State()
	require.Len(t, state.MatchedOrders, 1)
	assert.Equal(t, "EUR", state.MatchedOrders[0].Currency)
	require.Len(t, state.MarketOrders, 1)
}

func TestUploadOrders(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "client@fx.tn", "User")
	h.backend.handle("POST /upload-orders", authed(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "orders.xlsx", header.Filename)
		writeJSON(w, http.StatusOK, models.UploadResult{Message: "done", Inserted: 4})
	}))
	h.backend.handle("GET /orders", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Order{})
	}))
	svc := NewOrderService(h.backend.client, h.auth, 1<<20)
	ctx := context.Background()

	bad := Upload{Name: "orders.csv", Content: strings.NewReader("a,b,c"), Size: 5}
	_, err := svc.UploadOrders(ctx, ws, bad)
	assert.ErrorIs(t, err, ErrInvalidUpload)
	assert.NotEmpty(t, ws.Orders.State().UploadError)
	assert.Zero(t, h.backend.count("POST /upload-orders"))

	content := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 64)...)
	good := Upload{Name: "orders.xlsx", Content: bytes.NewReader(content), Size: int64(len(content))}
	result, err := svc.UploadOrders(ctx, ws, good)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Inserted)
	state := ws.Orders.State()
	assert.Empty(t, state.UploadError)
	require.NotNil(t, state.UploadResult)
}

func TestPremiumRates(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "admin@fx.tn", "Admin")
	h.backend.handle("GET /admin/api/premium-rate", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.PremiumRate{{ID: 1, Currency: "EUR", MaturityDays: 90, Rate: 1.25}})
	}))
	h.backend.handle("POST /admin/api/premium-rate", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]int{"id": 2})
	}))
	h.backend.handle("DELETE /admin/api/premium-rate/{id}", authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	svc := NewOrderService(h.backend.client, h.auth, 0)
	ctx := context.Background()

	err := svc.CreatePremiumRate(ctx, ws, models.PremiumRate{Currency: "EURO", MaturityDays: 0, Rate: 120})
	var fields validation.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Len(t, fields, 3)
	assert.Zero(t, h.backend.count("POST /admin/api/premium-rate"))

	require.NoError(t, svc.CreatePremiumRate(ctx, ws, models.PremiumRate{Currency: "usd", MaturityDays: 30, Rate: 0.75}))
	require.NoError(t, svc.DeletePremiumRate(ctx, ws, 1))
	assert.Equal(t, 2, h.backend.count("GET /admin/api/premium-rate"))
	assert.Len(t, ws.Orders.State().PremiumRates, 1)
}

func TestExposure(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "client@fx.tn", "User")
	h.backend.handle("GET /orders", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Order{
			{ID: 1, TransactionType: "buy", Amount: 100, Currency: "EUR", Status: models.OrderStatusPending},
			{ID: 2, TransactionType: "sell", Amount: 40, Currency: "EUR", Status: models.OrderStatusExecuted},
		})
	}))
	svc := NewOrderService(h.backend.client, h.auth, 0)

	_, err := svc.FetchOrders(context.Background(), ws)
	require.NoError(t, err)
	exposure := svc.Exposure(ws)
	require.Len(t, exposure, 1)
	assert.InDelta(t, 60, exposure[0].Net, 1e-9)
}
