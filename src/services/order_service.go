package services

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/processors"
	"github.com/username/fxportal/src/security/validation"
	"github.com/username/fxportal/src/store"
)

const (
	ordersPath        = "/orders"
	adminOrdersPath   = "/admin/api/orders"
	matchedOrdersPath = "/admin/matched_orders"
	marketOrdersPath  = "/admin/market_orders"
	runMatchingPath   = "/admin/run_matching"
	premiumRatePath   = "/admin/api/premium-rate"
	uploadOrdersPath  = "/upload-orders"
)

// OrderService runs the order fetches and mutations of a workspace and reduces
// their outcome into its orders store.
type OrderService struct {
	caller
	maxUploadSize int64
}

func NewOrderService(backend Backend, auth *AuthService, maxUploadSize int64) *OrderService {
	return &OrderService{caller: caller{backend: backend, auth: auth}, maxUploadSize: maxUploadSize}
}

func itemPath(base string, id int64) string {
	return fmt.Sprintf("%s/%d", base, id)
}

// FetchOrders loads the orders of the signed-in client.
func (s *OrderService) FetchOrders(ctx context.Context, ws *store.Workspace) ([]models.Order, error) {
	seq := ws.Orders.Begin(store.SliceOrders)
	var orders []models.Order
	if err := s.list(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: ordersPath}, &orders, "orders"); err != nil {
		ws.Orders.Dispatch(store.OrdersFetchFailure{Slice: store.SliceOrders, Seq: seq, Err: apiclient.Message(err)})
		return nil, err
	}
	return ws.Orders.Dispatch(store.FetchOrdersSuccess{Seq: seq, Orders: orders}).Orders, nil
}

// SubmitOrder validates the order-entry form and posts it. An invalid form never reaches the backend.
func (s *OrderService) SubmitOrder(ctx context.Context, ws *store.Workspace, form models.OrderForm) (models.Order, error) {
	order, err := validation.ValidateOrderForm(form)
	if err != nil {
		return models.Order{}, err
	}

	var created models.Order
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPost, Path: ordersPath, Body: order}, &created); err != nil {
		return models.Order{}, err
	}
	if created.ID == 0 {
		created = order
	}
	logger.FromContext(ctx).Info("Order submitted", "orderID", created.ID, "currency", order.Currency, "type", order.TransactionType)
	s.refresh(ctx, ws)
	return created, nil
}

// pendingOrder returns the order id of the signed-in client, refusing orders that
// are no longer pending.
func (s *OrderService) pendingOrder(ctx context.Context, ws *store.Workspace, id int64) (models.Order, error) {
	order, ok := ws.Orders.FindOrder(id)
	if !ok {
		if _, err := s.FetchOrders(ctx, ws); err != nil {
			return models.Order{}, err
		}
		if order, ok = ws.Orders.FindOrder(id); !ok {
			return models.Order{}, ErrOrderNotFound
		}
	}
	if !order.IsPending() {
		return models.Order{}, fmt.Errorf("%w: order %d is %s", ErrOrderNotPending, id, order.Status)
	}
	return order, nil
}

// UpdateOrder edits a pending order.
func (s *OrderService) UpdateOrder(ctx context.Context, ws *store.Workspace, id int64, form models.OrderForm) (models.Order, error) {
	updated, err := validation.ValidateOrderForm(form)
	if err != nil {
		return models.Order{}, err
	}
	current, err := s.pendingOrder(ctx, ws, id)
	if err != nil {
		return models.Order{}, err
	}
	updated.ID = current.ID
	updated.User = current.User

	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPut, Path: itemPath(ordersPath, id), Body: updated}, nil); err != nil {
		return models.Order{}, err
	}
	s.refresh(ctx, ws)
	return updated, nil
}

// DeleteOrder removes a pending order.
func (s *OrderService) DeleteOrder(ctx context.Context, ws *store.Workspace, id int64) error {
	if _, err := s.pendingOrder(ctx, ws, id); err != nil {
		return err
	}
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodDelete, Path: itemPath(ordersPath, id)}, nil); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Order deleted", "orderID", id)
	s.refresh(ctx, ws)
	return nil
}

// refresh reloads the client orders after a mutation. A failure stays in the store.
func (s *OrderService) refresh(ctx context.Context, ws *store.Workspace) {
	if _, err := s.FetchOrders(ctx, ws); err != nil {
		logger.FromContext(ctx).Warn("Order list refresh failed", "error", err)
	}
}

// Exposure sums the last fetched orders per currency.
func (s *OrderService) Exposure(ws *store.Workspace) []processors.Exposure {
	return processors.ExposureByCurrency(ws.Orders.State().Orders)
}

// FetchAdminOrders loads every client order (admin).
func (s *OrderService) FetchAdminOrders(ctx context.Context, ws *store.Workspace) ([]models.Order, error) {
	seq := ws.Orders.Begin(store.SliceAdminOrders)
	var orders []models.Order
	if err := s.list(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: adminOrdersPath}, &orders, "orders"); err != nil {
		ws.Orders.Dispatch(store.OrdersFetchFailure{Slice: store.SliceAdminOrders, Seq: seq, Err: apiclient.Message(err)})
		return nil, err
	}
	return ws.Orders.Dispatch(store.FetchAdminOrdersSuccess{Seq: seq, Orders: orders}).AdminOrders, nil
}

// UpdateAdminOrder applies an admin edit: status, execution rate, bank, amount or value date.
func (s *OrderService) UpdateAdminOrder(ctx context.Context, ws *store.Workspace, id int64, update models.AdminOrderUpdate) error {
	errs := validation.FieldErrors{}
	if update.Status != "" && !slices.Contains(models.OrderStatuses, update.Status) {
		errs.Add("status", "status must be one of "+strings.Join(models.OrderStatuses, ", "))
	}
	if update.ExecutionRate != nil && *update.ExecutionRate <= 0 {
		errs.Add("execution_rate", "execution_rate must be greater than 0")
	}
	if update.Amount != nil && *update.Amount <= 0 {
		errs.Add("amount", "amount must be greater than 0")
	}
	if update.ValueDate != "" {
		_, err := validation.ValidateDateString(update.ValueDate, "value_date")
		errs.Check("value_date", err)
	}
	if update.BankName != nil {
		bank := validation.SanitizeFreeText(*update.BankName)
		update.BankName = &bank
	}
	if err := errs.Err(); err != nil {
		return err
	}

	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPut, Path: itemPath(adminOrdersPath, id), Body: update}, nil); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Order updated by admin", "orderID", id, "status", update.Status)
	if _, err := s.FetchAdminOrders(ctx, ws); err != nil {
		logger.FromContext(ctx).Warn("Admin order list refresh failed", "error", err)
	}
	return nil
}

// SetOrderStatus moves an order to Pending, Executed or Market (admin).
func (s *OrderService) SetOrderStatus(ctx context.Context, ws *store.Workspace, id int64, status string) error {
	if err := validation.ValidateOrderStatus(status); err != nil {
		return err
	}
	return s.UpdateAdminOrder(ctx, ws, id, models.AdminOrderUpdate{Status: status})
}

// FetchMatchedOrders loads the pairs produced by the last matching run (admin).
func (s *OrderService) FetchMatchedOrders(ctx context.Context, ws *store.Workspace) ([]models.MatchedOrder, error) {
	seq := ws.Orders.Begin(store.SliceMatchedOrders)
	var matched []models.MatchedOrder
	req := apiclient.Request{Method: http.MethodGet, Path: matchedOrdersPath}
	if err := s.list(ctx, ws, req, &matched, "matched_orders", "orders"); err != nil {
		ws.Orders.Dispatch(store.OrdersFetchFailure{Slice: store.SliceMatchedOrders, Seq: seq, Err: apiclient.Message(err)})
		return nil, err
	}
	return ws.Orders.Dispatch(store.FetchMatchedOrdersSuccess{Seq: seq, Matched: matched}).MatchedOrders, nil
}

// FetchMarketOrders loads the orders left to execute on the market (admin).
func (s *OrderService) FetchMarketOrders(ctx context.Context, ws *store.Workspace) ([]models.Order, error) {
	seq := ws.Orders.Begin(store.SliceMarketOrders)
	var orders []models.Order
	req := apiclient.Request{Method: http.MethodGet, Path: marketOrdersPath}
	if err := s.list(ctx, ws, req, &orders, "market_orders", "orders"); err != nil {
		ws.Orders.Dispatch(store.OrdersFetchFailure{Slice: store.SliceMarketOrders, Seq: seq, Err: apiclient.Message(err)})
		return nil, err
	}
	return ws.Orders.Dispatch(store.FetchMarketOrdersSuccess{Seq: seq, Orders: orders}).MarketOrders, nil
}

// RunMatching asks the backend to pair buy and sell orders, then reloads the
// matched and market lists.
func (s *OrderService) RunMatching(ctx context.Context, ws *store.Workspace) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPost, Path: runMatchingPath}, &resp); err != nil {
		return "", err
	}
	logger.FromContext(ctx).Info("Order matching run", "message", resp.Message)
	if _, err := s.FetchMatchedOrders(ctx, ws); err != nil {
		logger.FromContext(ctx).Warn("Matched orders refresh failed", "error", err)
	}
	if _, err := s.FetchMarketOrders(ctx, ws); err != nil {
		logger.FromContext(ctx).Warn("Market orders refresh failed", "error", err)
	}
	return resp.Message, nil
}

// UploadOrders sends a bulk order spreadsheet after checking its type and size.
func (s *OrderService) UploadOrders(ctx context.Context, ws *store.Workspace, up Upload) (models.UploadResult, error) {
	seq := ws.Orders.Begin(store.SliceOrderUpload)
	if err := validation.ValidateSpreadsheet(up.Name, up.Content, up.Size, s.maxUploadSize); err != nil {
		ws.Orders.Dispatch(store.UploadOrdersFailure{Seq: seq, Err: err.Error()})
		return models.UploadResult{}, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	var result models.UploadResult
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPost, Path: uploadOrdersPath, File: ptr(uploadFile("file", up, nil))}, &result); err != nil {
		ws.Orders.Dispatch(store.UploadOrdersFailure{Seq: seq, Err: apiclient.Message(err)})
		return models.UploadResult{}, err
	}
	ws.Orders.Dispatch(store.UploadOrdersSuccess{Seq: seq, Result: result})
	logger.FromContext(ctx).Info("Orders uploaded", "filename", up.Name, "inserted", result.Inserted, "errors", len(result.Errors))
	s.refresh(ctx, ws)
	return result, nil
}

// FetchPremiumRates loads the option premium grid (admin).
func (s *OrderService) FetchPremiumRates(ctx context.Context, ws *store.Workspace) ([]models.PremiumRate, error) {
	seq := ws.Orders.Begin(store.SlicePremiumRates)
	var rates []models.PremiumRate
	req := apiclient.Request{Method: http.MethodGet, Path: premiumRatePath}
	if err := s.list(ctx, ws, req, &rates, "premium_rates", "rates"); err != nil {
		ws.Orders.Dispatch(store.OrdersFetchFailure{Slice: store.SlicePremiumRates, Seq: seq, Err: apiclient.Message(err)})
		return nil, err
	}
	return ws.Orders.Dispatch(store.FetchPremiumRatesSuccess{Seq: seq, Rates: rates}).PremiumRates, nil
}

func (s *OrderService) CreatePremiumRate(ctx context.Context, ws *store.Workspace, rate models.PremiumRate) error {
	rate, err := validation.ValidatePremiumRate(rate)
	if err != nil {
		return err
	}
	rate.ID = 0
	return s.mutatePremiumRates(ctx, ws, apiclient.Request{Method: http.MethodPost, Path: premiumRatePath, Body: rate})
}

func (s *OrderService) UpdatePremiumRate(ctx context.Context, ws *store.Workspace, id int64, rate models.PremiumRate) error {
	rate, err := validation.ValidatePremiumRate(rate)
	if err != nil {
		return err
	}
	rate.ID = id
	return s.mutatePremiumRates(ctx, ws, apiclient.Request{Method: http.MethodPut, Path: itemPath(premiumRatePath, id), Body: rate})
}

func (s *OrderService) DeletePremiumRate(ctx context.Context, ws *store.Workspace, id int64) error {
	return s.mutatePremiumRates(ctx, ws, apiclient.Request{Method: http.MethodDelete, Path: itemPath(premiumRatePath, id)})
}

func (s *OrderService) mutatePremiumRates(ctx context.Context, ws *store.Workspace, req apiclient.Request) error {
	if err := s.do(ctx, ws, req, nil); err != nil {
		return err
	}
	if _, err := s.FetchPremiumRates(ctx, ws); err != nil {
		logger.FromContext(ctx).Warn("Premium rates refresh failed", "error", err)
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
