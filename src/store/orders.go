package store

import (
	"maps"
	"slices"
	"sync"

	"github.com/username/fxportal/src/models"
)

const (
	SliceOrders        Slice = "orders"
	SliceAdminOrders   Slice = "admin_orders"
	SliceMatchedOrders Slice = "matched_orders"
	SliceMarketOrders  Slice = "market_orders"
	SlicePremiumRates  Slice = "premium_rates"
	SliceOrderUpload   Slice = "order_upload"
)

var ordersSlices = []Slice{SliceOrders, SliceAdminOrders, SliceMatchedOrders, SliceMarketOrders, SlicePremiumRates}

// OrdersState is the orders slice of a workspace: the last successful fetch of each list.
type OrdersState struct {
	Orders        []models.Order        `json:"orders"`
	AdminOrders   []models.Order        `json:"adminOrders"`
	MatchedOrders []models.MatchedOrder `json:"matchedOrders"`
	MarketOrders  []models.Order        `json:"marketOrders"`
	PremiumRates  []models.PremiumRate  `json:"premiumRates"`
	UploadResult  *models.UploadResult  `json:"uploadResult,omitempty"`
	Error         string                `json:"error,omitempty"`
	Errors        SliceErrors           `json:"errors,omitempty"`
	UploadError   string                `json:"uploadError,omitempty"`
	Applied       Applied               `json:"-"`
}

// OrdersAction is the closed set of orders store actions.
type OrdersAction interface {
	ordersAction()
}

type FetchOrdersSuccess struct {
	Seq    uint64
	Orders []models.Order
}

type FetchAdminOrdersSuccess struct {
	Seq    uint64
	Orders []models.Order
}

type FetchMatchedOrdersSuccess struct {
	Seq     uint64
	Matched []models.MatchedOrder
}

type FetchMarketOrdersSuccess struct {
	Seq    uint64
	Orders []models.Order
}

type FetchPremiumRatesSuccess struct {
	Seq   uint64
	Rates []models.PremiumRate
}

// OrdersFetchFailure is the failure of any fetch into Slice.
type OrdersFetchFailure struct {
	Slice Slice
	Seq   uint64
	Err   string
}

type UploadOrdersSuccess struct {
	Seq    uint64
	Result models.UploadResult
}

type UploadOrdersFailure struct {
	Seq uint64
	Err string
}

func (FetchOrdersSuccess) ordersAction()        {}
func (FetchAdminOrdersSuccess) ordersAction()   {}
func (FetchMatchedOrdersSuccess) ordersAction() {}
func (FetchMarketOrdersSuccess) ordersAction()  {}
func (FetchPremiumRatesSuccess) ordersAction()  {}
func (OrdersFetchFailure) ordersAction()        {}
func (UploadOrdersSuccess) ordersAction()       {}
func (UploadOrdersFailure) ordersAction()       {}

// ReduceOrders applies an action to an orders state. Successful fetches replace their
// list wholesale and clear their own entry of Errors; failures set it and keep the
// previous data. Error repeats the first entry of Errors.
// Responses older than the last applied one for the same slice are dropped.
func ReduceOrders(state OrdersState, action OrdersAction) OrdersState {
	var ok bool
	switch a := action.(type) {
	case FetchOrdersSuccess:
		if state.Applied, ok = state.Applied.accept(SliceOrders, a.Seq); ok {
			state.Orders = nonNil(a.Orders)
			state.Errors = state.Errors.with(SliceOrders, "")
		}
	case FetchAdminOrdersSuccess:
		if state.Applied, ok = state.Applied.accept(SliceAdminOrders, a.Seq); ok {
			state.AdminOrders = nonNil(a.Orders)
			state.Errors = state.Errors.with(SliceAdminOrders, "")
		}
	case FetchMatchedOrdersSuccess:
		if state.Applied, ok = state.Applied.accept(SliceMatchedOrders, a.Seq); ok {
			state.MatchedOrders = nonNil(a.Matched)
			state.Errors = state.Errors.with(SliceMatchedOrders, "")
		}
	case FetchMarketOrdersSuccess:
		if state.Applied, ok = state.Applied.accept(SliceMarketOrders, a.Seq); ok {
			state.MarketOrders = nonNil(a.Orders)
			state.Errors = state.Errors.with(SliceMarketOrders, "")
		}
	case FetchPremiumRatesSuccess:
		if state.Applied, ok = state.Applied.accept(SlicePremiumRates, a.Seq); ok {
			state.PremiumRates = nonNil(a.Rates)
			state.Errors = state.Errors.with(SlicePremiumRates, "")
		}
	case OrdersFetchFailure:
		if state.Applied, ok = state.Applied.accept(a.Slice, a.Seq); ok {
			state.Errors = state.Errors.with(a.Slice, a.Err)
		}
	case UploadOrdersSuccess:
		if state.Applied, ok = state.Applied.accept(SliceOrderUpload, a.Seq); ok {
			result := a.Result
			state.UploadResult = &result
			state.UploadError = ""
		}
	case UploadOrdersFailure:
		if state.Applied, ok = state.Applied.accept(SliceOrderUpload, a.Seq); ok {
			state.UploadError = a.Err
		}
	}
	state.Error = state.Errors.first(ordersSlices)
	return state
}

// OrdersStore holds the orders state of one workspace.
type OrdersStore struct {
	mu    sync.RWMutex
	seq   sequencer
	state OrdersState
}

func NewOrdersStore() *OrdersStore {
	return &OrdersStore{}
}

// Begin numbers a new request for slice. Pass the number back on the resulting action.
func (s *OrdersStore) Begin(slice Slice) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.next(slice)
}

func (s *OrdersStore) Dispatch(action OrdersAction) OrdersState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ReduceOrders(s.state, action)
	return s.state.clone()
}

func (s *OrdersStore) State() OrdersState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// FindOrder looks an order up in the client list.
func (s *OrdersStore) FindOrder(id int64) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.state.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return models.Order{}, false
}

func (st OrdersState) clone() OrdersState {
	st.Orders = slices.Clone(st.Orders)
	st.AdminOrders = slices.Clone(st.AdminOrders)
	st.MatchedOrders = slices.Clone(st.MatchedOrders)
	st.MarketOrders = slices.Clone(st.MarketOrders)
	st.PremiumRates = slices.Clone(st.PremiumRates)
	st.Errors = maps.Clone(st.Errors)
	return st
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
