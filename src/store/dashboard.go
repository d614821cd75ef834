package store

import (
	"maps"
	"slices"
	"sync"

	"github.com/username/fxportal/src/models"
)

const (
	SliceSummary      Slice = "summary"
	SliceForwardRates Slice = "forward_rates"
	SliceTrend        Slice = "trend"
	SliceBankGains    Slice = "bank_gains"
	SliceTCAInputs    Slice = "tca_inputs"
)

var dashboardSlices = []Slice{SliceSummary, SliceForwardRates, SliceTrend, SliceBankGains}

// DashboardState is the dashboard slice of a workspace.
type DashboardState struct {
	Currency     string                    `json:"currency"`
	Summary      models.DashboardSummary   `json:"summary"`
	ForwardRates []models.ForwardRatePoint `json:"forwardRates"`
	Trend        []models.TrendPoint       `json:"trend"`
	BankGains    []models.BankGain         `json:"bankGains"`
	UploadResult *models.UploadResult      `json:"uploadResult,omitempty"`
	Error        string                    `json:"error,omitempty"`
	Errors       SliceErrors               `json:"errors,omitempty"`
	UploadError  string                    `json:"uploadError,omitempty"`
	Applied      Applied                   `json:"-"`
}

type DashboardAction interface {
	dashboardAction()
}

type FetchSummarySuccess struct {
	Seq     uint64
	Summary models.DashboardSummary
}

type FetchForwardRatesSuccess struct {
	Seq    uint64
	Points []models.ForwardRatePoint
}

type FetchTrendSuccess struct {
	Seq    uint64
	Points []models.TrendPoint
}

type FetchBankGainsSuccess struct {
	Seq   uint64
	Gains []models.BankGain
}

type DashboardFetchFailure struct {
	Slice Slice
	Seq   uint64
	Err   string
}

type UploadTCAInputsSuccess struct {
	Seq    uint64
	Result models.UploadResult
}

type UploadTCAInputsFailure struct {
	Seq uint64
	Err string
}

func (FetchSummarySuccess) dashboardAction()      {}
func (FetchForwardRatesSuccess) dashboardAction() {}
func (FetchTrendSuccess) dashboardAction()        {}
func (FetchBankGainsSuccess) dashboardAction()    {}
func (DashboardFetchFailure) dashboardAction()    {}
func (UploadTCAInputsSuccess) dashboardAction()   {}
func (UploadTCAInputsFailure) dashboardAction()   {}

// ReduceDashboard applies an action to a dashboard state with the same
// replace-on-success, keep-on-failure and stale-response rules as ReduceOrders.
// Error repeats the first entry of Errors in panel order.
func ReduceDashboard(state DashboardState, action DashboardAction) DashboardState {
	var ok bool
	switch a := action.(type) {
	case FetchSummarySuccess:
		if state.Applied, ok = state.Applied.accept(SliceSummary, a.Seq); ok {
			state.Summary = a.Summary
			state.Currency = a.Summary.Currency
			state.Errors = state.Errors.with(SliceSummary, "")
		}
	case FetchForwardRatesSuccess:
		if state.Applied, ok = state.Applied.accept(SliceForwardRates, a.Seq); ok {
			state.ForwardRates = nonNil(a.Points)
			state.Errors = state.Errors.with(SliceForwardRates, "")
		}
	case FetchTrendSuccess:
		if state.Applied, ok = state.Applied.accept(SliceTrend, a.Seq); ok {
			state.Trend = nonNil(a.Points)
			state.Errors = state.Errors.with(SliceTrend, "")
		}
	case FetchBankGainsSuccess:
		if state.Applied, ok = state.Applied.accept(SliceBankGains, a.Seq); ok {
			state.BankGains = nonNil(a.Gains)
			state.Errors = state.Errors.with(SliceBankGains, "")
		}
	case DashboardFetchFailure:
		if state.Applied, ok = state.Applied.accept(a.Slice, a.Seq); ok {
			state.Errors = state.Errors.with(a.Slice, a.Err)
		}
	case UploadTCAInputsSuccess:
		if state.Applied, ok = state.Applied.accept(SliceTCAInputs, a.Seq); ok {
			result := a.Result
			state.UploadResult = &result
			state.UploadError = ""
		}
	case UploadTCAInputsFailure:
		if state.Applied, ok = state.Applied.accept(SliceTCAInputs, a.Seq); ok {
			state.UploadError = a.Err
		}
	}
	state.Error = state.Errors.first(dashboardSlices)
	return state
}

// DashboardStore holds the dashboard state of one workspace.
type DashboardStore struct {
	mu    sync.RWMutex
	seq   sequencer
	state DashboardState
}

func NewDashboardStore() *DashboardStore {
	return &DashboardStore{}
}

func (s *DashboardStore) Begin(slice Slice) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.next(slice)
}

func (s *DashboardStore) Dispatch(action DashboardAction) DashboardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ReduceDashboard(s.state, action)
	return s.state.clone()
}

func (s *DashboardStore) State() DashboardState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (st DashboardState) clone() DashboardState {
	st.ForwardRates = slices.Clone(st.ForwardRates)
	st.Trend = slices.Clone(st.Trend)
	st.BankGains = slices.Clone(st.BankGains)
	st.Errors = maps.Clone(st.Errors)
	return st
}
