package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/security/validation"
	"github.com/username/fxportal/src/store"
)

const (
	summaryPath      = "/api/dashboard/summary"
	forwardRatesPath = "/api/dashboard/secured-vs-market-forward-rate"
	trendPath        = "/api/dashboard/superperformance-trend"
	bankGainsPath    = "/api/dashboard/bank-gains"
	tcaInputsPath    = "/admin/api/tca/inputs"
)

// DashboardService fills the dashboard store of a workspace.
type DashboardService struct {
	caller
	maxUploadSize int64
}

func NewDashboardService(backend Backend, auth *AuthService, maxUploadSize int64) *DashboardService {
	return &DashboardService{caller: caller{backend: backend, auth: auth}, maxUploadSize: maxUploadSize}
}

func currencyQuery(currency string) url.Values {
	q := url.Values{}
	if currency != "" {
		q.Set("currency", currency)
	}
	return q
}

// FetchSummary loads the headline figures for currency. A currency the backend does
// not know yields a zeroed summary rather than an error.
func (s *DashboardService) FetchSummary(ctx context.Context, ws *store.Workspace, currency string) (models.DashboardSummary, error) {
	seq := ws.Dashboard.Begin(store.SliceSummary)
	currency = validation.NormalizeCurrency(currency)
	zero := models.DashboardSummary{Currency: currency}

	if err := validation.ValidateCurrencyCode(currency); err != nil {
		logger.FromContext(ctx).Debug("Dashboard summary requested for malformed currency", "currency", currency)
		return ws.Dashboard.Dispatch(store.FetchSummarySuccess{Seq: seq, Summary: zero}).Summary, nil
	}

	var raw json.RawMessage
	err := s.do(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: summaryPath, Query: currencyQuery(currency)}, &raw)
	if apiclient.IsNotFound(err) {
		return ws.Dashboard.Dispatch(store.FetchSummarySuccess{Seq: seq, Summary: zero}).Summary, nil
	}
	if err != nil {
		ws.Dashboard.Dispatch(store.DashboardFetchFailure{Slice: store.SliceSummary, Seq: seq, Err: apiclient.Message(err)})
		return models.DashboardSummary{}, err
	}

	summary, err := decodeSummary(raw)
	if err != nil {
		ws.Dashboard.Dispatch(store.DashboardFetchFailure{Slice: store.SliceSummary, Seq: seq, Err: apiclient.GenericErrorMessage})
		return models.DashboardSummary{}, err
	}
	if summary.Currency == "" {
		summary.Currency = currency
	}
	return ws.Dashboard.Dispatch(store.FetchSummarySuccess{Seq: seq, Summary: summary}).Summary, nil
}

// decodeSummary reads a summary object, bare or under "summary". null, {} and an
// empty body decode to the zero summary.
func decodeSummary(raw json.RawMessage) (models.DashboardSummary, error) {
	var summary models.DashboardSummary
	doc := gjson.ParseBytes(raw)
	if wrapped := doc.Get("summary"); wrapped.IsObject() {
		doc = wrapped
	}
	if !doc.IsObject() {
		return summary, nil
	}
	if err := json.Unmarshal([]byte(doc.Raw), &summary); err != nil {
		return models.DashboardSummary{}, fmt.Errorf("decode dashboard summary: %w", err)
	}
	return summary, nil
}

func (s *DashboardService) FetchForwardRates(ctx context.Context, ws *store.Workspace, currency string) ([]models.ForwardRatePoint, error) {
	seq := ws.Dashboard.Begin(store.SliceForwardRates)
	var points []models.ForwardRatePoint
	req := apiclient.Request{Method: http.MethodGet, Path: forwardRatesPath, Query: currencyQuery(validation.NormalizeCurrency(currency))}
	if err := s.list(ctx, ws, req, &points, "points", "rates"); err != nil {
		ws.Dashboard.Dispatch(store.DashboardFetchFailure{Slice: store.SliceForwardRates, Seq: seq, Err: apiclient.Message(err)})
		return nil, err
	}
	return ws.Dashboard.Dispatch(store.FetchForwardRatesSuccess{Seq: seq, Points: points}).ForwardRates, nil
}

func (s *DashboardService) FetchTrend(ctx context.Context, ws *store.Workspace, currency string) ([]models.TrendPoint, error) {
	seq := ws.Dashboard.Begin(store.SliceTrend)
	var points []models.TrendPoint
	req := apiclient.Request{Method: http.MethodGet, Path: trendPath, Query: currencyQuery(validation.NormalizeCurrency(currency))}
	if err := s.list(ctx, ws, req, &points, "points", "trend"); err != nil {
		ws.Dashboard.Dispatch(store.DashboardFetchFailure{Slice: store.SliceTrend, Seq: seq, Err: apiclient.Message(err)})
		return nil, err
	}
	return ws.Dashboard.Dispatch(store.FetchTrendSuccess{Seq: seq, Points: points}).Trend, nil
}

func (s *DashboardService) FetchBankGains(ctx context.Context, ws *store.Workspace, currency string) ([]models.BankGain, error) {
	seq := ws.Dashboard.Begin(store.SliceBankGains)
	var gains []models.BankGain
	req := apiclient.Request{Method: http.MethodGet, Path: bankGainsPath, Query: currencyQuery(validation.NormalizeCurrency(currency))}
	if err := s.list(ctx, ws, req, &gains, "banks", "gains"); err != nil {
		ws.Dashboard.Dispatch(store.DashboardFetchFailure{Slice: store.SliceBankGains, Seq: seq, Err: apiclient.Message(err)})
		return nil, err
	}
	return ws.Dashboard.Dispatch(store.FetchBankGainsSuccess{Seq: seq, Gains: gains}).BankGains, nil
}

// FetchAll refreshes every dashboard slice for currency in parallel and returns the
// resulting state. Each failure is kept in the store; the joined error is returned.
func (s *DashboardService) FetchAll(ctx context.Context, ws *store.Workspace, currency string) (store.DashboardState, error) {
	fetches := []func() error{
		func() error { _, err := s.FetchSummary(ctx, ws, currency); return err },
		func() error { _, err := s.FetchForwardRates(ctx, ws, currency); return err },
		func() error { _, err := s.FetchTrend(ctx, ws, currency); return err },
		func() error { _, err := s.FetchBankGains(ctx, ws, currency); return err },
	}

	var wg sync.WaitGroup
	errs := make([]error, len(fetches))
	for i, fetch := range fetches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fetch()
		}()
	}
	wg.Wait()

	return ws.Dashboard.State(), errors.Join(errs...)
}

// UploadTCAInputs sends the TCA input spreadsheet (admin).
func (s *DashboardService) UploadTCAInputs(ctx context.Context, ws *store.Workspace, up Upload) (models.UploadResult, error) {
	seq := ws.Dashboard.Begin(store.SliceTCAInputs)
	if err := validation.ValidateSpreadsheet(up.Name, up.Content, up.Size, s.maxUploadSize); err != nil {
		ws.Dashboard.Dispatch(store.UploadTCAInputsFailure{Seq: seq, Err: err.Error()})
		return models.UploadResult{}, fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}

	var result models.UploadResult
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPost, Path: tcaInputsPath, File: ptr(uploadFile("file", up, nil))}, &result); err != nil {
		ws.Dashboard.Dispatch(store.UploadTCAInputsFailure{Seq: seq, Err: apiclient.Message(err)})
		return models.UploadResult{}, err
	}
	logger.FromContext(ctx).Info("TCA inputs uploaded", "filename", up.Name, "inserted", result.Inserted)
	ws.Dashboard.Dispatch(store.UploadTCAInputsSuccess{Seq: seq, Result: result})
	return result, nil
}
