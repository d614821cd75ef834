package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/pdfexport"
	"github.com/username/fxportal/src/processors"
	"github.com/username/fxportal/src/security/validation"
	"github.com/username/fxportal/src/store"
)

const (
	tcaSpotPath        = "/tca/spot"
	tcaSpotForwardPath = "/tca/spot-forward"
	tcaSpotOptionPath  = "/tca/spot-option"

	reportCacheExpiration = 5 * time.Minute
	reportCacheCleanup    = 10 * time.Minute
)

// TCAView is the TCA page: every aggregate of one filter and year, raw and formatted.
type TCAView struct {
	Filter      models.TCAFilter            `json:"filter"`
	Year        int                         `json:"year"`
	Years       []int                       `json:"years"`
	Records     int                         `json:"records"`
	Total       processors.Aggregate        `json:"total"`
	TotalRow    processors.AggregateRow     `json:"total_row"`
	Monthly     []processors.MonthlyPoint   `json:"monthly"`
	MonthlyRows []processors.AggregateRow   `json:"monthly_rows"`
	Annual      []processors.AnnualSummary  `json:"annual"`
	AnnualRows  []processors.AggregateRow   `json:"annual_rows"`
	Forwards    []processors.MaturityBucket `json:"forwards"`
	Options     []processors.MaturityBucket `json:"options"`
}

// TCAService fetches TCA records and builds the report views. Built views are kept
// for a few minutes per workspace and filter; an inputs upload drops them all.
type TCAService struct {
	caller
	dashboard *DashboardService
	reports   *cache.Cache
	now       func() time.Time
}

func NewTCAService(backend Backend, auth *AuthService, dashboard *DashboardService) *TCAService {
	return &TCAService{
		caller:    caller{backend: backend, auth: auth},
		dashboard: dashboard,
		reports:   cache.New(reportCacheExpiration, reportCacheCleanup),
		now:       time.Now,
	}
}

// SetReportExpiration replaces the report cache with one keeping views for d.
func (s *TCAService) SetReportExpiration(d time.Duration) {
	if d <= 0 {
		return
	}
	s.reports = cache.New(d, reportCacheCleanup)
}

func normalizeFilter(filter models.TCAFilter) (models.TCAFilter, error) {
	filter.Currency = validation.NormalizeCurrency(filter.Currency)
	filter.Client = strings.TrimSpace(filter.Client)
	errs := validation.FieldErrors{}
	errs.Check("currency", validation.ValidateCurrencyCode(filter.Currency))
	return filter, errs.Err()
}

func (s *TCAService) fetch(ctx context.Context, ws *store.Workspace, path string, filter models.TCAFilter) ([]models.TCARecord, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	q := url.Values{"currency": {filter.Currency}}
	if filter.Client != "" {
		q.Set("client", filter.Client)
	}
	var records []models.TCARecord
	if err := s.list(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: path, Query: q}, &records, "transactions", "records"); err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.TCARecord{}
	}
	return records, nil
}

// FetchSpot loads the spot transactions of a currency, optionally for one client.
func (s *TCAService) FetchSpot(ctx context.Context, ws *store.Workspace, filter models.TCAFilter) ([]models.TCARecord, error) {
	return s.fetch(ctx, ws, tcaSpotPath, filter)
}

// FetchSpotForward loads spot transactions with their forward hedging alternatives.
func (s *TCAService) FetchSpotForward(ctx context.Context, ws *store.Workspace, filter models.TCAFilter) ([]models.TCARecord, error) {
	return s.fetch(ctx, ws, tcaSpotForwardPath, filter)
}

// FetchSpotOption loads spot transactions with their option hedging alternatives.
func (s *TCAService) FetchSpotOption(ctx context.Context, ws *store.Workspace, filter models.TCAFilter) ([]models.TCARecord, error) {
	return s.fetch(ctx, ws, tcaSpotOptionPath, filter)
}

func reportKey(ws *store.Workspace, filter models.TCAFilter, year int) string {
	return fmt.Sprintf("%s|%s|%s|%d", ws.ID, filter.Currency, filter.Client, year)
}

// Report builds the TCA view of filter. A zero year selects the latest year with data.
func (s *TCAService) Report(ctx context.Context, ws *store.Workspace, filter models.TCAFilter, year int) (TCAView, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return TCAView{}, err
	}
	key := reportKey(ws, filter, year)
	if cached, found := s.reports.Get(key); found {
		if view, ok := cached.(TCAView); ok {
			logger.FromContext(ctx).Debug("TCA report served from cache", "currency", filter.Currency, "year", year)
			return view, nil
		}
	}

	var (
		wg                      sync.WaitGroup
		spot, forwards, options []models.TCARecord
		spotErr, fwdErr, optErr error
	)
	wg.Add(3)
	go func() { defer wg.Done(); spot, spotErr = s.FetchSpot(ctx, ws, filter) }()
	go func() { defer wg.Done(); forwards, fwdErr = s.FetchSpotForward(ctx, ws, filter) }()
	go func() { defer wg.Done(); options, optErr = s.FetchSpotOption(ctx, ws, filter) }()
	wg.Wait()
	if err := errors.Join(spotErr, fwdErr, optErr); err != nil {
		return TCAView{}, err
	}

	view := BuildTCAView(filter, spot, forwards, options, year, s.now())
	s.reports.SetDefault(key, view)
	return view, nil
}

// BuildTCAView runs the aggregations over fetched records.
func BuildTCAView(filter models.TCAFilter, spot, forwards, options []models.TCARecord, year int, now time.Time) TCAView {
	years := processors.Years(spot)
	if year == 0 {
		year = now.Year()
		if len(years) > 0 {
			year = years[len(years)-1]
		}
	}

	total := processors.AggregateRecords(spot)
	monthly := processors.MonthlySeries(spot, year)
	annual := processors.AnnualSummaries(spot)
	return TCAView{
		Filter:      filter,
		Year:        year,
		Years:       years,
		Records:     len(spot),
		Total:       total,
		TotalRow:    processors.FormatAggregate("Total", total),
		Monthly:     monthly,
		MonthlyRows: processors.FormatMonthly(monthly),
		Annual:      annual,
		AnnualRows:  processors.FormatAnnual(annual),
		Forwards:    processors.ForwardByMaturity(forwards),
		Options:     processors.OptionsByMaturity(options),
	}
}

// PDF exports the charts of the TCA report of filter and year.
func (s *TCAService) PDF(ctx context.Context, ws *store.Workspace, filter models.TCAFilter, year int, opts pdfexport.Options) ([]byte, error) {
	view, err := s.Report(ctx, ws, filter, year)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("TCA %s %d", view.Filter.Currency, view.Year)
	if view.Filter.Client != "" {
		title = fmt.Sprintf("%s - %s", title, view.Filter.Client)
	}
	report := pdfexport.TCAReport{Title: title, Year: view.Year, Monthly: view.Monthly, Annual: view.Annual}
	doc, err := report.Export(opts)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("TCA report exported", "currency", view.Filter.Currency, "year", view.Year, "bytes", len(doc))
	return doc, nil
}

// UploadInputs sends the TCA input spreadsheet and drops every cached report.
func (s *TCAService) UploadInputs(ctx context.Context, ws *store.Workspace, up Upload) (models.UploadResult, error) {
	result, err := s.dashboard.UploadTCAInputs(ctx, ws, up)
	if err != nil {
		return result, err
	}
	s.reports.Flush()
	return result, nil
}

// Forget drops the cached reports of one workspace, on logout.
func (s *TCAService) Forget(ws *store.Workspace) {
	prefix := ws.ID + "|"
	for key := range s.reports.Items() {
		if strings.HasPrefix(key, prefix) {
			s.reports.Delete(key)
		}
	}
}
