package pdfexport

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/username/fxportal/src/processors"
)

// Chart raster size, in pixels.
const (
	ChartWidth  = 1200
	ChartHeight = 700
)

// TCAReport is the content of a TCA export.
type TCAReport struct {
	Title   string
	Year    int
	Monthly []processors.MonthlyPoint
	Annual  []processors.AnnualSummary
}

// Pages rasterizes the report charts. Charts without data are left out.
func (r TCAReport) Pages() ([]Page, error) {
	monthlyPnL := make([]Bar, len(r.Monthly))
	monthlySpread := make([]Bar, len(r.Monthly))
	for i, p := range r.Monthly {
		monthlyPnL[i] = Bar{Label: p.Label, Value: p.PnLTND.Sum}
		monthlySpread[i] = Bar{Label: p.Label, Value: p.SpreadPct.Average}
	}
	annualPnL := make([]Bar, len(r.Annual))
	for i, s := range r.Annual {
		annualPnL[i] = Bar{Label: strconv.Itoa(s.Year), Value: s.PnLTND.Sum}
	}

	charts := []struct {
		title string
		bars  []Bar
	}{
		{fmt.Sprintf("P&L mensuel %d (TND)", r.Year), monthlyPnL},
		{fmt.Sprintf("Spread moyen mensuel %d (%%)", r.Year), monthlySpread},
		{"P&L annuel (TND)", annualPnL},
	}

	var pages []Page
	for _, c := range charts {
		img, err := RenderBarChart(c.title, c.bars, ChartWidth, ChartHeight)
		if errors.Is(err, ErrEmptyChart) {
			continue
		}
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Title: c.title, Image: img})
	}
	return pages, nil
}

// Export renders the report to a PDF document.
func (r TCAReport) Export(opts Options) ([]byte, error) {
	pages, err := r.Pages()
	if err != nil {
		return nil, err
	}
	if opts.Title == "" {
		opts.Title = r.Title
	}
	return Compose(pages, opts)
}
