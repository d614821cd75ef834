package processors

import (
	"slices"
	"strconv"

	"github.com/username/fxportal/src/models"
)

// MonthLabels are the fixed month labels of every time series, January first.
var MonthLabels = [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."}

// Aggregate is the reduction of a group of TCA records.
type Aggregate struct {
	Count        int     `json:"count"`
	VolumeTraded float64 `json:"volume_traded"` // Σ amount, in the record currency
	NotionalTND  float64 `json:"notional_tnd"`  // Σ amount × execution rate
	PnLTND       Stats   `json:"pnl_tnd"`
	SpreadPct    Stats   `json:"spread_pct"` // simple statistics over per-record spreads
	// WeightedSpreadPct is Σpnl / Σnotional × 100, 0 when there is no notional.
	WeightedSpreadPct float64 `json:"weighted_spread_pct"`
}

// AggregateRecords reduces a group of records.
func AggregateRecords(records []models.TCARecord) Aggregate {
	if len(records) == 0 {
		return Aggregate{}
	}
	amounts := make([]float64, len(records))
	notionals := make([]float64, len(records))
	pnls := make([]float64, len(records))
	spreads := make([]float64, len(records))
	for i, r := range records {
		amounts[i] = r.Amount.Float()
		notionals[i] = r.NotionalTND()
		pnls[i] = r.PnLInterbankTND.Float()
		spreads[i] = r.SpreadInterbankPct.Float()
	}

	agg := Aggregate{
		Count:        len(records),
		VolumeTraded: sum(amounts),
		NotionalTND:  sum(notionals),
		PnLTND:       Summarize(pnls),
		SpreadPct:    Summarize(spreads),
	}
	agg.WeightedSpreadPct = Ratio(agg.PnLTND.Sum, agg.NotionalTND)
	return agg
}

// MonthlyPoint is one month of a yearly series.
type MonthlyPoint struct {
	Month int    `json:"month"`
	Label string `json:"label"`
	Aggregate
}

// MonthlySeries groups the records of year by calendar month. It always returns
// twelve points, January to December; records without a readable date are ignored.
func MonthlySeries(records []models.TCARecord, year int) []MonthlyPoint {
	var buckets [12][]models.TCARecord
	for _, r := range records {
		d, ok := r.Date()
		if !ok || d.Year() != year {
			continue
		}
		buckets[d.Month()-1] = append(buckets[d.Month()-1], r)
	}

	points := make([]MonthlyPoint, 12)
	for i := range buckets {
		points[i] = MonthlyPoint{Month: i + 1, Label: MonthLabels[i], Aggregate: AggregateRecords(buckets[i])}
	}
	return points
}

// AnnualSummary is the reduction of one calendar year.
type AnnualSummary struct {
	Year int `json:"year"`
	Aggregate
}

// AnnualSummaries groups records by year, oldest first.
func AnnualSummaries(records []models.TCARecord) []AnnualSummary {
	byYear := map[int][]models.TCARecord{}
	for _, r := range records {
		if d, ok := r.Date(); ok {
			byYear[d.Year()] = append(byYear[d.Year()], r)
		}
	}

	summaries := make([]AnnualSummary, 0, len(byYear))
	for _, year := range sortedKeys(byYear) {
		summaries = append(summaries, AnnualSummary{Year: year, Aggregate: AggregateRecords(byYear[year])})
	}
	return summaries
}

// Years lists the distinct transaction years, oldest first.
func Years(records []models.TCARecord) []int {
	seen := map[int]struct{}{}
	for _, r := range records {
		if d, ok := r.Date(); ok {
			seen[d.Year()] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// MaturityBucket reduces the hedging alternatives of one maturity.
type MaturityBucket struct {
	MaturityDays int   `json:"maturity_days"`
	PnLTND       Stats `json:"pnl_tnd"`
	// Rate holds forward rates for forwards and option premiums (TND) for options.
	Rate Stats `json:"rate"`
}

// ForwardByMaturity groups the forward hedging details of all records by maturity.
func ForwardByMaturity(records []models.TCARecord) []MaturityBucket {
	pnls := map[int][]float64{}
	rates := map[int][]float64{}
	for _, r := range records {
		for _, d := range r.HedgingForward.Details {
			pnls[d.MaturityDays] = append(pnls[d.MaturityDays], d.PnLTND.Float())
			rates[d.MaturityDays] = append(rates[d.MaturityDays], d.ForwardRate.Float())
		}
	}
	return buckets(pnls, rates)
}

// OptionsByMaturity groups the option hedging details of all records by maturity.
func OptionsByMaturity(records []models.TCARecord) []MaturityBucket {
	pnls := map[int][]float64{}
	primes := map[int][]float64{}
	for _, r := range records {
		for _, d := range r.HedgingOptions.Details {
			pnls[d.MaturityDays] = append(pnls[d.MaturityDays], d.PnLTND.Float())
			primes[d.MaturityDays] = append(primes[d.MaturityDays], d.OptionPrimeTND.Float())
		}
	}
	return buckets(pnls, primes)
}

func buckets(pnls, rates map[int][]float64) []MaturityBucket {
	out := make([]MaturityBucket, 0, len(pnls))
	for _, days := range sortedKeys(pnls) {
		out = append(out, MaturityBucket{
			MaturityDays: days,
			PnLTND:       Summarize(pnls[days]),
			Rate:         Summarize(rates[days]),
		})
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// AggregateRow is an Aggregate rendered for a table.
type AggregateRow struct {
	Label          string `json:"label"`
	Count          string `json:"count"`
	VolumeTraded   string `json:"volume_traded"`
	PnLTND         string `json:"pnl_tnd"`
	AverageSpread  string `json:"average_spread"`
	WeightedSpread string `json:"weighted_spread"`
	MinSpread      string `json:"min_spread"`
	MaxSpread      string `json:"max_spread"`
}

// FormatAggregate renders an aggregate. Empty groups show the placeholder,
// except the weighted spread which shows 0 when there is no notional.
func FormatAggregate(label string, a Aggregate) AggregateRow {
	return AggregateRow{
		Label:          label,
		Count:          FormatNumber(float64(a.Count), 0),
		VolumeTraded:   FormatCell(a.VolumeTraded, a.Count, TNDChartDecimals),
		PnLTND:         FormatCell(a.PnLTND.Sum, a.Count, TNDChartDecimals),
		AverageSpread:  FormatPercentCell(a.SpreadPct.Average, a.Count),
		WeightedSpread: FormatPercent(a.WeightedSpreadPct),
		MinSpread:      FormatPercentCell(a.SpreadPct.Min, a.Count),
		MaxSpread:      FormatPercentCell(a.SpreadPct.Max, a.Count),
	}
}

// FormatMonthly renders a monthly series as table rows.
func FormatMonthly(points []MonthlyPoint) []AggregateRow {
	rows := make([]AggregateRow, len(points))
	for i, p := range points {
		rows[i] = FormatAggregate(p.Label, p.Aggregate)
	}
	return rows
}

// FormatAnnual renders annual summaries as table rows.
func FormatAnnual(summaries []AnnualSummary) []AggregateRow {
	rows := make([]AggregateRow, len(summaries))
	for i, s := range summaries {
		rows[i] = FormatAggregate(strconv.Itoa(s.Year), s.Aggregate)
	}
	return rows
}
