package processors

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/fxportal/src/models"
)

var (
	tvaRate   = decimal.RequireFromString("0.19")
	stampDuty = decimal.RequireFromString("1.000")
)

func toNumber(d decimal.Decimal) models.Number {
	f, _ := d.Round(InvoiceDecimals).Float64()
	return models.Number(f)
}

// ComputeInvoiceTotals recomputes the totals of an invoice payload:
// HT is the variable fees plus the fixed fee, TVA is 19% of HT unless the client
// is exempt, and TTC adds the stamp duty. Amounts are rounded to the millime.
func ComputeInvoiceTotals(lines []models.FeeLine, fixedFee float64, tvaExempt bool) models.InvoiceTotals {
	variable := decimal.Zero
	for _, l := range lines {
		variable = variable.Add(decimal.NewFromFloat(l.Amount.Float()))
	}
	variable = variable.Round(InvoiceDecimals)
	fixed := decimal.NewFromFloat(fixedFee).Round(InvoiceDecimals)

	ht := variable.Add(fixed)
	tva := decimal.Zero
	if !tvaExempt {
		tva = ht.Mul(tvaRate).Round(InvoiceDecimals)
	}
	ttc := ht.Add(tva).Add(stampDuty)

	return models.InvoiceTotals{
		TotalVariable: toNumber(variable),
		FixedFee:      toNumber(fixed),
		TotalHT:       toNumber(ht),
		TVA:           toNumber(tva),
		StampDuty:     toNumber(stampDuty),
		TotalTTC:      toNumber(ttc),
	}
}

// InvoiceGroup counts the invoices of one period and status.
type InvoiceGroup struct {
	Period   string  `json:"period"`
	Status   string  `json:"status"`
	Count    int     `json:"count"`
	TotalTTC float64 `json:"total_ttc"`
	Display  string  `json:"total_ttc_display"`
}

var statusOrder = map[string]int{
	models.InvoiceStatusDraft: 0,
	models.InvoiceStatusSent:  1,
	models.InvoiceStatusPaid:  2,
}

// SummarizeInvoices groups invoices by period and status, newest period first.
func SummarizeInvoices(invoices []models.Invoice) []InvoiceGroup {
	type key struct{ period, status string }
	totals := map[key]decimal.Decimal{}
	counts := map[key]int{}
	for _, inv := range invoices {
		period := strings.TrimSpace(inv.Payload.Period)
		if period == "" && len(inv.CreationDate) >= 7 {
			period = inv.CreationDate[:7]
		}
		k := key{period, inv.Status}
		totals[k] = totals[k].Add(decimal.NewFromFloat(inv.Payload.Totals.TotalTTC.Float()))
		counts[k]++
	}

	groups := make([]InvoiceGroup, 0, len(counts))
	for k, n := range counts {
		ttc, _ := totals[k].Round(InvoiceDecimals).Float64()
		groups = append(groups, InvoiceGroup{
			Period:   k.period,
			Status:   k.status,
			Count:    n,
			TotalTTC: ttc,
			Display:  FormatNumber(ttc, InvoiceDecimals),
		})
	}
	slices.SortFunc(groups, func(a, b InvoiceGroup) int {
		if c := strings.Compare(b.Period, a.Period); c != 0 {
			return c
		}
		if c := statusOrder[a.Status] - statusOrder[b.Status]; c != 0 {
			return c
		}
		return strings.Compare(a.Status, b.Status)
	})
	return groups
}
