package processors

import (
	"slices"
	"strings"

	"github.com/username/fxportal/src/models"
)

// Exposure is the order book position in one currency.
type Exposure struct {
	Currency string  `json:"currency"`
	Buy      float64 `json:"buy"`
	Sell     float64 `json:"sell"`
	Net      float64 `json:"net"` // Buy - Sell
	Orders   int     `json:"orders"`
	Pending  int     `json:"pending"`
}

// ExposureByCurrency sums buy and sell amounts per currency, sorted by currency code.
func ExposureByCurrency(orders []models.Order) []Exposure {
	type sides struct {
		buys, sells []float64
		orders      int
		pending     int
	}
	byCurrency := map[string]*sides{}
	for _, o := range orders {
		ccy := strings.ToUpper(strings.TrimSpace(o.Currency))
		s, ok := byCurrency[ccy]
		if !ok {
			s = &sides{}
			byCurrency[ccy] = s
		}
		s.orders++
		if o.IsPending() {
			s.pending++
		}
		switch strings.ToLower(o.TransactionType) {
		case models.TransactionBuy:
			s.buys = append(s.buys, o.Amount.Float())
		case models.TransactionSell:
			s.sells = append(s.sells, o.Amount.Float())
		}
	}

	currencies := make([]string, 0, len(byCurrency))
	for ccy := range byCurrency {
		currencies = append(currencies, ccy)
	}
	slices.Sort(currencies)

	out := make([]Exposure, 0, len(currencies))
	for _, ccy := range currencies {
		s := byCurrency[ccy]
		buy, sell := sum(s.buys), sum(s.sells)
		out = append(out, Exposure{
			Currency: ccy,
			Buy:      buy,
			Sell:     sell,
			Net:      buy - sell,
			Orders:   s.orders,
			Pending:  s.pending,
		})
	}
	return out
}
