package models

import (
	"strings"
	"time"
)

// ForwardDetail is the outcome of hedging a transaction with a forward of a given maturity.
type ForwardDetail struct {
	MaturityDays int    `json:"maturity_days"`
	ForwardRate  Number `json:"forward_rate"`
	PnLTND       Number `json:"pnl_tnd"`
}

// OptionDetail is the outcome of hedging a transaction with an option of a given maturity.
type OptionDetail struct {
	MaturityDays   int    `json:"maturity_days"`
	OptionPrimeTND Number `json:"option_prime_tnd"`
	PnLTND         Number `json:"pnl_tnd"`
}

type ForwardHedging struct {
	Details []ForwardDetail `json:"details"`
}

type OptionHedging struct {
	Details []OptionDetail `json:"details"`
}

// TCARecord is one executed transaction in a TCA report (spot, forward or option view).
type TCARecord struct {
	TransactionDate    string         `json:"transaction_date"`
	TransactionType    string         `json:"transaction_type"`
	Currency           string         `json:"currency"`
	Client             string         `json:"client,omitempty"`
	BankName           string         `json:"bank_name,omitempty"`
	Amount             Number         `json:"amount"`
	ExecutionRate      Number         `json:"execution_rate"`
	InterbankRate      Number         `json:"interbank_rate"`
	PnLInterbankTND    Number         `json:"pnl_interbank_tnd"`
	SpreadInterbankPct Number         `json:"spread_interbank_pct"`
	HedgingForward     ForwardHedging `json:"hedging_with_forward"`
	HedgingOptions     OptionHedging  `json:"hedging_with_options"`
}

var recordDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
}

// Date parses TransactionDate. ok is false when the date is missing or unreadable.
func (r TCARecord) Date() (time.Time, bool) {
	raw := strings.TrimSpace(r.TransactionDate)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range recordDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NotionalTND is the traded amount converted at the execution rate.
func (r TCARecord) NotionalTND() float64 {
	return r.Amount.Float() * r.ExecutionRate.Float()
}

// TCAFilter narrows a TCA query.
type TCAFilter struct {
	Currency string `json:"currency"`
	Client   string `json:"client,omitempty"`
}
