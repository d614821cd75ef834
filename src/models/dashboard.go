package models

// DashboardSummary is the headline block of the client dashboard for one currency.
type DashboardSummary struct {
	Currency            string `json:"currency"`
	TotalTraded         Number `json:"total_traded"`
	TotalGainTND        Number `json:"total_gain_tnd"`
	AverageSpreadPct    Number `json:"average_spread_pct"`
	TransactionCount    int    `json:"transaction_count"`
	SuperperformancePct Number `json:"superperformance_pct"`
}

// ForwardRatePoint compares the secured forward rate with the market rate for a month.
type ForwardRatePoint struct {
	Month       string `json:"month"`
	SecuredRate Number `json:"secured_rate"`
	MarketRate  Number `json:"market_rate"`
}

// TrendPoint is one month of the superperformance trend.
type TrendPoint struct {
	Month               string `json:"month"`
	SuperperformancePct Number `json:"superperformance_pct"`
}

// BankGain is the cumulated gain obtained with one bank.
type BankGain struct {
	Bank    string `json:"bank"`
	GainTND Number `json:"gain_tnd"`
}
