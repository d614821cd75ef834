package models

const (
	TransactionBuy  = "buy"
	TransactionSell = "sell"

	OrderStatusPending  = "Pending"
	OrderStatusExecuted = "Executed"
	OrderStatusMarket   = "Market"
)

// OrderStatuses is the closed set of order statuses accepted by the backend.
var OrderStatuses = []string{OrderStatusPending, OrderStatusExecuted, OrderStatusMarket}

// Order is a client FX order as stored by the backend.
type Order struct {
	ID              int64   `json:"id"`
	User            string  `json:"user"`
	TransactionType string  `json:"transaction_type"` // buy or sell
	Amount          Number  `json:"amount"`           // in Currency
	Currency        string  `json:"currency"`
	ValueDate       string  `json:"value_date"` // YYYY-MM-DD
	Status          string  `json:"status"`
	ExecutionRate   *Number `json:"execution_rate,omitempty"`
	BankName        *string `json:"bank_name,omitempty"`
}

// IsPending reports whether the client may still edit or delete the order.
func (o Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// OrderForm holds the order-entry fields as typed by the user.
type OrderForm struct {
	TransactionType string `json:"transaction_type"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	ValueDate       string `json:"value_date"`
	BankName        string `json:"bank_name"`
}

// AdminOrderUpdate is the body of an admin edit of an order.
type AdminOrderUpdate struct {
	Status        string   `json:"status,omitempty"`
	ExecutionRate *float64 `json:"execution_rate,omitempty"`
	BankName      *string  `json:"bank_name,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
	ValueDate     string   `json:"value_date,omitempty"`
}

// MatchedOrder pairs a buy and a sell order, produced by the backend matching run.
type MatchedOrder struct {
	ID            int64  `json:"id"`
	Buyer         Order  `json:"buyer"`
	Seller        Order  `json:"seller"`
	MatchedAmount Number `json:"matched_amount"`
	Currency      string `json:"currency"`
	ValueDate     string `json:"value_date"`
}

// PremiumRate is the option premium applied to a currency and maturity.
type PremiumRate struct {
	ID           int64  `json:"id,omitempty"`
	Currency     string `json:"currency"`
	MaturityDays int    `json:"maturity_days"`
	Rate         Number `json:"rate"`
}

// UploadResult is the backend answer to a bulk spreadsheet upload.
type UploadResult struct {
	Message  string   `json:"message"`
	Inserted int      `json:"inserted"`
	Errors   []string `json:"errors,omitempty"`
}
