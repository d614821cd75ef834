package models

const (
	InvoiceStatusDraft = "draft"
	InvoiceStatusSent  = "sent"
	InvoiceStatusPaid  = "paid"
)

var invoiceStatusRank = map[string]int{
	InvoiceStatusDraft: 0,
	InvoiceStatusSent:  1,
	InvoiceStatusPaid:  2,
}

// ValidInvoiceStatus reports whether status is draft, sent or paid.
func ValidInvoiceStatus(status string) bool {
	_, ok := invoiceStatusRank[status]
	return ok
}

// CanAdvanceInvoice reports whether an invoice may move from one status to the next.
// Statuses only move forward, one step at a time.
func CanAdvanceInvoice(from, to string) bool {
	fromRank, okFrom := invoiceStatusRank[from]
	toRank, okTo := invoiceStatusRank[to]
	return okFrom && okTo && toRank == fromRank+1
}

// FeeLine is one variable fee (frais variable) of an invoice.
type FeeLine struct {
	Description     string `json:"description"`
	Reference       string `json:"reference,omitempty"`
	TransactionDate string `json:"transaction_date,omitempty"`
	Currency        string `json:"currency,omitempty"`
	Volume          Number `json:"volume"`
	Rate            Number `json:"rate"`
	Amount          Number `json:"amount"` // TND, before tax
}

// InvoiceTotals are the amounts of an invoice in TND with millime precision.
type InvoiceTotals struct {
	TotalVariable Number `json:"total_variable"`
	FixedFee      Number `json:"frais_fixe"`
	TotalHT       Number `json:"total_ht"`
	TVA           Number `json:"tva"`
	StampDuty     Number `json:"timbre"`
	TotalTTC      Number `json:"total_ttc"`
}

// InvoicePayload is the billed content of an invoice.
type InvoicePayload struct {
	Client        BillingClient `json:"client"`
	Period        string        `json:"period"` // YYYY-MM
	FraisVariable []FeeLine     `json:"frais_variable"`
	FraisFixe     Number        `json:"frais_fixe"`
	Totals        InvoiceTotals `json:"totals"`
}

// Invoice is a billing document. Only Status and PDFURL change after creation.
type Invoice struct {
	ID           int64          `json:"id"`
	Status       string         `json:"status"`
	Payload      InvoicePayload `json:"payload"`
	PDFURL       string         `json:"pdf_url,omitempty"`
	CreationDate string         `json:"creation_date"`
}

// BillingClient is the billed entity behind a set of orders.
type BillingClient struct {
	ID              int64  `json:"id,omitempty"`
	ClientName      string `json:"client_name"`
	Address         string `json:"address"`
	MatriculeFiscal string `json:"matricule_fiscal"`
	FixedMonthlyFee Number `json:"fixed_monthly_fee"`
	TVAExempt       bool   `json:"tva_exempt"`
	UsesDigitalSign bool   `json:"uses_digital_sign"`
	NettingEnabled  bool   `json:"netting_enabled"`
	NeedsReferences bool   `json:"needs_references"`
	ContractStart   string `json:"contract_start"`
	ParentClient    *int64 `json:"parent_client,omitempty"`
}

// InvoiceFilter narrows the invoice list.
type InvoiceFilter struct {
	Status   string
	ClientID string
	Period   string
}

// DraftRequest asks the backend to build a draft invoice for a client and month.
type DraftRequest struct {
	ClientID int64  `json:"client_id"`
	Period   string `json:"period"`
}
