package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/processors"
	"github.com/username/fxportal/src/security/validation"
	"github.com/username/fxportal/src/store"
)

const (
	invoiceClientsPath = "/invoice/clients"
	invoicesPath       = "/invoice/invoices"
	invoiceSummaryPath = "/invoice/summary"
	invoiceDraftPath   = "/invoice/draft"
	invoiceStatusPath  = "/invoice/status"
	invoiceConfirmPath = "/invoice/confirm"
)

// ErrNoInvoicePDF is returned when an invoice has no confirmed document yet.
var ErrNoInvoicePDF = errors.New("invoice has no confirmed PDF")

// InvoiceService manages billing clients and invoices (admin).
type InvoiceService struct {
	caller
	maxUploadSize int64
}

func NewInvoiceService(backend Backend, auth *AuthService, maxUploadSize int64) *InvoiceService {
	return &InvoiceService{caller: caller{backend: backend, auth: auth}, maxUploadSize: maxUploadSize}
}

func (s *InvoiceService) ListClients(ctx context.Context, ws *store.Workspace) ([]models.BillingClient, error) {
	var clients []models.BillingClient
	if err := s.list(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: invoiceClientsPath}, &clients, "clients"); err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []models.BillingClient{}
	}
	return clients, nil
}

func (s *InvoiceService) CreateClient(ctx context.Context, ws *store.Workspace, client models.BillingClient) (models.BillingClient, error) {
	client, err := validation.ValidateBillingClient(client)
	if err != nil {
		return models.BillingClient{}, err
	}
	client.ID = 0
	var created models.BillingClient
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPost, Path: invoiceClientsPath, Body: client}, &created); err != nil {
		return models.BillingClient{}, err
	}
	if created.ID == 0 {
		created = client
	}
	logger.FromContext(ctx).Info("Billing client created", "clientID", created.ID, "name", created.ClientName)
	return created, nil
}

func (s *InvoiceService) UpdateClient(ctx context.Context, ws *store.Workspace, id int64, client models.BillingClient) (models.BillingClient, error) {
	client.ID = id
	client, err := validation.ValidateBillingClient(client)
	if err != nil {
		return models.BillingClient{}, err
	}
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPut, Path: itemPath(invoiceClientsPath, id), Body: client}, nil); err != nil {
		return models.BillingClient{}, err
	}
	return client, nil
}

func (s *InvoiceService) DeleteClient(ctx context.Context, ws *store.Workspace, id int64) error {
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodDelete, Path: itemPath(invoiceClientsPath, id)}, nil); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Billing client deleted", "clientID", id)
	return nil
}

func invoiceQuery(filter models.InvoiceFilter) (url.Values, error) {
	errs := validation.FieldErrors{}
	q := url.Values{}
	if status := strings.ToLower(strings.TrimSpace(filter.Status)); status != "" {
		if !models.ValidInvoiceStatus(status) {
			errs.Add("status", "status must be draft, sent or paid")
		}
		q.Set("status", status)
	}
	if id := strings.TrimSpace(filter.ClientID); id != "" {
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			errs.Add("client_id", "client_id must be a number")
		}
		q.Set("client_id", id)
	}
	if period := strings.TrimSpace(filter.Period); period != "" {
		errs.Check("period", validation.ValidatePeriod(period))
		q.Set("period", period)
	}
	return q, errs.Err()
}

// ListInvoices loads the invoices matching filter. Totals missing from a payload are
// recomputed from its fee lines.
func (s *InvoiceService) ListInvoices(ctx context.Context, ws *store.Workspace, filter models.InvoiceFilter) ([]models.Invoice, error) {
	q, err := invoiceQuery(filter)
	if err != nil {
		return nil, err
	}
	var invoices []models.Invoice
	if err := s.list(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: invoicesPath, Query: q}, &invoices, "invoices"); err != nil {
		return nil, err
	}
	for i := range invoices {
		completeTotals(&invoices[i])
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}
	return invoices, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, ws *store.Workspace, id int64) (models.Invoice, error) {
	var invoice models.Invoice
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: itemPath(invoicesPath, id)}, &invoice); err != nil {
		return models.Invoice{}, err
	}
	completeTotals(&invoice)
	return invoice, nil
}

func completeTotals(inv *models.Invoice) {
	p := &inv.Payload
	if p.Totals.TotalTTC != 0 || (len(p.FraisVariable) == 0 && p.FraisFixe == 0) {
		return
	}
	p.Totals = processors.ComputeInvoiceTotals(p.FraisVariable, p.FraisFixe.Float(), p.Client.TVAExempt)
}

// Summary groups invoices by period and status. The backend summary is used when
// available; otherwise the groups are computed from the invoice list.
func (s *InvoiceService) Summary(ctx context.Context, ws *store.Workspace) ([]processors.InvoiceGroup, error) {
	var groups []processors.InvoiceGroup
	err := s.list(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: invoiceSummaryPath}, &groups, "summary", "groups")
	if apiclient.IsNotFound(err) {
		invoices, err := s.ListInvoices(ctx, ws, models.InvoiceFilter{})
		if err != nil {
			return nil, err
		}
		return processors.SummarizeInvoices(invoices), nil
	}
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].Display = processors.FormatNumber(groups[i].TotalTTC, processors.InvoiceDecimals)
	}
	if groups == nil {
		groups = []processors.InvoiceGroup{}
	}
	return groups, nil
}

// CreateDraft asks the backend to build the draft invoice of a client for a month.
func (s *InvoiceService) CreateDraft(ctx context.Context, ws *store.Workspace, req models.DraftRequest) (models.Invoice, error) {
	errs := validation.FieldErrors{}
	if req.ClientID <= 0 {
		errs.Add("client_id", "client_id is required")
	}
	req.Period = strings.TrimSpace(req.Period)
	errs.Check("period", validation.ValidatePeriod(req.Period))
	if err := errs.Err(); err != nil {
		return models.Invoice{}, err
	}

	var invoice models.Invoice
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPost, Path: invoiceDraftPath, Body: req}, &invoice); err != nil {
		return models.Invoice{}, err
	}
	completeTotals(&invoice)
	logger.FromContext(ctx).Info("Draft invoice created", "invoiceID", invoice.ID, "clientID", req.ClientID, "period", req.Period)
	return invoice, nil
}

// AdvanceStatus moves an invoice one step forward: draft to sent, sent to paid.
func (s *InvoiceService) AdvanceStatus(ctx context.Context, ws *store.Workspace, id int64, to string) (models.Invoice, error) {
	to = strings.ToLower(strings.TrimSpace(to))
	if !models.ValidInvoiceStatus(to) {
		return models.Invoice{}, validation.FieldErrors{"status": "status must be draft, sent or paid"}
	}
	invoice, err := s.GetInvoice(ctx, ws, id)
	if err != nil {
		return models.Invoice{}, err
	}
	if !models.CanAdvanceInvoice(invoice.Status, to) {
		return models.Invoice{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, invoice.Status, to)
	}

	body := map[string]any{"invoice_id": id, "status": to}
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPost, Path: invoiceStatusPath, Body: body}, nil); err != nil {
		return models.Invoice{}, err
	}
	logger.FromContext(ctx).Info("Invoice status changed", "invoiceID", id, "from", invoice.Status, "to", to)
	invoice.Status = to
	return invoice, nil
}

// Confirm uploads the signed PDF of an invoice and returns its URL.
func (s *InvoiceService) Confirm(ctx context.Context, ws *store.Workspace, id int64, up Upload) (string, error) {
	if err := validation.ValidatePDF(up.Name, up.Content, up.Size, s.maxUploadSize); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}
	if up.ContentType == "" {
		up.ContentType = "application/pdf"
	}

	var resp struct {
		PDFURL string `json:"pdf_url"`
	}
	fields := map[string]string{"invoice_id": strconv.FormatInt(id, 10)}
	req := apiclient.Request{Method: http.MethodPost, Path: invoiceConfirmPath, File: ptr(uploadFile("file", up, fields))}
	if err := s.do(ctx, ws, req, &resp); err != nil {
		return "", err
	}
	logger.FromContext(ctx).Info("Invoice confirmed", "invoiceID", id, "pdfURL", resp.PDFURL)
	return resp.PDFURL, nil
}

// DownloadPDF fetches the confirmed document of an invoice.
func (s *InvoiceService) DownloadPDF(ctx context.Context, ws *store.Workspace, id int64) (apiclient.Blob, error) {
	invoice, err := s.GetInvoice(ctx, ws, id)
	if err != nil {
		return apiclient.Blob{}, err
	}
	if invoice.PDFURL == "" {
		return apiclient.Blob{}, ErrNoInvoicePDF
	}
	var blob apiclient.Blob
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: itemPath(invoicesPath, id) + "/pdf"}, &blob); err != nil {
		return apiclient.Blob{}, err
	}
	if blob.ContentType == "" {
		blob.ContentType = "application/pdf"
	}
	return blob, nil
}
