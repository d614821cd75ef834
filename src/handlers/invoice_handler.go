package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/services"
)

type InvoiceHandler struct {
	invoices *services.InvoiceService
}

func NewInvoiceHandler(invoices *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

func (h *InvoiceHandler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.invoices.ListClients(r.Context(), workspace(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *InvoiceHandler) HandleCreateClient(w http.ResponseWriter, r *http.Request) {
	var client models.BillingClient
	if !decodeJSON(w, r, &client) {
		return
	}
	created, err := h.invoices.CreateClient(r.Context(), workspace(r), client)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *InvoiceHandler) HandleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var client models.BillingClient
	if !decodeJSON(w, r, &client) {
		return
	}
	updated, err := h.invoices.UpdateClient(r.Context(), workspace(r), id, client)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *InvoiceHandler) HandleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.invoices.DeleteClient(r.Context(), workspace(r), id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func invoiceFilter(r *http.Request) models.InvoiceFilter {
	q := r.URL.Query()
	return models.InvoiceFilter{Status: q.Get("status"), ClientID: q.Get("client_id"), Period: q.Get("period")}
}

func (h *InvoiceHandler) HandleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.invoices.ListInvoices(r.Context(), workspace(r), invoiceFilter(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandler) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	invoice, err := h.invoices.GetInvoice(r.Context(), workspace(r), id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (h *InvoiceHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	groups, err := h.invoices.Summary(r.Context(), workspace(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *InvoiceHandler) HandleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req models.DraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	invoice, err := h.invoices.CreateDraft(r.Context(), workspace(r), req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

// HandleAdvanceStatus moves an invoice forward along draft, sent, paid.
func (h *InvoiceHandler) HandleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	invoice, err := h.invoices.AdvanceStatus(r.Context(), workspace(r), id, req.Status)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (h *InvoiceHandler) HandleDownloadPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	blob, err := h.invoices.DownloadPDF(r.Context(), workspace(r), id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%d.pdf"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}
