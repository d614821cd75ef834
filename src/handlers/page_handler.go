package handlers

import (
	"errors"
	"net/http"

	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/processors"
	"github.com/username/fxportal/src/security/validation"
	"github.com/username/fxportal/src/services"
)

// pageView is the view model of one portal page.
type pageView struct {
	Page    string          `json:"page"`
	Session sessionResponse `json:"session"`
	Data    any             `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PageHandler serves the portal pages as JSON view models. Guards run before the
// protected and admin pages, so those always see a resolved session.
type PageHandler struct {
	orders    *services.OrderService
	dashboard *services.DashboardService
	tca       *services.TCAService
	invoices  *services.InvoiceService
	profile   *services.ProfileService
	adminRole string
}

func NewPageHandler(orders *services.OrderService, dashboard *services.DashboardService, tca *services.TCAService,
	invoices *services.InvoiceService, profile *services.ProfileService, adminRole string) *PageHandler {
	return &PageHandler{
		orders:    orders,
		dashboard: dashboard,
		tca:       tca,
		invoices:  invoices,
		profile:   profile,
		adminRole: adminRole,
	}
}

// render writes the page. Data that failed to load is reported in the view, except
// for an expired session which sends the browser back to /login.
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, page string, data any, err error) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		http.Redirect(w, r, loginPath, http.StatusFound)
		return
	}
	view := pageView{
		Page:    page,
		Session: newSessionResponse(workspace(r).Session.State(), h.adminRole),
		Data:    data,
	}
	var fields validation.FieldErrors
	switch {
	case errors.As(err, &fields):
		view.Error = fields.Error()
	case err != nil:
		view.Error = apiclient.Message(err)
	}
	writeJSON(w, http.StatusOK, view)
}

// Public pages never probe the session.

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "home", nil, nil)
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "login", nil, nil)
}

func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register", nil, nil)
}

func (h *PageHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "forgot-password", nil, nil)
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	state, err := h.dashboard.FetchAll(r.Context(), workspace(r), currencyParam(r))
	h.render(w, r, "dashboard", state, err)
}

func (h *PageHandler) TCA(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	view, err := h.tca.Report(r.Context(), workspace(r), tcaFilter(r), year)
	if err != nil {
		h.render(w, r, "tca", nil, err)
		return
	}
	h.render(w, r, "tca", view, nil)
}

type orderPage struct {
	Orders   []models.Order         `json:"orders"`
	Exposure []processors.Exposure `json:"exposure"`
}

func (h *PageHandler) Order(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	_, err := h.orders.FetchOrders(r.Context(), ws)
	state := ws.Orders.State()
	h.render(w, r, "order", orderPage{Orders: state.Orders, Exposure: h.orders.Exposure(ws)}, err)
}

// Checkout lists the orders still pending execution.
func (h *PageHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	_, err := h.orders.FetchOrders(r.Context(), ws)
	pending := []models.Order{}
	for _, o := range ws.Orders.State().Orders {
		if o.IsPending() {
			pending = append(pending, o)
		}
	}
	h.render(w, r, "checkout", orderPage{Orders: pending, Exposure: processors.ExposureByCurrency(pending)}, err)
}

type simulationPage struct {
	Filter   models.TCAFilter            `json:"filter"`
	Forwards []processors.MaturityBucket `json:"forwards"`
	Options  []processors.MaturityBucket `json:"options"`
}

// Simulation compares the executed spot deals with their hedging alternatives.
func (h *PageHandler) Simulation(w http.ResponseWriter, r *http.Request) {
	view, err := h.tca.Report(r.Context(), workspace(r), tcaFilter(r), 0)
	if err != nil {
		h.render(w, r, "simulation", nil, err)
		return
	}
	h.render(w, r, "simulation", simulationPage{Filter: view.Filter, Forwards: view.Forwards, Options: view.Options}, nil)
}

func (h *PageHandler) EditProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profile.GetProfile(r.Context(), workspace(r))
	h.render(w, r, "edit-profile", profile, err)
}

func (h *PageHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	invoice, err := h.invoices.GetInvoice(r.Context(), workspace(r), id)
	if err != nil {
		h.render(w, r, "invoice", nil, err)
		return
	}
	h.render(w, r, "invoice", invoice, nil)
}

func (h *PageHandler) EmailInbox(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "email-inbox", nil, nil)
}

// --- ADMIN ---

func (h *PageHandler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	_, errOrders := h.orders.FetchAdminOrders(r.Context(), ws)
	_, errMatched := h.orders.FetchMatchedOrders(r.Context(), ws)
	_, errMarket := h.orders.FetchMarketOrders(r.Context(), ws)
	h.render(w, r, "admin-orders", ws.Orders.State(), errors.Join(errOrders, errMatched, errMarket))
}

type invoicesPage struct {
	Invoices []models.Invoice          `json:"invoices"`
	Summary  []processors.InvoiceGroup `json:"summary"`
}

func (h *PageHandler) AdminInvoices(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	invoices, errList := h.invoices.ListInvoices(r.Context(), ws, invoiceFilter(r))
	summary, errSummary := h.invoices.Summary(r.Context(), ws)
	h.render(w, r, "admin-invoices", invoicesPage{Invoices: invoices, Summary: summary}, errors.Join(errList, errSummary))
}

func (h *PageHandler) AdminClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.invoices.ListClients(r.Context(), workspace(r))
	h.render(w, r, "admin-clients", clients, err)
}
