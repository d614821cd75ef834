package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/services"
)

const defaultCurrency = "EUR"

type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func currencyParam(r *http.Request) string {
	if c := strings.TrimSpace(r.URL.Query().Get("currency")); c != "" {
		return c
	}
	return defaultCurrency
}

// HandleGetDashboard refreshes every panel. A failing panel keeps its previous data
// and its message in the returned state; only an expired session fails the request.
func (h *DashboardHandler) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	state, err := h.dashboard.FetchAll(r.Context(), workspace(r), currencyParam(r))
	if errors.Is(err, apiclient.ErrUnauthorized) {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *DashboardHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboard.FetchSummary(r.Context(), workspace(r), currencyParam(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *DashboardHandler) HandleGetForwardRates(w http.ResponseWriter, r *http.Request) {
	points, err := h.dashboard.FetchForwardRates(r.Context(), workspace(r), currencyParam(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *DashboardHandler) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	points, err := h.dashboard.FetchTrend(r.Context(), workspace(r), currencyParam(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *DashboardHandler) HandleGetBankGains(w http.ResponseWriter, r *http.Request) {
	gains, err := h.dashboard.FetchBankGains(r.Context(), workspace(r), currencyParam(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gains)
}
