package handlers

import (
	"net/http"

	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/services"
)

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

func (h *OrderHandler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FetchOrders(r.Context(), workspace(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var form models.OrderForm
	if !decodeJSON(w, r, &form) {
		return
	}
	order, err := h.orders.SubmitOrder(r.Context(), workspace(r), form)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) HandleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var form models.OrderForm
	if !decodeJSON(w, r, &form) {
		return
	}
	order, err := h.orders.UpdateOrder(r.Context(), workspace(r), id, form)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), workspace(r), id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExposure returns the buy, sell and net volumes per currency of the loaded orders.
func (h *OrderHandler) HandleExposure(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	if _, err := h.orders.FetchOrders(r.Context(), ws); err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orders.Exposure(ws))
}

// --- ADMIN ---

func (h *OrderHandler) HandleListAdminOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FetchAdminOrders(r.Context(), workspace(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) HandleUpdateAdminOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var update models.AdminOrderUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	ws := workspace(r)
	if err := h.orders.UpdateAdminOrder(r.Context(), ws, id, update); err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Orders.State().AdminOrders)
}

func (h *OrderHandler) HandleSetOrderStatus(w http.ResponseWriter, r *http.Request) {
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
	ws := workspace(r)
	if err := h.orders.SetOrderStatus(r.Context(), ws, id, req.Status); err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Orders.State().AdminOrders)
}

func (h *OrderHandler) HandleListMatchedOrders(w http.ResponseWriter, r *http.Request) {
	matched, err := h.orders.FetchMatchedOrders(r.Context(), workspace(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matched)
}

func (h *OrderHandler) HandleListMarketOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FetchMarketOrders(r.Context(), workspace(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) HandleRunMatching(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	message, err := h.orders.RunMatching(r.Context(), ws)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	state := ws.Orders.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        message,
		"matched_orders": state.MatchedOrders,
		"market_orders":  state.MarketOrders,
	})
}

func (h *OrderHandler) HandleListPremiumRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.orders.FetchPremiumRates(r.Context(), workspace(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

func (h *OrderHandler) HandleCreatePremiumRate(w http.ResponseWriter, r *http.Request) {
	var rate models.PremiumRate
	if !decodeJSON(w, r, &rate) {
		return
	}
	ws := workspace(r)
	if err := h.orders.CreatePremiumRate(r.Context(), ws, rate); err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws.Orders.State().PremiumRates)
}

func (h *OrderHandler) HandleUpdatePremiumRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var rate models.PremiumRate
	if !decodeJSON(w, r, &rate) {
		return
	}
	ws := workspace(r)
	if err := h.orders.UpdatePremiumRate(r.Context(), ws, id, rate); err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Orders.State().PremiumRates)
}

func (h *OrderHandler) HandleDeletePremiumRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ws := workspace(r)
	if err := h.orders.DeletePremiumRate(r.Context(), ws, id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Orders.State().PremiumRates)
}
