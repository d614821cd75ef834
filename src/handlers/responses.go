package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/security/validation"
	"github.com/username/fxportal/src/services"
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"

	maxJSONBodyBytes = 1 << 20
)

type errorResponse struct {
	Error    string            `json:"error"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	writeJSON(w, statusCode, errorResponse{Error: message})
}

func sendRedirectError(w http.ResponseWriter, message, redirect string, statusCode int) {
	writeJSON(w, statusCode, errorResponse{Error: message, Redirect: redirect})
}

// sendServiceError maps a service error onto the portal error taxonomy:
// 422 for field validation, 401 for an expired session, 400 for a rejected upload,
// 409 for a refused state change and 502 when the backend failed.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	var fields validation.FieldErrors
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, services.ErrInvalidUpload):
		log.Warn("Upload rejected", "error", err)
		sendJSONError(w, uploadMessage(err), http.StatusBadRequest)
	case errors.As(err, &fields):
		log.Debug("Validation failed", "fields", len(fields))
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "Validation failed", Fields: fields})
	case errors.Is(err, apiclient.ErrUnauthorized):
		log.Info("Backend rejected the session tokens")
		sendRedirectError(w, apiclient.ExpiredErrorMessage, loginPath, http.StatusUnauthorized)
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrOrderNotPending):
		sendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrNoInvoicePDF):
		sendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		sendJSONError(w, apiclient.Message(err), apiErr.Status)
	case errors.As(err, &apiErr), errors.Is(err, apiclient.ErrNetwork):
		log.Error("Backend call failed", "error", err)
		sendJSONError(w, apiclient.Message(err), http.StatusBadGateway)
	default:
		log.Error("Request failed", "error", err)
		sendJSONError(w, apiclient.GenericErrorMessage, http.StatusInternalServerError)
	}
}

// uploadMessage keeps the innermost reason of a rejected upload.
func uploadMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, validation.ErrInvalidFile.Error()+": "); i >= 0 {
		return msg[i+len(validation.ErrInvalidFile.Error())+2:]
	}
	return strings.TrimPrefix(msg, services.ErrInvalidUpload.Error()+": ")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			sendJSONError(w, "Request body is empty", http.StatusBadRequest)
			return false
		}
		logger.FromContext(r.Context()).Debug("Invalid JSON body", "error", err)
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// pathID parses the {name} URL parameter as a positive id.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		sendJSONError(w, fmt.Sprintf("Invalid %s", name), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
