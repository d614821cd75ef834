package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/pdfexport"
	"github.com/username/fxportal/src/services"
	"github.com/username/fxportal/src/store"
)

type TCAHandler struct {
	tca *services.TCAService
	pdf pdfexport.Options
}

func NewTCAHandler(tca *services.TCAService, pdf pdfexport.Options) *TCAHandler {
	return &TCAHandler{tca: tca, pdf: pdf}
}

func tcaFilter(r *http.Request) models.TCAFilter {
	return models.TCAFilter{Currency: currencyParam(r), Client: r.URL.Query().Get("client")}
}

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := queryInt(r, "year")
	if err != nil || year < 0 {
		sendJSONError(w, "Invalid year", http.StatusBadRequest)
		return 0, false
	}
	return year, true
}

func (h *TCAHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	view, err := h.tca.Report(r.Context(), workspace(r), tcaFilter(r), year)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type tcaFetch func(ctx context.Context, ws *store.Workspace, filter models.TCAFilter) ([]models.TCARecord, error)

func (h *TCAHandler) records(fetch tcaFetch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := fetch(r.Context(), workspace(r), tcaFilter(r))
		if err != nil {
			sendServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func (h *TCAHandler) HandleGetSpot(w http.ResponseWriter, r *http.Request) {
	h.records(h.tca.FetchSpot)(w, r)
}

func (h *TCAHandler) HandleGetSpotForward(w http.ResponseWriter, r *http.Request) {
	h.records(h.tca.FetchSpotForward)(w, r)
}

func (h *TCAHandler) HandleGetSpotOption(w http.ResponseWriter, r *http.Request) {
	h.records(h.tca.FetchSpotOption)(w, r)
}

// HandleExportPDF streams the TCA charts as a PDF attachment.
func (h *TCAHandler) HandleExportPDF(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	filter := tcaFilter(r)
	doc, err := h.tca.PDF(r.Context(), workspace(r), filter, year, h.pdf)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	name := "tca"
	if year > 0 {
		name += "-" + strconv.Itoa(year)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
