package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/services"
)

// multipartOverhead leaves room for the form fields around the file part.
const multipartOverhead = 1 << 20

type UploadHandler struct {
	orders        *services.OrderService
	tca           *services.TCAService
	profile       *services.ProfileService
	invoices      *services.InvoiceService
	maxUploadSize int64
	maxAvatarSize int64
}

func NewUploadHandler(orders *services.OrderService, tca *services.TCAService, profile *services.ProfileService,
	invoices *services.InvoiceService, maxUploadSize, maxAvatarSize int64) *UploadHandler {
	return &UploadHandler{
		orders:        orders,
		tca:           tca,
		profile:       profile,
		invoices:      invoices,
		maxUploadSize: maxUploadSize,
		maxAvatarSize: maxAvatarSize,
	}
}

// readUpload extracts one file part. The caller must close the returned file.
func readUpload(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (services.Upload, multipart.File, bool) {
	log := logger.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", maxSize)
		sendJSONError(w, fmt.Sprintf("Failed to process the upload or the file is too large (max %d MB)", maxSize/(1024*1024)), http.StatusBadRequest)
		return services.Upload{}, nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		log.Warn("Failed to retrieve file from request", "field", field, "error", err)
		sendJSONError(w, fmt.Sprintf("Failed to retrieve file from request. Ensure '%s' field is used.", field), http.StatusBadRequest)
		return services.Upload{}, nil, false
	}
	log.Info("Received upload", "field", field, "filename", header.Filename, "size", header.Size)
	return services.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}, file, true
}

func (h *UploadHandler) HandleOrdersUpload(w http.ResponseWriter, r *http.Request) {
	up, file, ok := readUpload(w, r, "file", h.maxUploadSize)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.orders.UploadOrders(r.Context(), workspace(r), up)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *UploadHandler) HandleTCAInputsUpload(w http.ResponseWriter, r *http.Request) {
	up, file, ok := readUpload(w, r, "file", h.maxUploadSize)
	if !ok {
		return
	}
	defer file.Close()

	result, err := h.tca.UploadInputs(r.Context(), workspace(r), up)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *UploadHandler) HandleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	up, file, ok := readUpload(w, r, "avatar", h.maxAvatarSize)
	if !ok {
		return
	}
	defer file.Close()

	url, err := h.profile.UploadAvatar(r.Context(), workspace(r), up)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"avatar_url": url})
}

// HandleInvoiceConfirm attaches the signed PDF to an invoice.
func (h *UploadHandler) HandleInvoiceConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	up, file, ok := readUpload(w, r, "file", h.maxUploadSize)
	if !ok {
		return
	}
	defer file.Close()

	url, err := h.invoices.Confirm(r.Context(), workspace(r), id, up)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pdf_url": url})
}
