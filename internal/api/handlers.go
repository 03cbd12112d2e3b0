package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"parcel-agent/internal/db"
	"parcel-agent/internal/models"
	"parcel-agent/internal/service"
)

const kmzContentType = "application/vnd.google-earth.kmz"

// Uploads larger than this are rejected before PDF parsing.
const maxPDFBytes = 32 << 20

// Handlers contains HTTP handlers and their dependencies
type Handlers struct {
	svc *service.Service
	db  *db.DB
}

// NewHandlers creates a new Handlers instance. database may be nil when the
// audit log is disabled.
func NewHandlers(svc *service.Service, database *db.DB) *Handlers {
	return &Handlers{svc: svc, db: database}
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

// ProcessPDFKMZ handles POST /process_pdf_kmz
func (h *Handlers) ProcessPDFKMZ(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxPDFBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing pdf field")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeDetail(w, http.StatusBadRequest, "Please upload a PDF file.")
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxPDFBytes+1))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "reading upload failed")
		return
	}
	if len(content) > maxPDFBytes {
		writeDetail(w, http.StatusBadRequest, "PDF too large")
		return
	}

	result, err := h.svc.ProcessPDF(r.Context(), content, relaxParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeKMZ(w, result)
}

// KMZByLotplan handles GET /kmz_by_lotplan
func (h *Handlers) KMZByLotplan(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.KMZByLotplan(r.Context(), r.URL.Query().Get("lotplan"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeKMZ(w, result)
}

// KMZByAddress handles POST /kmz_by_address with a free-text address body.
func (h *Handlers) KMZByAddress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	q := service.ParseAddressText(body.Address)
	result, err := h.svc.KMZByAddress(r.Context(), q, relaxParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeKMZ(w, result)
}

// KMZByAddressFields handles the legacy POST /kmz_by_address_fields with a
// structured address body.
func (h *Handlers) KMZByAddressFields(w http.ResponseWriter, r *http.Request) {
	var q models.AddressQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.svc.KMZByAddress(r.Context(), q, relaxParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeKMZ(w, result)
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeDetail(w, http.StatusNotFound, "audit log disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	records, err := h.db.ListRequests(r.Context(), limit)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"requests": records,
		"count":    len(records),
	})
}

// RequestStats handles GET /api/requests/stats
func (h *Handlers) RequestStats(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeDetail(w, http.StatusNotFound, "audit log disabled")
		return
	}

	counts, err := h.db.OperationCounts(r.Context())
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"operations": counts})
}

func relaxParam(r *http.Request) bool {
	v := r.URL.Query().Get("relax_no_number")
	return v == "true" || v == "1"
}

func writeKMZ(w http.ResponseWriter, result *service.KMZResult) {
	w.Header().Set("Content-Type", kmzContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	if len(result.Failed) > 0 {
		failed := make([]string, 0, len(result.Failed))
		for _, t := range result.Failed {
			failed = append(failed, t.Canonical())
		}
		w.Header().Set("X-Failed-Tokens", strings.Join(failed, ","))
	}
	w.Write(result.Data)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoParcels):
		writeDetail(w, http.StatusNotFound, "No parcels found for the given input.")
	case errors.Is(err, service.ErrUpstream):
		writeDetail(w, http.StatusBadGateway, err.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, err.Error())
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
