package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/bulkpromo/internal/repository"
	"github.com/utafrali/bulkpromo/internal/service"
	"github.com/utafrali/bulkpromo/pkg/httputil"
	"github.com/utafrali/bulkpromo/pkg/pagination"
	"github.com/utafrali/bulkpromo/pkg/validator"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxBodyBytes         = 1 << 20
)

// BulkCodeHandler handles HTTP requests for bulk code endpoints.
type BulkCodeHandler struct {
	service *service.BulkCodeService
	logger  *slog.Logger
}

// NewBulkCodeHandler creates a new bulk code HTTP handler.
func NewBulkCodeHandler(svc *service.BulkCodeService, logger *slog.Logger) *BulkCodeHandler {
	return &BulkCodeHandler{
		service: svc,
		logger:  logger,
	}
}

// Validate handles POST /api/v1/bulk-codes/validate. The result is returned
// as data whether or not the input is valid.
func (h *BulkCodeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}
	t, s := req.toDomain()
	httputil.WriteData(w, http.StatusOK, h.service.Validate(t, s))
}

// Preview handles POST /api/v1/bulk-codes/preview
func (h *BulkCodeHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}
	t, s := req.toDomain()

	res, err := h.service.Preview(r.Context(), t, s)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writePreview(w, r, res)
}

// Generate handles POST /api/v1/bulk-codes/generate
func (h *BulkCodeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}
	t, s := req.toDomain()

	res, err := h.service.Generate(r.Context(), t, s, r.Header.Get(idempotencyKeyHeader))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeGenerate(w, r, res)
}

// Suggest handles POST /api/v1/bulk-codes/suggestions
func (h *BulkCodeHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req SuggestionRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, h.service.Suggest(r.Context(), req.toDomain()))
}

// ListBatches handles GET /api/v1/bulk-codes/batches
func (h *BulkCodeHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	filter := repository.BatchFilter{Page: params.Page, PerPage: params.PerPage}
	if typ := r.URL.Query().Get("type"); typ != "" {
		filter.Type = &typ
	}

	batches, total, err := h.service.ListBatches(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(batches, total, params))
}

// GetBatch handles GET /api/v1/bulk-codes/batches/{id}
func (h *BulkCodeHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	batch, err := h.service.GetBatch(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, batch)
}

func decodeBulkRequest(w http.ResponseWriter, r *http.Request) (BulkCodeRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req BulkCodeRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return req, false
	}
	return req, true
}

func writePreview(w http.ResponseWriter, r *http.Request, res *service.PreviewResult) {
	if !res.Validation.Valid {
		httputil.WriteRuleViolations(w, r, res.Validation.Errors)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

func writeGenerate(w http.ResponseWriter, r *http.Request, res *service.GenerateResult) {
	if res.Receipt == nil {
		errs := res.Validation.Errors
		if len(errs) == 0 {
			errs = []string{"generation produced no batch"}
		}
		httputil.WriteRuleViolations(w, r, errs)
		return
	}
	if res.Replayed {
		w.Header().Set(replayedHeader, "true")
		httputil.WriteData(w, http.StatusOK, res)
		return
	}
	httputil.WriteData(w, http.StatusCreated, res)
}
