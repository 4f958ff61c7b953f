package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"sales-dashboard/internal/analytics"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const version = "2.0.0"

// Data changes on upload, so clients revalidate every time.
var noCache = map[string]string{"Cache-Control": "no-cache"}

type APIHandlers struct {
	dataset        *services.Dataset
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewAPIHandlers(dataset *services.Dataset, logger *slog.Logger, maxUploadBytes int64) *APIHandlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = ingest.DefaultMaxUploadBytes
	}
	return &APIHandlers{
		dataset:        dataset,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

// filtered parses the filter query and reports a validation error itself
// when it cannot.
func (h *APIHandlers) filtered(w http.ResponseWriter, r *http.Request) (analytics.Filter, bool) {
	f, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return analytics.Filter{}, false
	}
	return f, true
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccessWithHeaders(w, h.dataset.Summary(r.Context(), f), noCache)
}

func (h *APIHandlers) HandleCustomers(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccessWithHeaders(w, h.dataset.CustomersView(r.Context(), f), noCache)
}

func (h *APIHandlers) HandleCustomer(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filtered(w, r)
	if !ok {
		return
	}

	code := r.PathValue("code")
	detail, found := h.dataset.Customer(r.Context(), code, f)
	if !found {
		h.fail(w, r, errors.NotFound("Customer not found").WithDetails("no customer %q in the selected data", code))
		return
	}
	errors.WriteSuccessWithHeaders(w, detail, noCache)
}

func (h *APIHandlers) HandleProducts(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccessWithHeaders(w, h.dataset.ProductsView(r.Context(), f), noCache)
}

func (h *APIHandlers) HandleBundles(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccessWithHeaders(w, h.dataset.Bundles(r.Context(), f), noCache)
}

func (h *APIHandlers) HandleRegions(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filtered(w, r)
	if !ok {
		return
	}
	errors.WriteSuccessWithHeaders(w, h.dataset.RegionsView(r.Context(), f), noCache)
}

func (h *APIHandlers) HandleCityView(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filtered(w, r)
	if !ok {
		return
	}

	kind, err := services.ParseCityKind(r.PathValue("kind"))
	if err != nil {
		h.fail(w, r, errors.BadRequestWrap(err, "Unknown city view").WithDetails("kind must be products or customers"))
		return
	}

	view, err := h.dataset.CityView(r.Context(), r.PathValue("governorate"), r.PathValue("city"), kind, f)
	if err != nil {
		h.fail(w, r, errors.InternalWrap(err, "Failed to build city view"))
		return
	}
	errors.WriteSuccessWithHeaders(w, view, noCache)
}

func (h *APIHandlers) HandleCategories(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filtered(w, r)
	if !ok {
		return
	}
	customer := r.URL.Query().Get("customer")
	errors.WriteSuccessWithHeaders(w, h.dataset.Categories(r.Context(), customer, f), noCache)
}

type uploadResponse struct {
	Metadata ingest.Metadata `json:"metadata"`
	Skipped  int             `json:"skipped"`
	Format   string          `json:"format,omitempty"`
}

// HandleUpload accepts an xlsx, CSV or JSON export either as the "file"
// field of a multipart form or as the raw request body, and replaces the
// dataset once it is stored.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	res, err := h.decodeUpload(r.Context(), r)
	if err != nil {
		h.fail(w, r, h.uploadError(err))
		return
	}

	format, err := h.dataset.Replace(r.Context(), res.Records)
	if err != nil {
		h.fail(w, r, errors.Storage(err, "Failed to store the uploaded data"))
		return
	}

	h.logger.Info("dataset uploaded",
		"batch_id", res.Metadata.BatchID,
		"records", res.Metadata.TotalRecords,
		"skipped", res.Skipped,
		"format", format,
		"duration", time.Since(start),
		"request_id", observability.GetRequestID(r.Context()),
	)
	errors.WriteSuccess(w, uploadResponse{Metadata: res.Metadata, Skipped: res.Skipped, Format: string(format)})
}

func (h *APIHandlers) decodeUpload(ctx context.Context, r *http.Request) (ingest.Result, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return ingest.Decode(ctx, uploadName(r.URL.Query().Get("filename"), mediaType), r.Body)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return ingest.Result{}, err
	}
	for {
		part, err := mr.NextPart()
		if stderrors.Is(err, io.EOF) {
			return ingest.Result{}, errors.Validation("Missing upload").WithDetails("the form has no file field")
		}
		if err != nil {
			return ingest.Result{}, err
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		defer part.Close()
		return ingest.Decode(ctx, uploadName(part.FileName(), mediaTypeOf(part.Header.Get("Content-Type"))), part)
	}
}

// uploadName returns name when it has an extension, else one derived from
// the content type.
func uploadName(name, mediaType string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	switch mediaType {
	case "application/json":
		return "upload.json"
	case "text/csv", "application/csv":
		return "upload.csv"
	case xlsxMediaType:
		return "upload.xlsx"
	default:
		return name
	}
}

const xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func mediaTypeOf(contentType string) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	return mediaType
}

func (h *APIHandlers) uploadError(err error) error {
	var appErr *errors.AppError
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &appErr):
		return appErr
	case stderrors.As(err, &tooLarge):
		return errors.PayloadTooLarge("Upload too large").WithDetails("limit is %d bytes", tooLarge.Limit)
	case stderrors.Is(err, ingest.ErrUnsupportedFormat):
		return errors.BadRequestWrap(err, "Unsupported file format").WithDetails("upload an .xlsx, .csv or .json export")
	case stderrors.Is(err, ingest.ErrEmpty):
		return errors.ValidationWrap(err, "No valid records found")
	case stderrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.CodeBadRequest, "Upload cancelled")
	default:
		return errors.BadRequestWrap(err, "Could not read the upload").WithDetails("%v", err)
	}
}

func (h *APIHandlers) HandleClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.dataset.Clear(r.Context()); err != nil {
		h.fail(w, r, errors.Storage(err, "Failed to clear stored data"))
		return
	}
	h.logger.Info("dataset cleared", "request_id", observability.GetRequestID(r.Context()))
	errors.WriteSuccess(w, map[string]bool{"cleared": true})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
	}
	errors.WriteSuccessWithHeaders(w, healthData, map[string]string{"Cache-Control": "no-store"})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dataset.Stats(r.Context()))
}

// parseFilter reads start, end, governorate and city from the query.
func parseFilter(r *http.Request) (analytics.Filter, error) {
	q := r.URL.Query()
	return newFilter(q.Get("start"), q.Get("end"), q.Get("governorate"), q.Get("city"))
}

// newFilter validates raw filter values. Dates use YYYY-MM-DD; a range whose
// start is after its end is rejected.
func newFilter(start, end, governorate, city string) (analytics.Filter, error) {
	f := analytics.Filter{Governorate: governorate, City: city}

	var err error
	if f.StartDate, err = queryDate(start, "start"); err != nil {
		return f, err
	}
	if f.EndDate, err = queryDate(end, "end"); err != nil {
		return f, err
	}
	if f.HasDateRange() && f.StartDate.After(f.EndDate) {
		return f, errors.Validation("Invalid date range").WithDetails("start %s is after end %s", f.StartDate, f.EndDate)
	}
	return f, nil
}

func queryDate(value, param string) (models.Date, error) {
	if value == "" {
		return models.Date{}, nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return models.Date{}, errors.ValidationWrap(err, "Invalid date").WithDetails("%s must be YYYY-MM-DD, got %q", param, value)
	}
	return models.DateOf(t), nil
}
