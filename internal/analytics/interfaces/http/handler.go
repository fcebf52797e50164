package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"charging-kpi/internal/analytics/application"
	"charging-kpi/internal/analytics/interfaces"
	"charging-kpi/internal/observability/logging"
	"charging-kpi/internal/observability/metrics"
	sessions "charging-kpi/internal/sessions/domain"
)

const (
	dashboardPath  = "/api/v1/dashboard"
	exportXLSXPath = "/api/v1/dashboard/export.xlsx"
	exportPDFPath  = "/api/v1/dashboard/export.pdf"

	defaultMaxUploadBytes = 32 << 20
	noSitesValue          = "none"
)

var errUploadTooLarge = errors.New("dashboard: upload too large")

// Handler provides dashboard HTTP endpoints.
type Handler struct {
	service        *application.DashboardService
	maxUploadBytes int64
	logger         *zap.Logger
	now            func() time.Time
}

// NewHandler constructs a handler.
func NewHandler(service *application.DashboardService, maxUploadBytes int64, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("dashboard handler: nil service")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logging.OrNop(logger),
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// ServeHTTP handles /api/v1/dashboard and its export routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case dashboardPath, exportXLSXPath, exportPDFPath:
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case exportXLSXPath:
		h.handleExport(w, r, "xlsx")
	case exportPDFPath:
		h.handleExport(w, r, "pdf")
	default:
		h.handleDashboard(w, r)
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.buildView(w, r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport(format, result, time.Since(start))
	}()

	view, err := h.buildView(w, r)
	if err != nil {
		result = metrics.ResultError
		h.respondError(w, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = interfaces.BuildKPIReportPDF(view, h.now())
		contentType = interfaces.ContentTypePDF
	default:
		data, err = interfaces.BuildKPIReportXLSX(view, h.now())
		contentType = interfaces.ContentTypeXLSX
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Error("report export failed", zap.String("format", format), zap.Error(err))
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "kpi-report."+format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) buildView(w http.ResponseWriter, r *http.Request) (*application.View, error) {
	src, err := h.readSource(w, r)
	if err != nil {
		return nil, err
	}
	in, err := queryInput(r)
	if err != nil {
		return nil, err
	}
	query, err := h.service.ParseQuery(in)
	if err != nil {
		return nil, err
	}
	ds, err := h.service.Load(r.Context(), src)
	if err != nil {
		return nil, err
	}
	return h.service.View(r.Context(), ds, query)
}

// readSource takes the workbook from the multipart "file" field, or else the "url" value.
func (h *Handler) readSource(w http.ResponseWriter, r *http.Request) (sessions.Source, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
			return sessions.Source{}, uploadError(err)
		}
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return sessions.Source{}, uploadError(err)
			}
			return sessions.Source{Name: header.Filename, Data: data}, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return sessions.Source{}, uploadError(err)
		}
	} else if err := r.ParseForm(); err != nil {
		return sessions.Source{}, uploadError(err)
	}

	url := strings.TrimSpace(r.FormValue("url"))
	if url == "" {
		return sessions.Source{}, sessions.ErrEmptySource
	}
	return sessions.Source{Name: url, URL: url}, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errUploadTooLarge
	}
	return fmt.Errorf("%w: %v", application.ErrInvalidQuery, err)
}

func queryInput(r *http.Request) (application.QueryInput, error) {
	form := r.Form
	in := application.QueryInput{
		From:    form.Get("from"),
		To:      form.Get("to"),
		KPI:     form.Get("kpi"),
		Bucket:  form.Get("bucket"),
		Reducer: form.Get("reducer"),
		TopN:    form.Get("top_n"),
	}
	if strings.EqualFold(strings.TrimSpace(form.Get("sites")), noSitesValue) {
		in.NoSites = true
	} else {
		in.Sites = form["site"]
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"portfolio", &in.Portfolio},
		{"cumulative", &in.Cumulative},
		{"rows", &in.IncludeRows},
	}
	for _, flag := range flags {
		value := strings.TrimSpace(form.Get(flag.name))
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return application.QueryInput{}, fmt.Errorf("%w: %s must be a boolean", application.ErrInvalidQuery, flag.name)
		}
		*flag.dst = parsed
	}
	return in, nil
}

type errorResponse struct {
	Error   string   `json:"error"`
	Reason  string   `json:"reason,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if loadErr, ok := sessions.AsLoadError(err); ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   loadErr.Error(),
			Reason:  string(loadErr.Reason),
			Columns: loadErr.Columns,
		})
		return
	}
	switch {
	case errors.Is(err, errUploadTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	case errors.Is(err, application.ErrInvalidQuery), errors.Is(err, sessions.ErrEmptySource):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("dashboard request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
