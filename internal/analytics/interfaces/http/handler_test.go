package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xuri/excelize/v2"

	"charging-kpi/internal/analytics/application"
	"charging-kpi/internal/analytics/interfaces"
	"charging-kpi/internal/sessions/infrastructure/memory"
	"charging-kpi/internal/sessions/infrastructure/xlsx"
)

var workbookHeaders = []string{"Standortname", "Gestartet", "Beendet", "Verbrauch (kWh)", "Kosten", "Auth. Typ", "Provider"}

func buildWorkbook(t *testing.T, headers []string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func sampleWorkbook(t *testing.T) []byte {
	return buildWorkbook(t, workbookHeaders, [][]any{
		{"Alpha", "05.01.2024 08:00", "05.01.2024 10:00", "20", "8", "RFID", "EnBW"},
		{"Alpha", "03.02.2024 08:00", "03.02.2024 09:00", "10", "4", "App", "Shell"},
		{"Beta", "10.01.2024 12:00", "10.01.2024 13:00", "30", "12", "RFID", "EnBW"},
		{"Beta", "ungültig", "11.02.2024 14:00", "5", "2", "RFID", "EnBW"},
	})
}

func newHandler(t *testing.T) *Handler {
	t.Helper()
	cache, err := memory.NewCachingLoader(xlsx.NewLoader(), 4)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	svc, err := application.NewDashboardService(cache, application.Options{DefaultTopN: 10}, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	h, err := NewHandler(svc, 1<<20, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return h
}

func uploadRequest(t *testing.T, target string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "sessions.xlsx")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandler_Dashboard(t *testing.T) {
	h := newHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/dashboard?bucket=month&reducer=sum&portfolio=true&site=Alpha&site=Beta", sampleWorkbook(t)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view application.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Sessions != 3 || view.Empty {
		t.Fatalf("unexpected view sessions=%d empty=%v", view.Sessions, view.Empty)
	}
	if len(view.Warnings.InvalidRows) != 1 || view.Warnings.InvalidRows[0].Row != 5 {
		t.Fatalf("expected sheet row 5 invalid, got %+v", view.Warnings.InvalidRows)
	}
	// Alpha Jan, Alpha Feb, Beta Jan plus 2 portfolio points.
	if len(view.Trend) != 5 {
		t.Fatalf("expected 5 trend points, got %d", len(view.Trend))
	}
	if view.DatasetName != "sessions.xlsx" {
		t.Fatalf("unexpected dataset name %q", view.DatasetName)
	}
}

func TestHandler_EmptySelection(t *testing.T) {
	h := newHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/dashboard?sites=none", sampleWorkbook(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view application.View
	_ = json.Unmarshal(rec.Body.Bytes(), &view)
	if !view.Empty || !view.Warnings.EmptyResult {
		t.Fatalf("expected empty result signal")
	}
}

func TestHandler_MissingColumns(t *testing.T) {
	h := newHandler(t)
	data := buildWorkbook(t, []string{"Standortname", "Gestartet", "Provider"}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/dashboard", data))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.Reason != "missing_columns" || len(resp.Columns) != 3 {
		t.Fatalf("unexpected error response %+v", resp)
	}
}

func TestHandler_BadRequests(t *testing.T) {
	h := newHandler(t)
	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"no source", httptest.NewRequest(http.MethodPost, "/api/v1/dashboard", nil), http.StatusBadRequest},
		{"bad kpi", uploadRequest(t, "/api/v1/dashboard?kpi=watts", sampleWorkbook(t)), http.StatusBadRequest},
		{"bad flag", uploadRequest(t, "/api/v1/dashboard?portfolio=maybe", sampleWorkbook(t)), http.StatusBadRequest},
		{"wrong method", httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), http.StatusMethodNotAllowed},
		{"unknown path", httptest.NewRequest(http.MethodPost, "/api/v1/other", nil), http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, tc.req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
	}
}

func TestHandler_FetchByURL(t *testing.T) {
	data := sampleWorkbook(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer server.Close()

	h := newHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/dashboard?url="+server.URL+"/export.xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Exports(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/dashboard/export.xlsx", sampleWorkbook(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != interfaces.ContentTypeXLSX {
		t.Fatalf("unexpected xlsx content type %q", rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, "/api/v1/dashboard/export.pdf", sampleWorkbook(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != interfaces.ContentTypePDF {
		t.Fatalf("unexpected pdf content type %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf body")
	}
}
