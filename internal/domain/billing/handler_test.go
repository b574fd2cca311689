package billing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/console/internal/platform/upstream"
)

func newTestHandler() (*Handler, *mockPatients, *echo.Echo) {
	svc, src := newTestService()
	return NewHandler(svc), src, echo.New()
}

func reportContext(e *echo.Echo, report, query string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/billing/"+report+query, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("report")
	c.SetParamValues(report)
	return c, rec
}

func TestHandler_Report_JSON(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := reportContext(e, ReportRefunds, "")
	if err := h.Report(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rep RowReport
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Count != 2 || rep.Total != 400 {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestHandler_Report_DateRange(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := reportContext(e, ReportCancellations, "?from=2024-06-01&to=2024-06-01")
	if err := h.Report(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"count":0`) {
		t.Errorf("cancellation on 06-02 must be outside 06-01: %s", rec.Body.String())
	}
}

func TestHandler_Report_CSV(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := reportContext(e, ReportCategories, "?format=csv")
	if err := h.Report(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("expected header, 5 categories and a total, got %q", rec.Body.String())
	}
	if lines[4] != "superconsultant,2,1200.00,600.00,600.00" {
		t.Errorf("unexpected superconsultant row %q", lines[4])
	}
	if lines[6] != "total,7,2450.00,1350.00,700.00" {
		t.Errorf("unexpected total row %q", lines[6])
	}
}

func TestHandler_Report_RowsCSV(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := reportContext(e, ReportDiscounts, "?format=csv")
	if err := h.Report(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "2024-06-01,p1,Asha Rao") {
		t.Errorf("unexpected csv %q", rec.Body.String())
	}
}

func TestHandler_Report_CollectionsCSV(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := reportContext(e, ReportCollections, "?format=csv")
	if err := h.Report(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "mode,cash,2,550.00") || !strings.HasSuffix(rec.Body.String(), "total,,,1350.00\n") {
		t.Errorf("unexpected csv %q", rec.Body.String())
	}
}

func TestHandler_Report_Unknown(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := reportContext(e, "payroll", "")
	err := h.Report(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Report_BadRange(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := reportContext(e, ReportRefunds, "?from=june")
	err := h.Report(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Report_UpstreamDown(t *testing.T) {
	h, src, e := newTestHandler()
	src.err = upstream.ErrUnavailable
	c, _ := reportContext(e, ReportCollections, "")
	err := h.Report(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
}
