package center

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func assertHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError with %d, got %v", code, err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func TestHandler_CreateCenter(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"name":"North Wing","code":"nw-1","consultation_fee":400}`
	req := httptest.NewRequest(http.MethodPost, "/centers", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateCenter(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got Center
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Code != "NW-1" || !got.Active || got.Currency != "INR" {
		t.Errorf("unexpected center %+v", got)
	}
}

func TestHandler_CreateCenter_Invalid(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/centers", strings.NewReader(`{"code":"NW"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	assertHTTPStatus(t, h.CreateCenter(c), http.StatusBadRequest)
}

func TestHandler_GetCenter(t *testing.T) {
	h, svc, e := newTestHandler()
	ctr := seedCenter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(ctr.ID.String())
	if err := h.GetCenter(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	assertHTTPStatus(t, h.GetCenter(c), http.StatusNotFound)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	assertHTTPStatus(t, h.GetCenter(c), http.StatusBadRequest)
}

func TestHandler_ListCenters_ActiveFilter(t *testing.T) {
	h, svc, e := newTestHandler()
	seedCenter(t, svc)
	closed := &Center{Name: "Old Annex", Code: "ANNEX"}
	if err := svc.CreateCenter(context.Background(), closed); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/centers?active=true", nil)
	rec := httptest.NewRecorder()
	if err := h.ListCenters(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Data  []Center `json:"data"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 1 || len(body.Data) != 1 || body.Data[0].Code != "MAIN" {
		t.Errorf("unexpected listing %+v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/centers?active=maybe", nil)
	assertHTTPStatus(t, h.ListCenters(e.NewContext(req, httptest.NewRecorder())), http.StatusBadRequest)
}

func TestHandler_Discounts(t *testing.T) {
	h, svc, e := newTestHandler()
	ctr := seedCenter(t, svc)

	body := `{"name":"Senior citizen","kind":"percentage","value":25,"applies_to":"consultation"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(ctr.ID.String())
	if err := h.CreateDiscount(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(ctr.ID.String())
	if err := h.ListDiscounts(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rules []DiscountRule
	if err := json.Unmarshal(rec.Body.Bytes(), &rules); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rules) != 1 || !rules[0].Active || rules[0].CenterID != ctr.ID {
		t.Errorf("unexpected rules %+v", rules)
	}
}

func TestHandler_Quote(t *testing.T) {
	h, svc, e := newTestHandler()
	ctr := seedCenter(t, svc)
	if err := svc.CreateDiscount(context.Background(), &DiscountRule{
		CenterID: ctr.ID, Name: "Flat", Kind: KindFlat, Value: 50, Active: true,
	}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?category=consultation&at=2024-06-01T10:00:00Z", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(ctr.ID.String())
	if err := h.Quote(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var q Quote
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if q.Net != 450 || q.Discount != 50 {
		t.Errorf("unexpected quote %+v", q)
	}

	for _, tt := range []struct {
		query string
		code  int
	}{
		{"/?category=consultation&at=yesterday", http.StatusBadRequest},
		{"/?category=pharmacy", http.StatusBadRequest},
	} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.query, nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(ctr.ID.String())
		assertHTTPStatus(t, h.Quote(c), tt.code)
	}
}

func TestHandler_Quote_InactiveCenter(t *testing.T) {
	h, svc, e := newTestHandler()
	ctr := seedCenter(t, svc)
	ctr.Active = false
	if err := svc.UpdateCenter(context.Background(), ctr); err != nil {
		t.Fatal(err)
	}

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?category=consultation", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(ctr.ID.String())
	assertHTTPStatus(t, h.Quote(c), http.StatusConflict)
}

func TestHandler_DeleteCenter(t *testing.T) {
	h, svc, e := newTestHandler()
	ctr := seedCenter(t, svc)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(ctr.ID.String())
	if err := h.DeleteCenter(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
