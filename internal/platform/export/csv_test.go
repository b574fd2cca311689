package export

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestWriteCSV(t *testing.T) {
	tbl := &Table{Header: []string{"name", "amount"}}
	tbl.Append("Asha, R", Money(1200))
	tbl.Append(`say "hi"`, Money(0.5))

	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "name,amount\n\"Asha, R\",1200.00\n\"say \"\"hi\"\"\",0.50\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteCSV_RaggedRow(t *testing.T) {
	tbl := &Table{Header: []string{"a", "b"}}
	tbl.Append("only-one")
	if err := WriteCSV(&bytes.Buffer{}, tbl); err == nil {
		t.Error("expected error for a short row")
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 5, 7, 0, time.UTC)
	if got := Filename("refunds", at); got != "refunds_20240601_090507.csv" {
		t.Errorf("unexpected filename %s", got)
	}
}

func TestDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	at := time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC)
	if got := Date(at, ist); got != "2024-06-01" {
		t.Errorf("expected local date 2024-06-01, got %s", got)
	}
	if Date(time.Time{}, ist) != "" {
		t.Error("zero time should render empty")
	}
}

func TestSend(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?format=csv", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if !Wants(c) {
		t.Fatal("expected csv to be requested")
	}
	tbl := &Table{Header: []string{"id"}}
	tbl.Append("p1")
	if err := Send(c, "assignments", tbl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("unexpected content type %s", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "assignments_") {
		t.Errorf("unexpected disposition %s", cd)
	}
	if rec.Body.String() != "id\np1\n" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}
