// Package export writes report tables as CSV downloads and reads the date
// range query the report endpoints share.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Table is a header plus rows, ready to be written as CSV.
type Table struct {
	Header []string
	Rows   [][]string
}

// Append adds a row.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// WriteCSV writes the table to w. Rows shorter or longer than the header are
// rejected so a download is never silently misaligned.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("csv export: write header: %w", err)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("csv export: row %d has %d cells, want %d", i, len(row), len(t.Header))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv export: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename builds "<base>_<yyyymmdd_hhmmss>.csv".
func Filename(base string, at time.Time) string {
	return fmt.Sprintf("%s_%s.csv", base, at.UTC().Format("20060102_150405"))
}

// Send streams the table as an attachment.
func Send(c echo.Context, base string, t *Table) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", Filename(base, time.Now())))
	c.Response().WriteHeader(http.StatusOK)
	return WriteCSV(c.Response(), t)
}

// Wants reports whether the request asked for CSV via ?format=csv.
func Wants(c echo.Context) bool {
	return c.QueryParam("format") == "csv"
}

// Money formats an amount with two decimals.
func Money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Int formats an integer cell.
func Int(v int) string {
	return strconv.Itoa(v)
}

// Date formats t in loc as yyyy-mm-dd, or "" for the zero time.
func Date(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02")
}
