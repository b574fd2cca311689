package billing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/console/internal/platform/auth"
	"github.com/ehr/console/internal/platform/export"
	"github.com/ehr/console/internal/platform/upstream"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reports := api.Group("/reports/billing", auth.RequireRole(auth.RoleAccountant, auth.RoleReceptionist))
	reports.GET("/:report", h.Report)
}

// Report serves one of the billing reports as JSON, or as CSV with
// ?format=csv.
func (h *Handler) Report(c echo.Context) error {
	from, to, err := export.Range(c, h.svc.Location())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f := Filter{From: from, To: to, CenterID: c.QueryParam("center_id")}
	ctx := c.Request().Context()
	name := c.Param("report")

	var (
		body  interface{}
		table *export.Table
	)
	switch name {
	case ReportCancellations:
		rep, err := h.svc.Cancellations(ctx, f)
		if err != nil {
			return mapError(err)
		}
		body, table = rep, h.rowTable(rep.Rows)
	case ReportRefunds:
		rep, err := h.svc.Refunds(ctx, f)
		if err != nil {
			return mapError(err)
		}
		body, table = rep, h.rowTable(rep.Rows)
	case ReportDiscounts:
		rep, err := h.svc.Discounts(ctx, f)
		if err != nil {
			return mapError(err)
		}
		body, table = rep, h.rowTable(rep.Rows)
	case ReportCollections:
		rep, err := h.svc.Collections(ctx, f)
		if err != nil {
			return mapError(err)
		}
		body, table = rep, collectionTable(rep)
	case ReportCategories:
		rep, err := h.svc.Categories(ctx, f)
		if err != nil {
			return mapError(err)
		}
		body, table = rep, categoryTable(rep)
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown report: "+name)
	}

	if export.Wants(c) {
		return export.Send(c, name, table)
	}
	return c.JSON(http.StatusOK, body)
}

var rowHeader = []string{
	"Date", "Patient ID", "Patient", "UHID", "Invoice", "Type", "Category", "Status",
	"Payment Mode", "Amount", "Paid", "Refunded", "Discount", "Discount Reason", "Outstanding",
}

func (h *Handler) rowTable(rows []BillRow) *export.Table {
	t := &export.Table{Header: rowHeader}
	for _, r := range rows {
		var day string
		if r.CreatedAt != nil {
			day = export.Date(*r.CreatedAt, h.svc.Location())
		}
		t.Append(day, r.PatientID, r.PatientName, r.UHID, r.InvoiceNumber, r.Type, r.Category, r.Status,
			r.PaymentMode, export.Money(r.Amount), export.Money(r.Paid), export.Money(r.Refunded),
			export.Money(r.Discount), r.DiscountReason, export.Money(r.Outstanding))
	}
	return t
}

func collectionTable(rep *CollectionReport) *export.Table {
	t := &export.Table{Header: []string{"Group", "Key", "Count", "Amount"}}
	for _, m := range rep.ByMode {
		t.Append("mode", m.Mode, strconv.Itoa(m.Count), export.Money(m.Amount))
	}
	for _, d := range rep.ByDay {
		t.Append("day", d.Day, strconv.Itoa(d.Count), export.Money(d.Amount))
	}
	t.Append("total", "", "", export.Money(rep.Total))
	return t
}

func categoryTable(rep *CategoryReport) *export.Table {
	t := &export.Table{Header: []string{"Category", "Count", "Billed", "Collected", "Outstanding"}}
	for _, c := range append(rep.Categories, rep.Totals) {
		t.Append(c.Category, export.Int(c.Count), export.Money(c.Billed), export.Money(c.Collected), export.Money(c.Outstanding))
	}
	return t
}

func mapError(err error) error {
	if errors.Is(err, upstream.ErrUnavailable) {
		return echo.NewHTTPError(http.StatusBadGateway, "hospital backend unavailable").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
