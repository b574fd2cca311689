package patient

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/console/internal/domain/billingstatus"
	"github.com/ehr/console/internal/platform/auth"
	"github.com/ehr/console/internal/platform/export"
	"github.com/ehr/console/internal/platform/upstream"
	"github.com/ehr/console/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleSuperconsultant, auth.RoleReceptionist))
	read.GET("/assignments", h.ListAssignments)
	read.GET("/assignments/overview", h.Overview)
	read.GET("/patients/:id/status", h.GetStatus)
	read.POST("/patients/:id/viewed", h.MarkViewed)

	billing := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleAccountant, auth.RoleDoctor))
	billing.GET("/reassignment-requests", h.ListReassignmentRequests)
}

var assignmentCSVHeader = []string{
	"Patient ID", "Name", "Phone", "UHID", "Doctor", "Status", "Appointment", "Reassigned", "Viewed",
}

func (h *Handler) ListAssignments(c echo.Context) error {
	ctx := c.Request().Context()
	view, ok := ParseView(c.QueryParam("role"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be doctor or superconsultant")
	}
	if view == ViewSuperconsultant && !auth.HasRole(ctx, auth.RoleSuperconsultant, auth.RoleReceptionist) {
		return echo.NewHTTPError(http.StatusForbidden, "superconsultant view not permitted")
	}

	from, to, err := export.Range(c, h.svc.Location())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f := AssignmentFilter{
		View:     view,
		StaffID:  c.QueryParam("staff_id"),
		CenterID: c.QueryParam("center_id"),
		From:     from,
		To:       to,
		Today:    c.QueryParam("date") == "today",
		Status:   billingstatus.Label(c.QueryParam("status")),
		Query:    c.QueryParam("q"),
		UserID:   auth.UserIDFromContext(ctx),
	}
	// Doctors and superconsultants only ever see their own patients.
	if !auth.HasRole(ctx, auth.RoleReceptionist) {
		f.StaffID = auth.StaffIDFromContext(ctx)
		if f.StaffID == "" {
			return echo.NewHTTPError(http.StatusForbidden, "no staff id bound to this user")
		}
	}

	csv := export.Wants(c)
	pg := pagination.FromContext(c)
	if !csv {
		f.Limit, f.Offset = pg.Limit, pg.Offset
	}
	items, total, err := h.svc.ListAssignments(ctx, f)
	if err != nil {
		return mapError(err)
	}
	if csv {
		tbl := &export.Table{Header: assignmentCSVHeader}
		for _, a := range items {
			tbl.Append(a.PatientID, a.Name, a.Phone, a.UHID, a.DoctorName, string(a.Status),
				a.AppointmentDisplay, strconv.FormatBool(a.Reassigned), strconv.FormatBool(a.Viewed))
		}
		return export.Send(c, string(view)+"_assignments", tbl)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Overview(c echo.Context) error {
	ov, err := h.svc.Overview(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ov)
}

func (h *Handler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := h.svc.GetStatus(ctx, c.Param("id"), auth.UserIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) MarkViewed(c echo.Context) error {
	ctx := c.Request().Context()
	at, err := h.svc.MarkViewed(ctx, c.Param("id"), auth.UserIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient_id": c.Param("id"),
		"viewed":     true,
		"viewed_at":  at,
	})
}

func (h *Handler) ListReassignmentRequests(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID := c.QueryParam("doctor_id")
	if !auth.HasRole(ctx, auth.RoleReceptionist, auth.RoleAccountant) {
		doctorID = auth.StaffIDFromContext(ctx)
	}
	pendingOnly := strings.EqualFold(c.QueryParam("pending"), "true")
	reqs, err := h.svc.ListReassignmentRequests(ctx, doctorID, pendingOnly)
	if err != nil {
		return mapError(err)
	}
	if export.Wants(c) {
		tbl := &export.Table{Header: []string{"Request ID", "Patient ID", "Patient", "Doctor ID", "Status", "Total", "Paid", "Pending"}}
		for _, r := range reqs {
			tbl.Append(r.ID, r.PatientID, r.PatientName, r.DoctorID, r.Status,
				export.Money(r.Total.Float()), export.Money(r.Paid.Float()), strconv.FormatBool(r.Pending))
		}
		return export.Send(c, "reassignment_requests", tbl)
	}
	pg := pagination.FromContext(c)
	start, end := pg.Bounds(len(reqs))
	return c.JSON(http.StatusOK, pagination.NewResponse(reqs[start:end], len(reqs), pg.Limit, pg.Offset))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, upstream.ErrUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "hospital backend unavailable").SetInternal(err)
	case isValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
