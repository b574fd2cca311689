package center

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/console/internal/platform/auth"
	"github.com/ehr/console/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/centers", auth.RequireRole(auth.RoleReceptionist, auth.RoleAccountant, auth.RoleDoctor, auth.RoleSuperconsultant))
	read.GET("", h.ListCenters)
	read.GET("/:id", h.GetCenter)
	read.GET("/:id/discounts", h.ListDiscounts)
	read.GET("/:id/quote", h.Quote)

	write := api.Group("/centers", auth.RequireRole(auth.RoleAdmin))
	write.POST("", h.CreateCenter)
	write.PUT("/:id", h.UpdateCenter)
	write.DELETE("/:id", h.DeleteCenter)
	write.POST("/:id/discounts", h.CreateDiscount)
	write.PUT("/:id/discounts/:rule_id", h.UpdateDiscount)
	write.DELETE("/:id/discounts/:rule_id", h.DeleteDiscount)
}

// centerInput is the writable part of a center. Active defaults to true.
type centerInput struct {
	Name               string  `json:"name"`
	Code               string  `json:"code"`
	Address            *string `json:"address"`
	Phone              *string `json:"phone"`
	Active             *bool   `json:"active"`
	ConsultationFee    float64 `json:"consultation_fee"`
	RegistrationFee    float64 `json:"registration_fee"`
	SuperconsultantFee float64 `json:"superconsultant_fee"`
	ReassignmentFee    float64 `json:"reassignment_fee"`
	Currency           string  `json:"currency"`
}

func (in centerInput) center() *Center {
	c := &Center{
		Name:               in.Name,
		Code:               in.Code,
		Address:            in.Address,
		Phone:              in.Phone,
		Active:             true,
		ConsultationFee:    in.ConsultationFee,
		RegistrationFee:    in.RegistrationFee,
		SuperconsultantFee: in.SuperconsultantFee,
		ReassignmentFee:    in.ReassignmentFee,
		Currency:           in.Currency,
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
	return c
}

// -- Center Handlers --

func (h *Handler) CreateCenter(c echo.Context) error {
	var in centerInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctr := in.center()
	if err := h.svc.CreateCenter(c.Request().Context(), ctr); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, ctr)
}

func (h *Handler) GetCenter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctr, err := h.svc.GetCenter(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ctr)
}

func (h *Handler) ListCenters(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Query: c.QueryParam("q")}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid active")
		}
		f.Active = &active
	}
	items, total, err := h.svc.ListCenters(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateCenter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in centerInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctr := in.center()
	ctr.ID = id
	if err := h.svc.UpdateCenter(c.Request().Context(), ctr); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ctr)
}

func (h *Handler) DeleteCenter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteCenter(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Discount Handlers --

type discountInput struct {
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	Value      float64    `json:"value"`
	AppliesTo  string     `json:"applies_to"`
	Active     *bool      `json:"active"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

func (in discountInput) rule() *DiscountRule {
	d := &DiscountRule{
		Name:       in.Name,
		Kind:       in.Kind,
		Value:      in.Value,
		AppliesTo:  in.AppliesTo,
		Active:     true,
		ValidFrom:  in.ValidFrom,
		ValidUntil: in.ValidUntil,
	}
	if in.Active != nil {
		d.Active = *in.Active
	}
	return d
}

func (h *Handler) CreateDiscount(c echo.Context) error {
	centerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in discountInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d := in.rule()
	d.CenterID = centerID
	if err := h.svc.CreateDiscount(c.Request().Context(), d); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDiscounts(c echo.Context) error {
	centerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListDiscounts(c.Request().Context(), centerID)
	if err != nil {
		return mapError(err)
	}
	if items == nil {
		items = []*DiscountRule{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateDiscount(c echo.Context) error {
	id, err := uuid.Parse(c.Param("rule_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule_id")
	}
	var in discountInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d := in.rule()
	d.ID = id
	if err := h.svc.UpdateDiscount(c.Request().Context(), d); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDiscount(c echo.Context) error {
	id, err := uuid.Parse(c.Param("rule_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule_id")
	}
	if err := h.svc.DeleteDiscount(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Quote prices ?category= at the center, at ?at= (RFC 3339) or now.
func (h *Handler) Quote(c echo.Context) error {
	centerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var at time.Time
	if v := c.QueryParam("at"); v != "" {
		if at, err = time.Parse(time.RFC3339, v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid at: want RFC 3339")
		}
	}
	q, err := h.svc.QuoteFee(c.Request().Context(), centerID, c.QueryParam("category"), at)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, q)
}

func mapError(err error) error {
	var v ValidationError
	switch {
	case errors.As(err, &v):
		return echo.NewHTTPError(http.StatusBadRequest, v.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrInactive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
