package staff

import (
	"errors"
	"net/http"
	"strconv"

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
	read := api.Group("/staff", auth.RequireRole(auth.RoleReceptionist, auth.RoleAccountant, auth.RoleDoctor, auth.RoleSuperconsultant))
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := api.Group("/staff", auth.RequireRole(auth.RoleAdmin))
	write.POST("", h.Create)
	write.PUT("/:id", h.Update)
	write.DELETE("/:id", h.Delete)
	write.POST("/:id/activate", h.Activate)
	write.POST("/:id/deactivate", h.Deactivate)
}

type staffInput struct {
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          *string    `json:"phone"`
	Role           string     `json:"role"`
	CenterID       *uuid.UUID `json:"center_id"`
	Specialization *string    `json:"specialization"`
	UpstreamID     *string    `json:"upstream_id"`
	Active         *bool      `json:"active"`
}

func (in staffInput) staff() *Staff {
	m := &Staff{
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Role:           in.Role,
		CenterID:       in.CenterID,
		Specialization: in.Specialization,
		UpstreamID:     in.UpstreamID,
		Active:         true,
	}
	if in.Active != nil {
		m.Active = *in.Active
	}
	return m
}

func (h *Handler) Create(c echo.Context) error {
	var in staffInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m := in.staff()
	if err := h.svc.Create(c.Request().Context(), m); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, m)
}

// List supports ?role=, ?center_id=, ?active= and ?q= over name and email.
func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Role: c.QueryParam("role"), Query: c.QueryParam("q")}
	if v := c.QueryParam("center_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid center_id")
		}
		f.CenterID = &id
	}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid active")
		}
		f.Active = &active
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in staffInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m := in.staff()
	m.ID = id
	if err := h.svc.Update(c.Request().Context(), m); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Activate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Activate(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Deactivate(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func mapError(err error) error {
	var v ValidationError
	switch {
	case errors.As(err, &v):
		return echo.NewHTTPError(http.StatusBadRequest, v.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
