package appointment

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
	"github.com/carelink/telehealth/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:id/availability", h.Availability)

	// Booking checks the caller itself so anonymous users get the
	// registration redirect instead of a bare 401.
	api.POST("/appointments", h.Book)

	read := api.Group("", auth.RequireAuthenticated())
	read.GET("/appointments", h.List)
	read.GET("/appointments/:id", h.Get)
	read.POST("/appointments/:id/cancel", h.Cancel)

	doc := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doc.POST("/appointments/:id/complete", h.Complete)
}

func (h *Handler) Book(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	a, err := h.svc.Book(c.Request().Context(), auth.Caller(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMine(c.Request().Context(), auth.Caller(c), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id", "invalid appointment id")
	}
	a, err := h.svc.Get(c.Request().Context(), auth.Caller(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id", "invalid appointment id")
	}
	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	a, err := h.svc.Complete(c.Request().Context(), auth.Caller(c), id, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id", "invalid appointment id")
	}
	a, err := h.svc.Cancel(c.Request().Context(), auth.Caller(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Availability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id", "invalid doctor id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return apperr.Validation("date", "date is required")
	}
	av, err := h.svc.Availability(c.Request().Context(), id, date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, av)
}
