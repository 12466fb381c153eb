package doctor

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
	// Directory reads are public.
	api.GET("/doctors", h.List)
	api.GET("/doctors/specialties", h.Specialties)
	api.GET("/doctors/:id", h.Get)

	write := api.Group("", auth.RequireRole(auth.RoleDoctor))
	write.POST("/doctors/profile", h.CreateProfile)
	write.GET("/doctors/me", h.Me)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), ListFilter{
		Specialty: c.QueryParam("specialty"),
		Query:     c.QueryParam("q"),
		Limit:     pg.Limit,
		Offset:    pg.Offset,
	})
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Specialties(c echo.Context) error {
	out, err := h.svc.Specialties(c.Request().Context())
	if err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"specialties": out})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id", "invalid doctor id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Me(c echo.Context) error {
	caller := auth.Caller(c)
	d, err := h.svc.ForUser(c.Request().Context(), caller.ID)
	if err != nil {
		return err
	}
	if d == nil {
		return apperr.NotFound("doctor profile", caller.ID.String())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) CreateProfile(c echo.Context) error {
	var req CreateProfileRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	d, created, err := h.svc.CreateProfile(c.Request().Context(), auth.Caller(c), req)
	if err != nil {
		return err
	}
	if created {
		return c.JSON(http.StatusCreated, d)
	}
	return c.JSON(http.StatusOK, d)
}
