package prescription

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireAuthenticated())
	read.GET("/prescriptions", h.List)
	read.POST("/prescriptions/:id/refills", h.RequestRefill)

	write := api.Group("", auth.RequireRole(auth.RoleDoctor))
	write.POST("/prescriptions", h.Create)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	p, err := h.svc.Create(c.Request().Context(), auth.Caller(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.ListForPatient(c.Request().Context(), auth.Caller(c))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}

func (h *Handler) RequestRefill(c echo.Context) error {
	var in RefillInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	in.PrescriptionID = c.Param("id")
	r, err := h.svc.RequestRefill(c.Request().Context(), auth.Caller(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}
