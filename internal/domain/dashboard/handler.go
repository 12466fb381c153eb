package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/telehealth/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireAuthenticated())
	g.GET("", h.Dashboard)
	g.GET("/patient", h.Patient)
	g.GET("/doctor", h.Doctor, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) Dashboard(c echo.Context) error {
	view, err := h.svc.ForCaller(c.Request().Context(), auth.Caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Patient(c echo.Context) error {
	view, err := h.svc.Patient(c.Request().Context(), auth.Caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Doctor(c echo.Context) error {
	view, err := h.svc.Doctor(c.Request().Context(), auth.Caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
