package assist

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
	g := api.Group("/assist", auth.RequireAuthenticated())
	g.POST("/summaries", h.Summarize)
}

func (h *Handler) Summarize(c echo.Context) error {
	var in SummarizeInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("body", "invalid request body")
	}
	out, err := h.svc.Summarize(c.Request().Context(), auth.Caller(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
