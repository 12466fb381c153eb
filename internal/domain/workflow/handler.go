package workflow

import (
	"net/http"

	"github.com/google/uuid"
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
	g := api.Group("", auth.RequireAuthenticated())
	g.POST("/consultations", h.Join)
	g.POST("/messages", h.PostMessage)
	g.GET("/appointments/:id/messages", h.Messages)
	g.POST("/documents", h.UploadDocument)
	g.GET("/documents", h.Documents)
	g.POST("/reminders", h.MarkReminderSent)
}

func (h *Handler) Join(c echo.Context) error {
	var in JoinInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("body", "Invalid consultation request.")
	}
	out, err := h.svc.JoinConsultation(c.Request().Context(), auth.Caller(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"sessionUrl": out.SessionURL})
}

func (h *Handler) PostMessage(c echo.Context) error {
	var in MessageInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("body", "Invalid message data.")
	}
	m, err := h.svc.PostMessage(c.Request().Context(), auth.Caller(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Messages(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("id", "invalid appointment id")
	}
	out, err := h.svc.Messages(c.Request().Context(), auth.Caller(c), id)
	if err != nil {
		return err
	}
	if out == nil {
		out = []*Message{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": out})
}

func (h *Handler) UploadDocument(c echo.Context) error {
	var in DocumentInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("body", "Invalid document data.")
	}
	d, err := h.svc.UploadDocument(c.Request().Context(), auth.Caller(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Documents(c echo.Context) error {
	out, err := h.svc.Documents(c.Request().Context(), auth.Caller(c))
	if err != nil {
		return err
	}
	if out == nil {
		out = []*Document{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": out})
}

func (h *Handler) MarkReminderSent(c echo.Context) error {
	var in ReminderInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("body", "Invalid reminder payload.")
	}
	r, err := h.svc.MarkReminderSent(c.Request().Context(), auth.Caller(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}
