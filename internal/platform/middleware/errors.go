package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth/internal/platform/apperr"
)

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	Error                string `json:"error"`
	Code                 string `json:"code"`
	Field                string `json:"field,omitempty"`
	RequiresRegistration bool   `json:"requires_registration,omitempty"`
	RedirectTo           string `json:"redirect_to,omitempty"`
	RequestID            string `json:"request_id,omitempty"`
}

// ErrorHandler returns an echo.HTTPErrorHandler that renders apperr errors with
// their mapped status and echo errors with a generic code. Store failures are
// logged with their cause; the client only sees the generic message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		rid, _ := c.Get("request_id").(string)
		status, body := render(err)
		body.RequestID = rid

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("request_id", rid).Str("path", c.Request().URL.Path).Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Str("request_id", rid).Msg("write error response")
		}
	}
}

func render(err error) (int, ErrorResponse) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg := ae.Message
		if msg == "" {
			msg = http.StatusText(apperr.HTTPStatus(ae))
		}
		return apperr.HTTPStatus(ae), ErrorResponse{
			Error:                msg,
			Code:                 string(ae.Kind),
			Field:                ae.Field,
			RequiresRegistration: ae.RequiresRegistration,
			RedirectTo:           ae.RedirectTo,
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, ErrorResponse{Error: msg, Code: httpCode(he.Code)}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: "internal server error",
		Code:  "INTERNAL",
	}
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(apperr.KindValidation)
	case http.StatusUnauthorized:
		return string(apperr.KindUnauthenticated)
	case http.StatusForbidden:
		return string(apperr.KindForbidden)
	case http.StatusNotFound:
		return string(apperr.KindNotFound)
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusGatewayTimeout:
		return "TIMEOUT"
	default:
		if status >= 500 {
			return "INTERNAL"
		}
		return "HTTP_" + strconv.Itoa(status)
	}
}
