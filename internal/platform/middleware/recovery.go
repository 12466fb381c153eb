package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth/internal/platform/auth"
)

// Recovery turns a handler panic into a 500 and logs the stack with enough
// request context to find the caller.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				rid, _ := c.Get("request_id").(string)
				evt := logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack())
				if id := auth.Caller(c); !id.IsZero() {
					evt = evt.Str("caller_id", id.ID.String())
				}
				evt.Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong. Please try again.")
			}()
			return next(c)
		}
	}
}
