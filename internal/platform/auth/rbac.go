package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireAuthenticated rejects requests without a registered (non-anonymous) caller.
func RequireAuthenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !Caller(c).IsAuthenticated() {
				return echo.NewHTTPError(http.StatusUnauthorized, "You must be signed in to perform this action.")
			}
			return next(c)
		}
	}
}

// RequireRole returns middleware that checks if the caller has one of the
// specified roles. Admins pass every role check.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := Caller(c)
			if !id.IsAuthenticated() {
				return echo.NewHTTPError(http.StatusUnauthorized, "You must be signed in to perform this action.")
			}
			if id.IsAdmin() {
				return next(c)
			}
			for _, r := range roles {
				if id.Role == r {
					return next(c)
				}
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return echo.NewHTTPError(http.StatusForbidden, "required role: "+strings.Join(names, " or "))
		}
	}
}
