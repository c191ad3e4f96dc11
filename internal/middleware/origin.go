package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// AllowedOrigins rejects browser requests whose Origin header is not listed.
// Requests without an Origin header come from non-browser clients and pass.
// A "*" entry allows every origin.
func AllowedOrigins(origins []string) echo.MiddlewareFunc {
	allowAll := slices.Contains(origins, "*")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin == "" || allowAll || slices.Contains(origins, origin) {
				return next(c)
			}
			FromContext(c.Request().Context()).Warn("Rejected cross-origin request", "origin", origin)
			return echo.NewHTTPError(http.StatusForbidden, "origin not allowed")
		}
	}
}
