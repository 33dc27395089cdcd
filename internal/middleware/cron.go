package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CronSecret guards the scheduler-facing sync trigger. The caller must
// send "Authorization: Bearer <secret>". An empty secret leaves the route
// open, which is only acceptable in development.
func CronSecret(secret string) echo.MiddlewareFunc {
	if secret == "" {
		return passThrough
	}
	want := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got, ok := bearer(c.Request())
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}
