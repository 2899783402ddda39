package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// CronSecretHeader carries the shared secret on job trigger requests.
const CronSecretHeader = "x-cron-secret"

// CronSecret rejects requests whose header does not match secret.
// An empty secret rejects everything.
func CronSecret(secret string, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provided := c.Request().Header.Get(CronSecretHeader)
			if secret == "" || provided == "" ||
				subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				logger.Warn("rejected job trigger",
					"path", c.Path(),
					"remote_ip", c.RealIP(),
				)
				return c.JSON(http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			}
			return next(c)
		}
	}
}
