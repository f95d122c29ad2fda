package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/AminderM/Magic-33-sub001/internal/utils"
	"github.com/labstack/echo/v4"
)

const (
	APIKeyHeader = "X-API-Key"
)

// ValidateAPIKey rejects requests whose X-API-Key does not match one of
// keys. With no keys configured every request is let through.
func ValidateAPIKey(keys ...string) echo.MiddlewareFunc {
	allowed := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed = append(allowed, k)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(allowed) == 0 {
				return next(c)
			}

			apiKey := c.Request().Header.Get(APIKeyHeader)
			if apiKey == "" {
				return utils.ErrorResponseHandler(c, http.StatusUnauthorized, "API key is required")
			}

			for _, k := range allowed {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(k)) == 1 {
					return next(c)
				}
			}
			return utils.ErrorResponseHandler(c, http.StatusUnauthorized, "Invalid API key")
		}
	}
}
