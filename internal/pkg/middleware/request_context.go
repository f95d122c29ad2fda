package middleware

import (
	"github.com/AminderM/Magic-33-sub001/internal/pkg/requestcontext"
	"github.com/labstack/echo/v4"
)

// RequestIDMiddleware makes sure every request carries an X-Request-ID and
// stores it on both the echo context and the request context.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := requestcontext.FromEchoContext(c)

			c.Set(string(requestcontext.RequestIDKey), id)
			ctx := requestcontext.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			return next(c)
		}
	}
}
