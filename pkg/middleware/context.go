package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
)

// HeaderCorrelationID lets callers choose the correlation id reported back on responses
const HeaderCorrelationID = "X-Correlation-ID"

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = appctx.SetRequestID(ctx, requestID)
			if correlationID := req.Header.Get(HeaderCorrelationID); correlationID != "" {
				ctx = appctx.SetCorrelationID(ctx, correlationID)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
