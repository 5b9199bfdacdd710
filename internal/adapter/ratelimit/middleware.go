package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// limitedBody has the same shape as the API's other error responses.
type limitedBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Middleware rejects callers over the limit with 429. The client key is
// the remote IP, so the router must resolve proxy headers first. Limiter
// errors are logged and the request goes through.
func Middleware(limiter Limiter, logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		key := ctx.Operation().OperationID + ":" + clientIP(ctx.RemoteAddr())

		allowed, retryAfter, err := limiter.Allow(ctx.Context(), key)
		if err != nil {
			logger.WarnContext(ctx.Context(), "rate limiter unavailable, allowing request",
				"operation", ctx.Operation().OperationID,
				"error", err,
			)
			next(ctx)
			return
		}
		if allowed {
			next(ctx)
			return
		}

		logger.InfoContext(ctx.Context(), "request rate limited",
			"operation", ctx.Operation().OperationID,
			"retry_after", retryAfter,
		)
		ctx.SetHeader("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		ctx.SetHeader("Content-Type", "application/json")
		ctx.SetStatus(http.StatusTooManyRequests)
		if err := json.NewEncoder(ctx.BodyWriter()).Encode(limitedBody{
			Error:   "Too many attempts",
			Message: "Too many attempts. Please try again later.",
		}); err != nil {
			logger.WarnContext(ctx.Context(), "writing rate limit response failed", "error", err)
		}
	}
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
