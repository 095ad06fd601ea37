package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// rateLimitAuth limits auth operations per client IP.
// Returns 429 Too Many Requests when the limit is exceeded.
func (s *Server) rateLimitAuth(ctx huma.Context, next func(huma.Context)) {
	key := clientInfo(ctx.Context()).IPAddress
	if !s.authRateLimiter.Allow(key) {
		s.logger.Warn("rate limit exceeded",
			"ip", key,
			"path", ctx.URL().Path,
		)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}
	next(ctx)
}
