package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the period over which Max applies.
	Window time.Duration
	// TrustForwardHeader keys clients by X-Forwarded-For / X-Real-IP instead
	// of the socket address. Enable only behind a trusted proxy.
	TrustForwardHeader bool
}

// RateLimit returns a middleware that limits each client IP to cfg.Max
// requests per cfg.Window using an in-memory store. Responses carry the
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers;
// rejected requests get a JSON 429.
func RateLimit(cfg RateLimitConfig) Middleware {
	rate := limiter.Rate{
		Period: cfg.Window,
		Limit:  int64(cfg.Max),
	}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          "storefront",
		CleanUpInterval: 2 * cfg.Window,
	})
	lim := limiter.New(store, rate, limiter.WithTrustForwardHeader(cfg.TrustForwardHeader))

	mw := stdlib.NewMiddleware(lim,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			zctx.From(r.Context()).Error("Rate limiter failed", zap.Error(err))
			WriteError(w, http.StatusInternalServerError, "internal server error")
		}),
	)
	return mw.Handler
}
