// Package ratelimit is the optional per-client limiter in front of the bridge.
package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// Config holds configuration for rate limiting middleware.
type Config struct {
	// RequestLimit is the maximum number of requests allowed in the window
	RequestLimit int
	// WindowSize is the time window for rate limiting
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key from the request.
	// If nil, defaults to IP-based rate limiting
	KeyFunc func(r *http.Request) (string, error)
}

// Limit returns the httprate sliding-window middleware, or nil when
// RequestLimit is not positive. A limited request never reaches the core.
func Limit(cfg Config) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		return nil
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.WindowSize.Seconds())))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
}
