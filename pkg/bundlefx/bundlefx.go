// Package bundlefx groups the middleware providers every bridge process needs.
package bundlefx

import (
	"net/http"

	"github.com/joeydtaylor/steeze-bridge/pkg/config"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/ratelimit"
	"go.uber.org/fx"
)

// Module provides *zap.Logger, *logger.Middleware, the named "metrics"
// handler and the named "ratelimit" middleware (nil when disabled).
var Module = fx.Options(
	logger.Module,
	fx.Provide(fx.Annotate(metrics.ProvideMetrics, fx.ResultTags(`name:"metrics"`))),
	fx.Provide(fx.Annotate(ProvideRateLimit, fx.ResultTags(`name:"ratelimit"`))),
)

func ProvideRateLimit(cfg config.Config) func(http.Handler) http.Handler {
	return ratelimit.Limit(ratelimit.Config{
		RequestLimit: cfg.RateLimit.Requests,
		WindowSize:   cfg.RateLimitWindow(),
	})
}
