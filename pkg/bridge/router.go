package bridge

import (
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/logger"
	hmetrics "github.com/joeydtaylor/steeze-bridge/pkg/middleware/metrics"
	httpx "github.com/joeydtaylor/steeze-bridge/pkg/transport/httpx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type BuildDeps struct {
	Bridge      http.Handler
	LogMW       *logger.Middleware
	RateLimit   func(http.Handler) http.Handler
	Router      httpx.Router
	Service     string
	Tracer      trace.TracerProvider
	MetricsSkip []string
}

// BuildRouter mounts the bridge on every method and path. Nothing else is
// served on the public listener.
func BuildRouter(d BuildDeps) http.Handler {
	r := d.Router
	r.Use(chimd.RequestID, chimd.Recoverer)
	if d.LogMW != nil {
		r.Use(d.LogMW.Middleware())
	}
	r.Use(hmetrics.Collect(hmetrics.SkipPaths(d.MetricsSkip...)))
	if d.RateLimit != nil {
		r.Use(d.RateLimit)
	}

	r.HandleAll(d.Bridge)

	service := d.Service
	if service == "" {
		service = "bridge"
	}
	tp := d.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return otelhttp.NewHandler(r.Mux(), service,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithSpanNameFormatter(spanName),
	)
}

// spanName leaves the path out; every path is forwarded, so it is unbounded.
func spanName(_ string, r *http.Request) string {
	return "HTTP " + r.Method
}

// BuildAdminRouter serves /metrics and /ping for the side listener.
func BuildAdminRouter(r httpx.Router, metrics http.Handler) http.Handler {
	r.Use(chimd.Recoverer, chimd.Heartbeat("/ping"))
	r.Get("/metrics", metrics)
	return r.Mux()
}
