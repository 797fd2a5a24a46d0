package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-bridge/pkg/message"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-bridge/pkg/middleware/ratelimit"
	"github.com/joeydtaylor/steeze-bridge/pkg/port"
	"github.com/joeydtaylor/steeze-bridge/pkg/transport/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func echoRouter(t *testing.T, rl func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	core, ok := port.LookupCore("echo")
	require.True(t, ok)
	l := port.NewLocal(core, 16)
	require.NoError(t, l.Start(t.Context()))
	t.Cleanup(func() { _ = l.Stop() })

	b, _ := newTestBridge(t, l)
	l.OnMessage(b.Deliver)
	return BuildRouter(BuildDeps{
		Bridge:    b,
		LogMW:     logger.NewMiddleware(zaptest.NewLogger(t)),
		RateLimit: rl,
		Router:    httpx.NewChi(),
	})
}

func TestRouterPassesEveryMethodAndPath(t *testing.T) {
	h := echoRouter(t, nil)

	cases := []struct{ method, target string }{
		{http.MethodGet, "/"},
		{http.MethodDelete, "/things/1"},
		{http.MethodPatch, "/metrics"},
		{http.MethodGet, "/ping"},
		{"PROPFIND", "/dav/folder"},
		{http.MethodOptions, "/any?q=1"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.method+" "+tc.target, rec.Body.String())
		})
	}
}

func TestRouterRateLimitAnswersBeforeCore(t *testing.T) {
	h := echoRouter(t, ratelimit.Limit(ratelimit.Config{RequestLimit: 1, WindowSize: time.Minute}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/one", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/two", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestAdminRouter(t *testing.T) {
	h := BuildAdminRouter(httpx.NewChi(), metrics.ProvideMetrics())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	metrics.ObserveExchange("completed", 0)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bridge_exchanges_total"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterTracesExchangeIntoCore(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := newFakePort()
	b, _ := newTestBridge(t, p)
	h := BuildRouter(BuildDeps{Bridge: b, Router: httpx.NewChi(), Tracer: tp})

	// the client's trace continues through the bridge to the core
	r := httptest.NewRequest(http.MethodPut, "/orders/7", nil)
	r.Header.Set("Traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	c := serveAsync(h, r)
	sent := p.next(t)
	b.Deliver(message.Response{ID: sent.ID, Status: http.StatusAccepted})
	assert.Equal(t, http.StatusAccepted, c.wait(t).Code)

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	sc := spans[0].SpanContext
	assert.Equal(t, "HTTP PUT", spans[0].Name)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())
	assert.Equal(t, "00-"+sc.TraceID().String()+"-"+sc.SpanID().String()+"-01", sent.Headers["Traceparent"])
}

func TestRouterForwardsTraceparentWithoutPropagator(t *testing.T) {
	p := newFakePort()
	b, _ := newTestBridge(t, p)
	h := BuildRouter(BuildDeps{Bridge: b, Router: httpx.NewChi()})

	const tp = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Traceparent", tp)
	c := serveAsync(h, r)
	sent := p.next(t)
	b.Deliver(message.Response{ID: sent.ID, Status: http.StatusOK})
	c.wait(t)

	assert.Equal(t, tp, sent.Headers["Traceparent"])
}
