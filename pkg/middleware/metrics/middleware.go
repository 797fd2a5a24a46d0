package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collect records status, method and latency for every request it wraps.
func Collect(opts ...Option) func(next http.Handler) http.Handler {
	o := options{skip: map[string]bool{}}
	for _, fn := range opts {
		fn(&o)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			if o.skip[r.URL.Path] {
				return
			}
			uri := firstSegment(r)
			code := strconv.Itoa(ww.Status())
			totalHttpRequestsToUri.WithLabelValues(code, uri, r.Method).Inc()
			totalHttpRequests.WithLabelValues(code, r.Method).Inc()
			responseTime.Observe(time.Since(start).Seconds())
		})
	}
}

// ProvideMetrics is the Fx provider for the /metrics handler on the admin listener.
func ProvideMetrics() http.Handler { return promhttp.Handler() }
