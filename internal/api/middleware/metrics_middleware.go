package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// MetricsMiddleware 以 chi 的路由樣板當 label, 避免 id 造成高基數
func MetricsMiddleware(m *metrics.ServerMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recoder := &StatusRecoder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(recoder, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = r.Method + " " + rctx.RoutePattern()
			}
			m.ObserveRequest(route, strconv.Itoa(recoder.Status()), float64(time.Since(start).Milliseconds()))
		})
	}
}
