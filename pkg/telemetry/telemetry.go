// Package telemetry provides low-overhead request instrumentation for the
// HTTP surface. Every request gets an id and a duration histogram sample;
// only requests slower than the threshold are logged individually.
package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"m5chat/pkg/logger"
)

var (
	requestCtr    uint64
	slowThreshold = 200 * time.Millisecond

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "m5chat_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware wraps next with request timing. Socket upgrades pass through
// untouched; their lifetime is not a request duration.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		reqID := genRequestID()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		requestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		if elapsed >= slowThreshold {
			logger.Warn("slow_request", "request_id", reqID, "method", r.Method,
				"path", r.URL.Path, "status", rec.status, "elapsed", elapsed.String())
		}
	})
}

func genRequestID() string {
	n := atomic.AddUint64(&requestCtr, 1)
	return fmt.Sprintf("req-%d-%d", time.Now().UnixNano(), n)
}
