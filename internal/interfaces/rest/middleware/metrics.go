package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fincore/xs2a-consent-gateway/internal/metrics"
	"github.com/fincore/xs2a-consent-gateway/internal/routing"
)

// Metrics records per-request counters and durations labelled by service
// category rather than raw path, keeping the label cardinality bounded.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			category := routing.Classify(r.URL.Path)
			m.ObserveRequest(
				r.Method,
				string(category),
				strconv.Itoa(recorder.status),
				time.Since(start).Seconds(),
			)
		})
	}
}
