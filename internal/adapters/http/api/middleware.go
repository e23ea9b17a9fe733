package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/streetwise/pkg/metrics"
)

// statusRecorder remembers what a handler answered: the status and, for
// failures, the code it reported to the client.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// tagFailure labels the response for the error counters. Outside instrument
// it does nothing.
func tagFailure(w http.ResponseWriter, code string) {
	if rec, ok := w.(*statusRecorder); ok {
		rec.code = code
	}
}

// instrument counts requests to endpoint by method and status, and failures
// by the code the handler tagged (action_rejected, score_rejected, cooldown,
// rate_limited, ...).
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(time.Since(start).Microseconds())/1000)

		if rec.status < http.StatusBadRequest {
			return
		}
		code := rec.code
		if code == "" {
			code = "client_error"
			if rec.status >= http.StatusInternalServerError {
				code = "internal_error"
			}
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, code)
		metrics.RecordErrorByComponent("http", code)
	}
}
