package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// ReadOnly rejects every request that is not a read. Batch property
// lookups use POST but change nothing, so they are let through.
func ReadOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isReadOnlyRequest(r) {
			WriteError(w, http.StatusForbidden, "write operations are not allowed on a read-only endpoint")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isReadOnlyRequest(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	case http.MethodPost:
		return r.URL.Path == HostPropertiesPath()
	default:
		return false
	}
}

// RequestLogger logs one line per request with its status and duration
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := middleware.GetReqID(r.Context())
			reqLogger := logger.With().Str("request_id", reqID).Logger()
			r = r.WithContext(reqLogger.WithContext(r.Context()))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			reqLogger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// Metrics records request counts and durations
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)
	})
}
