package middleware

import (
	"crypto/subtle"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/autobrr/botmon/pkg/logger"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"
)

// IsAuthenticated checks the X-API-Token header, the Authorization header or
// the apikey query param. An empty apiKey disables the check.
func IsAuthenticated(apiKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-API-Token")
			if token == "" {
				token = r.Header.Get("Authorization")
			}
			if token == "" {
				// check query param like ?apikey=TOKEN
				token = r.URL.Query().Get("apikey")
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CorrelationIDHeader is the name of the HTTP Header which contains a correlation ID.
// Exported so that it can be changed by developers
var CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID is a middleware that injects a correlation ID into the context of each request.
// A correlation ID is an alphanumeric string.
func CorrelationID(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = xid.New().String()
		}
		// set response header
		w.Header().Set(CorrelationIDHeader, id)

		next.ServeHTTP(w, r.WithContext(logger.WithCorrelationID(r.Context(), id)))
	}
	return http.HandlerFunc(fn)
}

func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		l := logger.GetWithCtx(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		r = r.WithContext(l.WithContext(r.Context()))

		defer func() {
			// Recover and record stack traces in case of a panic
			if rec := recover(); rec != nil {
				l.Error().
					Str("type", "error").
					Timestamp().
					Interface("recover_info", rec).
					Bytes("debug_stack", debug.Stack()).
					Msg("log system error")

				http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}

			l.Trace().
				Str("type", "access").
				Str("method", r.Method).
				Str("url", r.URL.RequestURI()).
				Str("user_agent", r.UserAgent()).
				Str("remote_ip", r.RemoteAddr).
				Int("status_code", ww.Status()).
				Int64("bytes_in", r.ContentLength).
				Int("bytes_out", ww.BytesWritten()).
				Dur("elapsed_ms", time.Since(start)).
				Msg("incoming request")
		}()

		next.ServeHTTP(ww, r)
	})
}
