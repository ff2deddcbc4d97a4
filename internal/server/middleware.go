package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// echoRequestID sends the id assigned by middleware.RequestID back to the
// caller in the X-Request-ID header.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// RequestID returns the id middleware.RequestID stored in ctx.
func RequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// requestLogger writes one line per request and puts a request-scoped
// logger into the context, where the repository picks it up.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		log := s.log.With().Str("request_id", RequestID(r.Context())).Logger()
		next.ServeHTTP(ww, r.WithContext(log.WithContext(r.Context())))

		log.HTTPEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
