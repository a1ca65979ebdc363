package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dormbooks_entries_posted_total",
		Help: "Ledger entries posted, by source.",
	}, []string{"source"})

	paymentsAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dormbooks_payments_allocated_total",
		Help: "Payments committed through the allocator.",
	})

	staleCommits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dormbooks_stale_commits_total",
		Help: "Allocation commits rejected because the plan was stale.",
	})
)

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytes += n
	return n, err
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r)

		status := lrw.status
		if status == 0 {
			status = http.StatusOK
		}
		s.log.LogAttrs(r.Context(), slog.LevelInfo, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", lrw.bytes),
			slog.Duration("duration", time.Since(start).Round(time.Millisecond)),
		)
	})
}
