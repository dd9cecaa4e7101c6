// Package admin implements the translator's operator-facing HTTP surface:
// plain JSON introspection endpoints over the translator state, a
// gRPC-health-checking endpoint for orchestrators, and the Prometheus
// scrape endpoint, all riding one h2c-wrapped server. Grounded on
// cmd/gobfd/main.go's newGRPCServer/newMetricsServer split and
// internal/server/server.go's thin-adapter shape, collapsed onto
// net/http+encoding/json since the spec.md introspection surface has no
// wire-format requirement of its own (unlike the BFD gRPC API it
// replaces).
package admin

import (
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/grpchealth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/hurdlab/pfinet/internal/translator"
)

// HealthServiceName is reported SERVING by the gRPC health endpoint once
// the translator has finished startup.
const HealthServiceName = "pfinet.v1.Translator"

// ReloadFunc re-reads the configuration file and applies any change
// that can be applied without recreating interfaces (spec.md's SIGHUP
// analogue). Returns an error describing why reload was refused.
type ReloadFunc func() error

// New builds the admin HTTP handler: JSON introspection under /v1,
// gRPC health checking, and a Prometheus scrape endpoint. The handler is
// wrapped with h2c so health-check clients that speak HTTP/2 without TLS
// (the same requirement gobfdctl had against gobfd's gRPC endpoint) are
// served without a separate listener.
func New(ctx *translator.Context, reg prometheus.Gatherer, metricsPath string, reload ReloadFunc, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "admin"))

	h := &handlers{ctx: ctx, reloadFn: reload, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/interfaces", h.listInterfaces)
	mux.HandleFunc("GET /v1/interfaces/{name}", h.getInterface)
	mux.HandleFunc("GET /v1/sockets", h.listSockets)
	mux.HandleFunc("GET /v1/captab/stats", h.captabStats)
	mux.HandleFunc("POST /v1/reload", h.reload)

	checker := grpchealth.NewStaticChecker(
		grpchealth.HealthV1ServiceName,
		HealthServiceName,
	)
	mux.Handle(grpchealth.NewHandler(checker))

	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return recoveryMiddleware(logger, loggingMiddleware(logger, h2c.NewHandler(mux, &http2.Server{})))
}

// loggingMiddleware logs every admin request with its method, path,
// status, and duration, the net/http analogue of
// internal/server/interceptors.go's LoggingInterceptor.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		duration := time.Since(start)

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Duration("duration", duration),
		}
		if sw.status >= 400 {
			logger.LogAttrs(r.Context(), slog.LevelWarn, "admin request completed with error", attrs...)
		} else {
			logger.LogAttrs(r.Context(), slog.LevelInfo, "admin request completed", attrs...)
		}
	})
}

// recoveryMiddleware recovers from panics in admin handlers, the
// net/http analogue of internal/server/interceptors.go's
// RecoveryInterceptor.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(r.Context(), "panic recovered in admin handler",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
				)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter captures the status code written by a handler, since
// http.ResponseWriter does not expose it after the fact.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
