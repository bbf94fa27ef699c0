// metrics.go — Prometheus HTTP метрики.
// Регистрирует метрики: ah_http_requests_total, ah_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ah_http_requests_total",
			Help: "Общее количество HTTP-запросов к Assethub",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ah_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Assethub в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// graphqlOperationsTotal — количество GraphQL-операций по имени.
	graphqlOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ah_graphql_operations_total",
			Help: "Общее количество GraphQL-операций",
		},
		[]string{"operation", "status"},
	)
)

// ObserveGraphQLOperation увеличивает счётчик GraphQL-операций.
// operation — operationName запроса (или "anonymous"),
// status — "ok" или "error".
func ObserveGraphQLOperation(operation, status string) {
	if operation == "" {
		operation = "anonymous"
	}
	graphqlOperationsTotal.WithLabelValues(operation, status).Inc()
}

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath сводит пути к фиксированному набору лейблов,
// чтобы не раздувать кардинальность метрик произвольными путями.
func normalizePath(path string) string {
	switch path {
	case "/graphql", "/health/live", "/health/ready", "/metrics":
		return path
	}
	return "other"
}
