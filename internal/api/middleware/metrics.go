// metrics.go — Prometheus метрики boltshare.
// HTTP-метрики: bs_http_requests_total, bs_http_request_duration_seconds.
// Бизнес-метрики (bs_files_total, bs_operations_total и др.) экспортируются
// для обновления из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bs_http_requests_total",
			Help: "Общее количество HTTP-запросов к boltshare",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bs_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к boltshare в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (обновляются из сервисного слоя)
var (
	// FilesTotal — текущее количество записей в хранилище (gauge).
	FilesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bs_files_total",
			Help: "Текущее количество записей о файлах",
		},
	)

	// OperationsTotal — общее количество операций ядра.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bs_operations_total",
			Help: "Общее количество операций ingest/resolve/notify/download",
		},
		[]string{"operation", "result"},
	)

	// NotificationsTotal — результаты отправки уведомлений.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bs_notifications_total",
			Help: "Общее количество попыток отправки уведомлений",
		},
		[]string{"result"},
	)

	// StorageInconsistenciesTotal — записи, чей blob отсутствует или повреждён.
	StorageInconsistenciesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bs_storage_inconsistencies_total",
			Help: "Общее количество обнаруженных расхождений метаданных и blob-ов",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем идентификаторы на {id} для предотвращения кардинальности)
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

// normalizePath заменяет сегменты-идентификаторы пути на {id} для
// предотвращения взрывного роста кардинальности метрик.
// /a1b2c3d4-... → /{id}, /download/a1b2c3d4-... → /download/{id}
func normalizePath(path string) string {
	switch {
	case path == "/health/live", path == "/health/ready", path == "/metrics",
		path == "/upload", path == "/send":
		return path
	case strings.HasPrefix(path, "/download/"):
		return "/download/{id}"
	case path == "/":
		return "/"
	default:
		// Всё остальное — GET /{uuid}
		return "/{id}"
	}
}
