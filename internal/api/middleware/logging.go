// logging.go — структурное логирование HTTP-запросов boltshare.
// Каждый запрос пишется одной записью slog после завершения обработки,
// с нормализованным маршрутом (см. normalizePath) вместе с сырым путём,
// чтобы по логам можно было группировать одноразовые ссылки.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// loggingResponseWriter фиксирует статус-код и объём отданных байт.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lw.ResponseWriter.Write(b)
	lw.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (lw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}

// levelForStatus: 5xx — ERROR, 4xx — WARN, остальное — INFO.
// 404 по одноразовой ссылке — штатная ситуация, поэтому не ERROR.
func levelForStatus(code int) slog.Level {
	switch {
	case code >= 500:
		return slog.LevelError
	case code >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger возвращает middleware логирования запросов.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(lw, r)

			logger.LogAttrs(r.Context(), levelForStatus(lw.statusCode), "Запрос обработан",
				slog.String("method", r.Method),
				slog.String("route", normalizePath(r.URL.Path)),
				slog.String("path", r.URL.Path),
				slog.Int("status", lw.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", lw.written),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
