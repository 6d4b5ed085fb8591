// Пакет config — загрузка и валидация конфигурации boltshare
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации boltshare.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Базовый URL сервиса, из него собираются публичные ссылки
	// (без завершающего "/")
	BaseURL string
	// Путь к директории хранения blob-ов и attr.json
	DataDir string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64

	// SMTP-релей для уведомлений
	SMTPHost string
	SMTPPort int
	// Учётные данные SMTP (PLAIN auth включается, если заданы оба)
	SMTPUsername string
	SMTPPassword string
	// Таймаут одной попытки отправки письма
	NotifyTimeout time.Duration

	// Срок хранения файлов для reaper
	RetentionTTL time.Duration
	// Интервал запуска reaper (0 — выключен; хранилище растёт неограниченно)
	ReaperInterval time.Duration
	// Интервал фоновой сверки хранилища (0 — выключена)
	ReconcileInterval time.Duration
	// Проверять контрольные суммы при сверке (дорого на больших файлах)
	ReconcileVerify bool

	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// BS_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("BS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("BS_PORT: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("BS_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// BS_BASE_URL — обязательный
	baseURL, err := getEnvRequired("BS_BASE_URL")
	if err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(baseURL, "/")

	// BS_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("BS_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// BS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 5 MiB)
	maxFileSize, err := getEnvInt64("BS_MAX_FILE_SIZE", 5*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("BS_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("BS_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// BS_SMTP_HOST — обязательный
	cfg.SMTPHost, err = getEnvRequired("BS_SMTP_HOST")
	if err != nil {
		return nil, err
	}

	// BS_SMTP_PORT — порт SMTP-релея (по умолчанию 587)
	cfg.SMTPPort, err = getEnvInt("BS_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("BS_SMTP_PORT: %w", err)
	}

	// BS_SMTP_USERNAME / BS_SMTP_PASSWORD — опциональные
	cfg.SMTPUsername = getEnvDefault("BS_SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvDefault("BS_SMTP_PASSWORD", "")

	// BS_NOTIFY_TIMEOUT — таймаут отправки письма (по умолчанию 15s)
	cfg.NotifyTimeout, err = getEnvDuration("BS_NOTIFY_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BS_NOTIFY_TIMEOUT: %w", err)
	}

	// BS_RETENTION_TTL — срок хранения (по умолчанию 24h, как в UI-тексте)
	cfg.RetentionTTL, err = getEnvDuration("BS_RETENTION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("BS_RETENTION_TTL: %w", err)
	}

	// BS_REAPER_INTERVAL — интервал reaper (по умолчанию 0 = выключен)
	cfg.ReaperInterval, err = getEnvDuration("BS_REAPER_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("BS_REAPER_INTERVAL: %w", err)
	}

	// BS_RECONCILE_INTERVAL — интервал сверки (по умолчанию 6h)
	cfg.ReconcileInterval, err = getEnvDuration("BS_RECONCILE_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("BS_RECONCILE_INTERVAL: %w", err)
	}

	// BS_RECONCILE_VERIFY — проверка контрольных сумм при сверке (по умолчанию false)
	cfg.ReconcileVerify, err = getEnvBool("BS_RECONCILE_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("BS_RECONCILE_VERIFY: %w", err)
	}

	// Таймауты HTTP-сервера
	cfg.HTTPReadTimeout, err = getEnvDuration("BS_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BS_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("BS_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BS_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("BS_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BS_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// BS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("BS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// BS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("BS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("BS_LOG_LEVEL: %w", err)
	}

	// BS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("BS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("BS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
