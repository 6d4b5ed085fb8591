// Точка входа boltshare — сервиса одноразового обмена файлами.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/bigkaa/boltshare/internal/api/handlers"
	"github.com/bigkaa/boltshare/internal/api/middleware"
	"github.com/bigkaa/boltshare/internal/config"
	"github.com/bigkaa/boltshare/internal/mail"
	"github.com/bigkaa/boltshare/internal/server"
	"github.com/bigkaa/boltshare/internal/service"
	"github.com/bigkaa/boltshare/internal/storage/blobstore"
	"github.com/bigkaa/boltshare/internal/storage/recordstore"
)

func main() {
	// .env для локальной разработки; в проде переменные задаёт окружение
	_ = godotenv.Load()

	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("boltshare запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("base_url", cfg.BaseURL),
		slog.String("data_dir", cfg.DataDir),
	)

	// --- Инициализация компонентов ---

	// 1. Blob store
	blobs, err := blobstore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации blob store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. In-memory индекс записей, восстановление из attr.json
	records := recordstore.New(cfg.DataDir, logger)
	if err := records.BuildFromDir(); err != nil {
		logger.Error("Ошибка построения индекса записей", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.FilesTotal.Set(float64(records.Count()))

	// 3. Отправитель уведомлений
	mailer, err := mail.NewMailer(cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации SMTP-клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Сервисы
	shareSvc := service.NewShareService(cfg, blobs, records, mailer, logger)
	downloadSvc := service.NewDownloadService(blobs, records, logger)

	// 5. Фоновые процессы
	ctx := context.Background()

	// 5.1 Reaper — очистка устаревших файлов (по умолчанию выключен)
	var reaperSvc *service.ReaperService
	if cfg.ReaperInterval > 0 {
		reaperSvc = service.NewReaperService(blobs, records, cfg.RetentionTTL, cfg.ReaperInterval, logger)
		reaperSvc.Start(ctx)
	}

	// 5.2 Reconcile — фоновая сверка хранилища
	var reconcileSvc *service.ReconcileService
	if cfg.ReconcileInterval > 0 {
		reconcileSvc = service.NewReconcileService(blobs, records, cfg.ReconcileInterval, cfg.ReconcileVerify, logger)
		reconcileSvc.Start(ctx)
	}

	// 6. Handlers
	filesHandler := handlers.NewFilesHandler(shareSvc, downloadSvc, cfg, logger)
	healthHandler := handlers.NewHealthHandler(cfg.DataDir, records)

	// 7. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, filesHandler, healthHandler)

	runErr := srv.Run()

	// --- Останавливаем фоновые процессы и на штатном завершении, и при ошибке ---
	logger.Info("Остановка фоновых процессов...")

	if reaperSvc != nil {
		reaperSvc.Stop()
	}
	if reconcileSvc != nil {
		reconcileSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}

	logger.Info("boltshare остановлен")
}
