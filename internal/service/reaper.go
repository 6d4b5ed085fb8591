// reaper.go — опциональная фоновая очистка устаревших файлов.
//
// Ядро записи не удаляет; reaper — отдельный компонент вне его контракта.
// Удаляет пары blob + attr.json для записей старше BS_RETENTION_TTL.
// Включается только при BS_REAPER_INTERVAL > 0; по умолчанию выключен —
// хранилище растёт неограниченно, как и в исходном поведении сервиса.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/boltshare/internal/api/middleware"
	"github.com/bigkaa/boltshare/internal/storage/attr"
	"github.com/bigkaa/boltshare/internal/storage/blobstore"
	"github.com/bigkaa/boltshare/internal/storage/recordstore"
)

// Prometheus метрики reaper
var (
	// reaperRunsTotal — количество запусков reaper.
	reaperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bs_reaper_runs_total",
		Help: "Общее количество запусков reaper",
	})

	// reaperFilesDeletedTotal — количество удалённых файлов.
	reaperFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bs_reaper_files_deleted_total",
		Help: "Общее количество файлов, удалённых reaper",
	})

	// reaperDurationSeconds — длительность выполнения reaper.
	reaperDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bs_reaper_duration_seconds",
		Help:    "Длительность выполнения reaper в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// ReaperResult — результат одного запуска reaper.
type ReaperResult struct {
	// DeletedCount — количество удалённых файлов
	DeletedCount int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// ReaperService — фоновая очистка записей старше срока хранения.
type ReaperService struct {
	blobs    *blobstore.BlobStore
	records  *recordstore.Store
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewReaperService создаёт сервис очистки.
func NewReaperService(
	blobs *blobstore.BlobStore,
	records *recordstore.Store,
	ttl, interval time.Duration,
	logger *slog.Logger,
) *ReaperService {
	return &ReaperService{
		blobs:    blobs,
		records:  records,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With(slog.String("component", "reaper")),
	}
}

// Start запускает фоновую горутину reaper с периодическим тикером.
// Вызывается один раз при старте приложения.
func (rp *ReaperService) Start(ctx context.Context) {
	rpCtx, cancel := context.WithCancel(ctx)
	rp.cancel = cancel

	go rp.run(rpCtx)

	rp.logger.Info("Reaper запущен",
		slog.String("interval", rp.interval.String()),
		slog.String("ttl", rp.ttl.String()),
	)
}

// Stop останавливает фоновый процесс reaper.
func (rp *ReaperService) Stop() {
	if rp.cancel != nil {
		rp.cancel()
	}
	rp.logger.Info("Reaper остановлен")
}

// run — основной цикл фоновой горутины.
func (rp *ReaperService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	rp.RunOnce()

	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rp.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (rp *ReaperService) RunOnce() *ReaperResult {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	start := time.Now()
	result := &ReaperResult{}
	now := time.Now().UTC()

	for _, rec := range rp.records.List() {
		if !rec.OlderThan(now, rp.ttl) {
			continue
		}

		// Удаляем blob
		if err := rp.blobs.Delete(rec.StoragePath); err != nil {
			rp.logger.Error("Reaper: ошибка удаления blob-а",
				slog.String("file_id", rec.FileID),
				slog.String("storage_key", rec.StoragePath),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		// Удаляем attr.json
		attrPath := attr.AttrFilePath(rp.blobs.FullPath(rec.StoragePath))
		if err := attr.Delete(attrPath); err != nil {
			rp.logger.Error("Reaper: ошибка удаления attr.json",
				slog.String("file_id", rec.FileID),
				slog.String("error", err.Error()),
			)
			// blob уже удалён; осиротевший attr.json подберёт reconcile
		}

		// Удаляем из индекса
		rp.records.Remove(rec.FileID)
		middleware.FilesTotal.Dec()

		rp.logger.Debug("Reaper: файл удалён",
			slog.String("file_id", rec.FileID),
			slog.String("filename", rec.OriginalFilename),
		)
		result.DeletedCount++
	}

	result.Duration = time.Since(start)

	reaperRunsTotal.Inc()
	reaperFilesDeletedTotal.Add(float64(result.DeletedCount))
	reaperDurationSeconds.Observe(result.Duration.Seconds())

	rp.logger.Info("Reaper завершён",
		slog.Int("deleted", result.DeletedCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}
