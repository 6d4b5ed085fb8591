// reconcile.go — фоновая проверка согласованности диска и индекса.
//
// Находит расхождения между blob-ами, attr.json и индексом в памяти.
// Только регистрирует проблемы (лог + метрики), ничего не удаляет:
// решение об удалении принимает оператор или reaper.
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/boltshare/internal/storage/attr"
	"github.com/bigkaa/boltshare/internal/storage/blobstore"
	"github.com/bigkaa/boltshare/internal/storage/recordstore"
)

// Prometheus метрики reconcile
var (
	// reconcileRunsTotal — количество запусков reconcile.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bs_reconcile_runs_total",
		Help: "Общее количество запусков проверки согласованности",
	})

	// reconcileIssuesTotal — найденные проблемы по типам.
	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bs_reconcile_issues_total",
		Help: "Общее количество найденных проблем согласованности",
	}, []string{"issue"})

	// reconcileDurationSeconds — длительность проверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bs_reconcile_duration_seconds",
		Help:    "Длительность проверки согласованности в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})
)

// Типы проблем согласованности
const (
	issueOrphanedBlob     = "orphaned_blob"     // blob без attr.json
	issueOrphanedAttr     = "orphaned_attr"     // attr.json без blob-а
	issueMissingBlob      = "missing_blob"      // запись в индексе без blob-а
	issueSizeMismatch     = "size_mismatch"     // размер blob-а не совпадает с записью
	issueChecksumMismatch = "checksum_mismatch" // контрольная сумма не совпадает
)

// ReconcileResult — результат одной проверки согласованности.
type ReconcileResult struct {
	// Checked — количество проверенных записей
	Checked int
	// Issues — количество найденных проблем по типам
	Issues map[string]int
	// Duration — длительность проверки
	Duration time.Duration
}

// ReconcileService — периодическая проверка согласованности хранилища.
type ReconcileService struct {
	blobs         *blobstore.BlobStore
	records       *recordstore.Store
	interval      time.Duration
	verifyContent bool // проверять контрольные суммы (дорого на больших файлах)
	logger        *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewReconcileService создаёт сервис проверки согласованности.
func NewReconcileService(
	blobs *blobstore.BlobStore,
	records *recordstore.Store,
	interval time.Duration,
	verifyContent bool,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		blobs:         blobs,
		records:       records,
		interval:      interval,
		verifyContent: verifyContent,
		logger:        logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину проверки с периодическим тикером.
func (rc *ReconcileService) Start(ctx context.Context) {
	rcCtx, cancel := context.WithCancel(ctx)
	rc.cancel = cancel

	go rc.run(rcCtx)

	rc.logger.Info("Reconcile запущен",
		slog.String("interval", rc.interval.String()),
		slog.Bool("verify_content", rc.verifyContent),
	)
}

// Stop останавливает фоновый процесс проверки.
func (rc *ReconcileService) Stop() {
	if rc.cancel != nil {
		rc.cancel()
	}
	rc.logger.Info("Reconcile остановлен")
}

func (rc *ReconcileService) run(ctx context.Context) {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rc.RunOnce()
		}
	}
}

// RunOnce выполняет одну проверку согласованности.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
func (rc *ReconcileService) RunOnce() *ReconcileResult {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	start := time.Now()
	result := &ReconcileResult{
		Issues: make(map[string]int),
	}

	// 1. Проверка записей индекса против диска
	for _, rec := range rc.records.List() {
		result.Checked++

		fullPath := rc.blobs.FullPath(rec.StoragePath)

		size, err := rc.blobs.Size(rec.StoragePath)
		if err != nil {
			rc.report(result, issueMissingBlob, rec.FileID, rec.StoragePath)
			continue
		}

		if size != rec.Size {
			rc.logger.Warn("Reconcile: размер blob-а не совпадает с записью",
				slog.String("file_id", rec.FileID),
				slog.Int64("expected", rec.Size),
				slog.Int64("actual", size),
			)
			result.Issues[issueSizeMismatch]++
			reconcileIssuesTotal.WithLabelValues(issueSizeMismatch).Inc()
			continue
		}

		if rc.verifyContent && rec.Checksum != "" {
			sum, err := rc.blobs.ComputeChecksum(rec.StoragePath)
			if err != nil {
				rc.report(result, issueMissingBlob, rec.FileID, rec.StoragePath)
				continue
			}
			if sum != rec.Checksum {
				rc.logger.Warn("Reconcile: контрольная сумма не совпадает",
					slog.String("file_id", rec.FileID),
					slog.String("path", fullPath),
				)
				result.Issues[issueChecksumMismatch]++
				reconcileIssuesTotal.WithLabelValues(issueChecksumMismatch).Inc()
			}
		}
	}

	// 2. Проверка диска против индекса
	rc.scanDisk(result)

	result.Duration = time.Since(start)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(result.Duration.Seconds())

	rc.logger.Info("Reconcile завершён",
		slog.Int("checked", result.Checked),
		slog.Int("issues", totalIssues(result.Issues)),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// scanDisk ищет осиротевшие blob-ы и attr.json в каталоге данных.
func (rc *ReconcileService) scanDisk(result *ReconcileResult) {
	entries, err := os.ReadDir(rc.blobs.DataDir())
	if err != nil {
		rc.logger.Error("Reconcile: ошибка чтения каталога данных",
			slog.String("error", err.Error()),
		)
		return
	}

	// Известные индексу ключи хранения
	known := make(map[string]bool)
	for _, rec := range rc.records.List() {
		known[rec.StoragePath] = true
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		// Временные файлы незавершённых записей пропускаем
		if strings.HasSuffix(name, ".tmp") {
			continue
		}

		if attr.IsAttrFile(name) {
			// attr.json без blob-а рядом
			blobPath := attr.BlobPathFromAttr(filepath.Join(rc.blobs.DataDir(), name))
			if _, err := os.Stat(blobPath); os.IsNotExist(err) {
				rc.report(result, issueOrphanedAttr, "", name)
			}
			continue
		}

		// blob без attr.json
		if !known[name] {
			attrPath := attr.AttrFilePath(filepath.Join(rc.blobs.DataDir(), name))
			if _, err := os.Stat(attrPath); os.IsNotExist(err) {
				rc.report(result, issueOrphanedBlob, "", name)
			}
		}
	}
}

// report регистрирует найденную проблему в логе, метриках и результате.
func (rc *ReconcileService) report(result *ReconcileResult, issue, fileID, path string) {
	rc.logger.Warn("Reconcile: найдена проблема согласованности",
		slog.String("issue", issue),
		slog.String("file_id", fileID),
		slog.String("path", path),
	)
	result.Issues[issue]++
	reconcileIssuesTotal.WithLabelValues(issue).Inc()
}

func totalIssues(issues map[string]int) int {
	total := 0
	for _, n := range issues {
		total += n
	}
	return total
}
