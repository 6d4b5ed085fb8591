// Пакет service — бизнес-логика boltshare.
// share.go — ядро: ingest (загрузка), resolve (разрешение ссылки)
// и notify (одноразовое уведомление).
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/boltshare/internal/api/errors"
	"github.com/bigkaa/boltshare/internal/api/middleware"
	"github.com/bigkaa/boltshare/internal/config"
	"github.com/bigkaa/boltshare/internal/domain/model"
	"github.com/bigkaa/boltshare/internal/mail"
	"github.com/bigkaa/boltshare/internal/storage/blobstore"
	"github.com/bigkaa/boltshare/internal/storage/recordstore"
)

// Notifier — внешний отправитель уведомлений.
// Реализация — mail.Mailer; в тестах подставляется фейк.
type Notifier interface {
	Send(ctx context.Context, msg mail.Message) error
}

// ShareError — ошибка операции ядра с HTTP-кодом.
type ShareError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ShareError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IngestParams — параметры загрузки файла.
type IngestParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalFilename — оригинальное имя файла
	OriginalFilename string
	// ContentType — MIME-тип из заголовка multipart part (может быть пустым)
	ContentType string
	// DeclaredSize — заявленный размер (из multipart header), -1 если неизвестен
	DeclaredSize int64
}

// IngestResult — результат загрузки файла.
type IngestResult struct {
	Record *model.FileRecord
}

// ShareService — оркестрация жизненного цикла FileRecord.
type ShareService struct {
	cfg      *config.Config
	blobs    *blobstore.BlobStore
	records  *recordstore.Store
	notifier Notifier
	logger   *slog.Logger
}

// NewShareService создаёт сервис ядра.
func NewShareService(
	cfg *config.Config,
	blobs *blobstore.BlobStore,
	records *recordstore.Store,
	notifier Notifier,
	logger *slog.Logger,
) *ShareService {
	return &ShareService{
		cfg:      cfg,
		blobs:    blobs,
		records:  records,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "share_service")),
	}
}

// Ingest загружает файл и создаёт запись.
//
// Поток:
//  1. Проверка заявленного размера
//  2. Save (streaming + SHA-256) в blob store
//  3. Проверка фактического размера (пустой / превышение лимита)
//  4. Генерация публичного идентификатора
//  5. Создание записи; при ошибке — удаление blob-а (без осиротевших blob-ов)
func (s *ShareService) Ingest(params IngestParams) (*IngestResult, *ShareError) {
	// 1. Заявленный размер позволяет отказать до записи на диск
	if params.DeclaredSize > s.cfg.MaxFileSize {
		middleware.OperationsTotal.WithLabelValues("ingest", "rejected").Inc()
		return nil, &ShareError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.DeclaredSize, s.cfg.MaxFileSize),
		}
	}

	// 2. Записываем blob
	saved, err := s.blobs.Save(params.Reader, params.OriginalFilename)
	if err != nil {
		s.logger.Error("Ошибка сохранения blob-а",
			slog.String("filename", params.OriginalFilename),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("ingest", "error").Inc()
		return nil, &ShareError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения файла на диск",
		}
	}

	// Удаление blob-а при любой последующей ошибке
	rollback := func() {
		if delErr := s.blobs.Delete(saved.StorageKey); delErr != nil {
			s.logger.Error("Ошибка удаления blob-а при откате",
				slog.String("storage_key", saved.StorageKey),
				slog.String("error", delErr.Error()),
			)
		}
	}

	// 3. Фактический размер: пустой поток — ошибка клиента
	if saved.Size == 0 {
		rollback()
		middleware.OperationsTotal.WithLabelValues("ingest", "rejected").Inc()
		return nil, &ShareError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Пустой файл не принимается",
		}
	}
	if saved.Size > s.cfg.MaxFileSize {
		rollback()
		middleware.OperationsTotal.WithLabelValues("ingest", "rejected").Inc()
		return nil, &ShareError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", saved.Size, s.cfg.MaxFileSize),
		}
	}

	// 4. Публичный идентификатор: случайный, от содержимого не зависит
	fileID := uuid.New().String()

	rec := &model.FileRecord{
		FileID:           fileID,
		OriginalFilename: params.OriginalFilename,
		StoragePath:      saved.StorageKey,
		ContentType:      s.detectContentType(params.ContentType, saved.FullPath),
		Size:             saved.Size,
		Checksum:         saved.Checksum,
		CreatedAt:        time.Now().UTC(),
	}

	// 5. Создаём запись; blob не должен осиротеть
	if err := s.records.Create(rec); err != nil {
		rollback()
		s.logger.Error("Ошибка создания записи",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("ingest", "error").Inc()
		return nil, &ShareError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения метаданных",
		}
	}

	middleware.OperationsTotal.WithLabelValues("ingest", "success").Inc()
	middleware.FilesTotal.Inc()

	s.logger.Info("Файл загружен",
		slog.String("file_id", fileID),
		slog.String("filename", params.OriginalFilename),
		slog.Int64("size", saved.Size),
		slog.String("checksum", saved.Checksum),
	)

	return &IngestResult{Record: rec}, nil
}

// Resolve возвращает запись по публичному идентификатору.
// Неизвестный и некорректный идентификаторы неотличимы: оба — NotFound
// (внешне отображается как «ссылка истекла», состояние истечения не хранится).
func (s *ShareService) Resolve(fileID string) (*model.FileRecord, *ShareError) {
	rec := s.records.Get(fileID)
	if rec == nil {
		middleware.OperationsTotal.WithLabelValues("resolve", "not_found").Inc()
		return nil, &ShareError{
			StatusCode: 404,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Файл %s не найден", fileID),
		}
	}
	middleware.OperationsTotal.WithLabelValues("resolve", "success").Inc()
	return rec, nil
}

// Notify выполняет одноразовое уведомление.
//
// Порядок принципиален:
//  1. Атомарный conditional update (sender пуст → установить пару) —
//     слот расходуется ДО отправки. Гарантия: не более одного письма
//     на запись, даже при конкурентных запросах. Обратная сторона:
//     неудачная отправка оставляет слот использованным (at-most-once).
//  2. Отправка письма вне каких-либо блокировок, с таймаутом.
func (s *ShareService) Notify(ctx context.Context, fileID, sender, receiver string) *ShareError {
	if fileID == "" || sender == "" || receiver == "" {
		return &ShareError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Поля uuid, sender и emailTo обязательны",
		}
	}

	// 1. Атомарный переход; до него Notification Sender не вызывается
	rec, err := s.records.SetNotification(fileID, sender, receiver)
	switch {
	case err == nil:
		// переход состоялся
	case errors.Is(err, recordstore.ErrNotFound):
		middleware.OperationsTotal.WithLabelValues("notify", "not_found").Inc()
		return &ShareError{
			StatusCode: 404,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Файл %s не найден", fileID),
		}
	case errors.Is(err, recordstore.ErrAlreadySent):
		middleware.OperationsTotal.WithLabelValues("notify", "already_sent").Inc()
		return &ShareError{
			StatusCode: 409,
			Code:       apierrors.CodeAlreadySent,
			Message:    "Уведомление по этой ссылке уже отправлялось",
		}
	default:
		s.logger.Error("Ошибка фиксации уведомления",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("notify", "error").Inc()
		return &ShareError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка сохранения метаданных",
		}
	}

	// 2. Композиция и отправка письма
	downloadLink := s.cfg.BaseURL + "/" + rec.FileID
	msg, composeErr := mail.Compose(sender, receiver, downloadLink,
		humanize.Bytes(uint64(rec.Size)), s.expiresText())
	if composeErr != nil {
		s.logger.Error("Ошибка композиции письма",
			slog.String("file_id", fileID),
			slog.String("error", composeErr.Error()),
		)
		middleware.NotificationsTotal.WithLabelValues("error").Inc()
		return &ShareError{
			StatusCode: 500,
			Code:       apierrors.CodeNotificationFailed,
			Message:    "Не удалось отправить уведомление",
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()

	if sendErr := s.notifier.Send(sendCtx, msg); sendErr != nil {
		// Слот уже использован: письмо не ушло, но повторная отправка
		// невозможна. Деградация видна оператору через лог и метрику.
		s.logger.Error("Ошибка отправки уведомления",
			slog.String("file_id", fileID),
			slog.String("receiver", receiver),
			slog.String("error", sendErr.Error()),
		)
		middleware.NotificationsTotal.WithLabelValues("error").Inc()
		middleware.OperationsTotal.WithLabelValues("notify", "send_failed").Inc()
		return &ShareError{
			StatusCode: 500,
			Code:       apierrors.CodeNotificationFailed,
			Message:    "Не удалось отправить уведомление",
		}
	}

	middleware.NotificationsTotal.WithLabelValues("success").Inc()
	middleware.OperationsTotal.WithLabelValues("notify", "success").Inc()

	s.logger.Info("Уведомление отправлено",
		slog.String("file_id", fileID),
		slog.String("sender", sender),
		slog.String("receiver", receiver),
	)

	return nil
}

// expiresText возвращает информационный текст о сроке действия ссылки.
func (s *ShareService) expiresText() string {
	hours := int(s.cfg.RetentionTTL.Hours())
	if hours <= 0 {
		hours = 24
	}
	return fmt.Sprintf("%d ч", hours)
}

// detectContentType возвращает MIME-тип файла. Если заголовок multipart
// пуст или generic, тип определяется по содержимому сохранённого blob-а.
func (s *ShareService) detectContentType(headerType, fullPath string) string {
	if headerType != "" && headerType != "application/octet-stream" {
		return headerType
	}
	mt, err := mimetype.DetectFile(fullPath)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}
