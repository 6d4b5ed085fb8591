// download.go — сервис скачивания файлов.
package service

import (
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/boltshare/internal/api/errors"
	"github.com/bigkaa/boltshare/internal/api/middleware"
	"github.com/bigkaa/boltshare/internal/storage/blobstore"
	"github.com/bigkaa/boltshare/internal/storage/recordstore"
)

// DownloadService — сервис скачивания файлов.
type DownloadService struct {
	blobs   *blobstore.BlobStore
	records *recordstore.Store
	logger  *slog.Logger
}

// NewDownloadService создаёт сервис скачивания файлов.
func NewDownloadService(
	blobs *blobstore.BlobStore,
	records *recordstore.Store,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		blobs:   blobs,
		records: records,
		logger:  logger.With(slog.String("component", "download_service")),
	}
}

// DownloadError — ошибка скачивания с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Serve отдаёт файл клиенту через http.ServeContent.
// Поддерживает Range requests (206 Partial Content) и ETag (If-None-Match).
//
// Отсутствующая запись — NotFound. Запись есть, а blob-а нет или он
// нечитаем — StorageInconsistency: это деградация сервера, а не
// «ссылка истекла», и она логируется и метрируется отдельно.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, fileID string) *DownloadError {
	// 1. Ищем запись
	rec := s.records.Get(fileID)
	if rec == nil {
		middleware.OperationsTotal.WithLabelValues("download", "not_found").Inc()
		return &DownloadError{
			StatusCode: 404,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Файл %s не найден", fileID),
		}
	}

	// 2. Открываем blob
	file, err := s.blobs.Open(rec.StoragePath)
	if err != nil {
		s.logger.Error("Расхождение хранилища: запись есть, blob недоступен",
			slog.String("file_id", fileID),
			slog.String("storage_key", rec.StoragePath),
			slog.String("error", err.Error()),
		)
		middleware.StorageInconsistenciesTotal.Inc()
		middleware.OperationsTotal.WithLabelValues("download", "inconsistency").Inc()
		return &DownloadError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageInconsistency,
			Message:    fmt.Sprintf("Файл %s повреждён или утерян хранилищем", fileID),
		}
	}
	defer file.Close()

	// 3. Информация о файле для http.ServeContent
	stat, err := file.Stat()
	if err != nil {
		s.logger.Error("Ошибка получения stat blob-а",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		middleware.StorageInconsistenciesTotal.Inc()
		middleware.OperationsTotal.WithLabelValues("download", "inconsistency").Inc()
		return &DownloadError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageInconsistency,
			Message:    "Ошибка чтения файла",
		}
	}

	// 4. Заголовки
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.OriginalFilename))
	w.Header().Set("ETag", fmt.Sprintf("%q", rec.Checksum))
	w.Header().Set("Accept-Ranges", "bytes")

	// 5. http.ServeContent автоматически обрабатывает:
	//    - Range requests (206 Partial Content)
	//    - If-None-Match (304 Not Modified через ETag)
	//    - If-Modified-Since
	//    - Content-Length
	sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
	http.ServeContent(sw, r, rec.OriginalFilename, stat.ModTime(), file)

	// Условные (304) и некорректные Range (416) ответы не считаем скачиваниями
	switch sw.statusCode {
	case http.StatusOK, http.StatusPartialContent:
		middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

		s.logger.Debug("Файл скачан",
			slog.String("file_id", fileID),
			slog.String("filename", rec.OriginalFilename),
			slog.Int64("size", rec.Size),
		)
	}

	return nil
}

// statusWriter фиксирует статус-код, выставленный http.ServeContent.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
