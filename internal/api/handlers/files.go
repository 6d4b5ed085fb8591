// files.go — HTTP handlers файловых операций boltshare.
// Upload page, Upload, Send (уведомление), Info page, Download.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/boltshare/internal/api/errors"
	"github.com/bigkaa/boltshare/internal/config"
	"github.com/bigkaa/boltshare/internal/service"
)

// multipartOverhead — запас на заголовки multipart сверх лимита файла.
const multipartOverhead = 1 << 20 // 1 MB

// uploadPageData — данные шаблона страницы загрузки.
type uploadPageData struct {
	BaseURL     string
	UploadURL   string
	EmailURL    string
	MaxFileSize int64
}

// downloadPageData — данные шаблона страницы скачивания.
type downloadPageData struct {
	Error        string
	FileName     string
	FileSize     int64
	DownloadLink string
}

// sendRequest — тело запроса POST /send.
type sendRequest struct {
	UUID    string `json:"uuid"`
	Sender  string `json:"sender"`
	EmailTo string `json:"emailTo"`
}

// FilesHandler — обработчик публичных endpoints.
type FilesHandler struct {
	shareSvc    *service.ShareService
	downloadSvc *service.DownloadService
	cfg         *config.Config
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик публичных endpoints.
func NewFilesHandler(
	shareSvc *service.ShareService,
	downloadSvc *service.DownloadService,
	cfg *config.Config,
	logger *slog.Logger,
) *FilesHandler {
	return &FilesHandler{
		shareSvc:    shareSvc,
		downloadSvc: downloadSvc,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// UploadPage обрабатывает GET /upload — отображает страницу загрузки.
func (h *FilesHandler) UploadPage(w http.ResponseWriter, _ *http.Request) {
	data := uploadPageData{
		BaseURL:     h.cfg.BaseURL,
		UploadURL:   h.cfg.BaseURL + "/upload",
		EmailURL:    h.cfg.BaseURL + "/send",
		MaxFileSize: h.cfg.MaxFileSize,
	}
	h.renderPage(w, http.StatusOK, "upload.html", data)
}

// Upload обрабатывает POST /upload.
// Multipart form: file (обязательно). Ответ 201: {"file": "<ссылка>"}.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Жёсткий лимит на размер тела запроса: лимит файла + запас
	// на заголовки multipart. Превышение обрывает чтение до диска.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер запроса превышает максимум %d байт", h.cfg.MaxFileSize))
			return
		}
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	result, ingestErr := h.shareSvc.Ingest(service.IngestParams{
		Reader:           file,
		OriginalFilename: header.Filename,
		ContentType:      header.Header.Get("Content-Type"),
		DeclaredSize:     header.Size,
	})
	if ingestErr != nil {
		apierrors.WriteError(w, ingestErr.StatusCode, ingestErr.Code, ingestErr.Message)
		return
	}

	resp := map[string]string{
		"file": h.cfg.BaseURL + "/" + result.Record.FileID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// Send обрабатывает POST /send.
// JSON body: {uuid, sender, emailTo}. Ответ 200: {"success": true}.
func (h *FilesHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается JSON")
		return
	}

	if notifyErr := h.shareSvc.Notify(r.Context(), req.UUID, req.Sender, req.EmailTo); notifyErr != nil {
		apierrors.WriteError(w, notifyErr.StatusCode, notifyErr.Code, notifyErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// Info обрабатывает GET /{uuid} — страница файла со ссылкой на скачивание.
// Неизвестный идентификатор отображается как истёкшая ссылка.
func (h *FilesHandler) Info(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "uuid")

	rec, resolveErr := h.shareSvc.Resolve(fileID)
	if resolveErr != nil {
		h.renderPage(w, resolveErr.StatusCode, "download.html", downloadPageData{
			Error: "Ссылка истекла!",
		})
		return
	}

	h.renderPage(w, http.StatusOK, "download.html", downloadPageData{
		FileName:     rec.OriginalFilename,
		FileSize:     rec.Size,
		DownloadLink: h.cfg.BaseURL + "/download/" + rec.FileID,
	})
}

// Download обрабатывает GET /download/{uuid} — отдаёт содержимое файла.
// Неизвестный идентификатор — страница истёкшей ссылки; расхождение
// хранилища (запись есть, blob-а нет) — отдельная страница ошибки с 500.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "uuid")

	downloadErr := h.downloadSvc.Serve(w, r, fileID)
	if downloadErr == nil {
		return
	}

	if downloadErr.StatusCode == http.StatusNotFound {
		h.renderPage(w, http.StatusNotFound, "download.html", downloadPageData{
			Error: "Ссылка истекла!",
		})
		return
	}

	h.renderPage(w, downloadErr.StatusCode, "download.html", downloadPageData{
		Error: "Что-то пошло не так!",
	})
}

// renderPage рендерит HTML-шаблон с указанным статус-кодом.
func (h *FilesHandler) renderPage(w http.ResponseWriter, statusCode int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := getTemplate().ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("Ошибка рендеринга страницы",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}
