// Пакет errors — конструкторы стандартных ошибок API boltshare.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib допустим внутри internal/api

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeAlreadySent          = "ALREADY_SENT"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeStorageInconsistency = "STORAGE_INCONSISTENCY"
	CodeNotificationFailed   = "NOTIFICATION_FAILED"
	CodeInternalError        = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// AlreadySent — 409 уведомление по этой ссылке уже отправлялось.
func AlreadySent(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeAlreadySent, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// StorageInconsistency — 500 запись есть, blob отсутствует или нечитаем.
func StorageInconsistency(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeStorageInconsistency, message)
}

// NotificationFailed — 500 письмо не удалось отправить.
func NotificationFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeNotificationFailed, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
