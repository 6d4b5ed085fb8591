// Пакет model — доменные модели boltshare.
// FileRecord — единственная сущность системы: метаданные загруженного
// файла и состояние одноразового уведомления. Используется как
// in-memory представление и как формат attr.json на диске.
package model

import (
	"time"
)

// FileRecord — метаданные файла. Соответствует содержимому attr.json.
// Запись неизменяема после создания, за одним исключением: пара
// Sender/Receiver устанавливается не более одного раза (см. recordstore).
type FileRecord struct {
	// FileID — публичный идентификатор файла (UUID v4).
	// Встраивается в ссылку для скачивания, уникален, никогда не переиспользуется.
	FileID string `json:"file_id"`

	// OriginalFilename — оригинальное имя файла при загрузке
	OriginalFilename string `json:"original_filename"`

	// StoragePath — ключ blob-а на диске (относительно BS_DATA_DIR).
	// Формат: {unix_nano}-{короткий uuid}{ext}
	// Не возвращается в API, используется только внутри сервиса.
	StoragePath string `json:"storage_path"`

	// ContentType — MIME-тип файла
	ContentType string `json:"content_type"`

	// Size — размер файла в байтах (фактически записанные данные)
	Size int64 `json:"size"`

	// Checksum — SHA-256 хэш содержимого файла
	Checksum string `json:"checksum"`

	// Sender — адрес отправителя уведомления.
	// Непустое значение означает «уведомление уже запрошено».
	Sender string `json:"sender,omitempty"`

	// Receiver — адрес получателя уведомления.
	// Устанавливается только вместе с Sender.
	Receiver string `json:"receiver,omitempty"`

	// CreatedAt — дата и время загрузки (UTC)
	CreatedAt time.Time `json:"created_at"`
}

// Notified возвращает true, если слот уведомления уже использован.
func (r *FileRecord) Notified() bool {
	return r.Sender != ""
}

// OlderThan проверяет, превысил ли возраст записи срок хранения ttl.
func (r *FileRecord) OlderThan(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.CreatedAt) > ttl
}
