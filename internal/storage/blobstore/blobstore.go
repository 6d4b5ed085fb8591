// Пакет blobstore — операции с физическими blob-ами на диске.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету,
// чтение и удаление. Ключ blob-а генерируется так, чтобы
// параллельные загрузки файлов с одинаковыми именами не конфликтовали.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore — управление физическими blob-ами на диске.
type BlobStore struct {
	// dataDir — корневая директория хранения (BS_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения blob-а на диск.
type SaveResult struct {
	// StorageKey — относительный путь blob-а в dataDir
	StorageKey string
	// FullPath — абсолютный путь blob-а на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// New создаёт новый BlobStore. Проверяет и создаёт директорию
// если она не существует.
func New(dataDir string) (*BlobStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &BlobStore{dataDir: dataDir}, nil
}

// Save записывает данные из reader на диск с подсчётом SHA-256 на лету.
// Ключ blob-а: {unix_nano}-{короткий uuid}{ext} — имя не зависит от
// оригинального имени файла, коллизии между конкурентными загрузками исключены.
// Возвращает ключ, размер и checksum записанных данных.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (bs *BlobStore) Save(reader io.Reader, originalFilename string) (*SaveResult, error) {
	storageKey := generateStorageKey(originalFilename)
	fullPath := filepath.Join(bs.dataDir, storageKey)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StorageKey: storageKey,
		FullPath:   fullPath,
		Size:       size,
		Checksum:   hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает blob для чтения и возвращает *os.File.
// storageKey — относительный путь blob-а в dataDir.
// Вызывающий код обязан закрыть файл.
func (bs *BlobStore) Open(storageKey string) (*os.File, error) {
	fullPath := filepath.Join(bs.dataDir, storageKey)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob не найден: %s: %w", storageKey, err)
		}
		return nil, fmt.Errorf("ошибка открытия blob-а %s: %w", storageKey, err)
	}

	return f, nil
}

// FullPath возвращает абсолютный путь к blob-у на диске.
func (bs *BlobStore) FullPath(storageKey string) string {
	return filepath.Join(bs.dataDir, storageKey)
}

// Delete удаляет blob с диска.
// Возвращает nil если blob уже не существует.
func (bs *BlobStore) Delete(storageKey string) error {
	fullPath := filepath.Join(bs.dataDir, storageKey)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления blob-а %s: %w", storageKey, err)
	}
	return nil
}

// Exists проверяет существование blob-а на диске.
func (bs *BlobStore) Exists(storageKey string) bool {
	fullPath := filepath.Join(bs.dataDir, storageKey)
	_, err := os.Stat(fullPath)
	return err == nil
}

// Size возвращает размер blob-а на диске.
func (bs *BlobStore) Size(storageKey string) (int64, error) {
	fullPath := filepath.Join(bs.dataDir, storageKey)
	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о blob-е %s: %w", storageKey, err)
	}
	return info.Size(), nil
}

// ComputeChecksum вычисляет SHA-256 хэш существующего blob-а.
// Используется при reconciliation для проверки целостности.
func (bs *BlobStore) ComputeChecksum(storageKey string) (string, error) {
	fullPath := filepath.Join(bs.dataDir, storageKey)

	f, err := os.Open(fullPath)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия blob-а %s: %w", storageKey, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("ошибка вычисления checksum %s: %w", storageKey, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// DataDir возвращает путь к директории данных.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

// generateStorageKey генерирует ключ blob-а.
// Формат: {unix_nano}-{короткий uuid}{ext}
// Пример: 1756723512000000000-a1b2c3d4.pdf
func generateStorageKey(originalFilename string) string {
	ext := sanitizeExt(filepath.Ext(originalFilename))
	ts := time.Now().UnixNano()
	uid := uuid.New().String()[:8] // короткий UUID для уникальности

	return fmt.Sprintf("%d-%s%s", ts, uid, ext)
}

// sanitizeExt очищает расширение файла для использования в имени blob-а.
// Оставляет только точку, буквы, цифры, дефис и подчёркивание.
// Длина ограничена, чтобы не упираться в лимиты файловой системы.
func sanitizeExt(ext string) string {
	var result strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			result.WriteRune(r)
		}
	}
	s := result.String()
	if s == "." {
		return ""
	}
	if len(s) > 16 {
		s = s[:16]
	}
	return s
}
