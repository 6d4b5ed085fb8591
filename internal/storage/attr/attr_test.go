package attr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/boltshare/internal/domain/model"
)

// testRecord создаёт тестовую запись.
func testRecord() *model.FileRecord {
	return &model.FileRecord{
		FileID:           "9f1c2a17-0000-4000-8000-000000000001",
		OriginalFilename: "report.pdf",
		StoragePath:      "1756700000000000000-ab12cd34.pdf",
		ContentType:      "application/pdf",
		Size:             1024,
		Checksum:         "abc123def456",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
}

// TestWriteAndRead проверяет запись и чтение attr.json.
func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord()
	path := filepath.Join(dir, rec.StoragePath+AttrSuffix)

	// Запись
	if err := Write(path, rec); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	// Проверяем, что файл существует
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("attr.json файл не создан")
	}

	// Чтение
	readRec, err := Read(path)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}

	// Сравнение полей
	if readRec.FileID != rec.FileID {
		t.Errorf("FileID: ожидалось %q, получено %q", rec.FileID, readRec.FileID)
	}
	if readRec.OriginalFilename != rec.OriginalFilename {
		t.Errorf("OriginalFilename: ожидалось %q, получено %q", rec.OriginalFilename, readRec.OriginalFilename)
	}
	if readRec.StoragePath != rec.StoragePath {
		t.Errorf("StoragePath: ожидалось %q, получено %q", rec.StoragePath, readRec.StoragePath)
	}
	if readRec.Size != rec.Size {
		t.Errorf("Size: ожидалось %d, получено %d", rec.Size, readRec.Size)
	}
	if readRec.Checksum != rec.Checksum {
		t.Errorf("Checksum: ожидалось %q, получено %q", rec.Checksum, readRec.Checksum)
	}
	if !readRec.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt: ожидалось %v, получено %v", rec.CreatedAt, readRec.CreatedAt)
	}
}

// TestWrite_NotificationPair проверяет сохранение пары sender/receiver.
func TestWrite_NotificationPair(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord()
	rec.Sender = "alice@example.com"
	rec.Receiver = "bob@example.com"
	path := filepath.Join(dir, rec.StoragePath+AttrSuffix)

	if err := Write(path, rec); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	readRec, err := Read(path)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}

	if readRec.Sender != rec.Sender {
		t.Errorf("Sender: ожидалось %q, получено %q", rec.Sender, readRec.Sender)
	}
	if readRec.Receiver != rec.Receiver {
		t.Errorf("Receiver: ожидалось %q, получено %q", rec.Receiver, readRec.Receiver)
	}
	if !readRec.Notified() {
		t.Error("запись с sender должна считаться notified")
	}
}

// TestWrite_OmitsEmptyNotification проверяет, что пустая пара
// sender/receiver не попадает в JSON.
func TestWrite_OmitsEmptyNotification(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord()
	path := filepath.Join(dir, rec.StoragePath+AttrSuffix)

	if err := Write(path, rec); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if strings.Contains(string(data), "sender") {
		t.Error("пустой sender не должен сериализоваться")
	}
}

// TestWrite_NoTempFileLeft проверяет, что временный файл не остаётся.
func TestWrite_NoTempFileLeft(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord()
	path := filepath.Join(dir, rec.StoragePath+AttrSuffix)

	if err := Write(path, rec); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не удалён после записи")
	}
}

// TestRead_NotFound проверяет ошибку при чтении несуществующего файла.
func TestRead_NotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "nonexistent"+AttrSuffix))
	if err == nil {
		t.Fatal("ожидалась ошибка для несуществующего файла")
	}
}

// TestRead_InvalidJSON проверяет ошибку при невалидном JSON.
func TestRead_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken"+AttrSuffix)

	if err := os.WriteFile(path, []byte("не json"), 0o600); err != nil {
		t.Fatalf("ошибка подготовки файла: %v", err)
	}

	if _, err := Read(path); err == nil {
		t.Fatal("ожидалась ошибка для невалидного JSON")
	}
}

// TestDelete проверяет удаление attr.json.
func TestDelete(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord()
	path := filepath.Join(dir, rec.StoragePath+AttrSuffix)

	if err := Write(path, rec); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if err := Delete(path); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("файл не удалён")
	}

	// Повторное удаление — не ошибка
	if err := Delete(path); err != nil {
		t.Errorf("повторное удаление должно вернуть nil, получено: %v", err)
	}
}

// TestPathHelpers проверяет функции работы с путями.
func TestPathHelpers(t *testing.T) {
	blobPath := "/data/1756700000000000000-ab12cd34.pdf"
	attrPath := AttrFilePath(blobPath)

	if attrPath != blobPath+AttrSuffix {
		t.Errorf("AttrFilePath: получено %q", attrPath)
	}
	if BlobPathFromAttr(attrPath) != blobPath {
		t.Errorf("BlobPathFromAttr: получено %q", BlobPathFromAttr(attrPath))
	}
	if !IsAttrFile(attrPath) {
		t.Error("IsAttrFile должен вернуть true для attr.json")
	}
	if IsAttrFile(blobPath) {
		t.Error("IsAttrFile должен вернуть false для blob-а")
	}
}

// TestScanDir проверяет сканирование директории с метаданными.
func TestScanDir(t *testing.T) {
	dir := t.TempDir()

	// Две валидные записи
	for _, id := range []string{"id-1", "id-2"} {
		rec := testRecord()
		rec.FileID = id
		rec.StoragePath = id + ".bin"
		path := filepath.Join(dir, rec.StoragePath+AttrSuffix)
		if err := Write(path, rec); err != nil {
			t.Fatalf("ошибка записи %s: %v", id, err)
		}
	}

	// Невалидный attr.json — должен быть пропущен
	if err := os.WriteFile(filepath.Join(dir, "broken.bin"+AttrSuffix), []byte("{"), 0o600); err != nil {
		t.Fatalf("ошибка подготовки файла: %v", err)
	}

	// Посторонний файл — не attr.json
	if err := os.WriteFile(filepath.Join(dir, "data.bin"), []byte("blob"), 0o600); err != nil {
		t.Fatalf("ошибка подготовки файла: %v", err)
	}

	recs, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ошибка сканирования: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("ожидалось 2 записи, получено %d", len(recs))
	}
}
