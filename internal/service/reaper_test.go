package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/boltshare/internal/domain/model"
	"github.com/bigkaa/boltshare/internal/storage/attr"
	"github.com/bigkaa/boltshare/internal/storage/blobstore"
	"github.com/bigkaa/boltshare/internal/storage/recordstore"
)

// createAgedRecord создаёт blob и запись с заданным возрастом.
func createAgedRecord(t *testing.T, blobs *blobstore.BlobStore, records *recordstore.Store, id string, age time.Duration) *model.FileRecord {
	t.Helper()

	saved, err := blobs.Save(strings.NewReader("данные "+id), id+".txt")
	if err != nil {
		t.Fatalf("ошибка сохранения blob-а: %v", err)
	}

	rec := &model.FileRecord{
		FileID:           id,
		OriginalFilename: id + ".txt",
		StoragePath:      saved.StorageKey,
		ContentType:      "text/plain",
		Size:             saved.Size,
		Checksum:         saved.Checksum,
		CreatedAt:        time.Now().UTC().Add(-age),
	}
	if err := records.Create(rec); err != nil {
		t.Fatalf("ошибка создания записи: %v", err)
	}
	return rec
}

// TestReaperRunOnce проверяет удаление устаревших файлов.
func TestReaperRunOnce(t *testing.T) {
	dir := t.TempDir()
	blobs, err := blobstore.New(dir)
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}
	records := recordstore.New(dir, testLogger())

	// Одна устаревшая запись, одна свежая
	old := createAgedRecord(t, blobs, records, "old-1", 48*time.Hour)
	fresh := createAgedRecord(t, blobs, records, "fresh-1", time.Hour)

	rp := NewReaperService(blobs, records, 24*time.Hour, time.Hour, testLogger())
	result := rp.RunOnce()

	if result.DeletedCount != 1 {
		t.Errorf("ожидалось 1 удаление, получено %d", result.DeletedCount)
	}

	// Устаревшая запись удалена полностью: blob, attr.json, индекс
	if blobs.Exists(old.StoragePath) {
		t.Error("устаревший blob не удалён")
	}
	attrPath := attr.AttrFilePath(filepath.Join(dir, old.StoragePath))
	if _, err := os.Stat(attrPath); !os.IsNotExist(err) {
		t.Error("устаревший attr.json не удалён")
	}
	if records.Get("old-1") != nil {
		t.Error("устаревшая запись осталась в индексе")
	}

	// Свежая запись не тронута
	if !blobs.Exists(fresh.StoragePath) {
		t.Error("свежий blob удалён")
	}
	if records.Get("fresh-1") == nil {
		t.Error("свежая запись удалена из индекса")
	}
}

// TestReaperRunOnce_Empty проверяет запуск на пустом хранилище.
func TestReaperRunOnce_Empty(t *testing.T) {
	dir := t.TempDir()
	blobs, err := blobstore.New(dir)
	if err != nil {
		t.Fatalf("ошибка создания BlobStore: %v", err)
	}
	records := recordstore.New(dir, testLogger())

	rp := NewReaperService(blobs, records, 24*time.Hour, time.Hour, testLogger())
	result := rp.RunOnce()

	if result.DeletedCount != 0 {
		t.Errorf("ожидалось 0 удалений, получено %d", result.DeletedCount)
	}
	if result.Errors != 0 {
		t.Errorf("ожидалось 0 ошибок, получено %d", result.Errors)
	}
}
