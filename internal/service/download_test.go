package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	apierrors "github.com/bigkaa/boltshare/internal/api/errors"
	"github.com/bigkaa/boltshare/internal/api/middleware"
)

// uploadTestFile загружает файл и возвращает его идентификатор.
func uploadTestFile(t *testing.T, svc *ShareService, content, filename string) string {
	t.Helper()
	result, ingestErr := svc.Ingest(IngestParams{
		Reader:           strings.NewReader(content),
		OriginalFilename: filename,
		ContentType:      "text/plain",
		DeclaredSize:     -1,
	})
	if ingestErr != nil {
		t.Fatalf("ошибка загрузки: %v", ingestErr)
	}
	return result.Record.FileID
}

// TestServe проверяет отдачу файла клиенту.
func TestServe(t *testing.T) {
	shareSvc, blobs, records := newTestService(t, &fakeNotifier{})
	dlSvc := NewDownloadService(blobs, records, testLogger())

	content := "содержимое для скачивания"
	fileID := uploadTestFile(t, shareSvc, content, "doc.txt")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/download/"+fileID, nil)

	if dlErr := dlSvc.Serve(w, r, fileID); dlErr != nil {
		t.Fatalf("ошибка скачивания: %v", dlErr)
	}

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", resp.StatusCode)
	}
	if w.Body.String() != content {
		t.Errorf("содержимое не совпадает: %q", w.Body.String())
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type: ожидалось 'text/plain', получено %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "doc.txt") {
		t.Errorf("Content-Disposition не содержит имя файла: %q", cd)
	}
}

// TestServe_RangeRequest проверяет поддержку Range requests.
func TestServe_RangeRequest(t *testing.T) {
	shareSvc, blobs, records := newTestService(t, &fakeNotifier{})
	dlSvc := NewDownloadService(blobs, records, testLogger())

	fileID := uploadTestFile(t, shareSvc, "0123456789", "r.txt")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/download/"+fileID, nil)
	r.Header.Set("Range", "bytes=2-5")

	if dlErr := dlSvc.Serve(w, r, fileID); dlErr != nil {
		t.Fatalf("ошибка скачивания: %v", dlErr)
	}

	if w.Code != http.StatusPartialContent {
		t.Errorf("ожидался статус 206, получен %d", w.Code)
	}
	if w.Body.String() != "2345" {
		t.Errorf("ожидалось '2345', получено %q", w.Body.String())
	}
}

// TestServe_NotModified проверяет, что условный ответ 304 по ETag
// не увеличивает счётчик успешных скачиваний.
func TestServe_NotModified(t *testing.T) {
	shareSvc, blobs, records := newTestService(t, &fakeNotifier{})
	dlSvc := NewDownloadService(blobs, records, testLogger())

	fileID := uploadTestFile(t, shareSvc, "кэшируемое содержимое", "c.txt")

	// Первое скачивание — запоминаем ETag
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/download/"+fileID, nil)
	if dlErr := dlSvc.Serve(w, r, fileID); dlErr != nil {
		t.Fatalf("ошибка скачивания: %v", dlErr)
	}
	etag := w.Result().Header.Get("ETag")
	if etag == "" {
		t.Fatal("ожидался заголовок ETag")
	}

	successCounter := middleware.OperationsTotal.WithLabelValues("download", "success")
	before := testutil.ToFloat64(successCounter)

	// Повторный запрос с If-None-Match — содержимое не передаётся
	w2 := httptest.NewRecorder()
	r2 := httptest.NewRequest(http.MethodGet, "/download/"+fileID, nil)
	r2.Header.Set("If-None-Match", etag)
	if dlErr := dlSvc.Serve(w2, r2, fileID); dlErr != nil {
		t.Fatalf("ошибка скачивания: %v", dlErr)
	}

	if w2.Code != http.StatusNotModified {
		t.Errorf("ожидался статус 304, получен %d", w2.Code)
	}
	if got := testutil.ToFloat64(successCounter); got != before {
		t.Errorf("счётчик скачиваний изменился на 304: было %v, стало %v", before, got)
	}
}

// TestServe_NotFound проверяет NotFound для неизвестного идентификатора.
func TestServe_NotFound(t *testing.T) {
	_, blobs, records := newTestService(t, &fakeNotifier{})
	dlSvc := NewDownloadService(blobs, records, testLogger())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/download/unknown", nil)

	dlErr := dlSvc.Serve(w, r, "00000000-0000-4000-8000-000000000000")
	if dlErr == nil {
		t.Fatal("ожидалась ошибка для неизвестного идентификатора")
	}
	if dlErr.StatusCode != 404 {
		t.Errorf("ожидался статус 404, получен %d", dlErr.StatusCode)
	}
	if dlErr.Code != apierrors.CodeNotFound {
		t.Errorf("ожидался код NOT_FOUND, получен %q", dlErr.Code)
	}
}

// TestServe_StorageInconsistency проверяет, что запись без blob-а —
// это ошибка сервера, а не «ссылка истекла».
func TestServe_StorageInconsistency(t *testing.T) {
	shareSvc, blobs, records := newTestService(t, &fakeNotifier{})
	dlSvc := NewDownloadService(blobs, records, testLogger())

	fileID := uploadTestFile(t, shareSvc, "данные", "lost.txt")

	// Blob удалён внешним вмешательством, запись осталась
	rec := records.Get(fileID)
	if err := blobs.Delete(rec.StoragePath); err != nil {
		t.Fatalf("ошибка удаления blob-а: %v", err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/download/"+fileID, nil)

	dlErr := dlSvc.Serve(w, r, fileID)
	if dlErr == nil {
		t.Fatal("ожидалась ошибка расхождения хранилища")
	}
	if dlErr.StatusCode != 500 {
		t.Errorf("ожидался статус 500, получен %d", dlErr.StatusCode)
	}
	if dlErr.Code != apierrors.CodeStorageInconsistency {
		t.Errorf("ожидался код STORAGE_INCONSISTENCY, получен %q", dlErr.Code)
	}
}
