// Пакет recordstore — хранилище записей FileRecord.
//
// Единственный источник истины — attr.json на диске; поверх него
// держится потокобезопасный in-memory индекс (file_id → запись),
// который строится при старте (BuildFromDir) и обновляется синхронно
// при операциях записи.
//
// Переход «уведомление отправлено» (SetNotification) выполняется как
// атомарный conditional update под write-lock: проверка «sender пуст»,
// установка пары sender/receiver и запись attr.json происходят до
// освобождения блокировки. Два конкурентных запроса на один file_id
// не могут оба пройти проверку.
package recordstore

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/bigkaa/boltshare/internal/domain/model"
	"github.com/bigkaa/boltshare/internal/storage/attr"
)

// Ошибки хранилища записей.
var (
	// ErrNotFound — запись с указанным идентификатором отсутствует.
	ErrNotFound = errors.New("запись не найдена")
	// ErrAlreadySent — слот уведомления уже использован.
	ErrAlreadySent = errors.New("уведомление уже отправлено")
	// ErrDuplicateID — запись с таким идентификатором уже существует.
	ErrDuplicateID = errors.New("идентификатор уже занят")
)

// Store — потокобезопасное хранилище записей FileRecord.
type Store struct {
	mu      sync.RWMutex
	records map[string]*model.FileRecord // file_id → запись
	dataDir string
	ready   bool // индекс построен и готов
	logger  *slog.Logger
}

// New создаёт пустое хранилище. Для заполнения вызовите BuildFromDir.
func New(dataDir string, logger *slog.Logger) *Store {
	return &Store{
		records: make(map[string]*model.FileRecord),
		dataDir: dataDir,
		logger:  logger.With(slog.String("component", "recordstore")),
	}
}

// BuildFromDir строит индекс из attr.json файлов в директории данных.
// Вызывается при старте сервера. Заменяет текущее содержимое индекса.
// После успешного построения хранилище помечается как ready.
func (s *Store) BuildFromDir() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := attr.ScanDir(s.dataDir)
	if err != nil {
		return fmt.Errorf("ошибка сканирования директории %s: %w", s.dataDir, err)
	}

	s.records = make(map[string]*model.FileRecord, len(recs))
	for _, rec := range recs {
		s.records[rec.FileID] = rec
	}

	s.ready = true

	s.logger.Info("Индекс записей построен",
		slog.Int("records", len(s.records)),
		slog.String("data_dir", s.dataDir),
	)

	return nil
}

// IsReady возвращает true, если индекс построен и готов к использованию.
func (s *Store) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// attrPath возвращает путь к attr.json для записи.
func (s *Store) attrPath(rec *model.FileRecord) string {
	return attr.AttrFilePath(filepath.Join(s.dataDir, rec.StoragePath))
}

// Create сохраняет новую запись: attr.json на диск, затем в индекс.
// Возвращает ErrDuplicateID, если идентификатор уже занят.
func (s *Store) Create(rec *model.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.FileID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.FileID)
	}

	if err := attr.Write(s.attrPath(rec), rec); err != nil {
		return fmt.Errorf("ошибка записи attr.json: %w", err)
	}

	// Копия, чтобы избежать data race при внешних изменениях
	copied := *rec
	s.records[rec.FileID] = &copied
	return nil
}

// Get возвращает запись по file_id.
// Возвращает nil, если запись не найдена.
func (s *Store) Get(fileID string) *model.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[fileID]
	if !ok {
		return nil
	}

	// Возвращаем копию для потокобезопасности
	copied := *rec
	return &copied
}

// SetNotification атомарно переводит запись в состояние «уведомление
// запрошено»: проверка «sender пуст», установка пары sender/receiver и
// запись attr.json выполняются под одной блокировкой.
//
// Возвращает обновлённую запись или:
//   - ErrNotFound — записи нет;
//   - ErrAlreadySent — слот уже использован (поля не меняются);
//   - ошибку записи attr.json — in-memory состояние не меняется.
func (s *Store) SetNotification(fileID, sender, receiver string) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fileID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Notified() {
		return nil, ErrAlreadySent
	}

	updated := *rec
	updated.Sender = sender
	updated.Receiver = receiver

	// Сначала диск: если attr.json не записался, переход не состоялся
	if err := attr.Write(s.attrPath(&updated), &updated); err != nil {
		return nil, fmt.Errorf("ошибка записи attr.json: %w", err)
	}

	s.records[fileID] = &updated

	copied := updated
	return &copied, nil
}

// Remove удаляет запись из индекса по file_id.
// Диск не трогает: удаление blob-а и attr.json — ответственность вызывающего
// (см. reaper). Возвращает true, если запись была найдена и удалена.
func (s *Store) Remove(fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[fileID]; !ok {
		return false
	}
	delete(s.records, fileID)
	return true
}

// List возвращает копии всех записей. Порядок не определён.
// Используется фоновыми процессами (reaper, reconcile).
func (s *Store) List() []*model.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.FileRecord, 0, len(s.records))
	for _, rec := range s.records {
		copied := *rec
		result = append(result, &copied)
	}
	return result
}

// Count возвращает общее количество записей в индексе.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
