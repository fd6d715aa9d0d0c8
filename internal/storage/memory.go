package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/Totarae/linkshortener/internal/model"
	"go.uber.org/zap"
)

// Memory постоянное хранилище в памяти с необязательным журналом в файле.
// Каждая операция дописывается в журнал JSON-строкой и проигрывается при старте.
type Memory struct {
	mu     sync.RWMutex
	links  map[string]*model.LinkRecord
	file   string
	logger *zap.Logger
}

// NewMemory создаёт хранилище. Если file не пустой, данные загружаются из журнала.
func NewMemory(file string, logger *zap.Logger) (*Memory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Memory{
		links:  make(map[string]*model.LinkRecord),
		file:   file,
		logger: logger,
	}
	if err := m.LoadFromFile(); err != nil {
		return nil, fmt.Errorf("load journal %q: %w", file, err)
	}
	return m, nil
}

// Create сохраняет запись владельца.
func (m *Memory) Create(_ context.Context, rec *model.LinkRecord) error {
	if !rec.OwnerID.Valid() {
		return model.ErrUnauthorized
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[rec.ShortCode]; ok {
		return model.ErrDuplicateCode
	}
	stored := rec.Clone()
	if err := m.appendToFile(model.Entry{Op: model.OpCreate, Record: *stored}); err != nil {
		return err
	}
	m.links[rec.ShortCode] = stored
	return nil
}

// GetByCode возвращает копию записи по коду.
func (m *Memory) GetByCode(_ context.Context, code string) (*model.LinkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.links[code]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec.Clone(), nil
}

// ListByOwner возвращает ссылки владельца, старые первыми.
func (m *Memory) ListByOwner(_ context.Context, owner model.OwnerID) ([]*model.LinkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*model.LinkRecord, 0)
	for _, rec := range m.links {
		if rec.OwnerID == owner {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ShortCode < result[j].ShortCode
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Update применяет патч к записи владельца.
func (m *Memory) Update(_ context.Context, code string, owner model.OwnerID, patch model.Patch) (*model.LinkRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.owned(code, owner)
	if err != nil {
		return nil, false, err
	}

	updated := rec.Clone()
	urlChanged := patch.Apply(updated)
	if err := m.appendToFile(model.Entry{Op: model.OpUpdate, Record: *updated}); err != nil {
		return nil, false, err
	}
	m.links[code] = updated
	return updated.Clone(), urlChanged, nil
}

// Delete удаляет запись владельца.
func (m *Memory) Delete(_ context.Context, code string, owner model.OwnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.owned(code, owner)
	if err != nil {
		return err
	}
	if err := m.appendToFile(model.Entry{Op: model.OpDelete, Record: *rec}); err != nil {
		return err
	}
	delete(m.links, code)
	return nil
}

// Ping всегда успешен.
func (m *Memory) Ping(context.Context) error {
	return nil
}

// owned вызывается под m.mu.
func (m *Memory) owned(code string, owner model.OwnerID) (*model.LinkRecord, error) {
	rec, ok := m.links[code]
	if !ok {
		return nil, model.ErrNotFound
	}
	if rec.OwnerID != owner {
		return nil, model.ErrForbidden
	}
	return rec, nil
}

// LoadFromFile загружает данные из журнала при старте сервера.
func (m *Memory) LoadFromFile() error {
	if m.file == "" {
		return nil
	}
	file, err := os.Open(m.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Файл ещё не создан, это не ошибка
		}
		return err
	}
	defer file.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	decoder := json.NewDecoder(bufio.NewReader(file))
	for {
		var entry model.Entry
		if err := decoder.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		rec := entry.Record
		switch entry.Op {
		case model.OpCreate, model.OpUpdate:
			m.links[rec.ShortCode] = &rec
		case model.OpDelete:
			delete(m.links, rec.ShortCode)
		}
	}

	m.logger.Info("journal loaded", zap.String("file", m.file), zap.Int("links", len(m.links)))
	return nil
}

// appendToFile добавляет запись в журнал. Вызывается под m.mu.
func (m *Memory) appendToFile(entry model.Entry) error {
	if m.file == "" {
		return nil
	}
	file, err := os.OpenFile(m.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}
