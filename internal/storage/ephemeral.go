package storage

import (
	"context"
	"sync"

	"github.com/Totarae/linkshortener/internal/model"
)

// Ephemeral хранит анонимные ссылки только в памяти процесса.
// Записи пишутся один раз и живут до перезапуска.
type Ephemeral struct {
	mu    sync.RWMutex
	links map[string]*model.LinkRecord
}

// NewEphemeral создаёт пустое временное хранилище.
func NewEphemeral() *Ephemeral {
	return &Ephemeral{links: make(map[string]*model.LinkRecord)}
}

// Create сохраняет анонимную запись.
func (e *Ephemeral) Create(_ context.Context, rec *model.LinkRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.links[rec.ShortCode]; ok {
		return model.ErrDuplicateCode
	}
	stored := rec.Clone()
	stored.OwnerID = 0
	e.links[rec.ShortCode] = stored
	return nil
}

// GetByCode возвращает копию записи по коду.
func (e *Ephemeral) GetByCode(_ context.Context, code string) (*model.LinkRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, ok := e.links[code]
	if !ok {
		return nil, model.ErrNotFound
	}
	return rec.Clone(), nil
}

// Len количество записей.
func (e *Ephemeral) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.links)
}

// Reset очищает хранилище, как при перезапуске процесса.
func (e *Ephemeral) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.links = make(map[string]*model.LinkRecord)
}
