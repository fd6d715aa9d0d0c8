// Package storage содержит интерфейсы хранилищ ссылок и их реализации в памяти.
package storage

import (
	"context"

	"github.com/Totarae/linkshortener/internal/model"
)

// Lookup определяет поиск записи по короткому коду. Отсутствие записи возвращается как model.ErrNotFound.
type Lookup interface {
	GetByCode(ctx context.Context, code string) (*model.LinkRecord, error)
}

// PersistentStore определяет интерфейс постоянного хранилища ссылок владельцев.
type PersistentStore interface {
	Lookup
	// Create сохраняет запись или возвращает model.ErrDuplicateCode, если код уже занят.
	Create(ctx context.Context, rec *model.LinkRecord) error
	// ListByOwner возвращает ссылки владельца в порядке создания.
	ListByOwner(ctx context.Context, owner model.OwnerID) ([]*model.LinkRecord, error)
	// Update применяет патч к записи владельца. Возвращает обновлённую запись и признак смены URL.
	Update(ctx context.Context, code string, owner model.OwnerID, patch model.Patch) (*model.LinkRecord, bool, error)
	// Delete удаляет запись владельца.
	Delete(ctx context.Context, code string, owner model.OwnerID) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// EphemeralStore определяет интерфейс временного хранилища анонимных ссылок.
type EphemeralStore interface {
	Lookup
	// Create сохраняет запись или возвращает model.ErrDuplicateCode, если код уже занят.
	Create(ctx context.Context, rec *model.LinkRecord) error
}
