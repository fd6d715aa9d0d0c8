package storage_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Totarae/linkshortener/internal/model"
	"github.com/Totarae/linkshortener/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T, file string) *storage.Memory {
	t.Helper()
	m, err := storage.NewMemory(file, nil)
	require.NoError(t, err)
	return m
}

// Тест сохранения и получения ссылки из памяти
func TestMemory_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newMemory(t, "")

	rec := &model.LinkRecord{ShortCode: "abc123", OriginalURL: "https://yandex.ru", OwnerID: 1, CreatedAt: time.Now()}
	require.NoError(t, store.Create(ctx, rec))

	got, err := store.GetByCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://yandex.ru", got.OriginalURL)
	assert.Equal(t, model.OwnerID(1), got.OwnerID)

	assert.ErrorIs(t, store.Create(ctx, rec), model.ErrDuplicateCode)

	_, err = store.GetByCode(ctx, "nope00")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemory_CreateRequiresOwner(t *testing.T) {
	store := newMemory(t, "")
	err := store.Create(context.Background(), &model.LinkRecord{ShortCode: "abc123", OriginalURL: "https://yandex.ru"})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestMemory_ListByOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemory(t, "")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, &model.LinkRecord{ShortCode: "bbbbbb", OriginalURL: "https://2.example", OwnerID: 1, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, store.Create(ctx, &model.LinkRecord{ShortCode: "aaaaaa", OriginalURL: "https://1.example", OwnerID: 1, CreatedAt: base}))
	require.NoError(t, store.Create(ctx, &model.LinkRecord{ShortCode: "cccccc", OriginalURL: "https://3.example", OwnerID: 2, CreatedAt: base}))

	links, err := store.ListByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "aaaaaa", links[0].ShortCode)
	assert.Equal(t, "bbbbbb", links[1].ShortCode)

	empty, err := store.ListByOwner(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemory_UpdateAndDeleteOwnership(t *testing.T) {
	ctx := context.Background()
	store := newMemory(t, "")
	require.NoError(t, store.Create(ctx, &model.LinkRecord{ShortCode: "abc123", OriginalURL: "https://a.example", OwnerID: 1, CustomName: "a"}))

	_, _, err := store.Update(ctx, "abc123", 2, model.Patch{OriginalURL: "https://evil.example"})
	assert.ErrorIs(t, err, model.ErrForbidden)
	_, _, err = store.Update(ctx, "zzz999", 1, model.Patch{CustomName: "b"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	rec, changed, err := store.Update(ctx, "abc123", 1, model.Patch{Description: "d"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "https://a.example", rec.OriginalURL)
	assert.Equal(t, "a", rec.CustomName)
	assert.Equal(t, "d", rec.Description)

	assert.ErrorIs(t, store.Delete(ctx, "abc123", 2), model.ErrForbidden)
	assert.ErrorIs(t, store.Delete(ctx, "zzz999", 1), model.ErrNotFound)
	require.NoError(t, store.Delete(ctx, "abc123", 1))

	_, err = store.GetByCode(ctx, "abc123")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

// Тест восстановления данных из журнала
func TestMemory_JournalReplay(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "links.jsonl")

	store := newMemory(t, file)
	require.NoError(t, store.Create(ctx, &model.LinkRecord{ShortCode: "aaaaaa", OriginalURL: "https://1.example", OwnerID: 1}))
	require.NoError(t, store.Create(ctx, &model.LinkRecord{ShortCode: "bbbbbb", OriginalURL: "https://2.example", OwnerID: 1}))
	_, _, err := store.Update(ctx, "aaaaaa", 1, model.Patch{OriginalURL: "https://1-new.example"})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "bbbbbb", 1))

	reopened := newMemory(t, file)
	got, err := reopened.GetByCode(ctx, "aaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "https://1-new.example", got.OriginalURL)

	_, err = reopened.GetByCode(ctx, "bbbbbb")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemory_LoadFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "links.jsonl")
	entry := model.Entry{Op: model.OpCreate, Record: model.LinkRecord{ShortCode: "s12345", OriginalURL: "https://mail.ru", OwnerID: 9}}

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, append(data, '\n'), 0o644))

	store := newMemory(t, file)
	got, err := store.GetByCode(context.Background(), "s12345")
	require.NoError(t, err)
	assert.Equal(t, "https://mail.ru", got.OriginalURL)
}

func TestMemory_LoadFromFileBroken(t *testing.T) {
	file := filepath.Join(t.TempDir(), "links.jsonl")
	require.NoError(t, os.WriteFile(file, []byte("{not json\n"), 0o644))

	_, err := storage.NewMemory(file, nil)
	assert.Error(t, err)
}
