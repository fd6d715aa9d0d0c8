package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Totarae/linkshortener/internal/cache"
	"github.com/Totarae/linkshortener/internal/service"
	"github.com/Totarae/linkshortener/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBaseURL = "http://localhost:8080"

// memClient клиент кэша в памяти.
type memClient struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemClient() *memClient {
	return &memClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memClient) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (m *memClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memClient) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

func (m *memClient) lookup(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

type fixture struct {
	svc        *service.ShortenerService
	persistent *storage.Memory
	ephemeral  *storage.Ephemeral
}

func newFixture(t testing.TB, client cache.Client, logger *zap.Logger) *fixture {
	t.Helper()
	persistent, err := storage.NewMemory("", nil)
	require.NoError(t, err)
	ephemeral := storage.NewEphemeral()

	svc := service.NewShortenerService(persistent, ephemeral, cache.New(client, cache.Config{}), logger,
		service.Config{BaseURL: testBaseURL})
	t.Cleanup(svc.Wait)

	return &fixture{svc: svc, persistent: persistent, ephemeral: ephemeral}
}
