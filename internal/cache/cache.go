// Package cache реализует кэш коротких ссылок поверх внешнего хранилища ключ-значение.
//
// Кэш не является источником истины: любая ошибка клиента оборачивается в
// model.ErrCacheUnavailable, и вызывающий код должен считать её промахом.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Totarae/linkshortener/internal/model"
)

// Namespace логическое пространство ключей.
type Namespace string

const (
	// Persistent ссылки владельцев.
	Persistent Namespace = "persistent"
	// Ephemeral анонимные ссылки.
	Ephemeral Namespace = "ephemeral"
)

// TTL по умолчанию.
const (
	DefaultPersistentTTL = 24 * time.Hour
	DefaultEphemeralTTL  = time.Hour
	DefaultTimeout       = 200 * time.Millisecond
)

// ErrMiss ключ отсутствует.
var ErrMiss = errors.New("cache miss")

//go:generate mockgen -destination=../mocks/cache_client_mock.go -package=mocks github.com/Totarae/linkshortener/internal/cache Client

// Client минимальный клиент хранилища ключ-значение.
// Get возвращает ErrMiss, если ключа нет.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Config настройки кэша.
type Config struct {
	PersistentTTL time.Duration
	EphemeralTTL  time.Duration
	// Timeout ограничивает каждый вызов клиента.
	Timeout time.Duration
}

// Cache кэш с двумя пространствами ключей.
type Cache struct {
	client  Client
	ttls    map[Namespace]time.Duration
	timeout time.Duration
}

// New создаёт кэш. Нулевые значения в cfg заменяются значениями по умолчанию.
func New(client Client, cfg Config) *Cache {
	if client == nil {
		client = Disabled{}
	}
	if cfg.PersistentTTL <= 0 {
		cfg.PersistentTTL = DefaultPersistentTTL
	}
	if cfg.EphemeralTTL <= 0 {
		cfg.EphemeralTTL = DefaultEphemeralTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Cache{
		client: client,
		ttls: map[Namespace]time.Duration{
			Persistent: cfg.PersistentTTL,
			Ephemeral:  cfg.EphemeralTTL,
		},
		timeout: cfg.Timeout,
	}
}

// Key возвращает ключ вида "{namespace}:{code}".
func Key(ns Namespace, code string) string {
	return string(ns) + ":" + code
}

// TTL время жизни записей пространства ns.
func (c *Cache) TTL(ns Namespace) time.Duration {
	return c.ttls[ns]
}

// Get возвращает значение и признак попадания.
func (c *Cache) Get(ctx context.Context, ns Namespace, code string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, err := c.client.Get(ctx, Key(ns, code))
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return "", false, nil
		}
		return "", false, unavailable("get", ns, code, err)
	}
	return value, true, nil
}

// Set записывает значение. Нулевой ttl означает TTL пространства.
func (c *Cache) Set(ctx context.Context, ns Namespace, code, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.TTL(ns)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, Key(ns, code), value, ttl); err != nil {
		return unavailable("set", ns, code, err)
	}
	return nil
}

// Delete удаляет значение.
func (c *Cache) Delete(ctx context.Context, ns Namespace, code string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Del(ctx, Key(ns, code)); err != nil {
		return unavailable("delete", ns, code, err)
	}
	return nil
}

func unavailable(op string, ns Namespace, code string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", model.ErrCacheUnavailable, op, Key(ns, code), err)
}

// Disabled клиент-заглушка, когда Redis не настроен: всегда промах.
type Disabled struct{}

// Get всегда возвращает ErrMiss.
func (Disabled) Get(context.Context, string) (string, error) { return "", ErrMiss }

// Set ничего не делает.
func (Disabled) Set(context.Context, string, string, time.Duration) error { return nil }

// Del ничего не делает.
func (Disabled) Del(context.Context, string) error { return nil }
