// Package generator выдаёт случайные короткие коды и разрешает коллизии между хранилищами.
package generator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Totarae/linkshortener/internal/model"
	"github.com/Totarae/linkshortener/internal/storage"
)

// Alphabet 62 буквенно-цифровых символа.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultMaxRetries число попыток подобрать свободный код.
const DefaultMaxRetries = 10

// maxUnbiased наибольшее кратное len(Alphabet), не превышающее 256.
const maxUnbiased = 256 - 256%len(Alphabet)

// ReserveFunc записывает запись с кодом в хранилище-владельца.
// Должна вернуть model.ErrDuplicateCode, если код уже занят.
type ReserveFunc func(ctx context.Context, code string) error

// Generator генерирует коды и проверяет их доступность во всех хранилищах.
type Generator struct {
	length     int
	maxRetries int
	tiers      []storage.Lookup
	random     io.Reader

	// inflight коды, которые сейчас проверяются и записываются в этом процессе
	inflight sync.Map
}

// Option настраивает Generator.
type Option func(*Generator)

// WithMaxRetries задаёт число попыток.
func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxRetries = n
		}
	}
}

// WithRandom подменяет источник случайности (используется в тестах).
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

// New создаёт генератор, проверяющий уникальность по всем переданным хранилищам.
func New(tiers []storage.Lookup, opts ...Option) *Generator {
	g := &Generator{
		length:     model.CodeLength,
		maxRetries: DefaultMaxRetries,
		tiers:      tiers,
		random:     rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate возвращает случайный код, символы выбираются равномерно из Alphabet.
func (g *Generator) Generate() (string, error) {
	code := make([]byte, 0, g.length)
	buf := make([]byte, g.length*2)
	for len(code) < g.length {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			code = append(code, Alphabet[int(b)%len(Alphabet)])
			if len(code) == g.length {
				break
			}
		}
	}
	return string(code), nil
}

// IsAvailable проверяет, что код не занят ни в одном хранилище.
func (g *Generator) IsAvailable(ctx context.Context, code string) (bool, error) {
	for _, tier := range g.tiers {
		_, err := tier.GetByCode(ctx, code)
		switch {
		case err == nil:
			return false, nil
		case errors.Is(err, model.ErrNotFound):
			continue
		default:
			return false, err
		}
	}
	return true, nil
}

// Reserve подбирает свободный код и сразу записывает его через reserve.
// Проверка и запись выполняются под резервированием кода внутри процесса,
// а model.ErrDuplicateCode от хранилища приводит к новой попытке.
func (g *Generator) Reserve(ctx context.Context, reserve ReserveFunc) (string, error) {
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := g.Generate()
		if err != nil {
			return "", err
		}

		ok, err := g.tryReserve(ctx, code, reserve)
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	return "", model.ErrCodeSpaceExhausted
}

func (g *Generator) tryReserve(ctx context.Context, code string, reserve ReserveFunc) (bool, error) {
	if _, busy := g.inflight.LoadOrStore(code, struct{}{}); busy {
		return false, nil
	}
	defer g.inflight.Delete(code)

	available, err := g.IsAvailable(ctx, code)
	if err != nil {
		return false, fmt.Errorf("check code availability: %w", err)
	}
	if !available {
		return false, nil
	}

	if err := reserve(ctx, code); err != nil {
		if errors.Is(err, model.ErrDuplicateCode) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
