package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Totarae/linkshortener/internal/cache"
	"github.com/Totarae/linkshortener/internal/generator"
	"github.com/Totarae/linkshortener/internal/model"
	"github.com/Totarae/linkshortener/internal/storage"
	"go.uber.org/zap"
)

// Сообщения для клиента.
const (
	MessageSaved     = "URL saved to your account"
	MessageTemporary = "URL is temporary and will be deleted when service restarts"
)

// backfillTimeout ограничивает фоновое заполнение кэша после чтения из БД.
const backfillTimeout = 2 * time.Second

// Config настройки координатора.
type Config struct {
	// BaseURL префикс коротких ссылок, например http://localhost:8080.
	BaseURL string
	// QRBaseURL префикс ссылок на QR-коды для сохранённых ссылок.
	QRBaseURL string
	// MaxRetries число попыток подобрать свободный код.
	MaxRetries int
}

// ShortenerService координирует создание, разрешение, изменение и удаление ссылок.
// Порядок записи "сначала хранилище, потом кэш" соблюдается только здесь.
type ShortenerService struct {
	Persistent storage.PersistentStore
	Ephemeral  storage.EphemeralStore
	Cache      *cache.Cache
	Generator  *generator.Generator
	Logger     *zap.Logger
	BaseURL    string
	QRBaseURL  string

	backfills sync.WaitGroup
}

// NewShortenerService создаёт координатор.
func NewShortenerService(persistent storage.PersistentStore, ephemeral storage.EphemeralStore, c *cache.Cache, logger *zap.Logger, cfg Config) *ShortenerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.New(cache.Disabled{}, cache.Config{})
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	qrBaseURL := strings.TrimSuffix(cfg.QRBaseURL, "/")
	if qrBaseURL == "" {
		qrBaseURL = baseURL + "/api/qr"
	}

	return &ShortenerService{
		Persistent: persistent,
		Ephemeral:  ephemeral,
		Cache:      c,
		Generator: generator.New(
			[]storage.Lookup{ephemeral, persistent},
			generator.WithMaxRetries(cfg.MaxRetries),
		),
		Logger:    logger,
		BaseURL:   baseURL,
		QRBaseURL: qrBaseURL,
	}
}

// ShortenURL создаёт короткую ссылку. С владельцем запись сохраняется навсегда,
// без владельца живёт до перезапуска сервиса.
func (s *ShortenerService) ShortenURL(ctx context.Context, owner model.OwnerID, req model.ShortenRequest) (*model.ShortenResult, error) {
	originalURL := strings.TrimSpace(req.OriginalURL)
	if originalURL == "" {
		return nil, model.ErrInvalidRequest
	}

	rec := &model.LinkRecord{
		OriginalURL: originalURL,
		OwnerID:     owner,
		CreatedAt:   time.Now().UTC(),
		CustomName:  req.CustomName,
		Description: req.Description,
	}

	ns := cache.Ephemeral
	if rec.Persistent() {
		ns = cache.Persistent
	}

	code, err := s.Generator.Reserve(ctx, func(ctx context.Context, code string) error {
		rec.ShortCode = code
		if rec.Persistent() {
			return s.Persistent.Create(ctx, rec)
		}
		return s.Ephemeral.Create(ctx, rec)
	})
	if err != nil {
		if errors.Is(err, model.ErrCodeSpaceExhausted) {
			s.Logger.Warn("short code space exhausted", zap.Int64("owner_id", int64(owner)))
		}
		return nil, fmt.Errorf("shorten: %w", err)
	}

	if err := s.Cache.Set(ctx, ns, code, originalURL, 0); err != nil {
		s.cacheFailed("set", ns, code, err)
	}

	result := &model.ShortenResult{
		ShortURL:    s.ShortURL(code),
		ShortCode:   code,
		CustomName:  rec.CustomName,
		Description: rec.Description,
		Saved:       rec.Persistent(),
		Message:     MessageTemporary,
	}
	if result.Saved {
		result.QRCodeURL = s.QRBaseURL + "/" + code
		result.Message = MessageSaved
	}

	s.Logger.Debug("link created",
		zap.String("short_code", code),
		zap.Bool("saved", result.Saved),
	)
	return result, nil
}

// ResolveURL возвращает оригинальный URL. Порядок поиска: кэш постоянных ссылок,
// кэш временных, временное хранилище, постоянное хранилище.
func (s *ShortenerService) ResolveURL(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", model.ErrNotFound
	}

	for _, ns := range []cache.Namespace{cache.Persistent, cache.Ephemeral} {
		value, ok, err := s.Cache.Get(ctx, ns, code)
		if err != nil {
			s.cacheFailed("get", ns, code, err)
			continue
		}
		if ok {
			return value, nil
		}
	}

	rec, err := s.Ephemeral.GetByCode(ctx, code)
	switch {
	case err == nil:
		return rec.OriginalURL, nil
	case !errors.Is(err, model.ErrNotFound):
		s.Logger.Warn("ephemeral store lookup failed", zap.String("short_code", code), zap.Error(err))
	}

	rec, err = s.Persistent.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("resolve %s: %w", code, err)
	}

	s.backfill(ctx, code, rec.OriginalURL)
	return rec.OriginalURL, nil
}

// backfill кладёт найденную в БД ссылку в кэш, не задерживая ответ.
// После записи ссылка перечитывается: если её успели удалить или изменить,
// запись в кэше удаляется, чтобы устаревшее значение не жило весь TTL.
func (s *ShortenerService) backfill(ctx context.Context, code, originalURL string) {
	s.backfills.Add(1)
	go func() {
		defer s.backfills.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backfillTimeout)
		defer cancel()

		if err := s.Cache.Set(ctx, cache.Persistent, code, originalURL, 0); err != nil {
			s.cacheFailed("backfill", cache.Persistent, code, err)
			return
		}

		rec, err := s.Persistent.GetByCode(ctx, code)
		if err == nil && rec.OriginalURL == originalURL {
			return
		}
		if err := s.Cache.Delete(ctx, cache.Persistent, code); err != nil {
			s.cacheFailed("backfill revert", cache.Persistent, code, err)
		}
	}()
}

// Wait дожидается завершения фоновых заполнений кэша.
func (s *ShortenerService) Wait() {
	s.backfills.Wait()
}

// GetUserURLs возвращает ссылки владельца.
func (s *ShortenerService) GetUserURLs(ctx context.Context, owner model.OwnerID) ([]*model.LinkRecord, error) {
	if !owner.Valid() {
		return nil, model.ErrUnauthorized
	}
	links, err := s.Persistent.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// UpdateURL частично обновляет ссылку владельца. Пустой патч ничего не пишет.
// Если сменился URL, запись в кэше перезаписывается новым значением на полный TTL.
func (s *ShortenerService) UpdateURL(ctx context.Context, code string, owner model.OwnerID, patch model.Patch) (*model.LinkRecord, error) {
	if !owner.Valid() {
		return nil, model.ErrUnauthorized
	}

	if patch.Empty() {
		return s.currentRecord(ctx, code, owner)
	}

	rec, urlChanged, err := s.Persistent.Update(ctx, code, owner, patch)
	if err != nil {
		return nil, s.ownershipError("update", code, owner, err)
	}

	if urlChanged {
		if err := s.Cache.Set(ctx, cache.Persistent, code, rec.OriginalURL, s.Cache.TTL(cache.Persistent)); err != nil {
			s.cacheFailed("set", cache.Persistent, code, err)
			// старое значение не должно пережить обновление
			if err := s.Cache.Delete(ctx, cache.Persistent, code); err != nil {
				s.cacheFailed("delete", cache.Persistent, code, err)
			}
		}
	}
	return rec, nil
}

// currentRecord возвращает запись владельца без изменений.
func (s *ShortenerService) currentRecord(ctx context.Context, code string, owner model.OwnerID) (*model.LinkRecord, error) {
	rec, err := s.Persistent.GetByCode(ctx, code)
	if err != nil {
		return nil, s.ownershipError("update", code, owner, err)
	}
	if rec.OwnerID != owner {
		return nil, s.ownershipError("update", code, owner, model.ErrForbidden)
	}
	return rec, nil
}

// DeleteURL удаляет ссылку владельца: сначала из хранилища, затем из кэша.
func (s *ShortenerService) DeleteURL(ctx context.Context, code string, owner model.OwnerID) error {
	if !owner.Valid() {
		return model.ErrUnauthorized
	}

	if err := s.Persistent.Delete(ctx, code, owner); err != nil {
		return s.ownershipError("delete", code, owner, err)
	}

	if err := s.Cache.Delete(ctx, cache.Persistent, code); err != nil {
		s.Logger.Error("cache invalidation after delete failed",
			zap.String("short_code", code),
			zap.Error(err),
		)
	}
	return nil
}

// Ping проверяет постоянное хранилище.
func (s *ShortenerService) Ping(ctx context.Context) error {
	return s.Persistent.Ping(ctx)
}

// ShortURL полный адрес короткой ссылки.
func (s *ShortenerService) ShortURL(code string) string {
	return s.BaseURL + "/" + code
}

// ownershipError скрывает существование чужих ссылок: ErrForbidden превращается в ErrNotFound.
func (s *ShortenerService) ownershipError(op, code string, owner model.OwnerID, err error) error {
	switch {
	case errors.Is(err, model.ErrForbidden):
		s.Logger.Info("access to foreign link denied",
			zap.String("op", op),
			zap.String("short_code", code),
			zap.Int64("owner_id", int64(owner)),
		)
		return model.ErrNotFound
	case errors.Is(err, model.ErrNotFound):
		return model.ErrNotFound
	default:
		return fmt.Errorf("%s %s: %w", op, code, err)
	}
}

func (s *ShortenerService) cacheFailed(op string, ns cache.Namespace, code string, err error) {
	s.Logger.Warn("cache unavailable, falling back to store",
		zap.String("op", op),
		zap.String("namespace", string(ns)),
		zap.String("short_code", code),
		zap.Error(err),
	)
}
