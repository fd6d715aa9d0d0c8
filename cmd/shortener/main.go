package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Totarae/linkshortener/internal/auth"
	"github.com/Totarae/linkshortener/internal/cache"
	"github.com/Totarae/linkshortener/internal/config"
	"github.com/Totarae/linkshortener/internal/database"
	grpcserver "github.com/Totarae/linkshortener/internal/grpc"
	"github.com/Totarae/linkshortener/internal/handlers"
	"github.com/Totarae/linkshortener/internal/repositories"
	"github.com/Totarae/linkshortener/internal/router"
	"github.com/Totarae/linkshortener/internal/service"
	"github.com/Totarae/linkshortener/internal/storage"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Fatal("Ошибка при запуске сервера", zap.Error(err))
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	// Инициализация конфигурации
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	logger.Info("Конфигурация загружена",
		zap.String("address", cfg.ServerAddress),
		zap.String("base_url", cfg.BaseURL),
		zap.String("mode", cfg.Mode),
		zap.Bool("cache", cfg.RedisAddr != ""),
	)

	persistent, closeStore, err := newPersistentStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	linkCache, closeCache := newCache(cfg, logger)
	defer closeCache()

	svc := service.NewShortenerService(persistent, storage.NewEphemeral(), linkCache, logger, service.Config{
		BaseURL:    cfg.BaseURL,
		QRBaseURL:  cfg.QRBaseURL,
		MaxRetries: cfg.CodeMaxRetries,
	})
	defer svc.Wait()

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty, every request is treated as anonymous")
	}
	r := router.NewRouter(handlers.NewHandler(svc, logger), auth.New(cfg.JWTSecret), logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Сервер запущен", zap.String("address", cfg.ServerAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.GRPCAddress != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			return fmt.Errorf("listen gRPC: %w", err)
		}
		health := grpcserver.NewServer(svc, logger, grpcserver.DefaultProbeInterval)
		go func() {
			logger.Info("gRPC health server started", zap.String("address", cfg.GRPCAddress))
			if err := health.Serve(ctx, lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("Остановка сервера")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newPersistentStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.PersistentStore, func(), error) {
	if cfg.Mode != config.ModeDatabase {
		mem, err := storage.NewMemory(cfg.FileStoragePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return mem, func() {}, nil
	}

	if err := database.Migrate(cfg.DatabaseDSN, logger); err != nil {
		return nil, nil, err
	}
	db, err := database.NewDB(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewLinkRepository(db.Pool), db.Close, nil
}

func newCache(cfg *config.Config, logger *zap.Logger) (*cache.Cache, func()) {
	cacheCfg := cache.Config{
		PersistentTTL: cfg.PersistentTTL,
		EphemeralTTL:  cfg.EphemeralTTL,
		Timeout:       cfg.CacheTimeout,
	}
	if cfg.RedisAddr == "" {
		return cache.New(cache.Disabled{}, cacheCfg), func() {}
	}

	client := cache.NewRedis(cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		// кэш не обязателен: работаем через хранилища, пока Redis не поднимется
		logger.Warn("redis is unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return cache.New(client, cacheCfg), func() { _ = client.Close() }
}
