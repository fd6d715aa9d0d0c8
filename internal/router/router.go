package router

import (
	"github.com/Totarae/linkshortener/internal/auth"
	"github.com/Totarae/linkshortener/internal/handlers"
	"github.com/Totarae/linkshortener/internal/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NewRouter создаёт и настраивает маршрутизатор
func NewRouter(handler *handlers.Handler, authenticator *auth.Auth, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.LoggingMiddleware(logger))
	r.Use(middleware.GzipMiddleware)
	r.Use(middleware.Identity(authenticator))

	r.Get("/ping", handler.Ping)
	r.Post("/", handler.ReceiveURL)
	r.Post("/shorten", handler.ReceiveShorten)
	r.Post("/api/shorten", handler.ReceiveShorten)
	r.Get("/my-urls", handler.GetUserURLs)
	r.Put("/update/{shortCode}", handler.UpdateURL)
	r.Delete("/delete/{shortCode}", handler.DeleteURL)
	r.Get("/{shortCode}", handler.ResponseURL)
	return r
}
