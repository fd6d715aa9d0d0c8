package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Totarae/linkshortener/internal/handlers"
	"github.com/Totarae/linkshortener/internal/model"
	"github.com/Totarae/linkshortener/internal/service"
	"github.com/Totarae/linkshortener/internal/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func newBenchHandler(b *testing.B) (*handlers.Handler, *service.ShortenerService) {
	persistent, err := storage.NewMemory("", nil)
	if err != nil {
		b.Fatal(err)
	}
	svc := service.NewShortenerService(persistent, storage.NewEphemeral(), nil, zap.NewNop(),
		service.Config{BaseURL: "http://localhost:8080"})
	b.Cleanup(svc.Wait)
	return handlers.NewHandler(svc, zap.NewNop()), svc
}

func BenchmarkReceiveShorten(b *testing.B) {
	h, _ := newBenchHandler(b)
	body := `{"originalUrl":"https://yandex.ru"}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(body))
		w := httptest.NewRecorder()
		h.ReceiveShorten(w, req)
		if w.Code != http.StatusCreated {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}

func BenchmarkResponseURL(b *testing.B) {
	h, svc := newBenchHandler(b)
	res, err := svc.ShortenURL(context.Background(), 0, model.ShortenRequest{OriginalURL: "https://yandex.ru"})
	if err != nil {
		b.Fatal(err)
	}

	r := chi.NewRouter()
	r.Get("/{shortCode}", h.ResponseURL)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/"+res.ShortCode, nil))
		if w.Code != http.StatusTemporaryRedirect {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}
