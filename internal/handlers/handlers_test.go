package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Totarae/linkshortener/internal/auth"
	"github.com/Totarae/linkshortener/internal/handlers"
	"github.com/Totarae/linkshortener/internal/model"
	"github.com/Totarae/linkshortener/internal/service"
	"github.com/Totarae/linkshortener/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const baseURL = "http://localhost:8080"

func newHandler(t *testing.T) (*handlers.Handler, *service.ShortenerService) {
	t.Helper()
	persistent, err := storage.NewMemory("", nil)
	require.NoError(t, err)
	svc := service.NewShortenerService(persistent, storage.NewEphemeral(), nil, zap.NewNop(),
		service.Config{BaseURL: baseURL})
	t.Cleanup(svc.Wait)
	return handlers.NewHandler(svc, zap.NewNop()), svc
}

// withRoute добавляет параметр маршрута chi и владельца.
func withRoute(req *http.Request, code string, owner model.OwnerID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("shortCode", code)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if owner.Valid() {
		ctx = auth.WithOwner(ctx, owner)
	}
	return req.WithContext(ctx)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestReceiveURL(t *testing.T) {
	h, _ := newHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("https://example.com"))
	req.Header.Set("Content-Type", "text/plain")

	w := httptest.NewRecorder()
	h.ReceiveURL(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.HasPrefix(string(body), baseURL+"/"))
}

func TestReceiveURL_EmptyBody(t *testing.T) {
	h, _ := newHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

	w := httptest.NewRecorder()
	h.ReceiveURL(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Original URL is required", decode[model.MessageResponse](t, resp).Message)
}

func TestReceiveShorten(t *testing.T) {
	h, _ := newHandler(t)

	tests := []struct {
		name   string
		owner  model.OwnerID
		body   string
		status int
		saved  bool
	}{
		{name: "анонимно", body: `{"originalUrl":"https://yandex.ru"}`, status: http.StatusCreated},
		{name: "с владельцем", owner: 5, body: `{"originalUrl":"https://yandex.ru","customName":"я"}`, status: http.StatusCreated, saved: true},
		{name: "без URL", body: `{"customName":"x"}`, status: http.StatusBadRequest},
		{name: "битый JSON", body: `{`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withRoute(httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(tt.body)), "", tt.owner)
			w := httptest.NewRecorder()
			h.ReceiveShorten(w, req)

			resp := w.Result()
			defer resp.Body.Close()
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusCreated {
				return
			}

			res := decode[model.ShortenResult](t, resp)
			assert.Equal(t, tt.saved, res.Saved)
			assert.Equal(t, baseURL+"/"+res.ShortCode, res.ShortURL)
			if tt.saved {
				assert.NotEmpty(t, res.QRCodeURL)
				assert.Equal(t, service.MessageSaved, res.Message)
			} else {
				assert.Empty(t, res.QRCodeURL)
				assert.Equal(t, service.MessageTemporary, res.Message)
			}
		})
	}
}

// TestResponseURL проверяет редирект на оригинальный URL
func TestResponseURL(t *testing.T) {
	h, svc := newHandler(t)
	res, err := svc.ShortenURL(context.Background(), 0, model.ShortenRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/{shortCode}", h.ResponseURL)

	req := httptest.NewRequest(http.MethodGet, "/"+res.ShortCode, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://example.com", resp.Header.Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/nope00", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUserURLs(t *testing.T) {
	h, svc := newHandler(t)
	ctx := context.Background()
	_, err := svc.ShortenURL(ctx, 1, model.ShortenRequest{OriginalURL: "https://yandex.ru/1"})
	require.NoError(t, err)
	_, err = svc.ShortenURL(ctx, 1, model.ShortenRequest{OriginalURL: "https://yandex.ru/2"})
	require.NoError(t, err)
	_, err = svc.ShortenURL(ctx, 2, model.ShortenRequest{OriginalURL: "https://other.example"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.GetUserURLs(w, withRoute(httptest.NewRequest(http.MethodGet, "/my-urls", nil), "", 1))
	resp := w.Result()
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	links := decode[[]model.LinkRecord](t, resp)
	require.Len(t, links, 2)
	for _, l := range links {
		assert.Equal(t, model.OwnerID(1), l.OwnerID)
	}

	w = httptest.NewRecorder()
	h.GetUserURLs(w, httptest.NewRequest(http.MethodGet, "/my-urls", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateURL(t *testing.T) {
	h, svc := newHandler(t)
	res, err := svc.ShortenURL(context.Background(), 1, model.ShortenRequest{OriginalURL: "https://old.example", CustomName: "n"})
	require.NoError(t, err)

	body := `{"originalUrl":"https://new.example"}`
	w := httptest.NewRecorder()
	h.UpdateURL(w, withRoute(httptest.NewRequest(http.MethodPut, "/update/"+res.ShortCode, strings.NewReader(body)), res.ShortCode, 1))
	resp := w.Result()
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	upd := decode[model.UpdateResponse](t, resp)
	assert.Equal(t, "URL updated successfully", upd.Message)
	require.NotNil(t, upd.URLMapping)
	assert.Equal(t, "https://new.example", upd.URLMapping.OriginalURL)
	assert.Equal(t, "n", upd.URLMapping.CustomName)

	w = httptest.NewRecorder()
	h.UpdateURL(w, withRoute(httptest.NewRequest(http.MethodPut, "/update/"+res.ShortCode, strings.NewReader(body)), res.ShortCode, 2))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "permission to update")

	w = httptest.NewRecorder()
	h.UpdateURL(w, withRoute(httptest.NewRequest(http.MethodPut, "/update/"+res.ShortCode, strings.NewReader(body)), res.ShortCode, 0))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteURL(t *testing.T) {
	h, svc := newHandler(t)
	res, err := svc.ShortenURL(context.Background(), 1, model.ShortenRequest{OriginalURL: "https://gone.example"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.DeleteURL(w, withRoute(httptest.NewRequest(http.MethodDelete, "/delete/"+res.ShortCode, nil), res.ShortCode, 2))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "permission to delete")

	w = httptest.NewRecorder()
	h.DeleteURL(w, withRoute(httptest.NewRequest(http.MethodDelete, "/delete/"+res.ShortCode, nil), res.ShortCode, 1))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"URL deleted successfully"}`, w.Body.String())

	_, err = svc.ResolveURL(context.Background(), res.ShortCode)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPing(t *testing.T) {
	h, _ := newHandler(t)
	w := httptest.NewRecorder()
	h.Ping(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// failingService отвечает заданной ошибкой на любую операцию.
type failingService struct {
	handlers.Shortener
	err error
}

func (f failingService) ShortenURL(context.Context, model.OwnerID, model.ShortenRequest) (*model.ShortenResult, error) {
	return nil, f.err
}

func (f failingService) Ping(context.Context) error {
	return f.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		status     int
		retryAfter string
	}{
		{err: model.ErrCodeSpaceExhausted, status: http.StatusServiceUnavailable, retryAfter: "1"},
		{err: model.ErrUnauthorized, status: http.StatusUnauthorized},
		{err: errors.New("database is on fire"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := handlers.NewHandler(failingService{err: tt.err}, nil)
			w := httptest.NewRecorder()
			h.ReceiveShorten(w, httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(`{"originalUrl":"https://a.example"}`)))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
			assert.NotContains(t, w.Body.String(), "fire")
		})
	}

	h := handlers.NewHandler(failingService{err: errors.New("down")}, nil)
	w := httptest.NewRecorder()
	h.Ping(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestBodyTooLarge(t *testing.T) {
	h, _ := newHandler(t)
	huge := "https://example.com/" + strings.Repeat("a", 1<<20)

	w := httptest.NewRecorder()
	h.ReceiveURL(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	h.ReceiveShorten(w, httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(`{"originalUrl":"`+huge+`"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "too large")

	w = httptest.NewRecorder()
	h.UpdateURL(w, withRoute(httptest.NewRequest(http.MethodPut, "/update/abc123", strings.NewReader(`{"description":"`+huge+`"}`)), "abc123", 1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
