// Package handlers реализует HTTP-интерфейс сервиса коротких ссылок.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Totarae/linkshortener/internal/auth"
	"github.com/Totarae/linkshortener/internal/model"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Сообщения об ошибках владения: существование чужой ссылки не раскрывается.
const (
	msgUpdateNotFound = "URL not found or you don't have permission to update it"
	msgDeleteNotFound = "URL not found or you don't have permission to delete it"
)

// maxBodyBytes предел размера тела запроса.
const maxBodyBytes = 1 << 20

// retryAfterSeconds подсказка клиенту при исчерпании попыток генерации кода.
const retryAfterSeconds = "1"

// Shortener операции координатора, нужные обработчикам.
type Shortener interface {
	ShortenURL(ctx context.Context, owner model.OwnerID, req model.ShortenRequest) (*model.ShortenResult, error)
	ResolveURL(ctx context.Context, code string) (string, error)
	GetUserURLs(ctx context.Context, owner model.OwnerID) ([]*model.LinkRecord, error)
	UpdateURL(ctx context.Context, code string, owner model.OwnerID, patch model.Patch) (*model.LinkRecord, error)
	DeleteURL(ctx context.Context, code string, owner model.OwnerID) error
	Ping(ctx context.Context) error
}

// Handler HTTP-обработчики.
type Handler struct {
	Service Shortener
	Logger  *zap.Logger
}

// NewHandler создаёт обработчики.
func NewHandler(service Shortener, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: service, Logger: logger}
}

// ReceiveURL принимает URL в теле запроса как text/plain и отвечает короткой ссылкой.
func (h *Handler) ReceiveURL(res http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(res, req.Body, maxBodyBytes))
	if err != nil {
		http.Error(res, "BadRequest", bodyErrorStatus(err))
		return
	}

	result, err := h.Service.ShortenURL(req.Context(), auth.OwnerFromContext(req.Context()),
		model.ShortenRequest{OriginalURL: strings.TrimSpace(string(body))})
	if err != nil {
		h.writeError(res, err, "")
		return
	}

	res.Header().Set("Content-Type", "text/plain")
	res.WriteHeader(http.StatusCreated)
	_, _ = res.Write([]byte(result.ShortURL))
}

// ReceiveShorten принимает JSON ShortenRequest и отвечает ShortenResult.
func (h *Handler) ReceiveShorten(res http.ResponseWriter, req *http.Request) {
	var body model.ShortenRequest
	if !decodeJSON(res, req, &body) {
		return
	}

	result, err := h.Service.ShortenURL(req.Context(), auth.OwnerFromContext(req.Context()), body)
	if err != nil {
		h.writeError(res, err, "")
		return
	}
	writeJSON(res, http.StatusCreated, result)
}

// ResponseURL перенаправляет на оригинальный URL.
func (h *Handler) ResponseURL(res http.ResponseWriter, req *http.Request) {
	code := chi.URLParam(req, "shortCode")
	if code == "" {
		http.Error(res, "Bad Request: Missing short code in URL", http.StatusBadRequest)
		return
	}

	originalURL, err := h.Service.ResolveURL(req.Context(), code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.NotFound(res, req)
			return
		}
		h.writeError(res, err, "")
		return
	}

	res.Header().Set("Location", originalURL)
	res.WriteHeader(http.StatusTemporaryRedirect)
}

// GetUserURLs возвращает ссылки текущего владельца.
func (h *Handler) GetUserURLs(res http.ResponseWriter, req *http.Request) {
	links, err := h.Service.GetUserURLs(req.Context(), auth.OwnerFromContext(req.Context()))
	if err != nil {
		h.writeError(res, err, "")
		return
	}
	writeJSON(res, http.StatusOK, links)
}

// UpdateURL частично обновляет ссылку текущего владельца.
func (h *Handler) UpdateURL(res http.ResponseWriter, req *http.Request) {
	var body model.ShortenRequest
	if !decodeJSON(res, req, &body) {
		return
	}

	rec, err := h.Service.UpdateURL(req.Context(), chi.URLParam(req, "shortCode"),
		auth.OwnerFromContext(req.Context()), body.Patch())
	if err != nil {
		h.writeError(res, err, msgUpdateNotFound)
		return
	}
	writeJSON(res, http.StatusOK, model.UpdateResponse{
		Message:    "URL updated successfully",
		URLMapping: rec,
	})
}

// DeleteURL удаляет ссылку текущего владельца.
func (h *Handler) DeleteURL(res http.ResponseWriter, req *http.Request) {
	err := h.Service.DeleteURL(req.Context(), chi.URLParam(req, "shortCode"), auth.OwnerFromContext(req.Context()))
	if err != nil {
		h.writeError(res, err, msgDeleteNotFound)
		return
	}
	writeJSON(res, http.StatusOK, model.MessageResponse{Message: "URL deleted successfully"})
}

// Ping проверяет готовность хранилища.
func (h *Handler) Ping(res http.ResponseWriter, req *http.Request) {
	if err := h.Service.Ping(req.Context()); err != nil {
		h.Logger.Error("storage ping failed", zap.Error(err))
		http.Error(res, "storage unavailable", http.StatusInternalServerError)
		return
	}
	res.WriteHeader(http.StatusOK)
}

// writeError переводит ошибки координатора в HTTP-ответ.
func (h *Handler) writeError(res http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		writeJSON(res, http.StatusBadRequest, model.MessageResponse{Message: "Original URL is required"})
	case errors.Is(err, model.ErrUnauthorized):
		writeJSON(res, http.StatusUnauthorized, model.MessageResponse{Message: "authorization required"})
	case errors.Is(err, model.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "URL not found"
		}
		writeJSON(res, http.StatusNotFound, model.MessageResponse{Message: notFoundMsg})
	case errors.Is(err, model.ErrCodeSpaceExhausted):
		res.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(res, http.StatusServiceUnavailable, model.MessageResponse{Message: model.ErrCodeSpaceExhausted.Error()})
	default:
		h.Logger.Error("request failed", zap.Error(err))
		writeJSON(res, http.StatusInternalServerError, model.MessageResponse{Message: "internal server error"})
	}
}

// decodeJSON читает JSON-тело не больше maxBodyBytes; при ошибке ответ уже записан.
func decodeJSON(res http.ResponseWriter, req *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(res, req.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	status := bodyErrorStatus(err)
	msg := "invalid JSON body"
	if status == http.StatusRequestEntityTooLarge {
		msg = "request body too large"
	}
	writeJSON(res, status, model.MessageResponse{Message: msg})
	return false
}

func bodyErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(res http.ResponseWriter, status int, v interface{}) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	_ = json.NewEncoder(res).Encode(v)
}
