// Package auth извлекает идентификатор владельца из ранее выданного токена.
// Выдача токенов принадлежит сервису аутентификации; здесь только проверка.
package auth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Totarae/linkshortener/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ClaimUserID имя claim с идентификатором пользователя.
	ClaimUserID = "UserId"
	// CookieName кука с токеном для браузерных клиентов.
	CookieName = "auth_token"
)

var errNoUserID = errors.New("token has no valid UserId claim")

// Auth проверяет JWT, подписанные HS256 общим секретом.
type Auth struct {
	secret []byte
	parser *jwt.Parser
}

// New создаёт проверку токенов с секретом secret.
func New(secret string) *Auth {
	return &Auth{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Parse проверяет токен и возвращает владельца.
func (a *Auth) Parse(token string) (model.OwnerID, error) {
	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	owner, err := ownerFromClaim(claims[ClaimUserID])
	if err != nil {
		return 0, err
	}
	return owner, nil
}

// OwnerID возвращает владельца запроса. Отсутствующий или неверный токен означает анонимный запрос.
func (a *Auth) OwnerID(r *http.Request) (model.OwnerID, bool) {
	token := bearerToken(r)
	if token == "" {
		return 0, false
	}
	owner, err := a.Parse(token)
	if err != nil {
		return 0, false
	}
	return owner, true
}

// IssueToken подписывает токен для владельца. Нужен тестам и локальной отладке.
func (a *Auth) IssueToken(owner model.OwnerID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		ClaimUserID: strconv.FormatInt(int64(owner), 10),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// UserId выдаётся строкой, но числовое значение тоже принимается.
func ownerFromClaim(v interface{}) (model.OwnerID, error) {
	var id int64
	switch val := v.(type) {
	case string:
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, errNoUserID
		}
		id = parsed
	case float64:
		if val != math.Trunc(val) {
			return 0, errNoUserID
		}
		id = int64(val)
	default:
		return 0, errNoUserID
	}
	owner := model.OwnerID(id)
	if !owner.Valid() {
		return 0, errNoUserID
	}
	return owner, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

type ctxKey struct{}

// WithOwner кладёт владельца в контекст.
func WithOwner(ctx context.Context, owner model.OwnerID) context.Context {
	return context.WithValue(ctx, ctxKey{}, owner)
}

// OwnerFromContext достаёт владельца из контекста; нулевое значение означает анонимный запрос.
func OwnerFromContext(ctx context.Context) model.OwnerID {
	owner, _ := ctx.Value(ctxKey{}).(model.OwnerID)
	return owner
}
