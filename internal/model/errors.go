package model

import "errors"

var (
	// ErrInvalidRequest запрос без обязательного URL.
	ErrInvalidRequest = errors.New("original URL is required")
	// ErrNotFound код неизвестен либо принадлежит другому владельцу.
	ErrNotFound = errors.New("short code not found")
	// ErrForbidden код существует, но принадлежит другому владельцу.
	// Наружу не отдаётся: координатор превращает его в ErrNotFound.
	ErrForbidden = errors.New("short code belongs to another owner")
	// ErrUnauthorized операция требует владельца, а запрос анонимный.
	ErrUnauthorized = errors.New("owner identity required")
	// ErrDuplicateCode код уже занят.
	ErrDuplicateCode = errors.New("short code already exists")
	// ErrCodeSpaceExhausted не удалось подобрать свободный код за отведённое число попыток.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique short code, retry later")
	// ErrCacheUnavailable кэш недоступен. Клиенту никогда не возвращается.
	ErrCacheUnavailable = errors.New("cache unavailable")
)
