package model

import (
	"strings"
	"time"
)

// CodeLength длина короткого кода.
const CodeLength = 6

// OwnerID идентификатор владельца ссылки. Нулевое значение означает анонимный запрос.
type OwnerID int64

// Valid сообщает, указан ли владелец.
func (o OwnerID) Valid() bool {
	return o > 0
}

// LinkRecord описывает сокращённую ссылку.
// Запись с владельцем хранится в постоянном хранилище, анонимная во временном.
type LinkRecord struct {
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	OwnerID     OwnerID   `json:"userId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CustomName  string    `json:"customName"`
	Description string    `json:"description"`
}

// Persistent сообщает, принадлежит ли запись постоянному хранилищу.
func (r *LinkRecord) Persistent() bool {
	return r.OwnerID.Valid()
}

// Clone возвращает копию записи, чтобы хранилища не отдавали наружу свои указатели.
func (r *LinkRecord) Clone() *LinkRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Patch частичное обновление записи. Пустые и состоящие из пробелов поля не меняют текущее значение.
type Patch struct {
	OriginalURL string
	CustomName  string
	Description string
}

func (p Patch) normalized() Patch {
	return Patch{
		OriginalURL: strings.TrimSpace(p.OriginalURL),
		CustomName:  strings.TrimSpace(p.CustomName),
		Description: strings.TrimSpace(p.Description),
	}
}

// Empty сообщает, что патч ничего не меняет.
func (p Patch) Empty() bool {
	n := p.normalized()
	return n.OriginalURL == "" && n.CustomName == "" && n.Description == ""
}

// Apply применяет патч к записи и возвращает true, если изменился OriginalURL.
func (p Patch) Apply(r *LinkRecord) bool {
	n := p.normalized()
	urlChanged := false
	if n.OriginalURL != "" && n.OriginalURL != r.OriginalURL {
		r.OriginalURL = n.OriginalURL
		urlChanged = true
	}
	if n.CustomName != "" {
		r.CustomName = n.CustomName
	}
	if n.Description != "" {
		r.Description = n.Description
	}
	return urlChanged
}
