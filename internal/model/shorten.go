package model

// ShortenRequest тело запроса на сокращение и на обновление ссылки.
type ShortenRequest struct {
	OriginalURL string `json:"originalUrl"`
	CustomName  string `json:"customName,omitempty"`
	Description string `json:"description,omitempty"`
}

// Patch превращает запрос в частичное обновление.
func (r ShortenRequest) Patch() Patch {
	return Patch{
		OriginalURL: r.OriginalURL,
		CustomName:  r.CustomName,
		Description: r.Description,
	}.normalized()
}

// ShortenResult результат сокращения URL.
type ShortenResult struct {
	ShortURL    string `json:"shortUrl"`
	ShortCode   string `json:"shortCode"`
	QRCodeURL   string `json:"qrCodeUrl,omitempty"`
	CustomName  string `json:"customName"`
	Description string `json:"description"`
	Saved       bool   `json:"saved"`
	Message     string `json:"message"`
}

// MessageResponse ответ с текстовым сообщением.
type MessageResponse struct {
	Message string `json:"message"`
}

// UpdateResponse ответ на обновление ссылки.
type UpdateResponse struct {
	Message    string      `json:"message"`
	URLMapping *LinkRecord `json:"urlMapping"`
}
