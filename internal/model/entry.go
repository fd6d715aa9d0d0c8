package model

// Операции журнала постоянного хранилища.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Entry представляет структуру записи журнала в файле (одна JSON-строка на операцию).
type Entry struct {
	Op     string     `json:"op"`
	Record LinkRecord `json:"record"`
}
