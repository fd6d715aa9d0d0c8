package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Totarae/linkshortener/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation    = "23505"
	shortCodeUniqueKey = "links_short_code_key"
)

// DBTX подмножество методов *pgxpool.Pool, используемых репозиторием.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// LinkRepository постоянное хранилище ссылок в PostgreSQL.
type LinkRepository struct {
	DB DBTX
}

// NewLinkRepository создаёт новый экземпляр LinkRepository.
func NewLinkRepository(db DBTX) *LinkRepository {
	return &LinkRepository{DB: db}
}

const linkColumns = `short_code, original_url, owner_id, created_at, custom_name, description`

// Create сохраняет запись. Уникальный индекс по short_code отклоняет дубликаты.
func (r *LinkRepository) Create(ctx context.Context, rec *model.LinkRecord) error {
	if !rec.OwnerID.Valid() {
		return model.ErrUnauthorized
	}
	query := `INSERT INTO links (` + linkColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.DB.Exec(ctx, query,
		rec.ShortCode, rec.OriginalURL, int64(rec.OwnerID), rec.CreatedAt, rec.CustomName, rec.Description)
	if err != nil {
		if IsDuplicateCode(err) {
			return fmt.Errorf("insert %s: %w", rec.ShortCode, model.ErrDuplicateCode)
		}
		return fmt.Errorf("database insert error: %w", err)
	}
	return nil
}

// GetByCode извлекает запись по короткому коду.
func (r *LinkRepository) GetByCode(ctx context.Context, code string) (*model.LinkRecord, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`
	rec, err := scanLink(r.DB.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return rec, nil
}

// ListByOwner возвращает все ссылки владельца.
func (r *LinkRepository) ListByOwner(ctx context.Context, owner model.OwnerID) ([]*model.LinkRecord, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE owner_id = $1 ORDER BY created_at, id`
	rows, err := r.DB.Query(ctx, query, int64(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to query links by owner: %w", err)
	}
	defer rows.Close()

	results := make([]*model.LinkRecord, 0)
	for rows.Next() {
		rec, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return results, nil
}

// Update применяет патч в транзакции, блокируя строку на время изменения.
func (r *LinkRepository) Update(ctx context.Context, code string, owner model.OwnerID, patch model.Patch) (*model.LinkRecord, bool, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1 FOR UPDATE`
	rec, err := scanLink(tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, model.ErrNotFound
		}
		return nil, false, fmt.Errorf("database error: %w", err)
	}
	if rec.OwnerID != owner {
		return nil, false, model.ErrForbidden
	}

	urlChanged := patch.Apply(rec)
	_, err = tx.Exec(ctx,
		`UPDATE links SET original_url = $2, custom_name = $3, description = $4 WHERE short_code = $1`,
		code, rec.OriginalURL, rec.CustomName, rec.Description)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update link: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rec, urlChanged, nil
}

// Delete удаляет запись владельца.
func (r *LinkRepository) Delete(ctx context.Context, code string, owner model.OwnerID) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM links WHERE short_code = $1 AND owner_id = $2`, code, int64(owner))
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var actual int64
	err = r.DB.QueryRow(ctx, `SELECT owner_id FROM links WHERE short_code = $1`, code).Scan(&actual)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}
	return model.ErrForbidden
}

// Ping проверяет доступность базы данных.
func (r *LinkRepository) Ping(ctx context.Context) error {
	return r.DB.Ping(ctx)
}

// IsDuplicateCode сообщает, что ошибка вызвана нарушением уникальности short_code.
func IsDuplicateCode(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == shortCodeUniqueKey
}

func scanLink(row pgx.Row) (*model.LinkRecord, error) {
	rec := &model.LinkRecord{}
	var owner int64
	err := row.Scan(&rec.ShortCode, &rec.OriginalURL, &owner, &rec.CreatedAt, &rec.CustomName, &rec.Description)
	if err != nil {
		return nil, err
	}
	rec.OwnerID = model.OwnerID(owner)
	return rec, nil
}
