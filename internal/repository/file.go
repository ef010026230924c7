// file.go — File Store: таблицы files и file_shares.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/uyinene-ledger/registry/internal/domain/model"
)

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// fileColumns — список колонок записи файла для SELECT.
const fileColumns = `id, content_id, file_name, owner_principal, upload_time,
	is_private, is_deleted, file_size, file_type, encryption_key`

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (content_id, file_name, owner_principal, upload_time,
			is_private, file_size, file_type, encryption_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		f.ContentID, f.FileName, f.Owner, f.UploadTime,
		f.IsPrivate, f.FileSize, f.FileType, f.EncryptionKey,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.ContentID, &f.FileName, &f.Owner, &f.UploadTime,
		&f.IsPrivate, &f.IsDeleted, &f.FileSize, &f.FileType, &f.EncryptionKey,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}

	shared, err := r.sharedWith(ctx, id)
	if err != nil {
		return nil, err
	}
	f.SharedWith = shared

	return f, nil
}

// sharedWith возвращает список получателей шаринга в порядке добавления.
func (r *fileRepo) sharedWith(ctx context.Context, id int64) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT recipient FROM file_shares WHERE file_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка шаринга: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var recipient string
		if err := rows.Scan(&recipient); err != nil {
			return nil, fmt.Errorf("ошибка сканирования получателя: %w", err)
		}
		result = append(result, recipient)
	}
	return result, rows.Err()
}

func (r *fileRepo) AppendShare(ctx context.Context, id int64, recipient string) error {
	// Блокировка строки файла сериализует конкурентные шаринги одного
	// файла: позиция вычисляется из MAX(position), без блокировки две
	// транзакции получили бы одинаковую позицию и нарушение
	// уникальности нельзя было бы отличить от дубликата получателя.
	var locked int64
	err := r.db.QueryRow(ctx,
		`SELECT id FROM files WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка блокировки файла: %w", err)
	}

	query := `
		INSERT INTO file_shares (file_id, recipient, position)
		SELECT $1, $2, COALESCE(MAX(position), 0) + 1
		FROM file_shares WHERE file_id = $1`

	if _, err := r.db.Exec(ctx, query, id, recipient); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл уже расшарен получателю", ErrConflict)
		}
		return fmt.Errorf("ошибка добавления шаринга: %w", err)
	}
	return nil
}

func (r *fileRepo) MarkDeleted(ctx context.Context, id int64) error {
	query := `
		UPDATE files
		SET is_deleted = TRUE
		WHERE id = $1 AND NOT is_deleted`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка пометки файла удалённым: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) IDsOwnedBy(ctx context.Context, principal string) ([]int64, error) {
	return r.scanIDs(ctx,
		`SELECT id FROM files WHERE owner_principal = $1 ORDER BY id`, principal)
}

func (r *fileRepo) IDsSharedWith(ctx context.Context, principal string) ([]int64, error) {
	return r.scanIDs(ctx,
		`SELECT file_id FROM file_shares WHERE recipient = $1 ORDER BY file_id`, principal)
}

// scanIDs выполняет запрос, возвращающий одну колонку id.
func (r *fileRepo) scanIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка id: %w", err)
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования id: %w", err)
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func (r *fileRepo) ListPublic(ctx context.Context) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM files WHERE NOT is_private AND NOT is_deleted ORDER BY id`,
		fileColumns)
	return r.list(ctx, query)
}

func (r *fileRepo) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files ORDER BY id`, fileColumns)
	return r.list(ctx, query)
}

// list выполняет запрос записей файлов без списков шаринга
// (списки нужны только точечному GetByID).
func (r *fileRepo) list(ctx context.Context, query string, args ...any) ([]*model.FileRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.ContentID, &f.FileName, &f.Owner, &f.UploadTime,
			&f.IsPrivate, &f.IsDeleted, &f.FileSize, &f.FileType, &f.EncryptionKey,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Stats(ctx context.Context) (*model.SystemStats, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(file_size) FILTER (WHERE NOT is_deleted), 0),
			COUNT(*) FILTER (WHERE NOT is_deleted)
		FROM files`

	stats := &model.SystemStats{}
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalFiles, &stats.TotalStorageUsed, &stats.ActiveFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка вычисления статистики: %w", err)
	}
	return stats, nil
}
