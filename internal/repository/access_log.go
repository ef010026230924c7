// access_log.go — Access Log: append-only журнал доступа к файлам.
package repository

import (
	"context"
	"fmt"

	"github.com/uyinene-ledger/registry/internal/domain/model"
)

// accessLogRepo — реализация AccessLogRepository.
type accessLogRepo struct {
	db DBTX
}

func (r *accessLogRepo) Append(ctx context.Context, e *model.AccessLogEntry) error {
	query := `
		INSERT INTO access_log (file_id, accessor, action, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, e.FileID, e.Accessor, string(e.Action), e.Timestamp)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал доступа: %w", err)
	}
	return nil
}

func (r *accessLogRepo) ListByFile(ctx context.Context, fileID int64) ([]*model.AccessLogEntry, error) {
	query := `
		SELECT file_id, accessor, action, created_at
		FROM access_log
		WHERE file_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала доступа: %w", err)
	}
	defer rows.Close()

	var result []*model.AccessLogEntry
	for rows.Next() {
		e := &model.AccessLogEntry{}
		var action string
		if err := rows.Scan(&e.FileID, &e.Accessor, &action, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи журнала: %w", err)
		}
		e.Action = model.Action(action)
		result = append(result, e)
	}
	return result, rows.Err()
}
