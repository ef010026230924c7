// role.go — Role Manager: таблица role_grants и pause-флаг (system_state).
package repository

import (
	"context"
	"fmt"
)

// roleRepo — реализация RoleRepository.
type roleRepo struct {
	db DBTX
}

func (r *roleRepo) Grant(ctx context.Context, role, principal string) error {
	query := `
		INSERT INTO role_grants (role, principal)
		VALUES ($1, $2)
		ON CONFLICT (role, principal) DO NOTHING`

	_, err := r.db.Exec(ctx, query, role, principal)
	if err != nil {
		return fmt.Errorf("ошибка выдачи роли: %w", err)
	}
	return nil
}

func (r *roleRepo) Revoke(ctx context.Context, role, principal string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM role_grants WHERE role = $1 AND principal = $2`, role, principal)
	if err != nil {
		return fmt.Errorf("ошибка отзыва роли: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *roleRepo) RolesOf(ctx context.Context, principal string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT role FROM role_grants WHERE principal = $1 ORDER BY role`, principal)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ролей: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("ошибка сканирования роли: %w", err)
		}
		result = append(result, role)
	}
	return result, rows.Err()
}

func (r *roleRepo) HasRole(ctx context.Context, role, principal string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_grants WHERE role = $1 AND principal = $2)`,
		role, principal,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки роли: %w", err)
	}
	return exists, nil
}

func (r *roleRepo) Paused(ctx context.Context) (bool, error) {
	var paused bool
	err := r.db.QueryRow(ctx, `SELECT paused FROM system_state WHERE id = 1`).Scan(&paused)
	if err != nil {
		return false, fmt.Errorf("ошибка чтения pause-флага: %w", err)
	}
	return paused, nil
}

func (r *roleRepo) SetPaused(ctx context.Context, paused bool) error {
	_, err := r.db.Exec(ctx, `UPDATE system_state SET paused = $1 WHERE id = 1`, paused)
	if err != nil {
		return fmt.Errorf("ошибка установки pause-флага: %w", err)
	}
	return nil
}
