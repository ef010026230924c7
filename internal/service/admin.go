// admin.go — административные операции: управление ролями,
// pause-флаг и первоначальная выдача роли admin.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uyinene-ledger/registry/internal/domain/rbac"
	"github.com/uyinene-ledger/registry/internal/repository"
)

// AdminService — управление ролями и состоянием реестра.
type AdminService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewAdminService создаёт административный сервис.
func NewAdminService(store repository.Store, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:  store,
		logger: logger.With(slog.String("component", "admin_service")),
	}
}

// GrantRole выдаёт роль principal. Повторная выдача идемпотентна.
// Доступно только администраторам.
func (s *AdminService) GrantRole(ctx context.Context, caller, role, principal string) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if !rbac.IsValidRole(role) {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	if principal == "" {
		return fmt.Errorf("%w: пустой principal", ErrInvalidInput)
	}

	if err := s.store.Roles().Grant(ctx, role, principal); err != nil {
		return err
	}

	s.logger.Info("Роль выдана",
		slog.String("role", role),
		slog.String("principal", principal),
		slog.String("granted_by", caller),
	)
	return nil
}

// RevokeRole отзывает роль principal. ErrNotFound, если роль не выдавалась.
// Доступно только администраторам.
func (s *AdminService) RevokeRole(ctx context.Context, caller, role, principal string) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if !rbac.IsValidRole(role) {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	if err := s.store.Roles().Revoke(ctx, role, principal); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.Info("Роль отозвана",
		slog.String("role", role),
		slog.String("principal", principal),
		slog.String("revoked_by", caller),
	)
	return nil
}

// HasRole проверяет наличие роли у principal.
func (s *AdminService) HasRole(ctx context.Context, role, principal string) (bool, error) {
	if !rbac.IsValidRole(role) {
		return false, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	return s.store.Roles().HasRole(ctx, role, principal)
}

// Pause останавливает мутирующие операции реестра.
// Чтения и выдача ролей продолжают работать.
func (s *AdminService) Pause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, true)
}

// Unpause возобновляет мутирующие операции реестра.
func (s *AdminService) Unpause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, false)
}

// Paused возвращает текущее состояние pause-флага.
func (s *AdminService) Paused(ctx context.Context) (bool, error) {
	return s.store.Roles().Paused(ctx)
}

func (s *AdminService) setPaused(ctx context.Context, caller string, paused bool) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := s.store.Roles().SetPaused(ctx, paused); err != nil {
		return err
	}

	s.logger.Info("Состояние pause-флага изменено",
		slog.Bool("paused", paused),
		slog.String("changed_by", caller),
	)
	return nil
}

// BootstrapAdmin выдаёт роль admin указанному principal при старте
// сервиса. Без первоначального администратора ни одну роль выдать
// невозможно.
func (s *AdminService) BootstrapAdmin(ctx context.Context, principal string) error {
	if principal == "" {
		return nil
	}
	if err := s.store.Roles().Grant(ctx, rbac.RoleAdmin, principal); err != nil {
		return fmt.Errorf("ошибка выдачи первоначальной роли admin: %w", err)
	}

	s.logger.Info("Первоначальный администратор назначен",
		slog.String("principal", principal),
	)
	return nil
}

// requireAdmin возвращает ErrUnauthorized, если у caller нет роли admin.
func (s *AdminService) requireAdmin(ctx context.Context, caller string) error {
	ok, err := s.store.Roles().HasRole(ctx, rbac.RoleAdmin, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}
