// queries.go — списочные и аудит-запросы реестра.
// Запросы не мутируют состояние и не пишут в журнал доступа,
// поэтому выполняются вне транзакций, поверх пула.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/uyinene-ledger/registry/internal/domain/model"
	"github.com/uyinene-ledger/registry/internal/domain/rbac"
	"github.com/uyinene-ledger/registry/internal/repository"
)

// UserFiles возвращает id файлов, владельцем которых является principal,
// в порядке загрузки. Удалённые файлы остаются в списке.
// Доступно любому аутентифицированному caller: списки id не раскрывают
// метаданных, видимость самих записей проверяется при чтении.
func (s *RegistryService) UserFiles(ctx context.Context, principal string) ([]int64, error) {
	if principal == "" {
		return nil, fmt.Errorf("%w: пустой principal", ErrInvalidInput)
	}

	key := ownerKey(principal)
	if ids, ok := s.cache.Get(key); ok {
		return ids, nil
	}

	ids, err := s.store.Files().IDsOwnedBy(ctx, principal)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, ids)
	return ids, nil
}

// SharedFiles возвращает id файлов, расшаренных principal.
func (s *RegistryService) SharedFiles(ctx context.Context, principal string) ([]int64, error) {
	if principal == "" {
		return nil, fmt.Errorf("%w: пустой principal", ErrInvalidInput)
	}

	key := sharedKey(principal)
	if ids, ok := s.cache.Get(key); ok {
		return ids, nil
	}

	ids, err := s.store.Files().IDsSharedWith(ctx, principal)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, ids)
	return ids, nil
}

// SharedBy возвращает неудалённые файлы principal, у которых есть
// хотя бы один получатель шаринга, вместе со списками получателей.
// Ключи шифрования в выдаче всегда скрыты: точечное чтение GetFile
// отдаёт ключ только авторизованному caller.
func (s *RegistryService) SharedBy(ctx context.Context, principal string) ([]*model.FileRecord, error) {
	if principal == "" {
		return nil, fmt.Errorf("%w: пустой principal", ErrInvalidInput)
	}

	ids, err := s.store.Files().IDsOwnedBy(ctx, principal)
	if err != nil {
		return nil, err
	}

	var result []*model.FileRecord
	for _, id := range ids {
		f, err := s.store.Files().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if f.IsDeleted || len(f.SharedWith) == 0 {
			continue
		}
		f.EncryptionKey = ""
		result = append(result, f)
	}
	return result, nil
}

// PublicFiles возвращает неудалённые публичные записи.
// Ключи шифрования в выдаче всегда скрыты.
func (s *RegistryService) PublicFiles(ctx context.Context) ([]*model.FileRecord, error) {
	files, err := s.store.Files().ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		f.EncryptionKey = ""
	}
	return files, nil
}

// AllFiles возвращает все записи реестра, включая удалённые.
// Доступно только привилегированным ролям.
func (s *RegistryService) AllFiles(ctx context.Context, caller string) ([]*model.FileRecord, error) {
	if err := s.requirePrivileged(ctx, caller); err != nil {
		return nil, err
	}
	return s.store.Files().ListAll(ctx)
}

// AccessLogs возвращает журнал доступа файла в порядке добавления.
// Доступно только привилегированным ролям. Журнал удалённого файла
// остаётся читаемым.
func (s *RegistryService) AccessLogs(ctx context.Context, caller string, fileID int64) ([]*model.AccessLogEntry, error) {
	if err := s.requirePrivileged(ctx, caller); err != nil {
		return nil, err
	}

	if _, err := s.store.Files().GetByID(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.store.AccessLog().ListByFile(ctx, fileID)
}

// Stats вычисляет статистику реестра из текущего состояния таблиц.
// Доступно только привилегированным ролям. Результат не кэшируется:
// totalStorageUsed обязан отражать состояние после каждого удаления.
func (s *RegistryService) Stats(ctx context.Context, caller string) (*model.SystemStats, error) {
	if err := s.requirePrivileged(ctx, caller); err != nil {
		return nil, err
	}
	return s.store.Files().Stats(ctx)
}

// requirePrivileged возвращает ErrUnauthorized, если у caller
// нет роли admin или law_enforcement.
func (s *RegistryService) requirePrivileged(ctx context.Context, caller string) error {
	roles, err := s.store.Roles().RolesOf(ctx, caller)
	if err != nil {
		return err
	}
	if !rbac.NewRoleSet(roles).IsPrivileged() {
		return ErrUnauthorized
	}
	return nil
}
