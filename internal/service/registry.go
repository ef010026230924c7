// Пакет service — ядро файлового реестра.
// Каждая операция выполняется в одной транзакции: проверки
// Authorization Engine, мутация File Store и запись в Access Log
// фиксируются атомарно; частично применённых состояний не бывает.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uyinene-ledger/registry/internal/domain/authz"
	"github.com/uyinene-ledger/registry/internal/domain/model"
	"github.com/uyinene-ledger/registry/internal/domain/rbac"
	"github.com/uyinene-ledger/registry/internal/events"
	"github.com/uyinene-ledger/registry/internal/repository"
)

// Prometheus-метрики операций реестра.
var (
	filesUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fr_files_uploaded_total",
		Help: "Общее количество загруженных файлов.",
	})
	filesSharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fr_files_shared_total",
		Help: "Общее количество выданных шарингов.",
	})
	filesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fr_files_deleted_total",
		Help: "Общее количество удалённых файлов.",
	})
	privilegedReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fr_privileged_reads_total",
		Help: "Количество чтений файлов привилегированными ролями.",
	})
)

// RegistryService — сервис файлового реестра.
// Объединяет File Store, Role Manager, Access Log и Authorization Engine.
type RegistryService struct {
	runner repository.TxRunner
	store  repository.Store
	cache  *CacheService
	events events.Publisher
	logger *slog.Logger
}

// NewRegistryService создаёт сервис реестра.
// store — репозитории поверх пула (одиночные чтения),
// runner — транзакционное выполнение мутирующих операций,
// cache — кэш списков (может быть nil), pub — публикация событий.
func NewRegistryService(
	runner repository.TxRunner,
	store repository.Store,
	cache *CacheService,
	pub events.Publisher,
	logger *slog.Logger,
) *RegistryService {
	return &RegistryService{
		runner: runner,
		store:  store,
		cache:  cache,
		events: pub,
		logger: logger.With(slog.String("component", "registry_service")),
	}
}

// UploadInput — входные данные операции загрузки.
type UploadInput struct {
	ContentID     string
	FileName      string
	IsPrivate     bool
	FileSize      int64
	FileType      string
	EncryptionKey string
}

// Upload регистрирует файл в реестре и пишет запись upload в журнал.
// Возвращает созданную запись с присвоенным id.
func (s *RegistryService) Upload(ctx context.Context, caller string, in UploadInput) (*model.FileRecord, error) {
	if caller == "" {
		return nil, fmt.Errorf("%w: пустой principal", ErrInvalidInput)
	}
	if in.ContentID == "" {
		return nil, fmt.Errorf("%w: идентификатор содержимого обязателен", ErrInvalidInput)
	}
	if in.FileName == "" {
		return nil, fmt.Errorf("%w: имя файла обязательно", ErrInvalidInput)
	}
	if in.FileSize <= 0 {
		return nil, fmt.Errorf("%w: размер файла должен быть больше 0", ErrInvalidInput)
	}

	f := &model.FileRecord{
		ContentID:     in.ContentID,
		FileName:      in.FileName,
		Owner:         caller,
		UploadTime:    time.Now().UTC(),
		IsPrivate:     in.IsPrivate,
		FileSize:      in.FileSize,
		FileType:      in.FileType,
		EncryptionKey: in.EncryptionKey,
	}

	err := s.runner.RunInTx(ctx, func(st repository.Store) error {
		paused, err := st.Roles().Paused(ctx)
		if err != nil {
			return err
		}
		if paused {
			return ErrPaused
		}

		if err := st.Files().Create(ctx, f); err != nil {
			return err
		}

		return st.AccessLog().Append(ctx, &model.AccessLogEntry{
			FileID:    f.ID,
			Accessor:  caller,
			Action:    model.ActionUpload,
			Timestamp: f.UploadTime,
		})
	})
	if err != nil {
		return nil, err
	}

	filesUploadedTotal.Inc()
	s.cache.InvalidateOwner(caller)
	s.publish(ctx, events.New(events.TypeFileCreated, f.ID, caller))

	s.logger.Info("Файл зарегистрирован",
		slog.Int64("file_id", f.ID),
		slog.String("owner", caller),
		slog.String("file_name", f.FileName),
		slog.Bool("is_private", f.IsPrivate),
	)

	return f, nil
}

// Get возвращает запись файла после проверки политики доступа
// и пишет запись read в журнал. Чтение привилегированной ролью
// дополнительно публикуется в поток privileged_access.
func (s *RegistryService) Get(ctx context.Context, caller string, id int64) (*model.FileRecord, error) {
	var (
		rec        *model.FileRecord
		privileged bool
	)

	err := s.runner.RunInTx(ctx, func(st repository.Store) error {
		roles, err := st.Roles().RolesOf(ctx, caller)
		if err != nil {
			return err
		}
		rs := rbac.NewRoleSet(roles)

		f, err := s.loadFile(ctx, st, id)
		if err != nil {
			return err
		}

		if err := authz.Decide(authz.OpRead, caller, rs, false, f); err != nil {
			return err
		}

		if err := st.AccessLog().Append(ctx, &model.AccessLogEntry{
			FileID:    id,
			Accessor:  caller,
			Action:    model.ActionRead,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			return err
		}

		rec = redactKey(f, caller, rs)
		privileged = rs.IsPrivileged()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e := events.New(events.TypeFileAccessed, id, caller)
	e.Action = string(model.ActionRead)
	s.publish(ctx, e)

	if privileged {
		privilegedReadsTotal.Inc()
		pe := events.New(events.TypePrivilegedAccess, id, caller)
		pe.Action = string(model.ActionRead)
		s.publish(ctx, pe)
	}

	return rec, nil
}

// Share добавляет получателя в список шаринга файла.
// Доступно только владельцу; получатель не может быть пустым,
// владельцем или уже присутствовать в списке.
func (s *RegistryService) Share(ctx context.Context, caller string, id int64, recipient string) error {
	err := s.runner.RunInTx(ctx, func(st repository.Store) error {
		paused, err := st.Roles().Paused(ctx)
		if err != nil {
			return err
		}

		roles, err := st.Roles().RolesOf(ctx, caller)
		if err != nil {
			return err
		}

		f, err := s.loadFile(ctx, st, id)
		if err != nil {
			return err
		}

		if err := authz.Decide(authz.OpShare, caller, rbac.NewRoleSet(roles), paused, f); err != nil {
			return err
		}
		if err := authz.ValidateShareRecipient(f, recipient); err != nil {
			return err
		}

		if err := st.Files().AppendShare(ctx, id, recipient); err != nil {
			// Параллельная вставка того же получателя — конфликт уникальности.
			if errors.Is(err, repository.ErrConflict) {
				return ErrDuplicateShare
			}
			return err
		}

		return st.AccessLog().Append(ctx, &model.AccessLogEntry{
			FileID:    id,
			Accessor:  caller,
			Action:    model.ActionShare,
			Timestamp: time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	filesSharedTotal.Inc()
	s.cache.InvalidateShared(recipient)

	e := events.New(events.TypeFileShared, id, caller)
	e.Recipient = recipient
	s.publish(ctx, e)

	s.logger.Info("Файл расшарен",
		slog.Int64("file_id", id),
		slog.String("owner", caller),
		slog.String("recipient", recipient),
	)

	return nil
}

// Delete ставит tombstone на файл владельца.
// Запись сохраняется для аудита; размер файла перестаёт учитываться
// в totalStorageUsed. Повторное удаление — ошибка.
func (s *RegistryService) Delete(ctx context.Context, caller string, id int64) error {
	err := s.runner.RunInTx(ctx, func(st repository.Store) error {
		paused, err := st.Roles().Paused(ctx)
		if err != nil {
			return err
		}

		roles, err := st.Roles().RolesOf(ctx, caller)
		if err != nil {
			return err
		}

		f, err := s.loadFile(ctx, st, id)
		if err != nil {
			return err
		}

		if err := authz.Decide(authz.OpDelete, caller, rbac.NewRoleSet(roles), paused, f); err != nil {
			return err
		}

		if err := st.Files().MarkDeleted(ctx, id); err != nil {
			return err
		}

		return st.AccessLog().Append(ctx, &model.AccessLogEntry{
			FileID:    id,
			Accessor:  caller,
			Action:    model.ActionDelete,
			Timestamp: time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	filesDeletedTotal.Inc()
	s.cache.InvalidateOwner(caller)
	s.publish(ctx, events.New(events.TypeFileDeleted, id, caller))

	s.logger.Info("Файл помечен как удалённый",
		slog.Int64("file_id", id),
		slog.String("owner", caller),
	)

	return nil
}

// loadFile возвращает запись файла или nil, если id никогда не выдавался.
// Решение о NotFound принимает Authorization Engine.
func (s *RegistryService) loadFile(ctx context.Context, st repository.Store, id int64) (*model.FileRecord, error) {
	f, err := st.Files().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}

// publish отправляет событие; ошибка публикации не откатывает
// уже зафиксированную операцию реестра и только логируется.
func (s *RegistryService) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("Ошибка публикации события",
			slog.String("type", e.Type),
			slog.Int64("file_id", e.FileID),
			slog.String("error", err.Error()),
		)
	}
}

// redactKey скрывает encryption_key от caller, не являющегося
// владельцем, получателем шаринга или привилегированной ролью.
func redactKey(f *model.FileRecord, caller string, rs rbac.RoleSet) *model.FileRecord {
	if rs.IsPrivileged() || caller == f.Owner || f.IsSharedWith(caller) {
		return f
	}
	redacted := *f
	redacted.EncryptionKey = ""
	return &redacted
}
