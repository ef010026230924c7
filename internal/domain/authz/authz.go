// Пакет authz — Authorization Engine файлового реестра.
// Вся политика доступа (роли, владение, видимость, tombstone)
// сосредоточена в одной функции решения Decide, которую сервисный
// слой вызывает ровно один раз на операцию внутри транзакции.
package authz

import (
	"errors"

	"github.com/uyinene-ledger/registry/internal/domain/model"
	"github.com/uyinene-ledger/registry/internal/domain/rbac"
)

// Operation — операция над файлом, требующая авторизации.
type Operation string

// Операции реестра.
const (
	OpRead   Operation = "read"
	OpShare  Operation = "share"
	OpDelete Operation = "delete"
)

// Причины отказа. Сервисный слой пробрасывает их наверх без изменений,
// HTTP-слой маппит в статус-коды.
var (
	// ErrPaused — система приостановлена, мутирующие операции запрещены.
	ErrPaused = errors.New("реестр приостановлен администратором")
	// ErrNotFound — файл с таким id никогда не существовал.
	ErrNotFound = errors.New("файл не существует")
	// ErrDeleted — файл логически удалён; операция невозможна для любой роли.
	ErrDeleted = errors.New("файл был удалён")
	// ErrAlreadyDeleted — повторная попытка удаления.
	ErrAlreadyDeleted = errors.New("файл уже удалён")
	// ErrUnauthorized — проверка видимости не пройдена.
	ErrUnauthorized = errors.New("доступ запрещён")
	// ErrNotOwner — операция доступна только владельцу файла.
	ErrNotOwner = errors.New("не владелец файла")
	// ErrInvalidRecipient — пустой получатель или попытка поделиться с собой.
	ErrInvalidRecipient = errors.New("некорректный получатель")
	// ErrDuplicateShare — файл уже расшарен этому получателю.
	ErrDuplicateShare = errors.New("файл уже расшарен этому получателю")
)

// Decide выполняет проверки политики доступа в фиксированном порядке:
//  1. pause-флаг для мутирующих операций;
//  2. существование файла;
//  3. привилегированный обход видимости для чтения (admin, law_enforcement);
//  4. владение для share/delete;
//  5. видимость для чтения непривилегированным caller;
//  6. tombstone: удалённый файл недоступен для всех, включая привилегированные роли.
//
// f == nil означает, что файл не существует.
// Возвращает nil при разрешении, иначе — причину отказа.
func Decide(op Operation, caller string, roles rbac.RoleSet, paused bool, f *model.FileRecord) error {
	if paused && op != OpRead {
		return ErrPaused
	}

	if f == nil {
		return ErrNotFound
	}

	switch op {
	case OpRead:
		// Привилегированные роли читают любые файлы, но tombstone
		// действует и для них.
		if roles.IsPrivileged() {
			if f.IsDeleted {
				return ErrDeleted
			}
			return nil
		}
		if f.IsPrivate && caller != f.Owner && !f.IsSharedWith(caller) {
			return ErrUnauthorized
		}
		if f.IsDeleted {
			return ErrDeleted
		}
		return nil

	case OpShare:
		if caller != f.Owner {
			return ErrNotOwner
		}
		if f.IsDeleted {
			return ErrDeleted
		}
		return nil

	case OpDelete:
		if caller != f.Owner {
			return ErrNotOwner
		}
		if f.IsDeleted {
			return ErrAlreadyDeleted
		}
		return nil
	}

	return ErrUnauthorized
}

// ValidateShareRecipient проверяет получателя шаринга.
// Вызывается после Decide(OpShare, ...), когда caller == owner.
func ValidateShareRecipient(f *model.FileRecord, recipient string) error {
	if recipient == "" || recipient == f.Owner {
		return ErrInvalidRecipient
	}
	if f.IsSharedWith(recipient) {
		return ErrDuplicateShare
	}
	return nil
}
