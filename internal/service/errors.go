// errors.go — таксономия ошибок реестра, видимая вызывающему слою.
// Причины отказа авторизации определены в domain/authz и пробрасываются
// как есть; здесь добавлены ошибки валидации входных данных.
package service

import (
	"errors"

	"github.com/uyinene-ledger/registry/internal/domain/authz"
)

var (
	// ErrInvalidInput — пустое обязательное поле или неположительный размер.
	ErrInvalidInput = errors.New("некорректные входные данные")
	// ErrInvalidRole — недопустимое имя роли.
	ErrInvalidRole = errors.New("недопустимая роль")

	// Причины отказа Authorization Engine — единая таксономия наружу.
	ErrPaused           = authz.ErrPaused
	ErrNotFound         = authz.ErrNotFound
	ErrDeleted          = authz.ErrDeleted
	ErrAlreadyDeleted   = authz.ErrAlreadyDeleted
	ErrUnauthorized     = authz.ErrUnauthorized
	ErrNotOwner         = authz.ErrNotOwner
	ErrInvalidRecipient = authz.ErrInvalidRecipient
	ErrDuplicateShare   = authz.ErrDuplicateShare
)
