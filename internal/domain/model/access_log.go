// access_log.go — модель журнала доступа (append-only).
package model

import "time"

// Action — тип действия в журнале доступа.
type Action string

// Допустимые действия.
const (
	ActionUpload Action = "upload"
	ActionRead   Action = "read"
	ActionShare  Action = "share"
	ActionDelete Action = "delete"
)

// IsValidAction проверяет, является ли строка допустимым действием.
func IsValidAction(a Action) bool {
	switch a {
	case ActionUpload, ActionRead, ActionShare, ActionDelete:
		return true
	}
	return false
}

// AccessLogEntry — одна запись журнала доступа к файлу.
// Каждая успешная операция upload/read/share/delete добавляет
// ровно одну запись. Журнал никогда не изменяется и не усекается.
type AccessLogEntry struct {
	// FileID — идентификатор файла.
	FileID int64 `json:"file_id"`
	// Accessor — principal, выполнивший действие.
	Accessor string `json:"accessor"`
	// Action — выполненное действие.
	Action Action `json:"action"`
	// Timestamp — время события (UTC).
	Timestamp time.Time `json:"timestamp"`
}
