// Пакет model — доменные модели файлового реестра.
package model

import "time"

// FileRecord — запись файла-доказательства в реестре.
// Все поля, кроме IsDeleted и SharedWith, неизменяемы после создания.
type FileRecord struct {
	// ID — монотонно возрастающий идентификатор, выдаётся реестром.
	ID int64 `json:"id"`
	// ContentID — непрозрачный идентификатор содержимого во внешнем
	// content-addressed хранилище (IPFS CID). Реестр его не интерпретирует.
	ContentID string `json:"content_id"`
	// FileName — оригинальное имя файла.
	FileName string `json:"file_name"`
	// Owner — principal владельца (sub из JWT).
	Owner string `json:"owner"`
	// UploadTime — время загрузки (UTC).
	UploadTime time.Time `json:"upload_time"`
	// IsPrivate — приватный файл виден только владельцу, получателям
	// шаринга и привилегированным ролям.
	IsPrivate bool `json:"is_private"`
	// IsDeleted — логическое удаление (tombstone). Запись сохраняется
	// для аудита, но недоступна через read/share/delete.
	IsDeleted bool `json:"is_deleted"`
	// FileSize — размер файла в байтах, строго > 0.
	FileSize int64 `json:"file_size"`
	// FileType — MIME-тип, свободная строка.
	FileType string `json:"file_type"`
	// EncryptionKey — непрозрачная ссылка на ключ, переданная клиентом.
	// Реестр хранит её как метаданные и не использует для шифрования.
	EncryptionKey string `json:"encryption_key,omitempty"`
	// SharedWith — упорядоченный список получателей шаринга.
	// Без дубликатов, никогда не содержит владельца. Только растёт.
	SharedWith []string `json:"shared_with"`
}

// IsSharedWith проверяет, входит ли principal в список получателей.
func (f *FileRecord) IsSharedWith(principal string) bool {
	for _, p := range f.SharedWith {
		if p == principal {
			return true
		}
	}
	return false
}

// SystemStats — сводная статистика реестра.
// Вычисляется из состояния File Store, не кэшируется.
type SystemStats struct {
	// TotalFiles — количество когда-либо созданных файлов.
	TotalFiles int64 `json:"total_files"`
	// TotalStorageUsed — суммарный размер неудалённых файлов в байтах.
	TotalStorageUsed int64 `json:"total_storage_used"`
	// ActiveFiles — количество неудалённых файлов.
	ActiveFiles int64 `json:"active_files"`
}
