// Пакет rbac — роли файлового реестра и чистые предикаты над ними.
// Роль admin управляет ролями и pause-флагом; law_enforcement получает
// доступ на чтение к любым файлам и к журналу аудита.
package rbac

// Роли реестра.
const (
	// RoleAdmin — администратор: выдача/отзыв ролей, pause/unpause,
	// привилегированные запросы.
	RoleAdmin = "admin"
	// RoleLawEnforcement — ревьюер правоохранительных органов:
	// чтение любых файлов, журнал аудита, статистика.
	RoleLawEnforcement = "law_enforcement"
)

// validRoles — набор допустимых ролей.
var validRoles = map[string]bool{
	RoleAdmin:          true,
	RoleLawEnforcement: true,
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	return validRoles[role]
}

// RoleSet — набор ролей одного principal. Проверка членства за O(1).
type RoleSet map[string]bool

// NewRoleSet создаёт RoleSet из среза ролей.
func NewRoleSet(roles []string) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = true
	}
	return s
}

// Has проверяет наличие роли в наборе.
func (s RoleSet) Has(role string) bool {
	return s[role]
}

// IsPrivileged — admin и law_enforcement обходят обычные правила
// видимости при чтении и получают доступ к audit-only запросам.
func (s RoleSet) IsPrivileged() bool {
	return s[RoleAdmin] || s[RoleLawEnforcement]
}
