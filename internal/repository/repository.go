// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
//
// Store объединяет репозитории File Store, Access Log и Role Manager,
// связанные одним DBTX: либо пулом (одиночные чтения), либо транзакцией
// (мутирующие операции реестра, см. TxRunner).
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uyinene-ledger/registry/internal/domain/model"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FileRepository — File Store: авторитетное отображение id → запись файла.
type FileRepository interface {
	// Create сохраняет новую запись и присваивает ей следующий id.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает запись вместе со списком получателей шаринга.
	// ErrNotFound, если id никогда не выдавался.
	GetByID(ctx context.Context, id int64) (*model.FileRecord, error)
	// AppendShare добавляет получателя в конец списка шаринга,
	// удерживая блокировку строки файла до конца транзакции.
	// ErrConflict, если получатель уже присутствует;
	// ErrNotFound, если файл не существует.
	AppendShare(ctx context.Context, id int64, recipient string) error
	// MarkDeleted ставит tombstone. ErrNotFound, если запись не
	// существует или уже удалена (не идемпотентно — по контракту).
	MarkDeleted(ctx context.Context, id int64) error
	// IDsOwnedBy возвращает id файлов владельца в порядке загрузки.
	IDsOwnedBy(ctx context.Context, principal string) ([]int64, error)
	// IDsSharedWith возвращает id файлов, расшаренных principal.
	IDsSharedWith(ctx context.Context, principal string) ([]int64, error)
	// ListPublic возвращает неудалённые публичные записи в порядке загрузки.
	ListPublic(ctx context.Context) ([]*model.FileRecord, error)
	// ListAll возвращает все записи, включая удалённые (audit-only).
	ListAll(ctx context.Context) ([]*model.FileRecord, error)
	// Stats вычисляет статистику из состояния таблицы (без кэша).
	Stats(ctx context.Context) (*model.SystemStats, error)
}

// AccessLogRepository — append-only журнал доступа.
type AccessLogRepository interface {
	// Append добавляет запись в журнал файла.
	Append(ctx context.Context, e *model.AccessLogEntry) error
	// ListByFile возвращает журнал файла в порядке добавления.
	ListByFile(ctx context.Context, fileID int64) ([]*model.AccessLogEntry, error)
}

// RoleRepository — Role Manager: выдача ролей и pause-флаг.
type RoleRepository interface {
	// Grant выдаёт роль principal (идемпотентно).
	Grant(ctx context.Context, role, principal string) error
	// Revoke отзывает роль. ErrNotFound, если роль не была выдана.
	Revoke(ctx context.Context, role, principal string) error
	// RolesOf возвращает роли principal.
	RolesOf(ctx context.Context, principal string) ([]string, error)
	// HasRole проверяет наличие роли у principal.
	HasRole(ctx context.Context, role, principal string) (bool, error)
	// Paused возвращает состояние pause-флага.
	Paused(ctx context.Context) (bool, error)
	// SetPaused выставляет pause-флаг.
	SetPaused(ctx context.Context, paused bool) error
}

// Store — набор репозиториев поверх одного DBTX.
type Store interface {
	Files() FileRepository
	AccessLog() AccessLogRepository
	Roles() RoleRepository
}

// store — реализация Store.
type store struct {
	files *fileRepo
	log   *accessLogRepo
	roles *roleRepo
}

// NewStore создаёт Store поверх указанного DBTX.
func NewStore(db DBTX) Store {
	return &store{
		files: &fileRepo{db: db},
		log:   &accessLogRepo{db: db},
		roles: &roleRepo{db: db},
	}
}

func (s *store) Files() FileRepository          { return s.files }
func (s *store) AccessLog() AccessLogRepository { return s.log }
func (s *store) Roles() RoleRepository          { return s.roles }

// TxRunner выполняет операции реестра в одной транзакции.
// Каждая мутирующая операция — один вызов RunInTx: проверки
// авторизации, мутация и запись в журнал происходят атомарно.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(s Store) error) error
}

// PgxTxRunner — TxRunner поверх pgxpool.
type PgxTxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт PgxTxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *PgxTxRunner {
	return &PgxTxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается, при успехе — коммитится.
func (r *PgxTxRunner) RunInTx(ctx context.Context, fn func(s Store) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(NewStore(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
