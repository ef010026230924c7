package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/uyinene-ledger/registry/internal/domain/model"
	"github.com/uyinene-ledger/registry/internal/domain/rbac"
	"github.com/uyinene-ledger/registry/internal/events"
	"github.com/uyinene-ledger/registry/internal/repository"
)

// memStore — in-memory реализация repository.Store для тестов сервиса.
type memStore struct {
	mu     sync.Mutex
	files  map[int64]*model.FileRecord
	nextID int64
	log    []*model.AccessLogEntry
	roles  map[string]map[string]bool
	paused bool
}

func newMemStore() *memStore {
	return &memStore{
		files:  make(map[int64]*model.FileRecord),
		nextID: 1,
		roles:  make(map[string]map[string]bool),
	}
}

func (m *memStore) Files() repository.FileRepository          { return (*memFiles)(m) }
func (m *memStore) AccessLog() repository.AccessLogRepository { return (*memLog)(m) }
func (m *memStore) Roles() repository.RoleRepository          { return (*memRoles)(m) }

// RunInTx выполняет fn напрямую: изоляция транзакций в этих тестах
// не проверяется, только семантика операций.
func (m *memStore) RunInTx(_ context.Context, fn func(s repository.Store) error) error {
	return fn(m)
}

type memFiles memStore

func (m *memFiles) Create(_ context.Context, f *model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = m.nextID
	m.nextID++
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memFiles) GetByID(_ context.Context, id int64) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	cp.SharedWith = append([]string(nil), f.SharedWith...)
	return &cp, nil
}

func (m *memFiles) AppendShare(_ context.Context, id int64, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return repository.ErrNotFound
	}
	if f.IsSharedWith(recipient) {
		return repository.ErrConflict
	}
	f.SharedWith = append(f.SharedWith, recipient)
	return nil
}

func (m *memFiles) MarkDeleted(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || f.IsDeleted {
		return repository.ErrNotFound
	}
	f.IsDeleted = true
	return nil
}

func (m *memFiles) IDsOwnedBy(_ context.Context, principal string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id := int64(1); id < m.nextID; id++ {
		if f, ok := m.files[id]; ok && f.Owner == principal {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memFiles) IDsSharedWith(_ context.Context, principal string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id := int64(1); id < m.nextID; id++ {
		if f, ok := m.files[id]; ok && f.IsSharedWith(principal) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memFiles) ListPublic(_ context.Context) ([]*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.FileRecord
	for id := int64(1); id < m.nextID; id++ {
		if f, ok := m.files[id]; ok && !f.IsPrivate && !f.IsDeleted {
			cp := *f
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *memFiles) ListAll(_ context.Context) ([]*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.FileRecord
	for id := int64(1); id < m.nextID; id++ {
		if f, ok := m.files[id]; ok {
			cp := *f
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *memFiles) Stats(_ context.Context) (*model.SystemStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &model.SystemStats{}
	for _, f := range m.files {
		stats.TotalFiles++
		if !f.IsDeleted {
			stats.ActiveFiles++
			stats.TotalStorageUsed += f.FileSize
		}
	}
	return stats, nil
}

type memLog memStore

func (m *memLog) Append(_ context.Context, e *model.AccessLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.log = append(m.log, &cp)
	return nil
}

func (m *memLog) ListByFile(_ context.Context, fileID int64) ([]*model.AccessLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.AccessLogEntry
	for _, e := range m.log {
		if e.FileID == fileID {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

type memRoles memStore

func (m *memRoles) Grant(_ context.Context, role, principal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[principal] == nil {
		m.roles[principal] = make(map[string]bool)
	}
	m.roles[principal][role] = true
	return nil
}

func (m *memRoles) Revoke(_ context.Context, role, principal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.roles[principal][role] {
		return repository.ErrNotFound
	}
	delete(m.roles[principal], role)
	return nil
}

func (m *memRoles) RolesOf(_ context.Context, principal string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var roles []string
	for r := range m.roles[principal] {
		roles = append(roles, r)
	}
	return roles, nil
}

func (m *memRoles) HasRole(_ context.Context, role, principal string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[principal][role], nil
}

func (m *memRoles) Paused(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused, nil
}

func (m *memRoles) SetPaused(_ context.Context, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
	return nil
}

// memPublisher записывает опубликованные события для проверок.
type memPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *memPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *memPublisher) Close() error { return nil }

// types возвращает типы опубликованных событий в порядке публикации.
func (p *memPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]string, len(p.events))
	for i, e := range p.events {
		result[i] = e.Type
	}
	return result
}

// reset очищает записанные события.
func (p *memPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*RegistryService, *memStore) {
	t.Helper()
	ms := newMemStore()
	svc := NewRegistryService(ms, ms, nil, events.NopPublisher{}, testLogger())
	return svc, ms
}

func mustUpload(t *testing.T, svc *RegistryService, owner string, in UploadInput) *model.FileRecord {
	t.Helper()
	f, err := svc.Upload(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return f
}

func sampleInput() UploadInput {
	return UploadInput{
		ContentID:     "QmTestCID",
		FileName:      "evidence.pdf",
		IsPrivate:     true,
		FileSize:      2048,
		FileType:      "application/pdf",
		EncryptionKey: "key-ref-1",
	}
}

func TestUploadRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	in := sampleInput()
	f := mustUpload(t, svc, "alice", in)

	if f.ID != 1 {
		t.Errorf("первый id = %d, ожидался 1", f.ID)
	}

	got, err := svc.Get(ctx, "alice", f.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ContentID != in.ContentID || got.FileName != in.FileName ||
		got.Owner != "alice" || got.IsPrivate != in.IsPrivate ||
		got.FileSize != in.FileSize || got.FileType != in.FileType ||
		got.EncryptionKey != in.EncryptionKey {
		t.Errorf("поля записи не совпадают с загруженными: %+v", got)
	}
	if got.IsDeleted || len(got.SharedWith) != 0 {
		t.Errorf("новая запись должна быть неудалённой и без шарингов: %+v", got)
	}
}

func TestUploadValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   UploadInput
	}{
		{"пустой content_id", UploadInput{FileName: "a", FileSize: 1}},
		{"пустое имя файла", UploadInput{ContentID: "cid", FileSize: 1}},
		{"нулевой размер", UploadInput{ContentID: "cid", FileName: "a", FileSize: 0}},
		{"отрицательный размер", UploadInput{ContentID: "cid", FileName: "a", FileSize: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Upload(ctx, "alice", tt.in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ожидалась ErrInvalidInput, получено %v", err)
			}
		})
	}

	if _, err := svc.Upload(ctx, "", sampleInput()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("пустой caller: ожидалась ErrInvalidInput, получено %v", err)
	}
}

func TestIDsMonotonic(t *testing.T) {
	svc, _ := newTestService(t)

	for want := int64(1); want <= 3; want++ {
		f := mustUpload(t, svc, "alice", sampleInput())
		if f.ID != want {
			t.Errorf("id = %d, ожидался %d", f.ID, want)
		}
	}
}

func TestGetVisibility(t *testing.T) {
	svc, ms := newTestService(t)
	ctx := context.Background()

	private := mustUpload(t, svc, "alice", sampleInput())

	pub := sampleInput()
	pub.IsPrivate = false
	public := mustUpload(t, svc, "alice", pub)

	t.Run("чужой приватный файл недоступен", func(t *testing.T) {
		if _, err := svc.Get(ctx, "bob", private.ID); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("ожидалась ErrUnauthorized, получено %v", err)
		}
	})

	t.Run("публичный файл доступен всем, ключ скрыт", func(t *testing.T) {
		got, err := svc.Get(ctx, "bob", public.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.EncryptionKey != "" {
			t.Errorf("encryption_key должен быть скрыт от постороннего читателя")
		}
	})

	t.Run("получатель шаринга читает приватный файл", func(t *testing.T) {
		if err := svc.Share(ctx, "alice", private.ID, "bob"); err != nil {
			t.Fatalf("Share: %v", err)
		}
		got, err := svc.Get(ctx, "bob", private.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.EncryptionKey != "key-ref-1" {
			t.Errorf("получатель шаринга должен видеть encryption_key")
		}
	})

	t.Run("несуществующий id", func(t *testing.T) {
		if _, err := svc.Get(ctx, "alice", 404); !errors.Is(err, ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено %v", err)
		}
	})

	t.Run("law_enforcement читает любой приватный файл", func(t *testing.T) {
		if err := ms.Roles().Grant(ctx, rbac.RoleLawEnforcement, "inspector"); err != nil {
			t.Fatal(err)
		}
		got, err := svc.Get(ctx, "inspector", private.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.EncryptionKey != "key-ref-1" {
			t.Errorf("привилегированная роль должна видеть encryption_key")
		}
	})
}

func TestShare(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	f := mustUpload(t, svc, "alice", sampleInput())

	if err := svc.Share(ctx, "alice", f.ID, "bob"); err != nil {
		t.Fatalf("Share: %v", err)
	}

	t.Run("повторный шаринг отклоняется", func(t *testing.T) {
		if err := svc.Share(ctx, "alice", f.ID, "bob"); !errors.Is(err, ErrDuplicateShare) {
			t.Errorf("ожидалась ErrDuplicateShare, получено %v", err)
		}
	})

	t.Run("шаринг с самим собой отклоняется", func(t *testing.T) {
		if err := svc.Share(ctx, "alice", f.ID, "alice"); !errors.Is(err, ErrInvalidRecipient) {
			t.Errorf("ожидалась ErrInvalidRecipient, получено %v", err)
		}
	})

	t.Run("пустой получатель отклоняется", func(t *testing.T) {
		if err := svc.Share(ctx, "alice", f.ID, ""); !errors.Is(err, ErrInvalidRecipient) {
			t.Errorf("ожидалась ErrInvalidRecipient, получено %v", err)
		}
	})

	t.Run("не владелец не может шарить", func(t *testing.T) {
		if err := svc.Share(ctx, "bob", f.ID, "carol"); !errors.Is(err, ErrNotOwner) {
			t.Errorf("ожидалась ErrNotOwner, получено %v", err)
		}
	})

	t.Run("порядок получателей сохраняется", func(t *testing.T) {
		if err := svc.Share(ctx, "alice", f.ID, "carol"); err != nil {
			t.Fatalf("Share: %v", err)
		}
		got, err := svc.Get(ctx, "alice", f.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		want := []string{"bob", "carol"}
		if len(got.SharedWith) != len(want) {
			t.Fatalf("SharedWith = %v, ожидалось %v", got.SharedWith, want)
		}
		for i := range want {
			if got.SharedWith[i] != want[i] {
				t.Errorf("SharedWith[%d] = %s, ожидалось %s", i, got.SharedWith[i], want[i])
			}
		}
	})
}

func TestDelete(t *testing.T) {
	svc, ms := newTestService(t)
	ctx := context.Background()

	f := mustUpload(t, svc, "alice", sampleInput())

	t.Run("не владелец не может удалить", func(t *testing.T) {
		if err := svc.Delete(ctx, "bob", f.ID); !errors.Is(err, ErrNotOwner) {
			t.Errorf("ожидалась ErrNotOwner, получено %v", err)
		}
	})

	if err := svc.Delete(ctx, "alice", f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	t.Run("повторное удаление отклоняется", func(t *testing.T) {
		if err := svc.Delete(ctx, "alice", f.ID); !errors.Is(err, ErrAlreadyDeleted) {
			t.Errorf("ожидалась ErrAlreadyDeleted, получено %v", err)
		}
	})

	t.Run("удалённый файл не читается владельцем", func(t *testing.T) {
		if _, err := svc.Get(ctx, "alice", f.ID); !errors.Is(err, ErrDeleted) {
			t.Errorf("ожидалась ErrDeleted, получено %v", err)
		}
	})

	t.Run("tombstone действует и для привилегированных ролей", func(t *testing.T) {
		if err := ms.Roles().Grant(ctx, rbac.RoleAdmin, "root"); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Get(ctx, "root", f.ID); !errors.Is(err, ErrDeleted) {
			t.Errorf("ожидалась ErrDeleted, получено %v", err)
		}
	})

	t.Run("удалённый файл нельзя шарить", func(t *testing.T) {
		if err := svc.Share(ctx, "alice", f.ID, "bob"); !errors.Is(err, ErrDeleted) {
			t.Errorf("ожидалась ErrDeleted, получено %v", err)
		}
	})
}

// TestAuditTrail — полный жизненный цикл файла оставляет ровно
// четыре записи в журнале, по одной на операцию, в порядке выполнения.
func TestAuditTrail(t *testing.T) {
	svc, ms := newTestService(t)
	ctx := context.Background()

	f := mustUpload(t, svc, "alice", sampleInput())
	if err := svc.Share(ctx, "alice", f.ID, "bob"); err != nil {
		t.Fatalf("Share: %v", err)
	}
	if _, err := svc.Get(ctx, "bob", f.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := svc.Delete(ctx, "alice", f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := ms.Roles().Grant(ctx, rbac.RoleAdmin, "root"); err != nil {
		t.Fatal(err)
	}
	log, err := svc.AccessLogs(ctx, "root", f.ID)
	if err != nil {
		t.Fatalf("AccessLogs: %v", err)
	}

	want := []struct {
		accessor string
		action   model.Action
	}{
		{"alice", model.ActionUpload},
		{"alice", model.ActionShare},
		{"bob", model.ActionRead},
		{"alice", model.ActionDelete},
	}
	if len(log) != len(want) {
		t.Fatalf("записей в журнале %d, ожидалось %d", len(log), len(want))
	}
	for i, w := range want {
		if log[i].Accessor != w.accessor || log[i].Action != w.action {
			t.Errorf("журнал[%d] = %s/%s, ожидалось %s/%s",
				i, log[i].Accessor, log[i].Action, w.accessor, w.action)
		}
	}
}

// TestFailedOperationsNotLogged — отклонённые операции не попадают в журнал.
func TestFailedOperationsNotLogged(t *testing.T) {
	svc, ms := newTestService(t)
	ctx := context.Background()

	f := mustUpload(t, svc, "alice", sampleInput())

	if _, err := svc.Get(ctx, "bob", f.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидалась ErrUnauthorized, получено %v", err)
	}
	if err := svc.Delete(ctx, "bob", f.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("ожидалась ErrNotOwner, получено %v", err)
	}

	if err := ms.Roles().Grant(ctx, rbac.RoleAdmin, "root"); err != nil {
		t.Fatal(err)
	}
	log, err := svc.AccessLogs(ctx, "root", f.ID)
	if err != nil {
		t.Fatalf("AccessLogs: %v", err)
	}
	if len(log) != 1 || log[0].Action != model.ActionUpload {
		t.Errorf("в журнале должна остаться только запись upload, получено %d записей", len(log))
	}
}

func TestPause(t *testing.T) {
	svc, ms := newTestService(t)
	ctx := context.Background()
	admin := NewAdminService(ms, testLogger())

	if err := ms.Roles().Grant(ctx, rbac.RoleAdmin, "root"); err != nil {
		t.Fatal(err)
	}

	f := mustUpload(t, svc, "alice", sampleInput())

	if err := admin.Pause(ctx, "root"); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	t.Run("мутации заблокированы", func(t *testing.T) {
		if _, err := svc.Upload(ctx, "alice", sampleInput()); !errors.Is(err, ErrPaused) {
			t.Errorf("Upload: ожидалась ErrPaused, получено %v", err)
		}
		if err := svc.Share(ctx, "alice", f.ID, "bob"); !errors.Is(err, ErrPaused) {
			t.Errorf("Share: ожидалась ErrPaused, получено %v", err)
		}
		if err := svc.Delete(ctx, "alice", f.ID); !errors.Is(err, ErrPaused) {
			t.Errorf("Delete: ожидалась ErrPaused, получено %v", err)
		}
	})

	t.Run("чтение продолжает работать", func(t *testing.T) {
		if _, err := svc.Get(ctx, "alice", f.ID); err != nil {
			t.Errorf("Get во время паузы: %v", err)
		}
	})

	t.Run("unpause восстанавливает мутации", func(t *testing.T) {
		if err := admin.Unpause(ctx, "root"); err != nil {
			t.Fatalf("Unpause: %v", err)
		}
		if _, err := svc.Upload(ctx, "alice", sampleInput()); err != nil {
			t.Errorf("Upload после unpause: %v", err)
		}
	})

	t.Run("pause доступна только администратору", func(t *testing.T) {
		if err := admin.Pause(ctx, "alice"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("ожидалась ErrUnauthorized, получено %v", err)
		}
	})
}

func TestStats(t *testing.T) {
	svc, ms := newTestService(t)
	ctx := context.Background()

	in1 := sampleInput()
	in1.FileSize = 100
	f1 := mustUpload(t, svc, "alice", in1)

	in2 := sampleInput()
	in2.FileSize = 200
	mustUpload(t, svc, "bob", in2)

	if err := ms.Roles().Grant(ctx, rbac.RoleAdmin, "root"); err != nil {
		t.Fatal(err)
	}

	t.Run("статистика недоступна без привилегий", func(t *testing.T) {
		if _, err := svc.Stats(ctx, "alice"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("ожидалась ErrUnauthorized, получено %v", err)
		}
	})

	t.Run("удаление уменьшает занятое место", func(t *testing.T) {
		if err := svc.Delete(ctx, "alice", f1.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		stats, err := svc.Stats(ctx, "root")
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.TotalFiles != 2 {
			t.Errorf("TotalFiles = %d, ожидалось 2", stats.TotalFiles)
		}
		if stats.ActiveFiles != 1 {
			t.Errorf("ActiveFiles = %d, ожидалось 1", stats.ActiveFiles)
		}
		if stats.TotalStorageUsed != 200 {
			t.Errorf("TotalStorageUsed = %d, ожидалось 200", stats.TotalStorageUsed)
		}
	})
}

func TestQueries(t *testing.T) {
	svc, ms := newTestService(t)
	ctx := context.Background()

	priv := mustUpload(t, svc, "alice", sampleInput())

	pub := sampleInput()
	pub.IsPrivate = false
	mustUpload(t, svc, "alice", pub)
	mustUpload(t, svc, "bob", sampleInput())

	if err := svc.Share(ctx, "alice", priv.ID, "bob"); err != nil {
		t.Fatalf("Share: %v", err)
	}

	t.Run("файлы владельца", func(t *testing.T) {
		ids, err := svc.UserFiles(ctx, "alice")
		if err != nil {
			t.Fatalf("UserFiles: %v", err)
		}
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Errorf("UserFiles = %v, ожидалось [1 2]", ids)
		}
	})

	t.Run("расшаренные файлы", func(t *testing.T) {
		ids, err := svc.SharedFiles(ctx, "bob")
		if err != nil {
			t.Fatalf("SharedFiles: %v", err)
		}
		if len(ids) != 1 || ids[0] != priv.ID {
			t.Errorf("SharedFiles = %v, ожидалось [%d]", ids, priv.ID)
		}
	})

	t.Run("розданные владельцем файлы", func(t *testing.T) {
		files, err := svc.SharedBy(ctx, "alice")
		if err != nil {
			t.Fatalf("SharedBy: %v", err)
		}
		if len(files) != 1 || files[0].ID != priv.ID {
			t.Fatalf("SharedBy = %+v, ожидался только файл %d", files, priv.ID)
		}
		if len(files[0].SharedWith) != 1 || files[0].SharedWith[0] != "bob" {
			t.Errorf("SharedWith = %v, ожидалось [bob]", files[0].SharedWith)
		}
		if files[0].EncryptionKey != "" {
			t.Errorf("encryption_key должен быть скрыт в выдаче shared-by")
		}
	})

	t.Run("удалённый файл исчезает из shared-by", func(t *testing.T) {
		if err := svc.Delete(ctx, "alice", priv.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		files, err := svc.SharedBy(ctx, "alice")
		if err != nil {
			t.Fatalf("SharedBy: %v", err)
		}
		if len(files) != 0 {
			t.Errorf("SharedBy после удаления = %+v, ожидался пустой список", files)
		}
	})

	t.Run("публичные файлы без ключей", func(t *testing.T) {
		files, err := svc.PublicFiles(ctx)
		if err != nil {
			t.Fatalf("PublicFiles: %v", err)
		}
		if len(files) != 1 {
			t.Fatalf("публичных файлов %d, ожидался 1", len(files))
		}
		if files[0].EncryptionKey != "" {
			t.Errorf("encryption_key должен быть скрыт в публичной выдаче")
		}
	})

	t.Run("полный список только для привилегированных", func(t *testing.T) {
		if _, err := svc.AllFiles(ctx, "alice"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("ожидалась ErrUnauthorized, получено %v", err)
		}
		if err := ms.Roles().Grant(ctx, rbac.RoleLawEnforcement, "inspector"); err != nil {
			t.Fatal(err)
		}
		files, err := svc.AllFiles(ctx, "inspector")
		if err != nil {
			t.Fatalf("AllFiles: %v", err)
		}
		if len(files) != 3 {
			t.Errorf("AllFiles вернул %d записей, ожидалось 3", len(files))
		}
	})

	t.Run("журнал несуществующего файла", func(t *testing.T) {
		if err := ms.Roles().Grant(ctx, rbac.RoleAdmin, "root"); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.AccessLogs(ctx, "root", 404); !errors.Is(err, ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено %v", err)
		}
	})
}

func TestAdminRoles(t *testing.T) {
	_, ms := newTestService(t)
	ctx := context.Background()
	admin := NewAdminService(ms, testLogger())

	if err := admin.BootstrapAdmin(ctx, "root"); err != nil {
		t.Fatalf("BootstrapAdmin: %v", err)
	}

	t.Run("выдача роли не администратором", func(t *testing.T) {
		err := admin.GrantRole(ctx, "alice", rbac.RoleLawEnforcement, "bob")
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("ожидалась ErrUnauthorized, получено %v", err)
		}
	})

	t.Run("недопустимая роль", func(t *testing.T) {
		err := admin.GrantRole(ctx, "root", "superuser", "bob")
		if !errors.Is(err, ErrInvalidRole) {
			t.Errorf("ожидалась ErrInvalidRole, получено %v", err)
		}
	})

	t.Run("выдача и отзыв", func(t *testing.T) {
		if err := admin.GrantRole(ctx, "root", rbac.RoleLawEnforcement, "inspector"); err != nil {
			t.Fatalf("GrantRole: %v", err)
		}
		ok, err := admin.HasRole(ctx, rbac.RoleLawEnforcement, "inspector")
		if err != nil || !ok {
			t.Errorf("HasRole = %v, %v; ожидалось true", ok, err)
		}

		if err := admin.RevokeRole(ctx, "root", rbac.RoleLawEnforcement, "inspector"); err != nil {
			t.Fatalf("RevokeRole: %v", err)
		}
		ok, _ = admin.HasRole(ctx, rbac.RoleLawEnforcement, "inspector")
		if ok {
			t.Errorf("роль должна быть отозвана")
		}
	})

	t.Run("отзыв невыданной роли", func(t *testing.T) {
		err := admin.RevokeRole(ctx, "root", rbac.RoleLawEnforcement, "nobody")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("ожидалась ErrNotFound, получено %v", err)
		}
	})

	t.Run("повторная выдача идемпотентна", func(t *testing.T) {
		if err := admin.GrantRole(ctx, "root", rbac.RoleAdmin, "root2"); err != nil {
			t.Fatalf("GrantRole: %v", err)
		}
		if err := admin.GrantRole(ctx, "root", rbac.RoleAdmin, "root2"); err != nil {
			t.Errorf("повторная выдача: %v", err)
		}
	})
}

// TestEventPublication — каждая операция публикует событие своего типа,
// а чтение привилегированной ролью дополнительно попадает в отдельный
// поток privileged_access.
func TestEventPublication(t *testing.T) {
	ms := newMemStore()
	pub := &memPublisher{}
	svc := NewRegistryService(ms, ms, nil, pub, testLogger())
	ctx := context.Background()

	f := mustUpload(t, svc, "alice", sampleInput())

	t.Run("загрузка", func(t *testing.T) {
		got := pub.types()
		if len(got) != 1 || got[0] != events.TypeFileCreated {
			t.Errorf("события = %v, ожидалось [%s]", got, events.TypeFileCreated)
		}
	})

	t.Run("шаринг с получателем", func(t *testing.T) {
		pub.reset()
		if err := svc.Share(ctx, "alice", f.ID, "bob"); err != nil {
			t.Fatalf("Share: %v", err)
		}
		got := pub.types()
		if len(got) != 1 || got[0] != events.TypeFileShared {
			t.Fatalf("события = %v, ожидалось [%s]", got, events.TypeFileShared)
		}
		if pub.events[0].Recipient != "bob" {
			t.Errorf("Recipient = %s, ожидался bob", pub.events[0].Recipient)
		}
	})

	t.Run("обычное чтение без privileged_access", func(t *testing.T) {
		pub.reset()
		if _, err := svc.Get(ctx, "bob", f.ID); err != nil {
			t.Fatalf("Get: %v", err)
		}
		got := pub.types()
		if len(got) != 1 || got[0] != events.TypeFileAccessed {
			t.Errorf("события = %v, ожидалось только [%s]", got, events.TypeFileAccessed)
		}
	})

	t.Run("привилегированное чтение публикуется в оба потока", func(t *testing.T) {
		if err := ms.Roles().Grant(ctx, rbac.RoleLawEnforcement, "inspector"); err != nil {
			t.Fatal(err)
		}
		pub.reset()
		if _, err := svc.Get(ctx, "inspector", f.ID); err != nil {
			t.Fatalf("Get: %v", err)
		}
		got := pub.types()
		want := []string{events.TypeFileAccessed, events.TypePrivilegedAccess}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("события = %v, ожидалось %v", got, want)
		}
		if pub.events[1].Principal != "inspector" || pub.events[1].FileID != f.ID {
			t.Errorf("privileged_access: %+v", pub.events[1])
		}
	})

	t.Run("отклонённое чтение не публикуется", func(t *testing.T) {
		pub.reset()
		if _, err := svc.Get(ctx, "stranger", f.ID); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("ожидалась ErrUnauthorized, получено %v", err)
		}
		if got := pub.types(); len(got) != 0 {
			t.Errorf("события = %v, ожидался пустой список", got)
		}
	})

	t.Run("удаление", func(t *testing.T) {
		pub.reset()
		if err := svc.Delete(ctx, "alice", f.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		got := pub.types()
		if len(got) != 1 || got[0] != events.TypeFileDeleted {
			t.Errorf("события = %v, ожидалось [%s]", got, events.TypeFileDeleted)
		}
	})
}

func TestCacheInvalidation(t *testing.T) {
	ms := newMemStore()
	cache := NewCacheService(16, time.Minute, testLogger())
	svc := NewRegistryService(ms, ms, cache, events.NopPublisher{}, testLogger())
	ctx := context.Background()

	mustUpload(t, svc, "alice", sampleInput())

	ids, err := svc.UserFiles(ctx, "alice")
	if err != nil || len(ids) != 1 {
		t.Fatalf("UserFiles = %v, %v", ids, err)
	}

	// Загрузка нового файла должна сбросить кэш списка владельца.
	mustUpload(t, svc, "alice", sampleInput())

	ids, err = svc.UserFiles(ctx, "alice")
	if err != nil {
		t.Fatalf("UserFiles: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("после загрузки список владельца = %v, ожидалось 2 элемента", ids)
	}
}
