package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/mohans/nsforge/internal/database"
	"github.com/mohans/nsforge/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("sqlite", "file:"+name+"?mode=memory&cache=shared", slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestTaskStore_Lifecycle_Success(t *testing.T) {
	store := NewTaskStore(openTestDB(t))
	ctx := context.Background()

	rec := &models.Task{ID: "task-1", UserID: "user-1", DomainID: "dom-1"}
	if err := store.InsertPending(ctx, rec); err != nil {
		t.Fatalf("InsertPending: %v", err)
	}
	if err := store.SetJob(ctx, rec.ID, "job-1", "default"); err != nil {
		t.Fatalf("SetJob: %v", err)
	}
	result := models.TaskResult{ZoneID: "zone-1", Nameservers: []string{"ns1.example", "ns2.example"}}
	applied, err := store.MarkSucceeded(ctx, rec.ID, result, time.Now())
	if err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	if !applied {
		t.Fatalf("expected first terminal write to apply")
	}

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.TaskSuccess {
		t.Fatalf("want status=%s got=%s", models.TaskSuccess, got.Status)
	}
	if got.JobID != "job-1" || got.Queue != "default" {
		t.Fatalf("job not recorded: %#v", got)
	}
	if got.Result == nil || got.Result.ZoneID != "zone-1" || len(got.Result.Nameservers) != 2 {
		t.Fatalf("unexpected result: %#v", got.Result)
	}
	if got.Error != nil {
		t.Fatalf("error must be unset on success, got %q", *got.Error)
	}
}

func TestTaskStore_TerminalWriteIsIdempotent(t *testing.T) {
	store := NewTaskStore(openTestDB(t))
	ctx := context.Background()

	rec := &models.Task{ID: "task-2", UserID: "user-1", DomainID: "dom-2"}
	if err := store.InsertPending(ctx, rec); err != nil {
		t.Fatalf("InsertPending: %v", err)
	}
	applied, err := store.MarkFailed(ctx, rec.ID, "boom", time.Now())
	if err != nil || !applied {
		t.Fatalf("MarkFailed: applied=%v err=%v", applied, err)
	}
	applied, err = store.MarkSucceeded(ctx, rec.ID, models.TaskResult{ZoneID: "z"}, time.Now())
	if err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}
	if applied {
		t.Fatalf("terminal task must not transition again")
	}
	applied, err = store.MarkFailed(ctx, rec.ID, "second", time.Now())
	if err != nil || applied {
		t.Fatalf("second MarkFailed: applied=%v err=%v", applied, err)
	}

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.TaskFailure || got.Error == nil || *got.Error != "boom" {
		t.Fatalf("unexpected record: %#v", got)
	}
	if got.Result != nil {
		t.Fatalf("result must be unset on failure")
	}
}

func TestTaskStore_GetForUser_NotFound(t *testing.T) {
	store := NewTaskStore(openTestDB(t))
	ctx := context.Background()

	if err := store.InsertPending(ctx, &models.Task{ID: "task-3", UserID: "owner"}); err != nil {
		t.Fatalf("InsertPending: %v", err)
	}
	if _, err := store.GetForUser(ctx, "task-3", "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := store.SetJob(ctx, "missing", "job", "default"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound from SetJob, got %v", err)
	}
}

func TestTaskStore_ListPending(t *testing.T) {
	store := NewTaskStore(openTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.InsertPending(ctx, &models.Task{ID: id, UserID: "u"}); err != nil {
			t.Fatalf("InsertPending %s: %v", id, err)
		}
	}
	if _, err := store.MarkFailed(ctx, "b", "x", time.Now()); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	pending, err := store.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("want 2 pending, got %d", len(pending))
	}
	for _, p := range pending {
		if p.ID == "b" {
			t.Fatalf("terminal task listed as pending")
		}
	}
}

func TestDomainStore_UniqueName(t *testing.T) {
	store := NewDomainStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Create(ctx, &models.Domain{ID: "d1", UserID: "u1", Name: "example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := store.Create(ctx, &models.Domain{ID: "d2", UserID: "u2", Name: "example.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	ok, err := store.ExistsByName(ctx, "example.com")
	if err != nil || !ok {
		t.Fatalf("ExistsByName: ok=%v err=%v", ok, err)
	}
}

func TestDomainStore_ResolveAndDelete(t *testing.T) {
	store := NewDomainStore(openTestDB(t))
	ctx := context.Background()

	d := &models.Domain{ID: "d1", UserID: "u1", Name: "example.com"}
	if err := store.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Pending() {
		t.Fatalf("new domain should be pending: %#v", got)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.Resolve(ctx, "d1", "zone-1", []string{"ns1.example", "ns2.example"}, at); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, err = store.GetByNameForUser(ctx, "example.com", "u1")
	if err != nil {
		t.Fatalf("GetByNameForUser: %v", err)
	}
	if got.Pending() || got.ZoneID != "zone-1" || len(got.Nameservers) != 2 || !got.ResolvedAt.Equal(at) {
		t.Fatalf("unexpected resolved domain: %#v", got)
	}
	if _, err := store.GetByNameForUser(ctx, "example.com", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user must not see the domain, got %v", err)
	}

	deleted, err := store.Delete(ctx, "d1")
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "d1")
	if err != nil || deleted {
		t.Fatalf("second Delete: deleted=%v err=%v", deleted, err)
	}
	if err := store.Resolve(ctx, "d1", "z", []string{"ns"}, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve on missing domain: want ErrNotFound, got %v", err)
	}
}

func TestUserStore_UniqueEmail(t *testing.T) {
	store := NewUserStore(openTestDB(t))
	ctx := context.Background()

	if err := store.Create(ctx, &models.User{ID: "u1", Email: "a@example.com", HashedPassword: "h", IsActive: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, &models.User{ID: "u2", Email: "a@example.com", HashedPassword: "h"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	u, err := store.GetByEmail(ctx, "a@example.com")
	if err != nil || u.ID != "u1" {
		t.Fatalf("GetByEmail: %#v %v", u, err)
	}
	if _, err := store.GetByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDomainStore_OrphanedAndDeletePending(t *testing.T) {
	db := openTestDB(t)
	domains := NewDomainStore(db)
	tasks := NewTaskStore(db)
	ctx := context.Background()

	for _, id := range []string{"d-failed", "d-pending", "d-resolved"} {
		if err := domains.Create(ctx, &models.Domain{ID: id, UserID: "u1", Name: id + ".com"}); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
		if err := tasks.InsertPending(ctx, &models.Task{ID: "t-" + id, UserID: "u1", DomainID: id}); err != nil {
			t.Fatalf("InsertPending %s: %v", id, err)
		}
	}
	now := time.Now()
	if _, err := tasks.MarkFailed(ctx, "t-d-failed", "boom", now); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := domains.Resolve(ctx, "d-resolved", "z", []string{"ns"}, now); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := tasks.MarkFailed(ctx, "t-d-resolved", "late", now); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	orphans, err := domains.ListOrphaned(ctx, 10)
	if err != nil {
		t.Fatalf("ListOrphaned: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != "d-failed" {
		t.Fatalf("want only d-failed, got %#v", orphans)
	}

	deleted, err := domains.DeletePending(ctx, "d-resolved")
	if err != nil || deleted {
		t.Fatalf("DeletePending on resolved domain: deleted=%v err=%v", deleted, err)
	}
	deleted, err = domains.DeletePending(ctx, "d-failed")
	if err != nil || !deleted {
		t.Fatalf("DeletePending: deleted=%v err=%v", deleted, err)
	}
	if _, err := domains.GetByID(ctx, "d-failed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
