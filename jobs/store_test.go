package jobs

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"materna-backend/conn"
	"materna-backend/migrations"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := conn.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Migrate(db, conn.SQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s := NewSQLStore(newTestDB(t))
	s.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return s
}

func TestStoreLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, "job-1", "p1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := ReportJob{ReportID: "job-1", PatientID: "p1", Status: StatusProcessing, CreatedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("processing job mismatch (-want +got):\n%s", diff)
	}

	done := time.Date(2024, 3, 1, 9, 31, 5, 123456000, time.UTC)
	if err := s.Update(ctx, "job-1", StatusCompleted, "## Patient Overview\n...", done); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	content := "## Patient Overview\n..."
	want.Status, want.ReportContent, want.CompletedAt = StatusCompleted, &content, &done
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("completed job mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreDuplicateCreateLeavesRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, "job-1", "p1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, "job-1", "p2"); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	got, _ := s.Get(ctx, "job-1")
	if got.PatientID != "p1" || got.Status != StatusProcessing {
		t.Fatalf("existing row altered: %+v", got)
	}
}

func TestStoreNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Get(ctx, "2c3c5b8e-unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, "missing", StatusCompleted, "x", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update: expected ErrNotFound, got %v", err)
	}
}

func TestStoreUpdateOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Create(ctx, "job-1", "p1")
	if err := s.Update(ctx, "job-1", StatusCompleted, "first", time.Now()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Update(ctx, "job-1", StatusFailed, "second", time.Now()); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("expected ErrAlreadyFinal, got %v", err)
	}
	got, _ := s.Get(ctx, "job-1")
	if got.Status != StatusCompleted || *got.ReportContent != "first" {
		t.Fatalf("terminal row overwritten: %+v", got)
	}
	if err := s.Update(ctx, "job-1", StatusProcessing, "", time.Now()); err == nil {
		t.Fatal("expected error for non-terminal target status")
	}
}

func TestStoreReadsNeverSeePartialRow(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	ctx := context.Background()
	const n = 20
	for i := 0; i < n; i++ {
		if err := s.Create(ctx, jobName(i), "p1"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 100)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for i := 0; i < n; i++ {
					j, err := s.Get(ctx, jobName(i))
					if err != nil {
						errs <- err.Error()
						return
					}
					processing := j.Status == StatusProcessing && j.ReportContent == nil && j.CompletedAt == nil
					completed := j.Status == StatusCompleted && j.ReportContent != nil && *j.ReportContent == "report "+jobName(i) && j.CompletedAt != nil
					if !processing && !completed {
						errs <- "partial row observed for " + jobName(i)
						return
					}
				}
			}
		}()
	}
	for i := 0; i < n; i++ {
		if err := s.Update(ctx, jobName(i), StatusCompleted, "report "+jobName(i), time.Now()); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestStoreListByPatient(t *testing.T) {
	s := NewSQLStore(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		patient := "p1"
		if id == "b" {
			patient = "p2"
		}
		if err := s.Create(ctx, id, patient); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	got, err := s.ListByPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if len(got) != 2 || got[0].ReportID != "c" || got[1].ReportID != "a" {
		t.Fatalf("unexpected list: %+v", got)
	}
	none, err := s.ListByPatient(ctx, "nobody")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v, %v", none, err)
	}
}

func jobName(i int) string {
	return "job-" + string(rune('a'+i))
}
