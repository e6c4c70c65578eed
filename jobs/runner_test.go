package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"materna-backend/report"
)

type gatedGenerator struct {
	started chan string
	release chan struct{}
	result  report.Result
}

func (g *gatedGenerator) Generate(ctx context.Context, patientContext string) report.Result {
	if g.started != nil {
		g.started <- patientContext
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return report.Result{Content: report.TimeoutReport(), Outcome: report.OutcomeTimeout}
		}
	}
	return g.result
}

type countingStore struct {
	Store
	mu      sync.Mutex
	updates map[string]int
}

func (c *countingStore) Update(ctx context.Context, id string, st Status, content string, at time.Time) error {
	c.mu.Lock()
	c.updates[id]++
	c.mu.Unlock()
	return c.Store.Update(ctx, id, st, content, at)
}

func waitForStatus(t *testing.T, s Store, id string, want Status) ReportJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := s.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if j.Status == want {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return ReportJob{}
}

func TestRunnerCompletesJobOnce(t *testing.T) {
	store := &countingStore{Store: NewSQLStore(newTestDB(t)), updates: map[string]int{}}
	gen := &gatedGenerator{result: report.Result{Content: report.FallbackReport(), Outcome: report.OutcomeFallback}}
	r := NewRunner(store, gen, RunnerConfig{Workers: 2, QueueSize: 4, Timeout: time.Second})
	defer r.Shutdown(context.Background())

	ctx := context.Background()
	store.Create(ctx, "job-1", "p1")
	if err := r.Submit(Task{JobID: "job-1", PatientID: "p1", Context: "Patient Summary:"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	j := waitForStatus(t, store, "job-1", StatusCompleted)
	if j.ReportContent == nil || !report.HasAllSections(*j.ReportContent) || j.CompletedAt == nil {
		t.Fatalf("unexpected completed job %+v", j)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if store.updates["job-1"] != 1 {
		t.Fatalf("expected exactly one update, got %d", store.updates["job-1"])
	}
}

func TestRunnerTimeoutMarksFailed(t *testing.T) {
	store := NewSQLStore(newTestDB(t))
	gen := &gatedGenerator{release: make(chan struct{})}
	r := NewRunner(store, gen, RunnerConfig{Workers: 1, QueueSize: 1, Timeout: 30 * time.Millisecond})
	defer r.Shutdown(context.Background())

	store.Create(context.Background(), "job-1", "p1")
	r.Submit(Task{JobID: "job-1", PatientID: "p1"})
	j := waitForStatus(t, store, "job-1", StatusFailed)
	if j.ReportContent == nil || !strings.Contains(*j.ReportContent, "timed out") {
		t.Fatalf("failed job should explain the timeout: %+v", j)
	}
}

func TestRunnerRejectsWhenQueueFull(t *testing.T) {
	store := NewSQLStore(newTestDB(t))
	gen := &gatedGenerator{
		started: make(chan string, 4),
		release: make(chan struct{}),
		result:  report.Result{Content: report.FallbackReport(), Outcome: report.OutcomeFallback},
	}
	r := NewRunner(store, gen, RunnerConfig{Workers: 1, QueueSize: 1, Timeout: 5 * time.Second})

	if err := r.Submit(Task{JobID: "a"}); err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	<-gen.started
	if err := r.Submit(Task{JobID: "b"}); err != nil {
		t.Fatalf("Submit b: %v", err)
	}
	if err := r.Submit(Task{JobID: "c"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	close(gen.release)
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := r.Submit(Task{JobID: "d"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestRunnerShutdownDrainsQueue(t *testing.T) {
	store := NewSQLStore(newTestDB(t))
	gen := &gatedGenerator{result: report.Result{Content: report.FallbackReport(), Outcome: report.OutcomeFallback}}
	r := NewRunner(store, gen, RunnerConfig{Workers: 1, QueueSize: 8, Timeout: time.Second})

	ctx := context.Background()
	ids := []string{"j1", "j2", "j3", "j4"}
	for _, id := range ids {
		store.Create(ctx, id, "p1")
		if err := r.Submit(Task{JobID: id, PatientID: "p1"}); err != nil {
			t.Fatalf("Submit %s: %v", id, err)
		}
	}
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for _, id := range ids {
		j, _ := store.Get(ctx, id)
		if j.Status != StatusCompleted {
			t.Errorf("job %s not drained: %s", id, j.Status)
		}
	}
}

func TestRejectFinalisesJob(t *testing.T) {
	store := NewSQLStore(newTestDB(t))
	ctx := context.Background()
	store.Create(ctx, "job-1", "p1")
	if err := Reject(ctx, store, "job-1", ErrQueueFull); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	j, _ := store.Get(ctx, "job-1")
	if j.Status != StatusFailed || j.ReportContent == nil || !strings.Contains(*j.ReportContent, "queue is full") {
		t.Fatalf("unexpected job %+v", j)
	}
}
