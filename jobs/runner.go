package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"materna-backend/metrics"
	"materna-backend/report"
)

// ReportGenerator produces a report for a patient context. It must always
// return content; *report.Generator implements it.
type ReportGenerator interface {
	Generate(ctx context.Context, patientContext string) report.Result
}

// Task is one accepted report job.
type Task struct {
	JobID     string
	PatientID string
	Context   string
}

type RunnerConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Runner executes report jobs on a fixed number of workers fed by a bounded
// queue. Submit never blocks.
type Runner struct {
	store Store
	gen   ReportGenerator
	cfg   RunnerConfig
	now   func() time.Time

	queue   chan Task
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewRunner(store Store, gen ReportGenerator, cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	r := &Runner{
		store: store,
		gen:   gen,
		cfg:   cfg,
		now:   time.Now,
		queue: make(chan Task, cfg.QueueSize),
	}
	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker(i)
	}
	log.Printf("[jobs] runner started workers=%d queue=%d timeout=%s", cfg.Workers, cfg.QueueSize, cfg.Timeout)
	return r
}

// Submit hands t to the pool. It returns ErrQueueFull when every worker is
// busy and the queue is at capacity, ErrStopped after Shutdown.
func (r *Runner) Submit(t Task) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		metrics.RecordJobSubmitted("stopped")
		return ErrStopped
	}
	select {
	case r.queue <- t:
		metrics.RecordJobSubmitted("accepted")
		metrics.SetQueueDepth(len(r.queue))
		return nil
	default:
		metrics.RecordJobSubmitted("queue_full")
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued and running jobs to finish or
// for ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Printf("[jobs] runner drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()
	for t := range r.queue {
		metrics.SetQueueDepth(len(r.queue))
		r.run(id, t)
	}
}

func (r *Runner) run(worker int, t Task) {
	start := r.now()
	metrics.JobStarted()
	defer metrics.JobDone()

	res := r.generate(t)
	status := StatusCompleted
	if res.Outcome == report.OutcomeTimeout {
		status = StatusFailed
	}

	// the generation context may already be expired, persistence gets its own
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.store.Update(ctx, t.JobID, status, res.Content, r.now()); err != nil {
		log.Printf("[jobs] worker=%d report_id=%s update failed, job left processing: %v", worker, t.JobID, err)
		metrics.RecordJobFinished("update_error", string(res.Outcome), time.Since(start))
		return
	}
	log.Printf("[jobs] worker=%d report_id=%s patient_id=%s status=%s outcome=%s elapsed=%s",
		worker, t.JobID, t.PatientID, status, res.Outcome, time.Since(start).Round(time.Millisecond))
	metrics.RecordJobFinished(string(status), string(res.Outcome), time.Since(start))
}

func (r *Runner) generate(t Task) (res report.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[jobs] report_id=%s generator panic: %v", t.JobID, p)
			res = report.Result{Content: report.ErrorReport(), Outcome: report.OutcomeError}
		}
	}()
	res = r.gen.Generate(ctx, t.Context)
	if res.Content == "" {
		res = report.Result{Content: report.ErrorReport(), Outcome: report.OutcomeError}
	}
	if res.Outcome == report.OutcomeError && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res = report.Result{Content: report.TimeoutReport(), Outcome: report.OutcomeTimeout}
	}
	return res
}

// Reject finalises a job whose task could not be submitted.
func Reject(ctx context.Context, store Store, jobID string, cause error) error {
	msg := fmt.Sprintf("Report generation could not be started: %v. Please try again later.", cause)
	return store.Update(ctx, jobID, StatusFailed, msg, time.Now())
}
