package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/docpipeline/internal/data/store"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/internal/registry"
	"github.com/akolanti/docpipeline/internal/throttle"
)

type mockHandler struct {
	jobType  string
	OnHandle func(ctx context.Context, job jobModel.Job) error
}

func (m *mockHandler) JobType() string { return m.jobType }

func (m *mockHandler) Handle(ctx context.Context, job jobModel.Job) error {
	if m.OnHandle != nil {
		return m.OnHandle(ctx, job)
	}
	return nil
}

func enqueueAndLease(t *testing.T, queue jobModel.Queue, job jobModel.Job, opts jobModel.JobOptions) jobModel.Job {
	t.Helper()
	if err := queue.Enqueue(context.Background(), job, opts); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	leased, ok := queue.Dequeue(context.Background())
	if !ok {
		t.Fatal("Dequeue returned no job")
	}
	return leased
}

func TestExecuteJob_Success(t *testing.T) {
	queue := store.InitInMemoryQueue()
	reg := registry.New()
	handled := false
	if err := reg.Register(&mockHandler{
		jobType: jobModel.JobTypeParse,
		OnHandle: func(ctx context.Context, job jobModel.Job) error {
			handled = true
			return nil
		},
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p := New(queue, reg, throttle.New(1))
	job := enqueueAndLease(t, queue, jobModel.Job{Type: jobModel.JobTypeParse}, jobModel.JobOptions{})
	p.executeJob(job)

	if !handled {
		t.Error("handler was never invoked")
	}
	done, _ := queue.GetJob(context.Background(), job.Id)
	if done.Status != jobModel.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", done.Status)
	}
}

func TestExecuteJob_UnknownTypeFailsPermanently(t *testing.T) {
	queue := store.InitInMemoryQueue()
	reg := registry.New()
	if err := reg.Register(&mockHandler{jobType: jobModel.JobTypeParse}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p := New(queue, reg, throttle.New(1))
	//3 attempts allowed, but an unroutable job must not use any of them
	job := enqueueAndLease(t, queue, jobModel.Job{Type: jobModel.JobTypeChunk}, jobModel.JobOptions{Attempts: 3})
	p.executeJob(job)

	dead, _ := queue.GetJob(context.Background(), job.Id)
	if dead.Status != jobModel.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", dead.Status)
	}
	if dead.FailureReason != "no handler registered for job type: chunking" {
		t.Errorf("failure reason = %q", dead.FailureReason)
	}
	counts, _ := queue.Counts(context.Background())
	if counts.Delayed != 0 || counts.Waiting != 0 {
		t.Errorf("unroutable job was scheduled for retry: %+v", counts)
	}
}

func TestExecuteJob_ThrottledJobKeepsAttempts(t *testing.T) {
	queue := store.InitInMemoryQueue()
	reg := registry.New()
	invoked := false
	if err := reg.Register(&mockHandler{
		jobType: jobModel.JobTypeEmbed,
		OnHandle: func(ctx context.Context, job jobModel.Job) error {
			invoked = true
			return nil
		},
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	gate := throttle.New(1)
	if !gate.TryReserve() {
		t.Fatal("could not occupy the only slot")
	}

	p := New(queue, reg, gate)
	job := enqueueAndLease(t, queue, jobModel.Job{Type: jobModel.JobTypeEmbed}, jobModel.JobOptions{Attempts: 1})
	p.executeJob(job)

	if invoked {
		t.Error("handler ran while the gate was full")
	}
	requeued, found := queue.GetJob(context.Background(), job.Id)
	if !found {
		t.Fatal("job record disappeared")
	}
	if requeued.Status != jobModel.JobStatusWaiting {
		t.Errorf("job status = %s, want waiting", requeued.Status)
	}
	if requeued.AttemptsMade != 0 {
		t.Errorf("AttemptsMade = %d, want 0 after throttled requeue", requeued.AttemptsMade)
	}

	//once the slot frees up the same job runs with its full budget
	gate.Release()
	time.Sleep(2 * time.Millisecond)
	job, ok := queue.Dequeue(context.Background())
	if !ok {
		t.Fatal("requeued job not dequeued")
	}
	p.executeJob(job)
	if !invoked {
		t.Error("handler did not run after throttle lifted")
	}
}

func TestExecuteJob_HandlerErrorRetries(t *testing.T) {
	queue := store.InitInMemoryQueue()
	reg := registry.New()
	if err := reg.Register(&mockHandler{
		jobType: jobModel.JobTypeIndex,
		OnHandle: func(ctx context.Context, job jobModel.Job) error {
			return errors.New("qdrant unavailable")
		},
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p := New(queue, reg, throttle.New(1))
	job := enqueueAndLease(t, queue, jobModel.Job{Type: jobModel.JobTypeIndex}, jobModel.JobOptions{Attempts: 2})
	p.executeJob(job)

	counts, _ := queue.Counts(context.Background())
	if counts.Delayed != 1 {
		t.Errorf("counts = %+v, want the failed job delayed for retry", counts)
	}
	retrying, _ := queue.GetJob(context.Background(), job.Id)
	if retrying.Status != jobModel.JobStatusWaiting || retrying.FailureReason != "qdrant unavailable" {
		t.Errorf("job after first failure = %+v", retrying)
	}
}

func TestExecuteJob_PanicIsRecovered(t *testing.T) {
	queue := store.InitInMemoryQueue()
	reg := registry.New()
	if err := reg.Register(&mockHandler{
		jobType: jobModel.JobTypeParse,
		OnHandle: func(ctx context.Context, job jobModel.Job) error {
			panic("corrupt pdf")
		},
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	gate := throttle.New(1)
	p := New(queue, reg, gate)
	job := enqueueAndLease(t, queue, jobModel.Job{Type: jobModel.JobTypeParse}, jobModel.JobOptions{Attempts: 1})
	p.executeJob(job)

	dead, _ := queue.GetJob(context.Background(), job.Id)
	if dead.Status != jobModel.JobStatusFailed {
		t.Errorf("job status = %s, want failed after panic", dead.Status)
	}
	if gate.InFlight() != 0 {
		t.Errorf("throttle slot leaked after panic: inFlight=%d", gate.InFlight())
	}
}

func TestProcessor_WorkerPoolSize(t *testing.T) {
	t.Setenv("QUEUE_CONCURRENCY", "2")

	queue := store.InitInMemoryQueue()
	p := New(queue, registry.New(), throttle.New(1))

	stop := make(chan bool)
	var wg sync.WaitGroup
	p.Start(stop, &wg)

	//workers are spawned synchronously, only their loops run async
	if p.WorkerCount() != 2 {
		t.Errorf("WorkerCount() = %d, want 2", p.WorkerCount())
	}

	close(stop)
	wg.Wait()
	if p.WorkerCount() != 0 {
		t.Errorf("WorkerCount() after stop = %d, want 0", p.WorkerCount())
	}
}
