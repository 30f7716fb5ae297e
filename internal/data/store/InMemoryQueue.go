package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/pkg/logger_i"
	"github.com/google/uuid"
)

// InMemoryQueue mirrors RedisQueue semantics without a broker. It backs the
// redis-offline fallback and the processor/orchestrator unit tests.
type InMemoryQueue struct {
	mu      *sync.Mutex
	records map[string]jobModel.Job
	waiting []string
	delayed map[string]time.Time
	active  []string
	done    []string
	dead    []string
	events  []jobModel.QueueEvent
	logger  *logger_i.Logger

	maxAttempts int
	backoffBase time.Duration
}

func InitInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		mu:          new(sync.Mutex),
		records:     make(map[string]jobModel.Job),
		delayed:     make(map[string]time.Time),
		logger:      logger_i.NewLogger("InMem Queue"),
		maxAttempts: config.MaxAttempts(),
		backoffBase: config.BackoffBase(),
	}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, job jobModel.Job, opts jobModel.JobOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.Id == "" {
		job.Id = uuid.New().String()
	}
	job.MaxAttempts = opts.Attempts
	if job.MaxAttempts < 1 {
		job.MaxAttempts = q.maxAttempts
	}
	job.BackoffBase = opts.BackoffBase
	if job.BackoffBase < 1 {
		job.BackoffBase = q.backoffBase
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Status = jobModel.JobStatusWaiting
	q.records[job.Id] = job

	if opts.Delay > 0 {
		q.delayed[job.Id] = time.Now().Add(opts.Delay)
	} else {
		q.waiting = append(q.waiting, job.Id)
	}
	q.appendEventLocked(job, "enqueued", "")
	return nil
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (jobModel.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.promoteDueLocked()

	for len(q.waiting) > 0 {
		id := q.waiting[0]
		q.waiting = q.waiting[1:]

		job, found := q.records[id]
		if !found {
			continue
		}
		job.Status = jobModel.JobStatusActive
		job.AttemptsMade++
		job.ProcessedAt = time.Now()
		q.records[id] = job
		q.active = append(q.active, id)
		return job, true
	}
	return jobModel.Job{}, false
}

func (q *InMemoryQueue) Ack(ctx context.Context, jobId string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active = removeId(q.active, jobId)
	job, found := q.records[jobId]
	if !found {
		return nil
	}
	job.Status = jobModel.JobStatusCompleted
	job.FinishedAt = time.Now()
	q.records[jobId] = job
	q.done = append([]string{jobId}, q.done...)
	q.appendEventLocked(job, "completed", "")
	return nil
}

func (q *InMemoryQueue) Fail(ctx context.Context, jobId string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active = removeId(q.active, jobId)
	job, found := q.records[jobId]
	if !found {
		return nil
	}
	if job.AttemptsMade < job.MaxAttempts {
		job.Status = jobModel.JobStatusWaiting
		job.FailureReason = reason
		q.records[jobId] = job
		q.delayed[jobId] = time.Now().Add(BackoffDelay(job.BackoffBase, job.AttemptsMade))
		q.appendEventLocked(job, "retrying", reason)
		return nil
	}
	q.markFailedLocked(job, reason)
	return nil
}

func (q *InMemoryQueue) FailPermanent(ctx context.Context, jobId string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active = removeId(q.active, jobId)
	job, found := q.records[jobId]
	if !found {
		return nil
	}
	q.markFailedLocked(job, reason)
	return nil
}

func (q *InMemoryQueue) Requeue(ctx context.Context, jobId string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active = removeId(q.active, jobId)
	job, found := q.records[jobId]
	if !found {
		return nil
	}
	if job.AttemptsMade > 0 {
		job.AttemptsMade--
	}
	job.Status = jobModel.JobStatusWaiting
	q.records[jobId] = job
	q.delayed[jobId] = time.Now().Add(delay)
	q.appendEventLocked(job, "throttled", "")
	return nil
}

func (q *InMemoryQueue) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, found := q.records[jobId]
	return job, found
}

func (q *InMemoryQueue) Counts(ctx context.Context) (jobModel.QueueCounts, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return jobModel.QueueCounts{
		Waiting:   int64(len(q.waiting)),
		Delayed:   int64(len(q.delayed)),
		Active:    int64(len(q.active)),
		Completed: int64(len(q.done)),
		Failed:    int64(len(q.dead)),
	}, nil
}

func (q *InMemoryQueue) ListByStatus(ctx context.Context, status jobModel.JobStatus, limit int64) ([]jobModel.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit < 1 {
		limit = 100
	}
	var ids []string
	switch status {
	case jobModel.JobStatusWaiting:
		ids = append(ids, q.waiting...)
		for id := range q.delayed {
			ids = append(ids, id)
		}
	case jobModel.JobStatusActive:
		ids = q.active
	case jobModel.JobStatusCompleted:
		ids = q.done
	case jobModel.JobStatusFailed:
		ids = q.dead
	}

	jobs := make([]jobModel.Job, 0, len(ids))
	for _, id := range ids {
		if int64(len(jobs)) == limit {
			break
		}
		if job, found := q.records[id]; found {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (q *InMemoryQueue) RemoveByDocument(ctx context.Context, documentId string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	kept := q.waiting[:0]
	for _, id := range q.waiting {
		if job, found := q.records[id]; found && job.Payload.DocumentId == documentId {
			delete(q.records, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	q.waiting = kept

	for id := range q.delayed {
		if job, found := q.records[id]; found && job.Payload.DocumentId == documentId {
			delete(q.delayed, id)
			delete(q.records, id)
			removed++
		}
	}

	for _, id := range q.active {
		if job, found := q.records[id]; found && job.Payload.DocumentId == documentId {
			delete(q.records, id)
			removed++
		}
	}
	return removed, nil
}

func (q *InMemoryQueue) RemoveByTypes(ctx context.Context, jobTypes ...string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	wanted := make(map[string]bool, len(jobTypes))
	for _, t := range jobTypes {
		wanted[t] = true
	}
	removed := 0
	kept := q.waiting[:0]
	for _, id := range q.waiting {
		if job, found := q.records[id]; found && wanted[job.Type] {
			delete(q.records, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	q.waiting = kept

	for id := range q.delayed {
		if job, found := q.records[id]; found && wanted[job.Type] {
			delete(q.delayed, id)
			delete(q.records, id)
			removed++
		}
	}
	return removed, nil
}

func (q *InMemoryQueue) Drain(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.waiting {
		delete(q.records, id)
	}
	for id := range q.delayed {
		delete(q.records, id)
	}
	q.waiting = nil
	q.delayed = make(map[string]time.Time)
	return nil
}

func (q *InMemoryQueue) RetryFailed(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	retried := 0
	for _, id := range q.dead {
		job, found := q.records[id]
		if !found {
			continue
		}
		job.Status = jobModel.JobStatusWaiting
		job.AttemptsMade = 0
		job.FailureReason = ""
		job.FinishedAt = time.Time{}
		q.records[id] = job
		q.waiting = append(q.waiting, id)
		retried++
	}
	q.dead = nil
	return retried, nil
}

func (q *InMemoryQueue) Cleanup(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.done = q.trimLocked(q.done, config.KeepCompleted())
	q.dead = q.trimLocked(q.dead, config.KeepFailed())
	return nil
}

func (q *InMemoryQueue) RecentEvents(ctx context.Context, limit int64) ([]jobModel.QueueEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit < 1 || limit > int64(len(q.events)) {
		limit = int64(len(q.events))
	}
	out := make([]jobModel.QueueEvent, limit)
	copy(out, q.events[:limit])
	return out, nil
}

func (q *InMemoryQueue) promoteDueLocked() {
	now := time.Now()
	for id, readyAt := range q.delayed {
		if !readyAt.After(now) {
			delete(q.delayed, id)
			q.waiting = append(q.waiting, id)
		}
	}
}

func (q *InMemoryQueue) markFailedLocked(job jobModel.Job, reason string) {
	job.Status = jobModel.JobStatusFailed
	job.FailureReason = reason
	job.FinishedAt = time.Now()
	q.records[job.Id] = job
	q.dead = append([]string{job.Id}, q.dead...)
	q.appendEventLocked(job, "failed", reason)
}

func (q *InMemoryQueue) trimLocked(ids []string, keep int) []string {
	if len(ids) <= keep {
		return ids
	}
	for _, id := range ids[keep:] {
		delete(q.records, id)
	}
	return ids[:keep]
}

func (q *InMemoryQueue) appendEventLocked(job jobModel.Job, event string, detail string) {
	q.events = append([]jobModel.QueueEvent{{
		At:      time.Now(),
		JobId:   job.Id,
		JobType: job.Type,
		Event:   event,
		Detail:  detail,
	}}, q.events...)
	if len(q.events) > config.QueueEventLogSize {
		q.events = q.events[:config.QueueEventLogSize]
	}
}

func removeId(ids []string, id string) []string {
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return kept
}
