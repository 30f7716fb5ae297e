package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/data/redisStore"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/internal/metrics"
	"github.com/akolanti/docpipeline/pkg/logger_i"
	"github.com/google/uuid"
)

const (
	jobRecordPrefix  = "queue:job:"
	waitingListKey   = "queue:waiting"
	activeListKey    = "queue:active"
	delayedSetKey    = "queue:delayed"
	completedListKey = "queue:completed"
	failedListKey    = "queue:failed"
	eventListKey     = "queue:events"

	//backoff never grows past this, whatever the attempt count
	maxBackoffDelay = 5 * time.Minute
)

type RedisQueue struct {
	store  *redisStore.Store
	logger *logger_i.Logger

	maxAttempts   int
	backoffBase   time.Duration
	keepCompleted int
	keepFailed    int
}

func GetRedisQueue(ctx context.Context) *RedisQueue {
	inner := redisStore.GetRedisStore(ctx, config.RedisQueueDB)
	if inner == nil {
		return nil
	}
	return newRedisQueue(inner)
}

func newRedisQueue(inner *redisStore.Store) *RedisQueue {
	return &RedisQueue{
		store:         inner,
		logger:        logger_i.NewLogger("RedisQueue"),
		maxAttempts:   config.MaxAttempts(),
		backoffBase:   config.BackoffBase(),
		keepCompleted: config.KeepCompleted(),
		keepFailed:    config.KeepFailed(),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job jobModel.Job, opts jobModel.JobOptions) error {
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

	if err := q.saveRecord(ctx, job); err != nil {
		return err
	}

	//the delay lives only in the delayed zset, never in the record itself
	var err error
	if opts.Delay > 0 {
		err = q.store.SortedAdd(ctx, delayedSetKey, float64(time.Now().Add(opts.Delay).UnixMilli()), job.Id)
	} else {
		err = q.store.ListPush(ctx, waitingListKey, job.Id)
	}
	if err != nil {
		return err
	}
	metrics.IncrementWaitingJobs()
	q.appendEvent(ctx, job, "enqueued", "")
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (jobModel.Job, bool) {
	q.promoteDue(ctx)

	//a leased id can point at a cancelled record; skip those and keep pulling
	for {
		id, err := q.store.ListMove(ctx, waitingListKey, activeListKey)
		if err != nil {
			if !q.store.IsNil(err) {
				q.logger.Error("dequeue failed", "error", err)
			}
			return jobModel.Job{}, false
		}

		job, found := q.loadRecord(ctx, id)
		if !found {
			q.logger.Debug("dropping orphaned queue entry", "jobId", id)
			_, _ = q.store.ListRemove(ctx, activeListKey, id)
			continue
		}

		job.Status = jobModel.JobStatusActive
		job.AttemptsMade++
		job.ProcessedAt = time.Now()
		if err := q.saveRecord(ctx, job); err != nil {
			q.logger.Error("could not persist lease", "jobId", id, "error", err)
			_, _ = q.store.ListRemove(ctx, activeListKey, id)
			_ = q.store.ListPush(ctx, waitingListKey, id)
			return jobModel.Job{}, false
		}
		metrics.DecrementWaitingJobs()
		metrics.IncrementActiveJobs()
		return job, true
	}
}

func (q *RedisQueue) Ack(ctx context.Context, jobId string) error {
	_, _ = q.store.ListRemove(ctx, activeListKey, jobId)
	metrics.DecrementActiveJobs()

	job, found := q.loadRecord(ctx, jobId)
	if !found {
		//cancelled while mid-handler; the completion is a no-op
		return nil
	}
	job.Status = jobModel.JobStatusCompleted
	job.FinishedAt = time.Now()
	if err := q.saveRecord(ctx, job); err != nil {
		return err
	}
	if err := q.store.ListPush(ctx, completedListKey, jobId); err != nil {
		return err
	}
	_ = q.store.ListTrim(ctx, completedListKey, 0, int64(q.keepCompleted)-1)
	q.appendEvent(ctx, job, "completed", "")
	return nil
}

func (q *RedisQueue) Fail(ctx context.Context, jobId string, reason string) error {
	_, _ = q.store.ListRemove(ctx, activeListKey, jobId)
	metrics.DecrementActiveJobs()

	job, found := q.loadRecord(ctx, jobId)
	if !found {
		return nil
	}

	if job.AttemptsMade < job.MaxAttempts {
		job.Status = jobModel.JobStatusWaiting
		job.FailureReason = reason
		if err := q.saveRecord(ctx, job); err != nil {
			return err
		}
		delay := BackoffDelay(job.BackoffBase, job.AttemptsMade)
		readyAt := float64(time.Now().Add(delay).UnixMilli())
		if err := q.store.SortedAdd(ctx, delayedSetKey, readyAt, jobId); err != nil {
			return err
		}
		metrics.IncrementWaitingJobs()
		q.appendEvent(ctx, job, "retrying", reason)
		return nil
	}
	return q.markFailed(ctx, job, reason)
}

func (q *RedisQueue) FailPermanent(ctx context.Context, jobId string, reason string) error {
	_, _ = q.store.ListRemove(ctx, activeListKey, jobId)
	metrics.DecrementActiveJobs()

	job, found := q.loadRecord(ctx, jobId)
	if !found {
		return nil
	}
	return q.markFailed(ctx, job, reason)
}

func (q *RedisQueue) Requeue(ctx context.Context, jobId string, delay time.Duration) error {
	_, _ = q.store.ListRemove(ctx, activeListKey, jobId)
	metrics.DecrementActiveJobs()

	job, found := q.loadRecord(ctx, jobId)
	if !found {
		return nil
	}
	//hand the dequeue-time attempt back; throttling is not a failure
	if job.AttemptsMade > 0 {
		job.AttemptsMade--
	}
	job.Status = jobModel.JobStatusWaiting
	if err := q.saveRecord(ctx, job); err != nil {
		return err
	}
	readyAt := float64(time.Now().Add(delay).UnixMilli())
	if err := q.store.SortedAdd(ctx, delayedSetKey, readyAt, jobId); err != nil {
		return err
	}
	metrics.IncrementWaitingJobs()
	q.appendEvent(ctx, job, "throttled", "")
	return nil
}

func (q *RedisQueue) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	return q.loadRecord(ctx, jobId)
}

func (q *RedisQueue) Counts(ctx context.Context) (jobModel.QueueCounts, error) {
	var counts jobModel.QueueCounts
	var err error
	if counts.Waiting, err = q.store.ListLen(ctx, waitingListKey); err != nil {
		return counts, err
	}
	if counts.Delayed, err = q.store.SortedLen(ctx, delayedSetKey); err != nil {
		return counts, err
	}
	if counts.Active, err = q.store.ListLen(ctx, activeListKey); err != nil {
		return counts, err
	}
	if counts.Completed, err = q.store.ListLen(ctx, completedListKey); err != nil {
		return counts, err
	}
	counts.Failed, err = q.store.ListLen(ctx, failedListKey)
	return counts, err
}

func (q *RedisQueue) ListByStatus(ctx context.Context, status jobModel.JobStatus, limit int64) ([]jobModel.Job, error) {
	if limit < 1 {
		limit = 100
	}
	var ids []string
	var err error
	switch status {
	case jobModel.JobStatusWaiting:
		ids, err = q.store.ListRange(ctx, waitingListKey, 0, limit-1)
		if err == nil {
			var delayed []string
			delayed, err = q.store.SortedAllMembers(ctx, delayedSetKey)
			ids = append(ids, delayed...)
		}
	case jobModel.JobStatusActive:
		ids, err = q.store.ListRange(ctx, activeListKey, 0, limit-1)
	case jobModel.JobStatusCompleted:
		ids, err = q.store.ListRange(ctx, completedListKey, 0, limit-1)
	case jobModel.JobStatusFailed:
		ids, err = q.store.ListRange(ctx, failedListKey, 0, limit-1)
	}
	if err != nil {
		return nil, err
	}

	jobs := make([]jobModel.Job, 0, len(ids))
	for _, id := range ids {
		if int64(len(jobs)) == limit {
			break
		}
		if job, found := q.loadRecord(ctx, id); found {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (q *RedisQueue) RemoveByDocument(ctx context.Context, documentId string) (int, error) {
	removed := 0

	waiting, err := q.store.ListRange(ctx, waitingListKey, 0, -1)
	if err != nil {
		return 0, err
	}
	for _, id := range waiting {
		if q.payloadReferences(ctx, id, documentId) {
			if _, err := q.store.ListRemove(ctx, waitingListKey, id); err != nil {
				return removed, err
			}
			_ = q.store.Del(ctx, jobRecordPrefix+id)
			metrics.DecrementWaitingJobs()
			removed++
		}
	}

	delayed, err := q.store.SortedAllMembers(ctx, delayedSetKey)
	if err != nil {
		return removed, err
	}
	for _, id := range delayed {
		if q.payloadReferences(ctx, id, documentId) {
			if _, err := q.store.SortedRemove(ctx, delayedSetKey, id); err != nil {
				return removed, err
			}
			_ = q.store.Del(ctx, jobRecordPrefix+id)
			metrics.DecrementWaitingJobs()
			removed++
		}
	}

	//active jobs cannot be interrupted; deleting the record detaches them
	//so their eventual ack/fail is a no-op
	active, err := q.store.ListRange(ctx, activeListKey, 0, -1)
	if err != nil {
		return removed, err
	}
	for _, id := range active {
		if q.payloadReferences(ctx, id, documentId) {
			_ = q.store.Del(ctx, jobRecordPrefix+id)
			removed++
		}
	}
	return removed, nil
}

func (q *RedisQueue) RemoveByTypes(ctx context.Context, jobTypes ...string) (int, error) {
	wanted := make(map[string]bool, len(jobTypes))
	for _, t := range jobTypes {
		wanted[t] = true
	}
	removed := 0

	waiting, err := q.store.ListRange(ctx, waitingListKey, 0, -1)
	if err != nil {
		return 0, err
	}
	for _, id := range waiting {
		if job, found := q.loadRecord(ctx, id); found && wanted[job.Type] {
			if _, err := q.store.ListRemove(ctx, waitingListKey, id); err != nil {
				return removed, err
			}
			_ = q.store.Del(ctx, jobRecordPrefix+id)
			metrics.DecrementWaitingJobs()
			removed++
		}
	}

	delayed, err := q.store.SortedAllMembers(ctx, delayedSetKey)
	if err != nil {
		return removed, err
	}
	for _, id := range delayed {
		if job, found := q.loadRecord(ctx, id); found && wanted[job.Type] {
			if _, err := q.store.SortedRemove(ctx, delayedSetKey, id); err != nil {
				return removed, err
			}
			_ = q.store.Del(ctx, jobRecordPrefix+id)
			metrics.DecrementWaitingJobs()
			removed++
		}
	}
	return removed, nil
}

func (q *RedisQueue) Drain(ctx context.Context) error {
	waiting, err := q.store.ListRange(ctx, waitingListKey, 0, -1)
	if err != nil {
		return err
	}
	delayed, err := q.store.SortedAllMembers(ctx, delayedSetKey)
	if err != nil {
		return err
	}
	for _, id := range append(waiting, delayed...) {
		_ = q.store.Del(ctx, jobRecordPrefix+id)
		metrics.DecrementWaitingJobs()
	}
	return q.store.Del(ctx, waitingListKey, delayedSetKey)
}

func (q *RedisQueue) RetryFailed(ctx context.Context) (int, error) {
	ids, err := q.store.ListRange(ctx, failedListKey, 0, -1)
	if err != nil {
		return 0, err
	}
	retried := 0
	for _, id := range ids {
		job, found := q.loadRecord(ctx, id)
		if !found {
			continue
		}
		job.Status = jobModel.JobStatusWaiting
		job.AttemptsMade = 0
		job.FailureReason = ""
		job.FinishedAt = time.Time{}
		if err := q.saveRecord(ctx, job); err != nil {
			q.logger.Error("could not reset failed job", "jobId", id, "error", err)
			continue
		}
		if err := q.store.ListPush(ctx, waitingListKey, id); err != nil {
			q.logger.Error("could not requeue failed job", "jobId", id, "error", err)
			continue
		}
		metrics.IncrementWaitingJobs()
		q.appendEvent(ctx, job, "retry-failed", "")
		retried++
	}
	if retried > 0 {
		if err := q.store.Del(ctx, failedListKey); err != nil {
			return retried, err
		}
	}
	return retried, nil
}

func (q *RedisQueue) Cleanup(ctx context.Context) error {
	if err := q.trimTerminal(ctx, completedListKey, int64(q.keepCompleted)); err != nil {
		return err
	}
	return q.trimTerminal(ctx, failedListKey, int64(q.keepFailed))
}

func (q *RedisQueue) RecentEvents(ctx context.Context, limit int64) ([]jobModel.QueueEvent, error) {
	if limit < 1 {
		limit = 100
	}
	raw, err := q.store.ListRange(ctx, eventListKey, 0, limit-1)
	if err != nil {
		return nil, err
	}
	events := make([]jobModel.QueueEvent, 0, len(raw))
	for _, line := range raw {
		var event jobModel.QueueEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// BackoffDelay is the retry delay before attempt attemptsMade+1. Exponential
// in the attempt count, capped so a long retry chain stays bounded.
func BackoffDelay(base time.Duration, attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	delay := base
	for i := 1; i < attemptsMade; i++ {
		delay *= 2
		if delay >= maxBackoffDelay {
			return maxBackoffDelay
		}
	}
	return delay
}

func (q *RedisQueue) markFailed(ctx context.Context, job jobModel.Job, reason string) error {
	job.Status = jobModel.JobStatusFailed
	job.FailureReason = reason
	job.FinishedAt = time.Now()
	if err := q.saveRecord(ctx, job); err != nil {
		return err
	}
	if err := q.store.ListPush(ctx, failedListKey, job.Id); err != nil {
		return err
	}
	_ = q.store.ListTrim(ctx, failedListKey, 0, int64(q.keepFailed)-1)
	q.appendEvent(ctx, job, "failed", reason)
	return nil
}

func (q *RedisQueue) promoteDue(ctx context.Context) {
	due, err := q.store.SortedDueMembers(ctx, delayedSetKey, float64(time.Now().UnixMilli()))
	if err != nil || len(due) == 0 {
		return
	}
	for _, id := range due {
		removed, err := q.store.SortedRemove(ctx, delayedSetKey, id)
		if err != nil || removed == 0 {
			//another worker promoted it first
			continue
		}
		if err := q.store.ListPush(ctx, waitingListKey, id); err != nil {
			q.logger.Error("could not promote delayed job", "jobId", id, "error", err)
		}
	}
}

func (q *RedisQueue) payloadReferences(ctx context.Context, jobId string, documentId string) bool {
	job, found := q.loadRecord(ctx, jobId)
	return found && job.Payload.DocumentId == documentId
}

func (q *RedisQueue) saveRecord(ctx context.Context, job jobModel.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.store.Set(ctx, jobRecordPrefix+job.Id, data, config.RedisJobRecordTTL)
}

func (q *RedisQueue) loadRecord(ctx context.Context, jobId string) (jobModel.Job, bool) {
	var job jobModel.Job
	val, err := q.store.Get(ctx, jobRecordPrefix+jobId)
	if err != nil {
		if !q.store.IsNil(err) {
			q.logger.Error("could not load job record", "jobId", jobId, "error", err)
		}
		return job, false
	}
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		q.logger.Error("corrupt job record", "jobId", jobId, "error", err)
		return job, false
	}
	return job, true
}

func (q *RedisQueue) trimTerminal(ctx context.Context, key string, keep int64) error {
	length, err := q.store.ListLen(ctx, key)
	if err != nil {
		return err
	}
	if length <= keep {
		return nil
	}
	stale, err := q.store.ListRange(ctx, key, keep, -1)
	if err != nil {
		return err
	}
	for _, id := range stale {
		_ = q.store.Del(ctx, jobRecordPrefix+id)
	}
	return q.store.ListTrim(ctx, key, 0, keep-1)
}

func (q *RedisQueue) appendEvent(ctx context.Context, job jobModel.Job, event string, detail string) {
	data, err := json.Marshal(jobModel.QueueEvent{
		At:      time.Now(),
		JobId:   job.Id,
		JobType: job.Type,
		Event:   event,
		Detail:  detail,
	})
	if err != nil {
		return
	}
	if err := q.store.ListPush(ctx, eventListKey, data); err != nil {
		q.logger.Debug("could not append queue event", "error", err)
		return
	}
	_ = q.store.ListTrim(ctx, eventListKey, 0, config.QueueEventLogSize-1)
}

// TestQueue wires the queue to a miniredis-backed store in tests.
func TestQueue(inner *redisStore.Store) *RedisQueue {
	return newRedisQueue(inner)
}
