package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/internal/metrics"
)

// executeJob runs one leased job through the throttle, the registry and the
// handler, then reports the outcome back to the queue. Every exit path that
// reserved the throttle releases it, including handler panics.
func (p *Processor) executeJob(job jobModel.Job) {
	ctx := context.Background()
	if job.TraceId != "" {
		ctx = context.WithValue(ctx, config.TRACE_ID_KEY, job.TraceId)
	}
	log := p.logger.With("jobId", job.Id, "jobType", job.Type, "attempt", job.AttemptsMade)

	if !p.gate.TryReserve() {
		//backpressure, not a failure: hand the job back without touching
		//its retry budget
		metrics.IncrementThrottleRejections()
		log.Debug("Throttled, requeueing", "delay", config.ThrottleRequeueDelay)
		time.Sleep(config.ThrottleRequeueDelay)
		if err := p.queue.Requeue(ctx, job.Id, 0); err != nil {
			log.Error("Could not requeue throttled job", "error", err)
		}
		return
	}
	defer p.gate.Release()

	handler, found := p.registry.Resolve(job.Type)
	if !found {
		//a missing handler is a configuration bug, not a transient
		//condition; never retried
		reason := fmt.Sprintf("no handler registered for job type: %s", job.Type)
		log.Error(reason, "registeredTypes", strings.Join(p.registry.RegisteredTypes(), ","))
		if err := p.queue.FailPermanent(ctx, job.Id, reason); err != nil {
			log.Error("Could not fail job", "error", err)
		}
		metrics.CaptureJobMetrics(job.Type, "unroutable", 0)
		return
	}

	start := time.Now()
	err := p.invokeHandler(ctx, handler, job)
	elapsed := time.Since(start)

	if err != nil {
		log.Error("Handler failed", "error", err, "duration", elapsed)
		metrics.CaptureJobMetrics(job.Type, "error", elapsed)
		if failErr := p.queue.Fail(ctx, job.Id, err.Error()); failErr != nil {
			log.Error("Could not report handler failure", "error", failErr)
		}
		return
	}

	log.Debug("Handler succeeded", "duration", elapsed)
	metrics.CaptureJobMetrics(job.Type, "success", elapsed)
	if ackErr := p.queue.Ack(ctx, job.Id); ackErr != nil {
		log.Error("Could not ack job", "error", ackErr)
	}
}

func (p *Processor) invokeHandler(ctx context.Context, handler jobModel.Handler, job jobModel.Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, config.JobExecutionTimeout)
	defer cancel()

	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("handler panic: %v", recovered)
		}
	}()
	return handler.Handle(ctx, job)
}
