package processor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/domain/jobModel"
	"github.com/akolanti/docpipeline/internal/metrics"
	"github.com/akolanti/docpipeline/internal/registry"
	"github.com/akolanti/docpipeline/internal/throttle"
	"github.com/akolanti/docpipeline/pkg/logger_i"
)

// Processor is the consumer loop: a fixed pool of N workers pulling leased
// jobs from the queue. N bounds how many jobs are mid-handler at once; the
// throttle decides per job whether even that budget may be spent right now.
type Processor struct {
	queue       jobModel.Queue
	registry    *registry.Registry
	gate        *throttle.Throttle
	concurrency int

	stopChannel chan bool
	waitGroup   *sync.WaitGroup
	workerCount int64
	logger      *logger_i.Logger

	pollInterval time.Duration
}

func New(queue jobModel.Queue, reg *registry.Registry, gate *throttle.Throttle) *Processor {
	return &Processor{
		queue:        queue,
		registry:     reg,
		gate:         gate,
		concurrency:  config.QueueConcurrency(),
		logger:       logger_i.NewLogger("Processor"),
		pollInterval: config.QueuePollInterval,
	}
}

func (p *Processor) Start(stopChannel chan bool, waitGroup *sync.WaitGroup) {
	p.stopChannel = stopChannel
	p.waitGroup = waitGroup
	p.logger.Info("Starting queue processor", "concurrency", p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		p.createWorker()
	}
}

func (p *Processor) createWorker() {
	p.waitGroup.Add(1)
	go p.worker()
	atomic.AddInt64(&p.workerCount, 1)
	metrics.IncrementActiveWorkerCount()
	p.logger.Debug("Created worker")
}

func (p *Processor) worker() {
	defer p.removeWorker()
	for {
		select {
		case <-p.stopChannel:
			p.logger.Info("Stop worker signal received")
			return
		default:
		}

		job, found := p.queue.Dequeue(context.Background())
		if !found {
			select {
			case <-p.stopChannel:
				p.logger.Info("Stop worker signal received")
				return
			case <-time.After(p.pollInterval):
			}
			continue
		}
		p.executeJob(job)
	}
}

func (p *Processor) removeWorker() {
	p.waitGroup.Done()
	atomic.AddInt64(&p.workerCount, -1)
	metrics.DecrementActiveWorkerCount()
	p.logger.Info("Removed worker", "workerCount", atomic.LoadInt64(&p.workerCount))
}

func (p *Processor) WorkerCount() int64 {
	return atomic.LoadInt64(&p.workerCount)
}
