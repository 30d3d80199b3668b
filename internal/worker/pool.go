package worker

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/klauspost/cpuid/v2"

	"github.com/maauso/video-sampler/internal/metrics"
	"github.com/maauso/video-sampler/internal/sampler"
)

// ProgressEvent reports task progress to the producer.
type ProgressEvent struct {
	// RefIdx identifies the task's row.
	RefIdx int
	// Progress is the completed fraction of samples, in (0, 1].
	Progress float64
	// Failed is set on the single terminal event of a failed task.
	Failed bool
}

// Runner executes one task, reporting progress after each sample.
type Runner interface {
	Run(ctx context.Context, tc *sampler.TaskContext, task sampler.Task, report sampler.ProgressFunc) error
}

// Pool runs tasks from a Queue on a fixed set of workers.
type Pool struct {
	queue  *Queue
	runner Runner
	logger *slog.Logger

	size        int
	seed        uint64
	eventBuffer int

	events chan ProgressEvent
	wg     sync.WaitGroup
	start  sync.Once
}

// Option configures a Pool.
type Option func(*Pool)

// WithSize sets the number of workers. Non-positive values keep the default.
func WithSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithSeed seeds worker i's random source with (seed, i). Zero means
// nondeterministic.
func WithSeed(seed uint64) Option {
	return func(p *Pool) {
		p.seed = seed
	}
}

// WithEventBuffer sets the capacity of the progress channel.
func WithEventBuffer(n int) Option {
	return func(p *Pool) {
		if n >= 0 {
			p.eventBuffer = n
		}
	}
}

// PhysicalCores returns the number of physical CPU cores, falling back to
// the logical count when it cannot be detected.
func PhysicalCores() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// NewPool creates a pool that executes tasks from queue with runner.
// The pool defaults to one worker per physical core.
func NewPool(queue *Queue, runner Runner, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		queue:       queue,
		runner:      runner,
		logger:      logger,
		size:        PhysicalCores(),
		eventBuffer: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.eventBuffer < 0 {
		p.eventBuffer = p.size * 16
	}
	p.events = make(chan ProgressEvent, p.eventBuffer)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Events returns the progress channel. It is closed after every worker
// has exited.
func (p *Pool) Events() <-chan ProgressEvent {
	return p.events
}

// Start launches the workers. Subsequent calls do nothing.
//
// Workers exit only when the queue is closed and drained. Tasks already
// dequeued run to completion even if ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.start.Do(func() {
		p.logger.Info("starting worker pool", slog.Int("workers", p.size))

		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.worker(ctx, i)
		}

		go func() {
			p.wg.Wait()
			close(p.events)
		}()
	})
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.logger.With(slog.Int("worker_id", id))
	tc := sampler.NewTaskContext(p.seed, uint64(id))

	for {
		task, ok := p.queue.Pop()
		if !ok {
			log.Debug("queue closed, worker exiting")
			return
		}
		p.execute(ctx, log, tc, task)
	}
}

// execute runs one task on a locked OS thread and turns its outcome into
// progress events.
func (p *Pool) execute(ctx context.Context, log *slog.Logger, tc *sampler.TaskContext, task sampler.Task) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	start := time.Now()
	var last float64
	err := p.runner.Run(context.WithoutCancel(ctx), tc, task, func(fraction float64) {
		last = fraction
		metrics.SamplesWrittenTotal.Inc()
		p.events <- ProgressEvent{RefIdx: task.RefIdx, Progress: fraction}
	})
	metrics.TaskDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		kind := sampler.Kind(err)
		log.Error("task failed",
			slog.Int("ref_idx", task.RefIdx),
			slog.Int("index", task.Index),
			slog.String("source", task.Source),
			slog.String("target", task.Target),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		metrics.TasksTotal.WithLabelValues(metrics.StatusFailed).Inc()
		metrics.TaskFailuresTotal.WithLabelValues(kind).Inc()
		p.events <- ProgressEvent{RefIdx: task.RefIdx, Progress: last, Failed: true}
		return
	}

	metrics.TasksTotal.WithLabelValues(metrics.StatusCompleted).Inc()
	log.Debug("task completed",
		slog.Int("ref_idx", task.RefIdx),
		slog.String("source", task.Source),
		slog.Duration("elapsed", time.Since(start)),
	)
}
