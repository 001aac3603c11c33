package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fr0stylo/ledgerlink/internal/observability"
)

const (
	defaultCoreWorkers = 10
	defaultMaxWorkers  = 20
	defaultQueueSize   = 500
	defaultKeepAlive   = 60 * time.Second
	defaultJobTimeout  = 120 * time.Second
)

var (
	poolTracer       = otel.Tracer("ledgerlink/dispatch")
	poolMeter        = otel.Meter("ledgerlink/dispatch")
	jobDuration, _   = poolMeter.Float64Histogram("dispatch.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _      = poolMeter.Int64Counter("dispatch.job.total", metric.WithDescription("Total jobs executed by status"))
	jobAdmissions, _ = poolMeter.Int64Counter("dispatch.job.admissions", metric.WithDescription("Dispatched jobs by admission mode"))
	activeWorkers, _ = poolMeter.Int64UpDownCounter("dispatch.workers.active", metric.WithDescription("Live pool workers"))
)

// Config sizes the pool.
type Config struct {
	CoreWorkers int
	MaxWorkers  int
	QueueSize   int
	// KeepAlive is how long a burst worker waits for work before exiting.
	KeepAlive time.Duration
	// JobTimeout bounds a single job execution.
	JobTimeout time.Duration
}

func (c Config) normalized() Config {
	if c.CoreWorkers <= 0 {
		c.CoreWorkers = defaultCoreWorkers
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = defaultMaxWorkers
	}
	if c.MaxWorkers < c.CoreWorkers {
		c.MaxWorkers = c.CoreWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}
	return c
}

// Pool is a bounded worker pool with thread-pool-executor admission:
// core workers first, then the queue, then burst workers up to the
// maximum, and finally the calling goroutine. Work is never dropped.
type Pool struct {
	cfg  Config
	log  *slog.Logger
	jobs chan Job

	mu      sync.Mutex
	workers int
	closed  bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates an idle pool; workers start lazily on Dispatch.
func NewPool(cfg Config, log *slog.Logger) *Pool {
	cfg = cfg.normalized()
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:    cfg,
		log:    log,
		jobs:   make(chan Job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Dispatch admits job and returns without waiting for it, unless the pool
// is saturated or shut down, in which case the job runs on the caller.
func (p *Pool) Dispatch(job Job) Admission {
	admission := p.admit(job)
	jobAdmissions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("mode", admission.String())))
	if admission == RanOnCaller {
		p.log.Warn("Pool saturated, running job on caller", "job", job.Description())
		p.run(context.WithoutCancel(p.ctx), "caller", job)
	}
	return admission
}

func (p *Pool) admit(job Job) Admission {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return RanOnCaller
	}
	if p.workers < p.cfg.CoreWorkers {
		p.startWorker(job, false)
		return AdmittedWorker
	}
	select {
	case p.jobs <- job:
		return AdmittedQueue
	default:
	}
	if p.workers < p.cfg.MaxWorkers {
		p.startWorker(job, true)
		return AdmittedBurst
	}
	return RanOnCaller
}

// startWorker must be called with p.mu held.
func (p *Pool) startWorker(first Job, burst bool) {
	p.workers++
	p.wg.Add(1)
	activeWorkers.Add(context.Background(), 1)
	go p.worker(first, burst)
}

func (p *Pool) worker(first Job, burst bool) {
	defer func() {
		p.mu.Lock()
		p.workers--
		p.mu.Unlock()
		activeWorkers.Add(context.Background(), -1)
		p.wg.Done()
	}()

	kind := "core"
	if burst {
		kind = "burst"
	}
	p.run(p.ctx, kind, first)

	if !burst {
		for job := range p.jobs {
			p.run(p.ctx, kind, job)
		}
		return
	}

	idle := time.NewTimer(p.cfg.KeepAlive)
	defer idle.Stop()
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(p.ctx, kind, job)
			idle.Reset(p.cfg.KeepAlive)
		case <-idle.C:
			p.log.Debug("Burst worker idle, exiting")
			return
		}
	}
}

// run executes one job with a timeout, telemetry and panic isolation.
func (p *Pool) run(parent context.Context, kind string, job Job) {
	ctx, cancel := context.WithTimeout(observability.WithJob(parent, job.Description()), p.cfg.JobTimeout)
	defer cancel()

	ctx, span := poolTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.String("worker.kind", kind),
			attribute.String("job.description", job.Description()),
		),
	)
	defer span.End()

	start := time.Now()
	err := p.execute(ctx, job)
	jobDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		p.log.ErrorContext(ctx, "Job failed", "job", job.Description(), "worker", kind, "error", err, "duration", time.Since(start))
		return
	}
	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	p.log.DebugContext(ctx, "Job completed", "job", job.Description(), "worker", kind, "duration", time.Since(start))
}

func (p *Pool) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			p.log.ErrorContext(ctx, "Job panicked", "job", job.Description(), "panic", recovered, "stack", string(debug.Stack()))
			err = fmt.Errorf("job %s panicked: %v", job.Description(), recovered)
		}
	}()
	return job.Execute(ctx)
}

// Workers returns the number of live workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Shutdown stops admission and waits for queued and running jobs to finish.
// When ctx expires first, running jobs are cancelled and ctx's error returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	p.log.Info("Worker pool: waiting for workers to finish")
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Info("Worker pool: shutdown complete")
		return nil
	case <-ctx.Done():
		p.cancel()
		p.log.Warn("Worker pool: shutdown deadline reached, cancelling jobs")
		return ctx.Err()
	}
}
