// Package worker hosts the background worker framework: each worker runs on
// its own timer loop behind a re-entrancy guard, and a supervisor tracks
// health across all of them.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
)

// Worker is one independently scheduled background process. Tick does one
// unit of work; the runner owns scheduling, panic isolation and stats.
type Worker interface {
	Name() string
	Interval() time.Duration
	Enabled() bool
	// HealthThreshold is the number of consecutive failed health checks the
	// supervisor tolerates before restarting this worker; non-positive means
	// the default.
	HealthThreshold() int
	Tick(ctx context.Context) error
}

const defaultHealthThreshold = 3

// Stats is the control-interface view of one worker.
type Stats struct {
	Name               string     `json:"name"`
	Running            bool       `json:"running"`
	Enabled            bool       `json:"enabled"`
	Interval           string     `json:"interval"`
	Runs               uint64     `json:"runs"`
	Successes          uint64     `json:"successes"`
	Failures           uint64     `json:"failures"`
	Skipped            uint64     `json:"skipped"`
	Restarts           uint64     `json:"restarts"`
	LastRun            *time.Time `json:"last_run,omitempty"`
	LastSuccess        *time.Time `json:"last_success,omitempty"`
	LastFailure        *time.Time `json:"last_failure,omitempty"`
	Healthy            bool       `json:"healthy"`
	UnhealthyChecks    int        `json:"unhealthy_checks"`
	MaxUnhealthyChecks int        `json:"max_unhealthy_checks"`
}

// Runner wraps one Worker with its timer loop. Stop/Start are idempotent
// from the caller's point of view; overlapping ticks are skipped, never
// queued.
type Runner struct {
	worker  Worker
	clk     clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics

	// maxUnhealthy is how many consecutive failed health checks the
	// supervisor tolerates before restarting this worker.
	maxUnhealthy int

	inFlight atomic.Bool

	mu          sync.Mutex
	running     bool
	interval    time.Duration
	cancel      context.CancelFunc
	done        chan struct{}
	runs        uint64
	successes   uint64
	failures    uint64
	skipped     uint64
	restarts    uint64
	lastRun     *time.Time
	lastSuccess *time.Time
	lastFailure *time.Time
	unhealthy   int
}

func NewRunner(w Worker, clk clock.Clock, m *metrics.Metrics, log *zap.Logger) *Runner {
	maxUnhealthy := w.HealthThreshold()
	if maxUnhealthy <= 0 {
		maxUnhealthy = defaultHealthThreshold
	}
	return &Runner{
		worker:       w,
		clk:          clk,
		log:          log.Named("worker." + w.Name()),
		metrics:      m,
		maxUnhealthy: maxUnhealthy,
		interval:     w.Interval(),
	}
}

// Start launches the timer loop. Starting a running worker is a no-op with a
// logged warning. A non-positive override keeps the worker's own interval.
func (r *Runner) Start(intervalOverride time.Duration) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.log.Warn("start ignored, worker already running")
		return
	}

	interval := r.worker.Interval()
	if intervalOverride > 0 {
		interval = intervalOverride
	}
	r.interval = interval

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	done := r.done
	r.mu.Unlock()

	r.log.Info("worker started", zap.Duration("interval", interval))
	go r.loop(ctx, interval, done)
}

func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	done := r.done
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	<-done
	r.log.Info("worker stopped")
}

func (r *Runner) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First tick fires immediately so a freshly started worker does not sit
	// idle for a full interval.
	r.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.dispatch(ctx)
		}
	}
}

// dispatch runs one tick unless the previous one is still in flight; an
// overlapping tick is counted as skipped and never queued.
func (r *Runner) dispatch(ctx context.Context) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
		r.metrics.ObserveTick(r.worker.Name(), "skipped", 0)
		r.log.Debug("tick skipped, previous tick still running")
		return
	}

	go func() {
		defer r.inFlight.Store(false)
		r.runTick(ctx)
	}()
}

func (r *Runner) runTick(ctx context.Context) {
	started := r.clk.Now()
	r.mu.Lock()
	r.runs++
	r.lastRun = &started
	r.mu.Unlock()

	err := r.safeTick(ctx)
	elapsed := time.Since(started)

	finished := r.clk.Now()
	r.mu.Lock()
	if err != nil {
		r.failures++
		r.lastFailure = &finished
	} else {
		r.successes++
		r.lastSuccess = &finished
	}
	r.mu.Unlock()

	if err != nil {
		r.metrics.ObserveTick(r.worker.Name(), "failure", elapsed)
		r.log.Error("tick failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}
	r.metrics.ObserveTick(r.worker.Name(), "success", elapsed)
}

// safeTick converts a panic inside a tick into an error so a bad tick can
// never take down the process or the timer loop.
func (r *Runner) safeTick(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("tick panic: %v", recovered)
		}
	}()
	return r.worker.Tick(ctx)
}

func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Name:               r.worker.Name(),
		Running:            r.running,
		Enabled:            r.worker.Enabled(),
		Interval:           r.interval.String(),
		Runs:               r.runs,
		Successes:          r.successes,
		Failures:           r.failures,
		Skipped:            r.skipped,
		Restarts:           r.restarts,
		LastRun:            r.lastRun,
		LastSuccess:        r.lastSuccess,
		LastFailure:        r.lastFailure,
		Healthy:            r.healthyLocked(),
		UnhealthyChecks:    r.unhealthy,
		MaxUnhealthyChecks: r.maxUnhealthy,
	}
}

// healthyLocked derives health from time since last run versus the expected
// interval: a running worker that has not ticked for twice its interval is
// stuck (its re-entrancy guard is blocking on something).
func (r *Runner) healthyLocked() bool {
	if !r.running {
		return true
	}
	if r.lastRun == nil {
		return true
	}
	return r.clk.Now().Sub(*r.lastRun) <= 2*r.interval
}

// observeHealth is called by the supervisor on its check cadence. It returns
// true when the unhealthy streak has crossed the restart threshold.
func (r *Runner) observeHealth() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.healthyLocked() {
		r.unhealthy = 0
		return false
	}
	r.unhealthy++
	return r.unhealthy > r.maxUnhealthy
}

func (r *Runner) markRestarted() {
	r.mu.Lock()
	r.restarts++
	r.unhealthy = 0
	r.mu.Unlock()
}

func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
