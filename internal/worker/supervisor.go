package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/notify"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
)

var ErrWorkerNotFound = errors.New("worker_not_found")

const (
	healthCheckInterval = time.Minute
	restartSettleDelay  = 2 * time.Second
)

// Supervisor owns every worker runner. It is constructed once at process
// start; the HTTP layer holds a reference and never reaches into workers
// directly.
type Supervisor struct {
	runners  map[string]*Runner
	order    []string
	clk      clock.Clock
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger

	// autoStart is the process-wide gate: StartAll is inert without it, so
	// activating live workers in production takes two explicit opt-ins.
	autoStart bool

	healthCancel context.CancelFunc
	healthDone   chan struct{}
}

func NewSupervisor(autoStart bool, clk clock.Clock, notifier notify.Notifier, m *metrics.Metrics, log *zap.Logger, workers ...Worker) *Supervisor {
	s := &Supervisor{
		runners:   make(map[string]*Runner, len(workers)),
		clk:       clk,
		notifier:  notifier,
		metrics:   m,
		log:       log.Named("supervisor"),
		autoStart: autoStart,
	}
	for _, w := range workers {
		s.runners[w.Name()] = NewRunner(w, clk, m, log)
		s.order = append(s.order, w.Name())
	}
	sort.Strings(s.order)
	return s
}

func (s *Supervisor) Names() []string {
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Start launches one worker by name, optionally overriding its interval.
func (s *Supervisor) Start(name string, intervalOverride time.Duration) error {
	runner, ok := s.runners[name]
	if !ok {
		return fmt.Errorf("%w: %q (valid: %s)", ErrWorkerNotFound, name, strings.Join(s.order, ", "))
	}
	runner.Start(intervalOverride)
	return nil
}

func (s *Supervisor) Stop(name string) error {
	runner, ok := s.runners[name]
	if !ok {
		return fmt.Errorf("%w: %q (valid: %s)", ErrWorkerNotFound, name, strings.Join(s.order, ", "))
	}
	runner.Stop()
	return nil
}

// StartAll starts every worker whose own enabled flag is set, and only when
// the process-wide auto-start gate is open.
func (s *Supervisor) StartAll() {
	if !s.autoStart {
		s.log.Warn("startAll ignored, auto-start gate is closed")
		return
	}
	for _, name := range s.order {
		runner := s.runners[name]
		if !runner.worker.Enabled() {
			s.log.Info("worker disabled, not starting", zap.String("worker", name))
			continue
		}
		runner.Start(0)
	}
}

func (s *Supervisor) StopAll() {
	for _, name := range s.order {
		s.runners[name].Stop()
	}
}

func (s *Supervisor) Status() map[string]Stats {
	status := make(map[string]Stats, len(s.runners))
	for name, runner := range s.runners {
		status[name] = runner.Stats()
	}
	return status
}

// RunHealthMonitor starts the periodic health sweep. A worker that stays
// unhealthy past its threshold is restarted with a settle delay, and the
// event is escalated through the notifier.
func (s *Supervisor) RunHealthMonitor() {
	ctx, cancel := context.WithCancel(context.Background())
	s.healthCancel = cancel
	s.healthDone = make(chan struct{})

	go func() {
		defer close(s.healthDone)
		ticker := time.NewTicker(healthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Supervisor) sweep() {
	for _, name := range s.order {
		runner := s.runners[name]
		if !runner.Running() {
			continue
		}
		if !runner.observeHealth() {
			continue
		}

		s.log.Warn("worker unhealthy past threshold, restarting", zap.String("worker", name))
		runner.Stop()
		time.Sleep(restartSettleDelay)
		runner.Start(0)
		runner.markRestarted()
		s.metrics.WorkerRestarted(name)
		s.notifier.Send(fmt.Sprintf("worker %s restarted by supervisor: unhealthy for more than %d checks", name, runner.maxUnhealthy))
	}
}

// Shutdown stops the health monitor and all workers.
func (s *Supervisor) Shutdown() {
	if s.healthCancel != nil {
		s.healthCancel()
		<-s.healthDone
	}
	s.StopAll()
}
