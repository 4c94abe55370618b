package controller

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/clock"
)

const defaultConcurrency = 4

// MachineIPResolver discovers the public address of this machine.
type MachineIPResolver interface {
	MachineIP(ctx context.Context) (netip.Addr, error)
}

// CycleError reports a cycle in which no domain could be reconciled because
// the machine address was unknown.
type CycleError struct {
	Err error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("resolving machine IP: %v", e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// Scheduler drives reconciliation cycles over a fixed set of tasks.
type Scheduler struct {
	Resolver MachineIPResolver
	Tasks    []Task
	// Interval is the pause between the end of one cycle and the start of the next.
	Interval time.Duration
	// Once runs a single cycle covering every task and returns.
	Once bool
	// Concurrency bounds parallel reconciles within a cycle; 0 means 4.
	Concurrency int
	Log         logr.Logger
	// Clock decides when tasks with their own interval are due; nil means the real clock.
	Clock clock.PassiveClock

	mu      sync.Mutex
	lastRun map[int]time.Time
}

func (s *Scheduler) clock() clock.PassiveClock {
	if s.Clock == nil {
		return clock.RealClock{}
	}
	return s.Clock
}

func (s *Scheduler) concurrency() int {
	if s.Concurrency <= 0 {
		return defaultConcurrency
	}
	return s.Concurrency
}

func (s *Scheduler) taskInterval(t Task) time.Duration {
	if t.Interval > 0 {
		return t.Interval
	}
	return s.Interval
}

// Tick returns how often the loop wakes up: the shortest interval of the
// scheduler and its tasks.
func (s *Scheduler) Tick() time.Duration {
	tick := s.Interval
	for _, t := range s.Tasks {
		if t.Interval > 0 && (tick <= 0 || t.Interval < tick) {
			tick = t.Interval
		}
	}
	return tick
}

// due returns the indexes of the tasks to reconcile at now.
func (s *Scheduler) due(now time.Time) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := make([]int, 0, len(s.Tasks))
	for i, t := range s.Tasks {
		last, ok := s.lastRun[i]
		if s.Once || !ok || now.Sub(last) >= s.taskInterval(t) {
			idx = append(idx, i)
		}
	}
	return idx
}

func (s *Scheduler) markRun(idx []int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		s.lastRun = make(map[int]time.Time, len(s.Tasks))
	}
	for _, i := range idx {
		s.lastRun[i] = now
	}
}

// RunCycle resolves the machine address once and reconciles every due task
// against it. Outcomes are returned in task order. A resolution failure is
// returned as a *CycleError and no task is touched; per-domain failures are
// only reported through the outcomes.
func (s *Scheduler) RunCycle(ctx context.Context) ([]Outcome, error) {
	now := s.clock().Now()
	due := s.due(now)
	if len(due) == 0 {
		s.Log.V(1).Info("no domain due this cycle")
		return nil, nil
	}

	s.Log.V(1).Info("fetching current machine's IP address")
	machineIP, err := s.Resolver.MachineIP(ctx)
	if err != nil {
		return nil, &CycleError{Err: err}
	}
	s.markRun(due, now)

	outcomes := make([]Outcome, len(due))
	var g errgroup.Group
	g.SetLimit(s.concurrency())
	for i, idx := range due {
		task := s.Tasks[idx]
		g.Go(func() error {
			log := s.Log.WithValues("domain", task.Domain)
			outcomes[i] = Reconcile(ctx, log, task, machineIP)
			logOutcome(log, outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	s.logSummary(machineIP, outcomes)
	return outcomes, nil
}

// Run executes cycles until ctx is done, sleeping Interval between them.
// Cycle failures are logged and retried on the next cycle. In Once mode a
// single cycle runs and its *CycleError, if any, is returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Once {
		if _, err := s.RunCycle(ctx); err != nil {
			s.Log.Error(err, "reconciliation cycle failed")
			return err
		}
		return nil
	}

	tick := s.Tick()
	s.Log.Info("checking IP address drift", "interval", tick.String(), "domains", len(s.Tasks))
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if _, err := s.RunCycle(ctx); err != nil {
			s.Log.Error(err, "reconciliation cycle failed, retrying next cycle")
		}
		s.Log.V(1).Info("sleeping", "duration", tick.String())
	}, tick)
	s.Log.Info("scheduler stopped")
	return nil
}

func logOutcome(log logr.Logger, o Outcome) {
	switch o.Status {
	case StatusUpToDate:
		log.Info("domain is up to date", "ip", o.Machine.String())
	case StatusUpdated:
		log.Info("successfully updated record", "from", o.Published.String(), "to", o.Machine.String())
	default:
		log.Error(o.Err, "failed to reconcile domain", "status", o.Status.String())
	}
}

func (s *Scheduler) logSummary(machineIP netip.Addr, outcomes []Outcome) {
	counts := map[Status]int{}
	for _, o := range outcomes {
		counts[o.Status]++
	}
	s.Log.Info("reconciliation cycle completed",
		"machineIP", machineIP.String(),
		"upToDate", counts[StatusUpToDate],
		"updated", counts[StatusUpdated],
		"failed", counts[StatusQueryFailed]+counts[StatusUpdateFailed],
	)
}
