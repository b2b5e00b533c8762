package worker

import (
	"context"

	"github.com/muonpi/clusterproc/internal/monitoring"
	"golang.org/x/sync/errgroup"
)

// Supervisor runs a fixed set of named worker functions under a shared
// context, matching §5's cancellation rule: a worker's unexpected
// termination triggers orderly shutdown of the rest. add_worker from §4.5
// is Supervisor.Add.
type Supervisor struct {
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSupervisor creates a Supervisor whose workers share a context derived
// from parent; cancelling it (directly, or via a worker's returned error)
// propagates to every registered worker.
func NewSupervisor(parent context.Context) *Supervisor {
	group, ctx := errgroup.WithContext(parent)
	ctx, cancel := context.WithCancel(ctx)
	return &Supervisor{group: group, ctx: ctx, cancel: cancel}
}

// Context is the shared cancellation context every worker should select on.
func (s *Supervisor) Context() context.Context { return s.ctx }

// Add registers a named worker. If fn returns a non-nil error, the
// supervisor's context is cancelled and Wait ultimately returns that error.
func (s *Supervisor) Add(name string, fn func(ctx context.Context) error) {
	s.group.Go(func() error {
		err := fn(s.ctx)
		if err != nil {
			monitoring.Logf("worker %q terminated: %v", name, err)
		}
		return err
	})
}

// Shutdown cancels every worker's context, initiating orderly drain and
// terminal flush.
func (s *Supervisor) Shutdown() {
	s.cancel()
}

// Wait blocks until every registered worker has returned, and returns the
// first non-nil error encountered (if any).
func (s *Supervisor) Wait() error {
	return s.group.Wait()
}
