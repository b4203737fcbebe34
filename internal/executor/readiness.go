package executor

import (
	"context"
	"sync"
)

// readiness is a one-shot flag set once a group leader is running in its own
// process group. It is written by the goroutine that starts the leader and
// read by the launching goroutine, and lives for a single launch.
type readiness struct {
	once sync.Once
	done chan struct{}

	pgid int
	err  error
}

func newReadiness() *readiness {
	return &readiness{done: make(chan struct{})}
}

// signal records the outcome of starting the leader. Only the first call
// has an effect.
func (r *readiness) signal(pgid int, err error) {
	r.once.Do(func() {
		r.pgid, r.err = pgid, err
		close(r.done)
	})
}

// wait blocks until signal has been called or ctx is done.
func (r *readiness) wait(ctx context.Context) (int, error) {
	select {
	case <-r.done:
		return r.pgid, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
