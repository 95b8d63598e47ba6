package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
)

// ErrGuardHeldElsewhere is returned when another process holds the lock file.
var ErrGuardHeldElsewhere = errors.New("another encoder process is running")

// Guard admits at most one encoding job at a time. With a lock path it
// also excludes other processes sharing that file.
type Guard struct {
	busy     atomic.Bool
	mu       sync.Mutex
	lockPath string
	lock     *flock.Flock
}

// NewGuard creates an in-process guard. lockPath may be empty.
func NewGuard(lockPath string) *Guard {
	g := &Guard{lockPath: lockPath}
	if lockPath != "" {
		g.lock = flock.New(lockPath)
	}
	return g
}

// TryAcquire claims the guard without blocking. It returns false when a job
// is already active in this process or, with ErrGuardHeldElsewhere, in another.
func (g *Guard) TryAcquire() (bool, error) {
	if !g.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	if g.lock == nil {
		return true, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(g.lockPath), 0o755); err != nil {
		g.busy.Store(false)
		return false, fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := g.lock.TryLock()
	if err != nil {
		g.busy.Store(false)
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		g.busy.Store(false)
		return false, ErrGuardHeldElsewhere
	}
	return true, nil
}

// Release frees the guard. Releasing an idle guard is a no-op.
func (g *Guard) Release() error {
	if !g.busy.Load() {
		return nil
	}
	var err error
	if g.lock != nil {
		g.mu.Lock()
		err = g.lock.Unlock()
		g.mu.Unlock()
	}
	g.busy.Store(false)
	return err
}

// Busy reports whether a job currently holds the guard.
func (g *Guard) Busy() bool {
	return g.busy.Load()
}

// LockPath returns the cross-process lock file, if any.
func (g *Guard) LockPath() string {
	return g.lockPath
}
