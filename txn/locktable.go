package txn

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"coredb/file"
)

// maxLockWait is how long a transaction will wait for a conflicting lock
// to clear before giving up. This is timeout-based deadlock avoidance, not
// detection: a transaction stuck behind a cycle of waiters eventually times
// out and rolls back rather than being diagnosed and killed directly.
const maxLockWait = 10 * time.Second

// ErrLockTimeout is returned when a lock could not be acquired within
// maxLockWait. The caller should roll back its transaction.
var ErrLockTimeout = errors.New("txn: lock request timed out")

// monitor is the per-block lock state: val > 0 is that many shared locks,
// val == -1 is one exclusive lock, val == 0 is unlocked. Each block gets
// its own mutex and condition variable so that waiting on one block never
// blocks lock requests against any other block.
type monitor struct {
	mu   sync.Mutex
	cond *sync.Cond
	val  int
}

func newMonitor() *monitor {
	m := &monitor{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// LockTable is the global, shared-by-all-transactions record of which
// blocks are locked and how. Transactions never talk to it directly —
// they go through their own ConcurrencyManager, which calls here only on
// a block's first access, to upgrade a shared lock to exclusive, and to
// release everything at commit or rollback.
type LockTable struct {
	mapMu    sync.Mutex
	monitors map[file.BlockID]*monitor
	wait     time.Duration
}

// NewLockTable creates an empty lock table using the standard 10-second
// wait timeout.
func NewLockTable() *LockTable {
	return NewLockTableWithTimeout(maxLockWait)
}

// NewLockTableWithTimeout is like NewLockTable but lets the caller pick
// the wait timeout, so tests that exercise lock contention don't have to
// run for 10 real seconds per case.
func NewLockTableWithTimeout(wait time.Duration) *LockTable {
	return &LockTable{monitors: make(map[file.BlockID]*monitor), wait: wait}
}

func (lt *LockTable) monitorFor(block file.BlockID) *monitor {
	lt.mapMu.Lock()
	defer lt.mapMu.Unlock()

	m, ok := lt.monitors[block]
	if !ok {
		m = newMonitor()
		lt.monitors[block] = m
	}
	return m
}

// SLock acquires a shared lock on block, waiting out any existing
// exclusive lock for up to maxLockWait.
func (lt *LockTable) SLock(block file.BlockID) error {
	m := lt.monitorFor(block)

	m.mu.Lock()
	defer m.mu.Unlock()

	deadline := time.Now().Add(lt.wait)
	for m.val < 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrLockTimeout
		}
		waitWithTimeout(m.cond, remaining)
		if m.val < 0 && !time.Now().Before(deadline) {
			return ErrLockTimeout
		}
	}

	m.val++
	return nil
}

// XLock acquires an exclusive lock on block, waiting out any other lock
// (shared or exclusive) for up to maxLockWait.
func (lt *LockTable) XLock(block file.BlockID) error {
	m := lt.monitorFor(block)

	m.mu.Lock()
	defer m.mu.Unlock()

	deadline := time.Now().Add(lt.wait)
	for m.val > 1 || m.val < 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrLockTimeout
		}
		waitWithTimeout(m.cond, remaining)
		if (m.val > 1 || m.val < 0) && !time.Now().Before(deadline) {
			return ErrLockTimeout
		}
	}

	m.val = -1
	return nil
}

// Unlock releases one lock (shared or exclusive) held on block.
func (lt *LockTable) Unlock(block file.BlockID) {
	m := lt.monitorFor(block)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.val > 1 {
		m.val--
		return
	}
	m.val = 0
	m.cond.Broadcast()
}

// waitWithTimeout waits on cond, guaranteed to return within d by
// scheduling its own one-shot broadcast. Caller must hold cond.L.
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}
