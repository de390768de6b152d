package buffer

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"coredb/file"
	"coredb/wal"
)

// maxWait is the total time Pin will wait for a buffer to become
// available before giving up with an AbortError.
const maxWait = 10 * time.Second

// AbortError is returned by Pin when no buffer became available within
// maxWait. Callers should roll back the owning transaction.
type AbortError struct {
	msg string
}

func (e *AbortError) Error() string { return e.msg }

func newAbortError(msg string) *AbortError {
	return &AbortError{msg: msg}
}

// Manager is the fixed-size buffer pool. All of its bookkeeping — the
// pool slice, the clock hand, the count of unpinned buffers, and the
// block-to-buffer index — is guarded by a single mutex; Pin releases that
// mutex while it waits on the accompanying condition variable so other
// goroutines can make progress (unpin, or pin a different block).
type Manager struct {
	mu           sync.Mutex
	cond         *sync.Cond
	pool         []*Buffer
	byBlock      map[file.BlockID]int // block -> index into pool
	numAvailable int
	clockHand    int
	maxWait      time.Duration

	log *logrus.Entry
}

// NewManager builds a pool of numBuffers buffers, each backed by its own
// page, reading and writing through fm and logging WAL flushes through lm.
// Pin waits up to the standard 10-second budget for a free buffer.
func NewManager(fm *file.Manager, lm *wal.Manager, numBuffers int) *Manager {
	return NewManagerWithTimeout(fm, lm, numBuffers, maxWait)
}

// NewManagerWithTimeout is like NewManager but lets the caller pick Pin's
// wait budget, so tests exercising pool exhaustion don't have to run for
// 10 real seconds per case.
func NewManagerWithTimeout(fm *file.Manager, lm *wal.Manager, numBuffers int, wait time.Duration) *Manager {
	bm := &Manager{
		pool:         make([]*Buffer, numBuffers),
		byBlock:      make(map[file.BlockID]int, numBuffers),
		numAvailable: numBuffers,
		maxWait:      wait,
		log:          logrus.WithField("component", "buffer.Manager"),
	}
	bm.cond = sync.NewCond(&bm.mu)
	for i := range bm.pool {
		bm.pool[i] = newBuffer(fm, lm)
	}
	return bm
}

// Available returns the number of currently unpinned buffers.
func (bm *Manager) Available() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.numAvailable
}

// FlushAll flushes every buffer last modified by txnum.
func (bm *Manager) FlushAll(txnum int) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for _, buf := range bm.pool {
		if buf.ModifyingTx() == txnum {
			if err := buf.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Unpin decrements buf's pin count. If the count reaches zero, the
// buffer becomes eligible for eviction and any goroutines blocked in Pin
// are woken to re-check.
func (bm *Manager) Unpin(buf *Buffer) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	buf.unpin()
	if !buf.IsPinned() {
		bm.numAvailable++
		bm.cond.Broadcast()
	}
}

// Pin returns the buffer holding block, pinning it first. If block is not
// already resident, an unpinned buffer is chosen via clock eviction and
// assigned to it. If no buffer is available, Pin waits on the pool's
// condition variable for up to maxWait before failing with an AbortError.
func (bm *Manager) Pin(block file.BlockID) (*Buffer, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	deadline := time.Now().Add(bm.maxWait)

	buf, err := bm.tryToPin(block)
	if err != nil {
		return nil, err
	}

	for buf == nil {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, newAbortError("buffer: timed out waiting for a free buffer")
		}
		waitWithTimeout(bm.cond, remaining)

		buf, err = bm.tryToPin(block)
		if err != nil {
			return nil, err
		}
		if buf == nil && !time.Now().Before(deadline) {
			return nil, newAbortError("buffer: timed out waiting for a free buffer")
		}
	}

	return buf, nil
}

// tryToPin attempts a single, non-blocking pin attempt. Caller holds
// bm.mu. Returns (nil, nil) if no buffer is currently available.
func (bm *Manager) tryToPin(block file.BlockID) (*Buffer, error) {
	idx, found := bm.byBlock[block]
	if !found {
		victim, ok := bm.chooseUnpinnedBuffer()
		if !ok {
			return nil, nil
		}
		idx = victim

		if old, hasOld := bm.pool[idx].Block(); hasOld {
			delete(bm.byBlock, old)
		}
		if err := bm.pool[idx].assignToBlock(block); err != nil {
			return nil, errors.Wrapf(err, "buffer: assign buffer to %v", block)
		}
		bm.byBlock[block] = idx
	}

	buf := bm.pool[idx]
	if !buf.IsPinned() {
		bm.numAvailable--
	}
	buf.pin()
	return buf, nil
}

// chooseUnpinnedBuffer scans at most len(pool) slots circularly starting
// at the clock hand, returning the first unpinned one and leaving the
// hand one past it. Returns ok=false if a full sweep finds nothing.
func (bm *Manager) chooseUnpinnedBuffer() (int, bool) {
	n := len(bm.pool)
	for i := 0; i < n; i++ {
		idx := (bm.clockHand + i) % n
		if !bm.pool[idx].IsPinned() {
			bm.clockHand = (idx + 1) % n
			return idx, true
		}
	}
	return 0, false
}

// waitWithTimeout waits on cond, but is guaranteed to return within d even
// if no other goroutine ever calls Broadcast/Signal, by scheduling its own
// one-shot broadcast. Caller must hold cond.L.
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}
