package txn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coredb/file"
)

// testWait keeps lock-timeout tests fast; production uses the real
// 10-second budget via NewLockTable.
const testWait = 50 * time.Millisecond

func newTestLockTable() *LockTable {
	return NewLockTableWithTimeout(testWait)
}

func TestSLockAllowsMultipleReaders(t *testing.T) {
	lt := newTestLockTable()
	block := file.NewBlockID("test", 1)

	for i := 0; i < 10; i++ {
		require.NoError(t, lt.SLock(block))
	}
	for i := 0; i < 10; i++ {
		lt.Unlock(block)
	}
}

func TestXLockExcludesSLock(t *testing.T) {
	lt := newTestLockTable()
	block := file.NewBlockID("test", 1)

	require.NoError(t, lt.XLock(block))

	done := make(chan error, 1)
	go func() { done <- lt.SLock(block) }()

	err := <-done
	require.ErrorIs(t, err, ErrLockTimeout)

	lt.Unlock(block)
}

func TestSLockGrantedAfterXUnlocked(t *testing.T) {
	lt := newTestLockTable()
	block := file.NewBlockID("test", 1)

	require.NoError(t, lt.XLock(block))
	lt.Unlock(block)

	require.NoError(t, lt.SLock(block))
	lt.Unlock(block)
}

func TestXLockWaitsThenSucceedsOnceFreed(t *testing.T) {
	lt := newTestLockTable()
	block := file.NewBlockID("test", 1)

	require.NoError(t, lt.XLock(block))

	done := make(chan error, 1)
	go func() { done <- lt.XLock(block) }()

	lt.Unlock(block)
	require.NoError(t, <-done)
	lt.Unlock(block)
}

func TestXLockUpgradesOwnSLockWithoutWaiting(t *testing.T) {
	lt := newTestLockTable()
	block := file.NewBlockID("test", 1)

	require.NoError(t, lt.SLock(block))
	// Same holder upgrading its own S-lock (val == 1) must not wait on
	// itself: XLock only waits while val > 1 (others also hold S) or
	// val < 0 (someone else holds X).
	require.NoError(t, lt.XLock(block))
	lt.Unlock(block)
}

func TestXLockWaitsForOtherReaderThenSucceeds(t *testing.T) {
	lt := newTestLockTable()
	block := file.NewBlockID("test", 1)

	require.NoError(t, lt.SLock(block))
	require.NoError(t, lt.SLock(block)) // val == 2, a second reader

	done := make(chan error, 1)
	go func() { done <- lt.XLock(block) }()

	lt.Unlock(block) // back down to val == 1, the waiter's own S-lock
	require.NoError(t, <-done)
	lt.Unlock(block)
}

func TestIndependentBlocksDoNotContend(t *testing.T) {
	lt := newTestLockTable()
	a := file.NewBlockID("test", 1)
	b := file.NewBlockID("test", 2)

	require.NoError(t, lt.XLock(a))
	require.NoError(t, lt.XLock(b))
	lt.Unlock(a)
	lt.Unlock(b)
}
