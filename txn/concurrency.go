package txn

import (
	"coredb/file"
)

type lockKind int

const (
	sharedLock lockKind = iota
	exclusiveLock
)

// ConcurrencyManager is a transaction's private view of the locks it
// holds. It only calls into the shared LockTable the first time it needs
// a given block, or to upgrade a shared lock to exclusive; after that it
// answers from its own map, so a transaction never double-locks a block
// it already holds.
type ConcurrencyManager struct {
	lt    *LockTable
	locks map[file.BlockID]lockKind
}

// NewConcurrencyManager returns a ConcurrencyManager backed by the shared
// lock table lt.
func NewConcurrencyManager(lt *LockTable) *ConcurrencyManager {
	return &ConcurrencyManager{lt: lt, locks: make(map[file.BlockID]lockKind)}
}

// SLock obtains a shared lock on block, acquiring it from the shared
// table only if this transaction holds no lock on it yet.
func (cm *ConcurrencyManager) SLock(block file.BlockID) error {
	if _, ok := cm.locks[block]; ok {
		return nil
	}
	if err := cm.lt.SLock(block); err != nil {
		return err
	}
	cm.locks[block] = sharedLock
	return nil
}

// XLock obtains an exclusive lock on block. If the transaction only holds
// a shared lock, it first acquires the shared lock (idempotent, since the
// transaction already has one) before upgrading it to exclusive — this
// mirrors the standard lock-upgrade protocol for avoiding unnecessary
// exclusive requests.
func (cm *ConcurrencyManager) XLock(block file.BlockID) error {
	if cm.locks[block] == exclusiveLock {
		return nil
	}
	if err := cm.SLock(block); err != nil {
		return err
	}
	if err := cm.lt.XLock(block); err != nil {
		return err
	}
	cm.locks[block] = exclusiveLock
	return nil
}

// Release releases every lock this transaction holds.
func (cm *ConcurrencyManager) Release() {
	for block := range cm.locks {
		cm.lt.Unlock(block)
	}
	cm.locks = make(map[file.BlockID]lockKind)
}
