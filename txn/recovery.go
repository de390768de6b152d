package txn

import (
	"github.com/sirupsen/logrus"

	"coredb/buffer"
	"coredb/wal"
)

// RecoveryManager implements undo-only crash recovery for one
// transaction: every modification is preceded by a before-image log
// record, so recovering just means replaying those records backwards for
// every transaction that never reached a Commit or Rollback record.
type RecoveryManager struct {
	lm    *wal.Manager
	bm    *buffer.Manager
	tx    *Transaction
	txnum int

	log *logrus.Entry
}

// NewRecoveryManager writes tx's start record and returns a manager bound
// to it.
func NewRecoveryManager(tx *Transaction, txnum int, lm *wal.Manager, bm *buffer.Manager) (*RecoveryManager, error) {
	if _, err := WriteStartToLog(lm, txnum); err != nil {
		return nil, err
	}
	return &RecoveryManager{
		lm:    lm,
		bm:    bm,
		tx:    tx,
		txnum: txnum,
		log:   logrus.WithField("component", "txn.RecoveryManager"),
	}, nil
}

// Commit flushes every buffer this transaction modified, writes and
// flushes a commit record. Once the commit record is durable the
// transaction's changes survive any future crash.
func (rm *RecoveryManager) Commit() error {
	if err := rm.bm.FlushAll(rm.txnum); err != nil {
		return err
	}
	lsn, err := WriteCommitToLog(rm.lm, rm.txnum)
	if err != nil {
		return err
	}
	return rm.lm.Flush(lsn)
}

// Rollback undoes every change this transaction made, flushes the
// buffers it touched, and writes a durable rollback record.
func (rm *RecoveryManager) Rollback() error {
	if err := rm.doRollback(); err != nil {
		return err
	}
	if err := rm.bm.FlushAll(rm.txnum); err != nil {
		return err
	}
	lsn, err := WriteRollbackToLog(rm.lm, rm.txnum)
	if err != nil {
		return err
	}
	return rm.lm.Flush(lsn)
}

// Recover runs crash recovery: every not-yet-finished transaction found
// in the log is undone, then a checkpoint is written so a future recovery
// need not scan past this point.
func (rm *RecoveryManager) Recover() error {
	if err := rm.doRecover(); err != nil {
		return err
	}
	if err := rm.bm.FlushAll(rm.txnum); err != nil {
		return err
	}
	lsn, err := WriteCheckpointToLog(rm.lm)
	if err != nil {
		return err
	}
	return rm.lm.Flush(lsn)
}

// SetInt records buf's current value at offset as a before-image, ahead
// of the caller overwriting it, and returns the record's LSN.
func (rm *RecoveryManager) SetInt(buf *buffer.Buffer, offset int, newval int) (wal.LSN, error) {
	oldval := buf.Contents().GetInt(offset)
	block, _ := buf.Block()
	return WriteSetIntToLog(rm.lm, rm.txnum, block, offset, int(oldval))
}

// SetString records buf's current string at offset as a before-image.
func (rm *RecoveryManager) SetString(buf *buffer.Buffer, offset int, newval string) (wal.LSN, error) {
	oldval := buf.Contents().GetString(offset)
	block, _ := buf.Block()
	return WriteSetStringToLog(rm.lm, rm.txnum, block, offset, oldval)
}

// doRollback scans the log backwards, undoing every record belonging to
// this transaction until it reaches that transaction's start record.
func (rm *RecoveryManager) doRollback() error {
	it, err := rm.lm.Iterator()
	if err != nil {
		return err
	}

	for it.HasNext() {
		bytes, err := it.Next()
		if err != nil {
			return err
		}
		record, err := CreateLogRecord(bytes)
		if err != nil {
			return err
		}
		if record.TxNumber() != rm.txnum {
			continue
		}
		if record.Op() == Start {
			return nil
		}
		if err := record.Undo(rm.tx); err != nil {
			return err
		}
	}
	return nil
}

// doRecover scans the log backwards from the most recent record,
// skipping any transaction already known finished (it has a commit or
// rollback record) and undoing everything else, stopping at the first
// checkpoint it finds.
func (rm *RecoveryManager) doRecover() error {
	finished := make(map[int]struct{})

	it, err := rm.lm.Iterator()
	if err != nil {
		return err
	}

	for it.HasNext() {
		bytes, err := it.Next()
		if err != nil {
			return err
		}
		record, err := CreateLogRecord(bytes)
		if err != nil {
			return err
		}

		switch record.Op() {
		case Checkpoint:
			return nil
		case Commit, Rollback:
			finished[record.TxNumber()] = struct{}{}
		default:
			if _, done := finished[record.TxNumber()]; !done {
				if err := record.Undo(rm.tx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
