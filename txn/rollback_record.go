package txn

import (
	"fmt"

	"coredb/file"
	"coredb/wal"
)

// RollbackRecord marks that a transaction was explicitly undone; like
// CommitRecord, it tells recovery that the transaction is finished.
type RollbackRecord struct {
	txnum int
}

func newRollbackRecord(p *file.Page) *RollbackRecord {
	return &RollbackRecord{txnum: int(p.GetInt(4))}
}

func (r *RollbackRecord) Op() LogRecordType { return Rollback }

func (r *RollbackRecord) TxNumber() int { return r.txnum }

func (r *RollbackRecord) Undo(tx *Transaction) error { return nil }

func (r *RollbackRecord) String() string { return fmt.Sprintf("<ROLLBACK %d>", r.txnum) }

// WriteRollbackToLog appends a rollback record for txnum and returns its LSN.
func WriteRollbackToLog(lm *wal.Manager, txnum int) (wal.LSN, error) {
	rec := make([]byte, 8)
	p := file.NewPageFromBytes(rec)
	if err := p.SetInt(0, int32(Rollback)); err != nil {
		return 0, err
	}
	if err := p.SetInt(4, int32(txnum)); err != nil {
		return 0, err
	}
	return lm.Append(rec)
}
