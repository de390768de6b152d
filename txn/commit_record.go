package txn

import (
	"fmt"

	"coredb/file"
	"coredb/wal"
)

// CommitRecord marks that a transaction finished successfully; recovery
// treats any transaction with a CommitRecord as finished and never undoes
// its changes.
type CommitRecord struct {
	txnum int
}

func newCommitRecord(p *file.Page) *CommitRecord {
	return &CommitRecord{txnum: int(p.GetInt(4))}
}

func (r *CommitRecord) Op() LogRecordType { return Commit }

func (r *CommitRecord) TxNumber() int { return r.txnum }

func (r *CommitRecord) Undo(tx *Transaction) error { return nil }

func (r *CommitRecord) String() string { return fmt.Sprintf("<COMMIT %d>", r.txnum) }

// WriteCommitToLog appends a commit record for txnum and returns its LSN.
func WriteCommitToLog(lm *wal.Manager, txnum int) (wal.LSN, error) {
	rec := make([]byte, 8)
	p := file.NewPageFromBytes(rec)
	if err := p.SetInt(0, int32(Commit)); err != nil {
		return 0, err
	}
	if err := p.SetInt(4, int32(txnum)); err != nil {
		return 0, err
	}
	return lm.Append(rec)
}
