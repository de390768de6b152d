package txn

import (
	"fmt"

	"coredb/file"
	"coredb/wal"
)

// StartRecord marks the beginning of a transaction in the log. Recovery
// uses it to know when a rollback scan has undone every change the
// transaction made.
type StartRecord struct {
	txnum int
}

func newStartRecord(p *file.Page) *StartRecord {
	return &StartRecord{txnum: int(p.GetInt(4))}
}

func (r *StartRecord) Op() LogRecordType { return Start }

func (r *StartRecord) TxNumber() int { return r.txnum }

func (r *StartRecord) Undo(tx *Transaction) error { return nil }

func (r *StartRecord) String() string { return fmt.Sprintf("<START %d>", r.txnum) }

// WriteStartToLog appends a start record for txnum and returns its LSN.
func WriteStartToLog(lm *wal.Manager, txnum int) (wal.LSN, error) {
	rec := make([]byte, 8)
	p := file.NewPageFromBytes(rec)
	if err := p.SetInt(0, int32(Start)); err != nil {
		return 0, err
	}
	if err := p.SetInt(4, int32(txnum)); err != nil {
		return 0, err
	}
	return lm.Append(rec)
}
