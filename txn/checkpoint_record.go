package txn

import (
	"coredb/file"
	"coredb/wal"
)

// CheckpointRecord marks a point in the log before which doRecover need
// not look; it carries no transaction and no undo information.
type CheckpointRecord struct{}

func newCheckpointRecord() *CheckpointRecord {
	return &CheckpointRecord{}
}

func (r *CheckpointRecord) Op() LogRecordType { return Checkpoint }

// TxNumber returns -1 since a checkpoint belongs to no transaction.
func (r *CheckpointRecord) TxNumber() int { return -1 }

func (r *CheckpointRecord) Undo(tx *Transaction) error { return nil }

func (r *CheckpointRecord) String() string { return "<CHECKPOINT>" }

// WriteCheckpointToLog appends a checkpoint record and returns its LSN.
func WriteCheckpointToLog(lm *wal.Manager) (wal.LSN, error) {
	rec := make([]byte, 4)
	p := file.NewPageFromBytes(rec)
	if err := p.SetInt(0, int32(Checkpoint)); err != nil {
		return 0, err
	}
	return lm.Append(rec)
}
