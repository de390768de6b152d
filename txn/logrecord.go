// Package txn coordinates recovery and concurrency control for a single
// transaction: it writes undo-only log records before every change, locks
// blocks through a shared lock table, and tracks the buffers the
// transaction has pinned so they can all be released together.
package txn

import (
	"github.com/pkg/errors"

	"coredb/file"
)

// LogRecordType identifies which of the fixed set of log record shapes a
// serialized record holds.
type LogRecordType int32

const (
	Checkpoint LogRecordType = iota
	Start
	Commit
	Rollback
	SetIntType
	SetStringType
)

func (t LogRecordType) String() string {
	switch t {
	case Checkpoint:
		return "CHECKPOINT"
	case Start:
		return "START"
	case Commit:
		return "COMMIT"
	case Rollback:
		return "ROLLBACK"
	case SetIntType:
		return "SETINT"
	case SetStringType:
		return "SETSTRING"
	default:
		return "UNKNOWN"
	}
}

// LogRecord is one entry in the write-ahead log. Every record knows which
// transaction wrote it and how to undo the change it describes; records
// that carry no undo information (Checkpoint, Start, Commit, Rollback)
// implement Undo as a no-op.
type LogRecord interface {
	Op() LogRecordType
	TxNumber() int
	Undo(tx *Transaction) error
	String() string
}

// CreateLogRecord decodes a serialized record read from the log into its
// concrete LogRecord value.
func CreateLogRecord(bytes []byte) (LogRecord, error) {
	p := file.NewPageFromBytes(bytes)
	recordType := LogRecordType(p.GetInt(0))

	switch recordType {
	case Checkpoint:
		return newCheckpointRecord(), nil
	case Start:
		return newStartRecord(p), nil
	case Commit:
		return newCommitRecord(p), nil
	case Rollback:
		return newRollbackRecord(p), nil
	case SetIntType:
		return newSetIntRecord(p), nil
	case SetStringType:
		return newSetStringRecord(p), nil
	default:
		return nil, errors.Errorf("txn: unknown log record type %d", recordType)
	}
}
