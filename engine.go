// Package coredb is the storage-and-transaction core of a teaching-grade
// relational database engine: fixed-size block files, a write-ahead log,
// a buffer pool, and strict two-phase-locked transactions with undo-only
// crash recovery. It has no SQL parser, planner, or record layout — those
// are external collaborators built on top of Transaction.
package coredb

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"coredb/buffer"
	"coredb/file"
	"coredb/txn"
	"coredb/wal"
)

// DefaultBlockSize and DefaultBufferPoolSize are the values Open uses
// unless the caller picks its own via OpenWithConfig.
const (
	DefaultBlockSize      = 400
	DefaultBufferPoolSize = 8
	logFileName           = "coredb.log"
)

// Database composes the file, log, and buffer managers together with the
// shared lock table and transaction-number sequencer every Transaction
// needs. It holds no SQL-level state; callers build their own schema and
// record layout on top of NewTx.
type Database struct {
	fm     *file.Manager
	lm     *wal.Manager
	bm     *buffer.Manager
	lt     *txn.LockTable
	txnums *txn.TxNumberGenerator
}

// OpenWithConfig opens (or creates) a database in dir with an explicit
// block size and buffer pool size. The construction order matters: the
// file manager must exist before the log manager can adopt or create its
// tail block, and the log manager must exist before the buffer pool can
// be given a reference to it for write-ahead-log flushes.
func OpenWithConfig(dir string, blockSize, bufferPoolSize int) (*Database, error) {
	fm, err := file.NewManager(dir, blockSize)
	if err != nil {
		return nil, errors.Wrap(err, "coredb: open file manager")
	}

	lm, err := wal.NewManager(fm, logFileName)
	if err != nil {
		return nil, errors.Wrap(err, "coredb: open log manager")
	}

	bm := buffer.NewManager(fm, lm, bufferPoolSize)

	txnums, err := txn.NewTxNumberGenerator(fm)
	if err != nil {
		return nil, errors.Wrap(err, "coredb: open transaction sequencer")
	}

	db := &Database{
		fm:     fm,
		lm:     lm,
		bm:     bm,
		lt:     txn.NewLockTable(),
		txnums: txnums,
	}

	if !fm.IsNew() {
		logrus.Info("coredb: existing database found, running recovery")
		recoverTx, err := db.NewTx()
		if err != nil {
			return nil, errors.Wrap(err, "coredb: start recovery transaction")
		}
		if err := recoverTx.Recover(); err != nil {
			return nil, errors.Wrap(err, "coredb: recovery failed")
		}
		if err := recoverTx.Commit(); err != nil {
			return nil, errors.Wrap(err, "coredb: commit recovery transaction")
		}
	} else {
		logrus.Info("coredb: creating new database")
	}

	return db, nil
}

// Open opens (or creates) a database in dir using the default block size
// and buffer pool size.
func Open(dir string) (*Database, error) {
	return OpenWithConfig(dir, DefaultBlockSize, DefaultBufferPoolSize)
}

// NewTx starts a new transaction against this database.
func (db *Database) NewTx() (*txn.Transaction, error) {
	return txn.NewTransaction(db.fm, db.lm, db.bm, db.lt, db.txnums)
}

// Close closes every open file handle, including the directory lock. It
// does not flush the buffer pool or the log.
func (db *Database) Close() error {
	return db.fm.Close()
}

// FileMgr returns the database's file manager.
func (db *Database) FileMgr() *file.Manager { return db.fm }

// LogMgr returns the database's write-ahead log manager.
func (db *Database) LogMgr() *wal.Manager { return db.lm }

// BufferMgr returns the database's buffer pool.
func (db *Database) BufferMgr() *buffer.Manager { return db.bm }

// LockTable returns the lock table shared by every transaction opened
// against this database.
func (db *Database) LockTable() *txn.LockTable { return db.lt }
