package txn

import (
	"github.com/sirupsen/logrus"

	"coredb/buffer"
	"coredb/file"
	"coredb/wal"
)

// EndOfFile is the block number used as a stand-in for "the end of the
// file" when a transaction needs to lock against concurrent Append calls:
// Size and Append both lock this dummy block before touching the file's
// real length, so a reader computing Size never races a writer extending
// the file.
const EndOfFile = -1

// Transaction is a single unit of work against the database. It
// coordinates three independent concerns: recovery (undo-only logging),
// concurrency (strict two-phase locking through a shared LockTable), and
// buffer management (pinning the blocks it touches for its own lifetime).
type Transaction struct {
	fm *file.Manager
	lm *wal.Manager
	bm *buffer.Manager

	rm      *RecoveryManager
	cm      *ConcurrencyManager
	buffers *bufferList

	// appendedFrom records, for each file this transaction has extended,
	// its length in blocks immediately before the first such append, so
	// Rollback can truncate the file back to exactly that length.
	appendedFrom map[string]int

	txnum int
	log   *logrus.Entry
}

// NewTransaction starts a new transaction: it draws a fresh, durable
// transaction number from txnums, writes its start record, and is ready
// to read and write blocks immediately.
func NewTransaction(fm *file.Manager, lm *wal.Manager, bm *buffer.Manager, lt *LockTable, txnums *TxNumberGenerator) (*Transaction, error) {
	txnum, err := txnums.Next()
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		fm:           fm,
		lm:           lm,
		bm:           bm,
		cm:           NewConcurrencyManager(lt),
		buffers:      newBufferList(bm),
		appendedFrom: make(map[string]int),
		txnum:        txnum,
		log:          logrus.WithField("txnum", txnum),
	}

	rm, err := NewRecoveryManager(tx, txnum, lm, bm)
	if err != nil {
		return nil, err
	}
	tx.rm = rm

	tx.log.Debug("transaction started")
	return tx, nil
}

// TxNumber returns this transaction's durable id.
func (tx *Transaction) TxNumber() int { return tx.txnum }

// Commit makes every change durable, releases all of this transaction's
// locks, and unpins every buffer it was holding. The transaction must not
// be used again afterward.
func (tx *Transaction) Commit() error {
	if err := tx.rm.Commit(); err != nil {
		return err
	}
	tx.cm.Release()
	tx.buffers.unpinAll()
	tx.log.Debug("transaction committed")
	return nil
}

// Rollback undoes every change this transaction made, truncates back to
// their original length any files this transaction extended with Append,
// releases all of its locks, and unpins every buffer it was holding. The
// transaction must not be used again afterward.
func (tx *Transaction) Rollback() error {
	if err := tx.rm.Rollback(); err != nil {
		return err
	}
	for filename, originalLength := range tx.appendedFrom {
		if err := tx.fm.Truncate(filename, originalLength); err != nil {
			return err
		}
	}
	tx.cm.Release()
	tx.buffers.unpinAll()
	tx.log.Debug("transaction rolled back")
	return nil
}

// Recover runs crash recovery using this transaction's buffer and log
// managers. It is meant to be called once, by the first transaction
// opened after startup, before any other transaction begins.
func (tx *Transaction) Recover() error {
	if err := tx.bm.FlushAll(tx.txnum); err != nil {
		return err
	}
	return tx.rm.Recover()
}

// Pin acquires a shared lock on block — pinning implies intent to at
// least read it — then pins it via the buffer pool for the lifetime of
// this transaction (or until a matching Unpin).
func (tx *Transaction) Pin(block file.BlockID) error {
	if err := tx.cm.SLock(block); err != nil {
		return err
	}
	return tx.buffers.pin(block)
}

// Unpin releases one pin this transaction holds on block. The lock on
// block is not released; that happens only at commit or rollback.
func (tx *Transaction) Unpin(block file.BlockID) {
	tx.buffers.unpin(block)
}

// GetInt returns the integer at offset in block. block must already be
// pinned; Pin acquired the shared lock that makes this read safe.
func (tx *Transaction) GetInt(block file.BlockID, offset int) (int32, error) {
	buf, err := tx.buffers.getBuffer(block)
	if err != nil {
		return 0, err
	}
	return buf.Contents().GetInt(offset), nil
}

// GetString returns the string at offset in block. block must already be
// pinned; Pin acquired the shared lock that makes this read safe.
func (tx *Transaction) GetString(block file.BlockID, offset int) (string, error) {
	buf, err := tx.buffers.getBuffer(block)
	if err != nil {
		return "", err
	}
	return buf.Contents().GetString(offset), nil
}

// SetInt writes val at offset in block, after acquiring an exclusive lock
// on it. If okToLog is true, the previous value is logged first so it can
// be undone; okToLog is false only when Undo itself is the caller, to
// avoid logging an undo of an undo.
func (tx *Transaction) SetInt(block file.BlockID, offset int, val int, okToLog bool) error {
	if err := tx.cm.XLock(block); err != nil {
		return err
	}
	buf, err := tx.buffers.getBuffer(block)
	if err != nil {
		return err
	}

	var lsn wal.LSN
	hasLSN := false
	if okToLog {
		lsn, err = tx.rm.SetInt(buf, offset, val)
		if err != nil {
			return err
		}
		hasLSN = true
	}

	if err := buf.Contents().SetInt(offset, int32(val)); err != nil {
		return err
	}
	buf.SetModified(tx.txnum, lsn, hasLSN)
	return nil
}

// SetString writes val at offset in block, after acquiring an exclusive
// lock on it, with the same undo-logging rule as SetInt.
func (tx *Transaction) SetString(block file.BlockID, offset int, val string, okToLog bool) error {
	if err := tx.cm.XLock(block); err != nil {
		return err
	}
	buf, err := tx.buffers.getBuffer(block)
	if err != nil {
		return err
	}

	var lsn wal.LSN
	hasLSN := false
	if okToLog {
		lsn, err = tx.rm.SetString(buf, offset, val)
		if err != nil {
			return err
		}
		hasLSN = true
	}

	if err := buf.Contents().SetString(offset, val); err != nil {
		return err
	}
	buf.SetModified(tx.txnum, lsn, hasLSN)
	return nil
}

// Size returns filename's length in blocks, after acquiring a shared lock
// on its end-of-file marker so a concurrent Append cannot change the
// answer mid-read.
func (tx *Transaction) Size(filename string) (int, error) {
	dummy := file.NewBlockID(filename, EndOfFile)
	if err := tx.cm.SLock(dummy); err != nil {
		return 0, err
	}
	return tx.fm.Length(filename)
}

// Append extends filename by one block, after acquiring an exclusive lock
// on its end-of-file marker. The file's length immediately before its
// first append under this transaction is remembered so Rollback can
// truncate the growth away.
func (tx *Transaction) Append(filename string) (file.BlockID, error) {
	dummy := file.NewBlockID(filename, EndOfFile)
	if err := tx.cm.XLock(dummy); err != nil {
		return file.BlockID{}, err
	}

	if _, tracked := tx.appendedFrom[filename]; !tracked {
		length, err := tx.fm.Length(filename)
		if err != nil {
			return file.BlockID{}, err
		}
		tx.appendedFrom[filename] = length
	}

	return tx.fm.Append(filename)
}

// BlockSize returns the database's fixed block size.
func (tx *Transaction) BlockSize() int {
	return tx.fm.BlockSize()
}

// AvailableBuffers returns the number of currently unpinned buffers.
func (tx *Transaction) AvailableBuffers() int {
	return tx.bm.Available()
}
