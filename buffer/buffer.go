// Package buffer implements the fixed-size page cache that sits between
// the write-ahead log and the on-disk block files: it pins blocks into
// memory, evicts unpinned buffers via a clock hand, and enforces
// write-ahead logging on every flush.
package buffer

import (
	"github.com/pkg/errors"

	"coredb/file"
	"coredb/wal"
)

// Buffer wraps one page-sized slot of the pool and tracks which block (if
// any) currently occupies it, how many callers have it pinned, and which
// transaction (if any) last modified it.
type Buffer struct {
	fm       *file.Manager
	lm       *wal.Manager
	contents *file.Page

	block     file.BlockID
	hasBlock  bool
	pins      int
	txnum     int // -1 means not modified by any transaction
	lsn       wal.LSN
	hasLSN    bool
}

func newBuffer(fm *file.Manager, lm *wal.Manager) *Buffer {
	return &Buffer{
		fm:       fm,
		lm:       lm,
		contents: file.NewPage(fm.BlockSize()),
		txnum:    -1,
	}
}

// Contents returns the page backing this buffer.
func (b *Buffer) Contents() *file.Page {
	return b.contents
}

// Block returns the block currently assigned to this buffer, and whether
// one is assigned at all.
func (b *Buffer) Block() (file.BlockID, bool) {
	return b.block, b.hasBlock
}

// SetModified records that txnum last modified this buffer, justified by
// the log record at lsn (if any — okToLog=false writes pass hasLSN=false
// since there is no log record to point to).
func (b *Buffer) SetModified(txnum int, lsn wal.LSN, hasLSN bool) {
	b.txnum = txnum
	if hasLSN {
		b.lsn = lsn
		b.hasLSN = true
	}
}

// IsPinned reports whether this buffer has a nonzero pin count.
func (b *Buffer) IsPinned() bool {
	return b.pins > 0
}

// ModifyingTx returns the id of the transaction that last modified this
// buffer, or -1 if it is clean.
func (b *Buffer) ModifyingTx() int {
	return b.txnum
}

// assignToBlock flushes the buffer's current contents if dirty, then
// reads block into it and resets the pin count to zero.
func (b *Buffer) assignToBlock(block file.BlockID) error {
	if err := b.flush(); err != nil {
		return err
	}
	b.block = block
	b.hasBlock = true
	if err := b.fm.Read(block, b.contents); err != nil {
		return err
	}
	b.pins = 0
	return nil
}

// flush writes this buffer's page to disk if it is dirty, first flushing
// the log up through its recorded LSN (write-ahead logging). It never
// recurses back into the buffer pool — only the log and file managers are
// touched — which is what breaks the Buffer<->Log cycle.
func (b *Buffer) flush() error {
	if b.txnum < 0 {
		return nil
	}
	if b.hasLSN {
		if err := b.lm.Flush(b.lsn); err != nil {
			return errors.Wrap(err, "buffer: WAL flush before page write")
		}
	}
	if err := b.fm.Write(b.block, b.contents); err != nil {
		return errors.Wrap(err, "buffer: flush page")
	}
	b.txnum = -1
	b.hasLSN = false
	return nil
}

func (b *Buffer) pin() {
	b.pins++
}

func (b *Buffer) unpin() {
	b.pins--
}
