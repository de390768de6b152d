// Package wal is the durable, append-only history of the database: the
// write-ahead log that every page modification is recorded into before it
// is allowed to reach disk.
package wal

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"coredb/file"
)

// LSN is a Log Sequence Number: a monotonically increasing handle to a
// position in the log, assigned by Append.
type LSN int32

// Manager owns the log file's tail block. It keeps that block's bytes in
// a page of its own rather than borrowing one from the shared buffer
// pool — see the Buffer<->Log cycle note on buffer.Buffer's flush for
// why: a buffer flush calls Manager.Flush for WAL, so Manager must never
// call back into the buffer pool to do its own I/O.
type Manager struct {
	fm      *file.Manager
	logfile string

	mu           sync.Mutex
	page         *file.Page
	currentBlock file.BlockID
	latestLSN    LSN
	lastSavedLSN LSN

	log *logrus.Entry
}

// NewManager opens (or creates) logfile and positions the manager at its
// tail block.
func NewManager(fm *file.Manager, logfile string) (*Manager, error) {
	lm := &Manager{
		fm:      fm,
		logfile: logfile,
		page:    file.NewPage(fm.BlockSize()),
		log:     logrus.WithField("component", "wal.Manager"),
	}

	size, err := fm.Length(logfile)
	if err != nil {
		return nil, errors.Wrap(err, "wal: check log size")
	}

	if size == 0 {
		blk, err := lm.appendNewBlock()
		if err != nil {
			return nil, err
		}
		lm.currentBlock = blk
	} else {
		lm.currentBlock = file.NewBlockID(logfile, size-1)
		if err := fm.Read(lm.currentBlock, lm.page); err != nil {
			return nil, errors.Wrap(err, "wal: read last log block")
		}
	}

	return lm, nil
}

// Append serializes record into the log and returns its LSN. If record
// would not fit before the current block's boundary header, the current
// block is flushed to disk and a fresh one is appended first.
func (lm *Manager) Append(record []byte) (LSN, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	boundary := int(lm.page.GetInt(0))
	bytesNeeded := len(record) + 4

	if boundary-bytesNeeded < 4 {
		if err := lm.flushLocked(); err != nil {
			return 0, err
		}
		blk, err := lm.appendNewBlock()
		if err != nil {
			return 0, err
		}
		lm.currentBlock = blk
		boundary = int(lm.page.GetInt(0))
	}

	recPos := boundary - bytesNeeded
	if err := lm.page.SetBytes(recPos, record); err != nil {
		return 0, errors.Wrap(err, "wal: write record")
	}
	if err := lm.page.SetInt(0, int32(recPos)); err != nil {
		return 0, errors.Wrap(err, "wal: update boundary")
	}

	lm.latestLSN++
	return lm.latestLSN, nil
}

// appendNewBlock appends a fresh log block, initializes its boundary
// header to an empty block (boundary == block size), and writes it to
// disk. Caller holds lm.mu.
func (lm *Manager) appendNewBlock() (file.BlockID, error) {
	blk, err := lm.fm.Append(lm.logfile)
	if err != nil {
		return file.BlockID{}, errors.Wrap(err, "wal: append log block")
	}
	if err := lm.page.SetInt(0, int32(lm.fm.BlockSize())); err != nil {
		return file.BlockID{}, err
	}
	if err := lm.fm.Write(blk, lm.page); err != nil {
		return file.BlockID{}, errors.Wrap(err, "wal: write new log block")
	}
	return blk, nil
}

// Flush ensures every record up to and including lsn is durable on disk.
func (lm *Manager) Flush(lsn LSN) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lsn >= lm.lastSavedLSN {
		return lm.flushLocked()
	}
	return nil
}

// flushLocked writes the current log block directly through the file
// manager, bypassing the buffer pool entirely. Caller holds lm.mu.
func (lm *Manager) flushLocked() error {
	if err := lm.fm.Write(lm.currentBlock, lm.page); err != nil {
		return errors.Wrap(err, "wal: flush log block")
	}
	lm.lastSavedLSN = lm.latestLSN
	return nil
}

// Iterator flushes the log and returns an Iterator that walks its records
// newest-first.
func (lm *Manager) Iterator() (*Iterator, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if err := lm.flushLocked(); err != nil {
		return nil, err
	}
	return newIterator(lm.fm, lm.currentBlock)
}
