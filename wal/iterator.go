package wal

import (
	"github.com/pkg/errors"

	"coredb/file"
)

// Iterator walks log records newest-first. Records within a block were
// laid down tail-to-head, so a forward scan starting at the boundary is a
// newest-first scan; when the scan reaches the end of a block's data it
// moves to the previous block number.
type Iterator struct {
	fm           *file.Manager
	currentBlock file.BlockID
	page         *file.Page
	currentPos   int
	boundary     int
}

func newIterator(fm *file.Manager, blk file.BlockID) (*Iterator, error) {
	it := &Iterator{
		fm:   fm,
		page: file.NewPage(fm.BlockSize()),
	}
	if err := it.moveToBlock(blk); err != nil {
		return nil, err
	}
	return it, nil
}

// HasNext reports whether there is at least one more record to read: the
// iterator hasn't exhausted the current block, or an earlier block still
// exists.
func (it *Iterator) HasNext() bool {
	return it.currentPos < it.fm.BlockSize() || it.currentBlock.Num > 0
}

// Next returns the next record and advances the iterator.
func (it *Iterator) Next() ([]byte, error) {
	if it.currentPos == it.fm.BlockSize() {
		prev := file.NewBlockID(it.currentBlock.Filename, it.currentBlock.Num-1)
		if err := it.moveToBlock(prev); err != nil {
			return nil, err
		}
	}

	rec := it.page.GetBytes(it.currentPos)
	it.currentPos += 4 + len(rec)
	return rec, nil
}

func (it *Iterator) moveToBlock(blk file.BlockID) error {
	if err := it.fm.Read(blk, it.page); err != nil {
		return errors.Wrapf(err, "wal: read block %v", blk)
	}
	it.currentBlock = blk
	it.boundary = int(it.page.GetInt(0))
	it.currentPos = it.boundary
	return nil
}
