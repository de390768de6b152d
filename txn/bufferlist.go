package txn

import (
	"github.com/pkg/errors"

	"coredb/buffer"
	"coredb/file"
)

// bufferList tracks the buffers a single transaction has pinned, counting
// repeat pins of the same block so that each Unpin call retires one pin
// rather than releasing the block outright while another caller still
// needs it.
type bufferList struct {
	bm      *buffer.Manager
	buffers map[file.BlockID]*buffer.Buffer
	pins    map[file.BlockID]int
}

func newBufferList(bm *buffer.Manager) *bufferList {
	return &bufferList{
		bm:      bm,
		buffers: make(map[file.BlockID]*buffer.Buffer),
		pins:    make(map[file.BlockID]int),
	}
}

// getBuffer returns the buffer this transaction has pinned for block.
func (bl *bufferList) getBuffer(block file.BlockID) (*buffer.Buffer, error) {
	buf, ok := bl.buffers[block]
	if !ok {
		return nil, errors.Errorf("txn: block %v not pinned by this transaction", block)
	}
	return buf, nil
}

// pin pins block through the buffer manager and records the pin.
func (bl *bufferList) pin(block file.BlockID) error {
	buf, err := bl.bm.Pin(block)
	if err != nil {
		return err
	}
	bl.buffers[block] = buf
	bl.pins[block]++
	return nil
}

// unpin retires one pin on block, releasing the buffer entirely once the
// transaction's pin count on it reaches zero.
func (bl *bufferList) unpin(block file.BlockID) {
	buf, ok := bl.buffers[block]
	if !ok {
		return
	}
	bl.bm.Unpin(buf)
	bl.pins[block]--
	if bl.pins[block] <= 0 {
		delete(bl.pins, block)
		delete(bl.buffers, block)
	}
}

// unpinAll releases every buffer this transaction has pinned, regardless
// of pin count, and clears all tracking.
func (bl *bufferList) unpinAll() {
	for block, n := range bl.pins {
		buf := bl.buffers[block]
		for i := 0; i < n; i++ {
			bl.bm.Unpin(buf)
		}
	}
	bl.buffers = make(map[file.BlockID]*buffer.Buffer)
	bl.pins = make(map[file.BlockID]int)
}
