package txn

import (
	"fmt"

	"coredb/file"
	"coredb/wal"
)

// SetIntRecord carries the before-image of an integer write: the block,
// offset, and prior value, so Undo can restore it.
type SetIntRecord struct {
	txnum  int
	offset int
	val    int32
	block  file.BlockID
}

// record layout: | type(4) | txnum(4) | filename(var) | blocknum(4) | offset(4) | val(4) |
func newSetIntRecord(p *file.Page) *SetIntRecord {
	tpos := 4
	txnum := p.GetInt(tpos)

	fpos := tpos + 4
	filename := p.GetString(fpos)

	bpos := fpos + file.MaxLength(len(filename))
	blocknum := p.GetInt(bpos)

	opos := bpos + 4
	offset := p.GetInt(opos)

	vpos := opos + 4
	val := p.GetInt(vpos)

	return &SetIntRecord{
		txnum:  int(txnum),
		offset: int(offset),
		val:    val,
		block:  file.NewBlockID(filename, int(blocknum)),
	}
}

func (r *SetIntRecord) Op() LogRecordType { return SetIntType }

func (r *SetIntRecord) TxNumber() int { return r.txnum }

func (r *SetIntRecord) String() string {
	return fmt.Sprintf("<SETINT %d %v %d %d>", r.txnum, r.block, r.offset, r.val)
}

// Undo restores the before-image value, pinning the block for the
// duration and logging nothing (an undo of an undo would loop forever).
func (r *SetIntRecord) Undo(tx *Transaction) error {
	if err := tx.Pin(r.block); err != nil {
		return err
	}
	defer tx.Unpin(r.block)
	return tx.SetInt(r.block, r.offset, int(r.val), false)
}

// WriteSetIntToLog appends a SetInt before-image record and returns its LSN.
func WriteSetIntToLog(lm *wal.Manager, txnum int, block file.BlockID, offset int, val int) (wal.LSN, error) {
	tpos := 4
	fpos := tpos + 4
	bpos := fpos + file.MaxLength(len(block.Filename))
	opos := bpos + 4
	vpos := opos + 4

	rec := make([]byte, vpos+4)
	p := file.NewPageFromBytes(rec)

	if err := p.SetInt(0, int32(SetIntType)); err != nil {
		return 0, err
	}
	if err := p.SetInt(tpos, int32(txnum)); err != nil {
		return 0, err
	}
	if err := p.SetString(fpos, block.Filename); err != nil {
		return 0, err
	}
	if err := p.SetInt(bpos, int32(block.Num)); err != nil {
		return 0, err
	}
	if err := p.SetInt(opos, int32(offset)); err != nil {
		return 0, err
	}
	if err := p.SetInt(vpos, int32(val)); err != nil {
		return 0, err
	}

	return lm.Append(rec)
}
