package txn

import (
	"fmt"

	"coredb/file"
	"coredb/wal"
)

// SetStringRecord carries the before-image of a string write.
type SetStringRecord struct {
	txnum  int
	offset int
	val    string
	block  file.BlockID
}

// record layout: | type(4) | txnum(4) | filename(var) | blocknum(4) | offset(4) | val(var) |
func newSetStringRecord(p *file.Page) *SetStringRecord {
	tpos := 4
	txnum := p.GetInt(tpos)

	fpos := tpos + 4
	filename := p.GetString(fpos)

	bpos := fpos + file.MaxLength(len(filename))
	blocknum := p.GetInt(bpos)

	opos := bpos + 4
	offset := p.GetInt(opos)

	vpos := opos + 4
	val := p.GetString(vpos)

	return &SetStringRecord{
		txnum:  int(txnum),
		offset: int(offset),
		val:    val,
		block:  file.NewBlockID(filename, int(blocknum)),
	}
}

func (r *SetStringRecord) Op() LogRecordType { return SetStringType }

func (r *SetStringRecord) TxNumber() int { return r.txnum }

func (r *SetStringRecord) String() string {
	return fmt.Sprintf("<SETSTRING %d %v %d %s>", r.txnum, r.block, r.offset, r.val)
}

func (r *SetStringRecord) Undo(tx *Transaction) error {
	if err := tx.Pin(r.block); err != nil {
		return err
	}
	defer tx.Unpin(r.block)
	return tx.SetString(r.block, r.offset, r.val, false)
}

// WriteSetStringToLog appends a SetString before-image record and returns its LSN.
func WriteSetStringToLog(lm *wal.Manager, txnum int, block file.BlockID, offset int, val string) (wal.LSN, error) {
	tpos := 4
	fpos := tpos + 4
	bpos := fpos + file.MaxLength(len(block.Filename))
	opos := bpos + 4
	vpos := opos + 4

	rec := make([]byte, vpos+file.MaxLength(len(val)))
	p := file.NewPageFromBytes(rec)

	if err := p.SetInt(0, int32(SetStringType)); err != nil {
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
	if err := p.SetString(vpos, val); err != nil {
		return 0, err
	}

	return lm.Append(rec)
}
