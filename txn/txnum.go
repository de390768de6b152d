package txn

import (
	"sync"

	"github.com/pkg/errors"

	"coredb/file"
)

// txnSeqFile is a dedicated single-block file holding the most recently
// issued transaction number as a 4-byte integer (0 before the first), so
// the sequence survives a restart instead of resetting to zero.
const txnSeqFile = "txn_seq"

// TxNumberGenerator hands out strictly increasing transaction numbers,
// persisting the high-water mark directly through the file manager so a
// crash can never hand out a number already used before the crash. It
// takes an explicit *file.Manager rather than living behind a package
// level counter, so a process can run more than one database with
// independent sequences.
type TxNumberGenerator struct {
	fm    *file.Manager
	mu    sync.Mutex
	block file.BlockID
}

// NewTxNumberGenerator opens (or creates) the sequence file for fm's
// database directory.
func NewTxNumberGenerator(fm *file.Manager) (*TxNumberGenerator, error) {
	length, err := fm.Length(txnSeqFile)
	if err != nil {
		return nil, errors.Wrap(err, "txn: check sequence file")
	}

	g := &TxNumberGenerator{fm: fm}

	if length == 0 {
		block, err := fm.Append(txnSeqFile)
		if err != nil {
			return nil, errors.Wrap(err, "txn: create sequence file")
		}
		g.block = block
		p := file.NewPage(fm.BlockSize())
		if err := p.SetInt(0, 0); err != nil {
			return nil, err
		}
		if err := fm.Write(g.block, p); err != nil {
			return nil, errors.Wrap(err, "txn: initialize sequence file")
		}
	} else {
		g.block = file.NewBlockID(txnSeqFile, 0)
	}

	return g, nil
}

// Next returns the next transaction number, durably advancing the
// sequence before returning it.
func (g *TxNumberGenerator) Next() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := file.NewPage(g.fm.BlockSize())
	if err := g.fm.Read(g.block, p); err != nil {
		return 0, errors.Wrap(err, "txn: read sequence file")
	}

	next := p.GetInt(0) + 1
	if err := p.SetInt(0, next); err != nil {
		return 0, err
	}
	if err := g.fm.Write(g.block, p); err != nil {
		return 0, errors.Wrap(err, "txn: write sequence file")
	}

	return int(next), nil
}
