package file

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrOutOfBounds is returned when a write would run past the end of a
// page's backing buffer. It signals a programmer error in a caller that
// mis-sized a record; it is not meant to be recovered from, only reported.
var ErrOutOfBounds = errors.New("file: write past end of page")

// Charset describes how Page encodes/decodes strings. ASCII is the
// default; a wider charset (e.g. a different code page) can be supplied to
// NewPageWithCharset so that MaxLength reflects its true per-character
// cost instead of assuming one byte per rune.
type Charset struct {
	name            string
	enc             encoding.Encoding
	maxBytesPerChar int
}

func (c Charset) String() string { return c.name }

// ASCII is the page default: US-ASCII, modeled with the ISO-8859-1 code
// page (a superset whose low 128 code points are identical to ASCII),
// exactly one byte per character.
var ASCII = Charset{name: "US-ASCII", enc: charmap.ISO8859_1, maxBytesPerChar: 1}

// Page is a fixed-size byte buffer with typed absolute read/write
// accessors. Block size is fixed for the lifetime of the page and is the
// same for every file in the database.
type Page struct {
	contents []byte
	charset  Charset
}

// NewPage allocates a fresh, zero-filled page of blockSize bytes, encoded
// with the default ASCII charset. This is the constructor the buffer pool
// uses.
func NewPage(blockSize int) *Page {
	return NewPageWithCharset(blockSize, ASCII)
}

// NewPageWithCharset is like NewPage but lets the caller choose the string
// charset up front.
func NewPageWithCharset(blockSize int, cs Charset) *Page {
	return &Page{contents: make([]byte, blockSize), charset: cs}
}

// NewPageFromBytes wraps an existing byte slice without copying it. Used
// to build one-off pages over log records, which are not block-sized.
func NewPageFromBytes(b []byte) *Page {
	return &Page{contents: b, charset: ASCII}
}

// Contents returns the page's backing buffer.
func (p *Page) Contents() []byte {
	return p.contents
}

func (p *Page) checkBounds(offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(p.contents) {
		return errors.Wrapf(ErrOutOfBounds, "offset %d, length %d, page size %d", offset, n, len(p.contents))
	}
	return nil
}

// GetInt reads a big-endian 32-bit integer at offset. Reads trust the
// offset; an out-of-range offset panics like any other out-of-bounds slice
// access, since a corrupted offset here means the caller already
// mis-decoded the page.
func (p *Page) GetInt(offset int) int32 {
	return int32(binary.BigEndian.Uint32(p.contents[offset : offset+4]))
}

// SetInt writes a big-endian 32-bit integer at offset.
func (p *Page) SetInt(offset int, n int32) error {
	if err := p.checkBounds(offset, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(p.contents[offset:offset+4], uint32(n))
	return nil
}

// GetBytes reads a length-prefixed byte slice at offset.
func (p *Page) GetBytes(offset int) []byte {
	length := int(p.GetInt(offset))
	b := make([]byte, length)
	copy(b, p.contents[offset+4:offset+4+length])
	return b
}

// SetBytes writes a length-prefixed byte slice at offset.
func (p *Page) SetBytes(offset int, b []byte) error {
	if err := p.checkBounds(offset, 4+len(b)); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(p.contents[offset:offset+4], uint32(len(b)))
	copy(p.contents[offset+4:offset+4+len(b)], b)
	return nil
}

// GetString decodes a length-prefixed string at offset using the page's
// charset.
func (p *Page) GetString(offset int) string {
	raw := p.GetBytes(offset)
	decoded, _, err := transform.Bytes(p.charset.enc.NewDecoder(), raw)
	if err != nil {
		// Trust-the-offset semantics: fall back to the raw bytes rather
		// than failing a read.
		return string(raw)
	}
	return string(decoded)
}

// SetString encodes s with the page's charset and writes it as a
// length-prefixed string at offset.
func (p *Page) SetString(offset int, s string) error {
	encoded, _, err := transform.String(p.charset.enc.NewEncoder(), s)
	if err != nil {
		return errors.Wrap(err, "file: encode string")
	}
	return p.SetBytes(offset, []byte(encoded))
}

// GetBool reads a single-byte boolean at offset.
func (p *Page) GetBool(offset int) bool {
	return p.contents[offset] != 0
}

// SetBool writes a single-byte boolean at offset.
func (p *Page) SetBool(offset int, v bool) error {
	if err := p.checkBounds(offset, 1); err != nil {
		return err
	}
	if v {
		p.contents[offset] = 1
	} else {
		p.contents[offset] = 0
	}
	return nil
}

// GetTime reads a 64-bit Unix millisecond timestamp at offset.
func (p *Page) GetTime(offset int) time.Time {
	ms := int64(binary.BigEndian.Uint64(p.contents[offset : offset+8]))
	return time.UnixMilli(ms)
}

// SetTime writes t as a 64-bit Unix millisecond timestamp at offset.
func (p *Page) SetTime(offset int, t time.Time) error {
	if err := p.checkBounds(offset, 8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(p.contents[offset:offset+8], uint64(t.UnixMilli()))
	return nil
}

// MaxLength returns the maximum number of bytes needed to store a string
// of strlen characters under the page's active charset, including the
// 4-byte length prefix.
func (p *Page) MaxLength(strlen int) int {
	return 4 + strlen*p.charset.maxBytesPerChar
}

// MaxLength is the package-level equivalent of (*Page).MaxLength under the
// default ASCII charset. Log records compute their own byte layout before
// a Page exists to hold them, so they call this directly.
func MaxLength(strlen int) int {
	return 4 + strlen*ASCII.maxBytesPerChar
}
