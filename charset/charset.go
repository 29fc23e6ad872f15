// Package charset converts between the byte encodings found in disk
// directories and Go strings.
package charset

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var (
	ErrUnknownCharset = errors.New("unknown charset")
	ErrUnmappable     = errors.New("character cannot be represented")
)

// Charset is one named byte encoding.
type Charset struct {
	Name        string
	Description string
	enc         encoding.Encoding
}

func New(name, description string, enc encoding.Encoding) *Charset {
	return &Charset{Name: name, Description: description, enc: enc}
}

// Decode converts native bytes to a string. Undecodable bytes become the
// replacement rune.
func (c *Charset) Decode(b []byte) string {
	out, _, err := transform.Bytes(c.enc.NewDecoder(), b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// Encode converts s to native bytes.
func (c *Charset) Encode(s string) ([]byte, error) {
	out, _, err := transform.Bytes(c.enc.NewEncoder(), []byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %s", ErrUnmappable, s, c.Name)
	}
	return out, nil
}

// Table is the set of charsets known to the process.
type Table struct {
	mu sync.RWMutex
	m  map[string]*Charset
}

// NewTable returns a table holding the built in charsets.
func NewTable() *Table {
	t := &Table{m: make(map[string]*Charset)}
	t.Register(New("ascii", "7 bit ASCII", asciiEncoding))
	t.Register(New("latin1", "ISO 8859-1", charmap.ISO8859_1))
	t.Register(New("cp437", "IBM PC code page 437", charmap.CodePage437))
	t.Register(New("sjis", "Shift JIS with JIS X 0201 kana", japanese.ShiftJIS))
	t.Register(New("apple", "Apple II high bit ASCII", appleEncoding))
	t.Register(New("petscii", "Commodore PETSCII, unshifted", petsciiEncoding))
	return t
}

func (t *Table) Register(c *Charset) {
	t.mu.Lock()
	t.m[c.Name] = c
	t.mu.Unlock()
}

func (t *Table) Get(name string) (*Charset, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharset, name)
	}
	return c, nil
}

// MustGet falls back to ascii for unknown names.
func (t *Table) MustGet(name string) *Charset {
	c, err := t.Get(name)
	if err != nil {
		c, _ = t.Get("ascii")
	}
	return c
}

func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.m))
	for k := range t.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// byteMap is a single byte encoding driven by two lookup funcs.
type byteMap struct {
	decode func(b byte) rune
	encode func(r rune) (byte, bool)
}

func (m *byteMap) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &byteMapDecoder{m: m}}
}

func (m *byteMap) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &byteMapEncoder{m: m}}
}

type byteMapDecoder struct {
	transform.NopResetter
	m *byteMap
}

func (d *byteMapDecoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r := d.m.decode(src[nSrc])
		if nDst+utf8.RuneLen(r) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc++
	}
	return nDst, nSrc, nil
}

type byteMapEncoder struct {
	transform.NopResetter
	m *byteMap
}

func (e *byteMapEncoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if !atEOF && !utf8.FullRune(src[nSrc:]) {
			return nDst, nSrc, transform.ErrShortSrc
		}
		r, size := utf8.DecodeRune(src[nSrc:])
		b, ok := e.m.encode(r)
		if !ok {
			return nDst, nSrc, ErrUnmappable
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = b
		nDst++
		nSrc += size
	}
	return nDst, nSrc, nil
}

var asciiEncoding = &byteMap{
	decode: func(b byte) rune {
		if b >= 0x80 {
			return utf8.RuneError
		}
		return rune(b)
	},
	encode: func(r rune) (byte, bool) {
		if r < 0 || r >= 0x80 {
			return 0, false
		}
		return byte(r), true
	},
}

// Apple DOS stores names with the high bit set.
var appleEncoding = &byteMap{
	decode: func(b byte) rune {
		return rune(b & 0x7f)
	},
	encode: func(r rune) (byte, bool) {
		if r < 0 || r >= 0x80 {
			return 0, false
		}
		return byte(r) | 0x80, true
	},
}

var petsciiEncoding = &byteMap{
	decode: func(b byte) rune {
		switch {
		case b >= 0x20 && b <= 0x5d:
			return rune(b)
		case b >= 0xc1 && b <= 0xda:
			return rune(b-0xc1) + 'A'
		case b == 0xa0:
			return ' '
		}
		return '?'
	},
	encode: func(r rune) (byte, bool) {
		switch {
		case r >= 'a' && r <= 'z':
			return byte(r-'a') + 'A', true
		case r >= 0x20 && r <= 0x5d:
			return byte(r), true
		}
		return 0, false
	},
}
