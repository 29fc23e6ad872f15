package basic

import (
	"bytes"
	"strings"
	"time"

	"github.com/paleotronic/diskbasic/charset"
)

func le16(b []byte) int {
	return int(b[0]) | int(b[1])<<8
}

func be16(b []byte) int {
	return int(b[0])<<8 | int(b[1])
}

func le24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

func be24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

func le32(b []byte) int {
	return int(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func be32(b []byte) int {
	return int(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

func putLE16(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putBE16(b []byte, v int) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func putLE24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func putBE24(b []byte, v int) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func putLE32(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putBE32(b []byte, v int) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func get16(b []byte, big bool) int {
	if big {
		return be16(b)
	}
	return le16(b)
}

func put16(b []byte, v int, big bool) {
	if big {
		putBE16(b, v)
		return
	}
	putLE16(b, v)
}

func toBCD(v int) byte {
	return byte((v/10)%10<<4 | v%10)
}

func fromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

func invertBytes(b []byte) {
	for i := range b {
		b[i] ^= 0xff
	}
}

func fill(b []byte, code byte) {
	for i := range b {
		b[i] = code
	}
}

// trimRight drops trailing pad and NUL bytes.
func trimRight(b []byte, pad byte) []byte {
	n := len(b)
	for n > 0 && (b[n-1] == pad || b[n-1] == 0) {
		n--
	}
	return b[:n]
}

// NameLayout describes how an entry stores its file name.
type NameLayout struct {
	NameLen int
	ExtLen  int
	Pad     byte
	Upper   bool
	Invert  bool
}

// SplitFileName splits at the last dot when the layout has an extension
// field.
func SplitFileName(name string, l NameLayout) (string, string) {
	if l.ExtLen == 0 {
		return name, ""
	}
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// ToNativeFileName folds case and encodes one name field, padding it to
// width.
func ToNativeFileName(cs *charset.Charset, s string, width int, l NameLayout) ([]byte, error) {
	if l.Upper {
		s = strings.ToUpper(s)
	}
	b, err := cs.Encode(s)
	if err != nil {
		return nil, errName(ErrInvalidName, s)
	}
	if len(b) > width {
		return nil, errName(ErrInvalidName, s)
	}
	out := make([]byte, width)
	copy(out, b)
	for i := len(b); i < width; i++ {
		out[i] = l.Pad
	}
	if l.Invert {
		invertBytes(out)
	}
	return out, nil
}

// FromNativeFileName reverses ToNativeFileName for one field.
func FromNativeFileName(cs *charset.Charset, b []byte, l NameLayout) string {
	c := append([]byte(nil), b...)
	if l.Invert {
		invertBytes(c)
	}
	return cs.Decode(trimRight(c, l.Pad))
}

// Namer is implemented by entries whose names do not fit the fixed field
// model.
type Namer interface {
	GetFileName(cs *charset.Charset) string
	SetFileName(cs *charset.Charset, name string) error
}

// GetFileName decodes the name of it.
func GetFileName(it Item, cs *charset.Charset) string {
	if n, ok := it.(Namer); ok {
		return n.GetFileName(cs)
	}
	l := it.NameLayout()
	name := FromNativeFileName(cs, it.GetFileNamePos(), l)
	if l.ExtLen == 0 {
		return name
	}
	ext := FromNativeFileName(cs, it.GetFileExtPos(), l)
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// SetFileName stores name into it.
func SetFileName(it Item, cs *charset.Charset, name string) error {
	if name == "" {
		return errName(ErrInvalidName, name)
	}
	if n, ok := it.(Namer); ok {
		return n.SetFileName(cs, name)
	}
	l := it.NameLayout()
	base, ext := SplitFileName(name, l)
	if base == "" {
		return errName(ErrInvalidName, name)
	}
	nb, err := ToNativeFileName(cs, base, l.NameLen, l)
	if err != nil {
		return err
	}
	var eb []byte
	if l.ExtLen > 0 {
		eb, err = ToNativeFileName(cs, ext, l.ExtLen, l)
		if err != nil {
			return err
		}
	}
	copy(it.GetFileNamePos(), nb)
	if l.ExtLen > 0 {
		copy(it.GetFileExtPos(), eb)
	}
	return nil
}

// SameName compares names the way the directory would.
func SameName(it Item, cs *charset.Charset, name string) bool {
	have := GetFileName(it, cs)
	l := it.NameLayout()
	if l.Upper {
		return strings.EqualFold(have, name)
	}
	return have == name
}

// trimEOF drops in band padding after the last terminator.
func trimEOF(data []byte, code byte) []byte {
	n := len(data)
	for n > 0 && data[n-1] == 0 {
		n--
	}
	if n > 0 && data[n-1] == code {
		return data[:n-1]
	}
	return data
}

func hasPrefix(b []byte, prefix string) bool {
	return bytes.HasPrefix(b, []byte(prefix))
}

// dosDate decodes the packed date and time words of a FAT style entry.
func dosDate(dv, tv int) (time.Time, bool) {
	if dv == 0 {
		return time.Time{}, false
	}
	return time.Date(1980+dv>>9, time.Month(dv>>5&0x0f), dv&0x1f, tv>>11, tv>>5&0x3f, (tv&0x1f)*2, 0, time.Local), true
}

func packDosDate(tm time.Time) (dv, tv int) {
	y := tm.Year() - 1980
	if y < 0 {
		y = 0
	}
	return y<<9 | int(tm.Month())<<5 | tm.Day(), tm.Hour()<<11 | tm.Minute()<<5 | tm.Second()/2
}
