package basic

import "github.com/paleotronic/diskbasic/disk"

// Window is a byte range inside one sector.
type Window struct {
	Sector *disk.Sector
	Offset int
	Size   int
}

func (w Window) Bytes() []byte {
	return w.Sector.Data()[w.Offset : w.Offset+w.Size]
}

// Fat presents the allocation sectors of a volume, possibly mirrored, as one
// byte array. Reads use copy 0, writes go to every valid copy.
type Fat struct {
	copies   [][]Window
	valid    []bool
	size     int
	inverted bool
}

// NewFat builds a table from per copy window lists. Every copy must cover
// the same number of bytes.
func NewFat(copies [][]Window, inverted bool) *Fat {
	f := &Fat{copies: copies, inverted: inverted}
	f.valid = make([]bool, len(copies))
	for i := range f.valid {
		f.valid[i] = true
	}
	if len(copies) > 0 {
		for _, w := range copies[0] {
			f.size += w.Size
		}
	}
	return f
}

func (f *Fat) Size() int {
	return f.size
}

func (f *Fat) Copies() int {
	return len(f.copies)
}

func (f *Fat) SetValid(copy int, valid bool) {
	if copy >= 0 && copy < len(f.valid) {
		f.valid[copy] = valid
	}
}

func (f *Fat) IsValid(copy int) bool {
	return copy >= 0 && copy < len(f.valid) && f.valid[copy]
}

func (f *Fat) locate(copy, pos int) (*disk.Sector, int) {
	if copy < 0 || copy >= len(f.copies) || pos < 0 {
		return nil, 0
	}
	for _, w := range f.copies[copy] {
		if pos < w.Size {
			return w.Sector, w.Offset + pos
		}
		pos -= w.Size
	}
	return nil, 0
}

// GetCopy reads one byte of the given copy, -1 when out of range.
func (f *Fat) GetCopy(copy, pos int) int {
	s, ofs := f.locate(copy, pos)
	if s == nil {
		return -1
	}
	v := s.Data()[ofs]
	if f.inverted {
		v ^= 0xff
	}
	return int(v)
}

func (f *Fat) Get(pos int) int {
	for c := range f.copies {
		if f.valid[c] {
			return f.GetCopy(c, pos)
		}
	}
	return -1
}

func (f *Fat) Set(pos int, v int) {
	b := byte(v)
	if f.inverted {
		b ^= 0xff
	}
	for c := range f.copies {
		if !f.valid[c] {
			continue
		}
		s, ofs := f.locate(c, pos)
		if s == nil {
			continue
		}
		s.Data()[ofs] = b
		s.SetModify()
	}
}

func (f *Fat) Get16(pos int, bigEndian bool) int {
	lo, hi := f.Get(pos), f.Get(pos+1)
	if lo < 0 || hi < 0 {
		return -1
	}
	if bigEndian {
		lo, hi = hi, lo
	}
	return lo | hi<<8
}

func (f *Fat) Set16(pos int, v int, bigEndian bool) {
	lo, hi := v&0xff, (v>>8)&0xff
	if bigEndian {
		lo, hi = hi, lo
	}
	f.Set(pos, lo)
	f.Set(pos+1, hi)
}

// Get12 reads packed 12 bit entry n, FAT12 style.
func (f *Fat) Get12(n int) int {
	pos := n * 3 / 2
	v := f.Get16(pos, false)
	if v < 0 {
		return -1
	}
	if n&1 != 0 {
		return v >> 4
	}
	return v & 0xfff
}

func (f *Fat) Set12(n int, v int) {
	pos := n * 3 / 2
	old := f.Get16(pos, false)
	if old < 0 {
		return
	}
	if n&1 != 0 {
		old = (old & 0x000f) | (v&0xfff)<<4
	} else {
		old = (old & 0xf000) | v&0xfff
	}
	f.Set16(pos, old, false)
}

// GetBit tests bit n counted from the start of the table.
func (f *Fat) GetBit(n int, msbFirst bool) bool {
	v := f.Get(n / 8)
	if v < 0 {
		return false
	}
	return v&bitMask(n, msbFirst) != 0
}

func (f *Fat) SetBit(n int, on bool, msbFirst bool) {
	v := f.Get(n / 8)
	if v < 0 {
		return
	}
	if on {
		v |= bitMask(n, msbFirst)
	} else {
		v &^= bitMask(n, msbFirst)
	}
	f.Set(n/8, v)
}

func bitMask(n int, msbFirst bool) int {
	if msbFirst {
		return 0x80 >> uint(n&7)
	}
	return 1 << uint(n&7)
}

// Fill sets every byte of every copy.
func (f *Fat) Fill(code byte) {
	for c := range f.copies {
		for _, w := range f.copies[c] {
			d := w.Bytes()
			for i := range d {
				d[i] = code
			}
			w.Sector.SetModify()
		}
	}
}

// MatchCopies counts the bytes in range where every valid copy agrees with
// copy 0.
func (f *Fat) MatchCopies(start, end int) (match, total int) {
	for pos := start; pos < end && pos < f.size; pos++ {
		total++
		v := f.GetCopy(0, pos)
		ok := true
		for c := 1; c < len(f.copies); c++ {
			if f.valid[c] && f.GetCopy(c, pos) != v {
				ok = false
				break
			}
		}
		if ok {
			match++
		}
	}
	return match, total
}
