package basic

import (
	"testing"

	"github.com/paleotronic/diskbasic/disk"
)

func newTestFat(copies, size int, inverted bool) (*Fat, []*disk.Sector) {
	var secs []*disk.Sector
	var windows [][]Window
	for c := 0; c < copies; c++ {
		s := disk.NewSector(c+1, 256)
		secs = append(secs, s)
		windows = append(windows, []Window{{Sector: s, Offset: 256 - size, Size: size}})
	}
	return NewFat(windows, inverted), secs
}

func TestFatMirrors(t *testing.T) {

	f, secs := newTestFat(3, 100, false)
	if f.Size() != 100 || f.Copies() != 3 {
		t.Fatalf("Size() = %d Copies() = %d", f.Size(), f.Copies())
	}
	f.Set(10, 0x42)
	for i, s := range secs {
		if got := s.Data()[156+10]; got != 0x42 {
			t.Errorf("copy %d holds %#x, want 0x42", i, got)
		}
	}
	if m, n := f.MatchCopies(0, f.Size()); m != n {
		t.Errorf("MatchCopies() = %d/%d", m, n)
	}

	secs[2].Data()[156+11] = 0x99
	if m, n := f.MatchCopies(0, f.Size()); m != n-1 {
		t.Errorf("MatchCopies() = %d/%d, want one mismatch", m, n)
	}
	f.SetValid(2, false)
	if m, n := f.MatchCopies(0, f.Size()); m != n {
		t.Errorf("MatchCopies() with copy 2 invalid = %d/%d", m, n)
	}
	if got := f.Get(f.Size()); got != -1 {
		t.Errorf("Get() past the end = %d, want -1", got)
	}
}

func TestFatInverted(t *testing.T) {

	f, secs := newTestFat(1, 16, true)
	f.Fill(0xff)
	if got := f.Get(0); got != 0 {
		t.Errorf("Get() after Fill(0xff) = %#x, want 0", got)
	}
	f.Set(3, 0x12)
	if got := secs[0].Data()[240+3]; got != 0xed {
		t.Errorf("raw byte = %#x, want 0xed", got)
	}
	if got := f.Get(3); got != 0x12 {
		t.Errorf("Get() = %#x, want 0x12", got)
	}
}

func TestFat12(t *testing.T) {

	f, _ := newTestFat(2, 30, false)
	f.Fill(0)
	values := []int{0xff9, 0xfff, 0x003, 0x004, 0xabc, 0x123, 0x000, 0xff7}
	for n, v := range values {
		f.Set12(n, v)
	}
	for n, v := range values {
		if got := f.Get12(n); got != v {
			t.Errorf("Get12(%d) = %#x, want %#x", n, got, v)
		}
	}
	if got := f.Get(0); got != 0xf9 {
		t.Errorf("byte 0 = %#x, want 0xf9", got)
	}
}

func TestFat16(t *testing.T) {

	f, _ := newTestFat(1, 8, false)
	f.Set16(0, 0x1234, false)
	f.Set16(2, 0x1234, true)
	if f.Get(0) != 0x34 || f.Get(2) != 0x12 {
		t.Errorf("bytes = %#x %#x, want 0x34 0x12", f.Get(0), f.Get(2))
	}
	if got := f.Get16(2, true); got != 0x1234 {
		t.Errorf("Get16(big) = %#x", got)
	}
}

func TestFatBits(t *testing.T) {

	tests := []struct {
		name     string
		msbFirst bool
		bit      int
		raw      int
	}{
		{name: "lsb", msbFirst: false, bit: 9, raw: 0x02},
		{name: "msb", msbFirst: true, bit: 9, raw: 0x40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFat(1, 4, false)
			f.Fill(0)
			f.SetBit(tt.bit, true, tt.msbFirst)
			if got := f.Get(1); got != tt.raw {
				t.Errorf("byte 1 = %#x, want %#x", got, tt.raw)
			}
			if !f.GetBit(tt.bit, tt.msbFirst) {
				t.Errorf("GetBit(%d) = false", tt.bit)
			}
			f.SetBit(tt.bit, false, tt.msbFirst)
			if f.GetBit(tt.bit, tt.msbFirst) {
				t.Errorf("GetBit(%d) = true after clear", tt.bit)
			}
		})
	}
}
