package basic

import (
	"bytes"
	"errors"
	"testing"

	"github.com/paleotronic/diskbasic/charset"
)

func TestNativeFileName(t *testing.T) {

	cs := charset.NewTable().MustGet("ascii")
	tests := []struct {
		name   string
		in     string
		width  int
		layout NameLayout
		want   []byte
	}{
		{name: "padded", in: "ab", width: 4, layout: NameLayout{Pad: 0x20}, want: []byte("ab  ")},
		{name: "upper", in: "ab", width: 3, layout: NameLayout{Pad: 0x20, Upper: true}, want: []byte("AB ")},
		{name: "shifted space", in: "A", width: 3, layout: NameLayout{Pad: 0xa0}, want: []byte{'A', 0xa0, 0xa0}},
		{name: "inverted", in: "A", width: 2, layout: NameLayout{Pad: 0x20, Invert: true}, want: []byte{^byte('A'), ^byte(0x20)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToNativeFileName(cs, tt.in, tt.width, tt.layout)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ToNativeFileName() = % x, want % x", got, tt.want)
			}
			back := FromNativeFileName(cs, got, tt.layout)
			if tt.layout.Upper {
				if back != "AB" {
					t.Errorf("FromNativeFileName() = %q", back)
				}
			} else if back != tt.in {
				t.Errorf("FromNativeFileName() = %q, want %q", back, tt.in)
			}
		})
	}

	if _, err := ToNativeFileName(cs, "TOOLONGNAME", 8, NameLayout{}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("ToNativeFileName() error = %v, want ErrInvalidName", err)
	}
}

func TestSplitFileName(t *testing.T) {

	tests := []struct {
		in        string
		layout    NameLayout
		base, ext string
	}{
		{in: "GAME.BAS", layout: NameLayout{NameLen: 8, ExtLen: 3}, base: "GAME", ext: "BAS"},
		{in: "A.B.C", layout: NameLayout{NameLen: 8, ExtLen: 3}, base: "A.B", ext: "C"},
		{in: "GAME", layout: NameLayout{NameLen: 8, ExtLen: 3}, base: "GAME"},
		{in: "GAME.BAS", layout: NameLayout{NameLen: 16}, base: "GAME.BAS"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			base, ext := SplitFileName(tt.in, tt.layout)
			if base != tt.base || ext != tt.ext {
				t.Errorf("SplitFileName() = %q %q, want %q %q", base, ext, tt.base, tt.ext)
			}
		})
	}
}

func TestTrimEOF(t *testing.T) {

	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{name: "code then padding", in: []byte{'A', 'B', 0x1a, 0, 0}, want: []byte("AB")},
		{name: "code only", in: []byte{'A', 0x1a}, want: []byte("A")},
		{name: "no code", in: []byte{'A', 'B'}, want: []byte("AB")},
		{name: "inner code kept", in: []byte{0x1a, 'A'}, want: []byte{0x1a, 'A'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trimEOF(tt.in, 0x1a); !bytes.Equal(got, tt.want) {
				t.Errorf("trimEOF() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestIntegers(t *testing.T) {

	b := make([]byte, 4)
	putLE24(b, 0x123456)
	if le24(b) != 0x123456 || b[0] != 0x56 {
		t.Errorf("le24 = %#x (% x)", le24(b), b)
	}
	putBE32(b, 0x01020304)
	if be32(b) != 0x01020304 || b[0] != 1 {
		t.Errorf("be32 = %#x (% x)", be32(b), b)
	}
	if toBCD(59) != 0x59 || fromBCD(0x59) != 59 {
		t.Errorf("BCD 59 = %#x", toBCD(59))
	}
}
