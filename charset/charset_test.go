package charset

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {

	table := NewTable()

	tests := []struct {
		name    string
		charset string
		text    string
		native  []byte
	}{
		{name: "ascii", charset: "ascii", text: "HELLO.BAS", native: []byte("HELLO.BAS")},
		{name: "apple", charset: "apple", text: "HELLO", native: []byte{0xc8, 0xc5, 0xcc, 0xcc, 0xcf}},
		{name: "petscii", charset: "petscii", text: "GAME 1", native: []byte("GAME 1")},
		{name: "sjis kana", charset: "sjis", text: "ｱｲｳ", native: []byte{0xb1, 0xb2, 0xb3}},
		{name: "cp437", charset: "cp437", text: "Ç", native: []byte{0x80}},
		{name: "latin1", charset: "latin1", text: "é", native: []byte{0xe9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := table.Get(tt.charset)
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.Encode(tt.text)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.native) {
				t.Errorf("Encode() = % x, want % x", got, tt.native)
			}
			if s := c.Decode(tt.native); s != tt.text {
				t.Errorf("Decode() = %q, want %q", s, tt.text)
			}
		})
	}
}

func TestUnmappable(t *testing.T) {

	c := NewTable().MustGet("ascii")
	if _, err := c.Encode("ｱ"); !errors.Is(err, ErrUnmappable) {
		t.Errorf("Encode() error = %v, want ErrUnmappable", err)
	}
}

func TestUnknown(t *testing.T) {

	table := NewTable()
	if _, err := table.Get("ebcdic"); !errors.Is(err, ErrUnknownCharset) {
		t.Errorf("Get() error = %v", err)
	}
	if c := table.MustGet("ebcdic"); c.Name != "ascii" {
		t.Errorf("MustGet() fallback = %s", c.Name)
	}
	if n := len(table.Names()); n != 6 {
		t.Errorf("Names() has %d entries", n)
	}
}
