package listing

import (
	"bytes"
	"strings"
	"testing"
)

func TestApplesoftTokenize(t *testing.T) {

	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "hgr2 before hgr", line: "10 HGR2 : REM SOMETHING", want: "HGR2 "},
		{name: "hgr", line: "10 HGR : REM SOMETHING", want: "HGR "},
		{name: "quoted", line: "20 PRINT \"GOTO HOME\"", want: "\"GOTO HOME\""},
		{name: "rem kept", line: "30 REM PRINT IS TEXT", want: "REM  PRINT IS TEXT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := TokenizeApplesoft([]string{tt.line, "99 END"})
			s := string(Applesoft(prog))
			if !strings.Contains(s, tt.want) {
				t.Errorf("Applesoft() = %q, want it to contain %q", s, tt.want)
			}
			if got := strings.Count(s, "\n"); got != 2 {
				t.Errorf("Applesoft() listed %d lines, want 2", got)
			}
		})
	}
}

func TestApplesoftLinks(t *testing.T) {

	prog := TokenizeApplesoft([]string{"10 HOME", "20 GOTO 10"})
	// 10 HOME: link, number, token, terminator
	if want := []byte{0x07, 0x08, 10, 0, 0x97, 0}; !bytes.Equal(prog[:6], want) {
		t.Errorf("first line = % x, want % x", prog[:6], want)
	}
	if tail := prog[len(prog)-2:]; tail[0] != 0 || tail[1] != 0 {
		t.Errorf("program does not end with a zero link")
	}
}

func TestApplesoftTruncated(t *testing.T) {

	prog := TokenizeApplesoft([]string{"10 PRINT 1"})
	for n := 0; n < len(prog); n++ {
		Applesoft(prog[:n])
	}
}

func TestInteger(t *testing.T) {

	// 10 PRINT "HI" : 20 END
	prog := []byte{
		0x0a, 10, 0, 0x61, 0x28, 'H' | 0x80, 'I' | 0x80, 0x29, 0x01,
		0x05, 20, 0, 0x51, 0x01,
		0x00,
	}
	s := string(Integer(prog))
	for _, want := range []string{"10 ", "PRINT", "\"HI\"", "20 ", "END"} {
		if !strings.Contains(s, want) {
			t.Errorf("Integer() = %q, want it to contain %q", s, want)
		}
	}
	for n := 0; n < len(prog); n++ {
		Integer(prog[:n])
	}
}
