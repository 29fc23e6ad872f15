// Package listing turns tokenized Apple II BASIC programs into text and
// back.
package listing

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const (
	APPLESOFT_BASE       = 0x801
	APPLESOFT_FIRST      = 0x80
	APPLESOFT_TOKEN_DATA = 0x83
	APPLESOFT_TOKEN_REM  = 0xb2
)

// applesoftTokens is in interpreter table order, starting at 0x80. The
// tokenizer takes the first entry that matches, so HGR2 wins over HGR.
var applesoftTokens = []string{
	"END", "FOR", "NEXT", "DATA", "INPUT", "DEL", "DIM", "READ", "GR", "TEXT", "PR#", "IN#",
	"CALL", "PLOT", "HLIN", "VLIN", "HGR2", "HGR", "HCOLOR=", "HPLOT", "DRAW", "XDRAW",
	"HTAB", "HOME", "ROT=", "SCALE=", "SHLOAD", "TRACE", "NOTRACE", "NORMAL", "INVERSE",
	"FLASH", "COLOR=", "POP", "VTAB", "HIMEM:", "LOMEM:", "ONERR", "RESUME", "RECALL",
	"STORE", "SPEED=", "LET", "GOTO", "RUN", "IF", "RESTORE", "&", "GOSUB", "RETURN", "REM",
	"STOP", "ON", "WAIT", "LOAD", "SAVE", "DEF", "POKE", "PRINT", "CONT", "LIST", "CLEAR",
	"GET", "NEW", "TAB(", "TO", "FN", "SPC(", "THEN", "AT", "NOT", "STEP", "+", "-", "*",
	"/", "^", "AND", "OR", ">", "=", "<", "SGN", "INT", "ABS", "USR", "FRE", "SCRN(", "PDL",
	"POS", "SQR", "RND", "LOG", "EXP", "COS", "SIN", "TAN", "ATN", "PEEK", "LEN", "STR$",
	"VAL", "ASC", "CHR$", "LEFT$", "RIGHT$", "MID$",
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) u8() (byte, bool) {
	if r.pos >= len(r.buf) {
		return 0, false
	}
	v := r.buf[r.pos]
	r.pos++
	return v, true
}

func (r *reader) u16() (int, bool) {
	if r.pos+2 > len(r.buf) {
		r.pos = len(r.buf)
		return 0, false
	}
	v := int(r.buf[r.pos]) | int(r.buf[r.pos+1])<<8
	r.pos += 2
	return v, true
}

func applesoftToken(t byte) string {
	i := int(t) - APPLESOFT_FIRST
	if i < 0 || i >= len(applesoftTokens) {
		return "ERROR"
	}
	return applesoftTokens[i]
}

// Applesoft lists a tokenized Applesoft program, one line per row.
func Applesoft(data []byte) []byte {

	r := &reader{buf: data}
	var out bytes.Buffer

	for {
		next, ok := r.u16()
		if !ok || next == 0 {
			break
		}
		num, ok := r.u16()
		if !ok {
			break
		}
		fmt.Fprintf(&out, "%d ", num)

		inRem := false
		for {
			t, ok := r.u8()
			if !ok || t == 0 {
				break
			}
			switch {
			case t&0x80 != 0:
				out.WriteString(" " + applesoftToken(t) + " ")
				if t == APPLESOFT_TOKEN_REM {
					inRem = true
				}
			case inRem && (t == '\r' || t == '\n'):
				out.WriteByte('*')
			default:
				out.WriteByte(t)
			}
		}
		out.WriteByte('\n')
	}

	return out.Bytes()
}

func matchApplesoftToken(s string) (byte, int) {
	up := strings.ToUpper(s)
	for i, tok := range applesoftTokens {
		if strings.HasPrefix(up, tok) {
			return byte(APPLESOFT_FIRST + i), len(tok)
		}
	}
	return 0, 0
}

func tokenizeApplesoftLine(s string) []byte {

	var out []byte
	inQuote, inData, inRem := false, false, false

	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case inRem:
			out = append(out, ch)
			i++
			continue
		case ch == '"':
			inQuote = !inQuote
			out = append(out, ch)
			i++
			continue
		case inQuote:
			out = append(out, ch)
			i++
			continue
		case inData && ch != ':':
			out = append(out, ch)
			i++
			continue
		case ch == ':':
			inData = false
		}

		if tok, n := matchApplesoftToken(s[i:]); n > 0 {
			out = append(out, tok)
			i += n
			switch tok {
			case APPLESOFT_TOKEN_REM:
				inRem = true
			case APPLESOFT_TOKEN_DATA:
				inData = true
			}
			continue
		}
		out = append(out, ch)
		i++
	}

	return out
}

// TokenizeApplesoft builds a program image loaded at 0x801 from numbered
// source lines. Lines without a number are skipped.
func TokenizeApplesoft(lines []string) []byte {

	addr := APPLESOFT_BASE
	var out []byte

	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		numText, rest, _ := strings.Cut(l, " ")
		num, err := strconv.Atoi(numText)
		if err != nil || num < 0 || num > 0xffff {
			continue
		}

		line := []byte{0, 0, byte(num), byte(num >> 8)}
		line = append(line, tokenizeApplesoftLine(strings.TrimSpace(rest))...)
		line = append(line, 0)

		addr += len(line)
		line[0], line[1] = byte(addr), byte(addr>>8)
		out = append(out, line...)
	}

	return append(out, 0, 0)
}
