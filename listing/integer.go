package listing

import (
	"bytes"
	"fmt"
)

const (
	INTEGER_EOL       = 0x01
	INTEGER_COLON     = 0x03
	INTEGER_QUOTE     = 0x28
	INTEGER_END_QUOTE = 0x29
	INTEGER_REM       = 0x5d
)

// integerTokens maps codes below 0x80. Several codes share a spelling
// because the interpreter keeps a token per syntactic role.
var integerTokens = []string{
	"HIMEM:", "", "_", ":", "LOAD", "SAVE", "CON", "RUN", "RUN", "DEL", ",", "NEW", "CLR",
	"AUTO", ",", "MAN", "HIMEM:", "LOMEM:", "+", "-", "*", "/", "=", "#", ">=", ">", "<=",
	"<>", "<", "AND", "OR", "MOD", "^", "+", "(", ",", "THEN", "THEN", ",", ",", "\"", "\"",
	"(", "!", "!", "(", "PEEK", "RND", "SGN", "ABS", "PDL", "RNDX", "(", "+", "-", "NOT",
	"(", "=", "#", "LEN(", "ASC(", "SCRN(", ",", "(", "$", "$", "(", ",", ",", ";", ";",
	";", ",", ",", ",", "TEXT", "GR", "CALL", "DIM", "DIM", "TAB", "END", "INPUT", "INPUT",
	"INPUT", "FOR", "=", "TO", "STEP", "NEXT", ",", "RETURN", "GOSUB", "REM", "LET", "GOTO",
	"IF", "PRINT", "PRINT", "PRINT", "POKE", ",", "COLOR=", "PLOT", ",", "HLIN", ",", "AT",
	"VLIN", ",", "AT", "VTAB", "=", "=", ")", ")", "LIST", ",", "LIST", "POP", "NODSP",
	"DSP", "NOTRACE", "DSP", "DSP", "TRACE", "PR#", "IN#",
}

func isIntegerConst(t byte) bool {
	return t >= 0xb0 && t <= 0xb9
}

func isIntegerVar(t byte) bool {
	return t >= 0xc1 && t <= 0xda
}

// Integer lists a tokenized Integer BASIC program.
func Integer(data []byte) []byte {

	r := &reader{buf: data}
	var out bytes.Buffer

	for {
		n, ok := r.u8()
		if !ok || n == 0 {
			break
		}
		num, ok := r.u16()
		if !ok {
			break
		}
		fmt.Fprintf(&out, "%d ", num)

		t, ok := r.u8()
		space := false
		for ok && t != INTEGER_EOL {
			nextSpace := false
			switch {
			case t == INTEGER_COLON:
				out.WriteString(" :")
				t, ok = r.u8()
			case t == INTEGER_QUOTE:
				out.WriteByte('"')
				for t, ok = r.u8(); ok && t != INTEGER_END_QUOTE; t, ok = r.u8() {
					out.WriteByte(t & 0x7f)
				}
				out.WriteByte('"')
				t, ok = r.u8()
			case t == INTEGER_REM:
				if space {
					out.WriteByte(' ')
				}
				out.WriteString("REM ")
				for t, ok = r.u8(); ok && t != INTEGER_EOL; t, ok = r.u8() {
					out.WriteByte(t & 0x7f)
				}
			case isIntegerConst(t):
				v, vok := r.u16()
				if !vok {
					ok = false
					break
				}
				fmt.Fprintf(&out, "%d", v)
				t, ok = r.u8()
			case isIntegerVar(t):
				for ok && (isIntegerVar(t) || isIntegerConst(t)) {
					out.WriteByte(t & 0x7f)
					t, ok = r.u8()
				}
			case t < 0x80:
				tok := integerTokens[t]
				switch {
				case tok == "":
				case tok[0] >= 0x21 && tok[0] <= 0x3f || t < 0x12:
					out.WriteString(tok)
				default:
					if !space {
						out.WriteByte(' ')
					}
					out.WriteString(tok)
					out.WriteByte(' ')
					nextSpace = true
				}
				t, ok = r.u8()
			default:
				t, ok = r.u8()
			}
			space = nextSpace
		}
		out.WriteByte('\n')
		if !ok {
			break
		}
	}

	return out.Bytes()
}
