package basic

import "strings"

// Attr is the format independent attribute mask.
type Attr int

const (
	AttrBasic Attr = 1 << iota
	AttrData
	AttrMachine
	AttrASCII
	AttrBinary
	AttrRandom
	AttrDirectory
	AttrVolume
	AttrReadOnly
	AttrHidden
	AttrSystem
	AttrLocked
	AttrArchive
	AttrEncrypted
)

const attrTypeMask = AttrBasic | AttrData | AttrMachine | AttrDirectory | AttrVolume

var attrNames = []struct {
	a    Attr
	name string
}{
	{AttrBasic, "BAS"},
	{AttrData, "DAT"},
	{AttrMachine, "BIN"},
	{AttrASCII, "ASC"},
	{AttrBinary, "B"},
	{AttrRandom, "RND"},
	{AttrDirectory, "DIR"},
	{AttrVolume, "VOL"},
	{AttrReadOnly, "RO"},
	{AttrHidden, "HID"},
	{AttrSystem, "SYS"},
	{AttrLocked, "LCK"},
	{AttrArchive, "ARC"},
	{AttrEncrypted, "ENC"},
}

func (a Attr) Has(f Attr) bool {
	return a&f != 0
}

func (a Attr) String() string {
	var parts []string
	for _, n := range attrNames {
		if a&n.a != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseAttr reads a comma separated list in the form printed by String.
func ParseAttr(s string) (Attr, bool) {
	var a Attr
	if strings.TrimSpace(s) == "" {
		return 0, true
	}
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		found := false
		for _, n := range attrNames {
			if n.name == p {
				a |= n.a
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return a, true
}

// FileAttr bundles the common mask with the native bytes it came from.
// Origin is only meaningful when Format names the format that produced it.
type FileAttr struct {
	Attr   Attr
	Origin [3]int
	Format string
}

func NewFileAttr(a Attr) FileAttr {
	return FileAttr{Attr: a}
}

// OriginFor returns the native values when they were produced by kind.
func (f FileAttr) OriginFor(kind string) ([3]int, bool) {
	if f.Format == "" || f.Format != kind {
		return [3]int{}, false
	}
	return f.Origin, true
}
