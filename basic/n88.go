package basic

// N88-BASIC: three FAT copies behind the directory on track 18 and clusters
// handed out alternately below and above the directory track.

const (
	N88_ATTR_MACHINE  = 0x01
	N88_ATTR_READONLY = 0x10
	N88_ATTR_VERIFY   = 0x20
	N88_ATTR_BASIC    = 0x80
)

type n88Type struct {
	*fat8Type
}

func newN88Type(b *TypeBase) Type {
	t := &n88Type{fat8Type: newFat8Type(b)}
	t.order = alternatingOrder(b.param.FirstGroup, b.param.FatEndGroup, b.param.X("SearchGroup", 74))
	return t
}

// alternatingOrder lists groups moving outward from center, the lower
// neighbour first at each step.
func alternatingOrder(first, last, center int) []int {
	var out []int
	for d := 1; ; d++ {
		lo, hi := center-d, center+d-1
		if lo < first && hi > last {
			break
		}
		if lo >= first {
			out = append(out, lo)
		}
		if hi >= first && hi <= last {
			out = append(out, hi)
		}
	}
	return out
}

func (t *n88Type) NewItem(num int, slot Slot) Item {
	return &n88Item{ItemBase: newItemBase(num, slot)}
}

type n88Item struct {
	ItemBase
}

func (it *n88Item) Check(last *bool) bool {
	switch it.data[0] {
	case FBASIC_ENTRY_END:
		*last = true
		return true
	case FBASIC_ENTRY_DELETE:
		return true
	}
	return true
}

func (it *n88Item) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != FBASIC_ENTRY_END && it.data[0] != FBASIC_ENTRY_DELETE
	return it.used
}

func (it *n88Item) NameLayout() NameLayout {
	return NameLayout{NameLen: 6, ExtLen: 3, Pad: 0x20, Upper: true}
}

func (it *n88Item) GetFileNamePos() []byte {
	return it.data[0:6]
}

func (it *n88Item) GetFileExtPos() []byte {
	return it.data[6:9]
}

func (it *n88Item) GetFileAttr() FileAttr {
	v := int(it.data[9])
	var a Attr
	switch {
	case v&N88_ATTR_BASIC != 0:
		a = AttrBasic | AttrBinary
	case v&N88_ATTR_MACHINE != 0:
		a = AttrMachine | AttrBinary
	default:
		a = AttrData | AttrASCII
	}
	if v&N88_ATTR_READONLY != 0 {
		a |= AttrReadOnly
	}
	if v&N88_ATTR_VERIFY != 0 {
		a |= AttrLocked
	}
	return FileAttr{Attr: a, Origin: [3]int{v}, Format: "n88"}
}

func (it *n88Item) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("n88"); ok {
		it.data[9] = byte(o[0])
		return nil
	}
	if a.Attr.Has(AttrDirectory) || a.Attr.Has(AttrVolume) {
		return newError(ErrCannotEdit)
	}
	v := 0
	switch {
	case a.Attr.Has(AttrBasic) && !a.Attr.Has(AttrASCII):
		v = N88_ATTR_BASIC
	case a.Attr.Has(AttrMachine):
		v = N88_ATTR_MACHINE
	}
	if a.Attr.Has(AttrReadOnly) {
		v |= N88_ATTR_READONLY
	}
	if a.Attr.Has(AttrLocked) {
		v |= N88_ATTR_VERIFY
	}
	it.data[9] = byte(v)
	return nil
}

func (it *n88Item) GetStartGroup() int {
	return int(it.data[10])
}

func (it *n88Item) SetStartGroup(group int) {
	it.data[10] = byte(group)
}

func (it *n88Item) NeedCheckEofCode() bool {
	return true
}

func (it *n88Item) Delete(code byte) {
	it.data[0] = code
}

func (it *n88Item) ClearData() {
	fill(it.data, 0xff)
	fill(it.data[:11], 0)
}
