package basic

// Hitachi Level-3 BASIC: 16 byte entries on the directory track, two FAT
// copies after them, and a directory track that takes no part in group
// numbering.

type l3Type struct {
	*fat8Type
}

func newL3Type(b *TypeBase) Type {
	return &l3Type{fat8Type: newFat8Type(b)}
}

// AdditionalProcessOnFormatted marks the table entries past the last group.
func (t *l3Type) AdditionalProcessOnFormatted(vi VolumeInfo) error {
	for g := t.param.FatEndGroup + 1; g < t.fat.Size(); g++ {
		t.SetGroupNumber(g, t.param.GroupSystemCode)
	}
	return nil
}

// CheckFat also expects the entries past the last group to be marked.
func (t *l3Type) CheckFat(isFormatting bool) float64 {
	score := t.fat8Type.CheckFat(isFormatting)
	if isFormatting || score < 0 {
		return score
	}
	tail, miss := 0, 0
	for g := t.param.FatEndGroup + 1; g < t.fat.Size(); g++ {
		tail++
		if t.GetGroupNumber(g) != t.param.GroupSystemCode {
			miss++
		}
	}
	if miss > 0 {
		t.report.Warnf("%s: %d entries past the last group are not marked", t.param.Name, miss)
		score *= 1 - 0.5*float64(miss)/float64(tail)
	}
	return score
}

func (t *l3Type) NewItem(num int, slot Slot) Item {
	return &l3Item{ItemBase: newItemBase(num, slot)}
}

type l3Item struct {
	ItemBase
}

func (it *l3Item) Check(last *bool) bool {
	d := it.data
	switch d[0] {
	case FBASIC_ENTRY_END:
		*last = true
		return true
	case FBASIC_ENTRY_DELETE:
		return true
	}
	return d[11] <= FBASIC_TYPE_MACHINE && (d[12] == 0 || d[12] == FBASIC_FLAG_ON)
}

func (it *l3Item) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != FBASIC_ENTRY_END && it.data[0] != FBASIC_ENTRY_DELETE
	return it.used
}

func (it *l3Item) NameLayout() NameLayout {
	return NameLayout{NameLen: 8, ExtLen: 3, Pad: 0x20, Upper: true}
}

func (it *l3Item) GetFileNamePos() []byte {
	return it.data[0:8]
}

func (it *l3Item) GetFileExtPos() []byte {
	return it.data[8:11]
}

func (it *l3Item) GetFileAttr() FileAttr {
	d := it.data
	a := basicTypeAttr(int(d[11]))
	if d[12] == FBASIC_FLAG_ON {
		a |= AttrASCII
	} else {
		a |= AttrBinary
	}
	return FileAttr{Attr: a, Origin: [3]int{int(d[11]), int(d[12])}, Format: "l3"}
}

func (it *l3Item) SetFileAttr(a FileAttr) error {
	d := it.data
	if o, ok := a.OriginFor("l3"); ok {
		d[11], d[12] = byte(o[0]), byte(o[1])
		return nil
	}
	if a.Attr.Has(AttrDirectory) || a.Attr.Has(AttrVolume) {
		return newError(ErrCannotEdit)
	}
	d[11] = byte(basicTypeCode(a.Attr))
	d[12] = 0
	if a.Attr.Has(AttrASCII) {
		d[12] = FBASIC_FLAG_ON
	}
	return nil
}

func (it *l3Item) GetStartGroup() int {
	return int(it.data[14])
}

func (it *l3Item) SetStartGroup(group int) {
	it.data[14] = byte(group)
}

func (it *l3Item) NeedCheckEofCode() bool {
	return true
}

func (it *l3Item) Delete(code byte) {
	it.data[0] = code
}

func (it *l3Item) ClearData() {
	fill(it.data, 0)
}
