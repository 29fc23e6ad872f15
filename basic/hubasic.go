package basic

import "time"

// Hu-BASIC clusters are a whole track side. The first two clusters hold the
// IPL, the FAT and the directory and are chained to each other. On 2HD media
// a second table supplies the upper byte of each entry.

const (
	HU_MODE_BIN      = 0x01
	HU_MODE_BAS      = 0x02
	HU_MODE_ASC      = 0x04
	HU_MODE_HIDDEN   = 0x10
	HU_MODE_READONLY = 0x40
	HU_MODE_DIR      = 0x80
	HU_ENTRY_END     = 0xff
	HU_ENTRY_DELETE  = 0x00
)

type hubasicType struct {
	*fat8Type
}

func newHubasicType(b *TypeBase) Type {
	return &hubasicType{fat8Type: newFat8Type(b)}
}

// AssignFat binds the low table and, when configured, the high table.
func (t *hubasicType) AssignFat(isFormatting bool) float64 {
	score := t.TypeBase.AssignFat(isFormatting)
	if score < 0 {
		return score
	}
	pos := t.param.X("HiFatPos", -1)
	if pos < 0 {
		return score
	}
	s := t.SectorAt(pos)
	if s == nil {
		return -1.0
	}
	t.hi = NewFat([][]Window{{{Sector: s, Offset: 0, Size: s.Size()}}}, false)
	return score
}

func (t *hubasicType) AdditionalProcessOnFormatted(vi VolumeInfo) error {
	if t.hi != nil {
		t.hi.Fill(0)
	}
	t.SetGroupNumber(0, 1)
	t.SetGroupNumber(1, t.FinalCode(t.param.SectorsPerGroup))
	return nil
}

// CheckFat expects the first two groups to hold the boot chain.
func (t *hubasicType) CheckFat(isFormatting bool) float64 {
	score := t.fat8Type.CheckFat(isFormatting)
	if isFormatting || score < 0 {
		return score
	}
	if t.GetGroupNumber(0) != 1 || !t.IsFinalCode(t.GetGroupNumber(1)) {
		t.report.Warnf("%s: no boot chain in groups 0 and 1", t.param.Name)
		score /= 2
	}
	return score
}

func (t *hubasicType) NewItem(num int, slot Slot) Item {
	return &hubasicItem{ItemBase: newItemBase(num, slot)}
}

type hubasicItem struct {
	ItemBase
}

func (it *hubasicItem) Check(last *bool) bool {
	switch it.data[0] {
	case HU_ENTRY_END:
		*last = true
		return true
	case HU_ENTRY_DELETE:
		return true
	}
	return it.data[0]&(HU_MODE_BIN|HU_MODE_BAS|HU_MODE_ASC|HU_MODE_DIR) != 0
}

func (it *hubasicItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != HU_ENTRY_END && it.data[0] != HU_ENTRY_DELETE
	return it.used
}

func (it *hubasicItem) NameLayout() NameLayout {
	return NameLayout{NameLen: 13, ExtLen: 3, Pad: 0x20}
}

func (it *hubasicItem) GetFileNamePos() []byte {
	return it.data[1:14]
}

func (it *hubasicItem) GetFileExtPos() []byte {
	return it.data[14:17]
}

func (it *hubasicItem) GetFileAttr() FileAttr {
	m := int(it.data[0])
	var a Attr
	switch {
	case m&HU_MODE_DIR != 0:
		a = AttrDirectory
	case m&HU_MODE_BAS != 0:
		a = AttrBasic | AttrBinary
	case m&HU_MODE_ASC != 0:
		a = AttrData | AttrASCII
	default:
		a = AttrMachine | AttrBinary
	}
	if m&HU_MODE_HIDDEN != 0 {
		a |= AttrHidden
	}
	if m&HU_MODE_READONLY != 0 {
		a |= AttrReadOnly
	}
	return FileAttr{Attr: a, Origin: [3]int{m}, Format: "hubasic"}
}

func (it *hubasicItem) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("hubasic"); ok {
		it.data[0] = byte(o[0])
		return nil
	}
	var m byte
	switch {
	case a.Attr.Has(AttrDirectory):
		return newError(ErrCannotEdit)
	case a.Attr.Has(AttrBasic) && !a.Attr.Has(AttrASCII):
		m = HU_MODE_BAS
	case a.Attr.Has(AttrASCII), a.Attr.Has(AttrData):
		m = HU_MODE_ASC
	default:
		m = HU_MODE_BIN
	}
	if a.Attr.Has(AttrHidden) {
		m |= HU_MODE_HIDDEN
	}
	if a.Attr.Has(AttrReadOnly) {
		m |= HU_MODE_READONLY
	}
	it.data[0] = m
	return nil
}

func (it *hubasicItem) IsVisible() bool {
	return it.data[0]&HU_MODE_HIDDEN == 0
}

func (it *hubasicItem) GetFileSize() int {
	return le16(it.data[18:20])
}

func (it *hubasicItem) SetFileSize(size int) {
	putLE16(it.data[18:20], size)
}

func (it *hubasicItem) MaxFileSize() int {
	return 0xffff
}

func (it *hubasicItem) GetLoadAddress() int {
	return le16(it.data[20:22])
}

func (it *hubasicItem) GetExecAddress() int {
	return le16(it.data[22:24])
}

func (it *hubasicItem) SetLoadAddress(addr int) {
	putLE16(it.data[20:22], addr)
}

func (it *hubasicItem) SetExecAddress(addr int) {
	putLE16(it.data[22:24], addr)
}

// GetFileDate decodes the BCD stamp: year, month, day, hour, minute, second.
func (it *hubasicItem) GetFileDate() (time.Time, bool) {
	d := it.data[24:30]
	mon := fromBCD(d[1])
	day := fromBCD(d[2])
	if mon < 1 || mon > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year := fromBCD(d[0]) + 1900
	if year < 1980 {
		year += 100
	}
	return time.Date(year, time.Month(mon), day, fromBCD(d[3]), fromBCD(d[4]), fromBCD(d[5]), 0, time.Local), true
}

func (it *hubasicItem) SetFileDate(tm time.Time) {
	d := it.data[24:30]
	d[0] = toBCD(tm.Year() % 100)
	d[1] = toBCD(int(tm.Month()))
	d[2] = toBCD(tm.Day())
	d[3] = toBCD(tm.Hour())
	d[4] = toBCD(tm.Minute())
	d[5] = toBCD(tm.Second())
}

func (it *hubasicItem) GetStartGroup() int {
	return le16(it.data[30:32])
}

func (it *hubasicItem) SetStartGroup(group int) {
	putLE16(it.data[30:32], group)
}

func (it *hubasicItem) Delete(code byte) {
	it.data[0] = code
}

func (it *hubasicItem) ClearData() {
	fill(it.data, 0)
	fill(it.data[1:17], 0x20)
}
