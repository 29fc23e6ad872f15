package basic

import "time"

// S-DOS splits each data sector into two groups chained through a 12 bit
// table. Directory entries are 24 bytes long, so some of them straddle two
// sectors. Track 0 holds the identity sector, the table and the directory.

const (
	SDOS_ID            = "S-DOS"
	SDOS_ID_GROUPS     = 8
	SDOS_ID_NAME       = 16
	SDOS_NAME_LEN      = 16
	SDOS_ENTRY_END     = 0x00
	SDOS_ENTRY_DELETE  = 0xe5
	SDOS_ATTR_READONLY = 0x01
	SDOS_ATTR_HIDDEN   = 0x02
	SDOS_ATTR_ASCII    = 0x10
	SDOS_ATTR_BASIC    = 0x20
	SDOS_ATTR_MACHINE  = 0x40
)

type sdosType struct {
	*TypeBase
}

func newSdosType(b *TypeBase) Type {
	return &sdosType{TypeBase: b}
}

func (t *sdosType) groups() int {
	return t.param.FatEndGroup - t.param.FirstGroup + 1
}

func (t *sdosType) ParseParamOnDisk(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	s := t.SectorAt(0)
	if s == nil || !hasPrefix(s.Data(), SDOS_ID) {
		return -1.0
	}
	if n := le16(s.Data()[SDOS_ID_GROUPS:]); n != t.groups() {
		t.report.Warnf("%s: identity sector counts %d groups", t.param.Name, n)
		return 0.5
	}
	return 1.0
}

// CheckFat scores the table the way the byte tables are scored, and looks
// for the media code in entry 0.
func (t *sdosType) CheckFat(isFormatting bool) float64 {

	if isFormatting {
		return 1.0
	}
	p := &t.param
	if t.fat == nil || t.fat.Size() < (p.FatEndGroup+1)*3/2 {
		return -1.0
	}

	bad := 0
	target := make([]bool, p.FatEndGroup+1)
	for g := p.FirstGroup; g <= p.FatEndGroup; g++ {
		v := t.GetGroupNumber(g)
		switch {
		case v == p.GroupUnusedCode, v == p.GroupSystemCode, t.IsFinalCode(v):
		case v >= p.FirstGroup && v <= p.FatEndGroup && v != g && !target[v]:
			target[v] = true
		default:
			bad++
		}
	}
	score := 1.0 - 2.0*float64(bad)/float64(t.groups())
	if score < 0 {
		t.report.Errorf("%s: %d of %d table entries are invalid", p.Name, bad, t.groups())
		return -1.0
	}
	if t.fat.Get12(0) != p.MediaID {
		t.report.Warnf("%s: media code %03x differs from %03x", p.Name, t.fat.Get12(0), p.MediaID)
		score /= 2
	}
	return score
}

func (t *sdosType) GetGroupNumber(group int) int {
	if t.fat == nil || group < 0 || group > t.param.FatEndGroup {
		return -1
	}
	return t.fat.Get12(group)
}

func (t *sdosType) SetGroupNumber(group, value int) {
	if t.fat == nil || group < 0 || group > t.param.FatEndGroup {
		return
	}
	t.fat.Set12(group, value)
}

func (t *sdosType) IsUsedGroupNumber(group int) bool {
	v := t.GetGroupNumber(group)
	return v >= 0 && v != t.param.GroupUnusedCode
}

func (t *sdosType) GetNextGroupNumber(group int, sectorPos int) int {
	v := t.GetGroupNumber(group)
	if v < t.param.FirstGroup || v > t.param.FatEndGroup {
		return InvalidGroupNumber
	}
	return v
}

// FinalCode ignores sectors; a group never spans more than part of one.
func (t *sdosType) FinalCode(sectors int) int {
	return t.param.GroupFinalCode
}

func (t *sdosType) IsFinalCode(v int) bool {
	return v == t.param.GroupFinalCode
}

func (t *sdosType) SectorsInFinal(v int) int {
	return 1
}

func (t *sdosType) GetEmptyGroupNumber() int {
	return firstFreeFrom(t, t.param.FirstGroup)
}

func (t *sdosType) GetNextEmptyGroupNumber(curr int) int {
	return firstFreeFrom(t, curr+1)
}

func (t *sdosType) AdditionalProcessOnFormatted(vi VolumeInfo) error {
	s := t.SectorAt(0)
	if s == nil {
		return errSector(ErrNoSector, 0, 0, t.param.SectorBase)
	}
	d := s.Data()
	fill(d, 0)
	copy(d, SDOS_ID)
	putLE16(d[SDOS_ID_GROUPS:], t.groups())
	s.SetModify()

	t.fat.Set12(0, t.param.MediaID)
	t.fat.Set12(1, t.param.GroupFinalCode)
	return t.SetVolumeName(vi.Name)
}

func (t *sdosType) GetVolumeName() string {
	s := t.SectorAt(0)
	if s == nil {
		return ""
	}
	return FromNativeFileName(t.cs, s.Data()[SDOS_ID_NAME:SDOS_ID_NAME+SDOS_NAME_LEN], NameLayout{Pad: 0x20})
}

func (t *sdosType) SetVolumeName(name string) error {
	b, err := ToNativeFileName(t.cs, name, SDOS_NAME_LEN, NameLayout{Pad: 0x20, Upper: true})
	if err != nil {
		return err
	}
	s := t.SectorAt(0)
	if s == nil {
		return newError(ErrNoSector)
	}
	copy(s.Data()[SDOS_ID_NAME:], b)
	s.SetModify()
	return nil
}

func (t *sdosType) NewItem(num int, slot Slot) Item {
	return &sdosItem{ItemBase: newItemBase(num, slot)}
}

type sdosItem struct {
	ItemBase
}

func (it *sdosItem) Check(last *bool) bool {
	d := it.data
	switch d[0] {
	case SDOS_ENTRY_END:
		*last = true
		return true
	case SDOS_ENTRY_DELETE:
		return true
	}
	return d[0] >= 0x20 && d[11]&0x8c == 0 && d[17] == 0
}

func (it *sdosItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != SDOS_ENTRY_END && it.data[0] != SDOS_ENTRY_DELETE
	return it.used
}

func (it *sdosItem) NameLayout() NameLayout {
	return NameLayout{NameLen: 8, ExtLen: 3, Pad: 0x20, Upper: true}
}

func (it *sdosItem) GetFileNamePos() []byte {
	return it.data[0:8]
}

func (it *sdosItem) GetFileExtPos() []byte {
	return it.data[8:11]
}

func (it *sdosItem) GetFileAttr() FileAttr {
	v := it.data[11]
	var a Attr
	switch {
	case v&SDOS_ATTR_BASIC != 0:
		a = AttrBasic
	case v&SDOS_ATTR_MACHINE != 0:
		a = AttrMachine
	default:
		a = AttrData
	}
	if v&SDOS_ATTR_ASCII != 0 {
		a |= AttrASCII
	} else {
		a |= AttrBinary
	}
	if v&SDOS_ATTR_READONLY != 0 {
		a |= AttrReadOnly
	}
	if v&SDOS_ATTR_HIDDEN != 0 {
		a |= AttrHidden
	}
	return FileAttr{Attr: a, Origin: [3]int{int(v)}, Format: "sdos"}
}

func (it *sdosItem) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("sdos"); ok {
		it.data[11] = byte(o[0])
		return nil
	}
	if a.Attr.Has(AttrDirectory) || a.Attr.Has(AttrVolume) {
		return newError(ErrCannotEdit)
	}
	var v byte
	switch {
	case a.Attr.Has(AttrBasic):
		v = SDOS_ATTR_BASIC
	case a.Attr.Has(AttrMachine):
		v = SDOS_ATTR_MACHINE
	}
	if a.Attr.Has(AttrASCII) {
		v |= SDOS_ATTR_ASCII
	}
	if a.Attr.Has(AttrReadOnly) {
		v |= SDOS_ATTR_READONLY
	}
	if a.Attr.Has(AttrHidden) {
		v |= SDOS_ATTR_HIDDEN
	}
	it.data[11] = v
	return nil
}

func (it *sdosItem) GetStartGroup() int {
	return le16(it.data[12:14])
}

func (it *sdosItem) SetStartGroup(group int) {
	putLE16(it.data[12:14], group)
}

func (it *sdosItem) GetFileSize() int {
	return le24(it.data[14:17])
}

func (it *sdosItem) SetFileSize(size int) {
	putLE24(it.data[14:17], size)
}

func (it *sdosItem) MaxFileSize() int {
	return 0xffffff
}

func (it *sdosItem) GetLoadAddress() int {
	return le16(it.data[18:20])
}

func (it *sdosItem) GetExecAddress() int {
	return le16(it.data[20:22])
}

func (it *sdosItem) SetLoadAddress(addr int) {
	putLE16(it.data[18:20], addr)
}

func (it *sdosItem) SetExecAddress(addr int) {
	putLE16(it.data[20:22], addr)
}

func (it *sdosItem) GetFileDate() (time.Time, bool) {
	return dosDate(le16(it.data[22:24]), 0)
}

func (it *sdosItem) SetFileDate(tm time.Time) {
	dv, _ := packDosDate(tm)
	putLE16(it.data[22:24], dv)
}

func (it *sdosItem) Delete(code byte) {
	it.data[0] = code
}

func (it *sdosItem) ClearData() {
	fill(it.data, 0)
	fill(it.data[0:11], 0x20)
}
