package basic

import "time"

// TRSDOS keeps everything on the directory track: the granule allocation
// table, the hash index table and the primary directory entries. Files
// are up to five extents of consecutive granules.

const (
	TRS_GAT_SECTOR      = 0
	TRS_HIT_SECTOR      = 1
	TRS_DIR_FIRST       = 2
	TRS_ENTRY_SIZE      = 48
	TRS_ENTRIES         = 5
	TRS_GAT_NAME        = 0xd0
	TRS_GAT_DATE        = 0xd8
	TRS_BOOT_DIR        = 2
	TRS_ATTR_XDE        = 0x80
	TRS_ATTR_SYS        = 0x40
	TRS_ATTR_USED       = 0x10
	TRS_ATTR_INVISIBLE  = 0x08
	TRS_PROT_MASK       = 0x07
	TRS_PROT_READ       = 5
	TRS_ENTRY_MONTH     = 1
	TRS_ENTRY_YEAR      = 2
	TRS_ENTRY_EOF       = 3
	TRS_ENTRY_LRL       = 4
	TRS_ENTRY_NAME      = 5
	TRS_ENTRY_EXT       = 13
	TRS_ENTRY_ERN       = 20
	TRS_ENTRY_EXTENTS   = 22
	TRS_MAX_EXTENTS     = 5
	TRS_MAX_EXTENT_LEN  = 32
	TRS_EXTENT_END      = 0xff
	TRS_GRANULE_FREE    = 0xfc
	TRS_GRANULES        = 2
	TRS_SECTORS_PER_GRN = 5
)

type trsdosType struct {
	*TypeBase
	dirTrack int
}

func newTrsdosType(b *TypeBase) Type {
	return &trsdosType{TypeBase: b, dirTrack: b.param.X("DirTrack", 17)}
}

func (t *trsdosType) dirSector(n int) int {
	return t.GetSectorPosFromNum(t.dirTrack, 0, t.param.SectorBase+n)
}

func (t *trsdosType) hit() []byte {
	s := t.SectorAt(t.dirSector(TRS_HIT_SECTOR))
	if s == nil {
		return nil
	}
	return s.Data()
}

func (t *trsdosType) ParseParamOnDisk(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	boot := t.SectorAt(0)
	if boot == nil || int(boot.Data()[TRS_BOOT_DIR]) != t.dirTrack {
		return -1.0
	}
	gat := t.SectorAt(t.dirSector(TRS_GAT_SECTOR))
	if gat == nil || gat.Data()[t.dirTrack]&0x03 != 0x03 {
		return -1.0
	}
	return 1.0
}

func (t *trsdosType) CheckFat(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	bad := 0
	for tr := 0; tr < t.param.Tracks; tr++ {
		if t.fat.Get(tr)&TRS_GRANULE_FREE != TRS_GRANULE_FREE {
			bad++
		}
	}
	if bad == 0 {
		return 1.0
	}
	return 1.0 - float64(bad)/float64(t.param.Tracks)
}

func (t *trsdosType) GetGroupNumber(group int) int {
	if t.IsUsedGroupNumber(group) {
		return t.param.GroupSystemCode
	}
	return t.param.GroupUnusedCode
}

func (t *trsdosType) SetGroupNumber(group, value int) {
	t.fat.SetBit(group/TRS_GRANULES*8+group%TRS_GRANULES, value != t.param.GroupUnusedCode, false)
}

func (t *trsdosType) IsUsedGroupNumber(group int) bool {
	return t.fat.GetBit(group/TRS_GRANULES*8+group%TRS_GRANULES, false)
}

func (t *trsdosType) GetNextGroupNumber(group int, sectorPos int) int {
	return InvalidGroupNumber
}

func (t *trsdosType) GetEmptyGroupNumber() int {
	return firstFreeFrom(t, 0)
}

func (t *trsdosType) GetNextEmptyGroupNumber(curr int) int {
	return firstFreeFrom(t, curr+1)
}

// DirSlots lists the primary entries sector by sector.
func (t *trsdosType) DirSlots(dir Item) ([]Slot, error) {
	if dir != nil {
		return nil, newError(ErrNotDirectory)
	}
	var out []Slot
	for n := TRS_DIR_FIRST; n < t.param.SectorsPerTrack; n++ {
		pos := t.dirSector(n)
		s := t.SectorAt(pos)
		if s == nil {
			return out, errSector(ErrNoSector, t.dirTrack, 0, n)
		}
		for e := 0; e < TRS_ENTRIES; e++ {
			out = append(out, Slot{Parts: []Window{{Sector: s, Offset: e * TRS_ENTRY_SIZE, Size: TRS_ENTRY_SIZE}}, Pos: pos, Parent: InvalidGroupNumber})
		}
	}
	return out, nil
}

// hitIndex returns the position in the hash table of the entry in slot.
func (t *trsdosType) hitIndex(s Slot) int {
	_, _, sc := t.GetNumFromSectorPos(s.Pos)
	return (s.Parts[0].Offset/TRS_ENTRY_SIZE)<<5 | (sc - t.param.SectorBase - TRS_DIR_FIRST)
}

// nameHash is the hash TRSDOS files under the HIT: the eleven byte name
// folded with an eight bit rotate.
func nameHash(name []byte) byte {
	var h byte
	for _, c := range name {
		h ^= c
		h = h<<1 | h>>7
	}
	if h == 0 {
		h = 1
	}
	return h
}

func (t *trsdosType) setHash(item Item, v byte) {
	h := t.hit()
	h[t.hitIndex(item.Base().Slot())] = v
	t.SectorAt(t.dirSector(TRS_HIT_SECTOR)).SetModify()
}

func (t *trsdosType) entryHash(item Item) byte {
	return nameHash(item.Base().Data()[TRS_ENTRY_NAME : TRS_ENTRY_EXT+3])
}

func (t *trsdosType) AdditionalProcessOnSaved(item Item, parent Item) error {
	t.setHash(item, t.entryHash(item))
	return nil
}

func (t *trsdosType) AdditionalProcessOnDeleted(item Item, parent Item) error {
	t.setHash(item, 0)
	return nil
}

func (t *trsdosType) AdditionalProcessOnRenamed(item Item, parent Item) error {
	t.setHash(item, t.entryHash(item))
	return nil
}

// GetUnitGroups expands the extents of item.
func (t *trsdosType) GetUnitGroups(item Item) (GroupChain, error) {

	chain := GroupChain{SizePerGroup: t.param.GroupSize()}
	d := item.Base().Data()
	var groups []int
	for e := 0; e < TRS_MAX_EXTENTS; e++ {
		x := d[TRS_ENTRY_EXTENTS+2*e:]
		if x[0] == TRS_EXTENT_END || x[0] == 0xfe {
			break
		}
		tr := int(x[0])
		start := tr*TRS_GRANULES + int(x[1]>>5)
		n := int(x[1]&0x1f) + 1
		if tr >= t.param.Tracks || start+n-1 > t.param.FatEndGroup {
			return chain, errGroup(ErrBrokenChain, start)
		}
		for g := start; g < start+n; g++ {
			groups = append(groups, g)
		}
	}
	for i, g := range groups {
		next := InvalidGroupNumber
		if i+1 < len(groups) {
			next = groups[i+1]
		}
		chain.Add(t.GetNumsFromGroup(g, next, -1)...)
	}
	if sz, ok := item.(Sizer); ok {
		chain.Size = sz.GetFileSize()
	}
	chain.Recalc()
	return chain, nil
}

// CalcFileCapacity caps groups at what the extents of one entry can name.
func (t *trsdosType) CalcFileCapacity(groups int) int {
	if max := TRS_MAX_EXTENTS * TRS_MAX_EXTENT_LEN; groups > max {
		groups = max
	}
	return groups * t.param.GroupSize()
}

// AllocateUnitGroups takes at most five runs of up to 32 granules.
func (t *trsdosType) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {

	if mode != AllocNew {
		return GroupChain{}, newError(ErrUnsupported)
	}
	gsize := t.param.GroupSize()
	need := (size + gsize - 1) / gsize
	runs := pickRuns(scanRuns(t), need, TRS_MAX_EXTENTS, TRS_MAX_EXTENT_LEN)
	if need > 0 && runs == nil {
		return GroupChain{}, newError(ErrDiskFull)
	}

	d := item.Base().Data()
	fill(d[TRS_ENTRY_EXTENTS:TRS_ENTRY_EXTENTS+2*TRS_MAX_EXTENTS+2], TRS_EXTENT_END)
	var groups []int
	for e, r := range runs {
		x := d[TRS_ENTRY_EXTENTS+2*e:]
		x[0] = byte(r.Start / TRS_GRANULES)
		x[1] = byte(r.Start%TRS_GRANULES)<<5 | byte(r.Count-1)
		for g := r.Start; g < r.Start+r.Count; g++ {
			t.SetGroupNumber(g, t.param.GroupSystemCode)
			groups = append(groups, g)
		}
	}

	chain := GroupChain{SizePerGroup: gsize}
	for i, g := range groups {
		next := InvalidGroupNumber
		if i+1 < len(groups) {
			next = groups[i+1]
		}
		chain.Add(t.GetNumsFromGroup(g, next, -1)...)
	}
	chain.Size = size
	chain.Recalc()
	return chain, nil
}

func (t *trsdosType) AdditionalProcessOnFormatted(vi VolumeInfo) error {

	p := &t.param
	for i := 0; i < t.fat.Size(); i++ {
		v := TRS_GRANULE_FREE
		if i >= p.Tracks {
			v = 0xff
		}
		t.fat.Set(i, v)
	}
	for _, g := range p.ReservedGroups {
		t.SetGroupNumber(g, p.GroupSystemCode)
	}
	for g := t.dirTrack * TRS_GRANULES; g < (t.dirTrack+1)*TRS_GRANULES; g++ {
		t.SetGroupNumber(g, p.GroupSystemCode)
	}

	boot := t.SectorAt(0)
	boot.Data()[TRS_BOOT_DIR] = byte(t.dirTrack)
	boot.SetModify()

	for n := TRS_HIT_SECTOR; n < p.SectorsPerTrack; n++ {
		s := t.SectorAt(t.dirSector(n))
		s.Fill(0)
		s.SetModify()
	}

	gat := t.SectorAt(t.dirSector(TRS_GAT_SECTOR))
	date := vi.Date.Format("01/02/06")
	copy(gat.Data()[TRS_GAT_DATE:TRS_GAT_DATE+8], date)
	gat.SetModify()
	name := vi.Name
	if name == "" {
		name = "TRSDOS"
	}
	return t.SetVolumeName(name)
}

func (t *trsdosType) GetVolumeName() string {
	gat := t.SectorAt(t.dirSector(TRS_GAT_SECTOR)).Data()
	return FromNativeFileName(t.cs, gat[TRS_GAT_NAME:TRS_GAT_NAME+8], NameLayout{Pad: 0x20})
}

func (t *trsdosType) SetVolumeName(name string) error {
	b, err := ToNativeFileName(t.cs, name, 8, NameLayout{Pad: 0x20, Upper: true})
	if err != nil {
		return err
	}
	gat := t.SectorAt(t.dirSector(TRS_GAT_SECTOR))
	copy(gat.Data()[TRS_GAT_NAME:], b)
	gat.SetModify()
	return nil
}

func (t *trsdosType) NewItem(num int, slot Slot) Item {
	return &trsdosItem{ItemBase: newItemBase(num, slot)}
}

type trsdosItem struct {
	ItemBase
}

func (it *trsdosItem) Check(last *bool) bool {
	a := it.data[0]
	if a&TRS_ATTR_USED == 0 {
		return true
	}
	if a&TRS_ATTR_XDE != 0 {
		return true
	}
	c := it.data[TRS_ENTRY_NAME]
	return c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func (it *trsdosItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0]&TRS_ATTR_USED != 0
	return it.used
}

// IsVisible hides invisible files and extension entries.
func (it *trsdosItem) IsVisible() bool {
	return it.data[0]&(TRS_ATTR_INVISIBLE|TRS_ATTR_XDE) == 0
}

func (it *trsdosItem) NameLayout() NameLayout {
	return NameLayout{NameLen: 8, ExtLen: 3, Pad: 0x20, Upper: true}
}

func (it *trsdosItem) GetFileNamePos() []byte {
	return it.data[TRS_ENTRY_NAME:TRS_ENTRY_EXT]
}

func (it *trsdosItem) GetFileExtPos() []byte {
	return it.data[TRS_ENTRY_EXT : TRS_ENTRY_EXT+3]
}

func (it *trsdosItem) GetFileAttr() FileAttr {
	v := it.data[0]
	var a Attr
	switch string(trimRight(it.data[TRS_ENTRY_EXT:TRS_ENTRY_EXT+3], 0x20)) {
	case "BAS":
		a = AttrBasic | AttrBinary
	case "CMD", "CIM":
		a = AttrMachine | AttrBinary
	case "TXT", "ASC", "DAT":
		a = AttrData | AttrASCII
	default:
		a = AttrData | AttrBinary
	}
	if v&TRS_ATTR_SYS != 0 {
		a |= AttrSystem
	}
	if v&TRS_ATTR_INVISIBLE != 0 {
		a |= AttrHidden
	}
	if int(v&TRS_PROT_MASK) >= TRS_PROT_READ {
		a |= AttrReadOnly
	}
	return FileAttr{Attr: a, Origin: [3]int{int(v)}, Format: "trsdos"}
}

func (it *trsdosItem) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("trsdos"); ok {
		it.data[0] = byte(o[0]) | TRS_ATTR_USED
		return nil
	}
	if a.Attr.Has(AttrDirectory) {
		return newError(ErrCannotEdit)
	}
	v := byte(TRS_ATTR_USED)
	if a.Attr.Has(AttrSystem) {
		v |= TRS_ATTR_SYS
	}
	if a.Attr.Has(AttrHidden) {
		v |= TRS_ATTR_INVISIBLE
	}
	if a.Attr.Has(AttrReadOnly) {
		v |= TRS_PROT_READ
	}
	it.data[0] = v
	return nil
}

// GetFileSize counts whole sectors up to the ending record and the bytes
// used in the last one.
func (it *trsdosItem) GetFileSize() int {
	ern := le16(it.data[TRS_ENTRY_ERN:])
	if ern == 0 {
		return 0
	}
	eof := int(it.data[TRS_ENTRY_EOF])
	if eof == 0 {
		eof = 256
	}
	return (ern-1)*256 + eof
}

func (it *trsdosItem) SetFileSize(size int) {
	putLE16(it.data[TRS_ENTRY_ERN:], (size+255)/256)
	it.data[TRS_ENTRY_EOF] = byte(size % 256)
}

func (it *trsdosItem) MaxFileSize() int {
	return 0xffff * 256
}

// GetFileDate has month and year only.
func (it *trsdosItem) GetFileDate() (time.Time, bool) {
	m := int(it.data[TRS_ENTRY_MONTH] & 0x0f)
	if m < 1 || m > 12 {
		return time.Time{}, false
	}
	return time.Date(1900+int(it.data[TRS_ENTRY_YEAR]), time.Month(m), 1, 0, 0, 0, 0, time.Local), true
}

func (it *trsdosItem) SetFileDate(tm time.Time) {
	it.data[TRS_ENTRY_MONTH] = byte(tm.Month())
	it.data[TRS_ENTRY_YEAR] = byte(tm.Year() - 1900)
}

func (it *trsdosItem) GetStartGroup() int {
	x := it.data[TRS_ENTRY_EXTENTS:]
	if x[0] == TRS_EXTENT_END {
		return InvalidGroupNumber
	}
	return int(x[0])*TRS_GRANULES + int(x[1]>>5)
}

func (it *trsdosItem) SetStartGroup(group int) {}

func (it *trsdosItem) Delete(code byte) {
	it.data[0] &^= TRS_ATTR_USED
}

func (it *trsdosItem) ClearData() {
	fill(it.data, 0)
	fill(it.data[TRS_ENTRY_NAME:TRS_ENTRY_EXT+3], 0x20)
	fill(it.data[TRS_ENTRY_EXTENTS:], TRS_EXTENT_END)
}
