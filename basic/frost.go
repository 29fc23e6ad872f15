package basic

import "time"

// Frost-DOS keeps its identity sector, a one bit per group map and the
// directory on a management track in the middle of the disk. A file is a
// single run of groups, placed as close to the management track as a free
// run allows.

const (
	FROST_ID           = "FROSTDOS"
	FROST_ID_GROUPS    = 16
	FROST_ID_TRACK     = 18
	FROST_ID_NAME      = 32
	FROST_NAME_LEN     = 16
	FROST_ENTRY_END    = 0x00
	FROST_ENTRY_DELETE = 0xe5
	FROST_NO_GROUP     = 0xffff

	FROST_ATTR_READONLY = 0x01
	FROST_ATTR_HIDDEN   = 0x02
	FROST_ATTR_SYSTEM   = 0x04
	FROST_ATTR_ASCII    = 0x10
	FROST_ATTR_BASIC    = 0x20
	FROST_ATTR_MACHINE  = 0x40
)

type frostType struct {
	*TypeBase
	order []int
}

func newFrostType(b *TypeBase) Type {
	t := &frostType{TypeBase: b}
	t.order = distanceOrder(b, b.param.ManagedTrack, true)
	return t
}

func (t *frostType) idPos() int {
	return t.param.X("IDPos", 0)
}

// managed returns the first and last group on the management track.
func (t *frostType) managed() (int, int) {
	p := &t.param
	first := t.GetGroupFromSectorPos(t.trackPos[p.ManagedTrack], 0)
	last := t.GetGroupFromSectorPos(t.trackPos[p.ManagedTrack+1]-1, 0)
	return first, last
}

func (t *frostType) ParseParamOnDisk(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	s := t.SectorAt(t.idPos())
	if s == nil || !hasPrefix(s.Data(), FROST_ID) {
		return -1.0
	}
	if n := le16(s.Data()[FROST_ID_GROUPS:]); n != t.param.FatEndGroup+1 {
		t.report.Warnf("%s: identity sector counts %d groups", t.param.Name, n)
		return 0.5
	}
	return 1.0
}

// CheckFat expects the boot and management groups to be taken.
func (t *frostType) CheckFat(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	p := &t.param
	if t.fat == nil || t.fat.Size()*8 <= p.FatEndGroup {
		return -1.0
	}
	for _, g := range p.ReservedGroups {
		if !t.IsUsedGroupNumber(g) {
			t.report.Warnf("%s: reserved group %d is free", p.Name, g)
			return 0.5
		}
	}
	return 1.0
}

func (t *frostType) GetGroupNumber(group int) int {
	if t.fat == nil || group < t.param.FirstGroup || group > t.param.FatEndGroup {
		return -1
	}
	if t.fat.GetBit(group, true) {
		return t.param.GroupSystemCode
	}
	return t.param.GroupUnusedCode
}

func (t *frostType) SetGroupNumber(group, value int) {
	if t.fat == nil || group < t.param.FirstGroup || group > t.param.FatEndGroup {
		return
	}
	t.fat.SetBit(group, value != t.param.GroupUnusedCode, true)
}

func (t *frostType) IsUsedGroupNumber(group int) bool {
	return t.GetGroupNumber(group) != t.param.GroupUnusedCode
}

func (t *frostType) GetNextGroupNumber(group int, sectorPos int) int {
	return InvalidGroupNumber
}

func (t *frostType) GetEmptyGroupNumber() int {
	return firstFreeInOrder(t, t.order)
}

func (t *frostType) GetNextEmptyGroupNumber(curr int) int {
	return firstFreeInOrder(t, t.order)
}

// nearestRun places need groups in the free run closest to the management
// track. A run below it is used from its top end, a run above from its
// bottom end. On equal distance the lower run wins.
func (t *frostType) nearestRun(need int) (Run, bool) {
	lo, hi := t.managed()
	best, dist := Run{}, -1
	for _, r := range scanRuns(t) {
		if r.Count < need {
			continue
		}
		var start, d int
		if r.Start+r.Count <= lo {
			start = r.Start + r.Count - need
			d = lo - (start + need)
		} else {
			start = r.Start
			d = start - hi - 1
		}
		if d < 0 {
			d = 0
		}
		if dist < 0 || d < dist {
			best, dist = Run{Start: start, Count: need}, d
		}
	}
	return best, dist >= 0
}

// CalcFileCapacity is bounded by the longest free run.
func (t *frostType) CalcFileCapacity(groups int) int {
	longest := 0
	for _, r := range scanRuns(t) {
		if r.Count > longest {
			longest = r.Count
		}
	}
	if longest < groups {
		groups = longest
	}
	return groups * t.param.GroupSize()
}

func (t *frostType) runChain(start, count int) GroupChain {
	chain := GroupChain{SizePerGroup: t.param.GroupSize()}
	for g := start; g < start+count; g++ {
		next := g + 1
		if g == start+count-1 {
			next = InvalidGroupNumber
		}
		chain.Add(t.GetNumsFromGroup(g, next, -1)...)
	}
	chain.Size = count * t.param.GroupSize()
	chain.Recalc()
	return chain
}

func (t *frostType) GetUnitGroups(item Item) (GroupChain, error) {
	it, ok := item.(*frostItem)
	if !ok {
		return GroupChain{}, newError(ErrUnsupported)
	}
	start, count := it.GetStartGroup(), it.groupCount()
	if count == 0 {
		return GroupChain{SizePerGroup: t.param.GroupSize()}, nil
	}
	if start < t.param.FirstGroup || start+count-1 > t.param.FatEndGroup {
		return GroupChain{}, errGroup(ErrBrokenChain, start)
	}
	return t.runChain(start, count), nil
}

func (t *frostType) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {

	it, ok := item.(*frostItem)
	if !ok || mode != AllocNew {
		return GroupChain{}, newError(ErrUnsupported)
	}
	gsize := t.param.GroupSize()
	need := (size + gsize - 1) / gsize
	if need == 0 {
		it.SetStartGroup(InvalidGroupNumber)
		it.setGroupCount(0)
		return GroupChain{SizePerGroup: gsize}, nil
	}

	r, ok := t.nearestRun(need)
	if !ok {
		return GroupChain{}, newError(ErrDiskFull)
	}
	for g := r.Start; g < r.Start+r.Count; g++ {
		t.SetGroupNumber(g, t.param.GroupSystemCode)
	}
	it.SetStartGroup(r.Start)
	it.setGroupCount(r.Count)

	chain := t.runChain(r.Start, r.Count)
	chain.Size = size
	chain.Recalc()
	return chain, nil
}

func (t *frostType) AdditionalProcessOnFormatted(vi VolumeInfo) error {
	s := t.SectorAt(t.idPos())
	if s == nil {
		return errSector(ErrNoSector, t.param.ManagedTrack, 0, t.param.SectorBase)
	}
	d := s.Data()
	fill(d, 0)
	copy(d, FROST_ID)
	putLE16(d[FROST_ID_GROUPS:], t.param.FatEndGroup+1)
	d[FROST_ID_TRACK] = byte(t.param.ManagedTrack)
	s.SetModify()
	return t.SetVolumeName(vi.Name)
}

func (t *frostType) GetVolumeName() string {
	s := t.SectorAt(t.idPos())
	if s == nil {
		return ""
	}
	return FromNativeFileName(t.cs, s.Data()[FROST_ID_NAME:FROST_ID_NAME+FROST_NAME_LEN], NameLayout{Pad: 0x20})
}

func (t *frostType) SetVolumeName(name string) error {
	b, err := ToNativeFileName(t.cs, name, FROST_NAME_LEN, NameLayout{Pad: 0x20, Upper: true})
	if err != nil {
		return err
	}
	s := t.SectorAt(t.idPos())
	if s == nil {
		return newError(ErrNoSector)
	}
	copy(s.Data()[FROST_ID_NAME:], b)
	s.SetModify()
	return nil
}

func (t *frostType) NewItem(num int, slot Slot) Item {
	return &frostItem{ItemBase: newItemBase(num, slot)}
}

type frostItem struct {
	ItemBase
}

func (it *frostItem) Check(last *bool) bool {
	d := it.data
	switch d[0] {
	case FROST_ENTRY_END:
		*last = true
		return true
	case FROST_ENTRY_DELETE:
		return true
	}
	return d[0] >= 0x20 && d[11]&0x88 == 0
}

func (it *frostItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != FROST_ENTRY_END && it.data[0] != FROST_ENTRY_DELETE
	return it.used
}

func (it *frostItem) NameLayout() NameLayout {
	return NameLayout{NameLen: 8, ExtLen: 3, Pad: 0x20, Upper: true}
}

func (it *frostItem) GetFileNamePos() []byte {
	return it.data[0:8]
}

func (it *frostItem) GetFileExtPos() []byte {
	return it.data[8:11]
}

var frostAttrMap = []struct {
	bit  byte
	attr Attr
}{
	{FROST_ATTR_READONLY, AttrReadOnly},
	{FROST_ATTR_HIDDEN, AttrHidden},
	{FROST_ATTR_SYSTEM, AttrSystem},
	{FROST_ATTR_ASCII, AttrASCII},
	{FROST_ATTR_BASIC, AttrBasic},
	{FROST_ATTR_MACHINE, AttrMachine},
}

func (it *frostItem) GetFileAttr() FileAttr {
	v := it.data[11]
	var a Attr
	for _, m := range frostAttrMap {
		if v&m.bit != 0 {
			a |= m.attr
		}
	}
	if !a.Has(AttrASCII) {
		a |= AttrBinary
	}
	if !a.Has(AttrBasic | AttrMachine) {
		a |= AttrData
	}
	return FileAttr{Attr: a, Origin: [3]int{int(v)}, Format: "frost"}
}

func (it *frostItem) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("frost"); ok {
		it.data[11] = byte(o[0])
		return nil
	}
	if a.Attr.Has(AttrDirectory) || a.Attr.Has(AttrVolume) {
		return newError(ErrCannotEdit)
	}
	var v byte
	for _, m := range frostAttrMap {
		if a.Attr.Has(m.attr) {
			v |= m.bit
		}
	}
	it.data[11] = v
	return nil
}

func (it *frostItem) GetStartGroup() int {
	if g := le16(it.data[12:14]); g != FROST_NO_GROUP {
		return g
	}
	return InvalidGroupNumber
}

func (it *frostItem) SetStartGroup(group int) {
	if group < 0 {
		group = FROST_NO_GROUP
	}
	putLE16(it.data[12:14], group)
}

func (it *frostItem) groupCount() int {
	return le16(it.data[14:16])
}

func (it *frostItem) setGroupCount(n int) {
	putLE16(it.data[14:16], n)
}

func (it *frostItem) GetFileSize() int {
	return le32(it.data[16:20])
}

func (it *frostItem) SetFileSize(size int) {
	putLE32(it.data[16:20], size)
}

func (it *frostItem) GetLoadAddress() int {
	return le16(it.data[20:22])
}

func (it *frostItem) GetExecAddress() int {
	return le16(it.data[22:24])
}

func (it *frostItem) SetLoadAddress(addr int) {
	putLE16(it.data[20:22], addr)
}

func (it *frostItem) SetExecAddress(addr int) {
	putLE16(it.data[22:24], addr)
}

func (it *frostItem) GetFileDate() (time.Time, bool) {
	return dosDate(le16(it.data[24:26]), le16(it.data[26:28]))
}

func (it *frostItem) SetFileDate(tm time.Time) {
	dv, tv := packDosDate(tm)
	putLE16(it.data[24:26], dv)
	putLE16(it.data[26:28], tv)
}

func (it *frostItem) Delete(code byte) {
	it.data[0] = code
}

func (it *frostItem) ClearData() {
	fill(it.data, 0)
	fill(it.data[0:11], 0x20)
	putLE16(it.data[12:14], FROST_NO_GROUP)
}
