package basic

import (
	"strings"
	"time"
)

// FLEX links every sector to the next by track and sector in its first two
// bytes. Free sectors form one chain whose ends and length live in the
// system information record. Groups are linear sector positions.

const (
	FLEX_SIR_POS        = 2
	FLEX_DIR_POS        = 4
	FLEX_DIR_HEADER     = 16
	FLEX_ENTRY_SIZE     = 24
	FLEX_DATA_OFFSET    = 4
	FLEX_ENTRY_END      = 0x00
	FLEX_ENTRY_DELETED  = 0x80
	FLEX_PROT_WRITE     = 0x80
	FLEX_PROT_DELETE    = 0x40
	FLEX_PROT_READ      = 0x20
	FLEX_PROT_CATALOG   = 0x10
	FLEX_RANDOM         = 0x02
	FLEX_SIR_LABEL      = 0x10
	FLEX_SIR_VOLNUM     = 0x1b
	FLEX_SIR_FIRST_FREE = 0x1d
	FLEX_SIR_LAST_FREE  = 0x1f
	FLEX_SIR_FREE_COUNT = 0x21
	FLEX_SIR_DATE       = 0x23
	FLEX_SIR_MAX_TRACK  = 0x26
	FLEX_SIR_MAX_SECTOR = 0x27
)

type flexType struct {
	*TypeBase
	free map[int]bool
}

func newFlexType(b *TypeBase) Type {
	return &flexType{TypeBase: b}
}

func (t *flexType) perTrack() int {
	return t.param.SectorsPerTrack * t.Sides()
}

// link encodes a linear position the way FLEX numbers sectors: sides follow
// each other inside one track and sectors count from 1.
func (t *flexType) link(pos int) (byte, byte) {
	if pos < 0 {
		return 0, 0
	}
	return byte(pos / t.perTrack()), byte(pos%t.perTrack() + 1)
}

func (t *flexType) pos(track, sector byte) int {
	if sector == 0 {
		return -1
	}
	p := int(track)*t.perTrack() + int(sector) - 1
	if p >= t.TotalSectors() {
		return -1
	}
	return p
}

func (t *flexType) readLink(pos int) int {
	s := t.SectorAt(pos)
	if s == nil {
		return -1
	}
	return t.pos(s.Data()[0], s.Data()[1])
}

func (t *flexType) writeLink(pos, next int) {
	s := t.SectorAt(pos)
	if s == nil {
		return
	}
	s.Data()[0], s.Data()[1] = t.link(next)
	s.SetModify()
}

func (t *flexType) sir() []byte {
	s := t.SectorAt(FLEX_SIR_POS)
	if s == nil {
		return nil
	}
	return s.Data()
}

func (t *flexType) touchSIR() {
	if s := t.SectorAt(FLEX_SIR_POS); s != nil {
		s.SetModify()
	}
}

func (t *flexType) sirGet(ofs int) int {
	d := t.sir()
	return t.pos(d[ofs], d[ofs+1])
}

func (t *flexType) sirSet(ofs, pos int) {
	d := t.sir()
	d[ofs], d[ofs+1] = t.link(pos)
	t.touchSIR()
}

func (t *flexType) ParseParamOnDisk(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	d := t.sir()
	if d == nil {
		return -1.0
	}
	if int(d[FLEX_SIR_MAX_SECTOR]) != t.perTrack() {
		return -1.0
	}
	if int(d[FLEX_SIR_MAX_TRACK]) != t.param.Tracks-1 {
		return 0.5
	}
	return 1.0
}

// AssignFat walks the free chain into a set.
func (t *flexType) AssignFat(isFormatting bool) float64 {
	t.free = make(map[int]bool)
	if isFormatting {
		return 1.0
	}
	limit := t.TotalSectors()
	for pos := t.sirGet(FLEX_SIR_FIRST_FREE); pos >= 0; pos = t.readLink(pos) {
		if t.free[pos] || len(t.free) > limit {
			t.report.Errorf("%s: free chain loops at %d", t.param.Name, pos)
			return -1.0
		}
		t.free[pos] = true
	}
	return 1.0
}

func (t *flexType) CheckFat(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	if n := be16(t.sir()[FLEX_SIR_FREE_COUNT:]); n != len(t.free) {
		t.report.Warnf("%s: free count %d, chain holds %d", t.param.Name, n, len(t.free))
		return 0.5
	}
	return 1.0
}

func (t *flexType) GetGroupNumber(group int) int {
	next := t.readLink(group)
	if next < 0 {
		return InvalidGroupNumber
	}
	return next
}

func (t *flexType) SetGroupNumber(group, value int) {
	if value == t.param.GroupUnusedCode {
		t.free[group] = true
		return
	}
	delete(t.free, group)
}

func (t *flexType) IsUsedGroupNumber(group int) bool {
	return group >= 0 && group < t.TotalSectors() && !t.free[group]
}

func (t *flexType) GetNextGroupNumber(group int, sectorPos int) int {
	return t.readLink(group)
}

func (t *flexType) GetEmptyGroupNumber() int {
	return t.sirGet(FLEX_SIR_FIRST_FREE)
}

func (t *flexType) GetNextEmptyGroupNumber(curr int) int {
	return t.readLink(curr)
}

func (t *flexType) DataWindow() (int, int) {
	return FLEX_DATA_OFFSET, t.param.SectorSize - FLEX_DATA_OFFSET
}

func (t *flexType) GetNumsFromGroup(group, next, remain int) []GroupItem {
	return t.runsFromPos(group, next, group, 1)
}

// walk follows sector links from start, reporting loops.
func (t *flexType) walk(start int) ([]int, error) {
	var out []int
	seen := make(map[int]bool)
	for pos := start; pos >= 0; pos = t.readLink(pos) {
		if seen[pos] || len(out) > t.TotalSectors() {
			return out, errGroup(ErrLoopedChain, pos)
		}
		seen[pos] = true
		out = append(out, pos)
	}
	return out, nil
}

func (t *flexType) chainOf(secs []int) GroupChain {
	chain := GroupChain{SizePerGroup: t.param.SectorSize - FLEX_DATA_OFFSET}
	for i, pos := range secs {
		next := InvalidGroupNumber
		if i+1 < len(secs) {
			next = secs[i+1]
		}
		chain.Add(t.GetNumsFromGroup(pos, next, -1)...)
	}
	chain.Size = len(secs) * chain.SizePerGroup
	chain.Recalc()
	return chain
}

func (t *flexType) GetUnitGroups(item Item) (GroupChain, error) {
	secs, err := t.walk(item.GetStartGroup())
	chain := t.chainOf(secs)
	return chain, err
}

// take unlinks n sectors from the head of the free chain.
func (t *flexType) take(n int) ([]int, error) {
	d := t.sir()
	if be16(d[FLEX_SIR_FREE_COUNT:]) < n || len(t.free) < n {
		return nil, newError(ErrDiskFull)
	}
	var secs []int
	pos := t.sirGet(FLEX_SIR_FIRST_FREE)
	for len(secs) < n {
		if pos < 0 || !t.free[pos] {
			return nil, errGroup(ErrBrokenChain, pos)
		}
		secs = append(secs, pos)
		pos = t.readLink(pos)
	}
	t.sirSet(FLEX_SIR_FIRST_FREE, pos)
	if pos < 0 {
		t.sirSet(FLEX_SIR_LAST_FREE, -1)
	}
	putBE16(d[FLEX_SIR_FREE_COUNT:], be16(d[FLEX_SIR_FREE_COUNT:])-n)
	t.touchSIR()
	t.writeLink(secs[len(secs)-1], -1)
	for _, s := range secs {
		delete(t.free, s)
	}
	return secs, nil
}

func (t *flexType) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {

	if mode != AllocNew {
		return GroupChain{}, newError(ErrUnsupported)
	}
	per := t.param.SectorSize - FLEX_DATA_OFFSET
	n := (size + per - 1) / per
	if n == 0 {
		n = 1
	}
	secs, err := t.take(n)
	if err != nil {
		return GroupChain{}, err
	}
	for i, pos := range secs {
		s := t.SectorAt(pos)
		putBE16(s.Data()[2:4], i+1)
	}
	fi := item.(*flexItem)
	fi.SetStartGroup(secs[0])
	fi.data[15], fi.data[16] = t.link(secs[len(secs)-1])
	putBE16(fi.data[17:19], len(secs))

	chain := t.chainOf(secs)
	chain.Size = size
	chain.Recalc()
	return chain, nil
}

// DeleteGroups hands the chain back to the tail of the free chain.
func (t *flexType) DeleteGroups(chain GroupChain) error {
	secs := chain.Groups()
	if len(secs) == 0 {
		return nil
	}
	for i, pos := range secs {
		next := -1
		if i+1 < len(secs) {
			next = secs[i+1]
		}
		t.writeLink(pos, next)
		if s := t.SectorAt(pos); s != nil {
			putBE16(s.Data()[2:4], 0)
		}
		t.free[pos] = true
	}
	d := t.sir()
	last := t.sirGet(FLEX_SIR_LAST_FREE)
	if t.sirGet(FLEX_SIR_FIRST_FREE) < 0 || last < 0 {
		t.sirSet(FLEX_SIR_FIRST_FREE, secs[0])
	} else {
		t.writeLink(last, secs[0])
	}
	t.sirSet(FLEX_SIR_LAST_FREE, secs[len(secs)-1])
	putBE16(d[FLEX_SIR_FREE_COUNT:], be16(d[FLEX_SIR_FREE_COUNT:])+len(secs))
	t.touchSIR()
	return nil
}

func (t *flexType) DirSlots(dir Item) ([]Slot, error) {
	if dir != nil {
		return nil, newError(ErrNotDirectory)
	}
	secs, err := t.walk(FLEX_DIR_POS)
	if err != nil {
		return nil, err
	}
	var out []Slot
	for _, pos := range secs {
		s := t.SectorAt(pos)
		for ofs := FLEX_DIR_HEADER; ofs+FLEX_ENTRY_SIZE <= s.Size(); ofs += FLEX_ENTRY_SIZE {
			out = append(out, Slot{Parts: []Window{{Sector: s, Offset: ofs, Size: FLEX_ENTRY_SIZE}}, Pos: pos, Parent: InvalidGroupNumber})
		}
	}
	return out, nil
}

// ExpandDirectory links one more sector from the free chain to the
// directory.
func (t *flexType) ExpandDirectory(dir Item) error {
	if dir != nil {
		return newError(ErrNotDirectory)
	}
	secs, err := t.walk(FLEX_DIR_POS)
	if err != nil {
		return err
	}
	got, err := t.take(1)
	if err != nil {
		return newError(ErrDirFull)
	}
	s := t.SectorAt(got[0])
	s.Fill(0)
	s.SetModify()
	t.writeLink(secs[len(secs)-1], got[0])
	return nil
}

func (t *flexType) AdditionalProcessOnFormatted(vi VolumeInfo) error {

	per := t.perTrack()
	total := t.TotalSectors()
	for pos := 0; pos < total; pos++ {
		if s := t.SectorAt(pos); s != nil {
			s.Fill(0)
		}
	}

	for pos := FLEX_DIR_POS; pos < per; pos++ {
		next := pos + 1
		if next >= per {
			next = -1
		}
		t.writeLink(pos, next)
	}
	for pos := per; pos < total; pos++ {
		next := pos + 1
		if next >= total {
			next = -1
		}
		t.writeLink(pos, next)
		t.free[pos] = true
	}

	d := t.sir()
	copy(d[FLEX_SIR_LABEL:FLEX_SIR_LABEL+11], make([]byte, 11))
	if nb, err := ToNativeFileName(t.cs, vi.Name, 11, NameLayout{Upper: true}); err == nil {
		copy(d[FLEX_SIR_LABEL:], nb)
	}
	putBE16(d[FLEX_SIR_VOLNUM:], vi.Number)
	t.sirSet(FLEX_SIR_FIRST_FREE, per)
	t.sirSet(FLEX_SIR_LAST_FREE, total-1)
	putBE16(d[FLEX_SIR_FREE_COUNT:], total-per)
	d[FLEX_SIR_DATE] = byte(vi.Date.Month())
	d[FLEX_SIR_DATE+1] = byte(vi.Date.Day())
	d[FLEX_SIR_DATE+2] = byte(vi.Date.Year() % 100)
	d[FLEX_SIR_MAX_TRACK] = byte(t.param.Tracks - 1)
	d[FLEX_SIR_MAX_SECTOR] = byte(per)
	t.touchSIR()
	return nil
}

func (t *flexType) GetVolumeName() string {
	return strings.TrimRight(FromNativeFileName(t.cs, t.sir()[FLEX_SIR_LABEL:FLEX_SIR_LABEL+11], NameLayout{}), " ")
}

func (t *flexType) SetVolumeName(name string) error {
	nb, err := ToNativeFileName(t.cs, name, 11, NameLayout{Upper: true})
	if err != nil {
		return err
	}
	copy(t.sir()[FLEX_SIR_LABEL:], nb)
	t.touchSIR()
	return nil
}

func (t *flexType) NewItem(num int, slot Slot) Item {
	return &flexItem{ItemBase: newItemBase(num, slot), t: t}
}

type flexItem struct {
	ItemBase
	t *flexType
}

func (it *flexItem) Check(last *bool) bool {
	switch {
	case it.data[0] == FLEX_ENTRY_END:
		*last = true
		return true
	case it.data[0]&FLEX_ENTRY_DELETED != 0:
		return true
	}
	return it.data[0] >= 0x20
}

func (it *flexItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != FLEX_ENTRY_END && it.data[0]&FLEX_ENTRY_DELETED == 0
	return it.used
}

func (it *flexItem) NameLayout() NameLayout {
	return NameLayout{NameLen: 8, ExtLen: 3, Upper: true}
}

func (it *flexItem) GetFileNamePos() []byte {
	return it.data[0:8]
}

func (it *flexItem) GetFileExtPos() []byte {
	return it.data[8:11]
}

var flexProtMap = []struct {
	bit  byte
	attr Attr
}{
	{FLEX_PROT_WRITE, AttrReadOnly},
	{FLEX_PROT_DELETE, AttrLocked},
	{FLEX_PROT_READ, AttrEncrypted},
	{FLEX_PROT_CATALOG, AttrHidden},
}

var flexBinaryExts = map[string]bool{"CMD": true, "BIN": true, "SYS": true}

// isText reports a sequential file whose extension does not name a binary.
func (it *flexItem) isText() bool {
	if it.data[19]&FLEX_RANDOM != 0 {
		return false
	}
	ext := strings.TrimRight(string(it.data[8:11]), " \x00")
	return !flexBinaryExts[ext]
}

func (it *flexItem) GetFileAttr() FileAttr {
	a := AttrBinary
	if it.isText() {
		a = AttrASCII
	}
	for _, m := range flexProtMap {
		if it.data[11]&m.bit != 0 {
			a |= m.attr
		}
	}
	if it.data[19]&FLEX_RANDOM != 0 {
		a |= AttrRandom
	}
	return FileAttr{Attr: a, Origin: [3]int{int(it.data[11]), int(it.data[19])}, Format: "flex"}
}

func (it *flexItem) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("flex"); ok {
		it.data[11], it.data[19] = byte(o[0]), byte(o[1])
		return nil
	}
	if a.Attr.Has(AttrDirectory) || a.Attr.Has(AttrVolume) {
		return newError(ErrCannotEdit)
	}
	var v byte
	for _, m := range flexProtMap {
		if a.Attr.Has(m.attr) {
			v |= m.bit
		}
	}
	it.data[11] = v
	it.data[19] = 0
	if a.Attr.Has(AttrRandom) {
		it.data[19] = FLEX_RANDOM
	}
	return nil
}

func (it *flexItem) GetFileDate() (time.Time, bool) {
	m, d, y := int(it.data[21]), int(it.data[22]), int(it.data[23])
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	y += 1900
	if y < 1970 {
		y += 100
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local), true
}

func (it *flexItem) SetFileDate(tm time.Time) {
	it.data[21] = byte(tm.Month())
	it.data[22] = byte(tm.Day())
	it.data[23] = byte(tm.Year() % 100)
}

func (it *flexItem) GetStartGroup() int {
	return it.t.pos(it.data[13], it.data[14])
}

func (it *flexItem) SetStartGroup(group int) {
	it.data[13], it.data[14] = it.t.link(group)
}

func (it *flexItem) NeedCheckEofCode() bool {
	return it.isText()
}

func (it *flexItem) Delete(code byte) {
	it.data[0] |= FLEX_ENTRY_DELETED
}

func (it *flexItem) ClearData() {
	fill(it.data, 0)
}
