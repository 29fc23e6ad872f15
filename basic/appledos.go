package basic

import "github.com/paleotronic/diskbasic/disk"

// Apple DOS 3.3: a VTOC on track 17 holding the free sector bitmap, a
// catalog chained backwards through track 17, and per file track/sector
// lists naming every data sector.

const (
	A2_VTOC_TRACK      = 17
	A2_VTOC_CAT_TRACK  = 0x01
	A2_VTOC_CAT_SECTOR = 0x02
	A2_VTOC_VERSION    = 0x03
	A2_VTOC_VOLUME     = 0x06
	A2_VTOC_MAX_PAIRS  = 0x27
	A2_VTOC_LAST_TRACK = 0x30
	A2_VTOC_DIRECTION  = 0x31
	A2_VTOC_TRACKS     = 0x34
	A2_VTOC_SECTORS    = 0x35
	A2_VTOC_BYTES      = 0x36
	A2_VTOC_BITMAP     = 0x38
	A2_CAT_SKIP        = 0x0b
	A2_ENTRY_SIZE      = 0x23
	A2_CAT_ENTRIES     = 7
	A2_TS_OFFSET       = 0x05
	A2_TS_PAIRS        = 0x0c
	A2_TS_MAX          = 122
	A2_ENTRY_DELETED   = 0xff
	A2_TYPE_TEXT       = 0x00
	A2_TYPE_INTEGER    = 0x01
	A2_TYPE_APPLESOFT  = 0x02
	A2_TYPE_BINARY     = 0x04
	A2_TYPE_S          = 0x08
	A2_TYPE_RELOC      = 0x10
	A2_TYPE_LOCKED     = 0x80
)

type appleDosType struct {
	*TypeBase
	order []int
	rank  map[int]int
}

func newAppleDosType(b *TypeBase) Type {
	t := &appleDosType{TypeBase: b}
	t.buildOrder()
	return t
}

// buildOrder lists sectors the way DOS hands them out: tracks below the
// catalog moving outward, then tracks above it, high sectors first.
func (t *appleDosType) buildOrder() {
	p := &t.param
	cat := p.X("CatalogTrack", A2_VTOC_TRACK)
	var tracks []int
	for tr := cat - 1; tr > 0; tr-- {
		tracks = append(tracks, tr)
	}
	for tr := cat + 1; tr < p.Tracks; tr++ {
		tracks = append(tracks, tr)
	}
	t.order = nil
	t.rank = make(map[int]int)
	for _, tr := range tracks {
		for s := p.SectorsPerTrack - 1; s >= 0; s-- {
			g := tr*p.SectorsPerTrack + s
			t.rank[g] = len(t.order)
			t.order = append(t.order, g)
		}
	}
}

func (t *appleDosType) vtoc() []byte {
	s := t.SectorAt(A2_VTOC_TRACK * t.param.SectorsPerTrack)
	if s == nil {
		return nil
	}
	return s.Data()
}

func (t *appleDosType) touchVTOC() {
	t.SectorAt(A2_VTOC_TRACK * t.param.SectorsPerTrack).SetModify()
}

func (t *appleDosType) ParseParamOnDisk(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	v := t.vtoc()
	if v == nil {
		return -1.0
	}
	p := &t.param
	switch {
	case int(v[A2_VTOC_CAT_TRACK]) == 0 || int(v[A2_VTOC_CAT_TRACK]) >= p.Tracks:
		return -1.0
	case int(v[A2_VTOC_CAT_SECTOR]) >= p.SectorsPerTrack:
		return -1.0
	case int(v[A2_VTOC_SECTORS]) != p.SectorsPerTrack:
		return -1.0
	case le16(v[A2_VTOC_BYTES:]) != p.SectorSize:
		return -1.0
	}
	score := 1.0
	if v[A2_VTOC_MAX_PAIRS] != A2_TS_MAX {
		score -= 0.3
	}
	if int(v[A2_VTOC_TRACKS]) != p.Tracks {
		score -= 0.3
	}
	return score
}

// bit locates the bitmap bit of group: four bytes per track, sectors 15..8
// in the first byte and 7..0 in the second.
func (t *appleDosType) bit(group int) int {
	spt := t.param.SectorsPerTrack
	tr, s := group/spt, group%spt
	byteIdx := 4*tr + 1
	if s >= 8 {
		byteIdx = 4 * tr
	}
	return byteIdx*8 + s%8
}

func (t *appleDosType) GetGroupNumber(group int) int {
	if t.IsUsedGroupNumber(group) {
		return t.param.GroupSystemCode
	}
	return t.param.GroupUnusedCode
}

func (t *appleDosType) SetGroupNumber(group, value int) {
	t.fat.SetBit(t.bit(group), value == t.param.GroupUnusedCode, false)
}

func (t *appleDosType) IsUsedGroupNumber(group int) bool {
	return !t.fat.GetBit(t.bit(group), false)
}

func (t *appleDosType) GetNextGroupNumber(group int, sectorPos int) int {
	return InvalidGroupNumber
}

func (t *appleDosType) GetEmptyGroupNumber() int {
	return firstFreeInOrder(t, t.order)
}

func (t *appleDosType) GetNextEmptyGroupNumber(curr int) int {
	r, ok := t.rank[curr]
	if !ok {
		return t.GetEmptyGroupNumber()
	}
	return firstFreeInOrder(t, t.order[r+1:])
}

func (t *appleDosType) pos(track, sector int) int {
	return track*t.param.SectorsPerTrack + sector
}

func (t *appleDosType) validTS(track, sector int) bool {
	return track < t.param.Tracks && sector < t.param.SectorsPerTrack
}

func (t *appleDosType) CheckFat(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	if !t.IsUsedGroupNumber(t.pos(A2_VTOC_TRACK, 0)) {
		return 0.5
	}
	return 1.0
}

func (t *appleDosType) DirSlots(dir Item) ([]Slot, error) {
	if dir != nil {
		return nil, newError(ErrNotDirectory)
	}
	v := t.vtoc()
	tr, sc := int(v[A2_VTOC_CAT_TRACK]), int(v[A2_VTOC_CAT_SECTOR])
	seen := make(map[int]bool)
	var out []Slot
	for tr != 0 {
		if !t.validTS(tr, sc) {
			return out, errSector(ErrBrokenChain, tr, 0, sc)
		}
		pos := t.pos(tr, sc)
		if seen[pos] {
			return out, errGroup(ErrLoopedChain, pos)
		}
		seen[pos] = true
		s := t.SectorAt(pos)
		if s == nil {
			return out, errSector(ErrNoSector, tr, 0, sc)
		}
		out = append(out, sliceSlots([]*disk.Sector{s}, []int{pos}, A2_CAT_SKIP, A2_ENTRY_SIZE, A2_CAT_ENTRIES, InvalidGroupNumber)...)
		tr, sc = int(s.Data()[1]), int(s.Data()[2])
	}
	return out, nil
}

// GetUnitGroups follows the track/sector lists of item. Unused pairs are
// skipped.
func (t *appleDosType) GetUnitGroups(item Item) (GroupChain, error) {

	chain := GroupChain{SizePerGroup: t.param.SectorSize}
	d := item.Base().Data()
	tr, sc := int(d[0]), int(d[1])
	seen := make(map[int]bool)
	for tr != 0 || sc != 0 {
		if !t.validTS(tr, sc) {
			return chain, errSector(ErrBrokenChain, tr, 0, sc)
		}
		list := t.pos(tr, sc)
		if seen[list] {
			return chain, errGroup(ErrLoopedChain, list)
		}
		seen[list] = true
		chain.AddExtra(list)
		s := t.SectorAt(list)
		if s == nil {
			return chain, errSector(ErrNoSector, tr, 0, sc)
		}
		ts := s.Data()
		for i := 0; i < A2_TS_MAX; i++ {
			dt, ds := int(ts[A2_TS_PAIRS+2*i]), int(ts[A2_TS_PAIRS+2*i+1])
			if dt == 0 && ds == 0 {
				continue
			}
			if !t.validTS(dt, ds) {
				return chain, errSector(ErrBrokenChain, dt, 0, ds)
			}
			g := t.pos(dt, ds)
			if seen[g] {
				return chain, errGroup(ErrDuplicatedGroup, g)
			}
			seen[g] = true
			chain.Add(t.runsFromPos(g, InvalidGroupNumber, g, 1)...)
		}
		tr, sc = int(ts[1]), int(ts[2])
	}
	chain.Size = chain.Count * t.param.SectorSize
	chain.Recalc()
	return chain, nil
}

// a2Lists counts the track/sector lists for n data sectors. Even an empty
// file has one.
func a2Lists(n int) int {
	if n <= A2_TS_MAX {
		return 1
	}
	return (n + A2_TS_MAX - 1) / A2_TS_MAX
}

func (t *appleDosType) CalcFileCapacity(groups int) int {
	for k := groups - 1; k > 0; k-- {
		if k+a2Lists(k) <= groups {
			return k * t.param.SectorSize
		}
	}
	return 0
}

// AllocateUnitGroups takes the list sectors and data sectors in DOS order.
// Each list is followed by the data sectors it names.
func (t *appleDosType) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {

	if mode != AllocNew {
		return GroupChain{}, newError(ErrUnsupported)
	}
	p := &t.param
	n := (size + p.SectorSize - 1) / p.SectorSize
	lists := a2Lists(n)
	total := n + lists

	var taken []int
	for g := t.GetEmptyGroupNumber(); g != InvalidGroupNumber && len(taken) < total; g = t.GetNextEmptyGroupNumber(g) {
		taken = append(taken, g)
	}
	if len(taken) < total {
		return GroupChain{}, newError(ErrDiskFull)
	}
	for _, g := range taken {
		t.SetGroupNumber(g, p.GroupSystemCode)
	}

	chain := GroupChain{SizePerGroup: p.SectorSize}
	var prev []byte
	var prevSec int
	k := 0
	for l := 0; l < lists; l++ {
		lp := taken[k]
		k++
		ls := t.SectorAt(lp)
		ls.Fill(0)
		ts := ls.Data()
		putLE16(ts[A2_TS_OFFSET:], l*A2_TS_MAX)
		if prev == nil {
			d := item.Base().Data()
			d[0], d[1] = byte(lp/p.SectorsPerTrack), byte(lp%p.SectorsPerTrack)
		} else {
			prev[1], prev[2] = byte(lp/p.SectorsPerTrack), byte(lp%p.SectorsPerTrack)
			t.SectorAt(prevSec).SetModify()
		}
		chain.AddExtra(lp)
		for i := 0; i < A2_TS_MAX && k < total; i++ {
			g := taken[k]
			k++
			ts[A2_TS_PAIRS+2*i] = byte(g / p.SectorsPerTrack)
			ts[A2_TS_PAIRS+2*i+1] = byte(g % p.SectorsPerTrack)
			chain.Add(t.runsFromPos(g, InvalidGroupNumber, g, 1)...)
		}
		ls.SetModify()
		prev, prevSec = ts, lp
	}

	v := t.vtoc()
	v[A2_VTOC_LAST_TRACK] = byte(taken[len(taken)-1] / p.SectorsPerTrack)
	t.touchVTOC()

	putLE16(item.Base().Data()[A2_ENTRY_SIZE-2:], total)
	chain.Size = size
	chain.Recalc()
	return chain, nil
}

func (t *appleDosType) AdditionalProcessOnFormatted(vi VolumeInfo) error {

	p := &t.param
	cat := A2_VTOC_TRACK
	v := t.vtoc()
	fill(v, 0)
	v[A2_VTOC_CAT_TRACK] = byte(cat)
	v[A2_VTOC_CAT_SECTOR] = byte(p.SectorsPerTrack - 1)
	v[A2_VTOC_VERSION] = 3
	num := vi.Number
	if num <= 0 || num > 254 {
		num = 254
	}
	v[A2_VTOC_VOLUME] = byte(num)
	v[A2_VTOC_MAX_PAIRS] = A2_TS_MAX
	v[A2_VTOC_LAST_TRACK] = byte(cat)
	v[A2_VTOC_DIRECTION] = 1
	v[A2_VTOC_TRACKS] = byte(p.Tracks)
	v[A2_VTOC_SECTORS] = byte(p.SectorsPerTrack)
	putLE16(v[A2_VTOC_BYTES:], p.SectorSize)
	t.touchVTOC()

	system := p.X("SystemTracks", 3)
	for g := 0; g < t.TotalSectors(); g++ {
		tr := g / p.SectorsPerTrack
		if tr >= system && tr != cat {
			t.SetGroupNumber(g, p.GroupUnusedCode)
		} else {
			t.SetGroupNumber(g, p.GroupSystemCode)
		}
	}

	for sc := p.SectorsPerTrack - 1; sc > 0; sc-- {
		s := t.SectorAt(t.pos(cat, sc))
		s.Fill(0)
		if sc > 1 {
			s.Data()[1] = byte(cat)
			s.Data()[2] = byte(sc - 1)
		}
		s.SetModify()
	}
	return nil
}

func (t *appleDosType) NewItem(num int, slot Slot) Item {
	return &appleDosItem{ItemBase: newItemBase(num, slot)}
}

type appleDosItem struct {
	ItemBase
}

func (it *appleDosItem) Check(last *bool) bool {
	switch it.data[0] {
	case 0:
		*last = true
		return true
	case A2_ENTRY_DELETED:
		return true
	}
	return it.data[0] < 80 && it.data[1] < 32
}

func (it *appleDosItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != 0 && it.data[0] != A2_ENTRY_DELETED
	return it.used
}

func (it *appleDosItem) NameLayout() NameLayout {
	return NameLayout{NameLen: 30, Pad: 0xa0, Upper: true}
}

func (it *appleDosItem) GetFileNamePos() []byte {
	return it.data[3:33]
}

func (it *appleDosItem) GetFileExtPos() []byte {
	return nil
}

func (it *appleDosItem) fileType() byte {
	return it.data[2] &^ A2_TYPE_LOCKED
}

func (it *appleDosItem) GetFileAttr() FileAttr {
	v := int(it.data[2])
	var a Attr
	switch it.fileType() {
	case A2_TYPE_TEXT:
		a = AttrData | AttrASCII
	case A2_TYPE_INTEGER, A2_TYPE_APPLESOFT:
		a = AttrBasic | AttrBinary
	case A2_TYPE_BINARY:
		a = AttrMachine | AttrBinary
	default:
		a = AttrData | AttrBinary
	}
	if v&A2_TYPE_LOCKED != 0 {
		a |= AttrReadOnly
	}
	return FileAttr{Attr: a, Origin: [3]int{v}, Format: "appledos"}
}

func (it *appleDosItem) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("appledos"); ok {
		it.data[2] = byte(o[0])
		return nil
	}
	var v byte
	switch {
	case a.Attr.Has(AttrDirectory):
		return newError(ErrCannotEdit)
	case a.Attr.Has(AttrBasic):
		v = A2_TYPE_APPLESOFT
	case a.Attr.Has(AttrASCII):
		v = A2_TYPE_TEXT
	default:
		v = A2_TYPE_BINARY
	}
	if a.Attr.Has(AttrReadOnly) {
		v |= A2_TYPE_LOCKED
	}
	it.data[2] = v
	return nil
}

// header is the length prefix DOS keeps at the front of the data.
func (it *appleDosItem) header() int {
	switch it.fileType() {
	case A2_TYPE_BINARY:
		return 4
	case A2_TYPE_INTEGER, A2_TYPE_APPLESOFT:
		return 2
	}
	return 0
}

func (it *appleDosItem) GetFileSize() int {
	return -1
}

func (it *appleDosItem) SetFileSize(size int) {}

func (it *appleDosItem) MaxFileSize() int {
	if h := it.header(); h > 0 {
		return 0xffff + h
	}
	return A2_TS_MAX * 256 * 35
}

func (it *appleDosItem) ConvertDataForSave(data []byte, opts SaveOptions) []byte {
	h := it.header()
	if h == 0 {
		return data
	}
	out := make([]byte, h, h+len(data))
	if h == 4 {
		putLE16(out, opts.Load)
		putLE16(out[2:], len(data))
	} else {
		putLE16(out, len(data))
	}
	return append(out, data...)
}

// ConvertDataForLoad strips the length prefix. Text ends at the first NUL.
func (it *appleDosItem) ConvertDataForLoad(data []byte) []byte {
	h := it.header()
	if h == 0 {
		for i, c := range data {
			if c == 0 {
				return data[:i]
			}
		}
		return data
	}
	if len(data) < h {
		return nil
	}
	n := le16(data[h-2:])
	data = data[h:]
	if n < len(data) {
		data = data[:n]
	}
	return data
}

// GetStartGroup is the position of the first track/sector list.
func (it *appleDosItem) GetStartGroup() int {
	if it.data[0] == 0 || it.data[0] == A2_ENTRY_DELETED {
		return InvalidGroupNumber
	}
	return int(it.data[0])*16 + int(it.data[1])
}

func (it *appleDosItem) SetStartGroup(group int) {}

// Delete keeps the list track in the last name byte the way DOS does.
func (it *appleDosItem) Delete(code byte) {
	it.data[32] = it.data[0]
	it.data[0] = A2_ENTRY_DELETED
}

func (it *appleDosItem) ClearData() {
	fill(it.data, 0)
	fill(it.data[3:33], 0xa0)
}
