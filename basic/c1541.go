package basic

import "github.com/paleotronic/diskbasic/disk"

// Commodore 1541 volumes keep a BAM on the directory track, directory
// sectors of eight entries, and files as chains of sectors linked by their
// first two bytes. Tracks are numbered from 1 in links.

const (
	CBM_DIR_TRACK       = 18
	CBM_BAM_FORMAT      = 0x02
	CBM_BAM_ENTRIES     = 0x04
	CBM_BAM_NAME        = 0x90
	CBM_BAM_ID          = 0xa2
	CBM_BAM_DOS         = 0xa5
	CBM_NAME_LEN        = 16
	CBM_ENTRY_SIZE      = 32
	CBM_DIR_ENTRIES     = 8
	CBM_ENTRY_TYPE      = 0x02
	CBM_ENTRY_START     = 0x03
	CBM_ENTRY_NAME      = 0x05
	CBM_ENTRY_BLOCKS    = 0x1e
	CBM_LINK_SIZE       = 2
	CBM_DATA_SIZE       = 254
	CBM_PAD             = 0xa0
	CBM_TYPE_DEL        = 0x00
	CBM_TYPE_SEQ        = 0x01
	CBM_TYPE_PRG        = 0x02
	CBM_TYPE_USR        = 0x03
	CBM_TYPE_REL        = 0x04
	CBM_TYPE_LOCKED     = 0x40
	CBM_TYPE_CLOSED     = 0x80
	CBM_FILE_INTERLEAVE = 10
	CBM_DIR_INTERLEAVE  = 3
)

type c1541Type struct {
	*TypeBase
	tracks []int
}

func newC1541Type(b *TypeBase) Type {
	t := &c1541Type{TypeBase: b}
	dir := CBM_DIR_TRACK - 1
	for d := 1; d < b.param.Tracks; d++ {
		if tr := dir - d; tr >= 0 {
			t.tracks = append(t.tracks, tr)
		}
		if tr := dir + d; tr < b.param.Tracks {
			t.tracks = append(t.tracks, tr)
		}
	}
	return t
}

func (t *c1541Type) bamPos() int {
	return t.GetSectorPosFromNum(CBM_DIR_TRACK-1, 0, t.param.SectorBase)
}

func (t *c1541Type) bam() []byte {
	s := t.SectorAt(t.bamPos())
	if s == nil {
		return nil
	}
	return s.Data()
}

// link converts a track and sector pair to a linear position.
func (t *c1541Type) link(track, sector int) int {
	if track < 1 {
		return -1
	}
	return t.GetSectorPosFromNum(track-1, 0, sector)
}

func (t *c1541Type) putLink(d []byte, pos int) {
	tr, _, sc := t.GetNumFromSectorPos(pos)
	d[0], d[1] = byte(tr+1), byte(sc)
}

func (t *c1541Type) ParseParamOnDisk(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	b := t.bam()
	if b == nil || int(b[0]) != CBM_DIR_TRACK {
		return -1.0
	}
	if t.link(int(b[0]), int(b[1])) < 0 {
		return -1.0
	}
	if b[CBM_BAM_FORMAT] != 'A' {
		return 0.7
	}
	return 1.0
}

// CheckFat compares each track's free count with its bitmap.
func (t *c1541Type) CheckFat(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	tracks := t.param.Tracks
	bad := 0
	for tr := 0; tr < tracks; tr++ {
		n := 0
		for sc := 0; sc < t.param.SectorsOnTrack(tr); sc++ {
			if t.fat.GetBit(t.bit(tr, sc), false) {
				n++
			}
		}
		if n != t.fat.Get(CBM_BAM_ENTRIES+4*tr) {
			bad++
		}
	}
	if bad == 0 {
		return 1.0
	}
	return 1.0 - float64(bad)/float64(tracks)
}

func (t *c1541Type) bit(track, sector int) int {
	return (CBM_BAM_ENTRIES+4*track+1+sector/8)*8 + sector%8
}

func (t *c1541Type) GetGroupNumber(group int) int {
	if t.IsUsedGroupNumber(group) {
		return t.param.GroupSystemCode
	}
	return t.param.GroupUnusedCode
}

// SetGroupNumber flips the bitmap bit and keeps the track's free count.
func (t *c1541Type) SetGroupNumber(group, value int) {
	tr, _, sc := t.GetNumFromSectorPos(group)
	if tr < 0 {
		return
	}
	free := value == t.param.GroupUnusedCode
	n := t.bit(tr, sc-t.param.SectorBase)
	if t.fat.GetBit(n, false) == free {
		return
	}
	t.fat.SetBit(n, free, false)
	cnt := t.fat.Get(CBM_BAM_ENTRIES + 4*tr)
	if free {
		cnt++
	} else {
		cnt--
	}
	t.fat.Set(CBM_BAM_ENTRIES+4*tr, cnt)
}

func (t *c1541Type) IsUsedGroupNumber(group int) bool {
	tr, _, sc := t.GetNumFromSectorPos(group)
	if tr < 0 {
		return true
	}
	return !t.fat.GetBit(t.bit(tr, sc-t.param.SectorBase), false)
}

func (t *c1541Type) GetNextGroupNumber(group int, sectorPos int) int {
	s := t.SectorAt(group)
	if s == nil || s.Data()[0] == 0 {
		return InvalidGroupNumber
	}
	return t.link(int(s.Data()[0]), int(s.Data()[1]))
}

func (t *c1541Type) GetEmptyGroupNumber() int {
	return t.nextFree(-1, 0)
}

func (t *c1541Type) GetNextEmptyGroupNumber(curr int) int {
	return t.nextFree(curr, CBM_FILE_INTERLEAVE)
}

// nextFree stays on the track of curr, stepping by interleave, and moves
// outward from the directory track when it fills.
func (t *c1541Type) nextFree(curr, interleave int) int {
	startTrack, startSec := -1, 0
	if curr >= 0 {
		tr, _, sc := t.GetNumFromSectorPos(curr)
		startTrack, startSec = tr, sc-t.param.SectorBase+interleave
	}
	if startTrack >= 0 {
		if g := t.freeOnTrack(startTrack, startSec); g >= 0 {
			return g
		}
	}
	for _, tr := range t.tracks {
		if g := t.freeOnTrack(tr, 0); g >= 0 {
			return g
		}
	}
	return InvalidGroupNumber
}

func (t *c1541Type) freeOnTrack(track, from int) int {
	if track == CBM_DIR_TRACK-1 {
		return -1
	}
	spt := t.param.SectorsOnTrack(track)
	for i := 0; i < spt; i++ {
		sc := (from + i) % spt
		if t.fat.GetBit(t.bit(track, sc), false) {
			return t.GetSectorPosFromNum(track, 0, sc+t.param.SectorBase)
		}
	}
	return -1
}

// CalcDiskFreeSize leaves out the directory track.
func (t *c1541Type) CalcDiskFreeSize() (int, int) {
	n := 0
	for tr := 0; tr < t.param.Tracks; tr++ {
		if tr == CBM_DIR_TRACK-1 {
			continue
		}
		n += t.fat.Get(CBM_BAM_ENTRIES + 4*tr)
	}
	return n * CBM_DATA_SIZE, n
}

func (t *c1541Type) DataWindow() (int, int) {
	return CBM_LINK_SIZE, CBM_DATA_SIZE
}

// GetUnitGroups follows the sector links. The last sector holds the index
// of its last used byte in place of a sector number.
func (t *c1541Type) GetUnitGroups(item Item) (GroupChain, error) {

	chain := GroupChain{SizePerGroup: CBM_DATA_SIZE}
	d := item.Base().Data()
	g := t.link(int(d[CBM_ENTRY_START]), int(d[CBM_ENTRY_START+1]))
	if g < 0 {
		return chain, nil
	}
	seen := make(map[int]bool)
	last := 0
	for g >= 0 {
		if seen[g] {
			return chain, errGroup(ErrLoopedChain, g)
		}
		seen[g] = true
		s := t.SectorAt(g)
		if s == nil {
			return chain, errGroup(ErrNoSector, g)
		}
		next := InvalidGroupNumber
		if tr := int(s.Data()[0]); tr != 0 {
			next = t.link(tr, int(s.Data()[1]))
			if next < 0 {
				return chain, errGroup(ErrBrokenChain, g)
			}
		} else {
			last = int(s.Data()[1]) - 1
			if last < 0 {
				last = 0
			}
			if last > CBM_DATA_SIZE {
				last = CBM_DATA_SIZE
			}
		}
		chain.Add(t.runsFromPos(g, next, g, 1)...)
		g = next
	}
	chain.Size = (chain.Count-1)*CBM_DATA_SIZE + last
	chain.Recalc()
	return chain, nil
}

// AllocateUnitGroups takes sectors with the file interleave and writes the
// links.
func (t *c1541Type) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {

	if mode != AllocNew {
		return GroupChain{}, newError(ErrUnsupported)
	}
	n := (size + CBM_DATA_SIZE - 1) / CBM_DATA_SIZE
	if n == 0 {
		n = 1
	}

	var taken []int
	g := t.GetEmptyGroupNumber()
	for len(taken) < n && g != InvalidGroupNumber {
		t.SetGroupNumber(g, t.param.GroupSystemCode)
		taken = append(taken, g)
		g = t.GetNextEmptyGroupNumber(g)
	}
	if len(taken) < n {
		for _, g := range taken {
			t.SetGroupNumber(g, t.param.GroupUnusedCode)
		}
		return GroupChain{}, newError(ErrDiskFull)
	}

	chain := GroupChain{SizePerGroup: CBM_DATA_SIZE}
	for i, g := range taken {
		s := t.SectorAt(g)
		d := s.Data()
		next := InvalidGroupNumber
		if i+1 < n {
			next = taken[i+1]
			t.putLink(d, next)
		} else {
			d[0] = 0
			d[1] = byte(size - (n-1)*CBM_DATA_SIZE + 1)
		}
		s.SetModify()
		chain.Add(t.runsFromPos(g, next, g, 1)...)
	}

	d := item.Base().Data()
	t.putLink(d[CBM_ENTRY_START:], taken[0])
	putLE16(d[CBM_ENTRY_BLOCKS:], n)
	chain.Size = size
	chain.Recalc()
	return chain, nil
}

func (t *c1541Type) dirSectors() ([]int, error) {
	b := t.bam()
	var out []int
	seen := make(map[int]bool)
	g := t.link(int(b[0]), int(b[1]))
	for g >= 0 {
		if seen[g] {
			return out, errGroup(ErrLoopedChain, g)
		}
		seen[g] = true
		out = append(out, g)
		g = t.GetNextGroupNumber(g, -1)
	}
	return out, nil
}

func (t *c1541Type) DirSlots(dir Item) ([]Slot, error) {
	if dir != nil {
		return nil, newError(ErrNotDirectory)
	}
	poss, err := t.dirSectors()
	var out []Slot
	for _, pos := range poss {
		s := t.SectorAt(pos)
		out = append(out, sliceSlots([]*disk.Sector{s}, []int{pos}, 0, CBM_ENTRY_SIZE, CBM_DIR_ENTRIES, InvalidGroupNumber)...)
	}
	return out, err
}

// ExpandDirectory links one more sector on the directory track.
func (t *c1541Type) ExpandDirectory(dir Item) error {
	poss, err := t.dirSectors()
	if err != nil {
		return err
	}
	last := poss[len(poss)-1]
	_, _, sc := t.GetNumFromSectorPos(last)
	spt := t.param.SectorsOnTrack(CBM_DIR_TRACK - 1)
	g := -1
	for i := 0; i < spt; i++ {
		c := (sc - t.param.SectorBase + CBM_DIR_INTERLEAVE + i) % spt
		if t.fat.GetBit(t.bit(CBM_DIR_TRACK-1, c), false) {
			g = t.GetSectorPosFromNum(CBM_DIR_TRACK-1, 0, c+t.param.SectorBase)
			break
		}
	}
	if g < 0 {
		return newError(ErrDirFull)
	}
	t.SetGroupNumber(g, t.param.GroupSystemCode)
	ns := t.SectorAt(g)
	ns.Fill(0)
	ns.Data()[1] = 0xff
	ns.SetModify()
	ls := t.SectorAt(last)
	t.putLink(ls.Data(), g)
	ls.SetModify()
	return nil
}

func (t *c1541Type) AdditionalProcessOnFormatted(vi VolumeInfo) error {

	b := t.bam()
	fill(b, 0)
	dirPos := t.GetSectorPosFromNum(CBM_DIR_TRACK-1, 0, t.param.SectorBase+1)
	t.putLink(b, dirPos)
	b[CBM_BAM_FORMAT] = 'A'
	for tr := 0; tr < t.param.Tracks; tr++ {
		for sc := 0; sc < t.param.SectorsOnTrack(tr); sc++ {
			t.SetGroupNumber(t.GetSectorPosFromNum(tr, 0, sc+t.param.SectorBase), t.param.GroupUnusedCode)
		}
	}
	t.SetGroupNumber(t.bamPos(), t.param.GroupSystemCode)
	t.SetGroupNumber(dirPos, t.param.GroupSystemCode)

	fill(b[CBM_BAM_NAME:CBM_BAM_DOS+6], CBM_PAD)
	name := vi.Name
	if name == "" {
		name = "DISK"
	}
	if err := t.SetVolumeName(name); err != nil {
		return err
	}
	id := vi.Number % 100
	b[CBM_BAM_ID] = byte('0' + id/10)
	b[CBM_BAM_ID+1] = byte('0' + id%10)
	b[CBM_BAM_DOS] = '2'
	b[CBM_BAM_DOS+1] = 'A'
	t.SectorAt(t.bamPos()).SetModify()

	ds := t.SectorAt(dirPos)
	ds.Fill(0)
	ds.Data()[1] = 0xff
	ds.SetModify()
	return nil
}

func (t *c1541Type) GetVolumeName() string {
	return FromNativeFileName(t.cs, t.bam()[CBM_BAM_NAME:CBM_BAM_NAME+CBM_NAME_LEN], NameLayout{Pad: CBM_PAD})
}

func (t *c1541Type) SetVolumeName(name string) error {
	b, err := ToNativeFileName(t.cs, name, CBM_NAME_LEN, NameLayout{Pad: CBM_PAD, Upper: true})
	if err != nil {
		return err
	}
	copy(t.bam()[CBM_BAM_NAME:], b)
	t.SectorAt(t.bamPos()).SetModify()
	return nil
}

func (t *c1541Type) NewItem(num int, slot Slot) Item {
	return &c1541Item{ItemBase: newItemBase(num, slot)}
}

type c1541Item struct {
	ItemBase
}

func (it *c1541Item) Check(last *bool) bool {
	return it.data[CBM_ENTRY_TYPE]&0x07 <= CBM_TYPE_REL
}

func (it *c1541Item) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[CBM_ENTRY_TYPE] != 0
	return it.used
}

func (it *c1541Item) NameLayout() NameLayout {
	return NameLayout{NameLen: CBM_NAME_LEN, Pad: CBM_PAD, Upper: true}
}

func (it *c1541Item) GetFileNamePos() []byte {
	return it.data[CBM_ENTRY_NAME : CBM_ENTRY_NAME+CBM_NAME_LEN]
}

func (it *c1541Item) GetFileExtPos() []byte {
	return nil
}

func (it *c1541Item) GetFileAttr() FileAttr {
	v := int(it.data[CBM_ENTRY_TYPE])
	var a Attr
	switch v & 0x07 {
	case CBM_TYPE_PRG:
		a = AttrMachine | AttrBinary
	case CBM_TYPE_SEQ:
		a = AttrData | AttrASCII
	case CBM_TYPE_REL:
		a = AttrData | AttrBinary | AttrRandom
	default:
		a = AttrData | AttrBinary
	}
	if v&CBM_TYPE_LOCKED != 0 {
		a |= AttrReadOnly
	}
	return FileAttr{Attr: a, Origin: [3]int{v}, Format: "c1541"}
}

func (it *c1541Item) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("c1541"); ok {
		it.data[CBM_ENTRY_TYPE] = byte(o[0])
		return nil
	}
	var v byte
	switch {
	case a.Attr.Has(AttrDirectory):
		return newError(ErrCannotEdit)
	case a.Attr.Has(AttrBasic), a.Attr.Has(AttrMachine):
		v = CBM_TYPE_PRG
	case a.Attr.Has(AttrASCII):
		v = CBM_TYPE_SEQ
	case a.Attr.Has(AttrData):
		v = CBM_TYPE_USR
	default:
		v = CBM_TYPE_PRG
	}
	v |= CBM_TYPE_CLOSED
	if a.Attr.Has(AttrReadOnly) {
		v |= CBM_TYPE_LOCKED
	}
	it.data[CBM_ENTRY_TYPE] = v
	return nil
}

func (it *c1541Item) GetStartGroup() int {
	return int(it.data[CBM_ENTRY_START])<<8 | int(it.data[CBM_ENTRY_START+1])
}

func (it *c1541Item) SetStartGroup(group int) {}

func (it *c1541Item) Delete(code byte) {
	it.data[CBM_ENTRY_TYPE] = code
}

// ClearData leaves the sector link held by the first entry of a sector.
func (it *c1541Item) ClearData() {
	fill(it.data[CBM_ENTRY_TYPE:], 0)
	fill(it.data[CBM_ENTRY_NAME:CBM_ENTRY_NAME+CBM_NAME_LEN], CBM_PAD)
}
