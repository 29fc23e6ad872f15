package basic

import (
	"strings"
	"time"
)

// MS-DOS FAT12/FAT16 volumes. The layout comes from the BIOS parameter block
// in the boot sector; when formatting it comes from the registry defaults.

const (
	DOS_ATTR_READONLY = 0x01
	DOS_ATTR_HIDDEN   = 0x02
	DOS_ATTR_SYSTEM   = 0x04
	DOS_ATTR_VOLUME   = 0x08
	DOS_ATTR_DIR      = 0x10
	DOS_ATTR_ARCHIVE  = 0x20
	DOS_ATTR_LFN      = 0x0f

	DOS_ENTRY_END    = 0x00
	DOS_ENTRY_DELETE = 0xe5
	DOS_ENTRY_SIZE   = 32

	FAT12_MAX_CLUSTERS = 4084
)

type msdosType struct {
	*TypeBase
	fat16 bool
}

func newMsdosType(b *TypeBase) Type {
	return &msdosType{TypeBase: b}
}

// bpb is the part of the boot sector we read and write.
type bpb struct {
	bytesPerSector int
	spc            int
	reserved       int
	fats           int
	rootEntries    int
	totalSectors   int
	media          int
	spf            int
	spt            int
	heads          int
}

func readBPB(d []byte) bpb {
	b := bpb{
		bytesPerSector: le16(d[0x0b:]),
		spc:            int(d[0x0d]),
		reserved:       le16(d[0x0e:]),
		fats:           int(d[0x10]),
		rootEntries:    le16(d[0x11:]),
		totalSectors:   le16(d[0x13:]),
		media:          int(d[0x15]),
		spf:            le16(d[0x16:]),
		spt:            le16(d[0x18:]),
		heads:          le16(d[0x1a:]),
	}
	if b.totalSectors == 0 {
		b.totalSectors = le32(d[0x20:])
	}
	return b
}

func (b bpb) write(d []byte) {
	putLE16(d[0x0b:], b.bytesPerSector)
	d[0x0d] = byte(b.spc)
	putLE16(d[0x0e:], b.reserved)
	d[0x10] = byte(b.fats)
	putLE16(d[0x11:], b.rootEntries)
	putLE16(d[0x13:], b.totalSectors)
	d[0x15] = byte(b.media)
	putLE16(d[0x16:], b.spf)
	putLE16(d[0x18:], b.spt)
	putLE16(d[0x1a:], b.heads)
}

func (b bpb) valid(sectorSize, total int) bool {
	switch {
	case b.bytesPerSector != sectorSize:
		return false
	case b.spc <= 0 || b.spc&(b.spc-1) != 0:
		return false
	case b.reserved < 1 || b.fats < 1 || b.fats > 2 || b.spf < 1:
		return false
	case b.rootEntries <= 0 || b.media < 0xf0:
		return false
	case b.totalSectors <= 0 || b.totalSectors > total:
		return false
	}
	return true
}

// defaultBPB builds the parameter block a fresh volume gets.
func (t *msdosType) defaultBPB() bpb {
	p := &t.param
	return bpb{
		bytesPerSector: p.SectorSize,
		spc:            p.SectorsPerGroup,
		reserved:       p.X("Reserved", 1),
		fats:           p.FatCopies,
		rootEntries:    p.X("RootEntries", 112),
		totalSectors:   t.TotalSectors(),
		media:          p.MediaID,
		spf:            p.SectorsPerFat,
		spt:            p.SectorsPerTrack,
		heads:          p.Sides,
	}
}

// apply derives the group layout from a parameter block.
func (t *msdosType) apply(b bpb) {
	p := &t.param
	p.SectorsPerGroup = b.spc
	p.FatStartPos = b.reserved
	p.FatCopies = b.fats
	p.SectorsPerFat = b.spf
	p.FatOffset = 0
	p.MediaID = b.media
	p.DirEntrySize = DOS_ENTRY_SIZE
	p.DirStartPos = b.reserved + b.fats*b.spf
	rootSecs := (b.rootEntries*DOS_ENTRY_SIZE + b.bytesPerSector - 1) / b.bytesPerSector
	p.DirEndPos = p.DirStartPos + rootSecs - 1
	p.DataStartPos = p.DirEndPos + 1
	p.FirstGroup = 2
	clusters := (b.totalSectors - p.DataStartPos) / b.spc
	p.FatEndGroup = clusters + 1
	p.SetX("RootEntries", b.rootEntries)
	p.SetX("Reserved", b.reserved)
	t.fat16 = clusters > FAT12_MAX_CLUSTERS
}

func (t *msdosType) ParseParamOnDisk(isFormatting bool) float64 {

	if isFormatting {
		t.apply(t.defaultBPB())
		return 1.0
	}

	s := t.SectorAt(0)
	if s == nil {
		return -1.0
	}
	b := readBPB(s.Data())
	if !b.valid(t.param.SectorSize, t.TotalSectors()) {
		return -1.0
	}
	t.apply(b)

	msx := hasPrefix(s.Data()[3:], "MSX")
	if msx != (t.param.X("MSX", 0) != 0) {
		return 0.9
	}
	return 1.0
}

func (t *msdosType) CheckFat(isFormatting bool) float64 {

	if isFormatting {
		return 1.0
	}
	p := &t.param
	if t.fat == nil {
		return -1.0
	}
	need := (p.FatEndGroup + 1) * 3 / 2
	if t.fat16 {
		need = (p.FatEndGroup + 1) * 2
	}
	if t.fat.Size() < need {
		return -1.0
	}
	if t.fat.Get(0) != p.MediaID {
		t.report.Warnf("%s: media byte %02x in FAT differs from %02x", p.Name, t.fat.Get(0), p.MediaID)
		return 0.5
	}

	bad := 0
	for g := p.FirstGroup; g <= p.FatEndGroup; g++ {
		v := t.GetGroupNumber(g)
		if v != 0 && !t.IsFinalCode(v) && v != t.badCode() && (v < p.FirstGroup || v > p.FatEndGroup) {
			bad++
		}
	}
	if bad > 0 {
		t.report.Warnf("%s: %d FAT entries point outside the volume", p.Name, bad)
		return 1.0 - float64(bad)/float64(p.FatEndGroup)
	}
	return 1.0
}

func (t *msdosType) badCode() int {
	if t.fat16 {
		return 0xfff7
	}
	return 0xff7
}

func (t *msdosType) GetGroupNumber(group int) int {
	if t.fat == nil {
		return -1
	}
	if t.fat16 {
		return t.fat.Get16(group*2, false)
	}
	return t.fat.Get12(group)
}

func (t *msdosType) SetGroupNumber(group, value int) {
	if t.fat == nil {
		return
	}
	if value == t.param.GroupSystemCode {
		value = t.badCode()
	}
	if t.fat16 {
		t.fat.Set16(group*2, value, false)
		return
	}
	t.fat.Set12(group, value)
}

func (t *msdosType) IsUsedGroupNumber(group int) bool {
	return t.GetGroupNumber(group) != 0
}

func (t *msdosType) GetNextGroupNumber(group int, sectorPos int) int {
	v := t.GetGroupNumber(group)
	if v < t.param.FirstGroup || v > t.param.FatEndGroup {
		return InvalidGroupNumber
	}
	return v
}

func (t *msdosType) FinalCode(sectors int) int {
	if t.fat16 {
		return 0xffff
	}
	return 0xfff
}

func (t *msdosType) IsFinalCode(v int) bool {
	if t.fat16 {
		return v >= 0xfff8
	}
	return v >= 0xff8
}

func (t *msdosType) SectorsInFinal(v int) int {
	return t.param.SectorsPerGroup
}

func (t *msdosType) GetEmptyGroupNumber() int {
	return firstFreeFrom(t, t.param.FirstGroup)
}

func (t *msdosType) GetNextEmptyGroupNumber(curr int) int {
	return firstFreeFrom(t, curr+1)
}

// GetUnitGroups treats a start cluster below 2 as an empty file.
func (t *msdosType) GetUnitGroups(item Item) (GroupChain, error) {
	if item.GetStartGroup() < t.param.FirstGroup {
		return GroupChain{SizePerGroup: t.param.GroupSize()}, nil
	}
	return walkLinkedChain(t, item.GetStartGroup())
}

func (t *msdosType) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {
	if size == 0 && mode == AllocNew {
		item.SetStartGroup(0)
		return GroupChain{SizePerGroup: t.param.GroupSize()}, nil
	}
	return allocateLinked(t, item, size, mode)
}

func (t *msdosType) DirSlots(dir Item) ([]Slot, error) {

	if dir == nil {
		return t.TypeBase.DirSlots(nil)
	}
	start := dir.GetStartGroup()
	chain, err := walkLinkedChain(t, start)
	if err != nil {
		return nil, err
	}
	secs, poss := t.chainSectors(chain)
	return sliceSlots(secs, poss, 0, DOS_ENTRY_SIZE, -1, start), nil
}

// ExpandDirectory appends one zeroed cluster to a subdirectory. The root
// area is fixed.
func (t *msdosType) ExpandDirectory(dir Item) error {
	if dir == nil {
		return newError(ErrDirFull)
	}
	chain, err := allocateLinked(t, dir, t.param.GroupSize(), AllocAppend)
	if err != nil {
		return err
	}
	last, ok := chain.Last()
	if !ok {
		return newError(ErrDirFull)
	}
	for _, gi := range chain.Items {
		if gi.Group != last.Group {
			continue
		}
		for n := gi.SectorStart; n <= gi.SectorEnd; n++ {
			if s := t.store.GetSector(gi.Track, gi.Side, n); s != nil {
				s.Fill(0)
				s.SetModify()
			}
		}
	}
	return nil
}

func (t *msdosType) CanMakeDirectory() bool {
	return true
}

func (t *msdosType) SubDirSize() int {
	return t.param.GroupSize()
}

func (t *msdosType) PrepareToMakeDirectory(item Item) error {
	item.(*msdosItem).SetFileSize(0)
	return nil
}

// AdditionalProcessOnMadeDirectory writes the dot entries.
func (t *msdosType) AdditionalProcessOnMadeDirectory(item Item, parent Item, chain GroupChain) error {

	slots, err := t.DirSlots(item)
	if err != nil {
		return err
	}
	if len(slots) < 2 {
		return newError(ErrDirFull)
	}
	src := item.(*msdosItem)
	parentStart := 0
	if parent != nil {
		parentStart = parent.GetStartGroup()
	}
	for i, name := range []string{".", ".."} {
		e := t.NewItem(i, slots[i]).(*msdosItem)
		e.ClearData()
		copy(e.data[0:11], name)
		e.data[11] = DOS_ATTR_DIR
		copy(e.data[22:26], src.data[22:26])
		if i == 0 {
			e.SetStartGroup(item.GetStartGroup())
		} else {
			e.SetStartGroup(parentStart)
		}
		e.Flush()
	}
	return nil
}

func (t *msdosType) AdditionalProcessOnFormatted(vi VolumeInfo) error {

	s := t.SectorAt(0)
	if s == nil {
		return errSector(ErrNoSector, 0, 0, t.param.SectorBase)
	}
	d := s.Data()
	fill(d, 0)
	d[0], d[1], d[2] = 0xeb, 0x3c, 0x90
	oem := "DISKBSC "
	if t.param.X("MSX", 0) != 0 {
		d[1] = 0xfe
		oem = "MSXDOS  "
	}
	copy(d[3:11], oem)
	t.defaultBPB().write(d)
	d[0x26] = 0x29
	putLE32(d[0x27:], vi.Number)
	label := strings.ToUpper(vi.Name)
	if label == "" {
		label = "NO NAME"
	}
	copy(d[0x2b:0x36], []byte(label+"           ")[:11])
	if t.fat16 {
		copy(d[0x36:0x3e], "FAT16   ")
	} else {
		copy(d[0x36:0x3e], "FAT12   ")
	}
	if len(d) >= 512 {
		d[510], d[511] = 0x55, 0xaa
	}
	s.SetModify()

	if t.fat16 {
		t.fat.Set16(0, 0xff00|t.param.MediaID, false)
		t.fat.Set16(2, 0xffff, false)
	} else {
		t.fat.Set12(0, 0xf00|t.param.MediaID)
		t.fat.Set12(1, 0xfff)
	}

	if vi.Name != "" {
		return t.SetVolumeName(vi.Name)
	}
	return nil
}

func (t *msdosType) rootItems() []*msdosItem {
	slots, err := t.TypeBase.DirSlots(nil)
	if err != nil {
		return nil
	}
	out := make([]*msdosItem, 0, len(slots))
	for i, s := range slots {
		out = append(out, t.NewItem(i, s).(*msdosItem))
	}
	return out
}

func (t *msdosType) GetVolumeName() string {
	for _, it := range t.rootItems() {
		if it.data[0] == DOS_ENTRY_END {
			break
		}
		if it.data[0] != DOS_ENTRY_DELETE && it.IsVolumeLabel() {
			return strings.TrimRight(t.cs.Decode(it.data[0:11]), " ")
		}
	}
	return ""
}

func (t *msdosType) SetVolumeName(name string) error {
	nb, err := ToNativeFileName(t.cs, name, 11, NameLayout{Pad: 0x20, Upper: true})
	if err != nil {
		return err
	}
	var free *msdosItem
	for _, it := range t.rootItems() {
		if it.data[0] == DOS_ENTRY_END || it.data[0] == DOS_ENTRY_DELETE {
			if free == nil {
				free = it
			}
			if it.data[0] == DOS_ENTRY_END {
				break
			}
			continue
		}
		if it.IsVolumeLabel() {
			free = it
			break
		}
	}
	if free == nil {
		return newError(ErrDirFull)
	}
	free.ClearData()
	copy(free.data[0:11], nb)
	free.data[11] = DOS_ATTR_VOLUME
	free.SetFileDate(time.Now())
	free.Flush()
	return nil
}

func (t *msdosType) NewItem(num int, slot Slot) Item {
	return &msdosItem{ItemBase: newItemBase(num, slot)}
}

type msdosItem struct {
	ItemBase
}

func (it *msdosItem) Check(last *bool) bool {
	d := it.data
	switch d[0] {
	case DOS_ENTRY_END:
		*last = true
		return true
	case DOS_ENTRY_DELETE:
		return true
	}
	if d[11] == DOS_ATTR_LFN {
		return true
	}
	return d[11]&0xc0 == 0 && d[0] >= 0x20
}

func (it *msdosItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != DOS_ENTRY_END && it.data[0] != DOS_ENTRY_DELETE
	return it.used
}

func (it *msdosItem) NameLayout() NameLayout {
	return NameLayout{NameLen: 8, ExtLen: 3, Pad: 0x20, Upper: true}
}

func (it *msdosItem) GetFileNamePos() []byte {
	return it.data[0:8]
}

func (it *msdosItem) GetFileExtPos() []byte {
	return it.data[8:11]
}

func (it *msdosItem) IsDirectory() bool {
	return it.data[11]&DOS_ATTR_DIR != 0 && it.data[11] != DOS_ATTR_LFN
}

func (it *msdosItem) IsSelfOrParent() bool {
	return it.data[0] == '.'
}

func (it *msdosItem) IsVolumeLabel() bool {
	return it.data[11]&DOS_ATTR_VOLUME != 0 && it.data[11] != DOS_ATTR_LFN
}

func (it *msdosItem) IsVisible() bool {
	return it.data[11] != DOS_ATTR_LFN
}

var dosAttrMap = []struct {
	bit  byte
	attr Attr
}{
	{DOS_ATTR_READONLY, AttrReadOnly},
	{DOS_ATTR_HIDDEN, AttrHidden},
	{DOS_ATTR_SYSTEM, AttrSystem},
	{DOS_ATTR_VOLUME, AttrVolume},
	{DOS_ATTR_DIR, AttrDirectory},
	{DOS_ATTR_ARCHIVE, AttrArchive},
}

func (it *msdosItem) GetFileAttr() FileAttr {
	v := it.data[11]
	var a Attr
	for _, m := range dosAttrMap {
		if v&m.bit != 0 {
			a |= m.attr
		}
	}
	if a&(AttrDirectory|AttrVolume) == 0 {
		a |= AttrBinary
	}
	return FileAttr{Attr: a, Origin: [3]int{int(v)}, Format: "msdos"}
}

func (it *msdosItem) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("msdos"); ok {
		it.data[11] = byte(o[0])
		return nil
	}
	var v byte
	for _, m := range dosAttrMap {
		if a.Attr.Has(m.attr) {
			v |= m.bit
		}
	}
	if v&(DOS_ATTR_DIR|DOS_ATTR_VOLUME) == 0 {
		v |= DOS_ATTR_ARCHIVE
	}
	it.data[11] = v
	return nil
}

func (it *msdosItem) GetFileSize() int {
	if it.IsDirectory() {
		return -1
	}
	return le32(it.data[28:32])
}

func (it *msdosItem) SetFileSize(size int) {
	putLE32(it.data[28:32], size)
}

func (it *msdosItem) GetFileDate() (time.Time, bool) {
	return dosDate(le16(it.data[24:26]), le16(it.data[22:24]))
}

func (it *msdosItem) SetFileDate(tm time.Time) {
	dv, tv := packDosDate(tm)
	putLE16(it.data[22:24], tv)
	putLE16(it.data[24:26], dv)
}

func (it *msdosItem) GetStartGroup() int {
	return le16(it.data[26:28])
}

func (it *msdosItem) SetStartGroup(group int) {
	putLE16(it.data[26:28], group)
}

func (it *msdosItem) Delete(code byte) {
	it.data[0] = code
}

func (it *msdosItem) ClearData() {
	fill(it.data, 0)
	fill(it.data[0:11], 0x20)
}
