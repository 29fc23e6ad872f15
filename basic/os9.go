package basic

import (
	"time"

	"github.com/paleotronic/diskbasic/charset"
)

// OS-9 RBF volumes: an identification sector, an allocation bitmap and a
// tree of directories. Every file has a descriptor sector listing the runs
// of sectors holding its data.

const (
	OS9_DD_TOT      = 0x00
	OS9_DD_TKS      = 0x03
	OS9_DD_MAP      = 0x04
	OS9_DD_BIT      = 0x06
	OS9_DD_DIR      = 0x08
	OS9_DD_OWN      = 0x0b
	OS9_DD_ATT      = 0x0d
	OS9_DD_DSK      = 0x0e
	OS9_DD_FMT      = 0x10
	OS9_DD_SPT      = 0x11
	OS9_DD_DAT      = 0x1a
	OS9_DD_NAM      = 0x1f
	OS9_NAME_LEN    = 32
	OS9_FD_ATT      = 0x00
	OS9_FD_OWN      = 0x01
	OS9_FD_DAT      = 0x03
	OS9_FD_LNK      = 0x08
	OS9_FD_SIZ      = 0x09
	OS9_FD_CREAT    = 0x0d
	OS9_FD_SEG      = 0x10
	OS9_SEG_SIZE    = 5
	OS9_MAX_SEGS    = 48
	OS9_ENTRY_SIZE  = 32
	OS9_ENTRY_NAME  = 29
	OS9_ATT_READ    = 0x01
	OS9_ATT_WRITE   = 0x02
	OS9_ATT_EXEC    = 0x04
	OS9_ATT_PREAD   = 0x08
	OS9_ATT_PWRITE  = 0x10
	OS9_ATT_PEXEC   = 0x20
	OS9_ATT_SHARE   = 0x40
	OS9_ATT_DIR     = 0x80
	OS9_ATT_DEFAULT = OS9_ATT_READ | OS9_ATT_WRITE | OS9_ATT_PREAD
)

type os9Type struct {
	*TypeBase
}

func newOs9Type(b *TypeBase) Type {
	return &os9Type{TypeBase: b}
}

func (t *os9Type) lsn0() []byte {
	s := t.SectorAt(0)
	if s == nil {
		return nil
	}
	return s.Data()
}

func (t *os9Type) rootFD() int {
	return be24(t.lsn0()[OS9_DD_DIR:])
}

// layoutMap sets the bitmap position and group range for mapBytes of map.
func (t *os9Type) layoutMap(mapBytes, bit int) {
	p := &t.param
	p.SectorsPerGroup = bit
	p.FatStartPos = 1
	p.FatOffset = 0
	p.FatCopies = 1
	p.SectorsPerFat = (mapBytes + p.SectorSize - 1) / p.SectorSize
	p.FirstGroup = 0
	p.DataStartPos = 0
	p.FatEndGroup = t.TotalSectors()/bit - 1
}

func (t *os9Type) ParseParamOnDisk(isFormatting bool) float64 {

	if isFormatting {
		total := t.TotalSectors()
		t.layoutMap((total+7)/8, 1)
		return 1.0
	}

	d := t.lsn0()
	if d == nil {
		return -1.0
	}
	tot := be24(d[OS9_DD_TOT:])
	bit := be16(d[OS9_DD_BIT:])
	mapBytes := be16(d[OS9_DD_MAP:])
	dir := be24(d[OS9_DD_DIR:])
	switch {
	case tot <= 0 || tot > t.TotalSectors():
		return -1.0
	case bit != 1:
		return -1.0
	case mapBytes*8*bit < tot:
		return -1.0
	case dir <= 0 || dir >= tot:
		return -1.0
	}
	t.layoutMap(mapBytes, bit)
	score := 1.0
	if tot != t.TotalSectors() {
		score = 0.8
	}
	if spt := be16(d[OS9_DD_SPT:]); spt != t.param.SectorsPerTrack {
		score -= 0.2
	}
	return score
}

func (t *os9Type) CheckFat(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	if t.fat == nil || !t.IsUsedGroupNumber(0) || !t.IsUsedGroupNumber(t.group(t.rootFD())) {
		return -1.0
	}
	return 1.0
}

func (t *os9Type) group(lsn int) int {
	return lsn / t.param.SectorsPerGroup
}

func (t *os9Type) GetGroupNumber(group int) int {
	if t.IsUsedGroupNumber(group) {
		return t.param.GroupSystemCode
	}
	return t.param.GroupUnusedCode
}

func (t *os9Type) SetGroupNumber(group, value int) {
	t.fat.SetBit(group, value != t.param.GroupUnusedCode, true)
}

func (t *os9Type) IsUsedGroupNumber(group int) bool {
	return t.fat.GetBit(group, true)
}

func (t *os9Type) GetNextGroupNumber(group int, sectorPos int) int {
	return InvalidGroupNumber
}

func (t *os9Type) GetEmptyGroupNumber() int {
	return firstFreeFrom(t, 0)
}

func (t *os9Type) GetNextEmptyGroupNumber(curr int) int {
	return firstFreeFrom(t, curr+1)
}

// segments reads the run list of the descriptor at lsn.
func (t *os9Type) segments(lsn int) ([]Run, error) {
	s := t.SectorAt(lsn)
	if s == nil {
		return nil, errGroup(ErrNoSector, lsn)
	}
	var out []Run
	for i := 0; i < OS9_MAX_SEGS; i++ {
		seg := s.Data()[OS9_FD_SEG+i*OS9_SEG_SIZE:]
		n := be16(seg[3:])
		if n == 0 {
			break
		}
		start := be24(seg)
		if start+n > t.TotalSectors() {
			return out, errGroup(ErrBrokenChain, start)
		}
		out = append(out, Run{Start: start, Count: n})
	}
	return out, nil
}

func (t *os9Type) writeSegments(lsn int, runs []Run) {
	s := t.SectorAt(lsn)
	d := s.Data()
	fill(d[OS9_FD_SEG:OS9_FD_SEG+OS9_MAX_SEGS*OS9_SEG_SIZE], 0)
	for i, r := range runs {
		seg := d[OS9_FD_SEG+i*OS9_SEG_SIZE:]
		putBE24(seg, r.Start)
		putBE16(seg[3:], r.Count)
	}
	s.SetModify()
}

func (t *os9Type) fdSize(lsn int) int {
	s := t.SectorAt(lsn)
	if s == nil {
		return 0
	}
	return be32(s.Data()[OS9_FD_SIZ:])
}

func (t *os9Type) setFdSize(lsn, size int) {
	s := t.SectorAt(lsn)
	putBE32(s.Data()[OS9_FD_SIZ:], size)
	s.SetModify()
}

// chainOf expands runs into one group per sector so the chain length counts
// sectors.
func (t *os9Type) chainOf(runs []Run, size int) GroupChain {
	chain := GroupChain{SizePerGroup: t.param.SectorSize}
	var lsns []int
	for _, r := range runs {
		for i := 0; i < r.Count; i++ {
			lsns = append(lsns, r.Start+i)
		}
	}
	for i, lsn := range lsns {
		next := InvalidGroupNumber
		if i+1 < len(lsns) {
			next = lsns[i+1]
		}
		chain.Add(t.runsFromPos(t.group(lsn), next, lsn, 1)...)
	}
	chain.Size = size
	chain.Recalc()
	return chain
}

func (t *os9Type) GetUnitGroups(item Item) (GroupChain, error) {
	fd := item.GetStartGroup()
	runs, err := t.segments(fd)
	if err != nil {
		return GroupChain{}, err
	}
	return t.chainOf(runs, t.fdSize(fd)), nil
}

// CalcFileCapacity leaves one sector for the file descriptor.
func (t *os9Type) CalcFileCapacity(groups int) int {
	if groups < 1 {
		return 0
	}
	return (groups - 1) * t.param.SectorSize
}

// AllocateUnitGroups takes a descriptor sector and up to 48 runs for the
// data, writing the descriptor from the pending fields of item.
func (t *os9Type) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {

	oi, ok := item.(*os9Item)
	if !ok || mode != AllocNew {
		return GroupChain{}, newError(ErrUnsupported)
	}

	fd := t.GetEmptyGroupNumber()
	if fd == InvalidGroupNumber {
		return GroupChain{}, newError(ErrDiskFull)
	}
	t.SetGroupNumber(fd, t.param.GroupSystemCode)

	need := (size + t.param.SectorSize - 1) / t.param.SectorSize
	runs := pickRuns(scanRuns(t), need, OS9_MAX_SEGS, 0xffff)
	if need > 0 && runs == nil {
		t.SetGroupNumber(fd, t.param.GroupUnusedCode)
		return GroupChain{}, errGroup(ErrDiskFull, fd)
	}
	for _, r := range runs {
		for g := r.Start; g < r.Start+r.Count; g++ {
			t.SetGroupNumber(g, t.param.GroupSystemCode)
		}
	}

	s := t.SectorAt(fd)
	s.Fill(0)
	d := s.Data()
	d[OS9_FD_ATT] = oi.att
	d[OS9_FD_LNK] = 1
	putOs9Date(d[OS9_FD_DAT:], oi.date, 5)
	putOs9Date(d[OS9_FD_CREAT:], oi.date, 3)
	s.SetModify()
	t.writeSegments(fd, runs)
	t.setFdSize(fd, size)
	oi.SetStartGroup(fd)

	chain := t.chainOf(runs, size)
	chain.AddExtra(t.group(fd))
	return chain, nil
}

func (t *os9Type) DirSlots(dir Item) ([]Slot, error) {
	fd := t.rootFD()
	if dir != nil {
		fd = dir.GetStartGroup()
	}
	runs, err := t.segments(fd)
	if err != nil {
		return nil, err
	}
	chain := t.chainOf(runs, t.fdSize(fd))
	secs, poss := t.chainSectors(chain)
	return sliceSlots(secs, poss, 0, OS9_ENTRY_SIZE, chain.Size/OS9_ENTRY_SIZE, fd), nil
}

// ExpandDirectory first uses the slack in the last sector, then adds one
// sector to the last run or a new run.
func (t *os9Type) ExpandDirectory(dir Item) error {

	fd := t.rootFD()
	if dir != nil {
		fd = dir.GetStartGroup()
	}
	runs, err := t.segments(fd)
	if err != nil {
		return err
	}
	capacity := 0
	for _, r := range runs {
		capacity += r.Count * t.param.SectorSize
	}
	size := t.fdSize(fd)
	if size < capacity {
		t.setFdSize(fd, capacity)
		return nil
	}

	var g int
	if n := len(runs); n > 0 && !t.IsUsedGroupNumber(runs[n-1].Start+runs[n-1].Count) &&
		runs[n-1].Start+runs[n-1].Count <= t.param.FatEndGroup {
		g = runs[n-1].Start + runs[n-1].Count
		runs[n-1].Count++
	} else {
		if len(runs) >= OS9_MAX_SEGS {
			return newError(ErrDirFull)
		}
		g = t.GetEmptyGroupNumber()
		if g == InvalidGroupNumber {
			return newError(ErrDirFull)
		}
		runs = append(runs, Run{Start: g, Count: 1})
	}
	t.SetGroupNumber(g, t.param.GroupSystemCode)
	s := t.SectorAt(g)
	s.Fill(0)
	s.SetModify()
	t.writeSegments(fd, runs)
	t.setFdSize(fd, size+t.param.SectorSize)
	return nil
}

func (t *os9Type) CanMakeDirectory() bool {
	return true
}

func (t *os9Type) SubDirSize() int {
	return 2 * OS9_ENTRY_SIZE
}

func (t *os9Type) PrepareToMakeDirectory(item Item) error {
	item.(*os9Item).att = OS9_ATT_DIR | 0x3f
	return nil
}

// AdditionalProcessOnMadeDirectory writes the parent and self entries.
func (t *os9Type) AdditionalProcessOnMadeDirectory(item Item, parent Item, chain GroupChain) error {
	up := t.rootFD()
	if parent != nil {
		up = parent.GetStartGroup()
	}
	return t.writeDotEntries(item.GetStartGroup(), up)
}

func (t *os9Type) writeDotEntries(self, up int) error {
	runs, err := t.segments(self)
	if err != nil || len(runs) == 0 {
		return newError(ErrCannotMakeDir)
	}
	s := t.SectorAt(runs[0].Start)
	d := s.Data()
	fill(d[:2*OS9_ENTRY_SIZE], 0)
	d[0], d[1] = '.', '.'|0x80
	putBE24(d[OS9_ENTRY_NAME:], up)
	d[OS9_ENTRY_SIZE] = '.' | 0x80
	putBE24(d[OS9_ENTRY_SIZE+OS9_ENTRY_NAME:], self)
	s.SetModify()
	return nil
}

func (t *os9Type) AdditionalProcessOnFormatted(vi VolumeInfo) error {

	p := &t.param
	total := t.TotalSectors()
	mapBytes := (total + 7) / 8
	dirLSN := 1 + p.SectorsPerFat
	dirSecs := p.X("RootDirSectors", 4)

	d := t.lsn0()
	fill(d, 0)
	putBE24(d[OS9_DD_TOT:], total)
	d[OS9_DD_TKS] = byte(p.SectorsPerTrack)
	putBE16(d[OS9_DD_MAP:], mapBytes)
	putBE16(d[OS9_DD_BIT:], 1)
	putBE24(d[OS9_DD_DIR:], dirLSN)
	d[OS9_DD_ATT] = 0xff
	putBE16(d[OS9_DD_DSK:], vi.Number)
	d[OS9_DD_FMT] = byte(t.Sides()-1) | 0x02
	putBE16(d[OS9_DD_SPT:], p.SectorsPerTrack)
	putOs9Date(d[OS9_DD_DAT:], vi.Date, 5)
	name := vi.Name
	if name == "" {
		name = "OS9"
	}
	if err := putOs9Name(t.cs, d[OS9_DD_NAM:OS9_DD_NAM+OS9_NAME_LEN], name); err != nil {
		return err
	}
	t.SectorAt(0).SetModify()

	for g := mapBytes * 8; g < t.fat.Size()*8; g++ {
		t.fat.SetBit(g, true, true)
	}
	for g := 0; g <= dirLSN+dirSecs; g++ {
		t.SetGroupNumber(g, p.GroupSystemCode)
	}

	s := t.SectorAt(dirLSN)
	s.Fill(0)
	fd := s.Data()
	fd[OS9_FD_ATT] = OS9_ATT_DIR | 0x3f
	fd[OS9_FD_LNK] = 1
	putOs9Date(fd[OS9_FD_DAT:], vi.Date, 5)
	putOs9Date(fd[OS9_FD_CREAT:], vi.Date, 3)
	s.SetModify()
	t.writeSegments(dirLSN, []Run{{Start: dirLSN + 1, Count: dirSecs}})
	t.setFdSize(dirLSN, 2*OS9_ENTRY_SIZE)
	for i := 1; i <= dirSecs; i++ {
		if ds := t.SectorAt(dirLSN + i); ds != nil {
			ds.Fill(0)
			ds.SetModify()
		}
	}
	return t.writeDotEntries(dirLSN, dirLSN)
}

func (t *os9Type) GetVolumeName() string {
	return getOs9Name(t.cs, t.lsn0()[OS9_DD_NAM:OS9_DD_NAM+OS9_NAME_LEN])
}

func (t *os9Type) SetVolumeName(name string) error {
	if err := putOs9Name(t.cs, t.lsn0()[OS9_DD_NAM:OS9_DD_NAM+OS9_NAME_LEN], name); err != nil {
		return err
	}
	t.SectorAt(0).SetModify()
	return nil
}

// getOs9Name reads a name whose last character has the top bit set.
func getOs9Name(cs *charset.Charset, b []byte) string {
	var out []byte
	for _, c := range b {
		if c == 0 {
			break
		}
		out = append(out, c&0x7f)
		if c&0x80 != 0 {
			break
		}
	}
	return cs.Decode(out)
}

func putOs9Name(cs *charset.Charset, dst []byte, name string) error {
	b, err := cs.Encode(name)
	if err != nil || len(b) == 0 || len(b) > len(dst) {
		return errName(ErrInvalidName, name)
	}
	fill(dst, 0)
	for i, c := range b {
		if c&0x80 != 0 || c == '/' {
			return errName(ErrInvalidName, name)
		}
		dst[i] = c
	}
	dst[len(b)-1] |= 0x80
	return nil
}

func putOs9Date(d []byte, tm time.Time, n int) {
	v := []int{tm.Year() - 1900, int(tm.Month()), tm.Day(), tm.Hour(), tm.Minute()}
	for i := 0; i < n; i++ {
		d[i] = byte(v[i])
	}
}

func (t *os9Type) NewItem(num int, slot Slot) Item {
	it := &os9Item{ItemBase: newItemBase(num, slot), t: t, att: OS9_ATT_DEFAULT}
	if fd := it.fd(); fd != nil {
		it.att = fd[OS9_FD_ATT]
	}
	return it
}

type os9Item struct {
	ItemBase
	t    *os9Type
	att  byte
	date time.Time
}

// fd returns the descriptor of a live entry.
func (it *os9Item) fd() []byte {
	if it.data[0] == 0 {
		return nil
	}
	lsn := it.GetStartGroup()
	if lsn <= 0 || lsn >= it.t.TotalSectors() {
		return nil
	}
	s := it.t.SectorAt(lsn)
	if s == nil {
		return nil
	}
	return s.Data()
}

func (it *os9Item) touchFD() {
	if s := it.t.SectorAt(it.GetStartGroup()); s != nil {
		s.SetModify()
	}
}

func (it *os9Item) Check(last *bool) bool {
	if it.data[0] == 0 {
		return true
	}
	for _, c := range it.data[:OS9_ENTRY_NAME] {
		if c&0x7f < 0x20 && c != 0 {
			return false
		}
		if c&0x80 != 0 {
			break
		}
	}
	lsn := it.GetStartGroup()
	return lsn > 0 && lsn < it.t.TotalSectors()
}

func (it *os9Item) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != 0
	return it.used
}

func (it *os9Item) NameLayout() NameLayout {
	return NameLayout{NameLen: OS9_ENTRY_NAME, Upper: true}
}

func (it *os9Item) GetFileNamePos() []byte {
	return it.data[:OS9_ENTRY_NAME]
}

func (it *os9Item) GetFileExtPos() []byte {
	return nil
}

func (it *os9Item) GetFileName(cs *charset.Charset) string {
	return getOs9Name(cs, it.data[:OS9_ENTRY_NAME])
}

func (it *os9Item) SetFileName(cs *charset.Charset, name string) error {
	return putOs9Name(cs, it.data[:OS9_ENTRY_NAME], name)
}

func (it *os9Item) IsDirectory() bool {
	return it.att&OS9_ATT_DIR != 0
}

func (it *os9Item) IsSelfOrParent() bool {
	n := it.data
	return n[0] == '.'|0x80 || (n[0] == '.' && n[1] == '.'|0x80)
}

func (it *os9Item) GetFileAttr() FileAttr {
	v := it.att
	var a Attr
	switch {
	case v&OS9_ATT_DIR != 0:
		a = AttrDirectory
	case v&OS9_ATT_EXEC != 0:
		a = AttrMachine | AttrBinary
	default:
		a = AttrData | AttrBinary
	}
	if v&OS9_ATT_WRITE == 0 {
		a |= AttrReadOnly
	}
	if v&OS9_ATT_SHARE != 0 {
		a |= AttrSystem
	}
	return FileAttr{Attr: a, Origin: [3]int{int(v)}, Format: "os9"}
}

func (it *os9Item) SetFileAttr(a FileAttr) error {
	var v byte
	if o, ok := a.OriginFor("os9"); ok {
		v = byte(o[0])
	} else {
		v = OS9_ATT_DEFAULT
		if a.Attr.Has(AttrDirectory) {
			v = OS9_ATT_DIR | 0x3f
		}
		if a.Attr.Has(AttrMachine) {
			v |= OS9_ATT_EXEC | OS9_ATT_PEXEC
		}
		if a.Attr.Has(AttrReadOnly) {
			v &^= OS9_ATT_WRITE | OS9_ATT_PWRITE
		}
		if a.Attr.Has(AttrSystem) {
			v |= OS9_ATT_SHARE
		}
	}
	if (v&OS9_ATT_DIR != 0) != (it.att&OS9_ATT_DIR != 0) && it.fd() != nil {
		return newError(ErrCannotEdit)
	}
	it.att = v
	if fd := it.fd(); fd != nil {
		fd[OS9_FD_ATT] = v
		it.touchFD()
	}
	return nil
}

func (it *os9Item) GetFileSize() int {
	if fd := it.fd(); fd != nil {
		return be32(fd[OS9_FD_SIZ:])
	}
	return 0
}

func (it *os9Item) SetFileSize(size int) {
	if fd := it.fd(); fd != nil {
		putBE32(fd[OS9_FD_SIZ:], size)
		it.touchFD()
	}
}

func (it *os9Item) GetFileDate() (time.Time, bool) {
	fd := it.fd()
	if fd == nil {
		return time.Time{}, false
	}
	d := fd[OS9_FD_DAT:]
	if d[1] < 1 || d[1] > 12 || d[2] < 1 || d[2] > 31 {
		return time.Time{}, false
	}
	return time.Date(1900+int(d[0]), time.Month(d[1]), int(d[2]), int(d[3]), int(d[4]), 0, 0, time.Local), true
}

func (it *os9Item) SetFileDate(tm time.Time) {
	it.date = tm
	if fd := it.fd(); fd != nil {
		putOs9Date(fd[OS9_FD_DAT:], tm, 5)
		it.touchFD()
	}
}

func (it *os9Item) GetExtraGroups() []int {
	lsn := it.GetStartGroup()
	if lsn <= 0 {
		return nil
	}
	return []int{it.t.group(lsn)}
}

func (it *os9Item) GetStartGroup() int {
	return be24(it.data[OS9_ENTRY_NAME:])
}

func (it *os9Item) SetStartGroup(group int) {
	putBE24(it.data[OS9_ENTRY_NAME:], group)
}

func (it *os9Item) Delete(code byte) {
	it.data[0] = code
}

func (it *os9Item) ClearData() {
	fill(it.data, 0)
	it.att = OS9_ATT_DEFAULT
	it.date = time.Now()
}
