package basic

import (
	"strings"
	"time"

	"github.com/paleotronic/diskbasic/charset"
)

// Amiga OFS volumes: a root block in the middle of the disk, directories
// as 72 bucket hash tables of header blocks, and files as header blocks
// listing their data blocks. Every structural block carries a checksum.

const (
	ADF_BLOCK_SIZE     = 512
	ADF_ROOT_BLOCK     = 880
	ADF_T_HEADER       = 2
	ADF_T_DATA         = 8
	ADF_T_LIST         = 16
	ADF_ST_ROOT        = 1
	ADF_ST_USERDIR     = 2
	ADF_ST_FILE        = 0xfffffffd
	ADF_HT_SIZE        = 72
	ADF_OFS_DATA       = 488
	ADF_OFS_HEADER     = 24
	ADF_TYPE           = 0x000
	ADF_HEADER_KEY     = 0x004
	ADF_HIGH_SEQ       = 0x008
	ADF_HT_LEN         = 0x00c
	ADF_FIRST_DATA     = 0x010
	ADF_CHECKSUM       = 0x014
	ADF_TABLE          = 0x018
	ADF_PROTECT        = 0x140
	ADF_BYTE_SIZE      = 0x144
	ADF_BM_FLAG        = 0x138
	ADF_BM_PAGES       = 0x13c
	ADF_DAYS           = 0x1a4
	ADF_NAME           = 0x1b0
	ADF_NAME_LEN       = 30
	ADF_V_DAYS         = 0x1d8
	ADF_C_DAYS         = 0x1e4
	ADF_HASH_CHAIN     = 0x1f0
	ADF_PARENT         = 0x1f4
	ADF_EXTENSION      = 0x1f8
	ADF_SEC_TYPE       = 0x1fc
	ADF_DATA_SEQ       = 0x008
	ADF_DATA_SIZE      = 0x00c
	ADF_DATA_NEXT      = 0x010
	ADF_PROT_DELETE    = 0x01
	ADF_PROT_WRITE     = 0x04
	ADF_PROT_ARCHIVE   = 0x10
	ADF_PROT_SCRIPT    = 0x40
	ADF_BITMAP_OFFSET  = 4
	ADF_BITMAP_FIRST   = 2
	ADF_TICKS_PER_SEC  = 50
	ADF_BOOT_ROOT      = 8
	ADF_BOOT_CHECKSUM  = 4
	ADF_BOOT_SIZE      = 1024
	ADF_DOS_TYPE_OFS   = 0
	ADF_BM_VALID       = 0xffffffff
	ADF_NAME_MAX_BYTES = 30
)

var adfEpoch = time.Date(1978, 1, 1, 0, 0, 0, 0, time.UTC)

type amigaType struct {
	*TypeBase
	root int
}

func newAmigaType(b *TypeBase) Type {
	return &amigaType{TypeBase: b, root: b.param.X("Root", ADF_ROOT_BLOCK)}
}

func (t *amigaType) blk(n int) []byte {
	s := t.SectorAt(n)
	if s == nil {
		return nil
	}
	return s.Data()
}

func (t *amigaType) touch(n int) {
	if s := t.SectorAt(n); s != nil {
		s.SetModify()
	}
}

// blockSum is the value that makes the longs of b add up to zero with the
// checksum at off.
func blockSum(b []byte, off int) uint32 {
	var sum uint32
	for i := 0; i < len(b); i += 4 {
		if i == off {
			continue
		}
		sum += uint32(be32(b[i:]))
	}
	return -sum
}

func (t *amigaType) seal(n int) {
	d := t.blk(n)
	putBE32(d[ADF_CHECKSUM:], int(blockSum(d, ADF_CHECKSUM)))
	t.touch(n)
}

func validBlock(d []byte) bool {
	return uint32(be32(d[ADF_CHECKSUM:])) == blockSum(d, ADF_CHECKSUM)
}

// bootSum is the carry folding sum of the two boot blocks.
func bootSum(b []byte) uint32 {
	var sum uint32
	for i := 0; i < len(b); i += 4 {
		if i == ADF_BOOT_CHECKSUM {
			continue
		}
		v := uint32(be32(b[i:]))
		if sum+v < sum {
			sum++
		}
		sum += v
	}
	return ^sum
}

// adfHash is the bucket of name in a directory table.
func adfHash(name string) int {
	h := uint32(len(name))
	for _, c := range strings.ToUpper(name) {
		h = (h*13 + uint32(c)) & 0x7ff
	}
	return int(h % ADF_HT_SIZE)
}

func (t *amigaType) ParseParamOnDisk(isFormatting bool) float64 {

	p := &t.param
	p.FirstGroup = ADF_BITMAP_FIRST
	p.DataStartPos = ADF_BITMAP_FIRST
	p.SectorsPerGroup = 1
	p.FatEndGroup = t.TotalSectors() - 1
	p.FatOffset = ADF_BITMAP_OFFSET
	p.FatCopies = 1
	p.SectorsPerFat = 1

	if isFormatting {
		p.FatStartPos = t.root + 1
		return 1.0
	}

	boot := t.blk(0)
	if boot == nil || string(boot[:3]) != "DOS" || boot[3] != ADF_DOS_TYPE_OFS {
		return -1.0
	}
	r := t.blk(t.root)
	if r == nil || be32(r[ADF_TYPE:]) != ADF_T_HEADER || be32(r[ADF_SEC_TYPE:]) != ADF_ST_ROOT {
		return -1.0
	}
	bm := be32(r[ADF_BM_PAGES:])
	if bm < ADF_BITMAP_FIRST || bm >= t.TotalSectors() {
		return -1.0
	}
	p.FatStartPos = bm
	if !validBlock(r) {
		return 0.5
	}
	return 1.0
}

func (t *amigaType) CheckFat(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	if uint32(be32(t.blk(t.param.FatStartPos))) != blockSum(t.blk(t.param.FatStartPos), 0) {
		return 0.5
	}
	return 1.0
}

// bit locates the map bit of block n in big endian longs.
func (t *amigaType) bit(n int) int {
	i := n - ADF_BITMAP_FIRST
	long, b := i/32, i%32
	return (long*4+3-b/8)*8 + b%8
}

func (t *amigaType) sealBitmap() {
	d := t.blk(t.param.FatStartPos)
	putBE32(d, int(blockSum(d, 0)))
	t.touch(t.param.FatStartPos)
}

func (t *amigaType) GetGroupNumber(group int) int {
	if t.IsUsedGroupNumber(group) {
		return t.param.GroupSystemCode
	}
	return t.param.GroupUnusedCode
}

func (t *amigaType) SetGroupNumber(group, value int) {
	if group < ADF_BITMAP_FIRST || group > t.param.FatEndGroup {
		return
	}
	t.fat.SetBit(t.bit(group), value == t.param.GroupUnusedCode, false)
	t.sealBitmap()
}

func (t *amigaType) IsUsedGroupNumber(group int) bool {
	if group < ADF_BITMAP_FIRST || group > t.param.FatEndGroup {
		return true
	}
	return !t.fat.GetBit(t.bit(group), false)
}

func (t *amigaType) GetNextGroupNumber(group int, sectorPos int) int {
	return InvalidGroupNumber
}

func (t *amigaType) GetEmptyGroupNumber() int {
	return firstFreeFrom(t, t.root+1)
}

func (t *amigaType) GetNextEmptyGroupNumber(curr int) int {
	return firstFreeFrom(t, curr+1)
}

func (t *amigaType) CalcDiskFreeSize() (int, int) {
	n := countFreeGroups(t)
	return n * ADF_OFS_DATA, n
}

// adfExtBlocks counts the extension blocks past the table in the header.
func adfExtBlocks(n int) int {
	if n > ADF_HT_SIZE {
		return (n - 1) / ADF_HT_SIZE
	}
	return 0
}

// CalcFileCapacity leaves one block for the file header.
func (t *amigaType) CalcFileCapacity(groups int) int {
	for k := groups - 1; k > 0; k-- {
		if k+adfExtBlocks(k) <= groups-1 {
			return k * ADF_OFS_DATA
		}
	}
	return 0
}

func (t *amigaType) DataWindow() (int, int) {
	return ADF_OFS_HEADER, ADF_OFS_DATA
}

func (t *amigaType) dirBlock(dir Item) int {
	if dir == nil {
		return t.root
	}
	return dir.GetStartGroup()
}

func (t *amigaType) headerSlot(n, parent int) Slot {
	return Slot{Parts: []Window{{Sector: t.SectorAt(n), Offset: 0, Size: ADF_BLOCK_SIZE}}, Pos: n, Parent: parent}
}

// DirSlots walks every hash chain of the directory table.
func (t *amigaType) DirSlots(dir Item) ([]Slot, error) {
	db := t.dirBlock(dir)
	d := t.blk(db)
	if d == nil {
		return nil, errGroup(ErrNoSector, db)
	}
	var out []Slot
	seen := make(map[int]bool)
	for i := 0; i < ADF_HT_SIZE; i++ {
		n := be32(d[ADF_TABLE+4*i:])
		for n != 0 {
			if n >= t.TotalSectors() {
				return out, errGroup(ErrBrokenChain, n)
			}
			if seen[n] {
				return out, errGroup(ErrLoopedChain, n)
			}
			seen[n] = true
			out = append(out, t.headerSlot(n, db))
			n = be32(t.blk(n)[ADF_HASH_CHAIN:])
		}
	}
	return out, nil
}

// AllocateSlot takes a free block for a new header.
func (t *amigaType) AllocateSlot(dir Item, name string) (Slot, error) {
	n := t.GetEmptyGroupNumber()
	if n == InvalidGroupNumber {
		return Slot{}, newError(ErrDiskFull)
	}
	t.SetGroupNumber(n, t.param.GroupSystemCode)
	s := t.SectorAt(n)
	s.Fill(0)
	s.SetModify()
	return t.headerSlot(n, t.dirBlock(dir)), nil
}

// ReleaseSlot unlinks the header from its directory and frees the block.
func (t *amigaType) ReleaseSlot(item Item) error {
	n := item.Base().Slot().Pos
	t.unlink(item.Base().Slot().Parent, n)
	t.SetGroupNumber(n, t.param.GroupUnusedCode)
	return nil
}

// link inserts header n at the head of its bucket in directory db.
func (t *amigaType) link(db, n int) {
	h := t.blk(n)
	name := getAdfName(t.cs, h)
	d := t.blk(db)
	bucket := ADF_TABLE + 4*adfHash(name)
	putBE32(h[ADF_HASH_CHAIN:], be32(d[bucket:]))
	putBE32(h[ADF_PARENT:], db)
	putBE32(d[bucket:], n)
	t.seal(n)
	t.seal(db)
}

// unlink removes n from whichever bucket of db holds it.
func (t *amigaType) unlink(db, n int) {
	d := t.blk(db)
	if d == nil || be32(d[ADF_TYPE:]) != ADF_T_HEADER {
		return
	}
	for i := 0; i < ADF_HT_SIZE; i++ {
		prev := -1
		cur := be32(d[ADF_TABLE+4*i:])
		seen := make(map[int]bool)
		for cur != 0 && cur < t.TotalSectors() && !seen[cur] {
			seen[cur] = true
			next := be32(t.blk(cur)[ADF_HASH_CHAIN:])
			if cur == n {
				if prev < 0 {
					putBE32(d[ADF_TABLE+4*i:], next)
					t.seal(db)
				} else {
					putBE32(t.blk(prev)[ADF_HASH_CHAIN:], next)
					t.seal(prev)
				}
				return
			}
			prev, cur = cur, next
		}
	}
}

func (t *amigaType) AdditionalProcessOnSaved(item Item, parent Item) error {
	n := item.GetStartGroup()
	chain, err := t.GetUnitGroups(item)
	if err != nil {
		return err
	}
	for _, g := range chain.Groups() {
		t.seal(g)
	}
	t.link(t.dirBlock(parent), n)
	return nil
}

func (t *amigaType) PrepareToRename(item Item) error {
	t.unlink(be32(item.Base().Data()[ADF_PARENT:]), item.GetStartGroup())
	return nil
}

func (t *amigaType) AdditionalProcessOnRenamed(item Item, parent Item) error {
	t.link(t.dirBlock(parent), item.GetStartGroup())
	return nil
}

// GetUnitGroups reads the block tables of the header and its extension
// blocks. The tables fill from the end.
func (t *amigaType) GetUnitGroups(item Item) (GroupChain, error) {

	chain := GroupChain{SizePerGroup: ADF_OFS_DATA}
	d := item.Base().Data()
	if be32(d[ADF_SEC_TYPE:]) != ADF_ST_FILE {
		return chain, nil
	}
	size := be32(d[ADF_BYTE_SIZE:])
	need := (size + ADF_OFS_DATA - 1) / ADF_OFS_DATA
	seen := make(map[int]bool)
	tbl := d
	for {
		cnt := be32(tbl[ADF_HIGH_SEQ:])
		if cnt > ADF_HT_SIZE {
			return chain, errGroup(ErrBrokenChain, be32(tbl[ADF_HEADER_KEY:]))
		}
		for i := 0; i < cnt && chain.Count < need; i++ {
			b := be32(tbl[ADF_TABLE+4*(ADF_HT_SIZE-1-i):])
			if b < ADF_BITMAP_FIRST || b >= t.TotalSectors() {
				return chain, errGroup(ErrBrokenChain, b)
			}
			if seen[b] {
				return chain, errGroup(ErrDuplicatedGroup, b)
			}
			seen[b] = true
			chain.Add(t.runsFromPos(b, InvalidGroupNumber, b, 1)...)
		}
		ext := be32(tbl[ADF_EXTENSION:])
		if ext == 0 || chain.Count >= need {
			break
		}
		if ext >= t.TotalSectors() || seen[ext] {
			return chain, errGroup(ErrLoopedChain, ext)
		}
		seen[ext] = true
		chain.AddExtra(ext)
		tbl = t.blk(ext)
	}
	chain.Size = size
	chain.Recalc()
	return chain, nil
}

// AllocateUnitGroups takes the data blocks and any extension blocks, and
// writes the OFS data headers and the block tables.
func (t *amigaType) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {

	it, ok := item.(*amigaItem)
	if !ok || mode != AllocNew {
		return GroupChain{}, newError(ErrUnsupported)
	}
	n := (size + ADF_OFS_DATA - 1) / ADF_OFS_DATA
	exts := adfExtBlocks(n)

	taken := takeFree(t, t.root+1, n+exts)
	if taken == nil {
		return GroupChain{}, newError(ErrDiskFull)
	}
	for _, g := range taken {
		t.SetGroupNumber(g, t.param.GroupSystemCode)
	}
	data, ext := taken[:n], taken[n:]
	hdr := it.GetStartGroup()

	chain := GroupChain{SizePerGroup: ADF_OFS_DATA}
	for i, b := range data {
		s := t.SectorAt(b)
		s.Fill(0)
		d := s.Data()
		putBE32(d[ADF_TYPE:], ADF_T_DATA)
		putBE32(d[ADF_HEADER_KEY:], hdr)
		putBE32(d[ADF_DATA_SEQ:], i+1)
		used := ADF_OFS_DATA
		if i == n-1 {
			used = size - i*ADF_OFS_DATA
		}
		putBE32(d[ADF_DATA_SIZE:], used)
		if i+1 < n {
			putBE32(d[ADF_DATA_NEXT:], data[i+1])
		}
		s.SetModify()
		chain.Add(t.runsFromPos(b, InvalidGroupNumber, b, 1)...)
	}

	fillTable := func(tbl []byte, blocks []int) {
		putBE32(tbl[ADF_HIGH_SEQ:], len(blocks))
		for i, b := range blocks {
			putBE32(tbl[ADF_TABLE+4*(ADF_HT_SIZE-1-i):], b)
		}
		if len(blocks) > 0 {
			putBE32(tbl[ADF_FIRST_DATA:], blocks[0])
		}
	}
	hd := it.data
	first := data
	if len(first) > ADF_HT_SIZE {
		first = first[:ADF_HT_SIZE]
	}
	fillTable(hd, first)
	for k, e := range ext {
		d := t.blk(e)
		fill(d, 0)
		putBE32(d[ADF_TYPE:], ADF_T_LIST)
		putBE32(d[ADF_HEADER_KEY:], e)
		lo := (k + 1) * ADF_HT_SIZE
		hi := lo + ADF_HT_SIZE
		if hi > n {
			hi = n
		}
		fillTable(d, data[lo:hi])
		putBE32(d[ADF_FIRST_DATA:], 0)
		putBE32(d[ADF_PARENT:], hdr)
		if k+1 < len(ext) {
			putBE32(d[ADF_EXTENSION:], ext[k+1])
		}
		putBE32(d[ADF_SEC_TYPE:], ADF_ST_FILE)
		t.seal(e)
		chain.AddExtra(e)
	}
	if len(ext) > 0 {
		putBE32(hd[ADF_EXTENSION:], ext[0])
	}
	putBE32(hd[ADF_BYTE_SIZE:], size)
	it.seal()

	chain.Size = size
	chain.Recalc()
	return chain, nil
}

func (t *amigaType) CanMakeDirectory() bool {
	return true
}

func (t *amigaType) SubDirSize() int {
	return 0
}

func (t *amigaType) PrepareToMakeDirectory(item Item) error {
	it := item.(*amigaItem)
	putBE32(it.data[ADF_SEC_TYPE:], ADF_ST_USERDIR)
	it.seal()
	return nil
}

func (t *amigaType) AdditionalProcessOnMadeDirectory(item Item, parent Item, chain GroupChain) error {
	t.link(t.dirBlock(parent), item.GetStartGroup())
	return nil
}

func (t *amigaType) AdditionalProcessOnFormatted(vi VolumeInfo) error {

	total := t.TotalSectors()
	boot := make([]byte, 0, ADF_BOOT_SIZE)
	for b := 0; b < ADF_BOOT_SIZE/ADF_BLOCK_SIZE; b++ {
		boot = append(boot, t.blk(b)...)
	}
	fill(boot, 0)
	copy(boot, "DOS")
	boot[3] = ADF_DOS_TYPE_OFS
	putBE32(boot[ADF_BOOT_ROOT:], t.root)
	putBE32(boot[ADF_BOOT_CHECKSUM:], int(bootSum(boot)))
	for b := 0; b < ADF_BOOT_SIZE/ADF_BLOCK_SIZE; b++ {
		s := t.SectorAt(b)
		s.Copy(boot[b*ADF_BLOCK_SIZE:])
		s.SetModify()
	}

	bm := t.param.FatStartPos
	fill(t.blk(bm), 0)
	for g := ADF_BITMAP_FIRST; g < total; g++ {
		free := g != t.root && g != bm
		t.fat.SetBit(t.bit(g), free, false)
	}
	t.sealBitmap()

	r := t.blk(t.root)
	fill(r, 0)
	putBE32(r[ADF_TYPE:], ADF_T_HEADER)
	putBE32(r[ADF_HT_LEN:], ADF_HT_SIZE)
	putBE32(r[ADF_BM_FLAG:], ADF_BM_VALID)
	putBE32(r[ADF_BM_PAGES:], bm)
	putAdfDate(r[ADF_DAYS:], vi.Date)
	putAdfDate(r[ADF_V_DAYS:], vi.Date)
	putAdfDate(r[ADF_C_DAYS:], vi.Date)
	putBE32(r[ADF_SEC_TYPE:], ADF_ST_ROOT)
	name := vi.Name
	if name == "" {
		name = "Empty"
	}
	return t.SetVolumeName(name)
}

func (t *amigaType) GetVolumeName() string {
	return getAdfName(t.cs, t.blk(t.root))
}

func (t *amigaType) SetVolumeName(name string) error {
	if err := putAdfName(t.cs, t.blk(t.root), name); err != nil {
		return err
	}
	t.seal(t.root)
	return nil
}

func getAdfName(cs *charset.Charset, d []byte) string {
	n := int(d[ADF_NAME])
	if n > ADF_NAME_LEN {
		n = ADF_NAME_LEN
	}
	return cs.Decode(d[ADF_NAME+1 : ADF_NAME+1+n])
}

func putAdfName(cs *charset.Charset, d []byte, name string) error {
	b, err := cs.Encode(name)
	if err != nil || len(b) == 0 || len(b) > ADF_NAME_MAX_BYTES || strings.ContainsAny(name, ":/") {
		return errName(ErrInvalidName, name)
	}
	fill(d[ADF_NAME:ADF_NAME+1+ADF_NAME_LEN], 0)
	d[ADF_NAME] = byte(len(b))
	copy(d[ADF_NAME+1:], b)
	return nil
}

// putAdfDate stores days since 1978, minutes past midnight and ticks.
func putAdfDate(d []byte, tm time.Time) {
	if tm.Before(adfEpoch) {
		tm = adfEpoch
	}
	days := int(tm.Sub(adfEpoch).Hours() / 24)
	putBE32(d, days)
	putBE32(d[4:], tm.Hour()*60+tm.Minute())
	putBE32(d[8:], tm.Second()*ADF_TICKS_PER_SEC)
}

func getAdfDate(d []byte) time.Time {
	days, mins, ticks := be32(d), be32(d[4:]), be32(d[8:])
	return adfEpoch.AddDate(0, 0, days).Add(time.Duration(mins)*time.Minute + time.Duration(ticks/ADF_TICKS_PER_SEC)*time.Second)
}

func (t *amigaType) NewItem(num int, slot Slot) Item {
	return &amigaItem{ItemBase: newItemBase(num, slot), t: t}
}

type amigaItem struct {
	ItemBase
	t *amigaType
}

func (it *amigaItem) seal() {
	putBE32(it.data[ADF_CHECKSUM:], int(blockSum(it.data, ADF_CHECKSUM)))
}

func (it *amigaItem) Check(last *bool) bool {
	if be32(it.data[ADF_TYPE:]) != ADF_T_HEADER || !validBlock(it.data) {
		return false
	}
	st := uint32(be32(it.data[ADF_SEC_TYPE:]))
	return st == ADF_ST_FILE || st == ADF_ST_USERDIR
}

func (it *amigaItem) CheckUsed(unused bool) bool {
	it.used = !unused && be32(it.data[ADF_TYPE:]) == ADF_T_HEADER
	return it.used
}

func (it *amigaItem) IsDirectory() bool {
	return be32(it.data[ADF_SEC_TYPE:]) == ADF_ST_USERDIR
}

func (it *amigaItem) IsSelfOrParent() bool {
	return false
}

func (it *amigaItem) NameLayout() NameLayout {
	return NameLayout{NameLen: ADF_NAME_LEN, Upper: true}
}

func (it *amigaItem) GetFileNamePos() []byte {
	return it.data[ADF_NAME+1 : ADF_NAME+1+ADF_NAME_LEN]
}

func (it *amigaItem) GetFileExtPos() []byte {
	return nil
}

func (it *amigaItem) GetFileName(cs *charset.Charset) string {
	return getAdfName(cs, it.data)
}

func (it *amigaItem) SetFileName(cs *charset.Charset, name string) error {
	if err := putAdfName(cs, it.data, name); err != nil {
		return err
	}
	it.seal()
	return nil
}

func (it *amigaItem) GetFileAttr() FileAttr {
	v := be32(it.data[ADF_PROTECT:])
	a := AttrData | AttrBinary
	if it.IsDirectory() {
		a = AttrDirectory
	}
	if v&ADF_PROT_WRITE != 0 {
		a |= AttrReadOnly
	}
	if v&ADF_PROT_ARCHIVE != 0 {
		a |= AttrArchive
	}
	return FileAttr{Attr: a, Origin: [3]int{v}, Format: "amiga"}
}

func (it *amigaItem) SetFileAttr(a FileAttr) error {
	v := 0
	if o, ok := a.OriginFor("amiga"); ok {
		v = o[0]
	} else {
		if a.Attr.Has(AttrReadOnly) {
			v |= ADF_PROT_WRITE | ADF_PROT_DELETE
		}
		if a.Attr.Has(AttrArchive) {
			v |= ADF_PROT_ARCHIVE
		}
	}
	putBE32(it.data[ADF_PROTECT:], v)
	it.seal()
	return nil
}

func (it *amigaItem) GetFileSize() int {
	if it.IsDirectory() {
		return -1
	}
	return be32(it.data[ADF_BYTE_SIZE:])
}

func (it *amigaItem) SetFileSize(size int) {
	putBE32(it.data[ADF_BYTE_SIZE:], size)
	it.seal()
}

func (it *amigaItem) GetFileDate() (time.Time, bool) {
	return getAdfDate(it.data[ADF_DAYS:]), true
}

func (it *amigaItem) SetFileDate(tm time.Time) {
	putAdfDate(it.data[ADF_DAYS:], tm)
	it.seal()
}

// GetStartGroup is the header block itself.
func (it *amigaItem) GetStartGroup() int {
	return it.slot.Pos
}

func (it *amigaItem) SetStartGroup(group int) {}

func (it *amigaItem) Delete(code byte) {}

// ClearData leaves an empty file header addressed to its own block.
func (it *amigaItem) ClearData() {
	fill(it.data, 0)
	putBE32(it.data[ADF_TYPE:], ADF_T_HEADER)
	putBE32(it.data[ADF_HEADER_KEY:], it.slot.Pos)
	putBE32(it.data[ADF_PARENT:], it.slot.Parent)
	putBE32(it.data[ADF_SEC_TYPE:], ADF_ST_FILE)
	it.seal()
}
