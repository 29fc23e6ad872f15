package basic

import (
	"time"

	"github.com/paleotronic/diskbasic/charset"
	"github.com/paleotronic/diskbasic/disk"
)

// ProDOS volumes are counted in 512 byte blocks. Directories are chains of
// blocks holding 39 byte entries, files are seedling, sapling or tree
// shaped, and a bitmap records the free blocks.

const (
	PRODOS_BLOCK_SIZE        = 512
	PRODOS_KEY_BLOCK         = 2
	PRODOS_VOL_DIR_BLOCKS    = 4
	PRODOS_BITMAP_BLOCK      = 6
	PRODOS_ENTRY_SIZE        = 0x27
	PRODOS_ENTRIES_PER_BLOCK = 0x0d
	PRODOS_DIR_SKIP          = 4
	PRODOS_NAME_LEN          = 15
	PRODOS_STORAGE_DELETED   = 0x0
	PRODOS_STORAGE_SEEDLING  = 0x1
	PRODOS_STORAGE_SAPLING   = 0x2
	PRODOS_STORAGE_TREE      = 0x3
	PRODOS_STORAGE_DIR       = 0xd
	PRODOS_STORAGE_SUBHEAD   = 0xe
	PRODOS_STORAGE_VOLHEAD   = 0xf
	PRODOS_TYPE_TXT          = 0x04
	PRODOS_TYPE_BIN          = 0x06
	PRODOS_TYPE_DIR          = 0x0f
	PRODOS_TYPE_INT          = 0xfa
	PRODOS_TYPE_BAS          = 0xfc
	PRODOS_TYPE_SYS          = 0xff
	PRODOS_ACCESS_DEFAULT    = 0xc3
	PRODOS_ACCESS_WRITE      = 0x02
	PRODOS_ACCESS_READ       = 0x01
	PRODOS_ENTRY_TYPE        = 0x10
	PRODOS_ENTRY_KEY         = 0x11
	PRODOS_ENTRY_BLOCKS      = 0x13
	PRODOS_ENTRY_EOF         = 0x15
	PRODOS_ENTRY_CREATED     = 0x18
	PRODOS_ENTRY_ACCESS      = 0x1e
	PRODOS_ENTRY_AUX         = 0x1f
	PRODOS_ENTRY_MODIFIED    = 0x21
	PRODOS_ENTRY_HEADER      = 0x25
	PRODOS_HEAD_ENTRY_LEN    = 0x1f
	PRODOS_HEAD_PER_BLOCK    = 0x20
	PRODOS_HEAD_FILE_COUNT   = 0x21
	PRODOS_HEAD_BITMAP       = 0x23
	PRODOS_HEAD_TOTAL        = 0x25
	PRODOS_HEAD_PARENT       = 0x23
	PRODOS_HEAD_PARENT_ENTRY = 0x25
	PRODOS_HEAD_PARENT_LEN   = 0x26
	PRODOS_MAX_INDEX         = 256
	PRODOS_MAX_MASTER        = 128
)

type prodosType struct {
	*TypeBase
}

func newProdosType(b *TypeBase) Type {
	return &prodosType{TypeBase: b}
}

// block returns the bytes of block b, spanning sectors when they are
// smaller than a block. Writes go through the returned sectors.
func (t *prodosType) block(b int) ([]*disk.Sector, []int) {
	pos, _ := t.GetStartSectorFromGroup(b)
	if pos < 0 {
		return nil, nil
	}
	var secs []*disk.Sector
	var poss []int
	for i := 0; i < t.param.SectorsPerGroup; i++ {
		s := t.SectorAt(pos + i)
		if s == nil {
			return nil, nil
		}
		secs = append(secs, s)
		poss = append(poss, pos+i)
	}
	return secs, poss
}

// readBlock copies block b into a buffer.
func (t *prodosType) readBlock(b int) []byte {
	secs, _ := t.block(b)
	if secs == nil {
		return nil
	}
	out := make([]byte, 0, PRODOS_BLOCK_SIZE)
	for _, s := range secs {
		out = append(out, s.Data()...)
	}
	return out
}

func (t *prodosType) writeBlock(b int, data []byte) {
	secs, _ := t.block(b)
	for _, s := range secs {
		n := s.Copy(data)
		data = data[n:]
		s.SetModify()
	}
}

// patchBlock applies fn to block b and writes it back.
func (t *prodosType) patchBlock(b int, fn func(d []byte)) {
	d := t.readBlock(b)
	if d == nil {
		return
	}
	fn(d)
	t.writeBlock(b, d)
}

func (t *prodosType) totalBlocks() int {
	return t.TotalSectors() / t.param.SectorsPerGroup
}

// layoutBitmap places the table at block ptr covering total blocks.
func (t *prodosType) layoutBitmap(ptr, total int) {
	p := &t.param
	p.FirstGroup = 0
	p.DataStartPos = 0
	p.FatStartPos = ptr * p.SectorsPerGroup
	p.FatOffset = 0
	p.FatCopies = 1
	p.SectorsPerFat = ((total+7)/8 + p.SectorSize - 1) / p.SectorSize
	p.FatEndGroup = total - 1
}

func (t *prodosType) ParseParamOnDisk(isFormatting bool) float64 {

	if isFormatting {
		t.layoutBitmap(PRODOS_BITMAP_BLOCK, t.totalBlocks())
		return 1.0
	}

	d := t.readBlock(PRODOS_KEY_BLOCK)
	if d == nil {
		return -1.0
	}
	h := d[PRODOS_DIR_SKIP:]
	total := le16(h[PRODOS_HEAD_TOTAL:])
	ptr := le16(h[PRODOS_HEAD_BITMAP:])
	switch {
	case le16(d[0:]) != 0:
		return -1.0
	case h[0]>>4 != PRODOS_STORAGE_VOLHEAD || h[0]&0x0f == 0:
		return -1.0
	case h[PRODOS_HEAD_ENTRY_LEN] != PRODOS_ENTRY_SIZE || h[PRODOS_HEAD_PER_BLOCK] != PRODOS_ENTRIES_PER_BLOCK:
		return -1.0
	case total <= PRODOS_BITMAP_BLOCK || total > t.totalBlocks():
		return -1.0
	case ptr < PRODOS_KEY_BLOCK || ptr >= total:
		return -1.0
	}
	t.layoutBitmap(ptr, total)
	if total != t.totalBlocks() {
		return 0.8
	}
	return 1.0
}

func (t *prodosType) CheckFat(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	for b := 0; b <= PRODOS_KEY_BLOCK; b++ {
		if !t.IsUsedGroupNumber(b) {
			return 0.5
		}
	}
	return 1.0
}

func (t *prodosType) GetGroupNumber(group int) int {
	if t.IsUsedGroupNumber(group) {
		return t.param.GroupSystemCode
	}
	return t.param.GroupUnusedCode
}

func (t *prodosType) SetGroupNumber(group, value int) {
	t.fat.SetBit(group, value == t.param.GroupUnusedCode, true)
}

func (t *prodosType) IsUsedGroupNumber(group int) bool {
	return !t.fat.GetBit(group, true)
}

func (t *prodosType) GetNextGroupNumber(group int, sectorPos int) int {
	return InvalidGroupNumber
}

func (t *prodosType) GetEmptyGroupNumber() int {
	return firstFreeFrom(t, 0)
}

func (t *prodosType) GetNextEmptyGroupNumber(curr int) int {
	return firstFreeFrom(t, curr+1)
}

// dirBlocks follows the next pointers of a directory from key.
func (t *prodosType) dirBlocks(key int) ([]int, error) {
	var out []int
	seen := make(map[int]bool)
	for b := key; b != 0; {
		if b >= t.totalBlocks() {
			return out, errGroup(ErrBrokenChain, b)
		}
		if seen[b] {
			return out, errGroup(ErrLoopedChain, b)
		}
		seen[b] = true
		out = append(out, b)
		d := t.readBlock(b)
		if d == nil {
			return out, errGroup(ErrNoSector, b)
		}
		b = le16(d[2:])
	}
	return out, nil
}

func (t *prodosType) dirKey(dir Item) int {
	if dir == nil {
		return PRODOS_KEY_BLOCK
	}
	return dir.GetStartGroup()
}

func (t *prodosType) DirSlots(dir Item) ([]Slot, error) {
	key := t.dirKey(dir)
	blocks, err := t.dirBlocks(key)
	var out []Slot
	for _, b := range blocks {
		secs, poss := t.block(b)
		out = append(out, sliceSlots(secs, poss, PRODOS_DIR_SKIP, PRODOS_ENTRY_SIZE, PRODOS_ENTRIES_PER_BLOCK, key)...)
	}
	return out, err
}

// indexEntry reads pointer i of an index block.
func indexEntry(ib []byte, i int) int {
	return int(ib[i]) | int(ib[256+i])<<8
}

func putIndexEntry(ib []byte, i, v int) {
	ib[i] = byte(v)
	ib[256+i] = byte(v >> 8)
}

// GetUnitGroups expands the storage shape of item. Index blocks are
// overhead groups.
func (t *prodosType) GetUnitGroups(item Item) (GroupChain, error) {

	it := item.(*prodosItem)
	chain := GroupChain{SizePerGroup: PRODOS_BLOCK_SIZE}
	key := it.GetStartGroup()
	eof := it.eof()
	need := (eof + PRODOS_BLOCK_SIZE - 1) / PRODOS_BLOCK_SIZE
	total := t.totalBlocks()

	add := func(b int) error {
		if b <= 0 || b >= total {
			return errGroup(ErrBrokenChain, b)
		}
		chain.Add(t.GetNumsFromGroup(b, InvalidGroupNumber, -1)...)
		return nil
	}
	readIndex := func(b int) ([]byte, error) {
		if b <= 0 || b >= total {
			return nil, errGroup(ErrBrokenChain, b)
		}
		chain.AddExtra(b)
		return t.readBlock(b), nil
	}

	switch it.storage() {
	case PRODOS_STORAGE_SEEDLING:
		if err := add(key); err != nil {
			return chain, err
		}
	case PRODOS_STORAGE_SAPLING:
		ib, err := readIndex(key)
		if err != nil {
			return chain, err
		}
		for i := 0; i < PRODOS_MAX_INDEX && chain.Count < need; i++ {
			if err := add(indexEntry(ib, i)); err != nil {
				return chain, err
			}
		}
	case PRODOS_STORAGE_TREE:
		mb, err := readIndex(key)
		if err != nil {
			return chain, err
		}
		for m := 0; m < PRODOS_MAX_MASTER && chain.Count < need; m++ {
			ib, err := readIndex(indexEntry(mb, m))
			if err != nil {
				return chain, err
			}
			for i := 0; i < PRODOS_MAX_INDEX && chain.Count < need; i++ {
				if err := add(indexEntry(ib, i)); err != nil {
					return chain, err
				}
			}
		}
	case PRODOS_STORAGE_DIR:
		blocks, err := t.dirBlocks(key)
		if err != nil {
			return chain, err
		}
		for _, b := range blocks {
			add(b)
		}
		eof = len(blocks) * PRODOS_BLOCK_SIZE
	default:
		return chain, newError(ErrUnsupported)
	}
	chain.Size = eof
	chain.Recalc()
	return chain, nil
}

// prodosIndexBlocks counts the index and master blocks a file of n data
// blocks needs.
func prodosIndexBlocks(n int) int {
	switch {
	case n > PRODOS_MAX_INDEX:
		return 1 + (n+PRODOS_MAX_INDEX-1)/PRODOS_MAX_INDEX
	case n > 1:
		return 1
	}
	return 0
}

func (t *prodosType) CalcFileCapacity(groups int) int {
	k := groups
	if max := PRODOS_MAX_INDEX * PRODOS_MAX_MASTER; k > max {
		k = max
	}
	for ; k > 0; k-- {
		if k+prodosIndexBlocks(k) <= groups {
			return k * PRODOS_BLOCK_SIZE
		}
	}
	return 0
}

// AllocateUnitGroups picks the storage shape for size and writes the index
// blocks. Directories get linked directory blocks instead.
func (t *prodosType) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {

	it, ok := item.(*prodosItem)
	if !ok || mode != AllocNew {
		return GroupChain{}, newError(ErrUnsupported)
	}

	n := (size + PRODOS_BLOCK_SIZE - 1) / PRODOS_BLOCK_SIZE
	if n == 0 {
		n = 1
	}
	dir := it.storage() == PRODOS_STORAGE_DIR
	storage := PRODOS_STORAGE_SEEDLING
	overhead := 0
	switch {
	case dir:
		storage = PRODOS_STORAGE_DIR
	case n > PRODOS_MAX_INDEX*PRODOS_MAX_MASTER:
		return GroupChain{}, newError(ErrFileTooLarge)
	case n > PRODOS_MAX_INDEX:
		storage = PRODOS_STORAGE_TREE
		overhead = prodosIndexBlocks(n)
	case n > 1:
		storage = PRODOS_STORAGE_SAPLING
		overhead = prodosIndexBlocks(n)
	}

	taken := takeFree(t, t.param.FirstGroup, n+overhead)
	if taken == nil {
		return GroupChain{}, newError(ErrDiskFull)
	}
	for _, g := range taken {
		t.SetGroupNumber(g, t.param.GroupSystemCode)
	}

	chain := GroupChain{SizePerGroup: PRODOS_BLOCK_SIZE}
	meta, data := taken[:overhead], taken[overhead:]
	for _, b := range data {
		chain.Add(t.GetNumsFromGroup(b, InvalidGroupNumber, -1)...)
	}
	for _, b := range meta {
		chain.AddExtra(b)
	}

	switch storage {
	case PRODOS_STORAGE_SEEDLING, PRODOS_STORAGE_DIR:
		it.setKey(data[0])
	case PRODOS_STORAGE_SAPLING:
		ib := make([]byte, PRODOS_BLOCK_SIZE)
		for i, b := range data {
			putIndexEntry(ib, i, b)
		}
		t.writeBlock(meta[0], ib)
		it.setKey(meta[0])
	case PRODOS_STORAGE_TREE:
		mb := make([]byte, PRODOS_BLOCK_SIZE)
		for m := 1; m < len(meta); m++ {
			ib := make([]byte, PRODOS_BLOCK_SIZE)
			for i := 0; i < PRODOS_MAX_INDEX; i++ {
				k := (m-1)*PRODOS_MAX_INDEX + i
				if k >= len(data) {
					break
				}
				putIndexEntry(ib, i, data[k])
			}
			t.writeBlock(meta[m], ib)
			putIndexEntry(mb, m-1, meta[m])
		}
		t.writeBlock(meta[0], mb)
		it.setKey(meta[0])
	}
	if dir {
		for i, b := range data {
			link := make([]byte, 4)
			if i > 0 {
				putLE16(link, data[i-1])
			}
			if i+1 < len(data) {
				putLE16(link[2:], data[i+1])
			}
			t.patchBlock(b, func(d []byte) { copy(d, link) })
		}
		size = n * PRODOS_BLOCK_SIZE
	} else {
		it.setStorage(storage)
	}
	it.setBlocksUsed(len(taken))
	it.SetFileSize(size)

	chain.Size = size
	chain.Recalc()
	return chain, nil
}

// ExpandDirectory links a fresh block to the end of a subdirectory. The
// volume directory has a fixed size.
func (t *prodosType) ExpandDirectory(dir Item) error {

	if dir == nil {
		return newError(ErrDirFull)
	}
	it := dir.(*prodosItem)
	blocks, err := t.dirBlocks(it.GetStartGroup())
	if err != nil {
		return err
	}
	g := t.GetEmptyGroupNumber()
	if g == InvalidGroupNumber {
		return newError(ErrDirFull)
	}
	t.SetGroupNumber(g, t.param.GroupSystemCode)
	last := blocks[len(blocks)-1]
	nb := make([]byte, PRODOS_BLOCK_SIZE)
	putLE16(nb, last)
	t.writeBlock(g, nb)
	t.patchBlock(last, func(d []byte) { putLE16(d[2:], g) })

	it.setBlocksUsed(len(blocks) + 1)
	it.SetFileSize((len(blocks) + 1) * PRODOS_BLOCK_SIZE)
	it.Flush()
	return nil
}

// adjustFileCount changes the file count in the header of the directory
// with key block key.
func (t *prodosType) adjustFileCount(key, delta int) {
	t.patchBlock(key, func(d []byte) {
		h := d[PRODOS_DIR_SKIP:]
		n := le16(h[PRODOS_HEAD_FILE_COUNT:]) + delta
		if n < 0 {
			n = 0
		}
		putLE16(h[PRODOS_HEAD_FILE_COUNT:], n)
	})
}

func (t *prodosType) AdditionalProcessOnSaved(item Item, parent Item) error {
	key := t.dirKey(parent)
	putLE16(item.Base().Data()[PRODOS_ENTRY_HEADER:], key)
	item.Base().Flush()
	t.adjustFileCount(key, 1)
	return nil
}

func (t *prodosType) AdditionalProcessOnDeleted(item Item, parent Item) error {
	t.adjustFileCount(t.dirKey(parent), -1)
	return nil
}

func (t *prodosType) CanMakeDirectory() bool {
	return true
}

func (t *prodosType) SubDirSize() int {
	return PRODOS_BLOCK_SIZE
}

func (t *prodosType) PrepareToMakeDirectory(item Item) error {
	it := item.(*prodosItem)
	it.setStorage(PRODOS_STORAGE_DIR)
	it.data[PRODOS_ENTRY_TYPE] = PRODOS_TYPE_DIR
	return nil
}

// AdditionalProcessOnMadeDirectory writes the subdirectory header with the
// back pointer to the entry in the parent.
func (t *prodosType) AdditionalProcessOnMadeDirectory(item Item, parent Item, chain GroupChain) error {

	it := item.(*prodosItem)
	pkey := t.dirKey(parent)
	slot := it.Slot()
	pblock := t.GetGroupFromSectorPos(slot.Pos, 0)
	bstart, _ := t.GetStartSectorFromGroup(pblock)
	offset := (slot.Pos-bstart)*t.param.SectorSize + slot.Parts[0].Offset
	entry := (offset-PRODOS_DIR_SKIP)/PRODOS_ENTRY_SIZE + 1

	nameLen := it.data[0] & 0x0f
	t.patchBlock(it.GetStartGroup(), func(d []byte) {
		h := d[PRODOS_DIR_SKIP : PRODOS_DIR_SKIP+PRODOS_ENTRY_SIZE]
		fill(h, 0)
		h[0] = PRODOS_STORAGE_SUBHEAD<<4 | nameLen
		copy(h[1:1+PRODOS_NAME_LEN], it.data[1:1+PRODOS_NAME_LEN])
		h[0x10] = 0x75
		copy(h[PRODOS_ENTRY_CREATED:PRODOS_ENTRY_CREATED+4], it.data[PRODOS_ENTRY_CREATED:PRODOS_ENTRY_CREATED+4])
		h[PRODOS_ENTRY_ACCESS] = PRODOS_ACCESS_DEFAULT
		h[PRODOS_HEAD_ENTRY_LEN] = PRODOS_ENTRY_SIZE
		h[PRODOS_HEAD_PER_BLOCK] = PRODOS_ENTRIES_PER_BLOCK
		putLE16(h[PRODOS_HEAD_PARENT:], pblock)
		h[PRODOS_HEAD_PARENT_ENTRY] = byte(entry)
		h[PRODOS_HEAD_PARENT_LEN] = PRODOS_ENTRY_SIZE
	})
	putLE16(it.data[PRODOS_ENTRY_HEADER:], pkey)
	it.Flush()
	t.adjustFileCount(pkey, 1)
	return nil
}

// AdditionalProcessOnRenamed keeps a subdirectory header name in step with
// its entry.
func (t *prodosType) AdditionalProcessOnRenamed(item Item, parent Item) error {
	it := item.(*prodosItem)
	if it.storage() != PRODOS_STORAGE_DIR {
		return nil
	}
	t.patchBlock(it.GetStartGroup(), func(d []byte) {
		h := d[PRODOS_DIR_SKIP:]
		h[0] = PRODOS_STORAGE_SUBHEAD<<4 | it.data[0]&0x0f
		copy(h[1:1+PRODOS_NAME_LEN], it.data[1:1+PRODOS_NAME_LEN])
	})
	return nil
}

func (t *prodosType) AdditionalProcessOnFormatted(vi VolumeInfo) error {

	total := t.totalBlocks()
	mapBlocks := (total + PRODOS_BLOCK_SIZE*8 - 1) / (PRODOS_BLOCK_SIZE * 8)
	first := PRODOS_KEY_BLOCK
	last := first + PRODOS_VOL_DIR_BLOCKS - 1

	for b := 0; b < total; b++ {
		used := b < PRODOS_BITMAP_BLOCK+mapBlocks
		if used {
			t.SetGroupNumber(b, t.param.GroupSystemCode)
		} else {
			t.SetGroupNumber(b, t.param.GroupUnusedCode)
		}
	}

	for b := first; b <= last; b++ {
		d := make([]byte, PRODOS_BLOCK_SIZE)
		if b > first {
			putLE16(d, b-1)
		}
		if b < last {
			putLE16(d[2:], b+1)
		}
		t.writeBlock(b, d)
	}

	name := vi.Name
	if name == "" {
		name = "BLANK"
	}
	var nerr error
	t.patchBlock(first, func(d []byte) {
		h := d[PRODOS_DIR_SKIP : PRODOS_DIR_SKIP+PRODOS_ENTRY_SIZE]
		if nerr = putProdosName(t.cs, h, name, PRODOS_STORAGE_VOLHEAD); nerr != nil {
			return
		}
		putProdosDate(h[PRODOS_ENTRY_CREATED:], vi.Date)
		h[PRODOS_ENTRY_ACCESS] = PRODOS_ACCESS_DEFAULT
		h[PRODOS_HEAD_ENTRY_LEN] = PRODOS_ENTRY_SIZE
		h[PRODOS_HEAD_PER_BLOCK] = PRODOS_ENTRIES_PER_BLOCK
		putLE16(h[PRODOS_HEAD_BITMAP:], PRODOS_BITMAP_BLOCK)
		putLE16(h[PRODOS_HEAD_TOTAL:], total)
	})
	return nerr
}

func (t *prodosType) GetVolumeName() string {
	d := t.readBlock(PRODOS_KEY_BLOCK)
	if d == nil {
		return ""
	}
	return getProdosName(t.cs, d[PRODOS_DIR_SKIP:])
}

func (t *prodosType) SetVolumeName(name string) error {
	var err error
	t.patchBlock(PRODOS_KEY_BLOCK, func(d []byte) {
		err = putProdosName(t.cs, d[PRODOS_DIR_SKIP:], name, PRODOS_STORAGE_VOLHEAD)
	})
	return err
}

func getProdosName(cs *charset.Charset, e []byte) string {
	n := int(e[0] & 0x0f)
	return cs.Decode(e[1 : 1+n])
}

// putProdosName checks the ProDOS naming rule: a letter followed by
// letters, digits and periods.
func putProdosName(cs *charset.Charset, e []byte, name string, storage byte) error {
	b, err := cs.Encode(name)
	if err != nil || len(b) == 0 || len(b) > PRODOS_NAME_LEN {
		return errName(ErrInvalidName, name)
	}
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			c -= 0x20
			b[i] = c
		}
		letter := c >= 'A' && c <= 'Z'
		if i == 0 && !letter {
			return errName(ErrInvalidName, name)
		}
		if !letter && !(c >= '0' && c <= '9') && c != '.' {
			return errName(ErrInvalidName, name)
		}
	}
	e[0] = storage<<4 | byte(len(b))
	fill(e[1:1+PRODOS_NAME_LEN], 0)
	copy(e[1:], b)
	return nil
}

// putProdosDate packs a date word and a time word.
func putProdosDate(d []byte, tm time.Time) {
	y := tm.Year() % 100
	putLE16(d, y<<9|int(tm.Month())<<5|tm.Day())
	d[2] = byte(tm.Minute())
	d[3] = byte(tm.Hour())
}

func getProdosDate(d []byte) (time.Time, bool) {
	v := le16(d)
	if v == 0 {
		return time.Time{}, false
	}
	y, m, day := v>>9, (v>>5)&0x0f, v&0x1f
	if m < 1 || m > 12 || day < 1 {
		return time.Time{}, false
	}
	if y < 40 {
		y += 2000
	} else {
		y += 1900
	}
	return time.Date(y, time.Month(m), day, int(d[3]&0x1f), int(d[2]&0x3f), 0, 0, time.Local), true
}

func (t *prodosType) NewItem(num int, slot Slot) Item {
	return &prodosItem{ItemBase: newItemBase(num, slot)}
}

type prodosItem struct {
	ItemBase
}

func (it *prodosItem) storage() int {
	return int(it.data[0] >> 4)
}

func (it *prodosItem) setStorage(s int) {
	it.data[0] = byte(s)<<4 | it.data[0]&0x0f
}

func (it *prodosItem) eof() int {
	return le24(it.data[PRODOS_ENTRY_EOF:])
}

func (it *prodosItem) setKey(b int) {
	putLE16(it.data[PRODOS_ENTRY_KEY:], b)
}

func (it *prodosItem) setBlocksUsed(n int) {
	putLE16(it.data[PRODOS_ENTRY_BLOCKS:], n)
}

func (it *prodosItem) isHeader() bool {
	s := it.storage()
	return s == PRODOS_STORAGE_SUBHEAD || s == PRODOS_STORAGE_VOLHEAD
}

func (it *prodosItem) Check(last *bool) bool {
	switch it.storage() {
	case PRODOS_STORAGE_DELETED:
		return true
	case PRODOS_STORAGE_SEEDLING, PRODOS_STORAGE_SAPLING, PRODOS_STORAGE_TREE, PRODOS_STORAGE_DIR:
		return it.data[0]&0x0f != 0
	}
	return it.isHeader() && it.num == 0
}

func (it *prodosItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.storage() != PRODOS_STORAGE_DELETED
	return it.used
}

// IsVolumeLabel marks the directory header entries.
func (it *prodosItem) IsVolumeLabel() bool {
	return it.isHeader()
}

func (it *prodosItem) IsDirectory() bool {
	return it.storage() == PRODOS_STORAGE_DIR
}

func (it *prodosItem) IsSelfOrParent() bool {
	return false
}

func (it *prodosItem) NameLayout() NameLayout {
	return NameLayout{NameLen: PRODOS_NAME_LEN, Upper: true}
}

func (it *prodosItem) GetFileNamePos() []byte {
	return it.data[1 : 1+PRODOS_NAME_LEN]
}

func (it *prodosItem) GetFileExtPos() []byte {
	return nil
}

func (it *prodosItem) GetFileName(cs *charset.Charset) string {
	return getProdosName(cs, it.data)
}

func (it *prodosItem) SetFileName(cs *charset.Charset, name string) error {
	s := byte(it.storage())
	if s == PRODOS_STORAGE_DELETED {
		s = PRODOS_STORAGE_SEEDLING
	}
	return putProdosName(cs, it.data, name, s)
}

func (it *prodosItem) GetFileAttr() FileAttr {
	ft := int(it.data[PRODOS_ENTRY_TYPE])
	acc := int(it.data[PRODOS_ENTRY_ACCESS])
	var a Attr
	switch {
	case it.IsDirectory():
		a = AttrDirectory
	case ft == PRODOS_TYPE_TXT:
		a = AttrData | AttrASCII
	case ft == PRODOS_TYPE_BIN:
		a = AttrMachine | AttrBinary
	case ft == PRODOS_TYPE_SYS:
		a = AttrMachine | AttrBinary | AttrSystem
	case ft == PRODOS_TYPE_BAS, ft == PRODOS_TYPE_INT:
		a = AttrBasic | AttrBinary
	default:
		a = AttrData | AttrBinary
	}
	if acc&PRODOS_ACCESS_WRITE == 0 {
		a |= AttrReadOnly
	}
	return FileAttr{Attr: a, Origin: [3]int{ft, acc, le16(it.data[PRODOS_ENTRY_AUX:])}, Format: "prodos"}
}

func (it *prodosItem) SetFileAttr(a FileAttr) error {
	if o, ok := a.OriginFor("prodos"); ok {
		it.data[PRODOS_ENTRY_TYPE] = byte(o[0])
		it.data[PRODOS_ENTRY_ACCESS] = byte(o[1])
		putLE16(it.data[PRODOS_ENTRY_AUX:], o[2])
		return nil
	}
	var ft byte
	switch {
	case a.Attr.Has(AttrDirectory):
		ft = PRODOS_TYPE_DIR
	case a.Attr.Has(AttrBasic):
		ft = PRODOS_TYPE_BAS
	case a.Attr.Has(AttrASCII):
		ft = PRODOS_TYPE_TXT
	case a.Attr.Has(AttrSystem):
		ft = PRODOS_TYPE_SYS
	case a.Attr.Has(AttrMachine):
		ft = PRODOS_TYPE_BIN
	default:
		ft = 0
	}
	acc := byte(PRODOS_ACCESS_DEFAULT)
	if a.Attr.Has(AttrReadOnly) {
		acc = PRODOS_ACCESS_READ
	}
	it.data[PRODOS_ENTRY_TYPE] = ft
	it.data[PRODOS_ENTRY_ACCESS] = acc
	return nil
}

func (it *prodosItem) GetFileSize() int {
	return it.eof()
}

func (it *prodosItem) SetFileSize(size int) {
	putLE24(it.data[PRODOS_ENTRY_EOF:], size)
}

func (it *prodosItem) MaxFileSize() int {
	return 0xffffff
}

func (it *prodosItem) GetLoadAddress() int {
	return le16(it.data[PRODOS_ENTRY_AUX:])
}

func (it *prodosItem) GetExecAddress() int {
	return it.GetLoadAddress()
}

func (it *prodosItem) SetLoadAddress(addr int) {
	putLE16(it.data[PRODOS_ENTRY_AUX:], addr)
}

func (it *prodosItem) SetExecAddress(addr int) {}

func (it *prodosItem) GetFileDate() (time.Time, bool) {
	if d, ok := getProdosDate(it.data[PRODOS_ENTRY_MODIFIED:]); ok {
		return d, true
	}
	return getProdosDate(it.data[PRODOS_ENTRY_CREATED:])
}

func (it *prodosItem) SetFileDate(tm time.Time) {
	putProdosDate(it.data[PRODOS_ENTRY_CREATED:], tm)
	putProdosDate(it.data[PRODOS_ENTRY_MODIFIED:], tm)
}

func (it *prodosItem) GetStartGroup() int {
	return le16(it.data[PRODOS_ENTRY_KEY:])
}

func (it *prodosItem) SetStartGroup(group int) {
	it.setKey(group)
}

func (it *prodosItem) Delete(code byte) {
	it.data[0] = code
}

func (it *prodosItem) ClearData() {
	fill(it.data, 0)
	it.data[PRODOS_ENTRY_ACCESS] = PRODOS_ACCESS_DEFAULT
}
