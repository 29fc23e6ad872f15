package basic

import (
	"sort"
	"strings"

	"github.com/paleotronic/diskbasic/charset"
)

// CP/M keeps no allocation table on disk. The block map is rebuilt from the
// allocation lists of every directory entry when the volume is mounted. A
// file longer than one entry can address spans several extents; the first
// one stands for the file and the others are hidden.

const (
	CPM_ENTRY_FREE   = 0xe5
	CPM_MAX_USER     = 15
	CPM_RECORD_SIZE  = 128
	CPM_RECORDS_LEXT = 128
	CPM_AL_OFFSET    = 16
)

type cpmType struct {
	*TypeBase
	used    []bool
	renames []*cpmItem
}

func newCpmType(b *TypeBase) Type {
	return &cpmType{TypeBase: b}
}

func (t *cpmType) exm() int {
	return t.param.X("EXM", 0)
}

// wide reports 16 bit block numbers in the allocation list.
func (t *cpmType) wide() bool {
	return t.param.FatEndGroup > 255
}

func (t *cpmType) blocksPerEntry() int {
	if t.wide() {
		return 8
	}
	return 16
}

func (t *cpmType) AssignFat(isFormatting bool) float64 {

	p := &t.param
	t.used = make([]bool, p.FatEndGroup+1)
	for _, g := range p.ReservedGroups {
		if g >= 0 && g < len(t.used) {
			t.used[g] = true
		}
	}
	if isFormatting {
		return 1.0
	}

	slots, err := t.TypeBase.DirSlots(nil)
	if err != nil {
		return -1.0
	}
	bad, dup, total := 0, 0, 0
	for i, s := range slots {
		it := t.NewItem(i, s).(*cpmItem)
		if !it.live() {
			continue
		}
		for _, g := range it.blocks() {
			total++
			if g > p.FatEndGroup {
				bad++
				continue
			}
			if t.used[g] {
				dup++
			}
			t.used[g] = true
		}
	}
	if total == 0 {
		return 1.0
	}
	if bad+dup > 0 {
		t.report.Warnf("%s: %d blocks out of range, %d shared", p.Name, bad, dup)
	}
	return 1.0 - 2.0*float64(bad+dup)/float64(total)
}

func (t *cpmType) CheckFat(isFormatting bool) float64 {
	if t.used == nil {
		return -1.0
	}
	return 1.0
}

func (t *cpmType) GetGroupNumber(group int) int {
	if group < 0 || group >= len(t.used) {
		return -1
	}
	if t.used[group] {
		return t.param.GroupSystemCode
	}
	return t.param.GroupUnusedCode
}

func (t *cpmType) SetGroupNumber(group, value int) {
	if group >= 0 && group < len(t.used) {
		t.used[group] = value != t.param.GroupUnusedCode
	}
}

func (t *cpmType) IsUsedGroupNumber(group int) bool {
	return group >= 0 && group < len(t.used) && t.used[group]
}

func (t *cpmType) GetNextGroupNumber(group int, sectorPos int) int {
	return InvalidGroupNumber
}

func (t *cpmType) GetEmptyGroupNumber() int {
	return firstFreeFrom(t, t.param.FirstGroup)
}

func (t *cpmType) GetNextEmptyGroupNumber(curr int) int {
	return firstFreeFrom(t, curr+1)
}

func (t *cpmType) items() []*cpmItem {
	slots, err := t.TypeBase.DirSlots(nil)
	if err != nil {
		return nil
	}
	out := make([]*cpmItem, 0, len(slots))
	for i, s := range slots {
		out = append(out, t.NewItem(i, s).(*cpmItem))
	}
	return out
}

// extents lists the live entries sharing the user and name of item, in
// extent order.
func (t *cpmType) extents(item *cpmItem) []*cpmItem {
	var out []*cpmItem
	for _, e := range t.items() {
		if e.live() && e.sameFile(item) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].extent() < out[j].extent()
	})
	return out
}

func (t *cpmType) GetUnitGroups(item Item) (GroupChain, error) {

	p := &t.param
	chain := GroupChain{SizePerGroup: p.GroupSize()}
	ci, ok := item.(*cpmItem)
	if !ok {
		return chain, newError(ErrUnsupported)
	}
	exts := t.extents(ci)
	if len(exts) == 0 {
		return chain, nil
	}

	var blocks []int
	for _, e := range exts {
		blocks = append(blocks, e.blocks()...)
	}
	for i, g := range blocks {
		if g > p.FatEndGroup {
			return chain, errGroup(ErrBrokenChain, g)
		}
		next := InvalidGroupNumber
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}
		chain.Add(t.GetNumsFromGroup(g, next, -1)...)
	}

	last := exts[len(exts)-1]
	records := last.extent()*CPM_RECORDS_LEXT + last.rc()
	chain.Size = records * CPM_RECORD_SIZE
	if max := len(blocks) * p.GroupSize(); chain.Size > max {
		chain.Size = max
	}
	chain.Recalc()
	return chain, nil
}

// CalcFileCapacity caps groups at what the free directory entries can map.
func (t *cpmType) CalcFileCapacity(groups int) int {
	free := 0
	for _, e := range t.items() {
		if e.data[0] == CPM_ENTRY_FREE {
			free++
		}
	}
	if n := free * t.blocksPerEntry(); n < groups {
		groups = n
	}
	return groups * t.param.GroupSize()
}

// AllocateUnitGroups takes the blocks for size bytes and writes the extents.
// The first extent is item itself; further extents use free entries.
func (t *cpmType) AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error) {

	p := &t.param
	ci, ok := item.(*cpmItem)
	if !ok || mode != AllocNew {
		return GroupChain{}, newError(ErrUnsupported)
	}

	bls := p.GroupSize()
	need := (size + bls - 1) / bls
	per := t.blocksPerEntry()
	entries := (need + per - 1) / per
	if entries == 0 {
		entries = 1
	}

	targets := []*cpmItem{ci}
	key := slotKey(ci.slot)
	for _, e := range t.items() {
		if len(targets) == entries {
			break
		}
		if e.data[0] == CPM_ENTRY_FREE && slotKey(e.slot) != key {
			targets = append(targets, e)
		}
	}
	if len(targets) < entries {
		return GroupChain{}, newError(ErrDirFull)
	}

	var blocks []int
	for g := t.GetEmptyGroupNumber(); len(blocks) < need; g = t.GetNextEmptyGroupNumber(g) {
		if g == InvalidGroupNumber || (len(blocks) > 0 && g <= blocks[len(blocks)-1]) {
			return GroupChain{}, newError(ErrDiskFull)
		}
		blocks = append(blocks, g)
	}

	records := (size + CPM_RECORD_SIZE - 1) / CPM_RECORD_SIZE
	perRecs := per * bls / CPM_RECORD_SIZE
	lexts := t.exm() + 1
	for k, e := range targets {
		if k > 0 {
			fill(e.data, 0)
			copy(e.data[0:12], ci.data[0:12])
		}
		recs := records - k*perRecs
		if recs > perRecs {
			recs = perRecs
		}
		if recs < 0 {
			recs = 0
		}
		lext := k * lexts
		rc := 0
		if recs > 0 {
			lext += (recs - 1) / CPM_RECORDS_LEXT
			rc = recs - (recs-1)/CPM_RECORDS_LEXT*CPM_RECORDS_LEXT
		}
		e.data[12] = byte(lext % 32)
		e.data[13] = 0
		e.data[14] = byte(lext / 32)
		e.data[15] = byte(rc)
		fill(e.data[CPM_AL_OFFSET:], 0)
		lo := k * per
		hi := lo + per
		if hi > len(blocks) {
			hi = len(blocks)
		}
		for i := lo; i < hi; i++ {
			e.setBlock(i-lo, blocks[i], t.wide())
		}
		e.Flush()
	}
	for _, g := range blocks {
		t.used[g] = true
	}

	chain := GroupChain{SizePerGroup: bls}
	for i, g := range blocks {
		next := InvalidGroupNumber
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}
		chain.Add(t.GetNumsFromGroup(g, next, -1)...)
	}
	chain.Size = size
	chain.Recalc()
	return chain, nil
}

// DeleteGroups frees the blocks and drops every extent that referenced them.
func (t *cpmType) DeleteGroups(chain GroupChain) error {
	owned := make(map[int]bool)
	for _, g := range chain.AllGroups() {
		owned[g] = true
		t.SetGroupNumber(g, t.param.GroupUnusedCode)
	}
	if len(owned) == 0 {
		return nil
	}
	for _, e := range t.items() {
		if !e.live() {
			continue
		}
		for _, g := range e.blocks() {
			if owned[g] {
				e.data[0] = CPM_ENTRY_FREE
				e.Flush()
				break
			}
		}
	}
	return nil
}

// PrepareToRename remembers the hidden extents under the old name.
func (t *cpmType) PrepareToRename(item Item) error {
	ci, ok := item.(*cpmItem)
	if !ok {
		return nil
	}
	t.renames = t.renames[:0]
	key := slotKey(ci.slot)
	for _, e := range t.extents(ci) {
		if slotKey(e.slot) != key {
			t.renames = append(t.renames, e)
		}
	}
	return nil
}

func (t *cpmType) AdditionalProcessOnRenamed(item Item, parent Item) error {
	ci, ok := item.(*cpmItem)
	if !ok {
		return nil
	}
	for _, e := range t.renames {
		copy(e.data[1:12], ci.data[1:12])
		e.Flush()
	}
	t.renames = nil
	return nil
}

func (t *cpmType) NewItem(num int, slot Slot) Item {
	return &cpmItem{ItemBase: newItemBase(num, slot), exm: t.exm(), wide: t.wide()}
}

type cpmItem struct {
	ItemBase
	exm  int
	wide bool
}

func (it *cpmItem) Check(last *bool) bool {
	d := it.data
	if d[0] == CPM_ENTRY_FREE {
		return true
	}
	if d[0] > CPM_MAX_USER {
		return d[0] <= 0x21
	}
	for _, c := range d[1:12] {
		if c&0x7f < 0x20 {
			return false
		}
	}
	return int(d[15]) <= CPM_RECORDS_LEXT
}

// CheckUsed counts labels and stamps as used so they are never handed out.
func (it *cpmItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != CPM_ENTRY_FREE
	return it.used
}

// live is a file extent as opposed to a free entry, label or stamp.
func (it *cpmItem) live() bool {
	return it.data[0] <= CPM_MAX_USER
}

// extent is the logical extent number of the last record the entry holds.
func (it *cpmItem) extent() int {
	return int(it.data[12]&0x1f) + int(it.data[14])*32
}

func (it *cpmItem) rc() int {
	return int(it.data[15])
}

// entryNum counts directory entries of a file from 0.
func (it *cpmItem) entryNum() int {
	return it.extent() / (it.exm + 1)
}

func (it *cpmItem) blocks() []int {
	var out []int
	al := it.data[CPM_AL_OFFSET:]
	if it.wide {
		for i := 0; i+1 < len(al); i += 2 {
			if v := le16(al[i:]); v != 0 {
				out = append(out, v)
			}
		}
		return out
	}
	for _, v := range al {
		if v != 0 {
			out = append(out, int(v))
		}
	}
	return out
}

func (it *cpmItem) setBlock(i, g int, wide bool) {
	al := it.data[CPM_AL_OFFSET:]
	if wide {
		putLE16(al[i*2:], g)
		return
	}
	al[i] = byte(g)
}

func (it *cpmItem) sameFile(o *cpmItem) bool {
	if it.data[0] != o.data[0] {
		return false
	}
	for i := 1; i < 12; i++ {
		if it.data[i]&0x7f != o.data[i]&0x7f {
			return false
		}
	}
	return true
}

func (it *cpmItem) IsVisible() bool {
	return it.live() && it.entryNum() == 0
}

func (it *cpmItem) NameLayout() NameLayout {
	return NameLayout{NameLen: 8, ExtLen: 3, Pad: 0x20, Upper: true}
}

func (it *cpmItem) GetFileNamePos() []byte {
	return it.data[1:9]
}

func (it *cpmItem) GetFileExtPos() []byte {
	return it.data[9:12]
}

// GetFileName strips the attribute bits kept in the name.
func (it *cpmItem) GetFileName(cs *charset.Charset) string {
	b := make([]byte, 11)
	for i := range b {
		b[i] = it.data[1+i] & 0x7f
	}
	l := it.NameLayout()
	name := FromNativeFileName(cs, b[:8], l)
	if ext := FromNativeFileName(cs, b[8:], l); ext != "" {
		return name + "." + ext
	}
	return name
}

func (it *cpmItem) SetFileName(cs *charset.Charset, name string) error {
	l := it.NameLayout()
	base, ext := SplitFileName(name, l)
	nb, err := ToNativeFileName(cs, base, 8, l)
	if err != nil {
		return err
	}
	eb, err := ToNativeFileName(cs, ext, 3, l)
	if err != nil {
		return err
	}
	for i, c := range append(nb, eb...) {
		if c&0x80 != 0 {
			return errName(ErrInvalidName, name)
		}
		it.data[1+i] = it.data[1+i]&0x80 | c
	}
	return nil
}

// cpmBinaryExts name the files that are stored without an end of text
// marker.
var cpmBinaryExts = map[string]bool{
	"COM": true, "BIN": true, "OVL": true, "REL": true, "PRL": true,
	"SPR": true, "SYS": true, "OBJ": true,
}

func (it *cpmItem) isText() bool {
	ext := make([]byte, 3)
	for i := range ext {
		ext[i] = it.data[9+i] & 0x7f
	}
	return !cpmBinaryExts[strings.TrimRight(string(ext), " ")]
}

func (it *cpmItem) GetFileAttr() FileAttr {
	d := it.data
	a := AttrBinary
	if it.isText() {
		a = AttrASCII
	}
	if d[9]&0x80 != 0 {
		a |= AttrReadOnly
	}
	if d[10]&0x80 != 0 {
		a |= AttrSystem
	}
	if d[11]&0x80 != 0 {
		a |= AttrArchive
	}
	return FileAttr{Attr: a, Origin: [3]int{int(d[0])}, Format: "cpm"}
}

func (it *cpmItem) SetFileAttr(a FileAttr) error {
	if a.Attr.Has(AttrDirectory) || a.Attr.Has(AttrVolume) {
		return newError(ErrCannotEdit)
	}
	if o, ok := a.OriginFor("cpm"); ok && o[0] <= CPM_MAX_USER {
		it.data[0] = byte(o[0])
	}
	bits := []struct {
		pos  int
		attr Attr
	}{{9, AttrReadOnly}, {10, AttrSystem}, {11, AttrArchive}}
	for _, b := range bits {
		it.data[b.pos] &= 0x7f
		if a.Attr.Has(b.attr) {
			it.data[b.pos] |= 0x80
		}
	}
	return nil
}

func (it *cpmItem) GetStartGroup() int {
	if bl := it.blocks(); len(bl) > 0 {
		return bl[0]
	}
	return InvalidGroupNumber
}

// SetStartGroup is a no-op; blocks are written with the extent.
func (it *cpmItem) SetStartGroup(group int) {}

// NeedCheckEofCode is false for binaries, whose size is only known to the
// record.
func (it *cpmItem) NeedCheckEofCode() bool {
	return it.isText()
}

func (it *cpmItem) Delete(code byte) {
	it.data[0] = code
}

func (it *cpmItem) ClearData() {
	fill(it.data, 0)
	fill(it.data[1:12], 0x20)
}
