package basic

import (
	"sort"
	"time"

	"github.com/paleotronic/diskbasic/charset"
	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/loggy"
)

// SectorStore is the sector container a volume lives on.
type SectorStore interface {
	GetSector(track, side, sector int) *disk.Sector
	Tracks() int
	Sides() int
	SectorsOnTrack(track, side int) int
	SectorSize() int
	WriteProtect() bool
}

// VolumeInfo seeds the metadata written by a format operation.
type VolumeInfo struct {
	Name   string
	Number int
	Date   time.Time
}

type AllocMode int

const (
	AllocNew AllocMode = iota
	AllocAppend
)

// Type is the allocation strategy of one disk format.
type Type interface {
	Base() *TypeBase
	Param() *Param

	ParseParamOnDisk(isFormatting bool) float64
	AssignFat(isFormatting bool) float64
	CheckFat(isFormatting bool) float64

	GetGroupNumber(group int) int
	SetGroupNumber(group, value int)
	IsUsedGroupNumber(group int) bool
	GetNextGroupNumber(group int, sectorPos int) int
	GetEmptyGroupNumber() int
	GetNextEmptyGroupNumber(curr int) int

	GetNumsFromGroup(group, next, remain int) []GroupItem
	DirSlots(dir Item) ([]Slot, error)
	NewItem(num int, slot Slot) Item

	AdditionalProcessOnFormatted(vi VolumeInfo) error
}

// Linker is a Type keeping its chains as next pointers in a table.
type Linker interface {
	Type
	FinalCode(sectors int) int
	IsFinalCode(v int) bool
	SectorsInFinal(v int) int
}

type ChainReader interface {
	GetUnitGroups(item Item) (GroupChain, error)
}

type Allocator interface {
	AllocateUnitGroups(item Item, size int, mode AllocMode) (GroupChain, error)
}

type GroupReleaser interface {
	DeleteGroups(chain GroupChain) error
}

type FreeSizer interface {
	CalcDiskFreeSize() (bytes int, groups int)
}

// CapacityCalculator is implemented by formats that spend some of the free
// groups on their own blocks when a file is saved.
type CapacityCalculator interface {
	CalcFileCapacity(groups int) int
}

// DataWindower limits file data to part of each sector.
type DataWindower interface {
	DataWindow() (offset, size int)
}

type DirExpander interface {
	ExpandDirectory(dir Item) error
}

// SlotAllocator is implemented by formats whose directory slots are whole
// blocks taken from the free pool.
type SlotAllocator interface {
	AllocateSlot(dir Item, name string) (Slot, error)
	ReleaseSlot(item Item) error
}

type DirectoryMaker interface {
	CanMakeDirectory() bool
	SubDirSize() int
	PrepareToMakeDirectory(item Item) error
	AdditionalProcessOnMadeDirectory(item Item, parent Item, chain GroupChain) error
}

type SaveHooker interface {
	AdditionalProcessOnSaved(item Item, parent Item) error
}

type DeleteHooker interface {
	AdditionalProcessOnDeleted(item Item, parent Item) error
}

type RenameHooker interface {
	AdditionalProcessOnRenamed(item Item, parent Item) error
}

type VolumeNamer interface {
	GetVolumeName() string
	SetVolumeName(name string) error
}

// TypeBase carries the state and the leaf defaults shared by every format.
// Nothing here calls back into the outer type.
type TypeBase struct {
	param    Param
	store    SectorStore
	side     int
	fat      *Fat
	cs       *charset.Charset
	log      *loggy.Logger
	report   *Report
	trackPos []int
	skewInv  []int
	total    int
}

func newTypeBase(p *Param, store SectorStore, side int, cs *charset.Charset, log *loggy.Logger, report *Report) *TypeBase {
	b := &TypeBase{
		param:  p.Clone(),
		store:  store,
		side:   side,
		cs:     cs,
		log:    log,
		report: report,
	}
	if b.log == nil {
		b.log = loggy.Discard
	}
	if b.report == nil {
		b.report = &Report{}
	}
	b.layout()
	return b
}

// layout recomputes the linear position tables from the parameters.
func (b *TypeBase) layout() {
	p := &b.param
	sides := b.Sides()
	b.trackPos = make([]int, p.Tracks+1)
	pos := 0
	for t := 0; t < p.Tracks; t++ {
		b.trackPos[t] = pos
		pos += p.SectorsOnTrack(t) * sides
	}
	b.trackPos[p.Tracks] = pos
	b.total = pos

	b.skewInv = nil
	if len(p.SectorSkew) > 0 {
		b.skewInv = make([]int, len(p.SectorSkew))
		for i, s := range p.SectorSkew {
			if s >= 0 && s < len(b.skewInv) {
				b.skewInv[s] = i
			}
		}
	}
}

func (b *TypeBase) Base() *TypeBase {
	return b
}

func (b *TypeBase) Param() *Param {
	return &b.param
}

func (b *TypeBase) Store() SectorStore {
	return b.store
}

func (b *TypeBase) Fat() *Fat {
	return b.fat
}

func (b *TypeBase) Charset() *charset.Charset {
	return b.cs
}

func (b *TypeBase) Log() *loggy.Logger {
	return b.log
}

func (b *TypeBase) Report() *Report {
	return b.report
}

// Sides is the number of sides the volume spans.
func (b *TypeBase) Sides() int {
	if b.side >= 0 {
		return 1
	}
	return b.param.Sides
}

func (b *TypeBase) SectorSize() int {
	return b.param.SectorSize
}

// TotalSectors is the number of linear positions on the volume.
func (b *TypeBase) TotalSectors() int {
	return b.total
}

func (b *TypeBase) physSide(side int) int {
	if b.side >= 0 {
		return b.side
	}
	if b.param.ReverseSide && b.param.Sides == 2 {
		return 1 - side
	}
	return side
}

func (b *TypeBase) logicalSide(phys int) int {
	if b.side >= 0 {
		return 0
	}
	if b.param.ReverseSide && b.param.Sides == 2 {
		return 1 - phys
	}
	return phys
}

// GetSectorPosFromNum converts a physical address to a linear position,
// -1 when out of range.
func (b *TypeBase) GetSectorPosFromNum(track, side, sector int) int {
	p := &b.param
	if track < 0 || track >= p.Tracks {
		return -1
	}
	if b.side >= 0 && side != b.side {
		return -1
	}
	ls := b.logicalSide(side)
	if ls < 0 || ls >= b.Sides() {
		return -1
	}
	spt := p.SectorsOnTrack(track)
	idx := sector - p.SectorBase
	if idx < 0 || idx >= spt {
		return -1
	}
	if b.skewInv != nil && idx < len(b.skewInv) {
		idx = b.skewInv[idx]
	}
	return b.trackPos[track] + ls*spt + idx
}

// GetNumFromSectorPos converts a linear position back to a physical
// address. track is -1 when pos is out of range.
func (b *TypeBase) GetNumFromSectorPos(pos int) (track, side, sector int) {
	if pos < 0 || pos >= b.total {
		return -1, -1, -1
	}
	p := &b.param
	track = sort.Search(p.Tracks, func(t int) bool { return b.trackPos[t+1] > pos })
	spt := p.SectorsOnTrack(track)
	idx := pos - b.trackPos[track]
	side = idx / spt
	idx %= spt
	if len(p.SectorSkew) > 0 && idx < len(p.SectorSkew) {
		idx = p.SectorSkew[idx]
	}
	return track, b.physSide(side), idx + p.SectorBase
}

// SectorAt returns the sector at a linear position.
func (b *TypeBase) SectorAt(pos int) *disk.Sector {
	t, s, n := b.GetNumFromSectorPos(pos)
	if t < 0 {
		return nil
	}
	return b.store.GetSector(t, s, n)
}

// Sector fetches by logical track and side.
func (b *TypeBase) Sector(track, side, sector int) *disk.Sector {
	return b.store.GetSector(track, b.physSide(side), sector)
}

func (b *TypeBase) CalcDataStartSectorPos() int {
	return b.param.DataStartPos
}

// CalcSkippedTrack moves a position past the track excluded from group
// numbering. Track 0 is never skipped.
func (b *TypeBase) CalcSkippedTrack(pos int) int {
	p := &b.param
	if p.SkippedTrack <= 0 || p.SkippedTrack >= p.Tracks {
		return pos
	}
	if pos >= b.trackPos[p.SkippedTrack] {
		pos += b.trackPos[p.SkippedTrack+1] - b.trackPos[p.SkippedTrack]
	}
	return pos
}

// GetStartSectorFromGroup returns the first linear position of group and
// the sub sector index it starts at.
func (b *TypeBase) GetStartSectorFromGroup(group int) (pos int, div int) {
	p := &b.param
	g := group - p.FirstGroup
	if g < 0 {
		return -1, 0
	}
	if p.GroupsPerSector > 1 {
		pos = p.DataStartPos + g/p.GroupsPerSector
		div = g % p.GroupsPerSector
	} else {
		pos = p.DataStartPos + g*p.SectorsPerGroup
	}
	pos = b.CalcSkippedTrack(pos)
	if pos >= b.total {
		return -1, 0
	}
	return pos, div
}

func (b *TypeBase) GetEndSectorFromGroup(group int) int {
	pos, _ := b.GetStartSectorFromGroup(group)
	if pos < 0 {
		return -1
	}
	if b.param.GroupsPerSector > 1 {
		return pos
	}
	return pos + b.param.SectorsPerGroup - 1
}

// GetGroupFromSectorPos is the inverse of GetStartSectorFromGroup.
func (b *TypeBase) GetGroupFromSectorPos(pos int, div int) int {
	p := &b.param
	sk := p.SkippedTrack
	if sk > 0 && sk < p.Tracks {
		if pos >= b.trackPos[sk] && pos < b.trackPos[sk+1] {
			return InvalidGroupNumber
		}
		if pos >= b.trackPos[sk+1] {
			pos -= b.trackPos[sk+1] - b.trackPos[sk]
		}
	}
	rel := pos - p.DataStartPos
	if rel < 0 {
		return InvalidGroupNumber
	}
	if p.GroupsPerSector > 1 {
		return rel*p.GroupsPerSector + div + p.FirstGroup
	}
	return rel/p.SectorsPerGroup + p.FirstGroup
}

// GetNumsFromGroup maps a group to its runs. remain, when not negative,
// limits the number of sectors covered.
func (b *TypeBase) GetNumsFromGroup(group, next, remain int) []GroupItem {

	p := &b.param
	start, div := b.GetStartSectorFromGroup(group)
	if start < 0 {
		return nil
	}

	if p.GroupsPerSector > 1 {
		t, s, n := b.GetNumFromSectorPos(start)
		return []GroupItem{{
			Group: group, Next: next, Track: t, Side: s,
			SectorStart: n, SectorEnd: n,
			DivIndex: div, DivCount: p.GroupsPerSector,
		}}
	}

	count := p.SectorsPerGroup
	if remain >= 0 && remain < count {
		count = remain
	}
	return b.runsFromPos(group, next, start, count)
}

// runsFromPos coalesces count positions from start into runs on the same
// track and side.
func (b *TypeBase) runsFromPos(group, next, start, count int) []GroupItem {
	var out []GroupItem
	for i := 0; i < count; i++ {
		t, s, n := b.GetNumFromSectorPos(start + i)
		if t < 0 {
			break
		}
		if l := len(out) - 1; l >= 0 && out[l].Track == t && out[l].Side == s && out[l].SectorEnd+1 == n {
			out[l].SectorEnd = n
			continue
		}
		out = append(out, GroupItem{
			Group: group, Next: next, Track: t, Side: s,
			SectorStart: n, SectorEnd: n, DivCount: 1,
		})
	}
	return out
}

// ParseParamOnDisk accepts the registry constants as they are.
func (b *TypeBase) ParseParamOnDisk(isFormatting bool) float64 {
	return 1.0
}

// AssignFat binds the table described by FatStartPos, FatOffset,
// SectorsPerFat and FatCopies.
func (b *TypeBase) AssignFat(isFormatting bool) float64 {
	p := &b.param
	if p.SectorsPerFat <= 0 {
		return 1.0
	}
	copies := p.FatCopies
	if copies <= 0 {
		copies = 1
	}
	var all [][]Window
	for c := 0; c < copies; c++ {
		var ws []Window
		for i := 0; i < p.SectorsPerFat; i++ {
			s := b.SectorAt(p.FatStartPos + c*p.SectorsPerFat + i)
			if s == nil {
				return -1.0
			}
			ofs := 0
			if i == 0 {
				ofs = p.FatOffset
			}
			if ofs >= s.Size() {
				return -1.0
			}
			ws = append(ws, Window{Sector: s, Offset: ofs, Size: s.Size() - ofs})
		}
		all = append(all, ws)
	}
	b.fat = NewFat(all, p.DataInverted)
	return 1.0
}

// DirSlots walks the fixed directory area. Entries crossing a sector
// boundary get two windows.
func (b *TypeBase) DirSlots(dir Item) ([]Slot, error) {
	p := &b.param
	if dir != nil {
		return nil, newError(ErrNotDirectory)
	}
	if p.DirEntrySize <= 0 {
		return nil, newError(ErrInvalidParam)
	}
	var secs []*disk.Sector
	var poss []int
	for pos := p.DirStartPos; pos <= p.DirEndPos; pos++ {
		s := b.SectorAt(pos)
		if s == nil {
			t, sd, n := b.GetNumFromSectorPos(pos)
			return nil, errSector(ErrNoSector, t, sd, n)
		}
		secs = append(secs, s)
		poss = append(poss, pos)
	}
	return sliceSlots(secs, poss, 0, p.DirEntrySize, -1, InvalidGroupNumber), nil
}

// sliceSlots cuts consecutive sector buffers into fixed size entries,
// starting skip bytes into the first. limit caps the entry count when not
// negative.
func sliceSlots(secs []*disk.Sector, poss []int, skip, size, limit int, parent int) []Slot {
	var out []Slot
	si, ofs := 0, skip
	for si < len(secs) && (limit < 0 || len(out) < limit) {
		var parts []Window
		need := size
		pos := poss[si]
		for need > 0 && si < len(secs) {
			s := secs[si]
			n := s.Size() - ofs
			if n > need {
				n = need
			}
			parts = append(parts, Window{Sector: s, Offset: ofs, Size: n})
			need -= n
			ofs += n
			if ofs >= s.Size() {
				si++
				ofs = 0
			}
		}
		if need > 0 {
			break
		}
		out = append(out, Slot{Parts: parts, Pos: pos, Parent: parent})
	}
	return out
}

// chainSectors lists the sectors covered by chain in order, with their
// linear positions.
func (b *TypeBase) chainSectors(chain GroupChain) ([]*disk.Sector, []int) {
	var secs []*disk.Sector
	var poss []int
	for _, gi := range chain.Items {
		for n := gi.SectorStart; n <= gi.SectorEnd; n++ {
			s := b.store.GetSector(gi.Track, gi.Side, n)
			if s == nil {
				continue
			}
			secs = append(secs, s)
			poss = append(poss, b.GetSectorPosFromNum(gi.Track, gi.Side, n))
		}
	}
	return secs, poss
}

func (b *TypeBase) AdditionalProcessOnFormatted(vi VolumeInfo) error {
	return nil
}

// FillPositions sets every sector in [start, end] to code.
func (b *TypeBase) FillPositions(start, end int, code byte) {
	for pos := start; pos <= end; pos++ {
		if s := b.SectorAt(pos); s != nil {
			s.Fill(code)
		}
	}
}

// CountGroups returns the number of groups numbered on the volume.
func (b *TypeBase) CountGroups() int {
	return b.param.FatEndGroup + 1
}

// walkLinkedChain follows table pointers from the start group of item.
func walkLinkedChain(t Linker, start int) (GroupChain, error) {

	p := t.Param()
	chain := GroupChain{SizePerGroup: p.GroupSize()}
	if start == InvalidGroupNumber {
		return chain, nil
	}

	limit := p.FatEndGroup + 1
	seen := make(map[int]bool)
	g := start
	for i := 0; ; i++ {
		if i > limit {
			return chain, errGroup(ErrLoopedChain, g)
		}
		if g < p.FirstGroup || g > p.FatEndGroup {
			return chain, errGroup(ErrBrokenChain, g)
		}
		if seen[g] {
			return chain, errGroup(ErrLoopedChain, g)
		}
		seen[g] = true

		raw := t.GetGroupNumber(g)
		next := t.GetNextGroupNumber(g, -1)
		if next == g {
			return chain, errGroup(ErrLoopedChain, g)
		}

		if next == InvalidGroupNumber {
			if !t.IsFinalCode(raw) {
				return chain, errGroup(ErrBrokenChain, g)
			}
			items := t.GetNumsFromGroup(g, raw, t.SectorsInFinal(raw))
			chain.Add(items...)
			for _, it := range items {
				chain.Size += groupItemBytes(p, it)
			}
			break
		}

		items := t.GetNumsFromGroup(g, next, -1)
		chain.Add(items...)
		for _, it := range items {
			chain.Size += groupItemBytes(p, it)
		}
		g = next
	}
	chain.Recalc()
	return chain, nil
}

func groupItemBytes(p *Param, it GroupItem) int {
	if it.DivCount > 1 {
		return p.SectorSize / it.DivCount
	}
	return it.Sectors() * p.SectorSize
}

// allocateLinked builds a new chain in the table covering size bytes. Every
// group taken by the call is given back when it fails.
func allocateLinked(t Linker, item Item, size int, mode AllocMode) (GroupChain, error) {

	p := t.Param()
	gsize := p.GroupSize()
	need := (size + gsize - 1) / gsize
	if need == 0 {
		need = 1
	}
	lastSectors := p.SectorsPerGroup
	if p.GroupsPerSector > 1 {
		lastSectors = 1
	} else if rem := size - (need-1)*gsize; rem > 0 {
		lastSectors = (rem + p.SectorSize - 1) / p.SectorSize
	} else if size == 0 {
		lastSectors = 1
	}

	prev := InvalidGroupNumber
	oldStart := item.GetStartGroup()
	if mode == AllocAppend && oldStart != InvalidGroupNumber {
		c, err := walkLinkedChain(t, oldStart)
		if err != nil {
			return GroupChain{}, err
		}
		gs := c.Groups()
		if len(gs) > 0 {
			prev = gs[len(gs)-1]
		}
	}
	tail := prev
	tailRaw := 0
	if tail != InvalidGroupNumber {
		tailRaw = t.GetGroupNumber(tail)
	}

	var acquired []int
	bound := false
	rollback := func(k Kind, g int) error {
		for _, a := range acquired {
			t.SetGroupNumber(a, p.GroupUnusedCode)
		}
		if tail != InvalidGroupNumber {
			t.SetGroupNumber(tail, tailRaw)
		}
		if bound && mode == AllocNew {
			item.SetStartGroup(oldStart)
		}
		e := errGroup(k, g)
		e.Partial = bound
		return e
	}

	g := InvalidGroupNumber
	if prev == InvalidGroupNumber {
		g = t.GetEmptyGroupNumber()
	} else {
		g = t.GetNextEmptyGroupNumber(prev)
	}
	for i := 0; i < need; i++ {
		if g == InvalidGroupNumber {
			return GroupChain{}, rollback(ErrDiskFull, g)
		}
		t.SetGroupNumber(g, t.FinalCode(p.SectorsPerGroup))
		if prev != InvalidGroupNumber {
			t.SetGroupNumber(prev, g)
		} else {
			item.SetStartGroup(g)
			bound = true
		}
		acquired = append(acquired, g)
		prev = g
		if i < need-1 {
			g = t.GetNextEmptyGroupNumber(g)
		}
	}
	t.SetGroupNumber(prev, t.FinalCode(lastSectors))

	if mode == AllocAppend {
		return walkLinkedChain(t, item.GetStartGroup())
	}
	chain, err := walkLinkedChain(t, acquired[0])
	if err != nil {
		return chain, err
	}
	chain.Size = size
	chain.Recalc()
	return chain, nil
}

// releaseChain frees every group of chain, overhead groups included.
func releaseChain(t Type, chain GroupChain) {
	p := t.Param()
	for _, g := range chain.AllGroups() {
		t.SetGroupNumber(g, p.GroupUnusedCode)
	}
}

// groupScanner is the part of a strategy the free space searches need.
type groupScanner interface {
	Param() *Param
	IsUsedGroupNumber(group int) bool
}

// countFreeGroups scans the whole table.
func countFreeGroups(t groupScanner) int {
	p := t.Param()
	n := 0
	for g := p.FirstGroup; g <= p.FatEndGroup; g++ {
		if !t.IsUsedGroupNumber(g) {
			n++
		}
	}
	return n
}

// firstFreeFrom scans upward from start and wraps to the first group.
func firstFreeFrom(t groupScanner, start int) int {
	p := t.Param()
	if start < p.FirstGroup {
		start = p.FirstGroup
	}
	for g := start; g <= p.FatEndGroup; g++ {
		if !t.IsUsedGroupNumber(g) {
			return g
		}
	}
	for g := p.FirstGroup; g < start && g <= p.FatEndGroup; g++ {
		if !t.IsUsedGroupNumber(g) {
			return g
		}
	}
	return InvalidGroupNumber
}

// takeFree lists n distinct free groups in the order firstFreeFrom would
// visit them. It returns nil when fewer than n are free.
func takeFree(t groupScanner, start, n int) []int {
	p := t.Param()
	if start < p.FirstGroup {
		start = p.FirstGroup
	}
	out := make([]int, 0, n)
	visit := func(from, to int) {
		for g := from; g <= to && len(out) < n; g++ {
			if !t.IsUsedGroupNumber(g) {
				out = append(out, g)
			}
		}
	}
	visit(start, p.FatEndGroup)
	visit(p.FirstGroup, start-1)
	if len(out) < n {
		return nil
	}
	return out
}

// firstFreeInOrder returns the first free group of a precomputed search
// order.
func firstFreeInOrder(t groupScanner, order []int) int {
	for _, g := range order {
		if !t.IsUsedGroupNumber(g) {
			return g
		}
	}
	return InvalidGroupNumber
}

// Run is a span of consecutive free groups.
type Run struct {
	Start int
	Count int
}

// scanRuns lists the free runs of the table in ascending order.
func scanRuns(t groupScanner) []Run {
	p := t.Param()
	var runs []Run
	cur := Run{Start: InvalidGroupNumber}
	for g := p.FirstGroup; g <= p.FatEndGroup; g++ {
		if t.IsUsedGroupNumber(g) {
			if cur.Count > 0 {
				runs = append(runs, cur)
			}
			cur = Run{Start: InvalidGroupNumber}
			continue
		}
		if cur.Count == 0 {
			cur.Start = g
		}
		cur.Count++
	}
	if cur.Count > 0 {
		runs = append(runs, cur)
	}
	return runs
}

// pickRuns takes groups for need units: the first run large enough, or
// failing that the runs in ascending order until satisfied. max limits the
// number of runs, and maxLen the length of one run, when positive.
func pickRuns(runs []Run, need, max, maxLen int) []Run {
	if need <= 0 {
		return nil
	}
	for _, r := range runs {
		if r.Count >= need && (maxLen <= 0 || need <= maxLen) {
			return []Run{{Start: r.Start, Count: need}}
		}
	}
	var out []Run
	for _, r := range runs {
		for r.Count > 0 && need > 0 {
			n := r.Count
			if n > need {
				n = need
			}
			if maxLen > 0 && n > maxLen {
				n = maxLen
			}
			out = append(out, Run{Start: r.Start, Count: n})
			if max > 0 && len(out) > max {
				return nil
			}
			r.Start += n
			r.Count -= n
			need -= n
		}
		if need == 0 {
			return out
		}
	}
	return nil
}

// distanceOrder lists groups sorted by the distance of their first track
// from center. Ties go to the lower track first when below is set.
func distanceOrder(b *TypeBase, center int, below bool) []int {
	p := &b.param
	type gd struct {
		g, track, dist int
	}
	var all []gd
	for g := p.FirstGroup; g <= p.FatEndGroup; g++ {
		pos, _ := b.GetStartSectorFromGroup(g)
		if pos < 0 {
			continue
		}
		t, _, _ := b.GetNumFromSectorPos(pos)
		d := t - center
		if d < 0 {
			d = -d
		}
		all = append(all, gd{g: g, track: t, dist: d})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].dist != all[j].dist {
			return all[i].dist < all[j].dist
		}
		if all[i].track != all[j].track {
			if below {
				return all[i].track < all[j].track
			}
			return all[i].track > all[j].track
		}
		return all[i].g < all[j].g
	})
	out := make([]int, len(all))
	for i, v := range all {
		out[i] = v.g
	}
	return out
}
