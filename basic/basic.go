package basic

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/paleotronic/diskbasic/charset"
	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/loggy"
)

// SaveOptions controls how SaveFile writes a new entry.
type SaveOptions struct {
	Attr      FileAttr
	Overwrite bool
	Load      int
	Exec      int
	Date      time.Time
}

// Summary is one line of a directory listing.
type Summary struct {
	Index   int
	Name    string
	Attr    FileAttr
	Size    int
	Groups  int
	Date    time.Time
	HasDate bool
	Load    int
	Exec    int
	Dir     bool
}

// Basic is the filesystem of one mounted volume. Every exported operation
// holds the volume lock.
type Basic struct {
	mu       sync.Mutex
	reg      *Registry
	charsets *charset.Table
	log      *loggy.Logger
	store    SectorStore
	typ      Type
	cs       *charset.Charset
	csName   string
	dir      *Dir
	side     int
	score    float64
	report   Report
}

func New(reg *Registry, charsets *charset.Table, log *loggy.Logger) *Basic {
	if reg == nil {
		reg = NewRegistry()
	}
	if charsets == nil {
		charsets = charset.NewTable()
	}
	if log == nil {
		log = loggy.Discard
	}
	return &Basic{reg: reg, charsets: charsets, log: log, side: -1, dir: newDir()}
}

// SetCharset overrides the charset named by the format parameters.
func (b *Basic) SetCharset(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name != "" {
		if _, err := b.charsets.Get(name); err != nil {
			return err
		}
	}
	b.csName = name
	if b.typ != nil {
		b.cs = b.pickCharset(b.typ.Param())
		b.typ.Base().cs = b.cs
	}
	return nil
}

func (b *Basic) pickCharset(p *Param) *charset.Charset {
	if b.csName != "" {
		return b.charsets.MustGet(b.csName)
	}
	return b.charsets.MustGet(p.Charset)
}

func (b *Basic) IsFormatted() bool {
	return b.typ != nil
}

func (b *Basic) Type() Type {
	return b.typ
}

func (b *Basic) Param() *Param {
	if b.typ == nil {
		return nil
	}
	return b.typ.Param()
}

func (b *Basic) Charset() *charset.Charset {
	return b.cs
}

func (b *Basic) Report() *Report {
	return &b.report
}

func (b *Basic) Dir() *Dir {
	return b.dir
}

func (b *Basic) Score() float64 {
	return b.score
}

func (b *Basic) newType(p *Param, store SectorStore, side int, report *Report) (Type, error) {
	ctor, ok := typeConstructors[p.Kind]
	if !ok {
		return nil, errName(ErrUnsupported, p.Kind)
	}
	base := newTypeBase(p, store, side, b.pickCharset(p), b.log, report)
	return ctor(base), nil
}

// ParseDisk mounts store. With an empty format every registered format
// whose geometry fits is tried and the best score wins.
func (b *Basic) ParseDisk(store SectorStore, side int, format string, isFormatting bool) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parseDisk(store, side, format, isFormatting)
}

func (b *Basic) parseDisk(store SectorStore, side int, format string, isFormatting bool) (float64, error) {

	b.typ = nil
	b.dir = newDir()
	b.report = Report{}
	b.score = -1

	var cands []*Param
	if format != "" {
		p, err := b.reg.Lookup(format)
		if err != nil {
			return -1, err
		}
		if !p.Matches(store, side) {
			return -1, errName(ErrUnsupported, format)
		}
		cands = []*Param{p}
	} else {
		cands = b.reg.Candidates(store, side)
	}
	if len(cands) == 0 {
		return -1, newError(ErrUnsupported)
	}

	best := -2.0
	var bestType Type
	var bestReport *Report
	for _, p := range cands {
		rep := &Report{}
		t, err := b.newType(p, store, side, rep)
		if err != nil {
			b.log.Errorf("%s: %v", p.Name, err)
			continue
		}
		score, valid := b.tryParse(t, isFormatting)
		b.log.Logf("parse %s: score %.3f valid %v", p.Name, score, valid)
		if valid && score > best {
			best = score
			bestType = t
			bestReport = rep
		}
	}
	if bestType == nil {
		return -1, newError(ErrUnformatted)
	}

	b.typ = bestType
	b.store = store
	b.side = side
	b.score = best
	b.cs = bestType.Base().cs
	b.report = *bestReport
	b.log.Logf("mounted %s", bestType.Param().Name)

	if err := b.reloadDir(); err != nil {
		b.report.Errorf("directory: %v", err)
	}
	return best, nil
}

func (b *Basic) tryParse(t Type, isFormatting bool) (float64, bool) {
	s1 := t.ParseParamOnDisk(isFormatting)
	if s1 < 0 {
		return s1, false
	}
	t.Base().layout()
	s2a := t.AssignFat(isFormatting)
	if s2a < 0 {
		return (s1 + s2a) / 3, false
	}
	s2b := t.CheckFat(isFormatting)
	s2 := (s2a + s2b) / 2
	s3 := checkRootDirectory(t)
	return (s1 + s2 + s3) / 3, s2b >= 0 && s3 >= 0
}

// checkRootDirectory scores the fraction of sane entries in the root.
func checkRootDirectory(t Type) float64 {
	slots, err := t.DirSlots(nil)
	if err != nil {
		return -1
	}
	total, bad := 0, 0
	for num, s := range slots {
		it := t.NewItem(num, s)
		last := false
		ok := it.Check(&last)
		if last {
			break
		}
		total++
		if !ok {
			bad++
		}
	}
	if total == 0 {
		return 1
	}
	return 1 - 2*float64(bad)/float64(total)
}

func slotKey(s Slot) [2]int {
	if len(s.Parts) == 0 {
		return [2]int{s.Pos, -1}
	}
	return [2]int{s.Pos, s.Parts[0].Offset}
}

// reloadDir rebuilds the entry arena from disk, keeping the current
// directory when it still exists.
func (b *Basic) reloadDir() error {

	var curKey [2]int
	hasCur := false
	if it := b.dir.CurrentItem(); it != nil {
		curKey = slotKey(it.Base().slot)
		hasCur = true
	}

	d := newDir()
	err := b.readDirTree(d, nil, -1, 0, make(map[int]bool))
	if hasCur {
		for i, it := range d.items {
			if slotKey(it.Base().slot) == curKey && it.Base().IsUsed() && isDirectory(it) {
				d.cur = i
				break
			}
		}
	}
	b.dir = d
	return err
}

func (b *Basic) readDirTree(d *Dir, dirItem Item, parent int, depth int, visited map[int]bool) error {

	slots, err := b.typ.DirSlots(dirItem)
	if err != nil {
		return err
	}

	for num, s := range slots {
		it := b.typ.NewItem(num, s)
		last := false
		ok := it.Check(&last)
		if !ok {
			if last {
				break
			}
			continue
		}
		it.CheckUsed(false)
		idx := d.add(it, parent)
		if last {
			break
		}
		if !it.Base().IsUsed() || !isDirectory(it) || isSelfOrParent(it) || depth >= maxDirDepth {
			continue
		}
		g := it.GetStartGroup()
		if visited[g] {
			b.report.Warnf("directory loop at group %d", g)
			continue
		}
		visited[g] = true
		if err := b.readDirTree(d, it, idx, depth+1, visited); err != nil {
			b.report.Warnf("%s: %v", GetFileName(it, b.cs), err)
		}
	}
	return nil
}

func (b *Basic) mounted() error {
	if b.typ == nil {
		return newError(ErrUnformatted)
	}
	return nil
}

func (b *Basic) writable() error {
	if err := b.mounted(); err != nil {
		return err
	}
	if b.store.WriteProtect() {
		return newError(ErrWriteProtected)
	}
	return nil
}

func (b *Basic) name(it Item) string {
	return GetFileName(it, b.cs)
}

func (b *Basic) listable(it Item) bool {
	return it.Base().IsUsed() && isVisible(it) && !isSelfOrParent(it)
}

// Items lists the current directory.
func (b *Basic) Items() []Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Summary
	if b.typ == nil {
		return nil
	}
	for _, idx := range b.dir.Children(b.dir.cur) {
		it := b.dir.items[idx]
		if !b.listable(it) || isVolumeLabel(it) {
			continue
		}
		out = append(out, b.summarize(it))
	}
	return out
}

func (b *Basic) summarize(it Item) Summary {
	s := Summary{
		Index: it.Base().index,
		Name:  b.name(it),
		Attr:  it.GetFileAttr(),
		Dir:   isDirectory(it),
	}
	if chain, err := b.fileChain(it); err == nil {
		s.Groups = chain.Count
		s.Size = chain.Size
	}
	if _, ok := it.(EOFChecker); ok && !s.Dir {
		if data, err := b.readData(it); err == nil {
			s.Size = len(data)
		}
	} else if _, ok := it.(DataConverter); ok && !s.Dir {
		if data, err := b.readData(it); err == nil {
			s.Size = len(data)
		}
	}
	if d, ok := it.(Dater); ok {
		s.Date, s.HasDate = d.GetFileDate()
	}
	if a, ok := it.(Addresser); ok {
		s.Load = a.GetLoadAddress()
		s.Exec = a.GetExecAddress()
	}
	return s
}

// FindFile looks name up in the current directory.
func (b *Basic) FindFile(name string) (Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.mounted(); err != nil {
		return nil, err
	}
	return b.findFile(name)
}

// findFile prefers visible entries and falls back to hidden ones.
func (b *Basic) findFile(name string) (Item, error) {
	var hidden Item
	for _, idx := range b.dir.Children(b.dir.cur) {
		it := b.dir.items[idx]
		if !it.Base().IsUsed() || isSelfOrParent(it) || isVolumeLabel(it) {
			continue
		}
		if !SameName(it, b.cs, name) {
			continue
		}
		if isVisible(it) {
			return it, nil
		}
		if hidden == nil {
			hidden = it
		}
	}
	if hidden != nil {
		return hidden, nil
	}
	return nil, errName(ErrFileNotFound, name)
}

// fileChain expands the groups of it, caching the result on the entry.
func (b *Basic) fileChain(it Item) (GroupChain, error) {

	if c, ok := it.Base().cachedChain(); ok {
		return c, nil
	}

	var chain GroupChain
	var err error
	switch t := b.typ.(type) {
	case ChainReader:
		chain, err = t.GetUnitGroups(it)
	case Linker:
		chain, err = walkLinkedChain(t, it.GetStartGroup())
	default:
		return chain, newError(ErrUnsupported)
	}
	if err != nil {
		return chain, err
	}
	if eg, ok := it.(ExtraGrouper); ok {
		chain.Extras = append(chain.Extras, eg.GetExtraGroups()...)
	}
	if sz, ok := it.(Sizer); ok {
		if n := sz.GetFileSize(); n >= 0 {
			chain.Size = n
			chain.Recalc()
		}
	}
	it.Base().setChain(chain)
	return chain, nil
}

// GetNumsFromGroup maps one group to its sector runs.
func (b *Basic) GetNumsFromGroup(group int) []GroupItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.typ == nil {
		return nil
	}
	return b.typ.GetNumsFromGroup(group, b.typ.GetNextGroupNumber(group, -1), -1)
}

// Chain returns the group chain of it.
func (b *Basic) Chain(it Item) (GroupChain, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.mounted(); err != nil {
		return GroupChain{}, err
	}
	return b.fileChain(it)
}

func (b *Basic) window(gi GroupItem, size int) (int, int) {
	off, n := 0, size
	if dw, ok := b.typ.(DataWindower); ok {
		off, n = dw.DataWindow()
	}
	if gi.DivCount > 1 {
		n /= gi.DivCount
		off += gi.DivIndex * n
	}
	return off, n
}

// accessUnitData visits every data window of chain in order, clamped to
// size bytes. Sectors are marked modified only when write is set.
func (b *Basic) accessUnitData(chain GroupChain, size int, write bool, fn func(buf []byte, done int) error) error {
	done := 0
	for _, gi := range chain.Items {
		for sec := gi.SectorStart; sec <= gi.SectorEnd && done < size; sec++ {
			s := b.store.GetSector(gi.Track, gi.Side, sec)
			if s == nil {
				e := errSector(ErrNoSector, gi.Track, gi.Side, sec)
				e.Group = gi.Group
				return e
			}
			off, n := b.window(gi, s.Size())
			if n > size-done {
				n = size - done
			}
			if err := fn(s.Data()[off:off+n], done); err != nil {
				return err
			}
			if write {
				s.SetModify()
			}
			done += n
		}
	}
	if done < size {
		return newError(ErrSizeMismatch)
	}
	return nil
}

func (b *Basic) readData(it Item) ([]byte, error) {

	chain, err := b.fileChain(it)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, chain.Size)
	err = b.accessUnitData(chain, chain.Size, false, func(buf []byte, done int) error {
		out = append(out, buf...)
		return nil
	})
	if err != nil {
		return out, err
	}

	if e, ok := it.(EOFChecker); ok && e.NeedCheckEofCode() && b.typ.Param().TextEOFCode >= 0 {
		out = trimEOF(out, byte(b.typ.Param().TextEOFCode))
	}
	if dc, ok := it.(DataConverter); ok {
		out = dc.ConvertDataForLoad(out)
	}
	return out, nil
}

func (b *Basic) writeData(chain GroupChain, data []byte) error {
	capacity := 0
	for _, gi := range chain.Items {
		_, n := b.window(gi, b.typ.Param().SectorSize)
		capacity += n * gi.Sectors()
	}
	if capacity < len(data) {
		return newError(ErrSizeMismatch)
	}
	return b.accessUnitData(chain, capacity, true, func(buf []byte, done int) error {
		n := 0
		if done < len(data) {
			n = copy(buf, data[done:])
		}
		fill(buf[n:], 0)
		return nil
	})
}

// LoadFile streams the contents of it to w.
func (b *Basic) LoadFile(it Item, w io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.mounted(); err != nil {
		return err
	}
	data, err := b.readData(it)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// VerifyFile compares the contents of it with data.
func (b *Basic) VerifyFile(it Item, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.mounted(); err != nil {
		return err
	}
	return b.verify(it, data)
}

func (b *Basic) verify(it Item, data []byte) error {
	got, err := b.readData(it)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) && !paddedCopy(it, got, data) {
		e := errName(ErrVerify, b.name(it))
		e.Err = fmt.Errorf("read %d bytes, want %d", len(got), len(data))
		return e
	}
	return nil
}

// paddedCopy accepts data read back with zero fill up to the end of its
// last record, for entries that keep neither a size nor an end marker.
func paddedCopy(it Item, got, data []byte) bool {
	e, ok := it.(EOFChecker)
	if !ok || e.NeedCheckEofCode() || len(got) < len(data) {
		return false
	}
	if !bytes.Equal(got[:len(data)], data) {
		return false
	}
	for _, c := range got[len(data):] {
		if c != 0 {
			return false
		}
	}
	return true
}

func (b *Basic) allocate(it Item, size int, mode AllocMode) (GroupChain, error) {
	switch t := b.typ.(type) {
	case Allocator:
		return t.AllocateUnitGroups(it, size, mode)
	case Linker:
		return allocateLinked(t, it, size, mode)
	}
	return GroupChain{}, newError(ErrUnsupported)
}

func (b *Basic) release(chain GroupChain) error {
	if r, ok := b.typ.(GroupReleaser); ok {
		return r.DeleteGroups(chain)
	}
	releaseChain(b.typ, chain)
	return nil
}

// freeSlot finds an unused entry in the current directory, growing it
// when the format allows. allocated reports a slot taken from the free
// pool.
func (b *Basic) freeSlot(name string) (it Item, allocated bool, err error) {

	parent := b.dir.CurrentItem()
	for pass := 0; pass < 2; pass++ {
		for _, idx := range b.dir.Children(b.dir.cur) {
			c := b.dir.items[idx]
			if !c.Base().IsUsed() {
				return c, false, nil
			}
		}
		if pass > 0 {
			break
		}
		if sa, ok := b.typ.(SlotAllocator); ok {
			slot, err := sa.AllocateSlot(parent, name)
			if err != nil {
				return nil, false, err
			}
			return b.typ.NewItem(-1, slot), true, nil
		}
		de, ok := b.typ.(DirExpander)
		if !ok {
			break
		}
		if err := de.ExpandDirectory(parent); err != nil {
			return nil, false, err
		}
		if err := b.reloadDir(); err != nil {
			return nil, false, err
		}
		parent = b.dir.CurrentItem()
	}
	return nil, false, newError(ErrDirFull)
}

type snapshot struct {
	it        Item
	data      []byte
	allocated bool
}

func takeSnapshot(it Item, allocated bool) snapshot {
	return snapshot{it: it, data: append([]byte(nil), it.Base().Data()...), allocated: allocated}
}

func (b *Basic) restore(s snapshot) {
	copy(s.it.Base().Data(), s.data)
	s.it.Base().Flush()
	s.it.Base().invalidate()
	if s.allocated {
		if sa, ok := b.typ.(SlotAllocator); ok {
			if err := sa.ReleaseSlot(s.it); err != nil {
				b.log.Errorf("release slot: %v", err)
			}
		}
	}
}

func (b *Basic) prepareEntry(it Item, name string, attr FileAttr, date time.Time) error {
	it.ClearData()
	if err := SetFileName(it, b.cs, name); err != nil {
		return err
	}
	if err := it.SetFileAttr(attr); err != nil {
		return err
	}
	if d, ok := it.(Dater); ok {
		if date.IsZero() {
			date = time.Now()
		}
		d.SetFileDate(date)
	}
	return nil
}

func (b *Basic) checkNewName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "/") {
		return errName(ErrInvalidName, name)
	}
	return nil
}

// SaveFile writes data as a new file in the current directory. Any failure
// leaves the volume as it was before the call, a replaced file included.
func (b *Basic) SaveFile(name string, data []byte, opts SaveOptions) (Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(); err != nil {
		return nil, err
	}
	if err := b.checkNewName(name); err != nil {
		return nil, err
	}

	existing, _ := b.findFile(name)
	if existing != nil {
		if !opts.Overwrite || isDirectory(existing) {
			return nil, errName(ErrFileExists, name)
		}
		if d, ok := existing.(Dater); ok && opts.Date.IsZero() {
			if tm, ok := d.GetFileDate(); ok {
				opts.Date = tm
			}
		}
	} else if free, _ := b.freeSize(); len(data) > free {
		return nil, errName(ErrNotEnoughSpace, name)
	}

	cp := b.takeCheckpoint()
	fail := func(err error) (Item, error) {
		b.rollback(cp)
		return nil, err
	}

	if existing != nil {
		if err := b.deleteFile(existing); err != nil {
			return fail(err)
		}
		if err := b.reloadDir(); err != nil {
			return fail(err)
		}
		if free, _ := b.freeSize(); len(data) > free {
			return fail(errName(ErrNotEnoughSpace, name))
		}
	}

	it, _, err := b.freeSlot(name)
	if err != nil {
		return fail(err)
	}
	if err := b.prepareEntry(it, name, opts.Attr, opts.Date); err != nil {
		return fail(err)
	}
	if a, ok := it.(Addresser); ok {
		a.SetLoadAddress(opts.Load)
		a.SetExecAddress(opts.Exec)
	}

	conv := b.convertForSave(it, data, opts)
	if sl, ok := it.(SizeLimiter); ok && len(conv) > sl.MaxFileSize() {
		return fail(errName(ErrFileTooLarge, name))
	}
	if sz, ok := it.(Sizer); ok {
		sz.SetFileSize(len(conv))
	}

	chain, err := b.allocate(it, len(conv), AllocNew)
	if err != nil {
		b.log.Errorf("save %s: allocate %d bytes: %v", name, len(conv), err)
		return fail(err)
	}
	if err := b.writeData(chain, conv); err != nil {
		b.log.Errorf("save %s: write: %v", name, err)
		return fail(err)
	}
	it.Base().Flush()

	if h, ok := b.typ.(SaveHooker); ok {
		if err := h.AdditionalProcessOnSaved(it, b.dir.CurrentItem()); err != nil {
			return fail(err)
		}
	}

	if err := b.reloadDir(); err != nil {
		return fail(err)
	}
	saved, err := b.findFile(name)
	if err != nil {
		return fail(err)
	}
	if err := b.verify(saved, data); err != nil {
		b.log.Errorf("save %s: %v", name, err)
		return fail(err)
	}
	return saved, nil
}

// convertForSave returns the bytes stored for data, header and end of
// text marker included.
func (b *Basic) convertForSave(it Item, data []byte, opts SaveOptions) []byte {
	conv := data
	if dc, ok := it.(DataConverter); ok {
		conv = dc.ConvertDataForSave(data, opts)
	}
	if e, ok := it.(EOFChecker); ok && e.NeedCheckEofCode() && b.typ.Param().TextEOFCode >= 0 {
		conv = append(append([]byte(nil), conv...), byte(b.typ.Param().TextEOFCode))
	}
	return conv
}

// checkpoint is a copy of every sector of the volume.
type checkpoint struct {
	secs   []*disk.Sector
	data   [][]byte
	cur    [2]int
	hasCur bool
}

func (b *Basic) takeCheckpoint() *checkpoint {
	tb := b.typ.Base()
	n := tb.TotalSectors()
	cp := &checkpoint{secs: make([]*disk.Sector, 0, n), data: make([][]byte, 0, n)}
	for pos := 0; pos < n; pos++ {
		s := tb.SectorAt(pos)
		if s == nil {
			continue
		}
		cp.secs = append(cp.secs, s)
		cp.data = append(cp.data, append([]byte(nil), s.Data()...))
	}
	if it := b.dir.CurrentItem(); it != nil {
		cp.cur = slotKey(it.Base().slot)
		cp.hasCur = true
	}
	return cp
}

// rollback writes the checkpoint back and mounts the volume again so no
// cached table outlives it.
func (b *Basic) rollback(cp *checkpoint) {
	for i, s := range cp.secs {
		if bytes.Equal(s.Data(), cp.data[i]) {
			continue
		}
		copy(s.Data(), cp.data[i])
		s.SetModify()
	}
	format := b.typ.Param().Name
	if _, err := b.parseDisk(b.store, b.side, format, false); err != nil {
		b.log.Errorf("rollback: remount %s: %v", format, err)
		return
	}
	if !cp.hasCur {
		return
	}
	for i, it := range b.dir.items {
		if slotKey(it.Base().slot) == cp.cur && it.Base().IsUsed() && isDirectory(it) {
			b.dir.cur = i
			break
		}
	}
}

func (b *Basic) discard(snap snapshot, chain GroupChain) {
	if err := b.release(chain); err != nil {
		b.log.Errorf("rollback: %v", err)
	}
	b.restore(snap)
}

// DeleteFile releases the groups of it and then marks the entry deleted.
// Directories are emptied first.
func (b *Basic) DeleteFile(it Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writable(); err != nil {
		return err
	}
	err := b.deleteFile(it)
	if rerr := b.reloadDir(); err == nil {
		err = rerr
	}
	return err
}

func (b *Basic) deleteFile(it Item) error {

	if isVolumeLabel(it) || isSelfOrParent(it) {
		return errName(ErrCannotDelete, b.name(it))
	}
	if !it.Base().IsUsed() {
		return errName(ErrFileNotFound, b.name(it))
	}

	parent := b.dir.Item(it.Base().parent)

	if isDirectory(it) {
		for _, idx := range it.Base().children {
			c := b.dir.items[idx]
			if !c.Base().IsUsed() || isSelfOrParent(c) || isVolumeLabel(c) {
				continue
			}
			if err := b.deleteFile(c); err != nil {
				return err
			}
		}
	}

	chain, err := b.fileChain(it)
	if err != nil {
		b.report.Warnf("%s: %v", b.name(it), err)
	}
	if err := b.release(chain); err != nil {
		return err
	}

	it.Delete(b.typ.Param().DeleteCode)
	it.Base().Flush()
	it.Base().invalidate()
	it.Base().SetUsed(false)

	if sa, ok := b.typ.(SlotAllocator); ok {
		if err := sa.ReleaseSlot(it); err != nil {
			return err
		}
	}
	if h, ok := b.typ.(DeleteHooker); ok {
		if err := h.AdditionalProcessOnDeleted(it, parent); err != nil {
			return err
		}
	}
	return nil
}

// RenameFile changes the name of it in place.
func (b *Basic) RenameFile(it Item, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(); err != nil {
		return err
	}
	if isVolumeLabel(it) || isSelfOrParent(it) {
		return errName(ErrCannotRename, b.name(it))
	}
	if err := b.checkNewName(name); err != nil {
		return err
	}
	if other, _ := b.findFile(name); other != nil && other != it {
		return errName(ErrFileExists, name)
	}

	snap := takeSnapshot(it, false)
	if h, ok := b.typ.(RenameHooker); ok {
		if rp, ok := h.(interface{ PrepareToRename(Item) error }); ok {
			if err := rp.PrepareToRename(it); err != nil {
				return err
			}
		}
	}
	if err := SetFileName(it, b.cs, name); err != nil {
		b.restore(snap)
		return err
	}
	it.Base().Flush()
	if h, ok := b.typ.(RenameHooker); ok {
		if err := h.AdditionalProcessOnRenamed(it, b.dir.Item(it.Base().parent)); err != nil {
			b.restore(snap)
			return err
		}
	}
	return b.reloadDir()
}

// ChangeAttr replaces the attributes of it.
func (b *Basic) ChangeAttr(it Item, attr FileAttr) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(); err != nil {
		return err
	}
	if isVolumeLabel(it) || isSelfOrParent(it) {
		return errName(ErrCannotEdit, b.name(it))
	}
	if isDirectory(it) != attr.Attr.Has(AttrDirectory) {
		return errName(ErrCannotEdit, b.name(it))
	}
	snap := takeSnapshot(it, false)
	if err := it.SetFileAttr(attr); err != nil {
		b.restore(snap)
		return err
	}
	it.Base().Flush()
	return b.reloadDir()
}

// MakeDirectory creates an empty subdirectory in the current directory.
func (b *Basic) MakeDirectory(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writable(); err != nil {
		return err
	}
	dm, ok := b.typ.(DirectoryMaker)
	if !ok || !dm.CanMakeDirectory() {
		return errName(ErrCannotMakeDir, name)
	}
	if err := b.checkNewName(name); err != nil {
		return err
	}
	if existing, _ := b.findFile(name); existing != nil {
		return errName(ErrFileExists, name)
	}

	it, allocated, err := b.freeSlot(name)
	if err != nil {
		return err
	}
	parent := b.dir.CurrentItem()
	snap := takeSnapshot(it, allocated)

	if err := b.prepareEntry(it, name, NewFileAttr(AttrDirectory), time.Time{}); err != nil {
		b.restore(snap)
		return err
	}
	if err := dm.PrepareToMakeDirectory(it); err != nil {
		b.restore(snap)
		return err
	}

	var chain GroupChain
	if size := dm.SubDirSize(); size > 0 {
		chain, err = b.allocate(it, size, AllocNew)
		if err != nil {
			b.restore(snap)
			return err
		}
		if err := b.writeData(chain, nil); err != nil {
			b.discard(snap, chain)
			return err
		}
	}
	it.Base().Flush()

	if err := dm.AdditionalProcessOnMadeDirectory(it, parent, chain); err != nil {
		b.discard(snap, chain)
		return err
	}
	return b.reloadDir()
}

// ChangeDirectory moves the current directory. It accepts "/", ".." and
// slash separated names.
func (b *Basic) ChangeDirectory(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.mounted(); err != nil {
		return err
	}
	cur := b.dir.cur
	if strings.HasPrefix(path, "/") {
		cur = -1
	}
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if it := b.dir.Item(cur); it != nil {
				cur = it.Base().parent
			}
			continue
		}
		found := -1
		for _, idx := range b.dir.Children(cur) {
			it := b.dir.items[idx]
			if b.listable(it) && SameName(it, b.cs, part) {
				found = idx
				break
			}
		}
		if found < 0 {
			return errName(ErrFileNotFound, part)
		}
		if !isDirectory(b.dir.items[found]) {
			return errName(ErrNotDirectory, part)
		}
		cur = found
	}
	b.dir.cur = cur
	return nil
}

// CurrentPath names the current directory.
func (b *Basic) CurrentPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dir.Path(b.dir.cur, b.name)
}

// FormatDisk initializes store with format and mounts the result.
func (b *Basic) FormatDisk(store SectorStore, side int, format string, vi VolumeInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.reg.Lookup(format)
	if err != nil {
		return err
	}
	if !p.Matches(store, side) {
		return errName(ErrUnsupported, format)
	}
	if store.WriteProtect() {
		return newError(ErrWriteProtected)
	}

	rep := &Report{}
	t, err := b.newType(p, store, side, rep)
	if err != nil {
		return err
	}
	tb := t.Base()
	tb.FillPositions(0, tb.TotalSectors()-1, p.FillCodeFormat)

	if t.ParseParamOnDisk(true) < 0 {
		return errName(ErrUnsupported, format)
	}
	tb.layout()
	if t.AssignFat(true) < 0 {
		return errName(ErrUnsupported, format)
	}
	tp := t.Param()
	if f := tb.Fat(); f != nil {
		f.Fill(tp.FillCodeFat)
	}
	if tp.DirEntrySize > 0 && tp.DirEndPos >= tp.DirStartPos {
		tb.FillPositions(tp.DirStartPos, tp.DirEndPos, tp.FillCodeDir)
	}
	for _, g := range tp.ReservedGroups {
		t.SetGroupNumber(g, tp.GroupSystemCode)
	}
	if vi.Date.IsZero() {
		vi.Date = time.Now()
	}
	if err := t.AdditionalProcessOnFormatted(vi); err != nil {
		return err
	}
	b.log.Logf("formatted %s", p.Name)

	_, err = b.parseDisk(store, side, p.Name, false)
	return err
}

func (b *Basic) freeSize() (int, int) {
	if fs, ok := b.typ.(FreeSizer); ok {
		return fs.CalcDiskFreeSize()
	}
	n := countFreeGroups(b.typ)
	return n * b.typ.Param().GroupSize(), n
}

// FreeSize returns the free bytes and free groups of the volume.
func (b *Basic) FreeSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.typ == nil {
		return 0, 0
	}
	return b.freeSize()
}

// MaxFileSize returns the largest data a file named name could be saved
// with in the current directory, after the bytes the format adds to it.
func (b *Basic) MaxFileSize(name string, opts SaveOptions) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.typ == nil {
		return 0
	}

	_, groups := b.freeSize()
	n := b.fileCapacity(groups)

	p := b.typ.Param()
	size := p.DirEntrySize
	if size < p.SectorSize {
		size = p.SectorSize
	}
	it := b.typ.NewItem(-1, ScratchSlot(size))
	if err := b.prepareEntry(it, name, opts.Attr, opts.Date); err != nil {
		return 0
	}
	if sl, ok := it.(SizeLimiter); ok && sl.MaxFileSize() < n {
		n = sl.MaxFileSize()
	}
	n -= len(b.convertForSave(it, nil, opts))
	if n < 0 {
		return 0
	}
	return n
}

func (b *Basic) fileCapacity(groups int) int {
	if cc, ok := b.typ.(CapacityCalculator); ok {
		return cc.CalcFileCapacity(groups)
	}
	p := b.typ.Param()
	dw, ok := b.typ.(DataWindower)
	if !ok {
		return groups * p.GroupSize()
	}
	_, win := dw.DataWindow()
	if p.GroupsPerSector > 1 {
		return groups * (win / p.GroupsPerSector)
	}
	return groups * p.SectorsPerGroup * win
}

// VolumeName returns the label, if the format stores one.
func (b *Basic) VolumeName() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if vn, ok := b.typ.(VolumeNamer); ok {
		return vn.GetVolumeName(), true
	}
	return "", false
}

func (b *Basic) SetVolumeName(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writable(); err != nil {
		return err
	}
	vn, ok := b.typ.(VolumeNamer)
	if !ok {
		return newError(ErrCannotEdit)
	}
	if err := vn.SetVolumeName(name); err != nil {
		return err
	}
	return b.reloadDir()
}

// CheckConsistency walks every live entry and verifies that no group is
// owned twice and that every chain terminates on used groups.
func (b *Basic) CheckConsistency() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.mounted(); err != nil {
		return err
	}

	owner := make(map[int]string)
	var errs []error
	b.dir.Walk(-1, func(it Item, depth int) bool {
		if !it.Base().IsUsed() || isSelfOrParent(it) || isVolumeLabel(it) {
			return true
		}
		if v, ok := it.(Visibler); ok && !v.IsVisible() && !isDirectory(it) {
			return true
		}
		name := b.dir.Path(it.Base().index, b.name)
		chain, err := b.fileChain(it)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return true
		}
		for _, g := range chain.AllGroups() {
			if prev, dup := owner[g]; dup {
				e := errGroup(ErrDuplicatedGroup, g)
				e.Name = prev + " " + name
				errs = append(errs, e)
				continue
			}
			owner[g] = name
			if !b.typ.IsUsedGroupNumber(g) {
				e := errGroup(ErrBrokenChain, g)
				e.Name = name
				errs = append(errs, e)
			}
		}
		return true
	})
	return errors.Join(errs...)
}
