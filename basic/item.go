package basic

import "time"

// Slot locates the raw bytes of one directory entry. An entry inside one
// sector is a single window; one crossing a sector boundary has two. A slot
// without windows is a scratch entry.
type Slot struct {
	Parts  []Window
	Pos    int
	Parent int
	User   int
}

func (s Slot) Size() int {
	n := 0
	for _, p := range s.Parts {
		n += p.Size
	}
	return n
}

// ScratchSlot is an owned buffer not backed by any sector.
func ScratchSlot(size int) Slot {
	return Slot{Pos: -1, Parent: InvalidGroupNumber, User: size}
}

// Item is one directory entry of a given format.
type Item interface {
	Base() *ItemBase

	Check(last *bool) bool
	CheckUsed(unused bool) bool

	NameLayout() NameLayout
	GetFileNamePos() []byte
	GetFileExtPos() []byte
	GetFileAttr() FileAttr
	SetFileAttr(a FileAttr) error

	GetStartGroup() int
	SetStartGroup(group int)

	Delete(code byte)
	ClearData()
}

// Sizer entries record their length. GetFileSize returns -1 when the length
// follows from the chain.
type Sizer interface {
	GetFileSize() int
	SetFileSize(size int)
}

// SizeLimiter entries cannot record files longer than MaxFileSize.
type SizeLimiter interface {
	MaxFileSize() int
}

// EOFChecker entries carry no exact size; the data ends at a terminator
// code in the last sector.
type EOFChecker interface {
	NeedCheckEofCode() bool
}

type Dater interface {
	GetFileDate() (time.Time, bool)
	SetFileDate(t time.Time)
}

type Addresser interface {
	GetLoadAddress() int
	GetExecAddress() int
	SetLoadAddress(addr int)
	SetExecAddress(addr int)
}

type DataConverter interface {
	ConvertDataForSave(data []byte, opts SaveOptions) []byte
	ConvertDataForLoad(data []byte) []byte
}

type ExtraGrouper interface {
	GetExtraGroups() []int
}

type Visibler interface {
	IsVisible() bool
}

type DirItem interface {
	IsDirectory() bool
	IsSelfOrParent() bool
}

type VolumeItem interface {
	IsVolumeLabel() bool
}

// ItemBase holds the storage and the tree links common to all entries.
type ItemBase struct {
	num      int
	slot     Slot
	data     []byte
	split    bool
	used     bool
	index    int
	parent   int
	children []int
	chain    *GroupChain
}

func newItemBase(num int, slot Slot) ItemBase {
	b := ItemBase{num: num, slot: slot, index: -1, parent: -1}
	switch len(slot.Parts) {
	case 0:
		b.data = make([]byte, slot.User)
	case 1:
		b.data = slot.Parts[0].Bytes()
	default:
		b.split = true
		b.data = make([]byte, 0, slot.Size())
		for _, p := range slot.Parts {
			b.data = append(b.data, p.Bytes()...)
		}
	}
	return b
}

func (b *ItemBase) Base() *ItemBase {
	return b
}

// Data is the entry buffer; callers must Flush after writing.
func (b *ItemBase) Data() []byte {
	return b.data
}

func (b *ItemBase) Num() int {
	return b.num
}

func (b *ItemBase) Slot() Slot {
	return b.slot
}

func (b *ItemBase) IsScratch() bool {
	return len(b.slot.Parts) == 0
}

func (b *ItemBase) IsUsed() bool {
	return b.used
}

func (b *ItemBase) SetUsed(used bool) {
	b.used = used
}

// Flush copies a split entry back to its sectors and marks them modified.
func (b *ItemBase) Flush() {
	ofs := 0
	for _, p := range b.slot.Parts {
		if b.split {
			copy(p.Bytes(), b.data[ofs:ofs+p.Size])
		}
		ofs += p.Size
		p.Sector.SetModify()
	}
}

// Reload refreshes a split entry from its sectors.
func (b *ItemBase) Reload() {
	if !b.split {
		return
	}
	ofs := 0
	for _, p := range b.slot.Parts {
		copy(b.data[ofs:ofs+p.Size], p.Bytes())
		ofs += p.Size
	}
}

func (b *ItemBase) Index() int {
	return b.index
}

func (b *ItemBase) Parent() int {
	return b.parent
}

func (b *ItemBase) Children() []int {
	return b.children
}

func (b *ItemBase) cachedChain() (GroupChain, bool) {
	if b.chain == nil {
		return GroupChain{}, false
	}
	return *b.chain, true
}

func (b *ItemBase) setChain(c GroupChain) {
	b.chain = &c
}

func (b *ItemBase) invalidate() {
	b.chain = nil
}

func isDirectory(it Item) bool {
	if d, ok := it.(DirItem); ok {
		return d.IsDirectory()
	}
	return false
}

func isSelfOrParent(it Item) bool {
	if d, ok := it.(DirItem); ok {
		return d.IsSelfOrParent()
	}
	return false
}

func isVolumeLabel(it Item) bool {
	if v, ok := it.(VolumeItem); ok {
		return v.IsVolumeLabel()
	}
	return false
}

func isVisible(it Item) bool {
	if v, ok := it.(Visibler); ok {
		return v.IsVisible()
	}
	return true
}
