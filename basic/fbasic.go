package basic

// F-BASIC keeps its FAT in the first sector of track 1 and the directory in
// the rest of that track. The file type bytes and the count of bytes in the
// last sector follow the name.

const (
	FBASIC_TYPE_BASIC   = 0x00
	FBASIC_TYPE_DATA    = 0x01
	FBASIC_TYPE_MACHINE = 0x02
	FBASIC_FLAG_ON      = 0xff
	FBASIC_ENTRY_END    = 0xff
	FBASIC_ENTRY_DELETE = 0x00
)

type fbasicType struct {
	*fat8Type
}

func newFbasicType(b *TypeBase) Type {
	t := &fbasicType{fat8Type: newFat8Type(b)}
	t.order = distanceOrder(b, b.param.X("SearchTrack", 1), true)
	return t
}

// ParseParamOnDisk looks for the zero bytes heading the FAT sector.
func (t *fbasicType) ParseParamOnDisk(isFormatting bool) float64 {
	if isFormatting {
		return 1.0
	}
	s := t.SectorAt(t.param.FatStartPos)
	if s == nil {
		return -1.0
	}
	if s.Data()[0] != 0 {
		return 0.5
	}
	return 1.0
}

func (t *fbasicType) AdditionalProcessOnFormatted(vi VolumeInfo) error {
	s := t.SectorAt(t.param.FatStartPos)
	if s == nil {
		return errSector(ErrNoSector, 1, 0, 1)
	}
	fill(s.Data()[:t.param.FatOffset], 0)
	s.SetModify()
	return nil
}

// GetUnitGroups trims the last sector to the byte count kept in the entry.
func (t *fbasicType) GetUnitGroups(item Item) (GroupChain, error) {
	chain, err := walkLinkedChain(t, item.GetStartGroup())
	if err != nil {
		return chain, err
	}
	if it, ok := item.(*fbasicItem); ok && len(chain.Items) > 0 {
		lb := it.lastBytes()
		if lb > t.param.SectorSize {
			lb = t.param.SectorSize
		}
		chain.Size -= t.param.SectorSize - lb
		chain.Recalc()
	}
	return chain, nil
}

func (t *fbasicType) NewItem(num int, slot Slot) Item {
	return &fbasicItem{ItemBase: newItemBase(num, slot)}
}

type fbasicItem struct {
	ItemBase
}

func (it *fbasicItem) Check(last *bool) bool {
	d := it.data
	switch d[0] {
	case FBASIC_ENTRY_END:
		*last = true
		return true
	case FBASIC_ENTRY_DELETE:
		return true
	}
	return d[11] <= FBASIC_TYPE_MACHINE
}

func (it *fbasicItem) CheckUsed(unused bool) bool {
	it.used = !unused && it.data[0] != FBASIC_ENTRY_END && it.data[0] != FBASIC_ENTRY_DELETE
	return it.used
}

func (it *fbasicItem) NameLayout() NameLayout {
	return NameLayout{NameLen: 8, Pad: 0x20}
}

func (it *fbasicItem) GetFileNamePos() []byte {
	return it.data[0:8]
}

func (it *fbasicItem) GetFileExtPos() []byte {
	return nil
}

func (it *fbasicItem) GetFileAttr() FileAttr {
	d := it.data
	a := basicTypeAttr(int(d[11]))
	if d[12] == FBASIC_FLAG_ON {
		a |= AttrASCII
	} else {
		a |= AttrBinary
	}
	if d[13] == FBASIC_FLAG_ON {
		a |= AttrRandom
	}
	return FileAttr{Attr: a, Origin: [3]int{int(d[11]), int(d[12]), int(d[13])}, Format: "fbasic"}
}

func (it *fbasicItem) SetFileAttr(a FileAttr) error {
	d := it.data
	if o, ok := a.OriginFor("fbasic"); ok {
		d[11], d[12], d[13] = byte(o[0]), byte(o[1]), byte(o[2])
		return nil
	}
	if a.Attr.Has(AttrDirectory) || a.Attr.Has(AttrVolume) {
		return newError(ErrCannotEdit)
	}
	d[11] = byte(basicTypeCode(a.Attr))
	d[12], d[13] = 0, 0
	if a.Attr.Has(AttrASCII) {
		d[12] = FBASIC_FLAG_ON
	}
	if a.Attr.Has(AttrRandom) {
		d[13] = FBASIC_FLAG_ON
	}
	return nil
}

func (it *fbasicItem) GetStartGroup() int {
	return int(it.data[14])
}

func (it *fbasicItem) SetStartGroup(group int) {
	it.data[14] = byte(group)
}

func (it *fbasicItem) lastBytes() int {
	return be16(it.data[15:17])
}

// GetFileSize is unknown without the chain; the type works it out.
func (it *fbasicItem) GetFileSize() int {
	return -1
}

func (it *fbasicItem) SetFileSize(size int) {
	lb := size % STD_SECTOR_BYTES
	if lb == 0 && size > 0 {
		lb = STD_SECTOR_BYTES
	}
	putBE16(it.data[15:17], lb)
}

func (it *fbasicItem) Delete(code byte) {
	it.data[0] = code
}

func (it *fbasicItem) ClearData() {
	fill(it.data, 0)
	fill(it.data[17:], 0xff)
}

const STD_SECTOR_BYTES = 256

// basicTypeAttr maps the BASIC / data / machine code shared by the Fujitsu
// and Hitachi directories.
func basicTypeAttr(code int) Attr {
	switch code {
	case FBASIC_TYPE_DATA:
		return AttrData
	case FBASIC_TYPE_MACHINE:
		return AttrMachine
	}
	return AttrBasic
}

func basicTypeCode(a Attr) int {
	switch {
	case a.Has(AttrMachine):
		return FBASIC_TYPE_MACHINE
	case a.Has(AttrData):
		return FBASIC_TYPE_DATA
	}
	return FBASIC_TYPE_BASIC
}
