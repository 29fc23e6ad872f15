package basic

import (
	"github.com/paleotronic/diskbasic/disk"
)

var typeConstructors = map[string]func(*TypeBase) Type{
	"fbasic":   newFbasicType,
	"l3":       newL3Type,
	"n88":      newN88Type,
	"hubasic":  newHubasicType,
	"msdos":    newMsdosType,
	"cpm":      newCpmType,
	"flex":     newFlexType,
	"os9":      newOs9Type,
	"appledos": newAppleDosType,
	"prodos":   newProdosType,
	"c1541":    newC1541Type,
	"trsdos":   newTrsdosType,
	"amiga":    newAmigaType,
	"frost":    newFrostType,
	"sdos":     newSdosType,
}

// geom seeds a parameter set with the layout of g.
func geom(name, kind, desc string, g disk.Geometry) Param {
	return Param{
		Name:            name,
		Kind:            kind,
		Description:     desc,
		Tracks:          g.Tracks,
		Sides:           g.Sides,
		SectorsPerTrack: g.SectorsPerTrack,
		SectorSize:      g.SectorSize,
		SectorBase:      g.FirstSector,
		Zones:           append([]disk.Zone(nil), g.Zones...),
		TextEOFCode:     -1,
		FatCopies:       1,
	}
}

// fat8 fills in the table codes shared by the byte per group formats.
func fat8(p Param, final, base int) Param {
	p.GroupFinalCode = final
	p.FinalSectorBase = base
	p.GroupSystemCode = 0xfe
	p.GroupUnusedCode = 0xff
	p.FillCodeFormat = 0xff
	p.FillCodeFat = 0xff
	p.FillCodeDir = 0xff
	p.DeleteCode = FBASIC_ENTRY_DELETE
	p.DirSpaceCode = 0x20
	p.TextEOFCode = 0x1a
	p.Charset = "sjis"
	return p
}

func builtinParams() []Param {
	var out []Param

	// Frost-DOS: identity sector, bitmap and directory on track 40. Files
	// are single runs of two sector groups.
	frost := geom("frost_2dd", "frost", "Frost-DOS 720K", disk.Geometry2DD)
	frost.SectorsPerGroup = 2
	frost.ManagedTrack = 40
	frost.FatStartPos = 721
	frost.SectorsPerFat = 1
	frost.FatEndGroup = disk.Geometry2DD.TotalSectors()/2 - 1
	frost.ReservedGroups = []int{0, 360, 361, 362, 363, 364, 365, 366, 367, 368}
	frost.GroupSystemCode = 1
	frost.GroupUnusedCode = 0
	frost.DirEntrySize = 32
	frost.DirStartPos = 722
	frost.DirEndPos = 737
	frost.FillCodeFormat = 0xe5
	frost.DeleteCode = FROST_ENTRY_DELETE
	frost.DirSpaceCode = 0x20
	frost.Charset = "ascii"
	frost.SetX("IDPos", 720)
	out = append(out, frost)

	// S-DOS: two 128 byte groups per sector, 12 bit table after the
	// identity sector, 24 byte entries up to the end of track 1.
	sdos := geom("sdos_2d", "sdos", "S-DOS 2D", disk.Geometry2D)
	sdos.GroupsPerSector = 2
	sdos.SectorsPerGroup = 1
	sdos.DataStartPos = 64
	sdos.FirstGroup = 2
	sdos.FatStartPos = 1
	sdos.SectorsPerFat = 15
	sdos.FatEndGroup = (disk.Geometry2D.TotalSectors()-64)*2 + 1
	sdos.GroupFinalCode = 0xfff
	sdos.GroupSystemCode = 0xff7
	sdos.GroupUnusedCode = 0
	sdos.MediaID = 0xffd
	sdos.DirEntrySize = 24
	sdos.DirStartPos = 16
	sdos.DirEndPos = 63
	sdos.FillCodeFormat = 0xe5
	sdos.DeleteCode = SDOS_ENTRY_DELETE
	sdos.DirSpaceCode = 0x20
	sdos.Charset = "ascii"
	out = append(out, sdos)

	// F-BASIC: FAT in sector 2 of track 1, directory in the rest of it.
	for _, v := range []struct {
		name string
		g    disk.Geometry
		spg  int
		desc string
	}{
		{"fbasic_2d", disk.Geometry2D, 8, "F-BASIC 2D"},
		{"fbasic_2d8", disk.Geometry2D8, 16, "F-BASIC 2D 77 tracks"},
	} {
		p := fat8(geom(v.name, "fbasic", v.desc, v.g), 0xc0, 0)
		perTrack := v.g.SectorsPerTrack * v.g.Sides
		p.SectorsPerGroup = v.spg
		p.DataStartPos = 2 * perTrack
		p.FatStartPos = perTrack + 1
		p.FatOffset = 5
		p.SectorsPerFat = 1
		p.FatEndGroup = (v.g.Tracks-2)*perTrack/v.spg - 1
		p.DirEntrySize = 32
		p.DirStartPos = perTrack + 3
		p.DirEndPos = 2*perTrack - 1
		p.FillCodeDir = FBASIC_ENTRY_END
		p.SetX("SearchTrack", 1)
		out = append(out, p)
	}

	// Level-3 BASIC on single sided media: track 18 is left out of the
	// group numbering.
	l3 := fat8(geom("l3_1s", "l3", "Level-3 BASIC 1S", disk.Geometry1S), 0xc0, 0)
	l3.SectorsPerGroup = 4
	l3.DataStartPos = 16
	l3.SkippedTrack = 18
	l3.ManagedTrack = 18
	l3.FatStartPos = 18*16 + 13
	l3.FatCopies = 2
	l3.SectorsPerFat = 1
	l3.FatEndGroup = 151
	l3.DirEntrySize = 16
	l3.DirStartPos = 18 * 16
	l3.DirEndPos = 18*16 + 11
	out = append(out, l3)

	s1 := fat8(geom("s1_2d", "l3", "S1 BASIC 2D", disk.Geometry2D), 0xc0, 0)
	s1.SectorsPerGroup = 8
	s1.DataStartPos = 64
	s1.ManagedTrack = 1
	s1.FatStartPos = 32 + 13
	s1.FatCopies = 2
	s1.SectorsPerFat = 1
	s1.FatEndGroup = 151
	s1.DirEntrySize = 16
	s1.DirStartPos = 32
	s1.DirEndPos = 32 + 11
	out = append(out, s1)

	// N88-BASIC: directory and three tables on the second side of track 18.
	for _, v := range []struct {
		name   string
		g      disk.Geometry
		center int
		desc   string
	}{
		{"n88_2d", disk.Geometry2D, 74, "N88-BASIC 2D"},
		{"n88_1d", disk.Geometry1S, 36, "N88-BASIC 1D"},
	} {
		p := fat8(geom(v.name, "n88", v.desc, v.g), 0xc0, 1)
		perTrack := v.g.SectorsPerTrack * v.g.Sides
		dirStart := 18*perTrack + (v.g.Sides-1)*v.g.SectorsPerTrack
		p.SectorsPerGroup = 8
		p.ManagedTrack = 18
		p.FatStartPos = dirStart + 13
		p.FatCopies = 3
		p.SectorsPerFat = 1
		p.FatEndGroup = v.g.Tracks*perTrack/8 - 1
		p.ReservedGroups = []int{0, 1, dirStart / 8, dirStart/8 + 1}
		p.DirEntrySize = 16
		p.DirStartPos = dirStart
		p.DirEndPos = dirStart + 11
		p.SetX("SearchGroup", v.center)
		out = append(out, p)
	}

	// Hu-BASIC: a cluster is a whole track side. The 2HD variant keeps the
	// upper bytes of its entries in a second table.
	hu := geom("hubasic_2d", "hubasic", "Hu-BASIC 2D", disk.Geometry2D)
	hu.SectorsPerGroup = 16
	hu.FatStartPos = 14
	hu.SectorsPerFat = 1
	hu.FatEndGroup = 79
	hu.GroupFinalCode = 0x80
	hu.GroupSystemCode = 0x8f
	hu.GroupUnusedCode = 0x00
	hu.DirEntrySize = 32
	hu.DirStartPos = 16
	hu.DirEndPos = 31
	hu.FillCodeFormat = 0xe5
	hu.FillCodeFat = 0x00
	hu.FillCodeDir = HU_ENTRY_END
	hu.DeleteCode = HU_ENTRY_DELETE
	hu.DirSpaceCode = 0x20
	hu.Charset = "sjis"
	out = append(out, hu)

	hu2 := hu
	hu2.Name, hu2.Description = "hubasic_2hd", "Hu-BASIC 2HD"
	g := disk.GeometryPC98_2D
	hu2.Tracks, hu2.Sides, hu2.SectorsPerTrack, hu2.SectorSize, hu2.SectorBase = g.Tracks, g.Sides, g.SectorsPerTrack, g.SectorSize, g.FirstSector
	hu2.SectorsPerGroup = g.SectorsPerTrack
	hu2.FatEndGroup = g.Tracks*g.Sides - 1
	hu2.GroupFinalCode = 0x0f80
	hu2.GroupSystemCode = 0x0fff
	hu2.Extra = nil
	hu2.SetX("HiFatPos", 15)
	out = append(out, hu2)

	// MS-DOS and MSX-DOS read the real layout from the boot sector; these
	// values only seed a format.
	for _, v := range []struct {
		name, desc     string
		g              disk.Geometry
		spc, spf, root int
		media, msx     int
		charset        string
	}{
		{"msdos_2dd", "MS-DOS 720K", disk.Geometry2DD, 2, 3, 112, 0xf9, 0, "cp437"},
		{"msdos_2hd", "MS-DOS 1.2M (1024 byte sectors)", disk.Geometry2HD, 1, 2, 192, 0xfe, 0, "cp437"},
		{"msx_2dd", "MSX-DOS 720K", disk.Geometry2DD, 2, 3, 112, 0xf9, 1, "sjis"},
	} {
		p := geom(v.name, "msdos", v.desc, v.g)
		p.SectorsPerGroup = v.spc
		p.FatCopies = 2
		p.SectorsPerFat = v.spf
		p.MediaID = v.media
		p.GroupSystemCode = 0xff7
		p.GroupUnusedCode = 0
		p.FillCodeFormat = 0xe5
		p.FillCodeFat = 0x00
		p.FillCodeDir = 0x00
		p.DeleteCode = 0xe5
		p.DirSpaceCode = 0x20
		p.Charset = v.charset
		p.SetX("Reserved", 1)
		p.SetX("RootEntries", v.root)
		p.SetX("MSX", v.msx)
		out = append(out, p)
	}

	// CP/M: two system tracks, then the directory blocks.
	cpm8 := geom("cpm_8ss", "cpm", "CP/M 8 inch single density", disk.Geometry8SS)
	cpm8.SectorSkew = []int{
		0, 6, 12, 18, 24, 4, 10, 16, 22, 2, 8, 14, 20,
		1, 7, 13, 19, 25, 5, 11, 17, 23, 3, 9, 15, 21,
	}
	cpm8.SectorsPerGroup = 8
	cpm8.DataStartPos = 52
	cpm8.FatEndGroup = 242
	cpm8.ReservedGroups = []int{0, 1}
	cpm8.DirStartPos = 52
	cpm8.DirEndPos = 52 + 15
	out = append(out, cpmCodes(cpm8))

	cpm2 := geom("cpm_2d", "cpm", "CP/M 2D", disk.Geometry2D)
	cpm2.SectorsPerGroup = 8
	cpm2.DataStartPos = 64
	cpm2.FatEndGroup = 311
	cpm2.ReservedGroups = []int{0, 1}
	cpm2.DirStartPos = 64
	cpm2.DirEndPos = 64 + 15
	out = append(out, cpmCodes(cpm2))

	// FLEX: every sector is its own group, data from track 1.
	for _, v := range []struct {
		name, desc string
		g          disk.Geometry
	}{
		{"flex_dsdd", "FLEX double sided", disk.GeometryFlexDD},
		{"flex_sssd", "FLEX single sided", disk.GeometryFlexSS},
	} {
		p := geom(v.name, "flex", v.desc, v.g)
		p.SectorsPerGroup = 1
		p.FatEndGroup = v.g.TotalSectors() - 1
		p.GroupSystemCode = 1
		p.GroupUnusedCode = 0
		p.TextEOFCode = 0x1a
		p.Charset = "ascii"
		out = append(out, p)
	}

	for _, v := range []struct {
		name, desc string
		g          disk.Geometry
	}{
		{"os9_coco", "OS-9 RBF 35 track CoCo", disk.GeometryCoCo},
		{"os9_2d", "OS-9 RBF 2D", disk.Geometry2D},
	} {
		p := geom(v.name, "os9", v.desc, v.g)
		p.SectorsPerGroup = 1
		p.GroupSystemCode = 1
		p.GroupUnusedCode = 0
		p.Charset = "ascii"
		p.SetX("RootDirSectors", 4)
		out = append(out, p)
	}

	a2 := geom("appledos33", "appledos", "Apple DOS 3.3", disk.GeometryApple140K)
	a2.SectorsPerGroup = 1
	a2.FatStartPos = A2_VTOC_TRACK * 16
	a2.FatOffset = 0x38
	a2.SectorsPerFat = 1
	a2.FatEndGroup = a2.Tracks*a2.SectorsPerTrack - 1
	a2.GroupSystemCode = 1
	a2.GroupUnusedCode = 0
	a2.Charset = "apple"
	a2.SetX("CatalogTrack", A2_VTOC_TRACK)
	a2.SetX("SystemTracks", 3)
	out = append(out, a2)

	pd := geom("prodos_140k", "prodos", "ProDOS 140K", disk.GeometryApple140K)
	pd.SectorSkew = append([]int(nil), disk.PRODOS_TO_DOS_ORDER...)
	pd.SectorsPerGroup = 2
	pd.GroupSystemCode = 1
	pd.GroupUnusedCode = 0
	pd.Charset = "ascii"
	out = append(out, pd)

	pd8 := geom("prodos_800k", "prodos", "ProDOS 800K", disk.GeometryApple800K)
	pd8.SectorsPerGroup = 1
	pd8.GroupSystemCode = 1
	pd8.GroupUnusedCode = 0
	pd8.Charset = "ascii"
	out = append(out, pd8)

	cbm := geom("c1541", "c1541", "Commodore 1541", disk.GeometryD64)
	cbm.SectorsPerGroup = 1
	cbm.FatStartPos = (CBM_DIR_TRACK - 1) * 21
	cbm.SectorsPerFat = 1
	cbm.FatEndGroup = disk.GeometryD64.TotalSectors() - 1
	cbm.GroupSystemCode = 1
	cbm.GroupUnusedCode = 0
	cbm.Charset = "petscii"
	out = append(out, cbm)

	trs := geom("trsdos23", "trsdos", "TRSDOS 2.3", disk.GeometryTRS80)
	trs.SectorsPerGroup = TRS_SECTORS_PER_GRN
	trs.FatStartPos = 17 * 10
	trs.SectorsPerFat = 1
	trs.FatEndGroup = trs.Tracks*TRS_GRANULES - 1
	trs.ReservedGroups = []int{0, 1}
	trs.GroupSystemCode = 1
	trs.GroupUnusedCode = 0
	trs.Charset = "ascii"
	trs.SetX("DirTrack", 17)
	out = append(out, trs)

	adf := geom("amiga_dd", "amiga", "AmigaDOS OFS 880K", disk.GeometryADF)
	adf.SectorsPerGroup = 1
	adf.FirstGroup = ADF_BITMAP_FIRST
	adf.DataStartPos = ADF_BITMAP_FIRST
	adf.FatStartPos = ADF_ROOT_BLOCK + 1
	adf.FatOffset = ADF_BITMAP_OFFSET
	adf.SectorsPerFat = 1
	adf.FatEndGroup = disk.GeometryADF.TotalSectors() - 1
	adf.GroupSystemCode = 1
	adf.GroupUnusedCode = 0
	adf.Charset = "latin1"
	adf.SetX("Root", ADF_ROOT_BLOCK)
	out = append(out, adf)

	return out
}

func cpmCodes(p Param) Param {
	p.GroupSystemCode = 1
	p.GroupUnusedCode = 0
	p.DirEntrySize = 32
	p.FillCodeFormat = CPM_ENTRY_FREE
	p.FillCodeDir = CPM_ENTRY_FREE
	p.DeleteCode = CPM_ENTRY_FREE
	p.DirSpaceCode = 0x20
	p.TextEOFCode = 0x1a
	p.Charset = "ascii"
	return p
}
