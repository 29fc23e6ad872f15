package disk

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

type SectorOrder int

const (
	SectorOrderLinear SectorOrder = iota
	SectorOrderDOS33
	SectorOrderProDOS
)

func (so SectorOrder) String() string {
	switch so {
	case SectorOrderDOS33:
		return "DOS"
	case SectorOrderProDOS:
		return "ProDOS"
	}
	return "Linear"
}

// DOS_33_SECTOR_ORDER is the physical interleave of DOS 3.3 logical sectors.
var DOS_33_SECTOR_ORDER = []int{
	0x00, 0x07, 0x0E, 0x06, 0x0D, 0x05, 0x0C, 0x04,
	0x0B, 0x03, 0x0A, 0x02, 0x09, 0x01, 0x08, 0x0F,
}

// PRODOS_TO_DOS_ORDER maps a ProDOS half block index within a track to the
// DOS 3.3 logical sector holding it.
var PRODOS_TO_DOS_ORDER = []int{
	0x00, 0x0E, 0x0D, 0x0C, 0x0B, 0x0A, 0x09, 0x08,
	0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, 0x0F,
}

var LINEAR_SECTOR_ORDER = []int{
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
}

// Order returns the per track file order for the layout, nil for linear.
func (so SectorOrder) Order() []int {
	if so == SectorOrderProDOS {
		return PRODOS_TO_DOS_ORDER
	}
	return nil
}

var d64Zones = []Zone{{0, 16, 21}, {17, 23, 19}, {24, 29, 18}, {30, 39, 17}}

var (
	GeometryApple140K = Geometry{Tracks: 35, Sides: 1, SectorsPerTrack: 16, SectorSize: 256, FirstSector: 0}
	GeometryApple800K = Geometry{Tracks: 80, Sides: 2, SectorsPerTrack: 10, SectorSize: 512, FirstSector: 0}
	GeometryD64       = Geometry{Tracks: 35, Sides: 1, SectorsPerTrack: 21, SectorSize: 256, FirstSector: 0, Zones: d64Zones}
	GeometryADF       = Geometry{Tracks: 80, Sides: 2, SectorsPerTrack: 11, SectorSize: 512, FirstSector: 0}
	GeometryTRS80     = Geometry{Tracks: 35, Sides: 1, SectorsPerTrack: 10, SectorSize: 256, FirstSector: 0}
	GeometryCoCo      = Geometry{Tracks: 35, Sides: 1, SectorsPerTrack: 18, SectorSize: 256, FirstSector: 1}
	Geometry2D        = Geometry{Tracks: 40, Sides: 2, SectorsPerTrack: 16, SectorSize: 256, FirstSector: 1}
	Geometry2DD       = Geometry{Tracks: 80, Sides: 2, SectorsPerTrack: 9, SectorSize: 512, FirstSector: 1}
	Geometry2HD       = Geometry{Tracks: 77, Sides: 2, SectorsPerTrack: 8, SectorSize: 1024, FirstSector: 1}
	Geometry8SS       = Geometry{Tracks: 77, Sides: 1, SectorsPerTrack: 26, SectorSize: 128, FirstSector: 1}
	GeometryFlexDD    = Geometry{Tracks: 40, Sides: 2, SectorsPerTrack: 18, SectorSize: 256, FirstSector: 1}
	Geometry1S        = Geometry{Tracks: 40, Sides: 1, SectorsPerTrack: 16, SectorSize: 256, FirstSector: 1}
	GeometryPC98_2D   = Geometry{Tracks: 77, Sides: 2, SectorsPerTrack: 26, SectorSize: 256, FirstSector: 1}
	Geometry2D8       = Geometry{Tracks: 77, Sides: 2, SectorsPerTrack: 16, SectorSize: 256, FirstSector: 1}
	GeometryFlexSS    = Geometry{Tracks: 40, Sides: 1, SectorsPerTrack: 10, SectorSize: 256, FirstSector: 1}
)

// KnownGeometries lists the raw image sizes we can guess a layout from.
var KnownGeometries = []Geometry{
	GeometryApple140K,
	GeometryApple800K,
	GeometryD64,
	GeometryADF,
	GeometryTRS80,
	GeometryCoCo,
	Geometry2D,
	Geometry2DD,
	Geometry2HD,
	Geometry8SS,
	GeometryFlexDD,
	Geometry1S,
	GeometryPC98_2D,
	Geometry2D8,
	GeometryFlexSS,
}

// GuessGeometry returns all known geometries matching a raw image size.
func GuessGeometry(size int) []Geometry {
	var out []Geometry
	for _, g := range KnownGeometries {
		if g.Size() == size {
			out = append(out, g)
		}
	}
	return out
}

// FromBytes builds a disk out of a flat image. Sectors are stored track by
// track and side by side; order lists, per file position, the logical sector
// index held there.
func FromBytes(name string, data []byte, g Geometry, order []int) (*Disk, error) {

	if len(data) < g.Size() {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBadImage, g.Size(), len(data))
	}

	d, err := New(name, g)
	if err != nil {
		return nil, err
	}

	ptr := 0
	for t := 0; t < g.Tracks; t++ {
		spt := g.SectorsOnTrack(t)
		for side := 0; side < g.Sides; side++ {
			trk := d.GetTrack(t, side)
			for i := 0; i < spt; i++ {
				id := g.FirstSector + i
				if order != nil && len(order) == spt {
					id = g.FirstSector + order[i]
				}
				s := trk.GetSector(id)
				copy(s.data, data[ptr:ptr+g.SectorSize])
				ptr += g.SectorSize
			}
		}
	}

	d.ClearModify()
	return d, nil
}

// LoadRaw reads a flat image file.
func LoadRaw(fs afero.Fs, path string, g Geometry, so SectorOrder) (*Disk, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	d, err := FromBytes(filepath.Base(path), data, g, so.Order())
	if err != nil {
		return nil, err
	}
	d.Filename = path
	return d, nil
}

// SaveRaw writes the disk back out as a flat image.
func SaveRaw(fs afero.Fs, path string, d *Disk, so SectorOrder) error {
	err := afero.WriteFile(fs, path, d.Bytes(so.Order()), 0644)
	if err != nil {
		return err
	}
	d.ClearModify()
	return nil
}

// Open picks a loader from the file extension, falling back to the image size.
func Open(fs afero.Fs, path string) (*Disk, error) {

	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".d88", ".d77", ".88d", ".d68", ".98d":
		return LoadD88(fs, path)
	case ".d64":
		return LoadRaw(fs, path, GeometryD64, SectorOrderLinear)
	case ".adf":
		return LoadRaw(fs, path, GeometryADF, SectorOrderLinear)
	case ".2mg", ".2img":
		return Load2MG(fs, path)
	case ".po":
		info, err := fs.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() == int64(PRODOS_800KB_DISK_BYTES) {
			return LoadRaw(fs, path, GeometryApple800K, SectorOrderLinear)
		}
		return LoadRaw(fs, path, GeometryApple140K, SectorOrderProDOS)
	case ".do", ".dsk":
		info, err := fs.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.Size() == int64(STD_DISK_BYTES) {
			return LoadRaw(fs, path, GeometryApple140K, SectorOrderDOS33)
		}
	}

	info, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}
	gl := GuessGeometry(int(info.Size()))
	if len(gl) == 0 {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrBadImage, path, info.Size())
	}

	return LoadRaw(fs, path, gl[0], SectorOrderLinear)
}

// Save writes the disk in the container matching the file extension.
func Save(fs afero.Fs, path string, d *Disk) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".d88", ".d77", ".88d", ".d68", ".98d":
		return SaveD88(fs, path, d)
	case ".2mg", ".2img":
		return Save2MG(fs, path, d)
	case ".po":
		if d.Geometry().Size() == STD_DISK_BYTES {
			return SaveRaw(fs, path, d, SectorOrderProDOS)
		}
	case ".do", ".dsk":
		if d.Geometry().Size() == STD_DISK_BYTES {
			return SaveRaw(fs, path, d, SectorOrderDOS33)
		}
	}
	return SaveRaw(fs, path, d, SectorOrderLinear)
}
