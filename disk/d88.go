package disk

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

const D88_HEADER_SIZE = 0x2b0
const D88_NAME_SIZE = 17
const D88_MAX_TRACKS = 164
const D88_SECTOR_HEADER_SIZE = 16

const (
	D88_MEDIA_2D  = 0x00
	D88_MEDIA_2DD = 0x10
	D88_MEDIA_2HD = 0x20
	D88_MEDIA_1D  = 0x30
	D88_MEDIA_1DD = 0x40
)

// d88SizeCode converts the N field of a sector header to bytes.
func d88SizeCode(n byte) int {
	if n > 7 {
		return 0
	}
	return 128 << n
}

func d88CodeForSize(size int) byte {
	code := byte(0)
	for s := 128; s < size && code < 7; s <<= 1 {
		code++
	}
	return code
}

// ParseD88 decodes the first image of a D88 file.
func ParseD88(name string, data []byte) (*Disk, error) {

	if len(data) < D88_HEADER_SIZE {
		return nil, fmt.Errorf("%w: d88 header too short", ErrBadImage)
	}

	imageSize := int(binary.LittleEndian.Uint32(data[0x1c:]))
	if imageSize > len(data) || imageSize < D88_HEADER_SIZE {
		imageSize = len(data)
	}

	var offsets [D88_MAX_TRACKS]int
	maxIndex := -1
	for i := 0; i < D88_MAX_TRACKS; i++ {
		offsets[i] = int(binary.LittleEndian.Uint32(data[0x20+i*4:]))
		if offsets[i] != 0 {
			if offsets[i] < D88_HEADER_SIZE || offsets[i] >= imageSize {
				return nil, fmt.Errorf("%w: d88 track %d offset 0x%x out of range", ErrBadImage, i, offsets[i])
			}
			maxIndex = i
		}
	}
	if maxIndex < 0 {
		return nil, fmt.Errorf("%w: d88 image has no tracks", ErrBadImage)
	}

	// single sided images pack tracks one per index
	sides := 2
	media := data[0x1b]
	if media == D88_MEDIA_1D || media == D88_MEDIA_1DD {
		sides = 1
	}

	tracks := maxIndex/sides + 1
	sectorSize := 0
	sectorsPerTrack := 0
	firstSector := 256

	parsed := make(map[int]*Track)
	for idx := 0; idx <= maxIndex; idx++ {
		ofs := offsets[idx]
		if ofs == 0 {
			continue
		}
		trk, err := parseD88Track(data[:imageSize], ofs, idx/sides, idx%sides)
		if err != nil {
			return nil, err
		}
		parsed[idx] = trk
		if trk.Count() > sectorsPerTrack {
			sectorsPerTrack = trk.Count()
		}
		for _, s := range trk.sectors {
			if sectorSize == 0 {
				sectorSize = s.Size()
			}
			if s.id < firstSector {
				firstSector = s.id
			}
		}
	}
	if sectorSize == 0 {
		return nil, fmt.Errorf("%w: d88 image has no sectors", ErrBadImage)
	}

	g := Geometry{
		Tracks:          tracks,
		Sides:           sides,
		SectorsPerTrack: sectorsPerTrack,
		SectorSize:      sectorSize,
		FirstSector:     firstSector,
	}

	d := &Disk{
		Name:         d88Name(data[:D88_NAME_SIZE], name),
		Media:        media,
		geom:         g,
		writeProtect: data[0x1a]&0x10 != 0,
	}
	d.tracks = make([][]*Track, tracks)
	for t := 0; t < tracks; t++ {
		d.tracks[t] = make([]*Track, sides)
		for side := 0; side < sides; side++ {
			trk, ok := parsed[t*sides+side]
			if !ok {
				trk = NewTrack(t, side)
			}
			d.tracks[t][side] = trk
		}
	}

	return d, nil
}

func parseD88Track(data []byte, ofs int, num, side int) (*Track, error) {

	trk := NewTrack(num, side)

	count := -1
	for count != 0 {
		if ofs+D88_SECTOR_HEADER_SIZE > len(data) {
			return nil, fmt.Errorf("%w: d88 sector header beyond end of image", ErrBadImage)
		}
		h := data[ofs : ofs+D88_SECTOR_HEADER_SIZE]
		if count < 0 {
			count = int(binary.LittleEndian.Uint16(h[4:]))
			if count == 0 {
				break
			}
		}
		size := int(binary.LittleEndian.Uint16(h[14:]))
		if size == 0 {
			size = d88SizeCode(h[3])
		}
		ofs += D88_SECTOR_HEADER_SIZE
		if ofs+size > len(data) {
			return nil, fmt.Errorf("%w: d88 sector data beyond end of image", ErrBadImage)
		}
		s := NewSector(int(h[2]), size)
		copy(s.data, data[ofs:ofs+size])
		s.density = h[6]
		s.deleted = h[7] != 0
		s.status = h[8]
		trk.Add(s)
		ofs += size
		count--
	}

	return trk, nil
}

func d88Name(b []byte, fallback string) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	if n == 0 {
		return fallback
	}
	return string(b[:n])
}

// LoadD88 reads a D88 image through fs.
func LoadD88(fs afero.Fs, path string) (*Disk, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	d, err := ParseD88(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	d.Filename = path
	return d, nil
}

// EncodeD88 serializes the disk as a single image D88 file.
func EncodeD88(d *Disk) []byte {

	out := make([]byte, D88_HEADER_SIZE)
	copy(out[:D88_NAME_SIZE-1], []byte(d.Name))
	if d.writeProtect {
		out[0x1a] = 0x10
	}
	out[0x1b] = d.Media
	if d.geom.Sides == 1 && d.Media != D88_MEDIA_1D && d.Media != D88_MEDIA_1DD {
		out[0x1b] = D88_MEDIA_1D
	}

	idx := 0
	for t := 0; t < d.geom.Tracks; t++ {
		for side := 0; side < d.geom.Sides; side++ {
			trk := d.GetTrack(t, side)
			if idx >= D88_MAX_TRACKS {
				break
			}
			if trk == nil || trk.Count() == 0 {
				idx++
				continue
			}
			binary.LittleEndian.PutUint32(out[0x20+idx*4:], uint32(len(out)))
			for _, s := range trk.sectors {
				h := make([]byte, D88_SECTOR_HEADER_SIZE)
				h[0] = byte(t)
				h[1] = byte(side)
				h[2] = byte(s.id)
				h[3] = d88CodeForSize(s.Size())
				binary.LittleEndian.PutUint16(h[4:], uint16(trk.Count()))
				h[6] = s.density
				if s.deleted {
					h[7] = 0x10
				}
				h[8] = s.status
				binary.LittleEndian.PutUint16(h[14:], uint16(s.Size()))
				out = append(out, h...)
				out = append(out, s.data...)
			}
			idx++
		}
	}

	binary.LittleEndian.PutUint32(out[0x1c:], uint32(len(out)))
	return out
}

// SaveD88 writes the disk as a D88 image through fs.
func SaveD88(fs afero.Fs, path string, d *Disk) error {
	err := afero.WriteFile(fs, path, EncodeD88(d), 0644)
	if err != nil {
		return err
	}
	d.ClearModify()
	return nil
}
