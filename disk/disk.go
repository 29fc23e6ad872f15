package disk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

const STD_BYTES_PER_SECTOR = 256
const STD_TRACKS_PER_DISK = 35
const STD_SECTORS_PER_TRACK = 16
const STD_DISK_BYTES = STD_TRACKS_PER_DISK * STD_SECTORS_PER_TRACK * STD_BYTES_PER_SECTOR
const PRODOS_800KB_BLOCKS = 1600
const PRODOS_800KB_DISK_BYTES = STD_BYTES_PER_SECTOR * 2 * PRODOS_800KB_BLOCKS

var (
	ErrNoTrack     = errors.New("no such track")
	ErrNoSector    = errors.New("no such sector")
	ErrBadSize     = errors.New("invalid sector size")
	ErrBadImage    = errors.New("unrecognized disk image")
	ErrReadOnly    = errors.New("disk is write protected")
	ErrBadGeometry = errors.New("invalid disk geometry")
)

func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Zone gives a run of tracks sharing one sectors-per-track count.
type Zone struct {
	FirstTrack int
	LastTrack  int
	Sectors    int
}

// Geometry describes the physical layout of an image. Tracks are numbered
// from zero; sector ids start at FirstSector.
type Geometry struct {
	Tracks          int
	Sides           int
	SectorsPerTrack int
	SectorSize      int
	FirstSector     int
	Zones           []Zone
}

func (g Geometry) SectorsOnTrack(track int) int {
	for _, z := range g.Zones {
		if track >= z.FirstTrack && track <= z.LastTrack {
			return z.Sectors
		}
	}
	return g.SectorsPerTrack
}

func (g Geometry) TotalSectors() int {
	total := 0
	for t := 0; t < g.Tracks; t++ {
		total += g.SectorsOnTrack(t) * g.Sides
	}
	return total
}

func (g Geometry) Size() int {
	return g.TotalSectors() * g.SectorSize
}

func (g Geometry) Valid() bool {
	return g.Tracks > 0 && g.Sides > 0 && g.Sides <= 2 && g.SectorsPerTrack > 0 && g.SectorSize >= 128
}

func (g Geometry) String() string {
	return fmt.Sprintf("%d tracks, %d sides, %d sectors, %d bytes", g.Tracks, g.Sides, g.SectorsPerTrack, g.SectorSize)
}

// Sector is one addressable sector buffer.
type Sector struct {
	id       int
	cylinder int
	head     int
	data     []byte
	density  byte
	deleted  bool
	status   byte
	modified bool
}

func NewSector(id, size int) *Sector {
	return &Sector{
		id:   id,
		data: make([]byte, size),
	}
}

func (s *Sector) ID() int {
	return s.id
}

func (s *Sector) Size() int {
	return len(s.data)
}

// Data returns the live buffer; writers must call SetModify.
func (s *Sector) Data() []byte {
	return s.data
}

func (s *Sector) Fill(code byte) {
	for i := range s.data {
		s.data[i] = code
	}
	s.modified = true
}

// Copy writes data at the start of the sector and returns the bytes copied.
func (s *Sector) Copy(data []byte) int {
	n := copy(s.data, data)
	s.modified = true
	return n
}

func (s *Sector) CopyAt(offset int, data []byte) int {
	if offset < 0 || offset >= len(s.data) {
		return 0
	}
	n := copy(s.data[offset:], data)
	s.modified = true
	return n
}

func (s *Sector) SetModify() {
	s.modified = true
}

func (s *Sector) IsModified() bool {
	return s.modified
}

func (s *Sector) ClearModify() {
	s.modified = false
}

func (s *Sector) IsDeleted() bool {
	return s.deleted
}

// Track holds the sectors of one track/side in on-disk order.
type Track struct {
	num     int
	side    int
	sectors []*Sector
}

func NewTrack(num, side int) *Track {
	return &Track{num: num, side: side}
}

func (t *Track) Num() int {
	return t.num
}

func (t *Track) Side() int {
	return t.side
}

func (t *Track) Sectors() []*Sector {
	return t.sectors
}

func (t *Track) Count() int {
	return len(t.sectors)
}

func (t *Track) Add(s *Sector) {
	s.cylinder = t.num
	s.head = t.side
	t.sectors = append(t.sectors, s)
}

// GetSector looks a sector up by its id.
func (t *Track) GetSector(id int) *Sector {
	for _, s := range t.sectors {
		if s.id == id {
			return s
		}
	}
	return nil
}

// Disk is the sector container consumed by the filesystem engine.
type Disk struct {
	Name         string
	Filename     string
	Media        byte
	geom         Geometry
	tracks       [][]*Track
	writeProtect bool
}

// New builds a blank disk with every sector present and zeroed.
func New(name string, g Geometry) (*Disk, error) {

	if !g.Valid() {
		return nil, ErrBadGeometry
	}

	d := &Disk{
		Name: name,
		geom: g,
	}
	d.tracks = make([][]*Track, g.Tracks)
	for t := 0; t < g.Tracks; t++ {
		d.tracks[t] = make([]*Track, g.Sides)
		for s := 0; s < g.Sides; s++ {
			trk := NewTrack(t, s)
			for i := 0; i < g.SectorsOnTrack(t); i++ {
				trk.Add(NewSector(g.FirstSector+i, g.SectorSize))
			}
			d.tracks[t][s] = trk
		}
	}

	return d, nil
}

func (d *Disk) Geometry() Geometry {
	return d.geom
}

func (d *Disk) Tracks() int {
	return d.geom.Tracks
}

func (d *Disk) Sides() int {
	return d.geom.Sides
}

func (d *Disk) SectorSize() int {
	return d.geom.SectorSize
}

func (d *Disk) SectorsPerTrack() int {
	return d.geom.SectorsPerTrack
}

func (d *Disk) SectorsOnTrack(track, side int) int {
	trk := d.GetTrack(track, side)
	if trk == nil {
		return 0
	}
	return trk.Count()
}

func (d *Disk) GetTrack(track, side int) *Track {
	if track < 0 || track >= len(d.tracks) {
		return nil
	}
	if side < 0 || side >= len(d.tracks[track]) {
		return nil
	}
	return d.tracks[track][side]
}

func (d *Disk) GetSector(track, side, id int) *Sector {
	trk := d.GetTrack(track, side)
	if trk == nil {
		return nil
	}
	return trk.GetSector(id)
}

// Seek is the error returning form of GetSector.
func (d *Disk) Seek(track, side, id int) (*Sector, error) {
	trk := d.GetTrack(track, side)
	if trk == nil {
		return nil, fmt.Errorf("%w: track %d side %d", ErrNoTrack, track, side)
	}
	s := trk.GetSector(id)
	if s == nil {
		return nil, fmt.Errorf("%w: track %d side %d sector %d", ErrNoSector, track, side, id)
	}
	return s, nil
}

func (d *Disk) WriteProtect() bool {
	return d.writeProtect
}

func (d *Disk) SetWriteProtect(b bool) {
	d.writeProtect = b
}

func (d *Disk) IsModified() bool {
	for _, sides := range d.tracks {
		for _, trk := range sides {
			if trk == nil {
				continue
			}
			for _, s := range trk.sectors {
				if s.modified {
					return true
				}
			}
		}
	}
	return false
}

func (d *Disk) ClearModify() {
	for _, sides := range d.tracks {
		for _, trk := range sides {
			if trk == nil {
				continue
			}
			for _, s := range trk.sectors {
				s.modified = false
			}
		}
	}
}

// Fill sets every sector of the disk to code.
func (d *Disk) Fill(code byte) {
	for _, sides := range d.tracks {
		for _, trk := range sides {
			if trk == nil {
				continue
			}
			for _, s := range trk.sectors {
				s.Fill(code)
			}
		}
	}
}

func (d *Disk) ChecksumDisk() string {
	return Checksum(d.Bytes(nil))
}

func (d *Disk) ChecksumSector(track, side, id int) string {
	s := d.GetSector(track, side, id)
	if s == nil {
		return ""
	}
	return Checksum(s.data)
}

// Bytes flattens the disk track by track, side by side. order, when given,
// lists sector ids in file order for every track.
func (d *Disk) Bytes(order []int) []byte {
	out := make([]byte, 0, d.geom.Size())
	for t := 0; t < d.geom.Tracks; t++ {
		for side := 0; side < d.geom.Sides; side++ {
			trk := d.GetTrack(t, side)
			if trk == nil {
				out = append(out, make([]byte, d.geom.SectorsOnTrack(t)*d.geom.SectorSize)...)
				continue
			}
			if order != nil && len(order) == trk.Count() {
				for _, id := range order {
					s := trk.GetSector(d.geom.FirstSector + id)
					if s == nil {
						out = append(out, make([]byte, d.geom.SectorSize)...)
						continue
					}
					out = append(out, s.data...)
				}
				continue
			}
			for i := 0; i < d.geom.SectorsOnTrack(t); i++ {
				s := trk.GetSector(d.geom.FirstSector + i)
				if s == nil {
					out = append(out, make([]byte, d.geom.SectorSize)...)
					continue
				}
				out = append(out, s.data...)
			}
		}
	}
	return out
}
