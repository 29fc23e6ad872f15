package disk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/afero"
)

func TestGeometry(t *testing.T) {

	if STD_DISK_BYTES != 143360 {
		t.Errorf("Wrong size got %d", STD_DISK_BYTES)
	}

	tests := []struct {
		name  string
		g     Geometry
		total int
		size  int
	}{
		{name: "apple 140k", g: GeometryApple140K, total: 560, size: 143360},
		{name: "d64", g: GeometryD64, total: 683, size: 174848},
		{name: "adf", g: GeometryADF, total: 1760, size: 901120},
		{name: "2d", g: Geometry2D, total: 1280, size: 327680},
		{name: "2hd", g: Geometry2HD, total: 1232, size: 1261568},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.TotalSectors(); got != tt.total {
				t.Errorf("TotalSectors() = %d, want %d", got, tt.total)
			}
			if got := tt.g.Size(); got != tt.size {
				t.Errorf("Size() = %d, want %d", got, tt.size)
			}
		})
	}
}

func TestNewDisk(t *testing.T) {

	d, err := New("test", GeometryD64)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.SectorsOnTrack(0, 0); got != 21 {
		t.Errorf("SectorsOnTrack(0) = %d, want 21", got)
	}
	if got := d.SectorsOnTrack(34, 0); got != 17 {
		t.Errorf("SectorsOnTrack(34) = %d, want 17", got)
	}
	if d.GetSector(34, 0, 17) != nil {
		t.Errorf("sector 17 must not exist on track 34")
	}

	_, err = d.Seek(40, 0, 0)
	if !errors.Is(err, ErrNoTrack) {
		t.Errorf("Seek() error = %v, want ErrNoTrack", err)
	}
	_, err = d.Seek(0, 0, 30)
	if !errors.Is(err, ErrNoSector) {
		t.Errorf("Seek() error = %v, want ErrNoSector", err)
	}

	if _, err := New("bad", Geometry{}); !errors.Is(err, ErrBadGeometry) {
		t.Errorf("New() error = %v, want ErrBadGeometry", err)
	}
}

func TestSectorModify(t *testing.T) {

	d, _ := New("test", Geometry2D)
	if d.IsModified() {
		t.Fatal("new disk reports modified")
	}
	s := d.GetSector(3, 1, 5)
	s.CopyAt(10, []byte{1, 2, 3})
	if !d.IsModified() {
		t.Fatal("CopyAt did not mark the sector")
	}
	if !bytes.Equal(s.Data()[10:13], []byte{1, 2, 3}) {
		t.Errorf("CopyAt wrote %v", s.Data()[10:13])
	}
	d.ClearModify()
	if d.IsModified() {
		t.Fatal("ClearModify left modified sectors")
	}
}

func fillPattern(d *Disk) {
	g := d.Geometry()
	for tr := 0; tr < g.Tracks; tr++ {
		for side := 0; side < g.Sides; side++ {
			for _, s := range d.GetTrack(tr, side).Sectors() {
				for i := range s.Data() {
					s.Data()[i] = byte(tr*7 + side*3 + s.ID() + i)
				}
			}
		}
	}
}

func TestRawRoundTrip(t *testing.T) {

	tests := []struct {
		name string
		path string
		g    Geometry
	}{
		{name: "dos order", path: "/img/test.dsk", g: GeometryApple140K},
		{name: "prodos order", path: "/img/test.po", g: GeometryApple140K},
		{name: "d64", path: "/img/test.d64", g: GeometryD64},
		{name: "2d by size", path: "/img/test.2d", g: Geometry2D},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			d, _ := New("test", tt.g)
			fillPattern(d)
			if err := Save(fs, tt.path, d); err != nil {
				t.Fatal(err)
			}
			info, err := fs.Stat(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if int(info.Size()) != tt.g.Size() {
				t.Errorf("saved %d bytes, want %d", info.Size(), tt.g.Size())
			}
			got, err := Open(fs, tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if got.ChecksumDisk() != d.ChecksumDisk() {
				t.Errorf("checksum mismatch after reload")
			}
		})
	}
}

func TestProDOSOrder(t *testing.T) {

	d, _ := New("test", GeometryApple140K)
	d.GetSector(0, 0, 0x0e).Fill(0xaa)

	raw := d.Bytes(SectorOrderProDOS.Order())
	// DOS logical sector 14 is the second half of ProDOS block 0
	if raw[256] != 0xaa || raw[0] != 0 {
		t.Errorf("unexpected layout: %02x %02x", raw[0], raw[256])
	}
}

func TestD88RoundTrip(t *testing.T) {

	fs := afero.NewMemMapFs()

	d, _ := New("FBASIC", Geometry2D)
	fillPattern(d)
	d.SetWriteProtect(true)

	if err := Save(fs, "/test.d88", d); err != nil {
		t.Fatal(err)
	}
	got, err := Open(fs, "/test.d88")
	if err != nil {
		t.Fatal(err)
	}

	if got.Name != "FBASIC" {
		t.Errorf("Name = %q", got.Name)
	}
	if !got.WriteProtect() {
		t.Errorf("write protect lost")
	}
	g := got.Geometry()
	if g.Tracks != 40 || g.Sides != 2 || g.SectorsPerTrack != 16 || g.SectorSize != 256 || g.FirstSector != 1 {
		t.Errorf("geometry = %v", g)
	}
	if got.ChecksumDisk() != d.ChecksumDisk() {
		t.Errorf("checksum mismatch after reload")
	}
}

func TestD88SingleSided(t *testing.T) {

	d, _ := New("L3", Geometry1S)
	fillPattern(d)
	data := EncodeD88(d)

	got, err := ParseD88("l3.d88", data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Sides() != 1 || got.Tracks() != 40 {
		t.Errorf("geometry = %v", got.Geometry())
	}
	if !bytes.Equal(got.GetSector(39, 0, 16).Data(), d.GetSector(39, 0, 16).Data()) {
		t.Errorf("last sector differs")
	}
}

func TestD88Corrupt(t *testing.T) {

	if _, err := ParseD88("x", make([]byte, 10)); !errors.Is(err, ErrBadImage) {
		t.Errorf("short header error = %v", err)
	}

	d, _ := New("x", Geometry2D)
	data := EncodeD88(d)
	data[0x20] = 0xff
	data[0x21] = 0xff
	data[0x22] = 0xff
	if _, err := ParseD88("x", data); !errors.Is(err, ErrBadImage) {
		t.Errorf("bad offset error = %v", err)
	}
}

func Test2MG(t *testing.T) {

	tests := []struct {
		name string
		g    Geometry
	}{
		{name: "140k", g: GeometryApple140K},
		{name: "800k", g: GeometryApple800K},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			d, _ := New("test", tt.g)
			fillPattern(d)
			d.SetWriteProtect(true)

			if err := Save(fs, "/img/test.2mg", d); err != nil {
				t.Fatal(err)
			}
			data, _ := afero.ReadFile(fs, "/img/test.2mg")
			if len(data) != PREAMBLE_2MG_SIZE+tt.g.Size() {
				t.Errorf("saved %d bytes, want %d", len(data), PREAMBLE_2MG_SIZE+tt.g.Size())
			}
			if !bytes.Equal(data[:4], MAGIC_2MG) || string(data[4:8]) != TWOMG_CREATOR {
				t.Errorf("header = %q", data[:8])
			}

			got, err := Open(fs, "/img/test.2mg")
			if err != nil {
				t.Fatal(err)
			}
			if !got.WriteProtect() {
				t.Errorf("locked flag lost")
			}
			if got.ChecksumDisk() != d.ChecksumDisk() {
				t.Errorf("checksum mismatch after reload")
			}
		})
	}

	if _, err := From2MG("x", make([]byte, 100)); !errors.Is(err, ErrBadImage) {
		t.Errorf("From2MG() without magic error = %v", err)
	}
}
