package basic

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/paleotronic/diskbasic/disk"
)

var testDate = time.Date(1986, 4, 12, 10, 30, 0, 0, time.UTC)

func blankDisk(t *testing.T, p *Param) *disk.Disk {
	t.Helper()
	d, err := disk.New(p.Name, p.Geometry())
	if err != nil {
		t.Fatalf("disk.New(%s) error = %v", p.Name, err)
	}
	return d
}

// newVolume formats a blank image with format and leaves it mounted.
func newVolume(t *testing.T, format string) (*Basic, *disk.Disk) {
	t.Helper()
	reg := NewRegistry()
	p, err := reg.Lookup(format)
	if err != nil {
		t.Fatal(err)
	}
	d := blankDisk(t, p)
	b := New(reg, nil, nil)
	if err := b.FormatDisk(d, -1, format, VolumeInfo{Name: "TEST", Number: 1, Date: testDate}); err != nil {
		t.Fatalf("FormatDisk(%s) error = %v", format, err)
	}
	return b, d
}

func pattern(n, seed int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(0x20 + (i*7+seed)%95)
	}
	return out
}

func binary() SaveOptions {
	return SaveOptions{Attr: NewFileAttr(AttrMachine | AttrBinary), Date: testDate}
}

func loadFile(t *testing.T, b *Basic, name string) []byte {
	t.Helper()
	it, err := b.FindFile(name)
	if err != nil {
		t.Fatalf("FindFile(%s) error = %v", name, err)
	}
	var buf bytes.Buffer
	if err := b.LoadFile(it, &buf); err != nil {
		t.Fatalf("LoadFile(%s) error = %v", name, err)
	}
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {

	for _, name := range NewRegistry().Names() {
		t.Run(name, func(t *testing.T) {
			b, _ := newVolume(t, name)
			ss := b.Param().SectorSize
			sizes := []int{0, 1, ss - 1, ss, ss + 1, 3000}

			before, _ := b.FreeSize()
			for i, n := range sizes {
				fn := fmt.Sprintf("DATA%d", i)
				if _, err := b.SaveFile(fn, pattern(n, i), binary()); err != nil {
					t.Fatalf("SaveFile(%s, %d bytes) error = %v", fn, n, err)
				}
			}
			if after, _ := b.FreeSize(); after >= before {
				t.Errorf("FreeSize() = %d after saving, was %d", after, before)
			}
			if err := b.CheckConsistency(); err != nil {
				t.Errorf("CheckConsistency() error = %v", err)
			}
			if got := len(b.Items()); got < len(sizes) {
				t.Errorf("Items() lists %d entries, want at least %d", got, len(sizes))
			}

			for i, n := range sizes {
				fn := fmt.Sprintf("DATA%d", i)
				if got := loadFile(t, b, fn); !bytes.Equal(got, pattern(n, i)) {
					t.Errorf("LoadFile(%s) returned %d bytes, want %d", fn, len(got), n)
				}
			}

			for i := range sizes {
				it, err := b.FindFile(fmt.Sprintf("DATA%d", i))
				if err != nil {
					t.Fatal(err)
				}
				if err := b.DeleteFile(it); err != nil {
					t.Fatalf("DeleteFile() error = %v", err)
				}
			}
			if after, _ := b.FreeSize(); after != before {
				t.Errorf("FreeSize() = %d after deleting, want %d", after, before)
			}
		})
	}
}

// TestLargestFile saves the largest file MaxFileSize allows, and checks that
// one byte more is refused.
func TestLargestFile(t *testing.T) {

	for _, name := range NewRegistry().Names() {
		t.Run(name, func(t *testing.T) {
			b, _ := newVolume(t, name)
			max := b.MaxFileSize("FULL", binary())
			if max <= 0 {
				t.Fatalf("MaxFileSize() = %d", max)
			}
			before, _ := b.FreeSize()

			if _, err := b.SaveFile("OVER", pattern(max+1, 2), binary()); err == nil {
				t.Fatalf("SaveFile(%d bytes) succeeded, MaxFileSize() = %d", max+1, max)
			}
			if after, _ := b.FreeSize(); after != before {
				t.Errorf("FreeSize() = %d after a refused save, want %d", after, before)
			}

			data := pattern(max, 6)
			if _, err := b.SaveFile("FULL", data, binary()); err != nil {
				t.Fatalf("SaveFile(%d bytes) error = %v", max, err)
			}
			if got := loadFile(t, b, "FULL"); !bytes.Equal(got, data) {
				t.Errorf("LoadFile(FULL) returned %d bytes, want %d", len(got), len(data))
			}
			if err := b.CheckConsistency(); err != nil {
				t.Errorf("CheckConsistency() error = %v", err)
			}
		})
	}
}

func TestRemount(t *testing.T) {

	tests := []string{"fbasic_2d", "msdos_2dd", "cpm_8ss", "os9_coco", "prodos_800k", "c1541", "amiga_dd", "frost_2dd", "sdos_2d"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			b, d := newVolume(t, name)
			data := pattern(1000, 3)
			if _, err := b.SaveFile("KEEP", data, binary()); err != nil {
				t.Fatal(err)
			}

			b2 := New(nil, nil, nil)
			if _, err := b2.ParseDisk(d, -1, name, false); err != nil {
				t.Fatalf("ParseDisk() error = %v", err)
			}
			if got := loadFile(t, b2, "KEEP"); !bytes.Equal(got, data) {
				t.Errorf("remounted file differs")
			}
		})
	}
}

func TestDetect(t *testing.T) {

	for _, name := range NewRegistry().Names() {
		t.Run(name, func(t *testing.T) {
			_, d := newVolume(t, name)
			b := New(nil, nil, nil)
			score, err := b.ParseDisk(d, -1, "", false)
			if err != nil {
				t.Fatalf("ParseDisk() error = %v", err)
			}
			if got := b.Param().Name; got != name {
				t.Errorf("detected %s (score %.2f), want %s", got, score, name)
			}
		})
	}
}

func TestFreeSizeAfterFormat(t *testing.T) {

	tests := []struct {
		name string
		want int
	}{
		{name: "fbasic_2d8", want: 75 * 32 * 256},
		{name: "fbasic_2d", want: 38 * 32 * 256},
		{name: "l3_1s", want: 38 * 16 * 256},
		{name: "cpm_8ss", want: 241 * 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newVolume(t, tt.name)
			got, groups := b.FreeSize()
			if got != tt.want {
				t.Errorf("FreeSize() = %d, want %d", got, tt.want)
			}
			if gs := b.Param().GroupSize(); got != groups*gs {
				t.Errorf("FreeSize() = %d, want %d groups of %d", got, groups, gs)
			}
		})
	}
}

func TestChainRemainder(t *testing.T) {

	b, _ := newVolume(t, "os9_2d")
	it, err := b.SaveFile("PROG", pattern(3000, 1), binary())
	if err != nil {
		t.Fatal(err)
	}
	chain, err := b.Chain(it)
	if err != nil {
		t.Fatal(err)
	}
	if chain.Count != 12 {
		t.Errorf("chain.Count = %d, want 12", chain.Count)
	}
	if chain.Remain != 184 {
		t.Errorf("chain.Remain = %d, want 184", chain.Remain)
	}

	freed := make(map[int]bool)
	for _, g := range chain.AllGroups() {
		freed[g] = true
	}
	if err := b.DeleteFile(it); err != nil {
		t.Fatal(err)
	}
	it, err = b.SaveFile("SMALL", pattern(256, 2), binary())
	if err != nil {
		t.Fatalf("SaveFile() after delete error = %v", err)
	}
	chain, _ = b.Chain(it)
	reused := false
	for _, g := range chain.AllGroups() {
		if freed[g] {
			reused = true
		}
	}
	if !reused {
		t.Errorf("new file %v reuses none of %v", chain.AllGroups(), freed)
	}
}

func TestSaveErrors(t *testing.T) {

	b, _ := newVolume(t, "fbasic_2d")
	if _, err := b.SaveFile("A", pattern(10, 0), binary()); err != nil {
		t.Fatal(err)
	}

	t.Run("exists", func(t *testing.T) {
		_, err := b.SaveFile("A", pattern(10, 0), binary())
		if !errors.Is(err, ErrFileExists) {
			t.Errorf("SaveFile() error = %v, want ErrFileExists", err)
		}
	})
	t.Run("overwrite", func(t *testing.T) {
		opts := binary()
		opts.Overwrite = true
		if _, err := b.SaveFile("A", pattern(20, 1), opts); err != nil {
			t.Fatalf("SaveFile() error = %v", err)
		}
		if got := loadFile(t, b, "A"); !bytes.Equal(got, pattern(20, 1)) {
			t.Errorf("overwritten file differs")
		}
	})
	t.Run("too large", func(t *testing.T) {
		free, _ := b.FreeSize()
		_, err := b.SaveFile("B", pattern(free+1, 0), binary())
		if !errors.Is(err, ErrNotEnoughSpace) {
			t.Errorf("SaveFile() error = %v, want ErrNotEnoughSpace", err)
		}
		if after, _ := b.FreeSize(); after != free {
			t.Errorf("FreeSize() = %d, want %d", after, free)
		}
	})
	t.Run("bad name", func(t *testing.T) {
		_, err := b.SaveFile("", pattern(1, 0), binary())
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("SaveFile() error = %v, want ErrInvalidName", err)
		}
	})
}

// TestAtomicFailure makes every data sector vanish while a file is being
// written and checks that the volume is left as it was.
func TestAtomicFailure(t *testing.T) {

	reg := NewRegistry()
	p, _ := reg.Lookup("fbasic_2d")
	d := blankDisk(t, p)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broken := false
	m := NewMockSectorStore(ctrl)
	m.EXPECT().Tracks().DoAndReturn(d.Tracks).AnyTimes()
	m.EXPECT().Sides().DoAndReturn(d.Sides).AnyTimes()
	m.EXPECT().SectorSize().DoAndReturn(d.SectorSize).AnyTimes()
	m.EXPECT().SectorsOnTrack(gomock.Any(), gomock.Any()).DoAndReturn(d.SectorsOnTrack).AnyTimes()
	m.EXPECT().WriteProtect().Return(false).AnyTimes()
	m.EXPECT().GetSector(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(track, side, id int) *disk.Sector {
		if broken && track >= 2 {
			return nil
		}
		return d.GetSector(track, side, id)
	}).AnyTimes()

	b := New(reg, nil, nil)
	if err := b.FormatDisk(m, -1, "fbasic_2d", VolumeInfo{Date: testDate}); err != nil {
		t.Fatal(err)
	}
	before, groups := b.FreeSize()

	broken = true
	_, err := b.SaveFile("LOST", pattern(5000, 0), binary())
	broken = false
	if !errors.Is(err, ErrNoSector) {
		t.Fatalf("SaveFile() error = %v, want ErrNoSector", err)
	}

	after, ag := b.FreeSize()
	if after != before || ag != groups {
		t.Errorf("FreeSize() = %d/%d, want %d/%d", after, ag, before, groups)
	}
	if _, err := b.FindFile("LOST"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("FindFile() error = %v, want ErrFileNotFound", err)
	}
	if err := b.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() error = %v", err)
	}
}

func TestLoopedChain(t *testing.T) {

	b, d := newVolume(t, "fbasic_2d")
	it, err := b.SaveFile("LOOP", pattern(5000, 0), binary())
	if err != nil {
		t.Fatal(err)
	}
	chain, _ := b.Chain(it)
	gs := chain.Groups()
	if len(gs) != 3 {
		t.Fatalf("chain has %d groups, want 3", len(gs))
	}
	b.Type().SetGroupNumber(gs[1], gs[0])

	b2 := New(nil, nil, nil)
	if _, err := b2.ParseDisk(d, -1, "fbasic_2d", false); err != nil {
		t.Fatal(err)
	}
	it, err = b2.FindFile("LOOP")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := b2.LoadFile(it, &buf); !errors.Is(err, ErrLoopedChain) {
		t.Errorf("LoadFile() error = %v, want ErrLoopedChain", err)
	}
	if err := b2.CheckConsistency(); err == nil {
		t.Errorf("CheckConsistency() found nothing wrong")
	}
}

func TestCoordinates(t *testing.T) {

	tests := []string{"fbasic_2d", "l3_1s", "n88_2d", "cpm_8ss", "prodos_140k", "c1541", "amiga_dd", "msdos_2dd", "hubasic_2hd", "frost_2dd", "sdos_2d"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			b, _ := newVolume(t, name)
			tb := b.Type().Base()
			p := b.Param()

			for pos := 0; pos < tb.TotalSectors(); pos++ {
				tr, sd, n := tb.GetNumFromSectorPos(pos)
				if got := tb.GetSectorPosFromNum(tr, sd, n); got != pos {
					t.Fatalf("position %d -> T%d H%d S%d -> %d", pos, tr, sd, n, got)
				}
			}
			for g := p.FirstGroup; g <= p.FatEndGroup; g++ {
				pos, div := tb.GetStartSectorFromGroup(g)
				if pos < 0 {
					t.Fatalf("group %d has no sector", g)
				}
				if got := tb.GetGroupFromSectorPos(pos, div); got != g {
					t.Fatalf("group %d -> position %d -> group %d", g, pos, got)
				}
			}
		})
	}
}

func TestSkippedTrackHoldsNoGroup(t *testing.T) {

	b, _ := newVolume(t, "l3_1s")
	tb := b.Type().Base()
	p := b.Param()
	for g := p.FirstGroup; g <= p.FatEndGroup; g++ {
		for _, gi := range tb.GetNumsFromGroup(g, InvalidGroupNumber, -1) {
			if gi.Track == p.SkippedTrack {
				t.Fatalf("group %d lands on track %d", g, gi.Track)
			}
		}
	}
}

func TestDirectories(t *testing.T) {

	for _, name := range []string{"msdos_2dd", "os9_2d", "prodos_800k", "amiga_dd"} {
		t.Run(name, func(t *testing.T) {
			b, _ := newVolume(t, name)
			before, _ := b.FreeSize()

			if err := b.MakeDirectory("GAMES"); err != nil {
				t.Fatalf("MakeDirectory() error = %v", err)
			}
			if err := b.MakeDirectory("GAMES"); !errors.Is(err, ErrFileExists) {
				t.Errorf("MakeDirectory() twice error = %v, want ErrFileExists", err)
			}
			if err := b.ChangeDirectory("GAMES"); err != nil {
				t.Fatalf("ChangeDirectory() error = %v", err)
			}
			for i := 0; i < 20; i++ {
				fn := fmt.Sprintf("GAME%d", i)
				if _, err := b.SaveFile(fn, pattern(300+i, i), binary()); err != nil {
					t.Fatalf("SaveFile(%s) error = %v", fn, err)
				}
			}
			if got := len(b.Items()); got != 20 {
				t.Errorf("Items() in GAMES = %d, want 20", got)
			}
			if got := loadFile(t, b, "GAME7"); !bytes.Equal(got, pattern(307, 7)) {
				t.Errorf("GAME7 differs")
			}
			if err := b.CheckConsistency(); err != nil {
				t.Errorf("CheckConsistency() error = %v", err)
			}

			if err := b.ChangeDirectory(".."); err != nil {
				t.Fatal(err)
			}
			if _, err := b.FindFile("GAME7"); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("GAME7 visible in root: %v", err)
			}
			dir, err := b.FindFile("GAMES")
			if err != nil {
				t.Fatal(err)
			}
			if err := b.DeleteFile(dir); err != nil {
				t.Fatalf("DeleteFile(GAMES) error = %v", err)
			}
			if after, _ := b.FreeSize(); after != before {
				t.Errorf("FreeSize() = %d after removing the tree, want %d", after, before)
			}
		})
	}
}

func TestRename(t *testing.T) {

	for _, name := range []string{"fbasic_2d", "trsdos23", "amiga_dd", "prodos_140k", "cpm_2d"} {
		t.Run(name, func(t *testing.T) {
			b, _ := newVolume(t, name)
			data := pattern(700, 5)
			if _, err := b.SaveFile("OLD", data, binary()); err != nil {
				t.Fatal(err)
			}
			if _, err := b.SaveFile("OTHER", pattern(10, 1), binary()); err != nil {
				t.Fatal(err)
			}
			it, _ := b.FindFile("OLD")
			if err := b.RenameFile(it, "OTHER"); !errors.Is(err, ErrFileExists) {
				t.Errorf("RenameFile() onto OTHER error = %v, want ErrFileExists", err)
			}
			it, _ = b.FindFile("OLD")
			if err := b.RenameFile(it, "NEW"); err != nil {
				t.Fatalf("RenameFile() error = %v", err)
			}
			if _, err := b.FindFile("OLD"); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("OLD still found: %v", err)
			}
			if got := loadFile(t, b, "NEW"); !bytes.Equal(got, data) {
				t.Errorf("renamed file differs")
			}
		})
	}
}

func TestMultiExtent(t *testing.T) {

	b, d := newVolume(t, "cpm_8ss")
	data := pattern(40000, 9)
	if _, err := b.SaveFile("BIG.DAT", data, binary()); err != nil {
		t.Fatal(err)
	}
	if got := len(b.Items()); got != 1 {
		t.Errorf("Items() = %d entries, want 1", got)
	}

	b2 := New(nil, nil, nil)
	if _, err := b2.ParseDisk(d, -1, "cpm_8ss", false); err != nil {
		t.Fatal(err)
	}
	if got := loadFile(t, b2, "BIG.DAT"); !bytes.Equal(got, data) {
		t.Errorf("LoadFile() returned %d bytes, want %d", len(got), len(data))
	}
	it, _ := b2.FindFile("BIG.DAT")
	before, _ := b2.FreeSize()
	if err := b2.DeleteFile(it); err != nil {
		t.Fatal(err)
	}
	after, _ := b2.FreeSize()
	if want := before + 40*1024; after != want {
		t.Errorf("FreeSize() = %d after delete, want %d", after, want)
	}
}

func TestVolumeName(t *testing.T) {

	for _, name := range []string{"prodos_140k", "c1541", "amiga_dd", "os9_coco", "msdos_2dd", "frost_2dd", "sdos_2d"} {
		t.Run(name, func(t *testing.T) {
			b, _ := newVolume(t, name)
			got, ok := b.VolumeName()
			if !ok {
				t.Fatal("VolumeName() not supported")
			}
			if got != "TEST" {
				t.Errorf("VolumeName() = %q, want TEST", got)
			}
			if err := b.SetVolumeName("OTHER"); err != nil {
				t.Fatal(err)
			}
			if got, _ := b.VolumeName(); got != "OTHER" {
				t.Errorf("VolumeName() = %q, want OTHER", got)
			}
		})
	}
}

func TestWriteProtect(t *testing.T) {

	b, d := newVolume(t, "n88_2d")
	d.SetWriteProtect(true)
	if _, err := b.SaveFile("X", pattern(1, 0), binary()); !errors.Is(err, ErrWriteProtected) {
		t.Errorf("SaveFile() error = %v, want ErrWriteProtected", err)
	}
}

func TestUnformatted(t *testing.T) {

	p, _ := NewRegistry().Lookup("fbasic_2d")
	d := blankDisk(t, p)
	d.Fill(0xe5)
	b := New(nil, nil, nil)
	if _, err := b.ParseDisk(d, -1, "c1541", false); err == nil {
		t.Errorf("ParseDisk() with a foreign format succeeded")
	}
	if _, err := b.FindFile("X"); !errors.Is(err, ErrUnformatted) {
		t.Errorf("FindFile() error = %v, want ErrUnformatted", err)
	}
}

func TestEdgeSizes(t *testing.T) {

	tests := []struct {
		name    string
		more    int
		wantErr error
	}{
		{name: "fbasic_2d", more: 1, wantErr: ErrNotEnoughSpace},
		{name: "fbasic_2d8", more: 1, wantErr: ErrNotEnoughSpace},
		{name: "hubasic_2d", more: 0x10000, wantErr: ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newVolume(t, tt.name)
			if _, err := b.SaveFile("EMPTY", nil, binary()); err != nil {
				t.Fatalf("SaveFile(0 bytes) error = %v", err)
			}
			if got := loadFile(t, b, "EMPTY"); len(got) != 0 {
				t.Errorf("LoadFile(EMPTY) returned %d bytes", len(got))
			}

			max := b.MaxFileSize("FULL", binary())
			data := pattern(max, 4)
			if _, err := b.SaveFile("FULL", data, binary()); err != nil {
				t.Fatalf("SaveFile(%d bytes) error = %v", max, err)
			}
			if got := loadFile(t, b, "FULL"); !bytes.Equal(got, data) {
				t.Errorf("LoadFile(FULL) returned %d bytes, want %d", len(got), len(data))
			}
			if _, err := b.SaveFile("MORE", pattern(tt.more, 0), binary()); !errors.Is(err, tt.wantErr) {
				t.Errorf("SaveFile(%d bytes) error = %v, want %v", tt.more, err, tt.wantErr)
			}
		})
	}
}
