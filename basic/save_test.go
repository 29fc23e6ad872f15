package basic

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/loggy"
)

// TestOverwriteKeepsOriginal replaces a file with one that cannot be stored
// and checks that the old file survives.
func TestOverwriteKeepsOriginal(t *testing.T) {

	tests := []struct {
		name    string
		size    func(free int) int
		wantErr error
	}{
		{
			name:    "fbasic_2d",
			size:    func(free int) int { return free + 50000 },
			wantErr: ErrNotEnoughSpace,
		},
		{
			// Larger than either free run around the management track.
			name:    "frost_2dd",
			size:    func(free int) int { return 360 * 1024 },
			wantErr: ErrDiskFull,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newVolume(t, tt.name)
			old := pattern(1000, 1)
			if _, err := b.SaveFile("A", old, binary()); err != nil {
				t.Fatal(err)
			}
			free, groups := b.FreeSize()

			opts := binary()
			opts.Overwrite = true
			_, err := b.SaveFile("A", pattern(tt.size(free), 2), opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SaveFile() error = %v, want %v", err, tt.wantErr)
			}
			if got := loadFile(t, b, "A"); !bytes.Equal(got, old) {
				t.Errorf("LoadFile(A) returned %d bytes, want the original %d", len(got), len(old))
			}
			if after, ag := b.FreeSize(); after != free || ag != groups {
				t.Errorf("FreeSize() = %d/%d, want %d/%d", after, ag, free, groups)
			}
			if err := b.CheckConsistency(); err != nil {
				t.Errorf("CheckConsistency() error = %v", err)
			}
		})
	}
}

// TestDiskFullIsAtomic asks for one byte more than MaxFileSize while FreeSize
// still allows it, so the save fails inside the allocator.
func TestDiskFullIsAtomic(t *testing.T) {

	tests := []string{
		"l3_1s",
		"n88_2d",
		"cpm_8ss",
		"flex_dsdd",
		"appledos33",
		"prodos_800k",
		"os9_2d",
		"amiga_dd",
		"frost_2dd",
	}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			b, _ := newVolume(t, name)
			if _, err := b.SaveFile("KEEP", pattern(600, 3), binary()); err != nil {
				t.Fatal(err)
			}
			free, groups := b.FreeSize()
			size := b.MaxFileSize("BIG", binary()) + 1
			if size > free {
				t.Fatalf("MaxFileSize()+1 = %d exceeds FreeSize() = %d", size, free)
			}

			if _, err := b.SaveFile("BIG", pattern(size, 4), binary()); err == nil {
				t.Fatalf("SaveFile(%d bytes) succeeded", size)
			}
			if after, ag := b.FreeSize(); after != free || ag != groups {
				t.Errorf("FreeSize() = %d/%d, want %d/%d", after, ag, free, groups)
			}
			if _, err := b.FindFile("BIG"); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("FindFile(BIG) error = %v, want ErrFileNotFound", err)
			}
			if got := loadFile(t, b, "KEEP"); !bytes.Equal(got, pattern(600, 3)) {
				t.Errorf("KEEP differs after the failed save")
			}
			if err := b.CheckConsistency(); err != nil {
				t.Errorf("CheckConsistency() error = %v", err)
			}
		})
	}
}

// TestReadLeavesImageClean checks that listing, loading and verifying never
// mark the image as modified.
func TestReadLeavesImageClean(t *testing.T) {

	for _, name := range []string{"fbasic_2d", "msdos_2dd", "prodos_800k", "amiga_dd", "frost_2dd", "sdos_2d"} {
		t.Run(name, func(t *testing.T) {
			b, d := newVolume(t, name)
			data := pattern(2000, 5)
			if _, err := b.SaveFile("READ", data, binary()); err != nil {
				t.Fatal(err)
			}
			d.ClearModify()

			b.Items()
			if got := loadFile(t, b, "READ"); !bytes.Equal(got, data) {
				t.Fatalf("LoadFile(READ) differs")
			}
			it, _ := b.FindFile("READ")
			if err := b.VerifyFile(it, data); err != nil {
				t.Fatalf("VerifyFile() error = %v", err)
			}
			if d.IsModified() {
				t.Errorf("image marked modified by reads")
			}
		})
	}
}

// TestRollbackLogsRemountFailure loses the directory track while a save is
// being undone, and expects the failed remount to be logged.
func TestRollbackLogsRemountFailure(t *testing.T) {

	reg := NewRegistry()
	p, _ := reg.Lookup("fbasic_2d")
	d := blankDisk(t, p)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broken, lost := false, false
	m := NewMockSectorStore(ctrl)
	m.EXPECT().Tracks().DoAndReturn(d.Tracks).AnyTimes()
	m.EXPECT().Sides().DoAndReturn(d.Sides).AnyTimes()
	m.EXPECT().SectorSize().DoAndReturn(d.SectorSize).AnyTimes()
	m.EXPECT().SectorsOnTrack(gomock.Any(), gomock.Any()).DoAndReturn(d.SectorsOnTrack).AnyTimes()
	m.EXPECT().WriteProtect().Return(false).AnyTimes()
	m.EXPECT().GetSector(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(track, side, id int) *disk.Sector {
		if broken && track >= 2 {
			lost = true
			return nil
		}
		if lost && track == 1 {
			return nil
		}
		return d.GetSector(track, side, id)
	}).AnyTimes()

	var out bytes.Buffer
	b := New(reg, nil, loggy.NewLogger(0, "test", &out))
	if err := b.FormatDisk(m, -1, "fbasic_2d", VolumeInfo{Date: testDate}); err != nil {
		t.Fatal(err)
	}

	broken = true
	if _, err := b.SaveFile("LOST", pattern(5000, 0), binary()); err == nil {
		t.Fatal("SaveFile() succeeded without data sectors")
	}
	if !strings.Contains(out.String(), "rollback: remount fbasic_2d") {
		t.Errorf("log does not mention the failed remount:\n%s", out.String())
	}
	if b.IsFormatted() {
		t.Errorf("volume still mounted after a failed remount")
	}
}

func TestTrsdosBootTrack(t *testing.T) {

	b, d := newVolume(t, "trsdos23")
	small := pattern(10, 1)
	if _, err := b.SaveFile("A", small, binary()); err != nil {
		t.Fatal(err)
	}
	big := pattern(b.MaxFileSize("B", binary()), 2)
	if _, err := b.SaveFile("B", big, binary()); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"A", "B"} {
		it, _ := b.FindFile(name)
		chain, err := b.Chain(it)
		if err != nil {
			t.Fatal(err)
		}
		for _, gi := range chain.Items {
			if gi.Track == 0 {
				t.Errorf("%s uses the boot track: %v", name, gi)
			}
		}
	}

	b2 := New(nil, nil, nil)
	if _, err := b2.ParseDisk(d, -1, "trsdos23", false); err != nil {
		t.Fatalf("ParseDisk() after saving error = %v", err)
	}
	if got := loadFile(t, b2, "A"); !bytes.Equal(got, small) {
		t.Errorf("remounted A differs")
	}
	if got := loadFile(t, b2, "B"); !bytes.Equal(got, big) {
		t.Errorf("remounted B differs")
	}
}

func TestDeleteEmptyDirectory(t *testing.T) {

	for _, name := range []string{"prodos_140k", "prodos_800k", "msdos_2dd", "amiga_dd", "os9_2d"} {
		t.Run(name, func(t *testing.T) {
			b, _ := newVolume(t, name)
			before, _ := b.FreeSize()
			if err := b.MakeDirectory("EMPTY"); err != nil {
				t.Fatal(err)
			}
			dir, err := b.FindFile("EMPTY")
			if err != nil {
				t.Fatal(err)
			}
			if err := b.DeleteFile(dir); err != nil {
				t.Fatalf("DeleteFile(EMPTY) error = %v", err)
			}
			if _, err := b.FindFile("EMPTY"); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("FindFile(EMPTY) error = %v, want ErrFileNotFound", err)
			}
			if after, _ := b.FreeSize(); after != before {
				t.Errorf("FreeSize() = %d, want %d", after, before)
			}
		})
	}
}

// TestTextAndBinaryKinds checks that programs are stored without an end of
// text marker while text files keep their exact length.
func TestTextAndBinaryKinds(t *testing.T) {

	tests := []struct {
		format string
		prog   string
		record int
	}{
		{format: "cpm_2d", prog: "PROG.COM", record: 128},
		{format: "cpm_8ss", prog: "LINK.REL", record: 128},
		{format: "flex_dsdd", prog: "PROG.CMD", record: 252},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			b, _ := newVolume(t, tt.format)

			prog := pattern(100, 1)
			it, err := b.SaveFile(tt.prog, prog, binary())
			if err != nil {
				t.Fatal(err)
			}
			if a := it.GetFileAttr().Attr; !a.Has(AttrBinary) || a.Has(AttrASCII) {
				t.Errorf("%s attributes = %v, want binary", tt.prog, a)
			}
			got := loadFile(t, b, tt.prog)
			if len(got) != tt.record {
				t.Fatalf("LoadFile(%s) returned %d bytes, want %d", tt.prog, len(got), tt.record)
			}
			if !bytes.Equal(got[:len(prog)], prog) {
				t.Errorf("LoadFile(%s) data differs", tt.prog)
			}
			if !bytes.Equal(got[len(prog):], make([]byte, tt.record-len(prog))) {
				t.Errorf("LoadFile(%s) padding is not zero: % x", tt.prog, got[len(prog):])
			}

			text := pattern(100, 2)
			it, err = b.SaveFile("NOTE.TXT", text, binary())
			if err != nil {
				t.Fatal(err)
			}
			if a := it.GetFileAttr().Attr; !a.Has(AttrASCII) {
				t.Errorf("NOTE.TXT attributes = %v, want text", a)
			}
			if got := loadFile(t, b, "NOTE.TXT"); !bytes.Equal(got, text) {
				t.Errorf("LoadFile(NOTE.TXT) returned %d bytes, want %d", len(got), len(text))
			}
		})
	}
}
