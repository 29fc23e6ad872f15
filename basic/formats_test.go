package basic

import (
	"bytes"
	"fmt"
	"reflect"
	"testing"
)

func TestFrostNearestRun(t *testing.T) {

	b, _ := newVolume(t, "frost_2dd")

	tests := []struct {
		name   string
		size   int
		groups []int
	}{
		// Both runs touch the management track; the lower one wins.
		{name: "A", size: 1000, groups: []int{359}},
		{name: "B", size: 3000, groups: []int{369, 370, 371}},
		{name: "C", size: 1024, groups: []int{358}},
		{name: "D", size: 0, groups: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pattern(tt.size, len(tt.name))
			it, err := b.SaveFile(tt.name, data, binary())
			if err != nil {
				t.Fatal(err)
			}
			chain, err := b.Chain(it)
			if err != nil {
				t.Fatal(err)
			}
			if got := chain.Groups(); !reflect.DeepEqual(got, tt.groups) {
				t.Errorf("groups = %v, want %v", got, tt.groups)
			}
			if got := loadFile(t, b, tt.name); !bytes.Equal(got, data) {
				t.Errorf("LoadFile(%s) returned %d bytes, want %d", tt.name, len(got), len(data))
			}
		})
	}

	it, _ := b.FindFile("A")
	if err := b.DeleteFile(it); err != nil {
		t.Fatal(err)
	}
	it, err := b.SaveFile("E", pattern(2048, 7), binary())
	if err != nil {
		t.Fatal(err)
	}
	chain, _ := b.Chain(it)
	// The single group left by A is too short; the run below C is nearer
	// than the one above B.
	if got, want := chain.Groups(), []int{356, 357}; !reflect.DeepEqual(got, want) {
		t.Errorf("groups of E = %v, want %v", got, want)
	}
	if err := b.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() error = %v", err)
	}
}

func TestFrostRejectsForeignImage(t *testing.T) {

	_, d := newVolume(t, "msdos_2dd")
	b := New(nil, nil, nil)
	if _, err := b.ParseDisk(d, -1, "frost_2dd", false); err == nil {
		t.Errorf("ParseDisk(frost_2dd) accepted an MS-DOS image")
	}
}

func TestSdosHalfSectorGroups(t *testing.T) {

	b, d := newVolume(t, "sdos_2d")
	if gs := b.Param().GroupSize(); gs != 128 {
		t.Fatalf("GroupSize() = %d, want 128", gs)
	}

	data := pattern(300, 1)
	it, err := b.SaveFile("HALF", data, binary())
	if err != nil {
		t.Fatal(err)
	}
	chain, err := b.Chain(it)
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		group, sector, div int
	}{
		{2, 1, 0},
		{3, 1, 1},
		{4, 2, 0},
	}
	if len(chain.Items) != len(want) {
		t.Fatalf("chain has %d items, want %d: %v", len(chain.Items), len(want), chain.Items)
	}
	for i, w := range want {
		gi := chain.Items[i]
		if gi.Group != w.group || gi.Track != 2 || gi.Side != 0 || gi.SectorStart != w.sector || gi.DivIndex != w.div || gi.DivCount != 2 {
			t.Errorf("item %d = %+v, want group %d on T2 H0 S%d half %d", i, gi, w.group, w.sector, w.div)
		}
	}

	if got := d.GetSector(2, 0, 1).Data()[128:]; !bytes.Equal(got, data[128:256]) {
		t.Errorf("second half of T2 S1 does not hold bytes 128-255")
	}
	if got := d.GetSector(2, 0, 2).Data()[:44]; !bytes.Equal(got, data[256:]) {
		t.Errorf("first half of T2 S2 does not hold bytes 256-299")
	}
	if got := loadFile(t, b, "HALF"); !bytes.Equal(got, data) {
		t.Errorf("LoadFile(HALF) returned %d bytes, want %d", len(got), len(data))
	}
}

// TestSdosEntriesAcrossSectors fills more entries than one directory sector
// holds, so one of them is split between two sectors.
func TestSdosEntriesAcrossSectors(t *testing.T) {

	b, d := newVolume(t, "sdos_2d")
	const files = 24
	for i := 0; i < files; i++ {
		fn := fmt.Sprintf("F%d.DAT", i)
		if _, err := b.SaveFile(fn, pattern(50+i*10, i), binary()); err != nil {
			t.Fatalf("SaveFile(%s) error = %v", fn, err)
		}
	}

	b2 := New(nil, nil, nil)
	if _, err := b2.ParseDisk(d, -1, "", false); err != nil {
		t.Fatalf("ParseDisk() error = %v", err)
	}
	if got := b2.Param().Name; got != "sdos_2d" {
		t.Fatalf("detected %s, want sdos_2d", got)
	}
	if got := len(b2.Items()); got != files {
		t.Errorf("Items() = %d entries, want %d", got, files)
	}
	for i := 0; i < files; i++ {
		fn := fmt.Sprintf("F%d.DAT", i)
		if got := loadFile(t, b2, fn); !bytes.Equal(got, pattern(50+i*10, i)) {
			t.Errorf("LoadFile(%s) differs", fn)
		}
	}

	it, _ := b2.FindFile("F10.DAT")
	if err := b2.DeleteFile(it); err != nil {
		t.Fatal(err)
	}
	if _, err := b2.SaveFile("SPLIT.DAT", pattern(10, 9), binary()); err != nil {
		t.Fatal(err)
	}
	if got := loadFile(t, b2, "SPLIT.DAT"); !bytes.Equal(got, pattern(10, 9)) {
		t.Errorf("entry reused across the sector boundary does not load")
	}
	if err := b2.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() error = %v", err)
	}
}
