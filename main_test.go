package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/paleotronic/diskbasic/basic"
	"github.com/spf13/afero"
)

func memFs(t *testing.T) {
	t.Helper()
	old := appFs
	appFs = afero.NewMemMapFs()
	t.Cleanup(func() { appFs = old })
}

func newTestVolume(t *testing.T, path, format string) *volume {
	t.Helper()
	vi := basic.VolumeInfo{Name: "TEST", Number: 1, Date: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	v, err := createVolume(path, format, vi, mountOptions{Side: -1})
	if err != nil {
		t.Fatalf("format %s: %v", format, err)
	}
	return v
}

func binOpts() basic.SaveOptions {
	o, _ := saveOptions("", 0, 0, false)
	o.Date = time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)
	return o
}

func TestSmartSplit(t *testing.T) {
	cases := []struct {
		line string
		verb string
		args []string
	}{
		{"cat", "cat", nil},
		{"put  hello.bas  BAS", "put", []string{"hello.bas", "BAS"}},
		{`rename "MY FILE" OTHER`, "rename", []string{"MY FILE", "OTHER"}},
		{`mount my\ disk.d88`, "mount", []string{"my disk.d88"}},
		{"", "", nil},
	}
	for _, c := range cases {
		t.Run(c.line, func(t *testing.T) {
			verb, args := smartSplit(c.line)
			if verb != c.verb {
				t.Errorf("verb = %q, want %q", verb, c.verb)
			}
			if strings.Join(args, "|") != strings.Join(c.args, "|") {
				t.Errorf("args = %q, want %q", args, c.args)
			}
		})
	}
}

func TestLocalName(t *testing.T) {
	cases := []struct {
		in     string
		name   string
		load   int
		length int
	}{
		{"GAME", "GAME", -1, -1},
		{"GAME,A$0801", "GAME", 0x801, -1},
		{"GAME,A0x2000,L$0100", "GAME", 0x2000, 0x100},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			name, load, length := localName(c.in)
			if name != c.name || load != c.load || length != c.length {
				t.Errorf("got %q %d %d, want %q %d %d", name, load, length, c.name, c.load, c.length)
			}
		})
	}
}

func TestAttrChange(t *testing.T) {
	base := basic.AttrMachine | basic.AttrBinary
	cases := []struct {
		spec string
		want basic.Attr
	}{
		{"+RO", base | basic.AttrReadOnly},
		{"-B", basic.AttrMachine},
		{"DAT,ASC", basic.AttrData | basic.AttrASCII},
	}
	for _, c := range cases {
		t.Run(c.spec, func(t *testing.T) {
			fn, err := attrChange(c.spec)
			if err != nil {
				t.Fatal(err)
			}
			if got := fn(base); got != c.want {
				t.Errorf("got %s, want %s", got, c.want)
			}
		})
	}
	if _, err := attrChange(""); err == nil {
		t.Error("empty spec accepted")
	}
}

func TestVolumeFiles(t *testing.T) {
	memFs(t)

	for _, c := range []struct {
		path   string
		format string
		ro     bool
	}{
		{"fb.d88", "fbasic_2d", false},
		{"dos.img", "msdos_2dd", true},
		{"pd.po", "prodos_140k", true},
		{"a2.dsk", "appledos33", true},
	} {
		t.Run(c.format, func(t *testing.T) {
			newTestVolume(t, c.path, c.format)

			v, err := openVolume(c.path, mountOptions{Side: -1, Format: c.format})
			if err != nil {
				t.Fatalf("remount: %v", err)
			}
			data := bytes.Repeat([]byte("HELLO "), 100)
			if err := v.WriteFile("HELLO", data, binOpts()); err != nil {
				t.Fatalf("write: %v", err)
			}

			v, err = openVolume(c.path, mountOptions{Side: -1, Format: c.format})
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			got, sum, err := v.ReadFile("HELLO")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("data mismatch: %d bytes, want %d", len(got), len(data))
			}
			if sum.Name != "HELLO" {
				t.Errorf("summary name %q", sum.Name)
			}

			if err := v.Rename("HELLO", "WORLD"); err != nil {
				t.Fatalf("rename: %v", err)
			}
			if _, _, err := v.ReadFile("HELLO"); !errors.Is(err, basic.ErrFileNotFound) {
				t.Errorf("old name still found: %v", err)
			}
			if err := v.SetAttr("WORLD", func(a basic.Attr) basic.Attr { return a | basic.AttrReadOnly }); err != nil {
				t.Fatalf("attr: %v", err)
			}
			_, sum, err = v.ReadFile("WORLD")
			if err != nil {
				t.Fatal(err)
			}
			if c.ro && !sum.Attr.Attr.Has(basic.AttrReadOnly) {
				t.Errorf("read only flag lost: %s", sum.Attr.Attr)
			}
			if err := v.Delete("WORLD"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, _, err := v.ReadFile("WORLD"); !errors.Is(err, basic.ErrFileNotFound) {
				t.Errorf("deleted file still found: %v", err)
			}
		})
	}
}

func TestVolumeWalk(t *testing.T) {
	memFs(t)

	v := newTestVolume(t, "tree.po", "prodos_800k")
	if err := v.Mkdir("GAMES"); err != nil {
		t.Fatal(err)
	}
	if err := v.WriteFile("/GAMES/PONG", []byte("pong"), binOpts()); err != nil {
		t.Fatal(err)
	}
	if err := v.WriteFile("README", []byte("read me"), binOpts()); err != nil {
		t.Fatal(err)
	}

	var paths []string
	err := v.Walk("/", func(e walkEntry) error {
		paths = append(paths, e.Path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(paths, ",")
	for _, want := range []string{"/GAMES", "/GAMES/PONG", "/README"} {
		if !strings.Contains(joined, want) {
			t.Errorf("walk missing %s: %s", want, joined)
		}
	}
	if v.FS.CurrentPath() != "/" {
		t.Errorf("walk left cwd at %s", v.FS.CurrentPath())
	}

	data, _, err := v.ReadFile("/GAMES/PONG")
	if err != nil || string(data) != "pong" {
		t.Errorf("read nested: %q %v", data, err)
	}
}

func TestGlobDisk(t *testing.T) {
	memFs(t)

	v := newTestVolume(t, "glob.d88", "fbasic_2d")
	for _, n := range []string{"ALPHA", "ALPINE", "BETA"} {
		if err := v.WriteFile(n, []byte(n), binOpts()); err != nil {
			t.Fatal(err)
		}
	}
	commandVolumes[0] = v
	defer func() { commandVolumes[0] = nil }()

	files, err := globDisk(0, "al*")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("matched %d files, want 2", len(files))
	}
	if _, err := globDisk(5, "*"); err == nil {
		t.Error("empty slot accepted")
	}
}

func TestReports(t *testing.T) {
	memFs(t)
	old := mount
	mount = mountOptions{Side: -1, Format: "fbasic_2d"}
	defer func() { mount = old }()

	shared := bytes.Repeat([]byte{0xa5}, 700)
	for _, p := range []string{"set/one.d88", "set/two.d88"} {
		v := newTestVolume(t, p, "fbasic_2d")
		if err := v.WriteFile("SHARED", shared, binOpts()); err != nil {
			t.Fatal(err)
		}
	}
	v := newTestVolume(t, "set/three.d88", "fbasic_2d")
	if err := v.WriteFile("OTHER", []byte("other"), binOpts()); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runReport("file-dupes", []string{"set"}, "", &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), sha(shared)) {
		t.Errorf("file report misses shared file:\n%s", out.String())
	}

	out.Reset()
	if err := runReport("whole-dupes", []string{"set"}, "", &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "1 disks have duplicates") {
		t.Errorf("whole disk report:\n%s", out.String())
	}

	if err := runReport("bogus", []string{"set"}, "", &out); err == nil {
		t.Error("unknown report accepted")
	}
}

func TestSearch(t *testing.T) {
	memFs(t)

	v := newTestVolume(t, "s/disk.d88", "fbasic_2d")
	if err := v.WriteFile("NOTES", []byte("Remember the Milk"), binOpts()); err != nil {
		t.Fatal(err)
	}

	for _, c := range []struct {
		kind, value string
	}{
		{"filename", "note"},
		{"text", "milk"},
		{"hash", sha([]byte("Remember the Milk"))},
	} {
		t.Run(c.kind, func(t *testing.T) {
			match, err := searchMatcher(c.kind, c.value)
			if err != nil {
				t.Fatal(err)
			}
			var out bytes.Buffer
			s := &searcher{out: &out, mo: mountOptions{Side: -1, Format: "fbasic_2d"}}
			if err := s.Run(c.value, match, []string{"s"}); err != nil {
				t.Fatal(err)
			}
			if s.found != 1 {
				t.Errorf("found %d, want 1\n%s", s.found, out.String())
			}
		})
	}

	if _, err := searchMatcher("colour", "x"); err == nil {
		t.Error("unknown search accepted")
	}
}
