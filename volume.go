package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/paleotronic/diskbasic/basic"
	"github.com/paleotronic/diskbasic/charset"
	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/listing"
	"github.com/paleotronic/diskbasic/loggy"
	"github.com/spf13/afero"
)

var appFs afero.Fs = afero.NewOsFs()
var registry = basic.NewRegistry()
var charsets = charset.NewTable()

type mountOptions struct {
	Format  string
	Side    int
	Charset string
}

// volume is one mounted image file.
type volume struct {
	Path string
	Disk *disk.Disk
	FS   *basic.Basic
}

func newBasic(mo mountOptions) (*basic.Basic, error) {
	b := basic.New(registry, charsets, loggy.Get(0))
	if mo.Charset != "" {
		if err := b.SetCharset(mo.Charset); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func openVolume(path string, mo mountOptions) (*volume, error) {

	d, err := disk.Open(appFs, path)
	if err != nil {
		return nil, err
	}

	b, err := newBasic(mo)
	if err != nil {
		return nil, err
	}
	score, err := b.ParseDisk(d, mo.Side, mo.Format, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	loggy.Get(0).Logf("mounted %s as %s (score %.2f)", path, b.Param().Name, score)

	return &volume{Path: path, Disk: d, FS: b}, nil
}

// createVolume formats a blank image for format and writes it to path.
func createVolume(path string, format string, vi basic.VolumeInfo, mo mountOptions) (*volume, error) {

	p, err := registry.Lookup(format)
	if err != nil {
		return nil, err
	}
	d, err := disk.New(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), p.Geometry())
	if err != nil {
		return nil, err
	}
	d.Filename = path

	b, err := newBasic(mo)
	if err != nil {
		return nil, err
	}
	if err := b.FormatDisk(d, mo.Side, p.Name, vi); err != nil {
		return nil, err
	}
	v := &volume{Path: path, Disk: d, FS: b}
	return v, disk.Save(appFs, path, d)
}

// Save writes the image back when any sector changed.
func (v *volume) Save() error {
	if !v.Disk.IsModified() {
		return nil
	}
	return disk.Save(appFs, v.Path, v.Disk)
}

func (v *volume) Name() string {
	return filepath.Base(v.Path)
}

func splitDiskPath(p string) (string, string) {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	dir := p[:i]
	if dir == "" {
		dir = "/"
	}
	return dir, p[i+1:]
}

// enter changes into dir and returns a func restoring the previous
// directory.
func (v *volume) enter(dir string) (func(), error) {
	prev := v.FS.CurrentPath()
	restore := func() {
		v.FS.ChangeDirectory(prev)
	}
	if dir == "" {
		return restore, nil
	}
	if err := v.FS.ChangeDirectory(dir); err != nil {
		return nil, err
	}
	return restore, nil
}

// find resolves a slash separated path inside the image.
func (v *volume) find(p string) (basic.Item, func(), error) {
	dir, name := splitDiskPath(p)
	restore, err := v.enter(dir)
	if err != nil {
		return nil, nil, err
	}
	it, err := v.FS.FindFile(name)
	if err != nil {
		restore()
		return nil, nil, err
	}
	return it, restore, nil
}

func (v *volume) ReadFile(p string) ([]byte, basic.Summary, error) {
	it, restore, err := v.find(p)
	if err != nil {
		return nil, basic.Summary{}, err
	}
	defer restore()

	sum := v.summary(it)
	w := &byteSink{}
	if err := v.FS.LoadFile(it, w); err != nil {
		return nil, sum, err
	}
	return w.data, sum, nil
}

type byteSink struct {
	data []byte
}

func (b *byteSink) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (v *volume) summary(it basic.Item) basic.Summary {
	_, name := splitDiskPath(basic.GetFileName(it, v.FS.Charset()))
	for _, s := range v.FS.Items() {
		if s.Name == name {
			return s
		}
	}
	return basic.Summary{Name: name, Attr: it.GetFileAttr()}
}

func (v *volume) WriteFile(p string, data []byte, opts basic.SaveOptions) error {
	dir, name := splitDiskPath(p)
	restore, err := v.enter(dir)
	if err != nil {
		return err
	}
	defer restore()
	if _, err := v.FS.SaveFile(name, data, opts); err != nil {
		return err
	}
	return v.Save()
}

func (v *volume) Delete(p string) error {
	it, restore, err := v.find(p)
	if err != nil {
		return err
	}
	defer restore()
	if err := v.FS.DeleteFile(it); err != nil {
		return err
	}
	return v.Save()
}

func (v *volume) Rename(p, to string) error {
	it, restore, err := v.find(p)
	if err != nil {
		return err
	}
	defer restore()
	if err := v.FS.RenameFile(it, to); err != nil {
		return err
	}
	return v.Save()
}

// SetAttr applies a change to the attribute mask of p.
func (v *volume) SetAttr(p string, change func(basic.Attr) basic.Attr) error {
	it, restore, err := v.find(p)
	if err != nil {
		return err
	}
	defer restore()
	a := it.GetFileAttr()
	if err := v.FS.ChangeAttr(it, basic.NewFileAttr(change(a.Attr))); err != nil {
		return err
	}
	return v.Save()
}

func (v *volume) Mkdir(p string) error {
	dir, name := splitDiskPath(p)
	restore, err := v.enter(dir)
	if err != nil {
		return err
	}
	defer restore()
	if err := v.FS.MakeDirectory(name); err != nil {
		return err
	}
	return v.Save()
}

type walkEntry struct {
	Path    string
	Summary basic.Summary
}

// Walk lists every entry below dir, directories before their contents.
func (v *volume) Walk(dir string, fn func(e walkEntry) error) error {
	restore, err := v.enter(dir)
	if err != nil {
		return err
	}
	defer restore()
	return v.walk(0, fn)
}

func (v *volume) walk(depth int, fn func(e walkEntry) error) error {
	if depth > 16 {
		return nil
	}
	base := strings.TrimSuffix(v.FS.CurrentPath(), "/")
	for _, s := range v.FS.Items() {
		e := walkEntry{Path: base + "/" + s.Name, Summary: s}
		if err := fn(e); err != nil {
			return err
		}
		if !s.Dir {
			continue
		}
		if err := v.FS.ChangeDirectory(s.Name); err != nil {
			return err
		}
		err := v.walk(depth+1, fn)
		v.FS.ChangeDirectory("..")
		if err != nil {
			return err
		}
	}
	return nil
}

func sha(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func fileDate(s basic.Summary) string {
	if !s.HasDate {
		return ""
	}
	return s.Date.Format("2006-01-02 15:04")
}

// printCatalog lists the current directory of v.
func printCatalog(w io.Writer, v *volume, pattern string) {

	b := v.FS
	p := b.Param()
	name, hasName := b.VolumeName()
	if !hasName || name == "" {
		name = "no-name"
	}
	fmt.Fprintf(w, "Volume %s (%s) %s\n\n", name, p.Name, b.CurrentPath())
	fmt.Fprintf(w, "%-24s  %8s  %6s  %-16s  %-16s  %s\n", "NAME", "SIZE", "GROUPS", "ATTR", "DATE", "ADDRESS")

	items := b.Items()
	sort.SliceStable(items, func(i, j int) bool { return items[i].Dir && !items[j].Dir })
	for _, s := range items {
		if pattern != "" {
			if ok, _ := filepath.Match(strings.ToUpper(pattern), strings.ToUpper(s.Name)); !ok {
				continue
			}
		}
		addr := ""
		if s.Load != 0 || s.Exec != 0 {
			addr = fmt.Sprintf("(A$%.4X E$%.4X)", s.Load, s.Exec)
		}
		size := fmt.Sprintf("%8d", s.Size)
		if s.Dir {
			size = fmt.Sprintf("%8s", "<DIR>")
		}
		fmt.Fprintf(w, "%-24s  %s  %6d  %-16s  %-16s  %s\n", s.Name, size, s.Groups, s.Attr.Attr, fileDate(s), addr)
	}

	free, groups := b.FreeSize()
	fmt.Fprintf(w, "\nFREE: %d bytes (%d groups of %d)\n", free, groups, p.GroupSize())
}

// printInfo describes the mounted volume and its health.
func printInfo(w io.Writer, v *volume) {

	b := v.FS
	p := b.Param()
	g := v.Disk.Geometry()
	full, _ := filepath.Abs(v.Path)

	fmt.Fprintf(w, "Disk path   : %s\n", full)
	fmt.Fprintf(w, "Format      : %s (%s) %s\n", p.Name, p.Kind, p.Description)
	fmt.Fprintf(w, "Score       : %.2f\n", b.Score())
	fmt.Fprintf(w, "Geometry    : %s\n", g)
	fmt.Fprintf(w, "Size        : %d bytes\n", g.Size())
	fmt.Fprintf(w, "Charset     : %s\n", b.Charset().Name)
	if name, ok := b.VolumeName(); ok {
		fmt.Fprintf(w, "Volume name : %s\n", name)
	}
	free, groups := b.FreeSize()
	fmt.Fprintf(w, "Free        : %d bytes, %d groups\n", free, groups)
	fmt.Fprintf(w, "Protected   : %v\n", v.Disk.WriteProtect())

	for _, m := range b.Report().Messages {
		fmt.Fprintf(w, "%-7s : %s\n", m.Severity, m.Text)
	}
	if err := b.CheckConsistency(); err != nil {
		fmt.Fprintf(w, "Check       : FAILED\n%v\n", err)
	} else {
		fmt.Fprintf(w, "Check       : OK\n")
	}
}

// programText lists a tokenized Apple II BASIC file, nil for anything else.
func programText(s basic.Summary, data []byte) []byte {
	a := s.Attr
	if !a.Attr.Has(basic.AttrBasic) || a.Attr.Has(basic.AttrASCII) {
		return nil
	}
	switch a.Format {
	case "appledos":
		if a.Origin[0]&0x7f == basic.A2_TYPE_INTEGER {
			return listing.Integer(data)
		}
		return listing.Applesoft(data)
	case "prodos":
		if a.Origin[0] == basic.PRODOS_TYPE_INT {
			return listing.Integer(data)
		}
		return listing.Applesoft(data)
	}
	return nil
}

func saveOptions(attrs string, load, exec int, overwrite bool) (basic.SaveOptions, error) {
	a := basic.AttrBinary | basic.AttrMachine
	if attrs != "" {
		pa, ok := basic.ParseAttr(attrs)
		if !ok {
			return basic.SaveOptions{}, fmt.Errorf("bad attributes %q", attrs)
		}
		a = pa
	}
	return basic.SaveOptions{
		Attr:      basic.NewFileAttr(a),
		Load:      load,
		Exec:      exec,
		Overwrite: overwrite,
		Date:      time.Now(),
	}, nil
}
