package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/paleotronic/diskbasic/disk"
	"github.com/paleotronic/diskbasic/loggy"
	"github.com/spf13/afero"
)

type duplicateSource struct {
	Fullpath string
	Filename string
}

type DuplicateFileCollection struct {
	data map[string][]duplicateSource
}

type DuplicateWholeDiskCollection struct {
	data map[string][]duplicateSource
}

func sortedKeys(m map[string][]duplicateSource) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (dfc *DuplicateFileCollection) Add(checksum string, fullpath string, filename string) {

	if dfc.data == nil {
		dfc.data = make(map[string][]duplicateSource)
	}

	dfc.data[checksum] = append(dfc.data[checksum], duplicateSource{Fullpath: fullpath, Filename: filename})

}

func (dfc *DuplicateWholeDiskCollection) Add(checksum string, fullpath string) {

	if dfc.data == nil {
		dfc.data = make(map[string][]duplicateSource)
	}

	dfc.data[checksum] = append(dfc.data[checksum], duplicateSource{Fullpath: fullpath})

}

func (dfc *DuplicateFileCollection) Report(w io.Writer) {

	var files, extras int

	for _, sha256 := range sortedKeys(dfc.data) {

		list := dfc.data[sha256]
		if len(list) < 2 {
			continue
		}

		files++
		extras += len(list) - 1
		fmt.Fprintf(w, "\nChecksum %s duplicated %d times:\n", sha256, len(list))
		for i, v := range list {
			fmt.Fprintf(w, " %d) %s >> %s\n", i, v.Fullpath, v.Filename)
		}

	}

	fmt.Fprintf(w, "\nSUMMARY: %d files have duplicates, %d extra copies\n", files, extras)

}

func (dfc *DuplicateWholeDiskCollection) Report(w io.Writer) {

	var disksWithDupes, extras int

	for _, sha256 := range sortedKeys(dfc.data) {

		list := dfc.data[sha256]
		if len(list) < 2 {
			continue
		}

		disksWithDupes++
		extras += len(list) - 1
		fmt.Fprintf(w, "\nChecksum %s duplicated %d times:\n", sha256, len(list))
		for i, v := range list {
			fmt.Fprintf(w, " %d) %s\n", i, v.Fullpath)
		}

	}

	fmt.Fprintf(w, "\nSUMMARY: %d disks have duplicates, %d extra copies\n", disksWithDupes, extras)

}

// AggregateDuplicateFiles adds every file on the image at path.
func AggregateDuplicateFiles(path string, dfc *DuplicateFileCollection) error {

	v, err := openVolume(path, mount)
	if err != nil {
		return err
	}

	return v.Walk("/", func(e walkEntry) error {
		if e.Summary.Dir {
			return nil
		}
		data, _, err := v.ReadFile(e.Path)
		if err != nil {
			loggy.Get(0).Errorf("%s:%s: %v", path, e.Path, err)
			return nil
		}
		if len(data) == 0 {
			return nil
		}
		dfc.Add(sha(data), path, e.Path)
		return nil
	})

}

func AggregateDuplicateWholeDisks(path string, dfc *DuplicateWholeDiskCollection) error {

	d, err := disk.Open(appFs, path)
	if err != nil {
		return err
	}
	dfc.Add(d.ChecksumDisk(), path)

	return nil

}

// AggregateDuplicateCatalogs keys each image by the sorted list of its
// file checksums, so images holding the same files match even when their
// layout differs.
func AggregateDuplicateCatalogs(path string, dfc *DuplicateWholeDiskCollection) error {

	v, err := openVolume(path, mount)
	if err != nil {
		return err
	}

	var sums []string
	err = v.Walk("/", func(e walkEntry) error {
		if e.Summary.Dir {
			return nil
		}
		data, _, err := v.ReadFile(e.Path)
		if err != nil {
			return err
		}
		sums = append(sums, e.Path+"="+sha(data))
		return nil
	})
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		return nil
	}
	sort.Strings(sums)
	dfc.Add(sha([]byte(strings.Join(sums, "\n"))), path)

	return nil

}

func runReport(kind string, paths []string, filename string, w io.Writer) error {

	if filename != "" {
		f, err := appFs.Create(filename)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	images := collectImages(paths)

	switch kind {
	case "file-dupes":
		var dfc DuplicateFileCollection
		for _, p := range images {
			if err := AggregateDuplicateFiles(p, &dfc); err != nil {
				loggy.Get(0).Errorf("Skipping %s: %v", p, err)
			}
		}
		fmt.Fprintf(w, "FILE DUPLICATE REPORT (%d images)\n", len(images))
		dfc.Report(w)
	case "whole-dupes", "cat-dupes":
		var dfc DuplicateWholeDiskCollection
		aggregate := AggregateDuplicateWholeDisks
		heading := "WHOLE DISK DUPLICATE REPORT"
		if kind == "cat-dupes" {
			aggregate = AggregateDuplicateCatalogs
			heading = "DUPLICATE CATALOG REPORT"
		}
		for _, p := range images {
			if err := aggregate(p, &dfc); err != nil {
				loggy.Get(0).Errorf("Skipping %s: %v", p, err)
			}
		}
		fmt.Fprintf(w, "%s (%d images)\n", heading, len(images))
		dfc.Report(w)
	default:
		return fmt.Errorf("unknown report %q (file-dupes, whole-dupes or cat-dupes)", kind)
	}

	return nil
}

// ExtractDisk copies an image file under the extract folder.
func ExtractDisk(path string) error {
	data, err := afero.ReadFile(appFs, path)
	if err != nil {
		return err
	}
	dir := binpath() + "/extract"
	if err := appFs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return afero.WriteFile(appFs, dir+"/"+strings.Replace(path, "/", "_", -1), data, 0644)
}
