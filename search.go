package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paleotronic/diskbasic/loggy"
	"github.com/spf13/afero"
)

var imageExtensions = map[string]bool{
	".d88": true, ".d77": true, ".88d": true, ".d68": true, ".98d": true,
	".dsk": true, ".do": true, ".po": true, ".2mg": true, ".2img": true,
	".d64": true, ".adf": true, ".img": true, ".ima": true,
}

// collectImages expands files, globs and directories into image paths.
func collectImages(paths []string) []string {

	var out []string

	for _, p := range paths {
		matches, err := afero.Glob(appFs, p)
		if err != nil || len(matches) == 0 {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := appFs.Stat(m)
			if err != nil {
				loggy.Get(0).Errorf("Error stating file: %s", err.Error())
				continue
			}
			if !info.IsDir() {
				out = append(out, m)
				continue
			}
			afero.Walk(appFs, m, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil
				}
				if !info.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(path))] {
					out = append(out, path)
				}
				return nil
			})
		}
	}

	return out
}

type searchMatch func(e walkEntry, data []byte) bool

func searchMatcher(kind, value string) (searchMatch, error) {

	lower := strings.ToLower(value)

	switch kind {
	case "filename":
		return func(e walkEntry, _ []byte) bool {
			return strings.Contains(strings.ToLower(e.Summary.Name), lower)
		}, nil
	case "hash":
		return func(_ walkEntry, data []byte) bool {
			return sha(data) == lower
		}, nil
	case "text":
		needle := []byte(lower)
		return func(e walkEntry, data []byte) bool {
			if text := programText(e.Summary, data); text != nil {
				data = text
			}
			return bytes.Contains(bytes.ToLower(data), needle)
		}, nil
	}

	return nil, fmt.Errorf("unknown search %q (filename, text or hash)", kind)
}

type searcher struct {
	out         io.Writer
	extract     bool
	extractDisk bool
	mo          mountOptions
	found       int
}

// Run mounts every image under paths and prints the files that match.
func (s *searcher) Run(value string, match searchMatch, paths []string) error {

	fmt.Fprintf(s.out, "\nSEARCH RESULTS FOR '%s'\n\n", value)

	for _, path := range collectImages(paths) {
		v, err := openVolume(path, s.mo)
		if err != nil {
			loggy.Get(0).Errorf("Skipping %s: %v", path, err)
			continue
		}
		hits := s.found
		err = v.Walk("/", func(e walkEntry) error {
			if e.Summary.Dir {
				return nil
			}
			data, _, err := v.ReadFile(e.Path)
			if err != nil {
				loggy.Get(0).Errorf("%s:%s: %v", path, e.Path, err)
				return nil
			}
			if !match(e, data) {
				return nil
			}
			s.found++
			fmt.Fprintf(s.out, "%32s:\n  %s (%s, %d bytes, sha: %s)\n\n", path, e.Path, e.Summary.Attr.Attr, len(data), sha(data))
			if s.extract {
				dir := binpath() + "/extract/" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				if _, err := ExtractFile(v, e.Path, dir); err != nil {
					loggy.Get(0).Errorf("extract %s: %v", e.Path, err)
				}
			}
			return nil
		})
		if err != nil {
			loggy.Get(0).Errorf("%s: %v", path, err)
		}
		if s.extractDisk && s.found > hits {
			if err := ExtractDisk(path); err != nil {
				loggy.Get(0).Errorf("extract %s: %v", path, err)
			}
		}
	}

	fmt.Fprintf(s.out, "%d matches\n", s.found)

	return nil
}

var fileExtractCounter int

// ExtractFile writes a file from v into dir, named after its load address
// when it has one. Tokenized programs also get a .ASC listing.
func ExtractFile(v *volume, name string, dir string) (string, error) {

	data, sum, err := v.ReadFile(name)
	if err != nil {
		return "", err
	}

	local := sum.Name
	if sum.Load != 0 {
		local = fmt.Sprintf("%s,A$%.4X", sum.Name, sum.Load)
	}
	local = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(local)

	if err := appFs.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	target := filepath.Join(dir, local)
	if err := afero.WriteFile(appFs, target, data, 0644); err != nil {
		return "", err
	}

	if text := programText(sum, data); text != nil {
		if err := afero.WriteFile(appFs, target+".ASC", text, 0644); err != nil {
			return "", err
		}
	}

	fileExtractCounter++

	return target, nil

}
