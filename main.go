package main

/*
diskbasic reads and writes the filesystems of retro BASIC machines stored
in disk images: Hu-BASIC, F-BASIC, N88-BASIC, L3 BASIC, MS-DOS FAT, CP/M,
FLEX, OS-9, TRSDOS, Apple DOS, ProDOS, CBM 1541 and Amiga OFS.

It provides command line tools to list, extract, store and maintain files,
an interactive shell that can hold several images at once, and reports to
find duplicate files or disks across a collection of images.
*/

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/paleotronic/diskbasic/basic"
	"github.com/paleotronic/diskbasic/listing"
	"github.com/paleotronic/diskbasic/loggy"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func binpath() string {

	if runtime.GOOS == "windows" {
		return os.Getenv("USERPROFILE") + "/DiskBasic"
	}
	return os.Getenv("HOME") + "/DiskBasic"

}

func init() {
	loggy.LogFolder = binpath() + "/logs/"
	loggy.SetApp("diskbasic")
}

var mount = mountOptions{Side: -1}
var verbose bool
var debugLog bool
var logDir string

var reTrailAddr = regexp.MustCompile("(?i)^([^,]+)([,]A(([$]|0x)[0-9a-f]+))?([,]L(([$]|0x)[0-9a-f]+))?$")

func parseNumber(s string) (int, error) {
	if strings.HasPrefix(s, "$") {
		s = "0x" + s[1:]
	}
	v, err := strconv.ParseInt(s, 0, 32)
	return int(v), err
}

// localName splits NAME,A$0801,L$0100 style suffixes off a host file name.
func localName(name string) (string, int, int) {
	load, length := -1, -1
	if !reTrailAddr.MatchString(name) {
		return name, load, length
	}
	m := reTrailAddr.FindAllStringSubmatch(name, -1)
	if m[0][3] != "" {
		load, _ = parseNumber(m[0][3])
	}
	if m[0][6] != "" {
		length, _ = parseNumber(m[0][6])
	}
	return m[0][1], load, length
}

func isASCII(in []byte) bool {
	for _, v := range in {
		if v > 127 {
			return false
		}
	}
	return true
}

func isAppleBasicTarget(v *volume) bool {
	k := v.FS.Param().Kind
	return k == "appledos" || k == "prodos"
}

func rootCommand() *cobra.Command {

	root := &cobra.Command{
		Use:           "diskbasic [image]",
		Short:         "Retro BASIC disk image filesystem tool",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loggy.ECHO = verbose
			loggy.DEBUG = debugLog
			if logDir != "" {
				if _, err := loggy.OpenFile(appFs, logDir, "", 0); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return runShell(args, "")
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&mount.Format, "format", "", "parameter set to mount with (auto detect when empty)")
	pf.IntVar(&mount.Side, "side", -1, "side to mount for one sided formats (-1 for whole disk)")
	pf.StringVar(&mount.Charset, "charset", "", "character set for file names")
	pf.BoolVar(&verbose, "verbose", false, "log to stderr")
	pf.BoolVar(&debugLog, "debug", false, "include debug messages in the log")
	pf.StringVar(&logDir, "log-dir", "", "write a log file into this folder (e.g. "+loggy.LogFolder+")")

	root.AddCommand(
		formatsCommand(),
		infoCommand(),
		lsCommand(),
		getCommand(),
		putCommand(),
		rmCommand(),
		mvCommand(),
		attrCommand(),
		mkdirCommand(),
		setVolumeCommand(),
		formatCommand(),
		shellCommandLine(),
		searchCommand(),
		reportCommand(),
	)

	return root
}

func formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the known parameter sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-14s  %-9s  %-22s  %s\n", "NAME", "KIND", "GEOMETRY", "DESCRIPTION")
			for _, p := range registry.All() {
				fmt.Fprintf(w, "%-14s  %-9s  %-22s  %s\n", p.Name, p.Kind, p.Geometry(), p.Description)
			}
			fmt.Fprintf(w, "\nCharsets: %s\n", strings.Join(charsets.Names(), ", "))
			return nil
		},
	}
}

func infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <image>",
		Short: "Describe an image and check its consistency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0], mount)
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func lsCommand() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls <image> [dir] [pattern]",
		Short: "List the files on an image",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0], mount)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			dir, pattern := "", ""
			if len(args) > 1 {
				dir = args[1]
			}
			if len(args) > 2 {
				pattern = args[2]
			}
			if recursive {
				return v.Walk(dir, func(e walkEntry) error {
					kind := e.Summary.Attr.Attr.String()
					fmt.Fprintf(w, "%-40s  %8d  %s\n", e.Path, e.Summary.Size, kind)
					return nil
				})
			}
			restore, err := v.enter(dir)
			if err != nil {
				return err
			}
			defer restore()
			printCatalog(w, v, pattern)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "walk subdirectories")
	return cmd
}

func getCommand() *cobra.Command {
	var out string
	var list bool
	cmd := &cobra.Command{
		Use:   "get <image> <file>",
		Short: "Extract a file from an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0], mount)
			if err != nil {
				return err
			}
			data, sum, err := v.ReadFile(args[1])
			if err != nil {
				return err
			}
			if list {
				if text := programText(sum, data); text != nil {
					data = text
				}
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if out == "" {
				out = sum.Name
				if sum.Load != 0 {
					out = fmt.Sprintf("%s,A$%.4X", sum.Name, sum.Load)
				}
			}
			if err := afero.WriteFile(appFs, out, data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Extracted %s (%d bytes) to %s\n", sum.Name, len(data), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "host file to write (- for stdout)")
	cmd.Flags().BoolVar(&list, "list", false, "detokenize Applesoft and Integer BASIC programs")
	return cmd
}

type putFlags struct {
	attrs     string
	load      string
	exec      string
	name      string
	overwrite bool
	tokenize  bool
}

// putHostFile stores a host file on v. name may carry a directory path.
func putHostFile(v *volume, local string, pf putFlags) (string, int, error) {

	data, err := afero.ReadFile(appFs, local)
	if err != nil {
		return "", 0, err
	}

	base := local
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	name, load, length := localName(base)
	if length >= 0 && length < len(data) {
		data = data[:length]
	}
	if pf.name != "" {
		name = pf.name
	}
	if pf.load != "" {
		if load, err = parseNumber(pf.load); err != nil {
			return "", 0, fmt.Errorf("bad load address %q", pf.load)
		}
	}
	exec := load
	if pf.exec != "" {
		if exec, err = parseNumber(pf.exec); err != nil {
			return "", 0, fmt.Errorf("bad exec address %q", pf.exec)
		}
	}
	if load < 0 {
		load, exec = 0, 0
	}

	opts, err := saveOptions(pf.attrs, load, exec, pf.overwrite)
	if err != nil {
		return "", 0, err
	}
	if pf.tokenize && isAppleBasicTarget(v) && isASCII(data) {
		data = listing.TokenizeApplesoft(strings.Split(string(data), "\n"))
		opts.Attr = basic.NewFileAttr(basic.AttrBasic | basic.AttrBinary)
		if opts.Load == 0 {
			opts.Load = listing.APPLESOFT_BASE
		}
	}

	if err := v.WriteFile(name, data, opts); err != nil {
		return name, 0, err
	}
	return name, len(data), nil
}

func putCommand() *cobra.Command {
	var pf putFlags
	cmd := &cobra.Command{
		Use:   "put <image> <hostfile>...",
		Short: "Store host files on an image",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0], mount)
			if err != nil {
				return err
			}
			for _, local := range args[1:] {
				name, n, err := putHostFile(v, local, pf)
				if err != nil {
					return fmt.Errorf("%s: %w", local, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Stored %s (%d bytes)\n", name, n)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&pf.attrs, "attr", "", "attributes, e.g. BAS,B or DAT,ASC")
	f.StringVar(&pf.load, "load", "", "load address")
	f.StringVar(&pf.exec, "exec", "", "execution address")
	f.StringVar(&pf.name, "name", "", "name on the image (single file only)")
	f.BoolVar(&pf.overwrite, "overwrite", false, "replace an existing file")
	f.BoolVar(&pf.tokenize, "tokenize", false, "tokenize Applesoft text for Apple images")
	return cmd
}

func rmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <image> <file>...",
		Short: "Delete files from an image",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0], mount)
			if err != nil {
				return err
			}
			for _, name := range args[1:] {
				if err := v.Delete(name); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}
			return nil
		},
	}
}

func mvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <image> <file> <newname>",
		Short: "Rename a file on an image",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0], mount)
			if err != nil {
				return err
			}
			return v.Rename(args[1], args[2])
		},
	}
}

// attrChange parses +RO,-HID style edits; a bare list replaces the mask.
func attrChange(spec string) (func(basic.Attr) basic.Attr, error) {
	if spec == "" {
		return nil, errors.New("no attributes given")
	}
	if spec[0] != '+' && spec[0] != '-' {
		a, ok := basic.ParseAttr(spec)
		if !ok {
			return nil, fmt.Errorf("bad attributes %q", spec)
		}
		return func(basic.Attr) basic.Attr { return a }, nil
	}
	a, ok := basic.ParseAttr(spec[1:])
	if !ok {
		return nil, fmt.Errorf("bad attributes %q", spec)
	}
	if spec[0] == '+' {
		return func(old basic.Attr) basic.Attr { return old | a }, nil
	}
	return func(old basic.Attr) basic.Attr { return old &^ a }, nil
}

func attrCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attr <image> <file> <attrs>",
		Short: "Change file attributes (+RO, -RO, or a full list)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			change, err := attrChange(args[2])
			if err != nil {
				return err
			}
			v, err := openVolume(args[0], mount)
			if err != nil {
				return err
			}
			return v.SetAttr(args[1], change)
		},
	}
}

func mkdirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <image> <dir>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0], mount)
			if err != nil {
				return err
			}
			return v.Mkdir(args[1])
		},
	}
}

func setVolumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setvolume <image> <name>",
		Short: "Set the volume name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVolume(args[0], mount)
			if err != nil {
				return err
			}
			if err := v.FS.SetVolumeName(args[1]); err != nil {
				return err
			}
			return v.Save()
		},
	}
}

func formatCommand() *cobra.Command {
	var label string
	var number int
	var force bool
	cmd := &cobra.Command{
		Use:   "format <image> <paramset>",
		Short: "Create a freshly formatted image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ok, _ := afero.Exists(appFs, args[0]); ok && !force {
				return fmt.Errorf("%s exists (use --force)", args[0])
			}
			vi := basic.VolumeInfo{Name: label, Number: number, Date: time.Now()}
			v, err := createVolume(args[0], args[1], vi, mount)
			if err != nil {
				return err
			}
			free, groups := v.FS.FreeSize()
			fmt.Fprintf(cmd.ErrOrStderr(), "Formatted %s as %s: %d bytes free in %d groups\n", args[0], v.FS.Param().Name, free, groups)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "volume name")
	cmd.Flags().IntVar(&number, "number", 254, "volume number")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing image")
	return cmd
}

func shellCommandLine() *cobra.Command {
	var batch string
	cmd := &cobra.Command{
		Use:   "shell [image]",
		Short: "Start the interactive shell",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runShell(args, batch)
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "execute shell commands from file (stdin for standard input) and exit")
	return cmd
}

func runShell(args []string, batch string) error {

	if len(args) > 0 {
		fmt.Fprintf(os.Stderr, "Trying to load %s\n", args[0])
		if shellMount(args[:1]) != 0 {
			return errors.New("mount failed")
		}
	}

	if batch == "" {
		shellDo()
		return nil
	}

	var data []byte
	var err error
	if batch == "stdin" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = afero.ReadFile(appFs, batch)
	}
	if err != nil {
		return fmt.Errorf("failed to read commands: %w", err)
	}
	return shellBatch(strings.Split(string(data), "\n"))
}

func searchCommand() *cobra.Command {
	var extract, extractDisk bool
	cmd := &cobra.Command{
		Use:   "search <filename|text|hash> <value> <path>...",
		Short: "Search images for files by name, content or checksum",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			match, err := searchMatcher(args[0], args[1])
			if err != nil {
				return err
			}
			s := &searcher{out: cmd.OutOrStdout(), extract: extract, extractDisk: extractDisk, mo: mount}
			return s.Run(args[1], match, args[2:])
		},
	}
	cmd.Flags().BoolVar(&extract, "extract", false, "extract matching files under "+binpath()+"/extract")
	cmd.Flags().BoolVar(&extractDisk, "extract-disk", false, "copy images with matches under "+binpath()+"/extract")
	return cmd
}

func reportCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report <file-dupes|whole-dupes> <path>...",
		Short: "Report duplicate files or disks across images",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(args[0], args[1:], out, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (empty for stdout)")
	return cmd
}

func main() {

	err := rootCommand().Execute()

	if fileExtractCounter > 0 {
		fmt.Fprintf(os.Stderr, "%d files were extracted\n", fileExtractCounter)
	}

	if err != nil {
		loggy.Get(0).Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

}
