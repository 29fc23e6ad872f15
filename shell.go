package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/paleotronic/diskbasic/basic"
	"github.com/paleotronic/diskbasic/loggy"
	"github.com/spf13/afero"
)

const MAXVOL = 8

var commandList map[string]*shellCommand
var commandVolumes [MAXVOL]*volume
var commandTarget int = -1

func mountVolume(v *volume) (int, error) {

	var fr []int

	for i, d := range commandVolumes {
		if d == nil {
			fr = append(fr, i)
		} else if v.Path == d.Path {
			commandVolumes[i] = v
			return i, nil
		}
	}

	if len(fr) == 0 {
		return -1, errors.New("No free slots")
	}

	commandVolumes[fr[0]] = v

	return fr[0], nil

}

func smartSplit(line string) (string, []string) {

	var out []string

	var inqq bool
	var lastEscape bool
	var chunk string

	add := func() {
		if chunk != "" {
			out = append(out, chunk)
			chunk = ""
		}
	}

	for _, ch := range line {
		switch {
		case ch == '"':
			inqq = !inqq
			add()
		case ch == ' ':
			if inqq || lastEscape {
				chunk += string(ch)
			} else {
				add()
			}
			lastEscape = false
		case ch == '\\' && !inqq:
			lastEscape = true
		default:
			chunk += string(ch)
		}
	}

	add()

	if len(out) == 0 {
		return "", out
	}

	return out[0], out[1:]
}

func getPrompt(t int) string {

	if t == -1 || commandVolumes[t] == nil {
		return "dsk:-:<no mount>> "
	}

	v := commandVolumes[t]
	return fmt.Sprintf("dsk:%d:%s:%s> ", t, v.Name(), v.FS.CurrentPath())
}

type shellCommand struct {
	Name             string
	Description      string
	MinArgs, MaxArgs int
	Code             func(args []string) int
	NeedsMount       bool
	Context          shellCommandContext
	Text             []string
}

type shellCommandContext int

const (
	sccNone shellCommandContext = 1 << iota
	sccLocal
	sccDiskFile
	sccCommand
	sccFormat
	sccAnyFile = sccDiskFile | sccLocal
)

type shellCompleter struct {
}

func hasPrefix(str []rune, prefix []rune) bool {
	if len(prefix) > len(str) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if str[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (sc *shellCompleter) Do(line []rune, pos int) ([][]rune, int) {

	prefix := ""
	chunk := ""
	for _, ch := range line {
		if ch == ' ' {
			prefix = chunk
			break
		} else {
			chunk += string(ch)
		}
	}

	chunk = ""
	cprefix := ""
	var lastEscape bool
	for i := 0; i < pos; i++ {
		ch := line[i]
		switch {
		case ch == '\\':
			lastEscape = true
		case ch == ' ' && !lastEscape:
			cprefix = chunk
			chunk = ""
			lastEscape = false
		default:
			chunk += string(ch)
		}
	}
	if chunk != "" {
		cprefix = chunk
	}

	var context shellCommandContext = sccNone
	cmd, match := commandList[prefix]
	if match {
		context = cmd.Context
	} else {
		context = sccCommand
	}

	var items [][]rune
	switch context {
	case sccCommand:
		for k := range commandList {
			items = append(items, []rune(k))
		}
	case sccFormat:
		for _, name := range registry.Names() {
			items = append(items, []rune(name))
		}
	case sccDiskFile:
		if commandTarget == -1 || commandVolumes[commandTarget] == nil {
			return [][]rune(nil), 0
		}
		for _, s := range commandVolumes[commandTarget].FS.Items() {
			items = append(items, []rune(s.Name))
		}
	case sccLocal:
		files, err := filepath.Glob(cprefix + "*")
		if err != nil {
			return items, 0
		}
		for _, v := range files {
			items = append(items, []rune(v))
		}
	}

	if len(items) == 0 {
		return [][]rune(nil), 0
	}

	var filt [][]rune
	for _, v := range items {
		if hasPrefix(v, []rune(cprefix)) {
			filt = append(filt, shellEscape(v[len(cprefix):]))
		}
	}
	return filt, len(cprefix)
}

func shellEscape(str []rune) []rune {
	out := make([]rune, 0)
	for _, v := range str {
		if v == ' ' {
			out = append(out, '\\')
		}
		out = append(out, v)
	}
	return out
}

func init() {
	commandList = map[string]*shellCommand{
		"mount": &shellCommand{
			Name:        "mount",
			Description: "Mount a disk image",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellMount,
			NeedsMount:  false,
			Context:     sccLocal,
			Text: []string{
				"mount <diskfile>",
				"",
				"Mounts disk and switches to the new slot. The --format, --side",
				"and --charset options given on the command line apply.",
			},
		},
		"format": &shellCommand{
			Name:        "format",
			Description: "Create and mount a blank disk image",
			MinArgs:     2,
			MaxArgs:     3,
			Code:        shellFormat,
			NeedsMount:  false,
			Context:     sccFormat,
			Text: []string{
				"format <diskfile> <paramset> [<volume name>]",
				"",
				"Creates a new formatted image and mounts it. Use formats to list",
				"the parameter sets.",
			},
		},
		"formats": &shellCommand{
			Name:        "formats",
			Description: "List the known parameter sets",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellFormats,
			NeedsMount:  false,
			Context:     sccNone,
		},
		"setvolume": &shellCommand{
			Name:        "setvolume",
			Description: "Sets the volume name",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellVolumeName,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"setvolume <volume name>",
				"",
				"Set the volume name on formats that keep one.",
			},
		},
		"unmount": &shellCommand{
			Name:        "unmount",
			Description: "unmount disk image",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellUnmount,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"unmount <slot>",
				"",
				"Unmount the disk in the specified slot (or current slot)",
			},
		},
		"extract": &shellCommand{
			Name:        "extract",
			Description: "extract file from disk image",
			MinArgs:     1,
			MaxArgs:     -1,
			Code:        shellExtract,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"extract <file|pattern>",
				"",
				"Extract files from the current directory of the disk into the",
				"local directory.",
			},
		},
		"list": &shellCommand{
			Name:        "list",
			Description: "list a BASIC program or text file",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellList,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"list <file>",
				"",
				"Print a file. Applesoft and Integer programs are detokenized.",
			},
		},
		"help": &shellCommand{
			Name:        "help",
			Description: "Shows this help",
			MinArgs:     -1,
			MaxArgs:     1,
			Code:        shellHelp,
			NeedsMount:  false,
			Context:     sccCommand,
			Text: []string{
				"help [<command>]",
				"",
				"Display help information.",
			},
		},
		"info": &shellCommand{
			Name:        "info",
			Description: "Information about the current disk",
			MinArgs:     -1,
			MaxArgs:     -1,
			Code:        shellInfo,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"info",
				"",
				"Display information about the current disk.",
			},
		},
		"check": &shellCommand{
			Name:        "check",
			Description: "Check the disk for allocation errors",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellCheck,
			NeedsMount:  true,
			Context:     sccNone,
			Text: []string{
				"check",
				"",
				"Walks every chain on the disk looking for loops, crossed",
				"files and leaked groups.",
			},
		},
		"quit": &shellCommand{
			Name:        "quit",
			Description: "Leave this place",
			MinArgs:     -1,
			MaxArgs:     -1,
			Code:        shellQuit,
			NeedsMount:  false,
			Context:     sccNone,
		},
		"prefix": &shellCommand{
			Name:        "prefix",
			Description: "Change volume path",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellPath,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"prefix [<path>]",
				"",
				"Change disk working directory.",
			},
		},
		"cat": &shellCommand{
			Name:        "cat",
			Description: "Display file information",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellCat,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"cat [<pattern>]",
				"",
				"List the files in the current disk directory.",
			},
		},
		"mkdir": &shellCommand{
			Name:        "mkdir",
			Description: "Create a directory on disk",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellMkdir,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"mkdir <path>",
				"",
				"Create a directory on formats that have them.",
			},
		},
		"put": &shellCommand{
			Name:        "put",
			Description: "Copy local file to disk",
			MinArgs:     1,
			MaxArgs:     2,
			Code:        shellPut,
			NeedsMount:  true,
			Context:     sccLocal,
			Text: []string{
				"put <local file>[,A$<addr>][,L$<len>] [<attributes>]",
				"",
				"Write a local file to the disk. Plain text headed for an Apple",
				"image as BAS is tokenized as Applesoft.",
			},
		},
		"delete": &shellCommand{
			Name:        "delete",
			Description: "Remove file from disk",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellDelete,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"delete <file>",
				"",
				"Delete a file from the disk.",
			},
		},
		"lock": &shellCommand{
			Name:        "lock",
			Description: "Lock file on the disk",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellLock,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"lock <file>",
				"",
				"Make a file read only.",
			},
		},
		"unlock": &shellCommand{
			Name:        "unlock",
			Description: "Unlock file on the disk",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellUnlock,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"unlock <file>",
				"",
				"Make a file writable.",
			},
		},
		"attr": &shellCommand{
			Name:        "attr",
			Description: "Change file attributes",
			MinArgs:     2,
			MaxArgs:     2,
			Code:        shellAttr,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"attr <file> <attributes>",
				"",
				"Attributes are a comma list such as BAS,B or DAT,ASC. A leading",
				"+ or - adds or removes them instead.",
			},
		},
		"ls": &shellCommand{
			Name:        "ls",
			Description: "List local files",
			MinArgs:     0,
			MaxArgs:     -1,
			Code:        shellListFiles,
			NeedsMount:  false,
			Context:     sccLocal,
		},
		"cd": &shellCommand{
			Name:        "cd",
			Description: "Change local path",
			MinArgs:     0,
			MaxArgs:     1,
			Code:        shellCd,
			NeedsMount:  false,
			Context:     sccLocal,
			Text: []string{
				"cd <path>",
				"",
				"Change local working directory.",
			},
		},
		"disks": &shellCommand{
			Name:        "disks",
			Description: "List mounted volumes",
			MinArgs:     0,
			MaxArgs:     0,
			Code:        shellDisks,
			NeedsMount:  false,
			Context:     sccNone,
			Text: []string{
				"disks",
				"",
				"List all mounted volumes",
			},
		},
		"target": &shellCommand{
			Name:        "target",
			Description: "Select mounted volume as default",
			MinArgs:     1,
			MaxArgs:     1,
			Code:        shellTarget,
			NeedsMount:  false,
			Context:     sccNone,
			Text: []string{
				"target <slot>",
				"",
				"Select slot as default for commands",
			},
		},
		"copy": &shellCommand{
			Name:        "copy",
			Description: "Copy files from one volume to another",
			MinArgs:     2,
			MaxArgs:     999,
			Code:        shellD2DCopy,
			NeedsMount:  false,
			Context:     sccDiskFile,
			Text: []string{
				"copy [<slot>:]<pattern> <slot>:[<path>]",
				"",
				"Copy files from one mounted disk to another.",
				"Example:",
				"copy 0:*.BAS 1:",
			},
		},
		"move": &shellCommand{
			Name:        "move",
			Description: "Move files from one volume to another",
			MinArgs:     2,
			MaxArgs:     999,
			Code:        shellD2DMove,
			NeedsMount:  false,
			Context:     sccDiskFile,
			Text: []string{
				"move [<slot>:]<pattern> <slot>:[<path>]",
				"",
				"Move files from one mounted disk to another.",
				"Example:",
				"move 0:*.BAS 1:",
			},
		},
		"rename": &shellCommand{
			Name:        "rename",
			Description: "Rename a file on the disk",
			MinArgs:     2,
			MaxArgs:     2,
			Code:        shellRename,
			NeedsMount:  true,
			Context:     sccDiskFile,
			Text: []string{
				"rename <file> <newname>",
				"",
				"Rename a file on the disk.",
			},
		},
		"report": &shellCommand{
			Name:        "report",
			Description: "Run a duplicate report over image files",
			MinArgs:     2,
			MaxArgs:     999,
			Code:        shellReport,
			NeedsMount:  false,
			Context:     sccLocal,
			Text: []string{
				"report <name> <path>...",
				"",
				"Reports:",
				"file-dupes     Files duplicated across images",
				"whole-dupes    Images with identical contents",
			},
		},
		"search": &shellCommand{
			Name:        "search",
			Description: "Search image files for files",
			MinArgs:     3,
			MaxArgs:     999,
			Code:        shellSearch,
			NeedsMount:  false,
			Context:     sccLocal,
			Text: []string{
				"search <kind> <value> <path>...",
				"",
				"Searches:",
				"filename       Search by filename",
				"text           Search for files containing text",
				"hash           Search for files with sha256 hash",
			},
		},
	}
}

func shellProcess(line string) int {
	line = strings.TrimSpace(line)

	verb, args := smartSplit(line)

	if verb != "" {
		verb = strings.ToLower(verb)
		command, ok := commandList[verb]
		if ok {
			fmt.Println()
			var cok = true
			if command.MinArgs != -1 {
				if len(args) < command.MinArgs {
					os.Stderr.WriteString(fmt.Sprintf("%s expects at least %d arguments\n", verb, command.MinArgs))
					cok = false
				}
			}
			if command.MaxArgs != -1 {
				if len(args) > command.MaxArgs {
					os.Stderr.WriteString(fmt.Sprintf("%s expects at most %d arguments\n", verb, command.MaxArgs))
					cok = false
				}
			}
			if command.NeedsMount {
				if commandTarget == -1 || commandVolumes[commandTarget] == nil {
					os.Stderr.WriteString(fmt.Sprintf("%s only works on mounted disks\n", verb))
					cok = false
				}
			}
			if cok {
				r := command.Code(args)
				fmt.Println()
				return r
			} else {
				return -1
			}
		} else {
			os.Stderr.WriteString(fmt.Sprintf("Unrecognized command: %s\n", verb))
			return -1
		}
	}

	return 0
}

func shellBatch(lines []string) error {
	for i, l := range lines {
		r := shellProcess(l)
		if r == -1 {
			return fmt.Errorf("script failed at line %d: %s", i+1, l)
		}
		if r == 999 {
			os.Stderr.WriteString("Script terminated\n")
			return nil
		}
	}
	return nil
}

func shellDo() {

	ac := &shellCompleter{}

	appFs.MkdirAll(binpath(), 0755)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 getPrompt(commandTarget),
		HistoryFile:            binpath() + "/.shell_history",
		DisableAutoSaveHistory: false,
		AutoComplete:           ac,
	})
	if err != nil {
		loggy.Get(0).Errorf("readline: %v", err)
		os.Exit(2)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}

		r := shellProcess(line)
		if r == 999 {
			return
		}

		rl.SetPrompt(getPrompt(commandTarget))
	}

}

func current() *volume {
	return commandVolumes[commandTarget]
}

func shellError(err error) int {
	os.Stderr.WriteString("Error: " + err.Error() + "\n")
	return -1
}

func shellPath(args []string) int {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	v := current()
	if err := v.FS.ChangeDirectory(path); err != nil {
		fmt.Println("No such directory: " + err.Error())
		return -1
	}
	fmt.Printf("Switched to directory %s\r\n", v.FS.CurrentPath())

	return 0

}

func shellMount(args []string) int {

	v, err := openVolume(args[0], mount)
	if err != nil {
		return shellError(err)
	}

	slotid, err := mountVolume(v)
	if err != nil {
		return shellError(err)
	}

	commandTarget = slotid
	os.Stderr.WriteString(fmt.Sprintf("mount %s disk in slot %d\n", v.FS.Param().Name, slotid))

	return 0
}

func shellFormat(args []string) int {

	if ok, _ := afero.Exists(appFs, args[0]); ok {
		if err := backupFile(args[0]); err != nil {
			return shellError(err)
		}
	}

	vi := basic.VolumeInfo{Number: 254, Date: time.Now()}
	if len(args) > 2 {
		vi.Name = args[2]
	}
	v, err := createVolume(args[0], args[1], vi, mount)
	if err != nil {
		return shellError(err)
	}

	slotid, err := mountVolume(v)
	if err != nil {
		return shellError(err)
	}
	commandTarget = slotid
	os.Stderr.WriteString(fmt.Sprintf("formatted %s as %s in slot %d\n", args[0], v.FS.Param().Name, slotid))

	return 0
}

func shellFormats(args []string) int {
	for _, p := range registry.All() {
		fmt.Printf("%-14s %-9s %s\n", p.Name, p.Kind, p.Description)
	}
	return 0
}

func shellUnmount(args []string) int {

	if len(args) > 0 {
		if shellTarget(args) == -1 {
			return -1
		}
	}

	if commandVolumes[commandTarget] != nil {

		commandVolumes[commandTarget] = nil

		os.Stderr.WriteString("Unmounted volume\n")

	}

	return 0
}

func shellHelp(args []string) int {

	if len(args) == 0 {
		keys := make([]string, 0)
		for k := range commandList {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			info := commandList[k]
			fmt.Printf("%-10s %s\n", info.Name, info.Description)
		}
	} else {
		command := strings.ToLower(args[0])
		if details, ok := commandList[command]; ok && details.Text != nil {
			for _, l := range details.Text {
				fmt.Println(l)
			}
		} else {
			os.Stderr.WriteString("No help available for " + command + "\n")
		}
	}

	return 0
}

func shellInfo(args []string) int {

	printInfo(os.Stdout, current())

	return 0
}

func shellCheck(args []string) int {

	if err := current().FS.CheckConsistency(); err != nil {
		fmt.Println(err)
		return -1
	}
	fmt.Println("No problems found")

	return 0
}

func shellQuit(args []string) int {

	return 999

}

func shellCat(args []string) int {

	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}

	printCatalog(os.Stdout, current(), pattern)

	return 0

}

func shellCd(args []string) int {

	if len(args) > 0 {
		err := os.Chdir(args[0])
		if err != nil {
			os.Stderr.WriteString("Change directory failed: " + err.Error() + "\n")
			return -1
		}
	}

	wd, _ := os.Getwd()
	os.Stderr.WriteString("Working directory is now " + wd + "\n")
	return 0

}

func shellListFiles(args []string) int {

	if len(args) == 0 {
		wd, _ := os.Getwd()
		args = append(args, wd+"/*")
	}

	for _, a := range args {

		files, err := afero.Glob(appFs, a)
		if err != nil {
			os.Stderr.WriteString("Error reading path " + a + ": " + err.Error() + "\n")
			continue
		}

		fmt.Printf("%8s  %2s  %s\n", "SIZE", "RO", "NAME")
		for _, f := range files {
			locked := " "
			fi, err := appFs.Stat(f)
			if err != nil {
				continue
			}
			if fi.Mode().Perm()&0200 == 0 {
				locked = "Y"
			}
			fmt.Printf("%8d  %2s  %s\n", fi.Size(), locked, fi.Name())
		}
	}

	return 0
}

func shellExtract(args []string) int {

	v := current()

	for _, pattern := range args {

		files, err := globDisk(commandTarget, pattern)
		if err != nil {
			return shellError(err)
		}
		if len(files) == 0 {
			os.Stderr.WriteString("No files match " + pattern + "\n")
			return -1
		}

		for _, f := range files {
			name, err := ExtractFile(v, f.Name, ".")
			if err != nil {
				fmt.Println("FAILED")
				return shellError(err)
			}
			fmt.Printf("Extracted %s to %s\n", f.Name, name)
		}

	}

	return 0

}

func shellList(args []string) int {

	data, sum, err := current().ReadFile(args[0])
	if err != nil {
		return shellError(err)
	}
	if text := programText(sum, data); text != nil {
		data = text
	} else if !isASCII(data) {
		os.Stderr.WriteString(args[0] + " is not a text file\n")
		return -1
	}
	os.Stdout.Write(data)

	return 0
}

func backupFile(path string) error {
	data, err := afero.ReadFile(appFs, path)
	if err != nil {
		return err
	}

	path, _ = filepath.Abs(path)
	path = strings.Replace(path, ":", "", -1)
	path = strings.Replace(path, "\\", "/", -1)

	bpath := binpath() + "/backup/" + path + "." + fts()
	if err := appFs.MkdirAll(filepath.Dir(bpath), 0755); err != nil {
		return err
	}
	if err := afero.WriteFile(appFs, bpath, data, 0644); err != nil {
		return err
	}

	os.Stderr.WriteString("Backed up disk to: " + bpath + "\n")

	return nil
}

func fts() string {
	t := time.Now()
	return fmt.Sprintf(
		"%.4d%.2d%.2d%.2d%.2d%.2d",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
}

// modify backs the image up, applies fn and reports.
func modify(v *volume, fn func() error) int {

	if err := backupFile(v.Path); err != nil {
		loggy.Get(0).Errorf("backup of %s failed: %v", v.Path, err)
	}
	if err := fn(); err != nil {
		return shellError(err)
	}
	fmt.Println("Updated disk " + v.Path)

	return 0
}

func shellMkdir(args []string) int {

	v := current()
	return modify(v, func() error {
		return v.Mkdir(args[0])
	})

}

func shellVolumeName(args []string) int {

	v := current()
	return modify(v, func() error {
		if err := v.FS.SetVolumeName(args[0]); err != nil {
			return err
		}
		name, _ := v.FS.VolumeName()
		fmt.Printf("Volume name is now %s\n", name)
		return v.Save()
	})

}

func shellPut(args []string) int {

	v := current()
	var pf putFlags
	if len(args) > 1 {
		pf.attrs = args[1]
		pf.tokenize = strings.Contains(strings.ToUpper(pf.attrs), "BAS")
	}

	return modify(v, func() error {
		name, n, err := putHostFile(v, args[0], pf)
		if err != nil {
			return err
		}
		fmt.Printf("Stored %s (%d bytes)\n", name, n)
		return nil
	})

}

func shellDelete(args []string) int {

	v := current()
	return modify(v, func() error {
		return v.Delete(args[0])
	})

}

func shellLock(args []string) int {

	v := current()
	return modify(v, func() error {
		return v.SetAttr(args[0], func(a basic.Attr) basic.Attr { return a | basic.AttrReadOnly })
	})
}

func shellUnlock(args []string) int {

	v := current()
	return modify(v, func() error {
		return v.SetAttr(args[0], func(a basic.Attr) basic.Attr { return a &^ (basic.AttrReadOnly | basic.AttrLocked) })
	})
}

func shellAttr(args []string) int {

	change, err := attrChange(args[1])
	if err != nil {
		return shellError(err)
	}
	v := current()
	return modify(v, func() error {
		return v.SetAttr(args[0], change)
	})
}

func shellDisks(args []string) int {

	fmt.Println("Mounted Volumes")
	for i, d := range commandVolumes {
		if d != nil {
			fmt.Printf("%d:%s (%s)\n", i, d.Path, d.FS.Param().Name)
		}
	}

	return 0
}

func shellTarget(args []string) int {

	tmp, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		os.Stderr.WriteString("Invalid slot number: " + args[0] + "\n")
		return -1
	}

	slotid := int(tmp)
	if slotid < 0 || slotid >= MAXVOL {
		os.Stderr.WriteString(fmt.Sprintf("Valid slots are %d to %d.\n", 0, MAXVOL-1))
		return -1
	}

	d := commandVolumes[slotid]
	if d == nil {
		os.Stderr.WriteString(fmt.Sprintf("Nothing mounted in slot %d (use disks to see mounts)\n", slotid))
		return -1
	}

	commandTarget = slotid

	return 0

}

var reCopyArg = regexp.MustCompile("(?i)^(([0-9])[:])?(.+)$")
var reCopyTarget = regexp.MustCompile("(?i)^(([0-9])[:])?(.+)?$")

func slotOf(s string) (int, error) {
	if s == "" {
		return commandTarget, nil
	}
	tmp, err := strconv.ParseInt(s, 10, 32)
	if err != nil || tmp < 0 || tmp >= MAXVOL || commandVolumes[tmp] == nil {
		return -1, fmt.Errorf("Invalid slot number: %s", s)
	}
	return int(tmp), nil
}

type copySource struct {
	slot int
	sum  basic.Summary
}

func shellD2DCopy(args []string) int {
	return d2dCopy(args, false)
}

func shellD2DMove(args []string) int {
	return d2dCopy(args, true)
}

func d2dCopy(args []string, move bool) int {

	l := len(args)
	sources := args[0 : l-1]
	target := args[l-1]

	var allfiles []copySource

	for _, arg := range sources {
		if !reCopyArg.MatchString(arg) {
			continue
		}
		m := reCopyArg.FindAllStringSubmatch(arg, -1)
		slot, err := slotOf(m[0][2])
		if err != nil {
			return shellError(err)
		}
		files, err := globDisk(slot, m[0][3])
		if err != nil {
			return shellError(err)
		}
		for _, f := range files {
			allfiles = append(allfiles, copySource{slot: slot, sum: f})
		}
	}

	if !reCopyTarget.MatchString(target) {
		os.Stderr.WriteString("Invalid target: " + target + "\n")
		return -1
	}
	m := reCopyTarget.FindAllStringSubmatch(target, -1)
	slot, err := slotOf(m[0][2])
	if err != nil {
		return shellError(err)
	}
	path := m[0][3]
	v := commandVolumes[slot]

	for _, f := range allfiles {
		src := commandVolumes[f.slot]
		if src == v {
			return shellError(errors.New("source and target are the same volume"))
		}
		data, sum, err := src.ReadFile(f.sum.Name)
		if err != nil {
			return shellError(err)
		}

		name := sum.Name
		switch {
		case path != "" && len(allfiles) == 1 && !strings.HasSuffix(path, "/"):
			name = path
		case path != "":
			name = strings.TrimSuffix(path, "/") + "/" + sum.Name
		}

		opts := basic.SaveOptions{
			Attr: sum.Attr,
			Load: sum.Load,
			Exec: sum.Exec,
			Date: sum.Date,
		}
		if !sum.HasDate {
			opts.Date = time.Now()
		}
		if err := v.WriteFile(name, data, opts); err != nil {
			os.Stderr.WriteString(fmt.Sprintf("Failed to copy %s: %s\n", name, err.Error()))
			return -1
		}
		os.Stderr.WriteString(fmt.Sprintf("Copied %s (%d bytes)\n", name, len(data)))

		if move {
			if err := src.Delete(sum.Name); err != nil {
				return shellError(err)
			}
		}
	}

	fmt.Println("Updated disk " + v.Path)

	return 0
}

func shellRename(args []string) int {

	v := current()
	_, newname := splitDiskPath(args[1])
	return modify(v, func() error {
		return v.Rename(args[0], newname)
	})
}

// globDisk matches pattern against the current directory of a slot.
func globDisk(slotid int, pattern string) ([]basic.Summary, error) {

	if slotid < 0 || slotid >= MAXVOL || commandVolumes[slotid] == nil {
		return nil, fmt.Errorf("Invalid slotid %d", slotid)
	}

	r := regexp.QuoteMeta(pattern)
	r = strings.Replace(r, `\?`, ".", -1)
	r = strings.Replace(r, `\*`, ".*", -1)
	r = "(?i)^" + r + "$"

	rePattern, err := regexp.Compile(r)
	if err != nil {
		return nil, err
	}

	var files []basic.Summary
	for _, f := range commandVolumes[slotid].FS.Items() {
		if !f.Dir && rePattern.MatchString(f.Name) {
			files = append(files, f)
		}
	}

	return files, nil

}

func shellReport(args []string) int {

	if err := runReport(args[0], args[1:], "", os.Stdout); err != nil {
		return shellError(err)
	}
	return 0

}

func shellSearch(args []string) int {

	match, err := searchMatcher(args[0], args[1])
	if err != nil {
		return shellError(err)
	}
	s := &searcher{out: os.Stdout, mo: mount}
	if err := s.Run(args[1], match, args[2:]); err != nil {
		return shellError(err)
	}
	return 0

}
