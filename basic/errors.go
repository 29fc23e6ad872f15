package basic

import (
	"fmt"
	"strings"
)

// Kind classifies a filesystem failure.
type Kind int

const (
	ErrNone Kind = iota
	ErrUnsupported
	ErrUnformatted
	ErrNoTrack
	ErrNoSector
	ErrSectorSize
	ErrDirFull
	ErrDiskFull
	ErrFileTooLarge
	ErrNotEnoughSpace
	ErrVerify
	ErrSizeMismatch
	ErrLoopedChain
	ErrBrokenChain
	ErrDuplicatedGroup
	ErrWriteProtected
	ErrCannotDelete
	ErrCannotRename
	ErrCannotEdit
	ErrFileExists
	ErrFileNotFound
	ErrInvalidName
	ErrNotDirectory
	ErrDirNotEmpty
	ErrCannotMakeDir
	ErrInvalidParam
)

var kindText = map[Kind]string{
	ErrNone:            "no error",
	ErrUnsupported:     "unsupported disk",
	ErrUnformatted:     "disk is not formatted",
	ErrNoTrack:         "no such track",
	ErrNoSector:        "no such sector",
	ErrSectorSize:      "invalid sector size",
	ErrDirFull:         "directory is full",
	ErrDiskFull:        "disk is full",
	ErrFileTooLarge:    "file is too large",
	ErrNotEnoughSpace:  "not enough free space",
	ErrVerify:          "verify failed",
	ErrSizeMismatch:    "file size does not match",
	ErrLoopedChain:     "group chain loops",
	ErrBrokenChain:     "group chain is broken",
	ErrDuplicatedGroup: "group is used twice",
	ErrWriteProtected:  "disk is write protected",
	ErrCannotDelete:    "cannot delete this entry",
	ErrCannotRename:    "cannot rename this entry",
	ErrCannotEdit:      "cannot change this entry",
	ErrFileExists:      "file already exists",
	ErrFileNotFound:    "file not found",
	ErrInvalidName:     "invalid file name",
	ErrNotDirectory:    "not a directory",
	ErrDirNotEmpty:     "directory is not empty",
	ErrCannotMakeDir:   "cannot make a directory here",
	ErrInvalidParam:    "invalid format parameter",
}

func (k Kind) String() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return fmt.Sprintf("error %d", int(k))
}

// Error lets a bare Kind be used as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// Error carries a failure kind with the disk location it happened at.
// Negative location fields are unknown.
type Error struct {
	Kind    Kind
	Track   int
	Side    int
	Sector  int
	Group   int
	Name    string
	Partial bool
	Err     error
}

func newError(k Kind) *Error {
	return &Error{Kind: k, Track: -1, Side: -1, Sector: -1, Group: -1}
}

func errGroup(k Kind, group int) *Error {
	e := newError(k)
	e.Group = group
	return e
}

func errSector(k Kind, track, side, sector int) *Error {
	e := newError(k)
	e.Track = track
	e.Side = side
	e.Sector = sector
	return e
}

func errName(k Kind, name string) *Error {
	e := newError(k)
	e.Name = name
	return e
}

func wrapError(k Kind, err error) *Error {
	e := newError(k)
	e.Err = err
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Name != "" {
		fmt.Fprintf(&sb, ": %s", e.Name)
	}
	if e.Track >= 0 {
		fmt.Fprintf(&sb, " (track %d side %d sector %d)", e.Track, e.Side, e.Sector)
	}
	if e.Group >= 0 {
		fmt.Fprintf(&sb, " (group %d)", e.Group)
	}
	if e.Partial {
		sb.WriteString(" after partial allocation")
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error or a bare Kind by kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// KindOf extracts the kind of err, ErrNone for nil and ErrUnsupported for
// foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ErrNone
	}
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Kind
		case Kind:
			return e
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrUnsupported
}

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "info"
}

type Message struct {
	Severity Severity
	Text     string
}

// Report collects the messages raised while parsing a volume.
type Report struct {
	Messages []Message
}

func (r *Report) add(s Severity, format string, v ...interface{}) {
	r.Messages = append(r.Messages, Message{Severity: s, Text: fmt.Sprintf(format, v...)})
}

func (r *Report) Infof(format string, v ...interface{}) {
	r.add(SeverityInfo, format, v...)
}

func (r *Report) Warnf(format string, v ...interface{}) {
	r.add(SeverityWarning, format, v...)
}

func (r *Report) Errorf(format string, v ...interface{}) {
	r.add(SeverityError, format, v...)
}

func (r *Report) Clear() {
	r.Messages = r.Messages[:0]
}

func (r *Report) HasErrors() bool {
	for _, m := range r.Messages {
		if m.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r *Report) String() string {
	var sb strings.Builder
	for _, m := range r.Messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.Severity, m.Text)
	}
	return sb.String()
}
