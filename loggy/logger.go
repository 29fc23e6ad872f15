package loggy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

var ECHO bool = false
var SILENT bool = false
var DEBUG bool = false
var LogFolder string = "./logs/"

type Logger struct {
	mu  sync.Mutex
	out io.Writer
	id  int
	app string
}

var loggers map[int]*Logger
var lmu sync.Mutex
var app string = "diskbasic"

// Discard swallows everything; handy for tests.
var Discard = &Logger{out: io.Discard}

// SetApp changes the prefix used for log file names.
func SetApp(name string) {
	app = name
}

// Get returns the logger registered for id, creating a silent one when none
// exists yet.
func Get(id int) *Logger {
	lmu.Lock()
	defer lmu.Unlock()
	if loggers == nil {
		loggers = make(map[int]*Logger)
	}
	l, ok := loggers[id]
	if !ok {
		l = NewLogger(id, app, io.Discard)
		loggers[id] = l
	}
	return l
}

// Register binds l to id, replacing any previous logger.
func Register(id int, l *Logger) {
	lmu.Lock()
	defer lmu.Unlock()
	if loggers == nil {
		loggers = make(map[int]*Logger)
	}
	loggers[id] = l
}

func NewLogger(id int, app string, out io.Writer) *Logger {

	if app == "" {
		app = "diskbasic"
	}
	if out == nil {
		out = io.Discard
	}

	return &Logger{
		id:  id,
		out: out,
		app: app,
	}
}

// OpenFile creates a timestamped log file under folder and registers a
// logger writing to it.
func OpenFile(fs afero.Fs, folder string, appname string, id int) (*Logger, error) {

	if appname == "" {
		appname = app
	}
	if folder == "" {
		folder = LogFolder
	}

	if err := fs.MkdirAll(folder, 0755); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s_%d_%s.log", appname, id, fts())
	f, err := fs.Create(filepath.Join(folder, filename))
	if err != nil {
		return nil, err
	}

	l := NewLogger(id, appname, f)
	Register(id, l)
	return l, nil
}

func (l *Logger) ID() int {
	return l.id
}

func ts() string {
	t := time.Now()
	return fmt.Sprintf(
		"%.4d/%.2d/%.2d %.2d:%.2d:%.2d",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
}

func fts() string {
	t := time.Now()
	return fmt.Sprintf(
		"%.4d%.2d%.2d%.2d%.2d%.2d",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
}

func (l *Logger) write(line string) {

	if l == nil || SILENT {
		return
	}

	l.mu.Lock()
	io.WriteString(l.out, line)
	if s, ok := l.out.(interface{ Sync() error }); ok {
		s.Sync()
	}
	l.mu.Unlock()

	if ECHO {
		os.Stderr.WriteString(line)
	}
}

func (l *Logger) llogf(format string, designator string, v ...interface{}) {

	format = ts() + " " + designator + " :: " + format

	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}

	l.write(fmt.Sprintf(format, v...))
}

func (l *Logger) llog(designator string, v ...interface{}) {

	format := ts() + " " + designator + " :: "
	for _, vv := range v {
		format += fmt.Sprintf("%v ", vv)
	}
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}

	l.write(format)
}

func (l *Logger) Logf(format string, v ...interface{}) {
	l.llogf(format, "INFO ", v...)
}

func (l *Logger) Log(v ...interface{}) {
	l.llog("INFO ", v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.llogf(format, "ERROR", v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.llog("ERROR", v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	if !DEBUG {
		return
	}
	l.llogf(format, "DEBUG", v...)
}

func (l *Logger) Debug(v ...interface{}) {
	if !DEBUG {
		return
	}
	l.llog("DEBUG", v...)
}
