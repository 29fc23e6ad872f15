package loggy

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestLogFormat(t *testing.T) {

	buf := &bytes.Buffer{}
	l := NewLogger(1, "test", buf)

	l.Logf("parsed %s score %.2f", "fbasic_2d", 1.0)
	l.Error("disk", "full")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "INFO  :: parsed fbasic_2d score 1.00") {
		t.Errorf("unexpected line %q", lines[0])
	}
	if !strings.Contains(lines[1], "ERROR :: disk full") {
		t.Errorf("unexpected line %q", lines[1])
	}
}

func TestDebugLevel(t *testing.T) {

	buf := &bytes.Buffer{}
	l := NewLogger(2, "test", buf)

	DEBUG = false
	l.Debugf("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug output leaked: %q", buf.String())
	}

	DEBUG = true
	defer func() { DEBUG = false }()
	l.Debugf("shown")
	if !strings.Contains(buf.String(), "DEBUG :: shown") {
		t.Errorf("debug output missing: %q", buf.String())
	}
}

func TestOpenFile(t *testing.T) {

	fs := afero.NewMemMapFs()

	l, err := OpenFile(fs, "/logs", "diskbasic", 7)
	if err != nil {
		t.Fatal(err)
	}
	if Get(7) != l {
		t.Errorf("OpenFile did not register the logger")
	}
	l.Log("hello")

	files, err := afero.ReadDir(fs, "/logs")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || !strings.HasPrefix(files[0].Name(), "diskbasic_7_") {
		t.Fatalf("unexpected log files %v", files)
	}
	data, _ := afero.ReadFile(fs, "/logs/"+files[0].Name())
	if !strings.Contains(string(data), "INFO  :: hello") {
		t.Errorf("log file content %q", data)
	}
}
