package jot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mschirtzinger/watchtex/internal/shrdmm"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LevelFatal, "FATAL"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLogfWritesPlainPrefixWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Output: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer l.Close()

	l.Logf(LevelWarn, "analyze: path `%s` does not exist", "/x.tex")

	want := "[WARN] analyze: path `/x.tex` does not exist\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestDebugRequiresVerbose(t *testing.T) {
	var quiet, loud bytes.Buffer

	q, _ := New(Options{Output: &quiet})
	q.Logf(LevelDebug, "hidden")
	if quiet.Len() != 0 {
		t.Errorf("debug line written without verbose: %q", quiet.String())
	}

	v, _ := New(Options{Output: &loud, Verbose: true})
	v.Logf(LevelDebug, "shown")
	if !strings.Contains(loud.String(), "[DEBUG] shown") {
		t.Errorf("debug line missing with verbose: %q", loud.String())
	}
	if !v.Verbose() {
		t.Error("Verbose() = false, want true")
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchtex.log")

	var buf bytes.Buffer
	l, err := New(Options{Output: &buf, File: path, MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	l.Logf(LevelInfo, "compilation completed")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[INFO] compilation completed") {
		t.Errorf("log file = %q", data)
	}
}

func TestSharedLock(t *testing.T) {
	old := shrdmm.Root
	shrdmm.Root = t.TempDir()
	defer func() { shrdmm.Root = old }()

	var buf bytes.Buffer
	l, err := New(Options{Output: &buf, LockName: "jot/lock"})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer shrdmm.Destroy("jot/lock")

	l.Logf(LevelError, "failed to clone process")
	if err := l.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if !strings.Contains(buf.String(), "[ERROR] failed to clone process") {
		t.Errorf("output = %q", buf.String())
	}
	if _, err := os.Stat(shrdmm.Path("jot/lock")); err != nil {
		t.Errorf("lock region missing: %v", err)
	}
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Output: &buf}); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer Close()

	code := -1
	exit = func(c int) { code = c }
	defer func() { exit = os.Exit }()

	Fatal("watcher: %s", "inotify has been closed")

	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "[FATAL] watcher: inotify has been closed") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPackageFunctionsUseInitLogger(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Output: &buf, Verbose: true}); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer Close()

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	want := "[DEBUG] d\n[INFO] i\n[WARN] w\n[ERROR] e\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestFatalRunsAtExitInReverse(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Output: &buf}); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer Close()

	exit = func(int) {}
	defer func() { exit = os.Exit }()

	var order []string
	AtExit(func() { order = append(order, "first") })
	AtExit(func() { order = append(order, "second") })

	Fatal("stop")
	Fatal("again")

	if got := strings.Join(order, ","); got != "second,first" {
		t.Errorf("AtExit order = %q, want %q", got, "second,first")
	}
}
