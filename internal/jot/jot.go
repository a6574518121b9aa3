// Package jot is the leveled logger shared by the watcher and its compile
// supervisors.
//
// Lines go to stderr with a colored level prefix and, optionally, to a rotated
// log file. When a shared lock name is configured every line is written while
// holding a cross-process lock, so a supervisor process and the watcher never
// interleave output. The logger is constructed lazily on first use with
// defaults; Init replaces it and Close tears it down exactly once.
package jot

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mschirtzinger/watchtex/internal/shrdmm"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the upper-case name used as the line prefix.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Options configures the process logger.
type Options struct {
	// Verbose enables debug lines.
	Verbose bool

	// Output receives styled lines (default: os.Stderr).
	Output io.Writer

	// File, when set, also receives plain timestamped lines with rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int

	// LockName names the shared-memory region hosting the cross-process lock.
	// Empty means a process-local mutex.
	LockName string
}

// Logger writes leveled lines.
type Logger struct {
	console *log.Logger
	file    *log.Logger
	closer  io.Closer
	lock    sync.Locker
	shared  *shrdmm.Lock
	verbose bool
	prefix  [LevelFatal + 1]string
}

var (
	stdMu sync.Mutex
	std   *Logger

	// exit is replaced in tests.
	exit = os.Exit

	exitMu    sync.Mutex
	exitFuncs []func()
)

// New builds a logger from opts.
func New(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	l := &Logger{
		console: log.New(out, "", 0),
		verbose: opts.Verbose,
		lock:    &sync.Mutex{},
	}

	renderer := lipgloss.NewRenderer(out)
	if !isTerminal(out) {
		renderer.SetColorProfile(termenv.Ascii)
	}
	styles := [...]lipgloss.Style{
		LevelDebug: renderer.NewStyle().Foreground(lipgloss.Color("#9e9e9e")),
		LevelInfo:  renderer.NewStyle().Foreground(lipgloss.Color("#4fc3f7")),
		LevelWarn:  renderer.NewStyle().Foreground(lipgloss.Color("#ffa000")).Bold(true),
		LevelError: renderer.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true).Underline(true),
		LevelFatal: renderer.NewStyle().Foreground(lipgloss.Color("#6a1b9a")).Bold(true).Underline(true),
	}
	for lvl, st := range styles {
		l.prefix[lvl] = "[" + st.Render(Level(lvl).String()) + "] "
	}

	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		l.file = log.New(rot, "", log.LstdFlags)
		l.closer = rot
	}

	if opts.LockName != "" {
		shared, err := shrdmm.OpenLock(opts.LockName)
		if err != nil {
			if l.closer != nil {
				l.closer.Close()
			}
			return nil, fmt.Errorf("failed to open log lock: %w", err)
		}
		l.shared = shared
		l.lock = shared
	}

	return l, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Init replaces the process logger. The previous logger, if any, is closed.
func Init(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	stdMu.Lock()
	prev := std
	std = l
	stdMu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return nil
}

// Close tears down the process logger. Later calls log through a fresh
// default logger.
func Close() error {
	stdMu.Lock()
	l := std
	std = nil
	stdMu.Unlock()
	if l == nil {
		return nil
	}
	return l.Close()
}

func get() *Logger {
	stdMu.Lock()
	defer stdMu.Unlock()
	if std == nil {
		std, _ = New(Options{})
	}
	return std
}

// Close releases the file sink and the shared lock mapping.
func (l *Logger) Close() error {
	var err error
	if l.closer != nil {
		err = l.closer.Close()
	}
	if l.shared != nil {
		if cerr := l.shared.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Verbose reports whether debug lines are written.
func (l *Logger) Verbose() bool {
	return l.verbose
}

// Logf writes one line at lvl.
func (l *Logger) Logf(lvl Level, format string, args ...any) {
	if lvl == LevelDebug && !l.verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)

	l.lock.Lock()
	defer l.lock.Unlock()
	l.console.Print(l.prefix[lvl] + msg)
	if l.file != nil {
		l.file.Print("[" + lvl.String() + "] " + msg)
	}
}

func Debug(format string, args ...any) { get().Logf(LevelDebug, format, args...) }
func Info(format string, args ...any)  { get().Logf(LevelInfo, format, args...) }
func Warn(format string, args ...any)  { get().Logf(LevelWarn, format, args...) }
func Error(format string, args ...any) { get().Logf(LevelError, format, args...) }

// AtExit registers fn to run before Fatal exits. Functions run in reverse
// order of registration.
func AtExit(fn func()) {
	exitMu.Lock()
	exitFuncs = append(exitFuncs, fn)
	exitMu.Unlock()
}

// Fatal logs at fatal level, runs the AtExit functions and exits with status 1.
func Fatal(format string, args ...any) {
	get().Logf(LevelFatal, format, args...)

	exitMu.Lock()
	fns := exitFuncs
	exitFuncs = nil
	exitMu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
	exit(1)
}
