package tex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mschirtzinger/watchtex/internal/jot"
)

// Ext is the extension of analyzable documents.
const Ext = ".tex"

var (
	// ErrEmptyArgument is returned when a directive has an empty argument.
	ErrEmptyArgument = errors.New("empty include argument")

	// ErrNotExist is returned when an include does not resolve to a file.
	ErrNotExist = errors.New("path does not exist")

	// ErrNotSupported is returned when an include resolves to something
	// other than a .tex regular file.
	ErrNotSupported = errors.New("dependency not supported")
)

// DefaultIgnoreDirs are directory names never descended into.
var DefaultIgnoreDirs = []string{"node_modules"}

// Analyzer scans documents and records their includes in a Graph.
type Analyzer struct {
	Graph      *Graph
	IgnoreDirs []string
}

// NewAnalyzer returns an analyzer that writes to g. A nil ignoreDirs means
// DefaultIgnoreDirs.
func NewAnalyzer(g *Graph, ignoreDirs []string) *Analyzer {
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}
	return &Analyzer{Graph: g, IgnoreDirs: ignoreDirs}
}

// Analyze records the includes of path in g using the default ignore list.
func Analyze(path string, g *Graph) {
	NewAnalyzer(g, nil).Analyze(path)
}

// IsTex reports whether path has the document extension.
func IsTex(path string) bool {
	return filepath.Ext(path) == Ext
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

// Analyze scans path. A directory is scanned recursively; a .tex file has
// its outgoing edges replaced by the includes it currently contains. Problems
// are logged and the offending path skipped.
func (a *Analyzer) Analyze(path string) {
	a.analyze(path, make(map[string]bool))
}

func (a *Analyzer) ignored(name string) bool {
	for _, ig := range a.IgnoreDirs {
		if name == ig {
			return true
		}
	}
	return false
}

func (a *Analyzer) analyze(path string, seen map[string]bool) {
	abs, err := canonical(path)
	if err != nil {
		jot.Warn("analyze: path `%s` does not exist", path)
		return
	}
	fi, err := os.Stat(abs)
	if err != nil {
		jot.Warn("analyze: path `%s` does not exist", abs)
		return
	}

	switch {
	case fi.Mode().IsRegular() && IsTex(abs):
		a.analyzeFile(abs)
	case fi.IsDir():
		if seen[abs] {
			return
		}
		seen[abs] = true
		a.analyzeDir(abs, seen)
	default:
		jot.Warn("analyze: path `%s` is not analyzable", abs)
	}
}

func (a *Analyzer) analyzeDir(dir string, seen map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		jot.Warn("analyze: cannot read directory `%s`: %v", dir, err)
		return
	}
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		switch {
		case fi.Mode().IsRegular() && IsTex(p):
			a.analyze(p, seen)
		case fi.IsDir() && !a.ignored(entry.Name()):
			a.analyze(p, seen)
		}
	}
}

func (a *Analyzer) analyzeFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		a.Graph.Forget(path)
		jot.Warn("analyze: cannot read `%s`: %v", path, err)
		return
	}
	if len(data) == 0 {
		a.Graph.Forget(path)
		jot.Warn("analyze: path `%s` is empty", path)
		return
	}

	StripComments(data)

	dir := filepath.Dir(path)
	var deps []string
	for _, arg := range Includes(data) {
		jot.Debug("analyze: `%s` includes `%s`", path, arg)
		dep, err := Resolve(dir, arg)
		if err != nil {
			jot.Warn("analyze: %v", err)
			continue
		}
		deps = append(deps, dep)
	}
	a.Graph.Replace(path, deps)
}

// Resolve turns an include argument into the canonical path of the document
// it names, relative to dir. A name without an extension gets .tex appended
// when the bare name does not exist.
func Resolve(dir, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", ErrEmptyArgument
	}

	p := arg
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	if _, err := os.Stat(p); err != nil && !IsTex(p) {
		if _, err := os.Stat(p + Ext); err == nil {
			p += Ext
		}
	}

	fi, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("%w: `%s`", ErrNotExist, p)
	}
	if !fi.Mode().IsRegular() || !IsTex(p) {
		return "", fmt.Errorf("%w: `%s`", ErrNotSupported, p)
	}
	return canonical(p)
}
