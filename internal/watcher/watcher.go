// Package watcher provides recursive filesystem watching with an ordered,
// blocking event stream.
//
// A Watcher owns one event source (a kernel inotify instance, or fsnotify on
// platforms without inotify) and one decode goroutine. The goroutine resolves
// raw events to absolute paths through the watch table and appends them to an
// unbounded queue; Poll hands them out one at a time in the order the kernel
// reported them.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mschirtzinger/watchtex/internal/jot"
)

var (
	// ErrFatal wraps failures of the event source itself: a read error, end
	// of stream, or an event that does not fit the read buffer. The event
	// stream can no longer be trusted after it.
	ErrFatal = errors.New("event source failed")

	// ErrNotRunning is returned by Poll before Start or after Stop.
	ErrNotRunning = errors.New("watcher is not running")

	// ErrAlreadyRunning is returned by Start on a running watcher.
	ErrAlreadyRunning = errors.New("watcher already running")

	// ErrClosed is returned by Start after Stop.
	ErrClosed = errors.New("watcher is closed")

	// ErrNotWatched is returned by Remove when no watch covers the path.
	ErrNotWatched = errors.New("path is not watched")

	// ErrUnknownBackend is returned by New for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown watcher backend")

	// ErrUnsupported is returned when a backend is not available on this platform.
	ErrUnsupported = errors.New("backend not supported on this platform")
)

// Backend names an event source implementation.
type Backend string

const (
	BackendInotify  Backend = "inotify"
	BackendFsnotify Backend = "fsnotify"
)

// DefaultIgnoreDirs are directory names never watched.
var DefaultIgnoreDirs = []string{"node_modules"}

// Event is one filesystem event.
type Event struct {
	// Path is the absolute path the event refers to.
	Path string
	// Mask holds the event kinds.
	Mask Mask
}

// source is an event source. wd values returned by add are unique while the
// watch is active.
type source interface {
	add(path string) (int, error)
	remove(wd int) error
	// run decodes events until close is called (returning nil) or the source
	// fails (returning an error wrapping ErrFatal).
	run(emit func(wd int, name string, mask Mask)) error
	close() error
}

// Options configures a Watcher.
type Options struct {
	Backend    Backend
	IgnoreDirs []string
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Watcher watches directory trees.
type Watcher struct {
	src    source
	ignore map[string]bool

	// watch table: descriptor -> path, and Add root -> descriptors.
	nodesMu sync.Mutex
	nodes   map[int]string
	groups  map[string][]int

	events *queue

	mu    sync.Mutex
	state state
	fatal error
	done  chan struct{}
}

// New creates a watcher. It must be started with Start before Poll returns
// events.
func New(opts Options) (*Watcher, error) {
	if opts.Backend == "" {
		opts.Backend = BackendInotify
	}
	if opts.IgnoreDirs == nil {
		opts.IgnoreDirs = DefaultIgnoreDirs
	}

	var (
		src source
		err error
	)
	switch opts.Backend {
	case BackendInotify:
		src, err = newInotify()
	case BackendFsnotify:
		src, err = newFsnotify()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return newWatcher(src, opts.IgnoreDirs), nil
}

func newWatcher(src source, ignoreDirs []string) *Watcher {
	ignore := make(map[string]bool, len(ignoreDirs))
	for _, name := range ignoreDirs {
		ignore[name] = true
	}

	return &Watcher{
		src:    src,
		ignore: ignore,
		nodes:  make(map[int]string),
		groups: make(map[string][]int),
		events: newQueue(),
		done:   make(chan struct{}),
	}
}

// canonical resolves symlinks and makes path absolute.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func (w *Watcher) ignored(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if w.ignore[part] {
			return true
		}
	}
	return false
}

// Add watches path. A directory is watched recursively, skipping
// subdirectories with an ignored name and following symlinked ones. All
// descriptors created by one Add form a group that Remove(path) unregisters
// together.
func (w *Watcher) Add(path string) error {
	root, err := canonical(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if w.ignored(root) {
		jot.Debug("watcher: skipping ignored path `%s`", root)
		return nil
	}

	fi, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", root, err)
	}

	if !fi.IsDir() {
		wd, err := w.src.add(root)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
		w.track(root, root, wd)
		jot.Debug("watching `%s`", root)
		return nil
	}

	w.walk(root, root, make(map[string]bool))
	return nil
}

// walk watches dir and every directory below it. Symlinked directories are
// followed and watched under their canonical path; seen stops link cycles.
func (w *Watcher) walk(root, dir string, seen map[string]bool) {
	if seen[dir] {
		return
	}
	seen[dir] = true

	wd, err := w.src.add(dir)
	if err != nil {
		jot.Warn("watcher: failed to add path `%s`: %v", dir, err)
		return
	}
	w.track(root, dir, wd)
	jot.Debug("watching `%s`", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		jot.Warn("watcher: cannot read `%s`: %v", dir, err)
		return
	}
	for _, entry := range entries {
		if w.ignore[entry.Name()] {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			w.walk(root, p, seen)
		case entry.Type()&fs.ModeSymlink != 0:
			target, err := filepath.EvalSymlinks(p)
			if err != nil {
				continue
			}
			if fi, err := os.Stat(target); err == nil && fi.IsDir() && !w.ignored(target) {
				w.walk(root, target, seen)
			}
		}
	}
}

func (w *Watcher) track(root, path string, wd int) {
	w.nodesMu.Lock()
	defer w.nodesMu.Unlock()

	w.nodes[wd] = path
	for _, existing := range w.groups[root] {
		if existing == wd {
			return
		}
	}
	w.groups[root] = append(w.groups[root], wd)
}

// untrack drops descriptors from the table and from every group.
// nodesMu must be held.
func (w *Watcher) untrack(drop map[int]bool) {
	for wd := range drop {
		delete(w.nodes, wd)
	}
	for root, wds := range w.groups {
		kept := wds[:0]
		for _, wd := range wds {
			if !drop[wd] {
				kept = append(kept, wd)
			}
		}
		if len(kept) == 0 {
			delete(w.groups, root)
		} else {
			w.groups[root] = kept
		}
	}
}

// Remove unregisters every watch registered by Add(path) and every watch on
// path or below it. The path need not exist anymore.
func (w *Watcher) Remove(path string) error {
	target, err := canonical(path)
	if err != nil {
		if target, err = filepath.Abs(path); err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
	}

	w.nodesMu.Lock()
	drop := make(map[int]bool)
	for _, wd := range w.groups[target] {
		drop[wd] = true
	}
	prefix := strings.TrimSuffix(target, string(filepath.Separator)) + string(filepath.Separator)
	for wd, p := range w.nodes {
		if p == target || strings.HasPrefix(p, prefix) {
			drop[wd] = true
		}
	}
	w.untrack(drop)
	w.nodesMu.Unlock()

	if len(drop) == 0 {
		return fmt.Errorf("%w: %s", ErrNotWatched, target)
	}

	var errs []error
	for wd := range drop {
		if err := w.src.remove(wd); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove watch %d: %w", wd, err))
		}
	}
	jot.Debug("unwatched `%s` (%d watches)", target, len(drop))
	return errors.Join(errs...)
}

// Watched returns the watched paths in sorted order.
func (w *Watcher) Watched() []string {
	w.nodesMu.Lock()
	paths := make([]string, 0, len(w.nodes))
	for _, p := range w.nodes {
		paths = append(paths, p)
	}
	w.nodesMu.Unlock()
	sort.Strings(paths)
	return paths
}

// Start launches the decode goroutine.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateRunning:
		return ErrAlreadyRunning
	case stateStopped:
		return ErrClosed
	}
	w.state = stateRunning
	go w.decode()
	return nil
}

// Stop closes the event source and waits for the decode goroutine to exit.
// Events still queued are discarded.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	prev := w.state
	w.state = stateStopped
	w.mu.Unlock()

	switch prev {
	case stateIdle:
		return w.src.close()
	case stateRunning:
		err := w.src.close()
		<-w.done
		return err
	default:
		return nil
	}
}

// IsRunning reports whether the decode goroutine is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateRunning
}

// Poll blocks until an event is available and returns it. It returns an
// error wrapping ErrFatal as soon as the event source has failed,
// ErrNotRunning when the watcher is not running, or ctx.Err().
func (w *Watcher) Poll(ctx context.Context) (Event, error) {
	for {
		w.mu.Lock()
		fatal, st := w.fatal, w.state
		w.mu.Unlock()

		if fatal != nil {
			return Event{}, fatal
		}
		if e, ok := w.events.pop(); ok {
			return e, nil
		}
		if st != stateRunning {
			return Event{}, ErrNotRunning
		}

		select {
		case <-w.events.ready:
		case <-w.done:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

func (w *Watcher) decode() {
	defer close(w.done)

	err := w.src.run(w.dispatch)

	w.mu.Lock()
	if err != nil {
		w.fatal = err
	}
	w.state = stateStopped
	w.mu.Unlock()

	if err != nil {
		_ = w.src.close()
	}
}

// dispatch resolves a raw event and enqueues it. Events on descriptors that
// are no longer in the table are dropped; the kernel reports IGNORED after a
// watch is removed.
func (w *Watcher) dispatch(wd int, name string, mask Mask) {
	w.nodesMu.Lock()
	dir, ok := w.nodes[wd]
	if ok && mask.Has(Ignored) {
		w.untrack(map[int]bool{wd: true})
	}
	w.nodesMu.Unlock()

	if !ok && !mask.Has(QOverflow) {
		return
	}

	path := dir
	if name != "" {
		path = filepath.Join(dir, name)
	}
	w.events.push(Event{Path: path, Mask: mask})
}
