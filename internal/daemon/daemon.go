package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mschirtzinger/watchtex/internal/jot"
	"github.com/mschirtzinger/watchtex/internal/tex"
	"github.com/mschirtzinger/watchtex/internal/watcher"
)

// Source is the event stream the daemon drives. *watcher.Watcher implements
// it.
type Source interface {
	Add(path string) error
	Remove(path string) error
	Start() error
	Stop() error
	Poll(ctx context.Context) (watcher.Event, error)
}

// Sink receives what the daemon observes, for display.
type Sink interface {
	FileEvent(ev watcher.Event)
	Analyzed(path string, roots []string)
}

// Config holds configuration for the daemon.
type Config struct {
	// Backend selects the watcher implementation when Source is nil.
	Backend watcher.Backend

	// IgnoreDirs are directory names neither watched nor analyzed.
	IgnoreDirs []string

	// Compiler receives the roots affected by each change.
	Compiler tex.Compiler

	// Source overrides the watcher. Mostly useful in tests.
	Source Source

	// Sink, if set, is told about events and analyses.
	Sink Sink
}

// Daemon watches a document tree and recompiles the roots affected by each
// saved file.
type Daemon struct {
	root     string
	config   Config
	graph    *tex.Graph
	analyzer *tex.Analyzer
	source   Source
	stats    *Stats
}

// New creates a daemon for the file or directory at path. The path is
// canonicalized before use.
func New(path string, config Config) (*Daemon, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}

	if config.IgnoreDirs == nil {
		config.IgnoreDirs = tex.DefaultIgnoreDirs
	}

	source := config.Source
	if source == nil {
		w, err := watcher.New(watcher.Options{Backend: config.Backend, IgnoreDirs: config.IgnoreDirs})
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		source = w
	}

	graph := tex.NewGraph()
	return &Daemon{
		root:     root,
		config:   config,
		graph:    graph,
		analyzer: tex.NewAnalyzer(graph, config.IgnoreDirs),
		source:   source,
		stats:    NewStats(),
	}, nil
}

// Root returns the canonical watched path.
func (d *Daemon) Root() string { return d.root }

// Graph returns the include graph the daemon maintains.
func (d *Daemon) Graph() *tex.Graph { return d.graph }

// Stats returns the per-file event statistics.
func (d *Daemon) Stats() *Stats { return d.stats }

// Run watches the root, analyzes it once and then handles events until ctx
// is cancelled (returning nil) or the watcher fails (returning an error
// wrapping watcher.ErrFatal).
func (d *Daemon) Run(ctx context.Context) error {
	jot.Info("watching `%s`", d.root)
	if err := d.source.Add(d.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", d.root, err)
	}
	if err := d.source.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() {
		if err := d.source.Stop(); err != nil {
			jot.Warn("failed to stop watcher: %v", err)
		}
	}()

	d.analyzer.Analyze(d.root)

	for {
		ev, err := d.source.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		d.Handle(ev)
	}
}

// Handle processes one event.
func (d *Daemon) Handle(ev watcher.Event) {
	jot.Debug("%s %s", ev.Path, ev.Mask)
	if d.config.Sink != nil {
		d.config.Sink.FileEvent(ev)
	}

	m := ev.Mask
	switch {
	case m.Has(watcher.QOverflow):
		jot.Warn("watcher: event queue overflowed, rescanning `%s`", d.root)
		d.analyzer.Analyze(d.root)
		return
	case m.Has(watcher.Create | watcher.IsDir), m.Has(watcher.MovedTo | watcher.IsDir):
		if err := d.source.Add(ev.Path); err != nil {
			jot.Warn("failed to watch `%s`: %v", ev.Path, err)
		}
		d.analyzer.Analyze(ev.Path)
		return
	case m.Has(watcher.Delete | watcher.IsDir), m.Has(watcher.MovedFrom | watcher.IsDir):
		d.unwatch(ev.Path)
		d.graph.ForgetTree(ev.Path)
		return
	case m.Has(watcher.DeleteSelf):
		d.unwatch(ev.Path)
		return
	}

	if !tex.IsTex(ev.Path) {
		return
	}
	writes := d.stats.Update(ev.Path, m)

	switch {
	case m.Has(watcher.Delete), m.Has(watcher.MovedFrom):
		d.graph.Forget(ev.Path)
	case m.Has(watcher.CloseWrite), m.Has(watcher.MovedTo):
		jot.Info("`%s` modified [x%d]", ev.Path, writes)
		d.analyzer.Analyze(ev.Path)
		roots := tex.Build(ev.Path, d.graph, d.config.Compiler)
		if d.config.Sink != nil {
			d.config.Sink.Analyzed(ev.Path, roots)
		}
	}
}

func (d *Daemon) unwatch(path string) {
	err := d.source.Remove(path)
	switch {
	case err == nil:
	case errors.Is(err, watcher.ErrNotWatched):
		jot.Debug("`%s` was not watched", path)
	default:
		jot.Warn("failed to unwatch `%s`: %v", path, err)
	}
}

// Report logs the statistics gathered so far. It is called on interrupt.
func (d *Daemon) Report() {
	jot.Info("interrupted by user")
	d.stats.Report()
}
