// Package daemon provides the watch loop that keeps LaTeX documents compiled.
//
// The daemon consists of several components:
//
//   - Source: the recursive filesystem watcher (package watcher)
//   - Graph and Analyzer: the include graph of the tree (package tex)
//   - Compiler: the compile job manager (package job)
//   - Stats: per-file event counters, reported on interrupt
//
// # Event Handling
//
// The loop handles one event at a time, in the order the kernel reported
// them:
//
//   - a new directory is watched and analyzed
//   - a deleted directory is unwatched and its documents' edges dropped
//   - a saved .tex file is re-analyzed, then every root document that
//     includes it, directly or not, is submitted for compilation
//   - a deleted .tex file has its outgoing edges dropped
//
// Everything else is counted and otherwise ignored.
//
// # Usage
//
//	mgr := job.NewManager(job.DefaultConfig())
//	defer mgr.Shutdown()
//
//	d, err := daemon.New(".", daemon.Config{Compiler: mgr})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := d.Run(ctx); err != nil {
//	    jot.Fatal("%v", err)
//	}
//
// Run returns nil when ctx is cancelled; only a failure of the event source
// itself is returned as an error.
package daemon
