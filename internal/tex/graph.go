package tex

import (
	"sort"
	"sync"
)

type set map[string]struct{}

// Graph is the include graph over canonical absolute paths. Deps maps a
// document to the files it includes; Roots maps a file to the documents that
// include it. Every edge is stored in both directions.
type Graph struct {
	mu    sync.RWMutex
	deps  map[string]set
	roots map[string]set
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		deps:  make(map[string]set),
		roots: make(map[string]set),
	}
}

func (g *Graph) link(from, to string) {
	if g.deps[from] == nil {
		g.deps[from] = make(set)
	}
	g.deps[from][to] = struct{}{}
	if g.roots[to] == nil {
		g.roots[to] = make(set)
	}
	g.roots[to][from] = struct{}{}
}

// unlink drops the outgoing edges of path and their mirrors.
// mu must be held for writing.
func (g *Graph) unlink(path string) {
	for dep := range g.deps[path] {
		delete(g.roots[dep], path)
		if len(g.roots[dep]) == 0 {
			delete(g.roots, dep)
		}
	}
	delete(g.deps, path)
}

// Link adds the edge from includes to.
func (g *Graph) Link(from, to string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.link(from, to)
}

// Replace sets the outgoing edges of path to deps, discarding whatever a
// previous scan recorded.
func (g *Graph) Replace(path string, deps []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlink(path)
	for _, dep := range deps {
		g.link(path, dep)
	}
}

// Forget drops the outgoing edges of path. Edges from documents that include
// path are kept; they change only when those documents are rescanned.
func (g *Graph) Forget(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlink(path)
}

// ForgetTree drops the outgoing edges of every document at or below dir.
func (g *Graph) ForgetTree(dir string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for path := range g.deps {
		if within(path, dir) {
			g.unlink(path)
		}
	}
}

func sorted(s set) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Deps returns the files path includes, sorted.
func (g *Graph) Deps(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sorted(g.deps[path])
}

// Dependents returns the documents that include path, sorted.
func (g *Graph) Dependents(path string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sorted(g.roots[path])
}

// Files returns every path that appears in an edge, sorted.
func (g *Graph) Files() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	all := make(set, len(g.deps)+len(g.roots))
	for p := range g.deps {
		all[p] = struct{}{}
	}
	for p := range g.roots {
		all[p] = struct{}{}
	}
	return sorted(all)
}

// Snapshot is a point-in-time copy of a Graph.
type Snapshot struct {
	Deps  map[string][]string `json:"deps" yaml:"deps"`
	Roots map[string][]string `json:"roots" yaml:"roots"`
}

// Snapshot copies the graph.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := Snapshot{
		Deps:  make(map[string][]string, len(g.deps)),
		Roots: make(map[string][]string, len(g.roots)),
	}
	for p, d := range g.deps {
		s.Deps[p] = sorted(d)
	}
	for p, r := range g.roots {
		s.Roots[p] = sorted(r)
	}
	return s
}

// Consistent reports whether every edge is mirrored.
func (g *Graph) Consistent() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for f, deps := range g.deps {
		for x := range deps {
			if _, ok := g.roots[x][f]; !ok {
				return false
			}
		}
	}
	for x, roots := range g.roots {
		for f := range roots {
			if _, ok := g.deps[f][x]; !ok {
				return false
			}
		}
	}
	return true
}
