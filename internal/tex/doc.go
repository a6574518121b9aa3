// Package tex builds the include graph of a LaTeX document tree and finds the
// root documents an edit affects.
//
// Comment and directive detection run in a single linear pass per file using
// rolling fingerprints (see package rkhash) over windows the width of each
// marker, so no substring comparison is made per byte.
//
// Basic usage:
//
//	g := tex.NewGraph()
//	tex.Analyze("/doc", g)
//	roots := tex.Build("/doc/chapters/intro.tex", g, manager)
//
// The graph keeps edges in both directions: Deps(f) holds x exactly when
// Dependents(x) holds f.
package tex
