package tex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphReplaceMirrorsEdges(t *testing.T) {
	g := NewGraph()
	g.Replace("/d/main.tex", []string{"/d/a.tex", "/d/b.tex"})

	assert.Equal(t, []string{"/d/a.tex", "/d/b.tex"}, g.Deps("/d/main.tex"))
	assert.Equal(t, []string{"/d/main.tex"}, g.Dependents("/d/a.tex"))
	assert.Equal(t, []string{"/d/main.tex"}, g.Dependents("/d/b.tex"))
	assert.True(t, g.Consistent())
}

func TestGraphReplaceDropsStaleEdges(t *testing.T) {
	g := NewGraph()
	g.Replace("/d/main.tex", []string{"/d/a.tex", "/d/b.tex"})
	g.Replace("/d/main.tex", []string{"/d/b.tex", "/d/c.tex"})

	assert.Equal(t, []string{"/d/b.tex", "/d/c.tex"}, g.Deps("/d/main.tex"))
	assert.Empty(t, g.Dependents("/d/a.tex"))
	assert.NotContains(t, g.Files(), "/d/a.tex")
	assert.True(t, g.Consistent())
}

func TestGraphForgetKeepsIncomingEdges(t *testing.T) {
	g := NewGraph()
	g.Replace("/d/main.tex", []string{"/d/a.tex"})
	g.Replace("/d/a.tex", []string{"/d/leaf.tex"})

	g.Forget("/d/a.tex")

	assert.Empty(t, g.Deps("/d/a.tex"))
	assert.Empty(t, g.Dependents("/d/leaf.tex"))
	assert.Equal(t, []string{"/d/main.tex"}, g.Dependents("/d/a.tex"))
	assert.True(t, g.Consistent())
}

func TestGraphForgetTree(t *testing.T) {
	g := NewGraph()
	g.Replace("/d/main.tex", []string{"/d/ch/one.tex"})
	g.Replace("/d/ch/one.tex", []string{"/d/ch/sub/two.tex"})
	g.Replace("/d/chapter.tex", []string{"/d/x.tex"})

	g.ForgetTree("/d/ch")

	assert.Empty(t, g.Deps("/d/ch/one.tex"))
	assert.Equal(t, []string{"/d/x.tex"}, g.Deps("/d/chapter.tex"), "sibling with a shared prefix is kept")
	assert.Equal(t, []string{"/d/ch/one.tex"}, g.Deps("/d/main.tex"))
	assert.True(t, g.Consistent())
}

func TestGraphSnapshot(t *testing.T) {
	g := NewGraph()
	g.Link("/d/main.tex", "/d/b.tex")
	g.Link("/d/main.tex", "/d/a.tex")

	s := g.Snapshot()
	require.Len(t, s.Deps, 1)
	assert.Equal(t, []string{"/d/a.tex", "/d/b.tex"}, s.Deps["/d/main.tex"])
	assert.Equal(t, []string{"/d/main.tex"}, s.Roots["/d/a.tex"])

	// Later changes do not leak into the copy.
	g.Forget("/d/main.tex")
	assert.Len(t, s.Deps["/d/main.tex"], 2)
	assert.Empty(t, g.Files())
}
