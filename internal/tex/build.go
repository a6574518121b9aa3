package tex

// Compiler receives the root documents a change affects.
type Compiler interface {
	Compile(root string)
}

// frame is a pending node and the chain of dependents that led to it.
type frame struct {
	path   string
	parent *frame
}

func (f *frame) onPath(p string) bool {
	for ; f != nil; f = f.parent {
		if f.path == p {
			return true
		}
	}
	return false
}

// Affected returns the root documents reachable from changed through the
// dependents relation, in depth-first order. A document reachable along
// several paths appears once per path. A dependent already on the current
// path is not followed again, so include cycles terminate; a node whose every
// dependent is on its path counts as a root.
func Affected(changed string, g *Graph) []string {
	var roots []string
	stack := []*frame{{path: changed}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		pushed := false
		for _, dep := range g.Dependents(f.path) {
			if f.onPath(dep) {
				continue
			}
			stack = append(stack, &frame{path: dep, parent: f})
			pushed = true
		}
		if !pushed {
			roots = append(roots, f.path)
		}
	}
	return roots
}

// Build computes the roots affected by changed and submits each of them to
// c, in order. c may be nil.
func Build(changed string, g *Graph, c Compiler) []string {
	roots := Affected(changed, g)
	if c != nil {
		for _, root := range roots {
			c.Compile(root)
		}
	}
	return roots
}
