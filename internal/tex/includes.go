package tex

import "github.com/mschirtzinger/watchtex/internal/rkhash"

// Directives are the recognized inclusion commands, longest first so that a
// position matching several of them resolves to the longest.
var Directives = []string{`\includeonly`, `\include`, `\input`}

type matcher struct {
	width   int
	pattern *rkhash.Hash
	window  *rkhash.Hash
}

func newMatchers() []*matcher {
	ms := make([]*matcher, len(Directives))
	for i, d := range Directives {
		ms[i] = &matcher{
			width:   len(d),
			pattern: rkhash.Default.Of(d),
			window:  rkhash.Default.New(),
		}
	}
	return ms
}

// Includes returns the arguments of every inclusion directive in buf, in
// order of appearance. buf should already have its comments stripped. A
// directive must be followed directly by a brace group; nested balanced
// braces are kept in the argument, and a group left open at the end of buf
// is no match.
func Includes(buf []byte) []string {
	ms := newMatchers()

	var args []string
	for i := range buf {
		for _, m := range ms {
			slide(m.window, buf, i, m.width)
		}
		for _, m := range ms {
			if !m.window.Equal(m.pattern) {
				continue
			}
			if arg, ok := braceGroup(buf, i+1); ok {
				args = append(args, arg)
			}
			break
		}
	}
	return args
}

// braceGroup parses the brace-balanced group starting at buf[at] and returns
// its contents without the outer braces.
func braceGroup(buf []byte, at int) (string, bool) {
	if at >= len(buf) || buf[at] != '{' {
		return "", false
	}
	depth := 0
	for i := at; i < len(buf); i++ {
		switch buf[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return string(buf[at+1 : i]), true
			}
		}
	}
	return "", false
}
