package tex

import "github.com/mschirtzinger/watchtex/internal/rkhash"

// Erased is written over every comment byte.
const Erased = '?'

const (
	beginComment = `\begin{comment}`
	endComment   = `\end{comment}`
)

var (
	beginCommentHash = rkhash.Default.Of(beginComment)
	endCommentHash   = rkhash.Default.Of(endComment)
)

// slide moves a window of the given width one byte to the right so that it
// ends at buf[i].
func slide(h *rkhash.Hash, buf []byte, i, width int) {
	h.AppendRight(buf[i])
	if h.Len() > width {
		h.RemoveLeft(buf[i-width])
	}
}

// escaped reports whether buf[i] is preceded by an odd number of backslashes.
func escaped(buf []byte, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && buf[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// StripComments overwrites every comment in buf with Erased, in place. Line
// comments run from an unescaped % up to the line break. Comment environments
// are erased whole, markers included, except that the first and last erased
// bytes become line breaks. An unterminated environment runs to the end of
// buf. The length of buf never changes, and stripping is idempotent.
func StripComments(buf []byte) {
	stripLineComments(buf)
	stripBlockComments(buf)
}

func stripLineComments(buf []byte) {
	for i := 0; i < len(buf); i++ {
		if buf[i] != '%' || escaped(buf, i) {
			continue
		}
		for ; i < len(buf) && buf[i] != '\n'; i++ {
			buf[i] = Erased
		}
	}
}

type span struct{ start, end int }

func stripBlockComments(buf []byte) {
	const n, m = len(beginComment), len(endComment)

	open := rkhash.Default.New()
	closing := rkhash.Default.New()

	var (
		spans  []span
		inside bool
		start  int
	)
	for i := range buf {
		slide(open, buf, i, n)
		slide(closing, buf, i, m)

		switch {
		case !inside && open.Equal(beginCommentHash):
			inside = true
			start = i + 1 - n
		case inside && i+1-m >= start+n && closing.Equal(endCommentHash):
			inside = false
			spans = append(spans, span{start, i + 1})
		}
	}
	if inside {
		spans = append(spans, span{start, len(buf)})
	}

	for _, s := range spans {
		for i := s.start; i < s.end; i++ {
			buf[i] = Erased
		}
		buf[s.start] = '\n'
		buf[s.end-1] = '\n'
	}
}
