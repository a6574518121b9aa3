package tex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncludes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"input", `\input{partA}`, []string{"partA"}},
		{"all directives", `\input{a}\include{b}\includeonly{c}`, []string{"a", "b", "c"}},
		{"nested braces", `\input{dir/{x}/y}`, []string{"dir/{x}/y"}},
		{"empty group", `\input{}`, []string{""}},
		{"unbalanced", `\input{a`, nil},
		{"unbalanced then valid", `\input{a \include{b}`, []string{"b"}},
		{"no brace", `\input a`, nil},
		{"other command", `\inputencoding{utf8}\includegraphics{fig}`, nil},
		{"keyword at end", `text\input`, nil},
		{"surrounding text", "\\section{Intro}\n\\input{intro}\nmore", []string{"intro"}},
		{"no directives", "just text {with} braces", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Includes([]byte(tt.in)))
		})
	}
}

func TestIncludesAfterStripping(t *testing.T) {
	buf := []byte("% \\input{ghost}\n\\include{real} % \\include{ghost2}\n")
	StripComments(buf)
	assert.Equal(t, []string{"real"}, Includes(buf))
}
