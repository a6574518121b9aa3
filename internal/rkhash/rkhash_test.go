package rkhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfMatchesIncrementalBuild(t *testing.T) {
	a := Default.Of("\\begin{comment}")

	b := Default.New()
	for _, c := range []byte("\\begin{comment}") {
		b.AppendRight(c)
	}

	assert.True(t, a.Equal(b))
	assert.Equal(t, 15, a.Len())
}

func TestAppendLeftBuildsSameValueAsAppendRight(t *testing.T) {
	s := "includeonly"
	right := Default.Of(s)

	left := Default.New()
	for i := len(s) - 1; i >= 0; i-- {
		left.AppendLeft(s[i])
	}

	assert.True(t, right.Equal(left))
}

func TestRemoveIsInverseOfAppend(t *testing.T) {
	base := Default.Of("input")

	h := Default.Of("input")
	h.AppendRight('x')
	require.False(t, h.Equal(base))
	h.RemoveRight('x')
	assert.True(t, h.Equal(base))

	h.AppendLeft('\\')
	require.False(t, h.Equal(base))
	h.RemoveLeft('\\')
	assert.True(t, h.Equal(base))
}

func TestSlidingWindowFindsPattern(t *testing.T) {
	text := []byte("abc \\input{x} def \\input{y}")
	pattern := Default.Of("\\input")
	width := pattern.Len()

	span := Default.New()
	var ends []int
	for i, c := range text {
		span.AppendRight(c)
		if span.Len() > width {
			span.RemoveLeft(text[i-width])
		}
		if span.Equal(pattern) {
			ends = append(ends, i)
		}
	}

	assert.Equal(t, []int{9, 23}, ends)
}

func TestEqualRequiresSameLength(t *testing.T) {
	// "\x00a" and "a" share a value under every base; only the length differs.
	a := Default.Of("a")
	b := Default.Of("\x00a")

	assert.False(t, a.Equal(b))
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
}

func TestEqualAcrossParams(t *testing.T) {
	other := NewParams(1000000007, 131, 137)

	assert.False(t, Default.Of("tex").Equal(other.Of("tex")))
	assert.True(t, other.Of("tex").Equal(other.Of("tex")))
}

func TestRemoveOnEmptyIsNoop(t *testing.T) {
	h := Default.New()
	h.RemoveLeft('a')
	h.RemoveRight('b')

	assert.Equal(t, 0, h.Len())
	assert.True(t, h.Equal(Default.New()))
}

func TestInverse(t *testing.T) {
	const p = 2147483647
	for _, b := range []uint64{2, 131, 1000003, 911382323} {
		assert.Equal(t, uint64(1), mulmod(b, inverse(b, p), p), "base %d", b)
	}
}

func TestResetClearsWindow(t *testing.T) {
	h := Default.Of("something")
	h.Reset()

	assert.Equal(t, 0, h.Len())
	assert.True(t, h.Equal(Default.New()))
}
