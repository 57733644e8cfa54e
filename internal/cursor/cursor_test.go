package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindNamesUnderCursor(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar"}, FindNamesUnderCursor("foo.bar", 5))
	assert.Equal(t, []string{"foo"}, FindNamesUnderCursor("foo.bar", 3))
	assert.Nil(t, FindNamesUnderCursor("  x", 0))
}

func TestFindNamesUnderCursor_Backtick(t *testing.T) {
	assert.Equal(t, []string{"a b"}, FindNamesUnderCursor("`a b`.c", 5))
}

func TestFindMethodCallBeforeCursor(t *testing.T) {
	col, ok := FindMethodCallBeforeCursor("f(x, y", 6)
	assert.True(t, ok)
	assert.Equal(t, 1, col)

	_, ok = FindMethodCallBeforeCursor("let g(x", 6)
	assert.False(t, ok)

	_, ok = FindMethodCallBeforeCursor("member this.M(x", 14)
	assert.False(t, ok)

	col, ok = FindMethodCallBeforeCursor("f(g(), ", 7)
	assert.True(t, ok)
	assert.Equal(t, 1, col)
}

func TestCountCommas(t *testing.T) {
	assert.Equal(t, 2, CountCommas("a, b, c)", 0, 7))
}

func TestMatchesTitleCase(t *testing.T) {
	assert.True(t, MatchesTitleCase("fb", "FooBar"))
	assert.False(t, MatchesTitleCase("fb", "Foobar"))
	assert.True(t, MatchesTitleCase("", "anything"))
	assert.False(t, MatchesTitleCase("FB", "fooBar"))
}

func TestFindEndOfIdentifierUnderCursor(t *testing.T) {
	end, ok := FindEndOfIdentifierUnderCursor("foo.bar", 1)
	assert.True(t, ok)
	assert.Equal(t, 3, end)

	_, ok = FindEndOfIdentifierUnderCursor("  x", 0)
	assert.False(t, ok)
}

func TestRankTitleCaseMatches(t *testing.T) {
	results := RankTitleCaseMatches("fb", []string{"FizzBuzz", "FooBar", "FastBurger", "Unrelated"})
	var names []string
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.NotContains(t, names, "Unrelated")
	assert.Contains(t, names, "FooBar")
	assert.Contains(t, names, "FizzBuzz")
	assert.Contains(t, names, "FastBurger")
}
