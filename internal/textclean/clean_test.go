package textclean

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestCleaner() *Cleaner {
	return NewCleaner(Options{MinBlockWords: 3, PreserveNumericValues: true})
}

func TestClean_Empty(t *testing.T) {
	c := newTestCleaner()
	assert.Equal(t, "", c.Clean(""))
	assert.Equal(t, "", c.Clean("  \n \n  "))
}

func TestClean_CollapsesWhitespace(t *testing.T) {
	c := newTestCleaner()
	out := c.Clean("the   quick\t\tbrown fox")
	assert.Equal(t, "the quick brown fox", out)
}

func TestClean_DropsShortNoiseLines(t *testing.T) {
	c := newTestCleaner()
	out := c.Clean("a b\nthe quick brown fox jumps")
	assert.Equal(t, "the quick brown fox jumps", out)
}

func TestClean_PreservesNumericAndCurrency(t *testing.T) {
	c := newTestCleaner()

	cases := []string{"$1,200.50", "42%", "1200", "€ 300"}
	for _, line := range cases {
		assert.Equal(t, line, c.Clean(line), "line %q should survive cleaning", line)
	}
}

func TestClean_PreservesFootnotesAndLists(t *testing.T) {
	c := newTestCleaner()

	assert.Equal(t, "[1]", c.Clean("[1]"))
	assert.Equal(t, "• item", c.Clean("• item"))
	assert.Equal(t, "1. item", c.Clean("1. item"))
	assert.Equal(t, "†", c.Clean("†"))
}

func TestClean_PunctuationSpacing(t *testing.T) {
	c := newTestCleaner()

	out := c.Clean("one two three , four five six")
	assert.Equal(t, "one two three, four five six", out)
}

func TestClean_KeepsLineBreaks(t *testing.T) {
	c := newTestCleaner()

	// 标点空白只在行内收紧，不能把换行吃成空格
	out := c.Clean("first paragraph here.\nsecond paragraph there.")
	assert.Equal(t, "first paragraph here.\nsecond paragraph there.", out)
}

func TestClean_DropsBlankLines(t *testing.T) {
	c := newTestCleaner()

	// 页内空行被丢弃，段落分隔由上层用空行重新拼接
	out := c.Clean("first paragraph here.\n\n\nsecond paragraph there.")
	assert.Equal(t, "first paragraph here.\nsecond paragraph there.", out)
}

func TestCleanBlocks_DropsEmpty(t *testing.T) {
	c := newTestCleaner()

	blocks := c.CleanBlocks([]string{"the quick brown fox", "a b", ""})
	assert.Equal(t, []string{"the quick brown fox"}, blocks)
}

func TestIsNumericValue(t *testing.T) {
	assert.True(t, isNumericValue("1200"))
	assert.True(t, isNumericValue("$1,200.50"))
	assert.True(t, isNumericValue("42.5%"))
	assert.False(t, isNumericValue("12.345"))
	assert.False(t, isNumericValue("abc"))
}

func TestIsFootnoteMarker(t *testing.T) {
	assert.True(t, isFootnoteMarker("[12]"))
	assert.True(t, isFootnoteMarker("(3)"))
	assert.True(t, isFootnoteMarker("7"))
	assert.True(t, isFootnoteMarker("¹"))
	assert.False(t, isFootnoteMarker("note"))
}

func TestRemoveTableArtifacts(t *testing.T) {
	out := RemoveTableArtifacts("│ cell one │ cell two │")
	assert.Equal(t, "cell one cell two", out)
}
