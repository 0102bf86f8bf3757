package layout

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultAnalyzer() *Analyzer {
	return NewAnalyzer(Options{})
}

// twoColumnWords 构造两栏布局：左栏X约50，右栏X约350，每栏rows行
func twoColumnWords(rows int) []Word {
	var words []Word
	for i := 0; i < rows; i++ {
		y := float64(i * 20)
		words = append(words, Word{Text: fmt.Sprintf("left%d", i), X: 50, Y: y})
		words = append(words, Word{Text: fmt.Sprintf("right%d", i), X: 350, Y: y})
	}
	return words
}

func TestReorderColumns_TooFewWords(t *testing.T) {
	a := defaultAnalyzer()
	words := twoColumnWords(2) // 4个单词，低于最小样本数

	out := a.ReorderColumns("original text", words)
	assert.Equal(t, "original text", out)
}

func TestReorderColumns_SingleColumnNoOp(t *testing.T) {
	a := defaultAnalyzer()

	var words []Word
	for i := 0; i < 20; i++ {
		words = append(words, Word{Text: fmt.Sprintf("w%d", i), X: 50 + float64(i%3)*10, Y: float64(i * 15)})
	}

	out := a.ReorderColumns("single column text", words)
	assert.Equal(t, "single column text", out)
}

func TestReorderColumns_TwoColumns(t *testing.T) {
	a := defaultAnalyzer()
	words := twoColumnWords(8)

	out := a.ReorderColumns("interleaved", words)
	require.NotEqual(t, "interleaved", out)

	// 左栏整体在前，右栏整体在后
	parts := strings.Split(out, "\n\n")
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "left0")
	assert.Contains(t, parts[0], "left7")
	assert.NotContains(t, parts[0], "right0")
	assert.Contains(t, parts[1], "right0")
	assert.Contains(t, parts[1], "right7")
}

func TestReorderColumns_ReadingOrderWithinColumn(t *testing.T) {
	a := defaultAnalyzer()
	words := twoColumnWords(6)

	out := a.ReorderColumns("x", words)
	leftColumn := strings.Split(out, "\n\n")[0]
	lines := strings.Split(leftColumn, "\n")
	require.Len(t, lines, 6)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("left%d", i), line)
	}
}

func TestFindXClusters_FiltersSmallClusters(t *testing.T) {
	a := defaultAnalyzer()

	var words []Word
	for i := 0; i < 20; i++ {
		words = append(words, Word{Text: "a", X: 60, Y: float64(i)})
	}
	// 只有3个离群单词，不足以构成一列
	for i := 0; i < 3; i++ {
		words = append(words, Word{Text: "b", X: 400, Y: float64(i)})
	}

	centers := a.findXClusters(words)
	assert.Len(t, centers, 1)
}

func TestFindXClusters_CapAtMaxColumns(t *testing.T) {
	a := NewAnalyzer(Options{MaxColumns: 2})

	var words []Word
	for col := 0; col < 4; col++ {
		for i := 0; i < 10; i++ {
			words = append(words, Word{Text: "w", X: float64(col * 150), Y: float64(i * 12)})
		}
	}

	out := a.ReorderColumns("flat", words)
	parts := strings.Split(out, "\n\n")
	assert.LessOrEqual(t, len(parts), 2)
}

func TestNewAnalyzer_Defaults(t *testing.T) {
	a := NewAnalyzer(Options{})
	assert.Equal(t, 3, a.opts.MaxColumns)
	assert.Equal(t, 50.0, a.opts.ColumnGap)
	assert.Equal(t, 5.0, a.opts.LineThreshold)
	assert.Equal(t, 0.05, a.opts.MinClusterRatio)
}
