package textclean

import (
	"regexp"
	"strings"
)

// Options 文本清洗配置
type Options struct {
	MinBlockWords         int  // 短于该词数的行会被丢弃
	PreserveNumericValues bool // 保留数值、货币、百分比行
}

// Cleaner 提取文本的清洗器，去噪的同时保留重要的短内容
type Cleaner struct {
	opts Options
}

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	// 标点前后的空白只在行内收紧，不跨行合并
	spaceBeforePunct = regexp.MustCompile(`[ \t]+([,.!?;:])`)
	spaceAfterPunct  = regexp.MustCompile(`([,.!?;:])[ \t]+`)

	currencySymbols  = regexp.MustCompile(`[$,€£¥₹₽₩₦₨₪₫]`)
	numericValue     = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
	percentageValue  = regexp.MustCompile(`^\d+(\.\d+)?%$`)
	bulletMarker     = regexp.MustCompile(`[•●○■□▪▫]`)
	numberedList     = regexp.MustCompile(`^\s*\d+\.|\(\d+\)`)
	bracketFootnote  = regexp.MustCompile(`^\[\d+\]$`)
	parenFootnote    = regexp.MustCompile(`^\(\d+\)$`)
	standaloneNumber = regexp.MustCompile(`^\d+$`)
	footnoteSymbols  = regexp.MustCompile(`^[*†‡§¶#]+$`)
	superscripts     = regexp.MustCompile(`^[¹²³⁴⁵⁶⁷⁸⁹⁰]+$`)
	tableArtifacts   = regexp.MustCompile(`[|│┌┐└┘├┤┬┴┼─]+`)
)

// NewCleaner 创建清洗器
func NewCleaner(opts Options) *Cleaner {
	if opts.MinBlockWords <= 0 {
		opts.MinBlockWords = 3
	}
	return &Cleaner{opts: opts}
}

// Clean 清洗整段文本，逐行过滤后做整体收尾
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}

	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		if out := c.cleanLine(line); out != "" {
			cleaned = append(cleaned, out)
		}
	}

	return finalCleanup(strings.Join(cleaned, "\n"))
}

// CleanBlocks 清洗多个文本块，空块被丢弃
func (c *Cleaner) CleanBlocks(blocks []string) []string {
	var result []string
	for _, block := range blocks {
		if out := c.Clean(block); out != "" {
			result = append(result, out)
		}
	}
	return result
}

// cleanLine 清洗单行，返回空串表示该行应被丢弃
func (c *Cleaner) cleanLine(line string) string {
	line = whitespaceRun.ReplaceAllString(strings.TrimSpace(line), " ")
	if line == "" {
		return ""
	}

	if c.shouldPreserve(line) {
		return line
	}

	// 过短且无保留价值的行视为噪声
	if len(strings.Fields(line)) < c.opts.MinBlockWords {
		if !isNumericValue(line) && !isFootnoteMarker(line) {
			return ""
		}
	}

	return line
}

// shouldPreserve 判断短行是否仍需保留
func (c *Cleaner) shouldPreserve(line string) bool {
	if c.opts.PreserveNumericValues && isNumericValue(line) {
		return true
	}
	if isFootnoteMarker(line) {
		return true
	}
	if bulletMarker.MatchString(line) {
		return true
	}
	if numberedList.MatchString(line) {
		return true
	}
	return false
}

// isNumericValue 判断是否为应保留的数值、货币或百分比
func isNumericValue(text string) bool {
	cleaned := currencySymbols.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	if numericValue.MatchString(cleaned) {
		return true
	}
	return percentageValue.MatchString(cleaned)
}

// isFootnoteMarker 判断是否为脚注标记
func isFootnoteMarker(text string) bool {
	trimmed := strings.TrimSpace(text)
	return bracketFootnote.MatchString(trimmed) ||
		parenFootnote.MatchString(trimmed) ||
		standaloneNumber.MatchString(trimmed) ||
		footnoteSymbols.MatchString(trimmed) ||
		superscripts.MatchString(trimmed)
}

// finalCleanup 整体收尾：压缩空行、收紧标点空白、去除行尾空格
func finalCleanup(text string) string {
	if text == "" {
		return ""
	}

	text = excessNewlines.ReplaceAllString(text, "\n\n")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = spaceAfterPunct.ReplaceAllString(text, "$1 ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// RemoveTableArtifacts 去除表格边框残留字符
func RemoveTableArtifacts(text string) string {
	text = tableArtifacts.ReplaceAllString(text, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
