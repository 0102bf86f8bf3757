package layout

import (
	"regexp"
	"strings"

	"github.com/aihub/ragpdf-go/internal/logger"
	"go.uber.org/zap"
)

// 页眉页脚中除页码外的常见形式
var literalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`© \d{4}`),
	regexp.MustCompile(`(?i)Confidential`),
	regexp.MustCompile(`(?i)Draft`),
}

var (
	standaloneNumber = regexp.MustCompile(`^\d+$`)
	pageLabel        = regexp.MustCompile(`(?i)\bpage\s+\d+\b`)
	pageLabelLine    = regexp.MustCompile(`(?i)^page\s+\d+$`)
)

// pageNumberClass 页码每页都不同，归并为同一候选参与跨页计数
const pageNumberClass = "\x00page-number"

// HeaderFooterFilter 基于跨页重复检测的页眉页脚过滤器
type HeaderFooterFilter struct {
	sampleLines    int // 每页用于检测的首尾行数
	filterWindow   int // 每页实际过滤的首尾行数
	minOccurrences int

	headerPatterns    []string
	footerPatterns    []string
	headerPageNumbers bool
	footerPageNumbers bool
}

// NewHeaderFooterFilter 创建页眉页脚过滤器
func NewHeaderFooterFilter(sampleLines int) *HeaderFooterFilter {
	if sampleLines <= 0 {
		sampleLines = 3
	}
	return &HeaderFooterFilter{
		sampleLines:    sampleLines,
		filterWindow:   5,
		minOccurrences: 3,
	}
}

// Filter 去除多页文本中重复出现的页眉页脚，页数不足时原样返回
func (f *HeaderFooterFilter) Filter(pages []string) []string {
	if len(pages) < 2 {
		return pages
	}

	f.detectRepeatingPatterns(pages)

	filtered := make([]string, len(pages))
	for i, page := range pages {
		filtered[i] = f.filterSinglePage(page)
	}
	return filtered
}

// detectRepeatingPatterns 采样各页首尾行，统计跨页重复的内容
func (f *HeaderFooterFilter) detectRepeatingPatterns(pages []string) {
	f.headerPatterns = nil
	f.footerPatterns = nil
	f.headerPageNumbers = false
	f.footerPageNumbers = false

	// 至少3页才能可靠判断重复
	if len(pages) < 3 {
		return
	}

	firstSamples := make([]string, 0, len(pages))
	lastSamples := make([]string, 0, len(pages))

	for _, page := range pages {
		lines := strings.Split(page, "\n")

		head := lines
		if len(head) > f.sampleLines {
			head = head[:f.sampleLines]
		}
		firstSamples = append(firstSamples, strings.TrimSpace(strings.Join(head, " ")))

		tail := lines
		if len(tail) > f.sampleLines {
			tail = tail[len(tail)-f.sampleLines:]
		}
		lastSamples = append(lastSamples, strings.TrimSpace(strings.Join(tail, " ")))
	}

	f.headerPatterns, f.headerPageNumbers = f.findRepeating(firstSamples)
	f.footerPatterns, f.footerPageNumbers = f.findRepeating(lastSamples)

	logger.Debug("页眉页脚检测完成",
		zap.Int("header_patterns", len(f.headerPatterns)),
		zap.Int("footer_patterns", len(f.footerPatterns)),
		zap.Bool("header_page_numbers", f.headerPageNumbers),
		zap.Bool("footer_page_numbers", f.footerPageNumbers))
}

// findRepeating 返回在足够多样本中出现的候选内容，页码类单独标记
func (f *HeaderFooterFilter) findRepeating(samples []string) ([]string, bool) {
	counts := make(map[string]int)
	order := make([]string, 0)

	for _, sample := range samples {
		for _, p := range extractCandidates(sample) {
			if counts[p] == 0 {
				order = append(order, p)
			}
			counts[p]++
		}
	}

	var patterns []string
	pageNumbers := false
	for _, p := range order {
		if counts[p] < f.minOccurrences {
			continue
		}
		if p == pageNumberClass {
			pageNumbers = true
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns, pageNumbers
}

// extractCandidates 提取可能是页眉页脚的片段，同一样本内去重
//
// "Page 3"和独立页码的数字每页都在变，不能按字面内容计数，
// 统一归并到页码类，跨页重复与否在类级别判断。
func extractCandidates(text string) []string {
	var candidates []string
	seen := make(map[string]bool)
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			candidates = append(candidates, c)
		}
	}

	for _, field := range strings.Fields(text) {
		if standaloneNumber.MatchString(field) {
			add(pageNumberClass)
		}
	}
	if pageLabel.MatchString(text) {
		add(pageNumberClass)
	}

	for _, re := range literalPatterns {
		if m := re.FindString(text); m != "" {
			add(m)
		}
	}

	return candidates
}

// filterSinglePage 只在页面首尾窗口内删除匹配行，保证不清空整页
func (f *HeaderFooterFilter) filterSinglePage(page string) string {
	lines := strings.Split(page, "\n")
	if len(lines) < 3 {
		return page
	}

	headEnd := f.filterWindow
	if headEnd > len(lines) {
		headEnd = len(lines)
	}
	tailStart := len(lines) - f.filterWindow
	if tailStart < headEnd {
		tailStart = headEnd
	}

	var result []string
	for i, line := range lines {
		switch {
		case i < headEnd:
			if f.matches(line, f.headerPatterns, f.headerPageNumbers) {
				continue
			}
		case i >= tailStart:
			if f.matches(line, f.footerPatterns, f.footerPageNumbers) {
				continue
			}
		}
		result = append(result, line)
	}

	filtered := strings.Join(result, "\n")
	if strings.TrimSpace(filtered) == "" {
		return page
	}
	return filtered
}

// matches 判断一行是否命中已检测的字面模式或页码类
func (f *HeaderFooterFilter) matches(line string, patterns []string, pageNumbers bool) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(strings.TrimSpace(p))) {
			return true
		}
	}

	if pageNumbers {
		if pageLabelLine.MatchString(trimmed) {
			return true
		}
		// 看起来像独立页码的短行
		if len(strings.Fields(trimmed)) <= 2 && standaloneNumber.MatchString(trimmed) {
			return true
		}
	}

	return false
}
