package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/aihub/ragpdf-go/internal/logger"
	"go.uber.org/zap"
)

const (
	// DefaultChunkSize 默认目标分块字符数
	DefaultChunkSize = 800
	// DefaultOverlap 默认相邻分块重叠字符数
	DefaultOverlap = 100

	longBlockThreshold = 2000
	regroupTarget      = 1000
	minChunkLength     = 50
	minAlphaRatio      = 0.3
)

// Chunk 带位置信息的文本分块
type Chunk struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	CharCount int    `json:"char_count"`
	WordCount int    `json:"word_count"`
}

// Chunker 保留文档结构的文本分块器
type Chunker struct {
	Size          int
	Overlap       int
	MinBlockWords int
}

var (
	blockSeparator = regexp.MustCompile(`\n\s*\n`)
	currencyAmount = regexp.MustCompile(`[$€£¥₹₽₩₦₨₪₫]\s*\d`)
	percentage     = regexp.MustCompile(`\d+(\.\d+)?%`)
	footnoteRef    = regexp.MustCompile(`^\s*[\[\(]\d+[\]\)]\s*$`)
	bulletPrefix   = regexp.MustCompile(`^\s*[•●○■□▪▫\-\*]\s`)
	numberedPrefix = regexp.MustCompile(`^\s*\d+[\.\)]\s`)
)

// New 创建分块器，非法参数回退到默认值
func New(size, overlap, minBlockWords int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
	}
	if minBlockWords <= 0 {
		minBlockWords = 3
	}
	return &Chunker{Size: size, Overlap: overlap, MinBlockWords: minBlockWords}
}

// Split 将文本切分为带重叠的分块
//
// 策略：先按空行拆成逻辑块，保留重要的短块，再贪心合并为目标大小的
// 分块，相邻分块之间保留重叠，最后过滤掉低质量分块。
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	blocks := splitIntoLogicalBlocks(text)
	blocks = c.filterBlocks(blocks)
	texts := c.assembleChunks(blocks)

	chunks := make([]Chunk, 0, len(texts))
	for _, t := range texts {
		if !isQualityChunk(t) {
			continue
		}
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      t,
			CharCount: len([]rune(t)),
			WordCount: len(strings.Fields(t)),
		})
	}

	logger.Debug("文本分块完成",
		zap.Int("blocks", len(blocks)),
		zap.Int("chunks", len(chunks)))

	return chunks
}

// splitIntoLogicalBlocks 按空行拆分，过长的块再按行重组
func splitIntoLogicalBlocks(text string) []string {
	blocks := blockSeparator.Split(text, -1)

	var refined []string
	for _, block := range blocks {
		if len([]rune(block)) > longBlockThreshold {
			refined = append(refined, regroupLongBlock(block)...)
			continue
		}
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			refined = append(refined, trimmed)
		}
	}
	return refined
}

// regroupLongBlock 把超长块按行聚合成约1000字符的小块
func regroupLongBlock(block string) []string {
	var result []string
	var group []string

	flush := func() {
		if len(group) > 0 {
			result = append(result, strings.Join(group, " "))
			group = nil
		}
	}

	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) != "" {
			group = append(group, line)
			if len([]rune(strings.Join(group, " "))) > regroupTarget {
				flush()
			}
		} else {
			flush()
		}
	}
	flush()

	return result
}

// filterBlocks 丢弃无价值的短块，保留重要的短内容
func (c *Chunker) filterBlocks(blocks []string) []string {
	var filtered []string
	for _, block := range blocks {
		if len(strings.Fields(block)) >= c.MinBlockWords {
			filtered = append(filtered, block)
			continue
		}
		if isImportantShortBlock(block) {
			filtered = append(filtered, block)
		}
	}
	return filtered
}

// isImportantShortBlock 判断短块是否值得保留
func isImportantShortBlock(block string) bool {
	trimmed := strings.TrimSpace(block)
	if trimmed == "" {
		return false
	}

	// 金额与百分比
	if currencyAmount.MatchString(block) || percentage.MatchString(block) {
		return true
	}

	// 脚注引用
	if footnoteRef.MatchString(trimmed) {
		return true
	}

	// 列表项
	if bulletPrefix.MatchString(block) || numberedPrefix.MatchString(block) {
		return true
	}

	// 全大写的短标题
	words := strings.Fields(block)
	if len(words) <= 5 && isAllUpper(trimmed) {
		return true
	}

	// 极短但完整的句子
	if len(words) >= 2 && len(words) <= 4 {
		switch trimmed[len(trimmed)-1] {
		case '.', '!', '?', ':':
			return true
		}
	}

	return false
}

// isAllUpper 判断文本中的字母是否全部大写
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// assembleChunks 贪心合并逻辑块，分块间保留重叠
func (c *Chunker) assembleChunks(blocks []string) []string {
	if len(blocks) == 0 {
		return nil
	}

	var chunks []string
	var current string

	for _, block := range blocks {
		blockLen := len([]rune(block))
		currentLen := len([]rune(current))

		// 超出目标大小的1.5倍时封存当前分块
		if current != "" && currentLen+blockLen > c.Size*3/2 {
			chunks = append(chunks, strings.TrimSpace(current))
			current = c.overlapTail(current) + " " + block
			continue
		}

		if current == "" {
			current = block
		} else {
			current += " " + block
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}

// overlapTail 取分块末尾的重叠文本，尽量在词边界截断
func (c *Chunker) overlapTail(text string) string {
	runes := []rune(text)
	if len(runes) <= c.Overlap {
		return text
	}

	tail := string(runes[len(runes)-c.Overlap:])
	lastSpace := strings.LastIndex(tail, " ")
	if lastSpace > c.Overlap/2 {
		return tail[:lastSpace]
	}
	return tail
}

// isQualityChunk 过滤过短或几乎没有文字内容的分块
func isQualityChunk(chunk string) bool {
	trimmed := strings.TrimSpace(chunk)
	if len([]rune(trimmed)) < minChunkLength {
		return false
	}

	runes := []rune(chunk)
	letters := 0
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return float64(letters)/float64(len(runes)) >= minAlphaRatio
}
