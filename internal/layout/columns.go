package layout

import (
	"sort"
	"strings"

	"github.com/aihub/ragpdf-go/internal/logger"
	"go.uber.org/zap"
)

// Word 页面上带位置信息的单词
type Word struct {
	Text string
	X    float64 // 左边缘
	Y    float64 // 距页面顶部的距离
}

// Options 版面分析配置
type Options struct {
	MaxColumns      int
	ColumnGap       float64 // 列聚类的水平距离阈值
	LineThreshold   float64 // 同一行的垂直距离阈值
	MinClusterRatio float64
}

// Analyzer 多栏版面分析器，按阅读顺序重排文本
type Analyzer struct {
	opts Options
}

// NewAnalyzer 创建版面分析器
func NewAnalyzer(opts Options) *Analyzer {
	if opts.MaxColumns <= 0 {
		opts.MaxColumns = 3
	}
	if opts.ColumnGap <= 0 {
		opts.ColumnGap = 50
	}
	if opts.LineThreshold <= 0 {
		opts.LineThreshold = 5
	}
	if opts.MinClusterRatio <= 0 {
		opts.MinClusterRatio = 0.05
	}
	return &Analyzer{opts: opts}
}

// ReorderColumns 检测多栏布局并按列重排文本，无法可靠判定时原样返回
func (a *Analyzer) ReorderColumns(pageText string, words []Word) string {
	// 样本太少时不做判断
	if len(words) < 10 {
		return pageText
	}

	clusters := a.findXClusters(words)
	if len(clusters) <= 1 {
		return pageText
	}

	if len(clusters) > a.opts.MaxColumns {
		clusters = clusters[:a.opts.MaxColumns]
	}

	logger.Debug("检测到多栏布局", zap.Int("columns", len(clusters)))

	pageWidth := 0.0
	for _, w := range words {
		if w.X > pageWidth {
			pageWidth = w.X
		}
	}

	var parts []string
	for i := range clusters {
		// 列边界取相邻聚类中心的中点，避免靠近中心两侧的单词分错列
		left := 0.0
		if i > 0 {
			left = (clusters[i-1] + clusters[i]) / 2
		}
		right := pageWidth + 1
		if i < len(clusters)-1 {
			right = (clusters[i] + clusters[i+1]) / 2
		}
		columnText := a.columnText(words, left, right)
		if strings.TrimSpace(columnText) != "" {
			parts = append(parts, columnText)
		}
	}

	if len(parts) == 0 {
		return pageText
	}
	return strings.Join(parts, "\n\n")
}

// findXClusters 对单词左边缘做单链聚类，返回升序的聚类中心
func (a *Analyzer) findXClusters(words []Word) []float64 {
	xs := make([]float64, 0, len(words))
	for _, w := range words {
		xs = append(xs, w.X)
	}
	sort.Float64s(xs)

	type cluster struct {
		center float64
		size   int
	}

	var clusters []cluster
	current := cluster{center: xs[0], size: 1}
	sum := xs[0]

	for _, x := range xs[1:] {
		if x-current.center <= a.opts.ColumnGap {
			current.size++
			sum += x
			current.center = sum / float64(current.size)
		} else {
			clusters = append(clusters, current)
			current = cluster{center: x, size: 1}
			sum = x
		}
	}
	clusters = append(clusters, current)

	// 过滤过小的聚类，视为噪声
	minSize := int(float64(len(xs)) * a.opts.MinClusterRatio)
	if minSize < 5 {
		minSize = 5
	}

	var centers []float64
	for _, c := range clusters {
		if c.size >= minSize {
			centers = append(centers, c.center)
		}
	}
	sort.Float64s(centers)
	return centers
}

// columnText 取出落在[left, right)范围内的单词并按行重组
func (a *Analyzer) columnText(words []Word, left, right float64) string {
	var column []Word
	for _, w := range words {
		if w.X >= left && w.X < right {
			column = append(column, w)
		}
	}
	if len(column) == 0 {
		return ""
	}

	// 先按纵向再按横向排序，得到阅读顺序
	sort.SliceStable(column, func(i, j int) bool {
		if column[i].Y != column[j].Y {
			return column[i].Y < column[j].Y
		}
		return column[i].X < column[j].X
	})

	var lines []string
	var line []string
	currentY := column[0].Y

	for _, w := range column {
		if abs(w.Y-currentY) <= a.opts.LineThreshold {
			line = append(line, w.Text)
		} else {
			if len(line) > 0 {
				lines = append(lines, strings.Join(line, " "))
			}
			line = []string{w.Text}
			currentY = w.Y
		}
	}
	if len(line) > 0 {
		lines = append(lines, strings.Join(line, " "))
	}

	return strings.Join(lines, "\n")
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
