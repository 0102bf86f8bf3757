package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	apperrors "github.com/aihub/ragpdf-go/internal/errors"
	"github.com/aihub/ragpdf-go/internal/layout"
	"github.com/aihub/ragpdf-go/internal/logger"
	"github.com/aihub/ragpdf-go/internal/storage"
	pdfextractor "github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"
)

// Options 提取器配置
type Options struct {
	MinTextLength int     // 单页文本低于该长度时触发OCR回退
	OCRConfidence float64 // OCR平均置信度低于该值时记录警告
	ForceOCR      bool
	MaxParallel   int
}

// FileExtractor 整篇PDF的文本提取接口
type FileExtractor interface {
	ExtractFile(ctx context.Context, src storage.FileSource) (*Result, error)
}

// Extractor PDF文本提取器，原生提取失败或质量差时回退到OCR
type Extractor struct {
	opts     Options
	ocr      *OCREngine       // nil时不做OCR回退
	analyzer *layout.Analyzer // nil时不做多栏重排
}

// NewExtractor 创建提取器
func NewExtractor(opts Options, ocr *OCREngine, analyzer *layout.Analyzer) *Extractor {
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = 50
	}
	if opts.OCRConfidence <= 0 {
		opts.OCRConfidence = 60
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 4
	}
	return &Extractor{opts: opts, ocr: ocr, analyzer: analyzer}
}

// ExtractFile 提取整篇PDF的文本
//
// 文件不存在、空文件、加密、损坏等情况返回致命错误，单页失败只记录
// 在对应的PageResult里，不中断其余页面。
func (e *Extractor) ExtractFile(ctx context.Context, src storage.FileSource) (*Result, error) {
	size, err := src.Size()
	if err != nil {
		return nil, apperrors.NewExtractionError(apperrors.ErrCodeFileNotFound,
			fmt.Sprintf("PDF file not found: %s", src.Filename())).WithCause(err)
	}
	if size == 0 {
		return nil, apperrors.NewExtractionError(apperrors.ErrCodeEmptyFile,
			"PDF file is empty (0 bytes)")
	}

	f, err := src.Open()
	if err != nil {
		return nil, apperrors.NewExtractionError(apperrors.ErrCodeFileNotFound,
			fmt.Sprintf("PDF file not found: %s", src.Filename())).WithCause(err)
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	encrypted, err := pdfReader.IsEncrypted()
	if err != nil {
		return nil, classifyOpenError(err)
	}
	if encrypted {
		ok, err := pdfReader.Decrypt([]byte(""))
		if err != nil || !ok {
			return nil, apperrors.NewExtractionError(apperrors.ErrCodePasswordProtected,
				"PDF is password-protected. Please provide an unprotected PDF.")
		}
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, classifyOpenError(err)
	}
	if numPages == 0 {
		return nil, apperrors.NewExtractionError(apperrors.ErrCodeNoPages, "PDF has no pages")
	}

	// 预取页面对象，提取工作并行执行，结果按页序写入固定位置
	pages := make([]*model.PdfPage, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			pages[i-1] = nil
			continue
		}
		pages[i-1] = page
	}

	results := make([]PageResult, numPages)
	sem := make(chan struct{}, e.opts.MaxParallel)
	var wg sync.WaitGroup

	for i, page := range pages {
		wg.Add(1)
		go func(idx int, page *model.PdfPage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[idx] = PageResult{PageNumber: idx + 1, Err: err.Error()}
				return
			}
			results[idx] = e.processPage(ctx, page, idx+1)
		}(i, page)
	}
	wg.Wait()

	result := &Result{Pages: results}
	var fullParts []string
	for _, pr := range results {
		result.Stats.TotalPages++
		if !pr.Success {
			result.Stats.FailedPages++
			if pr.Err != "" {
				result.Errors = append(result.Errors, fmt.Sprintf("page %d: %s", pr.PageNumber, pr.Err))
			}
			continue
		}
		switch pr.Method {
		case MethodOCR:
			result.Stats.OCRPages++
		default:
			result.Stats.NativePages++
		}
		if strings.TrimSpace(pr.Text) != "" {
			fullParts = append(fullParts, pr.Text)
		}
	}

	result.FullText = strings.Join(fullParts, "\n\n")
	result.Success = strings.TrimSpace(result.FullText) != ""

	if !result.Success {
		return result, apperrors.NewExtractionError(apperrors.ErrCodeNoUsableText,
			"No text could be extracted from PDF. The PDF might be image-based or empty.")
	}

	logger.Info("PDF文本提取完成",
		zap.String("filename", src.Filename()),
		zap.Int("pages", result.Stats.TotalPages),
		zap.Int("native", result.Stats.NativePages),
		zap.Int("ocr", result.Stats.OCRPages),
		zap.Int("failed", result.Stats.FailedPages))

	return result, nil
}

// processPage 提取单页文本，必要时回退到OCR
func (e *Extractor) processPage(ctx context.Context, page *model.PdfPage, pageNum int) PageResult {
	if page == nil {
		return PageResult{PageNumber: pageNum, Err: "failed to load page"}
	}

	if e.opts.ForceOCR && e.ocr != nil && e.ocr.Available() {
		return e.ocrPage(ctx, page, pageNum)
	}

	text, words, nativeErr := e.nativePage(page)

	if nativeErr != nil || e.isTextQualityPoor(text) {
		if e.ocr != nil && e.ocr.Available() {
			if pr := e.ocrPage(ctx, page, pageNum); pr.Success {
				return pr
			}
		}
		// OCR不可用或失败时，退回已有的原生文本
		if strings.TrimSpace(text) == "" {
			errMsg := "no extractable text"
			if nativeErr != nil {
				errMsg = nativeErr.Error()
			}
			return PageResult{PageNumber: pageNum, Err: errMsg}
		}
	}

	if e.analyzer != nil {
		text = e.analyzer.ReorderColumns(text, words)
	}

	return PageResult{
		PageNumber: pageNum,
		Text:       text,
		Method:     MethodNative,
		Success:    true,
	}
}

// nativePage 用unipdf提取单页文本与单词位置
func (e *Extractor) nativePage(page *model.PdfPage) (string, []layout.Word, error) {
	ex, err := pdfextractor.New(page)
	if err != nil {
		return "", nil, err
	}

	pageText, _, _, err := ex.ExtractPageText()
	if err != nil {
		return "", nil, err
	}

	text := pageText.Text()
	words := wordsFromMarks(pageText, pageHeight(page))
	return text, words, nil
}

// ocrPage 渲染页面并执行OCR
func (e *Extractor) ocrPage(ctx context.Context, page *model.PdfPage, pageNum int) PageResult {
	text, confidence, err := e.ocr.RecognizePage(ctx, page)
	if err != nil {
		return PageResult{PageNumber: pageNum, Err: fmt.Sprintf("ocr failed: %v", err)}
	}
	if strings.TrimSpace(text) == "" {
		return PageResult{PageNumber: pageNum, Err: "ocr produced no text"}
	}

	if confidence < e.opts.OCRConfidence {
		logger.Warn("OCR置信度偏低",
			zap.Int("page", pageNum),
			zap.Float64("confidence", confidence))
	}

	return PageResult{
		PageNumber: pageNum,
		Text:       text,
		Method:     MethodOCR,
		Confidence: &confidence,
		Success:    true,
	}
}

// isTextQualityPoor 判断原生提取的文本是否需要OCR回退
func (e *Extractor) isTextQualityPoor(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if len([]rune(trimmed)) < e.opts.MinTextLength {
		return true
	}

	// 乱码检测：字母数字与空白占比过低
	runes := []rune(text)
	usable := 0
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			usable++
		}
	}
	return float64(usable)/float64(len(runes)) < 0.5
}

// wordsFromMarks 把字符级TextMark聚合为带位置的单词
func wordsFromMarks(pageText *pdfextractor.PageText, height float64) []layout.Word {
	marks := pageText.Marks().Elements()
	if len(marks) == 0 {
		return nil
	}

	var words []layout.Word
	var builder strings.Builder
	var startX, startY float64

	flush := func() {
		if builder.Len() > 0 {
			words = append(words, layout.Word{
				Text: builder.String(),
				X:    startX,
				// PDF坐标系y轴向上，转成距页面顶部的距离
				Y: height - startY,
			})
			builder.Reset()
		}
	}

	for _, mark := range marks {
		if strings.TrimSpace(mark.Text) == "" {
			flush()
			continue
		}
		if builder.Len() == 0 {
			startX = mark.BBox.Llx
			startY = mark.BBox.Ury
		}
		builder.WriteString(mark.Text)
	}
	flush()

	return words
}

// pageHeight 取页面高度，MediaBox缺失时返回0
func pageHeight(page *model.PdfPage) float64 {
	box, err := page.GetMediaBox()
	if err != nil || box == nil {
		return 0
	}
	return box.Ury - box.Lly
}

// classifyOpenError 把unipdf打开失败归类为业务错误码
func classifyOpenError(err error) *apperrors.AppError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "password") || strings.Contains(msg, "encrypted"):
		return apperrors.NewExtractionError(apperrors.ErrCodePasswordProtected,
			"PDF is password-protected. Please provide an unprotected PDF.").WithCause(err)
	case strings.Contains(msg, "corrupt") || strings.Contains(msg, "damaged") ||
		strings.Contains(msg, "invalid") || strings.Contains(msg, "eof"):
		return apperrors.NewExtractionError(apperrors.ErrCodeCorruptedFile,
			fmt.Sprintf("PDF file appears to be corrupted: %v", err)).WithCause(err)
	default:
		return apperrors.NewSystemError(apperrors.ErrCodeExtractionFailed,
			fmt.Sprintf("Failed to extract text from PDF: %v", err)).WithCause(err)
	}
}
