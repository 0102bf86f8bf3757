package extract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aihub/ragpdf-go/internal/logger"
	"github.com/unidoc/unipdf/v3/model"
	"github.com/unidoc/unipdf/v3/render"
	"go.uber.org/zap"
)

// OCREngine 基于tesseract命令行的OCR引擎
//
// tesseract无法直接读取PDF，先用unipdf把页面渲染为PNG，再以TSV模式
// 调用tesseract拿到逐词置信度。
type OCREngine struct {
	dpi       int
	language  string
	available bool
}

// NewOCREngine 创建OCR引擎并探测tesseract是否可用
func NewOCREngine(dpi int, language string) *OCREngine {
	if dpi <= 0 {
		dpi = 300
	}
	if language == "" {
		language = "eng"
	}

	_, err := exec.LookPath("tesseract")
	if err != nil {
		logger.Warn("tesseract不可用，OCR回退被禁用")
	}

	return &OCREngine{
		dpi:       dpi,
		language:  language,
		available: err == nil,
	}
}

// Available 返回tesseract是否在PATH中
func (e *OCREngine) Available() bool {
	return e != nil && e.available
}

// RecognizePage 渲染页面并识别文本，返回文本与平均置信度(0-100)
func (e *OCREngine) RecognizePage(ctx context.Context, page *model.PdfPage) (string, float64, error) {
	if !e.Available() {
		return "", 0, fmt.Errorf("tesseract not available")
	}

	imgPath, cleanup, err := e.renderPage(page)
	if err != nil {
		return "", 0, err
	}
	defer cleanup()

	return e.recognizeImage(ctx, imgPath)
}

// renderPage 把页面渲染成临时PNG文件
func (e *OCREngine) renderPage(page *model.PdfPage) (string, func(), error) {
	device := render.NewImageDevice()
	// 按DPI换算输出宽度，A4约8.27英寸宽
	device.OutputWidth = int(float64(e.dpi) * 8.27)

	img, err := device.Render(page)
	if err != nil {
		return "", nil, fmt.Errorf("failed to render page: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "ragpdf-ocr-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	imgPath := filepath.Join(tmpDir, "page.png")
	f, err := os.Create(imgPath)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return imgPath, cleanup, nil
}

// recognizeImage 以TSV模式运行tesseract并汇总逐词结果，ctx取消时进程被终止
func (e *OCREngine) recognizeImage(ctx context.Context, imgPath string) (string, float64, error) {
	cmd := exec.CommandContext(ctx, "tesseract", imgPath, "stdout", "-l", e.language, "--psm", "6", "tsv")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("tesseract failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	text, confidence := parseTSV(out.String())
	logger.Debug("OCR识别完成",
		zap.Int("chars", len(text)),
		zap.Float64("confidence", confidence))

	return text, confidence, nil
}

// parseTSV 解析tesseract的TSV输出，只统计置信度为正的词
func parseTSV(tsv string) (string, float64) {
	var words []string
	var confSum float64
	var confCount int

	for _, line := range strings.Split(tsv, "\n") {
		fields := strings.Split(line, "\t")
		// TSV格式：level page block par line word left top width height conf text
		if len(fields) < 12 {
			continue
		}

		conf, err := strconv.ParseFloat(fields[10], 64)
		if err != nil || conf <= 0 {
			continue
		}

		word := strings.TrimSpace(fields[11])
		if word == "" {
			continue
		}

		words = append(words, word)
		confSum += conf
		confCount++
	}

	if confCount == 0 {
		return "", 0
	}
	return strings.Join(words, " "), confSum / float64(confCount)
}
