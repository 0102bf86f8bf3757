package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aihub/ragpdf-go/internal/chunker"
	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/aihub/ragpdf-go/internal/embedding"
	"github.com/aihub/ragpdf-go/internal/errors"
	"github.com/aihub/ragpdf-go/internal/extract"
	"github.com/aihub/ragpdf-go/internal/jobs"
	"github.com/aihub/ragpdf-go/internal/layout"
	"github.com/aihub/ragpdf-go/internal/logger"
	"github.com/aihub/ragpdf-go/internal/metrics"
	"github.com/aihub/ragpdf-go/internal/repository"
	"github.com/aihub/ragpdf-go/internal/storage"
	"github.com/aihub/ragpdf-go/internal/textclean"
	"github.com/aihub/ragpdf-go/internal/vectorstore"
	"go.uber.org/zap"
)

// PDFPipeline 文档处理流水线
//
// 提取、版面过滤、清洗、分块、向量化、入库按顺序执行，
// 任一致命步骤失败则整个任务失败。
type PDFPipeline struct {
	extractor extract.FileExtractor
	hfFilter  *layout.HeaderFooterFilter
	cleaner   *textclean.Cleaner
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	vectors   vectorstore.VectorStore
	jobStore  *jobs.Store
	docRepo   repository.DocumentRepository // 未启用数据库时为nil
}

// NewExtractorFromConfig 按配置构建带OCR回退和多栏重排的提取器
func NewExtractorFromConfig(cfg *config.Config) *extract.Extractor {
	var analyzer *layout.Analyzer
	if cfg.Layout.ColumnDetection {
		analyzer = layout.NewAnalyzer(layout.Options{
			MaxColumns:      cfg.Layout.MaxColumns,
			ColumnGap:       cfg.Layout.ColumnGap,
			LineThreshold:   cfg.Layout.LineThreshold,
			MinClusterRatio: cfg.Layout.MinClusterRatio,
		})
	}
	ocr := extract.NewOCREngine(cfg.Pipeline.OCRDPI, "eng")
	return extract.NewExtractor(extract.Options{
		MinTextLength: cfg.Pipeline.MinTextLength,
		OCRConfidence: cfg.Pipeline.OCRConfidence,
		ForceOCR:      cfg.Pipeline.ForceOCR,
		MaxParallel:   cfg.Pipeline.MaxParallel,
	}, ocr, analyzer)
}

// NewPDFPipeline 根据配置组装流水线，extractor为nil时按配置构建默认提取器
func NewPDFPipeline(
	cfg *config.Config,
	extractor extract.FileExtractor,
	embedder embedding.Embedder,
	vectors vectorstore.VectorStore,
	jobStore *jobs.Store,
	docRepo repository.DocumentRepository,
) *PDFPipeline {
	if extractor == nil {
		extractor = NewExtractorFromConfig(cfg)
	}

	var hfFilter *layout.HeaderFooterFilter
	if cfg.Layout.HeaderFooterDetection {
		hfFilter = layout.NewHeaderFooterFilter(cfg.Layout.HeaderLines)
	}

	return &PDFPipeline{
		extractor: extractor,
		hfFilter:  hfFilter,
		cleaner: textclean.NewCleaner(textclean.Options{
			MinBlockWords:         cfg.Pipeline.MinBlockWords,
			PreserveNumericValues: true,
		}),
		chunker:  chunker.New(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap, cfg.Pipeline.MinBlockWords),
		embedder: embedder,
		vectors:  vectors,
		jobStore: jobStore,
		docRepo:  docRepo,
	}
}

// Process 处理一份上传的PDF并写入向量索引
//
// 已入库的文件直接短路返回，避免重复提取和向量化的开销。
// jobID为空表示同步调用，不更新任务状态。
func (p *PDFPipeline) Process(ctx context.Context, jobID string, src storage.FileSource) (map[string]interface{}, error) {
	started := time.Now()
	filename := src.Filename()

	p.progress(ctx, jobID, 10, "Checking index")
	exists, err := p.vectors.ExistsForSource(ctx, filename)
	if err != nil {
		return nil, p.fail(ctx, jobID, filename,
			errors.NewSystemError(errors.ErrCodeExternalService, "Failed to query vector index").WithCause(err))
	}
	if exists {
		logger.Info("文件已入库，跳过处理", zap.String("filename", filename))
		result := map[string]interface{}{
			"filename":        filename,
			"already_indexed": true,
			"chunks_indexed":  0,
		}
		p.complete(ctx, jobID, result)
		metrics.DocumentsProcessed.WithLabelValues("already_indexed").Inc()
		return result, nil
	}

	p.progress(ctx, jobID, 20, "Extracting text")
	extractStart := time.Now()
	extraction, err := p.extractor.ExtractFile(ctx, src)
	metrics.ObserveStage("extract", extractStart)
	if err != nil {
		return nil, p.fail(ctx, jobID, filename, err)
	}
	for _, page := range extraction.Pages {
		switch {
		case !page.Success:
			metrics.PagesExtracted.WithLabelValues("failed").Inc()
		case page.Method == extract.MethodOCR:
			metrics.PagesExtracted.WithLabelValues(extract.MethodOCR).Inc()
		default:
			metrics.PagesExtracted.WithLabelValues(extract.MethodNative).Inc()
		}
	}

	p.progress(ctx, jobID, 40, "Filtering headers and footers")
	pageTexts := make([]string, 0, len(extraction.Pages))
	for _, page := range extraction.Pages {
		if page.Success {
			pageTexts = append(pageTexts, page.Text)
		}
	}
	if p.hfFilter != nil {
		pageTexts = p.hfFilter.Filter(pageTexts)
	}

	p.progress(ctx, jobID, 50, "Cleaning text")
	cleanStart := time.Now()
	cleaned := make([]string, 0, len(pageTexts))
	for _, text := range pageTexts {
		c := p.cleaner.Clean(text)
		if strings.TrimSpace(c) != "" {
			cleaned = append(cleaned, c)
		}
	}
	metrics.ObserveStage("clean", cleanStart)

	p.progress(ctx, jobID, 60, "Chunking document")
	chunkStart := time.Now()
	pieces := p.chunker.Split(strings.Join(cleaned, "\n\n"))
	metrics.ObserveStage("chunk", chunkStart)
	if len(pieces) == 0 {
		return nil, p.fail(ctx, jobID, filename,
			errors.NewExtractionError(errors.ErrCodeNoUsableText, "No usable text found in the document"))
	}

	p.progress(ctx, jobID, 70, "Generating embeddings")
	embedStart := time.Now()
	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	metrics.ObserveStage("embed", embedStart)
	if err != nil {
		if !errors.IsAppError(err) {
			err = errors.NewExternalError(errors.ErrCodeExternalService, "Embedding generation failed").WithCause(err)
		}
		return nil, p.fail(ctx, jobID, filename, err)
	}

	p.progress(ctx, jobID, 85, "Indexing chunks")
	indexStart := time.Now()
	points := make([]vectorstore.Point, len(pieces))
	for i, piece := range pieces {
		points[i] = vectorstore.Point{
			ID:         vectorstore.PointID(filename, piece.Index),
			Vector:     vectors[i],
			Text:       piece.Text,
			Source:     filename,
			ChunkIndex: piece.Index,
		}
	}
	if err := p.vectors.Upsert(ctx, points); err != nil {
		return nil, p.fail(ctx, jobID, filename,
			errors.NewSystemError(errors.ErrCodeExternalService, "Failed to write vector index").WithCause(err))
	}
	metrics.ObserveStage("index", indexStart)
	metrics.ChunksIndexed.Add(float64(len(points)))

	p.progress(ctx, jobID, 95, "Saving document record")
	p.recordDocument(ctx, src, extraction, len(points))

	result := map[string]interface{}{
		"filename":       filename,
		"chunks_indexed": len(points),
		"pages":          extraction.Stats.TotalPages,
		"native_pages":   extraction.Stats.NativePages,
		"ocr_pages":      extraction.Stats.OCRPages,
		"failed_pages":   extraction.Stats.FailedPages,
	}
	p.complete(ctx, jobID, result)
	metrics.DocumentsProcessed.WithLabelValues("completed").Inc()
	metrics.ObserveStage("total", started)

	logger.Info("文档处理完成",
		zap.String("filename", filename),
		zap.Int("chunks", len(points)),
		zap.Int("pages", extraction.Stats.TotalPages),
		zap.Duration("elapsed", time.Since(started)))

	return result, nil
}

// recordDocument 把文档元数据写入登记表，失败只记录日志不影响结果
func (p *PDFPipeline) recordDocument(ctx context.Context, src storage.FileSource, extraction *extract.Result, chunkCount int) {
	if p.docRepo == nil {
		return
	}

	doc := &repository.Document{
		Filename:   src.Filename(),
		PageCount:  extraction.Stats.TotalPages,
		ChunkCount: chunkCount,
		Status:     "completed",
	}
	if meta, err := extract.ReadMetadata(ctx, src); err == nil && meta != nil {
		doc.Title = meta.Title
		doc.Author = meta.Author
		doc.CreationDate = meta.CreationDate
		doc.Encrypted = meta.Encrypted
		doc.SizeBytes = meta.SizeBytes
	}

	if err := p.docRepo.Upsert(ctx, doc); err != nil {
		logger.Warn("写入文档登记表失败", zap.String("filename", doc.Filename), zap.Error(err))
	}
}

func (p *PDFPipeline) progress(ctx context.Context, jobID string, percent int, message string) {
	if p.jobStore == nil || jobID == "" {
		return
	}
	if err := p.jobStore.Update(ctx, jobID, jobs.StatusProcessing, percent, message); err != nil {
		logger.Warn("更新任务进度失败", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (p *PDFPipeline) complete(ctx context.Context, jobID string, result map[string]interface{}) {
	if p.jobStore == nil || jobID == "" {
		return
	}
	if err := p.jobStore.Complete(ctx, jobID, result); err != nil {
		logger.Warn("标记任务完成失败", zap.String("job_id", jobID), zap.Error(err))
	}
}

// fail 统一记录失败状态并原样返回错误
func (p *PDFPipeline) fail(ctx context.Context, jobID, filename string, cause error) error {
	metrics.DocumentsProcessed.WithLabelValues("failed").Inc()
	logger.Error("文档处理失败", zap.String("filename", filename), zap.Error(cause))

	if p.jobStore != nil && jobID != "" {
		if err := p.jobStore.Fail(ctx, jobID, cause.Error()); err != nil {
			logger.Warn("标记任务失败状态出错", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	if p.docRepo != nil {
		if err := p.docRepo.UpdateStatus(ctx, filename, "failed", 0); err != nil {
			logger.Debug("更新文档状态失败", zap.String("filename", filename), zap.Error(err))
		}
	}
	return cause
}

// Remove 删除某来源文件的全部索引记录和登记信息
func (p *PDFPipeline) Remove(ctx context.Context, filename string) error {
	if err := p.vectors.DeleteBySource(ctx, filename); err != nil {
		return fmt.Errorf("failed to delete vectors for %s: %w", filename, err)
	}
	if p.docRepo != nil {
		if err := p.docRepo.Delete(ctx, filename); err != nil {
			logger.Warn("删除文档登记记录失败", zap.String("filename", filename), zap.Error(err))
		}
	}
	return nil
}
