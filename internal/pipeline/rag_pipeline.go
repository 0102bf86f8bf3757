package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/aihub/ragpdf-go/internal/embedding"
	"github.com/aihub/ragpdf-go/internal/errors"
	"github.com/aihub/ragpdf-go/internal/llm"
	"github.com/aihub/ragpdf-go/internal/logger"
	"github.com/aihub/ragpdf-go/internal/metrics"
	"github.com/aihub/ragpdf-go/internal/repository"
	"github.com/aihub/ragpdf-go/internal/vectorstore"
	"go.uber.org/zap"
)

const maxQuestionLength = 1000

// Answer 问答结果，ContextUsed为实际送入生成服务的上下文块
type Answer struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	ContextUsed []string `json:"context_used"`
}

// RAGPipeline 检索增强问答流水线
type RAGPipeline struct {
	embedder        embedding.Embedder
	vectors         vectorstore.VectorStore
	chat            llm.ChatClient
	docRepo         repository.DocumentRepository // 未启用数据库时为nil
	topK            int
	refineQuestions bool
	includeMetadata bool
	maxContextChars int
}

// NewRAGPipeline 根据配置组装问答流水线
func NewRAGPipeline(
	cfg *config.Config,
	embedder embedding.Embedder,
	vectors vectorstore.VectorStore,
	chat llm.ChatClient,
	docRepo repository.DocumentRepository,
) *RAGPipeline {
	topK := cfg.RAG.TopK
	if topK <= 0 {
		topK = 5
	}
	return &RAGPipeline{
		embedder:        embedder,
		vectors:         vectors,
		chat:            chat,
		docRepo:         docRepo,
		topK:            topK,
		refineQuestions: cfg.RAG.RefineQuestions,
		includeMetadata: cfg.RAG.IncludeDocMetadata,
		maxContextChars: cfg.RAG.MaxContextChars,
	}
}

// Ask 回答关于已入库文档的问题
//
// 检索用改写后的问题，生成答案时仍使用用户的原始问题。
// 没有检索到任何上下文时直接返回校验错误，不调用生成服务。
func (p *RAGPipeline) Ask(ctx context.Context, question string) (*Answer, error) {
	started := time.Now()
	defer func() {
		metrics.QuestionDuration.Observe(time.Since(started).Seconds())
	}()

	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		metrics.QuestionsAnswered.WithLabelValues("error").Inc()
		return nil, errors.NewValidationError("Question cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxQuestionLength {
		metrics.QuestionsAnswered.WithLabelValues("error").Inc()
		return nil, errors.NewInvalidInputError("question",
			fmt.Sprintf("must be at most %d characters", maxQuestionLength))
	}

	query := trimmed
	if p.refineQuestions && p.chat != nil {
		query = p.chat.RefineQuestion(ctx, trimmed)
	}

	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		metrics.QuestionsAnswered.WithLabelValues("error").Inc()
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.NewExternalError(errors.ErrCodeExternalService, "Failed to embed question").WithCause(err)
	}

	matches, err := p.vectors.Search(ctx, vector, p.topK)
	if err != nil {
		metrics.QuestionsAnswered.WithLabelValues("error").Inc()
		return nil, errors.NewSystemError(errors.ErrCodeExternalService, "Vector search failed").WithCause(err)
	}
	if len(matches) == 0 {
		metrics.QuestionsAnswered.WithLabelValues("no_context").Inc()
		return nil, errors.NewValidationError("No context chunks provided. Please upload and index a PDF first.")
	}

	chunks := p.buildContext(ctx, matches)

	answer, err := p.chat.AnswerQuestion(ctx, trimmed, chunks)
	if err != nil {
		metrics.QuestionsAnswered.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.QuestionsAnswered.WithLabelValues("ok").Inc()
	logger.Info("问答完成",
		zap.Int("context_chunks", len(matches)),
		zap.Duration("elapsed", time.Since(started)))

	return &Answer{
		Question:    trimmed,
		Answer:      answer,
		ContextUsed: chunks,
	}, nil
}

// buildContext 把检索命中组装成带编号的上下文块
//
// 第一条命中的来源文档若有登记元数据，把摘要放在上下文最前面，
// 让模型能回答页数、作者这类关于文档本身的问题。
func (p *RAGPipeline) buildContext(ctx context.Context, matches []vectorstore.SearchMatch) []string {
	chunks := make([]string, 0, len(matches)+1)

	if p.includeMetadata {
		if summary := p.metadataSummary(ctx, matches[0].Source); summary != "" {
			chunks = append(chunks, summary)
		}
	}

	total := 0
	for i, match := range matches {
		entry := fmt.Sprintf("[Chunk %d] %s", i+1, match.Text)
		if p.maxContextChars > 0 && total+len(entry) > p.maxContextChars && len(chunks) > 0 {
			break
		}
		total += len(entry)
		chunks = append(chunks, entry)
	}

	return chunks
}

func (p *RAGPipeline) metadataSummary(ctx context.Context, source string) string {
	if p.docRepo == nil || source == "" {
		return ""
	}

	doc, err := p.docRepo.GetByFilename(ctx, source)
	if err != nil {
		logger.Debug("查询文档元数据失败", zap.String("filename", source), zap.Error(err))
		return ""
	}
	if doc == nil {
		return ""
	}

	parts := []string{fmt.Sprintf("Document metadata: filename %q", doc.Filename)}
	if doc.PageCount > 0 {
		parts = append(parts, fmt.Sprintf("%d pages", doc.PageCount))
	}
	if doc.Title != "" {
		parts = append(parts, fmt.Sprintf("title %q", doc.Title))
	}
	if doc.Author != "" {
		parts = append(parts, fmt.Sprintf("author %q", doc.Author))
	}
	if doc.CreationDate != "" {
		parts = append(parts, "created "+doc.CreationDate)
	}
	if doc.SizeBytes > 0 {
		parts = append(parts, fmt.Sprintf("%d bytes", doc.SizeBytes))
	}

	return strings.Join(parts, ", ") + "."
}
