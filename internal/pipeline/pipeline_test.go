package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aihub/ragpdf-go/internal/config"
	apperrors "github.com/aihub/ragpdf-go/internal/errors"
	"github.com/aihub/ragpdf-go/internal/extract"
	"github.com/aihub/ragpdf-go/internal/jobs"
	"github.com/aihub/ragpdf-go/internal/repository"
	"github.com/aihub/ragpdf-go/internal/storage"
	"github.com/aihub/ragpdf-go/internal/vectorstore"
)

type fakeEmbedder struct {
	vector    []float32
	err       error
	lastText  string
	lastBatch []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.lastText = text
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.lastBatch = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }
func (f *fakeEmbedder) Ready() bool     { return true }

type fakeChat struct {
	refined      string
	answer       string
	answerErr    error
	lastQuestion string
	lastChunks   []string
}

func (f *fakeChat) AnswerQuestion(ctx context.Context, question string, contextChunks []string) (string, error) {
	f.lastQuestion = question
	f.lastChunks = contextChunks
	return f.answer, f.answerErr
}

func (f *fakeChat) RefineQuestion(ctx context.Context, question string) string {
	if f.refined != "" {
		return f.refined
	}
	return question
}

func (f *fakeChat) Ready() bool { return true }

type fakeDocRepo struct {
	doc *repository.Document
}

func (f *fakeDocRepo) GetDB() *gorm.DB { return nil }

func (f *fakeDocRepo) Upsert(ctx context.Context, doc *repository.Document) error { return nil }

func (f *fakeDocRepo) GetByFilename(ctx context.Context, filename string) (*repository.Document, error) {
	if f.doc != nil && f.doc.Filename == filename {
		return f.doc, nil
	}
	return nil, nil
}

func (f *fakeDocRepo) List(ctx context.Context, page, limit int) ([]repository.Document, int, error) {
	return nil, 0, nil
}

func (f *fakeDocRepo) UpdateStatus(ctx context.Context, filename, status string, chunkCount int) error {
	return nil
}

func (f *fakeDocRepo) Delete(ctx context.Context, filename string) error { return nil }

// fakeExtractor 返回预置的提取结果，替代真实PDF解析
type fakeExtractor struct {
	result *extract.Result
	err    error
}

func (f *fakeExtractor) ExtractFile(ctx context.Context, src storage.FileSource) (*extract.Result, error) {
	return f.result, f.err
}

func newRAG(store vectorstore.VectorStore, embedder *fakeEmbedder, chat *fakeChat, docRepo repository.DocumentRepository, refine bool) *RAGPipeline {
	cfg := &config.Config{RAG: config.RAGConfig{TopK: 5, RefineQuestions: refine, IncludeDocMetadata: true}}
	return NewRAGPipeline(cfg, embedder, store, chat, docRepo)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	rag := newRAG(vectorstore.NewMemoryVectorStore(), &fakeEmbedder{}, &fakeChat{}, nil, false)

	_, err := rag.Ask(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.GetAppError(err).HTTPCode)
}

func TestAsk_QuestionTooLong(t *testing.T) {
	rag := newRAG(vectorstore.NewMemoryVectorStore(), &fakeEmbedder{}, &fakeChat{}, nil, false)

	_, err := rag.Ask(context.Background(), strings.Repeat("啊", 1001))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.GetAppError(err).HTTPCode)
}

func TestAsk_NoContext(t *testing.T) {
	// 索引为空时不调用生成服务，直接返回校验错误
	chat := &fakeChat{answer: "should not be used"}
	rag := newRAG(vectorstore.NewMemoryVectorStore(), &fakeEmbedder{vector: []float32{1, 0}}, chat, nil, false)

	_, err := rag.Ask(context.Background(), "What is this about?")
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPCode)
	assert.Contains(t, appErr.Message, "upload and index a PDF")
	assert.Empty(t, chat.lastQuestion)
}

func TestAsk_AnswersWithOriginalQuestion(t *testing.T) {
	store := vectorstore.NewMemoryVectorStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []vectorstore.Point{
		{ID: vectorstore.PointID("a.pdf", 0), Vector: []float32{1, 0}, Text: "termination requires 30 days notice", Source: "a.pdf", ChunkIndex: 0},
	}))

	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	chat := &fakeChat{refined: "What are the contract termination conditions?", answer: "30 days notice."}
	rag := newRAG(store, embedder, chat, nil, true)

	original := "what about termination?"
	answer, err := rag.Ask(ctx, original)
	require.NoError(t, err)

	// 检索用改写后的问题，生成用原始问题
	assert.Equal(t, chat.refined, embedder.lastText)
	assert.Equal(t, original, chat.lastQuestion)

	require.Len(t, chat.lastChunks, 1)
	assert.Equal(t, "[Chunk 1] termination requires 30 days notice", chat.lastChunks[0])

	assert.Equal(t, original, answer.Question)
	assert.Equal(t, "30 days notice.", answer.Answer)
	assert.Equal(t, chat.lastChunks, answer.ContextUsed)
}

func TestAsk_MetadataSummaryComesFirst(t *testing.T) {
	store := vectorstore.NewMemoryVectorStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []vectorstore.Point{
		{ID: vectorstore.PointID("a.pdf", 0), Vector: []float32{1, 0}, Text: "chunk body", Source: "a.pdf", ChunkIndex: 0},
	}))

	docRepo := &fakeDocRepo{doc: &repository.Document{
		Filename:  "a.pdf",
		PageCount: 3,
		Title:     "Quarterly Report",
		SizeBytes: 2048,
	}}
	chat := &fakeChat{answer: "ok"}
	rag := newRAG(store, &fakeEmbedder{vector: []float32{1, 0}}, chat, docRepo, false)

	_, err := rag.Ask(ctx, "How many pages does the document have?")
	require.NoError(t, err)

	require.Len(t, chat.lastChunks, 2)
	assert.Contains(t, chat.lastChunks[0], `Document metadata: filename "a.pdf"`)
	assert.Contains(t, chat.lastChunks[0], "3 pages")
	assert.Contains(t, chat.lastChunks[0], `title "Quarterly Report"`)
	assert.Contains(t, chat.lastChunks[0], "2048 bytes")
	assert.Equal(t, "[Chunk 1] chunk body", chat.lastChunks[1])
}

func TestAsk_ContextCapped(t *testing.T) {
	store := vectorstore.NewMemoryVectorStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []vectorstore.Point{
		{ID: vectorstore.PointID("a.pdf", 0), Vector: []float32{1, 0}, Text: strings.Repeat("x", 80), Source: "a.pdf", ChunkIndex: 0},
		{ID: vectorstore.PointID("a.pdf", 1), Vector: []float32{0.9, 0.1}, Text: strings.Repeat("y", 80), Source: "a.pdf", ChunkIndex: 1},
	}))

	chat := &fakeChat{answer: "ok"}
	cfg := &config.Config{RAG: config.RAGConfig{TopK: 5, MaxContextChars: 100}}
	rag := NewRAGPipeline(cfg, &fakeEmbedder{vector: []float32{1, 0}}, store, chat, nil)

	answer, err := rag.Ask(ctx, "anything relevant?")
	require.NoError(t, err)

	// 超出上限的命中被截断，但至少保留一块
	require.Len(t, chat.lastChunks, 1)
	assert.Contains(t, chat.lastChunks[0], "[Chunk 1]")
	assert.Len(t, answer.ContextUsed, 1)
}

func TestAsk_EmbedError(t *testing.T) {
	rag := newRAG(vectorstore.NewMemoryVectorStore(), &fakeEmbedder{err: errors.New("provider down")}, &fakeChat{}, nil, false)

	_, err := rag.Ask(context.Background(), "anything?")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeExternalService, apperrors.GetAppError(err).Code)
}

// existsFailStore 模拟向量库查询故障
type existsFailStore struct {
	vectorstore.VectorStore
}

func (s *existsFailStore) ExistsForSource(ctx context.Context, source string) (bool, error) {
	return false, errors.New("connection refused")
}

func newJobStore(t *testing.T) *jobs.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return jobs.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
}

func TestProcess_AlreadyIndexedShortCircuit(t *testing.T) {
	store := vectorstore.NewMemoryVectorStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []vectorstore.Point{
		{ID: vectorstore.PointID("report.pdf", 0), Vector: []float32{1}, Text: "t", Source: "report.pdf", ChunkIndex: 0},
	}))

	jobStore := newJobStore(t)
	require.NoError(t, jobStore.Create(ctx, "job-1", "report.pdf"))

	p := NewPDFPipeline(&config.Config{}, &fakeExtractor{}, &fakeEmbedder{vector: []float32{1}}, store, jobStore, nil)

	// 短路发生在文本提取之前，空内容也不会报错
	result, err := p.Process(ctx, "job-1", storage.NewBufferSource("report.pdf", nil))
	require.NoError(t, err)
	assert.Equal(t, true, result["already_indexed"])
	assert.Equal(t, 0, result["chunks_indexed"])

	job, err := jobStore.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.EqualValues(t, true, job.Result["already_indexed"])
}

func TestProcess_IndexCheckFailureMarksJobFailed(t *testing.T) {
	ctx := context.Background()
	jobStore := newJobStore(t)
	require.NoError(t, jobStore.Create(ctx, "job-2", "report.pdf"))

	store := &existsFailStore{VectorStore: vectorstore.NewMemoryVectorStore()}
	p := NewPDFPipeline(&config.Config{}, &fakeExtractor{}, &fakeEmbedder{vector: []float32{1}}, store, jobStore, nil)

	_, err := p.Process(ctx, "job-2", storage.NewBufferSource("report.pdf", nil))
	require.Error(t, err)

	job, err := jobStore.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.NotEmpty(t, job.Error)
}

func TestRemove_DeletesOnlyRequestedSource(t *testing.T) {
	store := vectorstore.NewMemoryVectorStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []vectorstore.Point{
		{ID: "x", Vector: []float32{1}, Source: "a.pdf"},
		{ID: "y", Vector: []float32{1}, Source: "b.pdf"},
	}))

	p := NewPDFPipeline(&config.Config{}, &fakeExtractor{}, &fakeEmbedder{vector: []float32{1}}, store, nil, nil)
	require.NoError(t, p.Remove(ctx, "a.pdf"))

	exists, err := store.ExistsForSource(ctx, "a.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.ExistsForSource(ctx, "b.pdf")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProcess_IndexesChunksWithoutRepeatingFooters(t *testing.T) {
	ctx := context.Background()
	jobStore := newJobStore(t)
	require.NoError(t, jobStore.Create(ctx, "job-3", "report.pdf"))

	// 三页原生文本，每页以不同的"Page N"页脚结尾
	pages := make([]extract.PageResult, 3)
	for i := range pages {
		pages[i] = extract.PageResult{
			PageNumber: i + 1,
			Text: fmt.Sprintf("Quarterly revenue grew steadily in region %c during the reporting period.\n"+
				"Operating expenses held flat compared to the previous fiscal year.\nPage %d", 'A'+i, i+1),
			Method:  extract.MethodNative,
			Success: true,
		}
	}
	extractor := &fakeExtractor{result: &extract.Result{
		Success: true,
		Pages:   pages,
		Stats:   extract.Stats{TotalPages: 3, NativePages: 3},
	}}

	store := vectorstore.NewMemoryVectorStore()
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	cfg := &config.Config{
		Pipeline: config.PipelineConfig{ChunkSize: 200, ChunkOverlap: 20},
		Layout:   config.LayoutConfig{HeaderFooterDetection: true},
	}
	p := NewPDFPipeline(cfg, extractor, embedder, store, jobStore, nil)

	result, err := p.Process(ctx, "job-3", storage.NewBufferSource("report.pdf", nil))
	require.NoError(t, err)

	chunks := result["chunks_indexed"].(int)
	require.Greater(t, chunks, 0)
	assert.Equal(t, 3, result["pages"])
	assert.Equal(t, 3, result["native_pages"])

	// 每个分块恰好向量化一次
	assert.Len(t, embedder.lastBatch, chunks)

	// 入库的分块编号连续，且不包含被过滤的页脚
	matches, err := store.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, chunks)
	seen := make(map[int]bool)
	for _, m := range matches {
		seen[m.ChunkIndex] = true
		assert.NotContains(t, m.Text, "Page 1")
		assert.NotContains(t, m.Text, "Page 2")
		assert.NotContains(t, m.Text, "Page 3")
	}
	for i := 0; i < chunks; i++ {
		assert.True(t, seen[i], "missing chunk index %d", i)
	}

	job, err := jobStore.Get(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestProcess_CountsOCRPages(t *testing.T) {
	ctx := context.Background()
	jobStore := newJobStore(t)
	require.NoError(t, jobStore.Create(ctx, "job-4", "scan.pdf"))

	conf := 72.5
	extractor := &fakeExtractor{result: &extract.Result{
		Success: true,
		Pages: []extract.PageResult{
			{
				PageNumber: 1,
				Text:       "The scanned invoice lists a total amount due of one hundred dollars payable within thirty days.",
				Method:     extract.MethodOCR,
				Confidence: &conf,
				Success:    true,
			},
		},
		Stats: extract.Stats{TotalPages: 1, OCRPages: 1},
	}}

	store := vectorstore.NewMemoryVectorStore()
	p := NewPDFPipeline(&config.Config{}, extractor, &fakeEmbedder{vector: []float32{1}}, store, jobStore, nil)

	result, err := p.Process(ctx, "job-4", storage.NewBufferSource("scan.pdf", nil))
	require.NoError(t, err)

	assert.Equal(t, 1, result["ocr_pages"])
	assert.Equal(t, 0, result["native_pages"])
	require.Greater(t, result["chunks_indexed"].(int), 0)

	exists, err := store.ExistsForSource(ctx, "scan.pdf")
	require.NoError(t, err)
	assert.True(t, exists)
}
