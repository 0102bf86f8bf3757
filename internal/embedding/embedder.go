package embedding

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aihub/ragpdf-go/internal/errors"
	openai "github.com/sashabaranov/go-openai"
)

// Embedder 定义文本向量化接口
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Ready() bool
}

// NoopEmbedder 默认占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.NewSystemError(errors.ErrCodeExternalService, "Embedding provider not configured")
}

func (n *NoopEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.NewSystemError(errors.ErrCodeExternalService, "Embedding provider not configured")
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

var embeddingDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder 使用OpenAI Embedding API
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    sync.Mutex
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器，baseURL为空时使用官方端点
func NewOpenAIEmbedder(apiKey, baseURL, model string) Embedder {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &NoopEmbedder{}
	}
	if model == "" {
		model = "text-embedding-3-small"
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	// 嵌入调用不允许无限期挂起
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	client := openai.NewClientWithConfig(cfg)

	dims, ok := embeddingDimensions[model]
	if !ok {
		dims = 1536
	}

	return &OpenAIEmbedder{
		client:     client,
		model:      model,
		dimensions: dims,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化，结果顺序与输入一致
//
// 输入校验在调用远端服务之前完成，空列表和空白文本直接拒绝。
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.NewValidationError("No texts provided for embedding")
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, errors.NewValidationError("Embedding input contains an empty text")
		}
	}
	if e.client == nil {
		return nil, errors.NewSystemError(errors.ErrCodeExternalService, "Embedding provider not configured")
	}

	e.limiter.Lock()
	defer e.limiter.Unlock()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, classifyEmbeddingError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.NewSystemError(errors.ErrCodeExternalService,
			"Embedding response size does not match input")
	}

	result := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(result) {
			return nil, errors.NewSystemError(errors.ErrCodeExternalService,
				"Embedding response index out of range")
		}
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		result[item.Index] = vec
	}
	return result, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}

// classifyEmbeddingError 将底层API错误映射为带类型的应用错误
func classifyEmbeddingError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return errors.NewExternalError(errors.ErrCodeProviderAuthFailed,
				"Authentication with the embedding provider failed. Check your API key.").WithCause(err)
		case 429:
			return errors.NewBusinessError(errors.ErrCodeTooManyRequests,
				"Embedding rate limit exceeded. Please try again later.").WithCause(err)
		default:
			return errors.NewExternalError(errors.ErrCodeProviderAPIError,
				fmt.Sprintf("Embedding request failed: %s", apiErr.Message)).WithCause(err)
		}
	}

	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return errors.NewExternalError(errors.ErrCodeConnectionFailed,
			"Failed to connect to the embedding provider. Check your network connection.").WithCause(err)
	}

	return errors.NewExternalError(errors.ErrCodeExternalService,
		"Unexpected error during embedding generation").WithCause(err)
}
