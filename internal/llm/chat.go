package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aihub/ragpdf-go/internal/errors"
	"github.com/aihub/ragpdf-go/internal/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const answerPromptTemplate = `Use the following context to answer the question. The context includes document content and metadata about the document itself (such as page count, author, creation date, etc.).

For questions about the document type or general document characteristics, you may infer from content structure and common patterns (e.g., sections like "Experience", "Education", "Skills" indicate a resume; tables with amounts and line items suggest an invoice; numbered sections suggest a report or article).

For specific factual information, only use what's explicitly stated in the context.

If the information is not present in the context and cannot be reasonably inferred from document structure or patterns, answer: "The document does not contain this information."

Context:
%s

Question:
%s

Answer:
`

const refinePromptTemplate = `Rewrite the following question to make it clearer and more specific for searching a document. Keep the original intent. Return only the rewritten question, nothing else.

Question: %s`

// ChatClient 定义问答生成接口
type ChatClient interface {
	// AnswerQuestion 基于检索到的上下文回答问题
	AnswerQuestion(ctx context.Context, question string, contextChunks []string) (string, error)
	// RefineQuestion 改写问题以提升检索效果，失败时原样返回
	RefineQuestion(ctx context.Context, question string) string
	Ready() bool
}

// OpenAIChatClient 使用OpenAI Chat Completions API
type OpenAIChatClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIChatClient 创建对话客户端，baseURL为空时使用官方端点
func NewOpenAIChatClient(apiKey, baseURL, model string) *OpenAIChatClient {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &OpenAIChatClient{}
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	// 生成调用不允许无限期挂起
	cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	return &OpenAIChatClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *OpenAIChatClient) Ready() bool {
	return c.client != nil
}

// AnswerQuestion 组合上下文和问题调用模型生成答案
//
// 上下文为空时直接返回校验错误，不触发模型调用。
func (c *OpenAIChatClient) AnswerQuestion(ctx context.Context, question string, contextChunks []string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.NewValidationError("Question cannot be empty")
	}
	if len(contextChunks) == 0 {
		return "", errors.NewValidationError("No context chunks provided. Please upload and index a PDF first.")
	}
	if c.client == nil {
		return "", errors.NewSystemError(errors.ErrCodeExternalService, "Chat provider not configured")
	}

	contextBlock := strings.Join(contextChunks, "\n\n")
	prompt := fmt.Sprintf(answerPromptTemplate, contextBlock, question)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", classifyProviderError(err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.NewSystemError(errors.ErrCodeExternalService, "Model returned an empty response")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.NewSystemError(errors.ErrCodeExternalService, "Model returned an empty response")
	}

	return answer, nil
}

// RefineQuestion 请求模型改写问题，任何异常都回退到原始问题
//
// 改写结果过短、过长或与原问题一致时同样回退，调用方无需感知失败。
func (c *OpenAIChatClient) RefineQuestion(ctx context.Context, question string) string {
	if c.client == nil {
		return question
	}
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return question
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(refinePromptTemplate, trimmed)},
		},
	})
	if err != nil {
		logger.Debug("问题改写失败，使用原始问题", zap.Error(err))
		return question
	}
	if len(resp.Choices) == 0 {
		return question
	}

	refined := strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`)
	if !AcceptRefinement(trimmed, refined) {
		return question
	}

	logger.Debug("问题改写完成", zap.String("original", trimmed), zap.String("refined", refined))
	return refined
}

// AcceptRefinement 判断改写结果是否可用
//
// 过短说明模型没有给出完整问题，过长说明跑题了，
// 与原问题一致则改写没有意义。
func AcceptRefinement(original, refined string) bool {
	if len(refined) < 10 || len(refined) > 500 {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(original), strings.TrimSpace(refined))
}

// classifyProviderError 将底层API错误映射为带类型的应用错误
func classifyProviderError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return errors.NewExternalError(errors.ErrCodeProviderAuthFailed,
				"Authentication with the language model provider failed. Check your API key.").WithCause(err)
		case 429:
			return errors.NewBusinessError(errors.ErrCodeTooManyRequests,
				"Language model rate limit exceeded. Please try again later.").WithCause(err)
		default:
			return errors.NewExternalError(errors.ErrCodeProviderAPIError,
				fmt.Sprintf("Language model request failed: %s", apiErr.Message)).WithCause(err)
		}
	}

	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return errors.NewExternalError(errors.ErrCodeConnectionFailed,
			"Failed to connect to the language model provider. Check your network connection.").WithCause(err)
	}

	return errors.NewExternalError(errors.ErrCodeExternalService,
		"Unexpected error during answer generation").WithCause(err)
}
