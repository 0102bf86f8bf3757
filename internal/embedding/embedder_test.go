package embedding

import (
	"context"
	"errors"
	"net/http"
	"testing"

	apperrors "github.com/aihub/ragpdf-go/internal/errors"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIEmbedder_EmptyKeyReturnsNoop(t *testing.T) {
	e := NewOpenAIEmbedder("", "", "")
	assert.False(t, e.Ready())
	assert.Equal(t, 0, e.Dimensions())

	_, err := e.EmbedBatch(context.Background(), []string{"text"})
	assert.Error(t, err)
}

func TestNewOpenAIEmbedder_Dimensions(t *testing.T) {
	assert.Equal(t, 3072, NewOpenAIEmbedder("sk-test", "", "text-embedding-3-large").Dimensions())
	assert.Equal(t, 1536, NewOpenAIEmbedder("sk-test", "", "text-embedding-3-small").Dimensions())
	// 未知模型退回默认维度
	assert.Equal(t, 1536, NewOpenAIEmbedder("sk-test", "", "some-future-model").Dimensions())
}

func TestEmbedBatch_RejectsInvalidInput(t *testing.T) {
	e := NewOpenAIEmbedder("sk-test", "", "")
	ctx := context.Background()

	// 远端调用前完成校验
	_, err := e.EmbedBatch(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.GetAppError(err).HTTPCode)

	_, err = e.EmbedBatch(ctx, []string{"ok", "   "})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.GetAppError(err).HTTPCode)
}

func TestClassifyEmbeddingError(t *testing.T) {
	// 认证失败与一般调用失败的错误码必须可区分
	auth := classifyEmbeddingError(&openai.APIError{HTTPStatusCode: 401, Message: "bad key"})
	appErr := apperrors.GetAppError(auth)
	assert.Equal(t, apperrors.ErrCodeProviderAuthFailed, appErr.Code)
	assert.Contains(t, appErr.Message, "Authentication")

	rate := classifyEmbeddingError(&openai.APIError{HTTPStatusCode: 429, Message: "slow down"})
	appErr = apperrors.GetAppError(rate)
	assert.Equal(t, apperrors.ErrCodeTooManyRequests, appErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, appErr.HTTPCode)

	generic := classifyEmbeddingError(&openai.APIError{HTTPStatusCode: 500, Message: "server error"})
	appErr = apperrors.GetAppError(generic)
	assert.Equal(t, apperrors.ErrCodeProviderAPIError, appErr.Code)
	assert.NotEqual(t, apperrors.GetAppError(auth).Code, appErr.Code)
	assert.Contains(t, appErr.Message, "server error")

	conn := classifyEmbeddingError(&openai.RequestError{Err: errors.New("dial tcp: connection refused")})
	appErr = apperrors.GetAppError(conn)
	assert.Equal(t, apperrors.ErrCodeConnectionFailed, appErr.Code)
}
