package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	apperrors "github.com/aihub/ragpdf-go/internal/errors"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIChatClient_EmptyKeyNotReady(t *testing.T) {
	c := NewOpenAIChatClient("", "", "")
	assert.False(t, c.Ready())

	c = NewOpenAIChatClient("sk-test", "", "")
	assert.True(t, c.Ready())
}

func TestAnswerQuestion_Validation(t *testing.T) {
	c := NewOpenAIChatClient("", "", "")
	ctx := context.Background()

	_, err := c.AnswerQuestion(ctx, "   ", []string{"some context"})
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPCode)

	// 无上下文时不触发模型调用，直接返回校验错误
	_, err = c.AnswerQuestion(ctx, "What is this about?", nil)
	require.Error(t, err)
	appErr = apperrors.GetAppError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPCode)
	assert.Contains(t, appErr.Message, "upload and index a PDF")
}

func TestRefineQuestion_NoClientFallsBack(t *testing.T) {
	c := NewOpenAIChatClient("", "", "")

	question := "What does the contract say about termination?"
	assert.Equal(t, question, c.RefineQuestion(context.Background(), question))
	assert.Equal(t, "", c.RefineQuestion(context.Background(), ""))
}

func TestAcceptRefinement(t *testing.T) {
	original := "What is the termination clause?"

	cases := []struct {
		name    string
		refined string
		want    bool
	}{
		{"usable rewrite", "What are the termination conditions stated in the contract?", true},
		{"too short", "Why?", false},
		{"too long", strings.Repeat("termination ", 50), false},
		{"identical", original, false},
		{"identical ignoring case", strings.ToUpper(original), false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AcceptRefinement(original, tc.refined))
		})
	}
}

func TestClassifyProviderError(t *testing.T) {
	// 认证失败与一般调用失败的错误码必须可区分
	auth := classifyProviderError(&openai.APIError{HTTPStatusCode: 401, Message: "bad key"})
	appErr := apperrors.GetAppError(auth)
	assert.Equal(t, apperrors.ErrCodeProviderAuthFailed, appErr.Code)
	assert.Contains(t, appErr.Message, "Authentication")

	rate := classifyProviderError(&openai.APIError{HTTPStatusCode: 429, Message: "slow down"})
	appErr = apperrors.GetAppError(rate)
	assert.Equal(t, apperrors.ErrCodeTooManyRequests, appErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, appErr.HTTPCode)

	generic := classifyProviderError(&openai.APIError{HTTPStatusCode: 500, Message: "server error"})
	appErr = apperrors.GetAppError(generic)
	assert.Equal(t, apperrors.ErrCodeProviderAPIError, appErr.Code)
	assert.Contains(t, appErr.Message, "server error")

	conn := classifyProviderError(&openai.RequestError{Err: errors.New("dial tcp: connection refused")})
	appErr = apperrors.GetAppError(conn)
	assert.Equal(t, apperrors.ErrCodeConnectionFailed, appErr.Code)

	other := classifyProviderError(errors.New("boom"))
	appErr = apperrors.GetAppError(other)
	assert.Equal(t, apperrors.ErrCodeExternalService, appErr.Code)
}
