package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/aihub/ragpdf-go/internal/embedding"
	"github.com/aihub/ragpdf-go/internal/jobs"
	"github.com/aihub/ragpdf-go/internal/llm"
	"github.com/aihub/ragpdf-go/internal/pipeline"
	"github.com/aihub/ragpdf-go/internal/storage"
	"github.com/aihub/ragpdf-go/internal/vectorstore"
)

// 应用启动依赖容器解析服务对象图，容器必须能独立构建出全部服务
func TestRegisterProviders_ResolvesFullGraph(t *testing.T) {
	prev := config.AppConfig
	config.AppConfig = &config.Config{
		Storage:     config.ObjectStorageConfig{Provider: "local", BasePath: t.TempDir()},
		VectorStore: config.VectorStoreConfig{Provider: "memory"},
	}
	t.Cleanup(func() { config.AppConfig = prev })

	container := dig.New()
	require.NoError(t, RegisterProviders(container))

	err := container.Invoke(func(
		cfg *config.Config,
		files storage.Store,
		jobStore *jobs.Store,
		embedder embedding.Embedder,
		chat llm.ChatClient,
		vectors vectorstore.VectorStore,
		pdf *pipeline.PDFPipeline,
		rag *pipeline.RAGPipeline,
	) {
		assert.Same(t, config.AppConfig, cfg)
		assert.NotNil(t, files)
		assert.NotNil(t, jobStore)
		assert.NotNil(t, embedder)
		assert.NotNil(t, chat)
		assert.NotNil(t, vectors)
		assert.NotNil(t, pdf)
		assert.NotNil(t, rag)
	})
	require.NoError(t, err)
}

// 配置未加载时解析失败而不是panic
func TestRegisterProviders_FailsWithoutConfig(t *testing.T) {
	prev := config.AppConfig
	config.AppConfig = nil
	t.Cleanup(func() { config.AppConfig = prev })

	container := dig.New()
	require.NoError(t, RegisterProviders(container))

	err := container.Invoke(func(cfg *config.Config) {})
	assert.Error(t, err)
}
