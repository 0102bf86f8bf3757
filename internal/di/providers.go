package di

import (
	"fmt"
	"time"

	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/aihub/ragpdf-go/internal/database"
	"github.com/aihub/ragpdf-go/internal/embedding"
	"github.com/aihub/ragpdf-go/internal/extract"
	"github.com/aihub/ragpdf-go/internal/jobs"
	"github.com/aihub/ragpdf-go/internal/llm"
	"github.com/aihub/ragpdf-go/internal/pipeline"
	"github.com/aihub/ragpdf-go/internal/repository"
	"github.com/aihub/ragpdf-go/internal/storage"
	"github.com/aihub/ragpdf-go/internal/vectorstore"
	"go.uber.org/dig"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 注册配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.AppConfig
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 注册文件存储
	if err := container.Provide(func(cfg *config.Config) (storage.Store, error) {
		return storage.NewStore(cfg.Storage)
	}); err != nil {
		return err
	}

	// 注册任务状态存储
	if err := container.Provide(func(cfg *config.Config) *jobs.Store {
		return jobs.NewStore(database.RedisClient, time.Duration(cfg.Redis.JobTTL)*time.Second)
	}); err != nil {
		return err
	}

	// 注册文档登记仓库，未启用数据库时为nil
	if err := container.Provide(func(cfg *config.Config) repository.DocumentRepository {
		if !cfg.Database.Enabled || database.DB == nil {
			return nil
		}
		return repository.NewDocumentRepository(database.DB)
	}); err != nil {
		return err
	}

	// 注册向量化客户端
	if err := container.Provide(func(cfg *config.Config) embedding.Embedder {
		return embedding.NewOpenAIEmbedder(cfg.AI.OpenAIAPIKey, cfg.AI.BaseURL, cfg.AI.EmbeddingModel)
	}); err != nil {
		return err
	}

	// 注册对话客户端
	if err := container.Provide(func(cfg *config.Config) llm.ChatClient {
		return llm.NewOpenAIChatClient(cfg.AI.OpenAIAPIKey, cfg.AI.BaseURL, cfg.AI.ChatModel)
	}); err != nil {
		return err
	}

	// 注册向量存储
	if err := container.Provide(func(cfg *config.Config) (vectorstore.VectorStore, error) {
		return vectorstore.NewVectorStore(cfg.VectorStore)
	}); err != nil {
		return err
	}

	// 注册文本提取器
	if err := container.Provide(func(cfg *config.Config) extract.FileExtractor {
		return pipeline.NewExtractorFromConfig(cfg)
	}); err != nil {
		return err
	}

	// 注册处理流水线
	if err := container.Provide(pipeline.NewPDFPipeline); err != nil {
		return err
	}

	if err := container.Provide(pipeline.NewRAGPipeline); err != nil {
		return err
	}

	return nil
}
