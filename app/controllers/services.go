package controllers

import (
	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/aihub/ragpdf-go/internal/embedding"
	"github.com/aihub/ragpdf-go/internal/jobs"
	"github.com/aihub/ragpdf-go/internal/llm"
	"github.com/aihub/ragpdf-go/internal/pipeline"
	"github.com/aihub/ragpdf-go/internal/queue"
	"github.com/aihub/ragpdf-go/internal/repository"
	"github.com/aihub/ragpdf-go/internal/storage"
	"github.com/aihub/ragpdf-go/internal/vectorstore"
)

// AppServices 控制器依赖的服务集合，启动时由bootstrap注入
type AppServices struct {
	Config   *config.Config
	Files    storage.Store
	Jobs     *jobs.Store
	Producer *queue.Producer
	PDF      *pipeline.PDFPipeline
	RAG      *pipeline.RAGPipeline
	Vectors  vectorstore.VectorStore
	Embedder embedding.Embedder
	Chat     llm.ChatClient
	Docs     repository.DocumentRepository
}

var appServices *AppServices

// SetServices 注入服务集合，必须在路由注册前调用
func SetServices(s *AppServices) {
	appServices = s
}

// GetServices 获取服务集合
func GetServices() *AppServices {
	return appServices
}
