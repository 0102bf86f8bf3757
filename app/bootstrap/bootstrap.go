package bootstrap

import (
	"log"

	"github.com/aihub/ragpdf-go/app/controllers"
	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/aihub/ragpdf-go/internal/database"
	"github.com/aihub/ragpdf-go/internal/di"
	"github.com/aihub/ragpdf-go/internal/embedding"
	"github.com/aihub/ragpdf-go/internal/jobs"
	"github.com/aihub/ragpdf-go/internal/llm"
	"github.com/aihub/ragpdf-go/internal/logger"
	"github.com/aihub/ragpdf-go/internal/pipeline"
	"github.com/aihub/ragpdf-go/internal/queue"
	"github.com/aihub/ragpdf-go/internal/repository"
	"github.com/aihub/ragpdf-go/internal/storage"
	"github.com/aihub/ragpdf-go/internal/vectorstore"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	Services *controllers.AppServices
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// Init bootstraps configuration, logger, database connections and other shared
// infrastructure components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}

	// Initialize Redis. The job store depends on it, so failure is fatal.
	if _, err := database.InitRedis(); err != nil {
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		return database.CloseRedis()
	})

	// Initialize the document registry database (optional).
	if config.AppConfig.Database.Enabled {
		if _, err := database.InitDB(); err != nil {
			logger.Warn("数据库初始化失败，文档登记功能不可用", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return database.CloseDB()
			})
		}
	}

	// Initialize the Kafka producer (optional). Uploads fall back to
	// in-process handling when the queue is unavailable.
	if config.AppConfig.Kafka.Enabled {
		if err := queue.InitProducer(config.AppConfig.Kafka.Brokers, config.AppConfig.Kafka.Topic); err != nil {
			logger.Warn("Kafka生产者初始化失败，上传将降级为本地处理", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return queue.GetProducer().Close()
			})
		}
	}

	// Resolve the service graph through the container so the server, the
	// worker and auxiliary tooling share the same instances.
	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		return nil, err
	}
	if err := container.Invoke(func(
		cfg *config.Config,
		files storage.Store,
		jobStore *jobs.Store,
		docRepo repository.DocumentRepository,
		embedder embedding.Embedder,
		chat llm.ChatClient,
		vectors vectorstore.VectorStore,
		pdf *pipeline.PDFPipeline,
		rag *pipeline.RAGPipeline,
	) {
		app.Services = &controllers.AppServices{
			Config:   cfg,
			Files:    files,
			Jobs:     jobStore,
			Producer: queue.GetProducer(),
			PDF:      pdf,
			RAG:      rag,
			Vectors:  vectors,
			Embedder: embedder,
			Chat:     chat,
			Docs:     docRepo,
		}
	}); err != nil {
		return nil, err
	}
	controllers.SetServices(app.Services)

	globalApp = app
	logger.Info("应用初始化完成",
		zap.String("vector_store", config.AppConfig.VectorStore.Provider),
		zap.Bool("kafka", config.AppConfig.Kafka.Enabled),
		zap.Bool("database", config.AppConfig.Database.Enabled))

	return app, nil
}

// Shutdown releases resources acquired during Init in reverse order.
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Warn("清理资源失败", zap.Error(err))
		}
	}
	logger.Sync()
}
