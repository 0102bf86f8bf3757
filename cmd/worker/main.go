package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/ragpdf-go/app/bootstrap"
	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/aihub/ragpdf-go/internal/logger"
	"github.com/aihub/ragpdf-go/internal/queue"
	"go.uber.org/zap"
)

const processTimeout = 30 * time.Minute

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap worker: %v", err)
	}
	defer app.Shutdown()

	cfg := config.AppConfig
	if !cfg.Kafka.Enabled {
		log.Fatal("worker requires Kafka, set KAFKA_ENABLED=true")
	}

	if err := queue.InitConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.Topic}); err != nil {
		log.Fatalf("failed to initialize consumer: %v", err)
	}

	consumer := queue.GetConsumer()
	consumer.RegisterHandler(cfg.Kafka.Topic, handleUploadJob(app))
	consumer.Start()

	logger.Info("处理进程启动",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group_id", cfg.Kafka.GroupID))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到退出信号，停止消费")
	if err := consumer.Close(); err != nil {
		logger.Warn("关闭消费者失败", zap.Error(err))
	}
}

// handleUploadJob 返回文档处理消息的处理函数
//
// 处理失败不向消费者返回错误重试，失败状态已写入任务存储。
func handleUploadJob(app *bootstrap.App) queue.MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		msg, err := queue.ParseUploadJobMessage(message.Value)
		if err != nil {
			logger.Error("消息格式错误，丢弃", zap.Error(err))
			return nil
		}

		logger.Info("开始处理文档",
			zap.String("job_id", msg.JobID),
			zap.String("filename", msg.Filename))

		ctx, cancel := context.WithTimeout(ctx, processTimeout)
		defer cancel()

		src, err := app.Services.Files.Fetch(ctx, msg.FilePath)
		if err != nil {
			logger.Error("读取文件失败", zap.String("path", msg.FilePath), zap.Error(err))
			if failErr := app.Services.Jobs.Fail(ctx, msg.JobID, "Stored file could not be read"); failErr != nil {
				logger.Warn("标记任务失败状态出错", zap.String("job_id", msg.JobID), zap.Error(failErr))
			}
			return nil
		}

		if _, err := app.Services.PDF.Process(ctx, msg.JobID, src); err != nil {
			logger.Error("文档处理失败",
				zap.String("job_id", msg.JobID),
				zap.String("filename", msg.Filename),
				zap.Error(err))
		}
		return nil
	}
}
