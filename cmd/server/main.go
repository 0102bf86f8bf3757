package main

import (
	"log"
	"strconv"

	"github.com/aihub/ragpdf-go/app/bootstrap"
	"github.com/aihub/ragpdf-go/app/router"
	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/aihub/ragpdf-go/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	web.BConfig.AppName = "ragpdf"
	web.BConfig.CopyRequestBody = true
	web.BConfig.MaxMemory = config.AppConfig.FileUpload.MaxSize
	if port, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("启动HTTP服务", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
