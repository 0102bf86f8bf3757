package controllers

import (
	"context"
	"time"

	"github.com/aihub/ragpdf-go/internal/database"
)

// HealthController 健康检查
type HealthController struct {
	BaseController
	services *AppServices
}

func (c *HealthController) Prepare() {
	if c.services == nil {
		c.services = GetServices()
	}
}

// Health 返回各依赖组件的可用状态
func (c *HealthController) Health() {
	components := map[string]interface{}{}

	ctx, cancel := context.WithTimeout(c.Ctx.Request.Context(), 2*time.Second)
	defer cancel()

	redisOK := false
	if database.RedisClient != nil {
		redisOK = database.RedisClient.Ping(ctx).Err() == nil
	}
	components["redis"] = redisOK

	if c.services != nil {
		if c.services.Vectors != nil {
			components["vector_store"] = c.services.Vectors.Ready()
		}
		if c.services.Embedder != nil {
			components["embedder"] = c.services.Embedder.Ready()
		}
		if c.services.Chat != nil {
			components["chat"] = c.services.Chat.Ready()
		}
		components["kafka_enabled"] = c.services.Config.Kafka.Enabled
		components["database_enabled"] = c.services.Config.Database.Enabled
	}

	c.JSONSuccess(map[string]interface{}{
		"status":     "ok",
		"components": components,
	})
}

// RootController 服务根路径
type RootController struct {
	BaseController
}

// Index 返回服务标识
func (c *RootController) Index() {
	c.JSONSuccess(map[string]interface{}{
		"service": "ragpdf-go",
		"status":  "running",
	})
}
