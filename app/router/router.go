package router

import (
	"github.com/aihub/ragpdf-go/app/controllers"
	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/aihub/ragpdf-go/internal/metrics"
	"github.com/beego/beego/v2/server/web"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	web.Router("/api/v1/upload", &controllers.UploadController{}, "post:Upload")
	web.Router("/api/v1/jobs/:id", &controllers.JobController{}, "get:Get")
	web.Router("/api/v1/ask", &controllers.AskController{}, "post:Ask")

	documentController := &controllers.DocumentController{}
	web.Router("/api/v1/documents", documentController, "get:List")
	web.Router("/api/v1/documents/:filename", documentController, "delete:Delete")

	if config.AppConfig != nil && config.AppConfig.Prometheus.Enabled {
		web.Handler("/metrics", metrics.Handler())
	}
}
