package controllers

import (
	"net/http"
	"strings"
)

// JobController 查询异步处理任务状态
type JobController struct {
	BaseController
	services *AppServices
}

func (c *JobController) Prepare() {
	if c.services == nil {
		c.services = GetServices()
	}
}

// Get 返回任务状态快照
func (c *JobController) Get() {
	jobID := strings.TrimSpace(c.Ctx.Input.Param(":id"))
	if jobID == "" {
		c.JSONError(http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := c.services.Jobs.Get(c.Ctx.Request.Context(), jobID)
	if err != nil {
		c.JSONError(http.StatusInternalServerError, "Failed to query job status")
		return
	}
	if job == nil {
		c.JSONError(http.StatusNotFound, "Job not found")
		return
	}

	c.JSONSuccess(job)
}
