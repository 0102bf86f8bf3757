package controllers

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aihub/ragpdf-go/internal/logger"
	"github.com/aihub/ragpdf-go/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadController 处理PDF上传
type UploadController struct {
	BaseController
	services *AppServices
}

func (c *UploadController) Prepare() {
	if c.services == nil {
		c.services = GetServices()
	}
}

// Upload 接收PDF文件并登记异步处理任务
//
// 校验通过后立即返回job_id，处理进度通过任务接口查询。
func (c *UploadController) Upload() {
	file, header, err := c.GetFile("file")
	if err != nil || file == nil {
		c.JSONError(http.StatusBadRequest, "No file provided. Use multipart field 'file'.")
		return
	}
	defer file.Close()

	filename := header.Filename
	if msg := validateUploadFilename(filename); msg != "" {
		c.JSONError(http.StatusBadRequest, msg)
		return
	}
	if header.Size <= 0 {
		c.JSONError(http.StatusBadRequest, "Uploaded file is empty")
		return
	}
	maxSize := c.services.Config.FileUpload.MaxSize
	if maxSize > 0 && header.Size > maxSize {
		c.JSONError(http.StatusBadRequest,
			fmt.Sprintf("File too large: %d bytes exceeds limit of %d bytes", header.Size, maxSize))
		return
	}

	ctx := c.Ctx.Request.Context()
	path, err := c.services.Files.Save(ctx, filename, file, header.Size)
	if err != nil {
		logger.Error("保存上传文件失败", zap.String("filename", filename), zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "Failed to store uploaded file")
		return
	}

	jobID := uuid.NewString()
	if err := c.services.Jobs.Create(ctx, jobID, filename); err != nil {
		logger.Error("创建任务记录失败", zap.String("job_id", jobID), zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "Failed to create processing job")
		return
	}

	c.dispatch(jobID, filename, path)

	c.JSON(http.StatusAccepted, map[string]interface{}{
		"success":  true,
		"job_id":   jobID,
		"filename": filename,
		"status":   "queued",
	})
}

// dispatch 把任务发往Kafka，队列不可用时降级为进程内异步处理
func (c *UploadController) dispatch(jobID, filename, path string) {
	if c.services.Config.Kafka.Enabled && queue.GetProducer() != nil {
		msg := &queue.UploadJobMessage{
			JobID:     jobID,
			Filename:  filename,
			FilePath:  path,
			Timestamp: time.Now(),
		}
		err := queue.GetProducer().SendUploadJob(msg)
		if err == nil {
			return
		}
		logger.Warn("发送Kafka消息失败，降级为本地处理", zap.String("job_id", jobID), zap.Error(err))
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		src, err := c.services.Files.Fetch(ctx, path)
		if err != nil {
			logger.Error("读取已保存文件失败", zap.String("path", path), zap.Error(err))
			if failErr := c.services.Jobs.Fail(ctx, jobID, "Stored file could not be read"); failErr != nil {
				logger.Warn("标记任务失败状态出错", zap.String("job_id", jobID), zap.Error(failErr))
			}
			return
		}
		if _, err := c.services.PDF.Process(ctx, jobID, src); err != nil {
			logger.Error("本地处理任务失败", zap.String("job_id", jobID), zap.Error(err))
		}
	}()
}

// validateUploadFilename 校验上传文件名，返回空串表示通过
func validateUploadFilename(filename string) string {
	if strings.TrimSpace(filename) == "" {
		return "Filename cannot be empty"
	}
	if strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return "Filename must not contain path separators"
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "Only PDF files are supported"
	}
	return ""
}
