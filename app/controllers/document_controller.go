package controllers

import (
	"net/http"
	"strings"
)

// DocumentController 已入库文档的查询和删除
type DocumentController struct {
	BaseController
	services *AppServices
}

func (c *DocumentController) Prepare() {
	if c.services == nil {
		c.services = GetServices()
	}
}

// List 分页返回文档登记信息，未启用数据库时返回提示
func (c *DocumentController) List() {
	docRepo := c.services.Docs
	if docRepo == nil {
		c.JSONError(http.StatusNotImplemented, "Document registry requires a configured database")
		return
	}

	page, _ := c.GetInt("page", 1)
	limit, _ := c.GetInt("limit", 20)

	docs, total, err := docRepo.List(c.Ctx.Request.Context(), page, limit)
	if err != nil {
		c.JSONError(http.StatusInternalServerError, "Failed to list documents")
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"documents": docs,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// Delete 删除某个文件的索引记录和登记信息
func (c *DocumentController) Delete() {
	filename := strings.TrimSpace(c.Ctx.Input.Param(":filename"))
	if filename == "" {
		c.JSONError(http.StatusBadRequest, "Filename is required")
		return
	}

	if err := c.services.PDF.Remove(c.Ctx.Request.Context(), filename); err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"filename": filename,
		"deleted":  true,
	})
}
