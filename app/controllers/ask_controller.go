package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// AskRequest 问答请求体
type AskRequest struct {
	Question string `json:"question" validate:"required,min=1,max=1000"`
}

// AskController 基于已入库文档回答问题
type AskController struct {
	BaseController
	services *AppServices
}

func (c *AskController) Prepare() {
	if c.services == nil {
		c.services = GetServices()
	}
}

// Ask 检索相关片段并生成答案
func (c *AskController) Ask() {
	var req AskRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, "Question must be between 1 and 1000 characters")
		return
	}

	answer, err := c.services.RAG.Ask(c.Ctx.Request.Context(), req.Question)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(answer)
}
