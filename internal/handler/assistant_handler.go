package handler

import (
	"net/http"

	"bright-starts-go/internal/service"
	"bright-starts-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AssistantHandler 负责处理 AI 助教相关的 API 请求。
type AssistantHandler struct {
	assistantService service.AssistantService
}

// NewAssistantHandler 创建一个新的 AssistantHandler 实例。
func NewAssistantHandler(assistantService service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistantService: assistantService}
}

// GetProfile 返回 AI 助教的账号信息与活动统计，供前端助教主页使用。
func (h *AssistantHandler) GetProfile(c *gin.Context) {
	profile, err := h.assistantService.GetProfile(c.Request.Context())
	if err != nil {
		log.Error("GetProfile: failed to load assistant profile", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取 AI 助教信息失败",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": profile, "message": "success"})
}

// SuggestTopicsRequest 定义了主题推荐 API 的请求体结构。
type SuggestTopicsRequest struct {
	Content string `json:"content" binding:"required"`
}

// SuggestTopics 基于帖子内容返回相关学习主题推荐。
// 推荐失败时返回空列表而不是错误，这条链路对用户永远是"有或没有"。
func (h *AssistantHandler) SuggestTopics(c *gin.Context) {
	var req SuggestTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：内容不能为空",
		})
		return
	}

	topics := h.assistantService.SuggestTopics(c.Request.Context(), req.Content)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": topics, "message": "success"})
}
