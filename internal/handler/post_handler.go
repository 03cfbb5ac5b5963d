package handler

import (
	"net/http"
	"strconv"

	"bright-starts-go/internal/model"
	"bright-starts-go/internal/service"
	"bright-starts-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// PostHandler 负责处理帖子与评论相关的 API 请求。
type PostHandler struct {
	postService service.PostService
}

// NewPostHandler 创建一个新的 PostHandler 实例。
func NewPostHandler(postService service.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// CreatePostRequest 定义了发帖 API 的请求体结构。
type CreatePostRequest struct {
	Content  string `json:"content" binding:"required"`
	MediaURL string `json:"mediaUrl"`
}

// CreatePost 处理发帖请求。发帖成功与否与 AI 是否回复完全无关：
// AI 的回复（如果有）会在随机延迟后异步出现在评论里。
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreatePost: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：帖子内容不能为空",
		})
		return
	}

	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法获取用户信息"})
		return
	}

	post, err := h.postService.CreatePost(c.Request.Context(), user.ID, req.Content, req.MediaURL)
	if err != nil {
		log.Error("CreatePost: failed to create post", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "发帖失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": post, "message": "success"})
}

// GetFeed 返回分页的动态流。
func (h *PostHandler) GetFeed(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	feed, err := h.postService.GetFeed(c.Request.Context(), page, size)
	if err != nil {
		log.Error("GetFeed: failed to load feed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "查询动态流失败",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": feed, "message": "success"})
}

// GetPost 返回一条帖子及其全部评论。
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, err := strconv.ParseUint(c.Param("postId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的帖子 ID",
		})
		return
	}

	post, comments, err := h.postService.GetPost(c.Request.Context(), uint(postID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "帖子不存在",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"post":     post,
			"comments": comments,
		},
	})
}

// AddCommentRequest 定义了评论 API 的请求体结构。
type AddCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// AddComment 处理发表评论的请求。
func (h *PostHandler) AddComment(c *gin.Context) {
	postID, err := strconv.ParseUint(c.Param("postId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的帖子 ID",
		})
		return
	}

	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：评论内容不能为空",
		})
		return
	}

	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法获取用户信息"})
		return
	}

	comment, err := h.postService.AddComment(c.Request.Context(), uint(postID), user.ID, req.Content)
	if err != nil {
		log.Error("AddComment: failed to create comment", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "评论失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": comment, "message": "success"})
}

// SearchPosts 在全文索引上检索帖子。
func (h *PostHandler) SearchPosts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "查询关键词不能为空",
		})
		return
	}

	results, err := h.postService.SearchPosts(c.Request.Context(), query)
	if err != nil {
		log.Error("SearchPosts: search failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "检索失败",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": results, "message": "success"})
}

// currentUser 从上下文中取出由 AuthMiddleware 注入的用户对象。
func currentUser(c *gin.Context) *model.User {
	userValue, exists := c.Get("user")
	if !exists {
		return nil
	}
	user, ok := userValue.(*model.User)
	if !ok {
		return nil
	}
	return user
}
