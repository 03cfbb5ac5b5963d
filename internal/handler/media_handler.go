package handler

import (
	"net/http"
	"path/filepath"
	"time"

	"bright-starts-go/internal/config"
	"bright-starts-go/pkg/log"
	"bright-starts-go/pkg/storage"
	"bright-starts-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// MediaHandler 负责帖子媒体文件的上传与下载地址签发。
type MediaHandler struct {
	cfg config.MinIOConfig
}

// NewMediaHandler 创建一个新的 MediaHandler 实例。
func NewMediaHandler(cfg config.MinIOConfig) *MediaHandler {
	return &MediaHandler{cfg: cfg}
}

// Upload 接收 multipart 文件并写入对象存储，返回对象名与临时访问地址。
// 发帖时把对象名填进 mediaUrl 字段即可。
func (h *MediaHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求：缺少上传文件",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Upload: failed to open uploaded file", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取上传文件失败",
		})
		return
	}
	defer file.Close()

	// 对象名使用随机串，保留原始扩展名方便内容类型识别
	objectName := "media/" + token.GenerateRandomString(16) + filepath.Ext(fileHeader.Filename)
	contentType := fileHeader.Header.Get("Content-Type")

	if err := storage.PutObject(c.Request.Context(), h.cfg.BucketName, objectName, file, fileHeader.Size, contentType); err != nil {
		log.Error("Upload: failed to store media object", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "媒体文件上传失败",
		})
		return
	}

	url, err := storage.GetPresignedURL(h.cfg.BucketName, objectName, 24*time.Hour)
	if err != nil {
		// 上传已成功，签发地址失败时只返回对象名
		log.Error("Upload: failed to presign media url", err)
		url = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"object": objectName,
			"url":    url,
		},
	})
}

// DownloadURL 为一个媒体对象签发临时下载地址，前端灯箱组件用它加载原图。
func (h *MediaHandler) DownloadURL(c *gin.Context) {
	objectName := c.Query("object")
	if objectName == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少 object 参数",
		})
		return
	}

	url, err := storage.GetPresignedURL(h.cfg.BucketName, objectName, time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "签发下载地址失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"url": url},
	})
}
