package model

import "time"

// EsPost 是写入 Elasticsearch 帖子索引的文档结构。
type EsPost struct {
	PostID    uint      `json:"post_id"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
