// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// PostCreatedTask 是帖子创建事件的消息结构，由 API 侧生产、AI 响应消费者处理。
type PostCreatedTask struct {
	PostID  uint   `json:"post_id"`
	UserID  uint   `json:"user_id"`
	Content string `json:"content"`
}
