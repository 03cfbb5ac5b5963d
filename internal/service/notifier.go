// Package service 包含了应用的业务逻辑层。
package service

// 动态流广播事件类型。
const (
	EventPostCreated    = "post.created"
	EventCommentCreated = "comment.created"
)

// FeedNotifier 将新产生的帖子/评论推送给在线客户端。
// 由 realtime.Hub 实现；传 nil 时服务层静默跳过推送。
type FeedNotifier interface {
	Broadcast(eventType string, payload interface{})
}
