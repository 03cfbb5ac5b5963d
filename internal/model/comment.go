package model

import "time"

// Comment 对应于数据库中的 'post_comments' 表。
// AI 助教的自动回复与普通用户评论共用这张表，靠作者账号的 IsAI 字段区分。
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"postId"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	// Author 是评论作者，按需预加载。
	Author *User `gorm:"foreignKey:UserID" json:"author,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Comment) TableName() string {
	return "post_comments"
}
