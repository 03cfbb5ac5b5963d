package model

import "time"

// Post 对应于数据库中的 'posts' 表，是学习动态流中的一条帖子。
type Post struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index;not null" json:"userId"`
	// Content 是帖子正文。
	Content string `gorm:"type:text;not null" json:"content"`
	// MediaURL 是帖子附带的图片/视频在对象存储中的对象名，可为空。
	// 前端灯箱组件通过 /media 接口换取实际的预签名下载地址。
	MediaURL  string    `gorm:"type:varchar(512)" json:"mediaUrl"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// Author 是帖子作者，按需预加载。
	Author *User `gorm:"foreignKey:UserID" json:"author,omitempty"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Post) TableName() string {
	return "posts"
}
