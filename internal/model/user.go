// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// User 对应于数据库中的 'users' 表，既包含普通学员账号，也包含 AI 助教账号。
type User struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// FirebaseUID 是外部认证体系的用户标识；AI 助教使用时间种子合成的值。
	FirebaseUID string `gorm:"type:varchar(128);column:firebase_uid" json:"firebaseUid"`
	// Username 是全局唯一的用户名，唯一索引同时兜住 AI 助教的并发首次创建。
	Username string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email    string `gorm:"type:varchar(128)" json:"email"`
	// Password 是 bcrypt 哈希；AI 助教账号没有密码，不可登录。
	Password    string `gorm:"type:varchar(128)" json:"-"`
	DisplayName string `gorm:"type:varchar(128)" json:"displayName"`
	PhotoURL    string `gorm:"type:varchar(512)" json:"photoURL"`
	// Level 和 XP 是学习等级体系字段，AI 助教固定为满级哨兵值。
	Level int `gorm:"default:1" json:"level"`
	XP    int `gorm:"column:xp;default:0" json:"xp"`
	// IsAI 标记该账号由系统自动运营。
	IsAI       bool      `gorm:"column:is_ai;default:false" json:"isAI"`
	IsVerified bool      `gorm:"default:false" json:"isVerified"`
	Role       string    `gorm:"type:varchar(16);default:USER" json:"role"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
