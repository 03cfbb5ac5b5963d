package repository

import (
	"bright-starts-go/internal/model"

	"gorm.io/gorm"
)

// CommentRepository 接口定义了评论数据的持久化操作。
type CommentRepository interface {
	Create(comment *model.Comment) error
	FindByPostID(postID uint) ([]model.Comment, error)
	// CountByUserID 统计某个用户发表的评论总数，用于 AI 助教的回复总量统计。
	CountByUserID(userID uint) (int64, error)
	// CountDistinctPostsByUserID 统计某个用户评论过的不同帖子数量。
	CountDistinctPostsByUserID(userID uint) (int64, error)
}

// commentRepository 是 CommentRepository 接口的 GORM 实现。
type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository 创建一个新的 CommentRepository 实例。
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create 在数据库中创建一条新的评论记录。
func (r *commentRepository) Create(comment *model.Comment) error {
	return r.db.Create(comment).Error
}

// FindByPostID 查找某条帖子下的所有评论，按创建时间正序，并预加载作者信息。
func (r *commentRepository) FindByPostID(postID uint) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.db.Preload("Author").Where("post_id = ?", postID).Order("created_at ASC").Find(&comments).Error
	return comments, err
}

// CountByUserID 统计某个用户发表的评论总数。
func (r *commentRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Comment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CountDistinctPostsByUserID 统计某个用户评论过的不同帖子数量。
func (r *commentRepository) CountDistinctPostsByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&model.Comment{}).
		Where("user_id = ?", userID).
		Distinct("post_id").
		Count(&count).Error
	return count, err
}
