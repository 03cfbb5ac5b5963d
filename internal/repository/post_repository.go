package repository

import (
	"bright-starts-go/internal/model"

	"gorm.io/gorm"
)

// PostRepository 接口定义了帖子数据的持久化操作。
type PostRepository interface {
	Create(post *model.Post) error
	FindByID(postID uint) (*model.Post, error)
	FindByUserID(userID uint) ([]model.Post, error)
	FindRecent(offset, limit int) ([]model.Post, int64, error)
}

// postRepository 是 PostRepository 接口的 GORM 实现。
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository 创建一个新的 PostRepository 实例。
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create 在数据库中创建一条新的帖子记录。
func (r *postRepository) Create(post *model.Post) error {
	return r.db.Create(post).Error
}

// FindByID 根据帖子 ID 查找一条帖子，并预加载作者信息。
func (r *postRepository) FindByID(postID uint) (*model.Post, error) {
	var post model.Post
	err := r.db.Preload("Author").First(&post, postID).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// FindByUserID 查找某个用户发布的所有帖子，按创建时间倒序。
func (r *postRepository) FindByUserID(userID uint) ([]model.Post, error) {
	var posts []model.Post
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&posts).Error
	return posts, err
}

// FindRecent 分页检索最新的帖子，返回帖子列表和总记录数。
func (r *postRepository) FindRecent(offset, limit int) ([]model.Post, int64, error) {
	var posts []model.Post
	var total int64

	db := r.db.Model(&model.Post{})

	// 首先计算总记录数
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 然后根据偏移量和限制获取当前页的数据
	err := db.Preload("Author").Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}
