package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fed_comment_server/internal/model"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create 创建帖子
func (r *PostRepository) Create(post *model.Post) error {
	return r.db.Create(post).Error
}

// CreateIfAbsent 按 ap_id 插入，已存在时加载现有记录
func (r *PostRepository) CreateIfAbsent(post *model.Post) error {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(post)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		found, err := r.GetByApID(post.ApID)
		if err != nil {
			return err
		}
		*post = *found
	}
	return nil
}

// GetByID 根据 ID 获取帖子
func (r *PostRepository) GetByID(id int64) (*model.Post, error) {
	var post model.Post
	err := r.db.Where("id = ?", id).First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetByApID 根据 ap_id 获取帖子
func (r *PostRepository) GetByApID(apID string) (*model.Post, error) {
	var post model.Post
	err := r.db.Where("ap_id = ?", apID).First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}
