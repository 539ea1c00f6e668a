package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fed_comment_server/internal/model"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// CreateIfAbsent 按 ap_id 插入，返回是否新建
func (r *CommentRepository) CreateIfAbsent(comment *model.Comment) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(comment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据 ID 获取评论
func (r *CommentRepository) GetByID(id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.Where("id = ?", id).First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetByApID 根据 ap_id 获取评论
func (r *CommentRepository) GetByApID(apID string) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.Where("ap_id = ?", apID).First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetByApIDWithRelations 获取评论及作者、帖子、社区、计数
func (r *CommentRepository) GetByApIDWithRelations(apID string) (*model.Comment, error) {
	var comment model.Comment
	err := r.withRelations().Where("ap_id = ?", apID).First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetByIDWithRelations 同上，按 ID
func (r *CommentRepository) GetByIDWithRelations(id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.withRelations().Where("id = ?", id).First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateContent 写入新内容与编辑时间
func (r *CommentRepository) UpdateContent(id int64, content string, updated time.Time) error {
	return r.db.Model(&model.Comment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"content": content,
			"updated": updated,
		}).Error
}

// ClearFetched 收到拉取物化评论的 Create 时清除标记，返回是否由本次清除
func (r *CommentRepository) ClearFetched(id int64) (bool, error) {
	result := r.db.Model(&model.Comment{}).Where("id = ? AND fetched = ?", id, true).Update("fetched", false)
	return result.RowsAffected > 0, result.Error
}

// UpdateDeleted 设置作者删除状态
func (r *CommentRepository) UpdateDeleted(id int64, deleted bool, at time.Time) error {
	return r.db.Model(&model.Comment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"deleted":          deleted,
			"deleted_state_at": at,
		}).Error
}

// UpdateRemoved 设置版主移除状态
func (r *CommentRepository) UpdateRemoved(id int64, removed bool, at time.Time) error {
	return r.db.Model(&model.Comment{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"removed":          removed,
			"removed_state_at": at,
		}).Error
}

// ListByPostID 获取帖子下全部评论（按发布时间）
func (r *CommentRepository) ListByPostID(postID int64) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.withRelations().
		Where("post_id = ?", postID).
		Order("published ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

// CountByPostID 获取帖子的评论数
func (r *CommentRepository) CountByPostID(postID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Comment{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

func (r *CommentRepository) withRelations() *gorm.DB {
	return r.db.Preload("Creator").Preload("Post").Preload("Community").Preload("Counts")
}
