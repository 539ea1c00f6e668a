package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fed_comment_server/internal/model"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateMention 创建提及通知，已存在时返回 false
func (r *NotificationRepository) CreateMention(m *model.PersonMention) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	return result.RowsAffected > 0, result.Error
}

// CreateReply 创建回复通知，已存在时返回 false
func (r *NotificationRepository) CreateReply(reply *model.CommentReply) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(reply)
	return result.RowsAffected > 0, result.Error
}

// ListMentions 获取用户的提及通知
func (r *NotificationRepository) ListMentions(recipientID int64, unreadOnly bool, page, pageSize int) ([]*model.PersonMention, int64, error) {
	var mentions []*model.PersonMention
	var total int64

	query := r.db.Model(&model.PersonMention{}).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Comment").Preload("Comment.Creator").
		Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).
		Find(&mentions).Error
	if err != nil {
		return nil, 0, err
	}
	return mentions, total, nil
}

// ListReplies 获取用户的回复通知
func (r *NotificationRepository) ListReplies(recipientID int64, unreadOnly bool, page, pageSize int) ([]*model.CommentReply, int64, error) {
	var replies []*model.CommentReply
	var total int64

	query := r.db.Model(&model.CommentReply{}).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Comment").Preload("Comment.Creator").
		Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).
		Find(&replies).Error
	if err != nil {
		return nil, 0, err
	}
	return replies, total, nil
}

// MarkMentionRead 标记提及已读，返回是否命中
func (r *NotificationRepository) MarkMentionRead(id, recipientID int64) (bool, error) {
	result := r.db.Model(&model.PersonMention{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	return result.RowsAffected > 0, result.Error
}

// MarkReplyRead 标记回复已读，返回是否命中
func (r *NotificationRepository) MarkReplyRead(id, recipientID int64) (bool, error) {
	result := r.db.Model(&model.CommentReply{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	return result.RowsAffected > 0, result.Error
}

// CountUnread 获取未读提及与回复数
func (r *NotificationRepository) CountUnread(recipientID int64) (mentions, replies int64, err error) {
	err = r.db.Model(&model.PersonMention{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&mentions).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.Model(&model.CommentReply{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&replies).Error
	return mentions, replies, err
}

// MarkAllRead 将用户全部提及与回复标记为已读
func (r *NotificationRepository) MarkAllRead(recipientID int64) error {
	err := r.db.Model(&model.PersonMention{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true).Error
	if err != nil {
		return err
	}
	return r.db.Model(&model.CommentReply{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true).Error
}
