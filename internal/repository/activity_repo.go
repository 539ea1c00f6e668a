package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fed_comment_server/internal/model"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Exists 活动是否已被接受过
func (r *ActivityRepository) Exists(apID string) (bool, error) {
	var count int64
	err := r.db.Model(&model.ReceivedActivity{}).Where("ap_id = ?", apID).Count(&count).Error
	return count > 0, err
}

// Record 记录已接受的活动，重复时返回 false
func (r *ActivityRepository) Record(apID, kind, actorApID string) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.ReceivedActivity{
		ApID:      apID,
		Kind:      kind,
		ActorApID: actorApID,
	})
	return result.RowsAffected > 0, result.Error
}

// DeleteOlderThan 清理过期记录
func (r *ActivityRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before).Delete(&model.ReceivedActivity{})
	return result.RowsAffected, result.Error
}

// Count 记录总数
func (r *ActivityRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.ReceivedActivity{}).Count(&count).Error
	return count, err
}
