package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fed_comment_server/internal/model"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CreateIfAbsent 按 ap_id 插入举报，返回是否新建
func (r *ReportRepository) CreateIfAbsent(report *model.CommentReport) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(report)
	return result.RowsAffected > 0, result.Error
}

// GetByID 根据 ID 获取举报
func (r *ReportRepository) GetByID(id int64) (*model.CommentReport, error) {
	var report model.CommentReport
	err := r.db.Where("id = ?", id).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByApID 根据 ap_id 获取举报
func (r *ReportRepository) GetByApID(apID string) (*model.CommentReport, error) {
	var report model.CommentReport
	err := r.db.Where("ap_id = ?", apID).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ListByCommunity 获取社区内评论的举报
func (r *ReportRepository) ListByCommunity(communityID int64, unresolvedOnly bool, page, pageSize int) ([]*model.CommentReport, int64, error) {
	var reports []*model.CommentReport
	var total int64

	query := r.db.Model(&model.CommentReport{}).
		Joins("JOIN comments ON comments.id = comment_reports.comment_id").
		Where("comments.community_id = ?", communityID)
	if unresolvedOnly {
		query = query.Where("comment_reports.resolved = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("comment_reports.created_at DESC, comment_reports.id DESC").
		Offset(offset).Limit(pageSize).
		Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ListByComment 获取某条评论的全部举报
func (r *ReportRepository) ListByComment(commentID int64) ([]*model.CommentReport, error) {
	var reports []*model.CommentReport
	err := r.db.Where("comment_id = ?", commentID).Order("id ASC").Find(&reports).Error
	return reports, err
}

// Resolve 设置处理状态
func (r *ReportRepository) Resolve(id, resolverID int64, resolved bool) error {
	return r.db.Model(&model.CommentReport{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolved":    resolved,
			"resolver_id": resolverID,
		}).Error
}
