package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fed_comment_server/internal/model"
)

type VoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// Get 获取 (评论, 投票人) 的当前投票
func (r *VoteRepository) Get(commentID, personID int64) (*model.CommentVote, error) {
	var vote model.CommentVote
	err := r.db.Where("comment_id = ? AND person_id = ?", commentID, personID).First(&vote).Error
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// Save 新增或覆盖投票
func (r *VoteRepository) Save(vote *model.CommentVote) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "comment_id"}, {Name: "person_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "voted_at", "updated_at"}),
	}).Create(vote).Error
}

// RecomputeAggregate 由 comment_votes 重新计算评论分数
func (r *VoteRepository) RecomputeAggregate(commentID int64) (*model.CommentAggregate, error) {
	var row struct {
		Score     int64
		Upvotes   int64
		Downvotes int64
	}
	err := r.db.Model(&model.CommentVote{}).
		Select(`COALESCE(SUM(score), 0) AS score,
			COALESCE(SUM(CASE WHEN score > 0 THEN 1 ELSE 0 END), 0) AS upvotes,
			COALESCE(SUM(CASE WHEN score < 0 THEN 1 ELSE 0 END), 0) AS downvotes`).
		Where("comment_id = ?", commentID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	agg := &model.CommentAggregate{
		CommentID: commentID,
		Score:     row.Score,
		Upvotes:   row.Upvotes,
		Downvotes: row.Downvotes,
	}
	err = r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "comment_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "upvotes", "downvotes", "updated_at"}),
	}).Create(agg).Error
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// GetAggregate 获取评论分数
func (r *VoteRepository) GetAggregate(commentID int64) (*model.CommentAggregate, error) {
	var agg model.CommentAggregate
	err := r.db.Where("comment_id = ?", commentID).First(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}
