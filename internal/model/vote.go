package model

import (
	"time"
)

// CommentVote 每个 (评论, 投票人) 只有一条当前记录
type CommentVote struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CommentID int64     `gorm:"not null;uniqueIndex:uniq_comment_vote" json:"comment_id"`
	PersonID  int64     `gorm:"not null;uniqueIndex:uniq_comment_vote" json:"person_id"`
	Score     int       `gorm:"not null" json:"score"` // -1, 0, 1
	VotedAt   time.Time `gorm:"not null" json:"voted_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CommentVote) TableName() string {
	return "comment_votes"
}

// CommentAggregate 由 comment_votes 重新计算得到的物化视图
type CommentAggregate struct {
	CommentID int64     `gorm:"primaryKey;autoIncrement:false" json:"comment_id"`
	Score     int64     `gorm:"not null;default:0" json:"score"`
	Upvotes   int64     `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int64     `gorm:"not null;default:0" json:"downvotes"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CommentAggregate) TableName() string {
	return "comment_aggregates"
}
