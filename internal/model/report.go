package model

import (
	"time"
)

// CommentReport 只在社区所在实例上权威存储
type CommentReport struct {
	ID                  int64     `gorm:"primaryKey" json:"id"`
	ApID                string    `gorm:"column:ap_id;size:255;uniqueIndex;not null" json:"ap_id"`
	CreatorID           int64     `gorm:"not null;index" json:"creator_id"`
	CommentID           int64     `gorm:"not null;index" json:"comment_id"`
	OriginalCommentText string    `gorm:"type:text;not null" json:"original_comment_text"`
	Reason              string    `gorm:"type:text;not null" json:"reason"`
	Resolved            bool      `gorm:"default:false;index" json:"resolved"`
	ResolverID          *int64    `json:"resolver_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (CommentReport) TableName() string {
	return "comment_reports"
}
