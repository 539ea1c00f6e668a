package model

import (
	"time"
)

type PersonMention struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	RecipientID int64     `gorm:"not null;uniqueIndex:uniq_person_mention;index" json:"recipient_id"`
	CommentID   int64     `gorm:"not null;uniqueIndex:uniq_person_mention" json:"comment_id"`
	Read        bool      `gorm:"column:is_read;default:false;index" json:"read"`
	CreatedAt   time.Time `json:"created_at"`

	Comment *Comment `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
}

func (PersonMention) TableName() string {
	return "person_mentions"
}

type CommentReply struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	RecipientID int64     `gorm:"not null;uniqueIndex:uniq_comment_reply;index" json:"recipient_id"`
	CommentID   int64     `gorm:"not null;uniqueIndex:uniq_comment_reply" json:"comment_id"`
	Read        bool      `gorm:"column:is_read;default:false;index" json:"read"`
	CreatedAt   time.Time `json:"created_at"`

	Comment *Comment `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
}

func (CommentReply) TableName() string {
	return "comment_replies"
}
