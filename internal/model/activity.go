package model

import (
	"time"
)

// ReceivedActivity 已接受的入站活动，用于识别重复投递
type ReceivedActivity struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ApID      string    `gorm:"column:ap_id;size:255;uniqueIndex;not null" json:"ap_id"`
	Kind      string    `gorm:"size:20;not null" json:"kind"`
	ActorApID string    `gorm:"column:actor_ap_id;size:255" json:"actor_ap_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ReceivedActivity) TableName() string {
	return "received_activities"
}

// All 返回需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&Person{},
		&Community{},
		&CommunityModerator{},
		&CommunityFollower{},
		&Post{},
		&Comment{},
		&CommentVote{},
		&CommentAggregate{},
		&PersonMention{},
		&CommentReply{},
		&CommentReport{},
		&ReceivedActivity{},
	}
}
