package model

import (
	"time"
)

const (
	DeletedContent = "*deleted by creator*"
	RemovedContent = "*removed by moderator*"
)

// Comment 评论；ap_id 为全局唯一标识，一经分配不可变
type Comment struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	ApID        string     `gorm:"column:ap_id;size:255;uniqueIndex;not null" json:"ap_id"`
	PostID      int64      `gorm:"not null;index" json:"post_id"`
	ParentID    *int64     `gorm:"index" json:"parent_id,omitempty"`
	CreatorID   int64      `gorm:"not null;index" json:"creator_id"`
	CommunityID int64      `gorm:"not null;index" json:"community_id"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	Published   time.Time  `gorm:"not null;index" json:"published"`
	Updated     *time.Time `json:"updated,omitempty"`
	Deleted     bool       `gorm:"default:false" json:"deleted"`
	Removed     bool       `gorm:"default:false" json:"removed"`
	Local       bool       `gorm:"default:false" json:"local"`
	CreatedAt   time.Time  `json:"-"`

	// 经拉取物化（回复先于父评论到达等），尚未收到其 Create 活动
	Fetched bool `gorm:"default:false" json:"-"`

	// 最近一次被接受的删除/移除状态变更的活动时间，用于乱序到达时收敛
	DeletedStateAt *time.Time `json:"-"`
	RemovedStateAt *time.Time `json:"-"`

	// 关联
	Creator   *Person           `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Post      *Post             `gorm:"foreignKey:PostID" json:"post,omitempty"`
	Community *Community        `gorm:"foreignKey:CommunityID" json:"community,omitempty"`
	Counts    *CommentAggregate `gorm:"foreignKey:CommentID" json:"counts,omitempty"`
}

func (Comment) TableName() string {
	return "comments"
}

// Visible 对 API 可见
func (c *Comment) Visible() bool {
	return !c.Deleted && !c.Removed
}

// Revision 当前内容版本的时间戳
func (c *Comment) Revision() time.Time {
	if c.Updated != nil {
		return *c.Updated
	}
	return c.Published
}
