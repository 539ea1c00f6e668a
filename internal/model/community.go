package model

import (
	"time"
)

// Community 社区，决定活动的投递受众
type Community struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ApID      string    `gorm:"column:ap_id;size:255;uniqueIndex;not null" json:"ap_id"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	Domain    string    `gorm:"size:255;not null" json:"domain"`
	InboxURL  string    `gorm:"size:255" json:"inbox_url"`
	Local     bool      `gorm:"default:false" json:"local"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Community) TableName() string {
	return "communities"
}

type CommunityModerator struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	CommunityID int64     `gorm:"not null;uniqueIndex:uniq_community_moderator" json:"community_id"`
	PersonID    int64     `gorm:"not null;uniqueIndex:uniq_community_moderator" json:"person_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (CommunityModerator) TableName() string {
	return "community_moderators"
}

// CommunityFollower 关注关系；Person 的 InboxURL 即投递地址
type CommunityFollower struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	CommunityID int64     `gorm:"not null;uniqueIndex:uniq_community_follower" json:"community_id"`
	PersonID    int64     `gorm:"not null;uniqueIndex:uniq_community_follower;index" json:"person_id"`
	CreatedAt   time.Time `json:"created_at"`

	Person *Person `gorm:"foreignKey:PersonID" json:"person,omitempty"`
}

func (CommunityFollower) TableName() string {
	return "community_followers"
}
