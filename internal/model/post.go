package model

import (
	"time"
)

type Post struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	ApID        string    `gorm:"column:ap_id;size:255;uniqueIndex;not null" json:"ap_id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	CommunityID int64     `gorm:"not null;index" json:"community_id"`
	CreatorID   int64     `gorm:"not null;index" json:"creator_id"`
	Local       bool      `gorm:"default:false" json:"local"`
	Published   time.Time `json:"published"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Post) TableName() string {
	return "posts"
}
