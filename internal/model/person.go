package model

import (
	"time"
)

// Person 联邦用户（本地或远程缓存）
type Person struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ApID      string    `gorm:"column:ap_id;size:255;uniqueIndex;not null" json:"ap_id"`
	Name      string    `gorm:"size:50;not null;index:idx_person_name_domain" json:"name"`
	Domain    string    `gorm:"size:255;not null;index:idx_person_name_domain" json:"domain"`
	InboxURL  string    `gorm:"size:255" json:"inbox_url"`
	Local     bool      `gorm:"default:false" json:"local"`
	Admin     bool      `gorm:"default:false" json:"admin"` // 所在实例的管理员
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Person) TableName() string {
	return "persons"
}
