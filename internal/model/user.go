package model

import "time"

// DbUser 用户实体（跨时间线共享）
type DbUser struct {
	UserKey      MicroBlogKey `gorm:"primaryKey;type:varchar(255)"`
	PlatformType PlatformType `gorm:"type:varchar(16);not null"`
	Name         string       `gorm:"type:varchar(255)"`
	Handle       string       `gorm:"type:varchar(255);index:idx_user_handle_host"`
	Host         string       `gorm:"type:varchar(255);index:idx_user_handle_host"`
	Content      string       `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (DbUser) TableName() string { return "users" }
