package model

import "time"

// DbAccount 本地登录账号；Credential 为 secretbox 密封后的凭据 JSON
type DbAccount struct {
	AccountKey   MicroBlogKey `gorm:"primaryKey;type:varchar(255)"`
	PlatformType PlatformType `gorm:"type:varchar(16);index:idx_account_platform;not null"`
	Credential   []byte       `gorm:"type:blob"`
	CreatedAt    time.Time
	LastActiveAt time.Time
}

func (DbAccount) TableName() string { return "accounts" }
