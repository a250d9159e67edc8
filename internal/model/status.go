package model

import "time"

// DbStatus 状态实体（跨时间线共享，last-write-wins 合并）
type DbStatus struct {
	StatusKey    MicroBlogKey `gorm:"primaryKey;type:varchar(255)"`
	PlatformType PlatformType `gorm:"type:varchar(16);index:idx_status_platform;not null"`
	UserKey      MicroBlogKey `gorm:"type:varchar(255);index:idx_status_user"`
	// Content 保存归一化后的原始 JSON，渲染层自行解码
	Content string `gorm:"type:text"`
	// Text 纯文本摘要，供本地缓存搜索
	Text      string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DbStatus) TableName() string { return "statuses" }
