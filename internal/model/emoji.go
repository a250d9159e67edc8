package model

import "time"

// DbEmoji 实例级自定义表情，按 host 维度缓存
type DbEmoji struct {
	Host      string `gorm:"primaryKey;type:varchar(255)"`
	Content   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (DbEmoji) TableName() string { return "emojis" }
