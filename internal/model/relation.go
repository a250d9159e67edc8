package model

import "time"

// DbRelation 账号与目标用户之间的关系快照（乐观更新的落点）
type DbRelation struct {
	ID          string       `gorm:"primaryKey;type:varchar(36)"`
	AccountType AccountType  `gorm:"type:varchar(255);uniqueIndex:ux_relation_pair;not null"`
	UserKey     MicroBlogKey `gorm:"type:varchar(255);uniqueIndex:ux_relation_pair;not null"`
	// ux_relation_pair = (account_type, user_key)
	Following bool
	Blocking  bool
	Muting    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DbRelation) TableName() string { return "relations" }
