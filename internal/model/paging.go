package model

import "time"

// DbPagingTimeline 时间线分页索引行（按 paging_key 切分）
// 只负责排序，不拥有 status 实体；多个时间线可引用同一条 status。
type DbPagingTimeline struct {
	ID          string       `gorm:"primaryKey;type:varchar(36)"`
	AccountType AccountType  `gorm:"type:varchar(255);index:idx_paging_account;uniqueIndex:ux_paging_row;not null"`
	PagingKey   string       `gorm:"type:varchar(255);uniqueIndex:ux_paging_row;index:idx_paging_key_sort;not null"`
	StatusKey   MicroBlogKey `gorm:"type:varchar(255);uniqueIndex:ux_paging_row;index:idx_paging_status;not null"`
	// 复合唯一键，避免重复 (account, paging_key, status)
	// ux_paging_row = (account_type, paging_key, status_key)
	SortID    int64 `gorm:"index:idx_paging_key_sort"`
	Pinned    bool
	CreatedAt time.Time
}

func (DbPagingTimeline) TableName() string { return "paging_timelines" }
