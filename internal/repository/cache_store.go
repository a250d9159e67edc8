package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
)

// CacheStore 聚合实体仓储与分页索引仓储，pager 与各 data source 共用的
// 单一事实来源。所有写入提交后经 hub 通知观察方。
type CacheStore struct {
	StatusRepository
	PagingRepository

	db *gorm.DB
}

func NewCacheStore(db *gorm.DB, hub notify.Publisher) *CacheStore {
	return &CacheStore{
		StatusRepository: NewStatusRepository(db, hub),
		PagingRepository: NewPagingRepository(db, hub),
		db:               db,
	}
}

// ClearCache 整体清空缓存：索引行与实体行同一事务删除。
// 实体行不做渐进回收（索引对实体是弱引用），清理只有这一个整体入口。
func (s *CacheStore) ClearCache(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{
			&model.DbPagingTimeline{},
			&model.DbStatus{},
			&model.DbUser{},
			&model.DbEmoji{},
		} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
