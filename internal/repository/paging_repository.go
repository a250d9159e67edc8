package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
)

// TimelineItem 分页行与其引用实体的联接结果，pager 对外暴露的最小单元。
type TimelineItem struct {
	Timeline model.DbPagingTimeline
	Status   model.DbStatus
}

// PagingRepository 分页索引仓储。排序恒为 (pinned DESC, sort_id DESC)。
type PagingRepository interface {
	// ReplacePagingWindow 刷新语义：事务内清掉该 pagingKey 的全部旧行再写入，
	// 保证刷新幂等，失败时旧窗口保持完整。
	ReplacePagingWindow(ctx context.Context, accountType model.AccountType, pagingKey string, rows []model.DbPagingTimeline) error
	AppendPaging(ctx context.Context, rows []model.DbPagingTimeline) error
	PrependPaging(ctx context.Context, rows []model.DbPagingTimeline) error
	GetPage(ctx context.Context, accountType model.AccountType, pagingKey string, limit, offset int) ([]TimelineItem, error)
	CountPaging(ctx context.Context, accountType model.AccountType, pagingKey string) (int64, error)
	ExistsPaging(ctx context.Context, accountType model.AccountType, pagingKey string) (bool, error)
	// DeletePaging 只清索引行，实体行保留（弱引用语义）。
	DeletePaging(ctx context.Context, accountType model.AccountType, pagingKey string) error
}

type pagingRepository struct {
	db  *gorm.DB
	hub notify.Publisher
}

func NewPagingRepository(db *gorm.DB, hub notify.Publisher) PagingRepository {
	return &pagingRepository{db: db, hub: hub}
}

func fillIDs(rows []model.DbPagingTimeline) {
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.New().String()
		}
	}
}

func (r *pagingRepository) ReplacePagingWindow(ctx context.Context, accountType model.AccountType, pagingKey string, rows []model.DbPagingTimeline) error {
	fillIDs(rows)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("account_type = ? AND paging_key = ?", accountType, pagingKey).
			Delete(&model.DbPagingTimeline{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return err
	}
	r.hub.Publish(ctx, notify.Topic(accountType.String(), pagingKey))
	return nil
}

func (r *pagingRepository) AppendPaging(ctx context.Context, rows []model.DbPagingTimeline) error {
	return r.insertPaging(ctx, rows)
}

func (r *pagingRepository) PrependPaging(ctx context.Context, rows []model.DbPagingTimeline) error {
	return r.insertPaging(ctx, rows)
}

func (r *pagingRepository) insertPaging(ctx context.Context, rows []model.DbPagingTimeline) error {
	if len(rows) == 0 {
		return nil
	}
	fillIDs(rows)
	// 幂等：同一 (account, pagingKey, status) 重复写入忽略
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return err
	}
	seen := make(map[string]struct{})
	for _, row := range rows {
		topic := notify.Topic(row.AccountType.String(), row.PagingKey)
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		r.hub.Publish(ctx, topic)
	}
	return nil
}

func (r *pagingRepository) GetPage(ctx context.Context, accountType model.AccountType, pagingKey string, limit, offset int) ([]TimelineItem, error) {
	if limit <= 0 {
		limit = 20
	}
	var timeline []model.DbPagingTimeline
	err := r.db.WithContext(ctx).
		Where("account_type = ? AND paging_key = ?", accountType, pagingKey).
		Order("pinned DESC").
		Order("sort_id DESC").
		Offset(offset).
		Limit(limit).
		Find(&timeline).Error
	if err != nil {
		return nil, err
	}
	if len(timeline) == 0 {
		return []TimelineItem{}, nil
	}

	keys := make([]model.MicroBlogKey, len(timeline))
	for i, row := range timeline {
		keys[i] = row.StatusKey
	}
	var statuses []model.DbStatus
	if err := r.db.WithContext(ctx).Where("status_key IN ?", keys).Find(&statuses).Error; err != nil {
		return nil, err
	}
	byKey := make(map[model.MicroBlogKey]model.DbStatus, len(statuses))
	for _, s := range statuses {
		byKey[s.StatusKey] = s
	}

	items := make([]TimelineItem, 0, len(timeline))
	for _, row := range timeline {
		status, ok := byKey[row.StatusKey]
		if !ok {
			// 索引行引用的实体尚未落库（理论上不会发生），跳过而不是返回半行
			continue
		}
		items = append(items, TimelineItem{Timeline: row, Status: status})
	}
	return items, nil
}

func (r *pagingRepository) CountPaging(ctx context.Context, accountType model.AccountType, pagingKey string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&model.DbPagingTimeline{}).
		Where("account_type = ? AND paging_key = ?", accountType, pagingKey).
		Count(&cnt).Error
	return cnt, err
}

func (r *pagingRepository) ExistsPaging(ctx context.Context, accountType model.AccountType, pagingKey string) (bool, error) {
	cnt, err := r.CountPaging(ctx, accountType, pagingKey)
	return cnt > 0, err
}

func (r *pagingRepository) DeletePaging(ctx context.Context, accountType model.AccountType, pagingKey string) error {
	err := r.db.WithContext(ctx).
		Where("account_type = ? AND paging_key = ?", accountType, pagingKey).
		Delete(&model.DbPagingTimeline{}).Error
	if err != nil {
		return err
	}
	r.hub.Publish(ctx, notify.Topic(accountType.String(), pagingKey))
	return nil
}
