package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
)

// StatusRepository 归一化实体仓储（statuses / users / emojis）。
// upsert 为 last-write-wins：实体在多个时间线并发刷新时允许后写覆盖。
type StatusRepository interface {
	UpsertStatuses(ctx context.Context, rows []model.DbStatus) error
	UpsertUsers(ctx context.Context, rows []model.DbUser) error
	UpsertEmojis(ctx context.Context, rows []model.DbEmoji) error
	FindStatus(ctx context.Context, key model.MicroBlogKey) (*model.DbStatus, error)
	FindUser(ctx context.Context, key model.MicroBlogKey) (*model.DbUser, error)
	FindUserByHandle(ctx context.Context, handle, host string) (*model.DbUser, error)
	SearchStatusText(ctx context.Context, query string, limit int) ([]model.DbStatus, error)
	// FindEmojis 按 host 读实例表情缓存，渲染层解码 Content。
	FindEmojis(ctx context.Context, host string) (*model.DbEmoji, error)
	// DeleteStatus 删除实体及引用它的所有分页行（作者删帖时调用），
	// 与删除分页行不同：这是唯一会级联清实体的入口。
	DeleteStatus(ctx context.Context, key model.MicroBlogKey) error
}

var ErrNotFound = errors.New("repository: not found")

type statusRepository struct {
	db  *gorm.DB
	hub notify.Publisher
}

func NewStatusRepository(db *gorm.DB, hub notify.Publisher) StatusRepository {
	return &statusRepository{db: db, hub: hub}
}

func (r *statusRepository) UpsertStatuses(ctx context.Context, rows []model.DbStatus) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func (r *statusRepository) UpsertUsers(ctx context.Context, rows []model.DbUser) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func (r *statusRepository) UpsertEmojis(ctx context.Context, rows []model.DbEmoji) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}

func (r *statusRepository) FindStatus(ctx context.Context, key model.MicroBlogKey) (*model.DbStatus, error) {
	var row model.DbStatus
	err := r.db.WithContext(ctx).Where("status_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *statusRepository) FindUser(ctx context.Context, key model.MicroBlogKey) (*model.DbUser, error) {
	var row model.DbUser
	err := r.db.WithContext(ctx).Where("user_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *statusRepository) FindUserByHandle(ctx context.Context, handle, host string) (*model.DbUser, error) {
	var row model.DbUser
	err := r.db.WithContext(ctx).Where("handle = ? AND host = ?", handle, host).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *statusRepository) SearchStatusText(ctx context.Context, query string, limit int) ([]model.DbStatus, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []model.DbStatus
	err := r.db.WithContext(ctx).
		Where("text LIKE ?", "%"+query+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *statusRepository) FindEmojis(ctx context.Context, host string) (*model.DbEmoji, error) {
	var row model.DbEmoji
	err := r.db.WithContext(ctx).Where("host = ?", host).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *statusRepository) DeleteStatus(ctx context.Context, key model.MicroBlogKey) error {
	// 收集受影响的时间线，提交后逐个通知
	var affected []model.DbPagingTimeline
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status_key = ?", key).Find(&affected).Error; err != nil {
			return err
		}
		if err := tx.Where("status_key = ?", key).Delete(&model.DbPagingTimeline{}).Error; err != nil {
			return err
		}
		return tx.Where("status_key = ?", key).Delete(&model.DbStatus{}).Error
	})
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(affected))
	for _, row := range affected {
		topic := notify.Topic(row.AccountType.String(), row.PagingKey)
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		r.hub.Publish(ctx, topic)
	}
	return nil
}
