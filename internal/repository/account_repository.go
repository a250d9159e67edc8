package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/flare-sync/internal/model"
)

// AccountRepository 本地账号仓储
type AccountRepository interface {
	Upsert(ctx context.Context, row *model.DbAccount) error
	Find(ctx context.Context, key model.MicroBlogKey) (*model.DbAccount, error)
	List(ctx context.Context) ([]model.DbAccount, error)
	Delete(ctx context.Context, key model.MicroBlogKey) error
	TouchActive(ctx context.Context, key model.MicroBlogKey) error
}

type accountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Upsert(ctx context.Context, row *model.DbAccount) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

func (r *accountRepository) Find(ctx context.Context, key model.MicroBlogKey) (*model.DbAccount, error) {
	var row model.DbAccount
	err := r.db.WithContext(ctx).Where("account_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *accountRepository) List(ctx context.Context) ([]model.DbAccount, error) {
	var rows []model.DbAccount
	err := r.db.WithContext(ctx).Order("last_active_at DESC").Find(&rows).Error
	return rows, err
}

func (r *accountRepository) Delete(ctx context.Context, key model.MicroBlogKey) error {
	return r.db.WithContext(ctx).Where("account_key = ?", key).Delete(&model.DbAccount{}).Error
}

func (r *accountRepository) TouchActive(ctx context.Context, key model.MicroBlogKey) error {
	return r.db.WithContext(ctx).
		Model(&model.DbAccount{}).
		Where("account_key = ?", key).
		Update("last_active_at", time.Now()).Error
}
