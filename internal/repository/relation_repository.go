package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/flare-sync/internal/model"
)

// RelationRepository 关系快照仓储，乐观更新直接写这里，失败再回滚。
type RelationRepository interface {
	Get(ctx context.Context, accountType model.AccountType, userKey model.MicroBlogKey) (*model.DbRelation, error)
	Upsert(ctx context.Context, row *model.DbRelation) error
	// SetFlags 原地更新单个关系位；关系行不存在时创建。
	SetFlags(ctx context.Context, accountType model.AccountType, userKey model.MicroBlogKey, updates map[string]any) error
}

type relationRepository struct{ db *gorm.DB }

func NewRelationRepository(db *gorm.DB) RelationRepository {
	return &relationRepository{db: db}
}

func (r *relationRepository) Get(ctx context.Context, accountType model.AccountType, userKey model.MicroBlogKey) (*model.DbRelation, error) {
	var row model.DbRelation
	err := r.db.WithContext(ctx).
		Where("account_type = ? AND user_key = ?", accountType, userKey).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *relationRepository) Upsert(ctx context.Context, row *model.DbRelation) error {
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_type"}, {Name: "user_key"}},
			UpdateAll: true,
		}).
		Create(row).Error
}

func (r *relationRepository) SetFlags(ctx context.Context, accountType model.AccountType, userKey model.MicroBlogKey, updates map[string]any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.DbRelation
		err := tx.Where("account_type = ? AND user_key = ?", accountType, userKey).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = model.DbRelation{ID: uuid.New().String(), AccountType: accountType, UserKey: userKey}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		return tx.Model(&model.DbRelation{}).
			Where("account_type = ? AND user_key = ?", accountType, userKey).
			Updates(updates).Error
	})
}
