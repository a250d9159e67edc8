package mastodon

import (
	"context"
	"fmt"

	"github.com/d60-Lab/flare-sync/internal/datasource"
	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
	"github.com/d60-Lab/flare-sync/internal/paging"
	"github.com/d60-Lab/flare-sync/internal/repository"
)

// DataSource Mastodon 账号门面：时间线返回就绪 pager，
// 写操作走乐观更新。一个登录账号一个实例。
type DataSource struct {
	accountKey  model.MicroBlogKey
	accountType model.AccountType
	svc         *Service
	store       *repository.CacheStore
	relations   repository.RelationRepository
	hub         notify.Hub
	pageSize    int
}

func NewDataSource(accountKey model.MicroBlogKey, token string, store *repository.CacheStore, relations repository.RelationRepository, hub notify.Hub, pageSize int) *DataSource {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &DataSource{
		accountKey:  accountKey,
		accountType: model.AccountTypeSpecific(accountKey),
		svc:         NewService(accountKey, token),
		store:       store,
		relations:   relations,
		hub:         hub,
		pageSize:    pageSize,
	}
}

func (d *DataSource) pager(pagingKey string, m paging.Mediator) *paging.TimelinePager {
	return paging.NewTimelinePager(paging.Params{
		AccountType: d.accountType,
		PagingKey:   pagingKey,
		PageSize:    d.pageSize,
		Mediator:    m,
		Store:       d.store,
		Hub:         d.hub,
	})
}

func (d *DataSource) HomeTimeline() *paging.TimelinePager {
	return d.pager("home_"+d.accountKey.String(), HomeTimelineMediator(d.svc))
}

func (d *DataSource) PublicTimeline(local bool) *paging.TimelinePager {
	scope := "federated"
	if local {
		scope = "local"
	}
	return d.pager(fmt.Sprintf("public_%s_%s", scope, d.accountKey), PublicTimelineMediator(d.svc, local))
}

func (d *DataSource) NotificationTimeline() *paging.TimelinePager {
	return d.pager("notification_"+d.accountKey.String(), NotificationMediator(d.svc))
}

func (d *DataSource) UserTimeline(userKey model.MicroBlogKey) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("user_%s_%s", userKey, d.accountKey), UserTimelineMediator(d.svc, userKey.ID))
}

func (d *DataSource) ListTimeline(listID string) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("list_%s_%s", listID, d.accountKey), ListTimelineMediator(d.svc, listID))
}

func (d *DataSource) HashtagTimeline(tag string) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("hashtag_%s_%s", tag, d.accountKey), HashtagTimelineMediator(d.svc, tag))
}

func (d *DataSource) FavouriteTimeline() *paging.TimelinePager {
	return d.pager("favourite_"+d.accountKey.String(), FavouritesMediator(d.svc))
}

func (d *DataSource) SearchTimeline(query string) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("search_%s_%s", query, d.accountKey), SearchMediator(d.svc, query))
}

func (d *DataSource) StatusContext(statusKey model.MicroBlogKey) *paging.TimelinePager {
	pagingKey := fmt.Sprintf("status_detail_%s_%s", statusKey, d.accountKey)
	return d.pager(pagingKey, StatusContextMediator(d.svc, d.store, d.accountType, pagingKey, statusKey))
}

// Relation 拉远端关系并同步进本地快照，返回同步后的行。
func (d *DataSource) Relation(ctx context.Context, userKey model.MicroBlogKey) (*model.DbRelation, error) {
	rel, err := d.svc.Relationship(ctx, userKey.ID)
	if err != nil {
		return nil, err
	}
	if err := d.relations.SetFlags(ctx, d.accountType, userKey, map[string]any{
		"following": rel.Following,
		"blocking":  rel.Blocking,
		"muting":    rel.Muting,
	}); err != nil {
		return nil, err
	}
	return d.relations.Get(ctx, d.accountType, userKey)
}

func (d *DataSource) Follow(ctx context.Context, userKey model.MicroBlogKey) error {
	return datasource.OptimisticRelation(ctx, d.relations, d.accountType, userKey,
		map[string]any{"following": true},
		map[string]any{"following": false},
		func(ctx context.Context) error { return d.svc.Follow(ctx, userKey.ID) })
}

func (d *DataSource) Unfollow(ctx context.Context, userKey model.MicroBlogKey) error {
	return datasource.OptimisticRelation(ctx, d.relations, d.accountType, userKey,
		map[string]any{"following": false},
		map[string]any{"following": true},
		func(ctx context.Context) error { return d.svc.Unfollow(ctx, userKey.ID) })
}

func (d *DataSource) Block(ctx context.Context, userKey model.MicroBlogKey) error {
	return datasource.OptimisticRelation(ctx, d.relations, d.accountType, userKey,
		map[string]any{"blocking": true},
		map[string]any{"blocking": false},
		func(ctx context.Context) error { return d.svc.Block(ctx, userKey.ID) })
}

func (d *DataSource) Unblock(ctx context.Context, userKey model.MicroBlogKey) error {
	return datasource.OptimisticRelation(ctx, d.relations, d.accountType, userKey,
		map[string]any{"blocking": false},
		map[string]any{"blocking": true},
		func(ctx context.Context) error { return d.svc.Unblock(ctx, userKey.ID) })
}

func (d *DataSource) Mute(ctx context.Context, userKey model.MicroBlogKey) error {
	return datasource.OptimisticRelation(ctx, d.relations, d.accountType, userKey,
		map[string]any{"muting": true},
		map[string]any{"muting": false},
		func(ctx context.Context) error { return d.svc.Mute(ctx, userKey.ID) })
}

func (d *DataSource) Unmute(ctx context.Context, userKey model.MicroBlogKey) error {
	return datasource.OptimisticRelation(ctx, d.relations, d.accountType, userKey,
		map[string]any{"muting": false},
		map[string]any{"muting": true},
		func(ctx context.Context) error { return d.svc.Unmute(ctx, userKey.ID) })
}

// Compose 发帖成功后写入本地实体，等待下一次刷新纳入时间线窗口。
func (d *DataSource) Compose(ctx context.Context, req PostStatusRequest) error {
	st, err := d.svc.PostStatus(ctx, req)
	if err != nil {
		return err
	}
	row := toRow(*st, d.accountKey.Host)
	if err := d.store.UpsertUsers(ctx, row.Users); err != nil {
		return err
	}
	return d.store.UpsertStatuses(ctx, []model.DbStatus{row.Status})
}

// DeleteStatus 远端删除成功后级联清掉本地实体和所有时间线行。
func (d *DataSource) DeleteStatus(ctx context.Context, statusKey model.MicroBlogKey) error {
	if err := d.svc.DeleteStatus(ctx, statusKey.ID); err != nil {
		return err
	}
	return d.store.DeleteStatus(ctx, statusKey)
}
