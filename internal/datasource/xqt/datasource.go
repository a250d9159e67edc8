package xqt

import (
	"context"
	"fmt"

	"github.com/d60-Lab/flare-sync/internal/datasource"
	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
	"github.com/d60-Lab/flare-sync/internal/paging"
	"github.com/d60-Lab/flare-sync/internal/repository"
)

// DataSource XQT 账号门面
type DataSource struct {
	accountKey  model.MicroBlogKey
	accountType model.AccountType
	svc         *Service
	store       *repository.CacheStore
	relations   repository.RelationRepository
	hub         notify.Hub
	pageSize    int
}

func NewDataSource(accountKey model.MicroBlogKey, authToken, csrfToken string, store *repository.CacheStore, relations repository.RelationRepository, hub notify.Hub, pageSize int) *DataSource {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &DataSource{
		accountKey:  accountKey,
		accountType: model.AccountTypeSpecific(accountKey),
		svc:         NewService(accountKey, authToken, csrfToken),
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

// HomeTimeline 按时间流；缓存优先，不随订阅自动刷新。
func (d *DataSource) HomeTimeline() *paging.TimelinePager {
	return d.pager("home_"+d.accountKey.String(), HomeLatestTimelineMediator(d.svc))
}

func (d *DataSource) FeaturedTimeline() *paging.TimelinePager {
	return d.pager("featured_"+d.accountKey.String(), FeaturedTimelineMediator(d.svc))
}

func (d *DataSource) BookmarkTimeline() *paging.TimelinePager {
	return d.pager("bookmark_"+d.accountKey.String(), BookmarksMediator(d.svc))
}

func (d *DataSource) UserTimeline(userKey model.MicroBlogKey) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("user_%s_%s", userKey, d.accountKey), UserTweetsMediator(d.svc, userKey.ID))
}

func (d *DataSource) UserMediaTimeline(userKey model.MicroBlogKey) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("user_media_%s_%s", userKey, d.accountKey), UserMediaMediator(d.svc, userKey.ID))
}

func (d *DataSource) SearchTimeline(query string) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("search_%s_%s", query, d.accountKey), SearchMediator(d.svc, query))
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

func (d *DataSource) Compose(ctx context.Context, text, inReplyToID string) error {
	return d.svc.CreateTweet(ctx, text, inReplyToID)
}

func (d *DataSource) DeleteStatus(ctx context.Context, statusKey model.MicroBlogKey) error {
	if err := d.svc.DeleteTweet(ctx, statusKey.ID); err != nil {
		return err
	}
	return d.store.DeleteStatus(ctx, statusKey)
}
