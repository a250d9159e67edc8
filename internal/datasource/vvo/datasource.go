package vvo

import (
	"context"
	"fmt"

	"github.com/d60-Lab/flare-sync/internal/datasource"
	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
	"github.com/d60-Lab/flare-sync/internal/paging"
	"github.com/d60-Lab/flare-sync/internal/repository"
)

// DataSource VVO 账号门面
type DataSource struct {
	accountKey  model.MicroBlogKey
	accountType model.AccountType
	svc         *Service
	store       *repository.CacheStore
	relations   repository.RelationRepository
	hub         notify.Hub
	pageSize    int
}

func NewDataSource(accountKey model.MicroBlogKey, cookie string, store *repository.CacheStore, relations repository.RelationRepository, hub notify.Hub, pageSize int) *DataSource {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &DataSource{
		accountKey:  accountKey,
		accountType: model.AccountTypeSpecific(accountKey),
		svc:         NewService(accountKey, cookie),
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

func (d *DataSource) MentionTimeline() *paging.TimelinePager {
	return d.pager("mention_"+d.accountKey.String(), MentionsAtMediator(d.svc))
}

func (d *DataSource) CommentMentionTimeline() *paging.TimelinePager {
	return d.pager("comment_mention_"+d.accountKey.String(), MentionsCmtMediator(d.svc))
}

func (d *DataSource) UserTimeline(userKey model.MicroBlogKey) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("user_%s_%s", userKey, d.accountKey), UserTimelineMediator(d.svc, userKey.ID))
}

func (d *DataSource) SearchTimeline(query string) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("search_%s_%s", query, d.accountKey), SearchMediator(d.svc, query))
}

func (d *DataSource) StatusRepostTimeline(statusKey model.MicroBlogKey) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("status_repost_%s_%s", statusKey, d.accountKey), StatusRepostsMediator(d.svc, statusKey.ID))
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

func (d *DataSource) Compose(ctx context.Context, content string) error {
	return d.svc.Compose(ctx, content)
}

func (d *DataSource) DeleteStatus(ctx context.Context, statusKey model.MicroBlogKey) error {
	if err := d.svc.DeleteStatus(ctx, statusKey.ID); err != nil {
		return err
	}
	return d.store.DeleteStatus(ctx, statusKey)
}
