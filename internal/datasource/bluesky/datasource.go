package bluesky

import (
	"context"
	"fmt"

	"github.com/d60-Lab/flare-sync/internal/datasource"
	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
	"github.com/d60-Lab/flare-sync/internal/paging"
	"github.com/d60-Lab/flare-sync/internal/repository"
)

// DataSource Bluesky 账号门面。accountKey 是 did@pdsHost。
type DataSource struct {
	accountKey  model.MicroBlogKey
	accountType model.AccountType
	svc         *Service
	store       *repository.CacheStore
	relations   repository.RelationRepository
	hub         notify.Hub
	pageSize    int
}

func NewDataSource(accountKey model.MicroBlogKey, accessJwt string, store *repository.CacheStore, relations repository.RelationRepository, hub notify.Hub, pageSize int) *DataSource {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &DataSource{
		accountKey:  accountKey,
		accountType: model.AccountTypeSpecific(accountKey),
		svc:         NewService(accountKey, accessJwt),
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

func (d *DataSource) NotificationTimeline() *paging.TimelinePager {
	return d.pager("notification_"+d.accountKey.String(), NotificationMediator(d.svc))
}

func (d *DataSource) UserTimeline(userKey model.MicroBlogKey) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("user_%s_%s", userKey, d.accountKey), AuthorFeedMediator(d.svc, userKey.ID))
}

func (d *DataSource) FeedTimeline(feedURI string) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("feed_%s_%s", feedURI, d.accountKey), FeedGeneratorMediator(d.svc, feedURI))
}

func (d *DataSource) ListTimeline(listURI string) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("list_%s_%s", listURI, d.accountKey), ListFeedMediator(d.svc, listURI))
}

func (d *DataSource) SearchTimeline(query string) *paging.TimelinePager {
	return d.pager(fmt.Sprintf("search_%s_%s", query, d.accountKey), SearchMediator(d.svc, query))
}

// Relation 拉远端 viewer 状态并同步进本地快照，返回同步后的行。
// Bluesky 的 following/blocking 是记录 URI，非空即生效。
func (d *DataSource) Relation(ctx context.Context, userKey model.MicroBlogKey) (*model.DbRelation, error) {
	profile, err := d.svc.GetProfile(ctx, userKey.ID)
	if err != nil {
		return nil, err
	}
	if err := d.relations.SetFlags(ctx, d.accountType, userKey, map[string]any{
		"following": profile.Viewer.Following != "",
		"blocking":  profile.Viewer.Blocking != "",
		"muting":    profile.Viewer.Muted,
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

func (d *DataSource) Compose(ctx context.Context, text, replyParentURI string) error {
	_, err := d.svc.CreatePost(ctx, text, replyParentURI)
	return err
}

func (d *DataSource) DeleteStatus(ctx context.Context, statusKey model.MicroBlogKey) error {
	if err := d.svc.DeletePost(ctx, statusKey.ID); err != nil {
		return err
	}
	return d.store.DeleteStatus(ctx, statusKey)
}
