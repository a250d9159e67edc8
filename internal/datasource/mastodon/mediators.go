package mastodon

import (
	"context"
	"strconv"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
	"github.com/d60-Lab/flare-sync/internal/repository"
)

// statusTimelineMediator 覆盖所有 max_id 翻页的 status 时间线。
// 具体端点由 fetch 闭包决定，cursor 统一取末条 id。
type statusTimelineMediator struct {
	host  string
	fetch func(ctx context.Context, limit int, maxID string) ([]Status, error)
}

func (m *statusTimelineMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	maxID := ""
	if req.Kind == paging.RequestAppend {
		maxID = req.NextKey
	}
	statuses, err := m.fetch(ctx, pageSize, maxID)
	if err != nil {
		return paging.Result{}, err
	}
	if len(statuses) == 0 {
		return paging.Result{EndOfPaginationReached: true}, nil
	}
	return paging.Result{
		NextKey: statuses[len(statuses)-1].ID,
		Rows:    toRows(statuses, m.host),
	}, nil
}

// instanceEmojiMediator 装饰：首次拿到数据时顺带抓一次实例自定义表情，
// 挂在首行经 pager 落入 emojis 表。表情是装饰数据，拉取失败不拖垮时间线。
type instanceEmojiMediator struct {
	inner paging.Mediator
	fetch func(ctx context.Context) ([]Emoji, error)
	host  string
	done  bool
}

func (m *instanceEmojiMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	res, err := m.inner.Timeline(ctx, pageSize, req)
	if err != nil || m.done || len(res.Rows) == 0 {
		return res, err
	}
	if emojis, eerr := m.fetch(ctx); eerr == nil {
		res.Rows[0].Emojis = toDbEmojis(emojis, m.host)
		m.done = true
	}
	return res, nil
}

// HomeTimelineMediator 主页时间线，实例表情随首次刷新一并入库。
func HomeTimelineMediator(s *Service) paging.Mediator {
	return &instanceEmojiMediator{
		inner: &statusTimelineMediator{host: s.accountKey.Host, fetch: s.HomeTimeline},
		fetch: s.CustomEmojis,
		host:  s.accountKey.Host,
	}
}

// PublicTimelineMediator 本站/跨站公共时间线
func PublicTimelineMediator(s *Service, local bool) paging.Mediator {
	return &statusTimelineMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, limit int, maxID string) ([]Status, error) {
			return s.PublicTimeline(ctx, local, limit, maxID)
		},
	}
}

// HashtagTimelineMediator 话题时间线
func HashtagTimelineMediator(s *Service, tag string) paging.Mediator {
	return &statusTimelineMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, limit int, maxID string) ([]Status, error) {
			return s.HashtagTimeline(ctx, tag, limit, maxID)
		},
	}
}

// ListTimelineMediator 列表时间线
func ListTimelineMediator(s *Service, listID string) paging.Mediator {
	return &statusTimelineMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, limit int, maxID string) ([]Status, error) {
			return s.ListTimeline(ctx, listID, limit, maxID)
		},
	}
}

// FavouritesMediator 点赞过的 status
func FavouritesMediator(s *Service) paging.Mediator {
	return &statusTimelineMediator{host: s.accountKey.Host, fetch: s.Favourites}
}

// userTimelineMediator 用户主页。刷新时额外取置顶 status，
// 置顶行标记 pinned 排到窗口最前。
type userTimelineMediator struct {
	svc    *Service
	userID string
}

func (m *userTimelineMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	maxID := ""
	if req.Kind == paging.RequestAppend {
		maxID = req.NextKey
	}
	statuses, err := m.svc.UserTimeline(ctx, m.userID, pageSize, maxID, false)
	if err != nil {
		return paging.Result{}, err
	}
	host := m.svc.accountKey.Host
	var rows []paging.Row
	if req.Kind == paging.RequestRefresh {
		pinned, err := m.svc.UserTimeline(ctx, m.userID, pageSize, "", true)
		if err != nil {
			return paging.Result{}, err
		}
		for _, st := range pinned {
			row := toRow(st, host)
			row.Pinned = true
			rows = append(rows, row)
		}
	}
	rows = append(rows, toRows(statuses, host)...)
	if len(statuses) == 0 {
		return paging.Result{EndOfPaginationReached: true, Rows: rows}, nil
	}
	return paging.Result{NextKey: statuses[len(statuses)-1].ID, Rows: rows}, nil
}

func UserTimelineMediator(s *Service, userID string) paging.Mediator {
	return &userTimelineMediator{svc: s, userID: userID}
}

// notificationMediator 通知时间线
type notificationMediator struct {
	svc *Service
}

func (m *notificationMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	maxID := ""
	if req.Kind == paging.RequestAppend {
		maxID = req.NextKey
	}
	notifications, err := m.svc.Notifications(ctx, pageSize, maxID)
	if err != nil {
		return paging.Result{}, err
	}
	if len(notifications) == 0 {
		return paging.Result{EndOfPaginationReached: true}, nil
	}
	rows := make([]paging.Row, 0, len(notifications))
	for _, n := range notifications {
		rows = append(rows, notificationRow(n, m.svc.accountKey.Host))
	}
	return paging.Result{
		NextKey: notifications[len(notifications)-1].ID,
		Rows:    rows,
	}, nil
}

func NotificationMediator(s *Service) paging.Mediator {
	return &notificationMediator{svc: s}
}

// searchMediator 搜索接口没有 max_id，cursor 是累计 offset。
type searchMediator struct {
	svc   *Service
	query string
}

func (m *searchMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	offset := 0
	if req.Kind == paging.RequestAppend && req.NextKey != "" {
		n, err := strconv.Atoi(req.NextKey)
		if err != nil {
			return paging.Result{}, err
		}
		offset = n
	}
	statuses, err := m.svc.SearchStatuses(ctx, m.query, pageSize, offset)
	if err != nil {
		return paging.Result{}, err
	}
	if len(statuses) == 0 {
		return paging.Result{EndOfPaginationReached: true}, nil
	}
	return paging.Result{
		NextKey: strconv.Itoa(offset + len(statuses)),
		Rows:    toRows(statuses, m.svc.accountKey.Host),
	}, nil
}

func SearchMediator(s *Service, query string) paging.Mediator {
	return &searchMediator{svc: s, query: query}
}

// statusContextMediator 会话线程：祖先 + 本条 + 回复，一次拉全。
// sortId 取相反数的序号，窗口内按时间正序展示。
type statusContextMediator struct {
	svc         *Service
	store       *repository.CacheStore
	accountType model.AccountType
	pagingKey   string
	statusKey   model.MicroBlogKey
}

func (m *statusContextMediator) Policy() paging.Policy {
	// 详情页先展示缓存里的那条，再整线刷新
	return paging.Policy{SkipInitialRefresh: false, ClearOnRefresh: true}
}

// seedFromCache 本条 status 已在缓存时先写一行窗口，
// 线程拉全前详情页就有内容可渲染。
func (m *statusContextMediator) seedFromCache(ctx context.Context) {
	exists, err := m.store.ExistsPaging(ctx, m.accountType, m.pagingKey)
	if err != nil || exists {
		return
	}
	if _, err := m.store.FindStatus(ctx, m.statusKey); err != nil {
		return
	}
	_ = m.store.AppendPaging(ctx, []model.DbPagingTimeline{{
		AccountType: m.accountType,
		PagingKey:   m.pagingKey,
		StatusKey:   m.statusKey,
	}})
}

func (m *statusContextMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind != paging.RequestRefresh {
		return paging.PrependUnsupported()
	}
	m.seedFromCache(ctx)
	st, err := m.svc.GetStatus(ctx, m.statusKey.ID)
	if err != nil {
		return paging.Result{}, err
	}
	thread, err := m.svc.StatusContext(ctx, m.statusKey.ID)
	if err != nil {
		return paging.Result{}, err
	}
	host := m.svc.accountKey.Host
	ordered := make([]Status, 0, len(thread.Ancestors)+1+len(thread.Descendants))
	ordered = append(ordered, thread.Ancestors...)
	ordered = append(ordered, *st)
	ordered = append(ordered, thread.Descendants...)
	rows := make([]paging.Row, 0, len(ordered))
	for i, s := range ordered {
		row := toRow(s, host)
		row.SortID = -int64(i)
		rows = append(rows, row)
	}
	return paging.Result{EndOfPaginationReached: true, Rows: rows}, nil
}

func StatusContextMediator(s *Service, store *repository.CacheStore, accountType model.AccountType, pagingKey string, statusKey model.MicroBlogKey) paging.Mediator {
	return &statusContextMediator{
		svc:         s,
		store:       store,
		accountType: accountType,
		pagingKey:   pagingKey,
		statusKey:   statusKey,
	}
}
