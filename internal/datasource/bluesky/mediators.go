package bluesky

import (
	"context"

	"github.com/d60-Lab/flare-sync/internal/paging"
)

// feedMediator 覆盖所有返回 feed + cursor 的端点。
// cursor 不透明原样回传，远端不再给 cursor 即到底。
type feedMediator struct {
	host  string
	fetch func(ctx context.Context, limit int, cursor string) (*feedResponse, error)
}

func (m *feedMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	cursor := ""
	if req.Kind == paging.RequestAppend {
		cursor = req.NextKey
	}
	resp, err := m.fetch(ctx, pageSize, cursor)
	if err != nil {
		return paging.Result{}, err
	}
	return paging.Result{
		EndOfPaginationReached: resp.Cursor == "" || len(resp.Feed) == 0,
		NextKey:                resp.Cursor,
		Rows:                   toRows(resp.Feed, m.host),
	}, nil
}

func HomeTimelineMediator(s *Service) paging.Mediator {
	return &feedMediator{host: s.accountKey.Host, fetch: s.GetTimeline}
}

func AuthorFeedMediator(s *Service, actor string) paging.Mediator {
	return &feedMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, limit int, cursor string) (*feedResponse, error) {
			return s.GetAuthorFeed(ctx, actor, limit, cursor)
		},
	}
}

// FeedGeneratorMediator 自定义 feed（算法流）
func FeedGeneratorMediator(s *Service, feedURI string) paging.Mediator {
	return &feedMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, limit int, cursor string) (*feedResponse, error) {
			return s.GetFeed(ctx, feedURI, limit, cursor)
		},
	}
}

func ListFeedMediator(s *Service, listURI string) paging.Mediator {
	return &feedMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, limit int, cursor string) (*feedResponse, error) {
			return s.GetListFeed(ctx, listURI, limit, cursor)
		},
	}
}

type searchMediator struct {
	svc   *Service
	query string
}

func (m *searchMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	cursor := ""
	if req.Kind == paging.RequestAppend {
		cursor = req.NextKey
	}
	resp, err := m.svc.SearchPosts(ctx, m.query, pageSize, cursor)
	if err != nil {
		return paging.Result{}, err
	}
	rows := make([]paging.Row, 0, len(resp.Posts))
	for _, p := range resp.Posts {
		rows = append(rows, postRow(p, m.svc.accountKey.Host))
	}
	return paging.Result{
		EndOfPaginationReached: resp.Cursor == "" || len(resp.Posts) == 0,
		NextKey:                resp.Cursor,
		Rows:                   rows,
	}, nil
}

func SearchMediator(s *Service, query string) paging.Mediator {
	return &searchMediator{svc: s, query: query}
}

type notificationMediator struct {
	svc *Service
}

func (m *notificationMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	cursor := ""
	if req.Kind == paging.RequestAppend {
		cursor = req.NextKey
	}
	resp, err := m.svc.ListNotifications(ctx, pageSize, cursor)
	if err != nil {
		return paging.Result{}, err
	}
	rows := make([]paging.Row, 0, len(resp.Notifications))
	for _, n := range resp.Notifications {
		rows = append(rows, notificationRow(n, m.svc.accountKey.Host))
	}
	return paging.Result{
		EndOfPaginationReached: resp.Cursor == "" || len(resp.Notifications) == 0,
		NextKey:                resp.Cursor,
		Rows:                   rows,
	}, nil
}

func NotificationMediator(s *Service) paging.Mediator {
	return &notificationMediator{svc: s}
}
