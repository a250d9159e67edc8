package xqt

import (
	"context"

	"github.com/d60-Lab/flare-sync/internal/paging"
)

// timelineMediator cursor token 翻页的 GraphQL 时间线。
// 远端不给 bottom cursor 或页内没有 tweet 即到底。
type timelineMediator struct {
	host  string
	fetch func(ctx context.Context, count int, cursor string) (TimelinePage, error)
}

func (m *timelineMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	cursor := ""
	if req.Kind == paging.RequestAppend {
		cursor = req.NextKey
	}
	page, err := m.fetch(ctx, pageSize, cursor)
	if err != nil {
		return paging.Result{}, err
	}
	return paging.Result{
		EndOfPaginationReached: len(page.Tweets) == 0 || page.BottomCursor == "",
		NextKey:                page.BottomCursor,
		Rows:                   toRows(page, m.host),
	}, nil
}

// homeLatestMediator 主页按时间流。优先展示本地缓存，
// 不在订阅时自动清窗刷新，和其他时间线不同。
type homeLatestMediator struct {
	timelineMediator
}

func (m *homeLatestMediator) Policy() paging.Policy {
	return paging.Policy{SkipInitialRefresh: true, ClearOnRefresh: true}
}

func HomeLatestTimelineMediator(s *Service) paging.Mediator {
	return &homeLatestMediator{timelineMediator{host: s.accountKey.Host, fetch: s.HomeLatestTimeline}}
}

// FeaturedTimelineMediator 算法推荐流
func FeaturedTimelineMediator(s *Service) paging.Mediator {
	return &timelineMediator{host: s.accountKey.Host, fetch: s.HomeTimeline}
}

func BookmarksMediator(s *Service) paging.Mediator {
	return &timelineMediator{host: s.accountKey.Host, fetch: s.Bookmarks}
}

func UserTweetsMediator(s *Service, userID string) paging.Mediator {
	return &timelineMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, count int, cursor string) (TimelinePage, error) {
			return s.UserTweets(ctx, userID, count, cursor)
		},
	}
}

func UserMediaMediator(s *Service, userID string) paging.Mediator {
	return &timelineMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, count int, cursor string) (TimelinePage, error) {
			return s.UserMedia(ctx, userID, count, cursor)
		},
	}
}

func SearchMediator(s *Service, query string) paging.Mediator {
	return &timelineMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, count int, cursor string) (TimelinePage, error) {
			return s.SearchTimeline(ctx, query, count, cursor)
		},
	}
}
