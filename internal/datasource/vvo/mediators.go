package vvo

import (
	"context"
	"strconv"

	"github.com/d60-Lab/flare-sync/internal/paging"
)

// pageMediator 页码翻页的时间线。刷新拉第 1 页，cursor 存下一页页码；
// 每次调用前先过 config 登录核对，未登录快速失败不打业务端点。
type pageMediator struct {
	svc   *Service
	fetch func(ctx context.Context, page int) ([]Status, error)
}

func (m *pageMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	if err := m.svc.CheckLogin(ctx); err != nil {
		return paging.Result{}, err
	}
	page := 1
	if req.Kind == paging.RequestAppend && req.NextKey != "" {
		n, err := strconv.Atoi(req.NextKey)
		if err != nil {
			return paging.Result{}, err
		}
		page = n
	}
	statuses, err := m.fetch(ctx, page)
	if err != nil {
		return paging.Result{}, err
	}
	if len(statuses) == 0 {
		return paging.Result{EndOfPaginationReached: true}, nil
	}
	return paging.Result{
		NextKey: strconv.Itoa(page + 1),
		Rows:    toRows(statuses, m.svc.accountKey.Host, page, pageSize),
	}, nil
}

func HomeTimelineMediator(s *Service) paging.Mediator {
	return &pageMediator{svc: s, fetch: s.HomeTimeline}
}

// MentionsAtMediator @我的微博
func MentionsAtMediator(s *Service) paging.Mediator {
	return &pageMediator{svc: s, fetch: s.MentionsAt}
}

// MentionsCmtMediator @我的评论
func MentionsCmtMediator(s *Service) paging.Mediator {
	return &pageMediator{svc: s, fetch: s.MentionsCmt}
}

func UserTimelineMediator(s *Service, userID string) paging.Mediator {
	return &pageMediator{
		svc: s,
		fetch: func(ctx context.Context, page int) ([]Status, error) {
			return s.UserTimeline(ctx, userID, page)
		},
	}
}

func SearchMediator(s *Service, query string) paging.Mediator {
	return &pageMediator{
		svc: s,
		fetch: func(ctx context.Context, page int) ([]Status, error) {
			return s.SearchTimeline(ctx, query, page)
		},
	}
}

func StatusRepostsMediator(s *Service, statusID string) paging.Mediator {
	return &pageMediator{
		svc: s,
		fetch: func(ctx context.Context, page int) ([]Status, error) {
			return s.StatusReposts(ctx, statusID, page)
		},
	}
}
