package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/d60-Lab/flare-sync/internal/datasource/bluesky"
	"github.com/d60-Lab/flare-sync/internal/datasource/mastodon"
	"github.com/d60-Lab/flare-sync/internal/datasource/misskey"
	"github.com/d60-Lab/flare-sync/internal/datasource/vvo"
	"github.com/d60-Lab/flare-sync/internal/datasource/xqt"
	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
	"github.com/d60-Lab/flare-sync/internal/repository"
)

var (
	ErrSessionNotFound  = errors.New("timeline session not found")
	ErrUnknownTimeline  = errors.New("unknown timeline kind")
	ErrParamRequired    = errors.New("timeline kind requires a param")
)

// TimelineService 管理 pager 会话：HTTP 侧 Open 拿到 session id，
// 之后的快照、取行、刷新、重试、关闭都按 id 走。
type TimelineService interface {
	Open(ctx context.Context, accountKey model.MicroBlogKey, kind, param string) (string, error)
	Snapshot(sessionID string) (paging.Snapshot, error)
	Items(sessionID string, offset, limit int) ([]repository.TimelineItem, error)
	Refresh(sessionID string) error
	Retry(sessionID string) error
	Close(sessionID string) error
	CloseAll()
}

type timelineService struct {
	accountSvc AccountService

	mu       sync.Mutex
	sessions map[string]*paging.TimelinePager
}

func NewTimelineService(accountSvc AccountService) TimelineService {
	return &timelineService{
		accountSvc: accountSvc,
		sessions:   make(map[string]*paging.TimelinePager),
	}
}

func needParam(param string) (string, error) {
	if param == "" {
		return "", ErrParamRequired
	}
	return param, nil
}

func needKey(param string) (model.MicroBlogKey, error) {
	if param == "" {
		return model.MicroBlogKey{}, ErrParamRequired
	}
	return model.ParseMicroBlogKey(param)
}

// openPager kind×platform 调度。param 的含义随 kind 变化：
// user/status 系列是 MicroBlogKey，search 是查询串，list/channel/feed 是远端 id。
func openPager(ds DataSource, kind, param string) (*paging.TimelinePager, error) {
	switch d := ds.(type) {
	case *mastodon.DataSource:
		switch kind {
		case "home":
			return d.HomeTimeline(), nil
		case "local":
			return d.PublicTimeline(true), nil
		case "federated":
			return d.PublicTimeline(false), nil
		case "notifications":
			return d.NotificationTimeline(), nil
		case "favourites":
			return d.FavouriteTimeline(), nil
		case "user":
			key, err := needKey(param)
			if err != nil {
				return nil, err
			}
			return d.UserTimeline(key), nil
		case "list":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.ListTimeline(p), nil
		case "hashtag":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.HashtagTimeline(p), nil
		case "search":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.SearchTimeline(p), nil
		case "status_context":
			key, err := needKey(param)
			if err != nil {
				return nil, err
			}
			return d.StatusContext(key), nil
		}
	case *misskey.DataSource:
		switch kind {
		case "home":
			return d.HomeTimeline(), nil
		case "local":
			return d.LocalTimeline(), nil
		case "notifications":
			return d.NotificationTimeline(), nil
		case "user":
			key, err := needKey(param)
			if err != nil {
				return nil, err
			}
			return d.UserTimeline(key), nil
		case "search":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.SearchTimeline(p), nil
		case "channel":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.ChannelTimeline(p), nil
		case "status_children":
			key, err := needKey(param)
			if err != nil {
				return nil, err
			}
			return d.StatusChildren(key), nil
		}
	case *bluesky.DataSource:
		switch kind {
		case "home":
			return d.HomeTimeline(), nil
		case "notifications":
			return d.NotificationTimeline(), nil
		case "user":
			key, err := needKey(param)
			if err != nil {
				return nil, err
			}
			return d.UserTimeline(key), nil
		case "feed":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.FeedTimeline(p), nil
		case "list":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.ListTimeline(p), nil
		case "search":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.SearchTimeline(p), nil
		}
	case *xqt.DataSource:
		switch kind {
		case "home":
			return d.HomeTimeline(), nil
		case "featured":
			return d.FeaturedTimeline(), nil
		case "bookmarks":
			return d.BookmarkTimeline(), nil
		case "user":
			key, err := needKey(param)
			if err != nil {
				return nil, err
			}
			return d.UserTimeline(key), nil
		case "user_media":
			key, err := needKey(param)
			if err != nil {
				return nil, err
			}
			return d.UserMediaTimeline(key), nil
		case "search":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.SearchTimeline(p), nil
		}
	case *vvo.DataSource:
		switch kind {
		case "home":
			return d.HomeTimeline(), nil
		case "mentions":
			return d.MentionTimeline(), nil
		case "comment_mentions":
			return d.CommentMentionTimeline(), nil
		case "user":
			key, err := needKey(param)
			if err != nil {
				return nil, err
			}
			return d.UserTimeline(key), nil
		case "search":
			p, err := needParam(param)
			if err != nil {
				return nil, err
			}
			return d.SearchTimeline(p), nil
		case "status_reposts":
			key, err := needKey(param)
			if err != nil {
				return nil, err
			}
			return d.StatusRepostTimeline(key), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTimeline, kind)
}

func (s *timelineService) Open(ctx context.Context, accountKey model.MicroBlogKey, kind, param string) (string, error) {
	ds, err := s.accountSvc.DataSource(ctx, accountKey)
	if err != nil {
		return "", err
	}
	pager, err := openPager(ds, kind, param)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = pager
	s.mu.Unlock()
	return id, nil
}

func (s *timelineService) pager(sessionID string) (*paging.TimelinePager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pager, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return pager, nil
}

func (s *timelineService) Snapshot(sessionID string) (paging.Snapshot, error) {
	pager, err := s.pager(sessionID)
	if err != nil {
		return paging.Snapshot{}, err
	}
	return pager.Snapshot(), nil
}

// Items 逐行经 pager.Get 读取，读到加载边界会触发追加拉取。
func (s *timelineService) Items(sessionID string, offset, limit int) ([]repository.TimelineItem, error) {
	if limit <= 0 {
		limit = 20
	}
	pager, err := s.pager(sessionID)
	if err != nil {
		return nil, err
	}
	items := make([]repository.TimelineItem, 0, limit)
	for i := offset; i < offset+limit; i++ {
		item := pager.Get(i)
		if item == nil {
			break
		}
		items = append(items, *item)
	}
	return items, nil
}

func (s *timelineService) Refresh(sessionID string) error {
	pager, err := s.pager(sessionID)
	if err != nil {
		return err
	}
	pager.Refresh()
	return nil
}

func (s *timelineService) Retry(sessionID string) error {
	pager, err := s.pager(sessionID)
	if err != nil {
		return err
	}
	pager.Retry()
	return nil
}

func (s *timelineService) Close(sessionID string) error {
	s.mu.Lock()
	pager, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	pager.Close()
	return nil
}

func (s *timelineService) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*paging.TimelinePager)
	s.mu.Unlock()
	for _, pager := range sessions {
		pager.Close()
	}
}
