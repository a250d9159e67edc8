package misskey

import (
	"context"

	"github.com/d60-Lab/flare-sync/internal/paging"
)

// noteTimelineMediator untilId 翻页的 note 时间线通用实现。
type noteTimelineMediator struct {
	host  string
	fetch func(ctx context.Context, limit int, untilID string) ([]Note, error)
}

func (m *noteTimelineMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	untilID := ""
	if req.Kind == paging.RequestAppend {
		untilID = req.NextKey
	}
	notes, err := m.fetch(ctx, pageSize, untilID)
	if err != nil {
		return paging.Result{}, err
	}
	if len(notes) == 0 {
		return paging.Result{EndOfPaginationReached: true}, nil
	}
	return paging.Result{
		NextKey: notes[len(notes)-1].ID,
		Rows:    toRows(notes, m.host),
	}, nil
}

// instanceEmojiMediator 装饰：首次拿到数据时顺带抓一次实例表情，
// 挂在首行经 pager 落入 emojis 表。表情拉取失败不拖垮时间线。
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
		inner: &noteTimelineMediator{host: s.accountKey.Host, fetch: s.HomeTimeline},
		fetch: s.Meta,
		host:  s.accountKey.Host,
	}
}

func LocalTimelineMediator(s *Service) paging.Mediator {
	return &noteTimelineMediator{host: s.accountKey.Host, fetch: s.LocalTimeline}
}

func SearchMediator(s *Service, query string) paging.Mediator {
	return &noteTimelineMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, limit int, untilID string) ([]Note, error) {
			return s.SearchNotes(ctx, query, limit, untilID)
		},
	}
}

func ChannelTimelineMediator(s *Service, channelID string) paging.Mediator {
	return &noteTimelineMediator{
		host: s.accountKey.Host,
		fetch: func(ctx context.Context, limit int, untilID string) ([]Note, error) {
			return s.ChannelTimeline(ctx, channelID, limit, untilID)
		},
	}
}

// noteChildrenMediator 详情页：刷新时先经 notes/show 取根 note，
// 标 pinned 固定在窗口最前，回复按 untilId 继续翻页。
type noteChildrenMediator struct {
	svc    *Service
	noteID string
}

func (m *noteChildrenMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	host := m.svc.accountKey.Host
	untilID := ""
	var rows []paging.Row
	if req.Kind == paging.RequestRefresh {
		root, err := m.svc.ShowNote(ctx, m.noteID)
		if err != nil {
			return paging.Result{}, err
		}
		row := toRow(*root, host)
		row.Pinned = true
		rows = append(rows, row)
	} else {
		untilID = req.NextKey
	}
	notes, err := m.svc.NoteChildren(ctx, m.noteID, pageSize, untilID)
	if err != nil {
		return paging.Result{}, err
	}
	for _, n := range notes {
		rows = append(rows, toRow(n, host))
	}
	if len(notes) == 0 {
		return paging.Result{EndOfPaginationReached: true, Rows: rows}, nil
	}
	return paging.Result{NextKey: notes[len(notes)-1].ID, Rows: rows}, nil
}

// NoteChildrenMediator 详情页时间线（根 note + 回复）
func NoteChildrenMediator(s *Service, noteID string) paging.Mediator {
	return &noteChildrenMediator{svc: s, noteID: noteID}
}

// userTimelineMediator 用户主页。刷新时经 users/show 取置顶 note，
// 置顶 id 集合记在 mediator 实例上，后续翻页命中时继续打 pinned 标。
type userTimelineMediator struct {
	svc       *Service
	userID    string
	pinnedIDs map[string]struct{}
}

func (m *userTimelineMediator) Timeline(ctx context.Context, pageSize int, req paging.Request) (paging.Result, error) {
	if req.Kind == paging.RequestPrepend {
		return paging.PrependUnsupported()
	}
	host := m.svc.accountKey.Host
	var rows []paging.Row
	if req.Kind == paging.RequestRefresh {
		detail, err := m.svc.ShowUser(ctx, m.userID)
		if err != nil {
			return paging.Result{}, err
		}
		m.pinnedIDs = make(map[string]struct{}, len(detail.PinnedNotes))
		for _, n := range detail.PinnedNotes {
			m.pinnedIDs[n.ID] = struct{}{}
			row := toRow(n, host)
			row.Pinned = true
			rows = append(rows, row)
		}
	}
	untilID := ""
	if req.Kind == paging.RequestAppend {
		untilID = req.NextKey
	}
	notes, err := m.svc.UserNotes(ctx, m.userID, pageSize, untilID)
	if err != nil {
		return paging.Result{}, err
	}
	for _, n := range notes {
		row := toRow(n, host)
		if _, ok := m.pinnedIDs[n.ID]; ok {
			row.Pinned = true
		}
		rows = append(rows, row)
	}
	if len(notes) == 0 {
		return paging.Result{EndOfPaginationReached: true, Rows: rows}, nil
	}
	return paging.Result{NextKey: notes[len(notes)-1].ID, Rows: rows}, nil
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
	untilID := ""
	if req.Kind == paging.RequestAppend {
		untilID = req.NextKey
	}
	notifications, err := m.svc.Notifications(ctx, pageSize, untilID)
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
