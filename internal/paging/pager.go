package paging

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
	"github.com/d60-Lab/flare-sync/internal/repository"
	"github.com/d60-Lab/flare-sync/pkg/logger"
)

// LoadState pager 对外的顶层状态
type LoadState int

const (
	StateLoading LoadState = iota
	StateEmpty
	StateSuccess
	StateError
)

// AppendState 尾部追加子状态
type AppendState int

const (
	AppendNotLoading AppendState = iota
	AppendLoading
	AppendError
)

// Snapshot 一次性读取的状态快照，供渲染层使用。
type Snapshot struct {
	State       LoadState
	Err         error
	ItemCount   int
	AppendState AppendState
	AppendErr   error
	// EndOfPaginationReached 对 Append 方向单调：一旦为 true，
	// 只有显式 Refresh 能复位。
	EndOfPaginationReached bool
}

// Store pager 需要的缓存读写面；repository.CacheStore 满足该接口。
type Store interface {
	UpsertStatuses(ctx context.Context, rows []model.DbStatus) error
	UpsertUsers(ctx context.Context, rows []model.DbUser) error
	UpsertEmojis(ctx context.Context, rows []model.DbEmoji) error
	ReplacePagingWindow(ctx context.Context, accountType model.AccountType, pagingKey string, rows []model.DbPagingTimeline) error
	AppendPaging(ctx context.Context, rows []model.DbPagingTimeline) error
	PrependPaging(ctx context.Context, rows []model.DbPagingTimeline) error
	GetPage(ctx context.Context, accountType model.AccountType, pagingKey string, limit, offset int) ([]repository.TimelineItem, error)
	CountPaging(ctx context.Context, accountType model.AccountType, pagingKey string) (int64, error)
}

// Params 构造参数
type Params struct {
	AccountType model.AccountType
	PagingKey   string
	PageSize    int
	Mediator    Mediator
	Store       Store
	Hub         notify.Hub
}

// 距已加载尾部多少行内触发追加
const appendPrefetchDistance = 3

// TimelinePager 时间线分页状态机。职责：
//   - 组合 mediator 与缓存：mediator 取页，pager 落库，快照永远来自缓存；
//   - 单飞：同一 pagingKey 任意时刻至多一次拉取在途，刷新重入合并为 no-op；
//   - 边界去重：同一加载边界只触发一次 Append；
//   - 失败保留缓存，重试只重发失败的那次请求。
type TimelinePager struct {
	accountType model.AccountType
	pagingKey   string
	pageSize    int
	mediator    Mediator
	store       Store
	policy      Policy
	log         *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	hubCancel func()
	updates   chan struct{}

	mu               sync.Mutex
	items            []repository.TimelineItem
	state            LoadState
	err              error
	appendState      AppendState
	appendErr        error
	endReached       bool
	nextKey          string
	inFlight         bool
	lastFailed       *Request
	appendTriggerLen int
	closed           bool
}

var tracer = otel.Tracer("flare-sync/paging")

// NewTimelinePager 构造并启动：订阅缓存变更、按 mediator 策略决定初始加载。
func NewTimelinePager(p Params) *TimelinePager {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	ctx, cancel := context.WithCancel(context.Background())
	pager := &TimelinePager{
		accountType:      p.AccountType,
		pagingKey:        p.PagingKey,
		pageSize:         p.PageSize,
		mediator:         p.Mediator,
		store:            p.Store,
		policy:           PolicyOf(p.Mediator),
		log:              logger.L().With(zap.String("paging_key", p.PagingKey)),
		ctx:              ctx,
		cancel:           cancel,
		updates:          make(chan struct{}, 1),
		state:            StateLoading,
		appendTriggerLen: -1,
	}

	hubCh, hubCancel := p.Hub.Subscribe(notify.Topic(p.AccountType.String(), p.PagingKey))
	pager.hubCancel = hubCancel
	go pager.watch(hubCh)

	pager.mu.Lock()
	pager.reloadLocked()
	pager.recomputeLocked()
	hasCache := len(pager.items) > 0
	pager.mu.Unlock()

	if pager.policy.SkipInitialRefresh {
		// 缓存优先；空缓存时用不带 cursor 的 Append 拉首页，不清窗。
		if !hasCache {
			pager.trigger(Request{Kind: RequestAppend})
		}
	} else {
		pager.trigger(Request{Kind: RequestRefresh})
	}
	return pager
}

// watch 监听共享缓存的变更信号（其他订阅者或其他进程的写入同样会触发）。
func (p *TimelinePager) watch(ch <-chan struct{}) {
	for {
		select {
		case <-p.ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			p.mu.Lock()
			p.reloadLocked()
			p.recomputeLocked()
			p.notifyLocked()
			p.mu.Unlock()
		}
	}
}

// Updates 合并后的重渲染信号
func (p *TimelinePager) Updates() <-chan struct{} { return p.updates }

// Snapshot returns the current load state; safe to call from any goroutine.
func (p *TimelinePager) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		State:                  p.state,
		Err:                    p.err,
		ItemCount:              len(p.items),
		AppendState:            p.appendState,
		AppendErr:              p.appendErr,
		EndOfPaginationReached: p.endReached,
	}
}

// Peek 非阻塞读，越界返回 nil，绝不触发网络。
func (p *TimelinePager) Peek(index int) *repository.TimelineItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.items) {
		return nil
	}
	item := p.items[index]
	return &item
}

// Get 读取一行；接近已加载尾部时触发一次 Append（同一边界只触发一次）。
func (p *TimelinePager) Get(index int) *repository.TimelineItem {
	p.mu.Lock()
	var item *repository.TimelineItem
	if index >= 0 && index < len(p.items) {
		it := p.items[index]
		item = &it
	}
	shouldAppend := !p.endReached &&
		p.appendState != AppendError &&
		!p.inFlight &&
		index >= len(p.items)-appendPrefetchDistance &&
		len(p.items) != p.appendTriggerLen
	var req Request
	if shouldAppend {
		p.appendTriggerLen = len(p.items)
		req = Request{Kind: RequestAppend, NextKey: p.nextKey}
	}
	p.mu.Unlock()

	if shouldAppend {
		p.trigger(req)
	}
	return item
}

// Refresh 重入安全：在途时合并为 no-op。
func (p *TimelinePager) Refresh() {
	p.trigger(Request{Kind: RequestRefresh})
}

// Retry 只重发失败的那次请求（种类与 cursor 保持原样）。
func (p *TimelinePager) Retry() {
	p.mu.Lock()
	req := p.lastFailed
	p.mu.Unlock()
	if req != nil {
		p.trigger(*req)
	}
}

// Close 释放缓存观察并取消在途拉取；不影响共享同一 pagingKey 的其他订阅者。
func (p *TimelinePager) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.hubCancel()
}

// trigger 单飞闸门：在途或已关闭时丢弃。
func (p *TimelinePager) trigger(req Request) {
	p.mu.Lock()
	if p.inFlight || p.closed {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.lastFailed = nil
	switch req.Kind {
	case RequestRefresh:
		p.err = nil
		p.appendErr = nil
		p.appendState = AppendNotLoading
		p.appendTriggerLen = -1
		if len(p.items) == 0 {
			p.state = StateLoading
		}
	case RequestAppend:
		p.appendState = AppendLoading
		p.appendErr = nil
	}
	p.notifyLocked()
	p.mu.Unlock()

	go p.fetch(req)
}

func (p *TimelinePager) fetch(req Request) {
	ctx, span := tracer.Start(p.ctx, "mediator.timeline")
	span.SetAttributes(
		attribute.String("paging.key", p.pagingKey),
		attribute.String("paging.kind", req.Kind.String()),
	)
	defer span.End()

	result, err := p.mediator.Timeline(ctx, p.pageSize, req)
	if err == nil {
		err = p.persist(ctx, req, result)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false

	if err != nil {
		span.RecordError(err)
		failed := req
		p.lastFailed = &failed
		if req.Kind == RequestAppend {
			p.appendState = AppendError
			p.appendErr = err
		} else {
			p.err = err
		}
		p.log.Warn("timeline fetch failed",
			zap.String("kind", req.Kind.String()), zap.Error(err))
		p.recomputeLocked()
		p.notifyLocked()
		return
	}

	p.nextKey = result.NextKey
	p.endReached = result.EndOfPaginationReached
	p.appendState = AppendNotLoading
	p.appendErr = nil
	p.err = nil
	p.reloadLocked()
	p.recomputeLocked()
	p.notifyLocked()
}

// persist 先落实体再落索引；整页一个单位，失败整体向上抛。
func (p *TimelinePager) persist(ctx context.Context, req Request, result Result) error {
	var (
		statuses []model.DbStatus
		users    []model.DbUser
		emojis   []model.DbEmoji
		timeline []model.DbPagingTimeline
	)
	for _, row := range result.Rows {
		statuses = append(statuses, row.Status)
		users = append(users, row.Users...)
		emojis = append(emojis, row.Emojis...)
		timeline = append(timeline, model.DbPagingTimeline{
			AccountType: p.accountType,
			PagingKey:   p.pagingKey,
			StatusKey:   row.Status.StatusKey,
			SortID:      row.SortID,
			Pinned:      row.Pinned,
		})
	}
	if err := p.store.UpsertUsers(ctx, users); err != nil {
		return err
	}
	if err := p.store.UpsertStatuses(ctx, statuses); err != nil {
		return err
	}
	if err := p.store.UpsertEmojis(ctx, emojis); err != nil {
		return err
	}
	switch {
	case req.Kind == RequestRefresh && p.policy.ClearOnRefresh:
		return p.store.ReplacePagingWindow(ctx, p.accountType, p.pagingKey, timeline)
	case req.Kind == RequestPrepend:
		return p.store.PrependPaging(ctx, timeline)
	default:
		return p.store.AppendPaging(ctx, timeline)
	}
}

// reloadLocked 从缓存重建快照（整个 pagingKey 窗口）。
func (p *TimelinePager) reloadLocked() {
	cnt, err := p.store.CountPaging(p.ctx, p.accountType, p.pagingKey)
	if err != nil {
		p.log.Error("count paging failed", zap.Error(err))
		return
	}
	if cnt == 0 {
		p.items = nil
		return
	}
	items, err := p.store.GetPage(p.ctx, p.accountType, p.pagingKey, int(cnt), 0)
	if err != nil {
		p.log.Error("load page failed", zap.Error(err))
		return
	}
	p.items = items
}

func (p *TimelinePager) recomputeLocked() {
	switch {
	case p.err != nil:
		p.state = StateError
	case len(p.items) > 0:
		p.state = StateSuccess
	case p.endReached && !p.inFlight:
		p.state = StateEmpty
	default:
		p.state = StateLoading
	}
}

func (p *TimelinePager) notifyLocked() {
	select {
	case p.updates <- struct{}{}:
	default:
	}
}
