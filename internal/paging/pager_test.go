package paging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
	"github.com/d60-Lab/flare-sync/internal/repository"
)

const testHost = "example.social"

var testAccount = model.AccountTypeSpecific(model.NewMicroBlogKey("1", testHost))

type fakeMediator struct {
	mu     sync.Mutex
	policy Policy
	calls  []Request
	script func(req Request) (Result, error)
	// block 非空时每次调用先等待放行（或 ctx 取消）
	block     chan struct{}
	cancelled chan struct{}
}

func (m *fakeMediator) Timeline(ctx context.Context, pageSize int, req Request) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	block := m.block
	script := m.script
	m.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			if m.cancelled != nil {
				close(m.cancelled)
			}
			return Result{}, ctx.Err()
		}
	}
	return script(req)
}

func (m *fakeMediator) Policy() Policy { return m.policy }

func (m *fakeMediator) callsOf(kind RequestKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func (m *fakeMediator) setScript(f func(req Request) (Result, error)) {
	m.mu.Lock()
	m.script = f
	m.mu.Unlock()
}

func newTestStore(t *testing.T) (*repository.CacheStore, notify.Hub) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.DbStatus{}, &model.DbUser{}, &model.DbEmoji{}, &model.DbPagingTimeline{},
	))
	hub := notify.NewChannelHub()
	t.Cleanup(func() { _ = hub.Close() })
	return repository.NewCacheStore(db, hub), hub
}

// page 构造一页归一化行；sortID 按出现顺序递减，保持远端时序。
func page(base int64, ids ...string) []Row {
	rows := make([]Row, 0, len(ids))
	for i, id := range ids {
		rows = append(rows, Row{
			Status: model.DbStatus{
				StatusKey:    model.NewMicroBlogKey(id, testHost),
				PlatformType: model.PlatformMastodon,
				Content:      fmt.Sprintf(`{"id":%q}`, id),
				CreatedAt:    time.Now(),
			},
			SortID: base - int64(i),
		})
	}
	return rows
}

func waitState(t *testing.T, p *TimelinePager, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	var last Snapshot
	require.Eventually(t, func() bool {
		last = p.Snapshot()
		return pred(last)
	}, 3*time.Second, 10*time.Millisecond)
	return last
}

func itemIDs(p *TimelinePager, n int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if it := p.Peek(i); it != nil {
			ids = append(ids, it.Status.StatusKey.ID)
		}
	}
	return ids
}

func newPager(store *repository.CacheStore, hub notify.Hub, m Mediator, pagingKey string) *TimelinePager {
	return NewTimelinePager(Params{
		AccountType: testAccount,
		PagingKey:   pagingKey,
		PageSize:    3,
		Mediator:    m,
		Store:       store,
		Hub:         hub,
	})
}

// Refresh [a,b,c] nextKey=3，Get(2) 触发 Append [d,e] 后终止。
func TestRefreshThenAppendScenario(t *testing.T) {
	store, hub := newTestStore(t)
	m := &fakeMediator{policy: Policy{ClearOnRefresh: true}}
	m.setScript(func(req Request) (Result, error) {
		switch req.Kind {
		case RequestRefresh:
			return Result{Rows: page(300, "a", "b", "c"), NextKey: "3"}, nil
		case RequestAppend:
			if req.NextKey != "3" {
				return Result{}, fmt.Errorf("unexpected cursor %q", req.NextKey)
			}
			return Result{Rows: page(200, "d", "e"), EndOfPaginationReached: true}, nil
		}
		return PrependUnsupported()
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()

	snap := waitState(t, p, func(s Snapshot) bool { return s.State == StateSuccess && s.ItemCount == 3 })
	assert.Equal(t, AppendNotLoading, snap.AppendState)

	p.Get(2)
	snap = waitState(t, p, func(s Snapshot) bool { return s.ItemCount == 5 })
	assert.Equal(t, StateSuccess, snap.State)
	assert.Equal(t, AppendNotLoading, snap.AppendState)
	assert.True(t, snap.EndOfPaginationReached)

	// 顺序与远端页拼接一致
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, itemIDs(p, 5))

	// 终止后越界读取不再触发拉取
	p.Get(4)
	p.Get(10)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, m.callsOf(RequestAppend))
}

// 远端未变时重复刷新不产生重复行
func TestRefreshIdempotent(t *testing.T) {
	store, hub := newTestStore(t)
	m := &fakeMediator{policy: Policy{ClearOnRefresh: true}}
	m.setScript(func(req Request) (Result, error) {
		if req.Kind == RequestRefresh {
			return Result{Rows: page(300, "a", "b", "c"), EndOfPaginationReached: true}, nil
		}
		return PrependUnsupported()
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()
	waitState(t, p, func(s Snapshot) bool { return s.ItemCount == 3 })

	before := itemIDs(p, 3)
	p.Refresh()
	waitState(t, p, func(s Snapshot) bool { return s.State == StateSuccess })
	require.Eventually(t, func() bool { return m.callsOf(RequestRefresh) == 2 }, 3*time.Second, 10*time.Millisecond)

	snap := p.Snapshot()
	assert.Equal(t, 3, snap.ItemCount)
	assert.Equal(t, before, itemIDs(p, 3))
}

// 在途刷新时的并发 refresh 合并为一次 mediator 调用
func TestRefreshSingleFlight(t *testing.T) {
	store, hub := newTestStore(t)
	m := &fakeMediator{policy: Policy{ClearOnRefresh: true}, block: make(chan struct{})}
	m.setScript(func(req Request) (Result, error) {
		return Result{Rows: page(300, "a"), EndOfPaginationReached: true}, nil
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()

	// 初始 refresh 正在途中
	require.Eventually(t, func() bool { return m.callsOf(RequestRefresh) == 1 }, time.Second, 5*time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() { defer wg.Done(); p.Refresh() }()
	}
	wg.Wait()
	close(m.block)

	waitState(t, p, func(s Snapshot) bool { return s.State == StateSuccess })
	assert.Equal(t, 1, m.callsOf(RequestRefresh))
}

// 追加失败保留已缓存行，appendState 置 Error；Retry 按原 cursor 重发
func TestAppendErrorPreservesCacheAndRetries(t *testing.T) {
	store, hub := newTestStore(t)
	boom := errors.New("connection reset")
	m := &fakeMediator{policy: Policy{ClearOnRefresh: true}}
	m.setScript(func(req Request) (Result, error) {
		if req.Kind == RequestRefresh {
			return Result{Rows: page(300, "a", "b", "c"), NextKey: "3"}, nil
		}
		return Result{}, boom
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()
	waitState(t, p, func(s Snapshot) bool { return s.ItemCount == 3 })

	p.Get(2)
	snap := waitState(t, p, func(s Snapshot) bool { return s.AppendState == AppendError })
	assert.Equal(t, StateSuccess, snap.State)
	assert.Equal(t, 3, snap.ItemCount)
	assert.ErrorIs(t, snap.AppendErr, boom)

	// 出错后继续滚动不应重复触发
	p.Get(2)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, m.callsOf(RequestAppend))

	m.setScript(func(req Request) (Result, error) {
		if req.Kind == RequestAppend {
			if req.NextKey != "3" {
				return Result{}, fmt.Errorf("retry lost cursor, got %q", req.NextKey)
			}
			return Result{Rows: page(200, "d", "e"), EndOfPaginationReached: true}, nil
		}
		return Result{}, errors.New("unexpected kind")
	})
	p.Retry()
	snap = waitState(t, p, func(s Snapshot) bool { return s.ItemCount == 5 })
	assert.Equal(t, AppendNotLoading, snap.AppendState)
}

func TestRefreshErrorPreservesRows(t *testing.T) {
	store, hub := newTestStore(t)
	m := &fakeMediator{policy: Policy{ClearOnRefresh: true}}
	m.setScript(func(req Request) (Result, error) {
		return Result{Rows: page(300, "a", "b"), EndOfPaginationReached: true}, nil
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()
	waitState(t, p, func(s Snapshot) bool { return s.ItemCount == 2 })

	m.setScript(func(req Request) (Result, error) {
		return Result{}, errors.New("http 500")
	})
	p.Refresh()
	snap := waitState(t, p, func(s Snapshot) bool { return s.State == StateError })
	assert.Equal(t, 2, snap.ItemCount)
	assert.Equal(t, []string{"a", "b"}, itemIDs(p, 2))
}

func TestEmptyResultBecomesEmptyState(t *testing.T) {
	store, hub := newTestStore(t)
	m := &fakeMediator{policy: Policy{ClearOnRefresh: true}}
	m.setScript(func(req Request) (Result, error) {
		return Result{EndOfPaginationReached: true}, nil
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()
	waitState(t, p, func(s Snapshot) bool { return s.State == StateEmpty })
}

func TestLoginExpiredSurfacedAsError(t *testing.T) {
	store, hub := newTestStore(t)
	m := &fakeMediator{policy: Policy{ClearOnRefresh: true}}
	m.setScript(func(req Request) (Result, error) {
		return Result{}, &LoginExpiredError{
			AccountKey: model.NewMicroBlogKey("1", testHost),
			Platform:   model.PlatformVVo,
		}
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()
	snap := waitState(t, p, func(s Snapshot) bool { return s.State == StateError })
	assert.True(t, IsLoginExpired(snap.Err))

	// 重新登录后重试成功
	m.setScript(func(req Request) (Result, error) {
		return Result{Rows: page(300, "a"), EndOfPaginationReached: true}, nil
	})
	p.Retry()
	waitState(t, p, func(s Snapshot) bool { return s.State == StateSuccess && s.ItemCount == 1 })
}

func TestSkipInitialRefreshServesCacheFirst(t *testing.T) {
	store, hub := newTestStore(t)
	ctx := context.Background()

	// 预置缓存
	seed := page(300, "x", "y")
	var statuses []model.DbStatus
	var timeline []model.DbPagingTimeline
	for _, r := range seed {
		statuses = append(statuses, r.Status)
		timeline = append(timeline, model.DbPagingTimeline{
			AccountType: testAccount, PagingKey: "home_1@" + testHost,
			StatusKey: r.Status.StatusKey, SortID: r.SortID,
		})
	}
	require.NoError(t, store.UpsertStatuses(ctx, statuses))
	require.NoError(t, store.AppendPaging(ctx, timeline))

	m := &fakeMediator{policy: Policy{SkipInitialRefresh: true, ClearOnRefresh: true}}
	m.setScript(func(req Request) (Result, error) {
		return Result{}, errors.New("should not be called")
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()

	snap := waitState(t, p, func(s Snapshot) bool { return s.State == StateSuccess })
	assert.Equal(t, 2, snap.ItemCount)
	time.Sleep(50 * time.Millisecond)
	m.mu.Lock()
	assert.Empty(t, m.calls)
	m.mu.Unlock()
}

func TestSkipInitialRefreshFetchesWhenCacheEmpty(t *testing.T) {
	store, hub := newTestStore(t)
	m := &fakeMediator{policy: Policy{SkipInitialRefresh: true, ClearOnRefresh: true}}
	m.setScript(func(req Request) (Result, error) {
		if req.Kind != RequestAppend || req.NextKey != "" {
			return Result{}, fmt.Errorf("expected first-page append, got %v %q", req.Kind, req.NextKey)
		}
		return Result{Rows: page(300, "a", "b"), EndOfPaginationReached: true}, nil
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()
	waitState(t, p, func(s Snapshot) bool { return s.State == StateSuccess && s.ItemCount == 2 })
}

// 两个订阅共享同一 pagingKey，经缓存观察看到一致内容
func TestSharedPagingKeyObservation(t *testing.T) {
	store, hub := newTestStore(t)
	active := &fakeMediator{policy: Policy{ClearOnRefresh: true}}
	active.setScript(func(req Request) (Result, error) {
		switch req.Kind {
		case RequestRefresh:
			return Result{Rows: page(300, "a", "b", "c"), NextKey: "3"}, nil
		default:
			return Result{Rows: page(200, "d", "e"), EndOfPaginationReached: true}, nil
		}
	})
	passive := &fakeMediator{policy: Policy{SkipInitialRefresh: true}}
	passive.setScript(func(req Request) (Result, error) {
		return Result{}, errors.New("passive subscriber must not fetch")
	})

	a := newPager(store, hub, active, "home_1@"+testHost)
	defer a.Close()
	waitState(t, a, func(s Snapshot) bool { return s.ItemCount == 3 })

	b := newPager(store, hub, passive, "home_1@"+testHost)
	defer b.Close()
	waitState(t, b, func(s Snapshot) bool { return s.ItemCount == 3 })

	a.Get(2)
	waitState(t, a, func(s Snapshot) bool { return s.ItemCount == 5 })
	waitState(t, b, func(s Snapshot) bool { return s.ItemCount == 5 })
	assert.Equal(t, itemIDs(a, 5), itemIDs(b, 5))
}

func TestCloseCancelsInFlightFetch(t *testing.T) {
	store, hub := newTestStore(t)
	m := &fakeMediator{
		policy:    Policy{ClearOnRefresh: true},
		block:     make(chan struct{}),
		cancelled: make(chan struct{}),
	}
	m.setScript(func(req Request) (Result, error) {
		return Result{}, nil
	})

	p := newPager(store, hub, m, "home_1@"+testHost)
	require.Eventually(t, func() bool { return m.callsOf(RequestRefresh) == 1 }, time.Second, 5*time.Millisecond)
	p.Close()

	select {
	case <-m.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight fetch was not cancelled on Close")
	}
}

func TestPeekNeverFetches(t *testing.T) {
	store, hub := newTestStore(t)
	m := &fakeMediator{policy: Policy{SkipInitialRefresh: true}}
	m.setScript(func(req Request) (Result, error) {
		return Result{}, errors.New("peek must not fetch")
	})

	ctx := context.Background()
	seed := page(300, "x")
	require.NoError(t, store.UpsertStatuses(ctx, []model.DbStatus{seed[0].Status}))
	require.NoError(t, store.AppendPaging(ctx, []model.DbPagingTimeline{{
		AccountType: testAccount, PagingKey: "home_1@" + testHost,
		StatusKey: seed[0].Status.StatusKey, SortID: seed[0].SortID,
	}}))

	p := newPager(store, hub, m, "home_1@"+testHost)
	defer p.Close()
	waitState(t, p, func(s Snapshot) bool { return s.ItemCount == 1 })

	assert.NotNil(t, p.Peek(0))
	assert.Nil(t, p.Peek(5))
	time.Sleep(50 * time.Millisecond)
	m.mu.Lock()
	assert.Empty(t, m.calls)
	m.mu.Unlock()
}
