package vvo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

func testService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &Service{
		baseURL:    ts.URL,
		cookie:     "SUB=xxx",
		accountKey: model.MicroBlogKey{ID: "42", Host: "m.weibo.cn"},
		client:     ts.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
}

func configHandler(login bool) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		var cfg configData
		cfg.Data.Login = login
		json.NewEncoder(w).Encode(cfg)
	}
}

func testStatus(id string, userID int64) Status {
	return Status{ID: id, Text: "status " + id, User: User{ID: userID, ScreenName: "user"}}
}

func TestLoginCheckRunsBeforeEveryFetch(t *testing.T) {
	var configCalls, feedCalls atomic.Int64
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/config":
			configCalls.Add(1)
			configHandler(true)(w)
		case "/feed/friends":
			feedCalls.Add(1)
			var out statusListData
			if r.URL.Query().Get("page") == "1" {
				out.Data.Statuses = []Status{testStatus("a", 1), testStatus("b", 2)}
			}
			json.NewEncoder(w).Encode(out)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	m := HomeTimelineMediator(svc)
	res, err := m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestRefresh})
	require.NoError(t, err)
	assert.Equal(t, "2", res.NextKey)
	require.Len(t, res.Rows, 2)
	// 页码接口没有时间信号，sortId 由 页码*页大小+序号 取负合成
	assert.Equal(t, int64(-(0 + 1*2)), res.Rows[0].SortID)
	assert.Equal(t, int64(-(1 + 1*2)), res.Rows[1].SortID)
	assert.Greater(t, res.Rows[0].SortID, res.Rows[1].SortID)

	res, err = m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestAppend, NextKey: "2"})
	require.NoError(t, err)
	assert.True(t, res.EndOfPaginationReached)
	assert.Equal(t, int64(2), configCalls.Load())
	assert.Equal(t, int64(2), feedCalls.Load())
}

func TestLoggedOutFailsFastWithoutFetching(t *testing.T) {
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/config" {
			t.Fatalf("business endpoint hit while logged out: %s", r.URL.Path)
		}
		configHandler(false)(w)
	}))

	_, err := HomeTimelineMediator(svc).Timeline(context.Background(), 20, paging.Request{Kind: paging.RequestRefresh})
	var expired *paging.LoginExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, model.PlatformVVo, expired.Platform)
	assert.Equal(t, "42@m.weibo.cn", expired.AccountKey.String())
}

func TestSortIDMonotoneAcrossPages(t *testing.T) {
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/config" {
			configHandler(true)(w)
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var out statusListData
		if page <= 2 {
			out.Data.Statuses = []Status{
				testStatus("p"+strconv.Itoa(page)+"-0", 1),
				testStatus("p"+strconv.Itoa(page)+"-1", 1),
			}
		}
		json.NewEncoder(w).Encode(out)
	}))

	m := HomeTimelineMediator(svc)
	first, err := m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestRefresh})
	require.NoError(t, err)
	second, err := m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestAppend, NextKey: first.NextKey})
	require.NoError(t, err)
	require.Len(t, second.Rows, 2)
	assert.Greater(t, first.Rows[1].SortID, second.Rows[0].SortID)
}
