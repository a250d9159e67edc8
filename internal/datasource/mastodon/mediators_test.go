package mastodon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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
		token:      "token",
		accountKey: model.MicroBlogKey{ID: "1", Host: "mastodon.test"},
		client:     ts.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
}

func testStatus(id string, at time.Time) Status {
	return Status{
		ID:        id,
		CreatedAt: at,
		Content:   "<p>hello " + id + "</p>",
		Account:   Account{ID: "u" + id, Acct: "user" + id, DisplayName: "User " + id},
	}
}

func TestHomeTimelineMediatorPaging(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/custom_emojis" {
			json.NewEncoder(w).Encode([]Emoji{})
			return
		}
		require.Equal(t, "/api/v1/timelines/home", r.URL.Path)
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		var page []Status
		switch r.URL.Query().Get("max_id") {
		case "":
			page = []Status{testStatus("3", base.Add(2 * time.Minute)), testStatus("2", base.Add(time.Minute))}
		case "2":
			page = []Status{testStatus("1", base)}
		default:
			page = nil
		}
		json.NewEncoder(w).Encode(page)
	}))

	m := HomeTimelineMediator(svc)

	res, err := m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestRefresh})
	require.NoError(t, err)
	assert.False(t, res.EndOfPaginationReached)
	assert.Equal(t, "2", res.NextKey)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "3@mastodon.test", res.Rows[0].Status.StatusKey.String())
	assert.Equal(t, "hello 3", res.Rows[0].Status.Text)
	assert.Equal(t, base.Add(2*time.Minute).UnixMilli(), res.Rows[0].SortID)
	require.Len(t, res.Rows[0].Users, 1)
	assert.Equal(t, model.PlatformMastodon, res.Rows[0].Users[0].PlatformType)

	res, err = m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestAppend, NextKey: "2"})
	require.NoError(t, err)
	assert.Equal(t, "1", res.NextKey)
	require.Len(t, res.Rows, 1)

	res, err = m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestAppend, NextKey: "1"})
	require.NoError(t, err)
	assert.True(t, res.EndOfPaginationReached)
	assert.Empty(t, res.Rows)
}

func TestHomeTimelineSeedsInstanceEmojis(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var emojiCalls int
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/timelines/home":
			json.NewEncoder(w).Encode([]Status{testStatus("1", base)})
		case "/api/v1/custom_emojis":
			emojiCalls++
			json.NewEncoder(w).Encode([]Emoji{{Shortcode: "blobcat", URL: "https://mastodon.test/e/blobcat.png"}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	m := HomeTimelineMediator(svc)
	res, err := m.Timeline(context.Background(), 20, paging.Request{Kind: paging.RequestRefresh})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Len(t, res.Rows[0].Emojis, 1)
	assert.Equal(t, "mastodon.test", res.Rows[0].Emojis[0].Host)
	assert.Contains(t, res.Rows[0].Emojis[0].Content, "blobcat")

	// 实例表情只抓一次，后续刷新不再打表情端点
	res, err = m.Timeline(context.Background(), 20, paging.Request{Kind: paging.RequestRefresh})
	require.NoError(t, err)
	assert.Empty(t, res.Rows[0].Emojis)
	assert.Equal(t, 1, emojiCalls)
}

func TestMediatorPrependAlwaysDone(t *testing.T) {
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("prepend must not hit the network")
	}))
	res, err := HomeTimelineMediator(svc).Timeline(context.Background(), 20, paging.Request{Kind: paging.RequestPrepend})
	require.NoError(t, err)
	assert.True(t, res.EndOfPaginationReached)
}

func TestUnauthorizedMapsToLoginExpired(t *testing.T) {
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := HomeTimelineMediator(svc).Timeline(context.Background(), 20, paging.Request{Kind: paging.RequestRefresh})
	require.Error(t, err)
	var expired *paging.LoginExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, "1@mastodon.test", expired.AccountKey.String())
	assert.Equal(t, model.PlatformMastodon, expired.Platform)
}

func TestUserTimelinePinnedOnRefreshOnly(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var pinnedCalls int
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/accounts/u1/statuses", r.URL.Path)
		if r.URL.Query().Get("pinned") == "true" {
			pinnedCalls++
			json.NewEncoder(w).Encode([]Status{testStatus("9", base.Add(time.Hour))})
			return
		}
		json.NewEncoder(w).Encode([]Status{testStatus("2", base)})
	}))

	m := UserTimelineMediator(svc, "u1")
	res, err := m.Timeline(context.Background(), 20, paging.Request{Kind: paging.RequestRefresh})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.True(t, res.Rows[0].Pinned)
	assert.Equal(t, "9@mastodon.test", res.Rows[0].Status.StatusKey.String())

	_, err = m.Timeline(context.Background(), 20, paging.Request{Kind: paging.RequestAppend, NextKey: "2"})
	require.NoError(t, err)
	assert.Equal(t, 1, pinnedCalls)
}

func TestSearchMediatorOffsetCursor(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/search", r.URL.Path)
		require.Equal(t, "golang", r.URL.Query().Get("q"))
		var result SearchResult
		if r.URL.Query().Get("offset") == "" {
			result.Statuses = []Status{testStatus("5", base), testStatus("4", base)}
		}
		json.NewEncoder(w).Encode(result)
	}))

	m := SearchMediator(svc, "golang")
	res, err := m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestRefresh})
	require.NoError(t, err)
	assert.Equal(t, "2", res.NextKey)

	res, err = m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestAppend, NextKey: "2"})
	require.NoError(t, err)
	assert.True(t, res.EndOfPaginationReached)
}
