package xqt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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
		authToken:  "auth",
		csrfToken:  "csrf",
		accountKey: model.MicroBlogKey{ID: "42", Host: "xqt.test"},
		client:     ts.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
}

func tweetEntryJSON(id string, sortIndex int64) Entry {
	var e Entry
	e.EntryID = "tweet-" + id
	e.SortIndex = fmt.Sprintf("%d", sortIndex)
	e.Content.EntryType = "TimelineTimelineItem"
	e.Content.ItemContent = &struct {
		TweetResults struct {
			Result *Tweet `json:"result"`
		} `json:"tweet_results"`
	}{}
	tw := &Tweet{RestID: id}
	tw.Legacy = TweetLegacy{FullText: "tweet " + id, CreatedAt: "Wed May 01 12:00:00 +0000 2024"}
	tw.Core.UserResults.Result = UserResult{RestID: "u1", Legacy: UserLegacy{Name: "Alice", ScreenName: "alice"}}
	e.Content.ItemContent.TweetResults.Result = tw
	return e
}

func cursorEntry(value string) Entry {
	var e Entry
	e.EntryID = "cursor-bottom"
	e.Content.EntryType = "TimelineTimelineCursor"
	e.Content.CursorType = "Bottom"
	e.Content.Value = value
	return e
}

func timelineJSON(field string, entries ...Entry) map[string]any {
	return map[string]any{
		"data": map[string]any{
			field: map[string]any{
				"timeline_urt": Timeline{Instructions: []Instruction{{
					Type:    "TimelineAddEntries",
					Entries: entries,
				}}},
			},
		},
	}
}

func TestHomeLatestCursorAndSortIndex(t *testing.T) {
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graphql/HomeLatestTimeline", r.URL.Path)
		require.Equal(t, "csrf", r.Header.Get("x-csrf-token"))
		var vars map[string]any
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("variables")), &vars))
		var resp map[string]any
		if vars["cursor"] == nil {
			resp = timelineJSON("home_timeline_urt",
				tweetEntryJSON("100", 9002),
				tweetEntryJSON("99", 9001),
				cursorEntry("cursor-next"))
		} else {
			resp = timelineJSON("home_timeline_urt", cursorEntry(""))
		}
		json.NewEncoder(w).Encode(resp)
	}))

	m := HomeLatestTimelineMediator(svc)

	res, err := m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestRefresh})
	require.NoError(t, err)
	assert.False(t, res.EndOfPaginationReached)
	assert.Equal(t, "cursor-next", res.NextKey)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(9002), res.Rows[0].SortID)
	assert.Equal(t, "100@xqt.test", res.Rows[0].Status.StatusKey.String())
	assert.Equal(t, "tweet 100", res.Rows[0].Status.Text)

	res, err = m.Timeline(context.Background(), 2, paging.Request{Kind: paging.RequestAppend, NextKey: "cursor-next"})
	require.NoError(t, err)
	assert.True(t, res.EndOfPaginationReached)
}

func TestHomeLatestSkipsInitialRefresh(t *testing.T) {
	m := HomeLatestTimelineMediator(testService(t, http.NotFoundHandler()))
	policy := paging.PolicyOf(m)
	assert.True(t, policy.SkipInitialRefresh)
	assert.True(t, policy.ClearOnRefresh)

	// 其余时间线保持默认：订阅即刷新
	assert.False(t, paging.PolicyOf(FeaturedTimelineMediator(testService(t, http.NotFoundHandler()))).SkipInitialRefresh)
}

func TestForbiddenMapsToLoginExpired(t *testing.T) {
	svc := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	_, err := HomeLatestTimelineMediator(svc).Timeline(context.Background(), 20, paging.Request{Kind: paging.RequestRefresh})
	var expired *paging.LoginExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, model.PlatformXQT, expired.Platform)
}
