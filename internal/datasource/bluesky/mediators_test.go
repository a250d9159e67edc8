package bluesky

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

func signedJwt(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "did:plc:alice",
		"exp": exp.Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return token
}

func testService(t *testing.T, accessJwt string, handler http.Handler) *Service {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &Service{
		baseURL:    ts.URL,
		accessJwt:  accessJwt,
		did:        "did:plc:alice",
		accountKey: model.MicroBlogKey{ID: "did:plc:alice", Host: "bsky.social"},
		client:     ts.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		now:        time.Now,
	}
}

func testFeedItem(uri string, at time.Time) FeedViewPost {
	return FeedViewPost{Post: Post{
		URI:       uri,
		Author:    Author{DID: "did:plc:bob", Handle: "bob.bsky.social"},
		Record:    Record{Text: "post " + uri, CreatedAt: at},
		IndexedAt: at,
	}}
}

func TestExpiredJwtFailsBeforeNetwork(t *testing.T) {
	svc := testService(t, signedJwt(t, time.Now().Add(-time.Hour)), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("expired token must not reach the server")
	}))
	_, err := HomeTimelineMediator(svc).Timeline(context.Background(), 20, paging.Request{Kind: paging.RequestRefresh})
	var expired *paging.LoginExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, model.PlatformBluesky, expired.Platform)
	assert.Equal(t, "did:plc:alice@bsky.social", expired.AccountKey.String())
}

func TestHomeTimelineOpaqueCursor(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := testService(t, signedJwt(t, time.Now().Add(time.Hour)), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xrpc/app.bsky.feed.getTimeline", r.URL.Path)
		var resp feedResponse
		if r.URL.Query().Get("cursor") == "" {
			resp = feedResponse{
				Cursor: "opaque-1",
				Feed:   []FeedViewPost{testFeedItem("at://did:plc:bob/app.bsky.feed.post/1", base)},
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))

	m := HomeTimelineMediator(svc)
	res, err := m.Timeline(context.Background(), 1, paging.Request{Kind: paging.RequestRefresh})
	require.NoError(t, err)
	assert.Equal(t, "opaque-1", res.NextKey)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "at://did:plc:bob/app.bsky.feed.post/1@bsky.social", res.Rows[0].Status.StatusKey.String())
	assert.Equal(t, base.UnixMilli(), res.Rows[0].SortID)

	// 往回解析仍然能恢复 at-uri（从最后一个 @ 切分）
	parsed, err := model.ParseMicroBlogKey(res.Rows[0].Status.StatusKey.String())
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:bob/app.bsky.feed.post/1", parsed.ID)

	res, err = m.Timeline(context.Background(), 1, paging.Request{Kind: paging.RequestAppend, NextKey: "opaque-1"})
	require.NoError(t, err)
	assert.True(t, res.EndOfPaginationReached)
}
