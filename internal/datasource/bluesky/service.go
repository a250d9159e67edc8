package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

// Service Bluesky xrpc 客户端。读接口 GET + query，写接口 POST JSON，
// cursor 不透明原样回传。
type Service struct {
	baseURL    string
	accessJwt  string
	did        string
	accountKey model.MicroBlogKey
	client     *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

func NewService(accountKey model.MicroBlogKey, accessJwt string) *Service {
	return &Service{
		baseURL:    "https://" + accountKey.Host,
		accessJwt:  accessJwt,
		did:        accountKey.ID,
		accountKey: accountKey,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		now:        time.Now,
	}
}

type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bluesky: http %d: %s", e.StatusCode, e.Body)
}

// checkToken 请求前就地校验 access JWT 的 exp，过期直接判定会话失效，
// 不用等远端 401。签名不在本地验。
func (s *Service) checkToken() error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.accessJwt, claims); err != nil {
		return &paging.LoginExpiredError{AccountKey: s.accountKey, Platform: model.PlatformBluesky}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(s.now()) {
		return &paging.LoginExpiredError{AccountKey: s.accountKey, Platform: model.PlatformBluesky}
	}
	return nil
}

func (s *Service) do(ctx context.Context, method, nsid string, query url.Values, body, out any) error {
	if err := s.checkToken(); err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	u := s.baseURL + "/xrpc/" + nsid
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.accessJwt)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return &paging.LoginExpiredError{AccountKey: s.accountKey, Platform: model.PlatformBluesky}
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func cursorQuery(limit int, cursor string, extra url.Values) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return q
}

func (s *Service) GetTimeline(ctx context.Context, limit int, cursor string) (*feedResponse, error) {
	var out feedResponse
	err := s.do(ctx, http.MethodGet, "app.bsky.feed.getTimeline", cursorQuery(limit, cursor, nil), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) GetAuthorFeed(ctx context.Context, actor string, limit int, cursor string) (*feedResponse, error) {
	var out feedResponse
	err := s.do(ctx, http.MethodGet, "app.bsky.feed.getAuthorFeed",
		cursorQuery(limit, cursor, url.Values{"actor": {actor}}), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) GetFeed(ctx context.Context, feedURI string, limit int, cursor string) (*feedResponse, error) {
	var out feedResponse
	err := s.do(ctx, http.MethodGet, "app.bsky.feed.getFeed",
		cursorQuery(limit, cursor, url.Values{"feed": {feedURI}}), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) GetListFeed(ctx context.Context, listURI string, limit int, cursor string) (*feedResponse, error) {
	var out feedResponse
	err := s.do(ctx, http.MethodGet, "app.bsky.feed.getListFeed",
		cursorQuery(limit, cursor, url.Values{"list": {listURI}}), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) SearchPosts(ctx context.Context, query string, limit int, cursor string) (*searchResponse, error) {
	var out searchResponse
	err := s.do(ctx, http.MethodGet, "app.bsky.feed.searchPosts",
		cursorQuery(limit, cursor, url.Values{"q": {query}}), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) ListNotifications(ctx context.Context, limit int, cursor string) (*notificationsResponse, error) {
	var out notificationsResponse
	err := s.do(ctx, http.MethodGet, "app.bsky.notification.listNotifications", cursorQuery(limit, cursor, nil), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) GetProfile(ctx context.Context, actor string) (*ProfileView, error) {
	q := url.Values{}
	q.Set("actor", actor)
	var out ProfileView
	if err := s.do(ctx, http.MethodGet, "app.bsky.actor.getProfile", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) createRecord(ctx context.Context, collection string, record map[string]any) (*createRecordResponse, error) {
	var out createRecordResponse
	err := s.do(ctx, http.MethodPost, "com.atproto.repo.createRecord", nil, map[string]any{
		"repo":       s.did,
		"collection": collection,
		"record":     record,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// deleteRecordByURI at://{repo}/{collection}/{rkey}
func (s *Service) deleteRecordByURI(ctx context.Context, uri string) error {
	trimmed := strings.TrimPrefix(uri, "at://")
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) != 3 {
		return fmt.Errorf("bluesky: malformed at-uri %q", uri)
	}
	return s.do(ctx, http.MethodPost, "com.atproto.repo.deleteRecord", nil, map[string]any{
		"repo":       parts[0],
		"collection": parts[1],
		"rkey":       parts[2],
	}, nil)
}

func (s *Service) Follow(ctx context.Context, did string) error {
	_, err := s.createRecord(ctx, "app.bsky.graph.follow", map[string]any{
		"subject":   did,
		"createdAt": s.now().UTC().Format(time.RFC3339),
	})
	return err
}

// Unfollow 需要 follow 记录的 uri，从 profile 的 viewer 状态里拿。
func (s *Service) Unfollow(ctx context.Context, did string) error {
	profile, err := s.GetProfile(ctx, did)
	if err != nil {
		return err
	}
	if profile.Viewer.Following == "" {
		return nil
	}
	return s.deleteRecordByURI(ctx, profile.Viewer.Following)
}

func (s *Service) Block(ctx context.Context, did string) error {
	_, err := s.createRecord(ctx, "app.bsky.graph.block", map[string]any{
		"subject":   did,
		"createdAt": s.now().UTC().Format(time.RFC3339),
	})
	return err
}

func (s *Service) Unblock(ctx context.Context, did string) error {
	profile, err := s.GetProfile(ctx, did)
	if err != nil {
		return err
	}
	if profile.Viewer.Blocking == "" {
		return nil
	}
	return s.deleteRecordByURI(ctx, profile.Viewer.Blocking)
}

func (s *Service) Mute(ctx context.Context, did string) error {
	return s.do(ctx, http.MethodPost, "app.bsky.graph.muteActor", nil, map[string]any{"actor": did}, nil)
}

func (s *Service) Unmute(ctx context.Context, did string) error {
	return s.do(ctx, http.MethodPost, "app.bsky.graph.unmuteActor", nil, map[string]any{"actor": did}, nil)
}

func (s *Service) CreatePost(ctx context.Context, text string, replyParentURI string) (string, error) {
	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": s.now().UTC().Format(time.RFC3339),
	}
	if replyParentURI != "" {
		record["reply"] = map[string]any{"parent": map[string]any{"uri": replyParentURI}}
	}
	created, err := s.createRecord(ctx, "app.bsky.feed.post", record)
	if err != nil {
		return "", err
	}
	return created.URI, nil
}

func (s *Service) DeletePost(ctx context.Context, uri string) error {
	return s.deleteRecordByURI(ctx, uri)
}
