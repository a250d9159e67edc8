package xqt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

// Service XQT（Twitter 兼容）GraphQL 客户端。
// 鉴权是 cookie 会话：auth_token + ct0（csrf），variables 走 query 参数。
type Service struct {
	baseURL    string
	authToken  string
	csrfToken  string
	accountKey model.MicroBlogKey
	client     *http.Client
	limiter    *rate.Limiter
}

func NewService(accountKey model.MicroBlogKey, authToken, csrfToken string) *Service {
	return &Service{
		baseURL:    "https://" + accountKey.Host,
		authToken:  authToken,
		csrfToken:  csrfToken,
		accountKey: accountKey,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("xqt: http %d: %s", e.StatusCode, e.Body)
}

func (s *Service) graphql(ctx context.Context, operation string, variables map[string]any, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	vars, err := json.Marshal(variables)
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("variables", string(vars))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/graphql/"+operation+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-csrf-token", s.csrfToken)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: s.authToken})
	req.AddCookie(&http.Cookie{Name: "ct0", Value: s.csrfToken})
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &paging.LoginExpiredError{AccountKey: s.accountKey, Platform: model.PlatformXQT}
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseTimeline 把 instructions 摊平成 tweet 列表和 bottom cursor。
func parseTimeline(tl Timeline) TimelinePage {
	var page TimelinePage
	for _, ins := range tl.Instructions {
		if ins.Type != "TimelineAddEntries" {
			continue
		}
		for _, e := range ins.Entries {
			if e.Content.CursorType == "Bottom" {
				page.BottomCursor = e.Content.Value
				continue
			}
			if e.Content.ItemContent == nil || e.Content.ItemContent.TweetResults.Result == nil {
				continue
			}
			sortIndex, err := strconv.ParseInt(e.SortIndex, 10, 64)
			if err != nil {
				continue
			}
			page.Tweets = append(page.Tweets, tweetEntry{
				Tweet:     *e.Content.ItemContent.TweetResults.Result,
				SortIndex: sortIndex,
			})
		}
	}
	return page
}

func (s *Service) timelineOp(ctx context.Context, operation, timelineField string, variables map[string]any) (TimelinePage, error) {
	var resp map[string]json.RawMessage
	if err := s.graphql(ctx, operation, variables, &resp); err != nil {
		return TimelinePage{}, err
	}
	raw, ok := resp["data"]
	if !ok {
		return TimelinePage{}, fmt.Errorf("xqt: %s response has no data", operation)
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return TimelinePage{}, err
	}
	var wrapper struct {
		TimelineURT Timeline `json:"timeline_urt"`
		Timeline    Timeline `json:"timeline"`
	}
	if field, ok := data[timelineField]; ok {
		if err := json.Unmarshal(field, &wrapper); err != nil {
			return TimelinePage{}, err
		}
	}
	tl := wrapper.TimelineURT
	if len(tl.Instructions) == 0 {
		tl = wrapper.Timeline
	}
	return parseTimeline(tl), nil
}

// restForm 1.1 版 REST 端点，写操作仍走这套。
func (s *Service) restForm(ctx context.Context, path string, form url.Values) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-csrf-token", s.csrfToken)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: s.authToken})
	req.AddCookie(&http.Cookie{Name: "ct0", Value: s.csrfToken})
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &paging.LoginExpiredError{AccountKey: s.accountKey, Platform: model.PlatformXQT}
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return nil
}

func (s *Service) Follow(ctx context.Context, userID string) error {
	return s.restForm(ctx, "/i/api/1.1/friendships/create.json", url.Values{"user_id": {userID}})
}

func (s *Service) Unfollow(ctx context.Context, userID string) error {
	return s.restForm(ctx, "/i/api/1.1/friendships/destroy.json", url.Values{"user_id": {userID}})
}

func (s *Service) Block(ctx context.Context, userID string) error {
	return s.restForm(ctx, "/i/api/1.1/blocks/create.json", url.Values{"user_id": {userID}})
}

func (s *Service) Unblock(ctx context.Context, userID string) error {
	return s.restForm(ctx, "/i/api/1.1/blocks/destroy.json", url.Values{"user_id": {userID}})
}

func (s *Service) Mute(ctx context.Context, userID string) error {
	return s.restForm(ctx, "/i/api/1.1/mutes/users/create.json", url.Values{"user_id": {userID}})
}

func (s *Service) Unmute(ctx context.Context, userID string) error {
	return s.restForm(ctx, "/i/api/1.1/mutes/users/destroy.json", url.Values{"user_id": {userID}})
}

func (s *Service) CreateTweet(ctx context.Context, text, inReplyToID string) error {
	form := url.Values{"status": {text}}
	if inReplyToID != "" {
		form.Set("in_reply_to_status_id", inReplyToID)
	}
	return s.restForm(ctx, "/i/api/1.1/statuses/update.json", form)
}

func (s *Service) DeleteTweet(ctx context.Context, tweetID string) error {
	return s.restForm(ctx, "/i/api/1.1/statuses/destroy/"+url.PathEscape(tweetID)+".json", nil)
}

func pageVars(count int, cursor string, extra map[string]any) map[string]any {
	vars := map[string]any{"count": count}
	if cursor != "" {
		vars["cursor"] = cursor
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

func (s *Service) HomeLatestTimeline(ctx context.Context, count int, cursor string) (TimelinePage, error) {
	return s.timelineOp(ctx, "HomeLatestTimeline", "home_timeline_urt", pageVars(count, cursor, nil))
}

// HomeTimeline 算法推荐流（featured）
func (s *Service) HomeTimeline(ctx context.Context, count int, cursor string) (TimelinePage, error) {
	return s.timelineOp(ctx, "HomeTimeline", "home_timeline_urt", pageVars(count, cursor, nil))
}

func (s *Service) Bookmarks(ctx context.Context, count int, cursor string) (TimelinePage, error) {
	return s.timelineOp(ctx, "Bookmarks", "bookmark_timeline_v2", pageVars(count, cursor, nil))
}

func (s *Service) UserTweets(ctx context.Context, userID string, count int, cursor string) (TimelinePage, error) {
	return s.timelineOp(ctx, "UserTweets", "user_timeline", pageVars(count, cursor, map[string]any{"userId": userID}))
}

func (s *Service) UserMedia(ctx context.Context, userID string, count int, cursor string) (TimelinePage, error) {
	return s.timelineOp(ctx, "UserMedia", "user_media_timeline", pageVars(count, cursor, map[string]any{"userId": userID}))
}

func (s *Service) SearchTimeline(ctx context.Context, query string, count int, cursor string) (TimelinePage, error) {
	return s.timelineOp(ctx, "SearchTimeline", "search_timeline", pageVars(count, cursor, map[string]any{
		"rawQuery": query,
		"product":  "Latest",
	}))
}
