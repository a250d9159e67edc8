package vvo

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

// Service VVO（微博 H5 网关）客户端。cookie 会话鉴权，页码翻页。
// 网关对未登录请求返回的是跳转页而不是 401，所以每次时间线调用前
// 都先打 config 端点核对 login 标志。
type Service struct {
	baseURL    string
	cookie     string
	accountKey model.MicroBlogKey
	client     *http.Client
	limiter    *rate.Limiter
}

func NewService(accountKey model.MicroBlogKey, cookie string) *Service {
	return &Service{
		baseURL:    "https://" + accountKey.Host,
		cookie:     cookie,
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
	return fmt.Sprintf("vvo: http %d: %s", e.StatusCode, e.Body)
}

func (s *Service) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cookie", s.cookie)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CheckLogin config 端点的 login 标志，false 即会话失效。
func (s *Service) CheckLogin(ctx context.Context) error {
	var cfg configData
	if err := s.get(ctx, "/api/config", nil, &cfg); err != nil {
		return err
	}
	if !cfg.Data.Login {
		return &paging.LoginExpiredError{AccountKey: s.accountKey, Platform: model.PlatformVVo}
	}
	return nil
}

func pageQuery(page int, extra url.Values) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return q
}

func (s *Service) HomeTimeline(ctx context.Context, page int) ([]Status, error) {
	var out statusListData
	if err := s.get(ctx, "/feed/friends", pageQuery(page, nil), &out); err != nil {
		return nil, err
	}
	return out.Data.Statuses, nil
}

func (s *Service) MentionsAt(ctx context.Context, page int) ([]Status, error) {
	var out statusListData
	if err := s.get(ctx, "/message/mentionsAt", pageQuery(page, nil), &out); err != nil {
		return nil, err
	}
	return out.Data.Statuses, nil
}

func (s *Service) MentionsCmt(ctx context.Context, page int) ([]Status, error) {
	var out statusListData
	if err := s.get(ctx, "/message/mentionsCmt", pageQuery(page, nil), &out); err != nil {
		return nil, err
	}
	return out.Data.Statuses, nil
}

func cardStatuses(cards cardListData) []Status {
	var statuses []Status
	for _, c := range cards.Data.Cards {
		if c.Mblog != nil {
			statuses = append(statuses, *c.Mblog)
		}
	}
	return statuses
}

func (s *Service) UserTimeline(ctx context.Context, userID string, page int) ([]Status, error) {
	q := pageQuery(page, url.Values{
		"type":        {"uid"},
		"value":       {userID},
		"containerid": {"107603" + userID},
	})
	var out cardListData
	if err := s.get(ctx, "/api/container/getIndex", q, &out); err != nil {
		return nil, err
	}
	return cardStatuses(out), nil
}

func (s *Service) SearchTimeline(ctx context.Context, query string, page int) ([]Status, error) {
	q := pageQuery(page, url.Values{
		"containerid": {"100103type=61&q=" + query},
		"page_type":   {"searchall"},
	})
	var out cardListData
	if err := s.get(ctx, "/api/container/getIndex", q, &out); err != nil {
		return nil, err
	}
	return cardStatuses(out), nil
}

func (s *Service) StatusReposts(ctx context.Context, statusID string, page int) ([]Status, error) {
	q := pageQuery(page, url.Values{"id": {statusID}})
	var out repostListData
	if err := s.get(ctx, "/api/statuses/repostTimeline", q, &out); err != nil {
		return nil, err
	}
	return out.Data.Data, nil
}

func (s *Service) postForm(ctx context.Context, path string, form url.Values) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", s.cookie)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &apiError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return nil
}

func (s *Service) Follow(ctx context.Context, userID string) error {
	return s.postForm(ctx, "/api/friendships/create", url.Values{"uid": {userID}})
}

func (s *Service) Unfollow(ctx context.Context, userID string) error {
	// 网关侧就是这个拼写
	return s.postForm(ctx, "/api/friendships/destory", url.Values{"uid": {userID}})
}

func (s *Service) Compose(ctx context.Context, content string) error {
	return s.postForm(ctx, "/api/statuses/update", url.Values{"content": {content}})
}

func (s *Service) DeleteStatus(ctx context.Context, statusID string) error {
	return s.postForm(ctx, "/profile/delMyblog", url.Values{"mid": {statusID}})
}
