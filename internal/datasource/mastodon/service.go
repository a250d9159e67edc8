package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

// Service Mastodon REST 客户端。分页参数统一是 limit + max_id。
type Service struct {
	baseURL    string
	token      string
	accountKey model.MicroBlogKey
	client     *http.Client
	limiter    *rate.Limiter
}

func NewService(accountKey model.MicroBlogKey, token string) *Service {
	return &Service{
		baseURL:    "https://" + accountKey.Host,
		token:      token,
		accountKey: accountKey,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("mastodon: http %d: %s", e.StatusCode, e.Body)
}

func (s *Service) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	u := s.baseURL + path
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
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		// token 失效按会话过期处理，UI 提示重新登录
		return &paging.LoginExpiredError{AccountKey: s.accountKey, Platform: model.PlatformMastodon}
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

func pageQuery(limit int, maxID string) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if maxID != "" {
		q.Set("max_id", maxID)
	}
	return q
}

func (s *Service) HomeTimeline(ctx context.Context, limit int, maxID string) ([]Status, error) {
	var out []Status
	err := s.do(ctx, http.MethodGet, "/api/v1/timelines/home", pageQuery(limit, maxID), nil, &out)
	return out, err
}

func (s *Service) PublicTimeline(ctx context.Context, local bool, limit int, maxID string) ([]Status, error) {
	q := pageQuery(limit, maxID)
	if local {
		q.Set("local", "true")
	}
	var out []Status
	err := s.do(ctx, http.MethodGet, "/api/v1/timelines/public", q, nil, &out)
	return out, err
}

func (s *Service) HashtagTimeline(ctx context.Context, tag string, limit int, maxID string) ([]Status, error) {
	var out []Status
	err := s.do(ctx, http.MethodGet, "/api/v1/timelines/tag/"+url.PathEscape(tag), pageQuery(limit, maxID), nil, &out)
	return out, err
}

func (s *Service) ListTimeline(ctx context.Context, listID string, limit int, maxID string) ([]Status, error) {
	var out []Status
	err := s.do(ctx, http.MethodGet, "/api/v1/timelines/list/"+url.PathEscape(listID), pageQuery(limit, maxID), nil, &out)
	return out, err
}

func (s *Service) UserTimeline(ctx context.Context, userID string, limit int, maxID string, pinnedOnly bool) ([]Status, error) {
	q := pageQuery(limit, maxID)
	if pinnedOnly {
		q.Set("pinned", "true")
	}
	var out []Status
	err := s.do(ctx, http.MethodGet, "/api/v1/accounts/"+url.PathEscape(userID)+"/statuses", q, nil, &out)
	return out, err
}

func (s *Service) Favourites(ctx context.Context, limit int, maxID string) ([]Status, error) {
	var out []Status
	err := s.do(ctx, http.MethodGet, "/api/v1/favourites", pageQuery(limit, maxID), nil, &out)
	return out, err
}

func (s *Service) Notifications(ctx context.Context, limit int, maxID string) ([]Notification, error) {
	var out []Notification
	err := s.do(ctx, http.MethodGet, "/api/v1/notifications", pageQuery(limit, maxID), nil, &out)
	return out, err
}

func (s *Service) SearchStatuses(ctx context.Context, query string, limit, offset int) ([]Status, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "statuses")
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var out SearchResult
	err := s.do(ctx, http.MethodGet, "/api/v2/search", q, nil, &out)
	return out.Statuses, err
}

func (s *Service) GetStatus(ctx context.Context, id string) (*Status, error) {
	var out Status
	err := s.do(ctx, http.MethodGet, "/api/v1/statuses/"+url.PathEscape(id), nil, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) StatusContext(ctx context.Context, id string) (*Context, error) {
	var out Context
	err := s.do(ctx, http.MethodGet, "/api/v1/statuses/"+url.PathEscape(id)+"/context", nil, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) CustomEmojis(ctx context.Context) ([]Emoji, error) {
	var out []Emoji
	err := s.do(ctx, http.MethodGet, "/api/v1/custom_emojis", nil, nil, &out)
	return out, err
}

func (s *Service) Relationship(ctx context.Context, userID string) (*Relationship, error) {
	q := url.Values{}
	q.Set("id[]", userID)
	var out []Relationship
	if err := s.do(ctx, http.MethodGet, "/api/v1/accounts/relationships", q, nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("mastodon: no relationship for %s", userID)
	}
	return &out[0], nil
}

func (s *Service) relationAction(ctx context.Context, userID, action string) error {
	return s.do(ctx, http.MethodPost, "/api/v1/accounts/"+url.PathEscape(userID)+"/"+action, nil, nil, nil)
}

func (s *Service) Follow(ctx context.Context, userID string) error   { return s.relationAction(ctx, userID, "follow") }
func (s *Service) Unfollow(ctx context.Context, userID string) error { return s.relationAction(ctx, userID, "unfollow") }
func (s *Service) Block(ctx context.Context, userID string) error    { return s.relationAction(ctx, userID, "block") }
func (s *Service) Unblock(ctx context.Context, userID string) error  { return s.relationAction(ctx, userID, "unblock") }
func (s *Service) Mute(ctx context.Context, userID string) error     { return s.relationAction(ctx, userID, "mute") }
func (s *Service) Unmute(ctx context.Context, userID string) error   { return s.relationAction(ctx, userID, "unmute") }

func (s *Service) PostStatus(ctx context.Context, req PostStatusRequest) (*Status, error) {
	var out Status
	err := s.do(ctx, http.MethodPost, "/api/v1/statuses", nil, req, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) DeleteStatus(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, "/api/v1/statuses/"+url.PathEscape(id), nil, nil, nil)
}
