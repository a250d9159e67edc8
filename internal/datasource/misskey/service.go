package misskey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

// Service Misskey 客户端。全部端点是 POST JSON，token 放请求体 i 字段，
// 翻页统一 limit + untilId。
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
	return fmt.Sprintf("misskey: http %d: %s", e.StatusCode, e.Body)
}

func (s *Service) post(ctx context.Context, path string, body map[string]any, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if body == nil {
		body = map[string]any{}
	}
	if s.token != "" {
		body["i"] = s.token
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &paging.LoginExpiredError{AccountKey: s.accountKey, Platform: model.PlatformMisskey}
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

func pageBody(limit int, untilID string, extra map[string]any) map[string]any {
	body := map[string]any{"limit": limit}
	if untilID != "" {
		body["untilId"] = untilID
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func (s *Service) HomeTimeline(ctx context.Context, limit int, untilID string) ([]Note, error) {
	var out []Note
	err := s.post(ctx, "/api/notes/timeline", pageBody(limit, untilID, nil), &out)
	return out, err
}

func (s *Service) LocalTimeline(ctx context.Context, limit int, untilID string) ([]Note, error) {
	var out []Note
	err := s.post(ctx, "/api/notes/local-timeline", pageBody(limit, untilID, nil), &out)
	return out, err
}

func (s *Service) UserNotes(ctx context.Context, userID string, limit int, untilID string) ([]Note, error) {
	var out []Note
	err := s.post(ctx, "/api/users/notes", pageBody(limit, untilID, map[string]any{"userId": userID}), &out)
	return out, err
}

func (s *Service) ShowUser(ctx context.Context, userID string) (*UserDetail, error) {
	var out UserDetail
	err := s.post(ctx, "/api/users/show", map[string]any{"userId": userID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Notifications(ctx context.Context, limit int, untilID string) ([]Notification, error) {
	var out []Notification
	err := s.post(ctx, "/api/i/notifications", pageBody(limit, untilID, nil), &out)
	return out, err
}

func (s *Service) SearchNotes(ctx context.Context, query string, limit int, untilID string) ([]Note, error) {
	var out []Note
	err := s.post(ctx, "/api/notes/search", pageBody(limit, untilID, map[string]any{"query": query}), &out)
	return out, err
}

func (s *Service) ChannelTimeline(ctx context.Context, channelID string, limit int, untilID string) ([]Note, error) {
	var out []Note
	err := s.post(ctx, "/api/channels/timeline", pageBody(limit, untilID, map[string]any{"channelId": channelID}), &out)
	return out, err
}

func (s *Service) NoteChildren(ctx context.Context, noteID string, limit int, untilID string) ([]Note, error) {
	var out []Note
	err := s.post(ctx, "/api/notes/children", pageBody(limit, untilID, map[string]any{"noteId": noteID}), &out)
	return out, err
}

func (s *Service) ShowNote(ctx context.Context, noteID string) (*Note, error) {
	var out Note
	err := s.post(ctx, "/api/notes/show", map[string]any{"noteId": noteID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) UserRelation(ctx context.Context, userID string) (*Relation, error) {
	var out Relation
	err := s.post(ctx, "/api/users/relation", map[string]any{"userId": userID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Meta(ctx context.Context) ([]Emoji, error) {
	var out emojisResponse
	err := s.post(ctx, "/api/emojis", map[string]any{}, &out)
	return out.Emojis, err
}

func (s *Service) CreateNote(ctx context.Context, req CreateNoteRequest) (*Note, error) {
	body := map[string]any{"text": req.Text}
	if req.CW != "" {
		body["cw"] = req.CW
	}
	if req.Visibility != "" {
		body["visibility"] = req.Visibility
	}
	if req.ReplyID != "" {
		body["replyId"] = req.ReplyID
	}
	if req.RenoteID != "" {
		body["renoteId"] = req.RenoteID
	}
	var out createNoteResponse
	if err := s.post(ctx, "/api/notes/create", body, &out); err != nil {
		return nil, err
	}
	return &out.CreatedNote, nil
}

func (s *Service) DeleteNote(ctx context.Context, noteID string) error {
	return s.post(ctx, "/api/notes/delete", map[string]any{"noteId": noteID}, nil)
}

func (s *Service) userAction(ctx context.Context, path, userID string) error {
	return s.post(ctx, path, map[string]any{"userId": userID}, nil)
}

func (s *Service) Follow(ctx context.Context, userID string) error   { return s.userAction(ctx, "/api/following/create", userID) }
func (s *Service) Unfollow(ctx context.Context, userID string) error { return s.userAction(ctx, "/api/following/delete", userID) }
func (s *Service) Block(ctx context.Context, userID string) error    { return s.userAction(ctx, "/api/blocking/create", userID) }
func (s *Service) Unblock(ctx context.Context, userID string) error  { return s.userAction(ctx, "/api/blocking/delete", userID) }
func (s *Service) Mute(ctx context.Context, userID string) error     { return s.userAction(ctx, "/api/mute/create", userID) }
func (s *Service) Unmute(ctx context.Context, userID string) error   { return s.userAction(ctx, "/api/mute/delete", userID) }
