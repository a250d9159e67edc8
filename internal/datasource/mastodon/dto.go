package mastodon

import "time"

// 只声明客户端消费的字段；完整 DTO 以 Content 原样 JSON 落库。

type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	URL         string `json:"url"`
}

type Status struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	Content    string     `json:"content"`
	SpoilerText string    `json:"spoiler_text"`
	Visibility string     `json:"visibility"`
	Account    Account    `json:"account"`
	Reblog     *Status    `json:"reblog"`
	Pinned     bool       `json:"pinned"`
	InReplyToID string    `json:"in_reply_to_id"`
}

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Account   Account   `json:"account"`
	Status    *Status   `json:"status"`
}

type Relationship struct {
	ID        string `json:"id"`
	Following bool   `json:"following"`
	Blocking  bool   `json:"blocking"`
	Muting    bool   `json:"muting"`
}

type Context struct {
	Ancestors   []Status `json:"ancestors"`
	Descendants []Status `json:"descendants"`
}

type SearchResult struct {
	Statuses []Status `json:"statuses"`
}

type Emoji struct {
	Shortcode string `json:"shortcode"`
	URL       string `json:"url"`
}

// PostStatusRequest 发帖参数
type PostStatusRequest struct {
	Status      string   `json:"status"`
	InReplyToID string   `json:"in_reply_to_id,omitempty"`
	SpoilerText string   `json:"spoiler_text,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
	Sensitive   bool     `json:"sensitive,omitempty"`
	MediaIDs    []string `json:"media_ids,omitempty"`
}
