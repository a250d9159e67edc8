package bluesky

import "time"

type Author struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

type Record struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Reply     *struct {
		Parent struct {
			URI string `json:"uri"`
		} `json:"parent"`
	} `json:"reply"`
}

type Post struct {
	URI       string    `json:"uri"`
	CID       string    `json:"cid"`
	Author    Author    `json:"author"`
	Record    Record    `json:"record"`
	IndexedAt time.Time `json:"indexedAt"`
}

// FeedViewPost feed 里的一项，reason 标记转发来源。
type FeedViewPost struct {
	Post   Post `json:"post"`
	Reason *struct {
		Type string `json:"$type"`
		By   Author `json:"by"`
	} `json:"reason"`
}

type feedResponse struct {
	Cursor string         `json:"cursor"`
	Feed   []FeedViewPost `json:"feed"`
}

type searchResponse struct {
	Cursor string `json:"cursor"`
	Posts  []Post `json:"posts"`
}

type NotificationView struct {
	URI       string    `json:"uri"`
	CID       string    `json:"cid"`
	Author    Author    `json:"author"`
	Reason    string    `json:"reason"`
	IndexedAt time.Time `json:"indexedAt"`
	Record    Record    `json:"record"`
}

type notificationsResponse struct {
	Cursor        string             `json:"cursor"`
	Notifications []NotificationView `json:"notifications"`
}

type ProfileView struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
	Viewer struct {
		Following string `json:"following"`
		Blocking  string `json:"blocking"`
		Muted     bool   `json:"muted"`
	} `json:"viewer"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}
