package misskey

import "time"

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Host     string `json:"host"`
	AvatarURL string `json:"avatarUrl"`
}

type Note struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Text      string    `json:"text"`
	CW        string    `json:"cw"`
	User      User      `json:"user"`
	UserID    string    `json:"userId"`
	Renote    *Note     `json:"renote"`
	ReplyID   string    `json:"replyId"`
	Visibility string   `json:"visibility"`
}

type Notification struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Type      string    `json:"type"`
	User      *User     `json:"user"`
	Note      *Note     `json:"note"`
}

// UserDetail users/show 返回体，置顶 note 随详情一起给。
type UserDetail struct {
	User
	PinnedNotes []Note `json:"pinnedNotes"`
}

type Relation struct {
	ID          string `json:"id"`
	IsFollowing bool   `json:"isFollowing"`
	IsBlocking  bool   `json:"isBlocking"`
	IsMuted     bool   `json:"isMuted"`
}

type Emoji struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type emojisResponse struct {
	Emojis []Emoji `json:"emojis"`
}

type CreateNoteRequest struct {
	Text       string `json:"text"`
	CW         string `json:"cw,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	ReplyID    string `json:"replyId,omitempty"`
	RenoteID   string `json:"renoteId,omitempty"`
}

type createNoteResponse struct {
	CreatedNote Note `json:"createdNote"`
}
