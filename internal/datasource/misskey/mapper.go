package misskey

import (
	"encoding/json"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

// 远端用户的 host 为空表示本站用户，落库补成账号所在实例。
func userHost(u User, accountHost string) string {
	if u.Host != "" {
		return u.Host
	}
	return accountHost
}

func toDbUser(u User, accountHost string) model.DbUser {
	raw, _ := json.Marshal(u)
	return model.DbUser{
		UserKey:      model.MicroBlogKey{ID: u.ID, Host: accountHost},
		PlatformType: model.PlatformMisskey,
		Name:         u.Name,
		Handle:       u.Username,
		Host:         userHost(u, accountHost),
		Content:      string(raw),
	}
}

func toRow(n Note, accountHost string) paging.Row {
	raw, _ := json.Marshal(n)
	text := n.Text
	if text == "" && n.Renote != nil {
		text = n.Renote.Text
	}
	row := paging.Row{
		Status: model.DbStatus{
			StatusKey:    model.MicroBlogKey{ID: n.ID, Host: accountHost},
			PlatformType: model.PlatformMisskey,
			UserKey:      model.MicroBlogKey{ID: n.User.ID, Host: accountHost},
			Content:      string(raw),
			Text:         text,
			CreatedAt:    n.CreatedAt,
		},
		Users:  []model.DbUser{toDbUser(n.User, accountHost)},
		SortID: n.CreatedAt.UnixMilli(),
	}
	if n.Renote != nil {
		row.Users = append(row.Users, toDbUser(n.Renote.User, accountHost))
	}
	return row
}

func toRows(notes []Note, accountHost string) []paging.Row {
	rows := make([]paging.Row, 0, len(notes))
	for _, n := range notes {
		rows = append(rows, toRow(n, accountHost))
	}
	return rows
}

func notificationRow(n Notification, accountHost string) paging.Row {
	raw, _ := json.Marshal(n)
	row := paging.Row{
		Status: model.DbStatus{
			StatusKey:    model.MicroBlogKey{ID: "notification_" + n.ID, Host: accountHost},
			PlatformType: model.PlatformMisskey,
			Content:      string(raw),
			CreatedAt:    n.CreatedAt,
		},
		SortID: n.CreatedAt.UnixMilli(),
	}
	if n.User != nil {
		row.Status.UserKey = model.MicroBlogKey{ID: n.User.ID, Host: accountHost}
		row.Users = append(row.Users, toDbUser(*n.User, accountHost))
	}
	if n.Note != nil {
		row.Status.Text = n.Note.Text
	}
	return row
}

func toDbEmojis(emojis []Emoji, host string) []model.DbEmoji {
	if len(emojis) == 0 {
		return nil
	}
	raw, _ := json.Marshal(emojis)
	return []model.DbEmoji{{Host: host, Content: string(raw)}}
}
