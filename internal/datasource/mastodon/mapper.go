package mastodon

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// stripHTML 去标签得到纯文本，只用于本地搜索索引。
func stripHTML(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}

func userKey(a Account, host string) model.MicroBlogKey {
	return model.MicroBlogKey{ID: a.ID, Host: host}
}

func toDbUser(a Account, host string) model.DbUser {
	raw, _ := json.Marshal(a)
	return model.DbUser{
		UserKey:      userKey(a, host),
		PlatformType: model.PlatformMastodon,
		Name:         a.DisplayName,
		Handle:       a.Acct,
		Host:         host,
		Content:      string(raw),
	}
}

// toRow 一条 status 映射成一行时间线。sortId 用发布时间毫秒值，
// 转发（reblog）保留外层 id 作为行键，原作者一并入库。
func toRow(st Status, host string) paging.Row {
	raw, _ := json.Marshal(st)
	row := paging.Row{
		Status: model.DbStatus{
			StatusKey:    model.MicroBlogKey{ID: st.ID, Host: host},
			PlatformType: model.PlatformMastodon,
			UserKey:      userKey(st.Account, host),
			Content:      string(raw),
			Text:         stripHTML(st.Content),
			CreatedAt:    st.CreatedAt,
		},
		Users:  []model.DbUser{toDbUser(st.Account, host)},
		SortID: st.CreatedAt.UnixMilli(),
		Pinned: st.Pinned,
	}
	if st.Reblog != nil {
		row.Users = append(row.Users, toDbUser(st.Reblog.Account, host))
		row.Status.Text = stripHTML(st.Reblog.Content)
	}
	return row
}

func toRows(statuses []Status, host string) []paging.Row {
	rows := make([]paging.Row, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, toRow(st, host))
	}
	return rows
}

// notificationRow 通知没有独立实体表，把通知整体落成 status 行，
// 行键用通知 id 前缀隔离，避免和正文 status 撞键。
func notificationRow(n Notification, host string) paging.Row {
	raw, _ := json.Marshal(n)
	text := ""
	if n.Status != nil {
		text = stripHTML(n.Status.Content)
	}
	row := paging.Row{
		Status: model.DbStatus{
			StatusKey:    model.MicroBlogKey{ID: "notification_" + n.ID, Host: host},
			PlatformType: model.PlatformMastodon,
			UserKey:      userKey(n.Account, host),
			Content:      string(raw),
			Text:         text,
			CreatedAt:    n.CreatedAt,
		},
		Users:  []model.DbUser{toDbUser(n.Account, host)},
		SortID: n.CreatedAt.UnixMilli(),
	}
	if n.Status != nil {
		row.Users = append(row.Users, toDbUser(n.Status.Account, host))
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
