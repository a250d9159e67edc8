package vvo

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

// created_at 同一个接口会给出 "刚刚"、"3分钟前"、"01-02" 或完整时间，
// 解析尽力而为，排序不依赖它。
func parseCreatedAt(s string) time.Time {
	for _, layout := range []string{time.RubyDate, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func toDbUser(u User, host string) model.DbUser {
	raw, _ := json.Marshal(u)
	id := strconv.FormatInt(u.ID, 10)
	return model.DbUser{
		UserKey:      model.MicroBlogKey{ID: id, Host: host},
		PlatformType: model.PlatformVVo,
		Name:         u.ScreenName,
		Handle:       u.ScreenName,
		Host:         host,
		Content:      string(raw),
	}
}

// toRow 页码接口没有可用的时间信号，sortId 用 -(页内序号 + 页码*页大小)
// 合成，保证跨页单调递减。
func toRow(st Status, host string, page, index, pageSize int) paging.Row {
	raw, _ := json.Marshal(st)
	text := st.RawText
	if text == "" {
		text = st.Text
	}
	row := paging.Row{
		Status: model.DbStatus{
			StatusKey:    model.MicroBlogKey{ID: st.ID, Host: host},
			PlatformType: model.PlatformVVo,
			UserKey:      model.MicroBlogKey{ID: strconv.FormatInt(st.User.ID, 10), Host: host},
			Content:      string(raw),
			Text:         text,
			CreatedAt:    parseCreatedAt(st.CreatedAt),
		},
		Users:  []model.DbUser{toDbUser(st.User, host)},
		SortID: -int64(index + page*pageSize),
	}
	if st.RetweetedStatus != nil {
		row.Users = append(row.Users, toDbUser(st.RetweetedStatus.User, host))
	}
	return row
}

func toRows(statuses []Status, host string, page, pageSize int) []paging.Row {
	rows := make([]paging.Row, 0, len(statuses))
	for i, st := range statuses {
		rows = append(rows, toRow(st, host, page, i, pageSize))
	}
	return rows
}
