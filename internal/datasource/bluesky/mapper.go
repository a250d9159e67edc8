package bluesky

import (
	"encoding/json"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

func toDbUser(a Author, host string) model.DbUser {
	raw, _ := json.Marshal(a)
	return model.DbUser{
		UserKey:      model.MicroBlogKey{ID: a.DID, Host: host},
		PlatformType: model.PlatformBluesky,
		Name:         a.DisplayName,
		Handle:       a.Handle,
		Host:         host,
		Content:      string(raw),
	}
}

// toRow 行键用 at-uri（解析键时从最后一个 @ 切分，uri 内部不含 @）。
// sortId 取 indexedAt，转发按展示位置排序而不是原发布时间。
func toRow(fv FeedViewPost, host string) paging.Row {
	raw, _ := json.Marshal(fv)
	row := paging.Row{
		Status: model.DbStatus{
			StatusKey:    model.MicroBlogKey{ID: fv.Post.URI, Host: host},
			PlatformType: model.PlatformBluesky,
			UserKey:      model.MicroBlogKey{ID: fv.Post.Author.DID, Host: host},
			Content:      string(raw),
			Text:         fv.Post.Record.Text,
			CreatedAt:    fv.Post.Record.CreatedAt,
		},
		Users:  []model.DbUser{toDbUser(fv.Post.Author, host)},
		SortID: fv.Post.IndexedAt.UnixMilli(),
	}
	if fv.Reason != nil {
		row.Users = append(row.Users, toDbUser(fv.Reason.By, host))
	}
	return row
}

func toRows(feed []FeedViewPost, host string) []paging.Row {
	rows := make([]paging.Row, 0, len(feed))
	for _, fv := range feed {
		rows = append(rows, toRow(fv, host))
	}
	return rows
}

func postRow(p Post, host string) paging.Row {
	return toRow(FeedViewPost{Post: p}, host)
}

func notificationRow(n NotificationView, host string) paging.Row {
	raw, _ := json.Marshal(n)
	return paging.Row{
		Status: model.DbStatus{
			StatusKey:    model.MicroBlogKey{ID: "notification_" + n.URI, Host: host},
			PlatformType: model.PlatformBluesky,
			UserKey:      model.MicroBlogKey{ID: n.Author.DID, Host: host},
			Content:      string(raw),
			Text:         n.Record.Text,
			CreatedAt:    n.IndexedAt,
		},
		Users:  []model.DbUser{toDbUser(n.Author, host)},
		SortID: n.IndexedAt.UnixMilli(),
	}
}
