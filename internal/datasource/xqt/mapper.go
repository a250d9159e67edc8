package xqt

import (
	"encoding/json"
	"time"

	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/paging"
)

func toDbUser(u UserResult, host string) model.DbUser {
	raw, _ := json.Marshal(u)
	return model.DbUser{
		UserKey:      model.MicroBlogKey{ID: u.RestID, Host: host},
		PlatformType: model.PlatformXQT,
		Name:         u.Legacy.Name,
		Handle:       u.Legacy.ScreenName,
		Host:         host,
		Content:      string(raw),
	}
}

// toRow sortId 直接用远端 sortIndex（数值越大越新），
// created_at 是 Ruby 日期格式。
func toRow(e tweetEntry, host string) paging.Row {
	raw, _ := json.Marshal(e.Tweet)
	createdAt, err := time.Parse(time.RubyDate, e.Tweet.Legacy.CreatedAt)
	if err != nil {
		createdAt = time.Time{}
	}
	user := e.Tweet.Core.UserResults.Result
	return paging.Row{
		Status: model.DbStatus{
			StatusKey:    model.MicroBlogKey{ID: e.Tweet.RestID, Host: host},
			PlatformType: model.PlatformXQT,
			UserKey:      model.MicroBlogKey{ID: user.RestID, Host: host},
			Content:      string(raw),
			Text:         e.Tweet.Legacy.FullText,
			CreatedAt:    createdAt,
		},
		Users:  []model.DbUser{toDbUser(user, host)},
		SortID: e.SortIndex,
	}
}

func toRows(page TimelinePage, host string) []paging.Row {
	rows := make([]paging.Row, 0, len(page.Tweets))
	for _, e := range page.Tweets {
		rows = append(rows, toRow(e, host))
	}
	return rows
}
