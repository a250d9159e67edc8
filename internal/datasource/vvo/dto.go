package vvo

type User struct {
	ID         int64  `json:"id"`
	ScreenName string `json:"screen_name"`
	AvatarHD   string `json:"avatar_hd"`
}

type Status struct {
	ID              string  `json:"id"`
	Text            string  `json:"text"`
	RawText         string  `json:"raw_text"`
	CreatedAt       string  `json:"created_at"`
	User            User    `json:"user"`
	RetweetedStatus *Status `json:"retweeted_status"`
}

type configData struct {
	Data struct {
		Login bool `json:"login"`
	} `json:"data"`
}

type statusListData struct {
	OK   int `json:"ok"`
	Data struct {
		Statuses []Status `json:"statuses"`
	} `json:"data"`
}

// cards 形式的容器响应（用户页、搜索页）
type cardListData struct {
	OK   int `json:"ok"`
	Data struct {
		Cards []struct {
			CardType int     `json:"card_type"`
			Mblog    *Status `json:"mblog"`
		} `json:"cards"`
	} `json:"data"`
}

type repostListData struct {
	OK   int `json:"ok"`
	Data struct {
		Data []Status `json:"data"`
	} `json:"data"`
}
