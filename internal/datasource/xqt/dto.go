package xqt

// GraphQL 时间线响应的最小投影：instructions → entries，
// entry 要么是 tweet 要么是 cursor。

type UserLegacy struct {
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

type UserResult struct {
	RestID string     `json:"rest_id"`
	Legacy UserLegacy `json:"legacy"`
}

type TweetLegacy struct {
	FullText  string `json:"full_text"`
	CreatedAt string `json:"created_at"`
}

type Tweet struct {
	RestID string      `json:"rest_id"`
	Legacy TweetLegacy `json:"legacy"`
	Core   struct {
		UserResults struct {
			Result UserResult `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
}

type Entry struct {
	EntryID   string `json:"entryId"`
	SortIndex string `json:"sortIndex"`
	Content   struct {
		EntryType   string `json:"entryType"`
		ItemContent *struct {
			TweetResults struct {
				Result *Tweet `json:"result"`
			} `json:"tweet_results"`
		} `json:"itemContent"`
		CursorType string `json:"cursorType"`
		Value      string `json:"value"`
	} `json:"content"`
}

type Instruction struct {
	Type    string  `json:"type"`
	Entries []Entry `json:"entries"`
}

type Timeline struct {
	Instructions []Instruction `json:"instructions"`
}

// TimelinePage service 层解析后的统一结果
type TimelinePage struct {
	Tweets       []tweetEntry
	BottomCursor string
}

type tweetEntry struct {
	Tweet     Tweet
	SortIndex int64
}
