package paging

import (
	"context"
	"errors"
	"fmt"

	"github.com/d60-Lab/flare-sync/internal/model"
)

// RequestKind 与 UI 的三种加载方向一一对应。
type RequestKind int

const (
	RequestRefresh RequestKind = iota
	RequestPrepend
	RequestAppend
)

func (k RequestKind) String() string {
	switch k {
	case RequestRefresh:
		return "refresh"
	case RequestPrepend:
		return "prepend"
	case RequestAppend:
		return "append"
	}
	return "unknown"
}

// Request 一次分页拉取；NextKey 对 pager 是不透明字符串，
// 数字偏移 / snowflake / until id / cursor token 都由各 mediator 自行解释。
type Request struct {
	Kind    RequestKind
	NextKey string
}

// Row 归一化后的一条分页数据：实体行 + 排序信息。
type Row struct {
	Status model.DbStatus
	Users  []model.DbUser
	Emojis []model.DbEmoji
	SortID int64
	Pinned bool
}

// Result 单页结果。页要么完整返回要么整页失败，不存在半页。
type Result struct {
	EndOfPaginationReached bool
	NextKey                string
	Rows                   []Row
}

// Mediator 按后端×时间线种类实现一次取页。实例归属单个订阅生命周期，
// cursor 等状态保存在实例内；pager 保证同一时刻至多一次调用在途。
type Mediator interface {
	Timeline(ctx context.Context, pageSize int, req Request) (Result, error)
}

// Policy 控制 pager 对该 mediator 的刷新行为。
type Policy struct {
	// SkipInitialRefresh 订阅后直接展示缓存，不自动刷新（缓存为空时仍会拉首页）
	SkipInitialRefresh bool
	// ClearOnRefresh 刷新时清窗重建；无法本地去重的 mediator 依赖它保证幂等
	ClearOnRefresh bool
}

// PolicyProvider mediator 可选实现；缺省为 {false, true}。
type PolicyProvider interface {
	Policy() Policy
}

func PolicyOf(m Mediator) Policy {
	if p, ok := m.(PolicyProvider); ok {
		return p.Policy()
	}
	return Policy{ClearOnRefresh: true}
}

// PrependUnsupported 所有后端的时间线都只向后增长，Prepend 一律立即终止。
func PrependUnsupported() (Result, error) {
	return Result{EndOfPaginationReached: true}, nil
}

// LoginExpiredError 会话过期。UI 层据此提示重新登录而不是盲目重试。
type LoginExpiredError struct {
	AccountKey model.MicroBlogKey
	Platform   model.PlatformType
}

func (e *LoginExpiredError) Error() string {
	return fmt.Sprintf("login expired for %s (%s)", e.AccountKey, e.Platform)
}

// IsLoginExpired reports whether err wraps a LoginExpiredError.
func IsLoginExpired(err error) bool {
	var target *LoginExpiredError
	return errors.As(err, &target)
}
