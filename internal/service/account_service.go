package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/d60-Lab/flare-sync/internal/datasource/bluesky"
	"github.com/d60-Lab/flare-sync/internal/datasource/mastodon"
	"github.com/d60-Lab/flare-sync/internal/datasource/misskey"
	"github.com/d60-Lab/flare-sync/internal/datasource/vvo"
	"github.com/d60-Lab/flare-sync/internal/datasource/xqt"
	"github.com/d60-Lab/flare-sync/internal/model"
	"github.com/d60-Lab/flare-sync/internal/notify"
	"github.com/d60-Lab/flare-sync/internal/repository"
	"github.com/d60-Lab/flare-sync/pkg/secret"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
)

// Credential 各平台登录凭据的统一载体，密封后落库。
type Credential struct {
	Token     string `json:"token,omitempty"`
	AccessJwt string `json:"access_jwt,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
	CsrfToken string `json:"csrf_token,omitempty"`
	Cookie    string `json:"cookie,omitempty"`
}

// AccountService 账号管理：凭据密封存储 + 按平台构造数据源门面。
type AccountService interface {
	AddAccount(ctx context.Context, platform model.PlatformType, accountKey model.MicroBlogKey, cred Credential) error
	ListAccounts(ctx context.Context) ([]model.DbAccount, error)
	RemoveAccount(ctx context.Context, accountKey model.MicroBlogKey) error
	DataSource(ctx context.Context, accountKey model.MicroBlogKey) (DataSource, error)
}

// DataSource 各平台门面的公共写操作面。时间线方法签名各平台不同，
// 调用方按需断言具体类型。
type DataSource interface {
	DeleteStatus(ctx context.Context, statusKey model.MicroBlogKey) error
}

// RelationMutator 关注操作。所有平台都支持。
type RelationMutator interface {
	Follow(ctx context.Context, userKey model.MicroBlogKey) error
	Unfollow(ctx context.Context, userKey model.MicroBlogKey) error
}

// RelationLookup 关系快照查询：取远端最新关系并同步本地缓存。
// XQT / VVO 网关不提供，断言失败即不支持。
type RelationLookup interface {
	Relation(ctx context.Context, userKey model.MicroBlogKey) (*model.DbRelation, error)
}

// BlockMutator 拉黑操作。VVO 网关不提供，断言失败即不支持。
type BlockMutator interface {
	Block(ctx context.Context, userKey model.MicroBlogKey) error
	Unblock(ctx context.Context, userKey model.MicroBlogKey) error
}

// MuteMutator 静音操作
type MuteMutator interface {
	Mute(ctx context.Context, userKey model.MicroBlogKey) error
	Unmute(ctx context.Context, userKey model.MicroBlogKey) error
}

type accountService struct {
	accounts  repository.AccountRepository
	store     *repository.CacheStore
	relations repository.RelationRepository
	hub       notify.Hub
	box       *secret.Box
	pageSize  int
}

func NewAccountService(accounts repository.AccountRepository, store *repository.CacheStore, relations repository.RelationRepository, hub notify.Hub, box *secret.Box, pageSize int) AccountService {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &accountService{
		accounts:  accounts,
		store:     store,
		relations: relations,
		hub:       hub,
		box:       box,
		pageSize:  pageSize,
	}
}

func (s *accountService) AddAccount(ctx context.Context, platform model.PlatformType, accountKey model.MicroBlogKey, cred Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	sealed, err := s.box.Seal(raw)
	if err != nil {
		return err
	}
	return s.accounts.Upsert(ctx, &model.DbAccount{
		AccountKey:   accountKey,
		PlatformType: platform,
		Credential:   sealed,
	})
}

func (s *accountService) ListAccounts(ctx context.Context) ([]model.DbAccount, error) {
	return s.accounts.List(ctx)
}

func (s *accountService) RemoveAccount(ctx context.Context, accountKey model.MicroBlogKey) error {
	return s.accounts.Delete(ctx, accountKey)
}

func (s *accountService) credential(account *model.DbAccount) (Credential, error) {
	raw, err := s.box.Open(account.Credential)
	if err != nil {
		return Credential{}, fmt.Errorf("open credential for %s: %w", account.AccountKey, err)
	}
	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// DataSource 解封凭据并构造对应平台的门面。
func (s *accountService) DataSource(ctx context.Context, accountKey model.MicroBlogKey) (DataSource, error) {
	account, err := s.accounts.Find(ctx, accountKey)
	if err != nil {
		return nil, err
	}
	cred, err := s.credential(account)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.TouchActive(ctx, accountKey); err != nil {
		return nil, err
	}
	switch account.PlatformType {
	case model.PlatformMastodon:
		return mastodon.NewDataSource(accountKey, cred.Token, s.store, s.relations, s.hub, s.pageSize), nil
	case model.PlatformMisskey:
		return misskey.NewDataSource(accountKey, cred.Token, s.store, s.relations, s.hub, s.pageSize), nil
	case model.PlatformBluesky:
		return bluesky.NewDataSource(accountKey, cred.AccessJwt, s.store, s.relations, s.hub, s.pageSize), nil
	case model.PlatformXQT:
		return xqt.NewDataSource(accountKey, cred.AuthToken, cred.CsrfToken, s.store, s.relations, s.hub, s.pageSize), nil
	case model.PlatformVVo:
		return vvo.NewDataSource(accountKey, cred.Cookie, s.store, s.relations, s.hub, s.pageSize), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, account.PlatformType)
	}
}
