package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// PlatformType 标识后端平台类型
type PlatformType string

const (
	PlatformMastodon PlatformType = "mastodon"
	PlatformMisskey  PlatformType = "misskey"
	PlatformBluesky  PlatformType = "bluesky"
	PlatformXQT      PlatformType = "xqt"
	PlatformVVo      PlatformType = "vvo"
)

// MicroBlogKey 全局唯一的远端实体标识（id + host），序列化为 "id@host"。
type MicroBlogKey struct {
	ID   string
	Host string
}

func NewMicroBlogKey(id, host string) MicroBlogKey {
	return MicroBlogKey{ID: id, Host: host}
}

func (k MicroBlogKey) String() string {
	return k.ID + "@" + k.Host
}

func (k MicroBlogKey) IsZero() bool {
	return k.ID == "" && k.Host == ""
}

// ParseMicroBlogKey 解析 "id@host"；id 本身可能含 '@'（例如 AT URI），
// 因此以最后一个 '@' 为分隔。
func ParseMicroBlogKey(s string) (MicroBlogKey, error) {
	idx := strings.LastIndex(s, "@")
	if idx <= 0 || idx == len(s)-1 {
		return MicroBlogKey{}, fmt.Errorf("invalid microblog key: %q", s)
	}
	return MicroBlogKey{ID: s[:idx], Host: s[idx+1:]}, nil
}

// Value implements driver.Valuer so the key can be used directly as a column.
func (k MicroBlogKey) Value() (driver.Value, error) {
	return k.String(), nil
}

// Scan implements sql.Scanner.
func (k *MicroBlogKey) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into MicroBlogKey", src)
	}
	parsed, err := ParseMicroBlogKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// GormDataType tells gorm how to map the key type in migrations.
func (MicroBlogKey) GormDataType() string { return "varchar(255)" }

// AccountType 账号维度：游客或具体账号，直接以字符串形式入库。
type AccountType string

const AccountTypeGuest AccountType = "guest"

// AccountTypeSpecific builds the account-scoped variant ("account:id@host").
func AccountTypeSpecific(accountKey MicroBlogKey) AccountType {
	return AccountType("account:" + accountKey.String())
}

// AccountKey returns the account key for a specific account type, or ok=false
// for the guest variant.
func (a AccountType) AccountKey() (MicroBlogKey, bool) {
	s := string(a)
	if !strings.HasPrefix(s, "account:") {
		return MicroBlogKey{}, false
	}
	k, err := ParseMicroBlogKey(strings.TrimPrefix(s, "account:"))
	if err != nil {
		return MicroBlogKey{}, false
	}
	return k, true
}

func (a AccountType) String() string { return string(a) }
