package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicroBlogKeyRoundTrip(t *testing.T) {
	cases := []MicroBlogKey{
		{ID: "123", Host: "mastodon.social"},
		{ID: "at://did:plc:abc/app.bsky.feed.post/xyz", Host: "bsky.network"},
		{ID: "9abcdef", Host: "misskey.io"},
	}
	for _, k := range cases {
		parsed, err := ParseMicroBlogKey(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestParseMicroBlogKeyInvalid(t *testing.T) {
	for _, s := range []string{"", "nohost", "@host", "id@"} {
		_, err := ParseMicroBlogKey(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestAccountType(t *testing.T) {
	key := NewMicroBlogKey("42", "mastodon.social")
	at := AccountTypeSpecific(key)
	got, ok := at.AccountKey()
	require.True(t, ok)
	assert.Equal(t, key, got)

	_, ok = AccountTypeGuest.AccountKey()
	assert.False(t, ok)
}
