package secret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)

	sealed, err := box.Seal([]byte(`{"token":"abc"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "abc")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"token":"abc"}`, string(plain))
}

func TestOpenRejectsTampered(t *testing.T) {
	box, err := NewBox(testKey)
	require.NoError(t, err)
	sealed, err := box.Seal([]byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff
	_, err = box.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewBoxRejectsBadKey(t *testing.T) {
	_, err := NewBox("zz")
	assert.Error(t, err)
	_, err = NewBox(strings.Repeat("00", 16))
	assert.Error(t, err)
}
