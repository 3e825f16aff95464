package pseudojws

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	require.Equal(t, "J1WJV2ehEmI=.Ccp-Tqpuiuk=.oOEtYB4QFU8=", Sign([]byte("hello, world"), []byte("my key")))
}

func TestVerify(t *testing.T) {
	content, key := []byte("hello, world"), []byte("my key")
	jws := Sign(content, key)
	require.True(t, Verify(content, key, jws))
	require.False(t, Verify([]byte("hello, world!"), key, jws))
	require.False(t, Verify(content, []byte("other key"), jws))
	require.False(t, Verify(content, key, strings.ToUpper(jws)))
}
