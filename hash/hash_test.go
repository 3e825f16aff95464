package hash

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	sum := Sum([]byte("abc"))
	require.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		hex.EncodeToString(sum[:]))
}

func TestTruncated(t *testing.T) {
	full := Sum([]byte("hello, world"))
	require.Equal(t, full[:8], Truncated(8, []byte("hello, "), []byte("world")))
	require.Equal(t, full[:], Truncated(64, []byte("hello, world")))
}

func TestPoolResetsHasher(t *testing.T) {
	h := GetHasher()
	h.Write([]byte("garbage"))
	PutHasher(h)

	h = GetHasher()
	defer PutHasher(h)
	h.Write([]byte("abc"))
	sum := Sum([]byte("abc"))
	require.Equal(t, sum[:], h.Sum(nil))
}
