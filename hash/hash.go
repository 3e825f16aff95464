// Package hash holds the sha256 primitives used for content addressing and
// history fingerprints.
package hash

import "github.com/minio/sha256-simd"

const (
	// Size is an alias to minio sha256.Size (32 bytes).
	Size = sha256.Size
)

var (
	// New is an alias to minio sha256.New.
	New = sha256.New
	// Sum is an alias to minio sha256.Sum256.
	Sum = sha256.Sum256
)

// Truncated returns the first n bytes of the sha256 digest of data.
func Truncated(n int, data ...[]byte) []byte {
	h := GetHasher()
	defer PutHasher(h)
	for _, d := range data {
		h.Write(d)
	}
	sum := h.Sum(nil)
	if n > len(sum) {
		n = len(sum)
	}
	return sum[:n]
}
