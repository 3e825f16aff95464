package hash

import (
	stdhash "hash"
	"sync"
)

// pool is a global sha256 hasher pool. It is meant to amortize allocations
// of hashers when fingerprinting long delta histories.
var pool = &sync.Pool{
	New: func() any {
		return New()
	},
}

// GetHasher will get a reset sha256 hasher from the pool.
// It may or may not allocate a new one.
func GetHasher() stdhash.Hash {
	h := pool.Get().(stdhash.Hash)
	h.Reset()
	return h
}

// PutHasher returns the hasher back to the pool.
func PutHasher(hasher stdhash.Hash) {
	pool.Put(hasher)
}
