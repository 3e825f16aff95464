// Package pseudojws is a placeholder for detached JWS signatures. It binds
// content to a key with truncated digests and provides no security at all.
package pseudojws

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/spacemeshos/go-peerdid/hash"
)

// digestLen keeps the segments short enough to read in logs.
const digestLen = 8

func segment(data ...[]byte) string {
	return base64.URLEncoding.EncodeToString(hash.Truncated(digestLen, data...))
}

// Sign returns "<h(content||key)>.<h(content)>.<h(key)>" where h is the
// truncated sha256 digest, base64url encoded.
func Sign(content, key []byte) string {
	return strings.Join([]string{
		segment(content, key),
		segment(content),
		segment(key),
	}, ".")
}

// Verify reports whether jws is the signature of content with key.
func Verify(content, key []byte, jws string) bool {
	return subtle.ConstantTimeCompare([]byte(Sign(content, key)), []byte(jws)) == 1
}
