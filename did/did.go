// Package did implements the did:peer:1 identifier syntax.
package did

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mr-tron/base58"
)

const (
	// Prefix precedes the numeric basis of every peer DID.
	Prefix = "did:peer:1z"
	// BasisLen is the number of base58 characters after the prefix.
	BasisLen = 46
)

var (
	// ErrMalformed is returned for strings that are not peer DIDs.
	ErrMalformed = errors.New("did: malformed identifier")

	pattern = regexp.MustCompile(`^did:peer:(1)(z)([1-9a-km-zA-HJ-NP-Z]{46})$`)
)

// DID is a syntactically valid peer DID.
type DID struct {
	basis string
}

// Parse validates s and returns the DID it names.
func Parse(s string) (DID, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return DID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return DID{basis: m[3]}, nil
}

// MustParse is like Parse but panics on failure.
func MustParse(s string) DID {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Valid reports whether s is a syntactically valid peer DID.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// FromID builds the DID for a genesis identifier (encnumbasis).
func FromID(id string) (DID, error) {
	return Parse(Prefix + id)
}

// Reserved returns the reserved DID made of 46 copies of ch.
func Reserved(ch byte) (DID, error) {
	return Parse(Prefix + strings.Repeat(string(ch), BasisLen))
}

// ID returns the numeric basis of the DID.
func (d DID) ID() string {
	return d.basis
}

// String returns the full DID text.
func (d DID) String() string {
	if d.basis == "" {
		return ""
	}
	return Prefix + d.basis
}

// IsZero reports whether d was never parsed.
func (d DID) IsZero() bool {
	return d.basis == ""
}

// Reserved reports whether every character of the basis is the same,
// ignoring case. Reserved DIDs name canned documents and never hit storage.
func (d DID) Reserved() bool {
	if d.basis == "" {
		return false
	}
	first := strings.ToLower(d.basis[:1])
	return strings.ToLower(d.basis) == strings.Repeat(first, BasisLen)
}

// ReservedChar returns the lowercased repeated character of a reserved DID.
func (d DID) ReservedChar() (byte, bool) {
	if !d.Reserved() {
		return 0, false
	}
	return strings.ToLower(d.basis[:1])[0], true
}

// Abbreviate shortens a DID for display.
func Abbreviate(s string) string {
	if len(s) <= 18 {
		return s
	}
	return s[:15] + "..." + s[len(s)-3:]
}

// Compare orders two DIDs. Base58 is case sensitive so the comparison is
// a plain byte comparison.
func Compare(a, b DID) int {
	return strings.Compare(a.basis, b.basis)
}

// StorageKey derives the storage name for a DID or a bare identifier. The
// base58 basis is decoded and hex encoded so that keys stay distinct on
// case-insensitive filesystems.
func StorageKey(didOrID string) (string, error) {
	basis := didOrID
	if strings.HasPrefix(didOrID, "did:") {
		d, err := Parse(didOrID)
		if err != nil {
			return "", err
		}
		basis = d.basis
	}
	raw, err := base58.Decode(basis)
	if err != nil || len(raw) == 0 {
		return "", fmt.Errorf("%w: identifier %q", ErrMalformed, didOrID)
	}
	return hex.EncodeToString(raw), nil
}
