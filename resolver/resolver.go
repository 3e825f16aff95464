// Package resolver replays a delta log into a DID document.
package resolver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spacemeshos/go-peerdid/delta"
	"github.com/spacemeshos/go-peerdid/document"
)

// ErrShape is returned when a fragment cannot be merged because the running
// document has an unexpected type where a list is required.
var ErrShape = errors.New("resolver: unexpected document shape")

const (
	keyDeleted        = "deleted"
	keyPublicKey      = "publicKey"
	keyAuthentication = "authentication"
	keyAuthorization  = "authorization"
	keyProfiles       = "profiles"
	keyRules          = "rules"
	keyID             = "id"
	keyKey            = "key"
)

type options struct {
	asOf time.Time
}

// Opt configures Resolve.
type Opt func(*options)

// AsOf stops the replay at the first delta made after t.
func AsOf(t time.Time) Opt {
	return func(o *options) {
		o.asOf = t
	}
}

// Resolve replays l. An empty log resolves to nil without error.
func Resolve(l *delta.Log, opts ...Opt) (*document.Value, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	deltas := l.Deltas()
	if len(deltas) == 0 {
		return nil, nil
	}
	genesis := deltas[0]
	doc, err := genesis.ChangeValue()
	if err != nil {
		return nil, fmt.Errorf("genesis %s: %w", genesis.ID(), err)
	}
	if doc.Kind() != document.Object {
		return nil, fmt.Errorf("genesis %s: %w", genesis.ID(), document.ErrNotObject)
	}
	for _, d := range deltas[1:] {
		if !o.asOf.IsZero() && d.When().After(o.asOf) {
			break
		}
		fragment, err := d.ChangeValue()
		if err != nil {
			return nil, fmt.Errorf("delta %s: %w", d.ID(), err)
		}
		if err := Apply(doc, fragment); err != nil {
			return nil, fmt.Errorf("delta %s: %w", d.ID(), err)
		}
	}
	doc.Set(keyID, document.NewString(genesis.DID().String()))
	return doc, nil
}

// Apply merges one change fragment into doc. Fragments that are not objects
// and keys other than deleted, publicKey and rules are ignored.
func Apply(doc, fragment *document.Value) error {
	if fragment.Kind() != document.Object {
		return nil
	}
	if deleted, ok := fragment.Get(keyDeleted); ok {
		for _, id := range deletedIDs(deleted) {
			remove(doc, id)
		}
	}
	if keys, ok := fragment.Get(keyPublicKey); ok {
		if err := appendTo(doc, keyPublicKey, keys); err != nil {
			return err
		}
		if auth, ok := fragment.Get(keyAuthentication); ok {
			if err := appendTo(doc, keyAuthentication, auth); err != nil {
				return err
			}
		}
		if profiles, ok := profilesOf(fragment); ok {
			authz, err := objectMember(doc, keyAuthorization)
			if err != nil {
				return err
			}
			if err := appendTo(authz, keyProfiles, profiles); err != nil {
				return err
			}
		}
	}
	if rules, ok := fragment.Get(keyRules); ok {
		if err := appendTo(doc, keyRules, rules); err != nil {
			return err
		}
	}
	return nil
}

func deletedIDs(v *document.Value) []string {
	switch v.Kind() {
	case document.String:
		return []string{v.Str()}
	case document.Array:
		var ids []string
		for _, item := range v.Items() {
			if item.Kind() == document.String {
				ids = append(ids, item.Str())
			}
		}
		return ids
	}
	return nil
}

func profilesOf(fragment *document.Value) (*document.Value, bool) {
	authz, ok := fragment.Get(keyAuthorization)
	if !ok || authz.Kind() != document.Object {
		return nil, false
	}
	return authz.Get(keyProfiles)
}

// refers reports whether ref names id. Both may be bare ("key-1"),
// fragments ("#key-1") or DID URLs ("did:peer:...#key-1").
func refers(ref, id string) bool {
	return fragmentOf(ref) == fragmentOf(id)
}

func fragmentOf(s string) string {
	if i := strings.LastIndexByte(s, '#'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func memberRefers(item *document.Value, id string, keys ...string) bool {
	for _, k := range keys {
		if v, ok := item.Get(k); ok && v.Kind() == document.String && refers(v.Str(), id) {
			return true
		}
	}
	return false
}

func remove(doc *document.Value, id string) {
	if keys, ok := doc.Get(keyPublicKey); ok {
		keys.Filter(func(item *document.Value) bool {
			return !memberRefers(item, id, keyID)
		})
	}
	if auth, ok := doc.Get(keyAuthentication); ok {
		auth.Filter(func(item *document.Value) bool {
			if item.Kind() == document.String {
				return !refers(item.Str(), id)
			}
			return !memberRefers(item, id, keyID)
		})
	}
	if authz, ok := doc.Get(keyAuthorization); ok {
		if profiles, ok := authz.Get(keyProfiles); ok {
			profiles.Filter(func(item *document.Value) bool {
				return !memberRefers(item, id, keyKey, keyID)
			})
		}
	}
}

func list(container *document.Value, key string) (*document.Value, error) {
	existing, ok := container.Get(key)
	if !ok {
		created := document.NewArray()
		container.Set(key, created)
		return created, nil
	}
	if existing.Kind() != document.Array {
		return nil, fmt.Errorf("%w: %q is %s, not a list", ErrShape, key, existing.Kind())
	}
	return existing, nil
}

func objectMember(container *document.Value, key string) (*document.Value, error) {
	existing, ok := container.Get(key)
	if !ok {
		created := document.NewObject()
		container.Set(key, created)
		return created, nil
	}
	if existing.Kind() != document.Object {
		return nil, fmt.Errorf("%w: %q is %s, not an object", ErrShape, key, existing.Kind())
	}
	return existing, nil
}

func appendTo(container *document.Value, key string, add *document.Value) error {
	target, err := list(container, key)
	if err != nil {
		return err
	}
	if add.Kind() == document.Array {
		for _, item := range add.Items() {
			target.Append(item.Clone())
		}
		return nil
	}
	target.Append(add.Clone())
	return nil
}
