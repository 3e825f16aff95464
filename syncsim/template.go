package syncsim

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"

	"github.com/spacemeshos/go-peerdid/document"
)

// ErrTemplate is returned for a party template the simulation cannot use.
var ErrTemplate = errors.New("syncsim: bad party template")

// MaxAgentsPerParty follows from single digit agent numbers.
const MaxAgentsPerParty = 9

//go:embed template.json
var defaultTemplate []byte

var kidPlaceholder = regexp.MustCompile(`([#"])[xX][.]`)

// Profile is one authorization profile of a party template. Every profile
// becomes an agent.
type Profile struct {
	Key    string
	Groups string
}

// LoadTemplate parses a party's DID doc template, replacing the `x.` key
// placeholders with the party letter.
func LoadTemplate(data []byte, party byte) (*document.Value, error) {
	data = kidPlaceholder.ReplaceAll(data, []byte("${1}"+string(party)+"."))
	doc, err := document.ParseObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	if _, err := Profiles(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DefaultTemplate returns the built-in template with four profiles.
func DefaultTemplate(party byte) *document.Value {
	doc, err := LoadTemplate(defaultTemplate, party)
	if err != nil {
		panic(err)
	}
	return doc
}

// Profiles lists authorization.profiles of a template.
func Profiles(doc *document.Value) ([]Profile, error) {
	auth, ok := doc.Get("authorization")
	if !ok || auth.Kind() != document.Object {
		return nil, fmt.Errorf("%w: no authorization section", ErrTemplate)
	}
	list, ok := auth.Get("profiles")
	if !ok || list.Kind() != document.Array || list.Len() == 0 {
		return nil, fmt.Errorf("%w: no authorization profiles", ErrTemplate)
	}
	if list.Len() > MaxAgentsPerParty {
		return nil, fmt.Errorf("%w: %d profiles, at most %d", ErrTemplate, list.Len(), MaxAgentsPerParty)
	}
	out := make([]Profile, 0, list.Len())
	for _, item := range list.Items() {
		var p Profile
		if key, ok := item.Get("key"); ok {
			p.Key = key.Str()
		}
		if groups, ok := item.Get("groups"); ok {
			p.Groups = groups.Str()
		}
		out = append(out, p)
	}
	return out, nil
}
