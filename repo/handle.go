package repo

import (
	"github.com/spacemeshos/go-peerdid/delta"
	"github.com/spacemeshos/go-peerdid/did"
)

// Kind tells where a looked up document comes from.
type Kind uint8

const (
	// KindStored documents are replayed from their delta log.
	KindStored Kind = iota
	// KindPredefined documents are canned templates behind reserved DIDs.
	KindPredefined
	// KindInvalid is the canned, deliberately invalid document.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindStored:
		return "stored"
	case KindPredefined:
		return "predefined"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Handle is the result of a successful lookup.
type Handle struct {
	did    did.DID
	kind   Kind
	log    *delta.Log
	canned []byte
}

func (h *Handle) DID() did.DID { return h.did }

func (h *Handle) Kind() Kind { return h.kind }

// Log returns the delta log of a stored document, nil otherwise.
func (h *Handle) Log() *delta.Log { return h.log }

// Canned returns the template text of a reserved document.
func (h *Handle) Canned() []byte { return h.canned }
