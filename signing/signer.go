package signing

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"

	"github.com/spacemeshos/go-peerdid/document"
	"github.com/spacemeshos/go-peerdid/pseudojws"
)

type edSignerOption struct {
	priv PrivateKey
	kid  string
}

// EdSignerOptionFunc modifies EdSigner.
type EdSignerOptionFunc func(*edSignerOption) error

// WithKid sets the key id the signer publishes its key under, e.g. "A.1".
func WithKid(kid string) EdSignerOptionFunc {
	return func(opt *edSignerOption) error {
		opt.kid = kid
		return nil
	}
}

// WithPrivateKey sets the private key used by EdSigner.
func WithPrivateKey(priv PrivateKey) EdSignerOptionFunc {
	return func(opt *edSignerOption) error {
		if opt.priv != nil {
			return errors.New("invalid option WithPrivateKey: private key already set")
		}
		if len(priv) != ed25519.PrivateKeySize {
			return errors.New("could not create EdSigner: invalid key length")
		}
		keyPair := ed25519.NewKeyFromSeed(priv[:32])
		if !bytes.Equal(keyPair[32:], priv.Public().(ed25519.PublicKey)) {
			return errors.New("private and public do not match")
		}
		opt.priv = priv
		return nil
	}
}

// WithKeyFromRand sets the private key used by EdSigner using predictable randomness source.
func WithKeyFromRand(rand io.Reader) EdSignerOptionFunc {
	return func(opt *edSignerOption) error {
		if opt.priv != nil {
			return errors.New("invalid option WithKeyFromRand: private key already set")
		}
		_, priv, err := ed25519.GenerateKey(rand)
		if err != nil {
			return fmt.Errorf("could not generate key pair: %w", err)
		}
		opt.priv = priv
		return nil
	}
}

// EdSigner holds the key of one simulated agent.
type EdSigner struct {
	priv PrivateKey
	kid  string
}

// NewEdSigner returns an auto-generated ed signer.
func NewEdSigner(opts ...EdSignerOptionFunc) (*EdSigner, error) {
	cfg := &edSignerOption{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.priv == nil {
		_, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("could not generate key pair: %w", err)
		}
		cfg.priv = priv
	}
	return &EdSigner{priv: cfg.priv, kid: cfg.kid}, nil
}

// Kid returns the key id.
func (es *EdSigner) Kid() string {
	return es.kid
}

// PublicKey returns the public key of the signer.
func (es *EdSigner) PublicKey() *PublicKey {
	return NewPublicKey(es.priv.Public().(ed25519.PublicKey))
}

// PrivateKey returns private key.
func (es *EdSigner) PrivateKey() PrivateKey {
	return es.priv
}

// Endorse produces the placeholder signature agents attach to genesis
// deltas. It is keyed by the private seed and proves nothing.
func (es *EdSigner) Endorse(content []byte) string {
	return pseudojws.Sign(content, es.priv.Seed())
}

// CheckEndorsement reports whether jws was produced by Endorse over content.
func (es *EdSigner) CheckEndorsement(content []byte, jws string) bool {
	return pseudojws.Verify(content, es.priv.Seed(), jws)
}

// VerificationMethod renders the publicKey entry describing this key.
func (es *EdSigner) VerificationMethod() *document.Value {
	m := document.NewObject()
	m.Set("id", document.NewString(es.kid))
	m.Set("type", document.NewString(KeyType))
	m.Set("publicKeyBase58", document.NewString(es.PublicKey().Base58()))
	return m
}

func (es *EdSigner) String() string {
	if es.kid != "" {
		return es.kid
	}
	return es.PublicKey().ShortString()
}
