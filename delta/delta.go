// Package delta implements content addressed document changes and the
// append-only logs they form.
package delta

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"

	"github.com/spacemeshos/go-peerdid/did"
	"github.com/spacemeshos/go-peerdid/document"
	"github.com/spacemeshos/go-peerdid/hash"
)

// TimeLayout renders `when` as an ISO-8601 UTC time without zone.
const TimeLayout = "2006-01-02T15:04:05.000000"

// Delta is an immutable {change, by, when} triple. Its hash and ID depend on
// the change alone.
type Delta struct {
	change string
	data   []byte
	by     []string
	when   time.Time

	once sync.Once
	hash [hash.Size]byte
	id   string
}

type options struct {
	when  time.Time
	clock clockwork.Clock
}

// Opt configures New.
type Opt func(*options)

// WithWhen sets the time of the change.
func WithWhen(t time.Time) Opt {
	return func(o *options) {
		o.when = t
	}
}

// WithClock sets the clock used when no explicit time is given.
func WithClock(clock clockwork.Clock) Opt {
	return func(o *options) {
		o.clock = clock
	}
}

// New normalizes payload and creates a delta endorsed by the given
// identifiers.
func New(payload Payload, by []string, opts ...Opt) (*Delta, error) {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	data, err := payload.Bytes()
	if err != nil {
		return nil, err
	}
	when := o.when
	if when.IsZero() {
		when = o.clock.Now()
	}
	return &Delta{
		change: base64.URLEncoding.EncodeToString(data),
		data:   data,
		by:     slices.Clone(by),
		when:   when.UTC(),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(payload Payload, by []string, opts ...Opt) *Delta {
	d, err := New(payload, by, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Change returns the base64url text of the change.
func (d *Delta) Change() string { return d.change }

// ChangeBytes returns the JSON bytes of the change.
func (d *Delta) ChangeBytes() []byte { return slices.Clone(d.data) }

// ChangeValue decodes the change as a document value.
func (d *Delta) ChangeValue() (*document.Value, error) {
	return document.Parse(d.data)
}

// By returns the endorsers.
func (d *Delta) By() []string { return slices.Clone(d.by) }

// When returns the time of the change in UTC.
func (d *Delta) When() time.Time { return d.when }

func (d *Delta) digest() {
	d.once.Do(func() {
		d.hash = hash.Sum(d.data)
		mh, err := multihash.Encode(d.hash[:], multihash.SHA2_256)
		if err != nil {
			// sha2-256 digests always fit their multihash code.
			panic(err)
		}
		d.id = base58.Encode(mh)
	})
}

// Hash returns the sha256 digest of the change bytes.
func (d *Delta) Hash() [hash.Size]byte {
	d.digest()
	return d.hash
}

// ID returns the encnumbasis: base58 of the sha2-256 multihash of the change.
func (d *Delta) ID() string {
	d.digest()
	return d.id
}

// DID returns the DID a log would get if d were its genesis.
func (d *Delta) DID() did.DID {
	return did.MustParse(did.Prefix + d.ID())
}

// Equal compares deltas by hash.
func (d *Delta) Equal(other *Delta) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Hash() == other.Hash()
}

// WithBy returns a copy of d carrying a different endorser list.
func (d *Delta) WithBy(by []string) *Delta {
	return &Delta{change: d.change, data: d.data, by: slices.Clone(by), when: d.when}
}

// FormatTime renders t the way `when` is written on the wire.
func FormatTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format(TimeLayout)
}

// ParseTime accepts wire times with or without fractional seconds, and
// RFC 3339 times with a zone.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

type wire struct {
	Change string   `json:"change"`
	By     []string `json:"by"`
	When   string   `json:"when"`
}

// MarshalJSON writes the wire form.
func (d *Delta) MarshalJSON() ([]byte, error) {
	by := d.by
	if by == nil {
		by = []string{}
	}
	return json.Marshal(wire{Change: d.change, By: by, When: FormatTime(d.when)})
}

// UnmarshalJSON reads the wire form, validating the change.
func (d *Delta) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode delta: %w", err)
	}
	if w.When == "" {
		return errors.New("decode delta: missing when")
	}
	when, err := ParseTime(w.When)
	if err != nil {
		return fmt.Errorf("decode delta: %w", err)
	}
	parsed, err := New(Base64Text(w.Change), w.By, WithWhen(when))
	if err != nil {
		return err
	}
	d.change, d.data, d.by, d.when = parsed.change, parsed.data, parsed.by, parsed.when
	d.once = sync.Once{}
	return nil
}

// Parse decodes one delta in wire form.
func Parse(data []byte) (*Delta, error) {
	d := &Delta{}
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return d, nil
}
