package syncsim

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrRecord is returned for text that is not a change record.
var ErrRecord = errors.New("syncsim: malformed record")

var endorsedRecord = regexp.MustCompile(`^(.+?) by (?:\{([^}]*)\}/)?([1-9])@([a-z])$`)

// Endorsement is the m-of-n policy attached to a record together with the
// agents that have endorsed it so far.
type Endorsement struct {
	By    []string
	N     int
	Group byte
}

// Satisfied reports whether the record collected enough endorsements.
func (e *Endorsement) Satisfied() bool {
	return e != nil && len(e.By) >= e.N
}

// Record is one change an agent knows about, identified by Key.
type Record struct {
	Key         string
	Endorsement *Endorsement
}

// ParseRecord parses `<key>`, `<key> by <n>@<g>` or
// `<key> by {<id>,...}/<n>@<g>`.
func ParseRecord(s string) (Record, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Record{}, fmt.Errorf("%w: empty", ErrRecord)
	}
	m := endorsedRecord.FindStringSubmatch(s)
	if m == nil {
		if strings.ContainsAny(s, "{}") {
			return Record{}, fmt.Errorf("%w: %q", ErrRecord, s)
		}
		return Record{Key: s}, nil
	}
	n, _ := strconv.Atoi(m[3])
	e := &Endorsement{N: n, Group: m[4][0]}
	for _, id := range strings.Split(m[2], ",") {
		if id = strings.TrimSpace(id); id != "" {
			e.By = append(e.By, id)
		}
	}
	e.By = normalize(e.By)
	return Record{Key: m[1], Endorsement: e}, nil
}

// MustParseRecord is ParseRecord for literals.
func MustParseRecord(s string) Record {
	r, err := ParseRecord(s)
	if err != nil {
		panic(err)
	}
	return r
}

func normalize(ids []string) []string {
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (r Record) String() string {
	if r.Endorsement == nil {
		return r.Key
	}
	return fmt.Sprintf("%s by {%s}/%d@%c",
		r.Key, strings.Join(r.Endorsement.By, ","), r.Endorsement.N, r.Endorsement.Group)
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	if r.Endorsement == nil {
		return r
	}
	e := *r.Endorsement
	e.By = slices.Clone(e.By)
	r.Endorsement = &e
	return r
}

// Equal compares keys, policies and endorser sets.
func (r Record) Equal(other Record) bool {
	return r.String() == other.String()
}

// join unions the endorsers of two versions of the same record. The policy of
// r wins when both carry one.
func (r Record) join(other Record) Record {
	out := r.Clone()
	switch {
	case other.Endorsement == nil:
	case out.Endorsement == nil:
		out.Endorsement = other.Clone().Endorsement
	default:
		out.Endorsement.By = normalize(append(out.Endorsement.By, other.Endorsement.By...))
	}
	return out
}

// Eligibility describes the agent a record is merged into.
type Eligibility struct {
	ID     string
	Groups string
	// OwnParty is set when the records being merged belong to the agent's party.
	OwnParty bool
}

func (e Eligibility) mayEndorse(r Record) bool {
	en := r.Endorsement
	if en == nil || !e.OwnParty || e.ID == "" {
		return false
	}
	if en.Satisfied() || strings.IndexByte(e.Groups, en.Group) < 0 {
		return false
	}
	if _, found := slices.BinarySearch(en.By, e.ID); found {
		return false
	}
	return !strings.HasPrefix(r.Key, addPrefix+e.ID)
}

// Merge folds in into known, the record set of one party. A record with a key
// already present has its endorsers unioned with the known version, and the
// merging agent adds itself when it is eligible and the record still lacks
// endorsements. The returned set is sorted and holds one record per key.
// changed is false when known already covered in.
func Merge(known []Record, in Record, self Eligibility) (merged []Record, result Record, changed bool) {
	idx := slices.IndexFunc(known, func(r Record) bool { return r.Key == in.Key })
	if idx >= 0 && known[idx].Equal(in) {
		return known, known[idx], false
	}
	result = in.Clone()
	if result.Endorsement != nil {
		result.Endorsement.By = normalize(result.Endorsement.By)
	}
	if idx >= 0 {
		result = known[idx].join(result)
	}
	if self.mayEndorse(result) {
		result.Endorsement.By = normalize(append(result.Endorsement.By, self.ID))
	}
	merged = slices.Clone(known)
	if idx >= 0 {
		if merged[idx].Equal(result) {
			return known, known[idx], false
		}
		merged[idx] = result
	} else {
		merged = append(merged, result)
	}
	sortRecords(merged)
	return merged, result, true
}

func sortRecords(rs []Record) {
	slices.SortFunc(rs, func(a, b Record) int {
		return strings.Compare(a.String(), b.String())
	})
}

// Lacks returns the records of theirs that mine does not hold verbatim.
func Lacks(mine, theirs []Record) []Record {
	have := make(map[string]struct{}, len(mine))
	for _, r := range mine {
		have[r.String()] = struct{}{}
	}
	var out []Record
	for _, r := range theirs {
		if _, ok := have[r.String()]; !ok {
			out = append(out, r)
		}
	}
	return out
}
