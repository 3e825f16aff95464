package document

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrNestedArrays is returned when an array of arrays has to be compared
// as a set.
var ErrNestedArrays = errors.New("document: arrays of arrays are not comparable")

// Divergence names the first point where two documents differ.
type Divergence struct {
	// Path is a dotted path such as ".publicKey[1]" or ".{id}".
	Path string
}

func (d *Divergence) String() string {
	if d == nil {
		return "<same>"
	}
	return d.Path
}

// Diff compares two documents, treating arrays as unordered sets. A nil
// divergence means both describe the same state.
func Diff(a, b *Value) (*Divergence, error) {
	if a.Kind() != Object || b.Kind() != Object {
		return nil, ErrNotObject
	}
	path, differ, err := compare(a, b, "", 0)
	if err != nil || !differ {
		return nil, err
	}
	return &Divergence{Path: path}, nil
}

// DiffJSON parses both documents and compares them with Diff.
func DiffJSON(a, b []byte) (*Divergence, error) {
	va, err := ParseObject(a)
	if err != nil {
		return nil, fmt.Errorf("first document: %w", err)
	}
	vb, err := ParseObject(b)
	if err != nil {
		return nil, fmt.Errorf("second document: %w", err)
	}
	return Diff(va, vb)
}

// Equal reports whether two values are the same under set semantics.
// Values that cannot be compared are reported unequal.
func Equal(a, b *Value) bool {
	_, differ, err := compare(a, b, "", 0)
	return err == nil && !differ
}

type diffFrame struct {
	a, b  *Value
	path  string
	depth int
	next  int
}

// compare walks objects depth first on an explicit stack so that the first
// divergence in document order of a is the one reported. Array elements are
// matched through compare itself, one level deeper.
func compare(a, b *Value, path string, depth int) (string, bool, error) {
	if depth > MaxDepth {
		return "", false, ErrTooDeep
	}
	if a.Kind() != b.Kind() {
		return path, true, nil
	}
	switch a.Kind() {
	case Array:
		return compareSets(a.items, b.items, path, depth)
	case Object:
	default:
		return path, !scalarEqual(a, b), nil
	}

	if p, ok := keySetDiff(a, b, path); ok {
		return p, true, nil
	}
	stack := []*diffFrame{{a: a, b: b, path: path, depth: depth}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.next >= len(f.a.members) {
			stack = stack[:len(stack)-1]
			continue
		}
		m := f.a.members[f.next]
		f.next++

		sub := f.path + "." + m.Key
		av := m.Value
		bv, _ := f.b.Get(m.Key)
		if av.Kind() != bv.Kind() {
			return sub, true, nil
		}
		switch av.Kind() {
		case Object:
			if f.depth+1 > MaxDepth {
				return "", false, ErrTooDeep
			}
			if p, ok := keySetDiff(av, bv, sub); ok {
				return p, true, nil
			}
			stack = append(stack, &diffFrame{a: av, b: bv, path: sub, depth: f.depth + 1})
		case Array:
			p, differ, err := compareSets(av.items, bv.items, sub, f.depth+1)
			if err != nil || differ {
				return p, differ, err
			}
		default:
			if !scalarEqual(av, bv) {
				return sub, true, nil
			}
		}
	}
	return "", false, nil
}

func keySetDiff(a, b *Value, path string) (string, bool) {
	var missing []string
	for _, m := range a.members {
		if _, ok := b.Get(m.Key); !ok {
			missing = append(missing, m.Key)
		}
	}
	for _, m := range b.members {
		if _, ok := a.Get(m.Key); !ok {
			missing = append(missing, m.Key)
		}
	}
	if len(missing) == 0 {
		return "", false
	}
	slices.Sort(missing)
	return path + ".{" + strings.Join(slices.Compact(missing), ",") + "}", true
}

func compareSets(a, b []*Value, path string, depth int) (string, bool, error) {
	if len(a) == 0 {
		return path, len(b) != 0, nil
	}
	switch a[0].Kind() {
	case Array:
		return "", false, fmt.Errorf("%w: at %s", ErrNestedArrays, path)
	case Object:
		gap, matched, err := matchInto(a, b, depth)
		if err != nil {
			return "", false, err
		}
		if gap >= 0 {
			return path + "[" + strconv.Itoa(gap) + "]", true, nil
		}
		// Every item of a found a partner in b. Items of b left over may still
		// be duplicates of something in a under set semantics.
		var residue []*Value
		for j, item := range b {
			if !matched[j] {
				residue = append(residue, item)
			}
		}
		if len(residue) > 0 {
			gap, _, err := matchInto(residue, a, depth)
			if err != nil {
				return "", false, err
			}
			if gap >= 0 {
				return path, true, nil
			}
		}
		return "", false, nil
	default:
		if !sameScalarSet(a, b) {
			return path, true, nil
		}
		return "", false, nil
	}
}

// matchInto finds an injective matching of every item of from into to.
// It returns the index of the first unmatched item, or -1, and which items
// of to were used.
func matchInto(from, to []*Value, depth int) (int, []bool, error) {
	used := make([]bool, len(to))
	for i, x := range from {
		found := false
		for j, y := range to {
			if used[j] {
				continue
			}
			_, differ, err := compare(x, y, "", depth+1)
			if err != nil {
				return 0, nil, err
			}
			if !differ {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return i, used, nil
		}
	}
	return -1, used, nil
}

func sameScalarSet(a, b []*Value) bool {
	set := func(items []*Value) map[string]struct{} {
		out := make(map[string]struct{}, len(items))
		for _, item := range items {
			out[scalarKey(item)] = struct{}{}
		}
		return out
	}
	sa, sb := set(a), set(b)
	if len(sa) != len(sb) {
		return false
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false
		}
	}
	return true
}

func scalarKey(v *Value) string {
	switch v.Kind() {
	case Number:
		if f, err := strconv.ParseFloat(v.text, 64); err == nil {
			return "n" + strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "n" + v.text
	case String:
		return "s" + v.text
	case Bool:
		return "b" + strconv.FormatBool(v.boolean)
	case Null:
		return "z"
	}
	return "j" + v.String()
}

func scalarEqual(a, b *Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case Null:
		return true
	case Bool:
		return a.boolean == b.boolean
	case Number:
		fa, erra := strconv.ParseFloat(a.text, 64)
		fb, errb := strconv.ParseFloat(b.text, 64)
		if erra == nil && errb == nil {
			return fa == fb
		}
		return a.text == b.text
	}
	return a.text == b.text
}
