// Package document models resolved DID documents as typed JSON values and
// compares them with set-aware structural equality.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// MaxDepth bounds the nesting of parsed and compared documents.
const MaxDepth = 64

var (
	// ErrSyntax is returned when a document is not valid JSON.
	ErrSyntax = errors.New("document: invalid json")
	// ErrTooDeep is returned when a document nests deeper than MaxDepth.
	ErrTooDeep = errors.New("document: nesting too deep")
	// ErrNotObject is returned where a JSON object is required.
	ErrNotObject = errors.New("document: not an object")
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Member is a key/value pair of an object. Objects keep member order.
type Member struct {
	Key   string
	Value *Value
}

// Value is a JSON value. The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	text    string // string contents or number literal
	items   []*Value
	members []Member
}

// NewNull returns a null value.
func NewNull() *Value { return &Value{} }

// NewBool returns a boolean value.
func NewBool(b bool) *Value { return &Value{kind: Bool, boolean: b} }

// NewNumber returns a number value keeping the literal n.
func NewNumber(n json.Number) *Value { return &Value{kind: Number, text: string(n)} }

// NewString returns a string value.
func NewString(s string) *Value { return &Value{kind: String, text: s} }

// NewArray returns an array of items.
func NewArray(items ...*Value) *Value {
	return &Value{kind: Array, items: append([]*Value{}, items...)}
}

// NewObject returns an empty object.
func NewObject() *Value { return &Value{kind: Object} }

// Kind returns the type tag. A nil Value is null.
func (v *Value) Kind() Kind {
	if v == nil {
		return Null
	}
	return v.kind
}

// Bool returns the boolean payload.
func (v *Value) Bool() bool { return v != nil && v.boolean }

// Str returns the string payload, or the literal of a number.
func (v *Value) Str() string {
	if v == nil {
		return ""
	}
	return v.text
}

// Number returns the number literal.
func (v *Value) Number() json.Number {
	if v.Kind() != Number {
		return ""
	}
	return json.Number(v.text)
}

// Len returns the number of array items or object members.
func (v *Value) Len() int {
	switch v.Kind() {
	case Array:
		return len(v.items)
	case Object:
		return len(v.members)
	}
	return 0
}

// Index returns the i-th array item.
func (v *Value) Index(i int) *Value {
	if v.Kind() != Array || i < 0 || i >= len(v.items) {
		return nil
	}
	return v.items[i]
}

// Items returns a copy of the array items.
func (v *Value) Items() []*Value {
	if v.Kind() != Array {
		return nil
	}
	return append([]*Value{}, v.items...)
}

// Members returns a copy of the object members in order.
func (v *Value) Members() []Member {
	if v.Kind() != Object {
		return nil
	}
	return append([]Member{}, v.members...)
}

// Keys returns object keys in member order.
func (v *Value) Keys() []string {
	if v.Kind() != Object {
		return nil
	}
	keys := make([]string, 0, len(v.members))
	for _, m := range v.members {
		keys = append(keys, m.Key)
	}
	return keys
}

// Get returns the member named key.
func (v *Value) Get(key string) (*Value, bool) {
	if v.Kind() != Object {
		return nil, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Set replaces the member named key, or appends it if absent.
func (v *Value) Set(key string, val *Value) {
	if v.kind != Object {
		panic("document: Set on " + v.kind.String())
	}
	for i := range v.members {
		if v.members[i].Key == key {
			v.members[i].Value = val
			return
		}
	}
	v.members = append(v.members, Member{Key: key, Value: val})
}

// Delete removes the member named key.
func (v *Value) Delete(key string) bool {
	if v.Kind() != Object {
		return false
	}
	for i := range v.members {
		if v.members[i].Key == key {
			v.members = append(v.members[:i], v.members[i+1:]...)
			return true
		}
	}
	return false
}

// Append adds items to an array.
func (v *Value) Append(items ...*Value) {
	if v.kind != Array {
		panic("document: Append on " + v.kind.String())
	}
	v.items = append(v.items, items...)
}

// Filter keeps the array items for which keep returns true and reports
// how many were dropped.
func (v *Value) Filter(keep func(*Value) bool) int {
	if v.Kind() != Array {
		return 0
	}
	kept := v.items[:0]
	for _, item := range v.items {
		if keep(item) {
			kept = append(kept, item)
		}
	}
	dropped := len(v.items) - len(kept)
	clear(v.items[len(kept):])
	v.items = kept
	return dropped
}

// Clone returns a deep copy.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	c := &Value{kind: v.kind, boolean: v.boolean, text: v.text}
	if v.items != nil {
		c.items = make([]*Value, len(v.items))
		for i, item := range v.items {
			c.items[i] = item.Clone()
		}
	}
	if v.members != nil {
		c.members = make([]Member, len(v.members))
		for i, m := range v.members {
			c.members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
	}
	return c
}

// Interface converts the value into the shapes produced by encoding/json
// with UseNumber: map[string]any, []any, json.Number, string, bool, nil.
func (v *Value) Interface() any {
	switch v.Kind() {
	case Bool:
		return v.boolean
	case Number:
		return json.Number(v.text)
	case String:
		return v.text
	case Array:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.members))
		for _, m := range v.members {
			out[m.Key] = m.Value.Interface()
		}
		return out
	}
	return nil
}

// FromInterface converts a decoded JSON shape into a Value. Map keys come
// out sorted.
func FromInterface(x any) (*Value, error) {
	data, err := json.Marshal(x)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	return Parse(data)
}

// MarshalJSON renders the value compactly, keeping member order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON parses data into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

// MarshalIndent renders the value with two-space indentation.
func MarshalIndent(v *Value) ([]byte, error) {
	compact, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}

func (v *Value) encode(buf *bytes.Buffer, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	switch v.Kind() {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.boolean))
	case Number:
		buf.WriteString(v.text)
	case String:
		writeString(buf, v.text)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, m.Key)
			buf.WriteByte(':')
			if err := m.Value.encode(buf, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encoding a string never fails.
	_ = enc.Encode(s)
	// Encode terminates values with a newline.
	buf.Truncate(buf.Len() - 1)
}
