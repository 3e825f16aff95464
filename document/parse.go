package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type parseFrame struct {
	container *Value
	key       string
	hasKey    bool
}

// Parse decodes a single JSON value. Nesting is tracked on an explicit
// stack and bounded by MaxDepth.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var (
		root  *Value
		stack []*parseFrame
	)
	attach := func(v *Value) error {
		if len(stack) == 0 {
			if root != nil {
				return fmt.Errorf("%w: trailing data after top-level value", ErrSyntax)
			}
			root = v
			return nil
		}
		top := stack[len(stack)-1]
		if top.container.kind == Array {
			top.container.items = append(top.container.items, v)
			return nil
		}
		top.container.Set(top.key, v)
		top.hasKey = false
		return nil
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
		}
		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				if len(stack) >= MaxDepth {
					return nil, ErrTooDeep
				}
				c := NewObject()
				if t == '[' {
					c = &Value{kind: Array, items: []*Value{}}
				}
				if err := attach(c); err != nil {
					return nil, err
				}
				stack = append(stack, &parseFrame{container: c})
			default:
				stack = stack[:len(stack)-1]
			}
			continue
		case string:
			if n := len(stack); n > 0 && stack[n-1].container.kind == Object && !stack[n-1].hasKey {
				stack[n-1].key = t
				stack[n-1].hasKey = true
				continue
			}
			err = attach(NewString(t))
		case json.Number:
			err = attach(NewNumber(t))
		case bool:
			err = attach(NewBool(t))
		case nil:
			err = attach(NewNull())
		}
		if err != nil {
			return nil, err
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: empty input", ErrSyntax)
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, io.ErrUnexpectedEOF)
	}
	return root, nil
}

// ParseObject is Parse restricted to JSON objects.
func ParseObject(data []byte) (*Value, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if v.Kind() != Object {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, v.Kind())
	}
	return v, nil
}
