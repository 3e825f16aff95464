package delta

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spacemeshos/go-peerdid/document"
)

// ErrInvalidPayload is returned for change payloads that are neither JSON
// nor base64 encoded JSON.
var ErrInvalidPayload = errors.New("delta: invalid payload")

type payloadKind uint8

const (
	kindJSON payloadKind = iota + 1
	kindBase64
	kindObject
	kindValue
)

// Payload is one of the accepted forms of a change. Construct it with
// JSONText, JSONBytes, Base64Text, Object, Value or Text.
type Payload struct {
	kind  payloadKind
	data  []byte
	text  string
	obj   map[string]any
	value *document.Value
}

// JSONText is a change given as JSON text.
func JSONText(s string) Payload { return Payload{kind: kindJSON, data: []byte(s)} }

// JSONBytes is a change given as raw JSON bytes.
func JSONBytes(b []byte) Payload { return Payload{kind: kindJSON, data: bytes.Clone(b)} }

// Base64Text is a change that is already base64url encoded JSON.
func Base64Text(s string) Payload { return Payload{kind: kindBase64, text: s} }

// Object is a change given as a decoded JSON object. It is encoded with
// sorted keys and two-space indentation.
func Object(m map[string]any) Payload { return Payload{kind: kindObject, obj: m} }

// Value is a change given as a document value.
func Value(v *document.Value) Payload { return Payload{kind: kindValue, value: v} }

// Text picks JSONText for input that looks like JSON and Base64Text
// otherwise. It is meant for text coming from files and command lines.
func Text(s string) Payload {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return JSONText(s)
	}
	return Base64Text(s)
}

// Bytes returns the JSON bytes of the change.
func (p Payload) Bytes() ([]byte, error) {
	switch p.kind {
	case kindJSON:
		if !json.Valid(p.data) {
			return nil, fmt.Errorf("%w: not valid json", ErrInvalidPayload)
		}
		return p.data, nil
	case kindBase64:
		raw, err := decodeBase64(p.text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: base64 text does not encode json", ErrInvalidPayload)
		}
		return raw, nil
	case kindObject:
		if p.obj == nil {
			return nil, fmt.Errorf("%w: nil object", ErrInvalidPayload)
		}
		data, err := json.MarshalIndent(p.obj, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return data, nil
	case kindValue:
		if p.value == nil {
			return nil, fmt.Errorf("%w: nil value", ErrInvalidPayload)
		}
		data, err := document.MarshalIndent(p.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty base64 text")
	}
	if raw, err := base64.URLEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
