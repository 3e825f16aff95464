package document

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	for _, tc := range []struct {
		desc string
		a, b string
		path string
	}{
		{
			desc: "same",
			a:    `{"a":1,"b":"x"}`,
			b:    `{"b":"x","a":1}`,
		},
		{
			desc: "missing key",
			a:    `{"@context":"c"}`,
			b:    `{"@context":"c","id":"did"}`,
			path: ".{id}",
		},
		{
			desc: "key sets sorted",
			a:    `{"b":1,"x":1}`,
			b:    `{"a":1,"x":1}`,
			path: ".{a,b}",
		},
		{
			desc: "scalar",
			a:    `{"x":1}`,
			b:    `{"x":2}`,
			path: ".x",
		},
		{
			desc: "numbers compare numerically",
			a:    `{"x":1}`,
			b:    `{"x":1.0}`,
		},
		{
			desc: "kind mismatch",
			a:    `{"x":"1"}`,
			b:    `{"x":1}`,
			path: ".x",
		},
		{
			desc: "nested object",
			a:    `{"authorization":{"profiles":[],"n":1}}`,
			b:    `{"authorization":{"profiles":[],"n":2}}`,
			path: ".authorization.n",
		},
		{
			desc: "nested key set",
			a:    `{"o":{"a":1}}`,
			b:    `{"o":{"b":1}}`,
			path: ".o.{a,b}",
		},
		{
			desc: "first divergence in document order",
			a:    `{"a":{"x":1},"b":2}`,
			b:    `{"a":{"x":2},"b":3}`,
			path: ".a.x",
		},
		{
			desc: "object set reordered",
			a:    `{"publicKey":[{"id":"key-1"},{"id":"key-2"}]}`,
			b:    `{"publicKey":[{"id":"key-2"},{"id":"key-1"}]}`,
		},
		{
			desc: "extra object in second",
			a:    `{"publicKey":[{"id":"key-1"},{"id":"key-2"}]}`,
			b:    `{"publicKey":[{"id":"key-2"},{"id":"key-3"},{"id":"key-1"}]}`,
			path: ".publicKey",
		},
		{
			desc: "extra object in first",
			a:    `{"publicKey":[{"id":"key-1"},{"id":"key-2"},{"id":"key-3"}]}`,
			b:    `{"publicKey":[{"id":"key-2"},{"id":"key-1"}]}`,
			path: ".publicKey[2]",
		},
		{
			desc: "duplicate objects are one set member",
			a:    `{"publicKey":[{"id":"key-1"}]}`,
			b:    `{"publicKey":[{"id":"key-1"},{"id":"key-1"}]}`,
		},
		{
			desc: "objects compared set-wise inside sets",
			a:    `{"s":[{"refs":["a","b"]}]}`,
			b:    `{"s":[{"refs":["b","a"]}]}`,
		},
		{
			desc: "scalar set reordered",
			a:    `{"authentication":["#key-1","#key-3"]}`,
			b:    `{"authentication":["#key-3","#key-1"]}`,
		},
		{
			desc: "scalar set differs",
			a:    `{"authentication":["#key-1","#key-3"]}`,
			b:    `{"authentication":["#key-1"]}`,
			path: ".authentication",
		},
		{
			desc: "empty sets",
			a:    `{"service":[]}`,
			b:    `{"service":[]}`,
		},
		{
			desc: "one empty set",
			a:    `{"service":[]}`,
			b:    `{"service":[{"type":"x"}]}`,
			path: ".service",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			div, err := DiffJSON([]byte(tc.a), []byte(tc.b))
			require.NoError(t, err)
			if tc.path == "" {
				require.Nil(t, div, div.String())
				return
			}
			require.NotNil(t, div)
			require.Equal(t, tc.path, div.Path)
		})
	}
}

func TestDiffErrors(t *testing.T) {
	_, err := DiffJSON([]byte(`{"x":[[1]]}`), []byte(`{"x":[[1]]}`))
	require.ErrorIs(t, err, ErrNestedArrays)

	_, err = DiffJSON([]byte(`[1]`), []byte(`{}`))
	require.ErrorIs(t, err, ErrNotObject)

	_, err = DiffJSON([]byte(`{}`), []byte(`invalid DID doc`))
	require.ErrorIs(t, err, ErrSyntax)
}

func TestDiffCannedTemplates(t *testing.T) {
	one, ok := Predefined('1')
	require.True(t, ok)
	two, ok := Predefined('2')
	require.True(t, ok)

	div, err := DiffJSON(one, one)
	require.NoError(t, err)
	require.Nil(t, div)

	div, err = DiffJSON(one, two)
	require.NoError(t, err)
	require.Equal(t, ".id", div.Path)
}

type fuzzedKey struct {
	ID         string
	Type       string
	Controller string
	Usage      uint8
}

func keyDescriptor(k fuzzedKey) *Value {
	v := NewObject()
	v.Set("id", NewString(k.ID))
	v.Set("type", NewString(k.Type))
	v.Set("controller", NewString(k.Controller))
	v.Set("usage", NewNumber(json.Number(strconv.Itoa(int(k.Usage)))))
	return v
}

func TestDiffSetInsensitivity(t *testing.T) {
	f := fuzz.NewWithSeed(1001).NilChance(0).NumElements(1, 8)
	rng := rand.New(rand.NewSource(1001))
	for i := 0; i < 200; i++ {
		var keys []fuzzedKey
		f.Fuzz(&keys)

		first := NewArray()
		for _, k := range keys {
			first.Append(keyDescriptor(k))
		}
		second := first.Clone()
		rng.Shuffle(len(second.items), func(i, j int) {
			second.items[i], second.items[j] = second.items[j], second.items[i]
		})

		a, b := NewObject(), NewObject()
		a.Set("@context", NewString("https://w3id.org/did/v1"))
		a.Set("publicKey", first)
		b.Set("@context", NewString("https://w3id.org/did/v1"))
		b.Set("publicKey", second)

		div, err := Diff(a, b)
		require.NoError(t, err)
		require.Nil(t, div, "iteration %d: %s", i, div)

		extra := NewObject()
		extra.Set("id", NewString("extra"))
		extra.Set("extra", NewBool(true))
		second.Append(extra)
		div, err = Diff(a, b)
		require.NoError(t, err)
		require.NotNil(t, div)
		require.Equal(t, ".publicKey", div.Path)
	}
}
