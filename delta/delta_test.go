package delta

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-peerdid/document"
)

const keyOne = `{"publicKeys": {"key-1": "foo"}}`

var fixedTime = time.Date(2019, 7, 4, 12, 0, 0, 0, time.UTC)

func TestIdentifier(t *testing.T) {
	d, err := New(JSONText(keyOne), nil)
	require.NoError(t, err)
	require.Equal(t, "eyJwdWJsaWNLZXlzIjogeyJrZXktMSI6ICJmb28ifX0=", d.Change())
	require.Equal(t, "Qmb6WrwDimrMTNJFZcBe86A96gF9D5APikmeeyhg4jwQuT", d.ID())
	require.Equal(t, "did:peer:1zQmb6WrwDimrMTNJFZcBe86A96gF9D5APikmeeyhg4jwQuT", d.DID().String())

	other := MustNew(JSONText(`{"publicKeys": {"key-2": "foo"}}`), nil)
	require.Equal(t, "did:peer:1zQmXT4fGHZMnLfWyXnzMZR9qjpdNkq1w3EbvV95Z5aUsrme", other.DID().String())
	require.False(t, d.Equal(other))
}

func TestHashIgnoresByAndWhen(t *testing.T) {
	a := MustNew(JSONText(keyOne), []string{"A.1"}, WithWhen(fixedTime))
	b := MustNew(JSONText(keyOne), []string{"B.1", "B.2"}, WithWhen(fixedTime.Add(time.Hour)))
	require.Equal(t, a.Hash(), b.Hash())
	require.Equal(t, a.ID(), b.ID())
	require.True(t, a.Equal(b))
	require.True(t, a.Equal(a.WithBy(nil)))
}

func TestPayloadVariants(t *testing.T) {
	fromText := MustNew(JSONText(keyOne), nil)
	fromBytes := MustNew(JSONBytes([]byte(keyOne)), nil)
	fromBase64 := MustNew(Base64Text(fromText.Change()), nil)
	fromRaw := MustNew(Base64Text(strings.TrimRight(fromText.Change(), "=")), nil)
	fromAuto := MustNew(Text(fromText.Change()), nil)
	fromAutoJSON := MustNew(Text("  "+keyOne), nil)
	for _, d := range []*Delta{fromBytes, fromBase64, fromRaw, fromAuto} {
		require.True(t, fromText.Equal(d))
		require.Equal(t, fromText.Change(), d.Change())
	}
	require.Equal(t, []byte("  "+keyOne), fromAutoJSON.ChangeBytes())

	obj := MustNew(Object(map[string]any{"b": 1, "a": []string{"x"}}), nil)
	require.Equal(t, "{\n  \"a\": [\n    \"x\"\n  ],\n  \"b\": 1\n}", string(obj.ChangeBytes()))

	v, err := document.Parse([]byte(`{"b":1,"a":["x"]}`))
	require.NoError(t, err)
	val := MustNew(Value(v), nil)
	require.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    \"x\"\n  ]\n}", string(val.ChangeBytes()))
	parsed, err := val.ChangeValue()
	require.NoError(t, err)
	require.True(t, document.Equal(v, parsed))
}

func TestInvalidPayload(t *testing.T) {
	for _, p := range []Payload{
		JSONText("{not json"),
		JSONBytes(nil),
		Base64Text("!!!"),
		Base64Text("aGVsbG8="), // "hello"
		Text("hello world"),
		Object(nil),
		Value(nil),
		{},
	} {
		_, err := New(p, nil)
		require.ErrorIs(t, err, ErrInvalidPayload)
	}
}

func TestWhenDefaultsToClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(fixedTime.In(time.FixedZone("X", 3600)))
	d := MustNew(JSONText(keyOne), nil, WithClock(clock))
	require.Equal(t, fixedTime, d.When())
	require.Equal(t, time.UTC, d.When().Location())
}

func TestTimeFormat(t *testing.T) {
	require.Equal(t, "2019-07-04T12:00:00", FormatTime(fixedTime))
	withMicros := fixedTime.Add(1500 * time.Microsecond)
	require.Equal(t, "2019-07-04T12:00:00.001500", FormatTime(withMicros))

	for _, s := range []string{"2019-07-04T12:00:00.001500", "2019-07-04T13:00:00.0015+01:00"} {
		got, err := ParseTime(s)
		require.NoError(t, err)
		require.Equal(t, withMicros, got)
	}
	_, err := ParseTime("yesterday")
	require.Error(t, err)
}

func TestWireForm(t *testing.T) {
	d := MustNew(JSONText(keyOne), []string{"A.1"}, WithWhen(fixedTime))
	data, err := json.Marshal(d)
	require.NoError(t, err)
	require.JSONEq(t, `{"change":"eyJwdWJsaWNLZXlzIjogeyJrZXktMSI6ICJmb28ifX0=","by":["A.1"],"when":"2019-07-04T12:00:00"}`,
		string(data))

	got, err := Parse(data)
	require.NoError(t, err)
	require.True(t, d.Equal(got))
	require.Equal(t, d.By(), got.By())
	require.Equal(t, d.When(), got.When())

	empty, err := json.Marshal(MustNew(JSONText(keyOne), nil, WithWhen(fixedTime)))
	require.NoError(t, err)
	require.Contains(t, string(empty), `"by":[]`)

	_, err = Parse([]byte(`{"change":"aGVsbG8=","by":[],"when":"2019-07-04T12:00:00"}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
	_, err = Parse([]byte(`{"change":"e30=","by":[]}`))
	require.Error(t, err)
}

func TestByIsCopied(t *testing.T) {
	by := []string{"A.1"}
	d := MustNew(JSONText(keyOne), by)
	by[0] = "B.1"
	require.Equal(t, []string{"A.1"}, d.By())
	d.By()[0] = "C.1"
	require.Equal(t, []string{"A.1"}, d.By())
}

func TestLog(t *testing.T) {
	l := NewLog()
	require.True(t, l.Empty())
	require.Nil(t, l.Genesis())
	_, ok := l.DID()
	require.False(t, ok)

	genesis := MustNew(JSONText(keyOne), nil, WithWhen(fixedTime))
	require.True(t, l.Append(genesis))
	// A duplicate change is discarded whatever its endorsers.
	require.False(t, l.Append(genesis.WithBy([]string{"A.2"})))

	next := MustNew(JSONText(`{"rules":[{"grant":["register"]}]}`), nil, WithWhen(fixedTime.Add(time.Minute)))
	require.True(t, l.Append(next))
	require.Equal(t, 2, l.Len())
	require.True(t, l.Contains(next))

	id, ok := l.DID()
	require.True(t, ok)
	require.Equal(t, genesis.DID(), id)
	require.Equal(t, genesis.ID(), l.ID())
	require.Same(t, genesis, l.Genesis())

	deltas := l.Deltas()
	deltas[0] = next
	require.Same(t, genesis, l.Genesis())
}

func TestFingerprint(t *testing.T) {
	l := NewLog(MustNew(JSONText(keyOne), nil, WithWhen(fixedTime)))
	fp := l.Fingerprint()
	require.Equal(t, "4GKyAZVLGaSvb81v6RA3acWRzhV5vhzhHNzBCyri2Ek=", fp)

	replica := NewLog(MustNew(JSONText(keyOne), []string{"B.1", "B.2"}, WithWhen(fixedTime.Add(time.Hour))))
	require.Equal(t, fp, replica.Fingerprint())

	l.Append(MustNew(JSONText(`{"deleted": "key-1"}`), nil, WithWhen(fixedTime)))
	require.Equal(t, "TJPl96x_Pqh0ioVOEAHUp5cKJncV8Olrz9JikP2kZt8=", l.Fingerprint())
}

func TestLines(t *testing.T) {
	l := NewLog(
		MustNew(JSONText(keyOne), []string{"A.1"}, WithWhen(fixedTime)),
		MustNew(JSONText(`{"deleted":"key-1"}`), nil, WithWhen(fixedTime.Add(time.Second))),
	)
	var buf bytes.Buffer
	require.NoError(t, l.MarshalLines(&buf))
	require.Equal(t, 2, strings.Count(buf.String(), "\n"))

	got, err := ParseLines(strings.NewReader(buf.String() + "\n\n"))
	require.NoError(t, err)
	require.Equal(t, l.Len(), got.Len())
	require.Equal(t, l.Fingerprint(), got.Fingerprint())

	_, err = ParseLines(strings.NewReader("{\"change\":\"e30=\",\"by\":[],\"when\":\"2019-07-04T12:00:00\"}\nnot json\n"))
	require.ErrorContains(t, err, "line 2")
}
