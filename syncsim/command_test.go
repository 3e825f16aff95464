package syncsim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInstruction(t *testing.T) {
	for _, tc := range []struct {
		line   string
		target string
		cmd    Command
	}{
		{line: "A.1: simple", target: "A.1", cmd: Simple{}},
		{line: " a.1 :simple by 2@a", target: "A.1", cmd: Simple{Auth: &Auth{N: 2, Group: 'a'}}},
		{line: "B.2: state", target: "B.2", cmd: State{}},
		{line: "B.2: gossip", target: "B.2", cmd: Gossip{}},
		{line: "B.3: res A.did@AB", target: "B.3", cmd: Resolve{Ref: "A.did@AB"}},
		{line: "B.3: resolve a", target: "B.3", cmd: Resolve{Ref: "a"}},
		{
			line:   "A.1: add A.5@ab by 2@a",
			target: "A.1",
			cmd:    Add{Spec: Spec{Party: 'A', Num: '5', Groups: "ab"}, Auth: &Auth{N: 2, Group: 'a'}},
		},
		{
			line:   "A.1: add a.5-A.2,a.3",
			target: "A.1",
			cmd:    Add{Spec: Spec{Party: 'A', Num: '5', Minus: []string{"A.2", "A.3"}}},
		},
		{
			line:   "A.2: rem A.4 by 1@b",
			target: "A.2",
			cmd:    Rem{Spec: Spec{Party: 'A', Num: '4'}, Auth: &Auth{N: 1, Group: 'b'}},
		},
	} {
		t.Run(tc.line, func(t *testing.T) {
			in, err := ParseInstruction(tc.line)
			require.NoError(t, err)
			require.Equal(t, tc.target, in.Target)
			require.Equal(t, tc.cmd, in.Command)

			again, err := ParseInstruction(in.String())
			require.NoError(t, err)
			require.Equal(t, in, again)
		})
	}
}

func TestParseInstruction_Errors(t *testing.T) {
	for _, tc := range []struct {
		line string
		err  error
	}{
		{line: "hello", err: ErrUnknownCommand},
		{line: "A.0: simple", err: ErrUnknownCommand},
		{line: "A.1: jump", err: ErrUnknownCommand},
		{line: "A.1: simple by 0@a", err: ErrUnknownCommand},
		{line: "A.1: add", err: ErrAmbiguousSpec},
		{line: "A.1: add A.x", err: ErrAmbiguousSpec},
		{line: "A.1: rem A.10", err: ErrAmbiguousSpec},
		{line: "A.1: add A.5 by 10@a", err: ErrUnknownCommand},
	} {
		t.Run(tc.line, func(t *testing.T) {
			_, err := ParseInstruction(tc.line)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestSpec(t *testing.T) {
	spec, err := ParseSpec("b.3@ac-B.1")
	require.NoError(t, err)
	require.Equal(t, "B.3", spec.ID())
	require.Equal(t, "B.3@ac-B.1", spec.String())
	require.Equal(t, byte('B'), Resolve{Ref: "b.did@AB"}.Party())
}
