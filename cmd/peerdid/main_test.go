package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(tb testing.TB, stdin string, args ...string) (string, error) {
	tb.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRepositoryCommands(t *testing.T) {
	for _, backend := range []string{"files", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			data := filepath.Join(t.TempDir(), "dids")
			flags := []string{"-d", data, "--backend", backend, "--log-level", "error"}

			out, err := run(t, `{"publicKeys": {"key-1": "foo"}}`, append([]string{"new", "--by", "A.1"}, flags...)...)
			require.NoError(t, err)
			const id = "did:peer:1zQmb6WrwDimrMTNJFZcBe86A96gF9D5APikmeeyhg4jwQuT"
			require.Equal(t, id+"\n", out)

			out, err = run(t, `{"deleted": "key-1"}`, append([]string{"append", id}, flags...)...)
			require.NoError(t, err)
			require.NotEmpty(t, strings.TrimSpace(out))

			out, err = run(t, "", append([]string{"resolve", id}, flags...)...)
			require.NoError(t, err)
			require.Contains(t, out, `"id": "`+id+`"`)

			out, err = run(t, "", append([]string{"state", id}, flags...)...)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(out, id+" "), out)

			out, err = run(t, "", append([]string{"list"}, flags...)...)
			require.NoError(t, err)
			require.Equal(t, id+"\n", out)

			_, err = run(t, "", append([]string{"resolve", "did:peer:1zQmXT4fGHZMnLfWyXnzMZR9qjpdNkq1w3EbvV95Z5aUsrme"}, flags...)...)
			require.ErrorContains(t, err, "not found")
		})
	}
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"publicKey": [{"id": "1"}, {"id": "2"}]}`)
	b := writeFile(t, dir, "b.json", `{"publicKey": [{"id": "2"}, {"id": "1"}]}`)
	c := writeFile(t, dir, "c.json", `{"publicKey": [{"id": "2"}]}`)

	out, err := run(t, "", "diff", a, b)
	require.NoError(t, err)
	require.Equal(t, "equal\n", out)

	_, err = run(t, "", "diff", a, c)
	require.ErrorContains(t, err, "documents differ at")
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, `{"@context": "https://w3id.org/did/v1", "publicKey": []}`, "validate")
	require.NoError(t, err)
	require.Equal(t, "valid\n", out)

	_, err = run(t, `{"publicKey": []}`, "validate", "-")
	require.Error(t, err)
}

func TestSimCommand(t *testing.T) {
	script := strings.Join([]string{
		"# comments are skipped",
		"help",
		"reach A.1",
		"A.1: simple by 2@a",
		"A.1: fly",
		"settle",
		"autogossip",
		"check",
		"quit",
		"A.2: simple",
	}, "\n")
	out, err := run(t, script,
		"sim", "--jitter=0", "--seed=3", "--autogossip-interval=0", "--log-level=error",
	)
	require.NoError(t, err)
	require.Contains(t, out, "session ")
	require.Contains(t, out, "agent instructions:")
	require.Contains(t, out, "A.1: A.2, B.2\n")
	require.Contains(t, out, "unknown command")
	require.Contains(t, out, "autogossip false\n")
	require.NotContains(t, out, "converged")
	require.Contains(t, out, "A.3,A.4,B.1,B.3,B.4: \n")
}

func TestSimCommand_Script(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "session.txt", "B.1: simple\nB.1: gossip\nsettle\ncheck\n")
	template := writeFile(t, dir, "c.json", `{
  "@context": "https://w3id.org/did/v1",
  "authorization": {"profiles": [{"key": "#x.1", "groups": "a"}]}
}`)
	out, err := run(t, "",
		"sim", script, "--party", "B=", "--party", "C="+template,
		"--connections", "B.1+-+C.1 B.2-+B.1",
		"--jitter=0", "--autogossip-interval=0", "--log-level=error",
	)
	require.NoError(t, err)
	require.Contains(t, out, "B.1,C.1: B=#")
	require.Contains(t, out, "B.2,B.3,B.4: \n")

	_, err = run(t, "", "sim", "--party", "A=", "--jitter=0", "--log-level=error")
	require.ErrorContains(t, err, "at least two parties")
}
