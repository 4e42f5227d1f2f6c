package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetManifest = `name: greet
params:
  - name: name
  - name: age
    default: 40
  - name: tags
    kind: keyword_only
    default: []
template: |
  Hello, I am {{ name }} and I am {{ age }} years old.
  {{#each tags}}#{{ this }} {{/each}}
`

func writeManifest(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRender(t *testing.T) {
	path := writeManifest(t, "greet.yaml", greetManifest)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "positional",
			args: []string{"render", path, "John"},
			want: "Hello, I am John and I am 40 years old.\n\n",
		},
		{
			name: "typed keyword",
			args: []string{"render", path, "--set", "name=Ana", "--set", "age=31", "--set", "tags=[a, b]"},
			want: "Hello, I am Ana and I am 31 years old.\n#a #b \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderErrors(t *testing.T) {
	path := writeManifest(t, "greet.yaml", greetManifest)

	_, err := execute(t, "", "render", path)
	assert.ErrorContains(t, err, "missing a required argument: 'name'")

	_, err = execute(t, "", "render", path, "John", "--set", "broken")
	assert.ErrorContains(t, err, "expected key=value")

	_, err = execute(t, "", "render", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	good := writeManifest(t, "greet.yaml", greetManifest)
	bad := writeManifest(t, "bad.yaml", "name: bad\ntemplate: \"{{#if x}}\"\n")

	out, err := execute(t, "", "check", good)
	require.NoError(t, err)
	assert.Equal(t, "ok   greet(name, age=40, tags=[])\n", out)

	out, err = execute(t, "", "check", good, bad)
	assert.ErrorContains(t, err, "1 of 2 manifests failed")
	assert.Contains(t, out, "FAIL "+bad)
}

func TestClean(t *testing.T) {
	out, err := execute(t, "\n    Hello   world\n      indented\n", "clean", "-")
	require.NoError(t, err)
	assert.Equal(t, "Hello world\n  indented", out)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, "John", parseValue("John"))
	assert.Equal(t, 40, parseValue("40"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, []interface{}{"a", "b"}, parseValue("[a, b]"))
	assert.Equal(t, "", parseValue(""))
	assert.Nil(t, parseValue("null"))
	assert.Equal(t, "{{ x", parseValue("{{ x"))
}

func TestStoreCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	greet := writeManifest(t, "greet.yaml", greetManifest)
	bye := writeManifest(t, "bye.yaml", "name: bye\nparams:\n  - name: who\ntemplate: Bye {{ who }}\n")
	bad := writeManifest(t, "bad.yaml", "name: bad\ntemplate: \"{{#if x}}\"\n")
	store := []string{"--redis-addr", mr.Addr(), "--prefix", "test:"}

	out, err := execute(t, "", append([]string{"push", greet, bye, "--ttl", "1h"}, store...)...)
	require.NoError(t, err)
	assert.Equal(t, "created greet\ncreated bye\n", out)
	assert.True(t, mr.Exists("test:greet"))
	assert.Equal(t, time.Hour, mr.TTL("test:bye"))

	out, err = execute(t, "", append([]string{"push", greet}, store...)...)
	require.NoError(t, err)
	assert.Equal(t, "updated greet\n", out)
	assert.Zero(t, mr.TTL("test:greet"))

	// a manifest that does not compile is never saved
	_, err = execute(t, "", append([]string{"push", bad}, store...)...)
	assert.Error(t, err)
	assert.False(t, mr.Exists("test:bad"))

	out, err = execute(t, "", append([]string{"ls"}, store...)...)
	require.NoError(t, err)
	assert.Equal(t, "bye\ngreet\n", out)

	out, err = execute(t, "", append([]string{"rm", "bye"}, store...)...)
	require.NoError(t, err)
	assert.Equal(t, "deleted bye\n", out)

	_, err = execute(t, "", append([]string{"rm", "bye"}, store...)...)
	assert.ErrorContains(t, err, "not found")

	out, err = execute(t, "", append([]string{"ls"}, store...)...)
	require.NoError(t, err)
	assert.Equal(t, "greet\n", out)
}

func TestStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := execute(t, "", "ls", "--redis-addr", addr)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
