package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aescanero/dago-node-prompt/pkg/prompt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetManifest = `
name: greet
description: Introduce someone
params:
  - name: name
  - name: age
    default: 40
    check: age >= 0
template: |
  Hello, I am {{ name }} and I am {{ age }} years old.
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(greetManifest))
	require.NoError(t, err)

	assert.Equal(t, "greet", m.Name)
	assert.Equal(t, "Introduce someone", m.Description)
	require.Len(t, m.Params, 2)
	assert.False(t, m.Params[0].HasDefault())
	assert.True(t, m.Params[1].HasDefault())
	assert.Equal(t, "age >= 0", m.Params[1].Check)
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: ""},
		{name: "unknown field", data: "name: x\ntemplate: y\nextra: z\n"},
		{name: "not yaml", data: "name: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestManifestDeclaration(t *testing.T) {
	m, err := ParseManifest([]byte(`
name: report
params:
  - name: title
  - name: note
    default: null
  - name: items
    kind: var_positional
  - name: options
    kind: var_keyword
template: "{{ title }}"
`))
	require.NoError(t, err)

	decl, err := m.Declaration()
	require.NoError(t, err)

	assert.Equal(t, "report", decl.Name)
	assert.Equal(t, "{{ title }}", decl.Doc)
	require.Len(t, decl.Params, 4)

	assert.False(t, decl.Params[0].HasDefault)
	assert.True(t, decl.Params[1].HasDefault)
	assert.Nil(t, decl.Params[1].Default)
	assert.Equal(t, prompt.VarPositional, decl.Params[2].Kind)
	assert.Equal(t, prompt.VarKeyword, decl.Params[3].Kind)
}

func TestManifestDeclarationUnknownKind(t *testing.T) {
	m := &Manifest{
		Name:     "bad",
		Params:   []ParamManifest{{Name: "x", Kind: "sideways"}},
		Template: "{{ x }}",
	}

	_, err := m.Declaration()
	assert.Error(t, err)
}

func TestManifestMarshalRoundTrip(t *testing.T) {
	m, err := ParseManifest([]byte(greetManifest))
	require.NoError(t, err)

	data, err := m.Marshal()
	require.NoError(t, err)

	again, err := ParseManifest(data)
	require.NoError(t, err)

	decl, err := again.Declaration()
	require.NoError(t, err)
	require.Len(t, decl.Params, 2)
	assert.Equal(t, 40, decl.Params[1].Default)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}

	write("b.yaml", greetManifest)
	write("a.yml", "template: \"{{ x }}\"\n")
	write("notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o755))

	manifests, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, manifests, 2)

	// unnamed manifests take the file name
	assert.Equal(t, "a", manifests[0].Name)
	assert.Equal(t, "greet", manifests[1].Name)
}

func TestLoadDirInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("bogus: 1\n"), 0o644))

	_, err := LoadDir(dir)
	assert.Error(t, err)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	m, err := ParseManifest([]byte(greetManifest))
	require.NoError(t, err)

	r := New(nil, nil, nil)
	require.NoError(t, r.Load([]*Manifest{m}))

	tmpl, err := r.Get(context.Background(), "greet")
	require.NoError(t, err)

	out, err := tmpl.Render("John")
	require.NoError(t, err)
	// the trailing newline of the block scalar is stripped by Clean
	assert.Equal(t, "Hello, I am John and I am 40 years old.", out)

	_, err = tmpl.Render("John", -1)
	var bindErr *prompt.BindingError
	assert.ErrorAs(t, err, &bindErr)

	assert.Equal(t, []string{"greet"}, r.Names())
}

func TestRegistryGetMissing(t *testing.T) {
	r := New(nil, nil, nil)

	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryRegisterErrors(t *testing.T) {
	r := New(nil, nil, nil)

	_, err := r.Register(&Manifest{Template: "x"})
	assert.Error(t, err)

	_, err = r.Register(&Manifest{Name: "empty"})
	var srcErr *prompt.TemplateSourceError
	assert.ErrorAs(t, err, &srcErr)

	_, err = r.Register(&Manifest{Name: "broken", Template: "{{#if x}}"})
	var synErr *prompt.TemplateSyntaxError
	assert.ErrorAs(t, err, &synErr)

	assert.Empty(t, r.Names())
}

type memoryStore struct {
	manifests map[string]string
	loads     int
}

func (s *memoryStore) Load(_ context.Context, name string) (*Manifest, error) {
	s.loads++
	data, ok := s.manifests[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ParseManifest([]byte(data))
}

func TestRegistryStoreFallback(t *testing.T) {
	store := &memoryStore{manifests: map[string]string{
		"farewell": "template: \"Bye {{ who }}\"\nparams:\n  - name: who\n",
	}}
	r := New(nil, store, nil)
	ctx := context.Background()

	tmpl, err := r.Get(ctx, "farewell")
	require.NoError(t, err)
	assert.Equal(t, "farewell", tmpl.Name())

	out, err := tmpl.Render("Ana")
	require.NoError(t, err)
	assert.Equal(t, "Bye Ana", out)

	// second lookup is served from memory
	_, err = r.Get(ctx, "farewell")
	require.NoError(t, err)
	assert.Equal(t, 1, store.loads)

	r.Forget("farewell")
	_, err = r.Get(ctx, "farewell")
	require.NoError(t, err)
	assert.Equal(t, 2, store.loads)

	_, err = r.Get(ctx, "unknown")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisStoreKey(t *testing.T) {
	s := NewRedisStore(nil, "", nil)
	assert.Equal(t, "prompt:template:greet", s.key("greet"))

	s = NewRedisStore(nil, "custom:", nil)
	assert.Equal(t, "custom:greet", s.key("greet"))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "", nil)
	ctx := context.Background()

	m, err := ParseManifest([]byte(greetManifest))
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "greet")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save(ctx, m))
	require.NoError(t, store.Save(ctx, &Manifest{Name: "bye", Template: "Bye {{ who }}", Params: []ParamManifest{{Name: "who"}}}))
	assert.True(t, mr.Exists("prompt:template:greet"))

	exists, err = store.Exists(ctx, "greet")
	require.NoError(t, err)
	assert.True(t, exists)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bye", "greet"}, names)

	loaded, err := store.Load(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, m.Template, loaded.Template)
	require.Len(t, loaded.Params, 2)
	assert.True(t, loaded.Params[1].HasDefault())

	require.NoError(t, store.SetTTL(ctx, "bye", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("prompt:template:bye"))

	require.NoError(t, store.Delete(ctx, "bye"))
	assert.ErrorIs(t, store.Delete(ctx, "bye"), ErrNotFound)

	_, err = store.Load(ctx, "bye")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, store.Save(ctx, &Manifest{Template: "x"}))
}

func TestRegistryRedisFallback(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "custom:", nil)
	require.NoError(t, mr.Set("custom:farewell", "template: \"Bye {{ who }}\"\nparams:\n  - name: who\n"))

	r := New(nil, store, nil)
	tmpl, err := r.Get(context.Background(), "farewell")
	require.NoError(t, err)

	out, err := tmpl.Render("Ana")
	require.NoError(t, err)
	assert.Equal(t, "Bye Ana", out)

	require.NoError(t, mr.Set("custom:broken", "template: \"{{#if x}}\"\n"))
	_, err = r.Get(context.Background(), "broken")
	assert.Error(t, err)
}
