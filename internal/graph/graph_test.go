package graph

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func qn(s string) QualifiedName {
	q, err := ParseQualifiedName(s)
	if err != nil {
		panic(err)
	}
	return q
}

const sampleTOML = `
root = "."

[targets."app/app.gyp:app"]
type = "executable"
sources = ["main.c"]
dependencies = ["util/util.gyp:util"]
default_configuration = "Debug"

[targets."app/app.gyp:app".configurations.Debug]
defines = ["DEBUG"]
cflags = ["-g"]

[targets."app/app.gyp:app".configurations.Release]
cflags = ["-O2"]

[targets."app/app.gyp:app".'target_os != ""']
sources = ["always.c"]

[targets."app/app.gyp:app".'target_os == "plan9"']
sources = ["never.c"]

[[targets."app/app.gyp:app".actions]]
action_name = "version"
outputs = ['{{ flags.gen }}/version.h']
action = ["python", "version.py", '{{ ReadFile("VERSION") }}']

[targets."util/util.gyp:util"]
type = "static_library"
sources = ["util.c"]

[[targets."util/util.gyp:util".rules]]
rule_name = "idl"
extension = "idl"
rule_sources = ["a.idl", "b.idl"]
outputs = ["<(RULE_INPUT_ROOT).h"]
action = ["idlc", "<(RULE_INPUT_PATH)"]
`

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "VERSION"), "1.2.3\n")
	path := filepath.Join(dir, DefaultFile)
	writeFile(t, path, sampleTOML)

	g, err := Load(path, NewEnv(dir, map[string]string{"gen": "$(obj)/gen"}))
	require.NoError(t, err)

	assert.Equal(t, dir, g.Root)
	assert.Equal(t, []QualifiedName{qn("util/util.gyp:util"), qn("app/app.gyp:app")}, g.Order)

	app := g.Targets[qn("app/app.gyp:app")]
	require.NotNil(t, app)
	assert.Equal(t, Executable, app.Type)
	assert.Equal(t, []string{"main.c", "always.c"}, app.Sources)
	assert.Equal(t, "Debug", app.DefaultConfiguration)
	assert.Equal(t, []string{"DEBUG"}, app.Configurations["Debug"].Defines)
	assert.Equal(t, []string{"-O2"}, app.Configurations["Release"].Cflags)
	require.Len(t, app.Actions, 1)
	assert.Equal(t, []string{"$(obj)/gen/version.h"}, app.Actions[0].Outputs)
	assert.Equal(t, []string{"python", "version.py", "1.2.3"}, app.Actions[0].Invocation)

	util := g.Targets[qn("util/util.gyp:util")]
	require.NotNil(t, util)
	assert.Equal(t, StaticLibrary, util.Type)
	assert.Equal(t, "Default", util.DefaultConfiguration)
	require.Len(t, util.Rules, 1)
	assert.Equal(t, []string{"<(RULE_INPUT_ROOT).h"}, util.Rules[0].Outputs)
	assert.Equal(t, []string{"a.idl", "b.idl"}, util.Rules[0].Sources)
}

func TestLoadYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "graph.yaml")
	writeFile(t, yamlPath, `
targets:
  "lib.gyp:shared":
    type: shared_library
    sources: [s.cc]
    configurations:
      Default:
        ldflags: ["-Wl,-z,defs"]
  "lib.gyp:settings":
    type: settings
`)
	g, err := Load(yamlPath, NewEnv(dir, nil))
	require.NoError(t, err)
	assert.Empty(t, g.Root)
	assert.Equal(t, SharedLibrary, g.Targets[qn("lib.gyp:shared")].Type)
	assert.Equal(t, []string{"-Wl,-z,defs"}, g.Targets[qn("lib.gyp:shared")].Configurations["Default"].Ldflags)
	assert.Equal(t, Settings, g.Targets[qn("lib.gyp:settings")].Type)

	jsonPath := filepath.Join(dir, "graph.json")
	writeFile(t, jsonPath, `{"targets": {"x.gyp:x": {"type": "none", "copies": [{"destination": "out", "files": ["a", "b"]}]}}}`)
	g, err = Load(jsonPath, NewEnv(dir, nil))
	require.NoError(t, err)
	x := g.Targets[qn("x.gyp:x")]
	assert.Equal(t, None, x.Type)
	assert.Equal(t, []Copy{{Destination: "out", Files: []string{"a", "b"}}}, x.Copies)
}

func TestLoadRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	writeFile(t, path, "[targets.\"a.gyp:a\"]\ntype = \"excutable\"\n")

	_, err := Load(path, NewEnv(dir, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTargetType), err)
	assert.Contains(t, err.Error(), "a.gyp:a")
}

func TestExplicitOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	writeFile(t, path, `
order = ["b.gyp:b", "a.gyp:a"]
[targets."a.gyp:a"]
type = "none"
[targets."b.gyp:b"]
type = "none"
`)
	g, err := Load(path, NewEnv(dir, nil))
	require.NoError(t, err)
	assert.Equal(t, []QualifiedName{qn("b.gyp:b"), qn("a.gyp:a")}, g.Order)

	writeFile(t, path, `
order = ["a.gyp:a"]
[targets."a.gyp:a"]
type = "none"
[targets."b.gyp:b"]
type = "none"
`)
	_, err = Load(path, NewEnv(dir, nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingTarget), err)
}

func TestSortCycle(t *testing.T) {
	g := &Graph{Targets: map[QualifiedName]*Target{
		qn("a:a"): {Name: qn("a:a"), Dependencies: []QualifiedName{qn("b:b")}},
		qn("b:b"): {Name: qn("b:b"), Dependencies: []QualifiedName{qn("a:a")}},
		qn("c:c"): {Name: qn("c:c")},
	}}

	_, err := Sort(g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))

	var zErr *zerr.Error
	require.True(t, errors.As(err, &zErr))
	assert.Equal(t, []string{"a:a", "b:b"}, zErr.Metadata()["targets"])
}

func TestSortMissingDependency(t *testing.T) {
	g := &Graph{Targets: map[QualifiedName]*Target{
		qn("a:a"): {Name: qn("a:a"), Dependencies: []QualifiedName{qn("nope:nope")}},
	}}
	_, err := Sort(g)
	assert.True(t, errors.Is(err, ErrMissingTarget))
}

func TestSortIsDeterministic(t *testing.T) {
	g := &Graph{Targets: map[QualifiedName]*Target{
		qn("z:z"):   {Name: qn("z:z")},
		qn("a:a"):   {Name: qn("a:a")},
		qn("m:m"):   {Name: qn("m:m"), Dependencies: []QualifiedName{qn("z:z"), qn("a:a")}},
		qn("top:t"): {Name: qn("top:t"), Dependencies: []QualifiedName{qn("m:m")}},
	}}
	order, err := Sort(g)
	require.NoError(t, err)
	assert.Equal(t, []QualifiedName{qn("a:a"), qn("z:z"), qn("m:m"), qn("top:t")}, order)
}

func TestQualifiedName(t *testing.T) {
	q, err := ParseQualifiedName("base/./base.gyp:base_unittests")
	require.NoError(t, err)
	assert.Equal(t, "base/base.gyp", q.File)
	assert.Equal(t, "base_unittests", q.Target)
	assert.Equal(t, "base", q.Dir())
	assert.Equal(t, "", qn("all.gyp:all").Dir())

	for _, bad := range []string{"noseparator", ":x", "file:"} {
		_, err := ParseQualifiedName(bad)
		assert.True(t, errors.Is(err, ErrBadQualifiedName), bad)
	}
}

func TestTargetTypeRoundTrip(t *testing.T) {
	for typ := Executable; typ <= Settings; typ++ {
		parsed, err := ParseTargetType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
	assert.False(t, TargetType(42).Valid())
	assert.Equal(t, "TargetType(42)", TargetType(42).String())
}

func TestExpandGlobs(t *testing.T) {
	root := t.TempDir()
	for _, f := range []string{"lib/src/b.c", "lib/src/a.c", "lib/src/deep/c.cc", "lib/src/notes.txt", "lib/x.idl"} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(f)), "")
	}

	name := qn("lib/lib.gyp:lib")
	g := &Graph{
		Root:  root,
		Order: []QualifiedName{name},
		Targets: map[QualifiedName]*Target{name: {
			Name:    name,
			Sources: []string{"src/**/*.{c,cc}", "$(obj)/gen/*.c", "extra.c"},
			Rules:   []Rule{{Name: "idl", Sources: []string{"*.idl"}}},
		}},
	}
	require.NoError(t, g.ExpandGlobs())

	assert.Equal(t, []string{"src/a.c", "src/b.c", "src/deep/c.cc", "$(obj)/gen/*.c", "extra.c"}, g.Targets[name].Sources)
	assert.Equal(t, []string{"x.idl"}, g.Targets[name].Rules[0].Sources)
}
