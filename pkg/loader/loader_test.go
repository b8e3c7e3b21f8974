package loader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/reexport/pkg/expand"
	"github.com/Sumatoshi-tech/reexport/pkg/loader"
)

var isolatedEnv = []string{"GOWORK=off", "GOFLAGS=-mod=mod"}

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	files["go.mod"] = "module example.com/app\n\ngo 1.22\n"

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return root
}

const modelsSource = `package models

import (
	"context"
	"errors"
)

type User struct{ Name string }

type List[T any] []T

type hidden struct{}

const MaxUsers = 10

var ErrNotFound = errors.New("not found")

func NewUser(name string) User { return User{Name: name} }

func Map[T, U any](in []T, f func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

func Visit[T any](ctx context.Context, items ...T) error { return ctx.Err() }

func Secret[T any](h hidden) T {
	var zero T
	return zero
}

func unexported() {}
`

func newLoader(opts loader.Options) *loader.Loader {
	opts.Env = append(opts.Env, isolatedEnv...)

	return loader.New(opts, loader.Deps{})
}

func TestScope(t *testing.T) {
	t.Parallel()

	root := writeModule(t, map[string]string{
		"prelude/prelude.go": "package prelude\n",
	})

	scope, err := newLoader(loader.Options{}).Scope(context.Background(), filepath.Join(root, "prelude"))
	require.NoError(t, err)

	assert.Equal(t, "prelude", scope.PackageName)
	assert.Equal(t, "example.com/app/prelude", scope.ImportPath)
	assert.Equal(t, filepath.Join(root, "prelude"), scope.Dir)
}

func TestScope_NoGoFiles(t *testing.T) {
	t.Parallel()

	root := writeModule(t, map[string]string{
		"empty/README.md": "nothing here\n",
	})

	_, err := newLoader(loader.Options{}).Scope(context.Background(), filepath.Join(root, "empty"))
	require.ErrorIs(t, err, loader.ErrPackageNotFound)
}

func TestLoad_Surface(t *testing.T) {
	t.Parallel()

	root := writeModule(t, map[string]string{
		"prelude/prelude.go": "package prelude\n",
		"prelude/models/models.go": modelsSource,
	})

	pkgs, err := newLoader(loader.Options{}).Load(context.Background(), filepath.Join(root, "prelude"),
		[]expand.Target{{Alias: "models", Path: "example.com/app/prelude/models"}})
	require.NoError(t, err)
	require.Contains(t, pkgs, "example.com/app/prelude/models")

	models := pkgs["example.com/app/prelude/models"]
	assert.Equal(t, "models", models.Name)
	assert.Equal(t, []string{"Secret"}, models.Skipped)
	assert.Equal(t, []expand.Import{{Name: "context", Path: "context"}}, models.Imports)

	byName := make(map[string]expand.Export)
	names := make([]string, 0, len(models.Exports))

	for _, exp := range models.Exports {
		byName[exp.Name] = exp
		names = append(names, exp.Name)
	}

	assert.Equal(t, []string{"ErrNotFound", "List", "Map", "MaxUsers", "NewUser", "User", "Visit"}, names)

	assert.Equal(t, expand.ExportVar, byName["ErrNotFound"].Kind)
	assert.Equal(t, expand.ExportConst, byName["MaxUsers"].Kind)
	assert.Equal(t, expand.ExportType, byName["User"].Kind)
	assert.False(t, byName["User"].Generic())
	assert.Equal(t, expand.ExportFunc, byName["NewUser"].Kind)
	assert.False(t, byName["NewUser"].Generic())

	list := byName["List"]
	assert.Equal(t, "[T any]", list.TypeParams)
	assert.Equal(t, "[T]", list.TypeArgs)

	mapFn := byName["Map"]
	assert.Equal(t, "[T any, U any]", mapFn.TypeParams)
	assert.Equal(t, "[T, U]", mapFn.TypeArgs)
	assert.Equal(t, "(p0 []T, p1 func(T) U)", mapFn.Params)
	assert.Equal(t, "(p0, p1)", mapFn.Args)
	assert.Equal(t, "[]U", mapFn.Results)

	visit := byName["Visit"]
	assert.Equal(t, "(p0 context.Context, p1 ...T)", visit.Params)
	assert.Equal(t, "(p0, p1...)", visit.Args)
	assert.Equal(t, "error", visit.Results)
}

func TestLoad_QualifiesSiblingTargets(t *testing.T) {
	t.Parallel()

	root := writeModule(t, map[string]string{
		"prelude/prelude.go": "package prelude\n",
		"prelude/ids/ids.go": "package ids\n\ntype ID string\n",
		"prelude/models/models.go": `package models

import "example.com/app/prelude/ids"

func Lookup[T any](id ids.ID, items map[ids.ID]T) T { return items[id] }
`,
	})

	pkgs, err := newLoader(loader.Options{}).Load(context.Background(), filepath.Join(root, "prelude"),
		[]expand.Target{
			{Alias: "models", Path: "example.com/app/prelude/models"},
			{Alias: "ids", Path: "example.com/app/prelude/ids"},
		})
	require.NoError(t, err)

	models := pkgs["example.com/app/prelude/models"]
	require.Len(t, models.Exports, 1)
	assert.Equal(t, "(p0 ids.ID, p1 map[ids.ID]T)", models.Exports[0].Params)
	assert.Empty(t, models.Imports)
}

func TestLoad_DistinctImportNames(t *testing.T) {
	t.Parallel()

	root := writeModule(t, map[string]string{
		"prelude/prelude.go": "package prelude\n",
		"prelude/models/models.go": `package models

import "text/template"

func Render[T any](tpl *template.Template, data T) error { return nil }
`,
		"prelude/utils/utils.go": `package utils

import "html/template"

func Escape[T any](tpl *template.Template, data T) string { return "" }
`,
		"lib/template/template.go": "package template\n\ntype T struct{}\n",
		"prelude/template/template.go": `package template

import "example.com/app/lib/template"

func Wrap[V any](t template.T, v V) V { return v }
`,
	})

	pkgs, err := newLoader(loader.Options{}).Load(context.Background(), filepath.Join(root, "prelude"),
		[]expand.Target{
			{Alias: "models", Path: "example.com/app/prelude/models"},
			{Alias: "utils", Path: "example.com/app/prelude/utils"},
			{Alias: "template", Path: "example.com/app/prelude/template"},
		})
	require.NoError(t, err)

	models := pkgs["example.com/app/prelude/models"]
	assert.Equal(t, []expand.Import{{Name: "template2", Path: "text/template"}}, models.Imports)
	assert.Equal(t, "(p0 *template2.Template, p1 T)", models.Exports[0].Params)

	utils := pkgs["example.com/app/prelude/utils"]
	assert.Equal(t, []expand.Import{{Name: "template3", Path: "html/template"}}, utils.Imports)
	assert.Equal(t, "(p0 *template3.Template, p1 T)", utils.Exports[0].Params)

	wrap := pkgs["example.com/app/prelude/template"]
	assert.Equal(t, []expand.Import{{Name: "template4", Path: "example.com/app/lib/template"}}, wrap.Imports)
	assert.Equal(t, "(p0 template4.T, p1 V)", wrap.Exports[0].Params)
}

func TestLoad_BuildTags(t *testing.T) {
	t.Parallel()

	root := writeModule(t, map[string]string{
		"prelude/prelude.go":    "package prelude\n",
		"prelude/flags/base.go": "package flags\n\nconst Base = 1\n",
		"prelude/flags/extra.go": "//go:build extra\n\npackage flags\n\nconst Extra = 2\n",
	})

	targets := []expand.Target{{Alias: "flags", Path: "example.com/app/prelude/flags"}}
	dir := filepath.Join(root, "prelude")

	plain, err := newLoader(loader.Options{}).Load(context.Background(), dir, targets)
	require.NoError(t, err)
	assert.Len(t, plain["example.com/app/prelude/flags"].Exports, 1)

	tagged, err := newLoader(loader.Options{BuildTags: []string{"extra"}}).Load(context.Background(), dir, targets)
	require.NoError(t, err)
	assert.Len(t, tagged["example.com/app/prelude/flags"].Exports, 2)
}

func TestLoad_MissingPackage(t *testing.T) {
	t.Parallel()

	root := writeModule(t, map[string]string{
		"prelude/prelude.go": "package prelude\n",
	})

	_, err := newLoader(loader.Options{}).Load(context.Background(), filepath.Join(root, "prelude"),
		[]expand.Target{{Alias: "ghost", Path: "example.com/app/prelude/ghost"}})
	require.ErrorIs(t, err, loader.ErrPackageNotFound)
}

func TestLoad_TypeErrors(t *testing.T) {
	t.Parallel()

	root := writeModule(t, map[string]string{
		"prelude/prelude.go":     "package prelude\n",
		"prelude/broken/bad.go": "package broken\n\nvar X int = \"text\"\n",
	})

	_, err := newLoader(loader.Options{}).Load(context.Background(), filepath.Join(root, "prelude"),
		[]expand.Target{{Alias: "broken", Path: "example.com/app/prelude/broken"}})
	require.ErrorIs(t, err, loader.ErrPackageErrors)
}

func TestLoad_NoTargets(t *testing.T) {
	t.Parallel()

	pkgs, err := newLoader(loader.Options{}).Load(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, pkgs)
}
