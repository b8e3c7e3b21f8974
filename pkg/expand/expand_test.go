package expand_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/reexport/pkg/directive"
	"github.com/Sumatoshi-tech/reexport/pkg/expand"
)

var appScope = expand.Scope{
	Dir:         "/src/app/prelude",
	PackageName: "prelude",
	ImportPath:  "example.com/app/prelude",
}

func mustParse(t *testing.T, text string) directive.Invocation {
	t.Helper()

	inv, err := directive.Parse(text)
	require.NoError(t, err)

	return inv
}

func TestPlan_ExposeOneStatementPerModule(t *testing.T) {
	t.Parallel()

	for _, modules := range [][]string{
		{},
		{"models"},
		{"models", "utils"},
		{"a", "b", "c", "d", "e"},
		{"x", "x"},
	} {
		inv := directive.Invocation{Helper: directive.HelperExpose, Modules: modules}

		exp, err := expand.Plan(inv, appScope, nil)
		require.NoError(t, err)
		require.Len(t, exp.Statements, len(modules))

		for i, st := range exp.Statements {
			assert.Equal(t, modules[i], st.Module)
			assert.Equal(t, modules[i], st.Alias)
			assert.Equal(t, "example.com/app/prelude/"+modules[i], st.ImportPath)
			assert.Equal(t, expand.KindReexport, st.Kind)
		}
	}
}

func TestPlan_PackageQualifiesThroughParent(t *testing.T) {
	t.Parallel()

	exposed, err := expand.Plan(mustParse(t, "expose(models, services)"), appScope, nil)
	require.NoError(t, err)

	packaged, err := expand.Plan(mustParse(t, "package(models, services)"), appScope, nil)
	require.NoError(t, err)

	require.Len(t, packaged.Statements, len(exposed.Statements))

	for i := range exposed.Statements {
		sibling, parent := exposed.Statements[i], packaged.Statements[i]

		assert.Equal(t, sibling.Module, parent.Module)
		assert.Equal(t, sibling.Kind, parent.Kind)
		assert.Equal(t, "example.com/app/prelude/"+sibling.Module, sibling.ImportPath)
		assert.Equal(t, "example.com/app/"+parent.Module, parent.ImportPath)
	}
}

func TestPlan_ExtendAlwaysOneStatement(t *testing.T) {
	t.Parallel()

	exp, err := expand.Plan(mustParse(t, "extend()"), appScope, nil)
	require.NoError(t, err)
	require.Len(t, exp.Statements, 1)

	st := exp.Statements[0]
	assert.Equal(t, expand.KindDotImport, st.Kind)
	assert.Equal(t, ".", st.Alias)
	assert.Equal(t, "example.com/app", st.ImportPath)

	// Bundled packages are ignored by extend.
	exp, err = expand.Plan(mustParse(t, "extend()"), appScope, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, exp.Statements, 1)
}

func TestPlan_ExtendAtRootFails(t *testing.T) {
	t.Parallel()

	root := expand.Scope{PackageName: "app", ImportPath: "app"}

	_, err := expand.Plan(mustParse(t, "extend()"), root, nil)
	require.ErrorIs(t, err, expand.ErrNoParent)

	_, err = expand.Plan(mustParse(t, "package(models)"), root, nil)
	require.ErrorIs(t, err, expand.ErrNoParent)
}

func TestPlan_BundleOneStatementPerPackage(t *testing.T) {
	t.Parallel()

	scope := expand.Scope{PackageName: "server", ImportPath: "example.com/server"}

	exp, err := expand.Plan(mustParse(t, `bundle("routes")`), scope, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, exp.Statements, 2)

	assert.Equal(t, "example.com/server/routes/a", exp.Statements[0].ImportPath)
	assert.Equal(t, "example.com/server/routes/b", exp.Statements[1].ImportPath)

	for _, st := range exp.Statements {
		assert.Equal(t, expand.KindBlankImport, st.Kind)
		assert.Equal(t, "_", st.Alias)
	}
}

func TestPlan_BundleCleansPath(t *testing.T) {
	t.Parallel()

	scope := expand.Scope{PackageName: "server", ImportPath: "example.com/server"}

	exp, err := expand.Plan(mustParse(t, `bundle("./internal/../routes/")`), scope, []string{"a"})
	require.NoError(t, err)
	require.Len(t, exp.Statements, 1)
	assert.Equal(t, "example.com/server/routes/a", exp.Statements[0].ImportPath)
}

func TestPlan_UnknownHelper(t *testing.T) {
	t.Parallel()

	_, err := expand.Plan(directive.Invocation{Helper: "flatten"}, appScope, nil)
	require.ErrorIs(t, err, directive.ErrUnknownHelper)
}

func TestExpansion_TargetsDeduplicated(t *testing.T) {
	t.Parallel()

	exp, err := expand.Plan(mustParse(t, "expose(models, utils, models)"), appScope, nil)
	require.NoError(t, err)

	targets := exp.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "example.com/app/prelude/models", targets[0].Path)
	assert.Equal(t, "models", targets[0].Alias)
	assert.Equal(t, "example.com/app/prelude/utils", targets[1].Path)
}

func TestExpansion_TargetsSkipImports(t *testing.T) {
	t.Parallel()

	exp, err := expand.Plan(mustParse(t, `bundle("routes")`), appScope, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, exp.Targets())
}

func TestExpansion_AttachMissing(t *testing.T) {
	t.Parallel()

	exp, err := expand.Plan(mustParse(t, "expose(models)"), appScope, nil)
	require.NoError(t, err)

	err = exp.Attach(map[string]expand.Package{})
	require.ErrorIs(t, err, expand.ErrUnresolved)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	first, err := expand.Plan(mustParse(t, "expose(a)"), appScope, nil)
	require.NoError(t, err)

	second, err := expand.Plan(mustParse(t, "expose(b, c)"), appScope, nil)
	require.NoError(t, err)

	merged, err := expand.Merge(first, second)
	require.NoError(t, err)

	assert.Len(t, merged.Invocations, 2)
	require.Len(t, merged.Statements, 3)
	assert.Equal(t, "a", merged.Statements[0].Module)
	assert.Equal(t, "c", merged.Statements[2].Module)

	other, err := expand.Plan(mustParse(t, "package(d)"), appScope, nil)
	require.NoError(t, err)

	_, err = expand.Merge(first, other)
	require.ErrorIs(t, err, expand.ErrMixedHelpers)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "reexport", expand.KindReexport.String())
	assert.Equal(t, "blank-import", expand.KindBlankImport.String())
	assert.Equal(t, "dot-import", expand.KindDotImport.String())
	assert.Equal(t, "Kind(9)", expand.Kind(9).String())
}
