package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/reexport/cmd/reexport/commands"
	"github.com/Sumatoshi-tech/reexport/pkg/config"
)

const isolatedConfig = `loader:
  env: ["GOWORK=off", "GOFLAGS=-mod=mod"]
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return root
}

// appModule is a module whose prelude package re-exports models and bundles routes.
func appModule(t *testing.T) string {
	t.Helper()

	return writeTree(t, map[string]string{
		"go.mod":                      "module example.com/app\n\ngo 1.22\n",
		config.FileName:               isolatedConfig,
		"prelude/prelude.go":          "package prelude\n\n//reexport:expose models\n",
		"prelude/models/models.go":    "package models\n\ntype User struct{ Name string }\n\nconst MaxUsers = 10\n",
		"prelude/routes/a/a.go":       "package a\n",
		"prelude/routes/b/b.go":       "package b\n",
		"prelude/routes/tool/main.go": "package main\n\nfunc main() {}\n",
	})
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, logs bytes.Buffer

	cmd := commands.NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	cmd := commands.NewRootCommand()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	for _, want := range []string{"expose", "package", "extend", "bundle", "generate", "list", "expand", "config", "mcp", "version"} {
		assert.Contains(t, names, want)
	}

	for _, flag := range []string{"config", "verbose", "quiet", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "reexport "), out)
	assert.Contains(t, out, "commit:")
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.yaml")
	require.NoError(t, os.WriteFile(valid, []byte("output:\n  suffix: _gen.go\n"), 0o600))

	out, err := run(t, "config", "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("logging:\n  level: loud\nextra: 1\n"), 0o600))

	out, err = run(t, "config", "validate", invalid)
	require.ErrorIs(t, err, commands.ErrConfigInvalid)
	assert.Contains(t, out, "logging.level")
	assert.Contains(t, out, "(root)")

	testSuffix := filepath.Join(dir, "suffix.yaml")
	require.NoError(t, os.WriteFile(testSuffix, []byte("output:\n  suffix: _gen_test.go\n"), 0o600))

	_, err = run(t, "config", "validate", testSuffix)
	require.ErrorIs(t, err, config.ErrInvalidSuffix)
}

func TestBrokenConfig_FailsOtherCommands(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  sufix: x\n"), 0o600))

	_, err := run(t, "--config", path, "list", t.TempDir())
	require.ErrorIs(t, err, config.ErrSchema)
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	root := appModule(t)
	cfg := filepath.Join(root, config.FileName)

	out, err := run(t, "--config", cfg, "list", root)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join("prelude", "prelude.go"))
	assert.Contains(t, out, "expose(models)")
	assert.Contains(t, out, "Total: 1 directives")

	out, err = run(t, "--config", cfg, "list", "--format", "json", root)
	require.NoError(t, err)

	var found []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &found))
	require.Len(t, found, 1)
	assert.InDelta(t, 3, found[0]["line"], 0)

	_, err = run(t, "--config", cfg, "list", "--format", "xml", root)
	require.ErrorIs(t, err, commands.ErrUnknownFormat)
}

func TestExpandCommand_Bundle(t *testing.T) {
	t.Parallel()

	root := appModule(t)
	cfg := filepath.Join(root, config.FileName)
	dir := filepath.Join(root, "prelude")

	out, err := run(t, "--config", cfg, "expand", `bundle("routes")`, "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `_ "example.com/app/prelude/routes/a"`)
	assert.Contains(t, out, `_ "example.com/app/prelude/routes/b"`)
	assert.NotContains(t, out, "routes/tool")

	out, err = run(t, "--config", cfg, "expand", `bundle("routes")`, "--dir", dir, "--format", "yaml")
	require.NoError(t, err)

	var report struct {
		Statements int      `yaml:"statements"`
		Summary    []string `yaml:"summary"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Statements)
	assert.Equal(t, []string{
		"blank-import example.com/app/prelude/routes/a",
		"blank-import example.com/app/prelude/routes/b",
	}, report.Summary)

	_, err = run(t, "--config", cfg, "expand", "import(x)", "--dir", dir)
	require.Error(t, err)
}

func TestExpandCommand_UnknownFormatFailsBeforeLoading(t *testing.T) {
	t.Parallel()

	root := appModule(t)
	cfg := filepath.Join(root, config.FileName)
	missing := filepath.Join(root, "does", "not", "exist")

	out, err := run(t, "--config", cfg, "expand", "expose(models)", "--dir", missing, "--format", "toml")
	require.ErrorIs(t, err, commands.ErrUnknownFormat)
	assert.Empty(t, out)
}

func TestExposeCommand_DryRunAndWrite(t *testing.T) {
	t.Parallel()

	root := appModule(t)
	cfg := filepath.Join(root, config.FileName)
	dir := filepath.Join(root, "prelude")
	output := filepath.Join(dir, "prelude_expose_gen.go")

	out, err := run(t, "--config", cfg, "expose", "models", "--dir", dir, "--file", "prelude.go", "--dry-run")
	require.NoError(t, err)
	assert.Regexp(t, `User\s+= models\.User`, out)
	assert.NoFileExists(t, output)

	_, err = run(t, "--config", cfg, "expose", "models", "--dir", dir, "--file", "prelude.go", "--check")
	require.Error(t, err)

	out, err = run(t, "--config", cfg, "expose", "models", "--dir", dir, "--file", "prelude.go")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	assert.FileExists(t, output)

	_, err = run(t, "--config", cfg, "expose", "models", "--dir", dir, "--file", "prelude.go", "--check")
	require.NoError(t, err)

	_, err = run(t, "--config", cfg, "expose", "models", "--dir", dir, "--check", "--dry-run")
	require.ErrorIs(t, err, commands.ErrConflictingModes)
}

func TestGenerateCommand(t *testing.T) {
	t.Parallel()

	root := appModule(t)
	cfg := filepath.Join(root, config.FileName)
	output := filepath.Join(root, "prelude", "prelude_expose_gen.go")

	_, err := run(t, "--config", cfg, "generate", "--check", root)
	require.Error(t, err)
	assert.NoFileExists(t, output)

	out, err := run(t, "--config", cfg, "generate", root)
	require.NoError(t, err)
	assert.Contains(t, out, "1 files, 1 changed")

	generated, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(generated), "// "+config.DefaultHeader), string(generated))

	out, err = run(t, "--config", cfg, "generate", "--check", root)
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	out, err = run(t, "--config", cfg, "--quiet", "generate", root)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMCPCommand_Flags(t *testing.T) {
	t.Parallel()

	cmd := commands.NewRootCommand()

	mcpCmd, _, err := cmd.Find([]string{"mcp"})
	require.NoError(t, err)
	assert.Equal(t, "mcp", mcpCmd.Name())
	assert.NotEmpty(t, mcpCmd.Long)

	flag := mcpCmd.Flags().Lookup("http")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
}
