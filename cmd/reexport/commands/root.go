// Package commands implements the reexport CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/reexport/pkg/config"
	"github.com/Sumatoshi-tech/reexport/pkg/generate"
	"github.com/Sumatoshi-tech/reexport/pkg/loader"
	"github.com/Sumatoshi-tech/reexport/pkg/observability"
	"github.com/Sumatoshi-tech/reexport/pkg/version"
)

// envFile is loaded, when present, before configuration is read.
const envFile = ".env"

// globalOptions holds persistent flags and the state built from them.
type globalOptions struct {
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool

	mode observability.AppMode

	cfg       *config.Config
	providers observability.Providers
	red       *observability.REDMetrics
}

// NewRootCommand creates the reexport command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{mode: observability.ModeCLI}

	root := &cobra.Command{
		Use:   "reexport",
		Short: "Generate Go re-export files from //reexport: directives",
		Long: `reexport turns helper invocations into generated Go source.

Helpers:
  expose(a, b)      alias every export of sibling packages ./a and ./b
  package(a, b)     alias every export of ../a and ../b
  extend()          dot-import the parent package into the invoking file
  bundle("dir")     blank-import every package directly under ./dir

Run a helper from a go:generate line, for example
  //go:generate reexport expose models utils
or annotate files with //reexport:expose models and run "reexport generate".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.teardown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default is ./"+config.FileName+" or $HOME/"+config.FileName+")")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress output")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	for _, cmd := range newHelperCommands(opts) {
		root.AddCommand(cmd)
	}

	root.AddCommand(
		newGenerateCommand(opts),
		newListCommand(opts),
		newExpandCommand(opts),
		newConfigCommand(opts),
		newMCPCommand(opts),
		newVersionCommand(),
	)

	return root
}

func (o *globalOptions) setup(cmd *cobra.Command) error {
	if o.noColor {
		color.NoColor = true //nolint:reassign // documented way to disable the library
	}

	err := godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	if skipsConfig(cmd) {
		o.providers = observability.Providers{
			Logger:   observability.Discard(),
			Shutdown: func(context.Context) error { return nil },
		}

		return nil
	}

	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}

	o.cfg = cfg

	if cmd.Name() == mcpCommandName {
		o.mode = observability.ModeMCP
	}

	obsCfg, err := o.observabilityConfig(cmd)
	if err != nil {
		return err
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	o.providers = providers

	o.red, err = observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return err
	}

	o.providers.Logger.Debug("configuration loaded", "file", cfg.File, "mode", string(o.mode))

	return nil
}

func (o *globalOptions) observabilityConfig(cmd *cobra.Command) (observability.Config, error) {
	level, err := o.cfg.SlogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	switch {
	case o.verbose:
		level = slog.LevelDebug
	case o.quiet:
		level = slog.LevelError
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = o.cfg.Telemetry.Environment
	obsCfg.Mode = o.mode
	obsCfg.OTLPEndpoint = o.cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(o.cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = o.cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = o.cfg.Telemetry.SampleRatio
	obsCfg.DebugTrace = o.cfg.Telemetry.DebugTrace
	obsCfg.LogLevel = level
	obsCfg.LogJSON = o.cfg.Logging.JSON || o.mode == observability.ModeMCP
	obsCfg.LogWriter = cmd.ErrOrStderr()

	return obsCfg, nil
}

func (o *globalOptions) teardown(ctx context.Context) error {
	if o.providers.Shutdown == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	err := o.providers.Shutdown(ctx)
	if err != nil {
		o.providers.Logger.Warn("observability shutdown failed", "error", err)
	}

	return nil
}

// skipsConfig reports whether cmd runs without configuration: config
// validate must be able to report a broken file, and version needs nothing.
func skipsConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version":
		return true
	case "validate":
		return cmd.Parent() != nil && cmd.Parent().Name() == "config"
	default:
		return false
	}
}

// observe runs fn as one RED-measured request named after cmd.
func (o *globalOptions) observe(cmd *cobra.Command, fn func() error) error {
	return o.red.Observe(cmd.Context(), cmd.Name(), fn)
}

// engine builds a generation engine from the loaded configuration.
func (o *globalOptions) engine(mode generate.Mode) (*generate.Engine, error) {
	metrics, err := observability.NewGenerationMetrics(o.providers.Meter)
	if err != nil {
		return nil, err
	}

	return generate.New(o.generateOptions(mode), generate.Deps{
		Loader:  o.loader(),
		Logger:  o.providers.Logger,
		Tracer:  o.providers.Tracer,
		Metrics: metrics,
	}), nil
}

func (o *globalOptions) generateOptions(mode generate.Mode) generate.Options {
	return generate.Options{
		Mode:          mode,
		Suffix:        o.cfg.Output.Suffix,
		Header:        o.cfg.Output.Header,
		ScanExclude:   o.cfg.Scan.Exclude,
		BundleExclude: o.cfg.Bundle.Exclude,
		BuildTags:     o.cfg.Loader.BuildTags,
	}
}

func (o *globalOptions) loader() *loader.Loader {
	return loader.New(loader.Options{
		BuildTags: o.cfg.Loader.BuildTags,
		Env:       o.cfg.Loader.Env,
	}, loader.Deps{Logger: o.providers.Logger, Tracer: o.providers.Tracer})
}

func modeFromFlags(check, dryRun bool) (generate.Mode, error) {
	switch {
	case check && dryRun:
		return 0, ErrConflictingModes
	case check:
		return generate.ModeCheck, nil
	case dryRun:
		return generate.ModeDryRun, nil
	default:
		return generate.ModeWrite, nil
	}
}

// ErrConflictingModes is returned when --check and --dry-run are combined.
var ErrConflictingModes = errors.New("--check and --dry-run are mutually exclusive")

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reexport %s\n", version.String())
		},
	}
}
