// Package config loads reexport settings from .reexport.yaml, REEXPORT_*
// environment variables and built-in defaults, in increasing precedence of
// defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/reexport/internal/discovery"
)

// Sentinel validation errors.
var (
	ErrInvalidSuffix      = errors.New("output suffix must end in .go and must not mark a test file")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidSampleRatio = errors.New("sample ratio must be between 0 and 1")
	ErrInvalidExclude     = errors.New("invalid exclude pattern")
	ErrInvalidHeader      = errors.New(`output header must be one line matching "Code generated ... DO NOT EDIT."`)
)

// generatedHeader is the marker go/ast.IsGenerated and gopls look for.
var generatedHeader = regexp.MustCompile(`^Code generated .* DO NOT EDIT\.$`)

const (
	// FileName is the configuration file searched for when no path is given.
	FileName = ".reexport.yaml"

	envPrefix = "REEXPORT"
)

// Config holds all reexport settings.
type Config struct {
	Output    OutputConfig    `mapstructure:"output"`
	Loader    LoaderConfig    `mapstructure:"loader"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Bundle    BundleConfig    `mapstructure:"bundle"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// File is the configuration file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// OutputConfig controls generated file naming and content.
type OutputConfig struct {
	// Suffix is appended to "<stem>_<helper>" to name generated files.
	Suffix string `mapstructure:"suffix"`
	// Header is the first line of every generated file.
	Header string `mapstructure:"header"`
}

// LoaderConfig controls how packages are resolved.
type LoaderConfig struct {
	BuildTags []string `mapstructure:"build_tags"`
	Env       []string `mapstructure:"env"`
}

// ScanConfig controls the directive scan of generate and list.
type ScanConfig struct {
	Exclude []string `mapstructure:"exclude"`
}

// BundleConfig controls package discovery for bundle.
type BundleConfig struct {
	Exclude []string `mapstructure:"exclude"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	Environment  string  `mapstructure:"environment"`
}

// otelEnv maps telemetry keys to the standard OpenTelemetry variables, read
// when the REEXPORT_ variable is unset.
var otelEnv = map[string]string{
	"telemetry.otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
	"telemetry.otlp_headers":  "OTEL_EXPORTER_OTLP_HEADERS",
	"telemetry.otlp_insecure": "OTEL_EXPORTER_OTLP_INSECURE",
}

func bindOTelEnv(v *viper.Viper) {
	for key, name := range otelEnv {
		own := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))

		_ = v.BindEnv(key, own, name) //nolint:errcheck // only fails without a key
	}
}

// LoadConfig loads configuration. An empty configPath searches the working
// directory, then $HOME, for .reexport.yaml; a missing file is not an error.
// An explicit path must exist. A file that was read is checked against the
// embedded schema before it is decoded.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindOTelEnv(v)

	readErr := v.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	if used := v.ConfigFileUsed(); used != "" && readErr == nil {
		problems, err := ValidateFile(used)
		if err != nil {
			return nil, err
		}

		if len(problems) > 0 {
			return nil, fmt.Errorf("%w: %s: %s", ErrSchema, used, problems)
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if readErr == nil {
		cfg.File = v.ConfigFileUsed()
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.suffix", DefaultSuffix)
	v.SetDefault("output.header", DefaultHeader)

	v.SetDefault("loader.build_tags", []string{})
	v.SetDefault("loader.env", []string{})

	v.SetDefault("scan.exclude", DefaultScanExclude())
	v.SetDefault("bundle.exclude", []string{})

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.json", DefaultLogJSON)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_headers", "")
	v.SetDefault("telemetry.otlp_insecure", DefaultOTLPInsecure)
	v.SetDefault("telemetry.sample_ratio", DefaultSampleRatio)
	v.SetDefault("telemetry.debug_trace", false)
	v.SetDefault("telemetry.environment", "")
}

// Validate checks values the schema cannot express, including settings
// that arrived through the environment.
func (c *Config) Validate() error {
	suffix := c.Output.Suffix
	if !strings.HasSuffix(suffix, ".go") || strings.HasSuffix(suffix, "_test.go") || suffix == ".go" {
		return fmt.Errorf("%w: %q", ErrInvalidSuffix, suffix)
	}

	// Empty falls back to the default header when rendering.
	if header := c.Output.Header; header != "" && (strings.ContainsAny(header, "\r\n") || !generatedHeader.MatchString(header)) {
		return fmt.Errorf("%w: %q", ErrInvalidHeader, header)
	}

	_, err := c.SlogLevel()
	if err != nil {
		return err
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	for _, patterns := range [][]string{c.Scan.Exclude, c.Bundle.Exclude} {
		_, err = discovery.NewMatcher(patterns)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidExclude, err)
		}
	}

	return nil
}

// SlogLevel maps the configured level name to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
}
